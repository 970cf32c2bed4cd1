package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
)

type SessionID string

// NewSessionID generates a new unique SessionID
func NewSessionID() SessionID {
	return SessionID(uuid.New().String())
}

type UserID string

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Validate checks if the role is valid
func (r Role) Validate() error {
	switch r {
	case RoleUser, RoleAssistant:
		return nil
	default:
		return goerr.New("invalid turn role", goerr.V("role", r))
	}
}

// ConversationTurn is one utterance within a session. Turns are append-only
// and strictly ordered by arrival.
type ConversationTurn struct {
	SessionID SessionID `json:"session_id"`
	UserID    UserID    `json:"user_id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Session is a conversation owned by the session store. It is created on the
// first turn and marked inactive when the interactive path ends it.
type Session struct {
	ID        SessionID
	UserID    UserID
	Turns     []*ConversationTurn
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}
