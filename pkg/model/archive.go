package model

import (
	"time"

	"github.com/m-mizutani/goerr/v2"
)

type ArchiveStatus string

const (
	ArchivePending    ArchiveStatus = "pending"
	ArchiveProcessing ArchiveStatus = "processing"
	ArchiveDone       ArchiveStatus = "done"
	ArchiveError      ArchiveStatus = "error"
)

// Validate checks if the status is valid
func (s ArchiveStatus) Validate() error {
	switch s {
	case ArchivePending, ArchiveProcessing, ArchiveDone, ArchiveError:
		return nil
	default:
		return goerr.New("invalid archive status", goerr.V("status", s))
	}
}

// ArchiveJob is the durable record of pending long-term-memory work for one
// session. The archive_jobs row is the single source of truth for archival
// progress: no side effect counts as complete until the row reaches done.
// At most one job exists per session_id.
type ArchiveJob struct {
	ID          int64
	UserID      UserID
	SessionID   SessionID
	Status      ArchiveStatus
	ScheduledAt time.Time
	UpdatedAt   time.Time
	ErrorMsg    string
}

// SessionMemory is the condensed long-term representation of an archived
// session, keyed by session_id so a repeated write overwrites rather than
// duplicates.
type SessionMemory struct {
	SessionID SessionID
	UserID    UserID
	Summary   string
	TurnCount int
	CreatedAt time.Time
	UpdatedAt time.Time
}
