// Package ask implements the interactive path: append the question to its
// session, run the inquiry pipeline and record the answer.
package ask

import (
	"context"
	"errors"

	"github.com/m-mizutani/cygnet/pkg/agent/inquiry"
	"github.com/m-mizutani/cygnet/pkg/model"
	"github.com/m-mizutani/cygnet/pkg/repository"
	"github.com/m-mizutani/cygnet/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
)

// GiveUpMessage is what the user sees when the repair loop exhausts its
// attempts. Never a raw driver or stack error.
const GiveUpMessage = "I could not translate this question into a working graph query. Please rephrase or narrow it down."

type UseCase struct {
	sessions repository.SessionRepository
	agent    *inquiry.Agent
}

func New(sessions repository.SessionRepository, agent *inquiry.Agent) *UseCase {
	return &UseCase{sessions: sessions, agent: agent}
}

// Input is one user question within a session.
type Input struct {
	UserID    model.UserID
	SessionID model.SessionID // empty starts a new session
	Question  string
}

// Output is the user-visible result.
type Output struct {
	SessionID model.SessionID
	Answer    string
	Query     string
	Rows      []map[string]any
	Attempts  int
	GaveUp    bool
}

// Ask runs one question end to end. Requests for different sessions share no
// mutable state and may run fully in parallel.
func (u *UseCase) Ask(ctx context.Context, input Input) (*Output, error) {
	if input.Question == "" {
		return nil, goerr.Wrap(model.ErrInvalidRequest, "question is empty")
	}
	if input.UserID == "" {
		return nil, goerr.Wrap(model.ErrInvalidRequest, "user_id is required")
	}

	sessionID := input.SessionID
	if sessionID == "" {
		sessionID = model.NewSessionID()
	}

	if err := u.sessions.AppendTurn(ctx, &model.ConversationTurn{
		SessionID: sessionID,
		UserID:    input.UserID,
		Role:      model.RoleUser,
		Content:   input.Question,
	}); err != nil {
		return nil, goerr.Wrap(err, "failed to record user turn")
	}

	out := &Output{SessionID: sessionID}

	result, err := u.agent.Ask(ctx, input.Question)
	switch {
	case err == nil:
		out.Answer = result.Answer
		out.Query = result.Query
		out.Rows = result.Rows
		out.Attempts = len(result.Attempts)

	case errors.Is(err, model.ErrCannotAnswer):
		logging.From(ctx).Warn("giving up on question",
			"session_id", sessionID, "error", err)
		out.Answer = GiveUpMessage
		out.GaveUp = true
		if result != nil {
			out.Attempts = len(result.Attempts)
		}

	default:
		return nil, err
	}

	if err := u.sessions.AppendTurn(ctx, &model.ConversationTurn{
		SessionID: sessionID,
		UserID:    input.UserID,
		Role:      model.RoleAssistant,
		Content:   out.Answer,
	}); err != nil {
		return nil, goerr.Wrap(err, "failed to record assistant turn")
	}

	return out, nil
}
