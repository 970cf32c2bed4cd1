package repository_test

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/m-mizutani/cygnet/pkg/model"
	"github.com/m-mizutani/cygnet/pkg/repository"
	"github.com/m-mizutani/gt"
)

func newTestSessions(t *testing.T) *repository.RedisSessions {
	t.Helper()
	mr := miniredis.RunT(t)
	r, err := repository.NewRedisSessions(context.Background(), mr.Addr())
	gt.NoError(t, err)
	t.Cleanup(func() { r.Close() })
	return r
}

func TestAppendTurnCreatesSession(t *testing.T) {
	ctx := context.Background()
	r := newTestSessions(t)

	sessionID := model.NewSessionID()
	gt.NoError(t, r.AppendTurn(ctx, &model.ConversationTurn{
		SessionID: sessionID,
		UserID:    "user-1",
		Role:      model.RoleUser,
		Content:   "Which terminals are unprotected?",
	}))

	session, err := r.GetSession(ctx, sessionID)
	gt.NoError(t, err)
	gt.V(t, session).NotNil()
	gt.Equal(t, session.ID, sessionID)
	gt.Equal(t, session.UserID, model.UserID("user-1"))
	gt.True(t, session.IsActive)
	gt.A(t, session.Turns).Length(1)
	gt.Equal(t, session.Turns[0].Role, model.RoleUser)
	gt.Equal(t, session.Turns[0].Content, "Which terminals are unprotected?")
}

func TestAppendTurnPreservesOrder(t *testing.T) {
	ctx := context.Background()
	r := newTestSessions(t)

	sessionID := model.NewSessionID()
	contents := []struct {
		role    model.Role
		content string
	}{
		{model.RoleUser, "first question"},
		{model.RoleAssistant, "first answer"},
		{model.RoleUser, "second question"},
		{model.RoleAssistant, "second answer"},
	}
	for _, c := range contents {
		gt.NoError(t, r.AppendTurn(ctx, &model.ConversationTurn{
			SessionID: sessionID,
			UserID:    "user-1",
			Role:      c.role,
			Content:   c.content,
		}))
	}

	session, err := r.GetSession(ctx, sessionID)
	gt.NoError(t, err)
	gt.A(t, session.Turns).Length(4)
	for i, c := range contents {
		gt.Equal(t, session.Turns[i].Role, c.role)
		gt.Equal(t, session.Turns[i].Content, c.content)
	}
}

func TestAppendTurnRejectsInvalidRole(t *testing.T) {
	ctx := context.Background()
	r := newTestSessions(t)

	err := r.AppendTurn(ctx, &model.ConversationTurn{
		SessionID: model.NewSessionID(),
		UserID:    "user-1",
		Role:      "moderator",
		Content:   "hello",
	})
	gt.Error(t, err)
}

func TestGetSessionAbsent(t *testing.T) {
	ctx := context.Background()
	r := newTestSessions(t)

	session, err := r.GetSession(ctx, model.NewSessionID())
	gt.NoError(t, err)
	gt.V(t, session).Nil()
}

func TestEndSession(t *testing.T) {
	ctx := context.Background()
	r := newTestSessions(t)

	sessionID := model.NewSessionID()
	gt.NoError(t, r.AppendTurn(ctx, &model.ConversationTurn{
		SessionID: sessionID,
		UserID:    "user-1",
		Role:      model.RoleUser,
		Content:   "question",
	}))

	gt.NoError(t, r.EndSession(ctx, sessionID))

	session, err := r.GetSession(ctx, sessionID)
	gt.NoError(t, err)
	gt.Equal(t, session.IsActive, false)

	// Ending an already-inactive session is a no-op.
	gt.NoError(t, r.EndSession(ctx, sessionID))
}

func TestEndSessionMissing(t *testing.T) {
	ctx := context.Background()
	r := newTestSessions(t)

	err := r.EndSession(ctx, model.NewSessionID())
	gt.Error(t, err)
	gt.True(t, errors.Is(err, model.ErrSessionNotFound))
}
