package session_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/m-mizutani/cygnet/pkg/model"
	"github.com/m-mizutani/cygnet/pkg/usecase/session"
	"github.com/m-mizutani/gt"
)

// mockSessions is a mock implementation of repository.SessionRepository
type mockSessions struct {
	session *model.Session
	ended   []model.SessionID
}

func (m *mockSessions) AppendTurn(ctx context.Context, turn *model.ConversationTurn) error {
	return errors.New("not implemented")
}

func (m *mockSessions) GetSession(ctx context.Context, id model.SessionID) (*model.Session, error) {
	if m.session != nil && m.session.ID == id {
		return m.session, nil
	}
	return nil, nil
}

func (m *mockSessions) EndSession(ctx context.Context, id model.SessionID) error {
	m.ended = append(m.ended, id)
	return nil
}

// mockQueue is a mock implementation of repository.ArchiveQueue
type mockQueue struct {
	enqueued []model.SessionID
	users    []model.UserID
}

func (m *mockQueue) Enqueue(ctx context.Context, userID model.UserID, sessionID model.SessionID) error {
	// Idempotent like the real queue: one row per session.
	for _, id := range m.enqueued {
		if id == sessionID {
			return nil
		}
	}
	m.enqueued = append(m.enqueued, sessionID)
	m.users = append(m.users, userID)
	return nil
}

func (m *mockQueue) ClaimNext(ctx context.Context) (*model.ArchiveJob, error) {
	return nil, errors.New("not implemented")
}

func (m *mockQueue) Complete(ctx context.Context, id int64) error {
	return errors.New("not implemented")
}

func (m *mockQueue) Fail(ctx context.Context, id int64, errMsg string) error {
	return errors.New("not implemented")
}

func (m *mockQueue) Requeue(ctx context.Context, id int64) error {
	return errors.New("not implemented")
}

func (m *mockQueue) RequeueStale(ctx context.Context, olderThan time.Time) (int, error) {
	return 0, errors.New("not implemented")
}

func (m *mockQueue) Get(ctx context.Context, sessionID model.SessionID) (*model.ArchiveJob, error) {
	return nil, errors.New("not implemented")
}

func TestEndSchedulesArchival(t *testing.T) {
	sessionID := model.NewSessionID()
	sessions := &mockSessions{
		session: &model.Session{ID: sessionID, UserID: "user-1", IsActive: true},
	}
	queue := &mockQueue{}

	uc := session.New(sessions, queue)
	gt.NoError(t, uc.End(context.Background(), sessionID))

	gt.A(t, sessions.ended).Length(1)
	gt.A(t, queue.enqueued).Length(1)
	gt.Equal(t, queue.enqueued[0], sessionID)
	gt.Equal(t, queue.users[0], model.UserID("user-1"))
}

func TestEndTwiceLeavesOneJob(t *testing.T) {
	sessionID := model.NewSessionID()
	sessions := &mockSessions{
		session: &model.Session{ID: sessionID, UserID: "user-1", IsActive: true},
	}
	queue := &mockQueue{}

	uc := session.New(sessions, queue)
	gt.NoError(t, uc.End(context.Background(), sessionID))
	gt.NoError(t, uc.End(context.Background(), sessionID))

	gt.A(t, queue.enqueued).Length(1)
}

func TestEndMissingSession(t *testing.T) {
	sessions := &mockSessions{}
	queue := &mockQueue{}

	uc := session.New(sessions, queue)
	err := uc.End(context.Background(), model.NewSessionID())
	gt.Error(t, err)
	gt.True(t, errors.Is(err, model.ErrSessionNotFound))
	gt.A(t, queue.enqueued).Length(0)
}
