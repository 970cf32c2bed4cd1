// Package session couples the session lifecycle to the archive queue.
package session

import (
	"context"

	"github.com/m-mizutani/cygnet/pkg/model"
	"github.com/m-mizutani/cygnet/pkg/repository"
	"github.com/m-mizutani/cygnet/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
)

type UseCase struct {
	sessions repository.SessionRepository
	queue    repository.ArchiveQueue
}

func New(sessions repository.SessionRepository, queue repository.ArchiveQueue) *UseCase {
	return &UseCase{sessions: sessions, queue: queue}
}

// End marks the session inactive and enqueues exactly one archive job. The
// enqueue is idempotent, so a duplicate end signal still leaves a single job.
func (u *UseCase) End(ctx context.Context, id model.SessionID) error {
	session, err := u.sessions.GetSession(ctx, id)
	if err != nil {
		return goerr.Wrap(err, "failed to load session", goerr.V("session_id", id))
	}
	if session == nil {
		return goerr.Wrap(model.ErrSessionNotFound, "cannot end session", goerr.V("session_id", id))
	}

	if err := u.sessions.EndSession(ctx, id); err != nil {
		return err
	}

	if err := u.queue.Enqueue(ctx, session.UserID, id); err != nil {
		return goerr.Wrap(err, "failed to enqueue archive job", goerr.V("session_id", id))
	}

	logging.From(ctx).Info("session ended", "session_id", id, "turns", len(session.Turns))
	return nil
}
