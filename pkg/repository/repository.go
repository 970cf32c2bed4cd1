// Package repository defines persistence boundaries for sessions, archive
// jobs and long-term session memory, with Redis and SQLite implementations.
package repository

import (
	"context"
	"time"

	"github.com/m-mizutani/cygnet/pkg/model"
)

// SessionRepository persists conversation sessions in a key-value store.
type SessionRepository interface {
	// AppendTurn appends a turn to its session, creating the session on the
	// first turn. Appends to one session are serialized by the backing store
	// so concurrent requests cannot interleave-corrupt ordering.
	AppendTurn(ctx context.Context, turn *model.ConversationTurn) error

	// GetSession returns the session with its full turn sequence, or
	// (nil, nil) when it does not exist or has expired.
	GetSession(ctx context.Context, id model.SessionID) (*model.Session, error)

	// EndSession marks the session inactive. Ending an already-inactive
	// session is a no-op.
	EndSession(ctx context.Context, id model.SessionID) error
}

// ArchiveQueue is the durable job table driving session archival. Its rows
// are the single source of truth for archival progress.
type ArchiveQueue interface {
	// Enqueue inserts a pending job. If a job for the session already exists
	// in any status, the call is a no-op, not an error.
	Enqueue(ctx context.Context, userID model.UserID, sessionID model.SessionID) error

	// ClaimNext atomically transitions the oldest pending job to processing
	// and returns it. Two concurrent callers never claim the same job.
	// Returns (nil, nil) when no job is pending.
	ClaimNext(ctx context.Context) (*model.ArchiveJob, error)

	// Complete transitions processing → done and clears any error message.
	Complete(ctx context.Context, id int64) error

	// Fail transitions processing → error, storing the message.
	Fail(ctx context.Context, id int64, errMsg string) error

	// Requeue resets an error job to pending for another attempt.
	Requeue(ctx context.Context, id int64) error

	// RequeueStale resets processing jobs untouched since the cutoff back to
	// pending, so work lost to a crashed worker can be reclaimed. Returns the
	// number of jobs reset.
	RequeueStale(ctx context.Context, olderThan time.Time) (int, error)

	// Get returns a job by session ID, or (nil, nil) when none exists.
	Get(ctx context.Context, sessionID model.SessionID) (*model.ArchiveJob, error)
}

// MemoryStore persists condensed long-term representations of archived
// sessions. PutMemory is keyed by session ID and overwrites on repeat, which
// keeps crash-recovery re-archival safe.
type MemoryStore interface {
	PutMemory(ctx context.Context, mem *model.SessionMemory) error
	GetMemory(ctx context.Context, sessionID model.SessionID) (*model.SessionMemory, error)
}
