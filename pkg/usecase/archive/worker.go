// Package archive drains the archive queue into long-term session memory.
package archive

import (
	"context"
	"fmt"
	"time"

	"github.com/m-mizutani/cygnet/pkg/model"
	"github.com/m-mizutani/cygnet/pkg/repository"
	"github.com/m-mizutani/cygnet/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
	"golang.org/x/sync/errgroup"
)

// SessionSummarizer condenses a session transcript into memory text.
type SessionSummarizer interface {
	Summarize(ctx context.Context, session *model.Session) (string, error)
}

// Worker claims archive jobs one at a time and turns each session into a
// long-term memory record. Failures are recorded on the job, never lost, and
// never propagate to the interactive path.
type Worker struct {
	queue      repository.ArchiveQueue
	sessions   repository.SessionRepository
	memories   repository.MemoryStore
	summarizer SessionSummarizer

	poll       time.Duration
	staleAfter time.Duration
}

// WorkerOption is a functional option for Worker
type WorkerOption func(*Worker)

// WithPollInterval sets the idle polling interval
func WithPollInterval(d time.Duration) WorkerOption {
	return func(w *Worker) {
		if d > 0 {
			w.poll = d
		}
	}
}

// WithStaleAfter sets how long a processing job may sit untouched before the
// stale sweep hands it to another worker
func WithStaleAfter(d time.Duration) WorkerOption {
	return func(w *Worker) {
		if d > 0 {
			w.staleAfter = d
		}
	}
}

// NewWorker creates an archive worker.
func NewWorker(queue repository.ArchiveQueue, sessions repository.SessionRepository, memories repository.MemoryStore, summarizer SessionSummarizer, opts ...WorkerOption) *Worker {
	w := &Worker{
		queue:      queue,
		sessions:   sessions,
		memories:   memories,
		summarizer: summarizer,
		poll:       2 * time.Second,
		staleAfter: 10 * time.Minute,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run drains the queue until ctx is cancelled, sweeping stale processing jobs
// periodically.
func (w *Worker) Run(ctx context.Context) {
	logger := logging.From(ctx)
	sweep := time.NewTicker(w.staleAfter / 2)
	defer sweep.Stop()

	for {
		if ctx.Err() != nil {
			return
		}

		// Checked every iteration, non-blocking: a queue deep enough to keep
		// this worker busy must not starve the stale sweep.
		select {
		case <-sweep.C:
			w.sweepStale(ctx)
		default:
		}

		processed, err := w.RunOnce(ctx)
		if err != nil {
			logger.Error("archive worker iteration failed", "error", err)
		}
		if processed {
			continue
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(w.poll):
		}
	}
}

func (w *Worker) sweepStale(ctx context.Context) {
	logger := logging.From(ctx)

	n, err := w.queue.RequeueStale(ctx, time.Now().Add(-w.staleAfter))
	if err != nil {
		logger.Error("failed to requeue stale archive jobs", "error", err)
	} else if n > 0 {
		logger.Warn("requeued stale archive jobs", "count", n)
	}
}

// RunOnce claims and processes a single archive job. Returns true if a job
// was claimed, regardless of success.
func (w *Worker) RunOnce(ctx context.Context) (bool, error) {
	logger := logging.From(ctx)

	job, err := w.queue.ClaimNext(ctx)
	if err != nil {
		return false, goerr.Wrap(err, "failed to claim archive job")
	}
	if job == nil {
		return false, nil
	}

	if err := w.processJob(ctx, job); err != nil {
		logger.Warn("archive job failed", "job_id", job.ID, "session_id", job.SessionID, "error", err)
		if failErr := w.queue.Fail(ctx, job.ID, err.Error()); failErr != nil {
			return true, goerr.Wrap(failErr, "failed to mark archive job as failed", goerr.V("job_id", job.ID))
		}
		return true, nil
	}

	if err := w.queue.Complete(ctx, job.ID); err != nil {
		return true, goerr.Wrap(err, "failed to complete archive job", goerr.V("job_id", job.ID))
	}

	logger.Info("session archived", "job_id", job.ID, "session_id", job.SessionID)
	return true, nil
}

func (w *Worker) processJob(ctx context.Context, job *model.ArchiveJob) error {
	session, err := w.sessions.GetSession(ctx, job.SessionID)
	if err != nil {
		return goerr.Wrap(err, "failed to load session")
	}
	if session == nil {
		return fmt.Errorf("session %s is absent or expired from the session store", job.SessionID)
	}

	summary, err := w.summarizer.Summarize(ctx, session)
	if err != nil {
		return goerr.Wrap(err, "failed to summarize session")
	}

	// Keyed by session_id: a crash between this write and Complete means a
	// reclaiming worker repeats it as an overwrite, not a duplicate.
	if err := w.memories.PutMemory(ctx, &model.SessionMemory{
		SessionID: job.SessionID,
		UserID:    job.UserID,
		Summary:   summary,
		TurnCount: len(session.Turns),
	}); err != nil {
		return goerr.Wrap(err, "failed to persist session memory")
	}

	return nil
}

// RunPool runs n workers sharing the same queue until ctx is cancelled.
func RunPool(ctx context.Context, w *Worker, n int) error {
	if n <= 0 {
		n = 1
	}

	g, gCtx := errgroup.WithContext(ctx)
	for range n {
		g.Go(func() error {
			w.Run(gCtx)
			return nil
		})
	}
	return g.Wait()
}
