package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/m-mizutani/cygnet/pkg/model"
	"github.com/m-mizutani/goerr/v2"
	_ "modernc.org/sqlite"
)

// timeKeyFormat keeps every fractional digit so lexical comparison of the
// stored strings matches chronological order. RFC3339Nano trims trailing
// zeros, which breaks the ORDER BY and staleness cutoffs below.
const timeKeyFormat = "2006-01-02T15:04:05.000000000Z07:00"

func timeKey(t time.Time) string {
	return t.UTC().Format(timeKeyFormat)
}

// SQLiteArchive implements ArchiveQueue and MemoryStore on one SQLite
// database. The archive_jobs layout is a durable contract other tooling may
// read for observability.
type SQLiteArchive struct {
	db *sql.DB
}

// NewSQLiteArchive opens (or creates) the archive database.
func NewSQLiteArchive(path string) (*SQLiteArchive, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open archive database", goerr.V("path", path))
	}

	// SQLite allows a single writer; one connection serializes the claim
	// transactions without busy retries.
	db.SetMaxOpenConns(1)

	s := &SQLiteArchive{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteArchive) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS archive_jobs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id TEXT NOT NULL,
			session_id TEXT NOT NULL UNIQUE,
			status TEXT NOT NULL DEFAULT 'pending'
				CHECK (status IN ('pending', 'processing', 'done', 'error')),
			scheduled_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			error_msg TEXT
		);

		CREATE INDEX IF NOT EXISTS idx_archive_jobs_status ON archive_jobs(status, scheduled_at);

		CREATE TABLE IF NOT EXISTS session_memories (
			session_id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			summary TEXT NOT NULL,
			turn_count INTEGER NOT NULL,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);
	`)
	if err != nil {
		return goerr.Wrap(err, "failed to migrate archive database")
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteArchive) Close() error {
	return s.db.Close()
}

func (s *SQLiteArchive) Enqueue(ctx context.Context, userID model.UserID, sessionID model.SessionID) error {
	now := timeKey(time.Now())
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO archive_jobs (user_id, session_id, status, scheduled_at, updated_at)
		VALUES (?, ?, 'pending', ?, ?)
		ON CONFLICT(session_id) DO NOTHING`,
		string(userID), string(sessionID), now, now)
	if err != nil {
		return goerr.Wrap(err, "failed to enqueue archive job", goerr.V("session_id", sessionID))
	}
	return nil
}

func (s *SQLiteArchive) ClaimNext(ctx context.Context) (*model.ArchiveJob, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to begin claim transaction")
	}

	job, err := scanJob(tx.QueryRowContext(ctx, `
		SELECT id, user_id, session_id, status, scheduled_at, updated_at, error_msg
		FROM archive_jobs
		WHERE status = 'pending'
		ORDER BY scheduled_at ASC, id ASC
		LIMIT 1`))
	if err == sql.ErrNoRows {
		tx.Rollback()
		return nil, nil
	}
	if err != nil {
		tx.Rollback()
		return nil, goerr.Wrap(err, "failed to select next archive job")
	}

	// The conditional update is the serialization point: the claim succeeds
	// only if the row is still pending.
	now := timeKey(time.Now())
	res, err := tx.ExecContext(ctx,
		`UPDATE archive_jobs SET status = 'processing', updated_at = ? WHERE id = ? AND status = 'pending'`,
		now, job.ID)
	if err != nil {
		tx.Rollback()
		return nil, goerr.Wrap(err, "failed to claim archive job", goerr.V("id", job.ID))
	}
	n, err := res.RowsAffected()
	if err != nil {
		tx.Rollback()
		return nil, goerr.Wrap(err, "failed to check claimed rows")
	}
	if n != 1 {
		// Lost the race; the caller treats it like an empty queue and polls again.
		tx.Rollback()
		return nil, nil
	}

	if err := tx.Commit(); err != nil {
		return nil, goerr.Wrap(err, "failed to commit claim")
	}

	job.Status = model.ArchiveProcessing
	return job, nil
}

func (s *SQLiteArchive) Complete(ctx context.Context, id int64) error {
	return s.transition(ctx, id, model.ArchiveProcessing, model.ArchiveDone, nil)
}

func (s *SQLiteArchive) Fail(ctx context.Context, id int64, errMsg string) error {
	return s.transition(ctx, id, model.ArchiveProcessing, model.ArchiveError, &errMsg)
}

func (s *SQLiteArchive) Requeue(ctx context.Context, id int64) error {
	return s.transition(ctx, id, model.ArchiveError, model.ArchivePending, nil)
}

func (s *SQLiteArchive) transition(ctx context.Context, id int64, from, to model.ArchiveStatus, errMsg *string) error {
	now := timeKey(time.Now())

	var msg any
	if errMsg != nil {
		msg = *errMsg
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE archive_jobs SET status = ?, error_msg = ?, updated_at = ? WHERE id = ? AND status = ?`,
		string(to), msg, now, id, string(from))
	if err != nil {
		return goerr.Wrap(err, "failed to update archive job", goerr.V("id", id))
	}

	n, err := res.RowsAffected()
	if err != nil {
		return goerr.Wrap(err, "failed to check updated rows")
	}
	if n != 1 {
		return goerr.New("invalid archive job transition",
			goerr.V("id", id), goerr.V("from", from), goerr.V("to", to))
	}
	return nil
}

func (s *SQLiteArchive) RequeueStale(ctx context.Context, olderThan time.Time) (int, error) {
	now := timeKey(time.Now())
	res, err := s.db.ExecContext(ctx,
		`UPDATE archive_jobs SET status = 'pending', updated_at = ? WHERE status = 'processing' AND updated_at < ?`,
		now, timeKey(olderThan))
	if err != nil {
		return 0, goerr.Wrap(err, "failed to requeue stale archive jobs")
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, goerr.Wrap(err, "failed to check requeued rows")
	}
	return int(n), nil
}

func (s *SQLiteArchive) Get(ctx context.Context, sessionID model.SessionID) (*model.ArchiveJob, error) {
	job, err := scanJob(s.db.QueryRowContext(ctx, `
		SELECT id, user_id, session_id, status, scheduled_at, updated_at, error_msg
		FROM archive_jobs WHERE session_id = ?`, string(sessionID)))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get archive job", goerr.V("session_id", sessionID))
	}
	return job, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*model.ArchiveJob, error) {
	var job model.ArchiveJob
	var userID, sessionID, status, scheduledAt, updatedAt string
	var errMsg sql.NullString

	if err := row.Scan(&job.ID, &userID, &sessionID, &status, &scheduledAt, &updatedAt, &errMsg); err != nil {
		return nil, err
	}

	job.UserID = model.UserID(userID)
	job.SessionID = model.SessionID(sessionID)
	job.Status = model.ArchiveStatus(status)
	job.ErrorMsg = errMsg.String
	if t, err := time.Parse(timeKeyFormat, scheduledAt); err == nil {
		job.ScheduledAt = t
	}
	if t, err := time.Parse(timeKeyFormat, updatedAt); err == nil {
		job.UpdatedAt = t
	}
	return &job, nil
}

func (s *SQLiteArchive) PutMemory(ctx context.Context, mem *model.SessionMemory) error {
	now := timeKey(time.Now())
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO session_memories (session_id, user_id, summary, turn_count, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET
			summary = excluded.summary,
			turn_count = excluded.turn_count,
			updated_at = excluded.updated_at`,
		string(mem.SessionID), string(mem.UserID), mem.Summary, mem.TurnCount, now, now)
	if err != nil {
		return goerr.Wrap(err, "failed to put session memory", goerr.V("session_id", mem.SessionID))
	}
	return nil
}

func (s *SQLiteArchive) GetMemory(ctx context.Context, sessionID model.SessionID) (*model.SessionMemory, error) {
	var mem model.SessionMemory
	var sid, uid, createdAt, updatedAt string

	err := s.db.QueryRowContext(ctx, `
		SELECT session_id, user_id, summary, turn_count, created_at, updated_at
		FROM session_memories WHERE session_id = ?`, string(sessionID)).
		Scan(&sid, &uid, &mem.Summary, &mem.TurnCount, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get session memory", goerr.V("session_id", sessionID))
	}

	mem.SessionID = model.SessionID(sid)
	mem.UserID = model.UserID(uid)
	if t, err := time.Parse(timeKeyFormat, createdAt); err == nil {
		mem.CreatedAt = t
	}
	if t, err := time.Parse(timeKeyFormat, updatedAt); err == nil {
		mem.UpdatedAt = t
	}
	return &mem, nil
}
