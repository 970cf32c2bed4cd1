package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/m-mizutani/cygnet/pkg/model"
	"github.com/m-mizutani/goerr/v2"
	"github.com/redis/go-redis/v9"
)

const sessionKeyPrefix = "cygnet:session:"

// RedisSessions implements SessionRepository on Redis. Turns live in a list
// (RPUSH keeps arrival order and Redis serializes concurrent appends),
// session metadata in a hash.
type RedisSessions struct {
	client *redis.Client
}

// NewRedisSessions connects to Redis and verifies the connection.
func NewRedisSessions(ctx context.Context, addr string) (*RedisSessions, error) {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, goerr.Wrap(model.ErrServiceUnavailable, "failed to connect to redis",
			goerr.V("addr", addr), goerr.V("cause", err.Error()))
	}

	return &RedisSessions{client: client}, nil
}

// Close closes the Redis connection.
func (r *RedisSessions) Close() error {
	return r.client.Close()
}

func metaKey(id model.SessionID) string {
	return sessionKeyPrefix + string(id)
}

func turnsKey(id model.SessionID) string {
	return sessionKeyPrefix + string(id) + ":turns"
}

func (r *RedisSessions) AppendTurn(ctx context.Context, turn *model.ConversationTurn) error {
	if err := turn.Role.Validate(); err != nil {
		return err
	}
	if turn.Timestamp.IsZero() {
		turn.Timestamp = time.Now().UTC()
	}

	data, err := json.Marshal(turn)
	if err != nil {
		return goerr.Wrap(err, "failed to marshal turn")
	}

	now := turn.Timestamp.Format(time.RFC3339Nano)
	pipe := r.client.TxPipeline()
	pipe.HSetNX(ctx, metaKey(turn.SessionID), "user_id", string(turn.UserID))
	pipe.HSetNX(ctx, metaKey(turn.SessionID), "created_at", now)
	pipe.HSetNX(ctx, metaKey(turn.SessionID), "is_active", "true")
	pipe.HSet(ctx, metaKey(turn.SessionID), "updated_at", now)
	pipe.RPush(ctx, turnsKey(turn.SessionID), data)

	if _, err := pipe.Exec(ctx); err != nil {
		return goerr.Wrap(err, "failed to append turn", goerr.V("session_id", turn.SessionID))
	}
	return nil
}

func (r *RedisSessions) GetSession(ctx context.Context, id model.SessionID) (*model.Session, error) {
	meta, err := r.client.HGetAll(ctx, metaKey(id)).Result()
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get session metadata", goerr.V("session_id", id))
	}
	if len(meta) == 0 {
		// Absent or expired; the caller decides whether that is an error.
		return nil, nil
	}

	rawTurns, err := r.client.LRange(ctx, turnsKey(id), 0, -1).Result()
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get session turns", goerr.V("session_id", id))
	}

	session := &model.Session{
		ID:       id,
		UserID:   model.UserID(meta["user_id"]),
		IsActive: meta["is_active"] == "true",
	}
	if t, err := time.Parse(time.RFC3339Nano, meta["created_at"]); err == nil {
		session.CreatedAt = t
	}
	if t, err := time.Parse(time.RFC3339Nano, meta["updated_at"]); err == nil {
		session.UpdatedAt = t
	}

	for _, raw := range rawTurns {
		var turn model.ConversationTurn
		if err := json.Unmarshal([]byte(raw), &turn); err != nil {
			return nil, goerr.Wrap(err, "failed to unmarshal turn", goerr.V("session_id", id))
		}
		session.Turns = append(session.Turns, &turn)
	}

	return session, nil
}

func (r *RedisSessions) EndSession(ctx context.Context, id model.SessionID) error {
	exists, err := r.client.Exists(ctx, metaKey(id)).Result()
	if err != nil {
		return goerr.Wrap(err, "failed to check session", goerr.V("session_id", id))
	}
	if exists == 0 {
		return goerr.Wrap(model.ErrSessionNotFound, "cannot end session", goerr.V("session_id", id))
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	if err := r.client.HSet(ctx, metaKey(id), "is_active", "false", "updated_at", now).Err(); err != nil {
		return goerr.Wrap(err, "failed to end session", goerr.V("session_id", id))
	}
	return nil
}
