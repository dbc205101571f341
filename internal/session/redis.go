package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tonpool/tote/pkg/infra"
)

// RedisStore keeps sessions in Redis so drafts survive restarts and are
// shared across instances. TTL is enforced server-side.
type RedisStore struct {
	client infra.RedisClient
	prefix string
	ttl    time.Duration
}

func NewRedisStore(client infra.RedisClient, prefix string, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, prefix: prefix, ttl: ttl}
}

func (r *RedisStore) key(drawID, userID int64) string {
	return r.prefix + "/" + sessionKey(drawID, userID)
}

func (r *RedisStore) Get(ctx context.Context, drawID, userID int64) (*Session, error) {
	raw, err := r.client.Get(r.key(drawID, userID))
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	var s Session
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return nil, fmt.Errorf("corrupt session for user %d: %w", userID, err)
	}
	return &s, nil
}

func (r *RedisStore) Save(ctx context.Context, s *Session) error {
	s.UpdatedAt = time.Now().UTC()
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	if err := r.client.Set(r.key(s.DrawID, s.UserID), data, r.ttl); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

func (r *RedisStore) Delete(ctx context.Context, drawID, userID int64) error {
	if err := r.client.Del(r.key(drawID, userID)); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}
