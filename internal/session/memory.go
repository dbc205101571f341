package session

import (
	"context"
	"sync"
	"time"

	"github.com/tonpool/tote/internal/model"
)

// MemoryStore is a process-local Store for tests and single-node setups.
type MemoryStore struct {
	mu  sync.RWMutex
	ttl time.Duration
	m   map[string]entry
}

type entry struct {
	session   Session
	expiresAt time.Time
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{ttl: ttl, m: make(map[string]entry)}
}

func (s *MemoryStore) Get(ctx context.Context, drawID, userID int64) (*Session, error) {
	s.mu.RLock()
	e, ok := s.m[sessionKey(drawID, userID)]
	s.mu.RUnlock()
	if !ok || time.Now().After(e.expiresAt) {
		return nil, ErrNotFound
	}
	out := cloneSession(e.session)
	return &out, nil
}

func (s *MemoryStore) Save(ctx context.Context, sess *Session) error {
	sess.UpdatedAt = time.Now().UTC()
	s.mu.Lock()
	s.m[sessionKey(sess.DrawID, sess.UserID)] = entry{
		session:   cloneSession(*sess),
		expiresAt: time.Now().Add(s.ttl),
	}
	s.mu.Unlock()
	return nil
}

// cloneSession copies the selection slices so callers cannot mutate
// stored state through a returned session.
func cloneSession(s Session) Session {
	out := s
	out.Selections = make([]model.Selection, len(s.Selections))
	for i, sel := range s.Selections {
		out.Selections[i] = append(model.Selection(nil), sel...)
	}
	return out
}

func (s *MemoryStore) Delete(ctx context.Context, drawID, userID int64) error {
	s.mu.Lock()
	delete(s.m, sessionKey(drawID, userID))
	s.mu.Unlock()
	return nil
}
