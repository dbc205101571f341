// Package session holds per-user selection sessions while a ticket is being
// built, keyed by draw and user. Sessions expire: an abandoned picker does
// not pin memory or stale drafts.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tonpool/tote/internal/model"
)

var ErrNotFound = errors.New("session not found")

// Session is a ticket draft: the selections a user has picked so far for
// the current draw.
type Session struct {
	DrawID     int64             `json:"draw_id"`
	UserID     int64             `json:"user_id"`
	Selections []model.Selection `json:"selections"`
	UpdatedAt  time.Time         `json:"updated_at"`
}

// Toggle flips one outcome in the selection for an event. Picking an
// already-picked outcome removes it.
func (s *Session) Toggle(eventIndex int, o model.Outcome) error {
	if eventIndex < 0 || eventIndex >= len(s.Selections) {
		return fmt.Errorf("event index %d out of range", eventIndex)
	}
	if !o.Valid() {
		return fmt.Errorf("outcome %d out of range", o)
	}
	sel := s.Selections[eventIndex]
	for i, v := range sel {
		if v == o {
			s.Selections[eventIndex] = append(sel[:i], sel[i+1:]...)
			return nil
		}
	}
	s.Selections[eventIndex] = append(sel, o)
	return nil
}

// Complete reports whether every event has at least one outcome picked.
func (s *Session) Complete() bool {
	if len(s.Selections) == 0 {
		return false
	}
	for _, sel := range s.Selections {
		if len(sel) == 0 {
			return false
		}
	}
	return true
}

// Store keeps sessions with a TTL.
type Store interface {
	// Get returns the session, or ErrNotFound.
	Get(ctx context.Context, drawID, userID int64) (*Session, error)

	// Save persists the session and refreshes its TTL.
	Save(ctx context.Context, s *Session) error

	// Delete drops the session. Missing sessions are not an error.
	Delete(ctx context.Context, drawID, userID int64) error
}

// NewSession starts an empty draft sized to the draw's slate.
func NewSession(drawID, userID int64, eventCount int) *Session {
	return &Session{
		DrawID:     drawID,
		UserID:     userID,
		Selections: make([]model.Selection, eventCount),
		UpdatedAt:  time.Now().UTC(),
	}
}

func sessionKey(drawID, userID int64) string {
	return fmt.Sprintf("session/%d/%d", drawID, userID)
}
