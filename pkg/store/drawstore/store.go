// Package drawstore persists draws in the key-value store. Loaded draws go
// through model.NormalizeDraw so the rest of the engine never sees a
// malformed record.
package drawstore

import (
	"context"
	"fmt"
	"strconv"

	"github.com/tonpool/tote/internal/model"
	"github.com/tonpool/tote/pkg/infra"
)

const (
	keyPrefix  = "draw/"
	currentKey = "draw-current"
	seqKey     = "draw-seq"
)

type Store interface {
	// Get returns the draw, or nil if not found.
	Get(ctx context.Context, id int64) (*model.Draw, error)

	// Save persists the draw.
	Save(ctx context.Context, draw *model.Draw) error

	// Current returns the active draw, or nil when none was ever created.
	Current(ctx context.Context) (*model.Draw, error)

	// SetCurrent marks the draw all new tickets attach to.
	SetCurrent(ctx context.Context, id int64) error

	// NextID allocates the next draw id. Callers serialize access.
	NextID(ctx context.Context) (int64, error)
}

type kvStore struct {
	kv infra.KVStore
}

func New(kv infra.KVStore) Store {
	return &kvStore{kv: kv}
}

func drawKey(id int64) string {
	return keyPrefix + strconv.FormatInt(id, 10)
}

func (s *kvStore) Get(ctx context.Context, id int64) (*model.Draw, error) {
	var draw model.Draw
	found, err := s.kv.GetAny(drawKey(id), &draw)
	if err != nil {
		return nil, fmt.Errorf("failed to get draw %d: %w", id, err)
	}
	if !found {
		return nil, nil
	}
	if err := model.NormalizeDraw(&draw); err != nil {
		return nil, fmt.Errorf("draw %d: %w", id, err)
	}
	return &draw, nil
}

func (s *kvStore) Save(ctx context.Context, draw *model.Draw) error {
	if err := model.NormalizeDraw(draw); err != nil {
		return err
	}
	if err := s.kv.SetAny(drawKey(draw.ID), draw); err != nil {
		return fmt.Errorf("failed to save draw %d: %w", draw.ID, err)
	}
	return nil
}

func (s *kvStore) Current(ctx context.Context) (*model.Draw, error) {
	raw, err := s.kv.Get(currentKey)
	if err != nil {
		if err == infra.ErrKeyNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get current draw pointer: %w", err)
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("corrupt current draw pointer %q: %w", raw, err)
	}
	return s.Get(ctx, id)
}

func (s *kvStore) SetCurrent(ctx context.Context, id int64) error {
	if err := s.kv.Set(currentKey, strconv.FormatInt(id, 10)); err != nil {
		return fmt.Errorf("failed to set current draw pointer: %w", err)
	}
	return nil
}

func (s *kvStore) NextID(ctx context.Context) (int64, error) {
	raw, err := s.kv.Get(seqKey)
	if err != nil && err != infra.ErrKeyNotFound {
		return 0, fmt.Errorf("failed to read draw sequence: %w", err)
	}
	var last int64
	if err == nil {
		last, err = strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("corrupt draw sequence %q: %w", raw, err)
		}
	}
	next := last + 1
	if err := s.kv.Set(seqKey, strconv.FormatInt(next, 10)); err != nil {
		return 0, fmt.Errorf("failed to advance draw sequence: %w", err)
	}
	return next, nil
}
