package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeDraw(t *testing.T) {
	res := Outcome2

	tests := []struct {
		name    string
		draw    *Draw
		wantErr bool
	}{
		{
			name: "well formed open draw",
			draw: &Draw{ID: 1, Status: StatusOpen, Events: []Event{{Index: 0}, {Index: 1}}},
		},
		{
			name:    "nil draw",
			draw:    nil,
			wantErr: true,
		},
		{
			name:    "unknown status",
			draw:    &Draw{ID: 1, Status: "paused"},
			wantErr: true,
		},
		{
			name:    "shuffled event indexes",
			draw:    &Draw{ID: 1, Status: StatusSetup, Events: []Event{{Index: 1}, {Index: 0}}},
			wantErr: true,
		},
		{
			name: "result out of range",
			draw: func() *Draw {
				bad := Outcome(5)
				return &Draw{ID: 1, Status: StatusClosed, Events: []Event{{Index: 0, Result: &bad}}}
			}(),
			wantErr: true,
		},
		{
			name:    "settled without settlement record",
			draw:    &Draw{ID: 1, Status: StatusSettled},
			wantErr: true,
		},
		{
			name:    "settlement record on open draw",
			draw:    &Draw{ID: 1, Status: StatusOpen, Settlement: &Settlement{}},
			wantErr: true,
		},
		{
			name: "valid result passes",
			draw: &Draw{ID: 1, Status: StatusClosed, Events: []Event{{Index: 0, Result: &res}}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NormalizeDraw(tt.draw)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidDraw)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNormalizeDraw_RepairsNilEvents(t *testing.T) {
	d := &Draw{ID: 1, Status: StatusSetup}
	require.NoError(t, NormalizeDraw(d))
	assert.NotNil(t, d.Events)
}

func TestNormalizeTicket(t *testing.T) {
	ticket := func() *Ticket {
		return &Ticket{
			ID:         "t-1",
			Selections: []Selection{{Outcome1}, {OutcomeDraw, Outcome2}},
		}
	}

	t.Run("valid", func(t *testing.T) {
		assert.NoError(t, NormalizeTicket(ticket(), 2))
	})

	t.Run("nil ticket", func(t *testing.T) {
		assert.Error(t, NormalizeTicket(nil, 2))
	})

	t.Run("empty id", func(t *testing.T) {
		tk := ticket()
		tk.ID = ""
		assert.Error(t, NormalizeTicket(tk, 2))
	})

	t.Run("selection count mismatch", func(t *testing.T) {
		assert.Error(t, NormalizeTicket(ticket(), 3))
	})

	t.Run("invalid outcome", func(t *testing.T) {
		tk := ticket()
		tk.Selections[0] = Selection{Outcome(7)}
		assert.Error(t, NormalizeTicket(tk, 2))
	})

	t.Run("duplicates collapsed", func(t *testing.T) {
		tk := ticket()
		tk.Selections[1] = Selection{Outcome2, Outcome2, OutcomeDraw}
		require.NoError(t, NormalizeTicket(tk, 2))
		assert.Equal(t, Selection{Outcome2, OutcomeDraw}, tk.Selections[1])
	})
}
