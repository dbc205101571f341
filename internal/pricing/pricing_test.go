package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/tonpool/tote/internal/model"
)

func sel(outcomes ...model.Outcome) model.Selection {
	return model.Selection(outcomes)
}

func TestCombinationCount(t *testing.T) {
	tests := []struct {
		name       string
		selections []model.Selection
		policy     Policy
		want       int64
	}{
		{
			name:       "single_pick_each",
			selections: []model.Selection{sel(model.Outcome1), sel(model.OutcomeDraw)},
			policy:     PolicyStrict,
			want:       1,
		},
		{
			name:       "double_pick_on_first",
			selections: []model.Selection{sel(model.Outcome1, model.OutcomeDraw), sel(model.OutcomeDraw)},
			policy:     PolicyStrict,
			want:       2,
		},
		{
			name:       "full_cover_triples",
			selections: []model.Selection{sel(model.Outcome1, model.OutcomeDraw, model.Outcome2), sel(model.Outcome2)},
			policy:     PolicyStrict,
			want:       3,
		},
		{
			name:       "empty_selection_strict_zeroes",
			selections: []model.Selection{sel(model.Outcome1), {}},
			policy:     PolicyStrict,
			want:       0,
		},
		{
			name:       "empty_selection_lenient_passes",
			selections: []model.Selection{sel(model.Outcome1), {}},
			policy:     PolicyLenient,
			want:       1,
		},
		{
			name:       "no_selections",
			selections: nil,
			policy:     PolicyLenient,
			want:       0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CombinationCount(tt.selections, tt.policy))
		})
	}
}

// Adding an outcome to any event's selection never decreases the count.
func TestCombinationCount_Monotonic(t *testing.T) {
	base := []model.Selection{
		sel(model.Outcome1),
		sel(model.OutcomeDraw, model.Outcome2),
		sel(model.Outcome2),
	}
	before := CombinationCount(base, PolicyStrict)

	for i := range base {
		grown := make([]model.Selection, len(base))
		copy(grown, base)
		for _, extra := range []model.Outcome{model.Outcome1, model.OutcomeDraw, model.Outcome2} {
			if grown[i].Contains(extra) {
				continue
			}
			widened := append(model.Selection{}, base[i]...)
			grown[i] = append(widened, extra)
			assert.GreaterOrEqual(t, CombinationCount(grown, PolicyStrict), before,
				"widening event %d must not shrink the combination space", i)
		}
	}
}

func TestStake(t *testing.T) {
	base := decimal.RequireFromString("0.1")

	t.Run("stake_is_base_times_combinations", func(t *testing.T) {
		selections := []model.Selection{
			sel(model.Outcome1, model.OutcomeDraw),
			sel(model.Outcome2),
			sel(model.Outcome1, model.OutcomeDraw, model.Outcome2),
		}
		// 2 * 1 * 3 = 6 combinations
		assert.True(t, decimal.RequireFromString("0.6").Equal(Stake(selections, PolicyStrict, base)))
	})

	t.Run("unpriceable_ticket_is_free", func(t *testing.T) {
		selections := []model.Selection{sel(model.Outcome1), {}}
		assert.True(t, Stake(selections, PolicyStrict, base).IsZero())
	})
}
