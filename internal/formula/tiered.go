package formula

import (
	"fmt"
	"math/big"
	"sort"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/tonpool/tote/internal/model"
	"github.com/tonpool/tote/pkg/fixedpoint"
)

// TieredParams configures TIERED_WEIGHTS: the prize pool is carved into
// per-hit-level sub-pools proportional to the configured weights. A level
// with weight but no winners keeps its sub-pool out of circulation: it goes
// to leftover, never gets redistributed to the other levels.
type TieredParams struct {
	PrizePoolPct      decimal.Decimal `json:"prize_pool_pct"`
	Weights           map[int]int64   `json:"weights"`
	MinHits           int             `json:"min_hits"`
	RolloverUnclaimed bool            `json:"rollover_unclaimed"`
}

// maxWeight bounds configured weights so weight sums stay far from the
// int64 range even for very large banks.
const maxWeight = 1_000_000

type tiered struct {
	p TieredParams
}

func (f *tiered) Name() Name { return TieredWeights }

func (f *tiered) Validate() error {
	if f.p.PrizePoolPct.LessThanOrEqual(decimal.Zero) || f.p.PrizePoolPct.GreaterThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("%w: prize_pool_pct %s not in (0, 1]", ErrInvalidParams, f.p.PrizePoolPct)
	}
	if len(f.p.Weights) == 0 {
		return fmt.Errorf("%w: weights map is empty", ErrInvalidParams)
	}
	for level, w := range f.p.Weights {
		if level < 0 {
			return fmt.Errorf("%w: negative hit level %d", ErrInvalidParams, level)
		}
		if w <= 0 {
			return fmt.Errorf("%w: weight %d at level %d must be positive", ErrInvalidParams, w, level)
		}
		if w > maxWeight {
			return fmt.Errorf("%w: weight %d at level %d exceeds %d", ErrInvalidParams, w, level, int64(maxWeight))
		}
	}
	if f.p.MinHits < 0 {
		return fmt.Errorf("%w: min_hits %d is negative", ErrInvalidParams, f.p.MinHits)
	}
	return nil
}

// minHits falls back to the lowest weighted level when the parameter is
// absent, mirroring how operators configure partial tables. The fallback
// changes nothing observable: levels below the lowest weight carry no
// weight and are never eligible, so an explicit min_hits equal to that
// level produces the same payouts.
func (f *tiered) minHits() int {
	if f.p.MinHits > 0 {
		return f.p.MinHits
	}
	min := -1
	for level := range f.p.Weights {
		if min == -1 || level < min {
			min = level
		}
	}
	return min
}

func (f *tiered) Calculate(in Input) (*Result, error) {
	poolMinor := fixedpoint.Pct(in.TotalBank, f.p.PrizePoolPct)

	res := &Result{
		FormulaName:    TieredWeights,
		FormulaVersion: Version,
		Params:         f.auditParams(),
		PrizePool:      fixedpoint.FromMinor(poolMinor),
		MaxHitsInDraw:  in.MaxHitsInDraw,
		Deficit:        decimal.Zero,
	}

	// Eligible levels: present in weights, within [minHits, maxHitsInDraw].
	minHits := f.minHits()
	var levels []int
	var totalWeight int64
	for level, w := range f.p.Weights {
		if level < minHits || level > in.MaxHitsInDraw {
			continue
		}
		levels = append(levels, level)
		totalWeight += w
	}
	sort.Sort(sort.Reverse(sort.IntSlice(levels)))

	if totalWeight == 0 {
		res.Leftover = fixedpoint.FromMinor(poolMinor)
		return res, nil
	}

	var payouts []model.Payout
	var distributed int64
	for _, level := range levels {
		subPool := splitWeighted(poolMinor, f.p.Weights[level], totalWeight)

		winners := entrantsAt(in.Entrants, level)
		if len(winners) == 0 {
			// Sub-pool stays in leftover via the conservation below.
			continue
		}

		share, _ := splitEqual(subPool, len(winners))
		for _, w := range winners {
			payouts = append(payouts, model.Payout{
				UserID: w.UserID,
				Wallet: w.Wallet,
				Hits:   level,
				Amount: fixedpoint.FromMinor(share),
			})
		}
		distributed += share * int64(len(winners))
	}

	sortPayouts(payouts)
	res.Payouts = payouts
	// Leftover absorbs zero-winner sub-pools and every rounding remainder,
	// so payouts + leftover always equals the pool exactly.
	res.Leftover = fixedpoint.FromMinor(poolMinor - distributed)
	return res, nil
}

// splitWeighted computes poolMinor*weight/totalWeight with the product in
// big.Int: the intermediate can exceed int64 for large banks, the quotient
// never does.
func splitWeighted(poolMinor, weight, totalWeight int64) int64 {
	var sub big.Int
	sub.Mul(big.NewInt(poolMinor), big.NewInt(weight))
	sub.Div(&sub, big.NewInt(totalWeight))
	return sub.Int64()
}

func (f *tiered) auditParams() map[string]any {
	weights := make(map[string]int64, len(f.p.Weights))
	for level, w := range f.p.Weights {
		weights[strconv.Itoa(level)] = w
	}
	return map[string]any{
		"prize_pool_pct":     f.p.PrizePoolPct.String(),
		"weights":            weights,
		"min_hits":           f.minHits(),
		"rollover_unclaimed": f.p.RolloverUnclaimed,
	}
}
