package formula

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/tonpool/tote/internal/model"
	"github.com/tonpool/tote/pkg/fixedpoint"
)

// FixedTableParams configures FIXED_TABLE: a flat prize amount per hit
// level, independent of bank size. The table is a guarantee, not a share of
// the pool, so the formula can promise more than the bank collected. That
// overrun is never hidden: it is reported on the result as Deficit.
type FixedTableParams struct {
	Fixed             map[int]decimal.Decimal `json:"fixed"`
	RolloverUnclaimed bool                    `json:"rollover_unclaimed"`
}

type fixedTable struct {
	p FixedTableParams
}

func (f *fixedTable) Name() Name { return FixedTable }

func (f *fixedTable) Validate() error {
	if len(f.p.Fixed) == 0 {
		return fmt.Errorf("%w: fixed table is empty", ErrInvalidParams)
	}
	for level, amount := range f.p.Fixed {
		if level < 0 {
			return fmt.Errorf("%w: negative hit level %d", ErrInvalidParams, level)
		}
		if amount.LessThanOrEqual(decimal.Zero) {
			return fmt.Errorf("%w: prize %s at level %d must be positive", ErrInvalidParams, amount, level)
		}
	}
	return nil
}

func (f *fixedTable) Calculate(in Input) (*Result, error) {
	res := &Result{
		FormulaName:    FixedTable,
		FormulaVersion: Version,
		Params:         f.auditParams(),
		// Informational only: this formula does not scale by the bank.
		PrizePool:     in.TotalBank,
		MaxHitsInDraw: in.MaxHitsInDraw,
	}

	var levels []int
	for level := range f.p.Fixed {
		if level <= in.MaxHitsInDraw {
			levels = append(levels, level)
		}
	}
	sort.Sort(sort.Reverse(sort.IntSlice(levels)))

	var payouts []model.Payout
	var tableTotal, distributed int64
	for _, level := range levels {
		prizeMinor := fixedpoint.ToMinor(f.p.Fixed[level])
		tableTotal += prizeMinor

		winners := entrantsAt(in.Entrants, level)
		if len(winners) == 0 {
			// Whole fixed amount for this level accrues to leftover.
			continue
		}

		share, _ := splitEqual(prizeMinor, len(winners))
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
	// Conservation holds against the fixed table itself: distributed plus
	// leftover equals the sum of table prizes at reachable levels.
	res.Leftover = fixedpoint.FromMinor(tableTotal - distributed)

	bankMinor := fixedpoint.ToMinor(in.TotalBank)
	if distributed > bankMinor {
		res.Deficit = fixedpoint.FromMinor(distributed - bankMinor)
	} else {
		res.Deficit = decimal.Zero
	}
	return res, nil
}

func (f *fixedTable) auditParams() map[string]any {
	fixed := make(map[string]string, len(f.p.Fixed))
	for level, amount := range f.p.Fixed {
		fixed[strconv.Itoa(level)] = amount.String()
	}
	return map[string]any{
		"fixed":              fixed,
		"rollover_unclaimed": f.p.RolloverUnclaimed,
	}
}
