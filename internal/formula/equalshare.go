package formula

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/tonpool/tote/internal/model"
	"github.com/tonpool/tote/pkg/fixedpoint"
)

// EqualShareParams configures MAX_HITS_EQUAL_SHARE: the prize pool is a
// percentage of the bank, split equally among everyone at the draw's maximum
// hit count. With no winners the whole pool becomes leftover; whether the
// caller rolls it into the next draw is its own policy.
type EqualShareParams struct {
	PrizePoolPct        decimal.Decimal `json:"prize_pool_pct"`
	RolloverIfNoWinners bool            `json:"rollover_if_no_winners"`
}

type equalShare struct {
	p EqualShareParams
}

func (f *equalShare) Name() Name { return MaxHitsEqualShare }

func (f *equalShare) Validate() error {
	if f.p.PrizePoolPct.LessThanOrEqual(decimal.Zero) || f.p.PrizePoolPct.GreaterThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("%w: prize_pool_pct %s not in (0, 1]", ErrInvalidParams, f.p.PrizePoolPct)
	}
	return nil
}

func (f *equalShare) Calculate(in Input) (*Result, error) {
	poolMinor := fixedpoint.Pct(in.TotalBank, f.p.PrizePoolPct)
	winners := entrantsAt(in.Entrants, in.MaxHitsInDraw)

	res := &Result{
		FormulaName:    MaxHitsEqualShare,
		FormulaVersion: Version,
		Params:         f.auditParams(),
		PrizePool:      fixedpoint.FromMinor(poolMinor),
		MaxHitsInDraw:  in.MaxHitsInDraw,
		Deficit:        decimal.Zero,
	}

	if len(winners) == 0 {
		res.Leftover = fixedpoint.FromMinor(poolMinor)
		return res, nil
	}

	share, remainder := splitEqual(poolMinor, len(winners))
	payouts := make([]model.Payout, 0, len(winners))
	for _, w := range winners {
		payouts = append(payouts, model.Payout{
			UserID: w.UserID,
			Wallet: w.Wallet,
			Hits:   w.Hits,
			Amount: fixedpoint.FromMinor(share),
		})
	}

	res.Payouts = payouts
	res.Leftover = fixedpoint.FromMinor(remainder)
	return res, nil
}

func (f *equalShare) auditParams() map[string]any {
	return map[string]any{
		"prize_pool_pct":         f.p.PrizePoolPct.String(),
		"rollover_if_no_winners": f.p.RolloverIfNoWinners,
	}
}
