// Package formula implements the prize distribution strategies. Each formula
// is a pure function from aggregated per-user hit counts and a total bank to
// a list of payouts plus the undistributed leftover. All splitting happens in
// integer minor units so identical input always yields identical output.
package formula

import (
	"errors"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/tonpool/tote/internal/model"
)

// Version is recorded on every settlement for audit.
const Version = "1.0.0"

type Name string

const (
	MaxHitsEqualShare Name = "MAX_HITS_EQUAL_SHARE"
	TieredWeights     Name = "TIERED_WEIGHTS"
	FixedTable        Name = "FIXED_TABLE"
)

var (
	ErrUnknownFormula = errors.New("unknown payout formula")
	ErrInvalidParams  = errors.New("invalid formula params")
)

// Entrant is one user's best result in the draw.
type Entrant struct {
	UserID int64
	Wallet string
	Hits   int
}

// Input is the common contract consumed by every formula.
type Input struct {
	DrawID        int64
	TotalBank     decimal.Decimal
	MaxHitsInDraw int
	Entrants      []Entrant
}

// Result is the outcome of one formula run. Payout amounts are converted
// back to decimal only here, at the output boundary.
type Result struct {
	FormulaName    Name
	FormulaVersion string
	Params         map[string]any
	PrizePool      decimal.Decimal
	Payouts        []model.Payout
	Leftover       decimal.Decimal
	// Deficit is how much the promised prizes exceed the bank. Only the
	// fixed-table formula can run a deficit; the pool formulas never do.
	Deficit       decimal.Decimal
	MaxHitsInDraw int
}

// Formula is one distribution strategy. Implementations are stateless and
// safe for concurrent use.
type Formula interface {
	Name() Name
	Validate() error
	Calculate(in Input) (*Result, error)
}

// Params bundles the per-strategy parameter blocks as they appear in
// configuration. Only the block matching the selected formula is required.
type Params struct {
	EqualShare *EqualShareParams `json:"equal_share,omitempty"`
	Tiered     *TieredParams     `json:"tiered_weights,omitempty"`
	Fixed      *FixedTableParams `json:"fixed_table,omitempty"`
}

// New selects a strategy by name and validates its parameters. An
// unrecognized name is a configuration error, never a silent fallback.
func New(name Name, params Params) (Formula, error) {
	var f Formula
	switch name {
	case MaxHitsEqualShare:
		if params.EqualShare == nil {
			return nil, fmt.Errorf("%w: missing equal_share block", ErrInvalidParams)
		}
		f = &equalShare{p: *params.EqualShare}
	case TieredWeights:
		if params.Tiered == nil {
			return nil, fmt.Errorf("%w: missing tiered_weights block", ErrInvalidParams)
		}
		f = &tiered{p: *params.Tiered}
	case FixedTable:
		if params.Fixed == nil {
			return nil, fmt.Errorf("%w: missing fixed_table block", ErrInvalidParams)
		}
		f = &fixedTable{p: *params.Fixed}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormula, name)
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return f, nil
}

// splitEqual divides a minor-unit pool among n winners with floor division.
// The remainder is always >= 0 and strictly less than n.
func splitEqual(poolMinor int64, n int) (share, remainder int64) {
	if n <= 0 {
		return 0, poolMinor
	}
	share = poolMinor / int64(n)
	remainder = poolMinor - share*int64(n)
	return share, remainder
}

// entrantsAt returns the entrants with exactly the given hit count, ordered
// by user id so output never depends on input ordering.
func entrantsAt(entrants []Entrant, hits int) []Entrant {
	var out []Entrant
	for _, e := range entrants {
		if e.Hits == hits {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out
}

func sortPayouts(payouts []model.Payout) {
	sort.Slice(payouts, func(i, j int) bool {
		if payouts[i].Hits != payouts[j].Hits {
			return payouts[i].Hits > payouts[j].Hits
		}
		return payouts[i].UserID < payouts[j].UserID
	})
}
