// Package pricing computes the combination count and stake of a ticket.
//
// A ticket covers the cartesian product of its per-event selections, so the
// stake scales with the product of selection sizes. How an empty selection
// prices is a policy choice: the strict policy refuses to price incomplete
// tickets (zero combinations), the lenient policy treats the event as a
// single-combination pass-through for intermediate UI states. Settlement
// always runs strict.
package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/tonpool/tote/internal/model"
)

type Policy string

const (
	PolicyStrict  Policy = "strict"
	PolicyLenient Policy = "lenient"
)

func (p Policy) Valid() bool {
	return p == PolicyStrict || p == PolicyLenient
}

// CombinationCount returns the number of outcome combinations a selection
// set covers. Under the strict policy any empty selection makes the ticket
// unpriceable and the count is zero.
func CombinationCount(selections []model.Selection, policy Policy) int64 {
	if len(selections) == 0 {
		return 0
	}
	var count int64 = 1
	for _, sel := range selections {
		n := int64(len(sel))
		if n == 0 {
			if policy == PolicyStrict {
				return 0
			}
			n = 1
		}
		count *= n
	}
	return count
}

// Stake prices a selection set: combinations times the base stake per
// combination. A zero combination count prices to zero.
func Stake(selections []model.Selection, policy Policy, baseStake decimal.Decimal) decimal.Decimal {
	combos := CombinationCount(selections, policy)
	return baseStake.Mul(decimal.NewFromInt(combos))
}
