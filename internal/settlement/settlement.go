// Package settlement closes out a draw: it validates preconditions, scores
// every paid ticket, aggregates the bank, runs the configured payout formula
// and writes the settlement record onto the draw in one logical step.
package settlement

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tonpool/tote/internal/formula"
	"github.com/tonpool/tote/internal/model"
	"github.com/tonpool/tote/internal/scoring"
	"github.com/tonpool/tote/pkg/common/logger"
)

var (
	ErrAlreadySettled = errors.New("draw already settled")
	ErrNotClosed      = errors.New("draw is not closed")
)

// IncompleteResultsError blocks settlement while any non-void event lacks a
// result. Missing holds the offending event indices so the caller can name
// them to the operator.
type IncompleteResultsError struct {
	Missing []int
}

func (e *IncompleteResultsError) Error() string {
	return fmt.Sprintf("settlement blocked: %d events without result %v", len(e.Missing), e.Missing)
}

// InvalidSelectionError marks a paid ticket that cannot be scored.
type InvalidSelectionError struct {
	TicketID string
	Reason   string
}

func (e *InvalidSelectionError) Error() string {
	return fmt.Sprintf("ticket %s: %s", e.TicketID, e.Reason)
}

// Orchestrator runs the settlement of a single draw. It owns the mutation of
// Draw.Status and Draw.Settlement; everything else it touches is read-only.
// Callers must guarantee at-most-once invocation per draw.
type Orchestrator struct {
	formula  formula.Formula
	currency string
}

func New(f formula.Formula, settlementCurrency string) *Orchestrator {
	return &Orchestrator{formula: f, currency: settlementCurrency}
}

// Settle validates all preconditions, computes the payouts and transitions
// the draw to settled. If any check fails the draw is left untouched. A
// second invocation on a settled draw fails with ErrAlreadySettled rather
// than recomputing, so payouts can never be issued twice.
func (o *Orchestrator) Settle(draw *model.Draw, tickets []model.Ticket) (*model.Settlement, error) {
	if draw.Status == model.StatusSettled {
		return nil, fmt.Errorf("draw %d: %w", draw.ID, ErrAlreadySettled)
	}
	if draw.Status != model.StatusClosed {
		return nil, fmt.Errorf("draw %d in status %q: %w", draw.ID, draw.Status, ErrNotClosed)
	}

	if missing := scoring.MissingResults(draw.Events); len(missing) > 0 {
		return nil, &IncompleteResultsError{Missing: missing}
	}

	paid := make([]model.Ticket, 0, len(tickets))
	for _, t := range tickets {
		if !t.Paid {
			continue
		}
		if err := validateForSettlement(&t, len(draw.Events)); err != nil {
			return nil, err
		}
		paid = append(paid, t)
	}

	maxPossible := scoring.MaxPossibleHits(draw.Events)

	// A user with several tickets is scored by their best one, not the sum.
	best := make(map[int64]formula.Entrant)
	for _, t := range paid {
		hits := scoring.Hits(draw.Events, t.Selections)
		e, ok := best[t.UserID]
		if !ok || hits > e.Hits {
			best[t.UserID] = formula.Entrant{UserID: t.UserID, Wallet: t.Wallet, Hits: hits}
		}
	}
	entrants := make([]formula.Entrant, 0, len(best))
	for _, e := range best {
		entrants = append(entrants, e)
	}

	totalBank := draw.CarriedBank
	for _, t := range paid {
		if t.Currency == o.currency {
			totalBank = totalBank.Add(t.Stake)
		}
	}

	result, err := o.formula.Calculate(formula.Input{
		DrawID:        draw.ID,
		TotalBank:     totalBank,
		MaxHitsInDraw: maxPossible,
		Entrants:      entrants,
	})
	if err != nil {
		return nil, fmt.Errorf("draw %d: formula %s: %w", draw.ID, o.formula.Name(), err)
	}

	if result.Deficit.IsPositive() {
		logger.Warn("Fixed prizes exceed collected bank",
			"draw", draw.ID, "deficit", result.Deficit, "bank", totalBank)
	}

	s := &model.Settlement{
		SettledAt:      time.Now().UTC(),
		FormulaName:    string(result.FormulaName),
		FormulaVersion: result.FormulaVersion,
		FormulaParams:  result.Params,
		TotalBank:      totalBank,
		PrizePool:      result.PrizePool,
		Payouts:        result.Payouts,
		Leftover:       result.Leftover,
		Deficit:        result.Deficit,
		MaxHits:        result.MaxHitsInDraw,
		TotalPlayed:    maxPossible,
	}

	draw.Settlement = s
	if err := draw.Advance(model.StatusSettled); err != nil {
		draw.Settlement = nil
		return nil, err
	}
	return s, nil
}

// validateForSettlement applies the strict pricing policy: tickets with a
// wrong selection count or an empty selection must never be scored, whatever
// policy priced them at purchase time.
func validateForSettlement(t *model.Ticket, eventCount int) error {
	if len(t.Selections) != eventCount {
		return &InvalidSelectionError{
			TicketID: t.ID,
			Reason:   fmt.Sprintf("%d selections for %d events", len(t.Selections), eventCount),
		}
	}
	for i, sel := range t.Selections {
		if len(sel) == 0 {
			return &InvalidSelectionError{
				TicketID: t.ID,
				Reason:   fmt.Sprintf("empty selection at event %d", i),
			}
		}
	}
	return nil
}

// Rollover returns the bank to carry into the next draw according to the
// leftover policy baked into the settlement record, or zero when the
// formula's rollover flag was off.
func Rollover(s *model.Settlement, rollover bool) decimal.Decimal {
	if s == nil || !rollover {
		return decimal.Zero
	}
	return s.Leftover
}
