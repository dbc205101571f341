// Package model defines the betting round data model: draws, events, tickets
// and the settlement record produced when a draw closes out.
package model

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Outcome is one of the three possible results of an event.
type Outcome int

const (
	Outcome1    Outcome = 0 // home win
	OutcomeDraw Outcome = 1
	Outcome2    Outcome = 2 // away win
)

func (o Outcome) Valid() bool {
	return o >= Outcome1 && o <= Outcome2
}

func (o Outcome) String() string {
	switch o {
	case Outcome1:
		return "1"
	case OutcomeDraw:
		return "X"
	case Outcome2:
		return "2"
	}
	return "?"
}

// DrawStatus is the lifecycle state of a draw. Transitions only move
// forward: setup -> open -> closed -> settled.
type DrawStatus string

const (
	StatusSetup   DrawStatus = "setup"
	StatusOpen    DrawStatus = "open"
	StatusClosed  DrawStatus = "closed"
	StatusSettled DrawStatus = "settled"
)

var nextStatus = map[DrawStatus]DrawStatus{
	StatusSetup:  StatusOpen,
	StatusOpen:   StatusClosed,
	StatusClosed: StatusSettled,
}

// CanAdvanceTo reports whether s may transition directly to target.
func (s DrawStatus) CanAdvanceTo(target DrawStatus) bool {
	return nextStatus[s] == target
}

// Event is one proposition in a draw's slate.
type Event struct {
	Index     int      `json:"index"`
	Title     string   `json:"title"`
	Result    *Outcome `json:"result,omitempty"`
	IsVoid    bool     `json:"is_void"`
	SourceURL string   `json:"source_url,omitempty"`
}

// Resolved reports whether the event counts toward scoring: it has a result
// and is not void. A void event is excluded even if a result is still set.
func (e Event) Resolved() bool {
	return !e.IsVoid && e.Result != nil
}

// Selection is the outcome subset a ticket picked for one event. Order is
// irrelevant and values are distinct by construction.
type Selection []Outcome

func (s Selection) Contains(o Outcome) bool {
	for _, v := range s {
		if v == o {
			return true
		}
	}
	return false
}

// Ticket is a user's bet for one draw. Immutable after creation except for
// the Paid flag flipping once payment is confirmed.
type Ticket struct {
	ID         string          `json:"id"`
	DrawID     int64           `json:"draw_id"`
	UserID     int64           `json:"user_id"`
	Username   string          `json:"username,omitempty"`
	Wallet     string          `json:"wallet,omitempty"`
	Selections []Selection     `json:"selections"`
	Stake      decimal.Decimal `json:"stake"`
	Currency   string          `json:"currency"`
	Paid       bool            `json:"paid"`
	InvoiceID  string          `json:"invoice_id,omitempty"`
	PaymentTx  string          `json:"payment_tx,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}

// Draw is one betting round over a fixed slate of events.
type Draw struct {
	ID          int64           `json:"id"`
	Status      DrawStatus      `json:"status"`
	Events      []Event         `json:"events"`
	CarriedBank decimal.Decimal `json:"carried_bank"` // leftover rolled over from the previous draw
	Settlement  *Settlement     `json:"settlement,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

// ErrInvalidTransition rejects lifecycle moves that skip a state or step
// backward.
var ErrInvalidTransition = errors.New("invalid draw transition")

// Advance moves the draw one step forward in its lifecycle. Skipping or
// stepping backward is rejected.
func (d *Draw) Advance(target DrawStatus) error {
	if !d.Status.CanAdvanceTo(target) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, d.Status, target)
	}
	d.Status = target
	return nil
}

// Payout is one user's share of the prize pool.
type Payout struct {
	UserID int64           `json:"user_id"`
	Wallet string          `json:"wallet,omitempty"`
	Hits   int             `json:"hits"`
	Amount decimal.Decimal `json:"amount"`
}

// Settlement is the audit record persisted onto a draw when it settles.
type Settlement struct {
	SettledAt      time.Time       `json:"settled_at"`
	FormulaName    string          `json:"formula_name"`
	FormulaVersion string          `json:"formula_version"`
	FormulaParams  map[string]any  `json:"formula_params"`
	TotalBank      decimal.Decimal `json:"total_bank"`
	PrizePool      decimal.Decimal `json:"prize_pool"`
	Payouts        []Payout        `json:"payouts"`
	Leftover       decimal.Decimal `json:"leftover"`
	// Deficit is how far fixed-table prizes overran the bank, zero for the
	// pool-percentage formulas.
	Deficit     decimal.Decimal `json:"deficit"`
	MaxHits     int             `json:"max_hits"`
	TotalPlayed int             `json:"total_played"` // non-void events with a result
}
