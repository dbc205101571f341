// Package draw is the application service around the settlement core: it
// owns draw lifecycle mutations, ticket purchase and payment application,
// and runs settlement against persisted state. All writes go through the
// service's lock so lifecycle transitions serialize.
package draw

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tonpool/tote/internal/model"
	"github.com/tonpool/tote/internal/payments"
	"github.com/tonpool/tote/internal/pricing"
	"github.com/tonpool/tote/internal/session"
	"github.com/tonpool/tote/internal/settlement"
	"github.com/tonpool/tote/pkg/common/logger"
	"github.com/tonpool/tote/pkg/store/drawstore"
	"github.com/tonpool/tote/pkg/store/ticketstore"
)

var (
	ErrDrawNotFound        = errors.New("draw not found")
	ErrTicketNotFound      = errors.New("ticket not found")
	ErrBettingClosed       = errors.New("betting is not open")
	ErrNoCombinations      = errors.New("selections price to zero combinations")
	ErrIncompleteSelection = errors.New("selection incomplete: every event needs at least one pick")
	ErrNoSuchEvent         = errors.New("no such event")
)

// Notifier receives the settled draw after it is durably persisted.
type Notifier interface {
	NotifySettled(draw *model.Draw)
}

// Options carries the service's fixed parameters, resolved from config at
// startup.
type Options struct {
	EventsCount int
	BaseStake   decimal.Decimal
	Currency    string
	Policy      pricing.Policy
	Rollover    bool
}

type Service struct {
	mu       sync.Mutex
	draws    drawstore.Store
	tickets  ticketstore.Store
	sessions session.Store
	orch     *settlement.Orchestrator
	notifier Notifier
	opts     Options
}

func NewService(
	draws drawstore.Store,
	tickets ticketstore.Store,
	sessions session.Store,
	orch *settlement.Orchestrator,
	notifier Notifier,
	opts Options,
) *Service {
	return &Service{
		draws:    draws,
		tickets:  tickets,
		sessions: sessions,
		orch:     orch,
		notifier: notifier,
		opts:     opts,
	}
}

// CreateDraw creates a new draw in setup. When titles is empty the slate is
// sized from options and titled later; otherwise one event per title.
func (s *Service) CreateDraw(ctx context.Context, titles []string) (*model.Draw, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createDrawLocked(ctx, titles, decimal.Zero)
}

func (s *Service) createDrawLocked(ctx context.Context, titles []string, carried decimal.Decimal) (*model.Draw, error) {
	count := len(titles)
	if count == 0 {
		count = s.opts.EventsCount
	}
	if count <= 0 {
		return nil, fmt.Errorf("draw needs at least one event")
	}

	id, err := s.draws.NextID(ctx)
	if err != nil {
		return nil, err
	}

	events := make([]model.Event, count)
	for i := range events {
		events[i] = model.Event{Index: i}
		if i < len(titles) {
			events[i].Title = titles[i]
		}
	}

	draw := &model.Draw{
		ID:          id,
		Status:      model.StatusSetup,
		Events:      events,
		CarriedBank: carried,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.draws.Save(ctx, draw); err != nil {
		return nil, err
	}
	if err := s.draws.SetCurrent(ctx, id); err != nil {
		return nil, err
	}
	logger.Info("Draw created", "draw", id, "events", count, "carried_bank", carried)
	return draw, nil
}

// Get returns a draw by id.
func (s *Service) Get(ctx context.Context, id int64) (*model.Draw, error) {
	draw, err := s.draws.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if draw == nil {
		return nil, fmt.Errorf("draw %d: %w", id, ErrDrawNotFound)
	}
	return draw, nil
}

// Current returns the draw new tickets attach to.
func (s *Service) Current(ctx context.Context) (*model.Draw, error) {
	draw, err := s.draws.Current(ctx)
	if err != nil {
		return nil, err
	}
	if draw == nil {
		return nil, ErrDrawNotFound
	}
	return draw, nil
}

// mutate loads a draw, applies fn and saves the result, all under the lock.
func (s *Service) mutate(ctx context.Context, id int64, fn func(*model.Draw) error) (*model.Draw, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	draw, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := fn(draw); err != nil {
		return nil, err
	}
	if err := s.draws.Save(ctx, draw); err != nil {
		return nil, err
	}
	return draw, nil
}

// SetEventTitle renames an event. Allowed only while the slate is in setup.
func (s *Service) SetEventTitle(ctx context.Context, drawID int64, eventIndex int, title string) (*model.Draw, error) {
	return s.mutate(ctx, drawID, func(d *model.Draw) error {
		if d.Status != model.StatusSetup {
			return fmt.Errorf("draw %d: slate is frozen in status %q", d.ID, d.Status)
		}
		if eventIndex < 0 || eventIndex >= len(d.Events) {
			return fmt.Errorf("draw %d event %d: %w", d.ID, eventIndex, ErrNoSuchEvent)
		}
		d.Events[eventIndex].Title = strings.TrimSpace(title)
		return nil
	})
}

// SetResult records an event outcome. Results may be corrected any time
// before settlement.
func (s *Service) SetResult(ctx context.Context, drawID int64, eventIndex int, outcome model.Outcome) (*model.Draw, error) {
	return s.mutate(ctx, drawID, func(d *model.Draw) error {
		if d.Status == model.StatusSettled {
			return fmt.Errorf("draw %d: %w", d.ID, settlement.ErrAlreadySettled)
		}
		if eventIndex < 0 || eventIndex >= len(d.Events) {
			return fmt.Errorf("draw %d event %d: %w", d.ID, eventIndex, ErrNoSuchEvent)
		}
		if !outcome.Valid() {
			return fmt.Errorf("outcome %d out of range", outcome)
		}
		o := outcome
		d.Events[eventIndex].Result = &o
		return nil
	})
}

// ClearResult removes a recorded outcome.
func (s *Service) ClearResult(ctx context.Context, drawID int64, eventIndex int) (*model.Draw, error) {
	return s.mutate(ctx, drawID, func(d *model.Draw) error {
		if d.Status == model.StatusSettled {
			return fmt.Errorf("draw %d: %w", d.ID, settlement.ErrAlreadySettled)
		}
		if eventIndex < 0 || eventIndex >= len(d.Events) {
			return fmt.Errorf("draw %d event %d: %w", d.ID, eventIndex, ErrNoSuchEvent)
		}
		d.Events[eventIndex].Result = nil
		return nil
	})
}

// VoidEvent marks an event void (or un-voids it). Void events drop out of
// scoring entirely.
func (s *Service) VoidEvent(ctx context.Context, drawID int64, eventIndex int, void bool) (*model.Draw, error) {
	return s.mutate(ctx, drawID, func(d *model.Draw) error {
		if d.Status == model.StatusSettled {
			return fmt.Errorf("draw %d: %w", d.ID, settlement.ErrAlreadySettled)
		}
		if eventIndex < 0 || eventIndex >= len(d.Events) {
			return fmt.Errorf("draw %d event %d: %w", d.ID, eventIndex, ErrNoSuchEvent)
		}
		d.Events[eventIndex].IsVoid = void
		return nil
	})
}

// OpenBetting moves the draw from setup to open.
func (s *Service) OpenBetting(ctx context.Context, drawID int64) (*model.Draw, error) {
	return s.mutate(ctx, drawID, func(d *model.Draw) error {
		return d.Advance(model.StatusOpen)
	})
}

// CloseBetting moves the draw from open to closed.
func (s *Service) CloseBetting(ctx context.Context, drawID int64) (*model.Draw, error) {
	return s.mutate(ctx, drawID, func(d *model.Draw) error {
		return d.Advance(model.StatusClosed)
	})
}

// Settle runs settlement over the draw's paid tickets and persists the
// result, then notifies. Notification failures never unwind settlement.
func (s *Service) Settle(ctx context.Context, drawID int64) (*model.Settlement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	draw, err := s.Get(ctx, drawID)
	if err != nil {
		return nil, err
	}
	tickets, err := s.tickets.ListByDraw(ctx, drawID)
	if err != nil {
		return nil, err
	}

	result, err := s.orch.Settle(draw, tickets)
	if err != nil {
		return nil, err
	}
	if err := s.draws.Save(ctx, draw); err != nil {
		return nil, fmt.Errorf("settlement computed but not persisted: %w", err)
	}
	logger.Info("Draw settled",
		"draw", drawID,
		"bank", result.TotalBank,
		"pool", result.PrizePool,
		"winners", len(result.Payouts),
		"leftover", result.Leftover)

	if s.notifier != nil {
		s.notifier.NotifySettled(draw)
	}
	return result, nil
}

// RollNewDraw creates the next draw from a settled one, carrying leftover
// into the new bank when rollover is configured.
func (s *Service) RollNewDraw(ctx context.Context, fromDrawID int64, titles []string) (*model.Draw, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, err := s.Get(ctx, fromDrawID)
	if err != nil {
		return nil, err
	}
	if prev.Status != model.StatusSettled {
		return nil, fmt.Errorf("draw %d is not settled", fromDrawID)
	}
	carried := settlement.Rollover(prev.Settlement, s.opts.Rollover)
	return s.createDrawLocked(ctx, titles, carried)
}

// BuyTicket prices the selections and creates an unpaid ticket with a
// payment invoice. The draw must be open.
func (s *Service) BuyTicket(ctx context.Context, drawID, userID int64, username, wallet string, selections []model.Selection) (*model.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	draw, err := s.Get(ctx, drawID)
	if err != nil {
		return nil, err
	}
	if draw.Status != model.StatusOpen {
		return nil, fmt.Errorf("draw %d in status %q: %w", drawID, draw.Status, ErrBettingClosed)
	}

	ticket := &model.Ticket{
		ID:         uuid.NewString(),
		DrawID:     drawID,
		UserID:     userID,
		Username:   username,
		Wallet:     wallet,
		Selections: selections,
		Currency:   s.opts.Currency,
		CreatedAt:  time.Now().UTC(),
	}
	if err := model.NormalizeTicket(ticket, len(draw.Events)); err != nil {
		return nil, err
	}

	combos := pricing.CombinationCount(ticket.Selections, s.opts.Policy)
	if combos == 0 {
		return nil, ErrNoCombinations
	}
	ticket.Stake = pricing.Stake(ticket.Selections, s.opts.Policy, s.opts.BaseStake)

	nonce := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	ticket.InvoiceID = payments.Invoice{
		DrawID: drawID,
		UserID: userID,
		Nonce:  nonce,
		Combos: combos,
	}.String()

	if err := s.tickets.Save(ctx, ticket); err != nil {
		return nil, err
	}
	logger.Info("Ticket created",
		"ticket", ticket.ID, "draw", drawID, "user", userID,
		"combos", combos, "stake", ticket.Stake)
	return ticket, nil
}

// ConfirmSession turns a completed selection session into a ticket and
// drops the session.
func (s *Service) ConfirmSession(ctx context.Context, drawID, userID int64, username, wallet string) (*model.Ticket, error) {
	sess, err := s.sessions.Get(ctx, drawID, userID)
	if err != nil {
		return nil, err
	}
	if !sess.Complete() {
		return nil, ErrIncompleteSelection
	}
	ticket, err := s.BuyTicket(ctx, drawID, userID, username, wallet, sess.Selections)
	if err != nil {
		return nil, err
	}
	if err := s.sessions.Delete(ctx, drawID, userID); err != nil {
		logger.Warn("Failed to drop confirmed session", "draw", drawID, "user", userID, "err", err)
	}
	return ticket, nil
}

// ToggleSelection flips one outcome in the user's draft for the draw,
// creating the draft on first use.
func (s *Service) ToggleSelection(ctx context.Context, drawID, userID int64, eventIndex int, outcome model.Outcome) (*session.Session, error) {
	draw, err := s.Get(ctx, drawID)
	if err != nil {
		return nil, err
	}
	if draw.Status != model.StatusOpen {
		return nil, fmt.Errorf("draw %d in status %q: %w", drawID, draw.Status, ErrBettingClosed)
	}

	sess, err := s.sessions.Get(ctx, drawID, userID)
	if errors.Is(err, session.ErrNotFound) {
		sess = session.NewSession(drawID, userID, len(draw.Events))
	} else if err != nil {
		return nil, err
	}

	if err := sess.Toggle(eventIndex, outcome); err != nil {
		return nil, err
	}
	if err := s.sessions.Save(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// MarkTicketPaid flips a ticket to paid. Implements the payment verifier's
// applier contract; also usable directly for manual confirmation.
func (s *Service) MarkTicketPaid(ctx context.Context, drawID int64, ticketID string, txHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ticket, err := s.tickets.Get(ctx, drawID, ticketID)
	if err != nil {
		return err
	}
	if ticket == nil {
		return fmt.Errorf("ticket %s in draw %d: %w", ticketID, drawID, ErrTicketNotFound)
	}
	if ticket.Paid {
		return nil
	}
	ticket.Paid = true
	ticket.PaymentTx = txHash
	return s.tickets.Save(ctx, ticket)
}

// Stats is the operator's view of a draw's bank.
type Stats struct {
	DrawID      int64            `json:"draw_id"`
	Status      model.DrawStatus `json:"status"`
	Tickets     int              `json:"tickets"`
	PaidTickets int              `json:"paid_tickets"`
	UniqueUsers int              `json:"unique_users"`
	CarriedBank decimal.Decimal  `json:"carried_bank"`
	Bank        decimal.Decimal  `json:"bank"`
	Unpaid      decimal.Decimal  `json:"unpaid"`
}

// DrawStats aggregates ticket and bank counters for one draw. Only paid
// stakes in the settlement currency count toward the bank, matching what
// settlement will sum.
func (s *Service) DrawStats(ctx context.Context, drawID int64) (*Stats, error) {
	draw, err := s.Get(ctx, drawID)
	if err != nil {
		return nil, err
	}
	tickets, err := s.tickets.ListByDraw(ctx, drawID)
	if err != nil {
		return nil, err
	}

	stats := &Stats{
		DrawID:      drawID,
		Status:      draw.Status,
		Tickets:     len(tickets),
		CarriedBank: draw.CarriedBank,
		Bank:        draw.CarriedBank,
		Unpaid:      decimal.Zero,
	}
	users := make(map[int64]struct{})
	for _, t := range tickets {
		users[t.UserID] = struct{}{}
		if t.Currency != s.opts.Currency {
			continue
		}
		if t.Paid {
			stats.PaidTickets++
			stats.Bank = stats.Bank.Add(t.Stake)
		} else {
			stats.Unpaid = stats.Unpaid.Add(t.Stake)
		}
	}
	stats.UniqueUsers = len(users)
	return stats, nil
}
