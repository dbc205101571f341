package draw

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tonpool/tote/internal/formula"
	"github.com/tonpool/tote/internal/model"
	"github.com/tonpool/tote/internal/pricing"
	"github.com/tonpool/tote/internal/session"
	"github.com/tonpool/tote/internal/settlement"
	"github.com/tonpool/tote/pkg/infra"
	"github.com/tonpool/tote/pkg/store/drawstore"
	"github.com/tonpool/tote/pkg/store/ticketstore"
)

type fakeNotifier struct {
	settled []int64
}

func (f *fakeNotifier) NotifySettled(d *model.Draw) {
	f.settled = append(f.settled, d.ID)
}

func newService(t *testing.T) (*Service, *fakeNotifier) {
	t.Helper()

	kv, err := infra.NewBadgerStore(t.TempDir(), "tote", infra.JSON)
	require.NoError(t, err)
	t.Cleanup(func() { kv.Close() })

	f, err := formula.New(formula.MaxHitsEqualShare, formula.Params{
		EqualShare: &formula.EqualShareParams{
			PrizePoolPct:        decimal.RequireFromString("0.9"),
			RolloverIfNoWinners: true,
		},
	})
	require.NoError(t, err)

	notifier := &fakeNotifier{}
	svc := NewService(
		drawstore.New(kv),
		ticketstore.New(kv),
		session.NewMemoryStore(time.Minute),
		settlement.New(f, "USDT"),
		notifier,
		Options{
			EventsCount: 3,
			BaseStake:   decimal.NewFromInt(1),
			Currency:    "USDT",
			Policy:      pricing.PolicyStrict,
			Rollover:    true,
		},
	)
	return svc, notifier
}

func openDraw(t *testing.T, svc *Service) *model.Draw {
	t.Helper()
	ctx := context.Background()
	d, err := svc.CreateDraw(ctx, []string{"A-B", "C-D", "E-F"})
	require.NoError(t, err)
	d, err = svc.OpenBetting(ctx, d.ID)
	require.NoError(t, err)
	return d
}

func buyPaid(t *testing.T, svc *Service, drawID, userID int64, sels []model.Selection) *model.Ticket {
	t.Helper()
	ctx := context.Background()
	ticket, err := svc.BuyTicket(ctx, drawID, userID, "", "EQwallet", sels)
	require.NoError(t, err)
	require.NoError(t, svc.MarkTicketPaid(ctx, drawID, ticket.ID, "0xabc"))
	return ticket
}

func TestCreateDraw(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	d, err := svc.CreateDraw(ctx, []string{"A-B", "C-D"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), d.ID)
	assert.Equal(t, model.StatusSetup, d.Status)
	require.Len(t, d.Events, 2)
	assert.Equal(t, "A-B", d.Events[0].Title)

	cur, err := svc.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, d.ID, cur.ID)

	// untitled draws size from options
	d2, err := svc.CreateDraw(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(2), d2.ID)
	assert.Len(t, d2.Events, 3)
}

func TestLifecycleGuards(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	d, err := svc.CreateDraw(ctx, []string{"A-B"})
	require.NoError(t, err)

	_, err = svc.CloseBetting(ctx, d.ID)
	assert.Error(t, err, "cannot close before opening")

	_, err = svc.OpenBetting(ctx, d.ID)
	require.NoError(t, err)

	_, err = svc.SetEventTitle(ctx, d.ID, 0, "renamed")
	assert.Error(t, err, "slate frozen once open")

	_, err = svc.OpenBetting(ctx, d.ID)
	assert.Error(t, err, "already open")
}

func TestBuyTicket(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	d := openDraw(t, svc)

	sels := []model.Selection{
		{model.Outcome1},
		{model.Outcome1, model.Outcome2},
		{model.OutcomeDraw},
	}
	ticket, err := svc.BuyTicket(ctx, d.ID, 100, "alice", "EQa", sels)
	require.NoError(t, err)
	assert.False(t, ticket.Paid)
	assert.True(t, ticket.Stake.Equal(decimal.NewFromInt(2)), "1x2x1 combos at base stake 1")
	assert.Contains(t, ticket.InvoiceID, "tote_1_100_")

	_, err = svc.BuyTicket(ctx, d.ID, 100, "alice", "EQa", []model.Selection{
		{model.Outcome1}, {}, {model.Outcome2},
	})
	assert.ErrorIs(t, err, ErrNoCombinations, "strict policy rejects empty selection")

	_, err = svc.BuyTicket(ctx, d.ID, 100, "alice", "EQa", sels[:2])
	assert.Error(t, err, "selection count must match slate")
}

func TestBuyTicket_RequiresOpenDraw(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	d, err := svc.CreateDraw(ctx, []string{"A-B", "C-D", "E-F"})
	require.NoError(t, err)

	_, err = svc.BuyTicket(ctx, d.ID, 100, "", "", []model.Selection{
		{model.Outcome1}, {model.Outcome1}, {model.Outcome1},
	})
	assert.ErrorIs(t, err, ErrBettingClosed)
}

func TestMarkTicketPaid_Idempotent(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	d := openDraw(t, svc)

	ticket := buyPaid(t, svc, d.ID, 100, []model.Selection{
		{model.Outcome1}, {model.Outcome1}, {model.Outcome1},
	})

	require.NoError(t, svc.MarkTicketPaid(ctx, d.ID, ticket.ID, "0xother"))

	got, err := svc.tickets.Get(ctx, d.ID, ticket.ID)
	require.NoError(t, err)
	assert.True(t, got.Paid)
	assert.Equal(t, "0xabc", got.PaymentTx, "first confirmation wins")

	err = svc.MarkTicketPaid(ctx, d.ID, "missing", "0x")
	assert.ErrorIs(t, err, ErrTicketNotFound)
}

func TestSessionFlow(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	d := openDraw(t, svc)

	_, err := svc.ToggleSelection(ctx, d.ID, 100, 0, model.Outcome1)
	require.NoError(t, err)
	_, err = svc.ToggleSelection(ctx, d.ID, 100, 1, model.Outcome2)
	require.NoError(t, err)

	_, err = svc.ConfirmSession(ctx, d.ID, 100, "alice", "EQa")
	assert.Error(t, err, "incomplete session cannot confirm")

	sess, err := svc.ToggleSelection(ctx, d.ID, 100, 2, model.OutcomeDraw)
	require.NoError(t, err)
	assert.True(t, sess.Complete())

	ticket, err := svc.ConfirmSession(ctx, d.ID, 100, "alice", "EQa")
	require.NoError(t, err)
	assert.Equal(t, []model.Selection{
		{model.Outcome1}, {model.Outcome2}, {model.OutcomeDraw},
	}, ticket.Selections)

	_, err = svc.ConfirmSession(ctx, d.ID, 100, "alice", "EQa")
	assert.ErrorIs(t, err, session.ErrNotFound, "session consumed on confirm")
}

func setAllResults(t *testing.T, svc *Service, drawID int64, outcomes ...model.Outcome) {
	t.Helper()
	ctx := context.Background()
	for i, o := range outcomes {
		_, err := svc.SetResult(ctx, drawID, i, o)
		require.NoError(t, err)
	}
}

func TestSettleFlow(t *testing.T) {
	svc, notifier := newService(t)
	ctx := context.Background()
	d := openDraw(t, svc)

	// winner: all three right
	buyPaid(t, svc, d.ID, 100, []model.Selection{
		{model.Outcome1}, {model.Outcome2}, {model.OutcomeDraw},
	})
	// loser
	buyPaid(t, svc, d.ID, 200, []model.Selection{
		{model.Outcome2}, {model.Outcome1}, {model.Outcome1},
	})
	// unpaid tickets stay out of the bank
	_, err := svc.BuyTicket(ctx, d.ID, 300, "", "", []model.Selection{
		{model.Outcome1}, {model.Outcome1}, {model.Outcome1},
	})
	require.NoError(t, err)

	_, err = svc.CloseBetting(ctx, d.ID)
	require.NoError(t, err)

	_, err = svc.Settle(ctx, d.ID)
	require.Error(t, err, "results missing")
	var incomplete *settlement.IncompleteResultsError
	assert.ErrorAs(t, err, &incomplete)

	setAllResults(t, svc, d.ID, model.Outcome1, model.Outcome2, model.OutcomeDraw)

	result, err := svc.Settle(ctx, d.ID)
	require.NoError(t, err)
	assert.True(t, result.TotalBank.Equal(decimal.NewFromInt(2)), "two paid single-combo tickets")
	require.Len(t, result.Payouts, 1)
	assert.Equal(t, int64(100), result.Payouts[0].UserID)
	assert.True(t, result.Payouts[0].Amount.Equal(decimal.RequireFromString("1.8")), "90% of 2")

	assert.Equal(t, []int64{d.ID}, notifier.settled)

	// settled state is durable
	got, err := svc.Get(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusSettled, got.Status)
	require.NotNil(t, got.Settlement)

	_, err = svc.Settle(ctx, d.ID)
	assert.ErrorIs(t, err, settlement.ErrAlreadySettled)
}

func TestRollNewDraw_CarriesLeftover(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	d := openDraw(t, svc)

	// nobody wins everything: single paid ticket misses one event
	buyPaid(t, svc, d.ID, 100, []model.Selection{
		{model.Outcome1}, {model.Outcome1}, {model.Outcome1},
	})
	_, err := svc.CloseBetting(ctx, d.ID)
	require.NoError(t, err)
	setAllResults(t, svc, d.ID, model.Outcome1, model.Outcome1, model.Outcome2)

	result, err := svc.Settle(ctx, d.ID)
	require.NoError(t, err)
	assert.True(t, result.Leftover.Equal(decimal.RequireFromString("0.9")),
		"no entrant at max hits, pool rolls")

	_, err = svc.RollNewDraw(ctx, d.ID+1, nil)
	assert.Error(t, err, "unknown source draw")

	next, err := svc.RollNewDraw(ctx, d.ID, []string{"G-H", "I-J", "K-L"})
	require.NoError(t, err)
	assert.True(t, next.CarriedBank.Equal(decimal.RequireFromString("0.9")))

	cur, err := svc.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, next.ID, cur.ID)
}

func TestDrawStats(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	d := openDraw(t, svc)

	buyPaid(t, svc, d.ID, 100, []model.Selection{
		{model.Outcome1}, {model.Outcome1}, {model.Outcome1},
	})
	buyPaid(t, svc, d.ID, 100, []model.Selection{
		{model.Outcome2}, {model.Outcome2}, {model.Outcome2},
	})
	_, err := svc.BuyTicket(ctx, d.ID, 200, "", "", []model.Selection{
		{model.Outcome1, model.Outcome2}, {model.Outcome1}, {model.Outcome1},
	})
	require.NoError(t, err)

	stats, err := svc.DrawStats(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Tickets)
	assert.Equal(t, 2, stats.PaidTickets)
	assert.Equal(t, 2, stats.UniqueUsers)
	assert.True(t, stats.Bank.Equal(decimal.NewFromInt(2)))
	assert.True(t, stats.Unpaid.Equal(decimal.NewFromInt(2)), "one unpaid two-combo ticket")
}
