// Package notifier publishes settlement results over NATS. Downstream
// consumers (bot, dashboards) render and deliver the messages; this side
// only emits facts.
package notifier

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tonpool/tote/internal/model"
	"github.com/tonpool/tote/pkg/common/logger"
	"github.com/tonpool/tote/pkg/retry"
)

const (
	subjectDrawSettled = "settled"
	subjectPayout      = "payout"
)

// Publisher is the slice of a NATS connection the notifier needs.
// *nats.Conn satisfies it directly.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// DrawSettledEvent announces a finished draw.
type DrawSettledEvent struct {
	DrawID      int64           `json:"draw_id"`
	FormulaName string          `json:"formula_name"`
	TotalBank   decimal.Decimal `json:"total_bank"`
	PrizePool   decimal.Decimal `json:"prize_pool"`
	Leftover    decimal.Decimal `json:"leftover"`
	MaxHits     int             `json:"max_hits"`
	Winners     int             `json:"winners"`
	Timestamp   int64           `json:"timestamp"`
}

// PayoutEvent announces one winner's share.
type PayoutEvent struct {
	DrawID    int64           `json:"draw_id"`
	UserID    int64           `json:"user_id"`
	Wallet    string          `json:"wallet,omitempty"`
	Hits      int             `json:"hits"`
	Amount    decimal.Decimal `json:"amount"`
	Currency  string          `json:"currency"`
	Timestamp int64           `json:"timestamp"`
}

type Notifier struct {
	pub           Publisher
	subjectPrefix string
	currency      string
}

func New(pub Publisher, subjectPrefix string, currency string) *Notifier {
	return &Notifier{pub: pub, subjectPrefix: subjectPrefix, currency: currency}
}

// NotifySettled emits one draw-settled event followed by a payout event per
// winner. Individual publish failures are retried, then logged and skipped:
// settlement is already durable, notification is best effort.
func (n *Notifier) NotifySettled(draw *model.Draw) {
	s := draw.Settlement
	if s == nil {
		logger.Error("Notify called on draw without settlement", "draw_id", draw.ID)
		return
	}

	n.publish(n.subjectPrefix+"."+subjectDrawSettled, DrawSettledEvent{
		DrawID:      draw.ID,
		FormulaName: s.FormulaName,
		TotalBank:   s.TotalBank,
		PrizePool:   s.PrizePool,
		Leftover:    s.Leftover,
		MaxHits:     s.MaxHits,
		Winners:     len(s.Payouts),
		Timestamp:   time.Now().UTC().Unix(),
	})

	for _, p := range s.Payouts {
		n.publish(n.subjectPrefix+"."+subjectPayout, PayoutEvent{
			DrawID:    draw.ID,
			UserID:    p.UserID,
			Wallet:    p.Wallet,
			Hits:      p.Hits,
			Amount:    p.Amount,
			Currency:  n.currency,
			Timestamp: time.Now().UTC().Unix(),
		})
	}
}

func (n *Notifier) publish(subject string, event any) {
	data, err := json.Marshal(event)
	if err != nil {
		logger.Error("Failed to marshal event", "subject", subject, "err", err)
		return
	}
	err = retry.Exponential(func() error {
		return n.pub.Publish(subject, data)
	}, 50*time.Millisecond, 5*time.Second, func(err error, next time.Duration) {
		logger.Warn("Publish failed, retrying", "subject", subject, "next", next, "err", err)
	})
	if err != nil {
		logger.Error("Failed to publish event", "subject", subject, "err", err)
	}
}
