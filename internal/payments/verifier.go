// Package payments confirms ticket payments from transfer events published
// by a chain indexer. The engine never talks to a chain itself: it trusts
// confirmed transfers arriving over NATS and matches them to invoices.
package payments

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/shopspring/decimal"

	"github.com/tonpool/tote/internal/model"
	"github.com/tonpool/tote/pkg/common/logger"
	"github.com/tonpool/tote/pkg/retry"
)

// TransferEvent is the indexer's confirmed-transfer payload.
type TransferEvent struct {
	TxHash        string `json:"txHash"`
	NetworkID     string `json:"networkId"`
	FromAddress   string `json:"fromAddress"`
	ToAddress     string `json:"toAddress"`
	AssetAddress  string `json:"assetAddress"`
	Amount        string `json:"amount"`
	Comment       string `json:"comment"`
	Confirmations int    `json:"confirmations"`
}

// TicketResolver resolves an invoice reference to its ticket.
type TicketResolver interface {
	FindByInvoice(ctx context.Context, invoiceID string) (*model.Ticket, error)
}

// PaymentApplier flips a ticket to paid. Implemented by the draw service so
// persistence and draw-state checks stay in one place.
type PaymentApplier interface {
	MarkTicketPaid(ctx context.Context, drawID int64, ticketID string, txHash string) error
}

type Config struct {
	ReceiveAddress   string
	MinConfirmations int
	AmountTolerance  decimal.Decimal
}

// Verifier matches transfer events against open invoices.
type Verifier struct {
	tickets TicketResolver
	applier PaymentApplier
	cfg     Config
}

func NewVerifier(tickets TicketResolver, applier PaymentApplier, cfg Config) *Verifier {
	if cfg.MinConfirmations <= 0 {
		cfg.MinConfirmations = 1
	}
	return &Verifier{tickets: tickets, applier: applier, cfg: cfg}
}

// Subscribe attaches the verifier to the indexer's transfer subject.
func (v *Verifier) Subscribe(nc *nats.Conn, subject string) (*nats.Subscription, error) {
	return nc.Subscribe(subject, func(msg *nats.Msg) {
		var ev TransferEvent
		if err := json.Unmarshal(msg.Data, &ev); err != nil {
			logger.Error("Malformed transfer event", "subject", subject, "err", err)
			return
		}
		if err := v.HandleTransfer(context.Background(), ev); err != nil {
			logger.Error("Failed to apply transfer", "tx", ev.TxHash, "err", err)
		}
	})
}

// HandleTransfer applies one confirmed transfer. Transfers that do not
// reference a known invoice are ignored, not errors: the receive address
// sees unrelated traffic.
func (v *Verifier) HandleTransfer(ctx context.Context, ev TransferEvent) error {
	if v.cfg.ReceiveAddress != "" && ev.ToAddress != v.cfg.ReceiveAddress {
		return nil
	}
	if ev.Confirmations < v.cfg.MinConfirmations {
		logger.Debug("Transfer below confirmation threshold",
			"tx", ev.TxHash, "confirmations", ev.Confirmations)
		return nil
	}

	_, invoiceID, ok := ExtractInvoice(ev.Comment)
	if !ok {
		return nil
	}

	ticket, err := v.tickets.FindByInvoice(ctx, invoiceID)
	if err != nil {
		return fmt.Errorf("failed to resolve invoice %s: %w", invoiceID, err)
	}
	if ticket == nil {
		logger.Warn("Transfer references unknown invoice", "invoice", invoiceID, "tx", ev.TxHash)
		return nil
	}
	if ticket.Paid {
		return nil
	}

	amount, err := decimal.NewFromString(ev.Amount)
	if err != nil {
		return fmt.Errorf("bad amount %q in tx %s: %w", ev.Amount, ev.TxHash, err)
	}
	if !v.amountOK(amount, ticket.Stake) {
		logger.Warn("Transfer amount does not cover stake",
			"invoice", invoiceID, "got", amount, "want", ticket.Stake)
		return nil
	}

	// A transfer event is not redelivered, so a flaky store write gets a
	// few attempts before the payment is lost to manual recovery.
	err = retry.Constant(func() error {
		return v.applier.MarkTicketPaid(ctx, ticket.DrawID, ticket.ID, ev.TxHash)
	}, 200*time.Millisecond, 3)
	if err != nil {
		return fmt.Errorf("failed to mark ticket %s paid: %w", ticket.ID, err)
	}
	logger.Info("Ticket paid", "ticket", ticket.ID, "draw", ticket.DrawID, "tx", ev.TxHash)
	return nil
}

// amountOK accepts exact payments within tolerance and any overpayment.
func (v *Verifier) amountOK(got, want decimal.Decimal) bool {
	if got.GreaterThanOrEqual(want) {
		return true
	}
	return want.Sub(got).Abs().LessThan(v.cfg.AmountTolerance)
}
