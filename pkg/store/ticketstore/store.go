// Package ticketstore persists tickets keyed by draw, with a secondary
// index from invoice id to ticket for payment matching.
package ticketstore

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/tonpool/tote/internal/model"
	"github.com/tonpool/tote/pkg/infra"
)

const (
	ticketKeyPrefix  = "ticket/"
	invoiceKeyPrefix = "invoice/"
)

type Store interface {
	// Save persists the ticket and, when it carries an invoice, the
	// invoice index entry.
	Save(ctx context.Context, ticket *model.Ticket) error

	// Get returns the ticket, or nil if not found.
	Get(ctx context.Context, drawID int64, ticketID string) (*model.Ticket, error)

	// ListByDraw returns every ticket of a draw.
	ListByDraw(ctx context.Context, drawID int64) ([]model.Ticket, error)

	// ListByUser returns a user's tickets for a draw.
	ListByUser(ctx context.Context, drawID int64, userID int64) ([]model.Ticket, error)

	// FindByInvoice resolves an invoice id to its ticket, or nil.
	FindByInvoice(ctx context.Context, invoiceID string) (*model.Ticket, error)
}

// invoiceRef is the invoice index payload.
type invoiceRef struct {
	DrawID   int64  `json:"draw_id"`
	TicketID string `json:"ticket_id"`
}

type kvStore struct {
	kv infra.KVStore
}

func New(kv infra.KVStore) Store {
	return &kvStore{kv: kv}
}

func ticketKey(drawID int64, ticketID string) string {
	return ticketKeyPrefix + strconv.FormatInt(drawID, 10) + "/" + ticketID
}

func drawTicketsPrefix(drawID int64) string {
	return ticketKeyPrefix + strconv.FormatInt(drawID, 10) + "/"
}

func (s *kvStore) Save(ctx context.Context, ticket *model.Ticket) error {
	if ticket.ID == "" {
		return fmt.Errorf("ticket has no id")
	}
	if err := s.kv.SetAny(ticketKey(ticket.DrawID, ticket.ID), ticket); err != nil {
		return fmt.Errorf("failed to save ticket %s: %w", ticket.ID, err)
	}
	if ticket.InvoiceID != "" {
		ref := invoiceRef{DrawID: ticket.DrawID, TicketID: ticket.ID}
		if err := s.kv.SetAny(invoiceKeyPrefix+ticket.InvoiceID, ref); err != nil {
			return fmt.Errorf("failed to index invoice %s: %w", ticket.InvoiceID, err)
		}
	}
	return nil
}

func (s *kvStore) Get(ctx context.Context, drawID int64, ticketID string) (*model.Ticket, error) {
	var ticket model.Ticket
	found, err := s.kv.GetAny(ticketKey(drawID, ticketID), &ticket)
	if err != nil {
		return nil, fmt.Errorf("failed to get ticket %s: %w", ticketID, err)
	}
	if !found {
		return nil, nil
	}
	return &ticket, nil
}

func (s *kvStore) ListByDraw(ctx context.Context, drawID int64) ([]model.Ticket, error) {
	pairs, err := s.kv.List(drawTicketsPrefix(drawID))
	if err != nil {
		return nil, fmt.Errorf("failed to list tickets for draw %d: %w", drawID, err)
	}

	tickets := make([]model.Ticket, 0, len(pairs))
	for _, pair := range pairs {
		var ticket model.Ticket
		if err := json.Unmarshal(pair.Value, &ticket); err != nil {
			return nil, fmt.Errorf("corrupt ticket at %s: %w", pair.Key, err)
		}
		tickets = append(tickets, ticket)
	}
	return tickets, nil
}

func (s *kvStore) ListByUser(ctx context.Context, drawID int64, userID int64) ([]model.Ticket, error) {
	all, err := s.ListByDraw(ctx, drawID)
	if err != nil {
		return nil, err
	}
	var tickets []model.Ticket
	for _, t := range all {
		if t.UserID == userID {
			tickets = append(tickets, t)
		}
	}
	return tickets, nil
}

func (s *kvStore) FindByInvoice(ctx context.Context, invoiceID string) (*model.Ticket, error) {
	var ref invoiceRef
	found, err := s.kv.GetAny(invoiceKeyPrefix+invoiceID, &ref)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve invoice %s: %w", invoiceID, err)
	}
	if !found {
		return nil, nil
	}
	return s.Get(ctx, ref.DrawID, ref.TicketID)
}
