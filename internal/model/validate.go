package model

import (
	"errors"
	"fmt"
)

var ErrInvalidDraw = errors.New("invalid draw")

// NormalizeDraw validates and repairs a draw loaded from storage, so the
// settlement core only ever sees well-formed structures. Shape repair lives
// here and nowhere else.
func NormalizeDraw(d *Draw) error {
	if d == nil {
		return fmt.Errorf("%w: nil", ErrInvalidDraw)
	}
	switch d.Status {
	case StatusSetup, StatusOpen, StatusClosed, StatusSettled:
	default:
		return fmt.Errorf("%w: unknown status %q", ErrInvalidDraw, d.Status)
	}
	if d.Events == nil {
		d.Events = []Event{}
	}
	for i := range d.Events {
		ev := &d.Events[i]
		if ev.Index != i {
			return fmt.Errorf("%w: event %d carries index %d", ErrInvalidDraw, i, ev.Index)
		}
		if ev.Result != nil && !ev.Result.Valid() {
			return fmt.Errorf("%w: event %d has result %d out of range", ErrInvalidDraw, i, *ev.Result)
		}
	}
	if d.Status == StatusSettled && d.Settlement == nil {
		return fmt.Errorf("%w: settled without settlement record", ErrInvalidDraw)
	}
	if d.Status != StatusSettled && d.Settlement != nil {
		return fmt.Errorf("%w: settlement record present in status %q", ErrInvalidDraw, d.Status)
	}
	return nil
}

// NormalizeTicket validates a ticket against the slate size of its draw and
// deduplicates selection values in place.
func NormalizeTicket(t *Ticket, eventCount int) error {
	if t == nil {
		return errors.New("invalid ticket: nil")
	}
	if t.ID == "" {
		return errors.New("invalid ticket: empty id")
	}
	if len(t.Selections) != eventCount {
		return fmt.Errorf("invalid ticket %s: %d selections for %d events", t.ID, len(t.Selections), eventCount)
	}
	for i, sel := range t.Selections {
		t.Selections[i] = dedupe(sel)
		for _, o := range t.Selections[i] {
			if !o.Valid() {
				return fmt.Errorf("invalid ticket %s: selection %d contains outcome %d", t.ID, i, o)
			}
		}
	}
	return nil
}

func dedupe(sel Selection) Selection {
	if len(sel) <= 1 {
		return sel
	}
	var seen [3]bool
	out := sel[:0]
	for _, o := range sel {
		if o.Valid() && !seen[o] {
			seen[o] = true
			out = append(out, o)
		}
	}
	return out
}
