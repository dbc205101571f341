// Package scoring counts correctly predicted events for a ticket against a
// resolved slate. Void events and events without a result are excluded from
// both sides of the score, as if the slate were shorter.
package scoring

import "github.com/tonpool/tote/internal/model"

// Hits returns the number of events where the ticket's selection contains
// the event's result. Pure fold over event indices; a missing selection at
// an index simply never matches.
func Hits(events []model.Event, selections []model.Selection) int {
	hits := 0
	for i, ev := range events {
		if !ev.Resolved() {
			continue
		}
		if i >= len(selections) {
			continue
		}
		if selections[i].Contains(*ev.Result) {
			hits++
		}
	}
	return hits
}

// MaxPossibleHits is the number of events that count toward scoring: non-void
// with a result set. Stored as total_played on the settlement record.
func MaxPossibleHits(events []model.Event) int {
	n := 0
	for _, ev := range events {
		if ev.Resolved() {
			n++
		}
	}
	return n
}

// MissingResults lists the indices of non-void events that still lack a
// result. Settlement is blocked until this is empty.
func MissingResults(events []model.Event) []int {
	var missing []int
	for _, ev := range events {
		if !ev.IsVoid && ev.Result == nil {
			missing = append(missing, ev.Index)
		}
	}
	return missing
}
