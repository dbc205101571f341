// Package dto defines the HTTP request payloads. Responses reuse the
// JSON-tagged domain structs directly.
package dto

import (
	"fmt"

	"github.com/tonpool/tote/internal/model"
)

type CreateDrawRequest struct {
	Titles []string `json:"titles"`
}

type SetTitleRequest struct {
	Title string `json:"title"`
}

type SetResultRequest struct {
	// Outcome is the slate notation: "1", "X" or "2".
	Outcome string `json:"outcome"`
}

type VoidRequest struct {
	Void bool `json:"void"`
}

type BuyTicketRequest struct {
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
	Wallet   string `json:"wallet"`
	// Selections holds one outcome list per event, in slate notation.
	Selections [][]string `json:"selections"`
}

type ToggleSelectionRequest struct {
	UserID     int64  `json:"user_id"`
	EventIndex int    `json:"event_index"`
	Outcome    string `json:"outcome"`
}

type ConfirmSessionRequest struct {
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
	Wallet   string `json:"wallet"`
}

// ParseOutcome converts slate notation into an outcome.
func ParseOutcome(s string) (model.Outcome, error) {
	switch s {
	case "1":
		return model.Outcome1, nil
	case "X", "x":
		return model.OutcomeDraw, nil
	case "2":
		return model.Outcome2, nil
	}
	return 0, fmt.Errorf("unknown outcome %q, want 1, X or 2", s)
}

// ParseSelections converts slate notation selections into model selections.
func ParseSelections(raw [][]string) ([]model.Selection, error) {
	selections := make([]model.Selection, len(raw))
	for i, sel := range raw {
		selections[i] = make(model.Selection, 0, len(sel))
		for _, s := range sel {
			o, err := ParseOutcome(s)
			if err != nil {
				return nil, fmt.Errorf("event %d: %w", i, err)
			}
			selections[i] = append(selections[i], o)
		}
	}
	return selections, nil
}
