// Package api exposes the draw lifecycle, ticket purchase and settlement
// operations over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/tonpool/tote/internal/api/dto"
	"github.com/tonpool/tote/internal/model"
	"github.com/tonpool/tote/internal/service/draw"
	"github.com/tonpool/tote/internal/session"
	"github.com/tonpool/tote/internal/settlement"
	"github.com/tonpool/tote/pkg/common/logger"
)

type Handler struct {
	svc *draw.Service
}

func NewHandler(svc *draw.Service) *Handler {
	return &Handler{svc: svc}
}

func decode[T any](r *http.Request) (T, error) {
	var payload T
	err := json.NewDecoder(r.Body).Decode(&payload)
	return payload, err
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("Failed to encode response", "err", err)
	}
}

type errorResponse struct {
	Error   string `json:"error"`
	Missing []int  `json:"missing_results,omitempty"`
}

// writeError maps domain errors onto HTTP statuses.
func writeError(w http.ResponseWriter, err error) {
	var incomplete *settlement.IncompleteResultsError
	var invalidSel *settlement.InvalidSelectionError

	switch {
	case errors.Is(err, draw.ErrDrawNotFound),
		errors.Is(err, draw.ErrTicketNotFound),
		errors.Is(err, session.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
	case errors.Is(err, settlement.ErrAlreadySettled),
		errors.Is(err, settlement.ErrNotClosed),
		errors.Is(err, draw.ErrBettingClosed),
		errors.Is(err, model.ErrInvalidTransition):
		writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})
	case errors.As(err, &incomplete):
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{
			Error:   err.Error(),
			Missing: incomplete.Missing,
		})
	case errors.As(err, &invalidSel),
		errors.Is(err, draw.ErrNoCombinations),
		errors.Is(err, draw.ErrIncompleteSelection),
		errors.Is(err, draw.ErrNoSuchEvent),
		errors.Is(err, model.ErrInvalidDraw):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	default:
		// Storage and other unexpected failures stay in the log; clients
		// get no internals.
		logger.Error("Request failed", "err", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}

func badRequest(w http.ResponseWriter, err error) {
	writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
}

func drawID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "drawID"), 10, 64)
}

func eventIndex(r *http.Request) (int, error) {
	return strconv.Atoi(chi.URLParam(r, "eventIndex"))
}

func (h *Handler) CreateDraw(w http.ResponseWriter, r *http.Request) {
	payload, err := decode[dto.CreateDrawRequest](r)
	if err != nil {
		badRequest(w, err)
		return
	}
	d, err := h.svc.CreateDraw(r.Context(), payload.Titles)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, d)
}

func (h *Handler) GetDraw(w http.ResponseWriter, r *http.Request) {
	id, err := drawID(r)
	if err != nil {
		badRequest(w, err)
		return
	}
	d, err := h.svc.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (h *Handler) CurrentDraw(w http.ResponseWriter, r *http.Request) {
	d, err := h.svc.Current(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (h *Handler) SetTitle(w http.ResponseWriter, r *http.Request) {
	id, err := drawID(r)
	if err != nil {
		badRequest(w, err)
		return
	}
	idx, err := eventIndex(r)
	if err != nil {
		badRequest(w, err)
		return
	}
	payload, err := decode[dto.SetTitleRequest](r)
	if err != nil {
		badRequest(w, err)
		return
	}
	d, err := h.svc.SetEventTitle(r.Context(), id, idx, payload.Title)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (h *Handler) SetResult(w http.ResponseWriter, r *http.Request) {
	id, err := drawID(r)
	if err != nil {
		badRequest(w, err)
		return
	}
	idx, err := eventIndex(r)
	if err != nil {
		badRequest(w, err)
		return
	}
	payload, err := decode[dto.SetResultRequest](r)
	if err != nil {
		badRequest(w, err)
		return
	}
	outcome, err := dto.ParseOutcome(payload.Outcome)
	if err != nil {
		badRequest(w, err)
		return
	}
	d, err := h.svc.SetResult(r.Context(), id, idx, outcome)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (h *Handler) ClearResult(w http.ResponseWriter, r *http.Request) {
	id, err := drawID(r)
	if err != nil {
		badRequest(w, err)
		return
	}
	idx, err := eventIndex(r)
	if err != nil {
		badRequest(w, err)
		return
	}
	d, err := h.svc.ClearResult(r.Context(), id, idx)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (h *Handler) VoidEvent(w http.ResponseWriter, r *http.Request) {
	id, err := drawID(r)
	if err != nil {
		badRequest(w, err)
		return
	}
	idx, err := eventIndex(r)
	if err != nil {
		badRequest(w, err)
		return
	}
	payload, err := decode[dto.VoidRequest](r)
	if err != nil {
		badRequest(w, err)
		return
	}
	d, err := h.svc.VoidEvent(r.Context(), id, idx, payload.Void)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (h *Handler) OpenBetting(w http.ResponseWriter, r *http.Request) {
	h.lifecycle(w, r, h.svc.OpenBetting)
}

func (h *Handler) CloseBetting(w http.ResponseWriter, r *http.Request) {
	h.lifecycle(w, r, h.svc.CloseBetting)
}

func (h *Handler) lifecycle(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, id int64) (*model.Draw, error)) {
	id, err := drawID(r)
	if err != nil {
		badRequest(w, err)
		return
	}
	d, err := fn(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (h *Handler) Settle(w http.ResponseWriter, r *http.Request) {
	id, err := drawID(r)
	if err != nil {
		badRequest(w, err)
		return
	}
	result, err := h.svc.Settle(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) RollNewDraw(w http.ResponseWriter, r *http.Request) {
	id, err := drawID(r)
	if err != nil {
		badRequest(w, err)
		return
	}
	payload, err := decode[dto.CreateDrawRequest](r)
	if err != nil {
		badRequest(w, err)
		return
	}
	d, err := h.svc.RollNewDraw(r.Context(), id, payload.Titles)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, d)
}

func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	id, err := drawID(r)
	if err != nil {
		badRequest(w, err)
		return
	}
	stats, err := h.svc.DrawStats(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *Handler) BuyTicket(w http.ResponseWriter, r *http.Request) {
	id, err := drawID(r)
	if err != nil {
		badRequest(w, err)
		return
	}
	payload, err := decode[dto.BuyTicketRequest](r)
	if err != nil {
		badRequest(w, err)
		return
	}
	selections, err := dto.ParseSelections(payload.Selections)
	if err != nil {
		badRequest(w, err)
		return
	}
	ticket, err := h.svc.BuyTicket(r.Context(), id, payload.UserID, payload.Username, payload.Wallet, selections)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, ticket)
}

func (h *Handler) ToggleSelection(w http.ResponseWriter, r *http.Request) {
	id, err := drawID(r)
	if err != nil {
		badRequest(w, err)
		return
	}
	payload, err := decode[dto.ToggleSelectionRequest](r)
	if err != nil {
		badRequest(w, err)
		return
	}
	outcome, err := dto.ParseOutcome(payload.Outcome)
	if err != nil {
		badRequest(w, err)
		return
	}
	sess, err := h.svc.ToggleSelection(r.Context(), id, payload.UserID, payload.EventIndex, outcome)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (h *Handler) ConfirmSession(w http.ResponseWriter, r *http.Request) {
	id, err := drawID(r)
	if err != nil {
		badRequest(w, err)
		return
	}
	payload, err := decode[dto.ConfirmSessionRequest](r)
	if err != nil {
		badRequest(w, err)
		return
	}
	ticket, err := h.svc.ConfirmSession(r.Context(), id, payload.UserID, payload.Username, payload.Wallet)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, ticket)
}
