package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tonpool/tote/internal/formula"
	"github.com/tonpool/tote/internal/model"
	"github.com/tonpool/tote/internal/pricing"
	"github.com/tonpool/tote/internal/service/draw"
	"github.com/tonpool/tote/internal/session"
	"github.com/tonpool/tote/internal/settlement"
	"github.com/tonpool/tote/pkg/infra"
	"github.com/tonpool/tote/pkg/store/drawstore"
	"github.com/tonpool/tote/pkg/store/ticketstore"
)

type testAPI struct {
	server *httptest.Server
	svc    *draw.Service
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()

	kv, err := infra.NewBadgerStore(t.TempDir(), "tote", infra.JSON)
	require.NoError(t, err)
	t.Cleanup(func() { kv.Close() })

	f, err := formula.New(formula.MaxHitsEqualShare, formula.Params{
		EqualShare: &formula.EqualShareParams{PrizePoolPct: decimal.RequireFromString("0.9")},
	})
	require.NoError(t, err)

	svc := draw.NewService(
		drawstore.New(kv),
		ticketstore.New(kv),
		session.NewMemoryStore(time.Minute),
		settlement.New(f, "USDT"),
		nil,
		draw.Options{
			EventsCount: 2,
			BaseStake:   decimal.NewFromInt(1),
			Currency:    "USDT",
			Policy:      pricing.PolicyStrict,
		},
	)

	server := httptest.NewServer(NewRouter(NewHandler(svc)))
	t.Cleanup(server.Close)
	return &testAPI{server: server, svc: svc}
}

func (a *testAPI) do(t *testing.T, method, path string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, a.server.URL+path, &buf)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestCreateAndFetchDraw(t *testing.T) {
	a := newTestAPI(t)

	resp := a.do(t, http.MethodPost, "/draws", map[string]any{
		"titles": []string{"A-B", "C-D"},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decodeBody[model.Draw](t, resp)
	assert.Equal(t, model.StatusSetup, created.Status)

	resp = a.do(t, http.MethodGet, "/draws/1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = a.do(t, http.MethodGet, "/draws/current", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	current := decodeBody[model.Draw](t, resp)
	assert.Equal(t, created.ID, current.ID)

	resp = a.do(t, http.MethodGet, "/draws/99", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestLifecycleEndpoints(t *testing.T) {
	a := newTestAPI(t)
	a.do(t, http.MethodPost, "/draws", map[string]any{"titles": []string{"A-B", "C-D"}})

	resp := a.do(t, http.MethodPost, "/draws/1/close", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode, "cannot close before opening")

	resp = a.do(t, http.MethodPost, "/draws/1/open", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	opened := decodeBody[model.Draw](t, resp)
	assert.Equal(t, model.StatusOpen, opened.Status)
}

func TestBuyTicketEndpoint(t *testing.T) {
	a := newTestAPI(t)
	a.do(t, http.MethodPost, "/draws", map[string]any{"titles": []string{"A-B", "C-D"}})
	a.do(t, http.MethodPost, "/draws/1/open", nil)

	resp := a.do(t, http.MethodPost, "/draws/1/tickets", map[string]any{
		"user_id":    100,
		"username":   "alice",
		"wallet":     "EQa",
		"selections": [][]string{{"1"}, {"X", "2"}},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	ticket := decodeBody[model.Ticket](t, resp)
	assert.True(t, ticket.Stake.Equal(decimal.NewFromInt(2)))
	assert.False(t, ticket.Paid)

	resp = a.do(t, http.MethodPost, "/draws/1/tickets", map[string]any{
		"user_id":    100,
		"selections": [][]string{{"7"}, {"X"}},
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "unknown outcome notation")

	resp = a.do(t, http.MethodPost, "/draws/1/tickets", map[string]any{
		"user_id":    100,
		"selections": [][]string{{}, {"X"}},
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "empty selection prices to zero")
}

func TestSettleEndpoint(t *testing.T) {
	a := newTestAPI(t)
	a.do(t, http.MethodPost, "/draws", map[string]any{"titles": []string{"A-B", "C-D"}})
	a.do(t, http.MethodPost, "/draws/1/open", nil)

	resp := a.do(t, http.MethodPost, "/draws/1/tickets", map[string]any{
		"user_id":    100,
		"wallet":     "EQa",
		"selections": [][]string{{"1"}, {"2"}},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	ticket := decodeBody[model.Ticket](t, resp)
	require.NoError(t, a.svc.MarkTicketPaid(context.Background(), 1, ticket.ID, "0xabc"))

	a.do(t, http.MethodPost, "/draws/1/close", nil)

	resp = a.do(t, http.MethodPost, "/draws/1/settle", nil)
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	errBody := decodeBody[map[string]any](t, resp)
	assert.Contains(t, errBody, "missing_results")

	resp = a.do(t, http.MethodPut, "/draws/1/events/0/result", map[string]any{"outcome": "1"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp = a.do(t, http.MethodPut, "/draws/1/events/1/result", map[string]any{"outcome": "2"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = a.do(t, http.MethodPost, "/draws/1/settle", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	result := decodeBody[model.Settlement](t, resp)
	require.Len(t, result.Payouts, 1)
	assert.True(t, result.Payouts[0].Amount.Equal(decimal.RequireFromString("0.9")))

	resp = a.do(t, http.MethodPost, "/draws/1/settle", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = a.do(t, http.MethodGet, "/draws/1/stats", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	stats := decodeBody[draw.Stats](t, resp)
	assert.Equal(t, 1, stats.PaidTickets)
}

func TestSessionEndpoints(t *testing.T) {
	a := newTestAPI(t)
	a.do(t, http.MethodPost, "/draws", map[string]any{"titles": []string{"A-B", "C-D"}})
	a.do(t, http.MethodPost, "/draws/1/open", nil)

	resp := a.do(t, http.MethodPost, "/draws/1/selections/toggle", map[string]any{
		"user_id":     100,
		"event_index": 0,
		"outcome":     "1",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = a.do(t, http.MethodPost, "/draws/1/selections/confirm", map[string]any{
		"user_id": 100,
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "incomplete draft")

	resp = a.do(t, http.MethodPost, "/draws/1/selections/toggle", map[string]any{
		"user_id":     100,
		"event_index": 1,
		"outcome":     "X",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	sess := decodeBody[session.Session](t, resp)
	assert.True(t, sess.Complete())

	resp = a.do(t, http.MethodPost, "/draws/1/selections/confirm", map[string]any{
		"user_id": 100,
		"wallet":  "EQa",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	ticket := decodeBody[model.Ticket](t, resp)
	assert.Len(t, ticket.Selections, 2)
}

func TestWriteError_MasksInternalDetail(t *testing.T) {
	rec := httptest.NewRecorder()
	writeError(rec, errors.New("badger: file corrupted at offset 4096"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "badger")
	assert.Contains(t, rec.Body.String(), "internal error")
}

func TestVoidEndpoint(t *testing.T) {
	a := newTestAPI(t)
	a.do(t, http.MethodPost, "/draws", map[string]any{"titles": []string{"A-B", "C-D"}})

	resp := a.do(t, http.MethodPut, "/draws/1/events/1/void", map[string]any{"void": true})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	d := decodeBody[model.Draw](t, resp)
	assert.True(t, d.Events[1].IsVoid)

	resp = a.do(t, http.MethodPut, "/draws/1/events/5/void", map[string]any{"void": true})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
