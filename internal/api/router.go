package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/tonpool/tote/pkg/common/logger"
)

// NewRouter wires the handler onto the route tree. Draw mutation endpoints
// are operator-facing; tickets and selections are the player surface.
func NewRouter(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)

	r.Route("/draws", func(rr chi.Router) {
		rr.Post("/", h.CreateDraw)
		rr.Get("/current", h.CurrentDraw)

		rr.Route("/{drawID}", func(rd chi.Router) {
			rd.Get("/", h.GetDraw)
			rd.Get("/stats", h.Stats)
			rd.Post("/open", h.OpenBetting)
			rd.Post("/close", h.CloseBetting)
			rd.Post("/settle", h.Settle)
			rd.Post("/roll", h.RollNewDraw)

			rd.Route("/events/{eventIndex}", func(re chi.Router) {
				re.Put("/title", h.SetTitle)
				re.Put("/result", h.SetResult)
				re.Delete("/result", h.ClearResult)
				re.Put("/void", h.VoidEvent)
			})

			rd.Post("/tickets", h.BuyTicket)
			rd.Post("/selections/toggle", h.ToggleSelection)
			rd.Post("/selections/confirm", h.ConfirmSession)
		})
	})

	return r
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		logger.Debug("HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start))
	})
}
