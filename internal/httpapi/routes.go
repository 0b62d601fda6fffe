package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/DoyleJ11/signal-dashboard/internal/fleet"
	"github.com/DoyleJ11/signal-dashboard/internal/ws"
)

// SetupRoutes wires the read-only display API. hist may be nil when no audit
// database is configured. origins are passed through to the websocket handler.
func SetupRoutes(fl *fleet.Fleet, hist History, log *zap.Logger, origins ...string) http.Handler {
	if log == nil {
		log = zap.NewNop()
	}
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(log.Named("http")))

	// Public routes
	r.Get("/healthz", Healthz)
	r.Get("/intersections", ListIntersections(fl))
	r.Get("/intersections/{id}/frame", GetFrame(fl))
	r.Get("/intersections/{id}/polls", ListPolls(fl, hist))
	r.Get("/ws", ws.Handler(fl, log.Named("ws"), origins...))
	return r
}
