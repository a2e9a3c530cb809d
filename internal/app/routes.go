package app

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"nanochat/internal/auth"
)

func (a *App) routes() http.Handler {
	r := chi.NewRouter()

	r.Use(WithRequestID)
	r.Use(a.metrics.Middleware)
	r.Use(auth.Middleware(a.authTokens))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})

	r.Get("/readyz", func(w http.ResponseWriter, req *http.Request) {
		if err := PingDB(req.Context(), a.pool, 2*time.Second); err != nil {
			a.log.Info("readyz.db.not_ready", "err", err)
			http.Error(w, "db not ready", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready\n"))
	})

	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(a.reg, promhttp.HandlerOpts{}))

	r.Mount("/auth", a.authHandler.Routes())

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireUser)
		r.Mount("/users", a.chatHandler.UserRoutes())
		r.Mount("/messages", a.chatHandler.MessageRoutes())
	})

	// The gateway does its own token check: browsers cannot set headers on
	// a websocket upgrade.
	r.Get("/ws", a.wsGateway.HandleWS)

	return r
}
