// Package app wires the nanochat server runtime: config, logging, database,
// the auth and chat subsystems, and the HTTP server.
package app

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"

	"nanochat/internal/auth"
	"nanochat/internal/chat"
	"nanochat/internal/identity"
	"nanochat/internal/security/password"
	"nanochat/internal/security/token"
)

// App owns the wired server runtime.
type App struct {
	cfg Config
	log *slog.Logger

	pool    *pgxpool.Pool
	metrics *Metrics
	reg     *prometheus.Registry

	authHandler *auth.Handler
	authTokens  *auth.TokenManager
	chatHandler *chat.Handler
	wsGateway   *chat.WSGateway
}

// New constructs a fully wired App from config and logger.
func New(ctx context.Context, cfg Config, log *slog.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = NewLogger(cfg.LogLevel)
	}

	if cfg.Migrate {
		if err := RunMigrations(ctx, cfg.DatabaseURL); err != nil {
			return nil, err
		}
		log.Info("db.migrated")
	}

	pool, err := NewDBPool(ctx, cfg)
	if err != nil {
		return nil, err
	}

	tokens, err := auth.NewTokenManager(
		[]byte(cfg.AccessTokenSecret),
		[]byte(cfg.RefreshTokenSecret),
		cfg.AccessTokenTTL,
		cfg.RefreshTokenTTL,
	)
	if err != nil {
		pool.Close()
		return nil, err
	}

	cookieKey, err := cfg.CookieKey()
	if err != nil {
		pool.Close()
		return nil, err
	}
	cookies, err := auth.NewCookieCodec(cookieKey, cfg.CookieSecure)
	if err != nil {
		pool.Close()
		return nil, err
	}

	hasher, err := password.NewHasher([]byte(cfg.PasswordPepper), password.DefaultParams())
	if err != nil {
		pool.Close()
		return nil, err
	}
	hashPool := password.NewPool(cfg.HashWorkers)

	users := identity.NewPostgresStore(pool)
	sessions := auth.NewPostgresSessionStore(pool)
	authSvc := auth.NewService(log, users, sessions, hasher, hashPool, tokens,
		token.NewDigest([]byte(cfg.SessionHashKey)))

	hub := chat.NewHub(log)
	chatStore := chat.NewPostgresStore(pool)

	reg := prometheus.NewRegistry()

	return &App{
		cfg:         cfg,
		log:         log,
		pool:        pool,
		metrics:     NewMetrics(reg),
		reg:         reg,
		authHandler: auth.NewHandler(log, authSvc, cookies),
		authTokens:  tokens,
		chatHandler: chat.NewHandler(log, chatStore, hub),
		wsGateway:   chat.NewWSGateway(log, hub, tokens),
	}, nil
}

// Run starts the HTTP server and blocks until context cancellation or a
// fatal server error.
func (a *App) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              a.cfg.HTTPAddr,
		Handler:           WithRequestLogging(a.routes(), a.log),
		ReadHeaderTimeout: a.cfg.ReadHeaderTimeout,
		ReadTimeout:       a.cfg.ReadTimeout,
		WriteTimeout:      a.cfg.WriteTimeout,
		IdleTimeout:       a.cfg.IdleTimeout,
		MaxHeaderBytes:    a.cfg.MaxHeaderBytes,
	}

	a.log.Info("server.start", "addr", a.cfg.HTTPAddr)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		a.log.Info("server.stop", "reason", "context_done")
	case err := <-errCh:
		a.log.Error("server.fail", "err", err)
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.log.Error("server.shutdown.fail", "err", err)
		return err
	}

	a.pool.Close()
	a.log.Info("server.stopped")
	return nil
}
