// Package app wires configuration, storage, services, and the HTTP server
// into a runnable application.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/dkosarev/trackfilter-backend/internal/adapter/postgres"
	issuerepo "github.com/dkosarev/trackfilter-backend/internal/adapter/postgres/issue"
	journalrepo "github.com/dkosarev/trackfilter-backend/internal/adapter/postgres/journal"
	participantrepo "github.com/dkosarev/trackfilter-backend/internal/adapter/postgres/participant"
	"github.com/dkosarev/trackfilter-backend/internal/adapter/postgres/usergroup"
	visitrepo "github.com/dkosarev/trackfilter-backend/internal/adapter/postgres/visit"
	"github.com/dkosarev/trackfilter-backend/internal/auth"
	"github.com/dkosarev/trackfilter-backend/internal/config"
	participantsvc "github.com/dkosarev/trackfilter-backend/internal/service/participant"
	querysvc "github.com/dkosarev/trackfilter-backend/internal/service/query"
	visitsvc "github.com/dkosarev/trackfilter-backend/internal/service/visit"
	"github.com/dkosarev/trackfilter-backend/internal/transport/middleware"
	"github.com/dkosarev/trackfilter-backend/internal/transport/rest"
)

// Run is the application entry point. It loads configuration, connects to
// the database, builds the services and HTTP stack, and serves until ctx is
// canceled, then shuts down gracefully.
func Run(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := NewLogger(cfg.Log)

	logger.Info("starting application",
		slog.String("version", BuildVersion()),
		slog.String("log_level", cfg.Log.Level),
	)

	pool, err := postgres.NewPool(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()

	txm := postgres.NewTxManager(pool)

	issues := issuerepo.New(pool)
	journals := journalrepo.New(pool)
	visits := visitrepo.New(pool)
	participants := participantrepo.New(pool, txm)
	directory := usergroup.New(pool)

	queries, err := querysvc.NewService(logger, issues, journals, visits, participants, directory, cfg.Query.Location())
	if err != nil {
		return fmt.Errorf("build query service: %w", err)
	}
	visiting := visitsvc.NewService(logger, visits)
	recompute := participantsvc.NewService(logger, issues, journals, participants)

	jwtManager := auth.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.JWTIssuer, cfg.Auth.AccessTokenTTL)

	router := rest.NewRouter(rest.RouterDeps{
		Health:    rest.NewHealthHandler(pool, participants, BuildVersion()),
		Query:     rest.NewQueryHandler(queries, logger),
		Visit:     rest.NewVisitHandler(visiting, logger),
		Recompute: rest.NewRecomputeHandler(recompute, logger, cfg.Query.RecomputeTimeout),
	})

	mws := []middleware.Middleware{
		middleware.Recovery(logger),
		middleware.RequestID(),
		middleware.Logger(logger),
		middleware.CORS(cfg.CORS),
		middleware.Auth(jwtManager),
	}

	var limiter *middleware.RateLimiter
	if cfg.Server.RateLimitPerMinute > 0 {
		limiter = middleware.NewRateLimiter(time.Minute)
		defer limiter.Stop()
		mws = append(mws, limiter.Limit(cfg.Server.RateLimitPerMinute))
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      middleware.Chain(mws...)(router),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}

	return nil
}
