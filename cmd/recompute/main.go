// Command recompute rebuilds every issue's participant set from the journal.
// It is intended to be invoked by an external cron job after bulk imports or
// on a schedule, not as an in-process goroutine.
//
// Exit codes: 0 = success, 1 = error.
package main

import (
	"context"
	"log"
	"log/slog"
	"os"

	"github.com/dkosarev/trackfilter-backend/internal/adapter/postgres"
	"github.com/dkosarev/trackfilter-backend/internal/adapter/postgres/issue"
	"github.com/dkosarev/trackfilter-backend/internal/adapter/postgres/journal"
	participantrepo "github.com/dkosarev/trackfilter-backend/internal/adapter/postgres/participant"
	"github.com/dkosarev/trackfilter-backend/internal/app"
	"github.com/dkosarev/trackfilter-backend/internal/config"
	"github.com/dkosarev/trackfilter-backend/internal/service/participant"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger := app.NewLogger(cfg.Log)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Query.RecomputeTimeout)
	defer cancel()

	pool, err := postgres.NewPool(ctx, cfg.Database)
	if err != nil {
		logger.Error("connect to database", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer pool.Close()

	svc := participant.NewService(logger,
		issue.New(pool),
		journal.New(pool),
		participantrepo.New(pool, postgres.NewTxManager(pool)),
	)

	done, err := svc.RecomputeAll(ctx)
	if err != nil {
		logger.Error("participant recompute failed",
			slog.String("error", err.Error()),
			slog.Int("issues_done", done),
		)
		os.Exit(1)
	}

	logger.Info("participant recompute completed", slog.Int("issues", done))
}
