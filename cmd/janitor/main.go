// janitor deletes stale one-time code rows on a cron schedule.
// Run with -once for a single purge cycle (useful from an external cron).
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lmittmann/tint"
	"github.com/msu-life/auth-service/config"
	"github.com/msu-life/auth-service/internal/infrastructure/postgres"
	ctxlog "github.com/msu-life/auth-service/internal/log"
	"github.com/msu-life/auth-service/internal/metrics"
	"github.com/msu-life/auth-service/internal/retention"
)

func main() {
	once := flag.Bool("once", false, "run one purge cycle and exit")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	logger := newLogger(cfg.Env, cfg.SlogLevel())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer pool.Close()

	metrics.Register()

	purger, err := retention.NewPurger(
		postgres.NewCodeRepository(pool),
		logger,
		cfg.PurgeCron,
		time.Duration(cfg.PurgeGraceSec)*time.Second,
	)
	if err != nil {
		log.Fatalf("purger: %v", err)
	}

	if *once {
		deleted, err := purger.RunOnce(ctx)
		if err != nil {
			log.Fatalf("purge: %v", err)
		}
		fmt.Printf("deleted %d stale code rows\n", deleted)
		return
	}

	purger.Start(ctx)
}

func newLogger(env string, level slog.Level) *slog.Logger {
	var inner slog.Handler
	if env == "local" {
		inner = tint.NewHandler(os.Stdout, &tint.Options{
			Level:      level,
			TimeFormat: time.Kitchen,
		})
	} else {
		inner = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		})
	}
	return slog.New(ctxlog.NewContextHandler(inner))
}
