package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	callbackrepo "loanflow_backend/internal/callbacks/repository"
	callbackservice "loanflow_backend/internal/callbacks/service"
	dealrepo "loanflow_backend/internal/deals/repository"
	dealservice "loanflow_backend/internal/deals/service"
	"loanflow_backend/internal/email"
	"loanflow_backend/internal/events"
	"loanflow_backend/internal/notification"
	"loanflow_backend/internal/scheduler"
	"loanflow_backend/internal/sms"
	taskrepo "loanflow_backend/internal/tasks/repository"
	"loanflow_backend/platform/config"
	"loanflow_backend/platform/db"
	"loanflow_backend/platform/logger"

	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting scheduler", "env", cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var pool *pgxpool.Pool
	if err := withRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()

	eventBus := events.NewInMemoryBus(log)

	sender, err := email.NewSender(cfg)
	if err != nil {
		log.Error("failed to initialize email sender", "error", err)
		panic("failed to initialize email sender: " + err.Error())
	}

	// Delivery happens through the notification module's event handlers,
	// the same path the API process uses.
	notificationModule := notification.New(pool, sender, log)
	notificationModule.SetSMSSender(sms.NewClient(cfg, log))
	notificationModule.RegisterHandlers(eventBus)

	scanner := dealservice.NewIdleScanner(
		dealrepo.New(pool),
		notificationModule.Dispatcher(),
		taskrepo.New(pool),
		cfg.GetIdleDealThreshold(),
		cfg.GetIdleWarningLookback(),
		log,
	)
	callbackSvc := callbackservice.New(callbackrepo.New(pool), eventBus, log)

	cron, err := scheduler.NewCron(cfg, log)
	if err != nil {
		log.Error("failed to initialize cron scheduler", "error", err)
		panic("failed to initialize cron scheduler: " + err.Error())
	}
	go cron.Run(ctx)

	worker, err := scheduler.NewWorker(cfg, scanner, callbackSvc, log)
	if err != nil {
		log.Error("failed to initialize scheduler worker", "error", err)
		panic("failed to initialize scheduler worker: " + err.Error())
	}

	worker.Run(ctx)
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return errors.New(name + ": invalid retry attempts")
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)
		}

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return errors.New(name + ": " + lastErr.Error())
}
