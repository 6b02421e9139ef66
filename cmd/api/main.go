package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"loanflow_backend/internal/callbacks"
	"loanflow_backend/internal/deals"
	dealrepo "loanflow_backend/internal/deals/repository"
	"loanflow_backend/internal/email"
	"loanflow_backend/internal/events"
	apphttp "loanflow_backend/internal/http"
	"loanflow_backend/internal/http/router"
	"loanflow_backend/internal/notification"
	"loanflow_backend/internal/sms"
	"loanflow_backend/internal/tasks"
	taskrepo "loanflow_backend/internal/tasks/repository"
	"loanflow_backend/internal/workflow"
	"loanflow_backend/migrations"
	"loanflow_backend/platform/config"
	"loanflow_backend/platform/db"
	"loanflow_backend/platform/logger"
	"loanflow_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	// Initialize structured logger
	log := logger.New(cfg.Env)
	log.Info("starting server", "env", cfg.Env, "addr", cfg.HTTPAddr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ========================================================================
	// Infrastructure Layer
	// ========================================================================

	if err := withRetry(ctx, log, "database migrations", 5, 2*time.Second, func() error {
		return db.RunMigrations(ctx, cfg, migrations.FS)
	}); err != nil {
		log.Error("failed to run database migrations", "error", err)
		panic("failed to run database migrations: " + err.Error())
	}
	log.Info("database migrations complete")

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
	log.Info("database connection established")

	// Event bus for decoupled communication between modules
	eventBus := events.NewInMemoryBus(log)

	sender, err := email.NewSender(cfg)
	if err != nil {
		log.Error("failed to initialize email sender", "error", err)
		panic("failed to initialize email sender: " + err.Error())
	}

	// Shared validator instance for dependency injection
	val := validator.New()

	// ========================================================================
	// Domain Modules (Composition Root)
	// ========================================================================

	// Notification module subscribes to domain events and owns channel fan-out
	notificationModule := notification.New(pool, sender, log)
	notificationModule.SetSMSSender(sms.NewClient(cfg, log))
	notificationModule.RegisterHandlers(eventBus)

	// The workflow engine reads deals and writes tasks through its own
	// repository instances; the repositories are stateless over the pool.
	dealsRepo := dealrepo.New(pool)
	tasksRepo := taskrepo.New(pool)

	workflowModule := workflow.NewModule(pool, val, dealsRepo, tasksRepo, notificationModule.Dispatcher(), log)
	dealsModule := deals.NewModule(pool, eventBus, workflowModule.Engine(), notificationModule.Dispatcher(), tasksRepo, cfg, val, log)
	callbacksModule := callbacks.NewModule(pool, eventBus, val, log)
	tasksModule := tasks.NewModule(tasksRepo, val)

	// ========================================================================
	// HTTP Layer
	// ========================================================================

	app := &apphttp.App{
		Config:   cfg,
		Logger:   log,
		Health:   db.NewPoolAdapter(pool),
		EventBus: eventBus,
		Modules: []apphttp.Module{
			dealsModule,
			workflowModule,
			callbacksModule,
			tasksModule,
			notificationModule,
		},
	}

	engine := router.New(app)

	srvErr := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", cfg.HTTPAddr)
		srvErr <- engine.Run(cfg.HTTPAddr)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received, gracefully shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = shutdownCtx
	case err := <-srvErr:
		if err != nil {
			log.Error("server error", "error", err)
			panic("server error: " + err.Error())
		}
	}
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return fmt.Errorf("%s: invalid retry attempts", name)
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
