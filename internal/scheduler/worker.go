package scheduler

import (
	"context"
	"fmt"

	callbackservice "loanflow_backend/internal/callbacks/service"
	dealservice "loanflow_backend/internal/deals/service"
	"loanflow_backend/platform/config"
	"loanflow_backend/platform/logger"

	"github.com/hibiken/asynq"
)

// IdleScanner runs one idle deal pass.
type IdleScanner interface {
	Scan(ctx context.Context) (dealservice.IdleScanResult, error)
}

// ReminderProcessor runs one callback reminder pass.
type ReminderProcessor interface {
	ProcessDueReminders(ctx context.Context) (callbackservice.ReminderScanResult, error)
}

type Worker struct {
	server    *asynq.Server
	mux       *asynq.ServeMux
	idle      IdleScanner
	reminders ReminderProcessor
	log       *logger.Logger
}

func NewWorker(cfg config.SchedulerConfig, idle IdleScanner, reminders ReminderProcessor, log *logger.Logger) (*Worker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	queue := cfg.GetAsynqQueueName()
	if queue == "" {
		queue = "default"
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queue: 1,
		},
	})

	mux := asynq.NewServeMux()
	w := &Worker{
		server:    server,
		mux:       mux,
		idle:      idle,
		reminders: reminders,
		log:       log,
	}

	mux.HandleFunc(TaskIdleDealScan, w.handleIdleDealScan)
	mux.HandleFunc(TaskCallbackReminderScan, w.handleCallbackReminderScan)

	return w, nil
}

func (w *Worker) handleIdleDealScan(ctx context.Context, _ *asynq.Task) error {
	if w.idle == nil {
		return nil
	}

	result, err := w.idle.Scan(ctx)
	if err != nil {
		return err
	}

	w.log.Info("scheduled idle deal scan finished",
		"found", result.IdleDealsFound,
		"notified", result.NotificationsCreated,
		"skipped", result.Skipped,
		"failures", result.Failures,
	)
	return nil
}

func (w *Worker) handleCallbackReminderScan(ctx context.Context, _ *asynq.Task) error {
	if w.reminders == nil {
		return nil
	}

	result, err := w.reminders.ProcessDueReminders(ctx)
	if err != nil {
		return err
	}

	w.log.Info("scheduled callback reminder scan finished",
		"scanned", result.Scanned,
		"processed", result.Processed,
		"failures", result.Failures,
	)
	return nil
}

// Run blocks until the context is cancelled.
func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
	}
}
