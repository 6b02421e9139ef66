package scheduler

import (
	"context"
	"fmt"

	"loanflow_backend/platform/config"
	"loanflow_backend/platform/logger"

	"github.com/hibiken/asynq"
)

// Cron registers the periodic scan entries with asynq's scheduler. It only
// enqueues tasks; the Worker executes them, so running multiple cron
// processes is safe as long as the entries tolerate overlap (both scans do).
type Cron struct {
	scheduler *asynq.Scheduler
	log       *logger.Logger
}

func NewCron(cfg config.SchedulerConfig, log *logger.Logger) (*Cron, error) {
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

	scheduler := asynq.NewScheduler(opt, &asynq.SchedulerOpts{})

	idleTask, err := NewIdleDealScanTask()
	if err != nil {
		return nil, err
	}
	if _, err := scheduler.Register(cfg.GetIdleScanCron(), idleTask, asynq.Queue(queue)); err != nil {
		return nil, fmt.Errorf("register idle scan entry: %w", err)
	}

	reminderTask, err := NewCallbackReminderScanTask()
	if err != nil {
		return nil, err
	}
	if _, err := scheduler.Register(cfg.GetCallbackScanCron(), reminderTask, asynq.Queue(queue)); err != nil {
		return nil, fmt.Errorf("register callback reminder entry: %w", err)
	}

	return &Cron{scheduler: scheduler, log: log}, nil
}

// Run blocks until the context is cancelled.
func (c *Cron) Run(ctx context.Context) {
	if c == nil || c.scheduler == nil {
		return
	}

	go func() {
		<-ctx.Done()
		c.scheduler.Shutdown()
	}()

	if err := c.scheduler.Run(); err != nil {
		c.log.Error("cron scheduler stopped", "error", err)
	}
}
