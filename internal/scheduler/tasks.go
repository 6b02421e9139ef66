package scheduler

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const TaskIdleDealScan = "deals.idle_scan"

const TaskCallbackReminderScan = "callbacks.reminder_scan"

// ScanPayload records when the scan was enqueued, mostly for queue
// inspection; the handlers work off the clock at execution time.
type ScanPayload struct {
	EnqueuedAt time.Time `json:"enqueuedAt"`
}

func NewIdleDealScanTask() (*asynq.Task, error) {
	data, err := json.Marshal(ScanPayload{EnqueuedAt: time.Now().UTC()})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskIdleDealScan, data), nil
}

func NewCallbackReminderScanTask() (*asynq.Task, error) {
	data, err := json.Marshal(ScanPayload{EnqueuedAt: time.Now().UTC()})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskCallbackReminderScan, data), nil
}
