// Package service implements callback scheduling and the staged reminder
// scan (24 hours, 1 hour, 10 minutes before the call).
package service

import (
	"context"
	"time"

	"loanflow_backend/internal/callbacks/repository"
	"loanflow_backend/internal/events"
	"loanflow_backend/platform/apperr"
	"loanflow_backend/platform/logger"

	"github.com/google/uuid"
)

// reminderHorizon bounds the due query: nothing outside the widest window
// can need a reminder.
const reminderHorizon = 24 * time.Hour

// CallbackStore is the repository surface the service uses.
type CallbackStore interface {
	Create(ctx context.Context, p repository.CreateParams) (repository.Callback, error)
	GetByID(ctx context.Context, id uuid.UUID) (repository.Callback, error)
	ListByUser(ctx context.Context, userID uuid.UUID, includeDone bool) ([]repository.Callback, error)
	UpdateStatus(ctx context.Context, id, userID uuid.UUID, status string) error
	ListDueWithin(ctx context.Context, now time.Time, horizon time.Duration) ([]repository.Callback, error)
	MarkReminderSent(ctx context.Context, id uuid.UUID, stage string) (bool, error)
}

type Service struct {
	store CallbackStore
	bus   events.Bus
	log   *logger.Logger
	now   func() time.Time
}

func New(store CallbackStore, bus events.Bus, log *logger.Logger) *Service {
	return &Service{
		store: store,
		bus:   bus,
		log:   log,
		now:   time.Now,
	}
}

// Schedule books a callback and notifies the counterparty.
func (s *Service) Schedule(ctx context.Context, p repository.CreateParams) (repository.Callback, error) {
	if !p.ScheduledAt.After(s.now()) {
		return repository.Callback{}, apperr.Validation("scheduledAt must be in the future")
	}

	cb, err := s.store.Create(ctx, p)
	if err != nil {
		return repository.Callback{}, err
	}

	if err := s.bus.PublishSync(ctx, events.CallbackScheduled{
		BaseEvent:     events.NewBaseEvent(),
		CallbackID:    cb.ID,
		ScheduledBy:   cb.ScheduledBy,
		ContactUserID: cb.ContactUserID,
		DealID:        cb.DealID,
		Title:         cb.Title,
	}); err != nil {
		s.log.Error("callback scheduled notification failed", "error", err, "callbackId", cb.ID)
	}

	return cb, nil
}

func (s *Service) List(ctx context.Context, userID uuid.UUID, includeDone bool) ([]repository.Callback, error) {
	return s.store.ListByUser(ctx, userID, includeDone)
}

func (s *Service) Complete(ctx context.Context, id, userID uuid.UUID) error {
	return s.store.UpdateStatus(ctx, id, userID, repository.StatusCompleted)
}

func (s *Service) Cancel(ctx context.Context, id, userID uuid.UUID) error {
	return s.store.UpdateStatus(ctx, id, userID, repository.StatusCancelled)
}

// ReminderScanResult summarizes one reminder pass.
type ReminderScanResult struct {
	Scanned   int `json:"scanned"`
	Processed int `json:"processed"`
	Failures  int `json:"failures"`
}

// ProcessDueReminders delivers at most one reminder stage per callback per
// pass. The stage flag is claimed before delivery, so overlapping scans
// cannot send the same reminder twice; a crash after the claim drops that
// one reminder, which at-most-once semantics accept.
func (s *Service) ProcessDueReminders(ctx context.Context) (ReminderScanResult, error) {
	now := s.now()
	due, err := s.store.ListDueWithin(ctx, now, reminderHorizon)
	if err != nil {
		return ReminderScanResult{}, err
	}

	result := ReminderScanResult{Scanned: len(due)}
	for _, cb := range due {
		stage := dueStage(cb, now)
		if stage == "" {
			continue
		}

		claimed, err := s.store.MarkReminderSent(ctx, cb.ID, stage)
		if err != nil {
			result.Failures++
			s.log.Error("failed to claim reminder stage", "error", err, "callbackId", cb.ID, "stage", stage)
			continue
		}
		if !claimed {
			continue
		}

		if err := s.bus.PublishSync(ctx, events.CallbackReminderDue{
			BaseEvent:   events.NewBaseEvent(),
			CallbackID:  cb.ID,
			Stage:       stage,
			Title:       cb.Title,
			Notes:       cb.Notes,
			ScheduledAt: cb.ScheduledAt,
			Parties:     []uuid.UUID{cb.ScheduledBy, cb.ContactUserID},
			DealID:      cb.DealID,
		}); err != nil {
			result.Failures++
			s.log.Error("reminder delivery failed", "error", err, "callbackId", cb.ID, "stage", stage)
			continue
		}

		result.Processed++
	}

	s.log.Info("callback reminder scan complete",
		"scanned", result.Scanned,
		"processed", result.Processed,
		"failures", result.Failures,
	)

	return result, nil
}

// dueStage picks which reminder window the callback sits in right now. The
// windows are disjoint: (23h, 24h], (50m, 1h], (5m, 10m]. A callback whose
// window passed while a flag was unsent gets no late reminder; the next
// window covers it.
func dueStage(cb repository.Callback, now time.Time) string {
	until := cb.ScheduledAt.Sub(now)

	switch {
	case until > 5*time.Minute && until <= 10*time.Minute:
		if !cb.Reminder10mSent {
			return events.ReminderStage10Minutes
		}
	case until > 50*time.Minute && until <= time.Hour:
		if !cb.Reminder1hSent {
			return events.ReminderStage1Hour
		}
	case until > 23*time.Hour && until <= 24*time.Hour:
		if !cb.Reminder24hSent {
			return events.ReminderStage24Hours
		}
	}

	return ""
}
