package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"loanflow_backend/internal/callbacks/repository"
	"loanflow_backend/internal/events"
	"loanflow_backend/platform/apperr"
	"loanflow_backend/platform/logger"

	"github.com/google/uuid"
)

type fakeCallbackStore struct {
	callbacks []repository.Callback
	created   []repository.CreateParams
	claims    []string
	claimFail map[uuid.UUID]bool
	claimErr  error
}

func (f *fakeCallbackStore) Create(_ context.Context, p repository.CreateParams) (repository.Callback, error) {
	f.created = append(f.created, p)
	return repository.Callback{
		ID:            uuid.New(),
		Title:         p.Title,
		Notes:         p.Notes,
		ScheduledBy:   p.ScheduledBy,
		ContactUserID: p.ContactUserID,
		DealID:        p.DealID,
		ScheduledAt:   p.ScheduledAt,
		Status:        repository.StatusPending,
	}, nil
}

func (f *fakeCallbackStore) GetByID(_ context.Context, id uuid.UUID) (repository.Callback, error) {
	for _, cb := range f.callbacks {
		if cb.ID == id {
			return cb, nil
		}
	}
	return repository.Callback{}, apperr.NotFound("callback not found")
}

func (f *fakeCallbackStore) ListByUser(_ context.Context, _ uuid.UUID, _ bool) ([]repository.Callback, error) {
	return f.callbacks, nil
}

func (f *fakeCallbackStore) UpdateStatus(_ context.Context, _, _ uuid.UUID, _ string) error {
	return nil
}

func (f *fakeCallbackStore) ListDueWithin(_ context.Context, _ time.Time, _ time.Duration) ([]repository.Callback, error) {
	return f.callbacks, nil
}

func (f *fakeCallbackStore) MarkReminderSent(_ context.Context, id uuid.UUID, stage string) (bool, error) {
	if f.claimErr != nil {
		return false, f.claimErr
	}
	if f.claimFail[id] {
		return false, nil
	}
	f.claims = append(f.claims, stage)
	return true, nil
}

type fakeCallbackBus struct {
	published []events.Event
	syncErr   error
}

func (f *fakeCallbackBus) Publish(_ context.Context, event events.Event) {
	f.published = append(f.published, event)
}

func (f *fakeCallbackBus) PublishSync(_ context.Context, event events.Event) error {
	if f.syncErr != nil {
		return f.syncErr
	}
	f.published = append(f.published, event)
	return nil
}

func (f *fakeCallbackBus) Subscribe(_ string, _ events.Handler) {}

var scanNow = time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)

func newTestCallbackService(store *fakeCallbackStore, bus *fakeCallbackBus) *Service {
	s := New(store, bus, logger.New("development"))
	s.now = func() time.Time { return scanNow }
	return s
}

func pendingCallback(until time.Duration) repository.Callback {
	return repository.Callback{
		ID:            uuid.New(),
		Title:         "Rate discussion",
		ScheduledBy:   uuid.New(),
		ContactUserID: uuid.New(),
		ScheduledAt:   scanNow.Add(until),
		Status:        repository.StatusPending,
	}
}

func TestScheduleRejectsPastTimes(t *testing.T) {
	svc := newTestCallbackService(&fakeCallbackStore{}, &fakeCallbackBus{})

	_, err := svc.Schedule(context.Background(), repository.CreateParams{
		Title:         "too late",
		ScheduledBy:   uuid.New(),
		ContactUserID: uuid.New(),
		ScheduledAt:   scanNow.Add(-time.Minute),
	})
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("past callback should be rejected, got %v", err)
	}
}

func TestSchedulePublishesEvent(t *testing.T) {
	store := &fakeCallbackStore{}
	bus := &fakeCallbackBus{}
	svc := newTestCallbackService(store, bus)

	cb, err := svc.Schedule(context.Background(), repository.CreateParams{
		Title:         "intro call",
		ScheduledBy:   uuid.New(),
		ContactUserID: uuid.New(),
		ScheduledAt:   scanNow.Add(2 * time.Hour),
	})
	if err != nil {
		t.Fatalf("Schedule returned error: %v", err)
	}
	if len(bus.published) != 1 {
		t.Fatalf("expected 1 event, got %d", len(bus.published))
	}
	evt, ok := bus.published[0].(events.CallbackScheduled)
	if !ok {
		t.Fatalf("wrong event type %T", bus.published[0])
	}
	if evt.CallbackID != cb.ID {
		t.Fatal("event should reference the created callback")
	}
}

func TestSchedulePublishFailureIsSwallowed(t *testing.T) {
	svc := newTestCallbackService(&fakeCallbackStore{}, &fakeCallbackBus{syncErr: errors.New("no handlers")})

	if _, err := svc.Schedule(context.Background(), repository.CreateParams{
		Title:         "x",
		ScheduledBy:   uuid.New(),
		ContactUserID: uuid.New(),
		ScheduledAt:   scanNow.Add(time.Hour),
	}); err != nil {
		t.Fatalf("event failure must not fail scheduling: %v", err)
	}
}

func TestDueStageWindows(t *testing.T) {
	tests := []struct {
		name  string
		until time.Duration
		sent  repository.Callback
		want  string
	}{
		{name: "exactly 24h", until: 24 * time.Hour, want: events.ReminderStage24Hours},
		{name: "23h30m", until: 23*time.Hour + 30*time.Minute, want: events.ReminderStage24Hours},
		{name: "exactly 23h is outside", until: 23 * time.Hour, want: ""},
		{name: "exactly 1h", until: time.Hour, want: events.ReminderStage1Hour},
		{name: "55m", until: 55 * time.Minute, want: events.ReminderStage1Hour},
		{name: "exactly 50m is outside", until: 50 * time.Minute, want: ""},
		{name: "exactly 10m", until: 10 * time.Minute, want: events.ReminderStage10Minutes},
		{name: "7m", until: 7 * time.Minute, want: events.ReminderStage10Minutes},
		{name: "exactly 5m is outside", until: 5 * time.Minute, want: ""},
		{name: "between windows", until: 12 * time.Hour, want: ""},
		{name: "already past", until: -time.Minute, want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cb := pendingCallback(tt.until)
			if got := dueStage(cb, scanNow); got != tt.want {
				t.Fatalf("dueStage(%s) = %q, want %q", tt.until, got, tt.want)
			}
		})
	}
}

func TestDueStageHonorsSentFlags(t *testing.T) {
	cb := pendingCallback(9 * time.Minute)
	cb.Reminder10mSent = true
	if got := dueStage(cb, scanNow); got != "" {
		t.Fatalf("sent flag should suppress the stage, got %q", got)
	}

	cb = pendingCallback(23*time.Hour + 30*time.Minute)
	cb.Reminder24hSent = true
	if got := dueStage(cb, scanNow); got != "" {
		t.Fatalf("sent 24h flag should suppress the stage, got %q", got)
	}
}

func TestProcessDueRemindersClaimsThenPublishes(t *testing.T) {
	cb := pendingCallback(58 * time.Minute)
	store := &fakeCallbackStore{callbacks: []repository.Callback{cb}}
	bus := &fakeCallbackBus{}
	svc := newTestCallbackService(store, bus)

	result, err := svc.ProcessDueReminders(context.Background())
	if err != nil {
		t.Fatalf("ProcessDueReminders returned error: %v", err)
	}
	if result.Scanned != 1 || result.Processed != 1 || result.Failures != 0 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if len(store.claims) != 1 || store.claims[0] != events.ReminderStage1Hour {
		t.Fatalf("1h stage should be claimed, got %v", store.claims)
	}

	evt, ok := bus.published[0].(events.CallbackReminderDue)
	if !ok {
		t.Fatalf("wrong event type %T", bus.published[0])
	}
	if evt.Stage != events.ReminderStage1Hour {
		t.Fatalf("event stage = %s", evt.Stage)
	}
	if len(evt.Parties) != 2 || evt.Parties[0] != cb.ScheduledBy || evt.Parties[1] != cb.ContactUserID {
		t.Fatalf("both parties should be on the event: %+v", evt.Parties)
	}
}

func TestProcessDueRemindersLostClaimSkipsDelivery(t *testing.T) {
	cb := pendingCallback(58 * time.Minute)
	store := &fakeCallbackStore{
		callbacks: []repository.Callback{cb},
		claimFail: map[uuid.UUID]bool{cb.ID: true},
	}
	bus := &fakeCallbackBus{}
	svc := newTestCallbackService(store, bus)

	result, err := svc.ProcessDueReminders(context.Background())
	if err != nil {
		t.Fatalf("ProcessDueReminders returned error: %v", err)
	}
	if result.Processed != 0 || result.Failures != 0 {
		t.Fatalf("lost claim is not a failure: %+v", result)
	}
	if len(bus.published) != 0 {
		t.Fatal("a lost claim must not deliver")
	}
}

func TestProcessDueRemindersOutOfWindowIsUntouched(t *testing.T) {
	store := &fakeCallbackStore{callbacks: []repository.Callback{pendingCallback(12 * time.Hour)}}
	bus := &fakeCallbackBus{}
	svc := newTestCallbackService(store, bus)

	result, err := svc.ProcessDueReminders(context.Background())
	if err != nil {
		t.Fatalf("ProcessDueReminders returned error: %v", err)
	}
	if result.Scanned != 1 || result.Processed != 0 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if len(store.claims) != 0 {
		t.Fatal("no stage should be claimed outside the windows")
	}
}

func TestProcessDueRemindersAtMostOneStagePerPass(t *testing.T) {
	// Sits inside the 10m window with every flag still unset; only the 10m
	// stage may fire on this pass.
	cb := pendingCallback(8 * time.Minute)
	store := &fakeCallbackStore{callbacks: []repository.Callback{cb}}
	svc := newTestCallbackService(store, &fakeCallbackBus{})

	if _, err := svc.ProcessDueReminders(context.Background()); err != nil {
		t.Fatalf("ProcessDueReminders returned error: %v", err)
	}
	if len(store.claims) != 1 || store.claims[0] != events.ReminderStage10Minutes {
		t.Fatalf("exactly one stage per pass, got %v", store.claims)
	}
}

func TestProcessDueRemindersDeliveryFailureCounts(t *testing.T) {
	cb := pendingCallback(58 * time.Minute)
	store := &fakeCallbackStore{callbacks: []repository.Callback{cb}}
	svc := newTestCallbackService(store, &fakeCallbackBus{syncErr: errors.New("handler down")})

	result, err := svc.ProcessDueReminders(context.Background())
	if err != nil {
		t.Fatalf("ProcessDueReminders returned error: %v", err)
	}
	if result.Failures != 1 || result.Processed != 0 {
		t.Fatalf("delivery failure should count: %+v", result)
	}
	// The claim already happened: the flag stays set and the reminder is
	// dropped rather than retried.
	if len(store.claims) != 1 {
		t.Fatalf("claim should precede delivery, got %v", store.claims)
	}
}
