package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"loanflow_backend/internal/deals/repository"
	"loanflow_backend/internal/notification"
	taskrepo "loanflow_backend/internal/tasks/repository"
	"loanflow_backend/platform/logger"

	"github.com/google/uuid"
)

type fakeIdleSource struct {
	deals   []repository.IdleDeal
	listErr error
	cutoff  time.Time
}

func (f *fakeIdleSource) ListIdle(_ context.Context, cutoff time.Time) ([]repository.IdleDeal, error) {
	f.cutoff = cutoff
	return f.deals, f.listErr
}

type fakeIdleNotifier struct {
	dispatched  []notification.DispatchParams
	recent      map[uuid.UUID]bool
	recentErr   error
	dispatchErr map[uuid.UUID]error
}

func (f *fakeIdleNotifier) Dispatch(_ context.Context, p notification.DispatchParams) error {
	if err := f.dispatchErr[p.UserID]; err != nil {
		return err
	}
	f.dispatched = append(f.dispatched, p)
	return nil
}

func (f *fakeIdleNotifier) HasRecentDealNotification(_ context.Context, dealID uuid.UUID, _ string, _ time.Time) (bool, error) {
	if f.recentErr != nil {
		return false, f.recentErr
	}
	return f.recent[dealID], nil
}

type fakeIdleTasks struct {
	created []taskrepo.CreateParams
	err     error
}

func (f *fakeIdleTasks) Create(_ context.Context, p taskrepo.CreateParams) (taskrepo.Task, error) {
	if f.err != nil {
		return taskrepo.Task{}, f.err
	}
	f.created = append(f.created, p)
	return taskrepo.Task{ID: uuid.New()}, nil
}

func newTestScanner(src *fakeIdleSource, notifier *fakeIdleNotifier, tasks *fakeIdleTasks) *IdleScanner {
	s := NewIdleScanner(src, notifier, tasks, 7*24*time.Hour, 7*24*time.Hour, logger.New("development"))
	s.now = func() time.Time { return time.Date(2026, 3, 10, 3, 0, 0, 0, time.UTC) }
	return s
}

func idleDeal(broker *uuid.UUID, idleFor time.Duration) repository.IdleDeal {
	return repository.IdleDeal{
		DealID:    uuid.New(),
		ClientID:  uuid.New(),
		BrokerID:  broker,
		LoanType:  "mortgage",
		Status:    repository.StatusInProgress,
		UpdatedAt: time.Date(2026, 3, 10, 3, 0, 0, 0, time.UTC).Add(-idleFor),
	}
}

func TestScanWarnsBothPartiesAndCreatesTask(t *testing.T) {
	broker := uuid.New()
	deal := idleDeal(&broker, 9*24*time.Hour)
	src := &fakeIdleSource{deals: []repository.IdleDeal{deal}}
	notifier := &fakeIdleNotifier{}
	tasks := &fakeIdleTasks{}

	result, err := newTestScanner(src, notifier, tasks).Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan returned error: %v", err)
	}

	if result.IdleDealsFound != 1 || result.NotificationsCreated != 2 || result.Failures != 0 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if len(notifier.dispatched) != 2 {
		t.Fatalf("expected client + broker warnings, got %d", len(notifier.dispatched))
	}
	if notifier.dispatched[0].UserID != deal.ClientID || notifier.dispatched[1].UserID != broker {
		t.Fatalf("wrong recipients: %+v", notifier.dispatched)
	}
	for _, d := range notifier.dispatched {
		if d.Category != notification.CategoryIdleDealWarning {
			t.Fatalf("warning category wrong: %s", d.Category)
		}
		if d.DealID == nil || *d.DealID != deal.DealID {
			t.Fatal("warning should reference the deal")
		}
	}

	if len(tasks.created) != 1 {
		t.Fatalf("expected 1 review task, got %d", len(tasks.created))
	}
	task := tasks.created[0]
	if task.Title != "Review Idle Deal" || task.Priority != taskrepo.PriorityHigh {
		t.Fatalf("task shape wrong: %+v", task)
	}
	if task.AssignedTo != broker {
		t.Fatalf("task should go to the broker, got %s", task.AssignedTo)
	}
	wantDue := time.Date(2026, 3, 13, 3, 0, 0, 0, time.UTC)
	if task.DueDate == nil || !task.DueDate.Equal(wantDue) {
		t.Fatalf("task due date = %v, want %s", task.DueDate, wantDue)
	}
}

func TestScanWithoutBrokerTasksClient(t *testing.T) {
	deal := idleDeal(nil, 8*24*time.Hour)
	src := &fakeIdleSource{deals: []repository.IdleDeal{deal}}
	notifier := &fakeIdleNotifier{}
	tasks := &fakeIdleTasks{}

	result, err := newTestScanner(src, notifier, tasks).Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan returned error: %v", err)
	}
	if result.NotificationsCreated != 1 {
		t.Fatalf("only the client should be warned, got %d", result.NotificationsCreated)
	}
	if len(tasks.created) != 1 || tasks.created[0].AssignedTo != deal.ClientID {
		t.Fatalf("task should fall back to the client: %+v", tasks.created)
	}
}

func TestScanSkipsRecentlyWarnedDeals(t *testing.T) {
	deal := idleDeal(nil, 8*24*time.Hour)
	src := &fakeIdleSource{deals: []repository.IdleDeal{deal}}
	notifier := &fakeIdleNotifier{recent: map[uuid.UUID]bool{deal.DealID: true}}
	tasks := &fakeIdleTasks{}

	result, err := newTestScanner(src, notifier, tasks).Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan returned error: %v", err)
	}
	if result.Skipped != 1 || result.NotificationsCreated != 0 {
		t.Fatalf("warned deal should be skipped: %+v", result)
	}
	if len(tasks.created) != 0 {
		t.Fatal("skipped deal must not create a task")
	}
}

func TestScanClientFailureStillCreatesTask(t *testing.T) {
	broker := uuid.New()
	deal := idleDeal(&broker, 9*24*time.Hour)
	src := &fakeIdleSource{deals: []repository.IdleDeal{deal}}
	notifier := &fakeIdleNotifier{dispatchErr: map[uuid.UUID]error{deal.ClientID: errors.New("inbox gone")}}
	tasks := &fakeIdleTasks{}

	result, err := newTestScanner(src, notifier, tasks).Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan returned error: %v", err)
	}
	if result.Failures != 1 {
		t.Fatalf("failed client warning should count as a failure: %+v", result)
	}
	if result.NotificationsCreated != 1 {
		t.Fatalf("broker warning should still land, got %d", result.NotificationsCreated)
	}
	if len(tasks.created) != 1 {
		t.Fatal("task creation is independent of notification failures")
	}
}

func TestScanOneBadDealDoesNotAbortBatch(t *testing.T) {
	bad := idleDeal(nil, 8*24*time.Hour)
	good := idleDeal(nil, 8*24*time.Hour)
	src := &fakeIdleSource{deals: []repository.IdleDeal{bad, good}}
	notifier := &fakeIdleNotifier{dispatchErr: map[uuid.UUID]error{bad.ClientID: errors.New("boom")}}
	tasks := &fakeIdleTasks{}

	result, err := newTestScanner(src, notifier, tasks).Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan returned error: %v", err)
	}
	if result.Failures != 1 {
		t.Fatalf("want 1 failure, got %d", result.Failures)
	}
	warned := false
	for _, d := range notifier.dispatched {
		if d.UserID == good.ClientID {
			warned = true
		}
	}
	if !warned {
		t.Fatal("the healthy deal should still be processed")
	}
}

func TestScanUsesThresholdCutoff(t *testing.T) {
	src := &fakeIdleSource{}
	s := newTestScanner(src, &fakeIdleNotifier{}, &fakeIdleTasks{})

	if _, err := s.Scan(context.Background()); err != nil {
		t.Fatalf("Scan returned error: %v", err)
	}
	want := time.Date(2026, 3, 3, 3, 0, 0, 0, time.UTC)
	if !src.cutoff.Equal(want) {
		t.Fatalf("cutoff = %s, want %s", src.cutoff, want)
	}
}

func TestScanListFailureIsFatal(t *testing.T) {
	src := &fakeIdleSource{listErr: errors.New("db down")}
	if _, err := newTestScanner(src, &fakeIdleNotifier{}, &fakeIdleTasks{}).Scan(context.Background()); err == nil {
		t.Fatal("list failure should fail the scan")
	}
}
