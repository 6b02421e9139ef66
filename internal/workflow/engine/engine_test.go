package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"loanflow_backend/internal/notification"
	taskrepo "loanflow_backend/internal/tasks/repository"
	"loanflow_backend/internal/workflow/repository"
	"loanflow_backend/platform/logger"

	"github.com/google/uuid"
)

type fakeRuleSource struct {
	rules    []repository.Rule
	listErr  error
	recorded []repository.RecordExecutionParams
}

func (f *fakeRuleSource) ListActiveByTrigger(_ context.Context, _ string) ([]repository.Rule, error) {
	return f.rules, f.listErr
}

func (f *fakeRuleSource) RecordExecution(_ context.Context, p repository.RecordExecutionParams) error {
	f.recorded = append(f.recorded, p)
	return nil
}

type fakeDealStore struct {
	clientID uuid.UUID
	brokerID *uuid.UUID

	updatedFields   map[string]string
	assignedBrokers []uuid.UUID
	updateFieldErr  error
}

func (f *fakeDealStore) GetParties(_ context.Context, _ uuid.UUID) (uuid.UUID, *uuid.UUID, error) {
	return f.clientID, f.brokerID, nil
}

func (f *fakeDealStore) UpdateField(_ context.Context, _ uuid.UUID, field, value string) error {
	if f.updateFieldErr != nil {
		return f.updateFieldErr
	}
	if f.updatedFields == nil {
		f.updatedFields = map[string]string{}
	}
	f.updatedFields[field] = value
	return nil
}

func (f *fakeDealStore) SetAssignedBroker(_ context.Context, _, brokerID uuid.UUID) error {
	f.assignedBrokers = append(f.assignedBrokers, brokerID)
	return nil
}

type fakeTaskCreator struct {
	created []taskrepo.CreateParams
	err     error
}

func (f *fakeTaskCreator) Create(_ context.Context, p taskrepo.CreateParams) (taskrepo.Task, error) {
	if f.err != nil {
		return taskrepo.Task{}, f.err
	}
	f.created = append(f.created, p)
	return taskrepo.Task{ID: uuid.New()}, nil
}

type fakeNotifier struct {
	dispatched []notification.DispatchParams
	err        error
}

func (f *fakeNotifier) Dispatch(_ context.Context, p notification.DispatchParams) error {
	if f.err != nil {
		return f.err
	}
	f.dispatched = append(f.dispatched, p)
	return nil
}

func strPtr(s string) *string { return &s }

func newTestEngine(rules *fakeRuleSource, deals *fakeDealStore, tasks *fakeTaskCreator, notifier *fakeNotifier) *Engine {
	e := New(rules, deals, tasks, notifier, logger.New("development"))
	e.now = func() time.Time { return time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC) }
	return e
}

func statusInput(old, new string) StatusChangeInput {
	return StatusChangeInput{
		DealID:    uuid.New(),
		ClientID:  uuid.New(),
		ActorID:   uuid.New(),
		OldStatus: old,
		NewStatus: new,
		LoanType:  "mortgage",
	}
}

func TestMatchesWildcards(t *testing.T) {
	tests := []struct {
		name string
		from *string
		to   *string
		want bool
	}{
		{"both nil matches anything", nil, nil, true},
		{"from matches", strPtr("draft"), nil, true},
		{"from mismatch", strPtr("approved"), nil, false},
		{"to matches", nil, strPtr("submitted"), true},
		{"to mismatch", nil, strPtr("funded"), false},
		{"both match", strPtr("draft"), strPtr("submitted"), true},
		{"one of two mismatches", strPtr("draft"), strPtr("funded"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rule := repository.Rule{FromStatus: tt.from, ToStatus: tt.to}
			if got := matches(rule, "draft", "submitted"); got != tt.want {
				t.Fatalf("matches() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEvaluateStatusChangeExecutesMatchingRules(t *testing.T) {
	broker := uuid.New()
	deals := &fakeDealStore{brokerID: &broker}
	tasks := &fakeTaskCreator{}
	notifier := &fakeNotifier{}
	rules := &fakeRuleSource{rules: []repository.Rule{
		{
			ID:       uuid.New(),
			Name:     "on submit",
			ToStatus: strPtr("submitted"),
			Actions: []repository.Action{
				{Kind: repository.ActionCreateTask, CreateTask: &repository.CreateTaskAction{Title: "Review application", DueInDays: 3}},
				{Kind: repository.ActionSendNotification, SendNotification: &repository.SendNotificationAction{NotifyClient: true, Title: "Received", Message: "We got it"}},
			},
		},
		{
			ID:         uuid.New(),
			Name:       "unrelated",
			FromStatus: strPtr("approved"),
			Actions: []repository.Action{
				{Kind: repository.ActionCreateTask, CreateTask: &repository.CreateTaskAction{Title: "never runs"}},
			},
		},
	}}

	e := newTestEngine(rules, deals, tasks, notifier)
	in := statusInput("draft", "submitted")

	executed, err := e.EvaluateStatusChange(context.Background(), in)
	if err != nil {
		t.Fatalf("EvaluateStatusChange returned error: %v", err)
	}
	if executed != 2 {
		t.Fatalf("expected 2 executed actions, got %d", executed)
	}
	if len(tasks.created) != 1 {
		t.Fatalf("expected 1 task, got %d", len(tasks.created))
	}
	if len(notifier.dispatched) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(notifier.dispatched))
	}
	if len(rules.recorded) != 1 {
		t.Fatalf("only the matching rule should be recorded, got %d rows", len(rules.recorded))
	}
	if rules.recorded[0].Status != repository.ExecutionSuccess {
		t.Fatalf("expected success execution, got %s", rules.recorded[0].Status)
	}
}

func TestEvaluateStatusChangeRuleFailureIsIsolated(t *testing.T) {
	deals := &fakeDealStore{updateFieldErr: errors.New("column locked")}
	tasks := &fakeTaskCreator{}
	notifier := &fakeNotifier{}
	rules := &fakeRuleSource{rules: []repository.Rule{
		{
			ID:   uuid.New(),
			Name: "failing rule",
			Actions: []repository.Action{
				{Kind: repository.ActionUpdateField, UpdateField: &repository.UpdateFieldAction{Field: "status", Value: "approved"}},
				{Kind: repository.ActionCreateTask, CreateTask: &repository.CreateTaskAction{Title: "skipped by fail-fast"}},
			},
		},
		{
			ID:   uuid.New(),
			Name: "healthy rule",
			Actions: []repository.Action{
				{Kind: repository.ActionCreateTask, CreateTask: &repository.CreateTaskAction{Title: "still runs"}},
			},
		},
	}}

	e := newTestEngine(rules, deals, tasks, notifier)

	executed, err := e.EvaluateStatusChange(context.Background(), statusInput("draft", "submitted"))
	if err != nil {
		t.Fatalf("rule failure must not fail evaluation: %v", err)
	}
	if executed != 1 {
		t.Fatalf("only the healthy rule's action should count, got %d", executed)
	}
	if len(tasks.created) != 1 || tasks.created[0].Title != "still runs" {
		t.Fatalf("fail-fast should skip the second action of the failing rule: %+v", tasks.created)
	}

	if len(rules.recorded) != 2 {
		t.Fatalf("both rules should be recorded, got %d", len(rules.recorded))
	}
	failed := rules.recorded[0]
	if failed.Status != repository.ExecutionFailed {
		t.Fatalf("first rule should be recorded failed, got %s", failed.Status)
	}
	if failed.Error == nil || *failed.Error == "" {
		t.Fatal("failed execution must carry a non-empty error")
	}
	if rules.recorded[1].Status != repository.ExecutionSuccess {
		t.Fatalf("second rule should succeed, got %s", rules.recorded[1].Status)
	}
}

func TestEvaluateStatusChangeListErrorIsFatal(t *testing.T) {
	rules := &fakeRuleSource{listErr: errors.New("db down")}
	e := newTestEngine(rules, &fakeDealStore{}, &fakeTaskCreator{}, &fakeNotifier{})

	if _, err := e.EvaluateStatusChange(context.Background(), statusInput("draft", "submitted")); err == nil {
		t.Fatal("rule fetch failure should be returned to the caller")
	}
}

func TestCreateTaskDefaultsAssigneeToActor(t *testing.T) {
	tasks := &fakeTaskCreator{}
	rules := &fakeRuleSource{rules: []repository.Rule{{
		ID: uuid.New(),
		Actions: []repository.Action{
			{Kind: repository.ActionCreateTask, CreateTask: &repository.CreateTaskAction{Title: "Check docs", DueInDays: 5}},
		},
	}}}

	e := newTestEngine(rules, &fakeDealStore{}, tasks, &fakeNotifier{})
	in := statusInput("draft", "in_progress")

	if _, err := e.EvaluateStatusChange(context.Background(), in); err != nil {
		t.Fatalf("EvaluateStatusChange returned error: %v", err)
	}
	if len(tasks.created) != 1 {
		t.Fatalf("expected 1 task, got %d", len(tasks.created))
	}
	task := tasks.created[0]
	if task.AssignedTo != in.ActorID {
		t.Fatalf("unassigned task should default to the acting user, got %s", task.AssignedTo)
	}
	if task.DueDate == nil {
		t.Fatal("dueInDays > 0 should produce a due date")
	}
	wantDue := time.Date(2026, 3, 15, 9, 0, 0, 0, time.UTC)
	if !task.DueDate.Equal(wantDue) {
		t.Fatalf("due date = %s, want %s", task.DueDate, wantDue)
	}
}

func TestCreateTaskExplicitAssignee(t *testing.T) {
	assignee := uuid.New()
	tasks := &fakeTaskCreator{}
	rules := &fakeRuleSource{rules: []repository.Rule{{
		ID: uuid.New(),
		Actions: []repository.Action{
			{Kind: repository.ActionCreateTask, CreateTask: &repository.CreateTaskAction{Title: "x", AssignedTo: &assignee}},
		},
	}}}

	e := newTestEngine(rules, &fakeDealStore{}, tasks, &fakeNotifier{})
	if _, err := e.EvaluateStatusChange(context.Background(), statusInput("draft", "submitted")); err != nil {
		t.Fatalf("EvaluateStatusChange returned error: %v", err)
	}
	if tasks.created[0].AssignedTo != assignee {
		t.Fatalf("explicit assignee ignored, got %s", tasks.created[0].AssignedTo)
	}
	if tasks.created[0].DueDate != nil {
		t.Fatal("no dueInDays should mean no due date")
	}
}

func TestSendNotificationResolvesBothParties(t *testing.T) {
	broker := uuid.New()
	deals := &fakeDealStore{brokerID: &broker}
	notifier := &fakeNotifier{}
	rules := &fakeRuleSource{rules: []repository.Rule{{
		ID: uuid.New(),
		Actions: []repository.Action{
			{Kind: repository.ActionSendNotification, SendNotification: &repository.SendNotificationAction{
				NotifyClient: true, NotifyBroker: true, Title: "Moved", Message: "Deal moved", Email: true,
			}},
		},
	}}}

	e := newTestEngine(rules, deals, &fakeTaskCreator{}, notifier)
	in := statusInput("submitted", "in_progress")

	if _, err := e.EvaluateStatusChange(context.Background(), in); err != nil {
		t.Fatalf("EvaluateStatusChange returned error: %v", err)
	}
	if len(notifier.dispatched) != 2 {
		t.Fatalf("expected client + broker notifications, got %d", len(notifier.dispatched))
	}
	if notifier.dispatched[0].UserID != in.ClientID {
		t.Fatalf("first recipient should be the client, got %s", notifier.dispatched[0].UserID)
	}
	if notifier.dispatched[1].UserID != broker {
		t.Fatalf("second recipient should be the broker, got %s", notifier.dispatched[1].UserID)
	}
	if !notifier.dispatched[0].Email {
		t.Fatal("email toggle should carry through to dispatch")
	}
	if notifier.dispatched[0].Category != notification.CategoryWorkflow {
		t.Fatalf("default category should be workflow, got %s", notifier.dispatched[0].Category)
	}
}

func TestSendNotificationBrokerToggleWithoutBroker(t *testing.T) {
	notifier := &fakeNotifier{}
	rules := &fakeRuleSource{rules: []repository.Rule{{
		ID: uuid.New(),
		Actions: []repository.Action{
			{Kind: repository.ActionSendNotification, SendNotification: &repository.SendNotificationAction{
				NotifyBroker: true, Title: "Moved", Message: "m",
			}},
		},
	}}}

	e := newTestEngine(rules, &fakeDealStore{}, &fakeTaskCreator{}, notifier)
	executed, err := e.EvaluateStatusChange(context.Background(), statusInput("draft", "submitted"))
	if err != nil {
		t.Fatalf("EvaluateStatusChange returned error: %v", err)
	}
	if executed != 1 {
		t.Fatalf("action should still count as executed, got %d", executed)
	}
	if len(notifier.dispatched) != 0 {
		t.Fatalf("no broker means nobody to notify, got %d dispatches", len(notifier.dispatched))
	}
}

func TestAssignBrokerTargetsClientProfile(t *testing.T) {
	broker := uuid.New()
	deals := &fakeDealStore{}
	rules := &fakeRuleSource{rules: []repository.Rule{{
		ID: uuid.New(),
		Actions: []repository.Action{
			{Kind: repository.ActionAssignBroker, AssignBroker: &repository.AssignBrokerAction{BrokerID: broker}},
		},
	}}}

	e := newTestEngine(rules, deals, &fakeTaskCreator{}, &fakeNotifier{})
	if _, err := e.EvaluateStatusChange(context.Background(), statusInput("draft", "submitted")); err != nil {
		t.Fatalf("EvaluateStatusChange returned error: %v", err)
	}
	if len(deals.assignedBrokers) != 1 || deals.assignedBrokers[0] != broker {
		t.Fatalf("broker assignment not applied: %+v", deals.assignedBrokers)
	}
}

func TestUnknownActionKindIsSkipped(t *testing.T) {
	tasks := &fakeTaskCreator{}
	rules := &fakeRuleSource{rules: []repository.Rule{{
		ID: uuid.New(),
		Actions: []repository.Action{
			{Kind: "teleport_deal"},
			{Kind: repository.ActionCreateTask, CreateTask: &repository.CreateTaskAction{Title: "still runs"}},
		},
	}}}

	e := newTestEngine(rules, &fakeDealStore{}, tasks, &fakeNotifier{})
	executed, err := e.EvaluateStatusChange(context.Background(), statusInput("draft", "submitted"))
	if err != nil {
		t.Fatalf("EvaluateStatusChange returned error: %v", err)
	}
	if executed != 1 {
		t.Fatalf("unknown kind should be skipped, not counted: got %d", executed)
	}
	if len(tasks.created) != 1 {
		t.Fatalf("later actions should still run after a skipped kind, got %d tasks", len(tasks.created))
	}
	if rules.recorded[0].Status != repository.ExecutionSuccess {
		t.Fatalf("skipped kinds must not fail the rule, got %s", rules.recorded[0].Status)
	}
}

func TestExecutionContextCarriesTransition(t *testing.T) {
	rules := &fakeRuleSource{rules: []repository.Rule{{
		ID: uuid.New(),
		Actions: []repository.Action{
			{Kind: repository.ActionCreateTask, CreateTask: &repository.CreateTaskAction{Title: "x"}},
		},
	}}}

	e := newTestEngine(rules, &fakeDealStore{}, &fakeTaskCreator{}, &fakeNotifier{})
	if _, err := e.EvaluateStatusChange(context.Background(), statusInput("submitted", "approved")); err != nil {
		t.Fatalf("EvaluateStatusChange returned error: %v", err)
	}

	ctx := rules.recorded[0].Context
	if ctx["fromStatus"] != "submitted" || ctx["toStatus"] != "approved" {
		t.Fatalf("execution context missing transition: %+v", ctx)
	}
	if ctx["actionsExecuted"] != 1 {
		t.Fatalf("execution context should record action count, got %v", ctx["actionsExecuted"])
	}
}
