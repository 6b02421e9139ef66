// Package engine evaluates workflow rules against deal status transitions
// and executes their actions. Rules are isolated from each other: one rule
// failing is recorded in the execution log and the next rule still runs.
package engine

import (
	"context"
	"fmt"
	"time"

	"loanflow_backend/internal/notification"
	taskrepo "loanflow_backend/internal/tasks/repository"
	"loanflow_backend/internal/workflow/repository"
	"loanflow_backend/platform/logger"

	"github.com/google/uuid"
)

// RuleSource reads rules and appends execution audit rows.
type RuleSource interface {
	ListActiveByTrigger(ctx context.Context, trigger string) ([]repository.Rule, error)
	RecordExecution(ctx context.Context, p repository.RecordExecutionParams) error
}

// DealStore is the slice of the deals repository the engine mutates through.
type DealStore interface {
	GetParties(ctx context.Context, dealID uuid.UUID) (clientID uuid.UUID, brokerID *uuid.UUID, err error)
	UpdateField(ctx context.Context, dealID uuid.UUID, field, value string) error
	SetAssignedBroker(ctx context.Context, clientID, brokerID uuid.UUID) error
}

// TaskCreator creates automated tasks.
type TaskCreator interface {
	Create(ctx context.Context, p taskrepo.CreateParams) (taskrepo.Task, error)
}

// Notifier fans a notification out across channels.
type Notifier interface {
	Dispatch(ctx context.Context, p notification.DispatchParams) error
}

// StatusChangeInput carries the transition the engine evaluates rules for.
type StatusChangeInput struct {
	DealID    uuid.UUID
	ClientID  uuid.UUID
	ActorID   uuid.UUID
	OldStatus string
	NewStatus string
	LoanType  string
}

type Engine struct {
	rules    RuleSource
	deals    DealStore
	tasks    TaskCreator
	notifier Notifier
	log      *logger.Logger
	now      func() time.Time
}

func New(rules RuleSource, deals DealStore, tasks TaskCreator, notifier Notifier, log *logger.Logger) *Engine {
	return &Engine{
		rules:    rules,
		deals:    deals,
		tasks:    tasks,
		notifier: notifier,
		log:      log,
		now:      time.Now,
	}
}

// EvaluateStatusChange runs every matching active rule and returns the total
// number of actions executed. Within one rule, actions run in order and the
// first failure skips the rest; the failure is recorded and evaluation moves
// on to the next rule.
func (e *Engine) EvaluateStatusChange(ctx context.Context, in StatusChangeInput) (int, error) {
	rules, err := e.rules.ListActiveByTrigger(ctx, repository.TriggerStatusChange)
	if err != nil {
		return 0, err
	}

	executed := 0
	for _, rule := range rules {
		if !matches(rule, in.OldStatus, in.NewStatus) {
			continue
		}

		ran, execErr := e.executeRule(ctx, rule, in)
		executed += ran

		status := repository.ExecutionSuccess
		var errText *string
		if execErr != nil {
			status = repository.ExecutionFailed
			msg := execErr.Error()
			errText = &msg
			e.log.Error("workflow rule failed", "ruleId", rule.ID, "ruleName", rule.Name, "dealId", in.DealID, "error", execErr)
		}

		if recErr := e.rules.RecordExecution(ctx, repository.RecordExecutionParams{
			RuleID:  rule.ID,
			DealID:  in.DealID,
			Trigger: repository.TriggerStatusChange,
			Status:  status,
			Error:   errText,
			Context: map[string]any{
				"fromStatus":      in.OldStatus,
				"toStatus":        in.NewStatus,
				"actionsExecuted": ran,
			},
		}); recErr != nil {
			e.log.Error("failed to record workflow execution", "ruleId", rule.ID, "dealId", in.DealID, "error", recErr)
		}
	}

	return executed, nil
}

// matches reports whether a rule applies to the transition. A nil side is a
// wildcard.
func matches(rule repository.Rule, oldStatus, newStatus string) bool {
	if rule.FromStatus != nil && *rule.FromStatus != oldStatus {
		return false
	}
	if rule.ToStatus != nil && *rule.ToStatus != newStatus {
		return false
	}
	return true
}

func (e *Engine) executeRule(ctx context.Context, rule repository.Rule, in StatusChangeInput) (int, error) {
	executed := 0
	for i, action := range rule.Actions {
		if !knownKind(action.Kind) {
			// Stored rules can outlive the engine that wrote them. An
			// unrecognized kind is skipped, not a rule failure.
			e.log.Warn("skipping unknown workflow action kind", "ruleId", rule.ID, "kind", action.Kind)
			continue
		}
		if err := e.executeAction(ctx, action, in); err != nil {
			return executed, fmt.Errorf("action %d (%s): %w", i, action.Kind, err)
		}
		executed++
	}
	return executed, nil
}

func knownKind(kind string) bool {
	switch kind {
	case repository.ActionCreateTask, repository.ActionSendNotification,
		repository.ActionUpdateField, repository.ActionAssignBroker:
		return true
	}
	return false
}

func (e *Engine) executeAction(ctx context.Context, action repository.Action, in StatusChangeInput) error {
	if err := action.Validate(); err != nil {
		return err
	}

	switch action.Kind {
	case repository.ActionCreateTask:
		return e.executeCreateTask(ctx, action.CreateTask, in)
	case repository.ActionSendNotification:
		return e.executeSendNotification(ctx, action.SendNotification, in)
	case repository.ActionUpdateField:
		return e.deals.UpdateField(ctx, in.DealID, action.UpdateField.Field, action.UpdateField.Value)
	case repository.ActionAssignBroker:
		return e.deals.SetAssignedBroker(ctx, in.ClientID, action.AssignBroker.BrokerID)
	default:
		return fmt.Errorf("unknown action kind %q", action.Kind)
	}
}

func (e *Engine) executeCreateTask(ctx context.Context, a *repository.CreateTaskAction, in StatusChangeInput) error {
	assignee := e.resolveAssignee(a.AssignedTo, in)

	var dueDate *time.Time
	if a.DueInDays > 0 {
		due := e.now().AddDate(0, 0, a.DueInDays)
		dueDate = &due
	}

	_, err := e.tasks.Create(ctx, taskrepo.CreateParams{
		DealID:      in.DealID,
		Title:       a.Title,
		Description: a.Description,
		AssignedTo:  assignee,
		Priority:    a.Priority,
		DueDate:     dueDate,
	})
	return err
}

func (e *Engine) executeSendNotification(ctx context.Context, a *repository.SendNotificationAction, in StatusChangeInput) error {
	recipients, err := e.resolveRecipients(ctx, a, in)
	if err != nil {
		return err
	}

	category := a.Category
	if category == "" {
		category = notification.CategoryWorkflow
	}

	dealID := in.DealID
	for _, recipient := range recipients {
		if err := e.notifier.Dispatch(ctx, notification.DispatchParams{
			UserID:   recipient,
			Title:    a.Title,
			Message:  a.Message,
			Category: category,
			DealID:   &dealID,
			Email:    a.Email,
			SMS:      a.SMS,
		}); err != nil {
			return err
		}
	}
	return nil
}

// resolveAssignee defaults to the user whose status change triggered the
// rule when the action does not name anyone.
func (e *Engine) resolveAssignee(explicit *uuid.UUID, in StatusChangeInput) uuid.UUID {
	if explicit != nil && *explicit != uuid.Nil {
		return *explicit
	}
	return in.ActorID
}

// resolveRecipients expands the client/broker toggles into user ids. A broker
// toggle on a deal without an assigned broker resolves to nobody rather than
// failing the action.
func (e *Engine) resolveRecipients(ctx context.Context, a *repository.SendNotificationAction, in StatusChangeInput) ([]uuid.UUID, error) {
	var recipients []uuid.UUID
	if a.NotifyClient {
		recipients = append(recipients, in.ClientID)
	}
	if a.NotifyBroker {
		_, brokerID, err := e.deals.GetParties(ctx, in.DealID)
		if err != nil {
			return nil, err
		}
		if brokerID != nil && *brokerID != uuid.Nil {
			recipients = append(recipients, *brokerID)
		}
	}
	return recipients, nil
}
