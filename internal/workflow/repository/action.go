package repository

import (
	"encoding/json"
	"fmt"

	"loanflow_backend/platform/apperr"

	"github.com/google/uuid"
)

// Action kinds supported by workflow rules.
const (
	ActionCreateTask       = "create_task"
	ActionSendNotification = "send_notification"
	ActionUpdateField      = "update_field"
	ActionAssignBroker     = "assign_broker"
)

// updatableFields is the allow-list for the update_field action. Anything
// else is rejected when the rule is saved and again before execution.
var updatableFields = map[string]struct{}{
	"status":       {},
	"loan_type":    {},
	"amount_cents": {},
}

// Action is a tagged union: exactly one payload pointer is set, matching
// Kind. Rules store their actions as a jsonb array of these.
type Action struct {
	Kind             string                  `json:"kind"`
	CreateTask       *CreateTaskAction       `json:"createTask,omitempty"`
	SendNotification *SendNotificationAction `json:"sendNotification,omitempty"`
	UpdateField      *UpdateFieldAction      `json:"updateField,omitempty"`
	AssignBroker     *AssignBrokerAction     `json:"assignBroker,omitempty"`
}

// CreateTaskAction creates an automated task on the deal. AssignedTo nil
// means the user whose transition triggered the rule; DueInDays 0 means no
// due date.
type CreateTaskAction struct {
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	AssignedTo  *uuid.UUID `json:"assignedTo,omitempty"`
	Priority    string     `json:"priority,omitempty"`
	DueInDays   int        `json:"dueInDays,omitempty"`
}

// SendNotificationAction notifies the deal's parties. The client and broker
// toggles are independent; each resolved recipient gets one notification.
type SendNotificationAction struct {
	NotifyClient bool   `json:"notifyClient,omitempty"`
	NotifyBroker bool   `json:"notifyBroker,omitempty"`
	Title        string `json:"title"`
	Message      string `json:"message"`
	Category     string `json:"category,omitempty"`
	Email        bool   `json:"email,omitempty"`
	SMS          bool   `json:"sms,omitempty"`
}

// UpdateFieldAction patches a single allow-listed deal column.
type UpdateFieldAction struct {
	Field string `json:"field"`
	Value string `json:"value"`
}

// AssignBrokerAction points the deal's client at a broker.
type AssignBrokerAction struct {
	BrokerID uuid.UUID `json:"brokerId"`
}

// Validate checks that the action is internally consistent: a known kind,
// the matching payload present, and payload fields within bounds. Rules are
// rejected at save time so the engine never sees a malformed action.
func (a Action) Validate() error {
	switch a.Kind {
	case ActionCreateTask:
		if a.CreateTask == nil {
			return apperr.Validation("create_task action requires a createTask payload")
		}
		return a.CreateTask.validate()
	case ActionSendNotification:
		if a.SendNotification == nil {
			return apperr.Validation("send_notification action requires a sendNotification payload")
		}
		return a.SendNotification.validate()
	case ActionUpdateField:
		if a.UpdateField == nil {
			return apperr.Validation("update_field action requires an updateField payload")
		}
		return a.UpdateField.validate()
	case ActionAssignBroker:
		if a.AssignBroker == nil {
			return apperr.Validation("assign_broker action requires an assignBroker payload")
		}
		if a.AssignBroker.BrokerID == uuid.Nil {
			return apperr.Validation("assign_broker action requires brokerId")
		}
		return nil
	case "":
		return apperr.Validation("action kind is required")
	default:
		return apperr.Validation("unknown action kind: " + a.Kind)
	}
}

func (a *CreateTaskAction) validate() error {
	if a.Title == "" {
		return apperr.Validation("create_task action requires a title")
	}
	switch a.Priority {
	case "", "low", "medium", "high", "urgent":
	default:
		return apperr.Validation("create_task priority must be low, medium, high or urgent")
	}
	if a.DueInDays < 0 {
		return apperr.Validation("create_task dueInDays must not be negative")
	}
	return nil
}

func (a *SendNotificationAction) validate() error {
	if !a.NotifyClient && !a.NotifyBroker {
		return apperr.Validation("send_notification action requires notifyClient and/or notifyBroker")
	}
	if a.Title == "" || a.Message == "" {
		return apperr.Validation("send_notification action requires title and message")
	}
	return nil
}

func (a *UpdateFieldAction) validate() error {
	if _, ok := updatableFields[a.Field]; !ok {
		return apperr.Validation(fmt.Sprintf("update_field does not allow field %q", a.Field))
	}
	if a.Value == "" {
		return apperr.Validation("update_field action requires a value")
	}
	return nil
}

// ValidateActions validates a rule's full action list.
func ValidateActions(actions []Action) error {
	if len(actions) == 0 {
		return apperr.Validation("rule requires at least one action")
	}
	for i, a := range actions {
		if err := a.Validate(); err != nil {
			return apperr.Validation(fmt.Sprintf("action %d: %v", i, err))
		}
	}
	return nil
}

// decodeActions parses the jsonb column into actions, keeping malformed
// stored data from panicking the engine.
func decodeActions(raw []byte) ([]Action, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var actions []Action
	if err := json.Unmarshal(raw, &actions); err != nil {
		return nil, fmt.Errorf("decode rule actions: %w", err)
	}
	return actions, nil
}
