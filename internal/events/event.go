// Package events provides domain event definitions for decoupled,
// event-driven communication between modules.
// Infrastructure (Bus, Handler) is in platform/events.
package events

import (
	"time"

	"loanflow_backend/platform/events"

	"github.com/google/uuid"
)

// Re-export platform types for convenience
type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
)

// Re-export platform functions
var NewBaseEvent = events.NewBaseEvent

// =============================================================================
// Deals Domain Events
// =============================================================================

// DealStatusChanged is published synchronously after a deal's status has been
// persisted and the activity log row written. Subscribers run before rule
// evaluation starts; their failures are logged by the publisher and never
// fail the transition.
type DealStatusChanged struct {
	BaseEvent
	DealID    uuid.UUID `json:"dealId"`
	ClientID  uuid.UUID `json:"clientId"`
	ActorID   uuid.UUID `json:"actorId"`
	OldStatus string    `json:"oldStatus"`
	NewStatus string    `json:"newStatus"`
	LoanType  string    `json:"loanType"`
}

func (e DealStatusChanged) EventName() string { return "deals.status.changed" }

// =============================================================================
// Callbacks Domain Events
// =============================================================================

// CallbackScheduled is published when a new callback is booked, so the
// counterparty can be notified out of band.
type CallbackScheduled struct {
	BaseEvent
	CallbackID    uuid.UUID  `json:"callbackId"`
	ScheduledBy   uuid.UUID  `json:"scheduledBy"`
	ContactUserID uuid.UUID  `json:"contactUserId"`
	DealID        *uuid.UUID `json:"dealId,omitempty"`
	Title         string     `json:"title"`
}

func (e CallbackScheduled) EventName() string { return "callbacks.scheduled" }

// Reminder stages for scheduled callbacks.
const (
	ReminderStage24Hours   = "24h"
	ReminderStage1Hour     = "1h"
	ReminderStage10Minutes = "10m"
)

// CallbackReminderDue is published synchronously by the reminder scan when a
// callback enters one of its reminder windows. The scan claims the stage flag
// before publishing, so each stage fires at most once per callback.
type CallbackReminderDue struct {
	BaseEvent
	CallbackID  uuid.UUID   `json:"callbackId"`
	Stage       string      `json:"stage"`
	Title       string      `json:"title"`
	Notes       string      `json:"notes,omitempty"`
	ScheduledAt time.Time   `json:"scheduledAt"`
	Parties     []uuid.UUID `json:"parties"`
	DealID      *uuid.UUID  `json:"dealId,omitempty"`
}

func (e CallbackReminderDue) EventName() string { return "callbacks.reminder.due" }
