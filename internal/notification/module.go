// Package notification subscribes to domain events and delivers messages
// across the in-app, email and SMS channels. Domain modules publish events
// and never talk to senders or templates directly.
package notification

import (
	"context"
	"fmt"
	"strings"

	"loanflow_backend/internal/email"
	"loanflow_backend/internal/events"
	apphttp "loanflow_backend/internal/http"
	notifhandler "loanflow_backend/internal/notification/handler"
	"loanflow_backend/internal/notification/inapp"
	"loanflow_backend/internal/notification/prefs"
	"loanflow_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Module handles all notification-related event subscriptions.
type Module struct {
	pool         *pgxpool.Pool
	sender       email.Sender
	log          *logger.Logger
	svc          *Service
	prefsRepo    *prefs.Repository
	inAppService *inapp.Service
	inAppHandler *notifhandler.HTTPHandler
}

// New creates the notification module and its internal services.
func New(pool *pgxpool.Pool, sender email.Sender, log *logger.Logger) *Module {
	inAppRepo := inapp.NewRepository(pool)
	inAppSvc := inapp.NewService(inAppRepo, log)
	prefsRepo := prefs.NewRepository(pool)

	svc := NewService(inAppSvc, prefsRepo, NewPgContactResolver(pool), log)
	svc.SetEmailSender(sender)

	return &Module{
		pool:         pool,
		sender:       sender,
		log:          log,
		svc:          svc,
		prefsRepo:    prefsRepo,
		inAppService: inAppSvc,
		inAppHandler: notifhandler.NewHTTPHandler(inAppSvc, prefsRepo),
	}
}

// Name returns the module identifier.
func (m *Module) Name() string { return "notification" }

// RegisterRoutes registers notification API routes.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	if m.inAppHandler == nil {
		return
	}

	notifications := ctx.Protected.Group("/notifications")
	m.inAppHandler.RegisterRoutes(notifications)
}

// SetSMSSender injects the SMS gateway client.
func (m *Module) SetSMSSender(sender SMSSender) {
	if m.svc != nil {
		m.svc.SetSMSSender(sender)
	}
}

// Dispatcher exposes the channel fan-out service for modules that send
// notifications outside the event flow (workflow actions, idle warnings).
func (m *Module) Dispatcher() *Service { return m.svc }

// InAppService exposes the in-app notification service for integration points.
func (m *Module) InAppService() *inapp.Service { return m.inAppService }

// RegisterHandlers subscribes to all relevant domain events on the event bus.
func (m *Module) RegisterHandlers(bus *events.InMemoryBus) {
	bus.Subscribe(events.DealStatusChanged{}.EventName(), m)
	bus.Subscribe(events.CallbackScheduled{}.EventName(), m)
	bus.Subscribe(events.CallbackReminderDue{}.EventName(), m)

	m.log.Info("notification module registered event handlers")
}

// Handle routes events to the appropriate handler method.
func (m *Module) Handle(ctx context.Context, event events.Event) error {
	switch e := event.(type) {
	case events.DealStatusChanged:
		return m.handleDealStatusChanged(ctx, e)
	case events.CallbackScheduled:
		return m.handleCallbackScheduled(ctx, e)
	case events.CallbackReminderDue:
		return m.handleCallbackReminderDue(ctx, e)
	default:
		m.log.Warn("unhandled event type", "event", event.EventName())
		return nil
	}
}

// handleDealStatusChanged notifies the client that their deal moved. The
// in-app write must succeed; email and SMS are best-effort and gated by the
// client's preferences.
func (m *Module) handleDealStatusChanged(ctx context.Context, e events.DealStatusChanged) error {
	dealID := e.DealID
	message := fmt.Sprintf("Your %s application moved from %s to %s.",
		strings.ReplaceAll(e.LoanType, "_", " "), statusLabel(e.OldStatus), statusLabel(e.NewStatus))

	if err := m.svc.Dispatch(ctx, DispatchParams{
		UserID:   e.ClientID,
		Title:    "Deal Status Updated",
		Message:  message,
		Category: CategoryDealStatus,
		DealID:   &dealID,
	}); err != nil {
		m.log.Error("failed to create status change notification", "error", err, "dealId", e.DealID)
		return err
	}

	pref, err := m.svc.PrefsFor(ctx, e.ClientID)
	if err != nil {
		m.log.Warn("failed to load client preferences", "error", err, "userId", e.ClientID)
		return nil
	}
	if !pref.DealStatusUpdates {
		return nil
	}

	contact, err := m.svc.ContactFor(ctx, e.ClientID)
	if err != nil {
		m.log.Warn("failed to resolve client contact", "error", err, "userId", e.ClientID)
		return nil
	}

	if pref.EmailEnabled && contact.Email != "" && m.sender != nil {
		if err := m.sender.SendDealStatusEmail(ctx, contact.Email, contact.FullName(), e.LoanType, e.OldStatus, e.NewStatus); err != nil {
			m.log.DeliveryFailure("email", contact.Email, err)
		}
	}
	if pref.SMSEnabled && contact.Phone != "" && m.svc.sms != nil {
		if err := m.svc.sms.Send(ctx, contact.Phone, "Deal update: "+message); err != nil {
			m.log.DeliveryFailure("sms", contact.Phone, err)
		}
	}

	return nil
}

func (m *Module) handleCallbackScheduled(ctx context.Context, e events.CallbackScheduled) error {
	// The scheduler already knows; only the counterparty needs a heads-up.
	if e.ContactUserID == uuid.Nil || e.ContactUserID == e.ScheduledBy {
		return nil
	}

	return m.svc.Dispatch(ctx, DispatchParams{
		UserID:   e.ContactUserID,
		Title:    "Callback Scheduled",
		Message:  fmt.Sprintf("A callback has been scheduled with you: %s", e.Title),
		Category: CategoryCallbackReminder,
		DealID:   e.DealID,
	})
}

// handleCallbackReminderDue delivers one reminder stage to both parties.
// Parties are isolated from each other: a failure for one is logged and the
// other still gets their reminder.
func (m *Module) handleCallbackReminderDue(ctx context.Context, e events.CallbackReminderDue) error {
	timeUntil := stageHuman(e.Stage)
	message := fmt.Sprintf("Callback %q is coming up in %s (%s).",
		e.Title, timeUntil, e.ScheduledAt.Local().Format("Mon Jan 2 15:04"))

	var firstErr error
	for _, userID := range e.Parties {
		if userID == uuid.Nil {
			continue
		}
		if err := m.remindParty(ctx, userID, e, message, timeUntil); err != nil {
			m.log.Error("callback reminder delivery failed", "error", err, "callbackId", e.CallbackID, "userId", userID, "stage", e.Stage)
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	return firstErr
}

func (m *Module) remindParty(ctx context.Context, userID uuid.UUID, e events.CallbackReminderDue, message, timeUntil string) error {
	if err := m.svc.Dispatch(ctx, DispatchParams{
		UserID:   userID,
		Title:    "Callback Reminder",
		Message:  message,
		Category: CategoryCallbackReminder,
		DealID:   e.DealID,
	}); err != nil {
		return err
	}

	pref, err := m.svc.PrefsFor(ctx, userID)
	if err != nil {
		m.log.Warn("failed to load reminder preferences", "error", err, "userId", userID)
		return nil
	}
	if !pref.TaskReminders {
		return nil
	}

	contact, err := m.svc.ContactFor(ctx, userID)
	if err != nil {
		m.log.Warn("failed to resolve reminder contact", "error", err, "userId", userID)
		return nil
	}

	if pref.EmailEnabled && contact.Email != "" && m.sender != nil {
		scheduledAt := e.ScheduledAt.Local().Format("Monday, January 2 at 15:04")
		if err := m.sender.SendCallbackReminderEmail(ctx, contact.Email, contact.FullName(), e.Title, scheduledAt, timeUntil); err != nil {
			m.log.DeliveryFailure("email", contact.Email, err)
		}
	}
	if pref.SMSEnabled && contact.Phone != "" && m.svc.sms != nil {
		if err := m.svc.sms.Send(ctx, contact.Phone, "Reminder: "+message); err != nil {
			m.log.DeliveryFailure("sms", contact.Phone, err)
		}
	}

	return nil
}

func stageHuman(stage string) string {
	switch stage {
	case events.ReminderStage24Hours:
		return "24 hours"
	case events.ReminderStage1Hour:
		return "1 hour"
	case events.ReminderStage10Minutes:
		return "10 minutes"
	default:
		return stage
	}
}

// statusLabel renders a snake_case status for humans ("in_progress" ->
// "In Progress").
func statusLabel(status string) string {
	words := strings.Split(status, "_")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
