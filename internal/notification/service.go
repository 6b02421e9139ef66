package notification

import (
	"context"
	"errors"
	"fmt"
	"time"

	"loanflow_backend/internal/notification/inapp"
	"loanflow_backend/internal/notification/prefs"
	"loanflow_backend/platform/apperr"
	"loanflow_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Notification categories. Preference gating keys off these, so new
// categories need a case in allowsCategory.
const (
	CategoryInfo             = "info"
	CategoryDealStatus       = "deal_status"
	CategoryIdleDealWarning  = "idle_deal_warning"
	CategoryCallbackReminder = "callback_reminder"
	CategoryTask             = "task"
	CategoryWorkflow         = "workflow"
)

// Contact is the delivery address book entry for a user.
type Contact struct {
	UserID    uuid.UUID
	FirstName string
	LastName  string
	Email     string
	Phone     string
}

func (c Contact) FullName() string {
	switch {
	case c.FirstName != "" && c.LastName != "":
		return c.FirstName + " " + c.LastName
	case c.FirstName != "":
		return c.FirstName
	case c.LastName != "":
		return c.LastName
	default:
		return "there"
	}
}

type InAppSender interface {
	Send(ctx context.Context, p inapp.SendParams) error
	HasRecentForDeal(ctx context.Context, dealID uuid.UUID, category string, since time.Time) (bool, error)
}

type PrefsReader interface {
	GetByUserID(ctx context.Context, userID uuid.UUID) (prefs.Preferences, error)
}

type ContactResolver interface {
	Resolve(ctx context.Context, userID uuid.UUID) (Contact, error)
}

// EmailSender is the generic channel used for dispatcher fan-out. Event
// handlers with a dedicated template (status changes, callback reminders)
// bypass it and call the typed sender methods directly.
type EmailSender interface {
	SendNotificationEmail(ctx context.Context, toEmail, title, message string) error
}

type SMSSender interface {
	Send(ctx context.Context, phone, message string) error
}

// DispatchParams describes one notification to one user. The in-app channel
// is unconditional; Email and SMS are requests that the user's preferences
// may still veto.
type DispatchParams struct {
	UserID   uuid.UUID
	Title    string
	Message  string
	Category string
	DealID   *uuid.UUID
	Email    bool
	SMS      bool
}

// Service fans a notification out across channels. The in-app write is the
// source of truth: its failure fails the dispatch, while email and SMS
// failures are logged and swallowed.
type Service struct {
	inapp    InAppSender
	prefs    PrefsReader
	contacts ContactResolver
	email    EmailSender
	sms      SMSSender
	log      *logger.Logger
}

func NewService(inappSvc InAppSender, prefsRepo PrefsReader, contacts ContactResolver, log *logger.Logger) *Service {
	return &Service{
		inapp:    inappSvc,
		prefs:    prefsRepo,
		contacts: contacts,
		log:      log,
	}
}

// SetEmailSender injects the email channel (disabled deployments skip it).
func (s *Service) SetEmailSender(sender EmailSender) {
	s.email = sender
}

// SetSMSSender injects the SMS gateway client.
func (s *Service) SetSMSSender(sender SMSSender) {
	s.sms = sender
}

func (s *Service) Dispatch(ctx context.Context, p DispatchParams) error {
	if s == nil || s.inapp == nil {
		return apperr.Internal("notification service not configured")
	}
	if p.Category == "" {
		p.Category = CategoryInfo
	}

	if err := s.inapp.Send(ctx, inapp.SendParams{
		UserID:   p.UserID,
		Title:    p.Title,
		Content:  p.Message,
		DealID:   p.DealID,
		Category: p.Category,
	}); err != nil {
		return err
	}

	if !p.Email && !p.SMS {
		return nil
	}

	pref, contact, err := s.deliveryContext(ctx, p.UserID)
	if err != nil {
		if s.log != nil {
			s.log.Error("notification delivery context unavailable", "error", err, "userId", p.UserID)
		}
		return nil
	}

	if p.Email && s.email != nil && pref.EmailEnabled && allowsCategory(pref, p.Category) && contact.Email != "" {
		if err := s.email.SendNotificationEmail(ctx, contact.Email, p.Title, p.Message); err != nil && s.log != nil {
			s.log.DeliveryFailure("email", contact.Email, err)
		}
	}

	if p.SMS && s.sms != nil && pref.SMSEnabled && allowsCategory(pref, p.Category) && contact.Phone != "" {
		if err := s.sms.Send(ctx, contact.Phone, p.Title+": "+p.Message); err != nil && s.log != nil {
			s.log.DeliveryFailure("sms", contact.Phone, err)
		}
	}

	return nil
}

// PrefsFor exposes preference lookups to event handlers that deliver through
// typed email templates instead of Dispatch.
func (s *Service) PrefsFor(ctx context.Context, userID uuid.UUID) (prefs.Preferences, error) {
	if s == nil || s.prefs == nil {
		return prefs.Defaults(userID), nil
	}
	return s.prefs.GetByUserID(ctx, userID)
}

func (s *Service) ContactFor(ctx context.Context, userID uuid.UUID) (Contact, error) {
	if s == nil || s.contacts == nil {
		return Contact{}, apperr.Internal("contact resolver not configured")
	}
	return s.contacts.Resolve(ctx, userID)
}

func (s *Service) HasRecentDealNotification(ctx context.Context, dealID uuid.UUID, category string, since time.Time) (bool, error) {
	if s == nil || s.inapp == nil {
		return false, apperr.Internal("notification service not configured")
	}
	return s.inapp.HasRecentForDeal(ctx, dealID, category, since)
}

func (s *Service) deliveryContext(ctx context.Context, userID uuid.UUID) (prefs.Preferences, Contact, error) {
	pref, err := s.PrefsFor(ctx, userID)
	if err != nil {
		return prefs.Preferences{}, Contact{}, err
	}
	contact, err := s.ContactFor(ctx, userID)
	if err != nil {
		return prefs.Preferences{}, Contact{}, err
	}
	return pref, contact, nil
}

// allowsCategory maps a notification category onto the preference toggle
// that governs it. Unknown categories are treated as operational and allowed.
func allowsCategory(p prefs.Preferences, category string) bool {
	switch category {
	case CategoryDealStatus:
		return p.DealStatusUpdates
	case CategoryTask, CategoryIdleDealWarning, CategoryCallbackReminder:
		return p.TaskReminders
	default:
		return true
	}
}

// pgContactResolver reads delivery addresses from the profiles table.
type pgContactResolver struct {
	pool *pgxpool.Pool
}

func NewPgContactResolver(pool *pgxpool.Pool) ContactResolver {
	return &pgContactResolver{pool: pool}
}

func (r *pgContactResolver) Resolve(ctx context.Context, userID uuid.UUID) (Contact, error) {
	if r == nil || r.pool == nil {
		return Contact{}, apperr.Internal("contact resolver not configured")
	}

	c := Contact{UserID: userID}
	err := r.pool.QueryRow(ctx, `
		SELECT COALESCE(first_name, ''), COALESCE(last_name, ''), COALESCE(email, ''), COALESCE(phone, '')
		FROM profiles
		WHERE id = $1
	`, userID).Scan(&c.FirstName, &c.LastName, &c.Email, &c.Phone)
	if errors.Is(err, pgx.ErrNoRows) {
		return Contact{}, apperr.NotFound("profile not found")
	}
	if err != nil {
		return Contact{}, apperr.Internal(fmt.Sprintf("resolve contact failed: %v", err))
	}

	return c, nil
}
