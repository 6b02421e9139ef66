// Package prefs reads per-user notification channel preferences. Users
// without a stored row fall back to the defaults below, so delivery code
// never has to special-case missing preferences.
package prefs

import (
	"context"
	"errors"
	"fmt"

	"loanflow_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	opGet    = "notification.prefs.repository.get"
	opUpsert = "notification.prefs.repository.upsert"
)

type Preferences struct {
	UserID            uuid.UUID `json:"userId"`
	EmailEnabled      bool      `json:"emailEnabled"`
	SMSEnabled        bool      `json:"smsEnabled"`
	DealStatusUpdates bool      `json:"dealStatusUpdates"`
	TaskReminders     bool      `json:"taskReminders"`
	MarketingMessages bool      `json:"marketingMessages"`
}

// Defaults returns the preferences applied to users without a stored row.
// Operational messages are opt-out, marketing is opt-in.
func Defaults(userID uuid.UUID) Preferences {
	return Preferences{
		UserID:            userID,
		EmailEnabled:      true,
		SMSEnabled:        true,
		DealStatusUpdates: true,
		TaskReminders:     true,
		MarketingMessages: false,
	}
}

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) GetByUserID(ctx context.Context, userID uuid.UUID) (Preferences, error) {
	if r == nil || r.pool == nil {
		return Preferences{}, apperr.Internal("preferences repository not configured").WithOp(opGet)
	}
	if userID == uuid.Nil {
		return Preferences{}, apperr.Validation("userId is required").WithOp(opGet)
	}

	var p Preferences
	err := r.pool.QueryRow(ctx, `
		SELECT user_id, email_enabled, sms_enabled, deal_status_updates, task_reminders, marketing_messages
		FROM notification_preferences
		WHERE user_id = $1
	`, userID).Scan(&p.UserID, &p.EmailEnabled, &p.SMSEnabled, &p.DealStatusUpdates, &p.TaskReminders, &p.MarketingMessages)
	if errors.Is(err, pgx.ErrNoRows) {
		return Defaults(userID), nil
	}
	if err != nil {
		return Preferences{}, apperr.Internal(fmt.Sprintf("get notification preferences failed: %v", err)).WithOp(opGet)
	}

	return p, nil
}

func (r *Repository) Upsert(ctx context.Context, p Preferences) error {
	if r == nil || r.pool == nil {
		return apperr.Internal("preferences repository not configured").WithOp(opUpsert)
	}
	if p.UserID == uuid.Nil {
		return apperr.Validation("userId is required").WithOp(opUpsert)
	}

	_, err := r.pool.Exec(ctx, `
		INSERT INTO notification_preferences
		(user_id, email_enabled, sms_enabled, deal_status_updates, task_reminders, marketing_messages)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id) DO UPDATE SET
			email_enabled = EXCLUDED.email_enabled,
			sms_enabled = EXCLUDED.sms_enabled,
			deal_status_updates = EXCLUDED.deal_status_updates,
			task_reminders = EXCLUDED.task_reminders,
			marketing_messages = EXCLUDED.marketing_messages,
			updated_at = now()
	`, p.UserID, p.EmailEnabled, p.SMSEnabled, p.DealStatusUpdates, p.TaskReminders, p.MarketingMessages)
	if err != nil {
		return apperr.Internal(fmt.Sprintf("upsert notification preferences failed: %v", err)).WithOp(opUpsert)
	}

	return nil
}
