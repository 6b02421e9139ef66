// Package repository provides persistence for scheduled callbacks and their
// reminder flags.
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"loanflow_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	opCreate       = "callbacks.repository.create"
	opGet          = "callbacks.repository.get"
	opList         = "callbacks.repository.list"
	opUpdateStatus = "callbacks.repository.update_status"
	opListDue      = "callbacks.repository.list_due"
	opMarkReminder = "callbacks.repository.mark_reminder"

	errRepoNotConfigured = "callbacks repository not configured"
)

// Callback statuses.
const (
	StatusPending   = "pending"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
)

type Callback struct {
	ID              uuid.UUID  `json:"id"`
	Title           string     `json:"title"`
	Notes           string     `json:"notes,omitempty"`
	ScheduledBy     uuid.UUID  `json:"scheduledBy"`
	ContactUserID   uuid.UUID  `json:"contactUserId"`
	DealID          *uuid.UUID `json:"dealId,omitempty"`
	ScheduledAt     time.Time  `json:"scheduledAt"`
	Status          string     `json:"status"`
	Reminder24hSent bool       `json:"reminder24hSent"`
	Reminder1hSent  bool       `json:"reminder1hSent"`
	Reminder10mSent bool       `json:"reminder10mSent"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
}

type CreateParams struct {
	Title         string
	Notes         string
	ScheduledBy   uuid.UUID
	ContactUserID uuid.UUID
	DealID        *uuid.UUID
	ScheduledAt   time.Time
}

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const callbackColumns = `id, title, notes, scheduled_by, contact_user_id, deal_id, scheduled_at, status,
	reminder_24h_sent, reminder_1h_sent, reminder_10m_sent, created_at, updated_at`

func (r *Repository) Create(ctx context.Context, p CreateParams) (Callback, error) {
	if r == nil || r.pool == nil {
		return Callback{}, apperr.Internal(errRepoNotConfigured).WithOp(opCreate)
	}
	if p.ScheduledBy == uuid.Nil || p.ContactUserID == uuid.Nil {
		return Callback{}, apperr.Validation("scheduledBy and contactUserId are required").WithOp(opCreate)
	}
	if p.Title == "" {
		return Callback{}, apperr.Validation("title is required").WithOp(opCreate)
	}

	row := r.pool.QueryRow(ctx, `
		INSERT INTO scheduled_callbacks (title, notes, scheduled_by, contact_user_id, deal_id, scheduled_at, status)
		VALUES ($1, $2, $3, $4, $5, $6, 'pending')
		RETURNING `+callbackColumns+`
	`, p.Title, p.Notes, p.ScheduledBy, p.ContactUserID, p.DealID, p.ScheduledAt)

	cb, err := scanCallback(row)
	if err != nil {
		return Callback{}, apperr.Internal(fmt.Sprintf("create callback failed: %v", err)).WithOp(opCreate)
	}

	return cb, nil
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (Callback, error) {
	if r == nil || r.pool == nil {
		return Callback{}, apperr.Internal(errRepoNotConfigured).WithOp(opGet)
	}

	row := r.pool.QueryRow(ctx, `SELECT `+callbackColumns+` FROM scheduled_callbacks WHERE id = $1`, id)
	cb, err := scanCallback(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Callback{}, apperr.NotFound("callback not found").WithOp(opGet)
	}
	if err != nil {
		return Callback{}, apperr.Internal(fmt.Sprintf("get callback failed: %v", err)).WithOp(opGet)
	}

	return cb, nil
}

// ListByUser returns callbacks the user is a party to, soonest first.
func (r *Repository) ListByUser(ctx context.Context, userID uuid.UUID, includeDone bool) ([]Callback, error) {
	if r == nil || r.pool == nil {
		return nil, apperr.Internal(errRepoNotConfigured).WithOp(opList)
	}
	if userID == uuid.Nil {
		return nil, apperr.Validation("userId is required").WithOp(opList)
	}

	query := `SELECT ` + callbackColumns + `
		FROM scheduled_callbacks
		WHERE (scheduled_by = $1 OR contact_user_id = $1)`
	if !includeDone {
		query += ` AND status = 'pending'`
	}
	query += ` ORDER BY scheduled_at ASC`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, apperr.Internal(fmt.Sprintf("list callbacks failed: %v", err)).WithOp(opList)
	}
	defer rows.Close()

	return collectCallbacks(rows, opList)
}

// UpdateStatus completes or cancels a callback. Only a party to the callback
// may change it, enforced here with the user id in the predicate.
func (r *Repository) UpdateStatus(ctx context.Context, id, userID uuid.UUID, status string) error {
	if r == nil || r.pool == nil {
		return apperr.Internal(errRepoNotConfigured).WithOp(opUpdateStatus)
	}
	switch status {
	case StatusCompleted, StatusCancelled:
	default:
		return apperr.Validation("status must be completed or cancelled").WithOp(opUpdateStatus)
	}

	tag, err := r.pool.Exec(ctx, `
		UPDATE scheduled_callbacks
		SET status = $3, updated_at = now()
		WHERE id = $1 AND (scheduled_by = $2 OR contact_user_id = $2) AND status = 'pending'
	`, id, userID, status)
	if err != nil {
		return apperr.Internal(fmt.Sprintf("update callback status failed: %v", err)).WithOp(opUpdateStatus)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("pending callback not found").WithOp(opUpdateStatus)
	}

	return nil
}

// ListDueWithin returns pending callbacks scheduled inside (now, now+horizon].
func (r *Repository) ListDueWithin(ctx context.Context, now time.Time, horizon time.Duration) ([]Callback, error) {
	if r == nil || r.pool == nil {
		return nil, apperr.Internal(errRepoNotConfigured).WithOp(opListDue)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT `+callbackColumns+`
		FROM scheduled_callbacks
		WHERE status = 'pending' AND scheduled_at > $1 AND scheduled_at <= $2
		ORDER BY scheduled_at ASC
	`, now, now.Add(horizon))
	if err != nil {
		return nil, apperr.Internal(fmt.Sprintf("list due callbacks failed: %v", err)).WithOp(opListDue)
	}
	defer rows.Close()

	return collectCallbacks(rows, opListDue)
}

// MarkReminderSent claims one reminder stage. The flag only flips false to
// true, so the boolean result tells concurrent scans apart: true means this
// caller claimed the stage and should deliver, false means someone already
// did.
func (r *Repository) MarkReminderSent(ctx context.Context, id uuid.UUID, stage string) (bool, error) {
	if r == nil || r.pool == nil {
		return false, apperr.Internal(errRepoNotConfigured).WithOp(opMarkReminder)
	}

	var column string
	switch stage {
	case "24h":
		column = "reminder_24h_sent"
	case "1h":
		column = "reminder_1h_sent"
	case "10m":
		column = "reminder_10m_sent"
	default:
		return false, apperr.Validation("unknown reminder stage: " + stage).WithOp(opMarkReminder)
	}

	tag, err := r.pool.Exec(ctx, `
		UPDATE scheduled_callbacks
		SET `+column+` = TRUE, updated_at = now()
		WHERE id = $1 AND `+column+` = FALSE
	`, id)
	if err != nil {
		return false, apperr.Internal(fmt.Sprintf("mark reminder sent failed: %v", err)).WithOp(opMarkReminder)
	}

	return tag.RowsAffected() > 0, nil
}

func scanCallback(row pgx.Row) (Callback, error) {
	var cb Callback
	err := row.Scan(&cb.ID, &cb.Title, &cb.Notes, &cb.ScheduledBy, &cb.ContactUserID, &cb.DealID,
		&cb.ScheduledAt, &cb.Status, &cb.Reminder24hSent, &cb.Reminder1hSent, &cb.Reminder10mSent,
		&cb.CreatedAt, &cb.UpdatedAt)
	return cb, err
}

func collectCallbacks(rows pgx.Rows, op string) ([]Callback, error) {
	items := make([]Callback, 0)
	for rows.Next() {
		cb, err := scanCallback(rows)
		if err != nil {
			return nil, apperr.Internal(fmt.Sprintf("scan callback failed: %v", err)).WithOp(op)
		}
		items = append(items, cb)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Internal(fmt.Sprintf("iterate callbacks failed: %v", err)).WithOp(op)
	}
	return items, nil
}
