// Package repository provides persistence for deals and their history.
package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"loanflow_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	opGet          = "deals.repository.get"
	opUpdateStatus = "deals.repository.update_status"
	opUpdateField  = "deals.repository.update_field"
	opParties      = "deals.repository.get_parties"
	opAssignBroker = "deals.repository.assign_broker"
	opListIdle     = "deals.repository.list_idle"

	errRepoNotConfigured = "deals repository not configured"
)

// Deal statuses.
const (
	StatusDraft      = "draft"
	StatusSubmitted  = "submitted"
	StatusInProgress = "in_progress"
	StatusApproved   = "approved"
	StatusDeclined   = "declined"
	StatusFunded     = "funded"
	StatusCancelled  = "cancelled"
)

// ActiveStatuses are the statuses the idle scanner watches. Terminal deals
// never go idle.
var ActiveStatuses = []string{StatusDraft, StatusSubmitted, StatusInProgress}

// ValidStatus reports whether s is a known deal status.
func ValidStatus(s string) bool {
	switch s {
	case StatusDraft, StatusSubmitted, StatusInProgress, StatusApproved, StatusDeclined, StatusFunded, StatusCancelled:
		return true
	default:
		return false
	}
}

type Deal struct {
	ID          uuid.UUID `json:"id"`
	ClientID    uuid.UUID `json:"clientId"`
	LoanType    string    `json:"loanType"`
	AmountCents int64     `json:"amountCents"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// IdleDeal is one scanner hit: an active deal plus the parties to warn.
type IdleDeal struct {
	DealID    uuid.UUID
	ClientID  uuid.UUID
	BrokerID  *uuid.UUID
	LoanType  string
	Status    string
	UpdatedAt time.Time
}

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (Deal, error) {
	if r == nil || r.pool == nil {
		return Deal{}, apperr.Internal(errRepoNotConfigured).WithOp(opGet)
	}

	var d Deal
	err := r.pool.QueryRow(ctx, `
		SELECT id, client_id, loan_type, amount_cents, status, created_at, updated_at
		FROM deals
		WHERE id = $1
	`, id).Scan(&d.ID, &d.ClientID, &d.LoanType, &d.AmountCents, &d.Status, &d.CreatedAt, &d.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Deal{}, apperr.NotFound("deal not found").WithOp(opGet)
	}
	if err != nil {
		return Deal{}, apperr.Internal(fmt.Sprintf("get deal failed: %v", err)).WithOp(opGet)
	}

	return d, nil
}

// UpdateStatus persists the transition and bumps updated_at, which resets the
// idle clock.
func (r *Repository) UpdateStatus(ctx context.Context, dealID uuid.UUID, status string) error {
	if r == nil || r.pool == nil {
		return apperr.Internal(errRepoNotConfigured).WithOp(opUpdateStatus)
	}
	if !ValidStatus(status) {
		return apperr.Validation("unknown deal status: " + status).WithOp(opUpdateStatus)
	}

	tag, err := r.pool.Exec(ctx, `
		UPDATE deals SET status = $2, updated_at = now() WHERE id = $1
	`, dealID, status)
	if err != nil {
		return apperr.Internal(fmt.Sprintf("update deal status failed: %v", err)).WithOp(opUpdateStatus)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("deal not found").WithOp(opUpdateStatus)
	}

	return nil
}

// UpdateField patches a single allow-listed column. Unknown fields fail
// loudly so a misconfigured workflow rule surfaces in the execution log
// instead of silently writing nothing.
func (r *Repository) UpdateField(ctx context.Context, dealID uuid.UUID, field, value string) error {
	if r == nil || r.pool == nil {
		return apperr.Internal(errRepoNotConfigured).WithOp(opUpdateField)
	}

	var query string
	var arg any
	switch field {
	case "status":
		if !ValidStatus(value) {
			return apperr.Validation("unknown deal status: " + value).WithOp(opUpdateField)
		}
		query = `UPDATE deals SET status = $2, updated_at = now() WHERE id = $1`
		arg = value
	case "loan_type":
		if value == "" {
			return apperr.Validation("loan_type must not be empty").WithOp(opUpdateField)
		}
		query = `UPDATE deals SET loan_type = $2, updated_at = now() WHERE id = $1`
		arg = value
	case "amount_cents":
		cents, parseErr := strconv.ParseInt(value, 10, 64)
		if parseErr != nil || cents < 0 {
			return apperr.Validation("amount_cents must be a non-negative integer").WithOp(opUpdateField)
		}
		query = `UPDATE deals SET amount_cents = $2, updated_at = now() WHERE id = $1`
		arg = cents
	default:
		return apperr.Validation(fmt.Sprintf("field %q is not updatable", field)).WithOp(opUpdateField)
	}

	tag, err := r.pool.Exec(ctx, query, dealID, arg)
	if err != nil {
		return apperr.Internal(fmt.Sprintf("update deal field failed: %v", err)).WithOp(opUpdateField)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("deal not found").WithOp(opUpdateField)
	}

	return nil
}

// GetParties returns the deal's client and, when one is assigned, the
// client's broker.
func (r *Repository) GetParties(ctx context.Context, dealID uuid.UUID) (uuid.UUID, *uuid.UUID, error) {
	if r == nil || r.pool == nil {
		return uuid.Nil, nil, apperr.Internal(errRepoNotConfigured).WithOp(opParties)
	}

	var clientID uuid.UUID
	var brokerID *uuid.UUID
	err := r.pool.QueryRow(ctx, `
		SELECT d.client_id, cp.assigned_broker_id
		FROM deals d
		LEFT JOIN client_profiles cp ON cp.user_id = d.client_id
		WHERE d.id = $1
	`, dealID).Scan(&clientID, &brokerID)
	if errors.Is(err, pgx.ErrNoRows) {
		return uuid.Nil, nil, apperr.NotFound("deal not found").WithOp(opParties)
	}
	if err != nil {
		return uuid.Nil, nil, apperr.Internal(fmt.Sprintf("get deal parties failed: %v", err)).WithOp(opParties)
	}

	return clientID, brokerID, nil
}

// SetAssignedBroker points the client at a broker, creating the client
// profile row when the client has none yet.
func (r *Repository) SetAssignedBroker(ctx context.Context, clientID, brokerID uuid.UUID) error {
	if r == nil || r.pool == nil {
		return apperr.Internal(errRepoNotConfigured).WithOp(opAssignBroker)
	}
	if clientID == uuid.Nil || brokerID == uuid.Nil {
		return apperr.Validation("clientId and brokerId are required").WithOp(opAssignBroker)
	}

	_, err := r.pool.Exec(ctx, `
		INSERT INTO client_profiles (user_id, assigned_broker_id)
		VALUES ($1, $2)
		ON CONFLICT (user_id) DO UPDATE SET assigned_broker_id = EXCLUDED.assigned_broker_id, updated_at = now()
	`, clientID, brokerID)
	if err != nil {
		return apperr.Internal(fmt.Sprintf("assign broker failed: %v", err)).WithOp(opAssignBroker)
	}

	return nil
}

// ListIdle returns active deals untouched since the cutoff, joined with the
// parties the scanner will warn.
func (r *Repository) ListIdle(ctx context.Context, cutoff time.Time) ([]IdleDeal, error) {
	if r == nil || r.pool == nil {
		return nil, apperr.Internal(errRepoNotConfigured).WithOp(opListIdle)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT d.id, d.client_id, cp.assigned_broker_id, d.loan_type, d.status, d.updated_at
		FROM deals d
		LEFT JOIN client_profiles cp ON cp.user_id = d.client_id
		WHERE d.status = ANY($1) AND d.updated_at < $2
		ORDER BY d.updated_at ASC
	`, ActiveStatuses, cutoff)
	if err != nil {
		return nil, apperr.Internal(fmt.Sprintf("list idle deals failed: %v", err)).WithOp(opListIdle)
	}
	defer rows.Close()

	items := make([]IdleDeal, 0)
	for rows.Next() {
		var d IdleDeal
		if scanErr := rows.Scan(&d.DealID, &d.ClientID, &d.BrokerID, &d.LoanType, &d.Status, &d.UpdatedAt); scanErr != nil {
			return nil, apperr.Internal(fmt.Sprintf("scan idle deal failed: %v", scanErr)).WithOp(opListIdle)
		}
		items = append(items, d)
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, apperr.Internal(fmt.Sprintf("iterate idle deals failed: %v", rowsErr)).WithOp(opListIdle)
	}

	return items, nil
}
