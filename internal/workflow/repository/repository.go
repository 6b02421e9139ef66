// Package repository persists workflow rules and their execution log.
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"loanflow_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	opCreate     = "workflow.repository.create"
	opGet        = "workflow.repository.get"
	opList       = "workflow.repository.list"
	opListActive = "workflow.repository.list_active"
	opUpdate     = "workflow.repository.update"
	opSetActive  = "workflow.repository.set_active"
	opDelete     = "workflow.repository.delete"
	opRecordExec = "workflow.repository.record_execution"
	opListExecs  = "workflow.repository.list_executions"

	errRepoNotConfigured = "workflow repository not configured"
)

// Rule triggers.
const (
	TriggerStatusChange = "status_change"
)

// Rule is a workflow automation rule. FromStatus/ToStatus nil means
// "any status" on that side of the transition.
type Rule struct {
	ID         uuid.UUID `json:"id"`
	Name       string    `json:"name"`
	Trigger    string    `json:"trigger"`
	FromStatus *string   `json:"fromStatus,omitempty"`
	ToStatus   *string   `json:"toStatus,omitempty"`
	Actions    []Action  `json:"actions"`
	IsActive   bool      `json:"isActive"`
	CreatedBy  uuid.UUID `json:"createdBy"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

type CreateRuleParams struct {
	Name       string
	Trigger    string
	FromStatus *string
	ToStatus   *string
	Actions    []Action
	IsActive   bool
	CreatedBy  uuid.UUID
}

type UpdateRuleParams struct {
	Name       string
	FromStatus *string
	ToStatus   *string
	Actions    []Action
	IsActive   bool
}

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Create(ctx context.Context, p CreateRuleParams) (Rule, error) {
	if r == nil || r.pool == nil {
		return Rule{}, apperr.Internal(errRepoNotConfigured).WithOp(opCreate)
	}
	if p.Name == "" {
		return Rule{}, apperr.Validation("rule name is required").WithOp(opCreate)
	}
	if p.Trigger != TriggerStatusChange {
		return Rule{}, apperr.Validation("unknown trigger: " + p.Trigger).WithOp(opCreate)
	}
	if err := ValidateActions(p.Actions); err != nil {
		return Rule{}, err
	}

	actionsJSON, err := json.Marshal(p.Actions)
	if err != nil {
		return Rule{}, apperr.Internal(fmt.Sprintf("encode rule actions failed: %v", err)).WithOp(opCreate)
	}

	row := r.pool.QueryRow(ctx, `
		INSERT INTO workflow_rules (name, trigger, from_status, to_status, actions, is_active, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, name, trigger, from_status, to_status, actions, is_active, created_by, created_at, updated_at
	`, p.Name, p.Trigger, p.FromStatus, p.ToStatus, actionsJSON, p.IsActive, p.CreatedBy)

	rule, err := scanRule(row)
	if err != nil {
		return Rule{}, apperr.Internal(fmt.Sprintf("create workflow rule failed: %v", err)).WithOp(opCreate)
	}

	return rule, nil
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (Rule, error) {
	if r == nil || r.pool == nil {
		return Rule{}, apperr.Internal(errRepoNotConfigured).WithOp(opGet)
	}

	row := r.pool.QueryRow(ctx, `
		SELECT id, name, trigger, from_status, to_status, actions, is_active, created_by, created_at, updated_at
		FROM workflow_rules
		WHERE id = $1
	`, id)

	rule, err := scanRule(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Rule{}, apperr.NotFound("workflow rule not found").WithOp(opGet)
	}
	if err != nil {
		return Rule{}, apperr.Internal(fmt.Sprintf("get workflow rule failed: %v", err)).WithOp(opGet)
	}

	return rule, nil
}

func (r *Repository) List(ctx context.Context) ([]Rule, error) {
	if r == nil || r.pool == nil {
		return nil, apperr.Internal(errRepoNotConfigured).WithOp(opList)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT id, name, trigger, from_status, to_status, actions, is_active, created_by, created_at, updated_at
		FROM workflow_rules
		ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, apperr.Internal(fmt.Sprintf("list workflow rules failed: %v", err)).WithOp(opList)
	}
	defer rows.Close()

	return collectRules(rows, opList)
}

// ListActiveByTrigger returns the active rules the engine should evaluate,
// oldest first so execution order is stable.
func (r *Repository) ListActiveByTrigger(ctx context.Context, trigger string) ([]Rule, error) {
	if r == nil || r.pool == nil {
		return nil, apperr.Internal(errRepoNotConfigured).WithOp(opListActive)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT id, name, trigger, from_status, to_status, actions, is_active, created_by, created_at, updated_at
		FROM workflow_rules
		WHERE trigger = $1 AND is_active = TRUE
		ORDER BY created_at ASC
	`, trigger)
	if err != nil {
		return nil, apperr.Internal(fmt.Sprintf("list active workflow rules failed: %v", err)).WithOp(opListActive)
	}
	defer rows.Close()

	return collectRules(rows, opListActive)
}

func (r *Repository) Update(ctx context.Context, id uuid.UUID, p UpdateRuleParams) (Rule, error) {
	if r == nil || r.pool == nil {
		return Rule{}, apperr.Internal(errRepoNotConfigured).WithOp(opUpdate)
	}
	if p.Name == "" {
		return Rule{}, apperr.Validation("rule name is required").WithOp(opUpdate)
	}
	if err := ValidateActions(p.Actions); err != nil {
		return Rule{}, err
	}

	actionsJSON, err := json.Marshal(p.Actions)
	if err != nil {
		return Rule{}, apperr.Internal(fmt.Sprintf("encode rule actions failed: %v", err)).WithOp(opUpdate)
	}

	row := r.pool.QueryRow(ctx, `
		UPDATE workflow_rules
		SET name = $2, from_status = $3, to_status = $4, actions = $5, is_active = $6, updated_at = now()
		WHERE id = $1
		RETURNING id, name, trigger, from_status, to_status, actions, is_active, created_by, created_at, updated_at
	`, id, p.Name, p.FromStatus, p.ToStatus, actionsJSON, p.IsActive)

	rule, err := scanRule(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Rule{}, apperr.NotFound("workflow rule not found").WithOp(opUpdate)
	}
	if err != nil {
		return Rule{}, apperr.Internal(fmt.Sprintf("update workflow rule failed: %v", err)).WithOp(opUpdate)
	}

	return rule, nil
}

func (r *Repository) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	if r == nil || r.pool == nil {
		return apperr.Internal(errRepoNotConfigured).WithOp(opSetActive)
	}

	tag, err := r.pool.Exec(ctx, `
		UPDATE workflow_rules SET is_active = $2, updated_at = now() WHERE id = $1
	`, id, active)
	if err != nil {
		return apperr.Internal(fmt.Sprintf("set workflow rule active failed: %v", err)).WithOp(opSetActive)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("workflow rule not found").WithOp(opSetActive)
	}

	return nil
}

func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	if r == nil || r.pool == nil {
		return apperr.Internal(errRepoNotConfigured).WithOp(opDelete)
	}

	tag, err := r.pool.Exec(ctx, `DELETE FROM workflow_rules WHERE id = $1`, id)
	if err != nil {
		return apperr.Internal(fmt.Sprintf("delete workflow rule failed: %v", err)).WithOp(opDelete)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("workflow rule not found").WithOp(opDelete)
	}

	return nil
}

func scanRule(row pgx.Row) (Rule, error) {
	var rule Rule
	var actionsRaw []byte
	if err := row.Scan(&rule.ID, &rule.Name, &rule.Trigger, &rule.FromStatus, &rule.ToStatus,
		&actionsRaw, &rule.IsActive, &rule.CreatedBy, &rule.CreatedAt, &rule.UpdatedAt); err != nil {
		return Rule{}, err
	}

	actions, err := decodeActions(actionsRaw)
	if err != nil {
		return Rule{}, err
	}
	rule.Actions = actions

	return rule, nil
}

func collectRules(rows pgx.Rows, op string) ([]Rule, error) {
	items := make([]Rule, 0)
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, apperr.Internal(fmt.Sprintf("scan workflow rule failed: %v", err)).WithOp(op)
		}
		items = append(items, rule)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Internal(fmt.Sprintf("iterate workflow rules failed: %v", err)).WithOp(op)
	}
	return items, nil
}
