package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"loanflow_backend/platform/apperr"

	"github.com/google/uuid"
)

// Execution outcomes.
const (
	ExecutionSuccess = "success"
	ExecutionFailed  = "failed"
)

// Execution is one append-only audit row: rule X fired for deal Y with this
// outcome. Rows are never updated or deleted.
type Execution struct {
	ID         uuid.UUID      `json:"id"`
	RuleID     uuid.UUID      `json:"ruleId"`
	DealID     uuid.UUID      `json:"dealId"`
	Trigger    string         `json:"trigger"`
	Status     string         `json:"status"`
	Error      *string        `json:"error,omitempty"`
	Context    map[string]any `json:"context,omitempty"`
	ExecutedAt time.Time      `json:"executedAt"`
}

type RecordExecutionParams struct {
	RuleID  uuid.UUID
	DealID  uuid.UUID
	Trigger string
	Status  string
	Error   *string
	Context map[string]any
}

// RecordExecution appends one audit row for a rule firing.
func (r *Repository) RecordExecution(ctx context.Context, p RecordExecutionParams) error {
	if r == nil || r.pool == nil {
		return apperr.Internal(errRepoNotConfigured).WithOp(opRecordExec)
	}
	if p.RuleID == uuid.Nil || p.DealID == uuid.Nil {
		return apperr.Validation("ruleId and dealId are required").WithOp(opRecordExec)
	}

	var contextJSON []byte
	if p.Context != nil {
		encoded, err := json.Marshal(p.Context)
		if err != nil {
			return apperr.Internal(fmt.Sprintf("encode execution context failed: %v", err)).WithOp(opRecordExec)
		}
		contextJSON = encoded
	}

	_, err := r.pool.Exec(ctx, `
		INSERT INTO workflow_executions (rule_id, deal_id, trigger, status, error, context)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, p.RuleID, p.DealID, p.Trigger, p.Status, p.Error, contextJSON)
	if err != nil {
		return apperr.Internal(fmt.Sprintf("record workflow execution failed: %v", err)).WithOp(opRecordExec)
	}

	return nil
}

// ListExecutions returns the newest audit rows for a rule.
func (r *Repository) ListExecutions(ctx context.Context, ruleID uuid.UUID, limit int) ([]Execution, error) {
	if r == nil || r.pool == nil {
		return nil, apperr.Internal(errRepoNotConfigured).WithOp(opListExecs)
	}
	if limit < 1 || limit > 200 {
		limit = 50
	}

	rows, err := r.pool.Query(ctx, `
		SELECT id, rule_id, deal_id, trigger, status, error, context, executed_at
		FROM workflow_executions
		WHERE rule_id = $1
		ORDER BY executed_at DESC
		LIMIT $2
	`, ruleID, limit)
	if err != nil {
		return nil, apperr.Internal(fmt.Sprintf("list workflow executions failed: %v", err)).WithOp(opListExecs)
	}
	defer rows.Close()

	items := make([]Execution, 0, limit)
	for rows.Next() {
		var e Execution
		var contextRaw []byte
		if scanErr := rows.Scan(&e.ID, &e.RuleID, &e.DealID, &e.Trigger, &e.Status, &e.Error, &contextRaw, &e.ExecutedAt); scanErr != nil {
			return nil, apperr.Internal(fmt.Sprintf("scan workflow execution failed: %v", scanErr)).WithOp(opListExecs)
		}
		if len(contextRaw) > 0 {
			if unmarshalErr := json.Unmarshal(contextRaw, &e.Context); unmarshalErr != nil {
				return nil, apperr.Internal(fmt.Sprintf("decode execution context failed: %v", unmarshalErr)).WithOp(opListExecs)
			}
		}
		items = append(items, e)
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, apperr.Internal(fmt.Sprintf("iterate workflow executions failed: %v", rowsErr)).WithOp(opListExecs)
	}

	return items, nil
}
