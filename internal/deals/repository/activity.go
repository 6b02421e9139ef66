package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"loanflow_backend/platform/apperr"

	"github.com/google/uuid"
)

const (
	opCreateActivity = "deals.repository.create_activity"
	opListActivity   = "deals.repository.list_activity"
)

// Activity event types. The timeline renders each type differently, so new
// types need a case there too.
const (
	ActivityStatusChange   = "status_change"
	ActivityNote           = "note"
	ActivityDocumentUpload = "document_upload"
	ActivityTaskCreated    = "task_created"
	ActivityBrokerAssigned = "broker_assigned"
	ActivityIdleWarning    = "idle_warning"
)

// ValidActivityType reports whether t is a known activity event type.
func ValidActivityType(t string) bool {
	switch t {
	case ActivityStatusChange, ActivityNote, ActivityDocumentUpload, ActivityTaskCreated, ActivityBrokerAssigned, ActivityIdleWarning:
		return true
	default:
		return false
	}
}

type Activity struct {
	ID          uuid.UUID      `json:"id"`
	DealID      uuid.UUID      `json:"dealId"`
	ActorID     uuid.UUID      `json:"actorId"`
	EventType   string         `json:"eventType"`
	Description string         `json:"description"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	CreatedAt   time.Time      `json:"createdAt"`
}

type CreateActivityParams struct {
	DealID      uuid.UUID
	ActorID     uuid.UUID
	EventType   string
	Description string
	Metadata    map[string]any
}

// CreateActivity appends one audit row to the deal's activity log.
func (r *Repository) CreateActivity(ctx context.Context, p CreateActivityParams) error {
	if r == nil || r.pool == nil {
		return apperr.Internal(errRepoNotConfigured).WithOp(opCreateActivity)
	}
	if p.DealID == uuid.Nil || p.ActorID == uuid.Nil {
		return apperr.Validation("dealId and actorId are required").WithOp(opCreateActivity)
	}
	if !ValidActivityType(p.EventType) {
		return apperr.Validation("unknown activity event type: " + p.EventType).WithOp(opCreateActivity)
	}

	var metadataJSON []byte
	if p.Metadata != nil {
		encoded, err := json.Marshal(p.Metadata)
		if err != nil {
			return apperr.Internal(fmt.Sprintf("encode activity metadata failed: %v", err)).WithOp(opCreateActivity)
		}
		metadataJSON = encoded
	}

	_, err := r.pool.Exec(ctx, `
		INSERT INTO deal_activity_log (deal_id, actor_id, event_type, description, metadata)
		VALUES ($1, $2, $3, $4, $5)
	`, p.DealID, p.ActorID, p.EventType, p.Description, metadataJSON)
	if err != nil {
		return apperr.Internal(fmt.Sprintf("create deal activity failed: %v", err)).WithOp(opCreateActivity)
	}

	return nil
}

// ListActivity returns the deal's full activity log, newest first.
func (r *Repository) ListActivity(ctx context.Context, dealID uuid.UUID) ([]Activity, error) {
	if r == nil || r.pool == nil {
		return nil, apperr.Internal(errRepoNotConfigured).WithOp(opListActivity)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT id, deal_id, actor_id, event_type, description, metadata, created_at
		FROM deal_activity_log
		WHERE deal_id = $1
		ORDER BY created_at DESC
	`, dealID)
	if err != nil {
		return nil, apperr.Internal(fmt.Sprintf("list deal activity failed: %v", err)).WithOp(opListActivity)
	}
	defer rows.Close()

	items := make([]Activity, 0)
	for rows.Next() {
		var a Activity
		var metadataRaw []byte
		if scanErr := rows.Scan(&a.ID, &a.DealID, &a.ActorID, &a.EventType, &a.Description, &metadataRaw, &a.CreatedAt); scanErr != nil {
			return nil, apperr.Internal(fmt.Sprintf("scan deal activity failed: %v", scanErr)).WithOp(opListActivity)
		}
		if len(metadataRaw) > 0 {
			if unmarshalErr := json.Unmarshal(metadataRaw, &a.Metadata); unmarshalErr != nil {
				return nil, apperr.Internal(fmt.Sprintf("decode activity metadata failed: %v", unmarshalErr)).WithOp(opListActivity)
			}
		}
		items = append(items, a)
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, apperr.Internal(fmt.Sprintf("iterate deal activity failed: %v", rowsErr)).WithOp(opListActivity)
	}

	return items, nil
}
