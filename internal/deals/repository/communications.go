package repository

import (
	"context"
	"fmt"
	"time"

	"loanflow_backend/platform/apperr"

	"github.com/google/uuid"
)

const (
	opCreateComm = "deals.repository.create_communication"
	opListComms  = "deals.repository.list_communications"
)

// Communication types and directions.
const (
	CommCall  = "call"
	CommEmail = "email"
	CommSMS   = "sms"

	DirectionInbound  = "inbound"
	DirectionOutbound = "outbound"
)

type Communication struct {
	ID        uuid.UUID `json:"id"`
	DealID    uuid.UUID `json:"dealId"`
	ActorID   uuid.UUID `json:"actorId"`
	CommType  string    `json:"commType"`
	Direction string    `json:"direction"`
	Subject   *string   `json:"subject,omitempty"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"createdAt"`
}

type CreateCommunicationParams struct {
	DealID    uuid.UUID
	ActorID   uuid.UUID
	CommType  string
	Direction string
	Subject   *string
	Body      string
}

// CreateCommunication logs a call, email or SMS touchpoint on the deal.
func (r *Repository) CreateCommunication(ctx context.Context, p CreateCommunicationParams) (Communication, error) {
	if r == nil || r.pool == nil {
		return Communication{}, apperr.Internal(errRepoNotConfigured).WithOp(opCreateComm)
	}
	if p.DealID == uuid.Nil || p.ActorID == uuid.Nil {
		return Communication{}, apperr.Validation("dealId and actorId are required").WithOp(opCreateComm)
	}
	switch p.CommType {
	case CommCall, CommEmail, CommSMS:
	default:
		return Communication{}, apperr.Validation("commType must be call, email or sms").WithOp(opCreateComm)
	}
	switch p.Direction {
	case DirectionInbound, DirectionOutbound:
	default:
		return Communication{}, apperr.Validation("direction must be inbound or outbound").WithOp(opCreateComm)
	}
	if p.Body == "" {
		return Communication{}, apperr.Validation("body is required").WithOp(opCreateComm)
	}

	var comm Communication
	err := r.pool.QueryRow(ctx, `
		INSERT INTO deal_communications (deal_id, actor_id, comm_type, direction, subject, body)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, deal_id, actor_id, comm_type, direction, subject, body, created_at
	`, p.DealID, p.ActorID, p.CommType, p.Direction, p.Subject, p.Body).Scan(
		&comm.ID, &comm.DealID, &comm.ActorID, &comm.CommType, &comm.Direction, &comm.Subject, &comm.Body, &comm.CreatedAt,
	)
	if err != nil {
		return Communication{}, apperr.Internal(fmt.Sprintf("create deal communication failed: %v", err)).WithOp(opCreateComm)
	}

	return comm, nil
}

// ListCommunications returns the deal's communications, newest first.
func (r *Repository) ListCommunications(ctx context.Context, dealID uuid.UUID) ([]Communication, error) {
	if r == nil || r.pool == nil {
		return nil, apperr.Internal(errRepoNotConfigured).WithOp(opListComms)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT id, deal_id, actor_id, comm_type, direction, subject, body, created_at
		FROM deal_communications
		WHERE deal_id = $1
		ORDER BY created_at DESC
	`, dealID)
	if err != nil {
		return nil, apperr.Internal(fmt.Sprintf("list deal communications failed: %v", err)).WithOp(opListComms)
	}
	defer rows.Close()

	items := make([]Communication, 0)
	for rows.Next() {
		var comm Communication
		if scanErr := rows.Scan(&comm.ID, &comm.DealID, &comm.ActorID, &comm.CommType, &comm.Direction, &comm.Subject, &comm.Body, &comm.CreatedAt); scanErr != nil {
			return nil, apperr.Internal(fmt.Sprintf("scan deal communication failed: %v", scanErr)).WithOp(opListComms)
		}
		items = append(items, comm)
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, apperr.Internal(fmt.Sprintf("iterate deal communications failed: %v", rowsErr)).WithOp(opListComms)
	}

	return items, nil
}
