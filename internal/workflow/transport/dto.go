package transport

import (
	"time"

	"loanflow_backend/internal/workflow/repository"

	"github.com/google/uuid"
)

// CreateRuleRequest is the request body for creating a workflow rule.
type CreateRuleRequest struct {
	Name       string              `json:"name" validate:"required,min=1,max=200"`
	Trigger    string              `json:"trigger" validate:"required,oneof=status_change"`
	FromStatus *string             `json:"fromStatus,omitempty" validate:"omitempty,min=1,max=50"`
	ToStatus   *string             `json:"toStatus,omitempty" validate:"omitempty,min=1,max=50"`
	Actions    []repository.Action `json:"actions" validate:"required,min=1,max=20"`
	IsActive   bool                `json:"isActive"`
}

// UpdateRuleRequest is the request body for updating a workflow rule.
type UpdateRuleRequest struct {
	Name       string              `json:"name" validate:"required,min=1,max=200"`
	FromStatus *string             `json:"fromStatus,omitempty" validate:"omitempty,min=1,max=50"`
	ToStatus   *string             `json:"toStatus,omitempty" validate:"omitempty,min=1,max=50"`
	Actions    []repository.Action `json:"actions" validate:"required,min=1,max=20"`
	IsActive   bool                `json:"isActive"`
}

// SetActiveRequest toggles a rule without touching its definition.
type SetActiveRequest struct {
	IsActive bool `json:"isActive"`
}

// RuleResponse is the response body for a workflow rule.
type RuleResponse struct {
	ID         uuid.UUID           `json:"id"`
	Name       string              `json:"name"`
	Trigger    string              `json:"trigger"`
	FromStatus *string             `json:"fromStatus,omitempty"`
	ToStatus   *string             `json:"toStatus,omitempty"`
	Actions    []repository.Action `json:"actions"`
	IsActive   bool                `json:"isActive"`
	CreatedBy  uuid.UUID           `json:"createdBy"`
	CreatedAt  time.Time           `json:"createdAt"`
	UpdatedAt  time.Time           `json:"updatedAt"`
}

// FromRule maps a stored rule to its API shape.
func FromRule(r repository.Rule) RuleResponse {
	return RuleResponse{
		ID:         r.ID,
		Name:       r.Name,
		Trigger:    r.Trigger,
		FromStatus: r.FromStatus,
		ToStatus:   r.ToStatus,
		Actions:    r.Actions,
		IsActive:   r.IsActive,
		CreatedBy:  r.CreatedBy,
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
	}
}
