// Package service implements deal workflows: status transitions, the
// activity timeline and the idle deal scan.
package service

import (
	"context"
	"fmt"

	"loanflow_backend/internal/deals/repository"
	"loanflow_backend/internal/events"
	"loanflow_backend/internal/workflow/engine"
	"loanflow_backend/platform/apperr"
	"loanflow_backend/platform/logger"

	"github.com/google/uuid"
)

// DealStore is the repository surface the service reads and writes.
type DealStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (repository.Deal, error)
	UpdateStatus(ctx context.Context, dealID uuid.UUID, status string) error
	CreateActivity(ctx context.Context, p repository.CreateActivityParams) error
	ListActivity(ctx context.Context, dealID uuid.UUID) ([]repository.Activity, error)
	CreateCommunication(ctx context.Context, p repository.CreateCommunicationParams) (repository.Communication, error)
	ListCommunications(ctx context.Context, dealID uuid.UUID) ([]repository.Communication, error)
	GetProfileNames(ctx context.Context, userIDs []uuid.UUID) (map[uuid.UUID]string, error)
}

// RuleEvaluator runs workflow rules for a transition.
type RuleEvaluator interface {
	EvaluateStatusChange(ctx context.Context, in engine.StatusChangeInput) (int, error)
}

type Service struct {
	store DealStore
	bus   events.Bus
	rules RuleEvaluator
	log   *logger.Logger
}

func New(store DealStore, bus events.Bus, rules RuleEvaluator, log *logger.Logger) *Service {
	return &Service{
		store: store,
		bus:   bus,
		rules: rules,
		log:   log,
	}
}

// TransitionResult reports what a status change caused.
type TransitionResult struct {
	Deal            repository.Deal `json:"deal"`
	ActionsExecuted int             `json:"actionsExecuted"`
}

// ChangeStatus runs the transition pipeline in a fixed order: persist the
// new status, append the activity row, notify subscribers, then evaluate
// workflow rules. Only the status write itself can fail the request; every
// later step is logged and the transition stands.
//
// A same-status invocation is accepted and still runs every step, so the
// caller owns not repeating a logical transition.
func (s *Service) ChangeStatus(ctx context.Context, dealID, actorID uuid.UUID, newStatus string) (TransitionResult, error) {
	if !repository.ValidStatus(newStatus) {
		return TransitionResult{}, apperr.Validation("unknown deal status: " + newStatus)
	}

	deal, err := s.store.GetByID(ctx, dealID)
	if err != nil {
		return TransitionResult{}, err
	}
	oldStatus := deal.Status

	if err := s.store.UpdateStatus(ctx, dealID, newStatus); err != nil {
		return TransitionResult{}, err
	}
	deal.Status = newStatus

	if err := s.store.CreateActivity(ctx, repository.CreateActivityParams{
		DealID:      dealID,
		ActorID:     actorID,
		EventType:   repository.ActivityStatusChange,
		Description: fmt.Sprintf("Status changed from %s to %s", oldStatus, newStatus),
		Metadata: map[string]any{
			"fromStatus": oldStatus,
			"toStatus":   newStatus,
		},
	}); err != nil {
		s.log.Error("failed to write status change activity", "error", err, "dealId", dealID)
	}

	if err := s.bus.PublishSync(ctx, events.DealStatusChanged{
		BaseEvent: events.NewBaseEvent(),
		DealID:    dealID,
		ClientID:  deal.ClientID,
		ActorID:   actorID,
		OldStatus: oldStatus,
		NewStatus: newStatus,
		LoanType:  deal.LoanType,
	}); err != nil {
		s.log.Error("status change notification failed", "error", err, "dealId", dealID)
	}

	actions := 0
	if s.rules != nil {
		executed, evalErr := s.rules.EvaluateStatusChange(ctx, engine.StatusChangeInput{
			DealID:    dealID,
			ClientID:  deal.ClientID,
			ActorID:   actorID,
			OldStatus: oldStatus,
			NewStatus: newStatus,
			LoanType:  deal.LoanType,
		})
		if evalErr != nil {
			s.log.Error("workflow rule evaluation failed", "error", evalErr, "dealId", dealID)
		}
		actions = executed
	}

	return TransitionResult{Deal: deal, ActionsExecuted: actions}, nil
}

// GetDeal returns a single deal.
func (s *Service) GetDeal(ctx context.Context, dealID uuid.UUID) (repository.Deal, error) {
	return s.store.GetByID(ctx, dealID)
}

// LogCommunication records a call, email or SMS touchpoint on the deal.
func (s *Service) LogCommunication(ctx context.Context, p repository.CreateCommunicationParams) (repository.Communication, error) {
	if _, err := s.store.GetByID(ctx, p.DealID); err != nil {
		return repository.Communication{}, err
	}
	return s.store.CreateCommunication(ctx, p)
}

// AddNote appends a free-form note to the deal's activity log.
func (s *Service) AddNote(ctx context.Context, dealID, actorID uuid.UUID, note string) error {
	if note == "" {
		return apperr.Validation("note must not be empty")
	}
	if _, err := s.store.GetByID(ctx, dealID); err != nil {
		return err
	}
	return s.store.CreateActivity(ctx, repository.CreateActivityParams{
		DealID:      dealID,
		ActorID:     actorID,
		EventType:   repository.ActivityNote,
		Description: note,
	})
}
