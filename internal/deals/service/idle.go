package service

import (
	"context"
	"fmt"
	"time"

	"loanflow_backend/internal/deals/repository"
	"loanflow_backend/internal/notification"
	taskrepo "loanflow_backend/internal/tasks/repository"
	"loanflow_backend/platform/logger"

	"github.com/google/uuid"
)

const (
	idleTaskTitle     = "Review Idle Deal"
	idleTaskDueInDays = 3
)

// IdleDealSource lists scanner candidates.
type IdleDealSource interface {
	ListIdle(ctx context.Context, cutoff time.Time) ([]repository.IdleDeal, error)
}

// IdleNotifier delivers warnings and answers the dedup check.
type IdleNotifier interface {
	Dispatch(ctx context.Context, p notification.DispatchParams) error
	HasRecentDealNotification(ctx context.Context, dealID uuid.UUID, category string, since time.Time) (bool, error)
}

// TaskCreator creates the review task for the deal's broker.
type TaskCreator interface {
	Create(ctx context.Context, p taskrepo.CreateParams) (taskrepo.Task, error)
}

// IdleScanner finds active deals untouched past the threshold and warns
// their parties. Runs are overlap-tolerant: the lookback dedup means a
// second pass over the same deal is a no-op.
type IdleScanner struct {
	deals    IdleDealSource
	notifier IdleNotifier
	tasks    TaskCreator
	log      *logger.Logger

	threshold time.Duration
	lookback  time.Duration
	now       func() time.Time
}

func NewIdleScanner(deals IdleDealSource, notifier IdleNotifier, tasks TaskCreator, threshold, lookback time.Duration, log *logger.Logger) *IdleScanner {
	return &IdleScanner{
		deals:     deals,
		notifier:  notifier,
		tasks:     tasks,
		log:       log,
		threshold: threshold,
		lookback:  lookback,
		now:       time.Now,
	}
}

// IdleScanResult summarizes one scan pass.
type IdleScanResult struct {
	IdleDealsFound       int `json:"idleDealsFound"`
	NotificationsCreated int `json:"notificationsCreated"`
	Skipped              int `json:"skipped"`
	Failures             int `json:"failures"`
}

// Scan runs one pass. Each deal is handled inside its own error boundary:
// one bad deal increments Failures and the scan keeps going.
func (s *IdleScanner) Scan(ctx context.Context) (IdleScanResult, error) {
	now := s.now()
	idle, err := s.deals.ListIdle(ctx, now.Add(-s.threshold))
	if err != nil {
		return IdleScanResult{}, err
	}

	result := IdleScanResult{IdleDealsFound: len(idle)}
	for _, deal := range idle {
		notified, skipped, dealErr := s.processDeal(ctx, deal, now)
		result.NotificationsCreated += notified
		switch {
		case dealErr != nil:
			result.Failures++
			s.log.Error("idle deal processing failed", "error", dealErr, "dealId", deal.DealID)
		case skipped:
			result.Skipped++
		}
	}

	s.log.Info("idle deal scan complete",
		"found", result.IdleDealsFound,
		"notified", result.NotificationsCreated,
		"skipped", result.Skipped,
		"failures", result.Failures,
	)

	return result, nil
}

// processDeal warns both parties and creates the review task. The three
// writes are independent best-effort: one failing does not stop the others,
// and the first failure is reported so the deal counts against Failures.
func (s *IdleScanner) processDeal(ctx context.Context, deal repository.IdleDeal, now time.Time) (notified int, skipped bool, err error) {
	recent, err := s.notifier.HasRecentDealNotification(ctx, deal.DealID, notification.CategoryIdleDealWarning, now.Add(-s.lookback))
	if err != nil {
		return 0, false, fmt.Errorf("dedup check: %w", err)
	}
	if recent {
		return 0, true, nil
	}

	dealID := deal.DealID
	idleDays := int(now.Sub(deal.UpdatedAt).Hours() / 24)
	hasBroker := deal.BrokerID != nil && *deal.BrokerID != uuid.Nil

	var firstErr error
	if dispatchErr := s.notifier.Dispatch(ctx, notification.DispatchParams{
		UserID: deal.ClientID,
		Title:  "Deal Needs Attention",
		Message: fmt.Sprintf("Your %s application has had no activity for %d days. Please review the next steps.",
			statusLabel(deal.LoanType), idleDays),
		Category: notification.CategoryIdleDealWarning,
		DealID:   &dealID,
		Email:    true,
	}); dispatchErr != nil {
		firstErr = fmt.Errorf("notify client: %w", dispatchErr)
		s.log.Error("failed to warn client about idle deal", "error", dispatchErr, "dealId", deal.DealID)
	} else {
		notified++
	}

	if hasBroker {
		if dispatchErr := s.notifier.Dispatch(ctx, notification.DispatchParams{
			UserID:   *deal.BrokerID,
			Title:    "Deal Needs Attention",
			Message:  fmt.Sprintf("Deal %s has been idle for %d days in status %s.", deal.DealID, idleDays, statusLabel(deal.Status)),
			Category: notification.CategoryIdleDealWarning,
			DealID:   &dealID,
			Email:    true,
		}); dispatchErr != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("notify broker: %w", dispatchErr)
			}
			s.log.Error("failed to warn broker about idle deal", "error", dispatchErr, "dealId", deal.DealID)
		} else {
			notified++
		}
	}

	assignee := deal.ClientID
	if hasBroker {
		assignee = *deal.BrokerID
	}

	due := now.AddDate(0, 0, idleTaskDueInDays)
	if _, taskErr := s.tasks.Create(ctx, taskrepo.CreateParams{
		DealID:      deal.DealID,
		Title:       idleTaskTitle,
		Description: fmt.Sprintf("No activity on this deal since %s.", deal.UpdatedAt.Format("2006-01-02")),
		AssignedTo:  assignee,
		Priority:    taskrepo.PriorityHigh,
		DueDate:     &due,
	}); taskErr != nil {
		if firstErr == nil {
			firstErr = fmt.Errorf("create review task: %w", taskErr)
		}
		s.log.Error("failed to create idle review task", "error", taskErr, "dealId", deal.DealID)
	}

	return notified, false, firstErr
}
