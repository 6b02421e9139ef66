// Package repository provides persistence for automated tasks raised by the
// workflow engine and the idle deal scanner.
package repository

import (
	"context"
	"fmt"
	"time"

	"loanflow_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	opCreate       = "tasks.repository.create"
	opList         = "tasks.repository.list"
	opUpdateStatus = "tasks.repository.update_status"

	errRepoNotConfigured = "task repository not configured"
)

// Task priorities.
const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
	PriorityUrgent = "urgent"
)

// Task lifecycle statuses.
const (
	StatusPending    = "pending"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
	StatusCancelled  = "cancelled"
)

type Task struct {
	ID          uuid.UUID  `json:"id"`
	DealID      uuid.UUID  `json:"dealId"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	AssignedTo  uuid.UUID  `json:"assignedTo"`
	Priority    string     `json:"priority"`
	DueDate     *time.Time `json:"dueDate,omitempty"`
	Status      string     `json:"status"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
}

type CreateParams struct {
	DealID      uuid.UUID
	Title       string
	Description string
	AssignedTo  uuid.UUID
	Priority    string
	DueDate     *time.Time
}

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Create(ctx context.Context, p CreateParams) (Task, error) {
	if r == nil || r.pool == nil {
		return Task{}, apperr.Internal(errRepoNotConfigured).WithOp(opCreate)
	}
	if p.DealID == uuid.Nil || p.AssignedTo == uuid.Nil {
		return Task{}, apperr.Validation("dealId and assignedTo are required").WithOp(opCreate)
	}
	if p.Title == "" {
		return Task{}, apperr.Validation("title is required").WithOp(opCreate)
	}

	priority := p.Priority
	if priority == "" {
		priority = PriorityMedium
	}

	var t Task
	err := r.pool.QueryRow(ctx, `
		INSERT INTO automated_tasks (deal_id, title, description, assigned_to, priority, due_date, status)
		VALUES ($1, $2, $3, $4, $5, $6, 'pending')
		RETURNING id, deal_id, title, description, assigned_to, priority, due_date, status, completed_at, created_at
	`, p.DealID, p.Title, p.Description, p.AssignedTo, priority, p.DueDate).Scan(
		&t.ID, &t.DealID, &t.Title, &t.Description, &t.AssignedTo, &t.Priority, &t.DueDate, &t.Status, &t.CompletedAt, &t.CreatedAt,
	)
	if err != nil {
		return Task{}, apperr.Internal(fmt.Sprintf("create task failed: %v", err)).WithOp(opCreate)
	}

	return t, nil
}

func (r *Repository) ListByAssignee(ctx context.Context, userID uuid.UUID, limit, offset int) ([]Task, error) {
	if r == nil || r.pool == nil {
		return nil, apperr.Internal(errRepoNotConfigured).WithOp(opList)
	}
	if userID == uuid.Nil {
		return nil, apperr.Validation("userId is required").WithOp(opList)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT id, deal_id, title, description, assigned_to, priority, due_date, status, completed_at, created_at
		FROM automated_tasks
		WHERE assigned_to = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	if err != nil {
		return nil, apperr.Internal(fmt.Sprintf("list tasks query failed: %v", err)).WithOp(opList)
	}
	defer rows.Close()

	return collectTasks(rows)
}

func (r *Repository) ListByDeal(ctx context.Context, dealID uuid.UUID) ([]Task, error) {
	if r == nil || r.pool == nil {
		return nil, apperr.Internal(errRepoNotConfigured).WithOp(opList)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT id, deal_id, title, description, assigned_to, priority, due_date, status, completed_at, created_at
		FROM automated_tasks
		WHERE deal_id = $1
		ORDER BY created_at DESC
	`, dealID)
	if err != nil {
		return nil, apperr.Internal(fmt.Sprintf("list deal tasks query failed: %v", err)).WithOp(opList)
	}
	defer rows.Close()

	return collectTasks(rows)
}

// UpdateStatus moves a task through its lifecycle. Terminal statuses record
// the completion timestamp.
func (r *Repository) UpdateStatus(ctx context.Context, taskID uuid.UUID, status string) error {
	if r == nil || r.pool == nil {
		return apperr.Internal(errRepoNotConfigured).WithOp(opUpdateStatus)
	}
	switch status {
	case StatusPending, StatusInProgress, StatusCompleted, StatusCancelled:
	default:
		return apperr.Validation("unknown task status: " + status).WithOp(opUpdateStatus)
	}

	tag, err := r.pool.Exec(ctx, `
		UPDATE automated_tasks
		SET status = $2,
		    completed_at = CASE WHEN $2 IN ('completed', 'cancelled') THEN now() ELSE NULL END
		WHERE id = $1
	`, taskID, status)
	if err != nil {
		return apperr.Internal(fmt.Sprintf("update task status failed: %v", err)).WithOp(opUpdateStatus)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("task not found").WithOp(opUpdateStatus)
	}

	return nil
}

func collectTasks(rows pgx.Rows) ([]Task, error) {
	items := make([]Task, 0)
	for rows.Next() {
		var t Task
		if err := rows.Scan(&t.ID, &t.DealID, &t.Title, &t.Description, &t.AssignedTo, &t.Priority, &t.DueDate, &t.Status, &t.CompletedAt, &t.CreatedAt); err != nil {
			return nil, apperr.Internal(fmt.Sprintf("scan task failed: %v", err)).WithOp(opList)
		}
		items = append(items, t)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Internal(fmt.Sprintf("iterate tasks failed: %v", err)).WithOp(opList)
	}
	return items, nil
}
