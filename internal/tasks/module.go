// Package tasks provides the automated tasks module: follow-up work raised by
// workflow rules and the idle deal scanner, surfaced to its assignees.
package tasks

import (
	apphttp "loanflow_backend/internal/http"
	"loanflow_backend/internal/tasks/handler"
	"loanflow_backend/internal/tasks/repository"
	"loanflow_backend/platform/validator"
)

// Module represents the tasks domain module.
type Module struct {
	handler *handler.Handler
	Repo    *repository.Repository
}

// NewModule creates a tasks module over an existing repository. Other modules
// write tasks through the same repository instance; this module owns the read
// and lifecycle surface.
func NewModule(repo *repository.Repository, val *validator.Validator) *Module {
	return &Module{
		handler: handler.New(repo, val),
		Repo:    repo,
	}
}

// Name returns the module name for logging.
func (m *Module) Name() string {
	return "tasks"
}

// RegisterRoutes registers the module's routes under /api/v1/tasks and the
// per-deal task list under /api/v1/deals.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	tasks := ctx.Protected.Group("/tasks")
	m.handler.RegisterRoutes(tasks)
	m.handler.RegisterDealRoutes(ctx.Protected.Group("/deals"))
}

var _ apphttp.Module = (*Module)(nil)
