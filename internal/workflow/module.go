// Package workflow provides the rule automation domain module: admin CRUD
// for rules plus the engine that executes them on status transitions.
package workflow

import (
	apphttp "loanflow_backend/internal/http"
	"loanflow_backend/internal/workflow/engine"
	"loanflow_backend/internal/workflow/handler"
	"loanflow_backend/internal/workflow/repository"
	"loanflow_backend/platform/logger"
	"loanflow_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module represents the workflow domain module.
type Module struct {
	handler *handler.Handler
	repo    *repository.Repository
	engine  *engine.Engine
}

// NewModule creates a workflow module. The engine's collaborators live in
// other modules, so they are passed in rather than built here.
func NewModule(pool *pgxpool.Pool, val *validator.Validator, deals engine.DealStore, tasks engine.TaskCreator, notifier engine.Notifier, log *logger.Logger) *Module {
	repo := repository.New(pool)
	eng := engine.New(repo, deals, tasks, notifier, log)
	h := handler.New(repo, val)

	return &Module{
		handler: h,
		repo:    repo,
		engine:  eng,
	}
}

// Name returns the module name for logging.
func (m *Module) Name() string {
	return "workflow"
}

// Engine exposes the rule engine to the deals module.
func (m *Module) Engine() *engine.Engine { return m.engine }

// RegisterRoutes registers rule administration under the admin group.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	rules := ctx.Admin.Group("/workflow-rules")
	m.handler.RegisterRoutes(rules)
}

var _ apphttp.Module = (*Module)(nil)
