// Package deals provides the deals domain module: status transitions, the
// merged timeline and the idle deal scanner.
package deals

import (
	"loanflow_backend/internal/deals/handler"
	"loanflow_backend/internal/deals/repository"
	"loanflow_backend/internal/deals/service"
	"loanflow_backend/internal/events"
	apphttp "loanflow_backend/internal/http"
	"loanflow_backend/platform/config"
	"loanflow_backend/platform/logger"
	"loanflow_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module represents the deals domain module.
type Module struct {
	handler *handler.Handler
	Repo    *repository.Repository
	Service *service.Service
	Scanner *service.IdleScanner
}

// NewModule creates a deals module with all dependencies wired. The rule
// evaluator, notifier and task creator live in other modules and are passed
// in by the composition root.
func NewModule(
	pool *pgxpool.Pool,
	bus events.Bus,
	rules service.RuleEvaluator,
	notifier service.IdleNotifier,
	tasks service.TaskCreator,
	cfg config.EngineConfig,
	val *validator.Validator,
	log *logger.Logger,
) *Module {
	repo := repository.New(pool)
	svc := service.New(repo, bus, rules, log)
	scanner := service.NewIdleScanner(repo, notifier, tasks, cfg.GetIdleDealThreshold(), cfg.GetIdleWarningLookback(), log)
	h := handler.New(svc, scanner, val)

	return &Module{
		handler: h,
		Repo:    repo,
		Service: svc,
		Scanner: scanner,
	}
}

// Name returns the module name for logging.
func (m *Module) Name() string {
	return "deals"
}

// RegisterRoutes registers the module's routes under /api/v1/deals and the
// admin job trigger.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	deals := ctx.Protected.Group("/deals")
	m.handler.RegisterRoutes(deals)
	m.handler.RegisterAdminRoutes(ctx.Admin)
}

var _ apphttp.Module = (*Module)(nil)
