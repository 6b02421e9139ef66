// Package callbacks provides the scheduled callback domain module.
package callbacks

import (
	"loanflow_backend/internal/callbacks/handler"
	"loanflow_backend/internal/callbacks/repository"
	"loanflow_backend/internal/callbacks/service"
	"loanflow_backend/internal/events"
	apphttp "loanflow_backend/internal/http"
	"loanflow_backend/platform/logger"
	"loanflow_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module represents the callbacks domain module.
type Module struct {
	handler *handler.Handler
	Service *service.Service
}

// NewModule creates a callbacks module with all dependencies wired.
func NewModule(pool *pgxpool.Pool, bus events.Bus, val *validator.Validator, log *logger.Logger) *Module {
	repo := repository.New(pool)
	svc := service.New(repo, bus, log)
	h := handler.New(svc, val)

	return &Module{
		handler: h,
		Service: svc,
	}
}

// Name returns the module name for logging.
func (m *Module) Name() string {
	return "callbacks"
}

// RegisterRoutes registers the module's routes under /api/v1/callbacks and
// the admin job trigger.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	callbacks := ctx.Protected.Group("/callbacks")
	m.handler.RegisterRoutes(callbacks)
	m.handler.RegisterAdminRoutes(ctx.Admin)
}

var _ apphttp.Module = (*Module)(nil)
