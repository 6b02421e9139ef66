// Package handler exposes automated tasks over HTTP: the caller's own task
// list, the per-deal task list and the status lifecycle mutation.
package handler

import (
	"context"
	"net/http"
	"strconv"

	"loanflow_backend/internal/tasks/repository"
	"loanflow_backend/internal/tasks/transport"
	"loanflow_backend/platform/httpkit"
	"loanflow_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
	msgInvalidID        = "invalid id"
)

// TaskStore is the repository surface the handler reads and writes.
type TaskStore interface {
	ListByAssignee(ctx context.Context, userID uuid.UUID, limit, offset int) ([]repository.Task, error)
	ListByDeal(ctx context.Context, dealID uuid.UUID) ([]repository.Task, error)
	UpdateStatus(ctx context.Context, taskID uuid.UUID, status string) error
}

type Handler struct {
	store TaskStore
	val   *validator.Validator
}

func New(store TaskStore, val *validator.Validator) *Handler {
	return &Handler{store: store, val: val}
}

// RegisterRoutes registers the task routes.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.ListMine)
	rg.PATCH("/:id/status", h.UpdateStatus)
}

// RegisterDealRoutes registers the per-deal task list under the deals group.
func (h *Handler) RegisterDealRoutes(rg *gin.RouterGroup) {
	rg.GET("/:id/tasks", h.ListByDeal)
}

func (h *Handler) ListMine(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if limit < 1 {
		limit = 20
	}
	if limit > 50 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	items, err := h.store.ListByAssignee(c.Request.Context(), identity.UserID(), limit, offset)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, gin.H{"items": items, "total": len(items)})
}

func (h *Handler) ListByDeal(c *gin.Context) {
	dealID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidID, nil)
		return
	}

	items, err := h.store.ListByDeal(c.Request.Context(), dealID)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, gin.H{"items": items, "total": len(items)})
}

func (h *Handler) UpdateStatus(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidID, nil)
		return
	}

	var req transport.UpdateTaskStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	if err := h.store.UpdateStatus(c.Request.Context(), id, req.Status); httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, gin.H{"status": "ok"})
}
