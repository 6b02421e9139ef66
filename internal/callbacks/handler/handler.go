package handler

import (
	"context"
	"net/http"

	"loanflow_backend/internal/callbacks/repository"
	"loanflow_backend/internal/callbacks/service"
	"loanflow_backend/internal/callbacks/transport"
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

// Handler handles HTTP requests for scheduled callbacks.
type Handler struct {
	svc *service.Service
	val *validator.Validator
}

func New(svc *service.Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

// RegisterRoutes registers the callback routes.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.List)
	rg.POST("", h.Schedule)
	rg.PATCH("/:id/complete", h.Complete)
	rg.PATCH("/:id/cancel", h.Cancel)
}

// RegisterAdminRoutes registers the manual reminder scan trigger.
func (h *Handler) RegisterAdminRoutes(rg *gin.RouterGroup) {
	rg.POST("/jobs/callback-reminders", h.RunReminderScan)
}

func (h *Handler) List(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	includeDone := c.Query("includeDone") == "true"
	items, err := h.svc.List(c.Request.Context(), identity.UserID(), includeDone)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, gin.H{"items": items, "total": len(items)})
}

func (h *Handler) Schedule(c *gin.Context) {
	var req transport.ScheduleCallbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	cb, err := h.svc.Schedule(c.Request.Context(), repository.CreateParams{
		Title:         req.Title,
		Notes:         req.Notes,
		ScheduledBy:   identity.UserID(),
		ContactUserID: req.ContactUserID,
		DealID:        req.DealID,
		ScheduledAt:   req.ScheduledAt,
	})
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.JSON(c, http.StatusCreated, cb)
}

func (h *Handler) Complete(c *gin.Context) {
	h.updateStatus(c, h.svc.Complete)
}

func (h *Handler) Cancel(c *gin.Context) {
	h.updateStatus(c, h.svc.Cancel)
}

func (h *Handler) updateStatus(c *gin.Context, update func(ctx context.Context, id, userID uuid.UUID) error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidID, nil)
		return
	}

	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	if err := update(c.Request.Context(), id, identity.UserID()); httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, gin.H{"status": "ok"})
}

// RunReminderScan handles POST /api/v1/admin/jobs/callback-reminders.
func (h *Handler) RunReminderScan(c *gin.Context) {
	result, err := h.svc.ProcessDueReminders(c.Request.Context())
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, result)
}
