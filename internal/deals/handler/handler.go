package handler

import (
	"net/http"

	"loanflow_backend/internal/deals/repository"
	"loanflow_backend/internal/deals/service"
	"loanflow_backend/internal/deals/transport"
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

// Handler handles HTTP requests for deals.
type Handler struct {
	svc     *service.Service
	scanner *service.IdleScanner
	val     *validator.Validator
}

func New(svc *service.Service, scanner *service.IdleScanner, val *validator.Validator) *Handler {
	return &Handler{svc: svc, scanner: scanner, val: val}
}

// RegisterRoutes registers the deal routes.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/:id", h.GetByID)
	rg.POST("/:id/status", h.ChangeStatus)
	rg.GET("/:id/timeline", h.Timeline)
	rg.POST("/:id/communications", h.LogCommunication)
	rg.POST("/:id/notes", h.AddNote)
}

// RegisterAdminRoutes registers the manual job triggers.
func (h *Handler) RegisterAdminRoutes(rg *gin.RouterGroup) {
	rg.POST("/jobs/idle-scan", h.RunIdleScan)
}

func (h *Handler) GetByID(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidID, nil)
		return
	}

	deal, err := h.svc.GetDeal(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, deal)
}

// ChangeStatus handles POST /api/v1/deals/:id/status.
func (h *Handler) ChangeStatus(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidID, nil)
		return
	}

	var req transport.ChangeStatusRequest
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

	result, err := h.svc.ChangeStatus(c.Request.Context(), id, identity.UserID(), req.Status)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, result)
}

// Timeline handles GET /api/v1/deals/:id/timeline.
func (h *Handler) Timeline(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidID, nil)
		return
	}

	timeline, err := h.svc.BuildTimeline(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, gin.H{"items": timeline, "total": len(timeline)})
}

func (h *Handler) LogCommunication(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidID, nil)
		return
	}

	var req transport.LogCommunicationRequest
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

	comm, err := h.svc.LogCommunication(c.Request.Context(), repository.CreateCommunicationParams{
		DealID:    id,
		ActorID:   identity.UserID(),
		CommType:  req.CommType,
		Direction: req.Direction,
		Subject:   req.Subject,
		Body:      req.Body,
	})
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.JSON(c, http.StatusCreated, comm)
}

func (h *Handler) AddNote(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidID, nil)
		return
	}

	var req transport.AddNoteRequest
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

	if err := h.svc.AddNote(c.Request.Context(), id, identity.UserID(), req.Note); httpkit.HandleError(c, err) {
		return
	}

	httpkit.JSON(c, http.StatusCreated, gin.H{"status": "ok"})
}

// RunIdleScan handles POST /api/v1/admin/jobs/idle-scan. The same scan the
// scheduler runs nightly, triggered inline so admins see the counts.
func (h *Handler) RunIdleScan(c *gin.Context) {
	result, err := h.scanner.Scan(c.Request.Context())
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, result)
}
