package handler

import (
	"net/http"
	"strconv"

	"loanflow_backend/internal/workflow/repository"
	"loanflow_backend/internal/workflow/transport"
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

// Handler handles HTTP requests for workflow rule administration.
type Handler struct {
	repo *repository.Repository
	val  *validator.Validator
}

func New(repo *repository.Repository, val *validator.Validator) *Handler {
	return &Handler{repo: repo, val: val}
}

// RegisterRoutes registers the workflow rule routes.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.List)
	rg.POST("", h.Create)
	rg.GET("/:id", h.GetByID)
	rg.PUT("/:id", h.Update)
	rg.PATCH("/:id/active", h.SetActive)
	rg.DELETE("/:id", h.Delete)
	rg.GET("/:id/executions", h.ListExecutions)
}

func (h *Handler) List(c *gin.Context) {
	rules, err := h.repo.List(c.Request.Context())
	if httpkit.HandleError(c, err) {
		return
	}

	items := make([]transport.RuleResponse, 0, len(rules))
	for _, rule := range rules {
		items = append(items, transport.FromRule(rule))
	}

	httpkit.OK(c, gin.H{"items": items, "total": len(items)})
}

func (h *Handler) Create(c *gin.Context) {
	var req transport.CreateRuleRequest
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

	rule, err := h.repo.Create(c.Request.Context(), repository.CreateRuleParams{
		Name:       req.Name,
		Trigger:    req.Trigger,
		FromStatus: req.FromStatus,
		ToStatus:   req.ToStatus,
		Actions:    req.Actions,
		IsActive:   req.IsActive,
		CreatedBy:  identity.UserID(),
	})
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.JSON(c, http.StatusCreated, transport.FromRule(rule))
}

func (h *Handler) GetByID(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidID, nil)
		return
	}

	rule, err := h.repo.GetByID(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, transport.FromRule(rule))
}

func (h *Handler) Update(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidID, nil)
		return
	}

	var req transport.UpdateRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	rule, err := h.repo.Update(c.Request.Context(), id, repository.UpdateRuleParams{
		Name:       req.Name,
		FromStatus: req.FromStatus,
		ToStatus:   req.ToStatus,
		Actions:    req.Actions,
		IsActive:   req.IsActive,
	})
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, transport.FromRule(rule))
}

func (h *Handler) SetActive(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidID, nil)
		return
	}

	var req transport.SetActiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	if err := h.repo.SetActive(c.Request.Context(), id, req.IsActive); httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, gin.H{"status": "ok"})
}

func (h *Handler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidID, nil)
		return
	}

	if err := h.repo.Delete(c.Request.Context(), id); httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, gin.H{"status": "ok"})
}

func (h *Handler) ListExecutions(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidID, nil)
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	items, err := h.repo.ListExecutions(c.Request.Context(), id, limit)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, gin.H{"items": items, "total": len(items)})
}
