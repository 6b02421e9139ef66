package handler

import (
	"context"
	"strconv"

	"loanflow_backend/internal/notification/inapp"
	"loanflow_backend/internal/notification/prefs"
	"loanflow_backend/platform/httpkit"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// PrefsStore reads and writes per-user notification preferences.
type PrefsStore interface {
	GetByUserID(ctx context.Context, userID uuid.UUID) (prefs.Preferences, error)
	Upsert(ctx context.Context, p prefs.Preferences) error
}

type HTTPHandler struct {
	svc   *inapp.Service
	prefs PrefsStore
}

func NewHTTPHandler(svc *inapp.Service, prefsStore PrefsStore) *HTTPHandler {
	return &HTTPHandler{svc: svc, prefs: prefsStore}
}

func (h *HTTPHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.List)
	rg.GET("/unread", h.CountUnread)
	rg.PATCH("/:id/read", h.MarkRead)
	rg.PATCH("/read-all", h.MarkAllRead)
	rg.DELETE("/:id", h.Delete)
	rg.GET("/preferences", h.GetPreferences)
	rg.PUT("/preferences", h.UpdatePreferences)
}

func (h *HTTPHandler) List(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}
	if limit > 50 {
		limit = 50
	}

	items, total, err := h.svc.List(c.Request.Context(), identity.UserID(), page, limit)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, gin.H{
		"items": items,
		"total": total,
		"page":  page,
	})
}

func (h *HTTPHandler) CountUnread(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	count, err := h.svc.CountUnread(c.Request.Context(), identity.UserID())
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, gin.H{"count": count})
}

func (h *HTTPHandler) MarkRead(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, 400, "invalid id", nil)
		return
	}

	if err := h.svc.MarkRead(c.Request.Context(), identity.UserID(), id); httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, gin.H{"status": "ok"})
}

func (h *HTTPHandler) MarkAllRead(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	if err := h.svc.MarkAllRead(c.Request.Context(), identity.UserID()); httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, gin.H{"status": "ok"})
}

func (h *HTTPHandler) Delete(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, 400, "invalid id", nil)
		return
	}

	if err := h.svc.Delete(c.Request.Context(), identity.UserID(), id); httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, gin.H{"status": "ok"})
}

func (h *HTTPHandler) GetPreferences(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	p, err := h.prefs.GetByUserID(c.Request.Context(), identity.UserID())
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, p)
}

type updatePreferencesRequest struct {
	EmailEnabled      bool `json:"emailEnabled"`
	SMSEnabled        bool `json:"smsEnabled"`
	DealStatusUpdates bool `json:"dealStatusUpdates"`
	TaskReminders     bool `json:"taskReminders"`
	MarketingMessages bool `json:"marketingMessages"`
}

func (h *HTTPHandler) UpdatePreferences(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	var req updatePreferencesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, 400, "invalid request body", nil)
		return
	}

	p := prefs.Preferences{
		UserID:            identity.UserID(),
		EmailEnabled:      req.EmailEnabled,
		SMSEnabled:        req.SMSEnabled,
		DealStatusUpdates: req.DealStatusUpdates,
		TaskReminders:     req.TaskReminders,
		MarketingMessages: req.MarketingMessages,
	}
	if err := h.prefs.Upsert(c.Request.Context(), p); httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, p)
}
