package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/marketplace/backend/internal/domain/integration"
	"github.com/marketplace/backend/internal/infrastructure/logger"
)

// PreferenceWriter stores owner notification settings
type PreferenceWriter interface {
	SetSoldNotifications(ctx context.Context, ownerID uuid.UUID, enabled bool) error
}

// OwnerHandler exposes per-owner operations
type OwnerHandler struct {
	BaseHandler
	backlog     BacklogSyncer
	preferences PreferenceWriter
}

// NewOwnerHandler creates a new OwnerHandler
func NewOwnerHandler(backlog BacklogSyncer, preferences PreferenceWriter) *OwnerHandler {
	return &OwnerHandler{backlog: backlog, preferences: preferences}
}

// SyncBacklog handles POST /owners/:id/sync-backlog. It runs synchronously
// and is rate limited by the bulk sync service, so large backlogs take time.
func (h *OwnerHandler) SyncBacklog(c *gin.Context) {
	ownerID, ok := h.parseID(c, "id")
	if !ok {
		return
	}
	var req SyncProductRequest
	if !h.bindOptionalJSON(c, &req) {
		return
	}

	ctx := c.Request.Context()
	if req.TenantDomain != "" {
		ctx, _ = logger.WithTenantDomain(ctx, nil, integration.NormalizeDomain(req.TenantDomain))
		c.Request = c.Request.WithContext(ctx)
	}

	result, err := h.backlog.SyncOwnerBacklog(ctx, ownerID, req.TenantDomain)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toBacklogSyncResponse(result))
}

// UpdatePreferences handles PUT /owners/:id/preferences
func (h *OwnerHandler) UpdatePreferences(c *gin.Context) {
	ownerID, ok := h.parseID(c, "id")
	if !ok {
		return
	}
	var req SellerPreferenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	if err := h.preferences.SetSoldNotifications(c.Request.Context(), ownerID, *req.SoldNotifications); err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, gin.H{
		"owner_id":           ownerID,
		"sold_notifications": *req.SoldNotifications,
	})
}
