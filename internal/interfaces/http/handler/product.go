package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/marketplace/backend/internal/application/fulfillment"
	syncapp "github.com/marketplace/backend/internal/application/integration"
	"github.com/marketplace/backend/internal/domain/integration"
	"github.com/marketplace/backend/internal/infrastructure/logger"
)

// ProductSyncer pushes one product to its storefront
type ProductSyncer interface {
	Sync(ctx context.Context, productID uuid.UUID, tenantDomain string) (*integration.SyncResult, error)
}

// Lifecycle applies locally initiated lifecycle transitions
type Lifecycle interface {
	SellLocally(ctx context.Context, productID uuid.UUID) (*fulfillment.TransitionResult, error)
	Archive(ctx context.Context, productID uuid.UUID) (*fulfillment.TransitionResult, error)
}

// BacklogSyncer syncs all unsynced products of an owner
type BacklogSyncer interface {
	SyncOwnerBacklog(ctx context.Context, ownerID uuid.UUID, tenantDomain string) (*syncapp.BulkSyncResult, error)
}

// ProductHandler exposes catalog sync and lifecycle operations
type ProductHandler struct {
	BaseHandler
	syncer    ProductSyncer
	lifecycle Lifecycle
}

// NewProductHandler creates a new ProductHandler
func NewProductHandler(syncer ProductSyncer, lifecycle Lifecycle) *ProductHandler {
	return &ProductHandler{syncer: syncer, lifecycle: lifecycle}
}

// Sync handles POST /products/:id/sync.
// A partial sync still answers 200; the per-variant outcomes say what failed.
func (h *ProductHandler) Sync(c *gin.Context) {
	productID, ok := h.parseID(c, "id")
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

	result, err := h.syncer.Sync(ctx, productID, req.TenantDomain)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toSyncResultResponse(result))
}

// Sell handles POST /products/:id/sell
func (h *ProductHandler) Sell(c *gin.Context) {
	h.transition(c, h.lifecycle.SellLocally)
}

// Archive handles POST /products/:id/archive
func (h *ProductHandler) Archive(c *gin.Context) {
	h.transition(c, h.lifecycle.Archive)
}

func (h *ProductHandler) transition(c *gin.Context, apply func(context.Context, uuid.UUID) (*fulfillment.TransitionResult, error)) {
	productID, ok := h.parseID(c, "id")
	if !ok {
		return
	}
	result, err := apply(c.Request.Context(), productID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toTransitionResponse(result))
}
