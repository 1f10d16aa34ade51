package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/marketplace/backend/internal/interfaces/http/router"
)

// WebhookRoutes creates the route group for inbound storefront webhooks.
// These routes authenticate by signature only.
func WebhookRoutes(h *WebhookHandler) *router.DomainGroup {
	group := router.NewDomainGroup("webhooks", "/webhooks")
	group.POST("/storefront", h.Receive)
	return group
}

// ProductRoutes creates the route group for catalog sync and lifecycle
func ProductRoutes(h *ProductHandler, mw ...gin.HandlerFunc) *router.DomainGroup {
	group := router.NewDomainGroup("products", "/products")
	group.Use(mw...)
	group.POST("/:id/sync", h.Sync)
	group.POST("/:id/sell", h.Sell)
	group.POST("/:id/archive", h.Archive)
	return group
}

// OwnerRoutes creates the route group for per-owner operations
func OwnerRoutes(h *OwnerHandler, mw ...gin.HandlerFunc) *router.DomainGroup {
	group := router.NewDomainGroup("owners", "/owners")
	group.Use(mw...)
	group.POST("/:id/sync-backlog", h.SyncBacklog)
	group.PUT("/:id/preferences", h.UpdatePreferences)
	return group
}

// TenantCredentialRoutes creates the route group for credential administration
func TenantCredentialRoutes(h *TenantCredentialHandler, mw ...gin.HandlerFunc) *router.DomainGroup {
	group := router.NewDomainGroup("tenant-credentials", "/tenant-credentials")
	group.Use(mw...)
	group.POST("", h.Upsert)
	group.GET("", h.List)
	return group
}

// SystemRoutes creates the route group for system information
func SystemRoutes(h *SystemHandler) *router.DomainGroup {
	group := router.NewDomainGroup("system", "/system")
	group.GET("/info", h.Info)
	return group
}
