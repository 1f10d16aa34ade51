package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	syncapp "github.com/marketplace/backend/internal/application/integration"
)

// CredentialAdmin stores and lists tenant credentials
type CredentialAdmin interface {
	Upsert(ctx context.Context, in syncapp.UpsertCredentialInput) (*syncapp.CredentialSummary, bool, error)
	List(ctx context.Context) ([]syncapp.CredentialSummary, error)
}

// TenantCredentialHandler administers per-store credentials.
// Responses never include the token or the webhook secret.
type TenantCredentialHandler struct {
	BaseHandler
	admin CredentialAdmin
}

// NewTenantCredentialHandler creates a new TenantCredentialHandler
func NewTenantCredentialHandler(admin CredentialAdmin) *TenantCredentialHandler {
	return &TenantCredentialHandler{admin: admin}
}

// Upsert handles POST /tenant-credentials
func (h *TenantCredentialHandler) Upsert(c *gin.Context) {
	var req TenantCredentialRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	summary, created, err := h.admin.Upsert(c.Request.Context(), syncapp.UpsertCredentialInput{
		TenantDomain: req.TenantDomain,
		AccessToken:  req.AccessToken,
		APISecret:    req.APISecret,
		IsBaseTenant: req.IsBaseTenant,
		IsActive:     req.IsActive,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if created {
		h.Created(c, summary)
		return
	}
	h.Success(c, summary)
}

// List handles GET /tenant-credentials
func (h *TenantCredentialHandler) List(c *gin.Context) {
	summaries, err := h.admin.List(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, summaries)
}
