package handler

import (
	"time"

	"github.com/google/uuid"
	"github.com/marketplace/backend/internal/application/fulfillment"
	syncapp "github.com/marketplace/backend/internal/application/integration"
	"github.com/marketplace/backend/internal/domain/integration"
)

// SyncProductRequest selects the store for a product that was never synced
type SyncProductRequest struct {
	TenantDomain string `json:"tenant_domain" binding:"omitempty,fqdn"`
}

// VariantResultResponse is one variant outcome of a sync
type VariantResultResponse struct {
	Key             string `json:"key"`
	SKU             string `json:"sku"`
	RemoteVariantID string `json:"remote_variant_id,omitempty"`
	Action          string `json:"action"`
	Error           string `json:"error,omitempty"`
}

// SyncResultResponse is the outcome of syncing one product
type SyncResultResponse struct {
	ProductID        uuid.UUID               `json:"product_id"`
	RemoteProductID  string                  `json:"remote_product_id,omitempty"`
	Created          bool                    `json:"created"`
	Status           string                  `json:"status"`
	InventoryTracked bool                    `json:"inventory_tracked"`
	InventoryNote    string                  `json:"inventory_note,omitempty"`
	SyncedAt         time.Time               `json:"synced_at"`
	Variants         []VariantResultResponse `json:"variants"`
}

func toSyncResultResponse(r *integration.SyncResult) *SyncResultResponse {
	if r == nil {
		return nil
	}
	resp := &SyncResultResponse{
		ProductID:        r.ProductID,
		RemoteProductID:  r.RemoteProductID,
		Created:          r.Created,
		Status:           string(r.Status),
		InventoryTracked: r.InventoryTracked,
		InventoryNote:    r.InventoryNote,
		SyncedAt:         r.SyncedAt,
		Variants:         make([]VariantResultResponse, 0, len(r.Variants)),
	}
	for _, v := range r.Variants {
		item := VariantResultResponse{
			Key:             v.Key,
			SKU:             v.SKU,
			RemoteVariantID: v.RemoteVariantID,
			Action:          string(v.Action),
		}
		if v.Err != nil {
			item.Error = v.Err.Error()
		}
		resp.Variants = append(resp.Variants, item)
	}
	return resp
}

// SideEffectResponse is one side effect of a lifecycle transition
type SideEffectResponse struct {
	Name  string `json:"name"`
	Error string `json:"error,omitempty"`
}

// TransitionResponse reports a lifecycle transition
type TransitionResponse struct {
	ProductID      uuid.UUID            `json:"product_id"`
	Kind           string               `json:"kind"`
	Applied        bool                 `json:"applied"`
	SkipReason     string               `json:"skip_reason,omitempty"`
	State          string               `json:"state"`
	SideEffects    []SideEffectResponse `json:"side_effects"`
	NotificationID *uuid.UUID           `json:"notification_id,omitempty"`
}

func toTransitionResponse(r *fulfillment.TransitionResult) *TransitionResponse {
	resp := &TransitionResponse{
		ProductID:      r.ProductID,
		Kind:           string(r.Kind),
		Applied:        r.Applied,
		SkipReason:     r.SkipReason,
		State:          string(r.State),
		SideEffects:    make([]SideEffectResponse, 0, len(r.SideEffects)),
		NotificationID: r.NotificationID,
	}
	for _, e := range r.SideEffects {
		item := SideEffectResponse{Name: e.Name}
		if e.Err != nil {
			item.Error = e.Err.Error()
		}
		resp.SideEffects = append(resp.SideEffects, item)
	}
	return resp
}

// BacklogItemResponse is one product of a backlog run
type BacklogItemResponse struct {
	ProductID uuid.UUID           `json:"product_id"`
	Result    *SyncResultResponse `json:"result,omitempty"`
	Error     string              `json:"error,omitempty"`
}

// BacklogSyncResponse summarizes a backlog run
type BacklogSyncResponse struct {
	OwnerID    uuid.UUID             `json:"owner_id"`
	Status     string                `json:"status"`
	Total      int                   `json:"total"`
	Succeeded  int                   `json:"succeeded"`
	Failed     int                   `json:"failed"`
	Items      []BacklogItemResponse `json:"items"`
	StartedAt  time.Time             `json:"started_at"`
	FinishedAt time.Time             `json:"finished_at"`
}

func toBacklogSyncResponse(r *syncapp.BulkSyncResult) *BacklogSyncResponse {
	resp := &BacklogSyncResponse{
		OwnerID:    r.OwnerID,
		Status:     string(r.Status),
		Total:      r.Total,
		Succeeded:  r.Succeeded,
		Failed:     r.Failed,
		Items:      make([]BacklogItemResponse, 0, len(r.Items)),
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
	}
	for _, item := range r.Items {
		resp.Items = append(resp.Items, BacklogItemResponse{
			ProductID: item.ProductID,
			Result:    toSyncResultResponse(item.Result),
			Error:     item.Error,
		})
	}
	return resp
}

// SellerPreferenceRequest updates an owner's notification settings
type SellerPreferenceRequest struct {
	SoldNotifications *bool `json:"sold_notifications" binding:"required"`
}

// TenantCredentialRequest stores credentials for one store
type TenantCredentialRequest struct {
	TenantDomain string `json:"tenant_domain" binding:"required,fqdn,max=255"`
	AccessToken  string `json:"access_token" binding:"required,max=512"`
	APISecret    string `json:"api_secret" binding:"required,max=512"`
	IsBaseTenant *bool  `json:"is_base_tenant"`
	IsActive     *bool  `json:"is_active"`
}
