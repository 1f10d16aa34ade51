package handler

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/marketplace/backend/internal/application/webhook"
	"github.com/marketplace/backend/internal/domain/shared"
	"github.com/marketplace/backend/internal/infrastructure/logger"
	"github.com/marketplace/backend/internal/infrastructure/telemetry"
	"github.com/marketplace/backend/internal/interfaces/http/dto"
	"go.uber.org/zap"
)

// Webhook headers. The short names are checked first; the platform's
// X-Shopify-* names are accepted as aliases.
const (
	HeaderSignature    = "signature"
	HeaderTenantDomain = "tenant-domain"
	HeaderTopic        = "topic"
	HeaderWebhookID    = "webhook-id"

	HeaderShopifyHmac       = "X-Shopify-Hmac-Sha256"
	HeaderShopifyShopDomain = "X-Shopify-Shop-Domain"
	HeaderShopifyTopic      = "X-Shopify-Topic"
	HeaderShopifyWebhookID  = "X-Shopify-Webhook-Id"
)

// DefaultWebhookMaxBody caps webhook bodies read into memory
const DefaultWebhookMaxBody int64 = 64 << 10

// WebhookIngestor verifies and applies one delivery
type WebhookIngestor interface {
	Ingest(ctx context.Context, d webhook.Delivery) (*webhook.IngestResult, error)
}

// WebhookObserver counts deliveries by topic and outcome
type WebhookObserver interface {
	ObserveWebhook(ctx context.Context, topic, outcome string)
}

// WebhookHandler receives storefront webhooks
type WebhookHandler struct {
	BaseHandler
	ingestor WebhookIngestor
	observer WebhookObserver
	maxBody  int64
}

// WebhookHandlerOption configures a WebhookHandler
type WebhookHandlerOption func(*WebhookHandler)

// WithWebhookObserver records delivery outcomes
func WithWebhookObserver(o WebhookObserver) WebhookHandlerOption {
	return func(h *WebhookHandler) {
		h.observer = o
	}
}

// WithMaxBody overrides the body size cap
func WithMaxBody(n int64) WebhookHandlerOption {
	return func(h *WebhookHandler) {
		if n > 0 {
			h.maxBody = n
		}
	}
}

// NewWebhookHandler creates a new WebhookHandler
func NewWebhookHandler(ingestor WebhookIngestor, opts ...WebhookHandlerOption) *WebhookHandler {
	h := &WebhookHandler{ingestor: ingestor, maxBody: DefaultWebhookMaxBody}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Receive handles POST /webhooks/storefront.
//
// The signature covers the exact raw bytes, so the body is read before any
// parsing. Once the signature and payload are accepted the response is 200
// even if individual lines failed; the storefront would otherwise redeliver
// an event whose successful lines were already applied.
func (h *WebhookHandler) Receive(c *gin.Context) {
	topic := firstHeader(c, HeaderTopic, HeaderShopifyTopic)
	domain := firstHeader(c, HeaderTenantDomain, HeaderShopifyShopDomain)
	deliveryID := firstHeader(c, HeaderWebhookID, HeaderShopifyWebhookID)

	ctx, log := logger.WithTenantDomain(c.Request.Context(), nil, domain)
	if deliveryID != "" {
		ctx, log = logger.WithDeliveryID(ctx, log, deliveryID)
	}
	c.Request = c.Request.WithContext(ctx)

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, h.maxBody+1))
	if err != nil {
		log.Warn("Could not read webhook body", zap.Error(err))
		h.observe(ctx, topic, telemetry.WebhookRejected)
		h.BadRequest(c, "Could not read request body")
		return
	}
	if int64(len(body)) > h.maxBody {
		h.observe(ctx, topic, telemetry.WebhookRejected)
		h.Error(c, http.StatusRequestEntityTooLarge, dto.ErrCodeTooLarge, "Webhook body exceeds maximum allowed size")
		return
	}

	result, err := h.ingestor.Ingest(ctx, webhook.Delivery{
		RawBody:      body,
		Signature:    firstHeader(c, HeaderSignature, HeaderShopifyHmac),
		TenantDomain: domain,
		Topic:        topic,
		DeliveryID:   deliveryID,
	})
	if err != nil {
		outcome := telemetry.WebhookFailed
		if webhook.IsRejection(err) {
			outcome = telemetry.WebhookRejected
		}
		h.observe(ctx, topic, outcome)
		if errors.Is(err, shared.ErrInvalidSignature) {
			log.Warn("Webhook signature rejected", zap.String("topic", topic))
		}
		h.HandleError(c, err)
		return
	}

	outcome := telemetry.WebhookAccepted
	switch {
	case result.Duplicate:
		outcome = telemetry.WebhookDuplicate
	case result.Ignored:
		outcome = telemetry.WebhookIgnored
	}
	h.observe(ctx, topic, outcome)

	if failed := result.Failed(); failed > 0 {
		log.Warn("Webhook accepted with failed lines",
			zap.String("topic", topic),
			zap.Int("failed", failed),
			zap.Int("lines", len(result.Lines)))
	}
	h.Success(c, result)
}

func firstHeader(c *gin.Context, names ...string) string {
	for _, name := range names {
		if v := c.GetHeader(name); v != "" {
			return v
		}
	}
	return ""
}

func (h *WebhookHandler) observe(ctx context.Context, topic, outcome string) {
	if h.observer != nil {
		h.observer.ObserveWebhook(ctx, topic, outcome)
	}
}
