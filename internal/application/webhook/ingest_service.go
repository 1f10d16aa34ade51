// Package webhook ingests storefront webhooks: it verifies the HMAC
// signature over the raw body, parses the event and dispatches it to the
// fulfillment state machine.
package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/marketplace/backend/internal/application/fulfillment"
	"github.com/marketplace/backend/internal/domain/integration"
	"github.com/marketplace/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// DefaultDedupeTTL is how long processed delivery IDs are remembered
const DefaultDedupeTTL = 48 * time.Hour

// Delivery is one inbound webhook request
type Delivery struct {
	RawBody      []byte
	Signature    string
	TenantDomain string
	Topic        string
	DeliveryID   string
}

// LineOutcome is the result of one order line or inventory report
type LineOutcome struct {
	Index         int        `json:"index"`
	RemoteID      string     `json:"remote_id"`
	ProductID     *uuid.UUID `json:"product_id,omitempty"`
	Applied       bool       `json:"applied"`
	SkipReason    string     `json:"skip_reason,omitempty"`
	Error         string     `json:"error,omitempty"`
	ErrorKind     string     `json:"error_kind,omitempty"`
	FailedEffects []string   `json:"failed_effects,omitempty"`
}

// IngestResult reports what an accepted delivery did
type IngestResult struct {
	Topic     string        `json:"topic"`
	Duplicate bool          `json:"duplicate"`
	Ignored   bool          `json:"ignored"`
	Lines     []LineOutcome `json:"lines"`
}

// Failed returns the number of lines that could not be applied
func (r *IngestResult) Failed() int {
	n := 0
	for _, l := range r.Lines {
		if l.Error != "" {
			n++
		}
	}
	return n
}

// SecretResolver resolves the store credential holding the webhook secret
type SecretResolver interface {
	Resolve(ctx context.Context, tenantDomain string) (*integration.Credentials, error)
}

// Transitions is the part of the fulfillment service driven by webhooks
type Transitions interface {
	HandleOrderLine(ctx context.Context, tenantDomain string, line fulfillment.OrderLine) (*fulfillment.TransitionResult, error)
	HandleInventoryLevel(ctx context.Context, tenantDomain string, level fulfillment.InventoryLevel) (*fulfillment.TransitionResult, error)
}

// IngestServiceConfig holds dependencies for IngestService
type IngestServiceConfig struct {
	Resolver    SecretResolver
	Transitions Transitions
	// Deliveries is optional; without it redeliveries rely on the state
	// machine's own idempotence
	Deliveries shared.DeliveryStore
	DedupeTTL  time.Duration
	Logger     *zap.Logger
}

// IngestService verifies, parses and dispatches storefront webhooks
type IngestService struct {
	resolver    SecretResolver
	transitions Transitions
	deliveries  shared.DeliveryStore
	dedupeTTL   time.Duration
	logger      *zap.Logger
}

// NewIngestService creates a new IngestService
func NewIngestService(cfg IngestServiceConfig) *IngestService {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	ttl := cfg.DedupeTTL
	if ttl <= 0 {
		ttl = DefaultDedupeTTL
	}
	return &IngestService{
		resolver:    cfg.Resolver,
		transitions: cfg.Transitions,
		deliveries:  cfg.Deliveries,
		dedupeTTL:   ttl,
		logger:      logger,
	}
}

// Sign returns the base64 HMAC-SHA256 of body under secret
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// VerifySignature compares signature with the expected HMAC in constant time
func VerifySignature(secret string, body []byte, signature string) bool {
	if secret == "" || signature == "" {
		return false
	}
	return hmac.Equal([]byte(Sign(secret, body)), []byte(signature))
}

// Ingest processes one delivery. A returned error means the delivery was
// rejected: ErrConfiguration, ErrInvalidSignature or ErrMalformedPayload.
// Once accepted, per-line failures are reported in the result only.
func (s *IngestService) Ingest(ctx context.Context, d Delivery) (*IngestResult, error) {
	creds, err := s.resolver.Resolve(ctx, d.TenantDomain)
	if err != nil {
		if shared.IsKind(err, shared.KindConfiguration) {
			s.logger.Error("No webhook secret configured",
				zap.String("tenant_domain", d.TenantDomain),
				zap.Error(err))
			return nil, err
		}
		return nil, shared.Wrap(shared.ErrConfiguration, err)
	}
	if creds.APISecret == "" {
		return nil, shared.WithMessage(shared.ErrConfiguration, "webhook secret is empty for tenant "+creds.TenantDomain)
	}

	if !VerifySignature(creds.APISecret, d.RawBody, d.Signature) {
		s.logger.Warn("Webhook signature mismatch",
			zap.String("tenant_domain", d.TenantDomain),
			zap.String("topic", d.Topic))
		return nil, shared.ErrInvalidSignature
	}

	if !json.Valid(d.RawBody) {
		return nil, shared.ErrMalformedPayload
	}

	tenant := integration.NormalizeDomain(d.TenantDomain)
	if tenant == "" {
		tenant = creds.TenantDomain
	}
	log := s.logger.With(
		zap.String("tenant_domain", tenant),
		zap.String("topic", d.Topic),
		zap.String("delivery_id", d.DeliveryID))

	result := &IngestResult{Topic: d.Topic}

	var dispatch func()
	switch d.Topic {
	case TopicOrdersCreate, TopicOrdersPaid:
		var order orderPayload
		if err := json.Unmarshal(d.RawBody, &order); err != nil {
			return nil, shared.Wrap(shared.ErrMalformedPayload, err)
		}
		dispatch = func() { s.dispatchOrder(ctx, tenant, order, result, log) }
	case TopicInventoryLevelsUpdate:
		var level inventoryLevelPayload
		if err := json.Unmarshal(d.RawBody, &level); err != nil {
			return nil, shared.Wrap(shared.ErrMalformedPayload, err)
		}
		if level.InventoryItemID == "" || level.Available == nil {
			return nil, shared.WithMessage(shared.ErrMalformedPayload, "inventory level requires inventory_item_id and available")
		}
		dispatch = func() { s.dispatchInventory(ctx, tenant, level, result, log) }
	default:
		log.Info("Ignoring webhook topic")
		result.Ignored = true
		return result, nil
	}

	if s.seen(ctx, d.DeliveryID, log) {
		log.Info("Skipping redelivered webhook")
		result.Duplicate = true
		return result, nil
	}

	dispatch()
	s.markProcessed(ctx, d.DeliveryID, log)

	log.Info("Webhook processed",
		zap.Int("lines", len(result.Lines)),
		zap.Int("failed", result.Failed()))
	return result, nil
}

func (s *IngestService) dispatchOrder(ctx context.Context, tenant string, order orderPayload, result *IngestResult, log *zap.Logger) {
	for i, item := range order.LineItems {
		outcome := LineOutcome{Index: i, RemoteID: string(item.ProductID)}
		if item.ProductID == "" {
			outcome.SkipReason = "line item has no product"
			result.Lines = append(result.Lines, outcome)
			continue
		}
		outcome.RemoteID = integration.GlobalID(integration.ResourceProduct, string(item.ProductID))

		transition, err := s.transitions.HandleOrderLine(ctx, tenant, fulfillment.OrderLine{
			OrderID:         string(order.ID),
			OrderName:       order.Name,
			RemoteProductID: outcome.RemoteID,
			RemoteVariantID: integration.GlobalID(integration.ResourceProductVariant, string(item.VariantID)),
			Title:           item.Title,
			Quantity:        item.Quantity,
			Price:           item.price(),
			Currency:        order.Currency,
		})
		s.applyOutcome(&outcome, transition, err, log)
		result.Lines = append(result.Lines, outcome)
	}
}

func (s *IngestService) dispatchInventory(ctx context.Context, tenant string, level inventoryLevelPayload, result *IngestResult, log *zap.Logger) {
	event := fulfillment.InventoryLevel{
		InventoryItemID: integration.GlobalID(integration.ResourceInventoryItem, string(level.InventoryItemID)),
		LocationID:      integration.GlobalID(integration.ResourceLocation, string(level.LocationID)),
		Available:       *level.Available,
	}
	if level.UpdatedAt != nil {
		event.UpdatedAt = *level.UpdatedAt
	}
	outcome := LineOutcome{RemoteID: event.InventoryItemID}
	transition, err := s.transitions.HandleInventoryLevel(ctx, tenant, event)
	s.applyOutcome(&outcome, transition, err, log)
	result.Lines = append(result.Lines, outcome)
}

func (s *IngestService) applyOutcome(outcome *LineOutcome, transition *fulfillment.TransitionResult, err error, log *zap.Logger) {
	if err != nil {
		outcome.Error = err.Error()
		outcome.ErrorKind = string(shared.KindOf(err))
		if shared.IsKind(err, shared.KindNotFound) {
			log.Warn("Webhook references an unknown product, skipping",
				zap.String("remote_id", outcome.RemoteID),
				zap.Error(err))
		} else {
			log.Error("Failed to apply webhook line",
				zap.String("remote_id", outcome.RemoteID),
				zap.Error(err))
		}
		return
	}
	id := transition.ProductID
	outcome.ProductID = &id
	outcome.Applied = transition.Applied
	outcome.SkipReason = transition.SkipReason
	for _, e := range transition.FailedEffects() {
		outcome.FailedEffects = append(outcome.FailedEffects, e.Name)
	}
}

func (s *IngestService) seen(ctx context.Context, deliveryID string, log *zap.Logger) bool {
	if s.deliveries == nil || deliveryID == "" {
		return false
	}
	processed, err := s.deliveries.IsProcessed(ctx, deliveryID)
	if err != nil {
		log.Warn("Delivery dedupe lookup failed, processing anyway", zap.Error(err))
		return false
	}
	return processed
}

func (s *IngestService) markProcessed(ctx context.Context, deliveryID string, log *zap.Logger) {
	if s.deliveries == nil || deliveryID == "" {
		return
	}
	if _, err := s.deliveries.MarkProcessed(ctx, deliveryID, s.dedupeTTL); err != nil {
		log.Warn("Could not record processed delivery", zap.Error(err))
	}
}

// IsRejection reports whether err is one of the errors Ingest uses to reject
// a delivery, as opposed to an unexpected failure
func IsRejection(err error) bool {
	return errors.Is(err, shared.ErrInvalidSignature) ||
		errors.Is(err, shared.ErrMalformedPayload) ||
		errors.Is(err, shared.ErrConfiguration)
}

// String implements fmt.Stringer for log output
func (d Delivery) String() string {
	return fmt.Sprintf("Delivery{Topic: %s, TenantDomain: %s, DeliveryID: %s, Size: %d}", d.Topic, d.TenantDomain, d.DeliveryID, len(d.RawBody))
}
