package telemetry

import (
	"context"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/metric"
)

// Webhook outcomes
const (
	WebhookAccepted  = "accepted"
	WebhookDuplicate = "duplicate"
	WebhookIgnored   = "ignored"
	WebhookRejected  = "rejected"
	WebhookFailed    = "failed"
)

// ErrMeterNil is returned when SyncMetrics is built without a meter
var ErrMeterNil = &MetricsError{Op: "NewSyncMetrics", Err: "meter cannot be nil"}

// SyncMetrics records storefront synchronization activity: webhook
// deliveries, lifecycle transitions and admin API calls
type SyncMetrics struct {
	webhookTotal    *Counter
	transitionTotal *Counter
	remoteCallTotal *Counter
	remoteRetries   *Counter
	remoteDuration  *Histogram
}

// NewSyncMetrics creates the instruments on meter
func NewSyncMetrics(meter metric.Meter) (*SyncMetrics, error) {
	if meter == nil {
		return nil, ErrMeterNil
	}

	m := &SyncMetrics{}
	var err error

	if m.webhookTotal, err = NewCounter(meter,
		"marketplace_webhook_deliveries_total",
		"Webhook deliveries by topic and outcome",
		"{delivery}",
	); err != nil {
		return nil, err
	}
	if m.transitionTotal, err = NewCounter(meter,
		"marketplace_lifecycle_transitions_total",
		"Product lifecycle transitions by kind, split by whether this writer applied them",
		"{transition}",
	); err != nil {
		return nil, err
	}
	if m.remoteCallTotal, err = NewCounter(meter,
		"marketplace_remote_calls_total",
		"Storefront admin API operations by outcome",
		"{call}",
	); err != nil {
		return nil, err
	}
	if m.remoteRetries, err = NewCounter(meter,
		"marketplace_remote_call_retries_total",
		"Retried storefront admin API attempts",
		"{retry}",
	); err != nil {
		return nil, err
	}
	if m.remoteDuration, err = NewHistogram(meter, HistogramOpts{
		Name:        "marketplace_remote_call_duration_seconds",
		Description: "Storefront admin API operation latency including retries",
		Unit:        "s",
		Boundaries:  RemoteDurationBuckets,
	}); err != nil {
		return nil, err
	}
	return m, nil
}

// ObserveWebhook counts one webhook delivery
func (m *SyncMetrics) ObserveWebhook(ctx context.Context, topic, outcome string) {
	m.webhookTotal.Inc(ctx, AttrTopic.String(topic), AttrOutcome.String(outcome))
}

// ObserveTransition counts one lifecycle transition attempt
func (m *SyncMetrics) ObserveTransition(ctx context.Context, kind string, applied bool) {
	m.transitionTotal.Inc(ctx, AttrKind.String(kind), AttrApplied.String(strconv.FormatBool(applied)))
}

// ObserveRemoteCall records one admin API operation
func (m *SyncMetrics) ObserveRemoteCall(ctx context.Context, operation string, retries int, d time.Duration, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	op := AttrOperation.String(operation)
	m.remoteCallTotal.Inc(ctx, op, AttrOutcome.String(outcome))
	if retries > 0 {
		m.remoteRetries.Add(ctx, int64(retries), op)
	}
	m.remoteDuration.RecordDuration(ctx, d, op)
}
