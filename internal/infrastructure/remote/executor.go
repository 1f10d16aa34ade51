package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/marketplace/backend/internal/domain/shared"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const tracerName = "github.com/marketplace/backend/internal/infrastructure/remote"

// CallObserver receives one record per admin API operation, after retries
type CallObserver interface {
	ObserveRemoteCall(ctx context.Context, operation string, retries int, duration time.Duration, err error)
}

// Executor sends GraphQL operations to one store.
//
// Network errors, HTTP 429, HTTP 5xx and THROTTLED responses are retried
// with exponential backoff. Other 4xx responses and GraphQL errors fail
// immediately as remote validation errors.
type Executor struct {
	cfg         Config
	endpoint    string
	accessToken string
	client      *http.Client
	observer    CallObserver
	limiter     *rate.Limiter
	logger      *zap.Logger
	tracer      trace.Tracer
}

// ExecutorOption configures an Executor
type ExecutorOption func(*Executor)

// WithCallObserver reports every call to o
func WithCallObserver(o CallObserver) ExecutorOption {
	return func(e *Executor) {
		e.observer = o
	}
}

// WithRateLimiter makes every HTTP attempt, retries included, wait for a
// token from l. Executors for the same store share one limiter.
func WithRateLimiter(l *rate.Limiter) ExecutorOption {
	return func(e *Executor) {
		e.limiter = l
	}
}

// WithLogger sets the executor logger
func WithLogger(logger *zap.Logger) ExecutorOption {
	return func(e *Executor) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// NewExecutor creates an Executor for endpoint. A nil client gets one with
// cfg.Timeout.
func NewExecutor(cfg Config, endpoint, accessToken string, client *http.Client, opts ...ExecutorOption) *Executor {
	cfg.applyDefaults()
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	e := &Executor{
		cfg:         cfg,
		endpoint:    endpoint,
		accessToken: accessToken,
		client:      client,
		logger:      zap.NewNop(),
		tracer:      otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Do executes op and decodes the response data into out. out may be nil.
func (e *Executor) Do(ctx context.Context, op Operation, out any) error {
	ctx, span := e.tracer.Start(ctx, "storefront."+op.Name,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("storefront.operation", op.Name)),
	)
	defer span.End()

	body, err := json.Marshal(graphQLRequest{Query: op.Query, Variables: op.Variables})
	if err != nil {
		return fmt.Errorf("remote: encode %s: %w", op.Name, err)
	}

	start := time.Now()
	attempts := 0
	var data json.RawMessage

	err = backoff.RetryNotify(func() error {
		attempts++
		d, err := e.attempt(ctx, op.Name, body)
		if err != nil {
			return err
		}
		data = d
		return nil
	}, e.newBackOff(ctx), func(err error, wait time.Duration) {
		e.logger.Warn("Storefront call failed, retrying",
			zap.String("operation", op.Name),
			zap.Int("attempt", attempts),
			zap.Duration("retry_in", wait),
			zap.Error(err),
		)
	})

	if err != nil && shared.KindOf(err) == "" {
		// context cancelled between attempts
		err = shared.Wrap(shared.ErrRemoteTransient, fmt.Errorf("%s: %w", op.Name, err))
	}
	if err == nil && out != nil && len(data) > 0 && !bytes.Equal(data, []byte("null")) {
		if uerr := json.Unmarshal(data, out); uerr != nil {
			err = shared.Wrap(shared.ErrRemoteTransient, fmt.Errorf("%s: decode response data: %w", op.Name, uerr))
		}
	}

	span.SetAttributes(attribute.Int("storefront.attempts", attempts))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	if e.observer != nil {
		e.observer.ObserveRemoteCall(ctx, op.Name, attempts-1, time.Since(start), err)
	}
	return err
}

func (e *Executor) attempt(ctx context.Context, name string, body []byte) (json.RawMessage, error) {
	if e.limiter != nil {
		if err := e.limiter.Wait(ctx); err != nil {
			return nil, backoff.Permanent(shared.Wrap(shared.ErrRemoteTransient, fmt.Errorf("%s: rate limit wait: %w", name, err)))
		}
	}

	attemptCtx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodPost, e.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("remote: create %s request: %w", name, err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set(AccessTokenHeader, e.accessToken)

	resp, err := e.client.Do(req)
	if err != nil {
		transient := shared.Wrap(shared.ErrRemoteTransient, fmt.Errorf("%s: request failed: %w", name, err))
		if ctx.Err() != nil {
			return nil, backoff.Permanent(transient)
		}
		return nil, transient
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, e.cfg.MaxResponseBytes+1))
	if err != nil {
		return nil, shared.Wrap(shared.ErrRemoteTransient, fmt.Errorf("%s: read response: %w", name, err))
	}
	if int64(len(raw)) > e.cfg.MaxResponseBytes {
		return nil, backoff.Permanent(shared.Wrap(shared.ErrRemoteTransient,
			fmt.Errorf("%s: response exceeds %d bytes", name, e.cfg.MaxResponseBytes)))
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, shared.Wrap(shared.ErrRemoteTransient, fmt.Errorf("%s: HTTP %d", name, resp.StatusCode))
	case resp.StatusCode >= 400:
		return nil, backoff.Permanent(shared.Wrap(shared.ErrRemoteValidation,
			fmt.Errorf("%s: HTTP %d: %s", name, resp.StatusCode, snippet(raw))))
	}

	var envelope graphQLResponse
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, shared.Wrap(shared.ErrRemoteTransient, fmt.Errorf("%s: decode response: %w", name, err))
	}
	if len(envelope.Errors) > 0 {
		msgs := make([]string, 0, len(envelope.Errors))
		throttled := false
		for _, ge := range envelope.Errors {
			msgs = append(msgs, ge.Message)
			if ge.Extensions.Code == throttledCode {
				throttled = true
			}
		}
		cause := fmt.Errorf("%s: %s", name, strings.Join(msgs, "; "))
		if throttled {
			return nil, shared.Wrap(shared.ErrRemoteTransient, cause)
		}
		return nil, backoff.Permanent(shared.Wrap(shared.ErrRemoteValidation, cause))
	}
	return envelope.Data, nil
}

func (e *Executor) newBackOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = e.cfg.RetryInitialInterval
	b.MaxInterval = e.cfg.RetryMaxInterval
	b.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(e.cfg.MaxRetries)), ctx)
}

// checkUserErrors turns mutation userErrors into a remote validation error
func checkUserErrors(name string, errs []userError) error {
	if len(errs) == 0 {
		return nil
	}
	msgs := make([]string, 0, len(errs))
	for _, ue := range errs {
		msgs = append(msgs, ue.String())
	}
	return shared.WithMessage(shared.ErrRemoteValidation, fmt.Sprintf("%s: %s", name, strings.Join(msgs, "; ")))
}

func snippet(raw []byte) string {
	const limit = 200
	s := strings.TrimSpace(string(raw))
	if len(s) > limit {
		return s[:limit] + "..."
	}
	return s
}
