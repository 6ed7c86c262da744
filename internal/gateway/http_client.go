package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"brokerhub/internal/platform/config"
	"brokerhub/internal/platform/telemetry"
	dErrors "brokerhub/pkg/domain-errors"
	"brokerhub/pkg/platform/circuit"
)

// secretHeader is the shared-secret header the gateway authenticates with.
const secretHeader = "api"

// HTTPClient posts provisioning requests to the gateway endpoint. Calls run
// through a circuit breaker so a flapping gateway fails fast instead of
// holding saga goroutines on timeouts.
type HTTPClient struct {
	url     string
	secret  string
	client  *http.Client
	breaker *circuit.Breaker
	logger  *slog.Logger
}

type HTTPOption func(*HTTPClient)

func WithHTTPLogger(logger *slog.Logger) HTTPOption {
	return func(c *HTTPClient) {
		c.logger = logger
	}
}

func WithHTTPClient(client *http.Client) HTTPOption {
	return func(c *HTTPClient) {
		c.client = client
	}
}

func NewHTTPClient(cfg config.GatewayConfig, opts ...HTTPOption) *HTTPClient {
	c := &HTTPClient{
		url:     cfg.URL,
		secret:  cfg.Secret,
		client:  &http.Client{Timeout: cfg.Timeout},
		breaker: circuit.New("payment-gateway"),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *HTTPClient) ProvisionCustomer(ctx context.Context, data CustomerData) (*ProvisionResult, error) {
	body, err := c.post(ctx, Request{Action: ActionProvisionCustomer, Data: data})
	if err != nil {
		return nil, err
	}
	var result ProvisionResult
	if len(body) > 0 {
		if err := json.Unmarshal(body, &result); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeGatewayUnavailable, "gateway returned malformed response")
		}
	}
	return &result, nil
}

func (c *HTTPClient) CancelSubscription(ctx context.Context, data CustomerData, sub SubscriptionData) error {
	_, err := c.post(ctx, Request{Action: ActionCancelSubscription, Data: data, Subscription: &sub})
	return err
}

func (c *HTTPClient) post(ctx context.Context, req Request) ([]byte, error) {
	ctx, span := telemetry.StartSpan(ctx, "gateway", req.Action,
		attribute.String("gateway.action", req.Action),
	)
	defer span.End()

	if c.breaker.IsOpen() {
		err := dErrors.New(dErrors.CodeGatewayUnavailable, "payment gateway circuit open")
		telemetry.RecordError(span, err)
		return nil, err
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal gateway request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build gateway request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set(secretHeader, c.secret)

	start := time.Now()
	resp, err := c.client.Do(httpReq)
	if err != nil {
		c.recordFailure(ctx, req.Action, err)
		telemetry.RecordError(span, err)
		return nil, dErrors.Wrap(err, dErrors.CodeGatewayUnavailable, "payment gateway unreachable")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		c.recordFailure(ctx, req.Action, err)
		telemetry.RecordError(span, err)
		return nil, dErrors.Wrap(err, dErrors.CodeGatewayUnavailable, "read gateway response")
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		err := dErrors.Newf(dErrors.CodeGatewayUnavailable, "gateway returned status %d: %s", resp.StatusCode, gatewayHint(body))
		c.recordFailure(ctx, req.Action, err)
		telemetry.RecordError(span, err)
		return nil, err
	}

	if _, change := c.breaker.RecordSuccess(); change.Closed {
		c.logger.InfoContext(ctx, "payment gateway circuit closed")
	}
	c.logger.DebugContext(ctx, "gateway call succeeded",
		"action", req.Action,
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return body, nil
}

func (c *HTTPClient) recordFailure(ctx context.Context, action string, err error) {
	if _, change := c.breaker.RecordFailure(); change.Opened {
		c.logger.ErrorContext(ctx, "payment gateway circuit opened",
			"action", action,
			"error", err,
		)
	}
}

// gatewayHint extracts the gateway's machine-readable failure reason when
// the response body carries one (subscription_not_found, already_cancelled).
func gatewayHint(body []byte) string {
	var envelope struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &envelope) == nil && envelope.Error != "" {
		return envelope.Error
	}
	return "no detail"
}
