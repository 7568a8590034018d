// Package paymill is the HTTP transport for the Paymill REST API. Every
// resource kind gets its own gateway.ResourceClient.
package paymill

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/k10r/paymill-shopware/internal/config"
	"github.com/k10r/paymill-shopware/internal/domain"
	"github.com/k10r/paymill-shopware/internal/gateway"
	"github.com/k10r/paymill-shopware/internal/metrics"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	tracerName      = "github.com/k10r/paymill-shopware/internal/infrastructure/paymill"
	maxResponseSize = 1 << 20
)

var resourcePaths = map[gateway.ResourceKind]string{
	gateway.KindClient:           "clients",
	gateway.KindPaymentMethod:    "payments",
	gateway.KindPreauthorization: "preauthorizations",
	gateway.KindTransaction:      "transactions",
	gateway.KindRefund:           "refunds",
}

type HTTPResourceClient struct {
	kind       gateway.ResourceKind
	baseURL    string
	privateKey string
	httpClient *http.Client
	tracer     trace.Tracer
	metrics    *metrics.Metrics
}

// NewResourceClient builds the transport for one resource kind. A nil
// httpClient gets one with the configured connection timeout.
func NewResourceClient(kind gateway.ResourceKind, cfg config.PaymillConfig, httpClient *http.Client, m *metrics.Metrics) (*HTTPResourceClient, error) {
	if _, ok := resourcePaths[kind]; !ok {
		return nil, fmt.Errorf("unknown resource kind %q", kind)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.ConnTimeout}
	}
	return &HTTPResourceClient{
		kind:       kind,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		privateKey: cfg.PrivateKey,
		httpClient: httpClient,
		tracer:     otel.Tracer(tracerName),
		metrics:    m,
	}, nil
}

func (c *HTTPResourceClient) Create(ctx context.Context, params gateway.Params) (gateway.Envelope, error) {
	endpoint := fmt.Sprintf("%s/%s", c.baseURL, resourcePaths[c.kind])

	body := params.Values()
	if c.kind == gateway.KindRefund {
		endpoint = fmt.Sprintf("%s/%s", endpoint, url.PathEscape(params[gateway.ParamTransactionID]))
		body.Del(gateway.ParamTransactionID)
	}

	return c.send(ctx, "create", http.MethodPost, endpoint, body)
}

func (c *HTTPResourceClient) Fetch(ctx context.Context, id string) (gateway.Envelope, error) {
	endpoint := fmt.Sprintf("%s/%s/%s", c.baseURL, resourcePaths[c.kind], url.PathEscape(id))
	return c.send(ctx, "fetch", http.MethodGet, endpoint, nil)
}

func (c *HTTPResourceClient) send(ctx context.Context, operation, method, endpoint string, form url.Values) (env gateway.Envelope, err error) {
	ctx, span := c.tracer.Start(ctx, fmt.Sprintf("paymill.%s.%s", strings.ToLower(c.kind.String()), operation),
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("paymill.resource", c.kind.String()),
			attribute.String("http.method", method),
		))
	start := time.Now()
	defer func() {
		outcome := "ok"
		if err != nil {
			outcome = "unreachable"
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		c.metrics.ObserveGatewayCall(c.kind.String(), operation, outcome, time.Since(start))
		span.End()
	}()

	var bodyReader io.Reader
	if form != nil {
		bodyReader = strings.NewReader(form.Encode())
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, endpoint, bodyReader)
	if err != nil {
		return gateway.Envelope{}, domain.NewGatewayUnreachableError(c.kind.String(), fmt.Errorf("error creating request: %w", err))
	}

	httpReq.SetBasicAuth(c.privateKey, "")
	httpReq.Header.Set("Accept", "application/json")
	if form != nil {
		httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return gateway.Envelope{}, domain.NewGatewayUnreachableError(c.kind.String(), fmt.Errorf("error making request: %w", err))
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return gateway.Envelope{}, domain.NewGatewayUnreachableError(c.kind.String(), fmt.Errorf("error reading response: %w", err))
	}

	if resp.StatusCode >= http.StatusInternalServerError {
		return gateway.Envelope{}, domain.NewGatewayUnreachableError(c.kind.String(), &APIError{
			StatusCode: resp.StatusCode,
			Body:       string(raw),
		})
	}

	env, err = gateway.DecodeEnvelope(raw)
	if err != nil {
		return gateway.Envelope{}, domain.NewGatewayUnreachableError(c.kind.String(), &APIError{
			StatusCode: resp.StatusCode,
			Body:       string(raw),
		})
	}
	env.StatusCode = resp.StatusCode

	return env, nil
}
