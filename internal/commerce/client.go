// Package commerce is the storefront's client for the headless commerce
// backend's store API.
package commerce

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	apperrors "github.com/utafrali/storefront/pkg/errors"
	"github.com/utafrali/storefront/pkg/httpclient"
	"github.com/utafrali/storefront/pkg/tracing"
)

// PublishableKeyHeader carries the storefront's publishable API key on every request.
const PublishableKeyHeader = "x-publishable-api-key"

const upstreamName = "commerce"

// Doer executes HTTP requests. *httpclient.CircuitBreakerClient satisfies it.
type Doer interface {
	Do(ctx context.Context, req *http.Request) (*http.Response, error)
}

// Config holds the commerce API location and credentials.
type Config struct {
	BaseURL        string
	PublishableKey string
}

// Client calls the commerce store API. It is stateless; authenticated calls
// take the customer's bearer token explicitly.
type Client struct {
	doer    Doer
	baseURL string
	key     string
	logger  *slog.Logger
	tracer  trace.Tracer
}

// NewClient creates a commerce API client.
func NewClient(doer Doer, cfg Config, logger *slog.Logger) *Client {
	return &Client{
		doer:    doer,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		key:     cfg.PublishableKey,
		logger:  logger,
		tracer:  tracing.Tracer("github.com/utafrali/storefront/internal/commerce"),
	}
}

// request describes a single API call.
type request struct {
	op     string
	method string
	path   string
	token  string
	auth   bool
	query  url.Values
	body   any
}

// call executes req and decodes a 2xx JSON body into out (if non-nil).
// Non-2xx responses are mapped to AppErrors by httpclient.ParseResponseError.
func (c *Client) call(ctx context.Context, req request, out any) error {
	if req.auth && req.token == "" {
		return apperrors.Unauthorized("not authenticated")
	}

	ctx, span := c.tracer.Start(ctx, "commerce."+req.op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.method", req.method),
			attribute.String("commerce.path", req.path),
		),
	)
	defer span.End()

	err := c.roundTrip(ctx, req, out)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (c *Client) roundTrip(ctx context.Context, req request, out any) error {
	u := c.baseURL + req.path
	if len(req.query) > 0 {
		u += "?" + req.query.Encode()
	}

	var body io.Reader = http.NoBody
	if req.body != nil {
		data, err := json.Marshal(req.body)
		if err != nil {
			return fmt.Errorf("marshal %s request: %w", req.op, err)
		}
		body = bytes.NewReader(data)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, u, body)
	if err != nil {
		return fmt.Errorf("create %s request: %w", req.op, err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if req.body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if c.key != "" {
		httpReq.Header.Set(PublishableKeyHeader, c.key)
	}
	if req.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+req.token)
	}

	resp, err := c.doer.Do(ctx, httpReq)
	if err != nil {
		c.logger.WarnContext(ctx, "commerce request failed",
			slog.String("op", req.op),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("%s: %w", req.op, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return httpclient.ParseResponseError(resp, upstreamName)
	}
	defer func() { _ = resp.Body.Close() }()

	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", req.op, err)
	}
	return nil
}

// Ping checks that the commerce backend answers its health endpoint.
func (c *Client) Ping(ctx context.Context) error {
	return c.call(ctx, request{op: "ping", method: http.MethodGet, path: "/health"}, nil)
}
