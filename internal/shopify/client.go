// Package shopify talks to the Shopify Admin GraphQL API: paid orders,
// the product catalog and product metafields.
package shopify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/vektah/gqlparser/v2/gqlerror"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/toko-sales-stats/internal/obs"
	"github.com/noah-isme/toko-sales-stats/internal/resilience"
)

const (
	// DefaultAPIVersion is the Admin API version used when none is configured.
	DefaultAPIVersion = "2025-04"
	// MaxPageSize is the largest page the Admin API serves for a connection.
	MaxPageSize = 250
	// DefaultTimeout bounds one Admin API call when Config.Timeout is unset.
	DefaultTimeout = 30 * time.Second

	accessTokenHeader = "X-Shopify-Access-Token"
	// maxResponseSize caps how much of a response body is read (10MB).
	maxResponseSize = 10 * 1024 * 1024
)

var (
	// ErrGraphQL reports a response carrying a top-level errors array.
	ErrGraphQL = errors.New("shopify: graphql error")
	// ErrHTTPStatus reports a non-200 answer from the endpoint.
	ErrHTTPStatus = errors.New("shopify: unexpected http status")
	// ErrNotConfigured is returned when the shop domain or token is missing.
	ErrNotConfigured = errors.New("shopify: client not configured")
)

// Config describes how to reach one shop.
type Config struct {
	ShopDomain  string
	AccessToken string
	APIVersion  string
	PageSize    int
	// Timeout bounds each call made by the default HTTP client.
	Timeout time.Duration
	// Endpoint overrides the URL derived from ShopDomain and APIVersion.
	Endpoint string
}

// Client issues GraphQL documents against the Admin API of a single shop.
type Client struct {
	endpoint string
	token    string
	pageSize int
	http     *resilience.HTTPClient
	metrics  *obs.GraphQLMetrics
	logger   zerolog.Logger
	tracer   trace.Tracer
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the outbound client, e.g. to attach a breaker.
func WithHTTPClient(hc *resilience.HTTPClient) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithMetrics records per-operation request counts and latency.
func WithMetrics(m *obs.GraphQLMetrics) Option {
	return func(c *Client) { c.metrics = m }
}

// WithLogger sets the logger used for pagination warnings.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// New validates cfg and returns a ready client.
func New(cfg Config, opts ...Option) (*Client, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		domain := strings.TrimSpace(cfg.ShopDomain)
		if domain == "" {
			return nil, fmt.Errorf("%w: shop domain is empty", ErrNotConfigured)
		}
		domain = strings.TrimPrefix(strings.TrimPrefix(domain, "https://"), "http://")
		domain = strings.TrimSuffix(domain, "/")
		version := strings.TrimSpace(cfg.APIVersion)
		if version == "" {
			version = DefaultAPIVersion
		}
		endpoint = fmt.Sprintf("https://%s/admin/api/%s/graphql.json", domain, version)
	}
	if strings.TrimSpace(cfg.AccessToken) == "" {
		return nil, fmt.Errorf("%w: access token is empty", ErrNotConfigured)
	}
	pageSize := cfg.PageSize
	if pageSize <= 0 || pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	c := &Client{
		endpoint: endpoint,
		token:    cfg.AccessToken,
		pageSize: pageSize,
		http: &resilience.HTTPClient{
			Client:  &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
			Timeout: timeout,
			Target:  "shopify-admin",
		},
		logger: zerolog.Nop(),
		tracer: otel.Tracer("github.com/noah-isme/toko-sales-stats/internal/shopify"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Endpoint returns the GraphQL URL the client posts to.
func (c *Client) Endpoint() string {
	return c.endpoint
}

type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type graphQLResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors gqlerror.List   `json:"errors"`
}

func (c *Client) do(ctx context.Context, operation, query string, variables map[string]any, out any) error {
	ctx, span := c.tracer.Start(ctx, "shopify."+operation, trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(attribute.String("graphql.operation.name", operation))

	start := time.Now()
	err := c.post(ctx, query, variables, out)
	result := "ok"
	if err != nil {
		result = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	c.metrics.Observe(operation, result, time.Since(start))
	if err != nil {
		return fmt.Errorf("%s: %w", operation, err)
	}
	return nil
}

func (c *Client) post(ctx context.Context, query string, variables map[string]any, out any) error {
	payload, err := json.Marshal(graphQLRequest{Query: query, Variables: variables})
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set(accessTokenHeader, c.token)

	resp, err := c.http.Do(ctx, req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %d %s", ErrHTTPStatus, resp.StatusCode, snippet(body))
	}

	var envelope graphQLResponse
	if err := json.Unmarshal(body, &envelope); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if len(envelope.Errors) > 0 {
		return fmt.Errorf("%w: %s", ErrGraphQL, envelope.Errors.Error())
	}
	if out == nil {
		return nil
	}
	if len(envelope.Data) == 0 || string(envelope.Data) == "null" {
		return fmt.Errorf("%w: response without data", ErrGraphQL)
	}
	if err := json.Unmarshal(envelope.Data, out); err != nil {
		return fmt.Errorf("decode data: %w", err)
	}
	return nil
}

func snippet(body []byte) string {
	const limit = 256
	s := strings.TrimSpace(string(body))
	if len(s) > limit {
		return s[:limit] + "..."
	}
	return s
}
