// Package app assembles the collaborators shared by the commands.
package app

import (
	"context"
	"fmt"
	"net/http"

	validator "github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/noah-isme/toko-sales-stats/internal/config"
	"github.com/noah-isme/toko-sales-stats/internal/obs"
	"github.com/noah-isme/toko-sales-stats/internal/resilience"
	"github.com/noah-isme/toko-sales-stats/internal/sales"
	"github.com/noah-isme/toko-sales-stats/internal/shopify"
)

// MetricsNamespace prefixes every collector the service registers.
const MetricsNamespace = "sales_stats"

// Dependencies enumerates the collaborators of one aggregation process.
type Dependencies struct {
	Config    *config.Config
	Logger    zerolog.Logger
	Registry  *prometheus.Registry
	Validator *validator.Validate
	Shopify   *shopify.Client
	Breaker   *resilience.Breaker
	Metrics   *obs.JobMetrics
}

// New builds the Shopify client and metrics for cfg.
func New(cfg *config.Config, logger zerolog.Logger) (*Dependencies, error) {
	reg := prometheus.NewRegistry()
	client, breaker, err := NewShopifyClient(cfg, logger, reg)
	if err != nil {
		return nil, err
	}
	return &Dependencies{
		Config:    cfg,
		Logger:    logger,
		Registry:  reg,
		Validator: validator.New(),
		Shopify:   client,
		Breaker:   breaker,
		Metrics:   obs.NewJobMetrics(MetricsNamespace, reg),
	}, nil
}

// NewShopifyClient builds an Admin API client guarded by a circuit breaker
// and returns the breaker for readiness checks.
func NewShopifyClient(cfg *config.Config, logger zerolog.Logger, reg prometheus.Registerer) (*shopify.Client, *resilience.Breaker, error) {
	breakerMetrics, err := resilience.NewBreakerMetrics(MetricsNamespace, reg)
	if err != nil {
		return nil, nil, err
	}
	breaker := resilience.NewBreaker(cfg.CircuitMinRequests, cfg.CircuitFailureRate, cfg.CircuitOpenFor).
		WithTarget("shopify-admin").
		WithLogger(logger).
		WithMetrics(breakerMetrics)

	httpClient := &resilience.HTTPClient{
		Client:      &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
		Breaker:     breaker,
		BaseBackoff: cfg.RetryBase,
		MaxAttempts: cfg.OutboundMaxAttempts,
		Jitter:      cfg.RetryJitterPercent,
		Timeout:     cfg.RequestTimeout,
		Target:      "shopify-admin",
		Logger:      &logger,
	}
	client, err := shopify.New(shopify.Config{
		ShopDomain:  cfg.ShopDomain,
		AccessToken: cfg.AccessToken,
		APIVersion:  cfg.APIVersion,
		PageSize:    cfg.PageSize,
		Timeout:     cfg.RequestTimeout,
	},
		shopify.WithHTTPClient(httpClient),
		shopify.WithLogger(logger),
		shopify.WithMetrics(obs.NewGraphQLMetrics(MetricsNamespace, obs.ParseBucketsCSV(cfg.MetricsBuckets), reg)),
	)
	if err != nil {
		return nil, nil, err
	}
	return client, breaker, nil
}

// Job wires the aggregation pass against the shop.
func (d *Dependencies) Job() *sales.Job {
	return &sales.Job{
		Orders:  d.Shopify,
		Catalog: d.Shopify,
		Writer: &shopify.MetafieldWriter{
			Setter:    d.Shopify,
			BatchSize: d.Config.BatchSize,
			Delay:     d.Config.BatchDelay,
			Logger:    d.Logger,
		},
		Projector: sales.Projector{Namespace: d.Config.MetafieldNamespace, CurrencyCode: d.Config.CurrencyCode},
		Validate:  d.Validator,
		Recorder:  d.Metrics,
		Logger:    d.Logger,
	}
}

// NewRedis connects to REDIS_URL with tracing enabled and verifies the
// connection.
func NewRedis(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := redisotel.InstrumentTracing(client); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("instrument redis tracing: %w", err)
	}
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}
