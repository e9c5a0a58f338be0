package observability

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sandeepkv93/crowdprice-backend/internal/config"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/exemplar"
	"go.opentelemetry.io/otel/sdk/resource"
)

const meterName = "crowdprice-backend"

type AppMetrics struct {
	authEventCounter             metric.Int64Counter
	authReqDuration              metric.Float64Histogram
	accessTokenValidationCounter metric.Int64Counter
	abuseGuardCounter            metric.Int64Counter
	abuseGuardCooldown           metric.Float64Histogram
	rateLimitDecisionCounter     metric.Int64Counter
	rateLimitRetryAfter          metric.Float64Histogram
	middlewareValidationCounter  metric.Int64Counter
	productOperationCounter      metric.Int64Counter
	productOperationDuration     metric.Float64Histogram
	priceRequestCounter          metric.Int64Counter
	priceCacheCounter            metric.Int64Counter
	priceHistogramBuckets        metric.Float64Histogram
	rankingListSize              metric.Float64Histogram
	postOperationCounter         metric.Int64Counter
	postReactionCounter          metric.Int64Counter
	storageOperationCounter      metric.Int64Counter
	healthCheckResultCounter     metric.Int64Counter
	healthCheckDuration          metric.Float64Histogram
	databaseStartupCounter       metric.Int64Counter
	databaseStartupDuration      metric.Float64Histogram
	repositoryOpsCounter         metric.Int64Counter
	toolCommandRuns              metric.Int64Counter
	toolCommandDuration          metric.Float64Histogram
	loadgenRequestsCounter       metric.Int64Counter
}

var (
	metricsMu  sync.RWMutex
	appMetrics *AppMetrics
)

func InitMetrics(ctx context.Context, cfg *config.Config, res *resource.Resource, logger *slog.Logger) (*sdkmetric.MeterProvider, error) {
	if !cfg.OTELMetricsEnabled {
		mp := sdkmetric.NewMeterProvider()
		otel.SetMeterProvider(mp)
		logger.Info("otel metrics disabled")
		return mp, nil
	}

	opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(cfg.OTELExporterOTLPEndpoint)}
	if cfg.OTELExporterOTLPInsecure {
		opts = append(opts, otlpmetricgrpc.WithInsecure())
	}
	exporter, err := otlpmetricgrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create otlp metric exporter: %w", err)
	}

	latencyBuckets := sdkmetric.Stream{
		Aggregation: sdkmetric.AggregationExplicitBucketHistogram{
			Boundaries: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
	}
	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(cfg.OTELMetricsExportInterval))
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(reader),
		sdkmetric.WithExemplarFilter(exemplar.TraceBasedFilter),
		sdkmetric.WithView(
			sdkmetric.NewView(sdkmetric.Instrument{Name: "auth.request.duration"}, latencyBuckets),
			sdkmetric.NewView(sdkmetric.Instrument{Name: "product.operation.duration"}, latencyBuckets),
			sdkmetric.NewView(sdkmetric.Instrument{Name: "redis.command.duration"}, sdkmetric.Stream{
				Aggregation: sdkmetric.AggregationExplicitBucketHistogram{
					Boundaries: []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1},
				},
			}),
		),
	)
	otel.SetMeterProvider(mp)

	m, err := newAppMetrics(mp.Meter(meterName))
	if err != nil {
		return nil, err
	}
	metricsMu.Lock()
	appMetrics = m
	metricsMu.Unlock()

	logger.Info("otel metrics initialized", "endpoint", cfg.OTELExporterOTLPEndpoint)
	return mp, nil
}

func newAppMetrics(meter metric.Meter) (*AppMetrics, error) {
	var firstErr error
	counter := func(name, desc string) metric.Int64Counter {
		c, err := meter.Int64Counter(name, metric.WithDescription(desc))
		if err != nil && firstErr == nil {
			firstErr = fmt.Errorf("create counter %s: %w", name, err)
		}
		return c
	}
	hist := func(name, unit, desc string) metric.Float64Histogram {
		opts := []metric.Float64HistogramOption{metric.WithDescription(desc)}
		if unit != "" {
			opts = append(opts, metric.WithUnit(unit))
		}
		h, err := meter.Float64Histogram(name, opts...)
		if err != nil && firstErr == nil {
			firstErr = fmt.Errorf("create histogram %s: %w", name, err)
		}
		return h
	}

	m := &AppMetrics{
		authEventCounter:             counter("auth.events", "Signup, signin and identity resolution outcomes"),
		authReqDuration:              hist("auth.request.duration", "s", "Duration of auth endpoint requests in seconds"),
		accessTokenValidationCounter: counter("auth.access_token.validation.events", "Bearer token validation outcomes"),
		abuseGuardCounter:            counter("auth.abuse_guard.events", "Failed signin backoff checks, failures and resets"),
		abuseGuardCooldown:           hist("auth.abuse_guard.cooldown", "s", "Signin cooldown imposed after a failed attempt in seconds"),
		rateLimitDecisionCounter:     counter("http.rate_limit.decisions", "Rate limiter allow/deny decisions"),
		rateLimitRetryAfter:          hist("http.rate_limit.retry_after", "s", "Retry-after duration in seconds for throttled requests"),
		middlewareValidationCounter:  counter("http.middleware.validation.events", "CORS and body limit middleware outcomes"),
		productOperationCounter:      counter("product.operation.events", "Product service operation outcomes"),
		productOperationDuration:     hist("product.operation.duration", "s", "Duration of product service operations in seconds"),
		priceRequestCounter:          counter("price.request.events", "Desired price submissions by upsert outcome"),
		priceCacheCounter:            counter("price.cache.events", "Aggregated price cache hits, misses and invalidations"),
		priceHistogramBuckets:        hist("price.histogram.buckets", "", "Distinct desired prices per aggregation"),
		rankingListSize:              hist("price.ranking.list_size", "", "Entries returned per ranking list"),
		postOperationCounter:         counter("post.operation.events", "Post creation and listing outcomes"),
		postReactionCounter:          counter("post.reaction.events", "Like and dislike outcomes"),
		storageOperationCounter:      counter("storage.operations", "Object storage operation outcomes"),
		healthCheckResultCounter:     counter("health.check.results", "Readiness check outcomes"),
		healthCheckDuration:          hist("health.check.duration", "s", "Duration of health dependency checks in seconds"),
		databaseStartupCounter:       counter("database.startup.events", "Database connect, migrate and seed outcomes"),
		databaseStartupDuration:      hist("database.startup.duration", "s", "Duration of database startup stages in seconds"),
		repositoryOpsCounter:         counter("repository.operations", "Repository operation outcomes"),
		toolCommandRuns:              counter("tool.command.runs", "Operator tool command runs"),
		toolCommandDuration:          hist("tool.command.duration", "s", "Duration of operator tool commands in seconds"),
		loadgenRequestsCounter:       counter("loadgen.requests", "Load generator requests by status class"),
	}
	if firstErr != nil {
		return nil, firstErr
	}
	return m, nil
}

func currentMetrics() *AppMetrics {
	metricsMu.RLock()
	defer metricsMu.RUnlock()
	return appMetrics
}

func RecordAuthEvent(ctx context.Context, flow, outcome string) {
	m := currentMetrics()
	if m == nil {
		return
	}
	m.authEventCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("flow", flow),
		attribute.String("outcome", outcome),
	))
}

func RecordAuthRequestDuration(ctx context.Context, endpoint, status string, duration time.Duration) {
	m := currentMetrics()
	if m == nil {
		return
	}
	m.authReqDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String("endpoint", endpoint),
		attribute.String("status", status),
	))
}

func RecordAuthAbuseGuardEvent(ctx context.Context, backend, action, outcome string) {
	m := currentMetrics()
	if m == nil {
		return
	}
	m.abuseGuardCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("backend", backend),
		attribute.String("action", action),
		attribute.String("outcome", outcome),
	))
}

func RecordAuthAbuseCooldown(ctx context.Context, backend, action string, cooldown time.Duration) {
	m := currentMetrics()
	if m == nil || cooldown <= 0 {
		return
	}
	m.abuseGuardCooldown.Record(ctx, cooldown.Seconds(), metric.WithAttributes(
		attribute.String("backend", backend),
		attribute.String("action", action),
	))
}

func RecordAccessTokenValidation(ctx context.Context, outcome, source string) {
	m := currentMetrics()
	if m == nil {
		return
	}
	m.accessTokenValidationCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("outcome", outcome),
		attribute.String("source", source),
	))
}

func RecordRateLimitDecision(ctx context.Context, scope, outcome, mode, keyType string) {
	m := currentMetrics()
	if m == nil {
		return
	}
	m.rateLimitDecisionCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("scope", scope),
		attribute.String("outcome", outcome),
		attribute.String("mode", mode),
		attribute.String("key_type", keyType),
	))
}

func RecordRateLimitRetryAfter(ctx context.Context, scope, reason string, retryAfter time.Duration) {
	m := currentMetrics()
	if m == nil {
		return
	}
	m.rateLimitRetryAfter.Record(ctx, retryAfter.Seconds(), metric.WithAttributes(
		attribute.String("scope", scope),
		attribute.String("reason", reason),
	))
}

func RecordMiddlewareValidationEvent(ctx context.Context, middleware, outcome string) {
	m := currentMetrics()
	if m == nil {
		return
	}
	m.middlewareValidationCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("middleware", middleware),
		attribute.String("outcome", outcome),
	))
}

func RecordProductOperation(ctx context.Context, operation, outcome string, duration time.Duration) {
	m := currentMetrics()
	if m == nil {
		return
	}
	m.productOperationCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation", operation),
		attribute.String("outcome", outcome),
	))
	m.productOperationDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String("operation", operation),
	))
}

// RecordPriceRequest tracks desired price upserts; outcome is created, updated or an error class.
func RecordPriceRequest(ctx context.Context, outcome string) {
	m := currentMetrics()
	if m == nil {
		return
	}
	m.priceRequestCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

func RecordPriceCacheEvent(ctx context.Context, backend, outcome string) {
	m := currentMetrics()
	if m == nil {
		return
	}
	m.priceCacheCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("backend", backend),
		attribute.String("outcome", outcome),
	))
}

func RecordPriceHistogramBuckets(ctx context.Context, buckets int) {
	m := currentMetrics()
	if m == nil {
		return
	}
	m.priceHistogramBuckets.Record(ctx, float64(buckets))
}

func RecordRankingListSize(ctx context.Context, list string, size int) {
	m := currentMetrics()
	if m == nil {
		return
	}
	m.rankingListSize.Record(ctx, float64(size), metric.WithAttributes(attribute.String("list", list)))
}

func RecordPostOperation(ctx context.Context, operation, outcome string) {
	m := currentMetrics()
	if m == nil {
		return
	}
	m.postOperationCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation", operation),
		attribute.String("outcome", outcome),
	))
}

func RecordPostReaction(ctx context.Context, kind, outcome string) {
	m := currentMetrics()
	if m == nil {
		return
	}
	m.postReactionCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("kind", kind),
		attribute.String("outcome", outcome),
	))
}

func RecordStorageOperation(ctx context.Context, operation, outcome string) {
	m := currentMetrics()
	if m == nil {
		return
	}
	m.storageOperationCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation", operation),
		attribute.String("outcome", outcome),
	))
}

func RecordHealthCheckResult(ctx context.Context, check, outcome string) {
	m := currentMetrics()
	if m == nil {
		return
	}
	m.healthCheckResultCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("check", check),
		attribute.String("outcome", outcome),
	))
}

func RecordHealthCheckDuration(ctx context.Context, check string, duration time.Duration) {
	m := currentMetrics()
	if m == nil {
		return
	}
	m.healthCheckDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String("check", check),
	))
}

func RecordDatabaseStartupEvent(ctx context.Context, stage, outcome string) {
	m := currentMetrics()
	if m == nil {
		return
	}
	m.databaseStartupCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("stage", stage),
		attribute.String("outcome", outcome),
	))
}

func RecordDatabaseStartupDuration(ctx context.Context, stage string, duration time.Duration) {
	m := currentMetrics()
	if m == nil {
		return
	}
	m.databaseStartupDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String("stage", stage),
	))
}

func RecordRepositoryOperation(ctx context.Context, repo, operation, outcome string) {
	m := currentMetrics()
	if m == nil {
		return
	}
	m.repositoryOpsCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("repository", repo),
		attribute.String("operation", operation),
		attribute.String("outcome", outcome),
	))
}

func RecordToolCommandRun(ctx context.Context, tool, command, outcome string) {
	m := currentMetrics()
	if m == nil {
		return
	}
	m.toolCommandRuns.Add(ctx, 1, metric.WithAttributes(
		attribute.String("tool", tool),
		attribute.String("command", command),
		attribute.String("outcome", outcome),
	))
}

func RecordToolCommandDuration(ctx context.Context, tool, command, outcome string, duration time.Duration) {
	m := currentMetrics()
	if m == nil {
		return
	}
	m.toolCommandDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String("tool", tool),
		attribute.String("command", command),
		attribute.String("outcome", outcome),
	))
}

func RecordLoadgenRequest(ctx context.Context, statusClass, profile string) {
	m := currentMetrics()
	if m == nil {
		return
	}
	m.loadgenRequestsCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("status_class", statusClass),
		attribute.String("profile", profile),
	))
}
