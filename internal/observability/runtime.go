package observability

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sandeepkv93/crowdprice-backend/internal/config"

	"go.opentelemetry.io/otel/attribute"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Runtime owns the process-wide OTel providers. LoggerProvider is nil when
// OTLP logs are disabled.
type Runtime struct {
	LoggerProvider *sdklog.LoggerProvider
	MeterProvider  *sdkmetric.MeterProvider
	TracerProvider *sdktrace.TracerProvider
}

func InitRuntime(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Runtime, error) {
	res, err := newResource(ctx, cfg)
	if err != nil {
		return nil, err
	}
	rt := &Runtime{}
	if rt.LoggerProvider, err = InitLogs(ctx, cfg, res, logger); err != nil {
		return nil, err
	}
	if rt.MeterProvider, err = InitMetrics(ctx, cfg, res, logger); err != nil {
		_ = rt.Shutdown(ctx)
		return nil, err
	}
	if rt.TracerProvider, err = InitTracing(ctx, cfg, res, logger); err != nil {
		_ = rt.Shutdown(ctx)
		return nil, err
	}
	return rt, nil
}

func newResource(ctx context.Context, cfg *config.Config) (*resource.Resource, error) {
	res, err := resource.New(ctx,
		resource.WithAttributes(
			attribute.String("service.name", cfg.OTELServiceName),
			attribute.String("deployment.environment", cfg.OTELEnvironment),
			attribute.String("app.env", cfg.Env),
		),
		resource.WithProcessRuntimeVersion(),
	)
	if err != nil {
		return nil, fmt.Errorf("create otel resource: %w", err)
	}
	return res, nil
}

// Shutdown flushes traces, then metrics, then logs. Every provider is
// attempted even when an earlier one fails.
func (r *Runtime) Shutdown(ctx context.Context) error {
	if r == nil {
		return nil
	}
	type stage struct {
		name string
		fn   func(context.Context) error
	}
	var stages []stage
	if r.TracerProvider != nil {
		stages = append(stages, stage{"traces", r.TracerProvider.Shutdown})
	}
	if r.MeterProvider != nil {
		stages = append(stages, stage{"metrics", r.MeterProvider.Shutdown})
	}
	if r.LoggerProvider != nil {
		stages = append(stages, stage{"logs", r.LoggerProvider.Shutdown})
	}
	var errs []error
	for _, s := range stages {
		if err := s.fn(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown %s: %w", s.name, err))
		}
	}
	return errors.Join(errs...)
}
