package observability

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/sandeepkv93/crowdprice-backend/internal/config"

	"go.opentelemetry.io/otel"
	sdkresource "go.opentelemetry.io/otel/sdk/resource"
)

func TestInitTracingWithExporterEnabled(t *testing.T) {
	prev := otel.GetTracerProvider()
	defer otel.SetTracerProvider(prev)

	cfg := &config.Config{
		OTELTracingEnabled:       true,
		OTELExporterOTLPEndpoint: "127.0.0.1:4317",
		OTELExporterOTLPInsecure: true,
		OTELTraceSamplingRatio:   1,
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	tp, err := InitTracing(context.Background(), cfg, sdkresource.Empty(), logger)
	if err != nil {
		t.Fatalf("init tracing: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = tp.Shutdown(ctx)
	}()

	_, span := StartSpan(context.Background(), "test.span")
	defer span.End()
	if !span.SpanContext().IsSampled() {
		t.Fatal("expected span to be sampled with ratio 1")
	}
}

func TestNewTraceExporterIsSpanExporter(t *testing.T) {
	cfg := &config.Config{OTELExporterOTLPEndpoint: "127.0.0.1:4317", OTELExporterOTLPInsecure: true}
	exporter, err := newTraceExporter(context.Background(), cfg)
	if err != nil {
		t.Fatalf("new trace exporter: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_ = exporter.Shutdown(ctx)
}
