package observability

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// RedisKeyspace ties a key prefix to the feature that owns those keys.
type RedisKeyspace struct {
	Prefix  string
	Feature string
}

// InstrumentRedisClient records command counts and latency per feature, and
// cache lookups (GET hit or miss) per feature. Keys matching no keyspace are
// reported as "other".
func InstrumentRedisClient(client redis.UniversalClient, logger *slog.Logger, keyspaces ...RedisKeyspace) {
	if client == nil {
		return
	}
	if logger == nil {
		logger = slog.Default()
	}
	hook, err := newRedisMetricsHook(otel.Meter(meterName), client.PoolStats, keyspaces)
	if err != nil {
		logger.Warn("redis instrumentation disabled", "error", err)
		return
	}
	client.AddHook(hook)
	logger.Info("redis instrumentation enabled", "keyspaces", len(keyspaces))
}

type redisMetricsHook struct {
	keyspaces  []RedisKeyspace
	cmdTotal   metric.Int64Counter
	cmdLatency metric.Float64Histogram
	lookups    metric.Int64Counter
}

func newRedisMetricsHook(meter metric.Meter, poolStats func() *redis.PoolStats, keyspaces []RedisKeyspace) (*redisMetricsHook, error) {
	cmdTotal, err := meter.Int64Counter(
		"redis.command.total",
		metric.WithDescription("Redis commands by owning feature, command and status"),
	)
	if err != nil {
		return nil, err
	}
	cmdLatency, err := meter.Float64Histogram(
		"redis.command.duration",
		metric.WithUnit("s"),
		metric.WithDescription("Redis command latency in seconds by owning feature"),
	)
	if err != nil {
		return nil, err
	}
	lookups, err := meter.Int64Counter(
		"redis.keyspace.lookups",
		metric.WithDescription("Redis GET lookups by owning feature and result"),
	)
	if err != nil {
		return nil, err
	}
	saturation, err := meter.Float64ObservableGauge(
		"redis.pool.saturation",
		metric.WithUnit("1"),
		metric.WithDescription("Share of pooled Redis connections in use"),
	)
	if err != nil {
		return nil, err
	}
	if poolStats != nil {
		_, err = meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
			stats := poolStats()
			if stats == nil || stats.TotalConns == 0 {
				return nil
			}
			used := float64(stats.TotalConns-stats.IdleConns) / float64(stats.TotalConns)
			o.ObserveFloat64(saturation, min(max(used, 0), 1))
			return nil
		}, saturation)
		if err != nil {
			return nil, err
		}
	}

	// Longest prefix first so nested prefixes resolve to the most specific feature.
	sorted := append([]RedisKeyspace(nil), keyspaces...)
	sort.SliceStable(sorted, func(i, j int) bool { return len(sorted[i].Prefix) > len(sorted[j].Prefix) })
	return &redisMetricsHook{
		keyspaces:  sorted,
		cmdTotal:   cmdTotal,
		cmdLatency: cmdLatency,
		lookups:    lookups,
	}, nil
}

func (h *redisMetricsHook) DialHook(next redis.DialHook) redis.DialHook {
	return next
}

func (h *redisMetricsHook) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		start := time.Now()
		err := next(ctx, cmd)
		h.observe(ctx, cmd, err, time.Since(start))
		return err
	}
}

func (h *redisMetricsHook) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		start := time.Now()
		err := next(ctx, cmds)
		// Each pipelined command is charged an equal share of the round trip.
		per := time.Since(start)
		if len(cmds) > 0 {
			per /= time.Duration(len(cmds))
		}
		for _, cmd := range cmds {
			h.observe(ctx, cmd, cmd.Err(), per)
		}
		return err
	}
}

func (h *redisMetricsHook) observe(ctx context.Context, cmd redis.Cmder, err error, duration time.Duration) {
	command := strings.ToLower(cmd.Name())
	feature := h.featureFor(commandKey(cmd))
	status := redisCommandStatus(err)

	h.cmdTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("feature", feature),
		attribute.String("command", command),
		attribute.String("status", status),
	))
	h.cmdLatency.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String("feature", feature),
		attribute.String("command", command),
	))
	if command == "get" && status != "error" {
		result := "hit"
		if status == "miss" {
			result = "miss"
		}
		h.lookups.Add(ctx, 1, metric.WithAttributes(
			attribute.String("feature", feature),
			attribute.String("result", result),
		))
	}
}

func (h *redisMetricsHook) featureFor(key string) string {
	if key == "" {
		return "other"
	}
	for _, ks := range h.keyspaces {
		if ks.Prefix != "" && strings.HasPrefix(key, ks.Prefix+":") {
			return ks.Feature
		}
	}
	return "other"
}

// commandKey returns the first key a command touches, or "" for keyless commands.
func commandKey(cmd redis.Cmder) string {
	args := cmd.Args()
	keyPos := 1
	switch strings.ToLower(cmd.Name()) {
	case "ping", "info", "hello", "client", "auth", "select", "script", "function":
		return ""
	case "eval", "evalsha", "eval_ro", "evalsha_ro", "fcall", "fcall_ro":
		if len(args) < 3 || fmt.Sprint(args[2]) == "0" {
			return ""
		}
		keyPos = 3
	}
	if len(args) <= keyPos {
		return ""
	}
	key, _ := args[keyPos].(string)
	return key
}

func redisCommandStatus(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, redis.Nil):
		return "miss"
	default:
		return "error"
	}
}
