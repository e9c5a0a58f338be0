package obscheck

import (
	"context"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/sandeepkv93/crowdprice-backend/internal/tools/common"
	"github.com/sandeepkv93/crowdprice-backend/internal/tools/loadgen"
)

type options struct {
	grafana        grafanaConfig
	serviceName    string
	window         time.Duration
	ci             bool
	baseURL        string
	exemplarMetric string
	settle         time.Duration
}

func NewRootCommand() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{Use: "obscheck", Short: "Verify metrics, traces and logs correlation"}
	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.grafana.baseURL, "grafana-url", "http://localhost:3000", "Grafana base URL")
	flags.StringVar(&opts.grafana.user, "grafana-user", "admin", "Grafana username")
	flags.StringVar(&opts.grafana.password, "grafana-password", "admin", "Grafana password")
	flags.IntVar(&opts.grafana.prometheusID, "prometheus-datasource", 1, "Grafana datasource id for Prometheus")
	flags.IntVar(&opts.grafana.lokiID, "loki-datasource", 2, "Grafana datasource id for Loki")
	flags.IntVar(&opts.grafana.tempoID, "tempo-datasource", 3, "Grafana datasource id for Tempo")
	flags.StringVar(&opts.serviceName, "service-name", "crowdprice-backend", "OTel service name")
	flags.DurationVar(&opts.window, "window", 20*time.Minute, "query lookback window")
	flags.BoolVar(&opts.ci, "ci", false, "non-interactive machine-readable output")
	flags.StringVar(&opts.baseURL, "base-url", "http://localhost:8080", "API base URL for traffic")
	flags.StringVar(&opts.exemplarMetric, "exemplar-metric", "product_operation_duration_seconds_bucket", "histogram queried for trace exemplars")
	flags.DurationVar(&opts.settle, "settle", 8*time.Second, "wait for telemetry export after traffic")

	cmd.AddCommand(&cobra.Command{
		Use:   "run",
		Short: "Browse the catalogue and validate the exemplar to trace to log path",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := common.Run("obscheck", "run", opts.ci, 3*time.Minute, func(ctx context.Context) ([]string, error) {
				return run(ctx, *opts)
			}); err != nil {
				os.Exit(4)
			}
			return nil
		},
	})
	return cmd
}

func run(ctx context.Context, opts options) ([]string, error) {
	traffic, err := loadgen.Run(ctx, loadgen.Config{
		BaseURL:     opts.baseURL,
		Profile:     "browse",
		Duration:    6 * time.Second,
		RPS:         20,
		Concurrency: 6,
	})
	if err != nil {
		return nil, err
	}
	details := append([]string{"browse traffic:"}, traffic.Summary()...)
	select {
	case <-time.After(opts.settle):
	case <-ctx.Done():
		return details, ctx.Err()
	}
	return verify(ctx, opts, details)
}

// verify walks exemplar, trace and log in that order and stops at the first
// missing link.
func verify(ctx context.Context, opts options, details []string) ([]string, error) {
	g := newGrafanaClient(opts.grafana)
	now := time.Now()

	traceID, err := g.exemplarTraceID(ctx, opts.exemplarMetric, now.Add(-opts.window), now)
	if err != nil {
		return details, err
	}
	details = append(details, "exemplar trace_id="+traceID)

	if err := g.traceExists(ctx, traceID); err != nil {
		return details, err
	}
	details = append(details, "tempo trace lookup: ok")

	if err := g.logsMentionTrace(ctx, opts.serviceName, traceID, now.Add(-opts.window), now); err != nil {
		return details, err
	}
	return append(details, "loki trace correlation: ok"), nil
}
