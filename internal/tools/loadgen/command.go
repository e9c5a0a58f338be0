package loadgen

import (
	"context"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/sandeepkv93/crowdprice-backend/internal/tools/common"
)

func NewRootCommand() *cobra.Command {
	var (
		cfg = Config{}
		ci  bool
	)
	cmd := &cobra.Command{Use: "loadgen", Short: "Drive catalogue, price and post traffic against a running API"}
	flags := cmd.PersistentFlags()
	flags.StringVar(&cfg.BaseURL, "base-url", "http://localhost:8080", "API base URL")
	flags.StringVar(&cfg.Profile, "profile", "mixed", "traffic profile: browse|mixed|error-heavy")
	flags.DurationVar(&cfg.Duration, "duration", 15*time.Second, "traffic duration")
	flags.IntVar(&cfg.RPS, "rps", 20, "requests per second")
	flags.IntVar(&cfg.Concurrency, "concurrency", 6, "concurrent workers")
	flags.UintVar(&cfg.ProductID, "product-id", 1, "product id used for detail routes")
	flags.BoolVar(&ci, "ci", false, "non-interactive machine-readable output")

	cmd.AddCommand(&cobra.Command{
		Use:   "run",
		Short: "Run load generation",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := common.Run("loadgen", "run", ci, cfg.Duration+15*time.Second, func(ctx context.Context) ([]string, error) {
				res, err := Run(ctx, cfg)
				if err != nil {
					return nil, err
				}
				return res.Summary(), nil
			})
			if err != nil {
				os.Exit(4)
			}
			return nil
		},
	})
	return cmd
}
