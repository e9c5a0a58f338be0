package seed

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/sandeepkv93/crowdprice-backend/internal/database"
	"github.com/sandeepkv93/crowdprice-backend/internal/domain"
	"github.com/sandeepkv93/crowdprice-backend/internal/tools/common"
)

const toolName = "seed"

type options struct {
	envFile string
	ci      bool
}

func NewRootCommand() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{Use: "seed", Short: "Demo catalogue seeding"}
	cmd.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "path to env file")
	cmd.PersistentFlags().BoolVar(&opts.ci, "ci", false, "non-interactive machine-readable output")
	cmd.AddCommand(newApplyCommand(opts), newDryRunCommand(opts))
	return cmd
}

func newApplyCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "apply",
		Short: "Insert demo products that do not exist yet",
		RunE: func(cmd *cobra.Command, args []string) error {
			return execute(opts, "apply", func(ctx context.Context) ([]string, error) {
				_, db, closeDB, err := common.OpenDB(opts.envFile)
				if err != nil {
					return nil, err
				}
				defer closeDB()

				report, err := database.Seed(db.WithContext(ctx))
				if err != nil {
					return nil, err
				}
				if report.Noop {
					return []string{fmt.Sprintf("catalogue already seeded (%d products)", report.ExistingSkipped)}, nil
				}
				return []string{
					fmt.Sprintf("created products: %d", report.CreatedProducts),
					fmt.Sprintf("existing skipped: %d", report.ExistingSkipped),
				}, nil
			})
		},
	}
}

func newDryRunCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "dry-run",
		Short: "Show which demo products seeding would create",
		RunE: func(cmd *cobra.Command, args []string) error {
			return execute(opts, "dry-run", func(ctx context.Context) ([]string, error) {
				_, db, closeDB, err := common.OpenDB(opts.envFile)
				if err != nil {
					return nil, err
				}
				defer closeDB()

				var details []string
				for _, name := range database.DemoProductNames() {
					var count int64
					if err := db.WithContext(ctx).Model(&domain.Product{}).Where("name = ?", name).Count(&count).Error; err != nil {
						return nil, err
					}
					if count == 0 {
						details = append(details, "would create: "+name)
					}
				}
				if len(details) == 0 {
					details = append(details, "nothing to do")
				}
				return details, nil
			})
		},
	}
}

func execute(opts *options, command string, fn common.Action) error {
	if _, err := common.Run(toolName, command, opts.ci, 30*time.Second, fn); err != nil {
		os.Exit(3)
	}
	return nil
}
