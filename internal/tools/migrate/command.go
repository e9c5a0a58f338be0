package migrate

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/sandeepkv93/crowdprice-backend/internal/database"
	"github.com/sandeepkv93/crowdprice-backend/internal/tools/common"
)

const toolName = "migrate"

type options struct {
	envFile string
	timeout time.Duration
	ci      bool
}

func NewRootCommand() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Database migration tooling",
	}
	cmd.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "path to env file")
	cmd.PersistentFlags().DurationVar(&opts.timeout, "timeout", 30*time.Second, "operation timeout")
	cmd.PersistentFlags().BoolVar(&opts.ci, "ci", false, "non-interactive machine-readable output")

	cmd.AddCommand(
		newUpCommand(opts),
		newStatusCommand(opts),
		newPlanCommand(opts),
	)
	return cmd
}

func newUpCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "Apply schema migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return execute(opts, "up", func(ctx context.Context) ([]string, error) {
				_, db, closeDB, err := common.OpenDB(opts.envFile)
				if err != nil {
					return nil, err
				}
				defer closeDB()

				missing, err := database.MissingTables(db.WithContext(ctx))
				if err != nil {
					return nil, err
				}
				if err := database.Migrate(db.WithContext(ctx)); err != nil {
					return nil, err
				}
				if len(missing) == 0 {
					return []string{"schema up to date", "columns and indexes reconciled"}, nil
				}
				return []string{"created tables: " + strings.Join(missing, ", ")}, nil
			})
		},
	}
}

func newStatusCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Report which tables exist",
		RunE: func(cmd *cobra.Command, args []string) error {
			return execute(opts, "status", func(ctx context.Context) ([]string, error) {
				cfg, db, closeDB, err := common.OpenDB(opts.envFile)
				if err != nil {
					return nil, err
				}
				defer closeDB()

				sqlDB, err := db.DB()
				if err != nil {
					return nil, err
				}
				if err := sqlDB.PingContext(ctx); err != nil {
					return nil, fmt.Errorf("db ping: %w", err)
				}
				missing, err := database.MissingTables(db.WithContext(ctx))
				if err != nil {
					return nil, err
				}
				details := []string{"database reachable", "service: " + cfg.OTELServiceName}
				if len(missing) > 0 {
					details = append(details, "pending tables: "+strings.Join(missing, ", "))
				} else {
					details = append(details, "all tables present")
				}
				return details, nil
			})
		},
	}
}

func newPlanCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "plan",
		Short: "Show migration plan (dry-run)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return execute(opts, "plan", func(ctx context.Context) ([]string, error) {
				_, db, closeDB, err := common.OpenDB(opts.envFile)
				if err != nil {
					return nil, err
				}
				defer closeDB()

				missing, err := database.MissingTables(db.WithContext(ctx))
				if err != nil {
					return nil, err
				}
				details := []string{fmt.Sprintf("would run AutoMigrate for %d models", len(database.Models()))}
				if len(missing) > 0 {
					details = append(details, "would create: "+strings.Join(missing, ", "))
				}
				return append(details, "no mutation executed in plan mode"), nil
			})
		},
	}
}

func execute(opts *options, command string, fn common.Action) error {
	if _, err := common.Run(toolName, command, opts.ci, opts.timeout, fn); err != nil {
		os.Exit(3)
	}
	return nil
}
