package common

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/sandeepkv93/crowdprice-backend/internal/config"
	"github.com/sandeepkv93/crowdprice-backend/internal/database"
	"github.com/sandeepkv93/crowdprice-backend/internal/observability"
	"github.com/sandeepkv93/crowdprice-backend/internal/tools/ui"
)

type Action func(ctx context.Context) ([]string, error)

// Run executes a tool action under timeout. In CI mode the outcome is printed
// as JSON on stdout; otherwise the terminal UI renders progress.
func Run(tool, command string, ci bool, timeout time.Duration, fn Action) ([]string, error) {
	start := time.Now()
	var (
		details []string
		err     error
	)
	if ci {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		details, err = fn(ctx)
		cancel()
	} else {
		details, err = ui.Run(tool+" "+command, timeout, fn)
	}
	elapsed := time.Since(start)
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	observability.RecordToolCommandRun(context.Background(), tool, command, outcome)
	observability.RecordToolCommandDuration(context.Background(), tool, command, outcome, elapsed)
	if ci {
		PrintResult(NewResult(tool, command, details, elapsed, err))
	}
	return details, err
}

// OpenDB loads the env file and configuration and opens the database. The
// returned close func releases the pool.
func OpenDB(envFile string) (*config.Config, *gorm.DB, func(), error) {
	if err := LoadEnvFile(envFile); err != nil {
		return nil, nil, nil, err
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, nil, err
	}
	db, err := database.Open(cfg)
	if err != nil {
		return nil, nil, nil, err
	}
	closeFn := func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
	return cfg, db, closeFn, nil
}
