package database

import (
	"context"
	"time"

	"github.com/sandeepkv93/crowdprice-backend/internal/domain"
	"github.com/sandeepkv93/crowdprice-backend/internal/observability"

	"gorm.io/gorm"
)

var demoProducts = []domain.Product{
	{Name: "iPhone 15 Pro", LaunchPrice: 999},
	{Name: "Galaxy S24 Ultra", LaunchPrice: 1299},
	{Name: "Pixel 8", LaunchPrice: 699},
	{Name: "PlayStation 5", LaunchPrice: 499},
	{Name: "Xbox Series X", LaunchPrice: 499},
	{Name: "Nintendo Switch OLED", LaunchPrice: 349},
	{Name: "MacBook Air M3", LaunchPrice: 1099},
	{Name: "Steam Deck OLED", LaunchPrice: 549},
	{Name: "AirPods Pro 2", LaunchPrice: 249},
	{Name: "Kindle Paperwhite", LaunchPrice: 149},
}

type SeedReport struct {
	CreatedProducts int  `json:"created_products"`
	ExistingSkipped int  `json:"existing_skipped"`
	Noop            bool `json:"noop"`
}

// DemoProductNames returns the catalogue Seed would ensure.
func DemoProductNames() []string {
	names := make([]string, 0, len(demoProducts))
	for _, p := range demoProducts {
		names = append(names, p.Name)
	}
	return names
}

// Seed ensures the demo catalogue exists. Products are matched by name so
// repeated runs are no-ops.
func Seed(db *gorm.DB) (*SeedReport, error) {
	start := time.Now()
	defer func() {
		observability.RecordDatabaseStartupDuration(context.Background(), "seed", time.Since(start))
	}()

	report := &SeedReport{}
	for _, p := range demoProducts {
		var existing int64
		if err := db.Model(&domain.Product{}).Where("name = ?", p.Name).Count(&existing).Error; err != nil {
			observability.RecordDatabaseStartupEvent(context.Background(), "seed", "error")
			return nil, err
		}
		if existing > 0 {
			report.ExistingSkipped++
			continue
		}
		product := p
		if err := db.Create(&product).Error; err != nil {
			observability.RecordDatabaseStartupEvent(context.Background(), "seed", "error")
			return nil, err
		}
		report.CreatedProducts++
	}
	report.Noop = report.CreatedProducts == 0
	observability.RecordDatabaseStartupEvent(context.Background(), "seed", "success")
	return report, nil
}
