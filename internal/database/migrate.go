package database

import (
	"context"
	"time"

	"github.com/sandeepkv93/crowdprice-backend/internal/domain"
	"github.com/sandeepkv93/crowdprice-backend/internal/observability"

	"gorm.io/gorm"
)

// Models lists every persisted type in dependency order.
func Models() []any {
	return []any{
		&domain.User{},
		&domain.Product{},
		&domain.ProductRequest{},
		&domain.Post{},
		&domain.PostReaction{},
	}
}

func Migrate(db *gorm.DB) error {
	start := time.Now()
	defer func() {
		observability.RecordDatabaseStartupDuration(context.Background(), "migrate", time.Since(start))
	}()
	if err := db.AutoMigrate(Models()...); err != nil {
		observability.RecordDatabaseStartupEvent(context.Background(), "migrate", "error")
		return err
	}
	observability.RecordDatabaseStartupEvent(context.Background(), "migrate", "success")
	return nil
}

// MissingTables reports the tables AutoMigrate would create.
func MissingTables(db *gorm.DB) ([]string, error) {
	var missing []string
	for _, model := range Models() {
		stmt := &gorm.Statement{DB: db}
		if err := stmt.Parse(model); err != nil {
			return nil, err
		}
		if !db.Migrator().HasTable(model) {
			missing = append(missing, stmt.Schema.Table)
		}
	}
	return missing, nil
}
