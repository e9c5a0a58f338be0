package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/sandeepkv93/crowdprice-backend/internal/domain"
	"github.com/sandeepkv93/crowdprice-backend/internal/observability"
)

type ProductRequestRepository interface {
	// Upsert stores the desired price for (ProductID, UserID) in one statement.
	// created reports whether a new row was inserted.
	Upsert(ctx context.Context, req *domain.ProductRequest) (created bool, err error)
	AggregateByPrice(ctx context.Context, productID uint) ([]domain.PriceBucket, error)
}

type GormProductRequestRepository struct{ db *gorm.DB }

func NewProductRequestRepository(db *gorm.DB) ProductRequestRepository {
	return &GormProductRequestRepository{db: db}
}

func (r *GormProductRequestRepository) Upsert(ctx context.Context, req *domain.ProductRequest) (bool, error) {
	// Postgres keeps microseconds; truncating lets the returned created_at
	// compare equal to the value this call wrote.
	now := time.Now().UTC().Truncate(time.Microsecond)
	row := domain.ProductRequest{
		ProductID:    req.ProductID,
		UserID:       req.UserID,
		DesiredPrice: req.DesiredPrice,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	// RETURNING yields the row as this statement left it, so a later writer
	// touching the same pair cannot change what this call reports.
	err := r.db.WithContext(ctx).Clauses(
		clause.OnConflict{
			Columns:   []clause.Column{{Name: "product_id"}, {Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"desired_price", "updated_at"}),
		},
		clause.Returning{},
	).Create(&row).Error
	if err != nil {
		observability.RecordRepositoryOperation(ctx, "product_request", "upsert", "error")
		return false, err
	}

	*req = row
	observability.RecordRepositoryOperation(ctx, "product_request", "upsert", "success")
	return row.CreatedAt.Equal(now), nil
}

func (r *GormProductRequestRepository) AggregateByPrice(ctx context.Context, productID uint) ([]domain.PriceBucket, error) {
	buckets := make([]domain.PriceBucket, 0)
	err := r.db.WithContext(ctx).
		Model(&domain.ProductRequest{}).
		Select("desired_price, COUNT(*) AS count").
		Where("product_id = ?", productID).
		Group("desired_price").
		Order("desired_price asc").
		Scan(&buckets).Error
	if err != nil {
		observability.RecordRepositoryOperation(ctx, "product_request", "aggregate_by_price", "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(ctx, "product_request", "aggregate_by_price", "success")
	return buckets, nil
}
