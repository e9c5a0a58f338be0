package repository

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/sandeepkv93/crowdprice-backend/internal/domain"
	"github.com/sandeepkv93/crowdprice-backend/internal/observability"
)

var ErrProductNotFound = errors.New("product not found")

type ProductRepository interface {
	Create(ctx context.Context, product *domain.Product) error
	FindByID(ctx context.Context, id uint) (*domain.Product, error)
	ListPaged(ctx context.Context, req PageRequest) (PageResult[domain.Product], error)
	SearchByName(ctx context.Context, query string, limit int) ([]domain.Product, error)
	UpdateImageKey(ctx context.Context, id uint, key string) error
	ListPriceSummaries(ctx context.Context) ([]domain.ProductPriceSummary, error)
}

type GormProductRepository struct{ db *gorm.DB }

func NewProductRepository(db *gorm.DB) ProductRepository {
	return &GormProductRepository{db: db}
}

func (r *GormProductRepository) Create(ctx context.Context, product *domain.Product) error {
	if err := r.db.WithContext(ctx).Create(product).Error; err != nil {
		observability.RecordRepositoryOperation(ctx, "product", "create", "error")
		return err
	}
	observability.RecordRepositoryOperation(ctx, "product", "create", "success")
	return nil
}

func (r *GormProductRepository) FindByID(ctx context.Context, id uint) (*domain.Product, error) {
	var product domain.Product
	if err := r.db.WithContext(ctx).First(&product, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			observability.RecordRepositoryOperation(ctx, "product", "find_by_id", "not_found")
			return nil, ErrProductNotFound
		}
		observability.RecordRepositoryOperation(ctx, "product", "find_by_id", "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(ctx, "product", "find_by_id", "success")
	return &product, nil
}

func (r *GormProductRepository) ListPaged(ctx context.Context, req PageRequest) (PageResult[domain.Product], error) {
	page, err := paginate[domain.Product](r.db.WithContext(ctx).Model(&domain.Product{}), req, "id desc")
	if err != nil {
		observability.RecordRepositoryOperation(ctx, "product", "list_paged", "error")
		return PageResult[domain.Product]{}, err
	}
	observability.RecordRepositoryOperation(ctx, "product", "list_paged", "success")
	return page, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// SearchByName matches products whose name contains query, ignoring case.
func (r *GormProductRepository) SearchByName(ctx context.Context, query string, limit int) ([]domain.Product, error) {
	pattern := "%" + likeEscaper.Replace(strings.ToLower(query)) + "%"
	products := make([]domain.Product, 0)
	err := r.db.WithContext(ctx).
		Where(`LOWER(name) LIKE ? ESCAPE '\'`, pattern).
		Order("name asc").
		Limit(limit).
		Find(&products).Error
	if err != nil {
		observability.RecordRepositoryOperation(ctx, "product", "search_by_name", "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(ctx, "product", "search_by_name", "success")
	return products, nil
}

func (r *GormProductRepository) UpdateImageKey(ctx context.Context, id uint, key string) error {
	res := r.db.WithContext(ctx).Model(&domain.Product{}).Where("id = ?", id).Update("image_key", key)
	if res.Error != nil {
		observability.RecordRepositoryOperation(ctx, "product", "update_image_key", "error")
		return res.Error
	}
	if res.RowsAffected == 0 {
		observability.RecordRepositoryOperation(ctx, "product", "update_image_key", "not_found")
		return ErrProductNotFound
	}
	observability.RecordRepositoryOperation(ctx, "product", "update_image_key", "success")
	return nil
}

// ListPriceSummaries returns every product that has at least one desired
// price, together with the highest desired price submitted for it.
func (r *GormProductRepository) ListPriceSummaries(ctx context.Context) ([]domain.ProductPriceSummary, error) {
	summaries := make([]domain.ProductPriceSummary, 0)
	err := r.db.WithContext(ctx).
		Table("products").
		Select("products.id AS product_id, products.name, products.launch_price, products.image_key, MAX(product_requests.desired_price) AS top_desired_price").
		Joins("JOIN product_requests ON product_requests.product_id = products.id").
		Group("products.id, products.name, products.launch_price, products.image_key").
		Order("products.id asc").
		Scan(&summaries).Error
	if err != nil {
		observability.RecordRepositoryOperation(ctx, "product", "list_price_summaries", "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(ctx, "product", "list_price_summaries", "success")
	return summaries, nil
}
