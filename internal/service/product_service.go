package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/sandeepkv93/crowdprice-backend/internal/domain"
	"github.com/sandeepkv93/crowdprice-backend/internal/observability"
	"github.com/sandeepkv93/crowdprice-backend/internal/repository"
)

const (
	maxProductNameLength = 120
	searchResultLimit    = 50
)

type CreateProductInput struct {
	Name        string
	LaunchPrice float64
}

type ProductImageInput struct {
	ProductID uint
	File      io.Reader
	Size      int64
}

type ProductImageResult struct {
	Product  *domain.Product
	ImageURL string
}

type ProductServiceImpl struct {
	repo   repository.ProductRepository
	images ProductImageStorage
	logger *slog.Logger
}

// NewProductService accepts a nil images storage; image operations then
// fail with ErrStorageDisabled.
func NewProductService(repo repository.ProductRepository, images ProductImageStorage, logger *slog.Logger) *ProductServiceImpl {
	if logger == nil {
		logger = slog.Default()
	}
	return &ProductServiceImpl{repo: repo, images: images, logger: logger}
}

func (s *ProductServiceImpl) Create(ctx context.Context, input CreateProductInput) (*domain.Product, error) {
	start := time.Now()
	outcome := "success"
	defer func() { observability.RecordProductOperation(ctx, "create", outcome, time.Since(start)) }()

	name := strings.TrimSpace(input.Name)
	verr := &ValidationError{}
	switch {
	case name == "":
		verr.add("name", "Product name is required")
	case utf8.RuneCountInString(name) > maxProductNameLength:
		verr.add("name", "name must be at most 120 characters")
	}
	if input.LaunchPrice < 0 || math.IsNaN(input.LaunchPrice) || math.IsInf(input.LaunchPrice, 0) {
		verr.add("launchPrice", "launchPrice must be a non-negative number")
	}
	if err := verr.err(); err != nil {
		outcome = "bad_request"
		return nil, err
	}

	product := &domain.Product{Name: name, LaunchPrice: input.LaunchPrice}
	if err := s.repo.Create(ctx, product); err != nil {
		outcome = "error"
		return nil, err
	}
	return product, nil
}

func (s *ProductServiceImpl) GetByID(ctx context.Context, id uint) (*domain.Product, error) {
	start := time.Now()
	outcome := "success"
	defer func() { observability.RecordProductOperation(ctx, "get", outcome, time.Since(start)) }()

	product, err := s.repo.FindByID(ctx, id)
	if err != nil {
		outcome = errorOutcome(err, repository.ErrProductNotFound)
		return nil, err
	}
	return product, nil
}

func (s *ProductServiceImpl) ListPaged(ctx context.Context, req repository.PageRequest) (repository.PageResult[domain.Product], error) {
	start := time.Now()
	outcome := "success"
	defer func() { observability.RecordProductOperation(ctx, "list", outcome, time.Since(start)) }()

	res, err := s.repo.ListPaged(ctx, req)
	if err != nil {
		outcome = "error"
		return repository.PageResult[domain.Product]{}, err
	}
	return res, nil
}

func (s *ProductServiceImpl) Search(ctx context.Context, query string) ([]domain.Product, error) {
	start := time.Now()
	outcome := "success"
	defer func() { observability.RecordProductOperation(ctx, "search", outcome, time.Since(start)) }()

	query = strings.TrimSpace(query)
	if query == "" {
		outcome = "bad_request"
		return nil, fieldError("query", "Query parameter is required")
	}
	products, err := s.repo.SearchByName(ctx, query, searchResultLimit)
	if err != nil {
		outcome = "error"
		return nil, err
	}
	return products, nil
}

// AttachImage uploads a new image and points the product at it. The previous
// object, if any, is removed on a best-effort basis.
func (s *ProductServiceImpl) AttachImage(ctx context.Context, input ProductImageInput) (*ProductImageResult, error) {
	start := time.Now()
	outcome := "success"
	defer func() { observability.RecordProductOperation(ctx, "attach_image", outcome, time.Since(start)) }()

	if s.images == nil {
		outcome = "disabled"
		return nil, ErrStorageDisabled
	}
	product, err := s.repo.FindByID(ctx, input.ProductID)
	if err != nil {
		outcome = errorOutcome(err, repository.ErrProductNotFound)
		return nil, err
	}

	key, err := s.images.UploadProductImage(ctx, product.ID, input.File, input.Size)
	if err != nil {
		if errors.Is(err, ErrFileTooBig) || errors.Is(err, ErrInvalidFileType) {
			outcome = "bad_request"
		} else {
			outcome = "error"
		}
		return nil, err
	}
	if err := s.repo.UpdateImageKey(ctx, product.ID, key); err != nil {
		outcome = "error"
		if delErr := s.images.DeleteProductImage(ctx, product.ID, key); delErr != nil {
			s.logger.WarnContext(ctx, "orphaned product image", "product_id", product.ID, "key", key, "error", delErr)
		}
		return nil, err
	}
	if previous := product.ImageKey; previous != "" && previous != key {
		if err := s.images.DeleteProductImage(ctx, product.ID, previous); err != nil {
			s.logger.WarnContext(ctx, "delete previous product image failed", "product_id", product.ID, "key", previous, "error", err)
		}
	}
	product.ImageKey = key

	imageURL, err := s.images.GenerateImageURL(ctx, key)
	if err != nil {
		outcome = "error"
		return nil, err
	}
	return &ProductImageResult{Product: product, ImageURL: imageURL}, nil
}

func errorOutcome(err, notFound error) string {
	if errors.Is(err, notFound) {
		return "not_found"
	}
	return "error"
}
