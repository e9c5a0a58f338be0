package service

import (
	"context"

	"github.com/sandeepkv93/crowdprice-backend/internal/domain"
	"github.com/sandeepkv93/crowdprice-backend/internal/repository"
)

//go:generate mockgen -source=interfaces.go -destination=gomock/mock_interfaces.go -package=servicegomock

type UserService interface {
	Signup(ctx context.Context, input SignupInput) (*domain.User, error)
	Signin(ctx context.Context, input SigninInput) (*SigninResult, error)
	GetByID(ctx context.Context, id uint) (*domain.User, error)
}

type ProductService interface {
	Create(ctx context.Context, input CreateProductInput) (*domain.Product, error)
	GetByID(ctx context.Context, id uint) (*domain.Product, error)
	ListPaged(ctx context.Context, req repository.PageRequest) (repository.PageResult[domain.Product], error)
	Search(ctx context.Context, query string) ([]domain.Product, error)
	AttachImage(ctx context.Context, input ProductImageInput) (*ProductImageResult, error)
}

type PriceService interface {
	SubmitDesiredPrice(ctx context.Context, input DesiredPriceInput) (*DesiredPriceResult, error)
	Aggregate(ctx context.Context, productID uint) (*PriceAggregation, error)
	Rankings(ctx context.Context, limit int) (*Rankings, error)
}

type PostService interface {
	Create(ctx context.Context, input CreatePostInput) (*domain.Post, error)
	ListByProduct(ctx context.Context, productID uint) ([]domain.Post, error)
	React(ctx context.Context, postID, userID uint, kind domain.ReactionKind) (*domain.Post, error)
}
