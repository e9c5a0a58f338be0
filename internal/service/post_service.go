package service

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/sandeepkv93/crowdprice-backend/internal/domain"
	"github.com/sandeepkv93/crowdprice-backend/internal/observability"
	"github.com/sandeepkv93/crowdprice-backend/internal/repository"
)

const maxPostLength = 5000

type CreatePostInput struct {
	ProductID   uint
	UserID      uint
	TextContent string
}

type PostServiceImpl struct {
	posts         repository.PostRepository
	products      repository.ProductRepository
	dedupReaction bool
}

// NewPostService builds the post service. With dedupReaction set, each user
// can like and dislike a given post at most once.
func NewPostService(posts repository.PostRepository, products repository.ProductRepository, dedupReaction bool) *PostServiceImpl {
	return &PostServiceImpl{posts: posts, products: products, dedupReaction: dedupReaction}
}

func (s *PostServiceImpl) Create(ctx context.Context, input CreatePostInput) (*domain.Post, error) {
	outcome := "success"
	defer func() { observability.RecordPostOperation(ctx, "create", outcome) }()

	text := strings.TrimSpace(input.TextContent)
	switch {
	case text == "":
		outcome = "bad_request"
		return nil, fieldError("textContent", "Text content is required")
	case utf8.RuneCountInString(text) > maxPostLength:
		outcome = "bad_request"
		return nil, fieldError("textContent", "textContent must be at most 5000 characters")
	}
	if _, err := s.products.FindByID(ctx, input.ProductID); err != nil {
		outcome = errorOutcome(err, repository.ErrProductNotFound)
		return nil, err
	}

	post := &domain.Post{ProductID: input.ProductID, UserID: input.UserID, TextContent: text}
	if err := s.posts.Create(ctx, post); err != nil {
		outcome = "error"
		return nil, err
	}
	stored, err := s.posts.FindByID(ctx, post.ID)
	if err != nil {
		outcome = "error"
		return nil, err
	}
	return stored, nil
}

// ListByProduct returns an empty list for unknown products.
func (s *PostServiceImpl) ListByProduct(ctx context.Context, productID uint) ([]domain.Post, error) {
	outcome := "success"
	defer func() { observability.RecordPostOperation(ctx, "list", outcome) }()

	posts, err := s.posts.ListByProduct(ctx, productID)
	if err != nil {
		outcome = "error"
		return nil, err
	}
	return posts, nil
}

func (s *PostServiceImpl) React(ctx context.Context, postID, userID uint, kind domain.ReactionKind) (*domain.Post, error) {
	outcome := "success"
	defer func() { observability.RecordPostReaction(ctx, string(kind), outcome) }()

	var (
		post *domain.Post
		err  error
	)
	if s.dedupReaction {
		post, err = s.posts.IncrementOnce(ctx, postID, userID, kind)
	} else {
		post, err = s.posts.Increment(ctx, postID, kind)
	}
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrPostNotFound):
			outcome = "not_found"
		case errors.Is(err, repository.ErrReactionExists):
			outcome = "duplicate"
		case errors.Is(err, repository.ErrUnknownReactionKind):
			outcome = "bad_request"
		default:
			outcome = "error"
		}
		return nil, err
	}
	return post, nil
}
