package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/sandeepkv93/crowdprice-backend/internal/domain"
	"github.com/sandeepkv93/crowdprice-backend/internal/observability"
)

var (
	ErrPostNotFound        = errors.New("post not found")
	ErrReactionExists      = errors.New("reaction already recorded")
	ErrUnknownReactionKind = errors.New("unknown reaction kind")
)

type PostRepository interface {
	Create(ctx context.Context, post *domain.Post) error
	FindByID(ctx context.Context, id uint) (*domain.Post, error)
	ListByProduct(ctx context.Context, productID uint) ([]domain.Post, error)
	// Increment adds one to the like or dislike counter with a single UPDATE.
	Increment(ctx context.Context, postID uint, kind domain.ReactionKind) (*domain.Post, error)
	// IncrementOnce is Increment gated on a (post, user, kind) reaction row.
	IncrementOnce(ctx context.Context, postID, userID uint, kind domain.ReactionKind) (*domain.Post, error)
}

type GormPostRepository struct{ db *gorm.DB }

func NewPostRepository(db *gorm.DB) PostRepository {
	return &GormPostRepository{db: db}
}

func (r *GormPostRepository) Create(ctx context.Context, post *domain.Post) error {
	if err := r.db.WithContext(ctx).Omit("User").Create(post).Error; err != nil {
		observability.RecordRepositoryOperation(ctx, "post", "create", "error")
		return err
	}
	observability.RecordRepositoryOperation(ctx, "post", "create", "success")
	return nil
}

func (r *GormPostRepository) FindByID(ctx context.Context, id uint) (*domain.Post, error) {
	post, err := findPost(r.db.WithContext(ctx), id)
	if err != nil {
		if errors.Is(err, ErrPostNotFound) {
			observability.RecordRepositoryOperation(ctx, "post", "find_by_id", "not_found")
		} else {
			observability.RecordRepositoryOperation(ctx, "post", "find_by_id", "error")
		}
		return nil, err
	}
	observability.RecordRepositoryOperation(ctx, "post", "find_by_id", "success")
	return post, nil
}

// ListByProduct returns posts with their authors, most liked first.
func (r *GormPostRepository) ListByProduct(ctx context.Context, productID uint) ([]domain.Post, error) {
	posts := make([]domain.Post, 0)
	err := r.db.WithContext(ctx).
		Preload("User").
		Where("product_id = ?", productID).
		Order("likes desc").
		Order("created_at desc").
		Find(&posts).Error
	if err != nil {
		observability.RecordRepositoryOperation(ctx, "post", "list_by_product", "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(ctx, "post", "list_by_product", "success")
	return posts, nil
}

func (r *GormPostRepository) Increment(ctx context.Context, postID uint, kind domain.ReactionKind) (*domain.Post, error) {
	column, err := counterColumn(kind)
	if err != nil {
		return nil, err
	}
	db := r.db.WithContext(ctx)
	if err := incrementCounter(db, postID, column); err != nil {
		r.recordIncrement(ctx, "increment", err)
		return nil, err
	}
	post, err := findPost(db, postID)
	r.recordIncrement(ctx, "increment", err)
	return post, err
}

func (r *GormPostRepository) IncrementOnce(ctx context.Context, postID, userID uint, kind domain.ReactionKind) (*domain.Post, error) {
	column, err := counterColumn(kind)
	if err != nil {
		return nil, err
	}
	var post *domain.Post
	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var exists int64
		if err := tx.Model(&domain.Post{}).Where("id = ?", postID).Count(&exists).Error; err != nil {
			return err
		}
		if exists == 0 {
			return ErrPostNotFound
		}
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).
			Create(&domain.PostReaction{PostID: postID, UserID: userID, Kind: kind})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrReactionExists
		}
		if err := incrementCounter(tx, postID, column); err != nil {
			return err
		}
		post, err = findPost(tx, postID)
		return err
	})
	r.recordIncrement(ctx, "increment_once", err)
	if err != nil {
		return nil, err
	}
	return post, nil
}

func (r *GormPostRepository) recordIncrement(ctx context.Context, op string, err error) {
	switch {
	case err == nil:
		observability.RecordRepositoryOperation(ctx, "post", op, "success")
	case errors.Is(err, ErrPostNotFound):
		observability.RecordRepositoryOperation(ctx, "post", op, "not_found")
	case errors.Is(err, ErrReactionExists):
		observability.RecordRepositoryOperation(ctx, "post", op, "conflict")
	default:
		observability.RecordRepositoryOperation(ctx, "post", op, "error")
	}
}

func counterColumn(kind domain.ReactionKind) (string, error) {
	switch kind {
	case domain.ReactionLike:
		return "likes", nil
	case domain.ReactionDislike:
		return "dislikes", nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownReactionKind, kind)
	}
}

// incrementCounter bumps column in place so concurrent reactions never lose updates.
func incrementCounter(db *gorm.DB, postID uint, column string) error {
	res := db.Model(&domain.Post{}).Where("id = ?", postID).UpdateColumn(column, gorm.Expr(column+" + ?", 1))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrPostNotFound
	}
	return nil
}

func findPost(db *gorm.DB, id uint) (*domain.Post, error) {
	var post domain.Post
	if err := db.Preload("User").First(&post, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPostNotFound
		}
		return nil, err
	}
	return &post, nil
}
