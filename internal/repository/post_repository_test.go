package repository

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/sandeepkv93/crowdprice-backend/internal/domain"
)

func TestPostRepositoryCreateAndListOrderedByLikes(t *testing.T) {
	db := newRepositoryDBForTest(t)
	repo := NewPostRepository(db)
	ctx := context.Background()
	p := mustCreateProduct(t, db, "Tablet", 329)
	u := mustCreateUser(t, db, "writer@example.com")

	low := &domain.Post{ProductID: p.ID, UserID: u.ID, TextContent: "meh"}
	high := &domain.Post{ProductID: p.ID, UserID: u.ID, TextContent: "great value"}
	for _, post := range []*domain.Post{low, high} {
		if err := repo.Create(ctx, post); err != nil {
			t.Fatalf("create post: %v", err)
		}
	}
	if _, err := repo.Increment(ctx, high.ID, domain.ReactionLike); err != nil {
		t.Fatalf("like: %v", err)
	}

	posts, err := repo.ListByProduct(ctx, p.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(posts) != 2 || posts[0].ID != high.ID {
		t.Fatalf("expected most liked first, got %+v", posts)
	}
	if posts[0].User == nil || posts[0].User.Email != "writer@example.com" {
		t.Fatalf("expected author preloaded, got %+v", posts[0].User)
	}

	none, err := repo.ListByProduct(ctx, 999)
	if err != nil {
		t.Fatalf("list unknown product: %v", err)
	}
	if none == nil || len(none) != 0 {
		t.Fatalf("expected empty list, got %#v", none)
	}
}

func TestPostRepositoryLikeAndDislikeAreIndependent(t *testing.T) {
	db := newRepositoryDBForTest(t)
	repo := NewPostRepository(db)
	ctx := context.Background()
	p := mustCreateProduct(t, db, "Watch", 399)
	u := mustCreateUser(t, db, "fan@example.com")
	post := &domain.Post{ProductID: p.ID, UserID: u.ID, TextContent: "nice"}
	if err := repo.Create(ctx, post); err != nil {
		t.Fatalf("create: %v", err)
	}

	liked, err := repo.Increment(ctx, post.ID, domain.ReactionLike)
	if err != nil {
		t.Fatalf("like: %v", err)
	}
	if liked.Likes != 1 || liked.Dislikes != 0 {
		t.Fatalf("unexpected counters after like: %+v", liked)
	}
	disliked, err := repo.Increment(ctx, post.ID, domain.ReactionDislike)
	if err != nil {
		t.Fatalf("dislike: %v", err)
	}
	if disliked.Likes != 1 || disliked.Dislikes != 1 {
		t.Fatalf("unexpected counters after dislike: %+v", disliked)
	}
}

func TestPostRepositoryIncrementErrors(t *testing.T) {
	db := newRepositoryDBForTest(t)
	repo := NewPostRepository(db)
	ctx := context.Background()

	if _, err := repo.Increment(ctx, 999, domain.ReactionLike); !errors.Is(err, ErrPostNotFound) {
		t.Fatalf("expected ErrPostNotFound, got %v", err)
	}
	if _, err := repo.Increment(ctx, 1, domain.ReactionKind("love")); !errors.Is(err, ErrUnknownReactionKind) {
		t.Fatalf("expected ErrUnknownReactionKind, got %v", err)
	}
	if _, err := repo.IncrementOnce(ctx, 999, 1, domain.ReactionLike); !errors.Is(err, ErrPostNotFound) {
		t.Fatalf("expected ErrPostNotFound for dedup path, got %v", err)
	}
}

func TestPostRepositoryConcurrentLikesAreNotLost(t *testing.T) {
	db := newRepositoryDBForTest(t)
	repo := NewPostRepository(db)
	ctx := context.Background()
	p := mustCreateProduct(t, db, "Drone", 799)
	u := mustCreateUser(t, db, "crowd@example.com")
	serializeConnections(t, db)
	post := &domain.Post{ProductID: p.ID, UserID: u.ID, TextContent: "pricey"}
	if err := repo.Create(ctx, post); err != nil {
		t.Fatalf("create: %v", err)
	}

	const n = 10
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = repo.Increment(ctx, post.ID, domain.ReactionLike)
		}()
	}
	wg.Wait()

	loaded, err := repo.FindByID(ctx, post.ID)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if loaded.Likes != n {
		t.Fatalf("expected %d likes, got %d", n, loaded.Likes)
	}
}

func TestPostRepositoryIncrementOnceDeduplicatesPerUserAndKind(t *testing.T) {
	db := newRepositoryDBForTest(t)
	repo := NewPostRepository(db)
	ctx := context.Background()
	p := mustCreateProduct(t, db, "Speaker", 99)
	author := mustCreateUser(t, db, "author@example.com")
	voter := mustCreateUser(t, db, "voter@example.com")
	post := &domain.Post{ProductID: p.ID, UserID: author.ID, TextContent: "loud"}
	if err := repo.Create(ctx, post); err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := repo.IncrementOnce(ctx, post.ID, voter.ID, domain.ReactionLike); err != nil {
		t.Fatalf("first like: %v", err)
	}
	if _, err := repo.IncrementOnce(ctx, post.ID, voter.ID, domain.ReactionLike); !errors.Is(err, ErrReactionExists) {
		t.Fatalf("expected ErrReactionExists, got %v", err)
	}
	updated, err := repo.IncrementOnce(ctx, post.ID, voter.ID, domain.ReactionDislike)
	if err != nil {
		t.Fatalf("dislike: %v", err)
	}
	if updated.Likes != 1 || updated.Dislikes != 1 {
		t.Fatalf("unexpected counters: %+v", updated)
	}
}
