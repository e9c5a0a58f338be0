package domain

import "time"

type Post struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	ProductID   uint      `gorm:"not null;index" json:"productId"`
	UserID      uint      `gorm:"not null;index" json:"userId"`
	TextContent string    `gorm:"type:text;not null" json:"textContent"`
	Likes       int64     `gorm:"not null;default:0" json:"likes"`
	Dislikes    int64     `gorm:"not null;default:0" json:"dislikes"`
	CreatedAt   time.Time `json:"createdAt"`
	User        *User     `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

type ReactionKind string

const (
	ReactionLike    ReactionKind = "like"
	ReactionDislike ReactionKind = "dislike"
)

// PostReaction records one reaction per (post, user, kind) when reaction
// de-duplication is enabled.
type PostReaction struct {
	ID        uint         `gorm:"primaryKey"`
	PostID    uint         `gorm:"not null;uniqueIndex:idx_post_reactions_post_user_kind,priority:1"`
	UserID    uint         `gorm:"not null;uniqueIndex:idx_post_reactions_post_user_kind,priority:2"`
	Kind      ReactionKind `gorm:"size:16;not null;uniqueIndex:idx_post_reactions_post_user_kind,priority:3"`
	CreatedAt time.Time
}
