package domain

import "time"

type Product struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"size:120;not null;index" json:"name"`
	LaunchPrice float64   `gorm:"not null;default:0" json:"launchPrice"`
	ImageKey    string    `gorm:"size:512" json:"imageKey,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// ProductRequest is a user's desired price for a product. At most one row
// exists per (product, user); resubmission overwrites DesiredPrice.
type ProductRequest struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	ProductID    uint      `gorm:"not null;uniqueIndex:idx_product_requests_product_user,priority:1" json:"productId"`
	UserID       uint      `gorm:"not null;uniqueIndex:idx_product_requests_product_user,priority:2;index" json:"userId"`
	DesiredPrice float64   `gorm:"not null" json:"desiredPrice"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// PriceBucket is one row of a desired price GROUP BY.
type PriceBucket struct {
	DesiredPrice float64
	Count        int64
}

// ProductPriceSummary pairs a product with the highest desired price submitted for it.
type ProductPriceSummary struct {
	ProductID       uint
	Name            string
	LaunchPrice     float64
	ImageKey        string
	TopDesiredPrice float64
}
