package repository

import "gorm.io/gorm"

const (
	DefaultPage     = 1
	DefaultPageSize = 20
	MaxPageSize     = 100
)

type PageRequest struct {
	Page     int
	PageSize int
}

// PageResult is one page of rows plus the totals needed to render pagers.
type PageResult[T any] struct {
	Items      []T
	Page       int
	PageSize   int
	Total      int64
	TotalPages int
}

// clamp fills zero values with defaults and caps the page size.
func (p PageRequest) clamp() PageRequest {
	out := PageRequest{Page: max(p.Page, DefaultPage), PageSize: p.PageSize}
	switch {
	case out.PageSize < 1:
		out.PageSize = DefaultPageSize
	case out.PageSize > MaxPageSize:
		out.PageSize = MaxPageSize
	}
	return out
}

func (p PageRequest) scope(db *gorm.DB) *gorm.DB {
	return db.Offset((p.Page - 1) * p.PageSize).Limit(p.PageSize)
}

// paginate counts the rows matched by query and loads the requested window in
// the given order. Items is never nil.
func paginate[T any](query *gorm.DB, req PageRequest, order string) (PageResult[T], error) {
	req = req.clamp()
	res := PageResult[T]{Items: make([]T, 0), Page: req.Page, PageSize: req.PageSize}
	if err := query.Session(&gorm.Session{}).Count(&res.Total).Error; err != nil {
		return PageResult[T]{}, err
	}
	if res.Total > 0 {
		if err := query.Session(&gorm.Session{}).Order(order).Scopes(req.scope).Find(&res.Items).Error; err != nil {
			return PageResult[T]{}, err
		}
	}
	res.TotalPages = int((res.Total + int64(req.PageSize) - 1) / int64(req.PageSize))
	return res, nil
}
