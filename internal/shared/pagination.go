package shared

import (
	"net/url"
	"strconv"
)

// Page size limits for list endpoints.
const (
	DefaultPerPage = 50
	MaxPerPage     = 500
)

// Pagination contains metadata for paginated listings.
type Pagination struct {
	Page       int `json:"page"`
	PerPage    int `json:"perPage"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

// Paginate cuts the page named by the page and perPage query parameters out
// of items. Out-of-range pages yield an empty slice.
func Paginate[T any](items []T, q url.Values) ([]T, Pagination) {
	page, _ := strconv.Atoi(q.Get("page"))
	perPage, _ := strconv.Atoi(q.Get("perPage"))
	p := NewPagination(page, perPage, len(items))
	start := min((p.Page-1)*p.PerPage, p.Total)
	end := min(start+p.PerPage, p.Total)
	return items[start:end], p
}

// NewPagination clamps page and perPage and computes the page count.
func NewPagination(page, perPage, total int) Pagination {
	switch {
	case perPage <= 0:
		perPage = DefaultPerPage
	case perPage > MaxPerPage:
		perPage = MaxPerPage
	}
	return Pagination{
		Page:       max(page, 1),
		PerPage:    perPage,
		Total:      total,
		TotalPages: (total + perPage - 1) / perPage,
	}
}
