// Package pagination converts page numbers to the limit/offset windows the
// commerce API pages by.
package pagination

// Page size bounds.
const (
	DefaultPerPage = 20
	MaxPerPage     = 100
)

// Params selects one page of a listing. Page is 1-based.
type Params struct {
	Page    int `json:"page"`
	PerPage int `json:"per_page"`
}

// DefaultParams returns the first page at the default size.
func DefaultParams() Params {
	return Params{Page: 1, PerPage: DefaultPerPage}
}

// Normalize clamps out-of-range values to the defaults and bounds.
func (p Params) Normalize() Params {
	if p.Page < 1 {
		p.Page = 1
	}
	switch {
	case p.PerPage <= 0:
		p.PerPage = DefaultPerPage
	case p.PerPage > MaxPerPage:
		p.PerPage = MaxPerPage
	}
	return p
}

// Limit is the number of records to request.
func (p Params) Limit() int { return p.PerPage }

// Offset is the number of records to skip.
func (p Params) Offset() int { return (p.Page - 1) * p.PerPage }

// Result is one page of a listing together with its position in the whole.
type Result[T any] struct {
	Data       []T  `json:"data"`
	TotalCount int  `json:"total_count"`
	Page       int  `json:"page"`
	PerPage    int  `json:"per_page"`
	TotalPages int  `json:"total_pages"`
	HasNext    bool `json:"has_next"`
	HasPrev    bool `json:"has_prev"`
}

// NewResult wraps data fetched with p. A nil slice becomes empty so the
// listing always encodes as a JSON array.
func NewResult[T any](data []T, totalCount int, p Params) Result[T] {
	if data == nil {
		data = []T{}
	}
	pages := 0
	if p.PerPage > 0 {
		pages = (totalCount + p.PerPage - 1) / p.PerPage
	}
	return Result[T]{
		Data:       data,
		TotalCount: totalCount,
		Page:       p.Page,
		PerPage:    p.PerPage,
		TotalPages: pages,
		HasNext:    p.Page < pages,
		HasPrev:    p.Page > 1,
	}
}
