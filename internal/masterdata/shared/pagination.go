package shared

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/lumbung-pos/lumbung/internal/platform/httpx"
	platform "github.com/lumbung-pos/lumbung/internal/shared"
)

// ListFilters represents standard list page filters
type ListFilters struct {
	OrganizationID int64
	Page           int
	Limit          int
	Search         string
	SortBy         string
	SortDir        string
	IsActive       *bool

	// Entity specific filters
	CategoryID *int64
}

// Normalize clamps paging values.
func (f ListFilters) Normalize() ListFilters {
	if f.Page < 1 {
		f.Page = DefaultPage
	}
	if f.Limit < 1 {
		f.Limit = DefaultLimit
	}
	if f.Limit > MaxLimit {
		f.Limit = MaxLimit
	}
	if f.SortDir != SortDesc {
		f.SortDir = SortAsc
	}
	f.Search = strings.TrimSpace(f.Search)
	return f
}

// Offset returns the row offset for the current page.
func (f ListFilters) Offset() int {
	n := f.Normalize()
	return (n.Page - 1) * n.Limit
}

// OrderBy resolves a whitelisted sort column into an ORDER BY fragment.
func (f ListFilters) OrderBy(allowed map[string]string, fallback string) string {
	column, ok := allowed[f.SortBy]
	if !ok {
		column = fallback
	}
	dir := "ASC"
	if f.SortDir == SortDesc {
		dir = "DESC"
	}
	return fmt.Sprintf("%s %s, id %s", column, dir, dir)
}

// SearchPattern returns an ILIKE pattern for the search term.
func (f ListFilters) SearchPattern() string {
	return "%" + strings.TrimSpace(f.Search) + "%"
}

// Page wraps a listing response.
type Page[T any] struct {
	Data  []T `json:"data"`
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
}

// NewPage builds the response envelope for a normalized filter.
func NewPage[T any](items []T, f ListFilters, total int) Page[T] {
	if items == nil {
		items = []T{}
	}
	n := f.Normalize()
	return Page[T]{Data: items, Page: n.Page, Limit: n.Limit, Total: total}
}

// FiltersFromRequest reads the standard list query parameters.
func FiltersFromRequest(r *http.Request) ListFilters {
	q := r.URL.Query()
	f := ListFilters{
		OrganizationID: platform.OrganizationID(r.Context()),
		Page:           httpx.QueryInt(r, "page", DefaultPage),
		Limit:          httpx.QueryInt(r, "limit", DefaultLimit),
		Search:         q.Get("search"),
		SortBy:         q.Get("sort"),
		SortDir:        q.Get("dir"),
		IsActive:       httpx.QueryBool(r, "is_active"),
	}
	if id, err := httpx.QueryInt64(r, "category_id"); err == nil && id > 0 {
		f.CategoryID = &id
	}
	return f.Normalize()
}
