package audit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lumbung-pos/lumbung/internal/shared"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 50
	// ExportLimit membatasi jumlah baris satu file CSV.
	ExportLimit = 10000
	// MaxRange membatasi rentang filter tanggal.
	MaxRange = 90 * 24 * time.Hour
)

// ErrInvalidRange dikembalikan bila from > to atau rentang terlalu panjang.
var ErrInvalidRange = fmt.Errorf("audit: invalid date range: %w", shared.ErrValidation)

// Repository menyediakan akses baca audit_logs.
type Repository interface {
	TimelineWindow(ctx context.Context, f TimelineFilters, offset, limit int) ([]TimelineRow, error)
	TimelineAll(ctx context.Context, f TimelineFilters, max int) ([]TimelineRow, error)
}

// Service mengoordinasikan pengambilan data audit.
type Service struct {
	repo Repository
}

// NewService membuat service audit timeline baru.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Timeline mengambil data audit dengan paging. Baris tambahan dipakai untuk
// mendeteksi halaman berikutnya.
func (s *Service) Timeline(ctx context.Context, filters TimelineFilters) (Result, error) {
	if s.repo == nil {
		return Result{}, errors.New("audit: repository not configured")
	}
	if err := checkRange(filters); err != nil {
		return Result{}, err
	}
	pageSize := filters.PageSize
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	page := filters.Page
	if page <= 0 {
		page = 1
	}
	rows, err := s.repo.TimelineWindow(ctx, filters, (page-1)*pageSize, pageSize+1)
	if err != nil {
		return Result{}, err
	}
	hasNext := len(rows) > pageSize
	if hasNext {
		rows = rows[:pageSize]
	}
	paging := PagingInfo{Page: page, PageSize: pageSize, HasNext: hasNext}
	if page > 1 {
		paging.PrevPage = page - 1
	}
	if hasNext {
		paging.NextPage = page + 1
	}
	if rows == nil {
		rows = []TimelineRow{}
	}
	return Result{Rows: rows, Paging: paging}, nil
}

// Export mengambil seluruh data timeline tanpa paging, maksimal ExportLimit.
func (s *Service) Export(ctx context.Context, filters TimelineFilters) ([]TimelineRow, error) {
	if s.repo == nil {
		return nil, errors.New("audit: repository not configured")
	}
	if err := checkRange(filters); err != nil {
		return nil, err
	}
	return s.repo.TimelineAll(ctx, filters, ExportLimit)
}

func checkRange(f TimelineFilters) error {
	if f.From.IsZero() || f.To.IsZero() {
		return nil
	}
	if f.From.After(f.To) || f.To.Sub(f.From) > MaxRange {
		return ErrInvalidRange
	}
	return nil
}
