package audit

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/lumbung-pos/lumbung/internal/shared"
)

type stubTimelineRepo struct {
	rows       []TimelineRow
	lastFilter TimelineFilters
	lastOffset int
	lastLimit  int
}

func (s *stubTimelineRepo) TimelineWindow(_ context.Context, f TimelineFilters, offset, limit int) ([]TimelineRow, error) {
	s.lastFilter, s.lastOffset, s.lastLimit = f, offset, limit
	if offset >= len(s.rows) {
		return nil, nil
	}
	end := offset + limit
	if end > len(s.rows) {
		end = len(s.rows)
	}
	return s.rows[offset:end], nil
}

func (s *stubTimelineRepo) TimelineAll(_ context.Context, f TimelineFilters, max int) ([]TimelineRow, error) {
	s.lastFilter, s.lastLimit = f, max
	return s.rows, nil
}

func sampleRows(n int) []TimelineRow {
	rows := make([]TimelineRow, n)
	base := time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)
	for i := range rows {
		rows[i] = TimelineRow{ID: int64(n - i), At: base.Add(-time.Duration(i) * time.Hour), Action: "sale.checkout", Entity: "sale", EntityID: "1"}
	}
	return rows
}

func TestServiceTimelinePaging(t *testing.T) {
	repo := &stubTimelineRepo{rows: sampleRows(3)}
	svc := NewService(repo)

	result, err := svc.Timeline(context.Background(), TimelineFilters{OrganizationID: 1, Page: 1, PageSize: 2})
	require.NoError(t, err)
	require.Len(t, result.Rows, 2)
	require.True(t, result.Paging.HasNext)
	require.Equal(t, 2, result.Paging.NextPage)
	require.Equal(t, 3, repo.lastLimit)
	require.Zero(t, repo.lastOffset)

	result, err = svc.Timeline(context.Background(), TimelineFilters{OrganizationID: 1, Page: 2, PageSize: 2})
	require.NoError(t, err)
	require.Len(t, result.Rows, 1)
	require.False(t, result.Paging.HasNext)
	require.Equal(t, 1, result.Paging.PrevPage)
	require.Equal(t, 2, repo.lastOffset)
}

func TestServiceTimelineClampsPageSize(t *testing.T) {
	repo := &stubTimelineRepo{}
	result, err := NewService(repo).Timeline(context.Background(), TimelineFilters{PageSize: 500})
	require.NoError(t, err)
	require.Equal(t, MaxPageSize, result.Paging.PageSize)
	require.Equal(t, MaxPageSize+1, repo.lastLimit)
	require.NotNil(t, result.Rows)
}

func TestServiceRejectsInvalidRange(t *testing.T) {
	svc := NewService(&stubTimelineRepo{})
	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	_, err := svc.Timeline(context.Background(), TimelineFilters{From: from, To: from.AddDate(0, 0, -1)})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.Export(context.Background(), TimelineFilters{From: from, To: from.AddDate(0, 6, 0)})
	require.ErrorIs(t, err, ErrInvalidRange)
}

func TestServiceExportUsesLimit(t *testing.T) {
	repo := &stubTimelineRepo{rows: sampleRows(2)}
	rows, err := NewService(repo).Export(context.Background(), TimelineFilters{OrganizationID: 4})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, ExportLimit, repo.lastLimit)
	require.EqualValues(t, 4, repo.lastFilter.OrganizationID)
}

func TestWriteCSV(t *testing.T) {
	rows := []TimelineRow{{
		ID:       9,
		At:       time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC),
		ActorID:  3,
		Action:   "purchase_order.receive",
		Entity:   "purchase_order",
		EntityID: "12",
		Meta:     json.RawMessage(`{"number":"PO-20260310-ABC123"}`),
	}}
	data, err := WriteCSV(rows)
	require.NoError(t, err)

	records, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	require.Equal(t, csvHeader, records[0])
	require.Equal(t, []string{"9", "2026-03-10T10:00:00Z", "3", "purchase_order.receive", "purchase_order", "12", `{"number":"PO-20260310-ABC123"}`}, records[1])
}
