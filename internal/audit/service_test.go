package audit

import (
	"context"
	"encoding/csv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marketai/marketai-admin/internal/platform/httpx"
)

type stubTimelineRepo struct {
	rows []TimelineRow
	last WindowParams
}

func (s *stubTimelineRepo) TimelineWindow(ctx context.Context, arg WindowParams) ([]TimelineRow, error) {
	s.last = arg
	start := int(arg.OffsetRows)
	if start > len(s.rows) {
		return nil, nil
	}
	end := start + int(arg.LimitRows)
	if end > len(s.rows) {
		end = len(s.rows)
	}
	return s.rows[start:end], nil
}

func sampleRows(n int) []TimelineRow {
	rows := make([]TimelineRow, n)
	base := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	for i := range rows {
		rows[i] = TimelineRow{
			ID:       int64(i + 1),
			At:       base.Add(-time.Duration(i) * time.Hour),
			ActorID:  1,
			Action:   "user.role_changed",
			Entity:   "user",
			EntityID: "42",
		}
	}
	return rows
}

func TestServiceTimelinePaging(t *testing.T) {
	repo := &stubTimelineRepo{rows: sampleRows(25)}
	svc := NewService(repo)

	res, err := svc.Timeline(context.Background(), TimelineFilters{Page: 1, PageSize: 10})
	require.NoError(t, err)
	assert.Len(t, res.Rows, 10)
	assert.True(t, res.Paging.HasNext)
	assert.Equal(t, 2, res.Paging.NextPage)
	assert.Equal(t, int32(11), repo.last.LimitRows)

	res, err = svc.Timeline(context.Background(), TimelineFilters{Page: 3, PageSize: 10})
	require.NoError(t, err)
	assert.Len(t, res.Rows, 5)
	assert.False(t, res.Paging.HasNext)
	assert.Equal(t, 2, res.Paging.PrevPage)
	assert.Equal(t, int32(20), repo.last.OffsetRows)
}

func TestServiceTimelineClampsPageSize(t *testing.T) {
	repo := &stubTimelineRepo{}
	res, err := NewService(repo).Timeline(context.Background(), TimelineFilters{PageSize: 500})
	require.NoError(t, err)
	assert.Equal(t, maxPageSize, res.Paging.PageSize)
	assert.Equal(t, 1, res.Paging.Page)
	assert.NotNil(t, res.Rows)
}

func TestWindowParamsFilters(t *testing.T) {
	day := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	params := windowParams(TimelineFilters{
		From:    day,
		To:      day,
		ActorID: 7,
		Action:  "  user.created ",
	})
	assert.True(t, params.FromAt.Valid)
	assert.True(t, params.ToAt.Time.Equal(day.AddDate(0, 0, 1)))
	assert.Equal(t, int64(7), params.ActorID.Int64)
	assert.Equal(t, "user.created", params.Action.String)
	assert.False(t, params.Entity.Valid)
	assert.False(t, params.EntityID.Valid)

	empty := windowParams(TimelineFilters{})
	assert.False(t, empty.FromAt.Valid)
	assert.False(t, empty.ToAt.Valid)
	assert.False(t, empty.ActorID.Valid)
}

func TestServiceExportCapsRows(t *testing.T) {
	repo := &stubTimelineRepo{rows: sampleRows(3)}
	rows, err := NewService(repo).Export(context.Background(), TimelineFilters{})
	require.NoError(t, err)
	assert.Len(t, rows, 3)
	assert.Equal(t, int32(MaxExportRows), repo.last.LimitRows)
}

func TestWriteCSV(t *testing.T) {
	rows := sampleRows(2)
	rows[0].Meta = map[string]any{"from": "executor", "to": "employee"}

	out, err := WriteCSV(rows)
	require.NoError(t, err)

	records, err := csv.NewReader(strings.NewReader(string(out))).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, csvHeader, records[0])
	assert.Equal(t, "2026-05-01T09:00:00Z", records[1][1])
	assert.JSONEq(t, `{"from":"executor","to":"employee"}`, records[1][6])
	assert.Empty(t, records[2][6])
}

func TestServiceTimelineRejectsOverflowingPage(t *testing.T) {
	repo := &stubTimelineRepo{rows: sampleRows(3)}
	svc := NewService(repo)
	ctx := context.Background()

	res, err := svc.Timeline(ctx, TimelineFilters{Page: MaxPage, PageSize: maxPageSize})
	require.NoError(t, err)
	assert.Empty(t, res.Rows)
	assert.Equal(t, int32(2147483600), repo.last.OffsetRows)

	for _, f := range []TimelineFilters{
		{Page: MaxPage + 1, PageSize: maxPageSize},
		{Page: 50_000_000, PageSize: 50},
		{Page: 100_000_000, PageSize: 50},
		{Page: 300_000_000, PageSize: 10},
	} {
		repo.last = WindowParams{}
		_, err := svc.Timeline(ctx, f)
		assert.ErrorIs(t, err, ErrPageOutOfRange, "page %d", f.Page)
		assert.ErrorIs(t, err, httpx.ErrValidation, "page %d", f.Page)
		assert.Zero(t, repo.last.OffsetRows, "repository must not be queried for page %d", f.Page)
	}
}
