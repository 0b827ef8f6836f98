package audit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeRepo struct {
	rows    []TimelineRow
	gotLim  int
	gotOff  int
	filters TimelineFilters
}

func (f *fakeRepo) TimelineWindow(ctx context.Context, filters TimelineFilters, limit, offset int) ([]TimelineRow, error) {
	f.filters = filters
	f.gotLim = limit
	f.gotOff = offset
	if len(f.rows) > limit {
		return f.rows[:limit], nil
	}
	return f.rows, nil
}

func makeRows(n int) []TimelineRow {
	rows := make([]TimelineRow, n)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := range rows {
		rows[i] = TimelineRow{At: base.Add(-time.Duration(i) * time.Minute), Action: "order:create", Entity: "order", EntityID: "1"}
	}
	return rows
}

func TestTimelineDefaultsAndPaging(t *testing.T) {
	repo := &fakeRepo{rows: makeRows(25)}
	service := NewService(repo)

	result, err := service.Timeline(context.Background(), TimelineFilters{})
	require.NoError(t, err)
	require.Equal(t, 21, repo.gotLim)
	require.Equal(t, 0, repo.gotOff)
	require.Len(t, result.Rows, 20)
	require.True(t, result.Paging.HasNext)
	require.Equal(t, 2, result.Paging.NextPage)
	require.Zero(t, result.Paging.PrevPage)
}

func TestTimelineSecondPage(t *testing.T) {
	repo := &fakeRepo{rows: makeRows(5)}
	service := NewService(repo)

	result, err := service.Timeline(context.Background(), TimelineFilters{Page: 2, PageSize: 10})
	require.NoError(t, err)
	require.Equal(t, 10, repo.gotOff)
	require.Len(t, result.Rows, 5)
	require.False(t, result.Paging.HasNext)
	require.Equal(t, 1, result.Paging.PrevPage)
}

func TestTimelineClampsPageSize(t *testing.T) {
	repo := &fakeRepo{rows: makeRows(0)}
	service := NewService(repo)

	_, err := service.Timeline(context.Background(), TimelineFilters{PageSize: 500})
	require.NoError(t, err)
	require.Equal(t, 51, repo.gotLim)
}

func TestExportCapsRows(t *testing.T) {
	repo := &fakeRepo{rows: makeRows(3)}
	service := NewService(repo)

	rows, err := service.Export(context.Background(), TimelineFilters{Entity: "order"})
	require.NoError(t, err)
	require.Len(t, rows, 3)
	require.Equal(t, exportCap, repo.gotLim)
	require.Equal(t, "order", repo.filters.Entity)
}
