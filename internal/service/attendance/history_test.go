package attendance

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tutorias/attendance-desk/internal/domain/attendance"
	"github.com/tutorias/attendance-desk/internal/gateway/gatewaytest"
	"github.com/tutorias/attendance-desk/internal/pkg/cache"
)

func newTestViewer(gw attendance.Gateway, c cache.Cache) *HistoryViewer {
	return NewHistoryViewer(gw, HistoryOptions{Cache: c, TTL: time.Hour, Location: time.UTC})
}

func dayKeys(days []time.Time) []string {
	out := make([]string, 0, len(days))
	for _, d := range days {
		out = append(out, attendance.DateKey(d))
	}
	return out
}

func TestClassDaysOfMonth(t *testing.T) {
	h := newTestViewer(newFakeGateway(), nil)

	tests := []struct {
		name       string
		year       int
		monthIndex int
		want       []string
	}{
		{"january 2025", 2025, 0, []string{"2025-01-04", "2025-01-11", "2025-01-18", "2025-01-25"}},
		{"march 2025 has five", 2025, 2, []string{"2025-03-01", "2025-03-08", "2025-03-15", "2025-03-22", "2025-03-29"}},
		{"leap february", 2024, 1, []string{"2024-02-03", "2024-02-10", "2024-02-17", "2024-02-24"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			days := h.ClassDaysOfMonth(tt.year, tt.monthIndex)
			assert.Equal(t, tt.want, dayKeys(days))
			for _, d := range days {
				assert.Equal(t, time.Saturday, d.Weekday())
			}
		})
	}

	assert.Nil(t, h.ClassDaysOfMonth(2025, 12))
	assert.Nil(t, h.ClassDaysOfMonth(2025, -1))
}

func TestClassDaysOfMonth_MemoIsNotShared(t *testing.T) {
	h := newTestViewer(newFakeGateway(), nil)

	first := h.ClassDaysOfMonth(2025, 0)
	first[0] = time.Time{}

	assert.Equal(t, "2025-01-04", attendance.DateKey(h.ClassDaysOfMonth(2025, 0)[0]))
}

func TestClampYear(t *testing.T) {
	h := newTestViewer(newFakeGateway(), nil)
	assert.Equal(t, 2025, h.ClampYear(2019))
	assert.Equal(t, 2026, h.ClampYear(2026))
	assert.Equal(t, 2025, h.ClampYear(0))
	assert.Equal(t, 2025, h.ClampYear(-5))
}

func TestFetchMonthHistory_CachesUntilInvalidated(t *testing.T) {
	gw := newFakeGateway()
	gw.Seed(testSection, attendance.StudentAttendance{LinkID: "link-1", Date: "2025-01-04", Status: attendance.StatusAbsent})
	h := newTestViewer(gw, cache.NewMemory())
	ctx := context.Background()

	bucket, err := h.FetchMonthHistory(ctx, testSection, 1, 2025)
	require.NoError(t, err)
	status, ok := bucket.StatusOf("link-1", time.Date(2025, 1, 4, 0, 0, 0, 0, time.UTC))
	require.True(t, ok)
	assert.Equal(t, attendance.StatusAbsent, status)

	_, err = h.FetchMonthHistory(ctx, testSection, 1, 2025)
	require.NoError(t, err)
	assert.Equal(t, 1, gw.HistoryCalls)

	require.NoError(t, h.Invalidate(ctx, testSection))
	_, err = h.FetchMonthHistory(ctx, testSection, 1, 2025)
	require.NoError(t, err)
	assert.Equal(t, 2, gw.HistoryCalls)
}

func TestFetchMonthHistory_Validation(t *testing.T) {
	h := newTestViewer(newFakeGateway(), nil)

	_, err := h.FetchMonthHistory(context.Background(), "", 1, 2025)
	assert.ErrorIs(t, err, attendance.ErrSectionRequired)

	_, err = h.FetchMonthHistory(context.Background(), testSection, 13, 2025)
	assert.Error(t, err)
}

func TestMonthView(t *testing.T) {
	gw := newFakeGateway()
	gw.Seed(testSection,
		attendance.StudentAttendance{LinkID: "link-1", Date: "2025-01-04", Status: attendance.StatusAttended, Name: "Ana"},
		attendance.StudentAttendance{LinkID: "link-2", Date: "2025-01-11", Status: attendance.StatusExcused, Name: "Luis"},
		attendance.StudentAttendance{LinkID: "link-old", Date: "2025-01-18", Status: attendance.StatusAbsent, Name: "Zoe"},
		attendance.StudentAttendance{LinkID: "link-1", Date: "2025-02-01", Status: attendance.StatusAbsent, Name: "Ana"},
	)
	h := newTestViewer(gw, nil)

	view, err := h.MonthView(context.Background(), testSection, attendance.HistoryFilter{Month: 1, Year: 2025})
	require.NoError(t, err)

	assert.Equal(t, []string{"2025-01-04", "2025-01-11", "2025-01-18", "2025-01-25"}, view.ClassDays)
	require.Len(t, view.Rows, 4)
	assert.Equal(t, "link-old", view.Rows[3].LinkID)

	ana := view.Rows[0]
	assert.Equal(t, "Ana", ana.Name)
	require.Len(t, ana.Cells, 4)
	assert.True(t, ana.Cells[0].Recorded)
	assert.Equal(t, attendance.IconCheck, ana.Cells[0].Icon)
	assert.False(t, ana.Cells[1].Recorded)
	assert.Equal(t, attendance.IconNone, ana.Cells[1].Icon)

	luis := view.Rows[1]
	assert.Equal(t, attendance.IconTriangle, luis.Cells[1].Icon)

	rosa := view.Rows[2]
	for _, c := range rosa.Cells {
		assert.False(t, c.Recorded)
	}
}

func TestMonthView_ClampsYear(t *testing.T) {
	h := newTestViewer(newFakeGateway(), nil)

	for _, year := range []int{2020, 0, -5} {
		view, err := h.MonthView(context.Background(), testSection, attendance.HistoryFilter{Month: 1, Year: year})
		require.NoError(t, err, "year %d", year)
		assert.Equal(t, 2025, view.Year)
	}
}

// heldHistoryGateway reads the first month fetch and then holds it until
// release is closed.
type heldHistoryGateway struct {
	*gatewaytest.Fake
	once    sync.Once
	fetched chan struct{}
	release chan struct{}
}

func (g *heldHistoryGateway) FetchMonthHistory(ctx context.Context, sectionID string, month, year int) (attendance.HistoryBucket, error) {
	bucket, err := g.Fake.FetchMonthHistory(ctx, sectionID, month, year)
	held := false
	g.once.Do(func() { held = true })
	if held {
		close(g.fetched)
		<-g.release
	}
	return bucket, err
}

func TestFetchMonthHistory_InFlightFetchNotCachedAfterInvalidate(t *testing.T) {
	gw := &heldHistoryGateway{Fake: newFakeGateway(), fetched: make(chan struct{}), release: make(chan struct{})}
	gw.Seed(testSection, attendance.StudentAttendance{LinkID: "link-1", Date: "2025-01-04", Status: attendance.StatusExcused, Name: "Ana"})
	h := newTestViewer(gw, cache.NewMemory())
	ctx := context.Background()
	day := time.Date(2025, 1, 4, 0, 0, 0, 0, time.UTC)

	stale := make(chan attendance.HistoryBucket, 1)
	go func() {
		bucket, _ := h.FetchMonthHistory(ctx, testSection, 1, 2025)
		stale <- bucket
	}()
	<-gw.fetched

	e := newTestEditor(gw)
	_, err := e.LoadToday(ctx)
	require.NoError(t, err)
	require.NoError(t, e.SetStudentStatus("link-1", attendance.StatusAttended))
	_, err = e.Save(ctx)
	require.NoError(t, err)
	require.NoError(t, h.Invalidate(ctx, testSection))

	close(gw.release)
	old := <-stale
	status, _ := old.StatusOf("link-1", day)
	assert.Equal(t, attendance.StatusExcused, status)

	bucket, err := h.FetchMonthHistory(ctx, testSection, 1, 2025)
	require.NoError(t, err)
	status, ok := bucket.StatusOf("link-1", day)
	require.True(t, ok)
	assert.Equal(t, attendance.StatusAttended, status)
}
