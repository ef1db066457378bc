package attendance

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tutorias/attendance-desk/internal/domain/attendance"
	"github.com/tutorias/attendance-desk/internal/gateway/gatewaytest"
	"github.com/tutorias/attendance-desk/internal/pkg/cache"
	"github.com/tutorias/attendance-desk/internal/pkg/metrics"
	"github.com/tutorias/attendance-desk/internal/pkg/sse"
)

type serviceFixture struct {
	gw      *gatewaytest.Fake
	hub     *sse.Hub
	metrics *metrics.Metrics
	now     time.Time
	svc     *AttendanceServiceImpl
}

func newServiceFixture() *serviceFixture {
	f := &serviceFixture{
		gw:      newFakeGateway(),
		hub:     sse.NewHub(),
		metrics: metrics.New(),
		now:     testNow,
	}
	clock := func() time.Time { return f.now }
	history := NewHistoryViewer(f.gw, HistoryOptions{Cache: cache.NewMemory(), TTL: time.Hour, Location: time.UTC})
	f.svc = NewAttendanceService(f.gw, history, ServiceOptions{
		Hub:         f.hub,
		Metrics:     f.metrics,
		Location:    time.UTC,
		Clock:       clock,
		IdleTimeout: time.Hour,
	})
	return f
}

func TestService_SessionsAreScopedPerOperator(t *testing.T) {
	f := newServiceFixture()
	ctx := context.Background()

	_, err := f.svc.LoadToday(ctx, "tutor-1", testSection)
	require.NoError(t, err)
	_, err = f.svc.LoadToday(ctx, "tutor-2", testSection)
	require.NoError(t, err)
	assert.Equal(t, 2, f.svc.SessionCount())
	assert.Equal(t, float64(2), testutil.ToFloat64(f.metrics.ActiveSessions))

	sheet, err := f.svc.SetStudentStatus(ctx, "tutor-1", testSection, attendance.SetStatusRequest{LinkID: "link-1", Status: "falto"})
	require.NoError(t, err)
	assert.True(t, sheet.Unsaved)
	require.Len(t, sheet.Students, 1)
	assert.Equal(t, attendance.StatusAbsent, sheet.Students[0].Status)

	other, err := f.svc.Draft(ctx, "tutor-2", testSection)
	require.NoError(t, err)
	assert.False(t, other.Unsaved)
	assert.Empty(t, other.Students)
}

func TestService_DraftRequiresLoad(t *testing.T) {
	f := newServiceFixture()

	_, err := f.svc.Draft(context.Background(), "tutor-1", testSection)
	assert.ErrorIs(t, err, attendance.ErrSessionNotLoaded)

	_, err = f.svc.Save(context.Background(), "tutor-1", testSection)
	assert.ErrorIs(t, err, attendance.ErrSessionNotLoaded)

	_, err = f.svc.LoadToday(context.Background(), "tutor-1", "")
	assert.ErrorIs(t, err, attendance.ErrSectionRequired)
}

func TestService_SetStudentStatusValidates(t *testing.T) {
	f := newServiceFixture()
	ctx := context.Background()
	_, err := f.svc.LoadToday(ctx, "tutor-1", testSection)
	require.NoError(t, err)

	_, err = f.svc.SetStudentStatus(ctx, "tutor-1", testSection, attendance.SetStatusRequest{LinkID: "link-1", Status: "late"})
	assert.Error(t, err)
}

func TestService_SavePublishesInvalidation(t *testing.T) {
	f := newServiceFixture()
	ctx := context.Background()

	events, unsubscribe := f.hub.Subscribe(testSection)
	defer unsubscribe()

	_, err := f.svc.LoadToday(ctx, "tutor-1", testSection)
	require.NoError(t, err)
	_, err = f.svc.MonthHistory(ctx, testSection, attendance.HistoryFilter{Month: 1, Year: 2025})
	require.NoError(t, err)

	_, err = f.svc.SetStudentStatus(ctx, "tutor-1", testSection, attendance.SetStatusRequest{LinkID: "link-1", Status: "attended"})
	require.NoError(t, err)
	resp, err := f.svc.Save(ctx, "tutor-1", testSection)
	require.NoError(t, err)
	assert.Equal(t, 1, resp.Submitted)
	assert.False(t, resp.Sheet.Unsaved)

	select {
	case ev := <-events:
		assert.Equal(t, EventInvalidated, ev.Event)
		assert.Equal(t, attendance.Invalidation{SectionID: testSection, Reason: "batch_saved", Date: "2025-01-04"}, ev.Data)
	default:
		t.Fatal("expected an invalidation event")
	}

	view, err := f.svc.MonthHistory(ctx, testSection, attendance.HistoryFilter{Month: 1, Year: 2025})
	require.NoError(t, err)
	assert.Equal(t, 2, f.gw.HistoryCalls)
	assert.True(t, view.Rows[0].Cells[0].Recorded)

	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.Saves.WithLabelValues(metrics.OutcomeOK)))
}

func TestService_SaveConflictCounted(t *testing.T) {
	f := newServiceFixture()
	f.gw.SubmitErr = attendance.ErrScheduleConflict
	ctx := context.Background()

	_, err := f.svc.LoadToday(ctx, "tutor-1", testSection)
	require.NoError(t, err)
	_, err = f.svc.SetStudentStatus(ctx, "tutor-1", testSection, attendance.SetStatusRequest{LinkID: "link-1", Status: "absent"})
	require.NoError(t, err)

	_, err = f.svc.Save(ctx, "tutor-1", testSection)
	assert.ErrorIs(t, err, attendance.ErrScheduleConflict)
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.Saves.WithLabelValues(metrics.OutcomeConflict)))

	_, err = f.svc.Revert(ctx, "tutor-1", testSection)
	require.NoError(t, err)
	_, err = f.svc.Save(ctx, "tutor-1", testSection)
	assert.ErrorIs(t, err, attendance.ErrNothingToSave)
	assert.Equal(t, float64(0), testutil.ToFloat64(f.metrics.Saves.WithLabelValues(metrics.OutcomeError)))
}

func TestService_AddGuardianRecordWithoutLoad(t *testing.T) {
	f := newServiceFixture()

	resp, err := f.svc.AddGuardianRecord(context.Background(), "tutor-1", testSection, attendance.GuardianRecordRequest{
		GuardianUserID: "tutor-1",
		Date:           "2025-01-04",
		Status:         "attended",
		CheckIn:        strPtr("09:00"),
		CheckOut:       strPtr("12:00"),
	})
	require.NoError(t, err)
	assert.Equal(t, "09:00:00", resp.CheckIn)
	assert.Equal(t, "12:00:00", resp.CheckOut)
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.GuardianRecords.WithLabelValues(metrics.OutcomeOK)))
}

func TestService_MySections(t *testing.T) {
	f := newServiceFixture()

	sections, err := f.svc.MySections(context.Background(), "tutor-1")
	require.NoError(t, err)
	require.Len(t, sections, 1)
	assert.Equal(t, testSection, sections[0].ID)

	sections, err = f.svc.MySections(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Empty(t, sections)
}

func TestService_EvictIdle(t *testing.T) {
	f := newServiceFixture()
	ctx := context.Background()

	_, err := f.svc.LoadToday(ctx, "tutor-1", testSection)
	require.NoError(t, err)

	f.now = f.now.Add(30 * time.Minute)
	_, err = f.svc.LoadToday(ctx, "tutor-2", testSection)
	require.NoError(t, err)

	f.now = f.now.Add(45 * time.Minute)
	require.NoError(t, f.svc.EvictIdle(ctx))

	assert.Equal(t, 1, f.svc.SessionCount())
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.EvictedSessions))
	_, err = f.svc.Draft(ctx, "tutor-1", testSection)
	assert.ErrorIs(t, err, attendance.ErrSessionNotLoaded)
	_, err = f.svc.Draft(ctx, "tutor-2", testSection)
	assert.NoError(t, err)
}
