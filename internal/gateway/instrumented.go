package gateway

import (
	"context"
	"time"

	"github.com/tutorias/attendance-desk/internal/domain/attendance"
	"github.com/tutorias/attendance-desk/internal/domain/section"
	"github.com/tutorias/attendance-desk/internal/pkg/metrics"
)

// Instrumented records latency and outcome of every call to the wrapped
// gateway.
type Instrumented struct {
	next    attendance.Gateway
	metrics *metrics.Metrics
}

var _ attendance.Gateway = (*Instrumented)(nil)

func NewInstrumented(next attendance.Gateway, m *metrics.Metrics) *Instrumented {
	return &Instrumented{next: next, metrics: m}
}

func (g *Instrumented) observe(op string, start time.Time, err error) {
	g.metrics.ObserveGateway(op, start, err, attendance.ErrScheduleConflict)
}

func (g *Instrumented) FetchSection(ctx context.Context, sectionID string) (s section.Section, err error) {
	defer func(start time.Time) { g.observe("fetch_section", start, err) }(time.Now())
	return g.next.FetchSection(ctx, sectionID)
}

func (g *Instrumented) FetchMySections(ctx context.Context, operatorID string) (s []section.Section, err error) {
	defer func(start time.Time) { g.observe("fetch_my_sections", start, err) }(time.Now())
	return g.next.FetchMySections(ctx, operatorID)
}

func (g *Instrumented) FetchAttendance(ctx context.Context, sectionID string) (s attendance.Sheet, err error) {
	defer func(start time.Time) { g.observe("fetch_attendance", start, err) }(time.Now())
	return g.next.FetchAttendance(ctx, sectionID)
}

func (g *Instrumented) SubmitAttendanceBatch(ctx context.Context, req attendance.BatchRequest) (err error) {
	defer func(start time.Time) { g.observe("submit_batch", start, err) }(time.Now())
	return g.next.SubmitAttendanceBatch(ctx, req)
}

func (g *Instrumented) SubmitGuardianRecord(ctx context.Context, sectionID string, record attendance.GuardianAttendance) (err error) {
	defer func(start time.Time) { g.observe("submit_guardian", start, err) }(time.Now())
	return g.next.SubmitGuardianRecord(ctx, sectionID, record)
}

func (g *Instrumented) FetchMonthHistory(ctx context.Context, sectionID string, month, year int) (b attendance.HistoryBucket, err error) {
	defer func(start time.Time) { g.observe("fetch_month_history", start, err) }(time.Now())
	return g.next.FetchMonthHistory(ctx, sectionID, month, year)
}
