package attendance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/tutorias/attendance-desk/internal/domain/attendance"
	"github.com/tutorias/attendance-desk/internal/domain/section"
	"github.com/tutorias/attendance-desk/internal/pkg/metrics"
	"github.com/tutorias/attendance-desk/internal/pkg/sse"
	"github.com/tutorias/attendance-desk/internal/pkg/validator"
)

// EventInvalidated is the SSE event name published after a write.
const EventInvalidated = "attendance.invalidated"

type sessionKey struct {
	operatorID string
	sectionID  string
}

// ServiceOptions configures NewAttendanceService. Hub and Metrics are
// optional.
type ServiceOptions struct {
	Hub         *sse.Hub
	Metrics     *metrics.Metrics
	Location    *time.Location
	Clock       func() time.Time
	IdleTimeout time.Duration
	Logger      *slog.Logger
}

// AttendanceServiceImpl keeps one Editor per operator and section.
type AttendanceServiceImpl struct {
	gateway     attendance.Gateway
	history     *HistoryViewer
	hub         *sse.Hub
	metrics     *metrics.Metrics
	loc         *time.Location
	now         func() time.Time
	idleTimeout time.Duration
	log         *slog.Logger

	mu       sync.Mutex
	sessions map[sessionKey]*Editor
}

var _ attendance.AttendanceService = (*AttendanceServiceImpl)(nil)

func NewAttendanceService(gateway attendance.Gateway, history *HistoryViewer, opts ServiceOptions) *AttendanceServiceImpl {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.IdleTimeout <= 0 {
		opts.IdleTimeout = 2 * time.Hour
	}
	return &AttendanceServiceImpl{
		gateway:     gateway,
		history:     history,
		hub:         opts.Hub,
		metrics:     opts.Metrics,
		loc:         opts.Location,
		now:         opts.Clock,
		idleTimeout: opts.IdleTimeout,
		log:         opts.Logger,
		sessions:    make(map[sessionKey]*Editor),
	}
}

func (s *AttendanceServiceImpl) editor(operatorID, sectionID string, create bool) (*Editor, error) {
	if validator.IsEmpty(sectionID) {
		return nil, attendance.ErrSectionRequired
	}

	key := sessionKey{operatorID: operatorID, sectionID: sectionID}

	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.sessions[key]; ok {
		return e, nil
	}
	if !create {
		return nil, attendance.ErrSessionNotLoaded
	}

	e := NewEditor(s.gateway, sectionID,
		WithClock(s.now),
		WithLocation(s.loc),
		WithLogger(s.log.With(slog.String("operator_id", operatorID))),
	)
	s.sessions[key] = e
	s.reportSessionsLocked()
	return e, nil
}

// LoadToday implements attendance.AttendanceService.
func (s *AttendanceServiceImpl) LoadToday(ctx context.Context, operatorID, sectionID string) (attendance.SheetResponse, error) {
	e, err := s.editor(operatorID, sectionID, true)
	if err != nil {
		return attendance.SheetResponse{}, err
	}

	sheet, err := e.LoadToday(ctx)
	if err != nil {
		return attendance.SheetResponse{}, err
	}
	return attendance.NewSheetResponse(sheet, false), nil
}

// Draft implements attendance.AttendanceService.
func (s *AttendanceServiceImpl) Draft(ctx context.Context, operatorID, sectionID string) (attendance.SheetResponse, error) {
	e, err := s.editor(operatorID, sectionID, false)
	if err != nil {
		return attendance.SheetResponse{}, err
	}

	sheet, unsaved, err := e.Snapshot()
	if err != nil {
		return attendance.SheetResponse{}, err
	}
	return attendance.NewSheetResponse(sheet, unsaved), nil
}

// SetStudentStatus implements attendance.AttendanceService.
func (s *AttendanceServiceImpl) SetStudentStatus(ctx context.Context, operatorID, sectionID string, req attendance.SetStatusRequest) (attendance.SheetResponse, error) {
	if err := req.Validate(); err != nil {
		return attendance.SheetResponse{}, err
	}
	status, err := attendance.ParseStatus(req.Status)
	if err != nil {
		return attendance.SheetResponse{}, err
	}

	e, err := s.editor(operatorID, sectionID, false)
	if err != nil {
		return attendance.SheetResponse{}, err
	}
	if err := e.SetStudentStatus(req.LinkID, status); err != nil {
		return attendance.SheetResponse{}, err
	}
	return s.Draft(ctx, operatorID, sectionID)
}

// Revert implements attendance.AttendanceService.
func (s *AttendanceServiceImpl) Revert(ctx context.Context, operatorID, sectionID string) (attendance.SheetResponse, error) {
	e, err := s.editor(operatorID, sectionID, false)
	if err != nil {
		return attendance.SheetResponse{}, err
	}

	sheet, err := e.Revert()
	if err != nil {
		return attendance.SheetResponse{}, err
	}
	return attendance.NewSheetResponse(sheet, false), nil
}

// Save implements attendance.AttendanceService.
func (s *AttendanceServiceImpl) Save(ctx context.Context, operatorID, sectionID string) (attendance.SaveResponse, error) {
	e, err := s.editor(operatorID, sectionID, false)
	if err != nil {
		return attendance.SaveResponse{}, err
	}

	sheet, err := e.Save(ctx)
	s.countOutcome(s.savesCounter(), err)
	if err != nil {
		return attendance.SaveResponse{}, err
	}

	_, unsaved, _ := e.Snapshot()
	s.invalidate(ctx, sectionID, "batch_saved", sheet.Date)
	return attendance.SaveResponse{
		Submitted: len(sheet.Students),
		Sheet:     attendance.NewSheetResponse(sheet, unsaved),
	}, nil
}

// AddGuardianRecord implements attendance.AttendanceService.
func (s *AttendanceServiceImpl) AddGuardianRecord(ctx context.Context, operatorID, sectionID string, req attendance.GuardianRecordRequest) (attendance.GuardianAttendanceResponse, error) {
	e, err := s.editor(operatorID, sectionID, true)
	if err != nil {
		return attendance.GuardianAttendanceResponse{}, err
	}

	record, err := e.AddGuardianRecord(ctx, req)
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		s.countOutcome(s.guardianCounter(), err)
	}
	if err != nil {
		return attendance.GuardianAttendanceResponse{}, err
	}

	s.invalidate(ctx, sectionID, "guardian_recorded", record.Date)
	return attendance.NewGuardianResponse(record), nil
}

// MySections implements attendance.AttendanceService.
func (s *AttendanceServiceImpl) MySections(ctx context.Context, operatorID string) ([]section.SectionResponse, error) {
	sections, err := s.gateway.FetchMySections(ctx, operatorID)
	if err != nil {
		return nil, fmt.Errorf("fetch sections: %w", err)
	}

	resp := make([]section.SectionResponse, 0, len(sections))
	for _, sec := range sections {
		resp = append(resp, section.NewSectionResponse(sec))
	}
	return resp, nil
}

// MonthHistory implements attendance.AttendanceService.
func (s *AttendanceServiceImpl) MonthHistory(ctx context.Context, sectionID string, filter attendance.HistoryFilter) (attendance.HistoryResponse, error) {
	if validator.IsEmpty(sectionID) {
		return attendance.HistoryResponse{}, attendance.ErrSectionRequired
	}
	return s.history.MonthView(ctx, sectionID, filter)
}

// InvalidateHistory implements attendance.AttendanceService.
func (s *AttendanceServiceImpl) InvalidateHistory(ctx context.Context, sectionID string) error {
	if validator.IsEmpty(sectionID) {
		return attendance.ErrSectionRequired
	}
	if err := s.history.Invalidate(ctx, sectionID); err != nil {
		return fmt.Errorf("invalidate history: %w", err)
	}
	s.publish(sectionID, "manual", "")
	return nil
}

// EvictIdle closes sessions unused for longer than the idle timeout. Unsaved
// edits of evicted sessions are lost and logged.
func (s *AttendanceServiceImpl) EvictIdle(ctx context.Context) error {
	cutoff := s.now().Add(-s.idleTimeout)

	s.mu.Lock()
	var evicted []*Editor
	for key, e := range s.sessions {
		if e.IdleSince().Before(cutoff) {
			evicted = append(evicted, e)
			delete(s.sessions, key)
			if e.HasUnsavedChanges() {
				s.log.Warn("Evicting idle attendance session with unsaved changes",
					slog.String("operator_id", key.operatorID),
					slog.String("section_id", key.sectionID))
			}
		}
	}
	s.reportSessionsLocked()
	s.mu.Unlock()

	for _, e := range evicted {
		e.Close()
	}
	if s.metrics != nil {
		s.metrics.EvictedSessions.Add(float64(len(evicted)))
	}
	if len(evicted) > 0 {
		s.log.Info("Evicted idle attendance sessions", slog.Int("count", len(evicted)))
	}
	return ctx.Err()
}

// SessionCount returns the number of open editor sessions.
func (s *AttendanceServiceImpl) SessionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Close closes every session.
func (s *AttendanceServiceImpl) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, e := range s.sessions {
		e.Close()
		delete(s.sessions, key)
	}
	s.reportSessionsLocked()
}

func (s *AttendanceServiceImpl) invalidate(ctx context.Context, sectionID, reason, date string) {
	if err := s.history.Invalidate(ctx, sectionID); err != nil {
		s.log.Warn("Failed to invalidate cached history", slog.String("section_id", sectionID), slog.Any("error", err))
	}
	s.publish(sectionID, reason, date)
}

func (s *AttendanceServiceImpl) publish(sectionID, reason, date string) {
	if s.hub == nil {
		return
	}
	s.hub.Publish(sectionID, sse.Event{
		Event: EventInvalidated,
		Data:  attendance.Invalidation{SectionID: sectionID, Reason: reason, Date: date},
	})
}

func (s *AttendanceServiceImpl) reportSessionsLocked() {
	if s.metrics != nil {
		s.metrics.ActiveSessions.Set(float64(len(s.sessions)))
	}
}

func (s *AttendanceServiceImpl) savesCounter() func(outcome string) {
	if s.metrics == nil {
		return nil
	}
	return func(outcome string) { s.metrics.Saves.WithLabelValues(outcome).Inc() }
}

func (s *AttendanceServiceImpl) guardianCounter() func(outcome string) {
	if s.metrics == nil {
		return nil
	}
	return func(outcome string) { s.metrics.GuardianRecords.WithLabelValues(outcome).Inc() }
}

func (s *AttendanceServiceImpl) countOutcome(inc func(outcome string), err error) {
	if inc == nil {
		return
	}
	switch {
	case errors.Is(err, attendance.ErrNothingToSave), errors.Is(err, attendance.ErrSaveInProgress),
		errors.Is(err, attendance.ErrSessionNotLoaded), errors.Is(err, attendance.ErrSectionRequired):
		return
	}
	inc(metrics.Classify(err, attendance.ErrScheduleConflict))
}
