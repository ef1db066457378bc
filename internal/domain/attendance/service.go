package attendance

import (
	"context"

	"github.com/tutorias/attendance-desk/internal/domain/section"
)

// Invalidation is published to subscribers of a section after a successful
// write so open views refetch.
type Invalidation struct {
	SectionID string `json:"section_id"`
	Reason    string `json:"reason"`
	Date      string `json:"date"`
}

// AttendanceService drives per-operator editing sessions and history views
type AttendanceService interface {
	// LoadToday fetches today's attendance and resets the operator's working copy
	LoadToday(ctx context.Context, operatorID, sectionID string) (SheetResponse, error)

	// Draft returns the operator's working copy without contacting the backend
	Draft(ctx context.Context, operatorID, sectionID string) (SheetResponse, error)

	// SetStudentStatus edits one student in the working copy
	SetStudentStatus(ctx context.Context, operatorID, sectionID string, req SetStatusRequest) (SheetResponse, error)

	// Revert discards unsaved edits
	Revert(ctx context.Context, operatorID, sectionID string) (SheetResponse, error)

	// Save submits the working copy as one batch
	Save(ctx context.Context, operatorID, sectionID string) (SaveResponse, error)

	// AddGuardianRecord validates and submits a single guardian record
	AddGuardianRecord(ctx context.Context, operatorID, sectionID string, req GuardianRecordRequest) (GuardianAttendanceResponse, error)

	// MySections lists the sections the operator takes attendance for
	MySections(ctx context.Context, operatorID string) ([]section.SectionResponse, error)

	// MonthHistory returns the roster by class-day matrix of a month
	MonthHistory(ctx context.Context, sectionID string, filter HistoryFilter) (HistoryResponse, error)

	// InvalidateHistory drops cached months of a section and notifies subscribers
	InvalidateHistory(ctx context.Context, sectionID string) error
}
