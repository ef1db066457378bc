package attendance

import (
	"context"

	"github.com/tutorias/attendance-desk/internal/domain/section"
)

// Gateway is the remote side of attendance: the school backend or a direct
// database adapter. Submissions return nil, ErrScheduleConflict, or another
// error describing the failure.
type Gateway interface {
	// FetchSection returns the section with its student and tutor roster.
	FetchSection(ctx context.Context, sectionID string) (section.Section, error)

	// FetchMySections lists the sections the operator is assigned to.
	FetchMySections(ctx context.Context, operatorID string) ([]section.Section, error)

	// FetchAttendance returns every attendance entry known for the section.
	// Dates are not filtered.
	FetchAttendance(ctx context.Context, sectionID string) (Sheet, error)

	// SubmitAttendanceBatch writes the given student records in one call.
	SubmitAttendanceBatch(ctx context.Context, req BatchRequest) error

	// SubmitGuardianRecord writes a single guardian record.
	SubmitGuardianRecord(ctx context.Context, sectionID string, record GuardianAttendance) error

	// FetchMonthHistory returns student records of a month grouped by day.
	// Month is 1-12.
	FetchMonthHistory(ctx context.Context, sectionID string, month, year int) (HistoryBucket, error)
}
