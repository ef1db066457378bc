package attendance

import "errors"

// Attendance domain errors
var (
	// Preconditions
	ErrSectionRequired  = errors.New("section must be selected before loading or saving attendance")
	ErrSessionNotLoaded = errors.New("attendance has not been loaded for this section")
	ErrEditorClosed     = errors.New("attendance editor is closed")
	ErrLoadSuperseded   = errors.New("attendance load superseded by a newer load")

	// Editing
	ErrUnknownStatus        = errors.New("unknown attendance status")
	ErrStudentNotInSection  = errors.New("student is not enrolled in this section")
	ErrGuardianNotInSection = errors.New("guardian is not assigned to this section")

	// Saving
	ErrNothingToSave      = errors.New("no unsaved attendance changes")
	ErrSaveInProgress     = errors.New("an attendance save is already in progress")
	ErrScheduleConflict   = errors.New("the user has overlapping schedules")
	ErrSaveFailed         = errors.New("failed to save attendance")
	ErrGatewayUnavailable = errors.New("attendance backend unavailable")
)
