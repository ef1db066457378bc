package response

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/tutorias/attendance-desk/internal/domain/attendance"
	"github.com/tutorias/attendance-desk/internal/domain/auth"
	"github.com/tutorias/attendance-desk/internal/domain/section"
	"github.com/tutorias/attendance-desk/internal/domain/user"
	"github.com/tutorias/attendance-desk/internal/pkg/validator"
)

// HandleError maps domain errors to HTTP responses
func HandleError(w http.ResponseWriter, err error) {
	// Check if it's a validation error
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		ValidationError(w, validationErrs.ToMap())
		return
	}

	switch {
	// Auth domain errors
	case errors.Is(err, auth.ErrTokenExpired):
		Unauthorized(w, "Token expired")
	case errors.Is(err, auth.ErrInvalidToken), errors.Is(err, user.ErrOperatorRequired):
		Unauthorized(w, "Invalid or expired token")
	case errors.Is(err, user.ErrUnknownRole), errors.Is(err, user.ErrInsufficientPermissions):
		Forbidden(w, "Insufficient permissions")

	// Section errors
	case errors.Is(err, section.ErrSectionNotFound):
		NotFound(w, "Section not found")

	// Attendance preconditions
	case errors.Is(err, attendance.ErrSectionRequired):
		BadRequest(w, "Select a section first", nil)
	case errors.Is(err, attendance.ErrSessionNotLoaded), errors.Is(err, attendance.ErrEditorClosed):
		NotFound(w, "Load today's attendance first")
	case errors.Is(err, attendance.ErrLoadSuperseded):
		Conflict(w, "A newer load replaced this one")

	// Attendance editing
	case errors.Is(err, attendance.ErrUnknownStatus):
		BadRequest(w, "Unknown attendance status", nil)
	case errors.Is(err, attendance.ErrStudentNotInSection):
		BadRequest(w, "Student is not enrolled in this section", nil)
	case errors.Is(err, attendance.ErrGuardianNotInSection):
		BadRequest(w, "Guardian is not assigned to this section", nil)

	// Attendance saving
	case errors.Is(err, attendance.ErrNothingToSave):
		BadRequest(w, "There are no unsaved changes", nil)
	case errors.Is(err, attendance.ErrSaveInProgress):
		Conflict(w, "A save is already in progress")
	case errors.Is(err, attendance.ErrScheduleConflict):
		Conflict(w, "The user has overlapping schedules")
	case errors.Is(err, attendance.ErrSaveFailed):
		BadGateway(w, "Failed to save attendance")
	case errors.Is(err, attendance.ErrGatewayUnavailable):
		BadGateway(w, "Attendance backend unavailable")

	// Default
	default:
		slog.Error("Unhandled error", slog.Any("error", err))
		InternalServerError(w, "An unexpected error occurred")
	}
}
