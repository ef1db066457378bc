package response

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tutorias/attendance-desk/internal/domain/attendance"
	"github.com/tutorias/attendance-desk/internal/domain/auth"
	"github.com/tutorias/attendance-desk/internal/domain/section"
	"github.com/tutorias/attendance-desk/internal/pkg/validator"
)

func TestHandleError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantErr  string
	}{
		{"validation", validator.ValidationErrors{{Field: "check_out", Message: "check_in must be earlier than check_out"}}, http.StatusUnprocessableEntity, "VALIDATION_ERROR"},
		{"conflict", fmt.Errorf("save attendance: %w", attendance.ErrScheduleConflict), http.StatusConflict, "CONFLICT"},
		{"save failed", fmt.Errorf("%w: %w", attendance.ErrSaveFailed, attendance.ErrGatewayUnavailable), http.StatusBadGateway, "UPSTREAM_ERROR"},
		{"no section", attendance.ErrSectionRequired, http.StatusBadRequest, "BAD_REQUEST"},
		{"not loaded", attendance.ErrSessionNotLoaded, http.StatusNotFound, "NOT_FOUND"},
		{"in flight", attendance.ErrSaveInProgress, http.StatusConflict, "CONFLICT"},
		{"section missing", fmt.Errorf("fetch section: %w", section.ErrSectionNotFound), http.StatusNotFound, "NOT_FOUND"},
		{"token", auth.ErrInvalidToken, http.StatusUnauthorized, "UNAUTHORIZED"},
		{"unknown", fmt.Errorf("boom"), http.StatusInternalServerError, "INTERNAL_SERVER_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			HandleError(rec, tt.err)

			assert.Equal(t, tt.wantCode, rec.Code)

			var body Response
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
			assert.False(t, body.Success)
			require.NotNil(t, body.Error)
			assert.Equal(t, tt.wantErr, body.Error.Code)
		})
	}
}

func TestHandleError_ConflictMessage(t *testing.T) {
	rec := httptest.NewRecorder()
	HandleError(rec, attendance.ErrScheduleConflict)

	var body Response
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "The user has overlapping schedules", body.Error.Message)
}
