package attendance

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tutorias/attendance-desk/internal/pkg/validator"
)

func strPtr(s string) *string { return &s }

func fieldErrors(t *testing.T, err error) map[string]string {
	t.Helper()
	var errs validator.ValidationErrors
	require.ErrorAs(t, err, &errs)
	return errs.ToMap()
}

func TestSetStatusRequest_Validate(t *testing.T) {
	req := SetStatusRequest{LinkID: "link-1", Status: "falto"}
	assert.NoError(t, req.Validate())

	req = SetStatusRequest{LinkID: "link-1", Status: "late"}
	assert.Contains(t, fieldErrors(t, req.Validate()), "status")

	req = SetStatusRequest{Status: "absent"}
	assert.Contains(t, fieldErrors(t, req.Validate()), "LinkID")
}

func TestGuardianRecordRequest_Validate(t *testing.T) {
	tests := []struct {
		name    string
		req     GuardianRecordRequest
		wantErr string
	}{
		{
			name: "attended with window",
			req:  GuardianRecordRequest{GuardianUserID: "t-1", Date: "2025-01-04", Status: "attended", CheckIn: strPtr("09:00"), CheckOut: strPtr("11:00")},
		},
		{
			name: "absent without times",
			req:  GuardianRecordRequest{GuardianUserID: "t-1", Date: "2025-01-04", Status: "absent"},
		},
		{
			name: "fill today without date",
			req:  GuardianRecordRequest{GuardianUserID: "t-1", FillToday: true, Status: "excused"},
		},
		{
			name:    "missing guardian",
			req:     GuardianRecordRequest{Date: "2025-01-04", Status: "absent"},
			wantErr: "guardian_user_id",
		},
		{
			name:    "missing date",
			req:     GuardianRecordRequest{GuardianUserID: "t-1", Status: "absent"},
			wantErr: "date",
		},
		{
			name:    "bad date",
			req:     GuardianRecordRequest{GuardianUserID: "t-1", Date: "04/01/2025", Status: "absent"},
			wantErr: "date",
		},
		{
			name:    "attended without check in",
			req:     GuardianRecordRequest{GuardianUserID: "t-1", Date: "2025-01-04", Status: "attended", CheckOut: strPtr("11:00")},
			wantErr: "check_in",
		},
		{
			name:    "attended without check out",
			req:     GuardianRecordRequest{GuardianUserID: "t-1", Date: "2025-01-04", Status: "attended", CheckIn: strPtr("09:00")},
			wantErr: "check_out",
		},
		{
			name:    "check out before check in",
			req:     GuardianRecordRequest{GuardianUserID: "t-1", Date: "2025-01-04", Status: "attended", CheckIn: strPtr("11:00"), CheckOut: strPtr("09:00")},
			wantErr: "check_out",
		},
		{
			name:    "equal times",
			req:     GuardianRecordRequest{GuardianUserID: "t-1", Date: "2025-01-04", Status: "attended", CheckIn: strPtr("09:00"), CheckOut: strPtr("09:00")},
			wantErr: "check_out",
		},
		{
			name:    "unknown status",
			req:     GuardianRecordRequest{GuardianUserID: "t-1", Date: "2025-01-04", Status: "late"},
			wantErr: "status",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.Contains(t, fieldErrors(t, err), tt.wantErr)
		})
	}
}

func TestGuardianRecordRequest_ToRecord(t *testing.T) {
	req := GuardianRecordRequest{GuardianUserID: "t-1", FillToday: true, Status: "falto", CheckIn: strPtr("09:00"), CheckOut: strPtr("10:00")}
	rec := req.ToRecord("2025-01-04")

	assert.Equal(t, "2025-01-04", rec.Date)
	assert.Equal(t, StatusAbsent, rec.Status)
	assert.Equal(t, SentinelTime, rec.CheckIn)
	assert.Equal(t, SentinelTime, rec.CheckOut)

	req = GuardianRecordRequest{GuardianUserID: "t-1", Date: "2025-01-11T00:00:00Z", Status: "attended", CheckIn: strPtr("09:00"), CheckOut: strPtr("10:30")}
	rec = req.ToRecord("2025-01-04")

	assert.Equal(t, "2025-01-11", rec.Date)
	assert.Equal(t, "09:00:00", rec.CheckIn.String())
	assert.Equal(t, "10:30:00", rec.CheckOut.String())
}

func TestHistoryFilter_Validate(t *testing.T) {
	f := HistoryFilter{Month: 1, Year: 2025}
	assert.NoError(t, f.Validate())

	f = HistoryFilter{Month: 13, Year: 2025}
	assert.Contains(t, fieldErrors(t, f.Validate()), "month")

	f = HistoryFilter{Month: 0, Year: 2025}
	assert.Contains(t, fieldErrors(t, f.Validate()), "month")

	f = HistoryFilter{Month: 1, Year: -5}
	assert.NoError(t, f.Validate())
}

func TestNewSheetResponse(t *testing.T) {
	resp := NewSheetResponse(Sheet{
		SectionID: "sec-1",
		Date:      "2025-01-04",
		Students:  []StudentAttendance{{LinkID: "link-1", Date: "2025-01-04", Status: StatusAbsent, Name: "Ana"}},
		Guardians: []GuardianAttendance{{GuardianUserID: "t-1", Date: "2025-01-04", Status: StatusAttended, CheckIn: 9 * 3600, CheckOut: 10 * 3600}},
	}, true)

	assert.True(t, resp.Unsaved)
	require.Len(t, resp.Students, 1)
	assert.Equal(t, IconCross, resp.Students[0].Icon)
	assert.Equal(t, ToneRed, resp.Students[0].Tone)
	require.Len(t, resp.Guardians, 1)
	assert.Equal(t, "09:00:00", resp.Guardians[0].CheckIn)
	assert.Equal(t, ToneGreen, resp.Guardians[0].Tone)
}
