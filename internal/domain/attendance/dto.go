package attendance

import (
	"github.com/tutorias/attendance-desk/internal/pkg/validator"
)

// ========================================
// EDITOR DTOs
// ========================================

type SetStatusRequest struct {
	LinkID string `json:"-" validate:"required"`
	Status string `json:"status" validate:"required"`
}

func (r *SetStatusRequest) Validate() error {
	errs := validator.Struct(r)

	if r.Status != "" {
		if _, err := ParseStatus(r.Status); err != nil {
			errs = append(errs, validator.ValidationError{
				Field:   "status",
				Message: "status must be one of attended, absent, excused",
			})
		}
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

type GuardianRecordRequest struct {
	GuardianUserID string  `json:"guardian_user_id" validate:"required"`
	Date           string  `json:"date"`
	FillToday      bool    `json:"fill_today"`
	Status         string  `json:"status" validate:"required"`
	CheckIn        *string `json:"check_in"`
	CheckOut       *string `json:"check_out"`
}

// Validate checks the request shape and, for attended guardians, that the
// presence window is complete and ordered. Nothing is sent upstream when
// this fails.
func (r *GuardianRecordRequest) Validate() error {
	errs := validator.Struct(r)

	if !r.FillToday {
		if validator.IsEmpty(r.Date) {
			errs = append(errs, validator.ValidationError{
				Field:   "date",
				Message: "date is required unless fill_today is set",
			})
		} else if _, err := ParseDay(r.Date); err != nil {
			errs = append(errs, validator.ValidationError{
				Field:   "date",
				Message: "date must be in YYYY-MM-DD format",
			})
		}
	}

	status, err := ParseStatus(r.Status)
	if r.Status != "" && err != nil {
		errs = append(errs, validator.ValidationError{
			Field:   "status",
			Message: "status must be one of attended, absent, excused",
		})
	}

	if status == StatusAttended {
		in, inErr := parseOptionalTime(r.CheckIn)
		out, outErr := parseOptionalTime(r.CheckOut)

		switch {
		case r.CheckIn == nil || validator.IsEmpty(*r.CheckIn):
			errs = append(errs, validator.ValidationError{Field: "check_in", Message: "check_in is required when the guardian attended"})
		case inErr != nil:
			errs = append(errs, validator.ValidationError{Field: "check_in", Message: "check_in must be in HH:MM format"})
		}

		switch {
		case r.CheckOut == nil || validator.IsEmpty(*r.CheckOut):
			errs = append(errs, validator.ValidationError{Field: "check_out", Message: "check_out is required when the guardian attended"})
		case outErr != nil:
			errs = append(errs, validator.ValidationError{Field: "check_out", Message: "check_out must be in HH:MM format"})
		}

		if inErr == nil && outErr == nil && r.CheckIn != nil && r.CheckOut != nil && in >= out {
			errs = append(errs, validator.ValidationError{
				Field:   "check_out",
				Message: "check_in must be earlier than check_out",
			})
		}
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// ToRecord builds the record to submit. Statuses other than attended carry
// the sentinel time regardless of what the caller supplied. Call Validate
// first.
func (r *GuardianRecordRequest) ToRecord(today string) GuardianAttendance {
	status, _ := ParseStatus(r.Status)

	date := today
	if !r.FillToday {
		date, _ = ParseDay(r.Date)
	}

	record := GuardianAttendance{
		GuardianUserID: r.GuardianUserID,
		Date:           date,
		Status:         status,
		CheckIn:        SentinelTime,
		CheckOut:       SentinelTime,
	}
	if status == StatusAttended {
		record.CheckIn, _ = parseOptionalTime(r.CheckIn)
		record.CheckOut, _ = parseOptionalTime(r.CheckOut)
	}
	return record
}

func parseOptionalTime(s *string) (TimeOfDay, error) {
	if s == nil {
		return SentinelTime, nil
	}
	return ParseTimeOfDay(*s)
}

type StudentAttendanceResponse struct {
	LinkID string `json:"link_id"`
	Date   string `json:"date"`
	Status Status `json:"status"`
	Name   string `json:"name"`
	Image  string `json:"image,omitempty"`
	Icon   Icon   `json:"icon"`
	Tone   Tone   `json:"tone"`
}

type GuardianAttendanceResponse struct {
	GuardianUserID string `json:"guardian_user_id"`
	Name           string `json:"name,omitempty"`
	Date           string `json:"date"`
	Status         Status `json:"status"`
	CheckIn        string `json:"check_in"`
	CheckOut       string `json:"check_out"`
	Tone           Tone   `json:"tone"`
}

type SheetResponse struct {
	SectionID string                       `json:"section_id"`
	Date      string                       `json:"date"`
	Unsaved   bool                         `json:"unsaved"`
	Students  []StudentAttendanceResponse  `json:"students"`
	Guardians []GuardianAttendanceResponse `json:"guardians"`
}

type SaveResponse struct {
	Submitted int           `json:"submitted"`
	Sheet     SheetResponse `json:"sheet"`
}

// NewSheetResponse renders a sheet for the API.
func NewSheetResponse(sheet Sheet, unsaved bool) SheetResponse {
	resp := SheetResponse{
		SectionID: sheet.SectionID,
		Date:      sheet.Date,
		Unsaved:   unsaved,
		Students:  make([]StudentAttendanceResponse, 0, len(sheet.Students)),
		Guardians: make([]GuardianAttendanceResponse, 0, len(sheet.Guardians)),
	}
	for _, s := range sheet.Students {
		resp.Students = append(resp.Students, StudentAttendanceResponse{
			LinkID: s.LinkID,
			Date:   s.Date,
			Status: s.Status,
			Name:   s.Name,
			Image:  s.Image,
			Icon:   IconFor(string(s.Status)),
			Tone:   ToneFor(string(s.Status)),
		})
	}
	for _, g := range sheet.Guardians {
		resp.Guardians = append(resp.Guardians, NewGuardianResponse(g))
	}
	return resp
}

func NewGuardianResponse(g GuardianAttendance) GuardianAttendanceResponse {
	return GuardianAttendanceResponse{
		GuardianUserID: g.GuardianUserID,
		Name:           g.Name,
		Date:           g.Date,
		Status:         g.Status,
		CheckIn:        g.CheckIn.String(),
		CheckOut:       g.CheckOut.String(),
		Tone:           ToneFor(string(g.Status)),
	}
}

// ========================================
// HISTORY DTOs
// ========================================

// HistoryFilter selects a month. Month is 1-12.
// HistoryFilter selects a month. Year is not validated; viewers clamp it
// to the first supported year.
type HistoryFilter struct {
	Month int `json:"month" validate:"min=1,max=12"`
	Year  int `json:"year"`
}

func (f *HistoryFilter) Validate() error {
	if errs := validator.Struct(f); len(errs) > 0 {
		return errs
	}
	return nil
}

type HistoryCell struct {
	Date     string `json:"date"`
	Recorded bool   `json:"recorded"`
	Status   Status `json:"status,omitempty"`
	Icon     Icon   `json:"icon,omitempty"`
}

type HistoryRow struct {
	LinkID string        `json:"link_id"`
	Name   string        `json:"name"`
	Image  string        `json:"image,omitempty"`
	Cells  []HistoryCell `json:"cells"`
}

type HistoryResponse struct {
	SectionID string       `json:"section_id"`
	Month     int          `json:"month"`
	Year      int          `json:"year"`
	ClassDays []string     `json:"class_days"`
	Rows      []HistoryRow `json:"rows"`
}

// ========================================
// SSE DTOs
// ========================================

type SSETokenResponse struct {
	Token     string `json:"token"`
	ExpiresIn int    `json:"expires_in"`
}
