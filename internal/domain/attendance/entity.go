package attendance

import (
	"fmt"
	"strings"
	"time"

	"github.com/tutorias/attendance-desk/internal/pkg/validator"
)

// DateLayout is the calendar-day layout used for record dates and history keys.
const DateLayout = "2006-01-02"

// StudentAttendance is one student's status for one calendar day.
// LinkID identifies the student's membership in the section.
type StudentAttendance struct {
	LinkID string
	Date   string
	Status Status
	Name   string
	Image  string
}

// GuardianAttendance is a guardian's presence window for one calendar day.
type GuardianAttendance struct {
	GuardianUserID string
	Date           string
	Status         Status
	CheckIn        TimeOfDay
	CheckOut       TimeOfDay
	Name           string
}

// Sheet is a section's attendance for a single day.
type Sheet struct {
	SectionID string
	Date      string
	Students  []StudentAttendance
	Guardians []GuardianAttendance
}

// HistoryBucket groups a month of student records by calendar day (YYYY-MM-DD).
type HistoryBucket map[string][]StudentAttendance

// StatusOf reports the recorded status of a student on a day. The boolean is
// false when no record exists, which is distinct from an absent record.
func (b HistoryBucket) StatusOf(linkID string, day time.Time) (Status, bool) {
	for _, record := range b[DateKey(day)] {
		if record.LinkID == linkID {
			return record.Status, true
		}
	}
	return "", false
}

// BatchRecord is one line of a batch attendance submission.
type BatchRecord struct {
	LinkID string
	Date   string
	Status Status
}

// BatchRequest submits the full working copy of a section in one call.
type BatchRequest struct {
	SectionID string
	Records   []BatchRecord
}

// DateKey formats a time as a calendar day in its own location.
func DateKey(t time.Time) string {
	return t.Format(DateLayout)
}

// ParseDay accepts either a bare calendar day or an RFC 3339 timestamp and
// returns the calendar-day portion.
func ParseDay(s string) (string, error) {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, 'T'); i >= 0 {
		s = s[:i]
	}
	if _, ok := validator.IsValidDate(s); !ok {
		return "", fmt.Errorf("invalid date %q", s)
	}
	return s, nil
}

// TimeOfDay is a wall-clock time with second precision, stored as seconds
// since midnight.
type TimeOfDay int

// SentinelTime is stored for guardians that did not attend.
const SentinelTime TimeOfDay = 0

// ParseTimeOfDay accepts HH:MM or HH:MM:SS.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{"15:04:05", "15:04"} {
		if t, err := time.Parse(layout, s); err == nil {
			return TimeOfDay(t.Hour()*3600 + t.Minute()*60 + t.Second()), nil
		}
	}
	return 0, fmt.Errorf("invalid time %q", s)
}

// TimeOfDayOf extracts the wall-clock portion of t.
func TimeOfDayOf(t time.Time) TimeOfDay {
	return TimeOfDay(t.Hour()*3600 + t.Minute()*60 + t.Second())
}

func (t TimeOfDay) String() string {
	s := int(t)
	return fmt.Sprintf("%02d:%02d:%02d", s/3600, (s/60)%60, s%60)
}

// On combines a calendar day with the time of day in loc.
func (t TimeOfDay) On(day string, loc *time.Location) (time.Time, error) {
	d, err := time.ParseInLocation(DateLayout, day, loc)
	if err != nil {
		return time.Time{}, err
	}
	return d.Add(time.Duration(t) * time.Second), nil
}
