package rest

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/tutorias/attendance-desk/internal/domain/attendance"
	"github.com/tutorias/attendance-desk/internal/domain/section"
)

var _ attendance.Gateway = (*Client)(nil)

func (c *Client) FetchSection(ctx context.Context, sectionID string) (section.Section, error) {
	var course courseDTO
	if err := c.do(ctx, http.MethodGet, "/user-x-work-groups/workgroup/"+url.PathEscape(sectionID), nil, nil, &course); err != nil {
		return section.Section{}, err
	}
	if course.ID == "" {
		return section.Section{}, fmt.Errorf("%w: %s", section.ErrSectionNotFound, sectionID)
	}
	return toSection(course), nil
}

func (c *Client) FetchMySections(ctx context.Context, _ string) ([]section.Section, error) {
	var courses []courseDTO
	if err := c.do(ctx, http.MethodGet, "/user-x-work-groups/me", nil, nil, &courses); err != nil {
		return nil, err
	}

	sections := make([]section.Section, 0, len(courses))
	for _, course := range courses {
		sections = append(sections, toSection(course))
	}
	return sections, nil
}

func (c *Client) FetchAttendance(ctx context.Context, sectionID string) (attendance.Sheet, error) {
	var entries []entryDTO
	if err := c.do(ctx, http.MethodGet, "/attendance/get-all-work-group/"+url.PathEscape(sectionID), nil, nil, &entries); err != nil {
		return attendance.Sheet{}, err
	}

	sheet := attendance.Sheet{SectionID: sectionID}
	for _, e := range entries {
		switch {
		case e.AlumnoID != nil:
			if rec, ok := c.toStudent(e, *e.AlumnoID); ok {
				sheet.Students = append(sheet.Students, rec)
			}
		case e.UserID != nil:
			if rec, ok := c.toGuardian(e); ok {
				sheet.Guardians = append(sheet.Guardians, rec)
			}
		}
	}
	return sheet, nil
}

func (c *Client) SubmitAttendanceBatch(ctx context.Context, req attendance.BatchRequest) error {
	body := batchDTO{Asistencias: make([]batchLineDTO, 0, len(req.Records))}
	for _, r := range req.Records {
		body.Asistencias = append(body.Asistencias, batchLineDTO{
			UserXWorkGroupID: r.LinkID,
			Fecha:            r.Date,
			Estado:           r.Status.Wire(c.legacy),
		})
	}
	return c.do(ctx, http.MethodPost, "/attendance", nil, body, nil)
}

func (c *Client) SubmitGuardianRecord(ctx context.Context, sectionID string, record attendance.GuardianAttendance) error {
	day, err := attendance.SentinelTime.On(record.Date, c.loc)
	if err != nil {
		return fmt.Errorf("guardian record date: %w", err)
	}
	in, err := record.CheckIn.On(record.Date, c.loc)
	if err != nil {
		return err
	}
	out, err := record.CheckOut.On(record.Date, c.loc)
	if err != nil {
		return err
	}

	body := guardianDTO{
		UserID:     record.GuardianUserID,
		Fecha:      day.UTC().Format(time.RFC3339),
		Estado:     record.Status.Wire(c.legacy),
		HoraInicio: in.UTC().Format(time.RFC3339),
		HoraFin:    out.UTC().Format(time.RFC3339),
	}
	return c.do(ctx, http.MethodPost, "/asistencia/encargado/"+url.PathEscape(sectionID), nil, body, nil)
}

func (c *Client) FetchMonthHistory(ctx context.Context, sectionID string, month, year int) (attendance.HistoryBucket, error) {
	query := url.Values{}
	query.Set("month", strconv.Itoa(month))
	query.Set("year", strconv.Itoa(year))

	var raw map[string][]entryDTO
	if err := c.do(ctx, http.MethodGet, "/attendance/work-group/"+url.PathEscape(sectionID), query, nil, &raw); err != nil {
		return nil, err
	}

	bucket := make(attendance.HistoryBucket, len(raw))
	for key, entries := range raw {
		day, err := attendance.ParseDay(key)
		if err != nil {
			c.log.Warn("Skipping history bucket with malformed date", slog.String("section_id", sectionID), slog.String("key", key))
			continue
		}
		for _, e := range entries {
			if e.AlumnoID == nil {
				continue
			}
			if rec, ok := c.toStudent(e, *e.AlumnoID); ok {
				bucket[day] = append(bucket[day], rec)
			}
		}
	}
	return bucket, nil
}

func (c *Client) toStudent(e entryDTO, linkID string) (attendance.StudentAttendance, bool) {
	status, err := attendance.ParseStatus(e.Estado)
	if err != nil {
		c.log.Warn("Dropping attendance entry with unknown status", slog.String("entry_id", e.ID), slog.String("status", e.Estado))
		return attendance.StudentAttendance{}, false
	}
	day, err := attendance.ParseDay(e.Fecha)
	if err != nil {
		c.log.Warn("Dropping attendance entry with malformed date", slog.String("entry_id", e.ID), slog.String("date", e.Fecha))
		return attendance.StudentAttendance{}, false
	}
	return attendance.StudentAttendance{
		LinkID: linkID,
		Date:   day,
		Status: status,
		Name:   e.Nombre,
		Image:  e.Imagen,
	}, true
}

func (c *Client) toGuardian(e entryDTO) (attendance.GuardianAttendance, bool) {
	status, err := attendance.ParseStatus(e.Estado)
	if err != nil {
		c.log.Warn("Dropping guardian entry with unknown status", slog.String("entry_id", e.ID), slog.String("status", e.Estado))
		return attendance.GuardianAttendance{}, false
	}
	day, err := attendance.ParseDay(e.Fecha)
	if err != nil {
		c.log.Warn("Dropping guardian entry with malformed date", slog.String("entry_id", e.ID), slog.String("date", e.Fecha))
		return attendance.GuardianAttendance{}, false
	}
	return attendance.GuardianAttendance{
		GuardianUserID: *e.UserID,
		Date:           day,
		Status:         status,
		CheckIn:        c.parseClock(e.HoraInicio),
		CheckOut:       c.parseClock(e.HoraFin),
		Name:           e.Nombre,
	}, true
}

// parseClock accepts an RFC 3339 timestamp or a bare HH:MM[:SS]. Anything
// else reads as the sentinel.
func (c *Client) parseClock(s string) attendance.TimeOfDay {
	if s == "" {
		return attendance.SentinelTime
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return attendance.TimeOfDayOf(t.In(c.loc))
	}
	if tod, err := attendance.ParseTimeOfDay(s); err == nil {
		return tod
	}
	return attendance.SentinelTime
}

func toSection(course courseDTO) section.Section {
	s := section.Section{
		ID:   course.ID,
		Name: course.Nombre,
		Slug: course.Slug,
	}
	for _, m := range course.Alumnos {
		s.Students = append(s.Students, section.Member{
			UserID: m.ID,
			LinkID: m.UserXWorkgroupID,
			Name:   m.Nombre,
			Image:  m.Image,
			Email:  m.Email,
		})
	}
	for _, m := range course.Tutores {
		s.Tutors = append(s.Tutors, section.Member{
			UserID: m.ID,
			LinkID: m.UserXWorkgroupID,
			Name:   m.Nombre,
			Image:  m.Image,
			Email:  m.Email,
		})
	}
	return s
}
