package postgresql

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/tutorias/attendance-desk/internal/domain/attendance"
	"github.com/tutorias/attendance-desk/internal/domain/section"
	"github.com/tutorias/attendance-desk/internal/pkg/database"
)

// attendanceGateway serves the attendance gateway straight from Postgres.
type attendanceGateway struct {
	db       *database.DB
	sections section.SectionRepository
	loc      *time.Location
}

// FetchSection implements attendance.Gateway.
func (g *attendanceGateway) FetchSection(ctx context.Context, sectionID string) (section.Section, error) {
	return g.sections.GetByID(ctx, sectionID)
}

// FetchMySections implements attendance.Gateway.
func (g *attendanceGateway) FetchMySections(ctx context.Context, operatorID string) ([]section.Section, error) {
	return g.sections.ListByMember(ctx, operatorID)
}

// FetchAttendance implements attendance.Gateway.
func (g *attendanceGateway) FetchAttendance(ctx context.Context, sectionID string) (attendance.Sheet, error) {
	q := GetQuerier(ctx, g.db)

	query := `
		SELECT a.link_id, a.date, a.status, COALESCE(m.name, ''), COALESCE(m.image, '')
		FROM student_attendance a
		LEFT JOIN section_members m ON m.link_id = a.link_id
		WHERE a.section_id = $1
		ORDER BY a.date, m.name
	`
	rows, err := q.Query(ctx, query, sectionID)
	if err != nil {
		return attendance.Sheet{}, fmt.Errorf("failed to fetch attendance: %w", err)
	}
	students, err := pgx.CollectRows(rows, scanStudent)
	if err != nil {
		return attendance.Sheet{}, fmt.Errorf("failed to scan attendance: %w", err)
	}

	guardianQuery := `
		SELECT g.user_id, g.date, g.status, g.check_in, g.check_out, COALESCE(m.name, '')
		FROM guardian_attendance g
		LEFT JOIN section_members m ON m.section_id = g.section_id AND m.user_id = g.user_id AND m.role = 'tutor'
		WHERE g.section_id = $1
		ORDER BY g.date, g.check_in
	`
	rows, err = q.Query(ctx, guardianQuery, sectionID)
	if err != nil {
		return attendance.Sheet{}, fmt.Errorf("failed to fetch guardian attendance: %w", err)
	}
	guardians, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (attendance.GuardianAttendance, error) {
		var rec attendance.GuardianAttendance
		var date, in, out time.Time
		var status string
		if err := row.Scan(&rec.GuardianUserID, &date, &status, &in, &out, &rec.Name); err != nil {
			return rec, err
		}
		rec.Date = date.Format(attendance.DateLayout)
		rec.Status = attendance.Status(status)
		rec.CheckIn = attendance.TimeOfDayOf(in.In(g.loc))
		rec.CheckOut = attendance.TimeOfDayOf(out.In(g.loc))
		return rec, nil
	})
	if err != nil {
		return attendance.Sheet{}, fmt.Errorf("failed to scan guardian attendance: %w", err)
	}

	return attendance.Sheet{SectionID: sectionID, Students: students, Guardians: guardians}, nil
}

func scanStudent(row pgx.CollectableRow) (attendance.StudentAttendance, error) {
	var rec attendance.StudentAttendance
	var date time.Time
	var status string
	if err := row.Scan(&rec.LinkID, &date, &status, &rec.Name, &rec.Image); err != nil {
		return rec, err
	}
	rec.Date = date.Format(attendance.DateLayout)
	rec.Status = attendance.Status(status)
	return rec, nil
}

// SubmitAttendanceBatch implements attendance.Gateway. All records are
// written in one transaction; a later record for the same student and day
// overwrites the stored one.
func (g *attendanceGateway) SubmitAttendanceBatch(ctx context.Context, req attendance.BatchRequest) error {
	return WithTransaction(ctx, g.db, func(ctx context.Context) error {
		q := GetQuerier(ctx, g.db)

		query := `
			INSERT INTO student_attendance (id, section_id, link_id, date, status)
			VALUES ($1, $2, $3, $4::date, $5)
			ON CONFLICT (link_id, date) DO UPDATE
			SET status = EXCLUDED.status, section_id = EXCLUDED.section_id, updated_at = NOW()
		`
		for _, r := range req.Records {
			if _, err := q.Exec(ctx, query, uuid.New(), req.SectionID, r.LinkID, r.Date, string(r.Status)); err != nil {
				return fmt.Errorf("failed to save attendance for %s: %w", r.LinkID, err)
			}
		}
		return nil
	})
}

// SubmitGuardianRecord implements attendance.Gateway. An attended window that
// overlaps another attended window of the same user in any section is
// rejected with attendance.ErrScheduleConflict.
func (g *attendanceGateway) SubmitGuardianRecord(ctx context.Context, sectionID string, rec attendance.GuardianAttendance) error {
	in, err := rec.CheckIn.On(rec.Date, g.loc)
	if err != nil {
		return fmt.Errorf("invalid guardian date: %w", err)
	}
	out, err := rec.CheckOut.On(rec.Date, g.loc)
	if err != nil {
		return fmt.Errorf("invalid guardian date: %w", err)
	}

	return WithTransaction(ctx, g.db, func(ctx context.Context) error {
		q := GetQuerier(ctx, g.db)

		if _, err := q.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, rec.GuardianUserID); err != nil {
			return fmt.Errorf("failed to lock guardian schedule: %w", err)
		}

		if rec.Status == attendance.StatusAttended {
			var overlaps bool
			err := q.QueryRow(ctx, `
				SELECT EXISTS (
					SELECT 1 FROM guardian_attendance
					WHERE user_id = $1
					  AND status = 'attended'
					  AND NOT (section_id = $2 AND date = $3::date)
					  AND tstzrange(check_in, check_out) && tstzrange($4, $5)
				)
			`, rec.GuardianUserID, sectionID, rec.Date, in, out).Scan(&overlaps)
			if err != nil {
				return fmt.Errorf("failed to check guardian schedule: %w", err)
			}
			if overlaps {
				return attendance.ErrScheduleConflict
			}
		}

		_, err := q.Exec(ctx, `
			INSERT INTO guardian_attendance (id, section_id, user_id, date, status, check_in, check_out)
			VALUES ($1, $2, $3, $4::date, $5, $6, $7)
			ON CONFLICT (section_id, user_id, date) DO UPDATE
			SET status = EXCLUDED.status, check_in = EXCLUDED.check_in, check_out = EXCLUDED.check_out
		`, uuid.New(), sectionID, rec.GuardianUserID, rec.Date, string(rec.Status), in, out)
		if err != nil {
			return fmt.Errorf("failed to save guardian attendance: %w", err)
		}
		return nil
	})
}

// FetchMonthHistory implements attendance.Gateway.
func (g *attendanceGateway) FetchMonthHistory(ctx context.Context, sectionID string, month, year int) (attendance.HistoryBucket, error) {
	q := GetQuerier(ctx, g.db)

	from := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, 0)

	query := `
		SELECT a.link_id, a.date, a.status, COALESCE(m.name, ''), COALESCE(m.image, '')
		FROM student_attendance a
		LEFT JOIN section_members m ON m.link_id = a.link_id
		WHERE a.section_id = $1 AND a.date >= $2 AND a.date < $3
		ORDER BY a.date, m.name
	`
	rows, err := q.Query(ctx, query, sectionID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch month history: %w", err)
	}
	records, err := pgx.CollectRows(rows, scanStudent)
	if err != nil {
		return nil, fmt.Errorf("failed to scan month history: %w", err)
	}

	bucket := make(attendance.HistoryBucket)
	for _, r := range records {
		bucket[r.Date] = append(bucket[r.Date], r)
	}
	return bucket, nil
}

func NewAttendanceGateway(db *database.DB, loc *time.Location) attendance.Gateway {
	if loc == nil {
		loc = time.Local
	}
	return &attendanceGateway{db: db, sections: NewSectionRepository(db), loc: loc}
}
