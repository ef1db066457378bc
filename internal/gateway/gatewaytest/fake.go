// Package gatewaytest provides an in-memory attendance gateway for tests.
package gatewaytest

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/tutorias/attendance-desk/internal/domain/attendance"
	"github.com/tutorias/attendance-desk/internal/domain/section"
)

// Fake stores sections and attendance in memory. Set the *Err fields to
// make the next calls fail.
type Fake struct {
	mu sync.Mutex

	Sections  map[string]section.Section
	Students  map[string][]attendance.StudentAttendance
	Guardians map[string][]attendance.GuardianAttendance

	FetchErr    error
	SubmitErr   error
	GuardianErr error

	// BeforeSubmit runs inside SubmitAttendanceBatch before the write,
	// without the fake's lock held.
	BeforeSubmit func()

	Batches         []attendance.BatchRequest
	GuardianRecords []attendance.GuardianAttendance
	FetchCalls      int
	HistoryCalls    int
}

var _ attendance.Gateway = (*Fake)(nil)

func New() *Fake {
	return &Fake{
		Sections:  make(map[string]section.Section),
		Students:  make(map[string][]attendance.StudentAttendance),
		Guardians: make(map[string][]attendance.GuardianAttendance),
	}
}

// AddSection registers a section roster.
func (f *Fake) AddSection(s section.Section) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Sections[s.ID] = s
}

// Seed appends stored student records for a section.
func (f *Fake) Seed(sectionID string, records ...attendance.StudentAttendance) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Students[sectionID] = append(f.Students[sectionID], records...)
}

func (f *Fake) FetchSection(_ context.Context, sectionID string) (section.Section, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.FetchErr != nil {
		return section.Section{}, f.FetchErr
	}
	s, ok := f.Sections[sectionID]
	if !ok {
		return section.Section{}, fmt.Errorf("%w: %s", section.ErrSectionNotFound, sectionID)
	}
	return s, nil
}

func (f *Fake) FetchMySections(_ context.Context, operatorID string) ([]section.Section, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []section.Section
	for _, s := range f.Sections {
		if _, ok := s.TutorByUser(operatorID); ok {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *Fake) FetchAttendance(_ context.Context, sectionID string) (attendance.Sheet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.FetchCalls++
	if f.FetchErr != nil {
		return attendance.Sheet{}, f.FetchErr
	}
	return attendance.Sheet{
		SectionID: sectionID,
		Students:  append([]attendance.StudentAttendance(nil), f.Students[sectionID]...),
		Guardians: append([]attendance.GuardianAttendance(nil), f.Guardians[sectionID]...),
	}, nil
}

func (f *Fake) SubmitAttendanceBatch(_ context.Context, req attendance.BatchRequest) error {
	if f.BeforeSubmit != nil {
		f.BeforeSubmit()
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.Batches = append(f.Batches, req)
	if f.SubmitErr != nil {
		return f.SubmitErr
	}

	stored := f.Students[req.SectionID]
	for _, r := range req.Records {
		replaced := false
		for i := range stored {
			if stored[i].LinkID == r.LinkID && stored[i].Date == r.Date {
				stored[i].Status = r.Status
				replaced = true
			}
		}
		if !replaced {
			stored = append(stored, attendance.StudentAttendance{LinkID: r.LinkID, Date: r.Date, Status: r.Status})
		}
	}
	f.Students[req.SectionID] = stored
	return nil
}

func (f *Fake) SubmitGuardianRecord(_ context.Context, sectionID string, record attendance.GuardianAttendance) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.GuardianRecords = append(f.GuardianRecords, record)
	if f.GuardianErr != nil {
		return f.GuardianErr
	}
	f.Guardians[sectionID] = append(f.Guardians[sectionID], record)
	return nil
}

func (f *Fake) FetchMonthHistory(_ context.Context, sectionID string, month, year int) (attendance.HistoryBucket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.HistoryCalls++
	if f.FetchErr != nil {
		return nil, f.FetchErr
	}

	prefix := fmt.Sprintf("%04d-%02d-", year, month)
	bucket := make(attendance.HistoryBucket)
	for _, r := range f.Students[sectionID] {
		if strings.HasPrefix(r.Date, prefix) {
			bucket[r.Date] = append(bucket[r.Date], r)
		}
	}
	return bucket, nil
}

// SubmitCount returns how many batch submissions were attempted.
func (f *Fake) SubmitCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Batches)
}

// GuardianSubmitCount returns how many guardian submissions were attempted.
func (f *Fake) GuardianSubmitCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.GuardianRecords)
}
