package attendance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/tutorias/attendance-desk/internal/domain/attendance"
	"github.com/tutorias/attendance-desk/internal/domain/section"
	"github.com/tutorias/attendance-desk/internal/pkg/validator"
)

// Editor holds one section's attendance for today: a working copy the
// operator edits and the baseline last read from or written to the backend.
// Network calls run without holding the lock; results that arrive after
// Close are discarded.
type Editor struct {
	gateway   attendance.Gateway
	sectionID string
	now       func() time.Time
	loc       *time.Location
	log       *slog.Logger

	mu         sync.Mutex
	roster     section.Section
	loadedDay  string
	working    []attendance.StudentAttendance
	baseline   []attendance.StudentAttendance
	guardians  []attendance.GuardianAttendance
	loaded     bool
	saving     bool
	closed     bool
	generation uint64
	dirty      bool
	onDirty    func(unsaved bool)
	lastUsed   time.Time

	// notifyMu serializes dirty callbacks; it is taken before mu.
	notifyMu  sync.Mutex
	delivered bool
}

type EditorOption func(*Editor)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) EditorOption {
	return func(e *Editor) { e.now = now }
}

// WithLocation sets the timezone that decides what "today" is.
func WithLocation(loc *time.Location) EditorOption {
	return func(e *Editor) { e.loc = loc }
}

func WithLogger(log *slog.Logger) EditorOption {
	return func(e *Editor) { e.log = log }
}

func NewEditor(gateway attendance.Gateway, sectionID string, opts ...EditorOption) *Editor {
	e := &Editor{
		gateway:   gateway,
		sectionID: sectionID,
		now:       time.Now,
		loc:       time.Local,
		log:       slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.log = e.log.With(slog.String("section_id", sectionID))
	e.lastUsed = e.now()
	return e
}

func (e *Editor) SectionID() string {
	return e.sectionID
}

func (e *Editor) today() string {
	return attendance.DateKey(e.now().In(e.loc))
}

// OnDirtyChange registers fn to run whenever HasUnsavedChanges flips. fn is
// called without the editor's lock held, one call at a time, and must not
// call back into the editor's mutating methods.
func (e *Editor) OnDirtyChange(fn func(unsaved bool)) {
	e.notifyMu.Lock()
	defer e.notifyMu.Unlock()
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onDirty = fn
	e.delivered = e.dirty
}

// LoadToday fetches the roster and all attendance of the section, keeps the
// records dated today and makes them both the working copy and the
// baseline. A load overtaken by a newer one returns
// attendance.ErrLoadSuperseded and changes nothing.
func (e *Editor) LoadToday(ctx context.Context) (attendance.Sheet, error) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return attendance.Sheet{}, attendance.ErrEditorClosed
	}
	if validator.IsEmpty(e.sectionID) {
		e.mu.Unlock()
		return attendance.Sheet{}, attendance.ErrSectionRequired
	}
	e.generation++
	gen := e.generation
	e.lastUsed = e.now()
	e.mu.Unlock()

	roster, err := e.gateway.FetchSection(ctx, e.sectionID)
	if err != nil {
		return attendance.Sheet{}, fmt.Errorf("fetch section: %w", err)
	}
	all, err := e.gateway.FetchAttendance(ctx, e.sectionID)
	if err != nil {
		return attendance.Sheet{}, fmt.Errorf("fetch attendance: %w", err)
	}

	today := e.today()
	students := dedupeByLink(filterStudents(all.Students, today))
	guardians := filterGuardians(all.Guardians, today)

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return attendance.Sheet{}, attendance.ErrEditorClosed
	}
	if gen != e.generation {
		e.mu.Unlock()
		return attendance.Sheet{}, attendance.ErrLoadSuperseded
	}

	e.roster = roster
	e.loadedDay = today
	e.working = cloneStudents(students)
	e.baseline = cloneStudents(students)
	e.guardians = guardians
	e.loaded = true
	sheet := e.sheetLocked()
	notify := e.refreshDirtyLocked()
	e.mu.Unlock()

	notify()
	e.log.Debug("Loaded today's attendance", slog.String("date", today), slog.Int("students", len(students)), slog.Int("guardians", len(guardians)))
	return sheet, nil
}

// SetStudentStatus records status for one student in the working copy. An
// existing record is updated in place and re-stamped with today's date and
// the roster's name and image; otherwise a record is appended.
func (e *Editor) SetStudentStatus(linkID string, status attendance.Status) error {
	if !status.Valid() {
		return fmt.Errorf("%w: %q", attendance.ErrUnknownStatus, status)
	}

	e.mu.Lock()
	if err := e.readyLocked(); err != nil {
		e.mu.Unlock()
		return err
	}

	member, inRoster := e.roster.StudentByLink(linkID)
	idx := indexOfLink(e.working, linkID)
	if idx < 0 && !inRoster {
		e.mu.Unlock()
		return fmt.Errorf("%w: %s", attendance.ErrStudentNotInSection, linkID)
	}

	today := e.today()
	if idx >= 0 {
		rec := &e.working[idx]
		rec.Status = status
		rec.Date = today
		if inRoster {
			rec.Name = member.Name
			rec.Image = member.Image
		}
	} else {
		e.working = append(e.working, attendance.StudentAttendance{
			LinkID: linkID,
			Date:   today,
			Status: status,
			Name:   member.Name,
			Image:  member.Image,
		})
	}
	notify := e.refreshDirtyLocked()
	e.mu.Unlock()

	notify()
	return nil
}

// HasUnsavedChanges reports whether the working copy differs from the
// baseline. Record order does not matter.
func (e *Editor) HasUnsavedChanges() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return studentsDiffer(e.working, e.baseline)
}

// Save submits every record of the working copy as one batch. On success
// the submitted records become the baseline. On failure the working copy is
// kept so the operator can retry.
func (e *Editor) Save(ctx context.Context) (attendance.Sheet, error) {
	e.mu.Lock()
	if validator.IsEmpty(e.sectionID) {
		e.mu.Unlock()
		return attendance.Sheet{}, attendance.ErrSectionRequired
	}
	if err := e.readyLocked(); err != nil {
		e.mu.Unlock()
		return attendance.Sheet{}, err
	}
	if e.saving {
		e.mu.Unlock()
		return attendance.Sheet{}, attendance.ErrSaveInProgress
	}
	if !studentsDiffer(e.working, e.baseline) {
		e.mu.Unlock()
		return attendance.Sheet{}, attendance.ErrNothingToSave
	}

	submitted := cloneStudents(e.working)
	gen := e.generation
	e.saving = true
	e.mu.Unlock()

	req := attendance.BatchRequest{SectionID: e.sectionID, Records: make([]attendance.BatchRecord, 0, len(submitted))}
	for _, r := range submitted {
		req.Records = append(req.Records, attendance.BatchRecord{LinkID: r.LinkID, Date: r.Date, Status: r.Status})
	}
	err := e.gateway.SubmitAttendanceBatch(ctx, req)

	e.mu.Lock()
	e.saving = false
	if e.closed {
		e.mu.Unlock()
		return attendance.Sheet{}, attendance.ErrEditorClosed
	}
	if err != nil {
		e.mu.Unlock()
		if errors.Is(err, attendance.ErrScheduleConflict) {
			return attendance.Sheet{}, fmt.Errorf("save attendance: %w", err)
		}
		e.log.Warn("Attendance batch save failed", slog.Any("error", err))
		return attendance.Sheet{}, fmt.Errorf("%w: %w", attendance.ErrSaveFailed, err)
	}

	if gen == e.generation {
		e.baseline = submitted
	}
	sheet := e.sheetLocked()
	notify := e.refreshDirtyLocked()
	e.mu.Unlock()

	notify()
	e.log.Info("Attendance batch saved", slog.Int("records", len(submitted)))
	return sheet, nil
}

// AddGuardianRecord validates and submits one guardian record on its own.
// Validation failures never reach the backend.
func (e *Editor) AddGuardianRecord(ctx context.Context, req attendance.GuardianRecordRequest) (attendance.GuardianAttendance, error) {
	if err := req.Validate(); err != nil {
		return attendance.GuardianAttendance{}, err
	}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return attendance.GuardianAttendance{}, attendance.ErrEditorClosed
	}
	if validator.IsEmpty(e.sectionID) {
		e.mu.Unlock()
		return attendance.GuardianAttendance{}, attendance.ErrSectionRequired
	}
	record := req.ToRecord(e.today())
	if e.loaded && len(e.roster.Tutors) > 0 {
		tutor, ok := e.roster.TutorByUser(record.GuardianUserID)
		if !ok {
			e.mu.Unlock()
			return attendance.GuardianAttendance{}, fmt.Errorf("%w: %s", attendance.ErrGuardianNotInSection, record.GuardianUserID)
		}
		record.Name = tutor.Name
	}
	e.lastUsed = e.now()
	e.mu.Unlock()

	if err := e.gateway.SubmitGuardianRecord(ctx, e.sectionID, record); err != nil {
		if errors.Is(err, attendance.ErrScheduleConflict) {
			return attendance.GuardianAttendance{}, fmt.Errorf("add guardian record: %w", err)
		}
		return attendance.GuardianAttendance{}, fmt.Errorf("%w: %w", attendance.ErrSaveFailed, err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return record, nil
	}
	if e.loaded && record.Date == e.loadedDay {
		e.guardians = upsertGuardian(e.guardians, record)
	}
	return record, nil
}

// Revert discards unsaved edits.
func (e *Editor) Revert() (attendance.Sheet, error) {
	e.mu.Lock()
	if err := e.readyLocked(); err != nil {
		e.mu.Unlock()
		return attendance.Sheet{}, err
	}
	e.working = cloneStudents(e.baseline)
	sheet := e.sheetLocked()
	notify := e.refreshDirtyLocked()
	e.mu.Unlock()

	notify()
	return sheet, nil
}

// Snapshot returns the working copy and whether it has unsaved changes.
func (e *Editor) Snapshot() (attendance.Sheet, bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.readyLocked(); err != nil {
		return attendance.Sheet{}, false, err
	}
	return e.sheetLocked(), studentsDiffer(e.working, e.baseline), nil
}

// Roster returns the section as fetched by the last load.
func (e *Editor) Roster() section.Section {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.roster
}

// Close marks the editor dead. In-flight calls finish but their results are
// dropped.
func (e *Editor) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	e.onDirty = nil
}

// IdleSince returns when the editor was last used.
func (e *Editor) IdleSince() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastUsed
}

func (e *Editor) readyLocked() error {
	if e.closed {
		return attendance.ErrEditorClosed
	}
	if !e.loaded {
		return attendance.ErrSessionNotLoaded
	}
	e.lastUsed = e.now()
	return nil
}

func (e *Editor) sheetLocked() attendance.Sheet {
	return attendance.Sheet{
		SectionID: e.sectionID,
		Date:      e.loadedDay,
		Students:  cloneStudents(e.working),
		Guardians: append([]attendance.GuardianAttendance(nil), e.guardians...),
	}
}

// refreshDirtyLocked recomputes the dirty flag and returns a func that
// reports a change to the listener. Call the func after unlocking.
func (e *Editor) refreshDirtyLocked() func() {
	e.dirty = studentsDiffer(e.working, e.baseline)
	if e.onDirty == nil {
		return func() {}
	}
	return e.deliverDirty
}

// deliverDirty reports the flag as it is now, not as it was when the edit
// happened, so racing edits cannot leave the listener on a stale value.
func (e *Editor) deliverDirty() {
	e.notifyMu.Lock()
	defer e.notifyMu.Unlock()

	e.mu.Lock()
	dirty, fn := e.dirty, e.onDirty
	e.mu.Unlock()

	if fn == nil || dirty == e.delivered {
		return
	}
	e.delivered = dirty
	fn(dirty)
}

type dayStatus struct {
	date   string
	status attendance.Status
}

func studentsDiffer(a, b []attendance.StudentAttendance) bool {
	if len(a) != len(b) {
		return true
	}
	index := make(map[string]dayStatus, len(b))
	for _, r := range b {
		index[r.LinkID] = dayStatus{r.Date, r.Status}
	}
	for _, r := range a {
		if v, ok := index[r.LinkID]; !ok || v != (dayStatus{r.Date, r.Status}) {
			return true
		}
	}
	return false
}

func filterStudents(records []attendance.StudentAttendance, day string) []attendance.StudentAttendance {
	var out []attendance.StudentAttendance
	for _, r := range records {
		if r.Date == day {
			out = append(out, r)
		}
	}
	return out
}

func filterGuardians(records []attendance.GuardianAttendance, day string) []attendance.GuardianAttendance {
	var out []attendance.GuardianAttendance
	for _, r := range records {
		if r.Date == day {
			out = append(out, r)
		}
	}
	return out
}

// dedupeByLink keeps the last record per student, in first-seen order.
func dedupeByLink(records []attendance.StudentAttendance) []attendance.StudentAttendance {
	out := make([]attendance.StudentAttendance, 0, len(records))
	for _, r := range records {
		if i := indexOfLink(out, r.LinkID); i >= 0 {
			out[i] = r
			continue
		}
		out = append(out, r)
	}
	return out
}

func upsertGuardian(records []attendance.GuardianAttendance, rec attendance.GuardianAttendance) []attendance.GuardianAttendance {
	for i := range records {
		if records[i].GuardianUserID == rec.GuardianUserID {
			records[i] = rec
			return records
		}
	}
	return append(records, rec)
}

func indexOfLink(records []attendance.StudentAttendance, linkID string) int {
	for i := range records {
		if records[i].LinkID == linkID {
			return i
		}
	}
	return -1
}

func cloneStudents(records []attendance.StudentAttendance) []attendance.StudentAttendance {
	return append([]attendance.StudentAttendance(nil), records...)
}
