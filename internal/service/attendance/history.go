package attendance

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/tutorias/attendance-desk/internal/domain/attendance"
	"github.com/tutorias/attendance-desk/internal/domain/section"
	"github.com/tutorias/attendance-desk/internal/pkg/cache"
	"github.com/tutorias/attendance-desk/internal/pkg/validator"
)

// DefaultMinHistoryYear is the first year with attendance data.
const DefaultMinHistoryYear = 2025

// HistoryOptions configures NewHistoryViewer.
type HistoryOptions struct {
	// Cache holds fetched months and rosters. Nil disables caching.
	Cache    cache.Cache
	TTL      time.Duration
	MinYear  int
	Location *time.Location
	Logger   *slog.Logger
}

// HistoryViewer reads past attendance a month at a time. Class days are
// Saturdays; the per-month list is memoized for the viewer's lifetime.
type HistoryViewer struct {
	gateway attendance.Gateway
	cache   cache.Cache
	ttl     time.Duration
	minYear int
	loc     *time.Location
	log     *slog.Logger

	mu        sync.Mutex
	classDays map[string][]time.Time
	// generations is bumped by Invalidate. A fetch that started under an
	// older generation does not write its result to the cache.
	generations map[string]uint64
}

func NewHistoryViewer(gateway attendance.Gateway, opts HistoryOptions) *HistoryViewer {
	if opts.MinYear == 0 {
		opts.MinYear = DefaultMinHistoryYear
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &HistoryViewer{
		gateway:     gateway,
		cache:       opts.Cache,
		ttl:         opts.TTL,
		minYear:     opts.MinYear,
		loc:         opts.Location,
		log:         opts.Logger,
		classDays:   make(map[string][]time.Time),
		generations: make(map[string]uint64),
	}
}

// ClassDaysOfMonth returns the Saturdays of a month in ascending order.
// monthIndex is zero-based (0 = January); out-of-range values yield nil.
func (h *HistoryViewer) ClassDaysOfMonth(year, monthIndex int) []time.Time {
	if monthIndex < 0 || monthIndex > 11 {
		return nil
	}

	key := fmt.Sprintf("%d-%d", year, monthIndex)

	h.mu.Lock()
	defer h.mu.Unlock()

	days, ok := h.classDays[key]
	if !ok {
		days = saturdaysOf(year, time.Month(monthIndex+1), h.loc)
		h.classDays[key] = days
	}
	return append([]time.Time(nil), days...)
}

func saturdaysOf(year int, month time.Month, loc *time.Location) []time.Time {
	first := time.Date(year, month, 1, 0, 0, 0, 0, loc)
	offset := (int(time.Saturday) - int(first.Weekday()) + 7) % 7

	var days []time.Time
	for d := first.AddDate(0, 0, offset); d.Month() == month; d = d.AddDate(0, 0, 7) {
		days = append(days, d)
	}
	return days
}

// ClampYear raises years before the first supported year.
func (h *HistoryViewer) ClampYear(year int) int {
	if year < h.minYear {
		return h.minYear
	}
	return year
}

// HistoryCachePrefix is the cache prefix of every month cached for a section.
func HistoryCachePrefix(sectionID string) string {
	return "history:" + sectionID + ":"
}

func historyCacheKey(sectionID string, year, month int) string {
	return fmt.Sprintf("%s%d-%d", HistoryCachePrefix(sectionID), year, month)
}

func rosterCacheKey(sectionID string) string {
	return "roster:" + sectionID
}

// FetchMonthHistory returns a section's records for a month grouped by day.
// month is 1-12; year is clamped to the first supported year.
func (h *HistoryViewer) FetchMonthHistory(ctx context.Context, sectionID string, month, year int) (attendance.HistoryBucket, error) {
	if validator.IsEmpty(sectionID) {
		return nil, attendance.ErrSectionRequired
	}
	filter := attendance.HistoryFilter{Month: month, Year: year}
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	year = h.ClampYear(year)

	key := historyCacheKey(sectionID, year, month)
	if h.cache != nil {
		var cached attendance.HistoryBucket
		ok, err := h.cache.Get(ctx, key, &cached)
		if err != nil {
			h.log.Warn("History cache read failed", slog.String("key", key), slog.Any("error", err))
		} else if ok {
			return cached, nil
		}
	}

	gen := h.generation(sectionID)
	bucket, err := h.gateway.FetchMonthHistory(ctx, sectionID, month, year)
	if err != nil {
		return nil, fmt.Errorf("fetch month history: %w", err)
	}
	if bucket == nil {
		bucket = attendance.HistoryBucket{}
	}

	if h.cache != nil && h.generation(sectionID) == gen {
		if err := h.cache.Set(ctx, key, bucket, h.ttl); err != nil {
			h.log.Warn("History cache write failed", slog.String("key", key), slog.Any("error", err))
		}
	}
	return bucket, nil
}

func (h *HistoryViewer) generation(sectionID string) uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.generations[sectionID]
}

// Invalidate drops every cached month of a section. Fetches still in flight
// when it runs are not cached.
func (h *HistoryViewer) Invalidate(ctx context.Context, sectionID string) error {
	h.mu.Lock()
	h.generations[sectionID]++
	h.mu.Unlock()

	if h.cache == nil {
		return nil
	}
	return h.cache.DeletePrefix(ctx, HistoryCachePrefix(sectionID))
}

func (h *HistoryViewer) roster(ctx context.Context, sectionID string) (section.Section, error) {
	key := rosterCacheKey(sectionID)
	if h.cache != nil {
		var cached section.Section
		if ok, err := h.cache.Get(ctx, key, &cached); err == nil && ok {
			return cached, nil
		}
	}

	s, err := h.gateway.FetchSection(ctx, sectionID)
	if err != nil {
		return section.Section{}, fmt.Errorf("fetch section: %w", err)
	}
	if h.cache != nil {
		if err := h.cache.Set(ctx, key, s, h.ttl); err != nil {
			h.log.Warn("Roster cache write failed", slog.String("key", key), slog.Any("error", err))
		}
	}
	return s, nil
}

// MonthView lays a month out as one row per student and one cell per class
// day. Cells without a record are marked as not recorded.
func (h *HistoryViewer) MonthView(ctx context.Context, sectionID string, filter attendance.HistoryFilter) (attendance.HistoryResponse, error) {
	if err := filter.Validate(); err != nil {
		return attendance.HistoryResponse{}, err
	}
	year := h.ClampYear(filter.Year)

	bucket, err := h.FetchMonthHistory(ctx, sectionID, filter.Month, year)
	if err != nil {
		return attendance.HistoryResponse{}, err
	}
	roster, err := h.roster(ctx, sectionID)
	if err != nil {
		return attendance.HistoryResponse{}, err
	}

	days := h.ClassDaysOfMonth(year, filter.Month-1)
	resp := attendance.HistoryResponse{
		SectionID: sectionID,
		Month:     filter.Month,
		Year:      year,
		ClassDays: make([]string, 0, len(days)),
		Rows:      []attendance.HistoryRow{},
	}
	for _, d := range days {
		resp.ClassDays = append(resp.ClassDays, attendance.DateKey(d))
	}

	for _, student := range studentsForView(roster, bucket) {
		row := attendance.HistoryRow{
			LinkID: student.LinkID,
			Name:   student.Name,
			Image:  student.Image,
			Cells:  make([]attendance.HistoryCell, 0, len(days)),
		}
		for _, d := range days {
			cell := attendance.HistoryCell{Date: attendance.DateKey(d)}
			if status, ok := bucket.StatusOf(student.LinkID, d); ok {
				cell.Recorded = true
				cell.Status = status
				cell.Icon = attendance.IconFor(string(status))
			}
			row.Cells = append(row.Cells, cell)
		}
		resp.Rows = append(resp.Rows, row)
	}
	return resp, nil
}

// studentsForView lists the roster, followed by students that only appear
// in the month's records (for example, since unenrolled), sorted by name.
func studentsForView(roster section.Section, bucket attendance.HistoryBucket) []section.Member {
	members := append([]section.Member(nil), roster.Students...)
	seen := make(map[string]bool, len(members))
	for _, m := range members {
		seen[m.LinkID] = true
	}

	var extra []section.Member
	for _, records := range bucket {
		for _, r := range records {
			if seen[r.LinkID] {
				continue
			}
			seen[r.LinkID] = true
			extra = append(extra, section.Member{LinkID: r.LinkID, Name: r.Name, Image: r.Image})
		}
	}
	sort.Slice(extra, func(i, j int) bool { return extra[i].Name < extra[j].Name })
	return append(members, extra...)
}
