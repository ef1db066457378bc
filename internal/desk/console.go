// Package desk is the interactive attendance console. It runs the editor
// in-process and keeps the navigation guard armed while edits are unsaved.
package desk

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/tutorias/attendance-desk/internal/domain/attendance"
	"github.com/tutorias/attendance-desk/internal/pkg/navguard"
	"github.com/tutorias/attendance-desk/internal/pkg/validator"
	attendanceService "github.com/tutorias/attendance-desk/internal/service/attendance"
)

const homePath = "/"

func attendancePath(sectionID string) string {
	return "/sections/" + url.PathEscape(sectionID) + "/attendance"
}

func historyPath(sectionID string, month, year int) string {
	q := url.Values{}
	q.Set("month", strconv.Itoa(month))
	q.Set("year", strconv.Itoa(year))
	return "/sections/" + url.PathEscape(sectionID) + "/history?" + q.Encode()
}

type page int

const (
	pageHome page = iota
	pageAttendance
	pageHistory
)

type location struct {
	page      page
	sectionID string
	month     int
	year      int
}

func parseLocation(raw string) (location, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return location{}, err
	}

	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	switch {
	case u.Path == homePath || u.Path == "":
		return location{page: pageHome}, nil
	case len(parts) == 3 && parts[0] == "sections" && parts[2] == "attendance":
		return location{page: pageAttendance, sectionID: parts[1]}, nil
	case len(parts) == 3 && parts[0] == "sections" && parts[2] == "history":
		month, _ := strconv.Atoi(u.Query().Get("month"))
		year, _ := strconv.Atoi(u.Query().Get("year"))
		return location{page: pageHistory, sectionID: parts[1], month: month, year: year}, nil
	}
	return location{}, fmt.Errorf("unknown page %q", raw)
}

type Options struct {
	OperatorID string
	Locale     string
	Location   *time.Location
	Clock      func() time.Time
	Logger     *slog.Logger
}

// Console reads commands line by line. Moving between pages goes through
// the navigation model so the guard can stop it.
type Console struct {
	gateway attendance.Gateway
	history *attendanceService.HistoryViewer
	in      *bufio.Scanner
	out     io.Writer
	opts    Options
	log     *slog.Logger

	browser *navguard.Browser
	guard   *navguard.Guard

	editor *attendanceService.Editor
}

func New(gateway attendance.Gateway, history *attendanceService.HistoryViewer, in io.Reader, out io.Writer, opts Options) *Console {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Locale == "" {
		opts.Locale = "es"
	}

	c := &Console{
		gateway: gateway,
		history: history,
		in:      bufio.NewScanner(in),
		out:     out,
		opts:    opts,
		log:     opts.Logger,
	}

	prompter := &linePrompter{in: c.in, out: out}
	c.browser = navguard.NewBrowser(homePath, prompter)
	c.guard = navguard.New(c.browser, prompter,
		navguard.WithLocale(opts.Locale),
		navguard.WithLogger(opts.Logger),
	)
	return c
}

// Path returns the page being shown.
func (c *Console) Path() string {
	return c.browser.Router.Path()
}

// GuardState reports whether leaving the current page asks for confirmation.
func (c *Console) GuardState() navguard.State {
	return c.guard.State()
}

// Run executes commands until quit is confirmed, input ends or ctx is done.
func (c *Console) Run(ctx context.Context) error {
	defer c.shutdown()

	fmt.Fprintln(c.out, "Attendance desk. Type help for commands.")
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		fmt.Fprint(c.out, "> ")
		if !c.in.Scan() {
			fmt.Fprintln(c.out)
			return c.in.Err()
		}

		fields := strings.Fields(c.in.Text())
		if len(fields) == 0 {
			continue
		}

		quit, err := c.exec(ctx, fields[0], fields[1:])
		if err != nil {
			fmt.Fprintln(c.out, "Error:", describe(err))
		}
		if quit {
			return nil
		}
	}
}

func (c *Console) exec(ctx context.Context, cmd string, args []string) (quit bool, err error) {
	switch cmd {
	case "help", "?":
		c.help()
	case "sections":
		return false, c.listSections(ctx)
	case "open":
		if len(args) != 1 {
			return false, errors.New("usage: open <section>")
		}
		return false, c.click(ctx, attendancePath(args[0]))
	case "history":
		return false, c.openHistory(ctx, args)
	case "home":
		return false, c.click(ctx, homePath)
	case "back":
		return false, c.back(ctx)
	case "show":
		return false, c.show()
	case "set":
		if len(args) != 2 {
			return false, errors.New("usage: set <link> <status>")
		}
		return false, c.setStatus(args[0], args[1])
	case "guardian":
		return false, c.addGuardian(ctx, args)
	case "save":
		return false, c.save(ctx)
	case "revert":
		return false, c.revert()
	case "quit", "exit":
		return c.quit(ctx)
	default:
		return false, fmt.Errorf("unknown command %q", cmd)
	}
	return false, nil
}

func (c *Console) help() {
	fmt.Fprintln(c.out, `Commands:
  sections                         list your sections
  open <section>                   take today's attendance
  set <link> <status>              attended | absent | excused
  guardian <user> <status> [HH:MM-HH:MM] [YYYY-MM-DD]
  save | revert | show
  history [month year]             monthly history of the open section
  home | back | quit`)
}

// click follows a link. The guard may cancel it.
func (c *Console) click(ctx context.Context, href string) error {
	navigated, err := c.browser.Click(ctx, href)
	if err != nil {
		return err
	}
	if !navigated {
		fmt.Fprintln(c.out, "Navigation cancelled.")
		return nil
	}
	return c.enter(ctx)
}

// push navigates programmatically. The guard may cancel it.
func (c *Console) push(ctx context.Context, path string) error {
	before := c.Path()
	if err := c.browser.Router.Push(ctx, path); err != nil {
		return err
	}
	if c.Path() == before && path != before {
		fmt.Fprintln(c.out, "Navigation cancelled.")
		return nil
	}
	return c.enter(ctx)
}

func (c *Console) back(ctx context.Context) error {
	if !c.browser.Back(ctx) {
		fmt.Fprintln(c.out, "Staying on this page.")
		return nil
	}
	return c.enter(ctx)
}

func (c *Console) quit(ctx context.Context) (bool, error) {
	ok, err := c.browser.Unload(ctx)
	if err != nil {
		return false, err
	}
	if !ok {
		fmt.Fprintln(c.out, "Staying on this page.")
	}
	return ok, nil
}

// enter renders the page the router now shows.
func (c *Console) enter(ctx context.Context) error {
	loc, err := parseLocation(c.Path())
	if err != nil {
		return err
	}

	switch loc.page {
	case pageAttendance:
		if c.editor != nil && c.editor.SectionID() == loc.sectionID {
			return c.show()
		}
		c.closeEditor()
		return c.openEditor(ctx, loc.sectionID)

	case pageHistory:
		c.closeEditor()
		view, err := c.history.MonthView(ctx, loc.sectionID, attendance.HistoryFilter{Month: loc.month, Year: loc.year})
		if err != nil {
			return err
		}
		renderHistory(c.out, view)
		return nil

	default:
		c.closeEditor()
		return c.listSections(ctx)
	}
}

func (c *Console) openEditor(ctx context.Context, sectionID string) error {
	e := attendanceService.NewEditor(c.gateway, sectionID,
		attendanceService.WithClock(c.opts.Clock),
		attendanceService.WithLocation(c.opts.Location),
		attendanceService.WithLogger(c.log),
	)
	e.OnDirtyChange(func(unsaved bool) {
		if err := c.guard.Sync(unsaved); err != nil {
			c.log.Warn("Failed to sync navigation guard", slog.Any("error", err))
		}
	})
	c.editor = e

	if _, err := e.LoadToday(ctx); err != nil {
		return err
	}
	return c.show()
}

// closeEditor drops the open editor. Its unsaved edits, if any, were
// already confirmed away by the guard.
func (c *Console) closeEditor() {
	if c.editor == nil {
		return
	}
	c.editor.Close()
	c.editor = nil
	if err := c.guard.Sync(false); err != nil {
		c.log.Warn("Failed to release navigation guard", slog.Any("error", err))
	}
}

func (c *Console) shutdown() {
	c.closeEditor()
	c.guard.Close()
}

func (c *Console) requireEditor() (*attendanceService.Editor, error) {
	if c.editor == nil {
		return nil, attendance.ErrSectionRequired
	}
	return c.editor, nil
}

func (c *Console) listSections(ctx context.Context) error {
	sections, err := c.gateway.FetchMySections(ctx, c.opts.OperatorID)
	if err != nil {
		return err
	}
	renderSections(c.out, sections)
	return nil
}

func (c *Console) show() error {
	e, err := c.requireEditor()
	if err != nil {
		return err
	}
	sheet, unsaved, err := e.Snapshot()
	if err != nil {
		return err
	}
	renderSheet(c.out, e.Roster(), sheet, unsaved)
	return nil
}

func (c *Console) setStatus(linkID, raw string) error {
	e, err := c.requireEditor()
	if err != nil {
		return err
	}
	status, err := attendance.ParseStatus(raw)
	if err != nil {
		return err
	}
	if err := e.SetStudentStatus(linkID, status); err != nil {
		return err
	}
	return c.show()
}

func (c *Console) save(ctx context.Context) error {
	e, err := c.requireEditor()
	if err != nil {
		return err
	}
	sheet, err := e.Save(ctx)
	if err != nil {
		return err
	}
	if err := c.history.Invalidate(ctx, e.SectionID()); err != nil {
		c.log.Warn("Failed to invalidate cached history", slog.Any("error", err))
	}
	fmt.Fprintf(c.out, "Saved %d records.\n", len(sheet.Students))
	return c.show()
}

func (c *Console) revert() error {
	e, err := c.requireEditor()
	if err != nil {
		return err
	}
	if _, err := e.Revert(); err != nil {
		return err
	}
	return c.show()
}

// addGuardian parses "guardian <user> <status> [HH:MM-HH:MM] [YYYY-MM-DD]".
// Without a date the record is for today.
func (c *Console) addGuardian(ctx context.Context, args []string) error {
	e, err := c.requireEditor()
	if err != nil {
		return err
	}
	if len(args) < 2 {
		return errors.New("usage: guardian <user> <status> [HH:MM-HH:MM] [YYYY-MM-DD]")
	}

	req := attendance.GuardianRecordRequest{
		GuardianUserID: args[0],
		Status:         args[1],
		FillToday:      true,
	}
	for _, arg := range args[2:] {
		if in, out, ok := strings.Cut(arg, "-"); ok && strings.Contains(in, ":") {
			req.CheckIn, req.CheckOut = &in, &out
			continue
		}
		req.Date = arg
		req.FillToday = false
	}

	record, err := e.AddGuardianRecord(ctx, req)
	if err != nil {
		return err
	}
	if err := c.history.Invalidate(ctx, e.SectionID()); err != nil {
		c.log.Warn("Failed to invalidate cached history", slog.Any("error", err))
	}
	fmt.Fprintf(c.out, "Guardian %s recorded for %s.\n", record.GuardianUserID, record.Date)
	return nil
}

func (c *Console) openHistory(ctx context.Context, args []string) error {
	loc, _ := parseLocation(c.Path())
	if loc.sectionID == "" {
		return attendance.ErrSectionRequired
	}

	now := c.opts.Clock().In(c.opts.Location)
	month, year := int(now.Month()), now.Year()
	switch len(args) {
	case 0:
	case 2:
		var err error
		if month, err = strconv.Atoi(args[0]); err != nil {
			return fmt.Errorf("month must be a number")
		}
		if year, err = strconv.Atoi(args[1]); err != nil {
			return fmt.Errorf("year must be a number")
		}
	default:
		return errors.New("usage: history [month year]")
	}
	return c.push(ctx, historyPath(loc.sectionID, month, year))
}

func describe(err error) string {
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		parts := make([]string, 0, len(validationErrs))
		for _, v := range validationErrs {
			parts = append(parts, v.Message)
		}
		return strings.Join(parts, "; ")
	}

	switch {
	case errors.Is(err, attendance.ErrSectionRequired):
		return "select a section first"
	case errors.Is(err, attendance.ErrScheduleConflict):
		return "the user has overlapping schedules"
	case errors.Is(err, attendance.ErrSaveFailed):
		return "failed to save attendance, your changes are kept"
	case errors.Is(err, attendance.ErrNothingToSave):
		return "there are no unsaved changes"
	}
	return err.Error()
}
