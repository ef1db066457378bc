package desk

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/tutorias/attendance-desk/internal/domain/attendance"
	"github.com/tutorias/attendance-desk/internal/domain/section"
)

var iconGlyph = map[attendance.Icon]string{
	attendance.IconNone:     "·",
	attendance.IconCheck:    "✓",
	attendance.IconCross:    "✗",
	attendance.IconTriangle: "!",
}

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
}

func renderSections(w io.Writer, sections []section.Section) {
	if len(sections) == 0 {
		fmt.Fprintln(w, "No sections assigned.")
		return
	}
	tw := newTable(w)
	fmt.Fprintln(tw, "ID\tNAME\tSTUDENTS\tTUTORS")
	for _, s := range sections {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\n", s.ID, s.Name, len(s.Students), len(s.Tutors))
	}
	tw.Flush()
}

// renderSheet lists every enrolled student, including those without a record
// yet, followed by today's guardian records.
func renderSheet(w io.Writer, roster section.Section, sheet attendance.Sheet, unsaved bool) {
	title := roster.Name
	if title == "" {
		title = sheet.SectionID
	}
	fmt.Fprintf(w, "%s · %s", title, sheet.Date)
	if unsaved {
		fmt.Fprint(w, " · unsaved changes")
	}
	fmt.Fprintln(w)

	byLink := make(map[string]attendance.StudentAttendance, len(sheet.Students))
	for _, r := range sheet.Students {
		byLink[r.LinkID] = r
	}

	tw := newTable(w)
	fmt.Fprintln(tw, "LINK\tSTUDENT\tSTATUS\tBADGE")
	for _, m := range roster.Students {
		r, ok := byLink[m.LinkID]
		if !ok {
			fmt.Fprintf(tw, "%s\t%s\t-\t%s\n", m.LinkID, m.Name, attendance.ToneNeutral)
			continue
		}
		delete(byLink, m.LinkID)
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", m.LinkID, m.Name, r.Status, attendance.ToneFor(string(r.Status)))
	}
	for _, r := range sheet.Students {
		if _, left := byLink[r.LinkID]; left {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.LinkID, r.Name, r.Status, attendance.ToneFor(string(r.Status)))
		}
	}
	tw.Flush()

	if len(sheet.Guardians) == 0 {
		return
	}
	fmt.Fprintln(w, "Guardians")
	tw = newTable(w)
	for _, g := range sheet.Guardians {
		name := g.Name
		if name == "" {
			name = g.GuardianUserID
		}
		fmt.Fprintf(tw, "%s\t%s\t%s-%s\n", name, g.Status, g.CheckIn, g.CheckOut)
	}
	tw.Flush()
}

func renderHistory(w io.Writer, view attendance.HistoryResponse) {
	fmt.Fprintf(w, "History %02d/%d\n", view.Month, view.Year)
	if len(view.ClassDays) == 0 {
		fmt.Fprintln(w, "No class days this month.")
		return
	}

	tw := newTable(w)
	fmt.Fprint(tw, "STUDENT")
	for _, d := range view.ClassDays {
		fmt.Fprintf(tw, "\t%s", d[len(d)-2:])
	}
	fmt.Fprintln(tw)
	for _, row := range view.Rows {
		fmt.Fprint(tw, row.Name)
		for _, c := range row.Cells {
			fmt.Fprintf(tw, "\t%s", iconGlyph[c.Icon])
		}
		fmt.Fprintln(tw)
	}
	tw.Flush()
}
