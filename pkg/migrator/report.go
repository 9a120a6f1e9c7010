package migrator

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/mouradhm/mongo-migrate/pkg/models"
)

const (
	nameWidth   = 20
	countWidth  = 10
	errorLength = 20
)

// Styles holds the styles used for the console report.
type Styles struct {
	Title    lipgloss.Style
	OK       lipgloss.Style
	Mismatch lipgloss.Style
}

// NewStyles returns report styles for w.
// Writers that are not color terminals get plain text.
func NewStyles(w io.Writer) Styles {
	r := lipgloss.NewRenderer(w)

	return Styles{
		Title:    r.NewStyle().Bold(true),
		OK:       r.NewStyle().Foreground(lipgloss.Color("#8BC34A")),
		Mismatch: r.NewStyle().Foreground(lipgloss.Color("#e53935")).Bold(true),
	}
}

// padRight pads s with spaces up to width visible cells.
func padRight(s string, width int) string {
	if w := lipgloss.Width(s); w < width {
		return s + strings.Repeat(" ", width-w)
	}
	return s
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func tableRow(name, source, target, status string) string {
	return padRight(name, nameWidth) + " " +
		padRight(source, countWidth) + " " +
		padRight(target, countWidth) + " " +
		status
}

// PrintReport writes report as a fixed-width table followed by the verdict.
func (m *Migrator) PrintReport(report models.Report) {
	w := m.out
	s := m.styles

	fmt.Fprintln(w)
	fmt.Fprintln(w, strings.Repeat("=", 60))
	fmt.Fprintln(w, s.Title.Render("MIGRATION REPORT"))
	fmt.Fprintln(w, strings.Repeat("=", 60))

	fmt.Fprintln(w, tableRow("Collection", "Source", "Target", "Status"))
	fmt.Fprintln(w, strings.Repeat("-", 50))

	for _, r := range report.Rows {
		switch {
		case r.Err != "":
			status := s.Mismatch.Render("ERROR " + truncate(r.Err, errorLength))
			fmt.Fprintln(w, tableRow(r.CollectionName, "ERROR", "ERROR", status))
		case r.Match():
			fmt.Fprintln(w, tableRow(r.CollectionName, fmtCount(r.SourceCount), fmtCount(r.TargetCount), s.OK.Render("OK")))
		default:
			fmt.Fprintln(w, tableRow(r.CollectionName, fmtCount(r.SourceCount), fmtCount(r.TargetCount), s.Mismatch.Render("MISMATCH")))
		}
	}

	fmt.Fprintln(w, strings.Repeat("-", 50))
	fmt.Fprintln(w, strings.TrimRight(tableRow("TOTAL", fmtCount(report.TotalSource), fmtCount(report.TotalTarget), ""), " "))

	verdict := s.OK.Render("SUCCESSFUL")
	if !report.Successful() {
		verdict = s.Mismatch.Render("INCOMPLETE")
	}
	fmt.Fprintf(w, "\nMigration %s\n", verdict)
}

// PrintSummary writes how many collections were processed successfully.
func (m *Migrator) PrintSummary(res *models.RunResult) {
	fmt.Fprintln(m.out, "\nMigration completed!")
	fmt.Fprintf(m.out, "Successfully migrated: %d/%d collections\n", res.SuccessCount(), len(res.Outcomes))

	for _, o := range res.Outcomes {
		if o.Success() {
			continue
		}
		fmt.Fprintf(m.out, "  - %s: %s\n", o.CollectionName, m.styles.Mismatch.Render("failed: "+o.ErrorMessage))
	}
}

func fmtCount(n int64) string {
	return strconv.FormatInt(n, 10)
}
