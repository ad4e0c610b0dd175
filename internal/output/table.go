package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/pankaj-dahiya-devops/infraaudit/internal/models"
)

// ANSI color codes for status output (used when Colored=true).
const (
	ansiReset   = "\033[0m"
	ansiBoldRed = "\033[1;31m"
	ansiRed     = "\033[0;31m"
	ansiYellow  = "\033[0;33m"
	ansiGreen   = "\033[0;32m"
)

// TableOptions controls which rows and columns RenderTable renders and how
// status is coloured.
type TableOptions struct {
	// Colored wraps status labels with ANSI codes. Default false (CI-safe).
	Colored bool

	// FailuresOnly hides PASS results.
	FailuresOnly bool

	// IncludeCheck adds a CHECK column.
	IncludeCheck bool
}

func statusColor(st models.Status) string {
	switch st {
	case models.StatusFail:
		return ansiBoldRed
	case models.StatusError:
		return ansiRed
	case models.StatusWarn:
		return ansiYellow
	case models.StatusPass:
		return ansiGreen
	default:
		return ""
	}
}

// ColorStatus wraps a status string with ANSI codes when colored is true.
// When colored is false the string is returned unchanged (CI-safe default).
func ColorStatus(st models.Status, colored bool) string {
	code := statusColor(st)
	if !colored || code == "" {
		return string(st)
	}
	return code + string(st) + ansiReset
}

// ShortenMessage truncates msg to at most max runes, appending "..." when truncated.
// max is treated as at least 4 to guarantee space for the ellipsis.
func ShortenMessage(msg string, max int) string {
	if max < 4 {
		max = 4
	}
	runes := []rune(msg)
	if len(runes) <= max {
		return msg
	}
	return string(runes[:max-3]) + "..."
}

// statusCell returns the status padded to width characters.
// When colored, ANSI codes wrap only the text; trailing padding spaces are plain
// so subsequent columns stay visually aligned regardless of terminal ANSI support.
func statusCell(st models.Status, width int, colored bool) string {
	text := string(st)
	code := statusColor(st)
	if !colored || code == "" {
		return fmt.Sprintf("%-*s", width, text)
	}
	spaces := width - len(text)
	if spaces < 0 {
		spaces = 0
	}
	return code + text + ansiReset + strings.Repeat(" ", spaces)
}

// truncateField shortens s to at most max runes for ID/label columns.
// A single-char ellipsis replaces the last rune when truncation occurs.
func truncateField(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-1]) + "…"
}

// RenderTable writes a formatted results table to w.
// Columns are dynamically selected based on opts; the separator line width is
// derived from the header row so all rows align correctly.
//
// Column order:
//
//	[CHECK]  RESOURCE ID  STATUS  MESSAGE
func RenderTable(w io.Writer, results []models.CheckResult, opts TableOptions) {
	rows := results
	if opts.FailuresOnly {
		rows = make([]models.CheckResult, 0, len(results))
		for _, r := range results {
			if r.Status != models.StatusPass {
				rows = append(rows, r)
			}
		}
	}

	if len(rows) == 0 {
		fmt.Fprintln(w, "No results.")
		return
	}

	// Fixed column display widths.
	const (
		wCheck    = 34
		wResource = 36
		wStatus   = 6
		wMessage  = 70
	)

	var hb strings.Builder
	if opts.IncludeCheck {
		hb.WriteString(fmt.Sprintf("%-*s  ", wCheck, "CHECK"))
	}
	hb.WriteString(fmt.Sprintf("%-*s", wResource, "RESOURCE ID"))
	hb.WriteString(fmt.Sprintf("  %-*s", wStatus, "STATUS"))
	hb.WriteString(fmt.Sprintf("  %-*s", wMessage, "MESSAGE"))
	header := strings.TrimRight(hb.String(), " ")

	fmt.Fprintln(w, header)
	fmt.Fprintln(w, strings.Repeat("-", len(header)))

	for _, r := range rows {
		var rb strings.Builder
		if opts.IncludeCheck {
			rb.WriteString(fmt.Sprintf("%-*s  ", wCheck, truncateField(r.CheckID, wCheck)))
		}
		rb.WriteString(fmt.Sprintf("%-*s", wResource, truncateField(r.ResourceID, wResource)))
		rb.WriteString("  " + statusCell(r.Status, wStatus, opts.Colored))
		rb.WriteString("  " + ShortenMessage(r.Message, wMessage))
		fmt.Fprintln(w, rb.String())
	}
}

// RenderSummary writes the audit header and per-status counts of rec to w.
func RenderSummary(w io.Writer, rec *models.AuditRecord) {
	fmt.Fprintf(w, "Audit:    %s\n", rec.AuditID)
	fmt.Fprintf(w, "Account:  %s\n", rec.AccountID)
	fmt.Fprintf(w, "Role:     %s\n", rec.RoleName)
	fmt.Fprintf(w, "Status:   %s\n", rec.Status)

	if rec.Error != "" {
		fmt.Fprintf(w, "Error:    %s\n", rec.Error)
		return
	}
	if rec.Summary == nil {
		return
	}

	s := rec.Summary
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Total Results:  %d\n", s.Total)
	fmt.Fprintf(w, "  %-6s  %d\n", models.StatusPass, s.Pass)
	fmt.Fprintf(w, "  %-6s  %d\n", models.StatusFail, s.Fail)
	fmt.Fprintf(w, "  %-6s  %d\n", models.StatusWarn, s.Warn)
	fmt.Fprintf(w, "  %-6s  %d\n", models.StatusError, s.Error)
}
