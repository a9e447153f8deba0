// Package render turns enriched reports into Markdown, README sections and
// HTML pages.
package render

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/okian/xptrack/internal/domain/history"
	"github.com/okian/xptrack/pkg/metrics"
)

// README section markers.
const (
	StartMarker = "<!-- START AUTO-UPDATED SECTION -->"
	EndMarker   = "<!-- END AUTO-UPDATED SECTION -->"
)

var tableHeader = []string{"date", "rank", "rank delta", "experience", "experience delta", "level", "level delta"}

// Markdown renders the report as an aligned table with one row per point and
// a bold totals row.
func Markdown(report history.Report) string {
	rows := make([][]string, 0, len(report.History)+2)
	rows = append(rows, tableHeader)
	for _, p := range report.History {
		rows = append(rows, []string{
			p.Date,
			strconv.FormatInt(p.Rank, 10),
			showDeltaPtr(p.RankDelta),
			FormatInt(p.Experience),
			showDeltaPtr(p.ExperienceDelta),
			FormatInt(p.Level),
			showDeltaPtr(p.LevelDelta),
		})
	}
	meta := report.Meta
	rows = append(rows, []string{
		bold(FormatInt(int64(meta.Days)) + " days"),
		"",
		bold(ShowDelta(meta.RankDelta, false)),
		"",
		bold(ShowDelta(meta.ExperienceDelta, true)),
		"",
		bold(ShowDelta(meta.LevelDelta, false)),
	})

	metrics.RecordReportRendered("markdown")
	return table(rows)
}

func bold(s string) string {
	if s == "" {
		return s
	}
	return "**" + s + "**"
}

// table renders rows[0] as the header; the first column is left aligned,
// every other column right aligned.
func table(rows [][]string) string {
	widths := make([]int, len(tableHeader))
	for _, r := range rows {
		for i, cell := range r {
			widths[i] = max(widths[i], utf8.RuneCountInString(cell))
		}
	}

	var b strings.Builder
	writeRow := func(cells []string) {
		b.WriteByte('|')
		for i, cell := range cells {
			pad := strings.Repeat(" ", widths[i]-utf8.RuneCountInString(cell))
			if i == 0 {
				fmt.Fprintf(&b, " %s%s |", cell, pad)
			} else {
				fmt.Fprintf(&b, " %s%s |", pad, cell)
			}
		}
		b.WriteByte('\n')
	}

	writeRow(rows[0])
	b.WriteByte('|')
	for i, w := range widths {
		if i == 0 {
			fmt.Fprintf(&b, " %s |", strings.Repeat("-", w))
		} else {
			fmt.Fprintf(&b, " %s: |", strings.Repeat("-", w-1))
		}
	}
	b.WriteByte('\n')
	for _, r := range rows[1:] {
		writeRow(r)
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// PatchReadme replaces the text between StartMarker and EndMarker with table.
func PatchReadme(readme, table string) (string, error) {
	start := strings.Index(readme, StartMarker)
	if start < 0 {
		return "", ErrMarkersNotFound
	}
	start += len(StartMarker)
	end := strings.Index(readme[start:], EndMarker)
	if end < 0 {
		return "", ErrMarkersNotFound
	}
	end += start
	return readme[:start] + "\n" + table + "\n" + readme[end:], nil
}

// PatchReadmeFile applies PatchReadme to the file at path in place.
func PatchReadmeFile(path, table string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read readme: %w", err)
	}
	updated, err := PatchReadme(string(raw), table)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	if updated == string(raw) {
		return nil
	}
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat readme: %w", err)
	}
	if err := os.WriteFile(path, []byte(updated), info.Mode().Perm()); err != nil {
		return fmt.Errorf("write readme: %w", err)
	}
	return nil
}
