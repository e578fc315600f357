package output

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/vulnverified/pry/internal/engine"
)

var tableHeaders = []string{"Target", "Phase", "Attempts", "Errors", "Throttles", "Credential"}

// WriteTable renders the per-target outcomes as a styled terminal table.
func WriteTable(w io.Writer, result *engine.RunResult, noColor bool) {
	if len(result.Targets) == 0 {
		fmt.Fprintln(w, "\nNo targets attempted.")
		return
	}

	rows := make([][]string, 0, len(result.Targets))
	for _, report := range result.Targets {
		cred := ""
		if report.Found != nil {
			cred = report.Found.Username + ":" + report.Found.Password
		}
		rows = append(rows, []string{
			report.Target.String(),
			string(report.Phase),
			strconv.Itoa(report.Attempts),
			strconv.Itoa(report.Errors),
			strconv.Itoa(report.Throttles),
			truncate(cred, 40),
		})
	}

	sort.Slice(rows, func(i, j int) bool {
		return rows[i][0] < rows[j][0]
	})

	fmt.Fprintln(w)

	if noColor {
		writeSimpleTable(w, rows)
		return
	}

	t := table.New().
		Headers(tableHeaders...).
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("240"))).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("252"))
			}
			if rows[row][1] == string(engine.PhaseSucceeded) {
				return lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
			}
			return lipgloss.NewStyle().Foreground(lipgloss.Color("250"))
		})

	for _, row := range rows {
		t.Row(row...)
	}

	fmt.Fprintln(w, t.Render())
}

func writeSimpleTable(w io.Writer, rows [][]string) {
	// Calculate column widths.
	widths := make([]int, len(tableHeaders))
	for i, h := range tableHeaders {
		widths[i] = len(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	// Print header.
	for i, h := range tableHeaders {
		if i > 0 {
			fmt.Fprint(w, " | ")
		}
		fmt.Fprintf(w, "%-*s", widths[i], h)
	}
	fmt.Fprintln(w)

	// Separator.
	for i, width := range widths {
		if i > 0 {
			fmt.Fprint(w, "-+-")
		}
		fmt.Fprint(w, strings.Repeat("-", width))
	}
	fmt.Fprintln(w)

	// Rows.
	for _, row := range rows {
		for i, cell := range row {
			if i > 0 {
				fmt.Fprint(w, " | ")
			}
			fmt.Fprintf(w, "%-*s", widths[i], cell)
		}
		fmt.Fprintln(w)
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
