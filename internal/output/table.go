package output

import (
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
)

// TableFormatter renders reports as ASCII tables, one per section.
type TableFormatter struct{}

// FormatReport renders a report as tables.
func (f *TableFormatter) FormatReport(report *Report) (string, error) {
	if report == nil {
		return "", nil
	}

	parts := make([]string, 0, len(report.Sections)+1)
	if report.Title != "" {
		parts = append(parts, report.Title)
	}

	for _, section := range report.Sections {
		t := table.NewWriter()
		t.SetStyle(table.StyleRounded)
		t.SetTitle(section.Title)

		withStatus := hasStatus(section)
		if withStatus {
			t.AppendHeader(table.Row{"Check", "Status", "Detail"})
		}

		for _, row := range section.Rows {
			if withStatus {
				t.AppendRow(table.Row{row.Key, statusLabel(row.Status), row.Value})
				continue
			}
			t.AppendRow(table.Row{row.Key, row.Value})
		}

		parts = append(parts, t.Render())
	}

	return strings.Join(parts, "\n\n"), nil
}
