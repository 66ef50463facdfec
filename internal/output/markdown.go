package output

import (
	"fmt"
	"strings"
)

// MarkdownFormatter renders reports as markdown tables.
type MarkdownFormatter struct{}

// FormatReport renders a report as Markdown.
func (f *MarkdownFormatter) FormatReport(report *Report) (string, error) {
	if report == nil {
		return "", nil
	}

	var sb strings.Builder
	if report.Title != "" {
		sb.WriteString(fmt.Sprintf("# %s\n\n", escapeMarkdownCell(report.Title)))
	}

	for i, section := range report.Sections {
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(fmt.Sprintf("## %s\n\n", escapeMarkdownCell(section.Title)))

		if hasStatus(section) {
			sb.WriteString("| Check | Status | Detail |\n")
			sb.WriteString("|-------|--------|--------|\n")
			for _, row := range section.Rows {
				sb.WriteString(fmt.Sprintf("| %s | %s | %s |\n",
					escapeMarkdownCell(row.Key),
					statusLabel(row.Status),
					escapeMarkdownCell(row.Value)))
			}
			continue
		}

		sb.WriteString("| Key | Value |\n")
		sb.WriteString("|-----|-------|\n")
		for _, row := range section.Rows {
			sb.WriteString(fmt.Sprintf("| %s | %s |\n",
				escapeMarkdownCell(row.Key),
				escapeMarkdownCell(row.Value)))
		}
	}

	return sb.String(), nil
}

func escapeMarkdownCell(value string) string {
	return strings.ReplaceAll(value, "|", "\\|")
}
