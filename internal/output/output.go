// Package output renders CLI reports as tables, JSON, markdown or YAML.
package output

import (
	"fmt"
	"strings"
)

// Format represents an output format.
type Format string

const (
	FormatTable    Format = "table"
	FormatJSON     Format = "json"
	FormatMarkdown Format = "markdown"
	FormatYAML     Format = "yaml"
)

// Row statuses understood by the formatters.
const (
	StatusPass = "pass"
	StatusFail = "fail"
	StatusWarn = "warn"
)

// Row is a single key/value line, optionally carrying a check status.
type Row struct {
	Key    string `json:"key" yaml:"key"`
	Value  string `json:"value" yaml:"value"`
	Status string `json:"status,omitempty" yaml:"status,omitempty"`
}

// Section groups rows under a heading.
type Section struct {
	Title string `json:"title" yaml:"title"`
	Rows  []Row  `json:"rows" yaml:"rows"`
}

// Report is what the envinfo, health and send-test commands print.
type Report struct {
	Title    string    `json:"title" yaml:"title"`
	Sections []Section `json:"sections" yaml:"sections"`
}

// Add appends a row to the section with the given title, creating it on
// first use.
func (r *Report) Add(section, key, value string) {
	r.add(section, Row{Key: key, Value: value})
}

// Check appends a row with a pass/fail status.
func (r *Report) Check(section, key string, err error) {
	row := Row{Key: key, Value: "ok", Status: StatusPass}
	if err != nil {
		row.Value = err.Error()
		row.Status = StatusFail
	}
	r.add(section, row)
}

// Failed reports whether any row carries a fail status.
func (r *Report) Failed() bool {
	for _, s := range r.Sections {
		for _, row := range s.Rows {
			if row.Status == StatusFail {
				return true
			}
		}
	}
	return false
}

func (r *Report) add(section string, row Row) {
	for i := range r.Sections {
		if r.Sections[i].Title == section {
			r.Sections[i].Rows = append(r.Sections[i].Rows, row)
			return
		}
	}
	r.Sections = append(r.Sections, Section{Title: section, Rows: []Row{row}})
}

// Formatter renders reports.
type Formatter interface {
	FormatReport(report *Report) (string, error)
}

// ParseFormat validates and normalizes a format string.
func ParseFormat(value string) (Format, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	switch normalized {
	case "", string(FormatTable):
		return FormatTable, nil
	case string(FormatJSON):
		return FormatJSON, nil
	case string(FormatMarkdown), "md":
		return FormatMarkdown, nil
	case string(FormatYAML), "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unsupported output format: %s", value)
	}
}

// NewFormatter returns a formatter for the requested format.
func NewFormatter(format Format) Formatter {
	switch format {
	case FormatJSON:
		return &JSONFormatter{Indent: true}
	case FormatMarkdown:
		return &MarkdownFormatter{}
	case FormatYAML:
		return &YAMLFormatter{}
	default:
		return &TableFormatter{}
	}
}

func statusLabel(status string) string {
	switch status {
	case StatusPass:
		return "PASS"
	case StatusFail:
		return "FAIL"
	case StatusWarn:
		return "WARN"
	default:
		return ""
	}
}

func hasStatus(s Section) bool {
	for _, row := range s.Rows {
		if row.Status != "" {
			return true
		}
	}
	return false
}
