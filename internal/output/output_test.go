package output

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestParseFormat(t *testing.T) {
	format, err := ParseFormat("table")
	require.NoError(t, err)
	require.Equal(t, FormatTable, format)

	format, err = ParseFormat("JSON")
	require.NoError(t, err)
	require.Equal(t, FormatJSON, format)

	format, err = ParseFormat("")
	require.NoError(t, err)
	require.Equal(t, FormatTable, format)

	format, err = ParseFormat("yml")
	require.NoError(t, err)
	require.Equal(t, FormatYAML, format)

	_, err = ParseFormat("csv")
	require.Error(t, err)
}

func sampleReport() *Report {
	r := &Report{Title: "contactd environment"}
	r.Add("Application", "Name", "contactd")
	r.Add("Application", "Version", "1.2.3")
	r.Add("Dispatch", "Mode", "mail|smtp")
	r.Check("Checks", "config", nil)
	r.Check("Checks", "smtp", errors.New("connection refused"))
	return r
}

func TestReportGroupsRowsBySection(t *testing.T) {
	r := sampleReport()

	require.Len(t, r.Sections, 3)
	require.Equal(t, "Application", r.Sections[0].Title)
	require.Len(t, r.Sections[0].Rows, 2)
	require.True(t, r.Failed())

	ok := &Report{}
	ok.Check("Checks", "config", nil)
	require.False(t, ok.Failed())
}

func TestFormatters(t *testing.T) {
	r := sampleReport()

	table, err := NewFormatter(FormatTable).FormatReport(r)
	require.NoError(t, err)
	require.Contains(t, table, "contactd environment")
	require.Contains(t, table, "Application")
	require.Contains(t, table, "FAIL")
	require.Contains(t, table, "connection refused")

	md, err := NewFormatter(FormatMarkdown).FormatReport(r)
	require.NoError(t, err)
	require.Contains(t, md, "## Dispatch")
	require.Contains(t, md, `mail\|smtp`)
	require.Contains(t, md, "| smtp | FAIL | connection refused |")

	js, err := NewFormatter(FormatJSON).FormatReport(r)
	require.NoError(t, err)
	var decoded Report
	require.NoError(t, json.Unmarshal([]byte(js), &decoded))
	require.Equal(t, StatusFail, decoded.Sections[2].Rows[1].Status)

	ym, err := NewFormatter(FormatYAML).FormatReport(r)
	require.NoError(t, err)
	var fromYAML Report
	require.NoError(t, yaml.Unmarshal([]byte(ym), &fromYAML))
	require.Equal(t, "contactd", fromYAML.Sections[0].Rows[0].Value)
}

func TestNilReport(t *testing.T) {
	for _, f := range []Format{FormatTable, FormatJSON, FormatMarkdown, FormatYAML} {
		rendered, err := NewFormatter(f).FormatReport(nil)
		require.NoError(t, err)
		require.Empty(t, strings.TrimSpace(rendered))
	}
}

func TestMarshalYAML(t *testing.T) {
	out, err := MarshalYAML(map[string]any{"server": map[string]any{"port": 3000}})
	require.NoError(t, err)
	require.Contains(t, out, "port: 3000")
}
