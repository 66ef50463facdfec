package observability

import "testing"

func TestLogLevel(t *testing.T) {
	for in, want := range map[string]string{
		"trace":   "TRACE",
		" Debug ": "DEBUG",
		"warn":    "WARN",
		"warning": "WARN",
		"ERROR":   "ERROR",
		"":        "INFO",
		"verbose": "INFO",
	} {
		if got := logLevel(in); got != want {
			t.Errorf("logLevel(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSinkFormat(t *testing.T) {
	if got := sinkFormat("Console"); got != "console" {
		t.Errorf("sinkFormat(Console) = %q", got)
	}
	if got := sinkFormat("xml"); got != "json" {
		t.Errorf("sinkFormat(xml) = %q", got)
	}
}
