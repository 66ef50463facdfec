package integration

import (
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contactd/contactd/internal/server/handlers"
)

func scrape(t *testing.T, client *http.Client, baseURL string) (string, *http.Response) {
	t.Helper()
	resp, err := client.Get(baseURL + "/metrics")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, resp.Body.Close())
	require.NoError(t, err)
	return string(body), resp
}

func TestMetricsCountSubmissionOutcomes(t *testing.T) {
	initMetricsOrSkip(t)
	handlers.InitHealthManager("test")

	fi := newFakeIndex(t)
	ts, client := startServer(t, indexConfig(fi.server.URL))

	script := []struct {
		body      string
		forwarded string
		status    int
	}{
		{`{"name":"Ada","email":"ada@example.com","message":"hi"}`, "198.18.0.1", http.StatusOK},
		{`{"name":"Ada","email":"ada@example.com","message":"again"}`, "198.18.0.1", http.StatusTooManyRequests},
		{`{"name":"Bob"}`, "198.18.0.2", http.StatusBadRequest},
		{`{"name":"Bot","email":"bot@example.com","message":"x","website":"spam"}`, "198.18.0.3", http.StatusOK},
	}
	for _, step := range script {
		resp := postContact(t, client, ts.URL, step.body, step.forwarded)
		require.NoError(t, resp.Body.Close())
		require.Equal(t, step.status, resp.StatusCode, step.body)
	}

	resp, err := client.Get(ts.URL + "/api/search?query=ada")
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, resp := scrape(t, client, ts.URL)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	assert.Contains(t, body, "test_http_requests_total")
	assert.Contains(t, body, "test_http_request_duration_ms")
	assert.Contains(t, body, "contact_submissions_total")
	assert.Contains(t, body, "contact_dispatch_total")
	assert.Contains(t, body, "contact_search_requests_total")
	for _, outcome := range []string{"accepted", "throttled", "rejected", "honeypot"} {
		assert.Contains(t, body, `outcome="`+outcome+`"`)
	}
}

func TestMetricsPrometheusTextFormat(t *testing.T) {
	initMetricsOrSkip(t)
	handlers.InitHealthManager("test")

	fi := newFakeIndex(t)
	ts, client := startServer(t, indexConfig(fi.server.URL))

	resp, err := client.Get(ts.URL + "/api/health")
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, resp := scrape(t, client, ts.URL)
	assert.True(t, strings.HasPrefix(resp.Header.Get("Content-Type"), "text/plain; version=0.0.4"),
		"unexpected content type %q", resp.Header.Get("Content-Type"))

	samples := 0
	for _, line := range strings.Split(body, "\n") {
		if line = strings.TrimSpace(line); line != "" && !strings.HasPrefix(line, "#") {
			samples++
		}
	}
	assert.Positive(t, samples)
}

func TestMetricsRouteAbsentWhenDisabled(t *testing.T) {
	fi := newFakeIndex(t)
	cfg := indexConfig(fi.server.URL)
	cfg.Metrics.Enabled = false
	ts, client := startServer(t, cfg)

	_, resp := scrape(t, client, ts.URL)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
