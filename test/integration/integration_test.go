package integration

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/contactd/contactd/internal/config"
	"github.com/contactd/contactd/internal/core/dispatch"
	"github.com/contactd/contactd/internal/core/engine"
	"github.com/contactd/contactd/internal/observability"
	"github.com/contactd/contactd/internal/server"
)

// cleanupMetrics tears down global telemetry state so each test starts clean.
func cleanupMetrics(t *testing.T) {
	t.Helper()
	t.Cleanup(func() {
		if observability.PrometheusExporter != nil {
			_ = observability.PrometheusExporter.Stop()
			observability.PrometheusExporter = nil
		}
		observability.TelemetrySystem = nil
	})
}

// isPermissionError normalizes OS-specific permission errors (macOS/Linux/BSD)
// so we can gracefully skip when loopback sockets are blocked.
func isPermissionError(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, os.ErrPermission) || errors.Is(err, syscall.EACCES) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, fragment := range []string{"permission denied", "operation not permitted", "not permitted"} {
		if strings.Contains(msg, fragment) {
			return true
		}
	}

	return false
}

func initMetricsOrSkip(t *testing.T) {
	t.Helper()

	if err := observability.InitMetrics("test", 0, "test"); err != nil {
		if isPermissionError(err) {
			t.Skipf("skipping metrics tests due to sandbox permissions: %v", err)
		}
		require.NoError(t, err)
	}

	cleanupMetrics(t)
}

func listenOrSkip(t *testing.T) net.Listener {
	t.Helper()
	listener, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		if isPermissionError(err) {
			t.Skipf("skipping: loopback listen not permitted: %v", err)
		}
		require.NoError(t, err)
	}
	return listener
}

func baseConfig() *config.Config {
	return &config.Config{
		Mode:      config.ModeDevelopment,
		RateLimit: config.RateLimitConfig{Window: time.Minute},
		Dispatch:  config.DispatchConfig{Timeout: 2 * time.Second, MaxPerSecond: 50, Burst: 50},
		CORS:      config.CORSConfig{AllowedOrigins: []string{config.DevelopmentOrigin}},
		Metrics:   config.MetricsConfig{Enabled: true},
		Health:    config.HealthConfig{Enabled: true},
	}
}

// startServer runs the full router behind a real loopback listener.
func startServer(t *testing.T, cfg *config.Config, opts ...engine.Option) (*httptest.Server, *http.Client) {
	t.Helper()

	observability.InitServerLogger(observability.ServerLoggerOptions{Service: "test", Level: "error", Mode: "test"})

	d, err := dispatch.New(cfg)
	require.NoError(t, err)

	limiter := engine.NewRateLimiter(append([]engine.Option{engine.WithWindow(cfg.RateLimit.Window)}, opts...)...)
	t.Cleanup(limiter.Close)

	srv := server.New(server.Options{Config: cfg, Limiter: limiter, Dispatcher: d})

	ts := &httptest.Server{
		Listener: listenOrSkip(t),
		Config:   &http.Server{Handler: srv.Handler()},
	}
	ts.Start()
	t.Cleanup(ts.Close)
	return ts, ts.Client()
}

// fakeIndex is a minimal search backend recording indexed documents.
type fakeIndex struct {
	docs   chan map[string]any
	server *httptest.Server
}

func newFakeIndex(t *testing.T) *fakeIndex {
	t.Helper()
	fi := &fakeIndex{docs: make(chan map[string]any, 64)}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /contact-submissions/_doc", func(w http.ResponseWriter, r *http.Request) {
		var doc map[string]any
		if err := json.NewDecoder(r.Body).Decode(&doc); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		fi.docs <- doc
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"_id":"doc-1","result":"created"}`))
	})
	mux.HandleFunc("POST /contact-submissions/_search", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"hits":{"total":{"value":1},"hits":[{"_id":"doc-1"}]}}`))
	})
	mux.HandleFunc("GET /_cluster/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"cluster_name":"test","status":"green"}`))
	})

	fi.server = &httptest.Server{Listener: listenOrSkip(t), Config: &http.Server{Handler: mux}}
	fi.server.Start()
	t.Cleanup(fi.server.Close)
	return fi
}

func indexConfig(baseURL string) *config.Config {
	cfg := baseConfig()
	cfg.Dispatch.Mode = config.DispatchIndex
	cfg.Index = config.IndexConfig{BaseURL: baseURL, Name: "contact-submissions"}
	return cfg
}

func postContact(t *testing.T, client *http.Client, url, body, forwarded string) *http.Response {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, url+"/api/contact", strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if forwarded != "" {
		req.Header.Set("X-Forwarded-For", forwarded)
	}
	resp, err := client.Do(req)
	require.NoError(t, err)
	return resp
}
