package handlers

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"time"

	apperrors "github.com/contactd/contactd/internal/errors"
	"github.com/contactd/contactd/internal/metrics"
)

// Check results.
const (
	checkHealthy   = "healthy"
	checkUnhealthy = "unhealthy"
	checkTimeout   = "timeout"
	checkDegraded  = "degraded"
)

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status    string            `json:"status"`
	Version   string            `json:"version"`
	Timestamp string            `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// ProbeResponse is the body of the Kubernetes-style probes.
type ProbeResponse struct {
	Status    string    `json:"status"`
	Probe     string    `json:"probe"`
	Timestamp time.Time `json:"timestamp"`
}

// HealthChecker is implemented by components the probes can interrogate:
// the rate limiter, the search index and the telemetry pipeline.
type HealthChecker interface {
	CheckHealth(ctx context.Context) error
}

// CheckerFunc adapts a function to HealthChecker.
type CheckerFunc func(ctx context.Context) error

// CheckHealth calls f.
func (f CheckerFunc) CheckHealth(ctx context.Context) error { return f(ctx) }

// probeSpec describes one health endpoint.
type probeSpec struct {
	name    string
	timeout time.Duration
	// skipChecks keeps liveness independent of downstream dependencies, so an
	// index outage never gets the process restarted.
	skipChecks bool
}

var (
	aggregateProbe = probeSpec{name: "aggregate", timeout: 5 * time.Second}
	liveProbe      = probeSpec{name: "live", timeout: time.Second, skipChecks: true}
	readyProbe     = probeSpec{name: "ready", timeout: 5 * time.Second}
	startupProbe   = probeSpec{name: "startup", timeout: 3 * time.Second}
)

// HealthManager owns the registered checkers.
type HealthManager struct {
	mu       sync.RWMutex
	checkers map[string]HealthChecker
	version  string
}

// NewHealthManager creates an empty manager reporting version.
func NewHealthManager(version string) *HealthManager {
	return &HealthManager{
		checkers: make(map[string]HealthChecker),
		version:  version,
	}
}

// RegisterChecker adds or replaces the checker stored under name.
func (hm *HealthManager) RegisterChecker(name string, checker HealthChecker) {
	hm.mu.Lock()
	defer hm.mu.Unlock()
	hm.checkers[name] = checker
}

func (hm *HealthManager) snapshot() ([]string, map[string]HealthChecker) {
	hm.mu.RLock()
	defer hm.mu.RUnlock()

	names := make([]string, 0, len(hm.checkers))
	checkers := make(map[string]HealthChecker, len(hm.checkers))
	for name, checker := range hm.checkers {
		names = append(names, name)
		checkers[name] = checker
	}
	sort.Strings(names)
	return names, checkers
}

// runHealthChecks runs every checker in name order. Checkers not reached
// before ctx expires are reported as timeouts.
func (hm *HealthManager) runHealthChecks(ctx context.Context) map[string]string {
	names, checkers := hm.snapshot()
	checks := make(map[string]string, len(names))
	for _, name := range names {
		if ctx.Err() != nil {
			checks[name] = checkTimeout
			continue
		}

		start := time.Now()
		err := checkers[name].CheckHealth(ctx)
		metrics.RecordHealthCheck(name, err == nil, time.Since(start))
		if err != nil {
			checks[name] = checkUnhealthy
		} else {
			checks[name] = checkHealthy
		}
	}
	return checks
}

// determineOverallStatus: any unhealthy check wins, then timeouts degrade.
func (hm *HealthManager) determineOverallStatus(checks map[string]string) string {
	status := checkHealthy
	for _, result := range checks {
		switch result {
		case checkUnhealthy:
			return checkUnhealthy
		case checkTimeout, checkDegraded:
			status = checkDegraded
		}
	}
	return status
}

func (hm *HealthManager) evaluate(r *http.Request, probe probeSpec) (string, map[string]string) {
	if probe.skipChecks {
		return checkHealthy, nil
	}
	ctx, cancel := context.WithTimeout(r.Context(), probe.timeout)
	defer cancel()

	checks := hm.runHealthChecks(ctx)
	return hm.determineOverallStatus(checks), checks
}

func (hm *HealthManager) serveProbe(probe probeSpec) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status, checks := hm.evaluate(r, probe)
		if status == checkUnhealthy {
			respondWithError(w, r, probeFailure(probe.name, status, checks))
			return
		}

		if probe == aggregateProbe {
			writeJSON(w, http.StatusOK, HealthResponse{
				Status:    status,
				Version:   hm.version,
				Timestamp: time.Now().UTC().Format(time.RFC3339),
				Checks:    checks,
			})
			return
		}
		writeJSON(w, http.StatusOK, ProbeResponse{
			Status:    status,
			Probe:     probe.name,
			Timestamp: time.Now().UTC(),
		})
	}
}

// probeFailure builds the 503 envelope. Check names and results go into
// Details; they carry no backend error text.
func probeFailure(probe, status string, checks map[string]string) error {
	details := map[string]interface{}{
		"probe":  probe,
		"status": status,
	}
	if len(checks) > 0 {
		details["checks"] = checks
	}
	return apperrors.NewServiceUnavailableError(probe + " health check failed").WithDetails(details)
}

// HealthHandler serves the aggregate report with per-check results.
func (hm *HealthManager) HealthHandler(w http.ResponseWriter, r *http.Request) {
	hm.serveProbe(aggregateProbe)(w, r)
}

// LivenessHandler reports that the process is serving requests.
func (hm *HealthManager) LivenessHandler(w http.ResponseWriter, r *http.Request) {
	hm.serveProbe(liveProbe)(w, r)
}

// ReadinessHandler reports whether the dispatcher and limiter can take traffic.
func (hm *HealthManager) ReadinessHandler(w http.ResponseWriter, r *http.Request) {
	hm.serveProbe(readyProbe)(w, r)
}

// StartupHandler reports whether initialization has finished.
func (hm *HealthManager) StartupHandler(w http.ResponseWriter, r *http.Request) {
	hm.serveProbe(startupProbe)(w, r)
}

var globalHealthManager *HealthManager

// InitHealthManager replaces the process-wide manager.
func InitHealthManager(version string) {
	globalHealthManager = NewHealthManager(version)
}

// GetHealthManager returns the process-wide manager, or nil before init.
func GetHealthManager() *HealthManager {
	return globalHealthManager
}

func globalProbe(probe probeSpec) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if hm := globalHealthManager; hm != nil {
			hm.serveProbe(probe)(w, r)
			return
		}
		respondWithError(w, r, probeFailure(probe.name, "unknown", nil))
	}
}

// HealthHandler serves GET /health through the process-wide manager.
func HealthHandler(w http.ResponseWriter, r *http.Request) { globalProbe(aggregateProbe)(w, r) }

// LivenessHandler serves GET /health/live through the process-wide manager.
func LivenessHandler(w http.ResponseWriter, r *http.Request) { globalProbe(liveProbe)(w, r) }

// ReadinessHandler serves GET /health/ready through the process-wide manager.
func ReadinessHandler(w http.ResponseWriter, r *http.Request) { globalProbe(readyProbe)(w, r) }

// StartupHandler serves GET /health/startup through the process-wide manager.
func StartupHandler(w http.ResponseWriter, r *http.Request) { globalProbe(startupProbe)(w, r) }
