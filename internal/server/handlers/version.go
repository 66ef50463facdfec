package handlers

import (
	"net/http"
	"runtime"
	"sync"
	"time"

	"github.com/fulmenhq/gofulmen/crucible"

	"github.com/contactd/contactd/internal/appid"
)

// Build metadata, injected from main via SetVersionInfo.
var (
	AppVersion   = "dev"
	AppCommit    = "unknown"
	AppBuildDate = "unknown"
)

var (
	serviceMu   sync.RWMutex
	appIdentity *appid.Identity
	service     ServiceInfo
)

// SetVersionInfo sets the build metadata reported by /version.
func SetVersionInfo(version, commit, buildDate string) {
	AppVersion = version
	AppCommit = commit
	AppBuildDate = buildDate
}

// SetRuntimeInfo records how this process was started: its run mode, the
// active dispatcher and the start time used for uptime.
func SetRuntimeInfo(mode, dispatcher string, startedAt time.Time) {
	serviceMu.Lock()
	defer serviceMu.Unlock()
	service = ServiceInfo{Mode: mode, Dispatch: dispatcher, StartedAt: startedAt}
}

// SetAppIdentity overrides the identity reported by /version. nil falls back
// to the built-in identity.
func SetAppIdentity(identity *appid.Identity) {
	serviceMu.Lock()
	defer serviceMu.Unlock()
	appIdentity = identity
}

// VersionResponse is the body of GET /version.
type VersionResponse struct {
	App          AppInfo     `json:"app"`
	Service      ServiceInfo `json:"service"`
	Dependencies DepInfo     `json:"dependencies"`
	Runtime      RuntimeInfo `json:"runtime"`
}

type AppInfo struct {
	Name      string `json:"name"`
	Version   string `json:"version"`
	Commit    string `json:"git_commit"`
	BuildDate string `json:"build_date"`
}

// ServiceInfo describes the running configuration. Zero values are omitted
// until serve has recorded them.
type ServiceInfo struct {
	Mode          string    `json:"mode,omitempty"`
	Dispatch      string    `json:"dispatch,omitempty"`
	StartedAt     time.Time `json:"started_at,omitzero"`
	UptimeSeconds int64     `json:"uptime_seconds,omitempty"`
}

type DepInfo struct {
	Gofulmen string `json:"gofulmen"`
	Crucible string `json:"crucible"`
}

type RuntimeInfo struct {
	GoVersion     string `json:"go_version"`
	Platform      string `json:"platform"`
	NumCPU        int    `json:"num_cpu"`
	NumGoroutines int    `json:"num_goroutines"`
}

// VersionHandler reports build, service and runtime metadata.
func VersionHandler(w http.ResponseWriter, r *http.Request) {
	serviceMu.RLock()
	identity, svc := appIdentity, service
	serviceMu.RUnlock()

	if identity == nil {
		identity, _ = appid.Get(r.Context())
	}
	if !svc.StartedAt.IsZero() {
		svc.UptimeSeconds = int64(time.Since(svc.StartedAt).Seconds())
	}
	deps := crucible.GetVersion()

	writeJSON(w, http.StatusOK, VersionResponse{
		App: AppInfo{
			Name:      identity.BinaryName,
			Version:   AppVersion,
			Commit:    AppCommit,
			BuildDate: AppBuildDate,
		},
		Service:      svc,
		Dependencies: DepInfo{Gofulmen: deps.Gofulmen, Crucible: deps.Crucible},
		Runtime: RuntimeInfo{
			GoVersion:     runtime.Version(),
			Platform:      runtime.GOOS + "/" + runtime.GOARCH,
			NumCPU:        runtime.NumCPU(),
			NumGoroutines: runtime.NumGoroutine(),
		},
	})
}
