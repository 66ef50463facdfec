package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contactd/contactd/internal/appid"
)

func getVersion(t *testing.T) VersionResponse {
	t.Helper()
	rec := httptest.NewRecorder()
	VersionHandler(rec, httptest.NewRequest(http.MethodGet, "/version", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp VersionResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}

func TestVersionHandlerReportsServiceInfo(t *testing.T) {
	SetVersionInfo("1.2.3", "abcd123", "2025-11-07T12:00:00Z")
	SetAppIdentity(&appid.Identity{BinaryName: "example-service"})
	SetRuntimeInfo("production", "mail", time.Now().Add(-90*time.Second))
	t.Cleanup(func() {
		SetRuntimeInfo("", "", time.Time{})
		SetAppIdentity(nil)
	})

	resp := getVersion(t)
	assert.Equal(t, "example-service", resp.App.Name)
	assert.Equal(t, "1.2.3", resp.App.Version)
	assert.Equal(t, "abcd123", resp.App.Commit)
	assert.Equal(t, "production", resp.Service.Mode)
	assert.Equal(t, "mail", resp.Service.Dispatch)
	assert.GreaterOrEqual(t, resp.Service.UptimeSeconds, int64(90))
	assert.NotEmpty(t, resp.Dependencies.Gofulmen)
	assert.NotEmpty(t, resp.Dependencies.Crucible)
}

func TestVersionHandlerBeforeServe(t *testing.T) {
	SetAppIdentity(nil)

	rec := httptest.NewRecorder()
	VersionHandler(rec, httptest.NewRequest(http.MethodGet, "/version", nil))
	assert.NotContains(t, rec.Body.String(), "started_at")

	var resp VersionResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "contactd", resp.App.Name)
	assert.NotZero(t, resp.Runtime.NumCPU)
	assert.NotEmpty(t, resp.Runtime.Platform)
	assert.NotEmpty(t, resp.Runtime.GoVersion)
}
