package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAPIHealthHandler_MailMode(t *testing.T) {
	started := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	handler := NewAPIHealthHandler(started, nil)
	handler.clock = func() time.Time { return started.Add(90 * time.Second) }

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp APIHealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "2025-01-01T00:01:30.000Z", resp.Timestamp)
	assert.InDelta(t, 90.0, resp.Uptime, 0.001)
	assert.Empty(t, resp.Index)
}

func TestAPIHealthHandler_IndexMode(t *testing.T) {
	searcher := &fakeSearcher{healthRaw: json.RawMessage(`{"status":"green"}`)}
	handler := NewAPIHealthHandler(time.Now(), searcher)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp APIHealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.JSONEq(t, `{"status":"green"}`, string(resp.Index))
}

func TestAPIHealthHandler_IndexUnreachable(t *testing.T) {
	handler := NewAPIHealthHandler(time.Now(), &fakeSearcher{healthErr: errors.New("connection refused")})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "refused")
}
