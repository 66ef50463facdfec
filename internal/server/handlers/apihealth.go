package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/contactd/contactd/internal/core/dispatch"
	apperrors "github.com/contactd/contactd/internal/errors"
)

// APIHealthResponse is the body of GET /api/health.
type APIHealthResponse struct {
	Status    string          `json:"status"`
	Timestamp string          `json:"timestamp"`
	Uptime    float64         `json:"uptime"`
	Index     json.RawMessage `json:"index,omitempty"`
}

// APIHealthHandler reports process uptime and, in index mode, the backend's
// cluster health.
type APIHealthHandler struct {
	started  time.Time
	searcher dispatch.Searcher
	clock    func() time.Time
}

// NewAPIHealthHandler builds the handler. searcher may be nil.
func NewAPIHealthHandler(started time.Time, searcher dispatch.Searcher) *APIHealthHandler {
	return &APIHealthHandler{started: started, searcher: searcher}
}

func (h *APIHealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	now := h.now()
	response := APIHealthResponse{
		Status:    "ok",
		Timestamp: now.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
		Uptime:    now.Sub(h.started).Seconds(),
	}

	if h.searcher != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		raw, err := h.searcher.Health(ctx)
		if err != nil {
			respondWithError(w, r, apperrors.WrapExternalService(r.Context(), err, "Search backend unavailable"))
			return
		}
		response.Index = raw
	}

	writeJSON(w, http.StatusOK, response)
}

func (h *APIHealthHandler) now() time.Time {
	if h.clock != nil {
		return h.clock()
	}
	return time.Now()
}
