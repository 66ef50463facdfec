package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/contactd/contactd/internal/core"
	"github.com/contactd/contactd/internal/core/dispatch"
	apperrors "github.com/contactd/contactd/internal/errors"
	"github.com/contactd/contactd/internal/metrics"
)

// SearchHandler relays GET /api/search?query= to the index backend.
type SearchHandler struct {
	searcher dispatch.Searcher
}

// NewSearchHandler builds a SearchHandler.
func NewSearchHandler(searcher dispatch.Searcher) *SearchHandler {
	return &SearchHandler{searcher: searcher}
}

func (h *SearchHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	query, err := core.ValidateQuery(r.URL.Query())
	if err != nil {
		respondWithError(w, r, rejectionEnvelope(err))
		return
	}

	raw, err := h.searcher.Search(r.Context(), query)
	if err != nil {
		metrics.RecordSearch(false)
		var rejection *core.Rejection
		if errors.As(err, &rejection) {
			respondWithError(w, r, rejectionEnvelope(err))
			return
		}
		respondWithError(w, r, apperrors.WrapExternalService(r.Context(), err, apperrors.MsgSearchFailed))
		return
	}

	metrics.RecordSearch(true)
	writeJSON(w, http.StatusOK, json.RawMessage(raw))
}
