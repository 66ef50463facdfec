package handlers

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	apperrors "github.com/contactd/contactd/internal/errors"
	"github.com/contactd/contactd/internal/observability"
)

// ErrorResponder writes an error response for err.
type ErrorResponder func(http.ResponseWriter, *http.Request, error)

var errorResponder ErrorResponder = apperrors.RespondWithError

// SetHTTPErrorResponder lets the server route handler errors through its
// central handler. nil restores the default.
func SetHTTPErrorResponder(responder ErrorResponder) {
	if responder == nil {
		responder = apperrors.RespondWithError
	}
	errorResponder = responder
}

func respondWithError(w http.ResponseWriter, r *http.Request, err error) {
	errorResponder(w, r, err)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func logInfo(msg string, fields ...zap.Field) {
	if observability.ServerLogger != nil {
		observability.ServerLogger.Info(msg, fields...)
	}
}

func logDebug(msg string, fields ...zap.Field) {
	if observability.ServerLogger != nil {
		observability.ServerLogger.Debug(msg, fields...)
	}
}
