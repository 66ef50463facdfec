package errors

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contactd/contactd/internal/server/middleware"
)

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestHTTPStatusFromCode(t *testing.T) {
	cases := map[string]int{
		CodeMissingFields:        http.StatusBadRequest,
		CodeInvalidFieldTypes:    http.StatusBadRequest,
		CodeInvalidEmailFormat:   http.StatusBadRequest,
		CodeMissingQuery:         http.StatusBadRequest,
		CodeInvalidInput:         http.StatusBadRequest,
		CodeRateLimited:          http.StatusTooManyRequests,
		CodePayloadTooLarge:      http.StatusRequestEntityTooLarge,
		CodeDispatchFailed:       http.StatusInternalServerError,
		CodeExternalServiceError: http.StatusInternalServerError,
		CodeNotFound:             http.StatusNotFound,
		CodeMethodNotAllowed:     http.StatusMethodNotAllowed,
		CodeServiceUnavailable:   http.StatusServiceUnavailable,
		"SOMETHING_ELSE":         http.StatusInternalServerError,
	}
	for code, status := range cases {
		assert.Equal(t, status, HTTPStatusFromCode(code), code)
	}
}

func TestRespondWithEnvelope_RateLimited(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/contact", nil)

	RespondWithEnvelope(rec, req, NewRateLimitedError(42))

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "42", rec.Header().Get("Retry-After"))

	body := decodeBody(t, rec)
	assert.Equal(t, "Too many requests. Please wait 42 seconds before submitting again.", body["error"])
	assert.Equal(t, CodeRateLimited, body["code"])
	details, ok := body["details"].(map[string]interface{})
	require.True(t, ok)
	assert.EqualValues(t, 42, details["retry_after"])
	assert.NotEmpty(t, body["request_id"])
}

func TestRespondWithEnvelope_DispatchFailureHidesCause(t *testing.T) {
	ctx := context.WithValue(context.Background(), middleware.RequestIDContextKey, "req-7")
	req := httptest.NewRequest(http.MethodPost, "/api/contact", nil).WithContext(ctx)
	rec := httptest.NewRecorder()

	cause := stderrors.New("535 5.7.8 Username and Password not accepted")
	RespondWithEnvelope(rec, req, WrapDispatchFailed(ctx, cause, "smtp auth"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "535")
	assert.NotContains(t, rec.Body.String(), "smtp auth")

	body := decodeBody(t, rec)
	assert.Equal(t, MsgDispatchFailed, body["error"])
	assert.Equal(t, CodeDispatchFailed, body["code"])
	assert.Equal(t, "req-7", body["request_id"])
	assert.NotContains(t, body, "details")
}

func TestRespondWithError_PlainErrorIsGeneric(t *testing.T) {
	rec := httptest.NewRecorder()
	RespondWithError(rec, httptest.NewRequest(http.MethodGet, "/", nil), stderrors.New("dial tcp 10.0.0.5:9200: refused"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "10.0.0.5")
	assert.Equal(t, MsgInternal, decodeBody(t, rec)["error"])
}

func TestValidationError(t *testing.T) {
	rec := httptest.NewRecorder()
	RespondWithEnvelope(rec, httptest.NewRequest(http.MethodPost, "/api/contact", nil),
		NewValidationError(CodeInvalidEmailFormat, "Invalid email format"))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "Invalid email format", body["error"])
	assert.Equal(t, CodeInvalidEmailFormat, body["code"])

	assert.Equal(t, CodeValidationFailed, NewValidationError("", "bad").Code)
}

func TestEnsureCorrelationID(t *testing.T) {
	env := EnsureCorrelationID(NewInternalError("x"), context.Background())
	assert.Contains(t, env.CorrelationID, "fallback-")

	ctx := context.WithValue(context.Background(), middleware.RequestIDContextKey, "abc")
	env = EnsureCorrelationID(NewInternalError("x"), ctx)
	assert.Equal(t, "abc", env.CorrelationID)

	assert.Nil(t, EnsureCorrelationID(nil, ctx))
}

func TestEnsureEnvelope(t *testing.T) {
	env := NewNotFoundError("missing")
	assert.Same(t, env, EnsureEnvelope(env))
	assert.Equal(t, CodeInternal, EnsureEnvelope(nil).Code)
	assert.Equal(t, CodeInternal, EnsureEnvelope(stderrors.New("boom")).Code)
}
