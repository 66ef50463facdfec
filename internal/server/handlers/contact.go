package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/contactd/contactd/internal/core"
	"github.com/contactd/contactd/internal/core/dispatch"
	"github.com/contactd/contactd/internal/core/engine"
	apperrors "github.com/contactd/contactd/internal/errors"
	"github.com/contactd/contactd/internal/metrics"
)

// SuccessMessage is returned for delivered submissions and, deliberately,
// for honeypot hits.
const SuccessMessage = "Message sent successfully"

const (
	defaultDispatchTimeout = 15 * time.Second
	defaultMaxBodyBytes    = 100 * 1024
)

// SuccessResponse is the body of a 200 from POST /api/contact.
type SuccessResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// ContactHandler runs the submission pipeline: resolve client, rate limit,
// validate, dispatch, respond.
type ContactHandler struct {
	limiter      *engine.RateLimiter
	dispatcher   dispatch.Dispatcher
	timeout      time.Duration
	maxBodyBytes int64
}

// ContactOptions tunes a ContactHandler; zero values take defaults.
type ContactOptions struct {
	DispatchTimeout time.Duration
	MaxBodyBytes    int64
}

// NewContactHandler wires the limiter and dispatcher into a handler.
func NewContactHandler(limiter *engine.RateLimiter, dispatcher dispatch.Dispatcher, opts ContactOptions) *ContactHandler {
	if opts.DispatchTimeout <= 0 {
		opts.DispatchTimeout = defaultDispatchTimeout
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = defaultMaxBodyBytes
	}
	return &ContactHandler{
		limiter:      limiter,
		dispatcher:   dispatcher,
		timeout:      opts.DispatchTimeout,
		maxBodyBytes: opts.MaxBodyBytes,
	}
}

func (h *ContactHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	defer func() {
		if rec := recover(); rec != nil {
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			metrics.RecordPanic()
			metrics.RecordSubmission(metrics.OutcomeFailed)
			respondWithError(w, r, apperrors.WrapDispatchFailed(r.Context(), fmt.Errorf("panic: %v", rec), "panic"))
		}
	}()

	clientID := core.ResolveClientID(strings.Join(r.Header.Values("X-Forwarded-For"), ","), r.RemoteAddr)
	now := h.limiter.Now()

	decision := h.limiter.CheckAndRecord(clientID, now)
	metrics.SetRateLimitEntries(h.limiter.Len())
	if !decision.Allowed {
		metrics.RecordSubmission(metrics.OutcomeThrottled)
		logDebug("submission throttled",
			zap.String("ip", clientID),
			zap.Int("retry_after", decision.RetryAfterSeconds))
		respondWithError(w, r, apperrors.NewRateLimitedError(decision.RetryAfterSeconds))
		return
	}

	raw, err := h.decodeBody(w, r)
	if err != nil {
		h.limiter.Release(clientID, decision.RecordedAt)
		metrics.RecordSubmission(metrics.OutcomeRejected)
		respondWithError(w, r, err)
		return
	}

	sub, err := core.ValidateSubmission(raw)
	if err != nil {
		var rejection *core.Rejection
		if errors.As(err, &rejection) && rejection.Suppressed() {
			// keep the rate-limit record so bots stay throttled
			metrics.RecordSubmission(metrics.OutcomeHoneypot)
			logInfo("honeypot triggered", zap.String("ip", clientID))
			writeJSON(w, http.StatusOK, SuccessResponse{Success: true, Message: SuccessMessage})
			return
		}

		h.limiter.Release(clientID, decision.RecordedAt)
		metrics.RecordSubmission(metrics.OutcomeRejected)
		respondWithError(w, r, rejectionEnvelope(err))
		return
	}

	sub.ClientID = clientID
	sub.SubmittedAt = now

	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), h.timeout)
	defer cancel()

	start := time.Now()
	result := h.dispatcher.Dispatch(ctx, sub)
	metrics.RecordDispatch(h.dispatcher.Name(), result.OK(), time.Since(start))

	if !result.OK() {
		metrics.RecordSubmission(metrics.OutcomeFailed)
		respondWithError(w, r, apperrors.WrapDispatchFailed(r.Context(), result.Err, result.Reason))
		return
	}

	metrics.RecordSubmission(metrics.OutcomeAccepted)
	logInfo("contact form submission dispatched",
		zap.String("name", sub.Name),
		zap.String("email", sub.Email),
		zap.String("ip", clientID),
		zap.Time("timestamp", sub.SubmittedAt),
		zap.String("dispatcher", h.dispatcher.Name()),
		zap.String("ack", result.Ack))

	writeJSON(w, http.StatusOK, SuccessResponse{Success: true, Message: SuccessMessage})
}

// decodeBody reads a JSON object. Bodies that are valid JSON but not an
// object decode to an empty map and fail presence checks.
func (h *ContactHandler) decodeBody(w http.ResponseWriter, r *http.Request) (map[string]any, error) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodyBytes)

	raw := map[string]any{}
	err := json.NewDecoder(r.Body).Decode(&raw)
	if err == nil || errors.Is(err, io.EOF) {
		return raw, nil
	}

	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return map[string]any{}, nil
	}

	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return nil, apperrors.NewValidationError(apperrors.CodePayloadTooLarge, apperrors.MsgBodyTooLarge)
	}

	return nil, apperrors.WrapInvalidInput(r.Context(), err, apperrors.MsgInvalidJSON)
}

func rejectionEnvelope(err error) error {
	var rejection *core.Rejection
	if !errors.As(err, &rejection) {
		return err
	}
	return apperrors.NewValidationError(rejectionCode(rejection.Reason), rejection.Message)
}

func rejectionCode(reason core.RejectionReason) string {
	switch reason {
	case core.ReasonMissingFields:
		return apperrors.CodeMissingFields
	case core.ReasonInvalidFieldTypes:
		return apperrors.CodeInvalidFieldTypes
	case core.ReasonInvalidEmailFormat:
		return apperrors.CodeInvalidEmailFormat
	case core.ReasonMissingQuery:
		return apperrors.CodeMissingQuery
	default:
		return apperrors.CodeValidationFailed
	}
}
