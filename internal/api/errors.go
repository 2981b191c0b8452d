package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"price-registry/internal/ident"
	"price-registry/internal/registry"
	"price-registry/internal/spot"
	"price-registry/internal/storage"
)

// APIError is the body of every error response.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes.
const (
	CodeAccessDenied      = "ACCESS_DENIED"
	CodeNotReporter       = "NOT_REPORTER"
	CodeAlreadyReporter   = "ALREADY_REPORTER"
	CodeStaleReport       = "STALE_REPORT"
	CodeUnstableConsensus = "UNSTABLE_CONSENSUS"
	CodeNotFiat           = "NOT_FIAT"
	CodeLengthMismatch    = "LENGTH_MISMATCH"
	CodePercentageRange   = "PERCENTAGE_OUT_OF_RANGE"
	CodeFutureTimestamp   = "FUTURE_TIMESTAMP"
	CodeInvalidInput      = "INVALID_INPUT"
	CodeInvalidIdentifier = "INVALID_IDENTIFIER"
	CodeMissingCaller     = "MISSING_CALLER"
	CodeNotFound          = "NOT_FOUND"
	CodeSpotUnavailable   = "SPOT_UNAVAILABLE"
	CodeUpstreamError     = "UPSTREAM_ERROR"
	CodeFeatureDisabled   = "FEATURE_DISABLED"
	CodeTimeout           = "TIMEOUT"
	CodeInternalError     = "INTERNAL_ERROR"
)

var errMissingCaller = errors.New("missing " + CallerHeader + " header")

func writeJSONError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]APIError{"error": {Code: code, Message: message}})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// classify maps an error to its HTTP status and code.
// NotReporter is checked before AccessDenied: a non-reporter caller
// matches both.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, errMissingCaller):
		return http.StatusUnauthorized, CodeMissingCaller
	case errors.Is(err, registry.ErrNotReporter):
		return http.StatusForbidden, CodeNotReporter
	case errors.Is(err, registry.ErrAccessDenied):
		return http.StatusForbidden, CodeAccessDenied
	case errors.Is(err, registry.ErrAlreadyReporter):
		return http.StatusConflict, CodeAlreadyReporter
	case errors.Is(err, registry.ErrStaleReport):
		return http.StatusConflict, CodeStaleReport
	case errors.Is(err, registry.ErrUnstableConsensus):
		return http.StatusConflict, CodeUnstableConsensus
	case errors.Is(err, registry.ErrNotFiat):
		return http.StatusNotFound, CodeNotFiat
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound, CodeNotFound
	case errors.Is(err, registry.ErrLengthMismatch):
		return http.StatusBadRequest, CodeLengthMismatch
	case errors.Is(err, registry.ErrPercentageOutOfRange):
		return http.StatusBadRequest, CodePercentageRange
	case errors.Is(err, registry.ErrFutureTimestamp):
		return http.StatusBadRequest, CodeFutureTimestamp
	case errors.Is(err, ident.ErrEmpty), errors.Is(err, ident.ErrInvalid), errors.Is(err, ident.ErrCannotSign):
		return http.StatusBadRequest, CodeInvalidIdentifier
	case errors.Is(err, registry.ErrInvalidInput), errors.Is(err, storage.ErrInvalidInput):
		return http.StatusBadRequest, CodeInvalidInput
	case errors.Is(err, registry.ErrSpotUnavailable), errors.Is(err, spot.ErrNoRoute):
		return http.StatusBadGateway, CodeSpotUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, CodeTimeout
	default:
		return http.StatusInternalServerError, CodeInternalError
	}
}

// writeError renders err. Internal errors are logged and hidden.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := classify(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err))
		msg = "internal error"
	}
	writeJSONError(w, status, code, msg)
}
