package chi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/kailas-cloud/cvsearch/internal/domain"
	"github.com/kailas-cloud/cvsearch/internal/logger"
)

// statusClientClosedRequest reports a request abandoned by the client.
const statusClientClosedRequest = 499

// errorRule maps one sentinel to a status and code.
type errorRule struct {
	sentinel error
	status   int
	code     string
}

// errorRules is checked in order. Wrapped errors often match several
// sentinels; the first listed wins. Strategy failures outrank their causes,
// which are reported separately by causeOf.
var errorRules = []errorRule{
	{domain.ErrInvalidRequest, http.StatusBadRequest, codeInvalidRequest},
	{domain.ErrNotFound, http.StatusNotFound, codeNotFound},
	{context.DeadlineExceeded, http.StatusGatewayTimeout, codeTimeout},
	{context.Canceled, statusClientClosedRequest, codeClientClosedRequest},
	{domain.ErrStoreUnavailable, http.StatusServiceUnavailable, codeStoreUnavailable},
	{domain.ErrVectorSearchFailed, http.StatusBadGateway, codeVectorSearchFailed},
	{domain.ErrTextSearchFailed, http.StatusBadGateway, codeTextSearchFailed},
	{domain.ErrEmbeddingUnavailable, http.StatusServiceUnavailable, codeEmbeddingUnavail},
	{domain.ErrQueryRejected, http.StatusBadGateway, codeQueryRejected},
}

// causeRules name the underlying failure behind a strategy error.
var causeRules = []errorRule{
	{sentinel: domain.ErrEmbeddingUnavailable, code: codeEmbeddingUnavail},
	{sentinel: domain.ErrQueryRejected, code: codeQueryRejected},
}

func classify(err error) (int, string) {
	for _, r := range errorRules {
		if errors.Is(err, r.sentinel) {
			return r.status, r.code
		}
	}
	return http.StatusInternalServerError, codeInternalError
}

// causeOf returns the cause code of a failed strategy, or "" when the error
// is already reported by its cause.
func causeOf(err error, code string) string {
	if code != codeVectorSearchFailed && code != codeTextSearchFailed {
		return ""
	}
	for _, r := range causeRules {
		if errors.Is(err, r.sentinel) {
			return r.code
		}
	}
	return ""
}

// safeMessage returns a message for the client without exposing internals.
// Invalid requests echo the validation detail; it is built from input only.
func safeMessage(err error) string {
	if errors.Is(err, domain.ErrInvalidRequest) {
		return err.Error()
	}
	for _, r := range errorRules {
		if errors.Is(err, r.sentinel) {
			return r.sentinel.Error()
		}
	}
	return "internal error"
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := classify(err)
	log := logger.FromContext(r.Context())
	switch {
	case status >= http.StatusInternalServerError:
		log.Error("Request failed", zap.String("code", code), zap.Error(err))
	default:
		log.Warn("Request rejected", zap.String("code", code), zap.Error(err))
	}
	writeJSON(w, status, ErrorResponse{Code: code, Message: safeMessage(err), Cause: causeOf(err, code)})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Code: code, Message: message})
}
