// Package apierror provides a centralized error response format for the
// library gateway. All gateway components use WriteJSON to produce
// consistent, machine-readable error responses with stable error codes.
package apierror

import (
	"encoding/json"
	"net/http"
)

// ErrorCode is a machine-readable error classification string.
type ErrorCode string

// Gateway error codes. These form a public API contract — clients can program
// against these stable codes. Do not rename or remove existing codes.
const (
	IdentityMissing     ErrorCode = "GATEWAY_IDENTITY_MISSING"
	MalformedPayload    ErrorCode = "GATEWAY_MALFORMED_PAYLOAD"
	QuotaExceeded       ErrorCode = "GATEWAY_QUOTA_EXCEEDED"
	ReservationNotFound ErrorCode = "GATEWAY_RESERVATION_NOT_FOUND"
	ServiceUnavailable  ErrorCode = "GATEWAY_SERVICE_UNAVAILABLE"
	RouteNotFound       ErrorCode = "GATEWAY_ROUTE_NOT_FOUND"
	RateLimitExceeded   ErrorCode = "GATEWAY_RATE_LIMIT_EXCEEDED"
	BodyTooLarge        ErrorCode = "GATEWAY_BODY_TOO_LARGE"
	InternalError       ErrorCode = "GATEWAY_INTERNAL_ERROR"
)

// ErrorResponse is the standardized gateway error body.
type ErrorResponse struct {
	Error     string `json:"error"`
	ErrorCode string `json:"error_code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

// Pre-serialized JSON bodies for the most common error responses.
// Avoids json.Encoder allocation on every error in the hot path.
// These do NOT include request_id since it varies per request.
var (
	preIdentityMissing    = mustMarshal(http.StatusBadRequest, IdentityMissing, "X-User-Name header is required")
	preQuotaExceeded      = mustMarshal(http.StatusBadRequest, QuotaExceeded, "maximum number of rented books reached")
	preServiceUnavailable = mustMarshal(http.StatusServiceUnavailable, ServiceUnavailable, "service unavailable")
	preRateLimitExceeded  = mustMarshal(http.StatusTooManyRequests, RateLimitExceeded, "rate limit exceeded, retry later")
)

func mustMarshal(status int, code ErrorCode, message string) []byte {
	b, _ := json.Marshal(ErrorResponse{
		Error:     http.StatusText(status),
		ErrorCode: string(code),
		Message:   message,
	})
	return append(b, '\n')
}

// WriteJSON writes a structured JSON error response. For common error
// code+message combinations, pre-serialized bodies are used (no allocation).
// When request_id is available (from X-Request-ID header), it is included in
// the response. The request parameter may be nil for contexts where the
// request is not available.
func WriteJSON(w http.ResponseWriter, r *http.Request, status int, code ErrorCode, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	requestID := ""
	if r != nil {
		requestID = r.Header.Get("X-Request-ID")
	}

	if requestID == "" {
		if body := preSerialized(status, code, message); body != nil {
			w.Write(body) //nolint:errcheck
			return
		}
	}

	json.NewEncoder(w).Encode(ErrorResponse{
		Error:     http.StatusText(status),
		ErrorCode: string(code),
		Message:   message,
		RequestID: requestID,
	})
}

// preSerialized returns a pre-built response body for common error
// combinations, or nil if no match.
func preSerialized(status int, code ErrorCode, message string) []byte {
	switch {
	case code == IdentityMissing && status == http.StatusBadRequest && message == "X-User-Name header is required":
		return preIdentityMissing
	case code == QuotaExceeded && status == http.StatusBadRequest && message == "maximum number of rented books reached":
		return preQuotaExceeded
	case code == ServiceUnavailable && status == http.StatusServiceUnavailable && message == "service unavailable":
		return preServiceUnavailable
	case code == RateLimitExceeded && status == http.StatusTooManyRequests && message == "rate limit exceeded, retry later":
		return preRateLimitExceeded
	}
	return nil
}
