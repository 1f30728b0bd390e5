package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/TimurManjosov/hostmatch/internal/matching"
	"github.com/TimurManjosov/hostmatch/internal/routing"
	"github.com/TimurManjosov/hostmatch/internal/store"
)

// ErrorCode represents machine-readable error codes
type ErrorCode string

const (
	ErrCodeInternal        ErrorCode = "INTERNAL_ERROR"
	ErrCodeBadRequest      ErrorCode = "BAD_REQUEST"
	ErrCodeNotFound        ErrorCode = "NOT_FOUND"
	ErrCodeRequestTooLarge ErrorCode = "REQUEST_TOO_LARGE"
	ErrCodeUnavailable     ErrorCode = "CATALOG_UNAVAILABLE"
	ErrCodeTimeout         ErrorCode = "EVALUATION_TIMEOUT"

	ErrCodeValidation   ErrorCode = "VALIDATION_ERROR"
	ErrCodeInvalidJSON  ErrorCode = "INVALID_JSON"
	ErrCodeInvalidQuery ErrorCode = "INVALID_QUERY"
	ErrCodeInvalidForm  ErrorCode = "INVALID_FORM"
	ErrCodeNoRoute      ErrorCode = "NO_ROUTE"
)

// retryAfterSeconds is sent with 503 responses; catalog outages are usually brief.
const retryAfterSeconds = 1

// ErrorResponse represents a structured error response
type ErrorResponse struct {
	Error     string            `json:"error"`                // HTTP status text
	Message   string            `json:"message"`              // Human-readable description
	Code      ErrorCode         `json:"code"`                 // Machine-readable error code
	Fields    map[string]string `json:"fields,omitempty"`     // Field-level errors
	RequestID string            `json:"request_id,omitempty"` // Request ID for debugging
}

// NewErrorResponse creates a new error response
func NewErrorResponse(statusCode int, code ErrorCode, message string) *ErrorResponse {
	return &ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
		Code:    code,
	}
}

// WithFields adds field-level errors to the response
func (e *ErrorResponse) WithFields(fields map[string]string) *ErrorResponse {
	e.Fields = fields
	return e
}

// writeErrorResponse writes a structured error response to the http response writer
func writeErrorResponse(w http.ResponseWriter, r *http.Request, statusCode int, errResp *ErrorResponse) {
	if reqID := middleware.GetReqID(r.Context()); reqID != "" {
		errResp.RequestID = reqID
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(errResp)
}

// ValidationError creates a validation error response with field-level details
func ValidationError(w http.ResponseWriter, r *http.Request, message string, fields map[string]string) {
	errResp := NewErrorResponse(http.StatusBadRequest, ErrCodeValidation, message).
		WithFields(fields)
	writeErrorResponse(w, r, http.StatusBadRequest, errResp)
}

// BadRequestError creates a bad request error response
func BadRequestError(w http.ResponseWriter, r *http.Request, code ErrorCode, message string) {
	writeErrorResponse(w, r, http.StatusBadRequest, NewErrorResponse(http.StatusBadRequest, code, message))
}

// InternalError creates an internal server error response
func InternalError(w http.ResponseWriter, r *http.Request, message string) {
	writeErrorResponse(w, r, http.StatusInternalServerError, NewErrorResponse(http.StatusInternalServerError, ErrCodeInternal, message))
}

// NotFoundError creates a not found error response
func NotFoundError(w http.ResponseWriter, r *http.Request, message string) {
	writeErrorResponse(w, r, http.StatusNotFound, NewErrorResponse(http.StatusNotFound, ErrCodeNotFound, message))
}

// RequestTooLargeError creates a request entity too large error response
func RequestTooLargeError(w http.ResponseWriter, r *http.Request, message string) {
	writeErrorResponse(w, r, http.StatusRequestEntityTooLarge, NewErrorResponse(http.StatusRequestEntityTooLarge, ErrCodeRequestTooLarge, message))
}

// ServiceUnavailableError tells the caller to retry later.
func ServiceUnavailableError(w http.ResponseWriter, r *http.Request, message string) {
	w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds))
	writeErrorResponse(w, r, http.StatusServiceUnavailable, NewErrorResponse(http.StatusServiceUnavailable, ErrCodeUnavailable, message))
}

// GatewayTimeoutError reports an evaluation that ran out of time.
func GatewayTimeoutError(w http.ResponseWriter, r *http.Request, message string) {
	writeErrorResponse(w, r, http.StatusGatewayTimeout, NewErrorResponse(http.StatusGatewayTimeout, ErrCodeTimeout, message))
}

// writeDomainError maps engine, store and routing errors to responses.
func (s *Server) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		NotFoundError(w, r, err.Error())
	case errors.Is(err, matching.ErrAborted):
		GatewayTimeoutError(w, r, "evaluation did not finish in time")
	case errors.Is(err, matching.ErrCatalogUnavailable):
		ServiceUnavailableError(w, r, "attribute catalog unavailable, retry later")
	case errors.Is(err, routing.ErrInvalidForm):
		BadRequestError(w, r, ErrCodeInvalidForm, err.Error())
	case errors.Is(err, routing.ErrNoRoute):
		writeErrorResponse(w, r, http.StatusUnprocessableEntity,
			NewErrorResponse(http.StatusUnprocessableEntity, ErrCodeNoRoute, err.Error()))
	default:
		s.log.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		InternalError(w, r, "internal error")
	}
}
