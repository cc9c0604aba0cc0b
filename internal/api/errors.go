package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
)

// ErrorBuilder helps construct structured errors with context
type ErrorBuilder struct {
	errType   string
	message   string
	context   map[string]interface{}
	requestID string
}

// NewError creates a new error builder
func NewError(errType, message string) *ErrorBuilder {
	return &ErrorBuilder{
		errType: errType,
		message: message,
		context: make(map[string]interface{}),
	}
}

// WithContext adds context information to the error
func (eb *ErrorBuilder) WithContext(key string, value interface{}) *ErrorBuilder {
	eb.context[key] = value
	return eb
}

// WithRequestID adds request ID to the error
func (eb *ErrorBuilder) WithRequestID(requestID string) *ErrorBuilder {
	eb.requestID = requestID
	return eb
}

// WithCause records the underlying error message
func (eb *ErrorBuilder) WithCause(err error) *ErrorBuilder {
	if err != nil {
		eb.context["cause"] = err.Error()
	}
	return eb
}

// Build creates the final APIError
func (eb *ErrorBuilder) Build() APIError {
	var ctx map[string]interface{}
	if len(eb.context) > 0 {
		ctx = eb.context
	}
	return APIError{
		Success:   false,
		Type:      eb.errType,
		Message:   eb.message,
		Context:   ctx,
		RequestID: eb.requestID,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

// ErrorHandler writes error responses and logs them
type ErrorHandler struct {
	logger *log.Logger
	audit  *AuditLogger
}

// NewErrorHandler creates a new error handler
func NewErrorHandler(logger *log.Logger, audit *AuditLogger) *ErrorHandler {
	return &ErrorHandler{logger: logger, audit: audit}
}

// HandleError writes err as a JSON error. APIError values keep their type;
// anything else is reported as an internal error.
func (eh *ErrorHandler) HandleError(w http.ResponseWriter, r *http.Request, err error, status int) {
	requestID := middleware.GetReqID(r.Context())

	var apiErr APIError
	if !errors.As(err, &apiErr) {
		errType := ErrTypeInternal
		message := "Internal server error"
		if errors.Is(err, context.DeadlineExceeded) {
			errType, message, status = ErrTypeTimeout, "Request timed out", http.StatusGatewayTimeout
		}
		apiErr = NewError(errType, message).
			WithRequestID(requestID).
			WithCause(err).
			WithContext("path", r.URL.Path).
			Build()
	}
	if apiErr.RequestID == "" {
		apiErr.RequestID = requestID
	}

	eh.logError(r, apiErr, status)
	eh.writeErrorResponse(w, status, apiErr)
}

// HandleValidationError responds 400 for a bad request field
func (eh *ErrorHandler) HandleValidationError(w http.ResponseWriter, r *http.Request, errType, field, message string) {
	requestID := middleware.GetReqID(r.Context())

	apiErr := NewError(errType, message).
		WithRequestID(requestID).
		WithContext("field", field).
		Build()

	eh.audit.LogSecurityEvent(
		requestID,
		"validation_failure",
		message,
		map[string]interface{}{
			"field": field,
			"path":  r.URL.Path,
		},
		r.RemoteAddr,
	)

	eh.logError(r, apiErr, http.StatusBadRequest)
	eh.writeErrorResponse(w, http.StatusBadRequest, apiErr)
}

// HandleNotFound responds 404 for an unknown resource
func (eh *ErrorHandler) HandleNotFound(w http.ResponseWriter, r *http.Request, message string) {
	apiErr := NewError(ErrTypeNotFound, message).
		WithRequestID(middleware.GetReqID(r.Context())).
		Build()

	eh.logError(r, apiErr, http.StatusNotFound)
	eh.writeErrorResponse(w, http.StatusNotFound, apiErr)
}

// HandleUnauthorized responds 401 and records the attempt
func (eh *ErrorHandler) HandleUnauthorized(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetReqID(r.Context())
	apiErr := NewError(ErrTypeUnauthorized, "Missing or invalid submit token").
		WithRequestID(requestID).
		Build()

	eh.audit.LogSecurityEvent(
		requestID,
		"unauthorized_write",
		"submit token rejected",
		map[string]interface{}{"path": r.URL.Path},
		r.RemoteAddr,
	)

	eh.logError(r, apiErr, http.StatusUnauthorized)
	eh.writeErrorResponse(w, http.StatusUnauthorized, apiErr)
}

func (eh *ErrorHandler) logError(r *http.Request, apiErr APIError, status int) {
	category := GetErrorCategory(apiErr.Type)

	level := "ERROR"
	if status < 500 {
		level = "WARN"
	}

	eh.logger.Printf(
		"error_occurred level=%s type=%s category=%s status=%d request_id=%s method=%s path=%s message=%q context=%+v",
		level, apiErr.Type, category, status, apiErr.RequestID, r.Method, r.URL.Path, apiErr.Message, apiErr.Context,
	)
}

func (eh *ErrorHandler) writeErrorResponse(w http.ResponseWriter, status int, apiErr APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Server-Version", Version)
	w.Header().Set("X-Error-Type", apiErr.Type)
	w.Header().Set("X-Error-Category", string(GetErrorCategory(apiErr.Type)))
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(apiErr); err != nil {
		eh.logger.Printf("error_encode_failed request_id=%s error=%q", apiErr.RequestID, err)
	}
}

// RecoveryHandler turns handler panics into 500 responses
func (eh *ErrorHandler) RecoveryHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rvr := recover(); rvr != nil {
				if rvr == http.ErrAbortHandler {
					panic(rvr)
				}
				requestID := middleware.GetReqID(r.Context())

				eh.logger.Printf(
					"panic_recovered request_id=%s path=%s method=%s panic=%v",
					requestID, r.URL.Path, r.Method, rvr,
				)

				apiErr := NewError(ErrTypeInternal, "Internal server error").
					WithRequestID(requestID).
					WithContext("panic", fmt.Sprintf("%v", rvr)).
					Build()

				eh.writeErrorResponse(w, http.StatusInternalServerError, apiErr)
			}
		}()

		next.ServeHTTP(w, r)
	})
}
