package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Ruben-Makrati/gamified-bible-study-app/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// RESPONSE ENVELOPE
// ══════════════════════════════════════════════════════════════════════════════

// JSONResponse is the envelope of every API response.
type JSONResponse struct {
	Success   bool          `json:"success"`
	Data      any           `json:"data,omitempty"`
	Error     *APIError     `json:"error,omitempty"`
	Meta      *ResponseMeta `json:"meta,omitempty"`
	RequestID string        `json:"request_id,omitempty"`
}

// APIError represents an API error.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ResponseMeta contains response metadata.
type ResponseMeta struct {
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version,omitempty"`
}

// APIVersion is reported in every response.
const APIVersion = "v1"

// RespondOK writes a successful envelope.
func RespondOK(c *gin.Context, status int, data any) {
	c.JSON(status, JSONResponse{
		Success:   true,
		Data:      data,
		Meta:      &ResponseMeta{Timestamp: time.Now().UTC(), Version: APIVersion},
		RequestID: RequestID(c),
	})
}

// RespondError writes an error envelope and aborts the chain.
func RespondError(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, JSONResponse{
		Success:   false,
		Error:     &APIError{Code: code, Message: message},
		Meta:      &ResponseMeta{Timestamp: time.Now().UTC(), Version: APIVersion},
		RequestID: RequestID(c),
	})
}

// RespondDomainError maps err to a status and writes it. Internal details of
// unexpected errors are not exposed.
func RespondDomainError(c *gin.Context, err error) {
	status, code := ErrorStatus(err)
	msg := err.Error()

	var de *shared.DomainError
	if errors.As(err, &de) {
		msg = de.Message
	}
	if status == http.StatusInternalServerError {
		msg = "An unexpected error occurred"
	}
	_ = c.Error(err)
	RespondError(c, status, code, msg)
}

// ErrorStatus maps an error to an HTTP status and a stable error code.
// AlreadyCompleted is checked before the generic kinds so clients can tell a
// repeated completion from a missing lesson.
func ErrorStatus(err error) (int, string) {
	switch {
	case err == nil:
		return http.StatusOK, ""
	case shared.IsAlreadyCompleted(err):
		return http.StatusConflict, "already_completed"
	case shared.IsNotFound(err):
		return http.StatusNotFound, "not_found"
	case shared.IsAlreadyExists(err):
		return http.StatusConflict, "already_exists"
	case shared.IsValidation(err):
		return http.StatusBadRequest, "validation_error"
	case shared.IsUnauthorized(err):
		return http.StatusUnauthorized, "unauthorized"
	case shared.IsForbidden(err):
		return http.StatusForbidden, "forbidden"
	case shared.IsRetryable(err):
		return http.StatusServiceUnavailable, "unavailable"
	case shared.IsInvalidState(err):
		return http.StatusInternalServerError, "invalid_state"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}
