package types

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// ──────────────────────────────────────────────────────────────────────────────
// RPCError — typed protocol errors with stable codes
// ──────────────────────────────────────────────────────────────────────────────

// Stable error codes. Callers branch on these, so they must never change.
const (
	CodeParseError     = -32700
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternal       = -32603

	CodeAuthRequired    = -32001
	CodeForbidden       = -32002
	CodeUnknownTool     = -32003
	CodeRateLimited     = -32004
	CodeExecutionFailed = -32005
)

// RPCError is the error object carried in a Response envelope.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc %d: %s", e.Code, e.Message)
}

func RPCParseError(detail string) *RPCError {
	return &RPCError{Code: CodeParseError, Message: "parse error: " + detail}
}

func RPCMethodNotFound(method string) *RPCError {
	return &RPCError{Code: CodeMethodNotFound, Message: fmt.Sprintf("method not found: %s", method)}
}

func RPCInvalidParams(detail string) *RPCError {
	return &RPCError{Code: CodeInvalidParams, Message: "invalid params: " + detail}
}

func RPCInternal(msg string) *RPCError {
	return &RPCError{Code: CodeInternal, Message: msg}
}

func RPCAuthRequired() *RPCError {
	return &RPCError{Code: CodeAuthRequired, Message: "authentication required: provide a bearer token"}
}

func RPCForbidden(required, actual Role) *RPCError {
	return &RPCError{
		Code:    CodeForbidden,
		Message: fmt.Sprintf("insufficient role: requires %s, connection has %s", required, actual),
		Data:    map[string]any{"required_role": required, "actual_role": actual},
	}
}

func RPCUnknownTool(name string) *RPCError {
	return &RPCError{Code: CodeUnknownTool, Message: fmt.Sprintf("unknown tool: %s", name)}
}

func RPCRateLimited(toolName string, maxPerHour int) *RPCError {
	return &RPCError{
		Code:    CodeRateLimited,
		Message: fmt.Sprintf("rate limit exceeded for tool %q: max %d calls/hour", toolName, maxPerHour),
		Data:    map[string]any{"max_calls_per_hour": maxPerHour},
	}
}

func RPCExecutionFailed(msg string, httpStatus int) *RPCError {
	return &RPCError{
		Code:    CodeExecutionFailed,
		Message: msg,
		Data:    map[string]any{"http_status_code": httpStatus},
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// APIError — structured errors for the admin REST surface
// ──────────────────────────────────────────────────────────────────────────────

type APIError struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Details  any    `json:"details,omitempty"`
	HTTPCode int    `json:"-"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// WriteJSON writes the error as JSON to the response writer.
func (e *APIError) WriteJSON(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(e.HTTPCode)
	_ = json.NewEncoder(w).Encode(e)
}

func ErrBadRequest(msg string) *APIError {
	return &APIError{Code: "BAD_REQUEST", Message: msg, HTTPCode: http.StatusBadRequest}
}

func ErrValidation(err error) *APIError {
	return &APIError{Code: "VALIDATION_ERROR", Message: err.Error(), HTTPCode: http.StatusUnprocessableEntity}
}

func ErrUnauthorized(msg string) *APIError {
	return &APIError{Code: "UNAUTHORIZED", Message: msg, HTTPCode: http.StatusUnauthorized}
}

func ErrForbidden(msg string) *APIError {
	return &APIError{Code: "FORBIDDEN", Message: msg, HTTPCode: http.StatusForbidden}
}

func ErrNotFound(msg string) *APIError {
	return &APIError{Code: "NOT_FOUND", Message: msg, HTTPCode: http.StatusNotFound}
}

func ErrConflict(msg string) *APIError {
	return &APIError{Code: "CONFLICT", Message: msg, HTTPCode: http.StatusConflict}
}

func ErrInternal(msg string) *APIError {
	return &APIError{Code: "INTERNAL_ERROR", Message: msg, HTTPCode: http.StatusInternalServerError}
}

// ValidationError reports a single bad field on an admin request.
type ValidationError struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s %s", e.Field, e.Reason)
}
