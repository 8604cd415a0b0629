// Package apperr holds the coded errors shared by every service and the HTTP
// layer. Handlers map them to status codes with HTTPStatus.
package apperr

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

type Code string

const (
	CodeAuthFailed         Code = "AUTH_FAILED"
	CodeForbidden          Code = "FORBIDDEN"
	CodePolicyRejected     Code = "POLICY_REJECTED"
	CodeMissingInput       Code = "MISSING_INPUT"
	CodeInvalidArgument    Code = "INVALID_ARGUMENT"
	CodeNotFound           Code = "NOT_FOUND"
	CodeConflict           Code = "CONFLICT"
	CodeUnavailable        Code = "UNAVAILABLE"
	CodeRateLimited        Code = "RATE_LIMITED"
	CodeProvisioningFailed Code = "PROVISIONING_FAILED"
	CodeInternal           Code = "INTERNAL"
)

// Error is a coded failure scoped to one request.
type Error struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Retryable reports whether the caller may repeat the action unchanged.
func (e *Error) Retryable() bool { return e.Code == CodeUnavailable }

// MarshalJSON writes the client-facing body. The wrapped cause stays in logs.
func (e *Error) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Code      Code   `json:"code"`
		Message   string `json:"message"`
		Retryable bool   `json:"retryable,omitempty"`
	}{e.Code, e.Message, e.Retryable()})
}

func AuthFailed(msg string) *Error     { return &Error{Code: CodeAuthFailed, Message: msg} }
func Forbidden(msg string) *Error      { return &Error{Code: CodeForbidden, Message: msg} }
func PolicyRejected(msg string) *Error { return &Error{Code: CodePolicyRejected, Message: msg} }
func MissingInput(msg string) *Error   { return &Error{Code: CodeMissingInput, Message: msg} }
func Invalid(msg string) *Error        { return &Error{Code: CodeInvalidArgument, Message: msg} }
func NotFound(msg string) *Error       { return &Error{Code: CodeNotFound, Message: msg} }
func Conflict(msg string) *Error       { return &Error{Code: CodeConflict, Message: msg} }
func Provisioning(msg string) *Error   { return &Error{Code: CodeProvisioningFailed, Message: msg} }
func Internal(msg string) *Error       { return &Error{Code: CodeInternal, Message: msg} }
func RateLimited(msg string) *Error    { return &Error{Code: CodeRateLimited, Message: msg} }

// Unavailable wraps a failed or timed out external call.
func Unavailable(what string, err error) *Error {
	return &Error{Code: CodeUnavailable, Message: what + " unavailable", Err: err}
}

// As extracts an *Error from err. Context deadline and cancellation are
// reported as UNAVAILABLE; anything else uncoded becomes INTERNAL.
func As(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return Unavailable("upstream", err)
	}
	return &Error{Code: CodeInternal, Message: "internal error", Err: err}
}

// Is reports whether err carries the given code.
func Is(err error, code Code) bool {
	var e *Error
	return errors.As(err, &e) && e.Code == code
}

// HTTPStatus maps an error to the status the API answers with.
func HTTPStatus(err error) int {
	switch As(err).Code {
	case CodeAuthFailed:
		return http.StatusUnauthorized
	case CodeForbidden:
		return http.StatusForbidden
	case CodePolicyRejected:
		return http.StatusUnprocessableEntity
	case CodeMissingInput, CodeInvalidArgument:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict:
		return http.StatusConflict
	case CodeUnavailable:
		return http.StatusServiceUnavailable
	case CodeRateLimited:
		return http.StatusTooManyRequests
	case CodeProvisioningFailed:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
