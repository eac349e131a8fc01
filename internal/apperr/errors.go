// Package apperr classifies every failure that leaves the auth subsystem into one
// taxonomy kind plus a machine-readable code. Transports map kinds to HTTP and gRPC
// status codes; see HTTPStatus and the gRPC interceptors.
package apperr

import (
	"errors"
	"fmt"
	"math"
	"net/http"
	"time"
)

// Kind is the taxonomy bucket of an error.
type Kind string

const (
	KindValidation     Kind = "ValidationError"
	KindAuthentication Kind = "AuthenticationError"
	KindAuthorization  Kind = "AuthorizationError"
	KindConflict       Kind = "ConflictError"
	KindRateLimited    Kind = "RateLimited"
	KindInternal       Kind = "InternalError"
)

// Code is the machine-readable reason within a Kind.
type Code string

const (
	CodeInvalidInput        Code = "invalid_input"
	CodeMissingToken        Code = "missing_token"
	CodeMalformedToken      Code = "malformed_token"
	CodeExpiredToken        Code = "expired_token"
	CodeInvalidSignature    Code = "invalid_signature"
	CodeInvalidRefreshToken Code = "invalid_refresh_token"
	CodeSessionNotFound     Code = "session_not_found"
	CodeInvalidCredentials  Code = "invalid_credentials"
	CodeAccountNotFound     Code = "account_not_found"
	CodeAccountInactive     Code = "account_inactive"
	CodePermissionDenied    Code = "permission_denied"
	CodeMissingKey          Code = "missing_key"
	CodeInvalidKey          Code = "invalid_key"
	CodeKeyExpired          Code = "key_expired"
	CodeEmailTaken          Code = "email_taken"
	CodeNotFound            Code = "not_found"
	CodeRateLimited         Code = "rate_limited"
	CodeInternal            Code = "internal"
)

// Error is a classified error. Two Errors match under errors.Is when their codes are equal,
// so callers compare against the sentinels below regardless of message or wrapped cause.
type Error struct {
	Kind       Kind
	Code       Code
	Message    string
	RetryAfter time.Duration // set only for KindRateLimited
	Err        error         // underlying cause, never shown to clients
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is an *Error with the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// RetryAfterSeconds rounds RetryAfter up to whole seconds; zero when unset.
func (e *Error) RetryAfterSeconds() int {
	if e.RetryAfter <= 0 {
		return 0
	}
	return int(math.Ceil(e.RetryAfter.Seconds()))
}

// PublicMessage returns the message safe to send to a client. Internal errors are
// redacted in production and carry the cause in development.
func (e *Error) PublicMessage(production bool) string {
	if e.Kind != KindInternal {
		return e.Message
	}
	if production || e.Err == nil {
		return "internal error"
	}
	return e.Error()
}

// Sentinel errors. Use errors.Is to compare.
var (
	ErrMissingToken        = newSentinel(KindAuthentication, CodeMissingToken, "missing access token")
	ErrMalformedToken      = newSentinel(KindAuthentication, CodeMalformedToken, "malformed token")
	ErrExpiredToken        = newSentinel(KindAuthentication, CodeExpiredToken, "token expired")
	ErrInvalidSignature    = newSentinel(KindAuthentication, CodeInvalidSignature, "invalid token signature")
	ErrInvalidRefreshToken = newSentinel(KindAuthentication, CodeInvalidRefreshToken, "invalid refresh token")
	ErrSessionNotFound     = newSentinel(KindAuthentication, CodeSessionNotFound, "session not found or no longer active")
	ErrInvalidCredentials  = newSentinel(KindAuthentication, CodeInvalidCredentials, "invalid email or password")
	ErrAccountNotFound     = newSentinel(KindAuthentication, CodeAccountNotFound, "account not found")
	ErrAccountInactive     = newSentinel(KindAuthorization, CodeAccountInactive, "account is not active")
	ErrPermissionDenied    = newSentinel(KindAuthorization, CodePermissionDenied, "insufficient role or plan")
	ErrMissingKey          = newSentinel(KindAuthentication, CodeMissingKey, "missing api key")
	ErrInvalidKey          = newSentinel(KindAuthentication, CodeInvalidKey, "invalid api key")
	ErrKeyExpired          = newSentinel(KindAuthentication, CodeKeyExpired, "api key expired")
	ErrEmailTaken          = newSentinel(KindConflict, CodeEmailTaken, "email already registered")
	ErrNotFound            = newSentinel(KindValidation, CodeNotFound, "resource not found")
	ErrRateLimited         = newSentinel(KindRateLimited, CodeRateLimited, "rate limit exceeded")
	ErrInternal            = newSentinel(KindInternal, CodeInternal, "internal error")
)

func newSentinel(kind Kind, code Code, msg string) *Error {
	return &Error{Kind: kind, Code: code, Message: msg}
}

// Validation returns a ValidationError with the given client-facing message.
func Validation(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Code: CodeInvalidInput, Message: fmt.Sprintf(format, args...)}
}

// Internal wraps err as an InternalError.
func Internal(err error) *Error {
	return &Error{Kind: KindInternal, Code: CodeInternal, Message: "internal error", Err: err}
}

// RateLimited returns a RateLimited error carrying the remaining window time.
func RateLimited(retryAfter time.Duration) *Error {
	return &Error{Kind: KindRateLimited, Code: CodeRateLimited, Message: ErrRateLimited.Message, RetryAfter: retryAfter}
}

// Wrap returns a copy of sentinel with cause attached, keeping code and message.
func Wrap(sentinel *Error, cause error) *Error {
	e := *sentinel
	e.Err = cause
	return &e
}

// From classifies any error. Unclassified errors become InternalError.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Internal(err)
}

// HTTPStatus maps an error to its HTTP status code.
func HTTPStatus(err error) int {
	switch From(err).Kind {
	case KindValidation:
		if errors.Is(err, ErrNotFound) {
			return http.StatusNotFound
		}
		return http.StatusBadRequest
	case KindAuthentication:
		return http.StatusUnauthorized
	case KindAuthorization:
		return http.StatusForbidden
	case KindConflict:
		return http.StatusConflict
	case KindRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
