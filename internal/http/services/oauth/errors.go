package oauth

import (
	"errors"
	"fmt"
)

// Kind classifies a service failure. The HTTP adapter maps it to a status.
type Kind int

const (
	KindBadRequest Kind = iota + 1
	KindUnauthorized
	KindInternal
)

func (k Kind) String() string {
	switch k {
	case KindBadRequest:
		return "bad_request"
	case KindUnauthorized:
		return "unauthorized"
	case KindInternal:
		return "internal"
	default:
		return "unknown"
	}
}

// OAuth wire error codes (RFC 6749 §4.1.2.1, §5.2; RFC 7009; RFC 6750).
const (
	CodeInvalidRequest          = "invalid_request"
	CodeInvalidClient           = "invalid_client"
	CodeInvalidGrant            = "invalid_grant"
	CodeUnauthorizedClient      = "unauthorized_client"
	CodeUnsupportedGrantType    = "unsupported_grant_type"
	CodeUnsupportedResponseType = "unsupported_response_type"
	CodeInvalidScope            = "invalid_scope"
	CodeAccessDenied            = "access_denied"
	CodeInvalidToken            = "invalid_token"
	CodeServerError             = "server_error"
)

// Error is the only error type returned across the service boundary.
// Reason is safe to show to the caller; Err is for logs.
type Error struct {
	Kind   Kind
	Code   string
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Reason, e.Err)
	}
	return e.Code + ": " + e.Reason
}

func (e *Error) Unwrap() error { return e.Err }

// AsError extracts an *Error from err. Anything else becomes server_error.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var oe *Error
	if errors.As(err, &oe) {
		return oe
	}
	return internalErr(err)
}

// IsKind reports whether err is an *Error of kind k.
func IsKind(err error, k Kind) bool {
	var oe *Error
	return errors.As(err, &oe) && oe.Kind == k
}

func badRequest(code, reason string) *Error {
	return &Error{Kind: KindBadRequest, Code: code, Reason: reason}
}

func unauthorized(code, reason string) *Error {
	return &Error{Kind: KindUnauthorized, Code: code, Reason: reason}
}

func internalErr(err error) *Error {
	return &Error{Kind: KindInternal, Code: CodeServerError, Reason: "internal server error", Err: err}
}

// ErrCodeReplay is wrapped by the invalid_grant returned when an already
// redeemed authorization code is presented again.
var ErrCodeReplay = errors.New("authorization code replay")

// Common failures. invalid_client and invalid_grant reasons stay generic so
// callers cannot tell which check failed.
var (
	errInvalidClient = func() *Error { return unauthorized(CodeInvalidClient, "client authentication failed") }
	errInvalidGrant  = func(reason string) *Error { return unauthorized(CodeInvalidGrant, reason) }
)
