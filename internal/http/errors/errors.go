// Package errors traduce errores de servicio a respuestas HTTP con el
// formato OAuth2 ({"error", "error_description"}). Es el único lugar donde
// un Kind de servicio se convierte en status code.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"

	svc "github.com/dropDatabas3/authvital/internal/http/services/oauth"
)

// AppError es un error listo para el cliente.
type AppError struct {
	Code       string
	Message    string
	HTTPStatus int
	// Err es la causa, solo para logs.
	Err error
	// Challenge va al header WWW-Authenticate en respuestas 401.
	Challenge string
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return e.Code + ": " + e.Message
}

func (e *AppError) Unwrap() error { return e.Err }

// WithMessage retorna una copia con otro mensaje.
func (e *AppError) WithMessage(msg string) *AppError {
	c := *e
	c.Message = msg
	return &c
}

// WithCause retorna una copia con la causa adjunta.
func (e *AppError) WithCause(err error) *AppError {
	c := *e
	c.Err = err
	return &c
}

// New crea un AppError.
func New(status int, code, msg string) *AppError {
	return &AppError{Code: code, Message: msg, HTTPStatus: status}
}

// Errores de transporte que no nacen en un servicio.
var (
	ErrMethodNotAllowed = New(http.StatusMethodNotAllowed, svc.CodeInvalidRequest, "method not allowed")
	ErrInvalidBody      = New(http.StatusBadRequest, svc.CodeInvalidRequest, "malformed request body")
	ErrNotFound         = New(http.StatusNotFound, "not_found", "resource not found")
	ErrRateLimited      = New(http.StatusTooManyRequests, "rate_limited", "too many requests")
	ErrMissingToken     = &AppError{
		Code:       svc.CodeInvalidToken,
		Message:    "missing bearer token",
		HTTPStatus: http.StatusUnauthorized,
		Challenge:  `Bearer realm="authvital"`,
	}
	ErrInvalidToken = &AppError{
		Code:       svc.CodeInvalidToken,
		Message:    "token is invalid or expired",
		HTTPStatus: http.StatusUnauthorized,
		Challenge:  `Bearer realm="authvital", error="invalid_token"`,
	}
	ErrInsufficientScope = &AppError{
		Code:       "insufficient_scope",
		Message:    "token lacks the required scope",
		HTTPStatus: http.StatusForbidden,
	}
	ErrInternal = New(http.StatusInternalServerError, svc.CodeServerError, "internal server error")
)

// StatusFor mapea un Kind de servicio a su status HTTP.
func StatusFor(k svc.Kind) int {
	switch k {
	case svc.KindBadRequest:
		return http.StatusBadRequest
	case svc.KindUnauthorized:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// FromError convierte cualquier error en *AppError. Los *oauth.Error se
// mapean por Kind; el resto es 500 sin filtrar el mensaje interno.
func FromError(err error) *AppError {
	if err == nil {
		return nil
	}
	var ae *AppError
	if stderrors.As(err, &ae) {
		return ae
	}
	oe := svc.AsError(err)
	out := &AppError{
		Code:       oe.Code,
		Message:    oe.Reason,
		HTTPStatus: StatusFor(oe.Kind),
		Err:        oe.Err,
	}
	if oe.Kind == svc.KindInternal {
		out.Message = ErrInternal.Message
	}
	if out.HTTPStatus == http.StatusUnauthorized && oe.Code == svc.CodeInvalidClient {
		out.Challenge = `Basic realm="authvital"`
	}
	return out
}
