package services

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
)

type ErrorKind int

const (
	KindInternal ErrorKind = iota
	KindUnauthorized
	KindForbidden
	KindNotFound
	KindValidation
	KindConflict
	KindRateLimited
	KindUpstream
)

func (k ErrorKind) String() string {
	switch k {
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not_found"
	case KindValidation:
		return "validation_failed"
	case KindConflict:
		return "conflict"
	case KindRateLimited:
		return "rate_limited"
	case KindUpstream:
		return "upstream_failure"
	default:
		return "internal"
	}
}

// HTTPStatus maps a kind onto the response status.
func (k ErrorKind) HTTPStatus() int {
	switch k {
	case KindUnauthorized:
		return fiber.StatusUnauthorized
	case KindForbidden:
		return fiber.StatusForbidden
	case KindNotFound:
		return fiber.StatusNotFound
	case KindValidation:
		return fiber.StatusBadRequest
	case KindConflict:
		return fiber.StatusConflict
	case KindRateLimited:
		return fiber.StatusTooManyRequests
	case KindUpstream:
		return fiber.StatusBadGateway
	default:
		return fiber.StatusInternalServerError
	}
}

// AppError is a client-visible failure. Code is a stable machine-readable tag.
type AppError struct {
	Kind    ErrorKind
	Code    string
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error { return e.Err }

func newAppError(kind ErrorKind, code, msg string) *AppError {
	return &AppError{Kind: kind, Code: code, Message: msg}
}

func Unauthorized(msg string) *AppError { return newAppError(KindUnauthorized, "unauthorized", msg) }

func Forbidden(code, msg string) *AppError { return newAppError(KindForbidden, code, msg) }

func NotFound(code, msg string) *AppError { return newAppError(KindNotFound, code, msg) }

func Invalid(code, msg string) *AppError { return newAppError(KindValidation, code, msg) }

func Conflict(code, msg string) *AppError { return newAppError(KindConflict, code, msg) }

func RateLimited(code, msg string) *AppError { return newAppError(KindRateLimited, code, msg) }

// Upstream wraps a collaborator failure.
func Upstream(code string, err error) *AppError {
	return &AppError{Kind: KindUpstream, Code: code, Message: "upstream service failed", Err: err}
}

// KindOf reports the kind of err, KindInternal for anything that is not an AppError.
func KindOf(err error) ErrorKind {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// CodeOf reports the AppError code of err, "" otherwise.
func CodeOf(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}
