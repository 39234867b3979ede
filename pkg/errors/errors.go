package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// Kind classifies an application error
type Kind int

// Error kinds
const (
	KindInternal Kind = iota + 1000
	KindAuthentication
	KindNotFound
	KindValidation
	KindFetch
	KindForbidden
)

func (k Kind) String() string {
	switch k {
	case KindAuthentication:
		return "authentication"
	case KindNotFound:
		return "not_found"
	case KindValidation:
		return "validation"
	case KindFetch:
		return "fetch"
	case KindForbidden:
		return "forbidden"
	default:
		return "internal"
	}
}

// AppError represents an application error
type AppError struct {
	Kind    Kind              `json:"kind"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
	Err     error             `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// StatusCode maps the error kind onto an HTTP status.
func (e *AppError) StatusCode() int {
	switch e.Kind {
	case KindAuthentication:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindValidation:
		return http.StatusUnprocessableEntity
	case KindFetch:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Error constructors
func Authentication(message string, err error) *AppError {
	if message == "" {
		message = "authentication failed"
	}
	return &AppError{Kind: KindAuthentication, Message: message, Err: err}
}

func NotFound(resource string, err error) *AppError {
	return &AppError{
		Kind:    KindNotFound,
		Message: fmt.Sprintf("%s not found", resource),
		Err:     err,
	}
}

func Validation(message string, fields map[string]string, err error) *AppError {
	return &AppError{Kind: KindValidation, Message: message, Fields: fields, Err: err}
}

func Fetch(message string, err error) *AppError {
	return &AppError{Kind: KindFetch, Message: message, Err: err}
}

func Forbidden(message string) *AppError {
	return &AppError{Kind: KindForbidden, Message: message}
}

func Internal(err error) *AppError {
	return &AppError{Kind: KindInternal, Message: "internal server error", Err: err}
}

// KindOf returns the kind of the first AppError in err's chain, or
// KindInternal when there is none.
func KindOf(err error) Kind {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// As is errors.As, re-exported so callers need only one errors import.
func As(err error, target any) bool {
	return stderrors.As(err, target)
}

func IsAuthentication(err error) bool { return err != nil && KindOf(err) == KindAuthentication }
func IsNotFound(err error) bool       { return err != nil && KindOf(err) == KindNotFound }
func IsValidation(err error) bool     { return err != nil && KindOf(err) == KindValidation }
func IsFetch(err error) bool          { return err != nil && KindOf(err) == KindFetch }
