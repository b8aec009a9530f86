package apperrors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// Kind classifies every error an operation can report. Callers switch on
// Kind (and Code for finer distinctions) instead of matching messages.
type Kind string

const (
	KindValidation      Kind = "VALIDATION_ERROR"
	KindForbidden       Kind = "FORBIDDEN"
	KindUnauthorized    Kind = "UNAUTHORIZED"
	KindUnauthenticated Kind = "UNAUTHENTICATED"
	KindNotFound        Kind = "NOT_FOUND"
	KindNetwork         Kind = "NETWORK_ERROR"
	KindBackend         Kind = "BACKEND_ERROR"
)

// Code narrows a Kind
type Code string

const (
	CodeInvalidInvite      Code = "INVALID_INVITE"
	CodeInvalidCredentials Code = "INVALID_CREDENTIALS"
	CodeEmailNotConfirmed  Code = "EMAIL_NOT_CONFIRMED"
	CodeUserExists         Code = "USER_EXISTS"
	CodeDuplicate          Code = "DUPLICATE"
	CodeFileTooLarge       Code = "FILE_TOO_LARGE"
	CodeInvalidFileType    Code = "INVALID_FILE_TYPE"
	CodeProfileMissing     Code = "PROFILE_MISSING"
)

// AppError is the error type returned across package boundaries
type AppError struct {
	Kind    Kind        `json:"kind"`
	Code    Code        `json:"code,omitempty"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
	Err     error       `json:"-"`
}

func (e *AppError) Error() string {
	label := string(e.Kind)
	if e.Code != "" {
		label += ":" + string(e.Code)
	}
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s (%v)", label, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", label, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Is matches another *AppError by kind, and by code when the target sets one.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	if t.Kind != e.Kind {
		return false
	}
	return t.Code == "" || t.Code == e.Code
}

// WithCode sets the machine code
func (e *AppError) WithCode(code Code) *AppError {
	e.Code = code
	return e
}

// WithDetails attaches structured details
func (e *AppError) WithDetails(details interface{}) *AppError {
	e.Details = details
	return e
}

// HTTPStatus maps the error onto a response status
func (e *AppError) HTTPStatus() int {
	switch e.Code {
	case CodeDuplicate, CodeUserExists:
		return http.StatusConflict
	case CodeFileTooLarge:
		return http.StatusRequestEntityTooLarge
	case CodeInvalidFileType:
		return http.StatusUnsupportedMediaType
	}
	switch e.Kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindUnauthenticated:
		return http.StatusUnauthorized
	case KindUnauthorized, KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindNetwork:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// New creates an error of the given kind
func New(kind Kind, message string) *AppError {
	return &AppError{Kind: kind, Message: message}
}

// Wrap wraps err with a kind and a user-facing message
func Wrap(err error, kind Kind, message string) *AppError {
	return &AppError{Kind: kind, Message: message, Err: err}
}

func Validation(message string) *AppError      { return New(KindValidation, message) }
func Forbidden(message string) *AppError       { return New(KindForbidden, message) }
func Unauthorized(message string) *AppError    { return New(KindUnauthorized, message) }
func Unauthenticated(message string) *AppError { return New(KindUnauthenticated, message) }
func NotFound(message string) *AppError        { return New(KindNotFound, message) }

// Network wraps a transport failure
func Network(err error) *AppError {
	return Wrap(err, KindNetwork, "Unable to reach the backend")
}

// Backend wraps any other failure reported by the backend
func Backend(err error, message string) *AppError {
	return Wrap(err, KindBackend, message)
}

// As finds the first *AppError in err's chain
func As(err error) (*AppError, bool) {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// KindOf returns the kind of err; unknown errors are backend errors.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	if appErr, ok := As(err); ok {
		return appErr.Kind
	}
	return KindBackend
}

// IsKind reports whether err carries the given kind
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// HasCode reports whether err carries the given code
func HasCode(err error, code Code) bool {
	appErr, ok := As(err)
	return ok && appErr.Code == code
}

// Predefined errors for common cases
var (
	ErrInvalidInvite   = NotFound("Invalid invite link").WithCode(CodeInvalidInvite)
	ErrFileTooLarge    = Validation("Image must be 5 MB or smaller").WithCode(CodeFileTooLarge)
	ErrInvalidFileType = Validation("Only image files can be attached").WithCode(CodeInvalidFileType)
	ErrFreelancerOnly  = Forbidden("Only the project freelancer can do this")
	ErrNotMember       = Forbidden("You are not a member of this project")
)
