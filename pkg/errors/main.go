package errors

import (
	"errors"
	"fmt"
)

const (
	StatusOK                  = 200
	StatusBadRequest          = 400
	StatusForbidden           = 403
	StatusNotFound            = 404
	StatusMethodNotAllowed    = 405
	StatusTooManyRequests     = 429
	StatusInternalServerError = 500
)

const (
	ErrorTypeDatabaseError       = "DATABASE_ERROR"
	ErrorTypeNotFound            = "NOT_FOUND"
	ErrorTypeInvalidPayload      = "INVALID_PAYLOAD"
	ErrorTypeInvalidEmail        = "INVALID_EMAIL"
	ErrorTypeForbidden           = "FORBIDDEN"
	ErrorTypeUnknown             = "UNKNOWN_ERROR"
	ErrorTypeRateLimitExceeded   = "RATE_LIMIT_EXCEEDED"
	ErrorTypeMethodNotAllowed    = "METHOD_NOT_ALLOWED"
)

// Public messages. These are the stable "error" strings of the response body.
const (
	MessageForbidden        = "Forbidden"
	MessageNotFound         = "Not found"
	MessageMethodNotAllowed = "Method not allowed"
	MessageInvalidPayload   = "Invalid JSON"
	MessageInvalidEmail     = "Invalid email"
	MessageTooManyRequests  = "Too many requests"
	MessageStoreError       = "DB error"
	MessageInternalError    = "Internal error"
)

type AppError struct {
	Type    string
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NewAppError(errType, message string, err error) *AppError {
	return &AppError{
		Type:    errType,
		Message: message,
		Err:     err,
	}
}

func NewNotFoundError(err error) *AppError {
	return NewAppError(ErrorTypeNotFound, MessageNotFound, err)
}

func NewMethodNotAllowedError(err error) *AppError {
	return NewAppError(ErrorTypeMethodNotAllowed, MessageMethodNotAllowed, err)
}

func NewForbiddenError(err error) *AppError {
	return NewAppError(ErrorTypeForbidden, MessageForbidden, err)
}

func NewInvalidPayloadError(err error) *AppError {
	return NewAppError(ErrorTypeInvalidPayload, MessageInvalidPayload, err)
}

func NewInvalidEmailError(err error) *AppError {
	return NewAppError(ErrorTypeInvalidEmail, MessageInvalidEmail, err)
}

func NewRateLimitExceededError(err error) *AppError {
	return NewAppError(ErrorTypeRateLimitExceeded, MessageTooManyRequests, err)
}

// NewDatabaseError covers both collaborators: the counter store and the durable store.
func NewDatabaseError(err error) *AppError {
	return NewAppError(ErrorTypeDatabaseError, MessageStoreError, err)
}

func GetErrorType(err error) string {
	if err == nil {
		return ""
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type
	}

	return ErrorTypeUnknown
}
