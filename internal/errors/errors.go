// Package errors defines the application error taxonomy and its mapping
// onto RFC 7807 problem responses at the HTTP boundary.
package errors

import (
	"errors"
	"fmt"
)

// ErrorType classifies an AppError for transport mapping and logging.
type ErrorType string

const (
	ErrTypeNotFound   ErrorType = "NOT_FOUND"
	ErrTypeValidation ErrorType = "VALIDATION"
	ErrTypeConflict   ErrorType = "CONFLICT"
	ErrTypeActivation ErrorType = "ACTIVATION"
	ErrTypeStorage    ErrorType = "STORAGE"
	ErrTypeInternal   ErrorType = "INTERNAL"
)

// AppError is the error type carried between the services and transport
// layers. It wraps an underlying cause and carries structured context
// that ends up in problem-response extensions and log attributes.
type AppError struct {
	Type    ErrorType
	Message string
	Cause   error
	Context map[string]interface{}
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is matches two AppErrors by type, so errors.Is(err, NewNotFound(...))
// style checks work without comparing messages.
func (e *AppError) Is(target error) bool {
	var appErr *AppError
	if errors.As(target, &appErr) {
		return e.Type == appErr.Type
	}
	return false
}

// WithContext attaches a key/value pair, returning the error for chaining.
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

func NewNotFound(message string) *AppError {
	return &AppError{Type: ErrTypeNotFound, Message: message}
}

func NewValidation(message string) *AppError {
	return &AppError{Type: ErrTypeValidation, Message: message}
}

func NewConflict(message string) *AppError {
	return &AppError{Type: ErrTypeConflict, Message: message}
}

func NewActivation(message string) *AppError {
	return &AppError{Type: ErrTypeActivation, Message: message}
}

func NewStorage(message string, cause error) *AppError {
	return &AppError{Type: ErrTypeStorage, Message: message, Cause: cause}
}

func NewInternal(message string, cause error) *AppError {
	return &AppError{Type: ErrTypeInternal, Message: message, Cause: cause}
}

// TypeOf extracts the ErrorType from any error; unclassified errors are
// reported as internal.
func TypeOf(err error) ErrorType {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type
	}
	return ErrTypeInternal
}
