package domain

import (
	"errors"
	"fmt"
)

// ErrorType classifies domain-specific errors.
type ErrorType string

const (
	ErrorTypeImage      ErrorType = "image"
	ErrorTypeModel      ErrorType = "model"
	ErrorTypeInference  ErrorType = "inference"
	ErrorTypeTimeout    ErrorType = "timeout"
	ErrorTypeCapacity   ErrorType = "capacity"
	ErrorTypeCancelled  ErrorType = "cancelled"
	ErrorTypeValidation ErrorType = "validation"
	ErrorTypeNotFound   ErrorType = "not_found"
)

// DomainError represents a domain-specific error with context.
type DomainError struct {
	Type    ErrorType
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewError creates a new domain error.
func NewError(errType ErrorType, message string, err error) *DomainError {
	return &DomainError{
		Type:    errType,
		Message: message,
		Err:     err,
	}
}

// Common error constructors
func ImageError(message string, err error) *DomainError {
	return NewError(ErrorTypeImage, message, err)
}

func ModelError(message string, err error) *DomainError {
	return NewError(ErrorTypeModel, message, err)
}

func InferenceFailure(message string, err error) *DomainError {
	return NewError(ErrorTypeInference, message, err)
}

func TimeoutError(message string, err error) *DomainError {
	return NewError(ErrorTypeTimeout, message, err)
}

func CapacityError(message string, err error) *DomainError {
	return NewError(ErrorTypeCapacity, message, err)
}

func CancelledError(message string, err error) *DomainError {
	return NewError(ErrorTypeCancelled, message, err)
}

func ValidationError(message string, err error) *DomainError {
	return NewError(ErrorTypeValidation, message, err)
}

func NotFoundError(message string, err error) *DomainError {
	return NewError(ErrorTypeNotFound, message, err)
}

// TypeOf returns the error type of err, or empty string for foreign errors.
func TypeOf(err error) ErrorType {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Type
	}
	return ""
}

// IsType reports whether err is a DomainError of the given type.
func IsType(err error, t ErrorType) bool {
	return TypeOf(err) == t
}

// InfoFromError converts an error into the ErrorInfo surfaced to clients.
func InfoFromError(err error, elementID string) *ErrorInfo {
	code := TypeOf(err)
	if code == "" {
		code = ErrorTypeInference
	}
	return &ErrorInfo{
		Code:      code,
		Message:   err.Error(),
		ElementID: elementID,
	}
}
