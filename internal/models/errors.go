package models

import (
	"errors"
	"fmt"
)

// Error codes for client-side failures that never reach the network.
const (
	CodeValidation       = "VALIDATION_ERROR"
	CodeNotAuthenticated = "NOT_AUTHENTICATED"
	CodeTogglePending    = "TOGGLE_PENDING"
)

// AppError represents a client-side application error
type AppError struct {
	Code    string
	Message string
	Err     error
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

// Predefined error constructors
func NewValidationError(message string) *AppError {
	return &AppError{
		Code:    CodeValidation,
		Message: message,
	}
}

func NewNotAuthenticatedError(action string) *AppError {
	return &AppError{
		Code:    CodeNotAuthenticated,
		Message: fmt.Sprintf("You must be logged in to %s", action),
	}
}

func NewTogglePendingError(resource string, err error) *AppError {
	return &AppError{
		Code:    CodeTogglePending,
		Message: fmt.Sprintf("%s is still being updated", resource),
		Err:     err,
	}
}

// HasCode reports whether err wraps an AppError with the given code.
func HasCode(err error, code string) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}
