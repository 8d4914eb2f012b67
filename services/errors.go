package services

import (
	"errors"
	"strings"
)

var (
	ErrUserNotFound         = errors.New("user not found")
	ErrDesignNotFound       = errors.New("design not found")
	ErrQuoteNotFound        = errors.New("quote not found")
	ErrOrderNotFound        = errors.New("order not found")
	ErrProfileNotFound      = errors.New("manufacturer profile not found")
	ErrManufacturerNotFound = errors.New("manufacturer not found")
	ErrQuoteExists          = errors.New("manufacturer has already quoted this design")
	ErrNoQuotesGenerated    = errors.New("no quotes could be generated")
)

// PermissionError is returned when the caller may not act on a resource
type PermissionError struct {
	Message string
}

func (e *PermissionError) Error() string {
	return e.Message
}

// ValidationError rejects request input, optionally naming the field.
// Details carries individual messages when several checks failed.
type ValidationError struct {
	Field   string
	Message string
	Details []string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func forbidden(msg string) error {
	return &PermissionError{Message: msg}
}

func invalid(field, msg string) error {
	return &ValidationError{Field: field, Message: msg}
}

// IsUniqueViolation detects duplicate-key errors from postgres and sqlite
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate") ||
		strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "unique")
}
