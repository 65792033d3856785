package query

import (
	"errors"
	"fmt"
)

// Validation constants to prevent DoS and resource exhaustion
const (
	// MaxParamLength is the maximum allowed length of a single parameter value (64KB)
	MaxParamLength = 64 * 1024

	// MaxPredicates is the maximum number of filter entries in a request
	MaxPredicates = 256

	// MaxColumnNameLength is the maximum length for a column name
	MaxColumnNameLength = 256
)

var (
	// ErrParse is returned for any malformed column or filter parameter.
	// Every other validation error wraps it.
	ErrParse = errors.New("malformed parameter")

	// ErrParamTooLong is returned when a parameter exceeds MaxParamLength
	ErrParamTooLong = errors.New("parameter too long")

	// ErrTooManyPredicates is returned when filters exceed MaxPredicates
	ErrTooManyPredicates = errors.New("too many filters")

	// ErrColumnNameTooLong is returned when column name is too long
	ErrColumnNameTooLong = errors.New("column name too long")

	// ErrEmptyColumnName is returned for an empty entry in a column list
	ErrEmptyColumnName = errors.New("column name cannot be empty")
)

// ValidateParam performs length validation on a raw parameter value
func ValidateParam(key, value string) error {
	if len(value) > MaxParamLength {
		return fmt.Errorf("%w: %w: %s is %d bytes (max %d)", ErrParse, ErrParamTooLong, key, len(value), MaxParamLength)
	}
	return nil
}

// ValidateColumnName validates column name length and content
func ValidateColumnName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: %w", ErrParse, ErrEmptyColumnName)
	}
	if len(name) > MaxColumnNameLength {
		return fmt.Errorf("%w: %w: %d chars (max %d)", ErrParse, ErrColumnNameTooLong, len(name), MaxColumnNameLength)
	}
	return nil
}

// ValidatePredicateCount validates the number of filter entries
func ValidatePredicateCount(n int) error {
	if n > MaxPredicates {
		return fmt.Errorf("%w: %w: %d (max %d)", ErrParse, ErrTooManyPredicates, n, MaxPredicates)
	}
	return nil
}
