// Package errors defines the error taxonomy shared by the storage core, the
// application services and the handler boundary.
//
// Every error carries an ErrorType so the observability layer can tag log
// entries with a stable kind, independent of the Go type that produced it.
package errors

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrorType defines the category of an error for logging and handling.
type ErrorType string

const (
	ErrorTypeMalformedKey  ErrorType = "MALFORMED_KEY"
	ErrorTypeCodecMismatch ErrorType = "CODEC_MISMATCH"
	ErrorTypeValidation    ErrorType = "VALIDATION"
	ErrorTypeNotFound      ErrorType = "NOT_FOUND"
	ErrorTypeTransient     ErrorType = "TRANSIENT"
	ErrorTypeInternal      ErrorType = "INTERNAL"
)

// MalformedKeyError reports a sort key that does not decode to the shape the
// entity type expects. It is never retryable.
type MalformedKeyError struct {
	EntityType string
	Key        string
	Expected   int
	Actual     int
}

func (e *MalformedKeyError) Error() string {
	if e.Expected > 0 && e.Actual != e.Expected {
		return fmt.Sprintf("malformed %s sort key %q: expected %d segments, got %d",
			e.EntityType, e.Key, e.Expected, e.Actual)
	}
	return fmt.Sprintf("malformed %s sort key %q", e.EntityType, e.Key)
}

// Type returns ErrorTypeMalformedKey.
func (e *MalformedKeyError) Type() ErrorType { return ErrorTypeMalformedKey }

// CodecMismatchError reports an operation on an entity type that cannot be
// encoded or decoded by the codec at hand.
type CodecMismatchError struct {
	Expected string
	Actual   string
	Reason   string
}

func (e *CodecMismatchError) Error() string {
	switch {
	case e.Reason != "":
		return fmt.Sprintf("codec mismatch for %s: %s", e.Expected, e.Reason)
	case e.Actual != "":
		return fmt.Sprintf("codec mismatch: expected %s record, got %s", e.Expected, e.Actual)
	default:
		return fmt.Sprintf("codec mismatch for %s", e.Expected)
	}
}

// Type returns ErrorTypeCodecMismatch.
func (e *CodecMismatchError) Type() ErrorType { return ErrorTypeCodecMismatch }

// ValidationError reports required or invalid fields found while building an
// entity, before any store interaction.
type ValidationError struct {
	Entity string
	Fields map[string]string
}

// NewValidationError creates a ValidationError for a single field.
func NewValidationError(entity, field, reason string) *ValidationError {
	return &ValidationError{Entity: entity, Fields: map[string]string{field: reason}}
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s %s", name, e.Fields[name]))
	}
	return fmt.Sprintf("invalid %s: %s", e.Entity, strings.Join(parts, "; "))
}

// Type returns ErrorTypeValidation.
func (e *ValidationError) Type() ErrorType { return ErrorTypeValidation }

// Typed is implemented by every error in this package.
type Typed interface {
	error
	Type() ErrorType
}

// TypeOf returns the ErrorType of the first typed error in err's chain.
// Errors classified as transient store failures report ErrorTypeTransient;
// everything else is ErrorTypeInternal.
func TypeOf(err error) ErrorType {
	if err == nil {
		return ""
	}
	var typed Typed
	if errors.As(err, &typed) {
		return typed.Type()
	}
	if IsTransient(err) {
		return ErrorTypeTransient
	}
	return ErrorTypeInternal
}

// IsMalformedKey reports whether err is or wraps a MalformedKeyError.
func IsMalformedKey(err error) bool {
	var target *MalformedKeyError
	return errors.As(err, &target)
}

// IsCodecMismatch reports whether err is or wraps a CodecMismatchError.
func IsCodecMismatch(err error) bool {
	var target *CodecMismatchError
	return errors.As(err, &target)
}

// IsValidation reports whether err is or wraps a ValidationError.
func IsValidation(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

// NotFoundError reports a write that targeted a record which does not exist.
// Point lookups never return it; they report absence as a value.
type NotFoundError struct {
	PK string
	SK string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("record %s/%s not found", e.PK, e.SK)
}

// Type returns ErrorTypeNotFound.
func (e *NotFoundError) Type() ErrorType { return ErrorTypeNotFound }

// IsNotFound reports whether err is or wraps a NotFoundError.
func IsNotFound(err error) bool {
	var target *NotFoundError
	return errors.As(err, &target)
}
