package domain

import (
	"errors"
	"reflect"
	"strings"
	"time"

	apperrors "brain2-assistant/internal/errors"

	"github.com/go-playground/validator/v10"
)

// TimestampLayout is the fixed-width UTC layout used for message timestamps.
// Message sort keys order chronologically only because every timestamp has
// this exact width and zone.
const TimestampLayout = "2006-01-02T15:04:05Z"

// KeySeparator delimits the segments of a composite sort key. Identifiers
// that end up inside a key must not contain it.
const KeySeparator = "#"

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})
	_ = v.RegisterValidation("keypart", func(fl validator.FieldLevel) bool {
		return !strings.Contains(fl.Field().String(), KeySeparator)
	})
	return v
}

// validateInput runs the struct tags of an input and converts failures into a
// ValidationError naming every offending field.
func validateInput(entity string, in any) error {
	err := validate.Struct(in)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return apperrors.NewValidationError(entity, "input", err.Error())
	}

	verr := &apperrors.ValidationError{Entity: entity, Fields: make(map[string]string, len(fieldErrs))}
	for _, fe := range fieldErrs {
		verr.Fields[fe.Field()] = describe(fe)
	}
	return verr
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "keypart":
		return "must not contain '" + KeySeparator + "'"
	case "oneof":
		return "must be one of [" + fe.Param() + "]"
	case "gte":
		return "must be at least " + fe.Param()
	default:
		return "failed " + fe.Tag()
	}
}

// ValidateKeyPart checks a single identifier destined for a composite key.
func ValidateKeyPart(entity, field, value string) error {
	if value == "" {
		return apperrors.NewValidationError(entity, field, "is required")
	}
	if strings.Contains(value, KeySeparator) {
		return apperrors.NewValidationError(entity, field, "must not contain '"+KeySeparator+"'")
	}
	return nil
}

// FormatTimestamp renders t in TimestampLayout, truncated to the second.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// ParseTimestamp parses a value produced by FormatTimestamp.
func ParseTimestamp(v string) (time.Time, error) {
	return time.Parse(TimestampLayout, v)
}
