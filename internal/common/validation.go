package common

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// RequestValidator validates decoded request payloads using struct tags.
// It satisfies echo.Validator.
type RequestValidator struct {
	validate *validator.Validate
}

// NewRequestValidator creates a validator with the project's custom tags registered.
func NewRequestValidator() *RequestValidator {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("notblank", notBlank)
	// report json names so messages match the request payload
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return &RequestValidator{validate: v}
}

// Validate returns an AppError wrapping ErrInvalidInput listing every failed field.
func (rv *RequestValidator) Validate(i interface{}) error {
	err := rv.validate.Struct(i)
	if err == nil {
		return nil
	}
	var errs validator.ValidationErrors
	if !errors.As(err, &errs) {
		return NewAppError("VALIDATION_ERROR", err.Error(), ErrInvalidInput)
	}
	messages := make([]string, 0, len(errs))
	for _, e := range errs {
		messages = append(messages, translateError(e))
	}
	return NewAppError("VALIDATION_ERROR", strings.Join(messages, "; "), ErrInvalidInput)
}

func notBlank(fl validator.FieldLevel) bool {
	return strings.TrimSpace(fl.Field().String()) != ""
}

func translateError(e validator.FieldError) string {
	switch e.Tag() {
	case "required", "notblank", "required_without":
		return fmt.Sprintf("%s is required", e.Field())
	case "base64":
		return fmt.Sprintf("%s must be base64 encoded", e.Field())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", e.Field(), e.Param())
	case "min":
		return fmt.Sprintf("%s must have at least %s entries", e.Field(), e.Param())
	default:
		return fmt.Sprintf("%s failed the %q check", e.Field(), e.Tag())
	}
}
