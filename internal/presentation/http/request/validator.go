// Package request binds and validates HTTP request payloads.
package request

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/Additional-Code/seido/pkg/errorbank"
)

// Validator adapts go-playground/validator to echo.Validator.
type Validator struct {
	validate *validator.Validate
}

// NewValidator builds a Validator reporting JSON field names.
func NewValidator() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return &Validator{validate: v}
}

// Validate implements echo.Validator.
func (v *Validator) Validate(i any) error {
	return v.validate.Struct(i)
}

// Normalizer is implemented by payloads that clean themselves up before validation.
type Normalizer interface {
	Normalize()
}

// Bind decodes the request body into dst, normalizes and validates it.
// Failures come back as errorbank bad request errors with one detail per
// invalid field.
func Bind(c echo.Context, dst any) error {
	if err := c.Bind(dst); err != nil {
		return errorbank.BadRequest("invalid payload", errorbank.WithCause(err))
	}
	if n, ok := dst.(Normalizer); ok {
		n.Normalize()
	}
	if err := c.Validate(dst); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return errorbank.BadRequest("invalid payload", errorbank.WithCause(err))
		}
		details := make(map[string]any, len(fieldErrs))
		for _, fe := range fieldErrs {
			details[fe.Field()] = fe.Tag()
		}
		return errorbank.BadRequest("validation failed", errorbank.WithDetails(details))
	}
	return nil
}
