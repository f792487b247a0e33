package dto

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	apperrors "github.com/spec-kit/helpdesk-tickets/pkg/util/errorutil"
)

// Validator wraps go-playground/validator and reports every failing field.
type Validator struct {
	validate *validator.Validate
}

// NewValidator uses json tag names in error details.
func NewValidator() *Validator {
	v := validator.New()
	v.RegisterTagNameFunc(jsonFieldName)
	return &Validator{validate: v}
}

// Validate returns a ValidationError keyed by field.
func (v *Validator) Validate(i any) error {
	err := v.validate.Struct(i)
	if err == nil {
		return nil
	}
	var fieldErrors validator.ValidationErrors
	if !errors.As(err, &fieldErrors) {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	details := make(map[string]any, len(fieldErrors))
	for _, fe := range fieldErrors {
		details[fe.Field()] = "failed on '" + fe.Tag() + "' validation"
	}
	return apperrors.NewValidationError("invalid payload", details)
}

func jsonFieldName(field reflect.StructField) string {
	name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
	if name == "-" {
		return ""
	}
	if name == "" {
		return field.Name
	}
	return name
}
