package utils

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	pkgerrors "github.com/nicobenz/flowpertoire/pkg/errors"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// ValidateStruct validates a request DTO by its validate tags. Failures come
// back as a validation AppError with one detail per offending field.
func ValidateStruct(s interface{}) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrors validator.ValidationErrors
	if !errors.As(err, &fieldErrors) {
		return pkgerrors.NewValidationError(err.Error())
	}

	messages := make([]string, 0, len(fieldErrors))
	appErr := pkgerrors.NewValidationError("")
	for _, e := range fieldErrors {
		msg := formatFieldError(e)
		messages = append(messages, msg)
		appErr.WithDetail(jsonName(e), msg)
	}
	appErr.Message = strings.Join(messages, "; ")
	return appErr
}

// formatFieldError formats a single field validation error
func formatFieldError(e validator.FieldError) string {
	field := jsonName(e)

	switch e.Tag() {
	case "required", "required_without":
		return fmt.Sprintf("%s is required", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, e.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, e.Param())
	case "gte":
		return fmt.Sprintf("%s must be %s or more", field, e.Param())
	case "lte":
		return fmt.Sprintf("%s must be %s or less", field, e.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, e.Param())
	case "nefield":
		return fmt.Sprintf("%s must differ from %s", field, strings.ToLower(e.Param()))
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}

func jsonName(e validator.FieldError) string {
	return strings.ToLower(e.Field())
}
