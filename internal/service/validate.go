package service

import (
	"errors"

	"tutorx/internal/models"
	"tutorx/internal/validation"
)

// validateInput runs struct tag validation and reports the first failing field.
func validateInput(in any) error {
	err := validation.Struct(in)
	if err == nil {
		return nil
	}
	var fe *validation.FieldError
	if errors.As(err, &fe) {
		return models.NewValidationError(fe.Message)
	}
	return models.NewValidationError("Invalid input")
}
