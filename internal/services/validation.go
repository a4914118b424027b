package services

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// validateInput checks the `validate` tags of v and turns the first failure
// into an ErrInvalidInput carrying a readable message.
func validateInput(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return ErrInvalidInput.wrap(err)
	}
	e := ErrInvalidInput.wrap(err)
	e.Message = fieldMessage(verrs[0])
	return e
}

func fieldMessage(fe validator.FieldError) string {
	field := strings.ToLower(fe.Field())
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required.", field)
	case "email":
		return "Please enter a valid email address."
	case "min":
		return fmt.Sprintf("%s must be at least %s characters long.", field, fe.Param())
	}
	return fmt.Sprintf("%s is invalid.", field)
}

func invalidInput(message string) error {
	e := ErrInvalidInput.wrap(errors.New(message))
	e.Message = message
	return e
}
