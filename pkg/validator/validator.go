package validator

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks a struct against its `validate` tags. On failure the
// returned error is a *ValidationError carrying per-field messages.
func Validate(s any) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	if fieldErrs, ok := err.(validator.ValidationErrors); ok {
		return &ValidationError{Errors: fieldErrs}
	}
	return err
}

// ValidationError carries the individual field failures so transport
// layers can report them per field instead of as one opaque string.
type ValidationError struct {
	Errors validator.ValidationErrors
}

func (e *ValidationError) Error() string {
	msgs := make([]string, len(e.Errors))
	for i, fe := range e.Errors {
		msgs[i] = fmt.Sprintf("field '%s' %s", fe.Field(), fieldMessage(fe))
	}
	return strings.Join(msgs, "; ")
}

// Fields returns a field-name to message map for response bodies.
func (e *ValidationError) Fields() map[string]string {
	fields := make(map[string]string, len(e.Errors))
	for _, fe := range e.Errors {
		fields[fe.Field()] = fieldMessage(fe)
	}
	return fields
}

// Messages for the tags the request types actually use. Anything else
// falls through to a generic message naming the tag.
var tagMessages = map[string]string{
	"required": "is required",
	"uuid":     "must be a valid UUID",
}

func fieldMessage(fe validator.FieldError) string {
	if msg, ok := tagMessages[fe.Tag()]; ok {
		return msg
	}
	switch fe.Tag() {
	case "gte":
		return fmt.Sprintf("must be greater than or equal to %s", fe.Param())
	case "lte":
		return fmt.Sprintf("must be less than or equal to %s", fe.Param())
	default:
		return fmt.Sprintf("failed on '%s' validation", fe.Tag())
	}
}
