package serrors

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// BaseError is a coded error with an optional locale key for user-facing messages.
type BaseError struct {
	Code         string            `json:"code"`
	Message      string            `json:"message"`
	LocaleKey    string            `json:"locale_key,omitempty"`
	TemplateData map[string]string `json:"template_data,omitempty"`
}

func NewError(code, message, localeKey string) *BaseError {
	return &BaseError{
		Code:      code,
		Message:   message,
		LocaleKey: localeKey,
	}
}

func (e *BaseError) Error() string {
	return e.Message
}

// WithTemplateData returns a copy carrying the given template data.
func (e *BaseError) WithTemplateData(data map[string]string) *BaseError {
	cp := *e
	cp.TemplateData = data
	return &cp
}

// CodeOf returns the code of the first BaseError in err's chain, or fallback.
func CodeOf(err error, fallback string) string {
	var be *BaseError
	if errors.As(err, &be) && be.Code != "" {
		return be.Code
	}
	return fallback
}

// ValidationErrors maps a struct field name to its validation failure.
type ValidationErrors map[string]*BaseError

func (v ValidationErrors) Error() string {
	parts := make([]string, 0, len(v))
	for field, err := range v {
		parts = append(parts, fmt.Sprintf("%s: %s", field, err.Message))
	}
	return strings.Join(parts, "; ")
}

func NewFieldRequiredError(field, localeKey string) *BaseError {
	return NewError("FIELD_REQUIRED", fmt.Sprintf("%s is required", field), localeKey).
		WithTemplateData(map[string]string{"field": field})
}

// ProcessValidatorErrors converts validator failures into coded field errors.
func ProcessValidatorErrors(errs validator.ValidationErrors, localeKey func(field string) string) ValidationErrors {
	out := make(ValidationErrors, len(errs))
	for _, fe := range errs {
		key := ""
		if localeKey != nil {
			key = localeKey(fe.Field())
		}
		if fe.Tag() == "required" {
			out[fe.Field()] = NewFieldRequiredError(fe.Field(), key)
			continue
		}
		out[fe.Field()] = NewError(
			"FIELD_INVALID",
			fmt.Sprintf("%s failed %q validation", fe.Field(), fe.Tag()),
			key,
		).WithTemplateData(map[string]string{
			"field": fe.Field(),
			"tag":   fe.Tag(),
			"param": fe.Param(),
		})
	}
	return out
}
