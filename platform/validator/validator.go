// Package validator provides validation infrastructure for the application.
// This is part of the platform layer and contains no business logic.
package validator

import (
	"strings"

	"github.com/go-playground/validator/v10"
)

// Validator wraps the go-playground validator for structured validation.
type Validator struct {
	v *validator.Validate
}

// New creates a Validator with the outreach tags registered.
func New() *Validator {
	v := validator.New()
	_ = v.RegisterValidation("channel", validateChannel)
	return &Validator{v: v}
}

// Struct validates a struct based on validation tags.
func (val *Validator) Struct(s interface{}) error {
	return val.v.Struct(s)
}

// Var validates a single variable against a tag.
func (val *Validator) Var(field interface{}, tag string) error {
	return val.v.Var(field, tag)
}

// RegisterValidation registers a custom validation function.
func (val *Validator) RegisterValidation(tag string, fn validator.Func) error {
	return val.v.RegisterValidation(tag, fn)
}

// validateChannel accepts the outreach channel names in any case.
func validateChannel(fl validator.FieldLevel) bool {
	switch strings.ToUpper(strings.TrimSpace(fl.Field().String())) {
	case "EMAIL", "SMS", "CALL":
		return true
	default:
		return false
	}
}
