package common

import (
	"fmt"
	"unicode/utf8"
)

// ValidationError carries one message per invalid field. It never leaves the
// process: forms render it inline and block submission.
type ValidationError struct {
	Errors map[string]string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("validation errors: %+v", e.Errors)
}

type Validator struct {
	Errors map[string]string
}

func NewValidator() *Validator {
	return &Validator{Errors: make(map[string]string)}
}

func (v *Validator) Valid() bool {
	return len(v.Errors) == 0
}

// AddError keeps the first message recorded for a field.
func (v *Validator) AddError(field, message string) {
	if _, ok := v.Errors[field]; !ok {
		v.Errors[field] = message
	}
}

func (v *Validator) Check(ok bool, field, message string) {
	if !ok {
		v.AddError(field, message)
	}
}

// Error returns the message recorded for field, or "".
func (v *Validator) Error(field string) string {
	return v.Errors[field]
}

func (v *Validator) CheckMinLength(s string, min int) bool {
	return utf8.RuneCountInString(s) >= min
}

func (v *Validator) CheckMaxLength(s string, max int) bool {
	return utf8.RuneCountInString(s) <= max
}

func (v *Validator) ValidationError() error {
	return ValidationError{Errors: v.Errors}
}
