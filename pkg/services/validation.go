package services

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/vemana-jayanti/registration-portal/pkg/models"
)

// ValidationKind names the rule a registration form failed.
type ValidationKind string

const (
	MissingContact ValidationKind = "MissingContact"
	InvalidEmail   ValidationKind = "InvalidEmail"
	InvalidPhone   ValidationKind = "InvalidPhone"
	MissingName    ValidationKind = "MissingName"
)

var validationMessages = map[ValidationKind]string{
	MissingContact: "Please provide either an email address or a phone number.",
	InvalidEmail:   "Please enter a valid email address.",
	InvalidPhone:   "Please enter a valid 10-digit phone number.",
	MissingName:    "Please enter your full name.",
}

// ValidationError is returned when a form is rejected before submission.
type ValidationError struct {
	Kind    ValidationKind
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func newValidationError(kind ValidationKind) *ValidationError {
	return &ValidationError{Kind: kind, Message: validationMessages[kind]}
}

// PhoneLength is the number of digits a phone number must have.
const PhoneLength = 10

var (
	emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	phonePattern = regexp.MustCompile(`^\d{10}$`)
)

// Validator applies the registration rules in a fixed order; the first
// failing rule decides the error.
type Validator struct {
	validate *validator.Validate
}

// NewValidator registers the contact format checks as validator tags. It
// panics if a tag cannot be registered.
func NewValidator() *Validator {
	v := validator.New()
	mustRegister(v, "contact_email", func(fl validator.FieldLevel) bool {
		return emailPattern.MatchString(fl.Field().String())
	})
	mustRegister(v, "contact_phone", func(fl validator.FieldLevel) bool {
		return phonePattern.MatchString(fl.Field().String())
	})
	return &Validator{validate: v}
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("register validation %q: %v", tag, err))
	}
}

// Validate checks form and returns it unchanged when accepted.
func (v *Validator) Validate(form models.RegistrationForm) (models.RegistrationForm, error) {
	hasEmail := strings.TrimSpace(form.Email) != ""
	hasPhone := strings.TrimSpace(form.Phone) != ""

	if !hasEmail && !hasPhone {
		return form, newValidationError(MissingContact)
	}
	if hasEmail && v.validate.Var(form.Email, "contact_email") != nil {
		return form, newValidationError(InvalidEmail)
	}
	if hasPhone && v.validate.Var(form.Phone, "contact_phone") != nil {
		return form, newValidationError(InvalidPhone)
	}
	if v.validate.Var(strings.TrimSpace(form.Name), "required") != nil {
		return form, newValidationError(MissingName)
	}
	return form, nil
}

// SanitizePhone keeps only digits and at most PhoneLength of them.
func SanitizePhone(s string) string {
	var b strings.Builder
	for _, r := range s {
		if b.Len() == PhoneLength {
			break
		}
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
