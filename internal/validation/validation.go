// Package validation holds the local, pre-network format checks for login
// and onboarding input.
package validation

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"cabbook/internal/domain"
)

var phonePattern = regexp.MustCompile(`^\d{10}$`)

var (
	once     sync.Once
	instance *validator.Validate
)

func get() *validator.Validate {
	once.Do(func() {
		instance = validator.New()
		_ = instance.RegisterValidation("phone10", func(fl validator.FieldLevel) bool {
			return phonePattern.MatchString(fl.Field().String())
		})
	})
	return instance
}

type phoneInput struct {
	PhoneNumber string `validate:"required,phone10"`
}

type emailInput struct {
	Email string `validate:"required,email"`
}

type passwordInput struct {
	Email    string `validate:"required,email"`
	Password string `validate:"required"`
}

// Identifier validates a login identifier for its channel.
func Identifier(identifier string, channel domain.Channel) error {
	switch channel {
	case domain.ChannelPhone:
		return check(phoneInput{PhoneNumber: identifier})
	case domain.ChannelEmail:
		return check(emailInput{Email: identifier})
	default:
		return domain.ValidationErrors{{Field: "channel", Message: "channel must be phone or email"}}
	}
}

// OtpCode validates a passcode of exactly length digits.
func OtpCode(code string, length int) error {
	err := get().Var(code, fmt.Sprintf("required,len=%d,number", length))
	if err == nil {
		return nil
	}
	return domain.ValidationErrors{{
		Field:   "otp_code",
		Message: fmt.Sprintf("please enter a valid %d-digit OTP", length),
	}}
}

// Password validates the email/password login form.
func Password(email, password string) error {
	return check(passwordInput{Email: email, Password: password})
}

// Profile validates an onboarding submission. Name is always required; the
// contact field required depends on which channel the user logged in with,
// since that one is already known.
func Profile(p domain.UserProfile, loginChannel domain.Channel) error {
	var errs domain.ValidationErrors

	if strings.TrimSpace(p.Name) == "" {
		errs.Add(domain.ProfileFieldName, "name is required")
	}

	if loginChannel == domain.ChannelEmail {
		phone := strings.TrimSpace(p.PhoneNumber)
		switch {
		case phone == "":
			errs.Add(domain.ProfileFieldPhone, "phone number is required")
		case !phonePattern.MatchString(phone):
			errs.Add(domain.ProfileFieldPhone, "phone number must be exactly 10 digits")
		}
	} else {
		email := strings.TrimSpace(p.Email)
		switch {
		case email == "":
			errs.Add(domain.ProfileFieldEmail, "email is required")
		case get().Var(email, "email") != nil:
			errs.Add(domain.ProfileFieldEmail, "email must be a valid email address")
		}
	}

	return errs.OrNil()
}

func check(v any) error {
	err := get().Struct(v)
	if err == nil {
		return nil
	}

	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return err
	}

	var errs domain.ValidationErrors
	for _, fe := range ve {
		field := fieldName(fe.Field())
		switch fe.Tag() {
		case "required":
			errs.Add(field, fmt.Sprintf("%s is required", field))
		case "email":
			errs.Add(field, fmt.Sprintf("%s must be a valid email address", field))
		case "phone10":
			errs.Add(field, "phone number must be exactly 10 digits")
		default:
			errs.Add(field, fmt.Sprintf("%s is invalid", field))
		}
	}
	return errs
}

func fieldName(structField string) string {
	switch structField {
	case "PhoneNumber":
		return domain.ProfileFieldPhone
	case "Email":
		return domain.ProfileFieldEmail
	case "Password":
		return "password"
	}
	return strings.ToLower(structField)
}
