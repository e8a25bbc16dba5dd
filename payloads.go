package auth

import (
	stderrors "errors"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/goliatone/go-errors"
	"github.com/nyaruka/phonenumbers"
)

var errInvalidPhone = stderrors.New("must be a valid phone number")

// DefaultPhoneRegion is used to parse numbers written without a country code
var DefaultPhoneRegion = "US"

// RegisterPayload is the local registration request
type RegisterPayload struct {
	Name     string `json:"name" form:"name"`
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
	Phone    string `json:"phone" form:"phone"`
	Username string `json:"username" form:"username"`
}

// Validate will validate the payload
func (r RegisterPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.Required, validation.Length(2, 100)),
		validation.Field(&r.Email, validation.Required, validation.Length(3, 254), is.Email),
		validation.Field(&r.Password, validation.Required, validation.Length(8, 100)),
		validation.Field(&r.Username, validation.Length(0, 50)),
		validation.Field(&r.Phone, validation.By(validPhone)),
	)
}

// LoginPayload is the local login request
type LoginPayload struct {
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
}

// Validate will validate the payload
func (l LoginPayload) Validate() error {
	return validation.ValidateStruct(&l,
		validation.Field(&l.Email, validation.Required, is.Email),
		validation.Field(&l.Password, validation.Required),
	)
}

// CapabilityPayload names a capability for grant and block operations
type CapabilityPayload struct {
	Capability string `json:"capability" form:"capability"`
	Reason     string `json:"reason" form:"reason"`
}

// Validate will validate the payload
func (p CapabilityPayload) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Capability, validation.Required, validation.Length(3, 100)),
		validation.Field(&p.Reason, validation.Length(0, 255)),
	)
}

// NormalizePhone parses raw and formats it as E.164. Empty input stays empty.
func NormalizePhone(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", nil
	}
	num, err := phonenumbers.Parse(raw, DefaultPhoneRegion)
	if err != nil {
		return "", err
	}
	if !phonenumbers.IsValidNumber(num) {
		return "", errInvalidPhone
	}
	return phonenumbers.Format(num, phonenumbers.E164), nil
}

func validPhone(value any) error {
	s, _ := value.(string)
	if _, err := NormalizePhone(s); err != nil {
		return errInvalidPhone
	}
	return nil
}

// validationError wraps ozzo field errors into a rich bad input error
func validationError(err error) error {
	meta := map[string]any{}
	if fields, ok := err.(validation.Errors); ok {
		for field, ferr := range fields {
			meta[field] = ferr.Error()
		}
	}
	return errors.New("invalid request payload", errors.CategoryValidation).
		WithTextCode("VALIDATION_ERROR").
		WithCode(errors.CodeBadRequest).
		WithMetadata(meta)
}
