package auth

import (
	stderrors "errors"
	"regexp"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/nyaruka/phonenumbers"
)

// DefaultPhoneRegion is used to check phone numbers when none is configured
const DefaultPhoneRegion = "IN"

var phonePattern = regexp.MustCompile(`^[6-9]\d{9}$`)

var errNotPossiblePhone = stderrors.New("is not a possible phone number")

var errPasswordTooLong = stderrors.New("must be no more than 72 bytes")

// RegisterRequest is the registration payload
type RegisterRequest struct {
	Name     string `json:"name" form:"name"`
	Email    string `json:"email" form:"email"`
	Phone    string `json:"phone" form:"phone"`
	Password string `json:"password" form:"password"`
}

// Normalize trims every field and lowercases the email. The password is
// left untouched.
func (r RegisterRequest) Normalize() RegisterRequest {
	r.Name = strings.TrimSpace(r.Name)
	r.Email = NormalizeEmail(r.Email)
	r.Phone = NormalizePhone(r.Phone)
	return r
}

// Validate will run validation rules against the default phone region
func (r RegisterRequest) Validate() error {
	return r.ValidateWithRegion(DefaultPhoneRegion)
}

// ValidateWithRegion will run validation rules, phone numbers must be
// possible numbers for region
func (r RegisterRequest) ValidateWithRegion(region string) error {
	return validationFailed(validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.Required, validation.Length(1, 100)),
		validation.Field(&r.Email, validation.Required, validation.Length(3, 200), is.Email),
		validation.Field(
			&r.Phone,
			validation.Required,
			validation.Match(phonePattern).Error("must be a 10 digit mobile number"),
			validation.By(possiblePhone(region)),
		),
		validation.Field(&r.Password, validation.Required, validation.Length(6, 100), validation.By(maxBytes(MaxPasswordBytes))),
	))
}

// LoginRequest is the login payload
type LoginRequest struct {
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
}

// Normalize trims and lowercases the email
func (r LoginRequest) Normalize() LoginRequest {
	r.Email = NormalizeEmail(r.Email)
	return r
}

// Validate will run validation rules
func (r LoginRequest) Validate() error {
	return validationFailed(validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, validation.Length(3, 200), is.Email),
		validation.Field(&r.Password, validation.Required, validation.Length(1, 100)),
	))
}

// NormalizeEmail trims and lowercases an email address
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NormalizePhone trims a phone number
func NormalizePhone(phone string) string {
	return strings.TrimSpace(phone)
}

func possiblePhone(region string) validation.RuleFunc {
	if region == "" {
		region = DefaultPhoneRegion
	}
	return func(value any) error {
		s, _ := value.(string)
		if s == "" {
			return nil
		}
		num, err := phonenumbers.Parse(s, region)
		if err != nil || !phonenumbers.IsPossibleNumber(num) {
			return errNotPossiblePhone
		}
		return nil
	}
}

// maxBytes limits the encoded length, Length counts runes
func maxBytes(limit int) validation.RuleFunc {
	return func(value any) error {
		s, _ := value.(string)
		if len(s) > limit {
			return errPasswordTooLong
		}
		return nil
	}
}

// validationFailed converts ozzo errors to a ValidationFailed error with
// one message per field.
func validationFailed(err error) error {
	if err == nil {
		return nil
	}

	verrs, ok := err.(validation.Errors)
	if !ok {
		return NewValidationError(err.Error(), nil)
	}

	fields := make(map[string]string, len(verrs))
	for field, ferr := range verrs {
		if ferr == nil {
			continue
		}
		fields[field] = ferr.Error()
	}
	return NewValidationError("Validation failed", fields)
}
