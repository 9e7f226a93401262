package auth

import (
	"net/http"

	"github.com/goliatone/go-errors"
)

// Text codes double as the "error" field of the wire envelope.
const (
	TextCodeValidationFailed   = "ValidationFailed"
	TextCodeDuplicateEmail     = "DuplicateEmail"
	TextCodeDuplicatePhone     = "DuplicatePhone"
	TextCodeInvalidCredentials = "InvalidCredentials"
	TextCodeMissingCredentials = "MissingCredentials"
	TextCodeInvalidToken       = "InvalidToken"
	TextCodeExpired            = "Expired"
	TextCodeInvalidSignature   = "InvalidSignature"
	TextCodeMalformed          = "Malformed"
	TextCodeForbidden          = "Forbidden"
	TextCodeTooManyAttempts    = "TooManyAttempts"
	TextCodeNotFound           = "NotFound"
	TextCodeInternal           = "InternalError"
)

// ErrIdentityNotFound is returned by stores when no identity matches
var ErrIdentityNotFound = errors.New("identity not found", errors.CategoryNotFound).
	WithTextCode(TextCodeNotFound).
	WithCode(errors.CodeNotFound)

// ErrDuplicateEmail is returned when the email is already registered
var ErrDuplicateEmail = errors.New("Email already registered", errors.CategoryConflict).
	WithTextCode(TextCodeDuplicateEmail).
	WithCode(errors.CodeConflict)

// ErrDuplicatePhone is returned when the phone is already registered
var ErrDuplicatePhone = errors.New("Phone already registered", errors.CategoryConflict).
	WithTextCode(TextCodeDuplicatePhone).
	WithCode(errors.CodeConflict)

// ErrInvalidCredentials covers both an unknown email and a wrong password.
var ErrInvalidCredentials = errors.New("Invalid credentials", errors.CategoryAuth).
	WithTextCode(TextCodeInvalidCredentials).
	WithCode(errors.CodeUnauthorized)

// ErrMissingCredentials is returned when a protected route has no bearer token
var ErrMissingCredentials = errors.New("Missing or malformed Authorization header", errors.CategoryAuth).
	WithTextCode(TextCodeMissingCredentials).
	WithCode(errors.CodeUnauthorized)

// ErrInvalidToken is what the middleware reports for any token that fails verification
var ErrInvalidToken = errors.New("Invalid or expired token", errors.CategoryAuth).
	WithTextCode(TextCodeInvalidToken).
	WithCode(errors.CodeUnauthorized)

// ErrTokenExpired is returned when the token is past its exp claim
var ErrTokenExpired = errors.New("Token has expired", errors.CategoryAuth).
	WithTextCode(TextCodeExpired).
	WithCode(errors.CodeUnauthorized)

// ErrTokenInvalidSignature is returned when the signature does not verify
var ErrTokenInvalidSignature = errors.New("Token signature is invalid", errors.CategoryAuth).
	WithTextCode(TextCodeInvalidSignature).
	WithCode(errors.CodeUnauthorized)

// ErrTokenMalformed is returned when the token cannot be parsed
var ErrTokenMalformed = errors.New("Token is malformed", errors.CategoryAuth).
	WithTextCode(TextCodeMalformed).
	WithCode(errors.CodeUnauthorized)

// ErrForbidden is returned when the caller's role lacks the capability
var ErrForbidden = errors.New("Insufficient role for this resource", errors.CategoryAuthz).
	WithTextCode(TextCodeForbidden).
	WithCode(errors.CodeForbidden)

// ErrTooManyLoginAttempts is returned while a login is throttled
var ErrTooManyLoginAttempts = errors.New("Too many login attempts, try again later", errors.CategoryRateLimit).
	WithTextCode(TextCodeTooManyAttempts).
	WithCode(http.StatusTooManyRequests)

// ErrNoEmptyString is returned when hashing an empty password
var ErrNoEmptyString = errors.New("password must not be empty", errors.CategoryBadInput).
	WithTextCode(TextCodeValidationFailed).
	WithCode(errors.CodeBadRequest)

// ErrPasswordTooLong is returned when hashing a password over MaxPasswordBytes
var ErrPasswordTooLong = NewValidationError("Validation failed", map[string]string{
	"password": "must be no more than 72 bytes",
})

// NewValidationError builds a ValidationFailed error carrying the
// per-field messages in its metadata.
func NewValidationError(message string, fields map[string]string) *errors.Error {
	err := errors.New(message, errors.CategoryValidation).
		WithTextCode(TextCodeValidationFailed).
		WithCode(errors.CodeBadRequest)
	if len(fields) > 0 {
		err = err.WithMetadata(map[string]any{"fields": fields})
	}
	return err
}

// HasTextCode reports whether err is a rich error with the given text code.
func HasTextCode(err error, code string) bool {
	var richErr *errors.Error
	if !errors.As(err, &richErr) {
		return false
	}
	return richErr.TextCode == code
}

// IsTokenExpiredError will check for expired tokens
func IsTokenExpiredError(err error) bool {
	return HasTextCode(err, TextCodeExpired)
}

// IsMalformedError will check for malformed tokens
func IsMalformedError(err error) bool {
	return HasTextCode(err, TextCodeMalformed)
}

// IsDuplicateError reports duplicate email or phone errors
func IsDuplicateError(err error) bool {
	return HasTextCode(err, TextCodeDuplicateEmail) || HasTextCode(err, TextCodeDuplicatePhone)
}
