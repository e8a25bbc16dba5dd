package auth

import (
	"strings"

	"github.com/goliatone/go-errors"
)

// Text codes surfaced to clients
const (
	TextCodeInvalidCredentials = "INVALID_CREDENTIALS"
	TextCodeMissingToken       = "MISSING_TOKEN"
	TextCodeTokenExpired       = "TOKEN_EXPIRED"
	TextCodeTokenMalformed     = "TOKEN_MALFORMED"
	TextCodeTokenUnregistered  = "TOKEN_UNREGISTERED"
	TextCodeAccountNotFound    = "ACCOUNT_NOT_FOUND"
	TextCodeCapabilityDenied   = "CAPABILITY_DENIED"
	TextCodeConfiguration      = "CONFIGURATION_ERROR"
	TextCodeEmailTaken         = "EMAIL_TAKEN"
	TextCodeCapabilityNotFound = "CAPABILITY_NOT_FOUND"
	TextCodeGrantNotFound      = "GRANT_NOT_FOUND"
	TextCodeBlockNotFound      = "BLOCK_NOT_FOUND"
	TextCodeSessionNotFound    = "SESSION_NOT_FOUND"
	TextCodeTooManyAttempts    = "TOO_MANY_LOGIN_ATTEMPTS"
	TextCodeInternal           = "INTERNAL_ERROR"
)

// ErrInvalidCredentials covers both unknown local identity and wrong password
var ErrInvalidCredentials = errors.New("invalid credentials", errors.CategoryAuth).
	WithTextCode(TextCodeInvalidCredentials).
	WithCode(errors.CodeUnauthorized)

// ErrMissingToken is returned when a request carries no bearer credential
var ErrMissingToken = errors.New("access denied, no token provided", errors.CategoryAuth).
	WithTextCode(TextCodeMissingToken).
	WithCode(errors.CodeUnauthorized)

// ErrTokenExpired is returned for a correctly signed token past its expiry
var ErrTokenExpired = errors.New("token expired", errors.CategoryAuth).
	WithTextCode(TextCodeTokenExpired).
	WithCode(errors.CodeUnauthorized)

// ErrTokenMalformed is returned when the signature or structure is invalid
var ErrTokenMalformed = errors.New("invalid token", errors.CategoryAuth).
	WithTextCode(TextCodeTokenMalformed).
	WithCode(errors.CodeUnauthorized)

// ErrTokenUnregistered is returned for a valid token absent from the session registry
var ErrTokenUnregistered = errors.New("session not found, please log in again", errors.CategoryAuth).
	WithTextCode(TextCodeTokenUnregistered).
	WithCode(errors.CodeUnauthorized)

// ErrAccountNotFound is returned when a valid session points to a missing account
var ErrAccountNotFound = errors.New("account not found", errors.CategoryAuth).
	WithTextCode(TextCodeAccountNotFound).
	WithCode(errors.CodeUnauthorized)

// ErrCapabilityDenied is returned when a required capability is missing or blocked
var ErrCapabilityDenied = errors.New("you do not have permission to perform this action", errors.CategoryAuthz).
	WithTextCode(TextCodeCapabilityDenied).
	WithCode(errors.CodeForbidden)

// ErrConfiguration is fatal at startup
var ErrConfiguration = errors.New("invalid auth configuration", errors.CategoryInternal).
	WithTextCode(TextCodeConfiguration).
	WithCode(errors.CodeInternal)

// ErrEmailTaken is returned when registering an email already used by a local account
var ErrEmailTaken = errors.New("email already registered", errors.CategoryConflict).
	WithTextCode(TextCodeEmailTaken).
	WithCode(errors.CodeBadRequest)

// ErrCapabilityNotFound is returned for names missing from the catalog
var ErrCapabilityNotFound = errors.New("capability not found", errors.CategoryNotFound).
	WithTextCode(TextCodeCapabilityNotFound).
	WithCode(errors.CodeNotFound)

// ErrTargetAccountNotFound is returned by administrative operations on a missing account
var ErrTargetAccountNotFound = errors.New("account not found", errors.CategoryNotFound).
	WithTextCode("TARGET_ACCOUNT_NOT_FOUND").
	WithCode(errors.CodeNotFound)

var ErrGrantNotFound = errors.New("grant not found", errors.CategoryNotFound).
	WithTextCode(TextCodeGrantNotFound).
	WithCode(errors.CodeNotFound)

var ErrBlockNotFound = errors.New("block not found", errors.CategoryNotFound).
	WithTextCode(TextCodeBlockNotFound).
	WithCode(errors.CodeNotFound)

var ErrSessionNotFound = errors.New("session not found", errors.CategoryNotFound).
	WithTextCode(TextCodeSessionNotFound).
	WithCode(errors.CodeNotFound)

// ErrTooManyLoginAttempts is returned by the login limiter
var ErrTooManyLoginAttempts = errors.New("too many login attempts, try again later", errors.CategoryRateLimit).
	WithTextCode(TextCodeTooManyAttempts).
	WithCode(429)

// ErrNoEmptyString is returned when hashing an empty password
var ErrNoEmptyString = errors.New("password can not be empty", errors.CategoryValidation).
	WithCode(errors.CodeBadRequest)

// IsTokenExpiredError will check for expired tokens
func IsTokenExpiredError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrTokenExpired) {
		return true
	}
	return strings.Contains(err.Error(), "token is expired")
}

// HasTextCode reports whether err is a rich error carrying code
func HasTextCode(err error, code string) bool {
	var richErr *errors.Error
	if !errors.As(err, &richErr) {
		return false
	}
	return richErr.TextCode == code
}

// ErrorResponse maps any error to an HTTP status and a client safe body.
// Internal failures never leak details.
func ErrorResponse(err error) (int, map[string]any) {
	var richErr *errors.Error
	if !errors.As(err, &richErr) || richErr.Code == 0 || richErr.Category == errors.CategoryInternal {
		return 500, errorBody(TextCodeInternal, "internal server error")
	}
	return richErr.Code, errorBody(richErr.TextCode, richErr.Message)
}

func errorBody(code, message string) map[string]any {
	return map[string]any{
		"error": map[string]any{
			"code":    code,
			"message": message,
		},
	}
}
