package social

import "github.com/goliatone/go-errors"

const (
	TextCodeProviderNotFound    = "SOCIAL_PROVIDER_NOT_FOUND"
	TextCodeInvalidState        = "SOCIAL_INVALID_STATE"
	TextCodeStateExpired        = "SOCIAL_STATE_EXPIRED"
	TextCodeMissingCode         = "SOCIAL_MISSING_CODE"
	TextCodeAuthorizationDenied = "SOCIAL_AUTHORIZATION_DENIED"
	TextCodeTokenExchangeFail   = "SOCIAL_TOKEN_EXCHANGE_FAILED"
	TextCodeUserInfoFail        = "SOCIAL_USER_INFO_FAILED"
)

// ErrProviderNotFound is returned when a requested provider is not configured.
var ErrProviderNotFound = errors.New("social provider not found", errors.CategoryNotFound).
	WithTextCode(TextCodeProviderNotFound).
	WithCode(errors.CodeNotFound)

// ErrInvalidState is returned when the OAuth state is unknown, reused or for another provider.
var ErrInvalidState = errors.New("invalid oauth state", errors.CategoryBadInput).
	WithTextCode(TextCodeInvalidState).
	WithCode(errors.CodeBadRequest)

// ErrStateExpired is returned when the OAuth state has expired.
var ErrStateExpired = errors.New("oauth state expired", errors.CategoryBadInput).
	WithTextCode(TextCodeStateExpired).
	WithCode(errors.CodeBadRequest)

// ErrMissingCode is returned when the callback carries no authorization code.
var ErrMissingCode = errors.New("missing authorization code", errors.CategoryBadInput).
	WithTextCode(TextCodeMissingCode).
	WithCode(errors.CodeBadRequest)

// ErrAuthorizationDenied is returned when the provider reports an error on callback.
var ErrAuthorizationDenied = errors.New("authorization denied by provider", errors.CategoryAuth).
	WithTextCode(TextCodeAuthorizationDenied).
	WithCode(errors.CodeUnauthorized)

// ErrTokenExchangeFailed is returned when a provider token exchange fails.
var ErrTokenExchangeFailed = errors.New("token exchange failed", errors.CategoryAuth).
	WithTextCode(TextCodeTokenExchangeFail).
	WithCode(errors.CodeUnauthorized)

// ErrUserInfoFailed is returned when fetching user info fails.
var ErrUserInfoFailed = errors.New("failed to fetch user info", errors.CategoryAuth).
	WithTextCode(TextCodeUserInfoFail).
	WithCode(errors.CodeUnauthorized)
