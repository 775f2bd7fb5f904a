package core

import "errors"

// Credential errors
var (
	ErrEmailTaken         = errors.New("email already in use")          // 400 Conflict
	ErrUsernameTaken      = errors.New("username already taken")        // 400 Conflict
	ErrInvalidCredentials = errors.New("invalid email or password")     // 401
	ErrWrongPassword      = errors.New("current password is incorrect") // 401
	ErrUserNotFound       = errors.New("user not found")                // 404
)

// Token and session errors
var (
	ErrRefreshTokenRequired = errors.New("refresh token is required")        // 400
	ErrInvalidRefreshToken  = errors.New("invalid or expired refresh token") // 401
	ErrSessionUserNotFound  = errors.New("session user not found")           // 401
	ErrSessionNotFound      = errors.New("session not found")                // 401
	ErrMissingAuthHeader    = errors.New("authentication required")          // 401
	ErrTokenExpired         = errors.New("token expired")                    // 401
	ErrTokenInvalid         = errors.New("invalid token")                    // 401
	ErrCacheNotFound        = errors.New("session not found in cache")
)

// Validation errors (client input)
var (
	ErrValidation       = errors.New("validation failed")    // 400
	ErrInvalidBody      = errors.New("invalid request body") // 400
	ErrUsernameLength   = errors.New("username must be between 3 and 50 characters")
	ErrInvalidEmail     = errors.New("please provide a valid email")
	ErrPasswordRequired = errors.New("password is required")
	ErrPasswordTooShort = errors.New("password must be at least 6 characters long")
	ErrPasswordTooLong  = errors.New("password must be at most 72 bytes long")
)

// Config errors (server-side configuration)
var (
	ErrDBAdapterRequired   = errors.New("database adapter is required")
	ErrHTTPAdapterRequired = errors.New("http adapter is required")
	ErrSecretRequired      = errors.New("secret is required")
	ErrSecretTooShort      = errors.New("secret too short")
)

// IsConflict reports whether err is a uniqueness conflict on email or username.
func IsConflict(err error) bool {
	return errors.Is(err, ErrEmailTaken) || errors.Is(err, ErrUsernameTaken)
}

// IsUnauthorized reports whether err should be answered with 401.
func IsUnauthorized(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidCredentials),
		errors.Is(err, ErrWrongPassword),
		errors.Is(err, ErrInvalidRefreshToken),
		errors.Is(err, ErrSessionUserNotFound),
		errors.Is(err, ErrSessionNotFound),
		errors.Is(err, ErrMissingAuthHeader),
		errors.Is(err, ErrTokenExpired),
		errors.Is(err, ErrTokenInvalid):
		return true
	}
	return false
}

// IsBadRequest reports whether err is a malformed-input error.
func IsBadRequest(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidBody) ||
		errors.Is(err, ErrRefreshTokenRequired)
}
