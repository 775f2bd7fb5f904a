package core

// RegisterInput contains the data needed to register a new user
type RegisterInput struct {
	Username string  `json:"username"`
	Email    string  `json:"email"`
	Password string  `json:"password"`
	FullName *string `json:"full_name"`
}

// LoginInput contains the credentials for authentication
type LoginInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthResult is returned by register and login.
type AuthResult struct {
	User         *SafeUser `json:"user"`
	AccessToken  string    `json:"token"`
	RefreshToken string    `json:"refreshToken"` // The raw token (not the hash)
}

// RefreshInput carries the refresh token presented by the client.
type RefreshInput struct {
	RefreshToken string `json:"refreshToken"`
}

// RefreshResult contains the newly minted access token. The refresh token is
// never rotated.
type RefreshResult struct {
	AccessToken string `json:"token"`
}

// ChangePasswordInput is the body of a password change.
type ChangePasswordInput struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

// ProfileUpdate holds the optional profile fields to change. Nil means
// "leave untouched".
type ProfileUpdate struct {
	Username *string `json:"username"`
	FullName *string `json:"full_name"`
	Bio      *string `json:"bio"`
}

// Search limits.
const (
	DefaultSearchLimit = 10
	MaxSearchLimit     = 100
)

// UserSearch describes a user directory query.
type UserSearch struct {
	Query     string
	ExcludeID string
	Limit     int
	Offset    int
}

// Normalize clamps limit and offset into their accepted ranges.
func (q UserSearch) Normalize() UserSearch {
	if q.Limit <= 0 {
		q.Limit = DefaultSearchLimit
	}
	if q.Limit > MaxSearchLimit {
		q.Limit = MaxSearchLimit
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
	return q
}
