package core

import "context"

// Ports consumed by HTTP adapters

// AuthProvider provides the session/credential lifecycle to HTTP adapters.
type AuthProvider interface {
	Register(ctx context.Context, input RegisterInput, meta SessionMeta) (*AuthResult, error)
	Login(ctx context.Context, input LoginInput, meta SessionMeta) (*AuthResult, error)
	Refresh(ctx context.Context, refreshToken string) (*RefreshResult, error)
	Logout(ctx context.Context, refreshToken, accessToken string) error
	ChangePassword(ctx context.Context, userID string, input ChangePasswordInput) error
}

// UserProvider exposes profile reads, updates and search.
type UserProvider interface {
	GetCurrentUser(ctx context.Context, userID string) (*Profile, error)
	UpdateProfile(ctx context.Context, userID string, upd ProfileUpdate) (*Profile, error)
	GetUserByID(ctx context.Context, id string) (*PublicProfile, error)
	SearchUsers(ctx context.Context, callerID string, q UserSearch) ([]*PublicProfile, error)
}

// AccessTokenVerifier validates bearer tokens for protected routes.
type AccessTokenVerifier interface {
	VerifyAccessToken(token string) (*Claims, error)
}

// Handlers bundles everything an HTTP adapter needs to mount routes.
type Handlers struct {
	Auth      AuthProvider
	Users     UserProvider
	Verifier  AccessTokenVerifier
	Endpoints []*Endpoint
	BasePath  string
}

// HTTPAdapter mounts the API on a concrete web framework.
type HTTPAdapter interface {
	RegisterRoutes(h Handlers) error
	// BuildProtectedMiddleware returns the framework's middleware value that
	// guards routes outside the built-in API.
	BuildProtectedMiddleware(verifier AccessTokenVerifier) any
}
