package core

import (
	"context"
	"time"
)

// UserStorage is the Credential Store port.
//
// Implementations must enforce uniqueness of username and email and report
// collisions as ErrEmailTaken / ErrUsernameTaken. Lookups return
// ErrUserNotFound when no row matches.
type UserStorage interface {
	CreateUser(ctx context.Context, u *User) error

	// Query methods
	GetUserByID(ctx context.Context, id string) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	GetUserByUsername(ctx context.Context, username string) (*User, error)
	SearchUsers(ctx context.Context, q UserSearch) ([]*User, error)

	// Update methods
	UpdatePresence(ctx context.Context, id string, online bool, seen time.Time) error
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	UpdateProfile(ctx context.Context, id string, upd ProfileUpdate) (*User, error)
}

// SessionStorage is the Session Store port.
type SessionStorage interface {
	CreateSession(ctx context.Context, s *Session) error

	// GetValidSessionByHash returns the session whose token hash matches and
	// whose expires_at is after now. Expired and missing rows both yield
	// ErrSessionNotFound.
	GetValidSessionByHash(ctx context.Context, tokenHash string, now time.Time) (*Session, error)
	GetUserSessions(ctx context.Context, userID string) ([]*Session, error)

	// TouchSession sets last_active_at. It never changes expires_at.
	TouchSession(ctx context.Context, id string, at time.Time) error

	// DeleteSessionByHash is idempotent: a missing row is not an error.
	DeleteSessionByHash(ctx context.Context, tokenHash string) error

	// Cleanup
	DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error)
}

// AuthStorage is everything the auth core needs from persistence.
type AuthStorage interface {
	UserStorage
	SessionStorage

	// CreateUserWithSession inserts u and its first session atomically. On
	// success u.ID, u.CreatedAt and s.UserID are populated.
	CreateUserWithSession(ctx context.Context, u *User, s *Session) error
}
