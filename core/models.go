package core

import "time"

// RefreshTokenTTL is the fixed lifetime of a refresh-token session.
const RefreshTokenTTL = 30 * 24 * time.Hour

// User represents an account in the system.
//
// This is the "identity" and its credential - who someone is and how they
// prove it. PasswordHash never leaves the process.
type User struct {
	ID             string    `json:"id"`
	Username       string    `json:"username"`
	Email          string    `json:"email"`
	PasswordHash   string    `json:"-"` // Never expose in JSON
	FullName       *string   `json:"full_name"`
	ProfilePicture *string   `json:"profile_picture"`
	Bio            *string   `json:"bio"`
	IsOnline       bool      `json:"is_online"`
	LastSeen       time.Time `json:"last_seen"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// SafeUser is the subset of user fields returned by register and login.
type SafeUser struct {
	ID             string  `json:"id"`
	Username       string  `json:"username"`
	Email          string  `json:"email"`
	FullName       *string `json:"full_name"`
	ProfilePicture *string `json:"profile_picture,omitempty"`
}

// Profile is the caller's own view of their account.
type Profile struct {
	ID             string    `json:"id"`
	Username       string    `json:"username"`
	Email          string    `json:"email"`
	FullName       *string   `json:"full_name"`
	ProfilePicture *string   `json:"profile_picture"`
	Bio            *string   `json:"bio"`
	IsOnline       bool      `json:"is_online"`
	LastSeen       time.Time `json:"last_seen"`
	CreatedAt      time.Time `json:"created_at"`
}

// PublicProfile is what other users may see. It never carries the email.
type PublicProfile struct {
	ID             string    `json:"id"`
	Username       string    `json:"username"`
	FullName       *string   `json:"full_name"`
	ProfilePicture *string   `json:"profile_picture"`
	Bio            *string   `json:"bio,omitempty"`
	IsOnline       bool      `json:"is_online"`
	LastSeen       time.Time `json:"last_seen"`
	CreatedAt      time.Time `json:"created_at"`
}

// Safe strips the user down to the fields returned after authentication.
func (u *User) Safe(withPicture bool) *SafeUser {
	su := &SafeUser{
		ID:       u.ID,
		Username: u.Username,
		Email:    u.Email,
		FullName: u.FullName,
	}
	if withPicture {
		su.ProfilePicture = u.ProfilePicture
	}
	return su
}

func (u *User) Profile() *Profile {
	return &Profile{
		ID:             u.ID,
		Username:       u.Username,
		Email:          u.Email,
		FullName:       u.FullName,
		ProfilePicture: u.ProfilePicture,
		Bio:            u.Bio,
		IsOnline:       u.IsOnline,
		LastSeen:       u.LastSeen,
		CreatedAt:      u.CreatedAt,
	}
}

func (u *User) Public() *PublicProfile {
	return &PublicProfile{
		ID:             u.ID,
		Username:       u.Username,
		FullName:       u.FullName,
		ProfilePicture: u.ProfilePicture,
		Bio:            u.Bio,
		IsOnline:       u.IsOnline,
		LastSeen:       u.LastSeen,
		CreatedAt:      u.CreatedAt,
	}
}

// Session represents one logged-in device or client, bound to a refresh token.
type Session struct {
	ID           string    `json:"id"`
	UserID       string    `json:"userId"`
	TokenHash    string    `json:"-"` // Never expose in JSON (security!)
	DeviceInfo   *string   `json:"deviceInfo,omitempty"`
	IPAddress    *string   `json:"ipAddress,omitempty"`
	ExpiresAt    time.Time `json:"expiresAt"`
	CreatedAt    time.Time `json:"createdAt"`
	LastActiveAt time.Time `json:"lastActiveAt"`
}

// IsValidAt reports whether the session is still usable at t.
// A session is valid iff expires_at > t.
func (s *Session) IsValidAt(t time.Time) bool {
	return s.ExpiresAt.After(t)
}

// SessionMeta is the optional client metadata captured on a new session.
type SessionMeta struct {
	DeviceInfo string
	IPAddress  string
}

// Claims is the identity carried by an access token.
type Claims struct {
	UserID    string    `json:"id"`
	Email     string    `json:"email"`
	Username  string    `json:"username"`
	IssuedAt  time.Time `json:"iat"`
	ExpiresAt time.Time `json:"exp"`
}
