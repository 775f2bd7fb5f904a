package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/lborres/warden/core"
	"github.com/lborres/warden/pkg/crypto"
)

// RefreshTokenIssuer mints opaque refresh tokens.
type RefreshTokenIssuer interface {
	IssueRefreshToken() (*crypto.TokenPair, error)
}

// SessionConfig tunes a SessionManager. Production wiring passes the zero
// value, which keeps the fixed core.RefreshTokenTTL lifetime.
type SessionConfig struct {
	// MaxAge shortens session lifetime in tests. Zero means core.RefreshTokenTTL.
	MaxAge time.Duration
}

// SessionManager owns the refresh-token session lifecycle. Sessions are
// looked up through the optional cache first, then storage.
type SessionManager struct {
	config  SessionConfig
	storage core.SessionStorage
	cache   core.Cache // optional, can be nil if caching is disabled
	tokens  RefreshTokenIssuer
	now     func() time.Time
}

// NewSession is a prepared session together with the raw token to hand to
// the client.
type NewSession struct {
	Session *core.Session
	Token   string
}

func NewSessionManager(config SessionConfig, storage core.SessionStorage, cache core.Cache, tokens RefreshTokenIssuer) *SessionManager {
	if config.MaxAge <= 0 {
		config.MaxAge = core.RefreshTokenTTL
	}
	return &SessionManager{config: config, storage: storage, cache: cache, tokens: tokens, now: time.Now}
}

// WithClock overrides the time source.
func (sm *SessionManager) WithClock(now func() time.Time) *SessionManager {
	sm.now = now
	return sm
}

// Prepare builds an unsaved session for userID. Empty metadata is stored as
// absent rather than as an empty string.
func (sm *SessionManager) Prepare(userID string, meta core.SessionMeta) (*NewSession, error) {
	pair, err := sm.tokens.IssueRefreshToken()
	if err != nil {
		return nil, err
	}

	now := sm.now()
	return &NewSession{
		Session: &core.Session{
			ID:           uuid.NewString(),
			UserID:       userID,
			TokenHash:    pair.Hash,
			DeviceInfo:   optional(meta.DeviceInfo),
			IPAddress:    optional(meta.IPAddress),
			ExpiresAt:    now.Add(sm.config.MaxAge),
			CreatedAt:    now,
			LastActiveAt: now,
		},
		Token: pair.Token,
	}, nil
}

// Create prepares, persists and caches a new session.
func (sm *SessionManager) Create(ctx context.Context, userID string, meta core.SessionMeta) (*NewSession, error) {
	ns, err := sm.Prepare(userID, meta)
	if err != nil {
		return nil, err
	}

	if err := sm.storage.CreateSession(ctx, ns.Session); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	sm.Remember(ctx, ns.Session)
	return ns, nil
}

// Remember caches a persisted session. Cache failures never fail the request.
func (sm *SessionManager) Remember(ctx context.Context, s *core.Session) {
	if sm.cache != nil {
		_ = sm.cache.Set(ctx, s.TokenHash, s)
	}
}

// Verify returns the live session bound to token, or core.ErrSessionNotFound
// if it is unknown or expired.
func (sm *SessionManager) Verify(ctx context.Context, token string) (*core.Session, error) {
	if token == "" {
		return nil, core.ErrSessionNotFound
	}

	tokenHash := crypto.HashToken(token)
	now := sm.now()

	// Try cache first if caching is enabled
	if sm.cache != nil {
		if session, err := sm.cache.Get(ctx, tokenHash); err == nil {
			if session.IsValidAt(now) {
				return session, nil
			}
			_ = sm.cache.Delete(ctx, tokenHash)
			return nil, core.ErrSessionNotFound
		}
	}

	session, err := sm.storage.GetValidSessionByHash(ctx, tokenHash, now)
	if err != nil {
		if errors.Is(err, core.ErrSessionNotFound) {
			return nil, core.ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	sm.Remember(ctx, session)
	return session, nil
}

// Touch records activity on the session. Expiry is never extended. A row
// deleted behind a cached copy yields core.ErrSessionNotFound and evicts the
// copy.
func (sm *SessionManager) Touch(ctx context.Context, s *core.Session) error {
	now := sm.now()
	if err := sm.storage.TouchSession(ctx, s.ID, now); err != nil {
		if errors.Is(err, core.ErrSessionNotFound) {
			if sm.cache != nil {
				_ = sm.cache.Delete(ctx, s.TokenHash)
			}
			return core.ErrSessionNotFound
		}
		return fmt.Errorf("failed to touch session: %w", err)
	}
	s.LastActiveAt = now
	sm.Remember(ctx, s)
	return nil
}

// Destroy deletes the session bound to token. Unknown tokens are not an
// error.
func (sm *SessionManager) Destroy(ctx context.Context, token string) error {
	if token == "" {
		return core.ErrRefreshTokenRequired
	}

	tokenHash := crypto.HashToken(token)

	if err := sm.storage.DeleteSessionByHash(ctx, tokenHash); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	// Remove from cache if caching is enabled
	if sm.cache != nil {
		_ = sm.cache.Delete(ctx, tokenHash)
	}
	return nil
}

// List returns the user's sessions, expired ones included.
func (sm *SessionManager) List(ctx context.Context, userID string) ([]*core.Session, error) {
	if userID == "" {
		return nil, core.ErrUserNotFound
	}
	return sm.storage.GetUserSessions(ctx, userID)
}

// PurgeExpired removes every session whose expiry has passed.
func (sm *SessionManager) PurgeExpired(ctx context.Context) (int64, error) {
	n, err := sm.storage.DeleteExpiredSessions(ctx, sm.now())
	if err != nil {
		return 0, fmt.Errorf("failed to purge sessions: %w", err)
	}
	return n, nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
