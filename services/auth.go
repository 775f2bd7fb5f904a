package services

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/samber/oops"

	"github.com/lborres/warden/core"
	"github.com/lborres/warden/pkg/crypto"
)

// AccessTokenIssuer mints and verifies access tokens.
type AccessTokenIssuer interface {
	IssueAccessToken(userID, email, username string) (string, error)
	VerifyAccessToken(token string) (*core.Claims, error)
}

type AuthService struct {
	storage  core.AuthStorage
	hasher   crypto.PasswordHandler
	sessions *SessionManager
	tokens   AccessTokenIssuer
	logger   *slog.Logger
	now      func() time.Time

	dummyOnce sync.Once
	dummyHash string
}

// Ensure AuthService implements AuthProvider
var _ core.AuthProvider = (*AuthService)(nil)

func NewAuthService(storage core.AuthStorage, hasher crypto.PasswordHandler, sessions *SessionManager, tokens AccessTokenIssuer, logger *slog.Logger) *AuthService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthService{
		storage:  storage,
		hasher:   hasher,
		sessions: sessions,
		tokens:   tokens,
		logger:   logger,
		now:      time.Now,
	}
}

// WithClock overrides the time source.
func (s *AuthService) WithClock(now func() time.Time) *AuthService {
	s.now = now
	return s
}

// Register creates the account and its first session in one write. Input is
// expected to be validated and normalized by the caller (see core.RegisterInput.Validate).
func (s *AuthService) Register(ctx context.Context, input core.RegisterInput, meta core.SessionMeta) (*core.AuthResult, error) {
	// Step 1: Reject duplicates, email first
	if err := s.ensureAvailable(ctx, input.Email, input.Username); err != nil {
		return nil, err
	}

	// Step 2: Hash the password
	hash, err := s.hasher.Hash(input.Password)
	if err != nil {
		return nil, oops.Code("AUTH_HASH_FAILED").Wrap(err)
	}

	// Step 3: Create the user and session together
	now := s.now()
	user := &core.User{
		Username:     input.Username,
		Email:        input.Email,
		PasswordHash: hash,
		FullName:     input.FullName,
		LastSeen:     now,
	}
	ns, err := s.sessions.Prepare("", meta)
	if err != nil {
		return nil, oops.Code("AUTH_TOKEN_FAILED").Wrap(err)
	}
	if err := s.storage.CreateUserWithSession(ctx, user, ns.Session); err != nil {
		// A concurrent registration can still lose the race at the store
		if core.IsConflict(err) {
			return nil, err
		}
		return nil, oops.Code("AUTH_STORAGE").With("op", "register").Wrap(err)
	}
	s.sessions.Remember(ctx, ns.Session)

	// Step 4: Issue the access token
	access, err := s.tokens.IssueAccessToken(user.ID, user.Email, user.Username)
	if err != nil {
		return nil, oops.Code("AUTH_TOKEN_FAILED").With("user_id", user.ID).Wrap(err)
	}

	return &core.AuthResult{
		User:         user.Safe(false),
		AccessToken:  access,
		RefreshToken: ns.Token,
	}, nil
}

func (s *AuthService) ensureAvailable(ctx context.Context, email, username string) error {
	if _, err := s.storage.GetUserByEmail(ctx, email); err == nil {
		return core.ErrEmailTaken
	} else if !errors.Is(err, core.ErrUserNotFound) {
		return oops.Code("AUTH_STORAGE").With("op", "lookup_email").Wrap(err)
	}

	if _, err := s.storage.GetUserByUsername(ctx, username); err == nil {
		return core.ErrUsernameTaken
	} else if !errors.Is(err, core.ErrUserNotFound) {
		return oops.Code("AUTH_STORAGE").With("op", "lookup_username").Wrap(err)
	}
	return nil
}

// Login authenticates by email and password and opens a new session.
// Unknown email and wrong password are indistinguishable to the caller.
func (s *AuthService) Login(ctx context.Context, input core.LoginInput, meta core.SessionMeta) (*core.AuthResult, error) {
	// Step 1: Find the user by email
	user, err := s.storage.GetUserByEmail(ctx, input.Email)
	if errors.Is(err, core.ErrUserNotFound) {
		s.burnVerify(input.Password)
		return nil, core.ErrInvalidCredentials
	}
	if err != nil {
		return nil, oops.Code("AUTH_STORAGE").With("op", "login").Wrap(err)
	}

	// Step 2: Verify the password
	if !s.hasher.Verify(input.Password, user.PasswordHash) {
		return nil, core.ErrInvalidCredentials
	}

	// Step 3: Mark the user online
	now := s.now()
	if err := s.storage.UpdatePresence(ctx, user.ID, true, now); err != nil {
		return nil, oops.Code("AUTH_STORAGE").With("op", "presence").With("user_id", user.ID).Wrap(err)
	}
	user.IsOnline = true
	user.LastSeen = now

	// Step 4: Open a new session and issue tokens
	ns, err := s.sessions.Create(ctx, user.ID, meta)
	if err != nil {
		return nil, oops.Code("AUTH_STORAGE").With("op", "create_session").With("user_id", user.ID).Wrap(err)
	}
	access, err := s.tokens.IssueAccessToken(user.ID, user.Email, user.Username)
	if err != nil {
		return nil, oops.Code("AUTH_TOKEN_FAILED").With("user_id", user.ID).Wrap(err)
	}

	return &core.AuthResult{
		User:         user.Safe(true),
		AccessToken:  access,
		RefreshToken: ns.Token,
	}, nil
}

// burnVerify spends one hash comparison so unknown emails take as long as
// wrong passwords.
func (s *AuthService) burnVerify(password string) {
	s.dummyOnce.Do(func() {
		s.dummyHash, _ = s.hasher.Hash("warden-timing-equalizer")
	})
	if s.dummyHash != "" {
		s.hasher.Verify(password, s.dummyHash)
	}
}

// Refresh exchanges a live refresh token for a new access token. The
// refresh token and the session expiry are left unchanged.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*core.RefreshResult, error) {
	if refreshToken == "" {
		return nil, core.ErrRefreshTokenRequired
	}

	// Step 1: Find the live session
	session, err := s.sessions.Verify(ctx, refreshToken)
	if errors.Is(err, core.ErrSessionNotFound) {
		return nil, core.ErrInvalidRefreshToken
	}
	if err != nil {
		return nil, oops.Code("AUTH_STORAGE").With("op", "refresh").Wrap(err)
	}

	// Step 2: Load the owner
	user, err := s.storage.GetUserByID(ctx, session.UserID)
	if errors.Is(err, core.ErrUserNotFound) {
		return nil, core.ErrSessionUserNotFound
	}
	if err != nil {
		return nil, oops.Code("AUTH_STORAGE").With("op", "refresh").With("user_id", session.UserID).Wrap(err)
	}

	// Step 3: Record activity; the row may have been deleted behind a cached copy
	err = s.sessions.Touch(ctx, session)
	if errors.Is(err, core.ErrSessionNotFound) {
		return nil, core.ErrInvalidRefreshToken
	}
	if err != nil {
		return nil, oops.Code("AUTH_STORAGE").With("op", "touch_session").With("session_id", session.ID).Wrap(err)
	}

	// Step 4: Issue a new access token
	access, err := s.tokens.IssueAccessToken(user.ID, user.Email, user.Username)
	if err != nil {
		return nil, oops.Code("AUTH_TOKEN_FAILED").With("user_id", user.ID).Wrap(err)
	}

	return &core.RefreshResult{AccessToken: access}, nil
}

// Logout deletes the session bound to refreshToken. When an access token is
// supplied and verifies, the user is also marked offline. A bad access token
// never fails the logout.
func (s *AuthService) Logout(ctx context.Context, refreshToken, accessToken string) error {
	if refreshToken == "" {
		return core.ErrRefreshTokenRequired
	}

	// Step 1: Delete the session
	if err := s.sessions.Destroy(ctx, refreshToken); err != nil {
		return oops.Code("AUTH_STORAGE").With("op", "logout").Wrap(err)
	}

	if accessToken == "" {
		return nil
	}

	// Step 2: Best-effort presence update
	claims, err := s.tokens.VerifyAccessToken(accessToken)
	switch {
	case errors.Is(err, core.ErrTokenExpired), errors.Is(err, core.ErrTokenInvalid):
		s.logger.WarnContext(ctx, "access token verification failed during logout", "error", err)
		return nil
	case err != nil:
		s.logger.ErrorContext(ctx, "unexpected access token error during logout", "error", err)
		return nil
	}

	if err := s.storage.UpdatePresence(ctx, claims.UserID, false, s.now()); err != nil && !errors.Is(err, core.ErrUserNotFound) {
		s.logger.ErrorContext(ctx, "failed to mark user offline", "user_id", claims.UserID, "error", err)
	}
	return nil
}

// ChangePassword replaces the password of an authenticated user. Existing
// sessions stay valid.
func (s *AuthService) ChangePassword(ctx context.Context, userID string, input core.ChangePasswordInput) error {
	// Step 1: Load the current hash
	user, err := s.storage.GetUserByID(ctx, userID)
	if errors.Is(err, core.ErrUserNotFound) {
		return core.ErrUserNotFound
	}
	if err != nil {
		return oops.Code("AUTH_STORAGE").With("op", "change_password").With("user_id", userID).Wrap(err)
	}

	// Step 2: Verify the current password
	if !s.hasher.Verify(input.CurrentPassword, user.PasswordHash) {
		return core.ErrWrongPassword
	}

	// Step 3: Store the new hash
	hash, err := s.hasher.Hash(input.NewPassword)
	if err != nil {
		return oops.Code("AUTH_HASH_FAILED").Wrap(err)
	}
	if err := s.storage.UpdatePassword(ctx, userID, hash); err != nil {
		return oops.Code("AUTH_STORAGE").With("op", "change_password").With("user_id", userID).Wrap(err)
	}
	return nil
}

// Sessions exposes the session manager for maintenance commands.
func (s *AuthService) Sessions() *SessionManager {
	return s.sessions
}
