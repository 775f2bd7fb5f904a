// Package warden wires the credential and session services to a storage
// backend and an HTTP adapter.
package warden

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/lborres/warden/core"
	"github.com/lborres/warden/pkg/cache"
	"github.com/lborres/warden/pkg/crypto"
	"github.com/lborres/warden/pkg/token"
	"github.com/lborres/warden/services"
)

// interfaces
type (
	AuthStorage = core.AuthStorage
	Cache       = core.Cache

	HTTPAdapter = core.HTTPAdapter

	PasswordHandler = crypto.PasswordHandler
)

type (
	User          = core.User
	Session       = core.Session
	Claims        = core.Claims
	CacheConfig = core.CacheConfig
	CacheStats  = core.CacheStats
)

const (
	defaultBasePath  = "/api"
	defaultSecretLen = 32
)

// Constructors & helpers (convenience re-exports)
var (
	NewInMemoryCache = cache.NewInMemoryCache
	NewBcrypt        = crypto.NewBcrypt
	NewArgon2        = crypto.NewArgon2
)

var (
	ErrEmailTaken         = core.ErrEmailTaken
	ErrUsernameTaken      = core.ErrUsernameTaken
	ErrUserNotFound       = core.ErrUserNotFound
	ErrInvalidCredentials = core.ErrInvalidCredentials
	ErrWrongPassword      = core.ErrWrongPassword
)

var (
	ErrRefreshTokenRequired = core.ErrRefreshTokenRequired
	ErrInvalidRefreshToken  = core.ErrInvalidRefreshToken
	ErrMissingAuthHeader    = core.ErrMissingAuthHeader
	ErrTokenExpired         = core.ErrTokenExpired
	ErrTokenInvalid         = core.ErrTokenInvalid
	ErrSessionNotFound      = core.ErrSessionNotFound
)

var (
	ErrValidation       = core.ErrValidation
	ErrInvalidEmail     = core.ErrInvalidEmail
	ErrPasswordRequired = core.ErrPasswordRequired
	ErrPasswordTooShort = core.ErrPasswordTooShort
	ErrPasswordTooLong  = core.ErrPasswordTooLong
)

var (
	ErrDBAdapterRequired   = core.ErrDBAdapterRequired
	ErrHTTPAdapterRequired = core.ErrHTTPAdapterRequired
	ErrSecretRequired      = core.ErrSecretRequired
	ErrSecretTooShort      = core.ErrSecretTooShort
)

type Config struct {
	// Secret signs access tokens. At least 32 characters.
	Secret         string
	AccessTokenTTL time.Duration // default 24h
	TokenIssuer    string        // optional "iss" claim

	Database AuthStorage
	HTTP     HTTPAdapter

	CacheAdapter Cache
	DisableCache bool

	PasswordHasher PasswordHandler
	BasePath       string
	Logger         *slog.Logger
}

// Warden is a running instance: the services plus the protected-route
// middleware built by the HTTP adapter.
type Warden struct {
	Auth      *services.AuthService
	Users     *services.UserService
	Sessions  *services.SessionManager
	Tokens    *token.Issuer
	Endpoints *services.EndpointRegistry
	BasePath  string

	// Protected is the HTTP adapter's middleware for guarding application
	// routes, e.g. fiber.Handler for the fiber adapter.
	Protected any
}

func New(config Config) (*Warden, error) {
	if config.Secret == "" {
		return nil, ErrSecretRequired
	}
	if len(config.Secret) < defaultSecretLen {
		return nil, fmt.Errorf("%w - minimum of %d characters", ErrSecretTooShort, defaultSecretLen)
	}
	if config.Database == nil {
		return nil, ErrDBAdapterRequired
	}
	if config.HTTP == nil {
		return nil, ErrHTTPAdapterRequired
	}

	// Set Defaults

	cacheAdapter := config.CacheAdapter
	if cacheAdapter == nil && !config.DisableCache {
		cacheAdapter = NewInMemoryCache(CacheConfig{
			TTL:     cache.DefaultTTL,
			MaxSize: cache.DefaultMaxSize,
		})
	}
	if config.DisableCache {
		cacheAdapter = nil
	}

	passwordHasher := config.PasswordHasher
	if passwordHasher == nil {
		passwordHasher = crypto.NewBcrypt()
	}

	basePath := config.BasePath
	if basePath == "" {
		basePath = defaultBasePath
	}

	issuer, err := token.NewIssuer(token.Config{
		Secret:    []byte(config.Secret),
		AccessTTL: config.AccessTokenTTL,
		Issuer:    config.TokenIssuer,
	})
	if err != nil {
		return nil, err
	}

	endpoints := services.NewEndpointRegistry()

	sessionManager := services.NewSessionManager(services.SessionConfig{}, config.Database, cacheAdapter, issuer)
	auth := services.NewAuthService(config.Database, passwordHasher, sessionManager, issuer, config.Logger)
	users := services.NewUserService(config.Database)

	w := &Warden{
		Auth:      auth,
		Users:     users,
		Sessions:  sessionManager,
		Tokens:    issuer,
		Endpoints: endpoints,
		BasePath:  basePath,
	}

	err = config.HTTP.RegisterRoutes(core.Handlers{
		Auth:      auth,
		Users:     users,
		Verifier:  issuer,
		Endpoints: endpoints.Endpoints(),
		BasePath:  basePath,
	})
	if err != nil {
		return nil, err
	}
	w.Protected = config.HTTP.BuildProtectedMiddleware(issuer)

	return w, nil
}
