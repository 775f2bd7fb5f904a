package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/lborres/warden/core"
	"github.com/lborres/warden/pkg/crypto"
)

// DefaultAccessTTL is the access-token lifetime when none is configured.
const DefaultAccessTTL = 24 * time.Hour

type Config struct {
	Secret    []byte
	AccessTTL time.Duration
	Issuer    string // optional "iss" claim

	// Now overrides the clock for issuing and verifying. Defaults to time.Now.
	Now func() time.Time
}

// Issuer mints HS256 access tokens and opaque refresh tokens.
type Issuer struct {
	secret    []byte
	accessTTL time.Duration
	issuer    string
	now       func() time.Time
	parser    *jwt.Parser
}

type accessClaims struct {
	UserID   string `json:"id"`
	Email    string `json:"email"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

func NewIssuer(c Config) (*Issuer, error) {
	if len(c.Secret) == 0 {
		return nil, core.ErrSecretRequired
	}
	if c.AccessTTL <= 0 {
		c.AccessTTL = DefaultAccessTTL
	}
	if c.Now == nil {
		c.Now = time.Now
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.Now),
	}
	if c.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(c.Issuer))
	}

	return &Issuer{
		secret:    c.Secret,
		accessTTL: c.AccessTTL,
		issuer:    c.Issuer,
		now:       c.Now,
		parser:    jwt.NewParser(opts...),
	}, nil
}

// AccessTTL reports the configured access-token lifetime.
func (i *Issuer) AccessTTL() time.Duration { return i.accessTTL }

// IssueAccessToken signs {id, email, username} with an expiry of now+AccessTTL.
func (i *Issuer) IssueAccessToken(userID, email, username string) (string, error) {
	now := i.now()
	claims := accessClaims{
		UserID:   userID,
		Email:    email,
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.accessTTL)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign access token: %w", err)
	}
	return signed, nil
}

// VerifyAccessToken checks signature, algorithm and expiry. Failures are
// core.ErrTokenExpired or core.ErrTokenInvalid.
func (i *Issuer) VerifyAccessToken(tokenString string) (*core.Claims, error) {
	if tokenString == "" {
		return nil, core.ErrTokenInvalid
	}

	claims := &accessClaims{}
	tok, err := i.parser.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return i.secret, nil
	})
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, core.ErrTokenExpired
	case err != nil, !tok.Valid, claims.UserID == "":
		return nil, core.ErrTokenInvalid
	}

	out := &core.Claims{
		UserID:    claims.UserID,
		Email:     claims.Email,
		Username:  claims.Username,
		ExpiresAt: claims.ExpiresAt.Time,
	}
	if claims.IssuedAt != nil {
		out.IssuedAt = claims.IssuedAt.Time
	}
	return out, nil
}

// IssueRefreshToken returns a 256-bit random token and the digest to store.
func (i *Issuer) IssueRefreshToken() (*crypto.TokenPair, error) {
	pair, err := crypto.GenerateHashedToken(crypto.DefaultTokenLength)
	if err != nil {
		return nil, fmt.Errorf("failed to generate refresh token: %w", err)
	}
	return pair, nil
}
