package crypto

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
)

// DefaultBcryptCost matches 10 rounds of the bcrypt work factor.
const DefaultBcryptCost = 10

// PasswordHandler hashes and verifies passwords.
//
// Verify never fails on a malformed hash; it simply reports false.
// Implementations must be safe for concurrent use: each call runs on the
// calling goroutine, so a slow hash only occupies that request.
type PasswordHandler interface {
	Hash(password string) (string, error)
	Verify(password, hash string) bool
}

// Ensure implementations satisfy PasswordHandler
var (
	_ PasswordHandler = (*Bcrypt)(nil)
	_ PasswordHandler = (*Argon2)(nil)
)

// Bcrypt is the default PasswordHandler.
type Bcrypt struct {
	Cost int
}

// NewBcrypt returns a bcrypt hasher. Cost defaults to DefaultBcryptCost and
// is clamped to bcrypt's accepted range.
func NewBcrypt(cost ...int) *Bcrypt {
	c := DefaultBcryptCost
	if len(cost) > 0 && cost[0] != 0 {
		c = cost[0]
	}
	if c < bcrypt.MinCost {
		c = bcrypt.MinCost
	}
	if c > bcrypt.MaxCost {
		c = bcrypt.MaxCost
	}
	return &Bcrypt{Cost: c}
}

func (b *Bcrypt) Hash(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), b.Cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

func (b *Bcrypt) Verify(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

type Argon2 struct {
	Memory      uint32 // Memory cost in KiB
	Iterations  uint32 // Number of iterations (time cost)
	Parallelism uint8  // Number of parallel threads
	SaltLength  uint32 // Length of random salt. Ignored during Verify()
	KeyLength   uint32 // Length of generated key
}

// Create a new Argon2 instance
//
// @ref https://cheatsheetseries.owasp.org/cheatsheets/Password_Storage_Cheat_Sheet.html
func NewArgon2() *Argon2 {
	return &Argon2{
		Memory:      64 * 1024, // 64 MB
		Iterations:  3,
		Parallelism: 2,
		SaltLength:  16,
		KeyLength:   32,
	}
}

func (a *Argon2) Hash(password string) (string, error) {
	salt := make([]byte, a.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}

	hash := argon2.IDKey(
		[]byte(password),
		salt,
		a.Iterations,
		a.Memory,
		a.Parallelism,
		a.KeyLength,
	)

	// WARN: hard-coded argon2id string. Only valid due to using argon2.IDKey()
	encoded := fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		a.Memory,
		a.Iterations,
		a.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash))

	return encoded, nil
}

func (a *Argon2) Verify(password, encodedHash string) bool {
	params, salt, hash, err := decodeArgon2Hash(encodedHash)
	if err != nil {
		return false
	}

	computedHash := argon2.IDKey(
		[]byte(password),
		salt,
		params.Iterations,
		params.Memory,
		params.Parallelism,
		params.KeyLength,
	)

	return subtle.ConstantTimeCompare(hash, computedHash) == 1
}

// Bounds on parameters read back from a stored hash. Anything outside them
// is treated as malformed so Verify never panics or allocates without limit.
const (
	argon2MaxMemory     = 1024 * 1024 // KiB, 1 GiB
	argon2MaxIterations = 64
	argon2MinSaltLength = 8
	argon2MaxSaltLength = 64
	argon2MinKeyLength  = 16
	argon2MaxKeyLength  = 128
)

func decodeArgon2Hash(encodedHash string) (*Argon2, []byte, []byte, error) {
	parts := strings.Split(encodedHash, "$")
	if len(parts) != 6 {
		return nil, nil, nil, errors.New("invalid hash format")
	}

	if parts[1] != "argon2id" {
		return nil, nil, nil, errors.New("unsupported algorithm")
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return nil, nil, nil, fmt.Errorf("invalid version: %w", err)
	}
	if version != argon2.Version {
		return nil, nil, nil, fmt.Errorf("unsupported version: %d", version)
	}

	params := &Argon2{}
	var p uint32
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &params.Memory, &params.Iterations, &p); err != nil {
		return nil, nil, nil, fmt.Errorf("invalid parameters: %w", err)
	}
	if p == 0 || p > 255 {
		return nil, nil, nil, fmt.Errorf("invalid parallelism parameter: %d", p)
	}
	params.Parallelism = uint8(p)
	if params.Iterations < 1 || params.Iterations > argon2MaxIterations {
		return nil, nil, nil, fmt.Errorf("invalid iterations parameter: %d", params.Iterations)
	}
	if params.Memory < 8*p || params.Memory > argon2MaxMemory {
		return nil, nil, nil, fmt.Errorf("invalid memory parameter: %d", params.Memory)
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return nil, nil, nil, fmt.Errorf("invalid salt encoding: %w", err)
	}

	if len(salt) < argon2MinSaltLength || len(salt) > argon2MaxSaltLength {
		return nil, nil, nil, fmt.Errorf("invalid salt length: %d", len(salt))
	}

	hash, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return nil, nil, nil, fmt.Errorf("invalid hash encoding: %w", err)
	}
	if len(hash) < argon2MinKeyLength || len(hash) > argon2MaxKeyLength {
		return nil, nil, nil, fmt.Errorf("invalid hash length: %d", len(hash))
	}

	params.KeyLength = uint32(len(hash))

	return params, salt, hash, nil
}
