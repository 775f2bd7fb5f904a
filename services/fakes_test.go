package services

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/lborres/warden/adapters/memory"
	"github.com/lborres/warden/core"
	"github.com/lborres/warden/pkg/crypto"
	"github.com/lborres/warden/pkg/token"
)

var errBoom = errors.New("boom")

// FakeStorage wraps the memory store and lets tests inject failures per
// operation.
type FakeStorage struct {
	*memory.Store

	mu   sync.Mutex
	errs map[string]error
}

func NewFakeStorage() *FakeStorage {
	return &FakeStorage{Store: memory.New(), errs: make(map[string]error)}
}

func (f *FakeStorage) Fail(op string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs[op] = err
}

func (f *FakeStorage) err(op string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.errs[op]
}

func (f *FakeStorage) GetUserByEmail(ctx context.Context, email string) (*core.User, error) {
	if err := f.err("GetUserByEmail"); err != nil {
		return nil, err
	}
	return f.Store.GetUserByEmail(ctx, email)
}

func (f *FakeStorage) GetUserByID(ctx context.Context, id string) (*core.User, error) {
	if err := f.err("GetUserByID"); err != nil {
		return nil, err
	}
	return f.Store.GetUserByID(ctx, id)
}

func (f *FakeStorage) UpdatePresence(ctx context.Context, id string, online bool, seen time.Time) error {
	if err := f.err("UpdatePresence"); err != nil {
		return err
	}
	return f.Store.UpdatePresence(ctx, id, online, seen)
}

func (f *FakeStorage) CreateUserWithSession(ctx context.Context, u *core.User, s *core.Session) error {
	if err := f.err("CreateUserWithSession"); err != nil {
		return err
	}
	return f.Store.CreateUserWithSession(ctx, u, s)
}

func (f *FakeStorage) GetValidSessionByHash(ctx context.Context, hash string, now time.Time) (*core.Session, error) {
	if err := f.err("GetValidSessionByHash"); err != nil {
		return nil, err
	}
	return f.Store.GetValidSessionByHash(ctx, hash, now)
}

func (f *FakeStorage) DeleteSessionByHash(ctx context.Context, hash string) error {
	if err := f.err("DeleteSessionByHash"); err != nil {
		return err
	}
	return f.Store.DeleteSessionByHash(ctx, hash)
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

// newFakeClock starts at the real current second so caches running on the
// wall clock still accept the sessions it stamps.
func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Now().UTC().Truncate(time.Second)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type testHarness struct {
	storage  *FakeStorage
	clock    *fakeClock
	issuer   *token.Issuer
	sessions *SessionManager
	auth     *AuthService
	users    *UserService
	logs     *bytes.Buffer
}

func newHarness(t *testing.T, cache core.Cache) *testHarness {
	t.Helper()

	storage := NewFakeStorage()
	clock := newFakeClock()
	storage.WithClock(clock.Now)

	issuer, err := token.NewIssuer(token.Config{
		Secret:    []byte("test-secret-test-secret-test-secret"),
		AccessTTL: time.Hour,
		Now:       clock.Now,
	})
	if err != nil {
		t.Fatalf("NewIssuer() error = %v", err)
	}

	logs := &bytes.Buffer{}
	logger := slog.New(slog.NewTextHandler(logs, &slog.HandlerOptions{Level: slog.LevelDebug}))

	sessions := NewSessionManager(SessionConfig{}, storage, cache, issuer).WithClock(clock.Now)
	auth := NewAuthService(storage, crypto.NewBcrypt(bcrypt.MinCost), sessions, issuer, logger).WithClock(clock.Now)

	return &testHarness{
		storage:  storage,
		clock:    clock,
		issuer:   issuer,
		sessions: sessions,
		auth:     auth,
		users:    NewUserService(storage),
		logs:     logs,
	}
}

func (h *testHarness) register(t *testing.T, username, email, password string) *core.AuthResult {
	t.Helper()
	res, err := h.auth.Register(context.Background(), core.RegisterInput{
		Username: username,
		Email:    email,
		Password: password,
	}, core.SessionMeta{})
	if err != nil {
		t.Fatalf("Register(%q) error = %v", email, err)
	}
	return res
}
