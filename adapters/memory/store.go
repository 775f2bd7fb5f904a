// Package memory is an in-process core.AuthStorage. It backs tests and the
// STORE=memory mode; state is lost on restart.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lborres/warden/core"
)

// Ensure Store implements core.AuthStorage
var _ core.AuthStorage = (*Store)(nil)

type Store struct {
	mu       sync.RWMutex
	users    map[string]*core.User    // by id
	sessions map[string]*core.Session // by token hash
	now      func() time.Time
}

func New() *Store {
	return &Store{
		users:    make(map[string]*core.User),
		sessions: make(map[string]*core.Session),
		now:      time.Now,
	}
}

// WithClock overrides the timestamp source for created_at/updated_at.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

func (s *Store) CreateUser(_ context.Context, u *core.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertUser(u)
}

func (s *Store) insertUser(u *core.User) error {
	if err := s.checkUnique("", u.Email, u.Username); err != nil {
		return err
	}

	now := s.now()
	u.ID = uuid.NewString()
	u.CreatedAt = now
	u.UpdatedAt = now
	if u.LastSeen.IsZero() {
		u.LastSeen = now
	}

	cp := *u
	s.users[u.ID] = &cp
	return nil
}

// checkUnique reports conflicts with any user other than selfID.
func (s *Store) checkUnique(selfID, email, username string) error {
	// Email wins when both collide with different rows.
	if email != "" {
		for _, u := range s.users {
			if u.ID != selfID && u.Email == email {
				return core.ErrEmailTaken
			}
		}
	}
	if username != "" {
		for _, u := range s.users {
			if u.ID != selfID && u.Username == username {
				return core.ErrUsernameTaken
			}
		}
	}
	return nil
}

func (s *Store) GetUserByID(_ context.Context, id string) (*core.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, core.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (*core.User, error) {
	return s.findUser(func(u *core.User) bool { return u.Email == email })
}

func (s *Store) GetUserByUsername(_ context.Context, username string) (*core.User, error) {
	return s.findUser(func(u *core.User) bool { return u.Username == username })
}

func (s *Store) findUser(match func(*core.User) bool) (*core.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if match(u) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, core.ErrUserNotFound
}

// SearchUsers matches the query case-insensitively against username,
// full name and email, ordered by username.
func (s *Store) SearchUsers(_ context.Context, q core.UserSearch) ([]*core.User, error) {
	q = q.Normalize()
	needle := strings.ToLower(q.Query)

	s.mu.RLock()
	matches := make([]*core.User, 0)
	for _, u := range s.users {
		if u.ID == q.ExcludeID {
			continue
		}
		if needle != "" && !userMatches(u, needle) {
			continue
		}
		cp := *u
		matches = append(matches, &cp)
	}
	s.mu.RUnlock()

	sort.Slice(matches, func(i, j int) bool { return matches[i].Username < matches[j].Username })

	if q.Offset >= len(matches) {
		return []*core.User{}, nil
	}
	end := q.Offset + q.Limit
	if end > len(matches) {
		end = len(matches)
	}
	return matches[q.Offset:end], nil
}

func userMatches(u *core.User, needle string) bool {
	if strings.Contains(strings.ToLower(u.Username), needle) ||
		strings.Contains(strings.ToLower(u.Email), needle) {
		return true
	}
	return u.FullName != nil && strings.Contains(strings.ToLower(*u.FullName), needle)
}

func (s *Store) UpdatePresence(_ context.Context, id string, online bool, seen time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return core.ErrUserNotFound
	}
	u.IsOnline = online
	u.LastSeen = seen
	return nil
}

func (s *Store) UpdatePassword(_ context.Context, id, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return core.ErrUserNotFound
	}
	u.PasswordHash = passwordHash
	u.UpdatedAt = s.now()
	return nil
}

func (s *Store) UpdateProfile(_ context.Context, id string, upd core.ProfileUpdate) (*core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, core.ErrUserNotFound
	}

	if upd.Username != nil {
		if err := s.checkUnique(id, "", *upd.Username); err != nil {
			return nil, err
		}
		u.Username = *upd.Username
	}
	if upd.FullName != nil {
		u.FullName = copyString(upd.FullName)
	}
	if upd.Bio != nil {
		u.Bio = copyString(upd.Bio)
	}
	u.UpdatedAt = s.now()

	cp := *u
	return &cp, nil
}

func (s *Store) CreateSession(_ context.Context, sess *core.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertSession(sess)
}

func (s *Store) insertSession(sess *core.Session) error {
	if _, ok := s.users[sess.UserID]; !ok {
		return core.ErrUserNotFound
	}
	if sess.ID == "" {
		sess.ID = uuid.NewString()
	}
	cp := *sess
	s.sessions[sess.TokenHash] = &cp
	return nil
}

func (s *Store) GetValidSessionByHash(_ context.Context, tokenHash string, now time.Time) (*core.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[tokenHash]
	if !ok || !sess.IsValidAt(now) {
		return nil, core.ErrSessionNotFound
	}
	cp := *sess
	return &cp, nil
}

func (s *Store) GetUserSessions(_ context.Context, userID string) ([]*core.Session, error) {
	s.mu.RLock()
	out := make([]*core.Session, 0)
	for _, sess := range s.sessions {
		if sess.UserID == userID {
			cp := *sess
			out = append(out, &cp)
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) TouchSession(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sess := range s.sessions {
		if sess.ID == id {
			sess.LastActiveAt = at
			return nil
		}
	}
	return core.ErrSessionNotFound
}

func (s *Store) DeleteSessionByHash(_ context.Context, tokenHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, tokenHash)
	return nil
}

func (s *Store) DeleteExpiredSessions(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for hash, sess := range s.sessions {
		if !sess.IsValidAt(now) {
			delete(s.sessions, hash)
			n++
		}
	}
	return n, nil
}

// CreateUserWithSession inserts both rows under one lock; on any failure
// neither is stored.
func (s *Store) CreateUserWithSession(_ context.Context, u *core.User, sess *core.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.insertUser(u); err != nil {
		return err
	}
	sess.UserID = u.ID
	if err := s.insertSession(sess); err != nil {
		delete(s.users, u.ID)
		u.ID = ""
		return err
	}
	return nil
}

func copyString(p *string) *string {
	v := *p
	return &v
}
