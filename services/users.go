package services

import (
	"context"
	"errors"

	"github.com/samber/oops"

	"github.com/lborres/warden/core"
)

// UserService serves profile reads, updates and the user directory.
type UserService struct {
	storage core.UserStorage
}

// Ensure UserService implements UserProvider
var _ core.UserProvider = (*UserService)(nil)

func NewUserService(storage core.UserStorage) *UserService {
	return &UserService{storage: storage}
}

func (s *UserService) GetCurrentUser(ctx context.Context, userID string) (*core.Profile, error) {
	u, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	return u.Profile(), nil
}

// UpdateProfile applies the non-nil fields of upd. A username already held
// by someone else is rejected with core.ErrUsernameTaken.
func (s *UserService) UpdateProfile(ctx context.Context, userID string, upd core.ProfileUpdate) (*core.Profile, error) {
	if upd.Username != nil {
		other, err := s.storage.GetUserByUsername(ctx, *upd.Username)
		switch {
		case err == nil && other.ID != userID:
			return nil, core.ErrUsernameTaken
		case err != nil && !errors.Is(err, core.ErrUserNotFound):
			return nil, oops.Code("USER_STORAGE").With("op", "lookup_username").Wrap(err)
		}
	}

	u, err := s.storage.UpdateProfile(ctx, userID, upd)
	switch {
	case errors.Is(err, core.ErrUserNotFound), core.IsConflict(err):
		return nil, err
	case err != nil:
		return nil, oops.Code("USER_STORAGE").With("op", "update_profile").With("user_id", userID).Wrap(err)
	}
	return u.Profile(), nil
}

func (s *UserService) GetUserByID(ctx context.Context, id string) (*core.PublicProfile, error) {
	u, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return u.Public(), nil
}

// SearchUsers lists users other than the caller matching q.
func (s *UserService) SearchUsers(ctx context.Context, callerID string, q core.UserSearch) ([]*core.PublicProfile, error) {
	q.ExcludeID = callerID
	users, err := s.storage.SearchUsers(ctx, q.Normalize())
	if err != nil {
		return nil, oops.Code("USER_STORAGE").With("op", "search").Wrap(err)
	}

	out := make([]*core.PublicProfile, 0, len(users))
	for _, u := range users {
		p := u.Public()
		p.Bio = nil
		out = append(out, p)
	}
	return out, nil
}

func (s *UserService) load(ctx context.Context, id string) (*core.User, error) {
	u, err := s.storage.GetUserByID(ctx, id)
	if errors.Is(err, core.ErrUserNotFound) {
		return nil, core.ErrUserNotFound
	}
	if err != nil {
		return nil, oops.Code("USER_STORAGE").With("op", "get_user").With("user_id", id).Wrap(err)
	}
	return u, nil
}
