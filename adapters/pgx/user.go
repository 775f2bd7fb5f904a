package pgx

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/samber/oops"

	"github.com/lborres/warden/core"
)

const userColumns = `id, username, email, password_hash, full_name, profile_picture, bio, is_online, last_seen, created_at, updated_at`

func scanUser(row rowScanner) (*core.User, error) {
	u := &core.User{}
	err := row.Scan(
		&u.ID,
		&u.Username,
		&u.Email,
		&u.PasswordHash,
		&u.FullName,
		&u.ProfilePicture,
		&u.Bio,
		&u.IsOnline,
		&u.LastSeen,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return u, nil
}

const insertUserSQL = `INSERT INTO users (username, email, password_hash, full_name, profile_picture, bio, is_online, last_seen)
VALUES ($1, $2, $3, $4, $5, $6, $7, COALESCE($8, now()))
RETURNING id, created_at, updated_at, last_seen`

type queryRower interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func insertUser(ctx context.Context, q queryRower, u *core.User) error {
	var lastSeen *time.Time
	if !u.LastSeen.IsZero() {
		lastSeen = &u.LastSeen
	}

	err := q.QueryRow(ctx, insertUserSQL,
		u.Username, u.Email, u.PasswordHash, u.FullName, u.ProfilePicture, u.Bio, u.IsOnline, lastSeen).
		Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt, &u.LastSeen)
	if err != nil {
		if mapped := mapError(err); core.IsConflict(mapped) {
			return mapped
		}
		return oops.Code("DB_INSERT_USER").With("username", u.Username).Wrap(err)
	}
	return nil
}

func (a *Adapter) CreateUser(ctx context.Context, u *core.User) error {
	return insertUser(ctx, a.db, u)
}

func (a *Adapter) GetUserByID(ctx context.Context, id string) (*core.User, error) {
	return a.getUser(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

func (a *Adapter) GetUserByEmail(ctx context.Context, email string) (*core.User, error) {
	return a.getUser(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
}

func (a *Adapter) GetUserByUsername(ctx context.Context, username string) (*core.User, error) {
	return a.getUser(ctx, `SELECT `+userColumns+` FROM users WHERE username = $1`, username)
}

func (a *Adapter) getUser(ctx context.Context, query string, arg string) (*core.User, error) {
	u, err := scanUser(a.db.QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || isBadUUID(err) {
			return nil, core.ErrUserNotFound
		}
		return nil, oops.Code("DB_GET_USER").Wrap(err)
	}
	return u, nil
}

const searchUsersSQL = `SELECT ` + userColumns + ` FROM users
WHERE ($1 = '' OR id::text <> $1)
  AND ($2 = '' OR username ILIKE $3 OR full_name ILIKE $3 OR email ILIKE $3)
ORDER BY username
LIMIT $4 OFFSET $5`

func (a *Adapter) SearchUsers(ctx context.Context, q core.UserSearch) ([]*core.User, error) {
	q = q.Normalize()

	rows, err := a.db.Query(ctx, searchUsersSQL, q.ExcludeID, q.Query, containsPattern(q.Query), q.Limit, q.Offset)
	if err != nil {
		return nil, oops.Code("DB_SEARCH_USERS").Wrap(err)
	}
	defer rows.Close()

	users := make([]*core.User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, oops.Code("DB_SEARCH_USERS").Wrap(err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.Code("DB_SEARCH_USERS").Wrap(err)
	}
	return users, nil
}

func (a *Adapter) UpdatePresence(ctx context.Context, id string, online bool, seen time.Time) error {
	tag, err := a.db.Exec(ctx, `UPDATE users SET is_online = $2, last_seen = $3 WHERE id = $1`, id, online, seen)
	if err != nil {
		if isBadUUID(err) {
			return core.ErrUserNotFound
		}
		return oops.Code("DB_UPDATE_PRESENCE").With("user_id", id).Wrap(err)
	}
	if tag.RowsAffected() == 0 {
		return core.ErrUserNotFound
	}
	return nil
}

func (a *Adapter) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	tag, err := a.db.Exec(ctx, `UPDATE users SET password_hash = $2, updated_at = now() WHERE id = $1`, id, passwordHash)
	if err != nil {
		if isBadUUID(err) {
			return core.ErrUserNotFound
		}
		return oops.Code("DB_UPDATE_PASSWORD").With("user_id", id).Wrap(err)
	}
	if tag.RowsAffected() == 0 {
		return core.ErrUserNotFound
	}
	return nil
}

const updateProfileSQL = `UPDATE users SET
  username = COALESCE($2, username),
  full_name = COALESCE($3, full_name),
  bio = COALESCE($4, bio),
  updated_at = now()
WHERE id = $1
RETURNING ` + userColumns

func (a *Adapter) UpdateProfile(ctx context.Context, id string, upd core.ProfileUpdate) (*core.User, error) {
	u, err := scanUser(a.db.QueryRow(ctx, updateProfileSQL, id, upd.Username, upd.FullName, upd.Bio))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || isBadUUID(err) {
			return nil, core.ErrUserNotFound
		}
		if mapped := mapError(err); core.IsConflict(mapped) {
			return nil, mapped
		}
		return nil, oops.Code("DB_UPDATE_PROFILE").With("user_id", id).Wrap(err)
	}
	return u, nil
}

// CreateUserWithSession inserts the user and its first session in one
// transaction.
func (a *Adapter) CreateUserWithSession(ctx context.Context, u *core.User, s *core.Session) error {
	tx, err := a.db.Begin(ctx)
	if err != nil {
		return oops.Code("DB_BEGIN").Wrap(err)
	}

	if err := insertUser(ctx, tx, u); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}

	s.UserID = u.ID
	if err := insertSession(ctx, tx, s); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return oops.Code("DB_COMMIT").Wrap(mapError(err))
	}
	return nil
}
