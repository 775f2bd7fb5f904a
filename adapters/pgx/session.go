package pgx

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/samber/oops"

	"github.com/lborres/warden/core"
)

// The token column holds the SHA-256 hash of the refresh token, never the
// token itself.
const sessionColumns = `id, user_id, token, device_info, ip_address, expires_at, created_at, last_active_at`

func scanSession(row rowScanner) (*core.Session, error) {
	s := &core.Session{}
	err := row.Scan(
		&s.ID,
		&s.UserID,
		&s.TokenHash,
		&s.DeviceInfo,
		&s.IPAddress,
		&s.ExpiresAt,
		&s.CreatedAt,
		&s.LastActiveAt,
	)
	if err != nil {
		return nil, err
	}
	return s, nil
}

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

const insertSessionSQL = `INSERT INTO sessions (` + sessionColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

func insertSession(ctx context.Context, q execer, s *core.Session) error {
	_, err := q.Exec(ctx, insertSessionSQL,
		s.ID, s.UserID, s.TokenHash, s.DeviceInfo, s.IPAddress, s.ExpiresAt, s.CreatedAt, s.LastActiveAt)
	if err != nil {
		if mapped := mapError(err); errors.Is(mapped, core.ErrUserNotFound) {
			return mapped
		}
		return oops.Code("DB_INSERT_SESSION").With("user_id", s.UserID).Wrap(err)
	}
	return nil
}

func (a *Adapter) CreateSession(ctx context.Context, s *core.Session) error {
	return insertSession(ctx, a.db, s)
}

func (a *Adapter) GetValidSessionByHash(ctx context.Context, tokenHash string, now time.Time) (*core.Session, error) {
	q := `SELECT ` + sessionColumns + ` FROM sessions WHERE token = $1 AND expires_at > $2`

	s, err := scanSession(a.db.QueryRow(ctx, q, tokenHash, now))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, core.ErrSessionNotFound
		}
		return nil, oops.Code("DB_GET_SESSION").Wrap(err)
	}
	return s, nil
}

func (a *Adapter) GetUserSessions(ctx context.Context, userID string) ([]*core.Session, error) {
	q := `SELECT ` + sessionColumns + ` FROM sessions WHERE user_id = $1 ORDER BY created_at DESC`

	rows, err := a.db.Query(ctx, q, userID)
	if err != nil {
		if isBadUUID(err) {
			return []*core.Session{}, nil
		}
		return nil, oops.Code("DB_LIST_SESSIONS").With("user_id", userID).Wrap(err)
	}
	defer rows.Close()

	sessions := make([]*core.Session, 0)
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, oops.Code("DB_LIST_SESSIONS").With("user_id", userID).Wrap(err)
		}
		sessions = append(sessions, s)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.Code("DB_LIST_SESSIONS").With("user_id", userID).Wrap(err)
	}
	return sessions, nil
}

func (a *Adapter) TouchSession(ctx context.Context, id string, at time.Time) error {
	tag, err := a.db.Exec(ctx, `UPDATE sessions SET last_active_at = $2 WHERE id = $1`, id, at)
	if err != nil {
		return oops.Code("DB_TOUCH_SESSION").With("session_id", id).Wrap(err)
	}
	if tag.RowsAffected() == 0 {
		return core.ErrSessionNotFound
	}
	return nil
}

func (a *Adapter) DeleteSessionByHash(ctx context.Context, tokenHash string) error {
	if _, err := a.db.Exec(ctx, `DELETE FROM sessions WHERE token = $1`, tokenHash); err != nil {
		return oops.Code("DB_DELETE_SESSION").Wrap(err)
	}
	return nil
}

func (a *Adapter) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	tag, err := a.db.Exec(ctx, `DELETE FROM sessions WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, oops.Code("DB_PURGE_SESSIONS").Wrap(err)
	}
	return tag.RowsAffected(), nil
}
