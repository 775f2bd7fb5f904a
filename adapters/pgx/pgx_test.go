package pgx

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lborres/warden/core"
)

var (
	userCols    = []string{"id", "username", "email", "password_hash", "full_name", "profile_picture", "bio", "is_online", "last_seen", "created_at", "updated_at"}
	sessionCols = []string{"id", "user_id", "token", "device_info", "ip_address", "expires_at", "created_at", "last_active_at"}
	fixedNow    = time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC)
)

func strPtr(s string) *string { return &s }

func newMock(t *testing.T) (pgxmock.PgxPoolIface, *Adapter) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err, "failed to create mock")
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		mock.Close()
	})
	return mock, New(mock)
}

func aliceRow() *pgxmock.Rows {
	return pgxmock.NewRows(userCols).AddRow(
		"u-1", "alice", "alice@example.com", "$2a$10$hash",
		strPtr("Alice"), (*string)(nil), (*string)(nil),
		true, fixedNow, fixedNow, fixedNow,
	)
}

func uniqueViolation(constraint string) error {
	return &pgconn.PgError{Code: pgerrcode.UniqueViolation, ConstraintName: constraint}
}

func TestMapError(t *testing.T) {
	other := errors.New("connection reset")
	tests := []struct {
		name string
		in   error
		want error
	}{
		{name: "nil", in: nil, want: nil},
		{name: "email constraint", in: uniqueViolation(constraintUsersEmail), want: core.ErrEmailTaken},
		{name: "username constraint", in: uniqueViolation(constraintUsersUsername), want: core.ErrUsernameTaken},
		{name: "foreign key", in: &pgconn.PgError{Code: pgerrcode.ForeignKeyViolation}, want: core.ErrUserNotFound},
		{name: "other constraint untouched", in: uniqueViolation("sessions_token_key")},
		{name: "non pg error untouched", in: other, want: other},
	}

	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			got := mapError(test.in)
			switch {
			case test.want != nil:
				assert.ErrorIs(t, got, test.want)
			case test.in != nil:
				assert.Equal(t, test.in, got)
			default:
				assert.NoError(t, got)
			}
		})
	}
}

func TestContainsPattern(t *testing.T) {
	assert.Equal(t, "%ali%", containsPattern("ali"))
	assert.Equal(t, `%100\%\_off\\%`, containsPattern(`100%_off\`))
}

func TestAdapter_CreateUser(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		wantErr error
	}{
		{name: "inserted"},
		{name: "duplicate email", err: uniqueViolation(constraintUsersEmail), wantErr: core.ErrEmailTaken},
		{name: "duplicate username", err: uniqueViolation(constraintUsersUsername), wantErr: core.ErrUsernameTaken},
	}

	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			// Arrange
			mock, a := newMock(t)
			bio := "Reads a lot"
			u := &core.User{Username: "alice", Email: "alice@example.com", PasswordHash: "h", Bio: &bio, IsOnline: true, LastSeen: fixedNow}
			exp := mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO users")).
				WithArgs("alice", "alice@example.com", "h", pgxmock.AnyArg(), pgxmock.AnyArg(), &bio, true, pgxmock.AnyArg())
			if test.err != nil {
				exp.WillReturnError(test.err)
			} else {
				exp.WillReturnRows(pgxmock.NewRows([]string{"id", "created_at", "updated_at", "last_seen"}).
					AddRow("u-1", fixedNow, fixedNow, fixedNow))
			}

			// Act
			err := a.CreateUser(context.Background(), u)

			// Assert
			if test.wantErr != nil {
				assert.ErrorIs(t, err, test.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "u-1", u.ID)
			assert.Equal(t, fixedNow, u.CreatedAt)
		})
	}
}

func TestAdapter_GetUser(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(mock pgxmock.PgxPoolIface)
		call    func(a *Adapter) (*core.User, error)
		wantErr error
	}{
		{
			name: "by id",
			setup: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(`FROM users WHERE id = \$1`).WithArgs("u-1").WillReturnRows(aliceRow())
			},
			call: func(a *Adapter) (*core.User, error) { return a.GetUserByID(context.Background(), "u-1") },
		},
		{
			name: "by email",
			setup: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(`FROM users WHERE email = \$1`).WithArgs("alice@example.com").WillReturnRows(aliceRow())
			},
			call: func(a *Adapter) (*core.User, error) { return a.GetUserByEmail(context.Background(), "alice@example.com") },
		},
		{
			name: "by username",
			setup: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(`FROM users WHERE username = \$1`).WithArgs("alice").WillReturnRows(aliceRow())
			},
			call: func(a *Adapter) (*core.User, error) { return a.GetUserByUsername(context.Background(), "alice") },
		},
		{
			name: "no rows",
			setup: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(`FROM users WHERE email = \$1`).WillReturnRows(pgxmock.NewRows(userCols))
			},
			call:    func(a *Adapter) (*core.User, error) { return a.GetUserByEmail(context.Background(), "x@example.com") },
			wantErr: core.ErrUserNotFound,
		},
		{
			name: "malformed uuid",
			setup: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(`FROM users WHERE id = \$1`).
					WillReturnError(&pgconn.PgError{Code: pgerrcode.InvalidTextRepresentation})
			},
			call:    func(a *Adapter) (*core.User, error) { return a.GetUserByID(context.Background(), "not-a-uuid") },
			wantErr: core.ErrUserNotFound,
		},
	}

	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			mock, a := newMock(t)
			test.setup(mock)

			u, err := test.call(a)

			if test.wantErr != nil {
				assert.ErrorIs(t, err, test.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "alice", u.Username)
			assert.Equal(t, "$2a$10$hash", u.PasswordHash)
			require.NotNil(t, u.FullName)
			assert.Equal(t, "Alice", *u.FullName)
			assert.Nil(t, u.Bio)
			assert.True(t, u.IsOnline)
		})
	}
}

func TestAdapter_GetUser_DatabaseError(t *testing.T) {
	mock, a := newMock(t)
	mock.ExpectQuery(`FROM users WHERE email`).WillReturnError(errors.New("connection refused"))

	_, err := a.GetUserByEmail(context.Background(), "alice@example.com")

	require.Error(t, err)
	assert.NotErrorIs(t, err, core.ErrUserNotFound)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestAdapter_SearchUsers(t *testing.T) {
	// Arrange
	mock, a := newMock(t)
	mock.ExpectQuery(`ILIKE \$3`).
		WithArgs("caller", "ali", "%ali%", core.MaxSearchLimit, 0).
		WillReturnRows(aliceRow())

	// Act
	users, err := a.SearchUsers(context.Background(), core.UserSearch{Query: "ali", ExcludeID: "caller", Limit: 500, Offset: -3})

	// Assert
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "alice", users[0].Username)
}

func TestAdapter_UpdatePresenceAndPassword(t *testing.T) {
	tests := []struct {
		name     string
		affected int64
		wantErr  error
	}{
		{name: "updated", affected: 1},
		{name: "missing user", affected: 0, wantErr: core.ErrUserNotFound},
	}

	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			mock, a := newMock(t)
			mock.ExpectExec(`UPDATE users SET is_online`).
				WithArgs("u-1", true, fixedNow).
				WillReturnResult(pgxmock.NewResult("UPDATE", test.affected))
			mock.ExpectExec(`UPDATE users SET password_hash`).
				WithArgs("u-1", "new-hash").
				WillReturnResult(pgxmock.NewResult("UPDATE", test.affected))

			errPresence := a.UpdatePresence(context.Background(), "u-1", true, fixedNow)
			errPassword := a.UpdatePassword(context.Background(), "u-1", "new-hash")

			if test.wantErr != nil {
				assert.ErrorIs(t, errPresence, test.wantErr)
				assert.ErrorIs(t, errPassword, test.wantErr)
				return
			}
			assert.NoError(t, errPresence)
			assert.NoError(t, errPassword)
		})
	}
}

func TestAdapter_UpdateProfile(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(exp *pgxmock.ExpectedQuery)
		wantErr error
	}{
		{name: "updated", setup: func(exp *pgxmock.ExpectedQuery) { exp.WillReturnRows(aliceRow()) }},
		{name: "missing user", setup: func(exp *pgxmock.ExpectedQuery) { exp.WillReturnRows(pgxmock.NewRows(userCols)) }, wantErr: core.ErrUserNotFound},
		{name: "username race", setup: func(exp *pgxmock.ExpectedQuery) { exp.WillReturnError(uniqueViolation(constraintUsersUsername)) }, wantErr: core.ErrUsernameTaken},
	}

	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			mock, a := newMock(t)
			upd := core.ProfileUpdate{Username: strPtr("alice"), Bio: strPtr("hi")}
			test.setup(mock.ExpectQuery(`UPDATE users SET`).WithArgs("u-1", upd.Username, (*string)(nil), upd.Bio))

			u, err := a.UpdateProfile(context.Background(), "u-1", upd)

			if test.wantErr != nil {
				assert.ErrorIs(t, err, test.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "alice", u.Username)
		})
	}
}

// Requirement: registration writes the user and the session in one
// transaction; a failure on either rolls both back.
func TestAdapter_CreateUserWithSession(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(mock pgxmock.PgxPoolIface)
		wantErr error
	}{
		{
			name: "commits both rows",
			setup: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectBegin()
				mock.ExpectQuery(`INSERT INTO users`).WillReturnRows(
					pgxmock.NewRows([]string{"id", "created_at", "updated_at", "last_seen"}).AddRow("u-1", fixedNow, fixedNow, fixedNow))
				mock.ExpectExec(`INSERT INTO sessions`).
					WithArgs("s-1", "u-1", "hash", pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
					WillReturnResult(pgxmock.NewResult("INSERT", 1))
				mock.ExpectCommit()
			},
		},
		{
			name: "user conflict rolls back",
			setup: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectBegin()
				mock.ExpectQuery(`INSERT INTO users`).WillReturnError(uniqueViolation(constraintUsersEmail))
				mock.ExpectRollback()
			},
			wantErr: core.ErrEmailTaken,
		},
		{
			name: "session failure rolls back",
			setup: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectBegin()
				mock.ExpectQuery(`INSERT INTO users`).WillReturnRows(
					pgxmock.NewRows([]string{"id", "created_at", "updated_at", "last_seen"}).AddRow("u-1", fixedNow, fixedNow, fixedNow))
				mock.ExpectExec(`INSERT INTO sessions`).WillReturnError(errors.New("disk full"))
				mock.ExpectRollback()
			},
		},
	}

	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			// Arrange
			mock, a := newMock(t)
			test.setup(mock)
			u := &core.User{Username: "alice", Email: "alice@example.com", PasswordHash: "h"}
			s := &core.Session{ID: "s-1", TokenHash: "hash", ExpiresAt: fixedNow.Add(core.RefreshTokenTTL), CreatedAt: fixedNow, LastActiveAt: fixedNow}

			// Act
			err := a.CreateUserWithSession(context.Background(), u, s)

			// Assert
			switch {
			case test.wantErr != nil:
				assert.ErrorIs(t, err, test.wantErr)
			case test.name == "session failure rolls back":
				assert.ErrorContains(t, err, "disk full")
			default:
				require.NoError(t, err)
				assert.Equal(t, "u-1", s.UserID)
			}
		})
	}
}
