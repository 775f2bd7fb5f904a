package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/lborres/warden/core"
	"github.com/lborres/warden/pkg/crypto"
)

const (
	defaultSeedTimeout  = 30 * time.Second
	defaultSeedPassword = "password123"
)

// demoUser is an account created by the seed command.
type demoUser struct {
	Username       string
	Email          string
	FullName       string
	ProfilePicture string
	Bio            string
	IsOnline       bool
}

var demoUsers = []demoUser{
	{
		Username:       "john_doe",
		Email:          "john@example.com",
		FullName:       "John Doe",
		ProfilePicture: "/avatars/john.jpg",
		Bio:            "Software developer with a passion for building great applications.",
	},
	{
		Username:       "jane_smith",
		Email:          "jane@example.com",
		FullName:       "Jane Smith",
		ProfilePicture: "/avatars/jane.jpg",
		Bio:            "UX designer who loves creating beautiful interfaces.",
		IsOnline:       true,
	},
}

type seedFlags struct {
	timeout  time.Duration
	password string
}

// NewSeedCmd creates the seed subcommand.
func NewSeedCmd() *cobra.Command {
	flags := &seedFlags{}

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create the demo users",
		Long: `Creates the demo accounts john_doe and jane_smith, both with the same
password. Accounts that already exist are left untouched, so the command can
be run more than once.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSeed(cmd, flags)
		},
	}

	cmd.Flags().DurationVar(&flags.timeout, "timeout", defaultSeedTimeout, "timeout for database operations (e.g., 30s, 1m)")
	cmd.Flags().StringVar(&flags.password, "password", defaultSeedPassword, "password given to every demo user")

	return cmd
}

func runSeed(cmd *cobra.Command, flags *seedFlags) error {
	cfg, err := loadStoreConfig()
	if err != nil {
		return err
	}

	// Use cmd.Context() to respect SIGINT/SIGTERM signals
	ctx, cancel := context.WithTimeout(cmd.Context(), flags.timeout)
	defer cancel()

	storage, closeStorage, err := openStorage(ctx, cfg)
	if err != nil {
		return oops.With("operation", "open storage").Wrap(err)
	}
	defer closeStorage()

	results, err := seedUsers(ctx, storage, crypto.NewBcrypt(cfg.BcryptCost), flags.password)
	for _, r := range results {
		if r.Created {
			cmd.Printf("Created user %s\n", r.Username)
		} else {
			cmd.Printf("User %s already exists, skipping\n", r.Username)
		}
	}
	if err != nil {
		return err
	}

	cmd.Println("Seeding complete!")
	return nil
}

type seedResult struct {
	Username string
	Created  bool
}

// seedUsers creates every demo user that does not exist yet. A username or
// email conflict means the user was seeded before.
func seedUsers(ctx context.Context, storage core.UserStorage, hasher crypto.PasswordHandler, password string) ([]seedResult, error) {
	if len(password) < 6 {
		return nil, oops.Code("SEED_FAILED").Wrap(core.ErrPasswordTooShort)
	}
	hash, err := hasher.Hash(password)
	if err != nil {
		return nil, oops.Code("SEED_FAILED").With("operation", "hash password").Wrap(err)
	}

	results := make([]seedResult, 0, len(demoUsers))
	for _, d := range demoUsers {
		u := &core.User{
			Username:       d.Username,
			Email:          core.NormalizeEmail(d.Email),
			PasswordHash:   hash,
			FullName:       &d.FullName,
			ProfilePicture: &d.ProfilePicture,
			Bio:            &d.Bio,
			IsOnline:       d.IsOnline,
		}

		err := storage.CreateUser(ctx, u)
		switch {
		case core.IsConflict(err):
			slog.InfoContext(ctx, "demo user already exists", "username", d.Username)
			results = append(results, seedResult{Username: d.Username})
		case err != nil:
			return results, oops.Code("SEED_FAILED").With("username", d.Username).Wrap(err)
		default:
			slog.InfoContext(ctx, "created demo user", "id", u.ID, "username", d.Username)
			results = append(results, seedResult{Username: d.Username, Created: true})
		}
	}
	return results, nil
}
