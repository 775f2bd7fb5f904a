package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/lborres/warden/core"
	"github.com/lborres/warden/services"
)

// openSessionManager builds a session manager over the configured store.
// Commands using it never mint tokens.
func openSessionManager(cmd *cobra.Command) (*services.SessionManager, func(), error) {
	cfg, err := loadStoreConfig()
	if err != nil {
		return nil, nil, err
	}
	storage, closeFn, err := openStorage(cmd.Context(), cfg)
	if err != nil {
		return nil, nil, err
	}
	return services.NewSessionManager(services.SessionConfig{}, storage, nil, nil), closeFn, nil
}

func NewSessionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Inspect and maintain refresh-token sessions",
	}

	cmd.AddCommand(newSessionsPurgeCmd())
	cmd.AddCommand(newSessionsListCmd())

	return cmd
}

func newSessionsPurgeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "purge",
		Short: "Delete every expired session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			sm, closeFn, err := openSessionManager(cmd)
			if err != nil {
				return err
			}
			defer closeFn()

			n, err := sm.PurgeExpired(cmd.Context())
			if err != nil {
				return err
			}
			cmd.Printf("Purged %d expired sessions\n", n)
			return nil
		},
	}
}

func newSessionsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list USER_ID",
		Short: "List a user's sessions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sm, closeFn, err := openSessionManager(cmd)
			if err != nil {
				return err
			}
			defer closeFn()

			sessions, err := sm.List(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if len(sessions) == 0 {
				cmd.Println("No sessions")
				return nil
			}
			now := time.Now()
			for _, s := range sessions {
				cmd.Println(formatSession(s, now))
			}
			return nil
		},
	}
}

func formatSession(s *core.Session, now time.Time) string {
	state := "active"
	if !s.ExpiresAt.After(now) {
		state = "expired"
	}
	device := "-"
	if s.DeviceInfo != nil {
		device = *s.DeviceInfo
	}
	ip := "-"
	if s.IPAddress != nil {
		ip = *s.IPAddress
	}
	return s.ID + "\t" + state + "\t" + s.ExpiresAt.UTC().Format(time.RFC3339) + "\t" + ip + "\t" + device
}
