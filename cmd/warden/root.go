package main

import (
	"github.com/spf13/cobra"
)

const serviceName = "warden"

func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "warden",
		Short: "warden - credential and session service",
		Long: `warden registers accounts, authenticates users and issues short-lived
access tokens backed by long-lived refresh-token sessions.`,
		SilenceUsage: true,
	}

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewSessionsCmd())
	cmd.AddCommand(NewSeedCmd())

	return cmd
}
