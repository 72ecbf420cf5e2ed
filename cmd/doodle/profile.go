package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"doodledrop/backend/internal/client"
)

func newInitCmd(a *app) *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create the local state and print your code",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if name != "" {
				if err := a.store.SetProfile(name); err != nil {
					return err
				}
			}
			if relay := a.v.GetString("relay"); relay != "" {
				if err := a.store.SetRelayURL(client.NormalizeBaseURL(relay)); err != nil {
					return err
				}
			}
			st := a.store.Snapshot()
			fmt.Fprintf(cmd.OutOrStdout(), "Your code: %s\nState file: %s\n", st.Code, a.store.Path())
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "display name shown to friends")
	return cmd
}

func newWhoamiCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show your code, name and relay",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st := a.store.Snapshot()
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Code:  %s\n", st.Code)
			fmt.Fprintf(out, "Name:  %s\n", valueOr(st.Name, "(not set)"))
			fmt.Fprintf(out, "Relay: %s\n", valueOr(a.relay.BaseURL(), "(not set)"))
			if base := a.relay.BaseURL(); base != "" {
				fmt.Fprintf(out, "Inbox: %s\n", client.InboxLink(base, st.Code))
			}
			return nil
		},
	}
}

func newConfigCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Change local settings",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "set-name <name>",
			Short: "Set your display name",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				if err := a.store.SetProfile(args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Name set to %s\n", a.store.Snapshot().Name)
				return nil
			},
		},
		&cobra.Command{
			Use:   "set-relay <url>",
			Short: "Set the relay base address",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				relay := client.NormalizeBaseURL(args[0])
				if err := a.store.SetRelayURL(relay); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Relay set to %s\n", relay)
				return nil
			},
		},
	)
	return cmd
}

func valueOr(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
