package main

import (
	"fmt"
	"net/url"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"doodledrop/backend/internal/client"
	"doodledrop/backend/internal/domain"
	"doodledrop/backend/internal/localstore"
)

func newFriendsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "friends",
		Short: "Manage friends",
	}

	var phone string
	add := &cobra.Command{
		Use:   "add <name> <code>",
		Short: "Add a friend by code",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !domain.ValidCode(domain.NormalizeCode(args[1])) {
				a.log.Warn("code does not look like a doodle code", zap.String("code", args[1]))
			}
			c, err := a.store.AddContact(args[0], args[1], phone)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added %s (%s)\n", c.Name, c.Code)
			return nil
		},
	}
	add.Flags().StringVar(&phone, "phone", "", "phone number used for SMS sharing")

	cmd.AddCommand(
		add,
		&cobra.Command{
			Use:   "rm <friend>",
			Short: "Remove a friend",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				c, err := findContact(a, args[0])
				if err != nil {
					return err
				}
				if err := a.store.RemoveContact(c.ID); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", c.Name)
				return nil
			},
		},
		&cobra.Command{
			Use:   "ls",
			Short: "List friends",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				contacts := a.store.Snapshot().Contacts
				if len(contacts) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No friends yet.")
					return nil
				}
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "NAME\tCODE\tPHONE\tID")
				for _, c := range contacts {
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", c.Name, c.Code, c.Phone, c.ID)
				}
				return w.Flush()
			},
		},
	)
	return cmd
}

func newLinkCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "link <friend>",
		Short: "Print the inbox link and share message for a friend",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := findContact(a, args[0])
			if err != nil {
				return err
			}
			base := a.relay.BaseURL()
			if base == "" {
				return fmt.Errorf("relay address not configured, run `doodle config set-relay <url>`")
			}

			link := client.InboxLink(base, c.Code)
			msg := client.ShareMessage(a.store.Snapshot().Name, link)
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, link)
			fmt.Fprintln(out, msg)
			if c.Phone != "" {
				fmt.Fprintf(out, "sms:%s?&body=%s\n", c.Phone, url.QueryEscape(msg))
			}
			return nil
		},
	}
}

func findContact(a *app, ref string) (localstore.Contact, error) {
	c, ok := a.store.Snapshot().FindContact(ref)
	if !ok {
		return localstore.Contact{}, &client.NoDestinationError{Contact: ref}
	}
	return c, nil
}
