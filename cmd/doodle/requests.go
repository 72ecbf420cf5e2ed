package main

import (
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newRequestsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "requests",
		Short: "Send and answer friend requests",
	}

	respond := func(accept bool) func(cmd *cobra.Command, args []string) error {
		return func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid request id %q", args[0])
			}
			contact, err := a.syncer.RespondFriendRequest(cmd.Context(), id, accept)
			if err != nil {
				return err
			}
			if contact != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "Accepted, %s (%s) added to friends\n", contact.Name, contact.Code)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Declined request #%d\n", id)
			return nil
		}
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "send <code>",
			Short: "Ask the owner of a code to become friends",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				receipt, err := a.syncer.RequestFriend(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if receipt.Duplicate {
					fmt.Fprintf(cmd.OutOrStdout(), "Request #%d is already pending\n", receipt.ID)
					return nil
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Request #%d sent\n", receipt.ID)
				return nil
			},
		},
		&cobra.Command{
			Use:   "ls",
			Short: "List incoming requests and pick up accepted ones",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				lists, err := a.syncer.FriendRequests(cmd.Context())
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(lists.Incoming) == 0 {
					fmt.Fprintln(out, "No pending requests.")
				} else {
					w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
					fmt.Fprintln(w, "ID\tFROM\tCODE\tSENT")
					for _, r := range lists.Incoming {
						fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", r.ID, r.FromName, r.FromCode, formatMillis(r.CreatedAt))
					}
					if err := w.Flush(); err != nil {
						return err
					}
				}
				for _, r := range lists.Accepted {
					fmt.Fprintf(out, "%s accepted your request\n", r.ToCode)
				}
				return nil
			},
		},
		&cobra.Command{
			Use:   "accept <id>",
			Short: "Accept a friend request",
			Args:  cobra.ExactArgs(1),
			RunE:  respond(true),
		},
		&cobra.Command{
			Use:   "decline <id>",
			Short: "Decline a friend request",
			Args:  cobra.ExactArgs(1),
			RunE:  respond(false),
		},
	)
	return cmd
}
