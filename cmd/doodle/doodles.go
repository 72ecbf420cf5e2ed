package main

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"doodledrop/backend/internal/domain"
)

// dataURIFromFile 读取图片并按探测到的类型生成 data URI
func dataURIFromFile(path string) (string, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	if len(data) == 0 {
		return "", "", fmt.Errorf("%s is empty", path)
	}
	mtype := mimetype.Detect(data)
	uri := "data:" + mtype.String() + ";base64," + base64.StdEncoding.EncodeToString(data)
	return uri, mtype.String(), nil
}

func (a *app) saveDrawing(path string) (domain.Doodle, error) {
	uri, mediaType, err := dataURIFromFile(path)
	if err != nil {
		return domain.Doodle{}, err
	}
	if !strings.HasPrefix(mediaType, "image/") {
		a.log.Warn("file does not look like an image", zap.String("path", path), zap.String("type", mediaType))
	}
	return a.store.RecordOutgoing(domain.Doodle{DataURL: uri})
}

func newDrawCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "draw",
		Short: "Manage drawings",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "save <image>",
		Short: "Save an image file as a drawing in the outbox",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := a.saveDrawing(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved drawing %s\n", d.ID)
			return nil
		},
	})
	return cmd
}

func newOutboxCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "outbox",
		Short: "List or remove saved drawings",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "ls",
			Short: "List saved drawings, newest first",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				outbox := a.store.Snapshot().Outbox
				if len(outbox) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Outbox is empty.")
					return nil
				}
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "ID\tCREATED\tSIZE")
				for _, d := range outbox {
					fmt.Fprintf(w, "%s\t%s\t%d\n", d.ID, formatMillis(d.CreatedAt), len(d.DataURL))
				}
				return w.Flush()
			},
		},
		&cobra.Command{
			Use:   "rm <id>",
			Short: "Remove a saved drawing",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				if err := a.store.RemoveOutgoing(args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", args[0])
				return nil
			},
		},
	)
	return cmd
}

func newSendCmd(a *app) *cobra.Command {
	var outboxID string
	cmd := &cobra.Command{
		Use:   "send <friend> [image]",
		Short: "Send a drawing to a friend",
		Long: `Send a drawing to a friend.

With an image argument the file is saved to the outbox first. With --outbox
the saved drawing with that id is sent. Otherwise the newest drawing is sent.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			doodle, err := a.pickDrawing(args[1:], outboxID)
			if err != nil {
				return err
			}

			receipt, err := a.syncer.Send(cmd.Context(), args[0], doodle)
			if err != nil {
				return err
			}
			if receipt.Duplicate {
				fmt.Fprintf(cmd.OutOrStdout(), "Already delivered as #%d\n", receipt.ID)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Delivered as #%d at %s\n", receipt.ID, formatMillis(receipt.CreatedAt))
			return nil
		},
	}
	cmd.Flags().StringVar(&outboxID, "outbox", "", "id of a saved drawing to send")
	return cmd
}

func (a *app) pickDrawing(images []string, outboxID string) (domain.Doodle, error) {
	if len(images) > 0 {
		return a.saveDrawing(images[0])
	}

	st := a.store.Snapshot()
	if outboxID != "" {
		d, ok := st.FindOutgoing(outboxID)
		if !ok {
			return domain.Doodle{}, fmt.Errorf("drawing %s not found in outbox", outboxID)
		}
		return d, nil
	}
	if len(st.Outbox) == 0 {
		return domain.Doodle{}, errors.New("outbox is empty, pass an image or run `doodle draw save`")
	}
	return st.Outbox[0], nil
}

func newSyncCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Fetch your inbox from the relay",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			inbox, err := a.syncer.Sync(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d doodle(s) in inbox\n", len(inbox))
			return nil
		},
	}
}

func newInboxCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inbox",
		Short: "List or remove received doodles (as of the last sync)",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "ls",
			Short: "List received doodles, newest first",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				inbox := a.store.Snapshot().Inbox
				if len(inbox) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No doodles yet.")
					return nil
				}
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "ID\tFROM\tCODE\tRECEIVED")
				for _, e := range inbox {
					fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", e.ID, valueOr(e.FromName, "-"), valueOr(e.FromCode, "-"), formatMillis(e.CreatedAt))
				}
				return w.Flush()
			},
		},
		&cobra.Command{
			Use:   "rm <id>",
			Short: "Remove a doodle from the local inbox",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				id, err := strconv.ParseInt(args[0], 10, 64)
				if err != nil {
					return fmt.Errorf("invalid id %q", args[0])
				}
				if err := a.store.RemoveInboxEntry(id); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed #%d\n", id)
				return nil
			},
		},
	)
	return cmd
}

func formatMillis(ms int64) string {
	return time.UnixMilli(ms).Local().Format("2006-01-02 15:04:05")
}
