// ABOUTME: lostify-admin participant subcommands
// ABOUTME: Adds and lists the participants that may hold conversations

package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/2389/lostify-gateway/internal/store"
)

type participantJSON struct {
	ID          int64     `json:"id"`
	Username    string    `json:"username"`
	DisplayName string    `json:"display_name"`
	CreatedAt   time.Time `json:"created_at"`
}

func toParticipantJSON(p *store.Participant) participantJSON {
	return participantJSON{ID: p.ID, Username: p.Username, DisplayName: p.DisplayName, CreatedAt: p.CreatedAt}
}

func newParticipantCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "participant",
		Aliases: []string{"participants"},
		Short:   "Manage participants",
	}
	cmd.AddCommand(newParticipantAddCommand(opts))
	cmd.AddCommand(newParticipantListCommand(opts))
	return cmd
}

func newParticipantAddCommand(opts *RootOptions) *cobra.Command {
	var displayName string

	cmd := &cobra.Command{
		Use:   "add USERNAME",
		Short: "Register a participant",
		Example: `  lostify-admin participant add alice
  lostify-admin participant add bob --display-name "Bob Smith"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withStore(cmd, func(ctx context.Context, s *store.SQLiteStore) error {
				p := &store.Participant{Username: args[0], DisplayName: displayName}
				if err := s.CreateParticipant(ctx, p); err != nil {
					if errors.Is(err, store.ErrDuplicateUsername) {
						return fmt.Errorf("username %q is already taken", args[0])
					}
					return fmt.Errorf("creating participant: %w", err)
				}
				if opts.Format == "json" {
					return writeJSON(cmd, toParticipantJSON(p))
				}
				success(cmd, "Created participant %s (id %d)", p.Username, p.ID)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&displayName, "display-name", "", "display name (default: the username)")
	return cmd
}

func newParticipantListCommand(opts *RootOptions) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List participants",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withStore(cmd, func(ctx context.Context, s *store.SQLiteStore) error {
				participants, err := s.ListParticipants(ctx, limit)
				if err != nil {
					return fmt.Errorf("listing participants: %w", err)
				}

				if opts.Format == "json" {
					out := make([]participantJSON, len(participants))
					for i, p := range participants {
						out[i] = toParticipantJSON(p)
					}
					return writeJSON(cmd, out)
				}

				if len(participants) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No participants.")
					return nil
				}
				w := newTable(cmd.OutOrStdout())
				fmt.Fprintln(w, "ID\tUSERNAME\tDISPLAY NAME\tCREATED")
				for _, p := range participants {
					fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", p.ID, p.Username, truncate(p.DisplayName, 32), formatTime(p.CreatedAt))
				}
				return w.Flush()
			})
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 100, "maximum number of participants")
	return cmd
}
