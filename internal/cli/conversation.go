// ABOUTME: lostify-admin conversation subcommands
// ABOUTME: Lists a participant's conversations and streams a conversation's message log

package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/2389/lostify-gateway/internal/store"
)

type summaryJSON struct {
	ID                 int64     `json:"id"`
	OtherParticipantID int64     `json:"other_participant_id"`
	ItemID             int64     `json:"item_id"`
	LastMessagePreview string    `json:"last_message_preview"`
	LastMessageAt      time.Time `json:"last_message_at"`
	UnreadCount        int       `json:"unread_count"`
}

type messageJSON struct {
	ID       int64     `json:"id"`
	Sequence int64     `json:"sequence"`
	SenderID int64     `json:"sender_id"`
	Content  string    `json:"content"`
	SentAt   time.Time `json:"sent_at"`
	IsRead   bool      `json:"is_read"`
}

func newConversationCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "conversation",
		Aliases: []string{"conversations", "conv"},
		Short:   "Inspect conversations",
	}
	cmd.AddCommand(newConversationListCommand(opts))
	cmd.AddCommand(newConversationMessagesCommand(opts))
	return cmd
}

func newConversationListCommand(opts *RootOptions) *cobra.Command {
	var participant int64

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List a participant's conversations, most recent first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withStore(cmd, func(ctx context.Context, s *store.SQLiteStore) error {
				summaries, err := s.ListConversationsFor(ctx, participant)
				if err != nil {
					return fmt.Errorf("listing conversations: %w", err)
				}

				if opts.Format == "json" {
					out := make([]summaryJSON, len(summaries))
					for i, c := range summaries {
						out[i] = summaryJSON{
							ID:                 c.ID,
							OtherParticipantID: c.OtherParticipantID,
							ItemID:             c.ItemID,
							LastMessagePreview: c.LastMessagePreview,
							LastMessageAt:      c.LastMessageAt,
							UnreadCount:        c.UnreadCount,
						}
					}
					return writeJSON(cmd, out)
				}

				if len(summaries) == 0 {
					fmt.Fprintf(cmd.OutOrStdout(), "No conversations for participant %d.\n", participant)
					return nil
				}
				w := newTable(cmd.OutOrStdout())
				fmt.Fprintln(w, "ID\tWITH\tITEM\tUNREAD\tLAST ACTIVITY\tPREVIEW")
				for _, c := range summaries {
					fmt.Fprintf(w, "%d\t%d\t%d\t%d\t%s\t%s\n",
						c.ID, c.OtherParticipantID, c.ItemID, c.UnreadCount, formatTime(c.LastMessageAt), truncate(c.LastMessagePreview, 40))
				}
				return w.Flush()
			})
		},
	}

	cmd.Flags().Int64Var(&participant, "participant", 0, "participant id (required)")
	_ = cmd.MarkFlagRequired("participant")
	return cmd
}

func newConversationMessagesCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "messages CONVERSATION_ID",
		Short: "Print a conversation's messages in sequence order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			conversationID, err := parseID(args[0], "conversation")
			if err != nil {
				return err
			}

			return opts.withStore(cmd, func(ctx context.Context, s *store.SQLiteStore) error {
				if _, err := s.GetConversation(ctx, conversationID); err != nil {
					if errors.Is(err, store.ErrNotFound) {
						return fmt.Errorf("conversation %d not found", conversationID)
					}
					return fmt.Errorf("loading conversation: %w", err)
				}

				if opts.Format == "json" {
					out := []messageJSON{}
					for m, err := range s.Messages(ctx, conversationID) {
						if err != nil {
							return fmt.Errorf("reading messages: %w", err)
						}
						out = append(out, messageJSON{
							ID: m.ID, Sequence: m.Sequence, SenderID: m.SenderID,
							Content: m.Content, SentAt: m.SentAt, IsRead: m.IsRead,
						})
					}
					return writeJSON(cmd, out)
				}

				w := newTable(cmd.OutOrStdout())
				fmt.Fprintln(w, "SEQ\tFROM\tSENT\tREAD\tCONTENT")
				for m, err := range s.Messages(ctx, conversationID) {
					if err != nil {
						return fmt.Errorf("reading messages: %w", err)
					}
					read := ""
					if m.IsRead {
						read = "✓"
					}
					fmt.Fprintf(w, "%d\t%d\t%s\t%s\t%s\n", m.Sequence, m.SenderID, formatTime(m.SentAt), read, truncate(m.Content, 60))
				}
				return w.Flush()
			})
		},
	}
}
