// ABOUTME: lostify-admin item subcommands
// ABOUTME: Adds and lists the lost/found items conversations are about

package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/2389/lostify-gateway/internal/store"
)

type itemJSON struct {
	ID          int64     `json:"id"`
	OwnerID     int64     `json:"owner_id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Category    string    `json:"category"`
	Status      string    `json:"status"`
	Location    string    `json:"location,omitempty"`
	ReportedAt  time.Time `json:"reported_at"`
}

func toItemJSON(it *store.Item) itemJSON {
	return itemJSON{
		ID:          it.ID,
		OwnerID:     it.OwnerID,
		Name:        it.Name,
		Description: it.Description,
		Category:    string(it.Category),
		Status:      string(it.Status),
		Location:    it.Location,
		ReportedAt:  it.ReportedAt,
	}
}

func newItemCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "item",
		Aliases: []string{"items"},
		Short:   "Manage lost and found items",
	}
	cmd.AddCommand(newItemAddCommand(opts))
	cmd.AddCommand(newItemListCommand(opts))
	return cmd
}

func categoryNames() string {
	names := make([]string, len(store.ItemCategories))
	for i, c := range store.ItemCategories {
		names[i] = string(c)
	}
	return strings.Join(names, "|")
}

func statusNames() string {
	names := make([]string, len(store.ItemStatuses))
	for i, s := range store.ItemStatuses {
		names[i] = string(s)
	}
	return strings.Join(names, "|")
}

func newItemAddCommand(opts *RootOptions) *cobra.Command {
	var (
		owner       int64
		name        string
		description string
		category    string
		status      string
		location    string
	)

	cmd := &cobra.Command{
		Use:     "add",
		Short:   "Report an item",
		Example: `  lostify-admin item add --owner 1 --name "Blue backpack" --category ACCESSORIES --status LOST`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withStore(cmd, func(ctx context.Context, s *store.SQLiteStore) error {
				ok, err := s.ParticipantExists(ctx, owner)
				if err != nil {
					return fmt.Errorf("looking up owner: %w", err)
				}
				if !ok {
					return fmt.Errorf("owner %d is not a participant", owner)
				}

				item := &store.Item{
					OwnerID:     owner,
					Name:        name,
					Description: description,
					Category:    store.ItemCategory(category),
					Status:      store.ItemStatus(status),
					Location:    location,
				}
				if err := s.CreateItem(ctx, item); err != nil {
					return fmt.Errorf("creating item: %w", err)
				}

				if opts.Format == "json" {
					return writeJSON(cmd, toItemJSON(item))
				}
				success(cmd, "Created item %q (id %d)", item.Name, item.ID)
				return nil
			})
		},
	}

	cmd.Flags().Int64Var(&owner, "owner", 0, "participant id of the reporter (required)")
	_ = cmd.MarkFlagRequired("owner")
	cmd.Flags().StringVar(&name, "name", "", "item name (required)")
	_ = cmd.MarkFlagRequired("name")
	cmd.Flags().StringVar(&category, "category", string(store.ItemCategoryOther), "category ("+categoryNames()+")")
	cmd.Flags().StringVar(&status, "status", string(store.ItemStatusLost), "status ("+statusNames()+")")
	cmd.Flags().StringVar(&description, "description", "", "free-form description")
	cmd.Flags().StringVar(&location, "location", "", "where it was lost or found")
	return cmd
}

func newItemListCommand(opts *RootOptions) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List items, most recently reported first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withStore(cmd, func(ctx context.Context, s *store.SQLiteStore) error {
				items, err := s.ListItems(ctx, limit)
				if err != nil {
					return fmt.Errorf("listing items: %w", err)
				}

				if opts.Format == "json" {
					out := make([]itemJSON, len(items))
					for i, it := range items {
						out[i] = toItemJSON(it)
					}
					return writeJSON(cmd, out)
				}

				if len(items) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No items.")
					return nil
				}
				w := newTable(cmd.OutOrStdout())
				fmt.Fprintln(w, "ID\tNAME\tCATEGORY\tSTATUS\tOWNER\tREPORTED")
				for _, it := range items {
					fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%d\t%s\n",
						it.ID, truncate(it.Name, 28), it.Category, it.Status, it.OwnerID, formatTime(it.ReportedAt))
				}
				return w.Flush()
			})
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 100, "maximum number of items")
	return cmd
}
