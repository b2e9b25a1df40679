// ABOUTME: Root cobra command for lostify-admin and shared store access
// ABOUTME: Resolves the database from --db or the gateway config and validates --format

package cli

import (
	"context"
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/2389/lostify-gateway/internal/config"
	"github.com/2389/lostify-gateway/internal/store"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Database string
	Config   string
	Format   string // "text" | "json"
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for lostify-admin.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "lostify-admin",
		Short: "Administer a lostify-gateway database",
		Long: `Manage participants and items and inspect conversations directly in the
gateway's SQLite database. The gateway may keep running while these commands
execute.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.Database, "db", "", "path to SQLite database (default: database.path from config)")
	cmd.PersistentFlags().StringVar(&opts.Config, "config", "", "gateway config file (default: $LOSTIFY_CONFIG or ~/.config/lostify/gateway.yaml)")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (text|json)")

	cmd.AddCommand(newParticipantCommand(opts))
	cmd.AddCommand(newItemCommand(opts))
	cmd.AddCommand(newConversationCommand(opts))
	cmd.AddCommand(newRepairCommand(opts))
	cmd.AddCommand(newTokenCommand(opts))

	return cmd
}

// openStore opens the store named by --db, or by the gateway config.
func (o *RootOptions) openStore() (*store.SQLiteStore, error) {
	path := o.Database
	busyTimeout := config.DefaultBusyTimeout
	if path == "" {
		configPath := o.Config
		if configPath == "" {
			configPath = config.DefaultPath()
		}
		cfg, err := config.Load(configPath)
		if err != nil {
			return nil, fmt.Errorf("loading config (or pass --db): %w", err)
		}
		path = cfg.Database.Path
		busyTimeout = cfg.Database.BusyTimeout
	}

	s, err := store.NewSQLiteStore(path, store.WithBusyTimeout(busyTimeout))
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	return s, nil
}

// withStore opens the store, runs fn and closes the store again.
func (o *RootOptions) withStore(cmd *cobra.Command, fn func(ctx context.Context, s *store.SQLiteStore) error) error {
	s, err := o.openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return fn(ctx, s)
}

func newRepairCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "repair",
		Short: "Merge duplicate conversations",
		Long: `Merge conversations that share the same participant pair and item into the
earliest one, renumbering their messages into a single sequence. Opening the
database already does this, so the count is normally zero.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withStore(cmd, func(ctx context.Context, s *store.SQLiteStore) error {
				removed, err := s.RepairDuplicateConversations(ctx)
				if err != nil {
					return fmt.Errorf("repairing conversations: %w", err)
				}
				if opts.Format == "json" {
					return writeJSON(cmd, map[string]int{"removed": removed})
				}
				success(cmd, "Removed %d duplicate conversation(s)", removed)
				return nil
			})
		},
	}
}
