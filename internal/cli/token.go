// ABOUTME: lostify-admin token subcommand
// ABOUTME: Issues an API bearer token for a participant using the gateway's JWT secret

package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/2389/lostify-gateway/internal/auth"
	"github.com/2389/lostify-gateway/internal/config"
	"github.com/2389/lostify-gateway/internal/store"
)

func newTokenCommand(opts *RootOptions) *cobra.Command {
	var (
		participant int64
		ttl         time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an API token for a participant",
		Long: `Issue an HS256 bearer token for a participant. The secret is read from the
gateway config (auth.jwt_secret), so --config must point at the same file
the gateway uses.`,
		Example: `  lostify-admin token --participant 1
  lostify-admin token --participant 1 --ttl 720h`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath := opts.Config
			if configPath == "" {
				configPath = config.DefaultPath()
			}
			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			if ttl == 0 {
				ttl = cfg.Auth.TokenTTL
			}
			if ttl < 0 {
				return fmt.Errorf("--ttl must be positive")
			}

			verifier, err := auth.NewJWTVerifier([]byte(cfg.Auth.JWTSecret))
			if err != nil {
				return fmt.Errorf("creating JWT verifier: %w", err)
			}

			if opts.Database == "" {
				opts.Database = cfg.Database.Path
			}
			return opts.withStore(cmd, func(ctx context.Context, s *store.SQLiteStore) error {
				p, err := s.GetParticipant(ctx, participant)
				if errors.Is(err, store.ErrNotFound) {
					return fmt.Errorf("participant %d not found", participant)
				}
				if err != nil {
					return fmt.Errorf("looking up participant: %w", err)
				}

				token, err := verifier.Generate(p.ID, ttl)
				if err != nil {
					return fmt.Errorf("generating token: %w", err)
				}

				expiresAt := time.Now().Add(ttl).UTC()
				if opts.Format == "json" {
					return writeJSON(cmd, map[string]any{
						"participant_id": p.ID,
						"token":          token,
						"expires_at":     expiresAt,
					})
				}
				fmt.Fprintln(cmd.OutOrStdout(), token)
				fmt.Fprintf(cmd.ErrOrStderr(), "token for %s (id %d), expires %s\n", p.Username, p.ID, expiresAt.Format(time.RFC3339))
				return nil
			})
		},
	}

	cmd.Flags().Int64Var(&participant, "participant", 0, "participant id (required)")
	_ = cmd.MarkFlagRequired("participant")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime (default: auth.token_ttl from config)")
	return cmd
}
