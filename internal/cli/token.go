package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"quiz-battle-service/internal/auth"
	"quiz-battle-service/internal/config"
)

// NewTokenCmd mints a bearer token signed with auth.jwt_secret.
func NewTokenCmd(configPath *string) *cobra.Command {
	var (
		userID string
		ttl    time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token for a user id",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			if cfg.Auth.JWTSecret == "" {
				return errors.New("auth.jwt_secret is not configured")
			}
			if userID == "" {
				return errors.New("--user is required")
			}
			token, err := auth.NewTokens(cfg.Auth.JWTSecret).Issue(userID, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "user id carried in the sub claim")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	return cmd
}
