package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"transaction-engine/internal/auth"
	"transaction-engine/internal/config"
)

var (
	// Token flags
	tokenUser int64
	tokenTTL  time.Duration
)

// tokenCmd mints a bearer token for local development and manual testing.
var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint a development bearer token",
	Long: `Mint an HS256 bearer token for a user id, signed with JWT_SECRET.

Examples:
  transaction-engine token --user 42
  transaction-engine token --user 42 --ttl 1h`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if tokenUser <= 0 {
			return fmt.Errorf("--user must be a positive user id")
		}

		cfg, err := config.Load()
		if err != nil {
			return err
		}
		token, err := auth.NewJWTAuthenticator(cfg.JWTSecret, auth.Issuer).Sign(tokenUser, tokenTTL)
		if err != nil {
			return fmt.Errorf("failed to sign token: %w", err)
		}

		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(tokenCmd)

	tokenCmd.Flags().Int64Var(&tokenUser, "user", 0, "User id to put in the token subject")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 24*time.Hour, "Token lifetime")
	_ = tokenCmd.MarkFlagRequired("user")
}
