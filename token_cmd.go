package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/tonimelisma/schema-api/internal/authz"
)

var flagTokenTTL time.Duration

func newTokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token <subject>",
		Short: "Issue a bearer token for an actor",
		Long: `Issue an HS256 bearer token whose subject is the given actor id, signed
with auth.jwt_secret. A zero --ttl issues a token that never expires.`,
		Args: cobra.ExactArgs(1),
		RunE: runToken,
	}

	cmd.Flags().DurationVar(&flagTokenTTL, "ttl", 24*time.Hour, "token lifetime")

	return cmd
}

func runToken(_ *cobra.Command, args []string) error {
	if resolvedCfg.Auth.JWTSecret == "" {
		return errors.New("auth.jwt_secret is not set")
	}

	if flagTokenTTL < 0 {
		return fmt.Errorf("--ttl must be non-negative, got %s", flagTokenTTL)
	}

	token, err := authz.NewTokens(resolvedCfg.Auth.JWTSecret, resolvedCfg.Auth.JWTIssuer).Issue(args[0], flagTokenTTL)
	if err != nil {
		return err
	}

	fmt.Println(token)

	return nil
}
