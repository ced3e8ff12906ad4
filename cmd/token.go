package main

import (
	"fmt"
	"time"

	"github.com/Shivanand-hulikatti/tigertix/internal/auth"
	"github.com/spf13/cobra"
)

type tokenOptions struct {
	UserID int64
	Email  string
	Name   string
	TTL    time.Duration
}

func newTokenCommand(rootOpts *rootOptions) *cobra.Command {
	opts := &tokenOptions{}

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Print a bearer token for local testing",
		Long: `Print a bearer token signed with the configured secret.

Example:
  tigertix token --user 42 --email tiger@clemson.edu`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.UserID <= 0 {
				return fmt.Errorf("--user must be a positive integer")
			}
			cfg, _, err := rootOpts.load()
			if err != nil {
				return err
			}
			if err := cfg.RequireAuth(); err != nil {
				return err
			}
			tok, err := auth.IssueToken(cfg.Auth.JWTSecret, auth.User{
				ID:    opts.UserID,
				Email: opts.Email,
				Name:  opts.Name,
			}, opts.TTL, time.Now())
			if err != nil {
				return fmt.Errorf("sign token: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}

	cmd.Flags().Int64Var(&opts.UserID, "user", 0, "user id to embed")
	cmd.Flags().StringVar(&opts.Email, "email", "", "email claim")
	cmd.Flags().StringVar(&opts.Name, "name", "", "name claim")
	cmd.Flags().DurationVar(&opts.TTL, "ttl", 2*time.Hour, "token lifetime")

	return cmd
}
