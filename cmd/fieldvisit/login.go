// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package main

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ManuGH/fieldvisit/internal/auth"
	"github.com/ManuGH/fieldvisit/internal/domain/meeting/timer"
)

func newLoginCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "login [token]",
		Short: "Store the API bearer token (read from stdin when omitted)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := opts.load()
			if err != nil {
				return err
			}
			configureLogging(cmd, cfg, true)

			token := ""
			if len(args) == 1 {
				token = args[0]
			} else {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return fmt.Errorf("read token: %w", err)
				}
				token = line
			}
			token = strings.TrimSpace(token)

			ctx := cmd.Context()
			kvs, err := openKV(ctx, cfg)
			if err != nil {
				return err
			}
			defer func() { _ = kvs.Close() }()

			if err := auth.NewCredentials(kvs, "", timer.SystemClock{}).Save(ctx, token); err != nil {
				return err
			}
			msg := "Logged in"
			if exp, ok := auth.Expiry(token); ok {
				msg += ", token expires " + exp.Local().Format("2006-01-02 15:04")
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), msg)
			return err
		},
	}
}

func newLogoutCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Remove the stored API token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := opts.load()
			if err != nil {
				return err
			}
			configureLogging(cmd, cfg, true)

			ctx := cmd.Context()
			kvs, err := openKV(ctx, cfg)
			if err != nil {
				return err
			}
			defer func() { _ = kvs.Close() }()

			if err := auth.NewCredentials(kvs, "", timer.SystemClock{}).Clear(ctx); err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
			return err
		},
	}
}
