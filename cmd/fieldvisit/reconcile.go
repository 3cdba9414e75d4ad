// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ManuGH/fieldvisit/internal/daemon"
	"github.com/ManuGH/fieldvisit/internal/domain/meeting/reconcile"
	"github.com/ManuGH/fieldvisit/internal/recording"
)

func newReconcileCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Run launch reconciliation once and print the outcome",
		Long:  "Checks the persisted meeting against the credential, its age and the server, adopting or clearing it exactly as the daemon does on launch.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := opts.load()
			if err != nil {
				return err
			}
			configureLogging(cmd, cfg, true)

			ctx := cmd.Context()
			// Reconciliation never records.
			components, err := daemon.Build(ctx, cfg, daemon.BuildOptions{
				Engine: &recording.MemoryEngine{Silent: true},
			})
			if err != nil {
				return err
			}
			defer func() { _ = components.Close(context.WithoutCancel(ctx)) }()

			out := components.Meetings.Restore(ctx)
			return printOutcome(cmd, out)
		},
	}
}

func printOutcome(cmd *cobra.Command, out reconcile.Outcome) error {
	w := cmd.OutOrStdout()
	path := make([]string, 0, len(out.Path))
	for _, s := range out.Path {
		path = append(path, string(s))
	}
	if _, err := fmt.Fprintf(w, "outcome: %s\npath:    %s\n", out.Label(), strings.Join(path, " -> ")); err != nil {
		return err
	}
	if out.Session != nil {
		if _, err := fmt.Fprintf(w, "lead:    %s\n", out.Session.LeadID); err != nil {
			return err
		}
	}
	if out.Err != nil {
		if _, err := fmt.Fprintf(w, "cause:   %v\n", out.Err); err != nil {
			return err
		}
	}
	return nil
}
