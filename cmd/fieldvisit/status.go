// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ManuGH/fieldvisit/internal/auth"
	"github.com/ManuGH/fieldvisit/internal/config"
	"github.com/ManuGH/fieldvisit/internal/domain/meeting/store"
	"github.com/ManuGH/fieldvisit/internal/domain/meeting/timer"
	"github.com/ManuGH/fieldvisit/internal/kv"
)

// statusReport is what `fieldvisit status` prints.
type statusReport struct {
	LoggedIn       bool       `json:"loggedIn"`
	Active         bool       `json:"active"`
	LeadID         string     `json:"leadId,omitempty"`
	StartedAt      *time.Time `json:"startedAt,omitempty"`
	Paused         bool       `json:"paused"`
	ElapsedSeconds int64      `json:"elapsedSeconds"`
	Timer          string     `json:"timer"`
	DraftStatus    string     `json:"draftStatus,omitempty"`
}

func newStatusCmd(opts *rootOptions) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the persisted meeting without contacting the server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := opts.load()
			if err != nil {
				return err
			}
			configureLogging(cmd, cfg, true)

			report, err := readStatus(cmd.Context(), cfg, timer.SystemClock{})
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(report)
			}
			return printStatus(cmd, report)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print as JSON")
	return cmd
}

func openKV(ctx context.Context, cfg config.Config) (kv.Store, error) {
	s, err := kv.NewStore(ctx, kv.Options{
		Backend:       cfg.Store.Backend,
		Dir:           cfg.DataDir,
		RedisAddr:     cfg.Store.RedisAddr,
		RedisPassword: cfg.Store.RedisPassword,
		RedisDB:       cfg.Store.RedisDB,
	})
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	return s, nil
}

func readStatus(ctx context.Context, cfg config.Config, clock timer.Clock) (statusReport, error) {
	kvs, err := openKV(ctx, cfg)
	if err != nil {
		return statusReport{}, err
	}
	defer func() { _ = kvs.Close() }()

	var report statusReport
	report.LoggedIn, err = auth.NewCredentials(kvs, cfg.API.Token, clock).Present(ctx)
	if err != nil {
		return report, err
	}

	repo := store.New(kvs)
	sess, ok, err := repo.LoadSession(ctx)
	if err != nil {
		return report, err
	}
	report.Timer = timer.FormatHMS(0)
	if !ok {
		return report, nil
	}

	started := sess.StartedAt
	report.Active = sess.Active
	report.LeadID = sess.LeadID
	report.StartedAt = &started
	report.Paused = sess.Paused
	report.ElapsedSeconds = timer.ElapsedSeconds(clock.Now(), sess.TimerState())
	report.Timer = timer.FormatHMS(report.ElapsedSeconds)

	if d, ok, err := repo.LoadDraft(ctx, sess.LeadID); err == nil && ok {
		report.DraftStatus = d.Status
	}
	return report, nil
}

func printStatus(cmd *cobra.Command, r statusReport) error {
	out := cmd.OutOrStdout()
	login := "logged out"
	if r.LoggedIn {
		login = "logged in"
	}
	if !r.Active {
		_, err := fmt.Fprintf(out, "No active meeting (%s)\n", login)
		return err
	}
	state := "running"
	if r.Paused {
		state = "paused"
	}
	_, err := fmt.Fprintf(out, "Meeting with lead %s %s: %s (started %s, %s)\n",
		r.LeadID, state, r.Timer, r.StartedAt.Local().Format(time.RFC3339), login)
	return err
}
