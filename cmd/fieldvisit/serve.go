// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package main

import (
	"context"
	"fmt"
	"net/url"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ManuGH/fieldvisit/internal/daemon"
	xglog "github.com/ManuGH/fieldvisit/internal/log"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	var listen string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the daemon and its local control API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, path, err := opts.load()
			if err != nil {
				return fmt.Errorf("configuration error in %q: %w", path, err)
			}
			if listen != "" {
				cfg.Server.Listen = listen
			}
			configureLogging(cmd, cfg, false)
			logger := xglog.WithComponent("daemon")

			source := "env+defaults"
			if path != "" {
				source = "file"
			}
			logger.Info().
				Str(xglog.FieldEvent, "config.loaded").
				Str("source", source).
				Str(xglog.FieldPath, path).
				Str("api", maskURL(cfg.API.BaseURL)).
				Msg("loaded configuration")

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			components, err := daemon.Build(ctx, cfg, daemon.BuildOptions{})
			if err != nil {
				return err
			}
			mgr, err := daemon.NewManager(daemon.DefaultServerConfig(cfg.Server.Listen), daemon.Deps{
				Logger:     logger,
				APIHandler: components.API.Router(),
			})
			if err != nil {
				_ = components.Close(context.WithoutCancel(ctx))
				return err
			}
			return daemon.NewApp(logger, mgr, components).Run(ctx)
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "override server.listen")
	return cmd
}

// maskURL removes user info from a URL string for safe logging.
func maskURL(rawURL string) string {
	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return "invalid-url-redacted"
	}
	parsedURL.User = nil
	return parsedURL.String()
}
