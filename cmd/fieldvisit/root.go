// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package main

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ManuGH/fieldvisit/internal/config"
	xglog "github.com/ManuGH/fieldvisit/internal/log"
	"github.com/ManuGH/fieldvisit/internal/version"
)

type rootOptions struct {
	configPath string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "fieldvisit",
		Short:         "Field visit meeting daemon",
		Long:          "Tracks the single live field meeting: server-timed start and end, pause bookkeeping, audio recording and launch reconciliation.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.Version = version.Version
	root.SetVersionTemplate(version.String() + "\n")

	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "path to config file (YAML)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "override the configured log level")

	root.AddCommand(
		newServeCmd(opts),
		newStatusCmd(opts),
		newReconcileCmd(opts),
		newConfigCmd(opts),
		newLoginCmd(opts),
		newLogoutCmd(opts),
		newVersionCmd(),
	)
	return root
}

// resolveConfigPath picks --config, then $FIELDVISIT_CONFIG, then
// <default data dir>/config.yaml if it exists.
func (o *rootOptions) resolveConfigPath() string {
	if p := strings.TrimSpace(o.configPath); p != "" {
		return p
	}
	if p := strings.TrimSpace(os.Getenv(config.EnvConfigPath)); p != "" {
		return p
	}
	auto := filepath.Join(config.Defaults().DataDir, "config.yaml")
	if _, err := os.Stat(auto); err == nil {
		return auto
	}
	return ""
}

func (o *rootOptions) load() (config.Config, string, error) {
	path := o.resolveConfigPath()
	cfg, err := config.NewLoader(path, version.Version).Load()
	if err != nil {
		return cfg, path, err
	}
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}
	return cfg, path, nil
}

// configureLogging sends logs of one-shot commands to stderr so stdout stays
// machine readable.
func configureLogging(cmd *cobra.Command, cfg config.Config, toStderr bool) {
	lc := xglog.Config{
		Level:   cfg.Log.Level,
		Service: cfg.Log.Service,
		Version: version.Version,
	}
	if toStderr {
		lc.Output = cmd.ErrOrStderr()
	}
	xglog.Configure(lc)
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := cmd.OutOrStdout().Write([]byte(version.String() + "\n"))
			return err
		},
	}
}
