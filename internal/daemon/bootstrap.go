// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package daemon wires the fieldvisit components together and owns the
// process lifecycle.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/ManuGH/fieldvisit/internal/auth"
	"github.com/ManuGH/fieldvisit/internal/config"
	controlhttp "github.com/ManuGH/fieldvisit/internal/control/http"
	meetings "github.com/ManuGH/fieldvisit/internal/domain/meeting/manager"
	"github.com/ManuGH/fieldvisit/internal/domain/meeting/reconcile"
	"github.com/ManuGH/fieldvisit/internal/domain/meeting/store"
	"github.com/ManuGH/fieldvisit/internal/domain/meeting/timer"
	"github.com/ManuGH/fieldvisit/internal/health"
	"github.com/ManuGH/fieldvisit/internal/kv"
	xglog "github.com/ManuGH/fieldvisit/internal/log"
	"github.com/ManuGH/fieldvisit/internal/notify"
	"github.com/ManuGH/fieldvisit/internal/recording"
	"github.com/ManuGH/fieldvisit/internal/recording/ffmpeg"
	"github.com/ManuGH/fieldvisit/internal/remote"
	"github.com/ManuGH/fieldvisit/internal/version"
)

// Recording engine names accepted in config.
const (
	EngineFFmpeg = "ffmpeg"
	EngineNone   = "none"
)

// Components is the wired object graph of one process.
type Components struct {
	Config      config.Config
	KV          kv.Store
	Store       *store.Repository
	Credentials *auth.Credentials
	Remote      *remote.Client
	Notifier    notify.Notifier
	Recorder    *recording.Controller
	Reconciler  *reconcile.Service
	Meetings    *meetings.Manager
	Health      *health.Manager
	API         *controlhttp.Server

	logger zerolog.Logger
	ownsKV bool
}

// BuildOptions overrides parts of the graph, mostly for tests.
type BuildOptions struct {
	Clock  timer.Clock
	Engine recording.Engine
	KV     kv.Store // caller-owned, not closed by Close
}

// Build opens the store and wires every component from cfg.
func Build(ctx context.Context, cfg config.Config, opts BuildOptions) (*Components, error) {
	logger := xglog.WithComponent("bootstrap")
	clock := opts.Clock
	if clock == nil {
		clock = timer.SystemClock{}
	}

	c := &Components{Config: cfg, logger: logger}

	c.KV = opts.KV
	if c.KV == nil {
		raw, err := kv.NewStore(ctx, kv.Options{
			Backend:       cfg.Store.Backend,
			Dir:           cfg.DataDir,
			RedisAddr:     cfg.Store.RedisAddr,
			RedisPassword: cfg.Store.RedisPassword,
			RedisDB:       cfg.Store.RedisDB,
		})
		if err != nil {
			return nil, fmt.Errorf("open store: %w", err)
		}
		c.KV = kv.Instrument(raw, cfg.Store.Backend)
		c.ownsKV = true
	}
	c.Store = store.New(c.KV)
	c.Credentials = auth.NewCredentials(c.KV, cfg.API.Token, clock)

	if err := c.buildRemote(cfg); err != nil {
		_ = c.closeKV()
		return nil, err
	}

	notifier, err := notify.New(cfg.Notifications)
	if err != nil {
		_ = c.closeKV()
		return nil, err
	}
	c.Notifier = notifier

	engine := opts.Engine
	if engine == nil {
		engine, err = newEngine(cfg)
		if err != nil {
			_ = c.closeKV()
			return nil, err
		}
	}
	c.Recorder = recording.NewController(recording.Options{
		Engine:   engine,
		Notifier: c.Notifier,
		Clock:    clock,
	})

	reconcileOpts := reconcile.Options{
		Store:            c.Store,
		Credentials:      c.Credentials,
		Notifier:         c.Notifier,
		Clock:            clock,
		StaleAfter:       cfg.Meeting.StaleAfter,
		KeepOnCheckError: !cfg.Meeting.ClearOnCheckError,
	}
	if c.Remote != nil {
		reconcileOpts.Remote = c.Remote
	}
	c.Reconciler = reconcile.New(reconcileOpts)

	meetingOpts := meetings.Options{
		Store:                   c.Store,
		Recorder:                c.Recorder,
		Reconciler:              c.Reconciler,
		Clock:                   clock,
		LocationFastTimeout:     cfg.Meeting.LocationFastTimeout,
		LocationFallbackTimeout: cfg.Meeting.LocationFallbackTimeout,
	}
	if c.Remote != nil {
		meetingOpts.Remote = c.Remote
	} else {
		meetingOpts.Remote = offlineRemote{}
	}
	c.Meetings = meetings.New(meetingOpts)

	c.Health = c.buildHealth(cfg, opts.Engine == nil)

	c.API = controlhttp.NewServer(controlhttp.Options{
		Meetings:     c.Meetings,
		Clock:        clock,
		UploadDir:    filepath.Join(cfg.DataDir, "uploads"),
		ControlToken: cfg.Server.ControlToken,
		RateLimit:    cfg.Server.RateLimit,
		Health:       c.Health,
	})

	logger.Info().
		Str(xglog.FieldBackend, cfg.Store.Backend).
		Str("engine", cfg.Recording.Engine).
		Bool("online", c.Remote != nil).
		Msg("components wired")
	return c, nil
}

// buildRemote creates the API client. Without a base URL the daemon runs
// offline: reconciliation skips the server check and start/end fail as network errors.
func (c *Components) buildRemote(cfg config.Config) error {
	if strings.TrimSpace(cfg.API.BaseURL) == "" {
		c.logger.Warn().Msg("api.baseUrl not set, running offline")
		return nil
	}
	client, err := remote.New(remote.Config{
		BaseURL:     cfg.API.BaseURL,
		Timeout:     cfg.API.Timeout,
		Credentials: c.Credentials.TokenSource(),
		WonStatusID: cfg.API.WonStatusID,
		OnUnauthorized: func(ctx context.Context) {
			// The server no longer accepts the credential: log out.
			if err := c.Credentials.Clear(ctx); err != nil {
				c.logger.Warn().Err(err).Msg("clear rejected credential")
				return
			}
			c.logger.Warn().Str(xglog.FieldEvent, "auth.logged_out").Msg("credential rejected by server, logged out")
		},
	})
	if err != nil {
		return fmt.Errorf("remote client: %w", err)
	}
	c.Remote = client
	return nil
}

// buildHealth registers the readiness checks. The ffmpeg lookup only applies
// to the configured engine, not to one injected through BuildOptions.
func (c *Components) buildHealth(cfg config.Config, configuredEngine bool) *health.Manager {
	hm := health.NewManager(version.Version)
	hm.RegisterChecker(health.StoreChecker{Store: c.KV})
	hm.RegisterChecker(health.DirChecker{CheckName: "recording_dir", Path: cfg.Recording.Dir})
	if configuredEngine && cfg.Recording.Engine == EngineFFmpeg {
		hm.RegisterChecker(health.BinaryChecker{Bin: cfg.Recording.FFmpeg.Bin})
	}
	hm.RegisterChecker(health.RemoteChecker{BaseURL: cfg.API.BaseURL})
	return hm
}

func newEngine(cfg config.Config) (recording.Engine, error) {
	switch cfg.Recording.Engine {
	case EngineFFmpeg:
		return ffmpeg.New(ffmpeg.Config{
			Bin:         cfg.Recording.FFmpeg.Bin,
			InputFormat: cfg.Recording.FFmpeg.InputFormat,
			InputDevice: cfg.Recording.FFmpeg.InputDevice,
			Dir:         cfg.Recording.Dir,
			Bitrate:     cfg.Recording.FFmpeg.Bitrate,
		})
	case EngineNone, "":
		return &recording.MemoryEngine{Silent: true}, nil
	default:
		return nil, fmt.Errorf("unknown recording engine %q", cfg.Recording.Engine)
	}
}

// Close disposes the orchestrator and closes the store unless the caller
// passed it in through BuildOptions.
func (c *Components) Close(ctx context.Context) error {
	if c.Meetings != nil {
		c.Meetings.Dispose(ctx)
	}
	return c.closeKV()
}

func (c *Components) closeKV() error {
	if c.KV == nil || !c.ownsKV {
		return nil
	}
	return c.KV.Close()
}

// errOffline is reported by offlineRemote.
var errOffline = errors.New("api.baseUrl not configured")

// offlineRemote fails every call as a network error.
type offlineRemote struct{}

func (offlineRemote) StartMeeting(context.Context, remote.StartRequest) (remote.StartResponse, error) {
	return remote.StartResponse{}, &remote.Error{Sentinel: remote.ErrUnavailable, Operation: "start meeting", Err: errOffline}
}

func (offlineRemote) EndMeeting(context.Context, remote.EndRequest) (string, error) {
	return "", &remote.Error{Sentinel: remote.ErrUnavailable, Operation: "end meeting", Err: errOffline}
}
