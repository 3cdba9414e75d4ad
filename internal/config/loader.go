// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	xglog "github.com/ManuGH/fieldvisit/internal/log"
)

// EnvConfigPath names the config file when no --config flag is given.
const EnvConfigPath = EnvPrefix + "CONFIG"

// Loader handles configuration loading with precedence
type Loader struct {
	configPath      string
	version         string
	ConsumedEnvKeys map[string]struct{}
}

// NewLoader creates a new configuration loader
func NewLoader(configPath, version string) *Loader {
	return &Loader{
		configPath:      configPath,
		version:         version,
		ConsumedEnvKeys: map[string]struct{}{EnvConfigPath: {}},
	}
}

func (l *Loader) envString(key, defaultVal string) string {
	key = EnvPrefix + key
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseString(key, defaultVal)
}

func (l *Loader) envBool(key string, defaultVal bool) bool {
	key = EnvPrefix + key
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseBool(key, defaultVal)
}

func (l *Loader) envInt(key string, defaultVal int) int {
	key = EnvPrefix + key
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseInt(key, defaultVal)
}

func (l *Loader) envDuration(key string, defaultVal time.Duration) time.Duration {
	key = EnvPrefix + key
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseDuration(key, defaultVal)
}

// Load loads configuration with precedence: ENV > File > Defaults.
// Order: defaults -> strict file parse -> env overrides -> path resolution -> Validate.
func (l *Loader) Load() (Config, error) {
	cfg := Defaults()

	if l.configPath != "" {
		if err := l.loadFile(l.configPath, &cfg); err != nil {
			return cfg, fmt.Errorf("load config file: %w", err)
		}
	}

	l.mergeEnv(&cfg)
	l.warnUnknownEnv()

	if abs, err := filepath.Abs(cfg.DataDir); err == nil {
		cfg.DataDir = abs
	}
	if cfg.Recording.Dir == "" {
		cfg.Recording.Dir = filepath.Join(cfg.DataDir, "recordings")
	}
	cfg.API.BaseURL = strings.TrimRight(cfg.API.BaseURL, "/")
	cfg.Version = l.version

	if err := Validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// loadFile decodes path over cfg. Unknown keys are rejected.
func (l *Loader) loadFile(path string, cfg *Config) error {
	path = filepath.Clean(path)
	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("unsupported config format: %s (only YAML supported)", ext)
	}

	// #nosec G304 -- configuration file paths are provided by the operator via CLI/ENV
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("strict config parse error: %w", err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return errors.New("config file contains multiple documents or trailing content")
	}
	return nil
}

func (l *Loader) mergeEnv(cfg *Config) {
	cfg.DataDir = l.envString("DATA_DIR", cfg.DataDir)

	cfg.API.BaseURL = l.envString("API_BASE_URL", cfg.API.BaseURL)
	cfg.API.Token = l.envString("API_TOKEN", cfg.API.Token)
	cfg.API.Timeout = l.envDuration("API_TIMEOUT", cfg.API.Timeout)
	cfg.API.WonStatusID = l.envString("WON_STATUS_ID", cfg.API.WonStatusID)

	cfg.Server.Listen = l.envString("LISTEN", cfg.Server.Listen)
	cfg.Server.ControlToken = l.envString("CONTROL_TOKEN", cfg.Server.ControlToken)
	cfg.Server.RateLimit = l.envInt("RATE_LIMIT", cfg.Server.RateLimit)

	cfg.Store.Backend = l.envString("STORE_BACKEND", cfg.Store.Backend)
	cfg.Store.RedisAddr = l.envString("REDIS_ADDR", cfg.Store.RedisAddr)
	cfg.Store.RedisPassword = l.envString("REDIS_PASSWORD", cfg.Store.RedisPassword)
	cfg.Store.RedisDB = l.envInt("REDIS_DB", cfg.Store.RedisDB)

	cfg.Meeting.StaleAfter = l.envDuration("STALE_AFTER", cfg.Meeting.StaleAfter)
	cfg.Meeting.ClearOnCheckError = l.envBool("CLEAR_ON_CHECK_ERROR", cfg.Meeting.ClearOnCheckError)
	cfg.Meeting.LocationFastTimeout = l.envDuration("LOCATION_FAST_TIMEOUT", cfg.Meeting.LocationFastTimeout)
	cfg.Meeting.LocationFallbackTimeout = l.envDuration("LOCATION_FALLBACK_TIMEOUT", cfg.Meeting.LocationFallbackTimeout)

	cfg.Recording.Engine = l.envString("RECORDING_ENGINE", cfg.Recording.Engine)
	cfg.Recording.Dir = l.envString("RECORDING_DIR", cfg.Recording.Dir)
	cfg.Recording.FFmpeg.Bin = l.envString("FFMPEG_BIN", cfg.Recording.FFmpeg.Bin)
	cfg.Recording.FFmpeg.InputFormat = l.envString("FFMPEG_INPUT_FORMAT", cfg.Recording.FFmpeg.InputFormat)
	cfg.Recording.FFmpeg.InputDevice = l.envString("FFMPEG_INPUT_DEVICE", cfg.Recording.FFmpeg.InputDevice)
	cfg.Recording.FFmpeg.Bitrate = l.envString("FFMPEG_BITRATE", cfg.Recording.FFmpeg.Bitrate)

	cfg.Notifications = l.envString("NOTIFICATIONS", cfg.Notifications)

	cfg.Log.Level = l.envString("LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Service = l.envString("LOG_SERVICE", cfg.Log.Service)
}

// UnknownEnvKeys lists FIELDVISIT_* variables that no setting consumed, sorted.
func (l *Loader) UnknownEnvKeys() []string {
	var unknown []string
	for _, kv := range os.Environ() {
		key, _, _ := strings.Cut(kv, "=")
		if !strings.HasPrefix(key, EnvPrefix) {
			continue
		}
		if _, ok := l.ConsumedEnvKeys[key]; !ok {
			unknown = append(unknown, key)
		}
	}
	sort.Strings(unknown)
	return unknown
}

func (l *Loader) warnUnknownEnv() {
	logger := xglog.WithComponent("config")
	for _, key := range l.UnknownEnvKeys() {
		logger.Warn().
			Str("key", key).
			Str(xglog.FieldEvent, "config.unknown_env").
			Msg("ignoring unknown environment variable (typo?)")
	}
}
