// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package config loads the fieldvisit configuration with precedence ENV > File > Defaults.
package config

import (
	"os"
	"path/filepath"
	"runtime"
	"time"
)

// EnvPrefix prefixes every environment key.
const EnvPrefix = "FIELDVISIT_"

// Config is the effective configuration. YAML keys are camelCase.
type Config struct {
	Version string `yaml:"-"`

	DataDir       string          `yaml:"dataDir"`
	API           APIConfig       `yaml:"api"`
	Server        ServerConfig    `yaml:"server"`
	Store         StoreConfig     `yaml:"store"`
	Meeting       MeetingConfig   `yaml:"meeting"`
	Recording     RecordingConfig `yaml:"recording"`
	Notifications string          `yaml:"notifications"` // log|none
	Log           LogConfig       `yaml:"log"`
}

// APIConfig points at the remote meeting API.
type APIConfig struct {
	BaseURL     string        `yaml:"baseUrl"`
	Token       string        `yaml:"token"` // static fallback bearer token
	Timeout     time.Duration `yaml:"timeout"`
	WonStatusID string        `yaml:"wonStatusId"`
}

// ServerConfig is the local control API.
type ServerConfig struct {
	Listen       string `yaml:"listen"`
	ControlToken string `yaml:"controlToken"` // empty disables control API auth
	RateLimit    int    `yaml:"rateLimit"`    // requests per minute per client, 0 disables
}

// StoreConfig selects the durable key/value backend.
type StoreConfig struct {
	Backend       string `yaml:"backend"` // sqlite|memory|file|redis|badger
	RedisAddr     string `yaml:"redisAddr"`
	RedisPassword string `yaml:"redisPassword"`
	RedisDB       int    `yaml:"redisDb"`
}

// MeetingConfig tunes reconciliation and capture.
type MeetingConfig struct {
	StaleAfter              time.Duration `yaml:"staleAfter"`
	ClearOnCheckError       bool          `yaml:"clearOnCheckError"`
	LocationFastTimeout     time.Duration `yaml:"locationFastTimeout"`
	LocationFallbackTimeout time.Duration `yaml:"locationFallbackTimeout"`
}

// RecordingConfig selects the audio engine.
type RecordingConfig struct {
	Engine string       `yaml:"engine"` // ffmpeg|none
	Dir    string       `yaml:"dir"`    // defaults to <dataDir>/recordings
	FFmpeg FFmpegConfig `yaml:"ffmpeg"`
}

// FFmpegConfig configures the ffmpeg capture engine.
type FFmpegConfig struct {
	Bin         string `yaml:"bin"`
	InputFormat string `yaml:"inputFormat"`
	InputDevice string `yaml:"inputDevice"`
	Bitrate     string `yaml:"bitrate"`
}

// LogConfig configures zerolog.
type LogConfig struct {
	Level   string `yaml:"level"`
	Service string `yaml:"service"`
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	format, device := defaultCaptureInput()
	return Config{
		DataDir: defaultDataDir(),
		API: APIConfig{
			Timeout:     15 * time.Second,
			WonStatusID: "won",
		},
		Server: ServerConfig{
			Listen:    "127.0.0.1:8787",
			RateLimit: 120,
		},
		Store: StoreConfig{
			Backend:   "sqlite",
			RedisAddr: "127.0.0.1:6379",
		},
		Meeting: MeetingConfig{
			StaleAfter:              24 * time.Hour,
			ClearOnCheckError:       true,
			LocationFastTimeout:     5 * time.Second,
			LocationFallbackTimeout: 3 * time.Second,
		},
		Recording: RecordingConfig{
			Engine: "ffmpeg",
			FFmpeg: FFmpegConfig{
				Bin:         "ffmpeg",
				InputFormat: format,
				InputDevice: device,
				Bitrate:     "64k",
			},
		},
		Notifications: "log",
		Log: LogConfig{
			Level:   "info",
			Service: "fieldvisit",
		},
	}
}

func defaultDataDir() string {
	if dir, err := os.UserConfigDir(); err == nil && dir != "" {
		return filepath.Join(dir, "fieldvisit")
	}
	return "data"
}

func defaultCaptureInput() (format, device string) {
	switch runtime.GOOS {
	case "darwin":
		return "avfoundation", ":0"
	case "windows":
		return "dshow", "audio=Microphone"
	default:
		return "pulse", "default"
	}
}

// Redacted returns a copy with secrets masked, for printing.
func (c Config) Redacted() Config {
	mask := func(s string) string {
		if s == "" {
			return ""
		}
		return "***"
	}
	c.API.Token = mask(c.API.Token)
	c.Server.ControlToken = mask(c.Server.ControlToken)
	c.Store.RedisPassword = mask(c.Store.RedisPassword)
	return c
}
