// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import (
	"time"

	"github.com/ManuGH/fieldvisit/internal/kv"
	"github.com/ManuGH/fieldvisit/internal/validate"
)

// Validate checks cfg and creates DataDir and the recording directory when missing.
// An empty API base URL is allowed for offline use; meeting start and end then fail.
func Validate(cfg Config) error {
	v := validate.New()

	if cfg.API.BaseURL != "" {
		v.URL("api.baseUrl", cfg.API.BaseURL, []string{"http", "https"})
	}
	v.DurationRange("api.timeout", cfg.API.Timeout, time.Second, 10*time.Minute)
	v.NotEmpty("api.wonStatusId", cfg.API.WonStatusID)

	v.ListenAddr("server.listen", cfg.Server.Listen)
	v.NonNegative("server.rateLimit", cfg.Server.RateLimit)

	v.OneOf("store.backend", cfg.Store.Backend, []string{kv.BackendSqlite, kv.BackendMemory, kv.BackendFile, kv.BackendRedis, kv.BackendBadger})
	if cfg.Store.Backend == kv.BackendRedis {
		v.NotEmpty("store.redisAddr", cfg.Store.RedisAddr)
		v.Range("store.redisDb", cfg.Store.RedisDB, 0, 15)
	}
	if cfg.Store.Backend != kv.BackendMemory && cfg.Store.Backend != kv.BackendRedis {
		v.Directory("dataDir", cfg.DataDir, false)
	}

	v.DurationRange("meeting.staleAfter", cfg.Meeting.StaleAfter, time.Hour, 7*24*time.Hour)
	v.DurationRange("meeting.locationFastTimeout", cfg.Meeting.LocationFastTimeout, 100*time.Millisecond, time.Minute)
	v.DurationRange("meeting.locationFallbackTimeout", cfg.Meeting.LocationFallbackTimeout, 100*time.Millisecond, time.Minute)

	v.OneOf("recording.engine", cfg.Recording.Engine, []string{"ffmpeg", "none"})
	v.Directory("recording.dir", cfg.Recording.Dir, false)
	if cfg.Recording.Engine == "ffmpeg" {
		v.NotEmpty("recording.ffmpeg.bin", cfg.Recording.FFmpeg.Bin)
		v.NotEmpty("recording.ffmpeg.inputFormat", cfg.Recording.FFmpeg.InputFormat)
	}

	v.OneOf("notifications", cfg.Notifications, []string{"log", "none"})
	v.LogLevel("log.level", cfg.Log.Level)

	return v.Err()
}
