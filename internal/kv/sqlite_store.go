// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package kv

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"time"

	xglog "github.com/ManuGH/fieldvisit/internal/log"
	"github.com/ManuGH/fieldvisit/internal/persistence/sqlite"
)

const schemaVersion = 1

// SqliteStore implements Store using SQLite. It is the default durable backend.
type SqliteStore struct {
	DB *sql.DB
}

// NewSqliteStore opens (and migrates) the database at dbPath.
// An existing file gets a quick integrity check first; corruption is logged, not fatal,
// because the reconciliation pass treats unreadable records as invalid anyway.
func NewSqliteStore(dbPath string) (*SqliteStore, error) {
	if _, err := os.Stat(dbPath); err == nil {
		if issues, verr := sqlite.VerifyIntegrity(dbPath, "quick"); verr != nil || len(issues) > 0 {
			logger := xglog.WithComponent("kv")
			logger.Warn().
				Err(verr).
				Strs("issues", issues).
				Str(xglog.FieldPath, dbPath).
				Msg("sqlite integrity check reported problems")
		}
	}

	db, err := sqlite.Open(dbPath, sqlite.DefaultConfig())
	if err != nil {
		return nil, err
	}

	s := &SqliteStore{DB: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("kv store: migration failed: %w", err)
	}
	return s, nil
}

func (s *SqliteStore) migrate() error {
	var currentVersion int
	if err := s.DB.QueryRow("PRAGMA user_version").Scan(&currentVersion); err != nil {
		return err
	}
	if currentVersion >= schemaVersion {
		return nil
	}

	tx, err := s.DB.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	schema := `
	CREATE TABLE IF NOT EXISTS kv_entries (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);
	`
	if _, err := tx.Exec(schema); err != nil {
		return err
	}
	if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", schemaVersion)); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SqliteStore) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.DB.QueryRowContext(ctx, `SELECT value FROM kv_entries WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("kv: sqlite get %q: %w", key, err)
	}
	return value, true, nil
}

func (s *SqliteStore) Set(ctx context.Context, key, value string) error {
	query := `
	INSERT INTO kv_entries (key, value, updated_at)
	VALUES (?, ?, ?)
	ON CONFLICT(key) DO UPDATE SET
		value = excluded.value,
		updated_at = excluded.updated_at
	`
	if _, err := s.DB.ExecContext(ctx, query, key, value, time.Now().UTC().Format(time.RFC3339Nano)); err != nil {
		return fmt.Errorf("kv: sqlite set %q: %w", key, err)
	}
	return nil
}

func (s *SqliteStore) Remove(ctx context.Context, key string) error {
	if _, err := s.DB.ExecContext(ctx, `DELETE FROM kv_entries WHERE key = ?`, key); err != nil {
		return fmt.Errorf("kv: sqlite remove %q: %w", key, err)
	}
	return nil
}

func (s *SqliteStore) Close() error {
	return s.DB.Close()
}
