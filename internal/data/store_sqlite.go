package data

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/DevRickLin/prwatch-relay/internal/biz/domain"
	"github.com/DevRickLin/prwatch-relay/internal/biz/repo"

	_ "modernc.org/sqlite"
)

// sqliteStore keeps the registry snapshot in a SQLite table, one row per subscriber
type sqliteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a SQLite-backed subscription store
func NewSQLiteStore(dbPath string) (repo.SubscriptionStore, error) {
	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// position keeps subscriber order within a key
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS subscriptions (
			resource_key TEXT NOT NULL,
			position INTEGER NOT NULL,
			user_id TEXT NOT NULL,
			channel_id TEXT NOT NULL DEFAULT '',
			PRIMARY KEY (resource_key, position)
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	return &sqliteStore{db: db}, nil
}

// Load reads every subscriber row
func (s *sqliteStore) Load(ctx context.Context) (repo.Subscriptions, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT resource_key, user_id, channel_id
		FROM subscriptions
		ORDER BY resource_key, position
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query subscriptions: %w", err)
	}
	defer rows.Close()

	subs := repo.Subscriptions{}
	for rows.Next() {
		var key string
		var sub domain.Subscriber
		if err := rows.Scan(&key, &sub.UserID, &sub.ChannelID); err != nil {
			return nil, fmt.Errorf("failed to scan subscription: %w", err)
		}
		rk := domain.ResourceKey(key)
		subs[rk] = append(subs[rk], sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read subscriptions: %w", err)
	}
	return subs, nil
}

// Save replaces all rows with the snapshot in one transaction
func (s *sqliteStore) Save(ctx context.Context, subs repo.Subscriptions) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM subscriptions`); err != nil {
		return fmt.Errorf("failed to clear subscriptions: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO subscriptions (resource_key, position, user_id, channel_id)
		VALUES (?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for key, list := range subs {
		for i, sub := range list {
			if _, err := stmt.ExecContext(ctx, string(key), i, sub.UserID, sub.ChannelID); err != nil {
				return fmt.Errorf("failed to insert subscription: %w", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit subscriptions: %w", err)
	}
	return nil
}

// Close closes the database connection
func (s *sqliteStore) Close() error {
	return s.db.Close()
}
