package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// Config holds database configuration
type Config struct {
	Path string
}

// Open initializes the database connection and runs migrations. The
// returned handle is shared by all repositories; callers own closing it.
func Open(cfg Config) (*sql.DB, error) {
	// Ensure directory exists
	dir := filepath.Dir(cfg.Path)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", cfg.Path+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Test connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// Run migrations
	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return db, nil
}

// migrate runs all database migrations
func migrate(db *sql.DB) error {
	// Create migrations table
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS migrations (
			id INTEGER PRIMARY KEY,
			name TEXT NOT NULL UNIQUE,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return err
	}

	// Run each migration
	for _, m := range migrations {
		if err := runMigration(db, m); err != nil {
			return fmt.Errorf("migration %s failed: %w", m.name, err)
		}
	}

	return nil
}

type migration struct {
	name string
	up   string
}

func runMigration(db *sql.DB, m migration) error {
	// Check if already applied
	var count int
	err := db.QueryRow("SELECT COUNT(*) FROM migrations WHERE name = ?", m.name).Scan(&count)
	if err != nil {
		return err
	}
	if count > 0 {
		return nil // Already applied
	}

	// Run migration
	if _, err := db.Exec(m.up); err != nil {
		return err
	}

	// Record migration
	_, err = db.Exec("INSERT INTO migrations (name) VALUES (?)", m.name)
	return err
}

var migrations = []migration{
	{
		name: "001_create_vouchers",
		up: `
			CREATE TABLE vouchers (
				code TEXT PRIMARY KEY,
				amount INTEGER NOT NULL DEFAULT 0,
				paid INTEGER NOT NULL DEFAULT 0,
				created_at DATETIME NOT NULL,
				expires_at DATETIME NOT NULL,
				lock_to_device INTEGER NOT NULL DEFAULT 0,
				device_id TEXT NOT NULL DEFAULT '',
				is_used INTEGER NOT NULL DEFAULT 0
			)
		`,
	},
	{
		name: "002_create_sessions",
		up: `
			CREATE TABLE sessions (
				session_id TEXT PRIMARY KEY,
				voucher_code TEXT NOT NULL REFERENCES vouchers(code),
				mac TEXT NOT NULL,
				ip TEXT NOT NULL DEFAULT '',
				active INTEGER NOT NULL DEFAULT 1,
				created_at DATETIME NOT NULL,
				ended_at DATETIME
			)
		`,
	},
	{
		name: "003_index_sessions_active",
		up: `
			CREATE INDEX idx_sessions_active ON sessions(active, created_at)
		`,
	},
}
