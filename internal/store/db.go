// Package store provides sqlite-backed persistence for tasks, their
// progress checklists, team members and user accounts.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// DB wraps the sqlite connection with initialization logic.
type DB struct {
	*sql.DB
}

// Open creates or opens the sqlite database at the given path, runs schema
// initialization, and configures WAL mode.
func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	dsn := "file:" + path +
		"?_pragma=journal_mode(WAL)" +
		"&_pragma=synchronous(NORMAL)" +
		"&_pragma=busy_timeout(5000)" +
		"&_pragma=foreign_keys(1)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	db.SetMaxOpenConns(1) // sqlite handles one writer at a time

	if err := initSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	return &DB{db}, nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS tasks (
			id TEXT PRIMARY KEY,
			project_number TEXT NOT NULL,
			project_owner TEXT,
			source TEXT,
			batch_info TEXT NOT NULL,
			received_date TEXT,
			start_date TEXT NOT NULL,
			completion_date TEXT,
			deadline_date TEXT,
			assignee_id TEXT,
			status TEXT NOT NULL,
			priority TEXT NOT NULL,
			created_by TEXT,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS task_progress (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			task_id TEXT NOT NULL,
			position INTEGER NOT NULL,
			label TEXT NOT NULL,
			is_completed INTEGER NOT NULL DEFAULT 0,
			notes TEXT,
			FOREIGN KEY (task_id) REFERENCES tasks(id) ON DELETE CASCADE,
			UNIQUE (task_id, position)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_task_progress_task_id ON task_progress(task_id)`,
		`CREATE TABLE IF NOT EXISTS team_members (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			role TEXT NOT NULL,
			avatar TEXT,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			username TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			salt TEXT NOT NULL,
			member_id TEXT,
			created_at INTEGER NOT NULL,
			last_login INTEGER
		)`,
	}

	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}
