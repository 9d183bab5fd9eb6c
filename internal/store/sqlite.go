// ABOUTME: SQLite implementation of the Store interface using modernc.org/sqlite
// ABOUTME: Provides schema creation, user accounts, and connection lifecycle

package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite store at the given path.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	// Ensure parent directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable WAL mode for better concurrent performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path)
	return s, nil
}

// createSchema creates the database tables if they don't exist
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS users (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			username TEXT NOT NULL UNIQUE,
			name TEXT,
			password_hash TEXT NOT NULL,
			created_at TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS tasks (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id INTEGER NOT NULL REFERENCES users(id),
			title TEXT NOT NULL,
			description TEXT,
			status INTEGER NOT NULL,
			due_date TEXT,
			assigned_date TEXT,
			assigned_start_time TEXT,
			assigned_end_time TEXT,
			tags TEXT,
			record_result INTEGER NOT NULL DEFAULT 0,
			result TEXT,
			result_picture_url TEXT,
			long_term_task_id INTEGER REFERENCES long_term_tasks(id),
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_tasks_user ON tasks(user_id);
		CREATE INDEX IF NOT EXISTS idx_tasks_long_term ON tasks(long_term_task_id);
		CREATE INDEX IF NOT EXISTS idx_tasks_assigned_date ON tasks(user_id, assigned_date);

		CREATE TABLE IF NOT EXISTS long_term_tasks (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id INTEGER NOT NULL REFERENCES users(id),
			title TEXT NOT NULL,
			description TEXT,
			start_date TEXT,
			due_date TEXT,
			progress REAL NOT NULL DEFAULT 0.0,
			sub_task_ids TEXT,
			created_at TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_long_term_user ON long_term_tasks(user_id);

		CREATE TABLE IF NOT EXISTS journals (
			date TEXT NOT NULL,
			user_id INTEGER NOT NULL REFERENCES users(id),
			content TEXT NOT NULL,
			PRIMARY KEY (date, user_id)
		);

		CREATE TABLE IF NOT EXISTS memos (
			user_id INTEGER PRIMARY KEY REFERENCES users(id),
			content TEXT,
			updated_at TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS dialogues (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id INTEGER NOT NULL REFERENCES users(id),
			title TEXT,
			timestamp TEXT NOT NULL,
			messages TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_dialogues_user ON dialogues(user_id);

		CREATE TABLE IF NOT EXISTS assistant_configs (
			user_id INTEGER PRIMARY KEY REFERENCES users(id),
			api_key TEXT NOT NULL DEFAULT '',
			model TEXT NOT NULL DEFAULT '',
			base_url TEXT NOT NULL DEFAULT '',
			prompt TEXT,
			character TEXT,
			long_term_memory TEXT,
			enable_prompt INTEGER NOT NULL DEFAULT 0,
			auto_confirm_create INTEGER NOT NULL DEFAULT 0,
			auto_confirm_update INTEGER NOT NULL DEFAULT 0,
			auto_confirm_delete INTEGER NOT NULL DEFAULT 0,
			auto_confirm_reminder INTEGER NOT NULL DEFAULT 0,
			reminder_list TEXT
		);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return err
	}
	return nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	s.logger.Info("closing SQLite store")
	return s.db.Close()
}

// isConstraintViolation checks if the error is a SQLite UNIQUE constraint violation
func isConstraintViolation(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "UNIQUE constraint failed") ||
		strings.Contains(errStr, "constraint failed")
}

// CreateUser creates a new user. Returns ErrDuplicateUser if the username is taken.
func (s *SQLiteStore) CreateUser(ctx context.Context, user *User) error {
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO users (username, name, password_hash, created_at)
		VALUES (?, ?, ?, ?)
	`
	res, err := s.db.ExecContext(ctx, query,
		user.Username,
		user.Name,
		user.PasswordHash,
		user.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		if isConstraintViolation(err) {
			return ErrDuplicateUser
		}
		return fmt.Errorf("inserting user: %w", err)
	}

	user.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading user id: %w", err)
	}

	s.logger.Debug("created user", "id", user.ID, "username", user.Username)
	return nil
}

// GetUser retrieves a user by ID. Returns ErrNotFound if absent.
func (s *SQLiteStore) GetUser(ctx context.Context, id int64) (*User, error) {
	return s.getUser(ctx, "id = ?", id)
}

// GetUserByUsername retrieves a user by username. Returns ErrNotFound if absent.
func (s *SQLiteStore) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	return s.getUser(ctx, "username = ?", username)
}

func (s *SQLiteStore) getUser(ctx context.Context, where string, arg any) (*User, error) {
	query := `
		SELECT id, username, COALESCE(name, ''), password_hash, created_at
		FROM users
		WHERE ` + where

	var user User
	var createdAtStr string

	err := s.db.QueryRowContext(ctx, query, arg).Scan(
		&user.ID,
		&user.Username,
		&user.Name,
		&user.PasswordHash,
		&createdAtStr,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying user: %w", err)
	}

	user.CreatedAt, err = time.Parse(time.RFC3339, createdAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	return &user, nil
}
