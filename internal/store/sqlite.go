// This file implements an SQLite-backed store for complaints and sessions.

package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	_ "embed"

	"github.com/BTreeMap/ComplaintDesk/internal/models"
	_ "github.com/mattn/go-sqlite3"
)

const sqliteBackend = "sqlite"

//go:embed migrations_sqlite.sql
var sqliteMigrations string

// SQLiteStore keeps complaints and sessions in an SQLite database.
type SQLiteStore struct {
	db *sql.DB
	// writeMu serializes complaint appends.
	writeMu sync.Mutex
}

// NewSQLiteStore creates a new SQLite store with the given DSN.
// The DSN should be a file path to the SQLite database file.
// If the directory doesn't exist, it will be created.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewSQLiteStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, ErrDSNNotSet
	}

	dir := filepath.Dir(dsn)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("Failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}
	slog.Debug("SQLite database directory verified/created", "dir", dir)

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		slog.Error("Failed to open SQLite connection", "error", err)
		return nil, err
	}
	// One connection keeps writers from racing on the file lock.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		slog.Error("SQLite ping failed", "error", err)
		db.Close()
		return nil, err
	}
	slog.Debug("SQLite ping successful")

	s := &SQLiteStore{db: db}
	if err := s.EnsureInitialized(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// EnsureInitialized applies the schema. Statements are idempotent.
func (s *SQLiteStore) EnsureInitialized(ctx context.Context) error {
	slog.Debug("Running SQLite migrations")
	if _, err := s.db.ExecContext(ctx, sqliteMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return persistErr(sqliteBackend, "initialize", fmt.Errorf("failed to run migrations: %w", err))
	}
	slog.Debug("SQLite migrations applied successfully")
	return nil
}

// Append inserts rec into the complaints table.
func (s *SQLiteStore) Append(ctx context.Context, rec models.ComplaintRecord) error {
	if err := rec.Validate(); err != nil {
		return persistErr(sqliteBackend, "append", err)
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO complaints (id, submitted_at, full_name, floor, apartment, house_number, intercom, problem)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.FormattedTimestamp(), rec.FullName, rec.Floor, rec.Apartment, rec.HouseNumber, rec.Intercom, rec.ProblemType)
	if err != nil {
		slog.Error("SQLiteStore Append failed", "error", err, "id", rec.ID)
		return persistErr(sqliteBackend, "append", err)
	}
	slog.Debug("SQLiteStore Append succeeded", "id", rec.ID)
	return nil
}

// ListComplaints returns stored complaints in submission order.
func (s *SQLiteStore) ListComplaints(ctx context.Context) ([]models.ComplaintRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, submitted_at, full_name, floor, apartment, house_number, intercom, problem
		 FROM complaints ORDER BY submitted_at, rowid`)
	if err != nil {
		slog.Error("SQLiteStore ListComplaints query failed", "error", err)
		return nil, fmt.Errorf("failed to query complaints: %w", err)
	}
	defer rows.Close()
	return scanComplaints(rows)
}

// SaveSession stores or updates a session.
func (s *SQLiteStore) SaveSession(ctx context.Context, sess models.Session) error {
	fields, err := marshalFields(sess.Fields)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO sessions (user_id, step, fields, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		sess.UserID, string(sess.Step), fields, sess.CreatedAt, sess.UpdatedAt)
	if err != nil {
		slog.Error("SQLiteStore SaveSession failed", "error", err, "userID", sess.UserID)
		return persistErr(sqliteBackend, "save session", err)
	}
	slog.Debug("SQLiteStore SaveSession succeeded", "userID", sess.UserID, "step", sess.Step)
	return nil
}

// GetSession retrieves a session, or nil if absent.
func (s *SQLiteStore) GetSession(ctx context.Context, userID string) (*models.Session, error) {
	var sess models.Session
	var step, fields string
	err := s.db.QueryRowContext(ctx,
		`SELECT user_id, step, fields, created_at, updated_at FROM sessions WHERE user_id = ?`, userID).
		Scan(&sess.UserID, &step, &fields, &sess.CreatedAt, &sess.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore GetSession failed", "error", err, "userID", userID)
		return nil, persistErr(sqliteBackend, "get session", err)
	}
	sess.Step = models.Step(step)
	sess.Fields = unmarshalFields(userID, fields)
	return &sess, nil
}

// DeleteSession removes a session.
func (s *SQLiteStore) DeleteSession(ctx context.Context, userID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE user_id = ?`, userID); err != nil {
		slog.Error("SQLiteStore DeleteSession failed", "error", err, "userID", userID)
		return persistErr(sqliteBackend, "delete session", err)
	}
	slog.Debug("SQLiteStore DeleteSession succeeded", "userID", userID)
	return nil
}

// Close closes the SQLite database connection.
func (s *SQLiteStore) Close() error {
	slog.Debug("Closing SQLite database connection")
	err := s.db.Close()
	if err != nil {
		slog.Error("Failed to close SQLite database", "error", err)
	}
	return err
}

func scanComplaints(rows *sql.Rows) ([]models.ComplaintRecord, error) {
	var out []models.ComplaintRecord
	for rows.Next() {
		var r models.ComplaintRecord
		var ts string
		if err := rows.Scan(&r.ID, &ts, &r.FullName, &r.Floor, &r.Apartment, &r.HouseNumber, &r.Intercom, &r.ProblemType); err != nil {
			return nil, fmt.Errorf("failed to scan complaint row: %w", err)
		}
		if t, err := parseTimestamp(ts); err == nil {
			r.Timestamp = t
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate complaint rows: %w", err)
	}
	return out, nil
}
