// This file implements a PostgreSQL-backed store for complaints and sessions.

package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"time"

	_ "embed"

	"github.com/BTreeMap/ComplaintDesk/internal/models"
	_ "github.com/lib/pq"
)

const postgresBackend = "postgres"

// Database connection pool configuration constants
const (
	// DefaultMaxOpenConns is the default maximum number of open connections to the database
	DefaultMaxOpenConns = 25
	// DefaultMaxIdleConns is the default maximum number of idle connections in the pool
	DefaultMaxIdleConns = 25
	// DefaultConnMaxLifetime is the default maximum amount of time a connection may be reused
	DefaultConnMaxLifetime = 5 * time.Minute
)

//go:embed migrations_postgres.sql
var postgresMigrations string

// PostgresStore keeps complaints and sessions in a PostgreSQL database.
type PostgresStore struct {
	db      *sql.DB
	writeMu sync.Mutex
}

// NewPostgresStore creates a new Postgres store based on provided options.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("PostgresStore.NewPostgresStore: creating Postgres store", "DSN_set", cfg.DSN != "")
	if cfg.DSN == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, ErrDSNNotSet
	}

	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		slog.Error("Failed to open Postgres connection", "error", err)
		return nil, err
	}

	db.SetMaxOpenConns(DefaultMaxOpenConns)
	db.SetMaxIdleConns(DefaultMaxIdleConns)
	db.SetConnMaxLifetime(DefaultConnMaxLifetime)

	if err := db.Ping(); err != nil {
		slog.Error("Postgres ping failed", "error", err)
		db.Close()
		return nil, err
	}
	slog.Debug("Postgres ping successful")

	s := &PostgresStore{db: db}
	if err := s.EnsureInitialized(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// EnsureInitialized applies the schema. Statements are idempotent.
func (s *PostgresStore) EnsureInitialized(ctx context.Context) error {
	slog.Debug("Running Postgres migrations")
	if _, err := s.db.ExecContext(ctx, postgresMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return persistErr(postgresBackend, "initialize", fmt.Errorf("failed to run migrations: %w", err))
	}
	slog.Debug("Postgres migrations applied successfully")
	return nil
}

// Append inserts rec into the complaints table.
func (s *PostgresStore) Append(ctx context.Context, rec models.ComplaintRecord) error {
	if err := rec.Validate(); err != nil {
		return persistErr(postgresBackend, "append", err)
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO complaints (id, submitted_at, full_name, floor, apartment, house_number, intercom, problem)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		rec.ID, rec.FormattedTimestamp(), rec.FullName, rec.Floor, rec.Apartment, rec.HouseNumber, rec.Intercom, rec.ProblemType)
	if err != nil {
		slog.Error("PostgresStore Append failed", "error", err, "id", rec.ID)
		return persistErr(postgresBackend, "append", err)
	}
	slog.Debug("PostgresStore Append succeeded", "id", rec.ID)
	return nil
}

// ListComplaints returns stored complaints in submission order.
func (s *PostgresStore) ListComplaints(ctx context.Context) ([]models.ComplaintRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, submitted_at, full_name, floor, apartment, house_number, intercom, problem
		 FROM complaints ORDER BY submitted_at, id`)
	if err != nil {
		slog.Error("PostgresStore ListComplaints query failed", "error", err)
		return nil, fmt.Errorf("failed to query complaints: %w", err)
	}
	defer rows.Close()
	return scanComplaints(rows)
}

// SaveSession stores or updates a session.
func (s *PostgresStore) SaveSession(ctx context.Context, sess models.Session) error {
	fields, err := marshalFields(sess.Fields)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO sessions (user_id, step, fields, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (user_id) DO UPDATE SET step = EXCLUDED.step, fields = EXCLUDED.fields, updated_at = EXCLUDED.updated_at`,
		sess.UserID, string(sess.Step), fields, sess.CreatedAt, sess.UpdatedAt)
	if err != nil {
		slog.Error("PostgresStore SaveSession failed", "error", err, "userID", sess.UserID)
		return persistErr(postgresBackend, "save session", err)
	}
	slog.Debug("PostgresStore SaveSession succeeded", "userID", sess.UserID, "step", sess.Step)
	return nil
}

// GetSession retrieves a session, or nil if absent.
func (s *PostgresStore) GetSession(ctx context.Context, userID string) (*models.Session, error) {
	var sess models.Session
	var step, fields string
	err := s.db.QueryRowContext(ctx,
		`SELECT user_id, step, fields, created_at, updated_at FROM sessions WHERE user_id = $1`, userID).
		Scan(&sess.UserID, &step, &fields, &sess.CreatedAt, &sess.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore GetSession failed", "error", err, "userID", userID)
		return nil, persistErr(postgresBackend, "get session", err)
	}
	sess.Step = models.Step(step)
	sess.Fields = unmarshalFields(userID, fields)
	return &sess, nil
}

// DeleteSession removes a session.
func (s *PostgresStore) DeleteSession(ctx context.Context, userID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE user_id = $1`, userID); err != nil {
		slog.Error("PostgresStore DeleteSession failed", "error", err, "userID", userID)
		return persistErr(postgresBackend, "delete session", err)
	}
	slog.Debug("PostgresStore DeleteSession succeeded", "userID", userID)
	return nil
}

// Close closes the Postgres database connection.
func (s *PostgresStore) Close() error {
	slog.Debug("Closing Postgres database connection")
	err := s.db.Close()
	if err != nil {
		slog.Error("Failed to close Postgres database", "error", err)
	}
	return err
}
