package store

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/BTreeMap/ComplaintDesk/internal/models"
)

// DSN types returned by DetectDSNType.
const (
	DSNTypePostgres = "postgres"
	DSNTypeSQLite   = "sqlite3"
	DSNTypeExcel    = "xlsx"
)

// DefaultDirPermissions defines the default permissions for data directories.
const DefaultDirPermissions = 0755

// Opts holds configuration for SQL and Redis backends.
type Opts struct {
	DSN        string
	SessionTTL time.Duration
}

// Option configures a store backend.
type Option func(*Opts)

// WithPostgresDSN sets the PostgreSQL connection string.
func WithPostgresDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// WithSQLiteDSN sets the SQLite database path.
func WithSQLiteDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// WithRedisURL sets the Redis connection URL.
func WithRedisURL(url string) Option {
	return func(o *Opts) { o.DSN = url }
}

// WithSessionTTL sets how long Redis keeps an untouched session. Zero
// keeps sessions until they are reset.
func WithSessionTTL(ttl time.Duration) Option {
	return func(o *Opts) { o.SessionTTL = ttl }
}

// DetectDSNType classifies a DSN as postgres, xlsx or sqlite3.
func DetectDSNType(dsn string) string {
	lower := strings.ToLower(strings.TrimSpace(dsn))
	switch {
	case strings.HasPrefix(lower, "postgres://"), strings.HasPrefix(lower, "postgresql://"),
		strings.Contains(lower, "host="), strings.Contains(lower, "dbname="):
		return DSNTypePostgres
	case strings.HasSuffix(lower, ".xlsx"):
		return DSNTypeExcel
	default:
		return DSNTypeSQLite
	}
}

// OpenReportStore returns the report store matching the DSN type.
func OpenReportStore(dsn string) (ReportStore, error) {
	if dsn == "" {
		return nil, ErrDSNNotSet
	}
	switch DetectDSNType(dsn) {
	case DSNTypeExcel:
		slog.Debug("Using xlsx report store", "path", dsn)
		return NewExcelReportStore(dsn), nil
	case DSNTypePostgres:
		slog.Debug("Using PostgreSQL report store")
		return NewPostgresStore(WithPostgresDSN(dsn))
	default:
		slog.Debug("Using SQLite report store", "path", dsn)
		return NewSQLiteStore(WithSQLiteDSN(dsn))
	}
}

func marshalFields(f models.Fields) (string, error) {
	if f.IsEmpty() {
		return "", nil
	}
	data, err := json.Marshal(f)
	if err != nil {
		return "", fmt.Errorf("failed to marshal session fields: %w", err)
	}
	return string(data), nil
}

func unmarshalFields(userID, data string) models.Fields {
	var f models.Fields
	if data == "" {
		return f
	}
	if err := json.Unmarshal([]byte(data), &f); err != nil {
		// Corrupt rows decode as empty fields.
		slog.Error("Session fields JSON unmarshal failed", "error", err, "userID", userID)
		return models.Fields{}
	}
	return f
}

func parseTimestamp(ts string) (time.Time, error) {
	return time.ParseInLocation(models.TimestampLayout, ts, time.Local)
}
