// Package config loads ComplaintDesk settings from the environment and an
// optional .env file.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/BTreeMap/ComplaintDesk/internal/api"
	"github.com/BTreeMap/ComplaintDesk/internal/messaging"
	"github.com/BTreeMap/ComplaintDesk/internal/store"
	"github.com/BTreeMap/ComplaintDesk/internal/util"
	"github.com/joho/godotenv"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for ComplaintDesk state data
	DefaultStateDir = "/var/lib/complaintdesk"
	// DefaultReportFileName is the default complaint workbook filename
	DefaultReportFileName = "complaints.xlsx"
	// DefaultSessionDBFileName is the SQLite file used for sessions when the report store is not SQL
	DefaultSessionDBFileName = "complaintdesk.db"
	// DefaultWhatsAppDBFileName is the whatsmeow device store filename
	DefaultWhatsAppDBFileName = "whatsmeow.db"
	// DefaultLogLevel is the log level used when LOG_LEVEL is unset
	DefaultLogLevel = "debug"
)

// Session backends.
const (
	SessionBackendMemory = "memory"
	SessionBackendRedis  = "redis"
	SessionBackendSQL    = "sql"
)

// Transports.
const (
	TransportWhatsApp = "whatsapp"
	TransportTwilio   = "twilio"
	TransportNATS     = "nats"
	TransportConsole  = "console"
)

// Config holds environment configuration
type Config struct {
	StateDir        string
	ReportDSN       string
	SessionBackend  string
	RedisURL        string
	SessionTTL      time.Duration
	Transport       string
	WhatsAppDSN     string
	TwilioSID       string
	TwilioToken     string
	TwilioFrom      string
	NATSURL         string
	NATSInbound     string
	NATSOutbound    string
	APIAddr         string
	CatalogFile     string
	SupportText     string
	ProjectURL      string
	LogLevel        string
	DispatchWorkers int
	MetricsEnabled  bool
}

// Load reads a .env file if present and builds a Config from the
// environment, filling defaults relative to the state directory.
func Load() Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	} else {
		slog.Debug("successfully loaded .env file")
	}

	cfg := Config{
		StateDir:        util.GetEnv("COMPLAINTDESK_STATE_DIR", DefaultStateDir),
		ReportDSN:       util.GetEnv("REPORT_DSN", ""),
		SessionBackend:  strings.ToLower(util.GetEnv("SESSION_BACKEND", SessionBackendMemory)),
		RedisURL:        util.GetEnv("REDIS_URL", ""),
		SessionTTL:      util.GetDurationEnv("SESSION_TTL", 0),
		Transport:       strings.ToLower(util.GetEnv("TRANSPORT", TransportWhatsApp)),
		WhatsAppDSN:     util.GetEnv("WHATSAPP_DB_DSN", ""),
		TwilioSID:       util.GetEnv("TWILIO_ACCOUNT_SID", ""),
		TwilioToken:     util.GetEnv("TWILIO_AUTH_TOKEN", ""),
		TwilioFrom:      util.GetEnv("TWILIO_FROM_NUMBER", ""),
		NATSURL:         util.GetEnv("NATS_URL", ""),
		NATSInbound:     util.GetEnv("NATS_INBOUND_SUBJECT", messaging.DefaultNATSInboundSubject),
		NATSOutbound:    util.GetEnv("NATS_OUTBOUND_SUBJECT", messaging.DefaultNATSOutboundSubject),
		APIAddr:         util.GetEnv("API_ADDR", api.DefaultAddr),
		CatalogFile:     util.GetEnv("CATALOG_FILE", ""),
		SupportText:     util.GetEnv("SUPPORT_TEXT", ""),
		ProjectURL:      util.GetEnv("PROJECT_URL", ""),
		LogLevel:        util.GetEnv("LOG_LEVEL", DefaultLogLevel),
		DispatchWorkers: util.GetIntEnv("DISPATCH_WORKERS", messaging.DefaultWorkers),
		MetricsEnabled:  util.ParseBoolEnv("METRICS_ENABLED", true),
	}
	cfg.ApplyDefaults()

	slog.Debug("environment variables loaded",
		"COMPLAINTDESK_STATE_DIR", cfg.StateDir,
		"REPORT_DSN_TYPE", store.DetectDSNType(cfg.ReportDSN),
		"SESSION_BACKEND", cfg.SessionBackend,
		"REDIS_URL_SET", cfg.RedisURL != "",
		"SESSION_TTL", cfg.SessionTTL,
		"TRANSPORT", cfg.Transport,
		"TWILIO_ACCOUNT_SID_SET", cfg.TwilioSID != "",
		"NATS_URL_SET", cfg.NATSURL != "",
		"API_ADDR", cfg.APIAddr,
		"CATALOG_FILE", cfg.CatalogFile,
		"DISPATCH_WORKERS", cfg.DispatchWorkers,
		"METRICS_ENABLED", cfg.MetricsEnabled)

	return cfg
}

// ApplyDefaults fills the file locations that derive from StateDir.
func (c *Config) ApplyDefaults() {
	if c.StateDir == "" {
		c.StateDir = DefaultStateDir
	}
	if c.ReportDSN == "" {
		c.ReportDSN = filepath.Join(c.StateDir, DefaultReportFileName)
		slog.Debug("No REPORT_DSN set, using workbook in state directory", "path", c.ReportDSN)
	}
	if c.WhatsAppDSN == "" {
		c.WhatsAppDSN = "file:" + filepath.Join(c.StateDir, DefaultWhatsAppDBFileName) + "?_foreign_keys=on"
	}
}

// SessionDSN returns the SQL DSN for the sql session backend: the report
// DSN when it is a database, otherwise a SQLite file in the state directory.
func (c Config) SessionDSN() string {
	if store.DetectDSNType(c.ReportDSN) != store.DSNTypeExcel {
		return c.ReportDSN
	}
	return filepath.Join(c.StateDir, DefaultSessionDBFileName)
}

// SlogLevel maps LogLevel to a slog.Level. Unknown names map to debug.
func (c Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelDebug
	}
}

// Validate checks that the settings needed by the selected backends are present.
func (c Config) Validate() error {
	var errs []error

	switch c.SessionBackend {
	case SessionBackendMemory, SessionBackendSQL:
	case SessionBackendRedis:
		if c.RedisURL == "" {
			errs = append(errs, errors.New("SESSION_BACKEND=redis requires REDIS_URL"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown SESSION_BACKEND %q", c.SessionBackend))
	}

	switch c.Transport {
	case TransportWhatsApp, TransportConsole:
	case TransportTwilio:
		if c.TwilioSID == "" || c.TwilioToken == "" || c.TwilioFrom == "" {
			errs = append(errs, errors.New("TRANSPORT=twilio requires TWILIO_ACCOUNT_SID, TWILIO_AUTH_TOKEN and TWILIO_FROM_NUMBER"))
		}
	case TransportNATS:
		if c.NATSURL == "" {
			errs = append(errs, errors.New("TRANSPORT=nats requires NATS_URL"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown TRANSPORT %q", c.Transport))
	}

	if c.DispatchWorkers < 1 {
		errs = append(errs, fmt.Errorf("DISPATCH_WORKERS must be positive, got %d", c.DispatchWorkers))
	}
	if c.SessionTTL < 0 {
		errs = append(errs, fmt.Errorf("SESSION_TTL must not be negative, got %s", c.SessionTTL))
	}

	return errors.Join(errs...)
}
