package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/BTreeMap/ComplaintDesk/internal/messaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"COMPLAINTDESK_STATE_DIR", "REPORT_DSN", "SESSION_BACKEND", "REDIS_URL", "SESSION_TTL",
		"TRANSPORT", "WHATSAPP_DB_DSN", "TWILIO_ACCOUNT_SID", "TWILIO_AUTH_TOKEN", "TWILIO_FROM_NUMBER",
		"NATS_URL", "NATS_INBOUND_SUBJECT", "NATS_OUTBOUND_SUBJECT", "API_ADDR", "CATALOG_FILE",
		"SUPPORT_TEXT", "PROJECT_URL", "LOG_LEVEL", "DISPATCH_WORKERS", "METRICS_ENABLED",
	} {
		t.Setenv(key, "")
	}
	// Keep a stray .env in the package directory from leaking in.
	t.Chdir(t.TempDir())
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg := Load()
	assert.Equal(t, DefaultStateDir, cfg.StateDir)
	assert.Equal(t, filepath.Join(DefaultStateDir, "complaints.xlsx"), cfg.ReportDSN)
	assert.Equal(t, "file:"+filepath.Join(DefaultStateDir, "whatsmeow.db")+"?_foreign_keys=on", cfg.WhatsAppDSN)
	assert.Equal(t, SessionBackendMemory, cfg.SessionBackend)
	assert.Equal(t, TransportWhatsApp, cfg.Transport)
	assert.Equal(t, ":8080", cfg.APIAddr)
	assert.Equal(t, messaging.DefaultNATSInboundSubject, cfg.NATSInbound)
	assert.Equal(t, messaging.DefaultWorkers, cfg.DispatchWorkers)
	assert.True(t, cfg.MetricsEnabled)
	assert.Equal(t, slog.LevelDebug, cfg.SlogLevel())
	assert.NoError(t, cfg.Validate())
}

func TestLoadFromEnvironment(t *testing.T) {
	clearEnv(t)
	t.Setenv("COMPLAINTDESK_STATE_DIR", "/srv/cd")
	t.Setenv("SESSION_BACKEND", "Redis")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("SESSION_TTL", "30m")
	t.Setenv("TRANSPORT", "nats")
	t.Setenv("NATS_URL", "nats://localhost:4222")
	t.Setenv("LOG_LEVEL", "warn")
	t.Setenv("DISPATCH_WORKERS", "8")
	t.Setenv("METRICS_ENABLED", "off")

	cfg := Load()
	assert.Equal(t, "/srv/cd/complaints.xlsx", cfg.ReportDSN)
	assert.Equal(t, SessionBackendRedis, cfg.SessionBackend)
	assert.Equal(t, 30*time.Minute, cfg.SessionTTL)
	assert.Equal(t, TransportNATS, cfg.Transport)
	assert.Equal(t, slog.LevelWarn, cfg.SlogLevel())
	assert.Equal(t, 8, cfg.DispatchWorkers)
	assert.False(t, cfg.MetricsEnabled)
	assert.NoError(t, cfg.Validate())
}

func TestLoadReadsDotEnv(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("PROJECT_URL=https://example.org/desk\n"), 0o600))
	// godotenv does not override variables that are already set, even empty ones.
	require.NoError(t, os.Unsetenv("PROJECT_URL"))

	cfg := Load()
	assert.Equal(t, "https://example.org/desk", cfg.ProjectURL)
}

func TestSessionDSN(t *testing.T) {
	cfg := Config{StateDir: "/srv/cd", ReportDSN: "/srv/cd/complaints.xlsx"}
	assert.Equal(t, "/srv/cd/complaintdesk.db", cfg.SessionDSN())

	cfg.ReportDSN = "postgres://u:p@db/complaints"
	assert.Equal(t, cfg.ReportDSN, cfg.SessionDSN())

	cfg.ReportDSN = "/srv/cd/complaints.db"
	assert.Equal(t, cfg.ReportDSN, cfg.SessionDSN())
}

func TestValidate(t *testing.T) {
	base := Config{SessionBackend: SessionBackendMemory, Transport: TransportConsole, DispatchWorkers: 1}
	require.NoError(t, base.Validate())

	tests := []struct {
		name   string
		modify func(*Config)
		want   string
	}{
		{"redis without url", func(c *Config) { c.SessionBackend = SessionBackendRedis }, "REDIS_URL"},
		{"unknown backend", func(c *Config) { c.SessionBackend = "etcd" }, "SESSION_BACKEND"},
		{"twilio without credentials", func(c *Config) { c.Transport = TransportTwilio; c.TwilioSID = "AC1" }, "TWILIO_AUTH_TOKEN"},
		{"nats without url", func(c *Config) { c.Transport = TransportNATS }, "NATS_URL"},
		{"unknown transport", func(c *Config) { c.Transport = "telegram" }, "TRANSPORT"},
		{"no workers", func(c *Config) { c.DispatchWorkers = 0 }, "DISPATCH_WORKERS"},
		{"negative ttl", func(c *Config) { c.SessionTTL = -time.Second }, "SESSION_TTL"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			tt.modify(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
