package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/BTreeMap/ComplaintDesk/internal/app"
	"github.com/BTreeMap/ComplaintDesk/internal/config"
	"github.com/BTreeMap/ComplaintDesk/internal/whatsapp"
)

func main() {
	// Load environment configuration
	cfg := config.Load()

	// Parse command line flags
	flags := parseCommandLineFlags(cfg)
	applyFlags(&cfg, flags)

	// Initialize structured logger
	initializeLogger(cfg.SlogLevel())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	slog.Info("Bootstrapping ComplaintDesk", "transport", cfg.Transport, "session_backend", cfg.SessionBackend)
	slog.Debug("Final configuration", "state_dir", cfg.StateDir, "report_dsn_set", cfg.ReportDSN != "", "api_addr", cfg.APIAddr)
	if err := app.Run(ctx, cfg, buildAppOptions(flags)...); err != nil {
		slog.Error("ComplaintDesk failed to run", "error", err)
		os.Exit(1)
	}
	slog.Info("ComplaintDesk exited successfully")
}

// Flags holds command line flag values
type Flags struct {
	qrOutput       *string
	numeric        *bool
	stateDir       *string
	reportDSN      *string
	sessionBackend *string
	transport      *string
	whatsappDSN    *string
	apiAddr        *string
	catalogFile    *string
	logLevel       *string
}

// initializeLogger sets up structured logging at the given level
func initializeLogger(level slog.Level) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
}

// parseCommandLineFlags parses command line arguments with environment defaults
func parseCommandLineFlags(cfg config.Config) Flags {
	return parseFlags(flag.CommandLine, os.Args[1:], cfg)
}

func parseFlags(fs *flag.FlagSet, args []string, cfg config.Config) Flags {
	flags := Flags{
		qrOutput:       fs.String("qr-output", "", "path to write login QR code"),
		numeric:        fs.Bool("numeric-code", false, "use numeric login code instead of QR code"),
		stateDir:       fs.String("state-dir", cfg.StateDir, "state directory for ComplaintDesk data (overrides $COMPLAINTDESK_STATE_DIR)"),
		reportDSN:      fs.String("report-dsn", cfg.ReportDSN, "complaint report destination: .xlsx path, SQLite path or Postgres DSN (overrides $REPORT_DSN)"),
		sessionBackend: fs.String("session-backend", cfg.SessionBackend, "session store: memory, redis or sql (overrides $SESSION_BACKEND)"),
		transport:      fs.String("transport", cfg.Transport, "chat transport: whatsapp, twilio, nats or console (overrides $TRANSPORT)"),
		whatsappDSN:    fs.String("whatsapp-dsn", cfg.WhatsAppDSN, "database DSN for the WhatsApp device store (overrides $WHATSAPP_DB_DSN)"),
		apiAddr:        fs.String("api-addr", cfg.APIAddr, "API server address (overrides $API_ADDR)"),
		catalogFile:    fs.String("catalog", cfg.CatalogFile, "YAML file with complaint categories (overrides $CATALOG_FILE)"),
		logLevel:       fs.String("log-level", cfg.LogLevel, "log level: debug, info, warn or error (overrides $LOG_LEVEL)"),
	}

	if err := fs.Parse(args); err != nil {
		slog.Error("Failed to parse flags", "error", err)
	}

	slog.Debug("flags parsed",
		"qrOutput", *flags.qrOutput,
		"numeric", *flags.numeric,
		"stateDir", *flags.stateDir,
		"reportDSN_set", *flags.reportDSN != "",
		"sessionBackend", *flags.sessionBackend,
		"transport", *flags.transport,
		"apiAddr", *flags.apiAddr,
		"catalog", *flags.catalogFile)

	return flags
}

// applyFlags copies flag values into cfg. File locations that were derived
// from the old state directory move with a new -state-dir.
func applyFlags(cfg *config.Config, flags Flags) {
	if *flags.stateDir != cfg.StateDir {
		oldDir := cfg.StateDir
		if *flags.reportDSN == filepath.Join(oldDir, config.DefaultReportFileName) {
			*flags.reportDSN = ""
		}
		if *flags.whatsappDSN == "file:"+filepath.Join(oldDir, config.DefaultWhatsAppDBFileName)+"?_foreign_keys=on" {
			*flags.whatsappDSN = ""
		}
		slog.Debug("Updated file locations based on state directory", "old_state_dir", oldDir, "new_state_dir", *flags.stateDir)
	}

	cfg.StateDir = *flags.stateDir
	cfg.ReportDSN = *flags.reportDSN
	cfg.SessionBackend = *flags.sessionBackend
	cfg.Transport = *flags.transport
	cfg.WhatsAppDSN = *flags.whatsappDSN
	cfg.APIAddr = *flags.apiAddr
	cfg.CatalogFile = *flags.catalogFile
	cfg.LogLevel = *flags.logLevel
	cfg.ApplyDefaults()
}

// buildAppOptions constructs runtime options that only come from flags
func buildAppOptions(flags Flags) []app.Option {
	var waOpts []whatsapp.Option
	if *flags.qrOutput != "" {
		waOpts = append(waOpts, whatsapp.WithQRCodeOutput(*flags.qrOutput))
	}
	if *flags.numeric {
		waOpts = append(waOpts, whatsapp.WithNumericCode())
	}
	if len(waOpts) == 0 {
		return nil
	}
	return []app.Option{app.WithWhatsAppOptions(waOpts...)}
}
