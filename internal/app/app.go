// Package app assembles the ComplaintDesk daemon from its configuration:
// stores, the dialogue engine, a chat transport, the dispatcher and the
// HTTP server.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/BTreeMap/ComplaintDesk/internal/api"
	"github.com/BTreeMap/ComplaintDesk/internal/catalog"
	"github.com/BTreeMap/ComplaintDesk/internal/config"
	"github.com/BTreeMap/ComplaintDesk/internal/flow"
	"github.com/BTreeMap/ComplaintDesk/internal/lockfile"
	"github.com/BTreeMap/ComplaintDesk/internal/messaging"
	"github.com/BTreeMap/ComplaintDesk/internal/metrics"
	"github.com/BTreeMap/ComplaintDesk/internal/store"
	"github.com/BTreeMap/ComplaintDesk/internal/twiliowhatsapp"
	"github.com/BTreeMap/ComplaintDesk/internal/whatsapp"
	"github.com/prometheus/client_golang/prometheus"
)

// ShutdownTimeout bounds the graceful shutdown of the HTTP server.
const ShutdownTimeout = 10 * time.Second

// Opts holds runtime options that do not come from the environment.
type Opts struct {
	WhatsApp []whatsapp.Option
	In       io.Reader
	Out      io.Writer
}

// Option configures Run.
type Option func(*Opts)

// WithWhatsAppOptions passes login options to the WhatsApp client.
func WithWhatsAppOptions(opts ...whatsapp.Option) Option {
	return func(o *Opts) { o.WhatsApp = append(o.WhatsApp, opts...) }
}

// WithConsole sets the streams used by the console transport.
func WithConsole(in io.Reader, out io.Writer) Option {
	return func(o *Opts) {
		o.In = in
		o.Out = out
	}
}

// App holds the long-lived components shared by every transport.
type App struct {
	Config   config.Config
	Catalog  *catalog.Catalog
	Reports  store.ReportStore
	Sessions store.SessionStore
	Registry *prometheus.Registry
	Recorder *metrics.PrometheusRecorder
	Engine   *flow.Engine

	checks  map[string]api.HealthCheck
	closers []func() error
}

// New opens the catalog and stores and builds the engine.
func New(ctx context.Context, cfg config.Config) (*App, error) {
	a := &App{Config: cfg, checks: make(map[string]api.HealthCheck)}

	cat, err := OpenCatalog(cfg.CatalogFile)
	if err != nil {
		return nil, err
	}
	a.Catalog = cat

	reports, err := OpenReports(ctx, cfg.ReportDSN)
	if err != nil {
		return nil, err
	}
	a.Reports = reports
	a.closers = append(a.closers, reports.Close)

	sessions, err := a.openSessions(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Sessions = sessions

	a.Registry = prometheus.NewRegistry()
	a.Recorder = metrics.NewPrometheusRecorder(a.Registry)

	a.Engine = flow.NewEngine(cat, flow.NewStoreBasedStateManager(sessions), reports,
		flow.WithSupportText(cfg.SupportText),
		flow.WithProjectURL(cfg.ProjectURL),
		flow.WithRecorder(a.Recorder),
	)
	slog.Info("ComplaintDesk engine ready", "categories", cat.Len(), "reports", store.DetectDSNType(cfg.ReportDSN), "sessions", cfg.SessionBackend)
	return a, nil
}

// OpenCatalog loads the category catalog from path, or the built-in one
// when path is empty.
func OpenCatalog(path string) (*catalog.Catalog, error) {
	if path == "" {
		return catalog.Default(), nil
	}
	cat, err := catalog.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load catalog: %w", err)
	}
	return cat, nil
}

// OpenReports opens the report store for dsn and makes sure its table or
// file exists.
func OpenReports(ctx context.Context, dsn string) (store.ReportStore, error) {
	reports, err := store.OpenReportStore(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open report store: %w", err)
	}
	if err := reports.EnsureInitialized(ctx); err != nil {
		reports.Close()
		return nil, fmt.Errorf("failed to initialize report store: %w", err)
	}
	return reports, nil
}

func (a *App) openSessions(ctx context.Context) (store.SessionStore, error) {
	cfg := a.Config
	switch cfg.SessionBackend {
	case config.SessionBackendRedis:
		rs, err := store.NewRedisSessionStore(store.WithRedisURL(cfg.RedisURL), store.WithSessionTTL(cfg.SessionTTL))
		if err != nil {
			return nil, fmt.Errorf("failed to open Redis session store: %w", err)
		}
		a.closers = append(a.closers, rs.Close)
		a.checks["sessions"] = rs.Ping
		return rs, nil

	case config.SessionBackendSQL:
		dsn := cfg.SessionDSN()
		if ss, ok := a.Reports.(store.SessionStore); ok && dsn == cfg.ReportDSN {
			slog.Debug("Sharing report database for sessions")
			return ss, nil
		}
		var (
			ss     store.SessionStore
			closer func() error
			err    error
		)
		if store.DetectDSNType(dsn) == store.DSNTypePostgres {
			var pg *store.PostgresStore
			pg, err = store.NewPostgresStore(store.WithPostgresDSN(dsn))
			ss, closer = pg, func() error { return pg.Close() }
		} else {
			var sq *store.SQLiteStore
			sq, err = store.NewSQLiteStore(store.WithSQLiteDSN(dsn))
			ss, closer = sq, func() error { return sq.Close() }
		}
		if err != nil {
			return nil, fmt.Errorf("failed to open SQL session store: %w", err)
		}
		a.closers = append(a.closers, closer)
		return ss, nil

	default:
		return store.NewInMemoryStore(), nil
	}
}

// Close releases the stores in reverse opening order.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// transport is an opened chat transport plus what the HTTP server needs
// from it.
type transport struct {
	svc     messaging.Service
	webhook http.HandlerFunc
}

func (a *App) openTransport(ctx context.Context, o Opts) (transport, error) {
	cfg := a.Config
	switch cfg.Transport {
	case config.TransportTwilio:
		client, err := twiliowhatsapp.NewClient(
			twiliowhatsapp.WithAccountSID(cfg.TwilioSID),
			twiliowhatsapp.WithAuthToken(cfg.TwilioToken),
			twiliowhatsapp.WithFromWhats(cfg.TwilioFrom),
		)
		if err != nil {
			return transport{}, fmt.Errorf("failed to create Twilio client: %w", err)
		}
		svc := messaging.NewTwilioService(client)
		return transport{svc: svc, webhook: svc.TwilioWebhookHandler}, nil

	case config.TransportNATS:
		conn, err := messaging.ConnectNATS(cfg.NATSURL, "complaintdesk")
		if err != nil {
			return transport{}, err
		}
		a.checks["nats"] = func(ctx context.Context) error {
			if !conn.IsConnected() {
				return fmt.Errorf("connection %s", conn.Status())
			}
			return nil
		}
		return transport{svc: messaging.NewNATSService(conn, messaging.WithNATSSubjects(cfg.NATSInbound, cfg.NATSOutbound))}, nil

	case config.TransportConsole:
		in, out := o.In, o.Out
		if in == nil {
			in = os.Stdin
		}
		if out == nil {
			out = os.Stdout
		}
		return transport{svc: messaging.NewConsoleService(in, out)}, nil

	default:
		waOpts := append([]whatsapp.Option{whatsapp.WithDBDSN(cfg.WhatsAppDSN)}, o.WhatsApp...)
		client, err := whatsapp.NewClient(ctx, waOpts...)
		if err != nil {
			return transport{}, fmt.Errorf("failed to create WhatsApp client: %w", err)
		}
		return transport{svc: messaging.NewWhatsAppService(client)}, nil
	}
}

// IgnoreRoutine reports whether a handler error is part of normal
// operation: out-of-step events and rejected input.
func IgnoreRoutine(err error) bool {
	var verr *flow.ValidationError
	return errors.Is(err, flow.ErrUnexpectedEvent) || errors.As(err, &verr)
}

// Run starts the daemon and blocks until ctx is cancelled, the transport
// closes its event stream, or the HTTP server fails.
func Run(ctx context.Context, cfg config.Config, opts ...Option) error {
	var o Opts
	for _, opt := range opts {
		opt(&o)
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if err := os.MkdirAll(cfg.StateDir, store.DefaultDirPermissions); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	lock, err := lockfile.AcquireLock(cfg.StateDir)
	if err != nil {
		return err
	}
	defer func() {
		if err := lock.Release(); err != nil {
			slog.Warn("Failed to release lock", "error", err)
		}
	}()

	a, err := New(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			slog.Warn("Failed to close stores", "error", err)
		}
	}()

	tr, err := a.openTransport(ctx, o)
	if err != nil {
		return err
	}
	if err := tr.svc.Start(ctx); err != nil {
		tr.svc.Stop()
		return fmt.Errorf("failed to start %s transport: %w", cfg.Transport, err)
	}

	server := api.NewServer(cfg.APIAddr, a.apiOptions(tr)...)
	serverErr := make(chan error, 1)
	go func() { serverErr <- server.Start() }()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	console, isConsole := tr.svc.(*messaging.ConsoleService)
	done := make(chan struct{})
	go func() {
		defer close(done)
		if isConsole {
			console.Serve(runCtx, a.Engine)
			return
		}
		messaging.NewDispatcher(tr.svc, a.Engine,
			messaging.WithWorkers(cfg.DispatchWorkers),
			messaging.WithIgnore(IgnoreRoutine),
			messaging.WithDeliveryRecorder(a.Recorder),
		).Run(runCtx)
	}()
	slog.Info("ComplaintDesk running", "transport", cfg.Transport, "api_addr", cfg.APIAddr)

	var runErr error
	select {
	case <-ctx.Done():
		slog.Info("Shutdown requested")
	case <-done:
		slog.Info("Transport event stream closed")
	case err := <-serverErr:
		if err != nil {
			runErr = fmt.Errorf("API server failed: %w", err)
		}
	}

	cancel()
	// A blocked stdin read cannot be interrupted.
	if !isConsole {
		<-done
	}
	if err := tr.svc.Stop(); err != nil {
		slog.Warn("Failed to stop transport", "error", err)
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancelShutdown()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Warn("API server shutdown failed", "error", err)
	}
	return runErr
}

func (a *App) apiOptions(tr transport) []api.Option {
	var opts []api.Option
	if a.Config.MetricsEnabled {
		opts = append(opts, api.WithMetrics(metrics.Handler(a.Registry)))
	}
	if tr.webhook != nil {
		opts = append(opts, api.WithTwilioWebhook(tr.webhook))
	}
	for name, check := range a.checks {
		opts = append(opts, api.WithHealthCheck(name, check))
	}
	return opts
}
