package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/0xmhha/metalite/pkg/bridge"
	"github.com/0xmhha/metalite/pkg/config"
	"github.com/0xmhha/metalite/pkg/display"
	"github.com/0xmhha/metalite/pkg/logger"
	"github.com/0xmhha/metalite/pkg/query"
	"github.com/0xmhha/metalite/pkg/session"
	"github.com/0xmhha/metalite/pkg/store"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/crypto/ssh"
	"golang.org/x/term"
)

var (
	errNoTarget = errors.New("no connection given: use --conn or --host, --user and --key")
	errNoDBPath = errors.New("no database path given: use --db or a saved connection with one")
)

// runtime holds the components a command works with.
type runtime struct {
	cfg      *config.Config
	log      logger.Logger
	store    store.Store
	app      *bridge.App
	registry *prometheus.Registry
	metrics  bool
}

// newRuntime loads configuration and opens the catalog. overrides adjust
// the loaded configuration before components are built from it.
func newRuntime(opts *rootOptions, overrides ...func(*config.Config)) (*runtime, error) {
	cfg, err := config.NewLoader(opts.configPath).Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	for _, override := range overrides {
		override(cfg)
	}

	log := logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})

	st, err := store.New(store.Config{
		DBPath:  cfg.Storage.DBPath,
		Timeout: cfg.Storage.LockTimeout,
	}, log)
	if err != nil {
		return nil, fmt.Errorf("failed to open connection store: %w", err)
	}

	sessions, err := session.New(session.Config{
		Port:             cfg.SSH.Port,
		ConnectTimeout:   cfg.SSH.ConnectTimeout,
		KeepAliveTimeout: cfg.SSH.KeepAliveTimeout,
		HostKeyPolicy:    session.HostKeyPolicy(cfg.SSH.HostKeyPolicy),
		KnownHostsPath:   cfg.SSH.KnownHostsPath,
	}, log)
	if err != nil {
		if closeErr := st.Close(); closeErr != nil {
			log.Error("failed to close connection store", "error", closeErr)
		}
		return nil, fmt.Errorf("failed to initialize session manager: %w", err)
	}

	registry := prometheus.NewRegistry()
	executor := query.New(query.Config{
		Tool:       cfg.Query.Tool,
		Timeout:    cfg.Query.Timeout,
		BusyPolicy: query.BusyPolicy(cfg.Query.BusyPolicy),
		SafeMode:   cfg.Query.SafeMode,
		Registerer: registry,
	}, log)

	return &runtime{
		cfg:      cfg,
		log:      log,
		store:    st,
		app:      bridge.New(st, sessions, executor, log),
		registry: registry,
		metrics:  opts.metrics,
	}, nil
}

// Close disconnects and closes the catalog.
func (rt *runtime) Close() {
	if err := rt.app.Close(); err != nil {
		rt.log.Warn("failed to disconnect", "error", err)
	}
	if err := rt.store.Close(); err != nil {
		rt.log.Error("failed to close connection store", "error", err)
	}
	if rt.metrics {
		if err := writeMetrics(os.Stderr, rt.registry); err != nil {
			rt.log.Warn("failed to write metrics", "error", err)
		}
	}
}

// formatter builds a formatter, falling back to the configured format.
func (rt *runtime) formatter(format string, compact bool) (display.Formatter, error) {
	if format == "" {
		format = rt.cfg.Display.Format
	}

	f, err := display.ParseFormat(format)
	if err != nil {
		return nil, err
	}

	return display.New(display.Config{
		Format:  f,
		Compact: compact || rt.cfg.Display.Compact,
	}), nil
}

// resolve builds the session target and database path from a saved
// connection and explicit flags. Flags win over the saved values.
func (rt *runtime) resolve(t targetOptions) (session.Target, string, error) {
	var target session.Target
	dbPath := t.db

	if t.conn != "" {
		rec, err := rt.store.Find(t.conn)
		if err != nil {
			return session.Target{}, "", fmt.Errorf("failed to find connection %q: %w", t.conn, err)
		}
		target = session.Target{Host: rec.Host, User: rec.User, KeyPath: rec.KeyPath}
		if dbPath == "" {
			dbPath = rec.DBPath
		}
	}

	if t.host != "" {
		target.Host = t.host
	}
	if t.user != "" {
		target.User = t.user
	}
	if t.key != "" {
		target.KeyPath = t.key
	}
	target.Port = t.port

	if target.Host == "" {
		return session.Target{}, "", errNoTarget
	}

	return target, dbPath, nil
}

// connect opens the session for t and returns the database path. An
// encrypted key is unlocked with a passphrase read from the terminal.
func (rt *runtime) connect(ctx context.Context, t targetOptions) (string, error) {
	target, dbPath, err := rt.resolve(t)
	if err != nil {
		return "", err
	}
	if dbPath == "" {
		return "", errNoDBPath
	}

	err = rt.app.Open(ctx, target)

	var missing *ssh.PassphraseMissingError
	if err != nil && errors.As(err, &missing) && term.IsTerminal(int(os.Stdin.Fd())) {
		passphrase, readErr := readPassphrase(target.KeyPath)
		if readErr != nil {
			return "", readErr
		}
		target.Passphrase = passphrase
		err = rt.app.Open(ctx, target)
	}
	if err != nil {
		return "", err
	}

	return dbPath, nil
}

// readPassphrase prompts on stderr and reads without echo.
func readPassphrase(keyPath string) (string, error) {
	fmt.Fprintf(os.Stderr, "Enter passphrase for %s: ", keyPath)
	passphrase, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("failed to read passphrase: %w", err)
	}
	return string(passphrase), nil
}

// signalContext returns a context canceled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

// writeMetrics prints the gathered counters and histograms, one per line.
func writeMetrics(w io.Writer, g prometheus.Gatherer) error {
	families, err := g.Gather()
	if err != nil {
		return fmt.Errorf("failed to gather metrics: %w", err)
	}

	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			labels := ""
			for _, lp := range m.GetLabel() {
				labels += fmt.Sprintf("%s=%q ", lp.GetName(), lp.GetValue())
			}

			switch {
			case m.GetCounter() != nil:
				fmt.Fprintf(w, "%s %s%g\n", mf.GetName(), labels, m.GetCounter().GetValue())
			case m.GetHistogram() != nil:
				h := m.GetHistogram()
				fmt.Fprintf(w, "%s %scount=%d sum=%gs\n", mf.GetName(), labels, h.GetSampleCount(), h.GetSampleSum())
			}
		}
	}

	return nil
}
