package query

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/0xmhha/metalite/pkg/logger"
	"github.com/0xmhha/metalite/pkg/session"
)

const (
	defaultTool    = "sqlite3"
	defaultTimeout = 30 * time.Second
)

// executor implements the Executor interface.
type executor struct {
	config  Config
	logger  logger.Logger
	metrics *metrics
}

// New creates a query executor.
//
// Parameters:
//   - cfg: Executor configuration (zero values get defaults: sqlite3,
//     30s timeout, Queue busy policy)
//   - log: Logger instance
//
// Returns an Executor that is safe for concurrent use. Queries sharing a
// Runner are serialized or rejected according to cfg.BusyPolicy.
func New(cfg Config, log logger.Logger) Executor {
	// Set defaults.
	if cfg.Tool == "" {
		cfg.Tool = defaultTool
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.BusyPolicy == "" {
		cfg.BusyPolicy = Queue
	}

	return &executor{
		config:  cfg,
		logger:  log,
		metrics: newMetrics(cfg.Registerer),
	}
}

// Execute implements Executor.Execute.
func (e *executor) Execute(ctx context.Context, r Runner, dbPath, sql string) (RawOutput, error) {
	if strings.TrimSpace(dbPath) == "" {
		return "", ErrEmptyDBPath
	}
	if r == nil {
		return "", ErrNoSession
	}

	cmd := session.Command{
		Args: e.args(dbPath, sql),
	}

	ctx, cancel := context.WithTimeout(ctx, e.config.Timeout)
	defer cancel()

	start := time.Now()

	var (
		out    *session.Output
		runErr error
	)
	if e.config.BusyPolicy == Fail {
		out, runErr = r.TryRun(ctx, cmd)
	} else {
		out, runErr = r.Run(ctx, cmd)
	}

	var (
		raw RawOutput
		err error
	)
	if runErr != nil {
		err = runError(runErr)
	} else {
		raw, err = Classify(string(out.Stdout), string(out.Stderr), out.ExitStatus)
	}

	elapsed := time.Since(start)
	e.metrics.observe(err, elapsed)

	if err != nil {
		e.logger.Warn("query failed",
			"db_path", dbPath,
			"elapsed", elapsed,
			"error", err)
		return "", err
	}

	e.logger.Debug("query finished",
		"db_path", dbPath,
		"elapsed", elapsed,
		"bytes", len(raw))

	return raw, nil
}

// args builds the remote argv: tool, options, database path and the SQL as
// the last element.
//
// The tool runs a SQL argument as a single SQL batch, so newlines followed by
// dot-commands inside it are only syntax errors. Two leading characters are
// still special: "-" reads as an option and "." as a dot-command. A path
// starting with "-" is made relative, and SQL starting with either gets a
// leading space, which SQL ignores.
func (e *executor) args(dbPath, sql string) []string {
	if strings.HasPrefix(dbPath, "-") {
		dbPath = "./" + dbPath
	}
	if strings.HasPrefix(sql, "-") || strings.HasPrefix(sql, ".") {
		sql = " " + sql
	}

	args := []string{e.config.Tool, "-json", "-bail"}
	if e.config.SafeMode {
		args = append(args, "-safe")
	}
	return append(args, dbPath, sql)
}

// runError maps a transport-level failure onto an ExecError.
func runError(err error) *ExecError {
	ee := &ExecError{ExitStatus: -1, Err: err}

	switch {
	case errors.Is(err, session.ErrBusy):
		ee.Kind = SessionBusy
	case errors.Is(err, context.DeadlineExceeded):
		ee.Kind = Timeout
	case errors.Is(err, context.Canceled):
		ee.Kind = Canceled
	default:
		ee.Kind = SessionLost
	}

	return ee
}
