// Package query runs SQL against a SQLite file on a remote host by invoking
// the sqlite3 command line tool over an SSH session.
//
// The SQL text is passed as the tool's last argument, shell-quoted like every
// other argument, so the tool runs it as SQL only and never as dot-commands.
// The tool runs with -json so that stdout is a JSON array of row objects, and
// with -bail so the first failing statement stops the batch.
//
// Example usage:
//
//	exec := query.New(query.Config{Timeout: 30 * time.Second}, logger.Default())
//
//	raw, err := exec.Execute(ctx, sess, "/var/db.sqlite", "SELECT * FROM users;")
//	if err != nil {
//	    var ee *query.ExecError
//	    if errors.As(err, &ee) {
//	        fmt.Println(ee.Diagnostic) // "no such table: users"
//	    }
//	}
package query

import (
	"context"
	"time"

	"github.com/0xmhha/metalite/pkg/session"
	"github.com/prometheus/client_golang/prometheus"
)

// TablesSQL lists the tables of a database file.
const TablesSQL = "SELECT name FROM sqlite_master WHERE type='table';"

// BusyPolicy decides what happens when the session is already running a
// query.
type BusyPolicy string

const (
	// Queue waits for the running query to finish.
	Queue BusyPolicy = "queue"

	// Fail returns an ExecError of kind SessionBusy at once.
	Fail BusyPolicy = "fail"
)

// RawOutput is the unmodified stdout of a successful run.
type RawOutput string

// Config contains executor configuration.
type Config struct {
	// Tool is the remote program (default: "sqlite3").
	Tool string

	// Timeout bounds one execution, including time spent queued
	// (default: 30s).
	Timeout time.Duration

	// BusyPolicy is Queue or Fail (default: Queue).
	BusyPolicy BusyPolicy

	// SafeMode passes -safe, which stops the tool from touching files other
	// than the database.
	SafeMode bool

	// Registerer receives the executor's metrics. Nil disables export.
	Registerer prometheus.Registerer
}

// Runner runs one command at a time. *session.Session implements it.
type Runner interface {
	Run(ctx context.Context, cmd session.Command) (*session.Output, error)
	TryRun(ctx context.Context, cmd session.Command) (*session.Output, error)
}

// Executor runs SQL remotely.
type Executor interface {
	// Execute runs sql against dbPath and returns stdout.
	//
	// Failures are *ExecError, except ErrEmptyDBPath and ErrNoSession.
	// Nothing is retried.
	Execute(ctx context.Context, r Runner, dbPath, sql string) (RawOutput, error)
}
