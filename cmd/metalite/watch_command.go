package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/0xmhha/metalite/pkg/display"
	"github.com/0xmhha/metalite/pkg/watcher"
	"github.com/spf13/cobra"
)

// watchCommand re-runs query files whenever they are saved.
type watchCommand struct {
	opts    *rootOptions
	target  targetOptions
	files   []string
	format  string
	compact bool
	clear   bool
}

func newWatchCmd(opts *rootOptions) *cobra.Command {
	c := &watchCommand{opts: opts}

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Re-run query files on every save",
		Long: `Run each query file once, then again every time it is saved, until
interrupted. One session is kept open for the whole watch.`,
		Example: `  metalite watch --conn prod -f report.sql -f totals.sql`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.Execute(cmd.Context(), cmd.OutOrStdout())
		},
	}

	addTargetFlags(cmd, &c.target)
	cmd.Flags().StringArrayVarP(&c.files, "file", "f", nil, "query file to watch (repeatable)")
	cmd.Flags().StringVar(&c.format, "format", "", "output format (table, json, simple)")
	cmd.Flags().BoolVar(&c.compact, "compact", false, "compact output")
	cmd.Flags().BoolVar(&c.clear, "clear", false, "clear the screen before each run")
	_ = cmd.MarkFlagRequired("file") //nolint:errcheck // flag is defined above

	return cmd
}

// Execute runs the watch loop until ctx ends or a signal arrives.
func (c *watchCommand) Execute(parent context.Context, out io.Writer) error {
	ctx, stop := signalContext(parent)
	defer stop()

	rt, err := newRuntime(c.opts)
	if err != nil {
		return err
	}
	defer rt.Close()

	formatter, err := rt.formatter(c.format, c.compact)
	if err != nil {
		return err
	}

	dbPath, err := rt.connect(ctx, c.target)
	if err != nil {
		return err
	}

	w, err := watcher.New(watcher.Config{
		DebounceInterval: rt.cfg.Watch.Debounce,
	}, rt.log)
	if err != nil {
		return fmt.Errorf("failed to initialize watcher: %w", err)
	}
	defer func() {
		if err := w.Close(); err != nil {
			rt.log.Error("failed to close watcher", "error", err)
		}
	}()

	if err := w.Start(ctx, c.files); err != nil {
		return fmt.Errorf("failed to watch query files: %w", err)
	}

	for _, file := range c.files {
		c.runFile(ctx, rt, formatter, out, dbPath, file)
	}

	fmt.Fprintln(out, "Watching for changes. Press Ctrl+C to stop.")

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.Events():
			if !ok {
				return nil
			}
			if !event.Op.Changed() {
				continue
			}
			c.runFile(ctx, rt, formatter, out, dbPath, event.Path)

		case err, ok := <-w.Errors():
			if !ok {
				return nil
			}
			rt.log.Warn("watcher error", "error", err)
		}
	}
}

// runFile runs the SQL in path and prints the result. Failures are printed,
// not returned, so the watch keeps going.
func (c *watchCommand) runFile(ctx context.Context, rt *runtime, formatter display.Formatter, out io.Writer, dbPath, path string) {
	if c.clear {
		fmt.Fprint(out, "\033[H\033[2J")
	}

	fmt.Fprintf(out, "== %s (%s) ==\n", path, time.Now().Format("15:04:05"))

	data, err := os.ReadFile(path) // nolint:gosec
	if err != nil {
		fmt.Fprintf(out, "Error: failed to read %s: %v\n", path, err)
		return
	}

	sql := strings.TrimSpace(string(data))
	if sql == "" {
		fmt.Fprintln(out, "(empty file)")
		return
	}

	res, err := rt.app.Query(ctx, dbPath, sql)
	if err != nil {
		fmt.Fprintf(out, "Error: %v\n", err)
		return
	}

	if err := formatter.FormatResult(out, res); err != nil {
		fmt.Fprintf(out, "Error: %v\n", err)
	}
}
