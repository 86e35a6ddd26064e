package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/0xmhha/metalite/pkg/config"
	"github.com/0xmhha/metalite/pkg/display"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var errEmptySQL = errors.New("no SQL given: pass it as an argument, with --file, or on stdin")

func newTablesCmd(opts *rootOptions) *cobra.Command {
	var (
		target  targetOptions
		format  string
		compact bool
	)

	cmd := &cobra.Command{
		Use:   "tables",
		Short: "List the tables of a remote database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext(cmd.Context())
			defer stop()

			rt, err := newRuntime(opts)
			if err != nil {
				return err
			}
			defer rt.Close()

			formatter, err := rt.formatter(format, compact)
			if err != nil {
				return err
			}

			dbPath, err := rt.connect(ctx, target)
			if err != nil {
				return err
			}

			cat, err := rt.app.Tables(ctx, dbPath)
			if err != nil {
				return err
			}

			return formatter.FormatTables(cmd.OutOrStdout(), cat)
		},
	}

	addTargetFlags(cmd, &target)
	cmd.Flags().StringVar(&format, "format", "", "output format (table, json, simple)")
	cmd.Flags().BoolVar(&compact, "compact", false, "compact output")

	return cmd
}

func newQueryCmd(opts *rootOptions) *cobra.Command {
	var (
		target  targetOptions
		file    string
		format  string
		compact bool
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "query [sql]",
		Short: "Run SQL against a remote database",
		Long: `Run SQL against a remote database and print the rows.

The SQL comes from the argument, from --file, or from stdin when neither is
given. Statements without rows print an empty result.`,
		Example: `  metalite query --conn prod "SELECT * FROM users LIMIT 10;"
  metalite query --host 10.0.0.5 -u root -i ~/.ssh/id_ed25519 --db /var/app.db -f report.sql`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sql, err := readSQL(cmd.InOrStdin(), args, file)
			if err != nil {
				return err
			}

			ctx, stop := signalContext(cmd.Context())
			defer stop()

			rt, err := newRuntime(opts, func(cfg *config.Config) {
				if timeout > 0 {
					cfg.Query.Timeout = timeout
				}
			})
			if err != nil {
				return err
			}
			defer rt.Close()

			formatter, err := rt.formatter(format, compact)
			if err != nil {
				return err
			}

			dbPath, err := rt.connect(ctx, target)
			if err != nil {
				return err
			}

			res, err := rt.app.Query(ctx, dbPath, sql)
			if err != nil {
				return err
			}

			return formatter.FormatResult(cmd.OutOrStdout(), res)
		},
	}

	addTargetFlags(cmd, &target)
	cmd.Flags().StringVarP(&file, "file", "f", "", "read SQL from file")
	cmd.Flags().StringVar(&format, "format", "", "output format (table, json, simple)")
	cmd.Flags().BoolVar(&compact, "compact", false, "compact output")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "query timeout (default from config)")

	return cmd
}

// readSQL picks the SQL from args, a file, or a non-terminal stdin.
func readSQL(stdin io.Reader, args []string, file string) (string, error) {
	var sql string

	switch {
	case len(args) == 1 && file != "":
		return "", errors.New("give SQL either as an argument or with --file, not both")
	case len(args) == 1:
		sql = args[0]
	case file != "":
		data, err := os.ReadFile(file) // nolint:gosec
		if err != nil {
			return "", fmt.Errorf("failed to read SQL file: %w", err)
		}
		sql = string(data)
	default:
		if f, ok := stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
			return "", errEmptySQL
		}
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("failed to read SQL from stdin: %w", err)
		}
		sql = string(data)
	}

	sql = strings.TrimSpace(sql)
	if sql == "" {
		return "", errEmptySQL
	}
	return sql, nil
}

func newShellCmd(opts *rootOptions) *cobra.Command {
	var (
		target  targetOptions
		format  string
		compact bool
	)

	cmd := &cobra.Command{
		Use:   "shell",
		Short: "Interactive SQL prompt against a remote database",
		Long: `Open a session and read SQL statements until .quit or end of input.

A statement runs once a line ends with ";". Lines starting with "." are
shell commands: .tables, .help, .quit.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime(opts)
			if err != nil {
				return err
			}
			defer rt.Close()

			formatter, err := rt.formatter(format, compact)
			if err != nil {
				return err
			}

			dbPath, err := rt.connect(cmd.Context(), target)
			if err != nil {
				return err
			}

			sh := &shell{
				rt:        rt,
				dbPath:    dbPath,
				formatter: formatter,
				out:       cmd.OutOrStdout(),
			}
			return sh.run(cmd.Context(), cmd.InOrStdin())
		},
	}

	addTargetFlags(cmd, &target)
	cmd.Flags().StringVar(&format, "format", "", "output format (table, json, simple)")
	cmd.Flags().BoolVar(&compact, "compact", false, "compact output")

	return cmd
}

const (
	shellPrompt         = "metalite> "
	shellContinuePrompt = "     ...> "
)

// shell is the read-eval-print loop behind the shell command.
type shell struct {
	rt        *runtime
	dbPath    string
	formatter display.Formatter
	out       io.Writer
}

func (s *shell) run(ctx context.Context, in io.Reader) error {
	scanner := bufio.NewScanner(in)
	var pending strings.Builder

	fmt.Fprint(s.out, shellPrompt)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		if pending.Len() == 0 && strings.HasPrefix(line, ".") {
			if quit := s.command(ctx, line); quit {
				return nil
			}
			fmt.Fprint(s.out, shellPrompt)
			continue
		}

		if line != "" {
			pending.WriteString(line)
			pending.WriteByte('\n')
		}

		if strings.HasSuffix(line, ";") {
			s.statement(ctx, strings.TrimSpace(pending.String()))
			pending.Reset()
		}

		if pending.Len() == 0 {
			fmt.Fprint(s.out, shellPrompt)
		} else {
			fmt.Fprint(s.out, shellContinuePrompt)
		}
	}

	fmt.Fprintln(s.out)
	return scanner.Err()
}

// command runs a dot command and reports whether the shell should exit.
func (s *shell) command(ctx context.Context, line string) bool {
	switch line {
	case ".quit", ".exit":
		return true
	case ".tables":
		stmtCtx, stop := signalContext(ctx)
		defer stop()

		cat, err := s.rt.app.Tables(stmtCtx, s.dbPath)
		if err != nil {
			fmt.Fprintf(s.out, "Error: %v\n", err)
			return false
		}
		if err := s.formatter.FormatTables(s.out, cat); err != nil {
			fmt.Fprintf(s.out, "Error: %v\n", err)
		}
	case ".help":
		fmt.Fprint(s.out, `.tables   list tables
.help     show this message
.quit     leave the shell
`)
	default:
		fmt.Fprintf(s.out, "Unknown command %s, try .help\n", line)
	}
	return false
}

// statement runs one SQL statement. Ctrl-C cancels it without leaving the
// shell.
func (s *shell) statement(ctx context.Context, sql string) {
	stmtCtx, stop := signalContext(ctx)
	defer stop()

	res, err := s.rt.app.Query(stmtCtx, s.dbPath, sql)
	if err != nil {
		fmt.Fprintf(s.out, "Error: %v\n", err)
		return
	}
	if err := s.formatter.FormatResult(s.out, res); err != nil {
		fmt.Fprintf(s.out, "Error: %v\n", err)
	}
}
