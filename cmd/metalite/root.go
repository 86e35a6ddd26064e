package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// rootOptions holds the flags shared by every command.
type rootOptions struct {
	configPath  string
	showVersion bool
	metrics     bool
}

// targetOptions selects the remote database a command works on.
type targetOptions struct {
	conn string
	host string
	port int
	user string
	key  string
	db   string
}

// newRootCmd builds the command tree.
func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "metalite",
		Short: "Query SQLite databases on remote hosts over SSH",
		Long: `metalite keeps a catalog of remote SQLite databases and queries them over SSH.

Queries run through the sqlite3 command line tool on the remote host, so
nothing but sshd and sqlite3 is needed there.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.showVersion {
				fmt.Fprintf(cmd.OutOrStdout(), "metalite %s\n", version)
				return nil
			}
			return cmd.Help()
		},
	}

	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "path to configuration file")
	cmd.PersistentFlags().BoolVar(&opts.metrics, "metrics", false, "print query metrics to stderr on exit")
	cmd.Flags().BoolVar(&opts.showVersion, "version", false, "show version information")

	cmd.AddCommand(
		newConnCmd(opts),
		newTablesCmd(opts),
		newQueryCmd(opts),
		newShellCmd(opts),
		newWatchCmd(opts),
		newKeysCmd(opts),
		newConfigCmd(opts),
	)

	return cmd
}

// addTargetFlags registers the flags that select a remote database.
func addTargetFlags(cmd *cobra.Command, t *targetOptions) {
	f := cmd.Flags()
	f.StringVarP(&t.conn, "conn", "c", "", "saved connection id or name")
	f.StringVar(&t.host, "host", "", "remote host, optionally host:port")
	f.IntVar(&t.port, "port", 0, "remote SSH port")
	f.StringVarP(&t.user, "user", "u", "", "remote user")
	f.StringVarP(&t.key, "key", "i", "", "private key file")
	f.StringVar(&t.db, "db", "", "database path on the remote host")
}
