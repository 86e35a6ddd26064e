package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/0xmhha/metalite/pkg/store"
	"github.com/spf13/cobra"
)

// newConnCmd builds the saved connection commands.
func newConnCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "conn",
		Short: "Manage saved connections",
	}

	cmd.AddCommand(
		newConnListCmd(opts),
		newConnSaveCmd(opts),
		newConnDeleteCmd(opts),
		newConnExportCmd(opts),
		newConnImportCmd(opts),
	)

	return cmd
}

func newConnListCmd(opts *rootOptions) *cobra.Command {
	var (
		format  string
		compact bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List saved connections",
		Args:  cobra.NoArgs,
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

			conns, err := rt.store.List()
			if err != nil {
				return fmt.Errorf("failed to list connections: %w", err)
			}

			return formatter.FormatConnections(cmd.OutOrStdout(), conns)
		},
	}

	cmd.Flags().StringVar(&format, "format", "", "output format (table, json, simple)")
	cmd.Flags().BoolVar(&compact, "compact", false, "compact output")

	return cmd
}

func newConnSaveCmd(opts *rootOptions) *cobra.Command {
	var rec store.SavedConnection

	cmd := &cobra.Command{
		Use:   "save",
		Short: "Save a connection",
		Long: `Save a connection to the catalog.

A new id is generated unless --id names an existing record, which is then
updated in place. The name defaults to user@host.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime(opts)
			if err != nil {
				return err
			}
			defer rt.Close()

			if msg := rt.app.SaveConnection(&rec); msg != "" {
				return errors.New(msg)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Saved connection %s (%s)\n", rec.Name, rec.ID)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&rec.ID, "id", "", "id of the record to update")
	f.StringVar(&rec.Name, "name", "", "display name (default: user@host)")
	f.StringVar(&rec.Host, "host", "", "remote host, optionally host:port")
	f.StringVarP(&rec.User, "user", "u", "", "remote user")
	f.StringVarP(&rec.KeyPath, "key", "i", "", "private key file")
	f.StringVar(&rec.DBPath, "db", "", "database path on the remote host")

	return cmd
}

func newConnDeleteCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id-or-name>",
		Short: "Delete a saved connection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime(opts)
			if err != nil {
				return err
			}
			defer rt.Close()

			id := args[0]
			rec, err := rt.store.Find(id)
			switch {
			case err == nil:
				id = rec.ID
			case errors.Is(err, store.ErrNotFound):
				// Deleting an unknown id succeeds.
			default:
				return fmt.Errorf("failed to find connection %q: %w", args[0], err)
			}

			if msg := rt.app.DeleteConnection(id); msg != "" {
				return errors.New(msg)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Deleted connection %s\n", args[0])
			return nil
		},
	}
}

func newConnExportCmd(opts *rootOptions) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write saved connections as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime(opts)
			if err != nil {
				return err
			}
			defer rt.Close()

			var w io.Writer = cmd.OutOrStdout()
			if output != "" {
				f, err := os.OpenFile(output, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
				if err != nil {
					return fmt.Errorf("failed to create export file: %w", err)
				}
				defer f.Close() //nolint:errcheck // written through Export
				w = f
			}

			if err := rt.store.Export(w); err != nil {
				return fmt.Errorf("failed to export connections: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "write to file instead of stdout")

	return cmd
}

func newConnImportCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "import [file]",
		Short: "Import connections from a JSON file",
		Long: `Import connections from a JSON array.

Without a file, the desktop app's connections.json (storage.legacy_path) is
read. Records keep their ids, so importing twice does not duplicate them.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime(opts)
			if err != nil {
				return err
			}
			defer rt.Close()

			path := rt.cfg.Storage.LegacyPath
			if len(args) == 1 {
				path = args[0]
			}

			f, err := os.Open(path) // nolint:gosec
			if err != nil {
				return fmt.Errorf("failed to open import file: %w", err)
			}
			defer f.Close() //nolint:errcheck // read-only

			n, err := rt.store.Import(f)
			if err != nil {
				return fmt.Errorf("failed to import connections: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d connections from %s\n", n, path)
			return nil
		},
	}
}
