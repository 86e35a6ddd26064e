package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/0xmhha/metalite/pkg/discovery"
	"github.com/spf13/cobra"
)

func newKeysCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "keys [dir...]",
		Short: "List private keys that can be used to connect",
		Long: `List PEM private keys found in the given directories (default: ~/.ssh).

Keys that need a passphrase are marked; metalite prompts for it when such a
key is used from a terminal.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime(opts)
			if err != nil {
				return err
			}
			defer rt.Close()

			dirs := args
			if len(dirs) == 0 {
				dirs = []string{"~/.ssh"}
			}

			keys, err := discovery.New(dirs, rt.log).Discover()
			if err != nil {
				return fmt.Errorf("failed to discover keys: %w", err)
			}

			out := cmd.OutOrStdout()
			if len(keys) == 0 {
				fmt.Fprintln(out, "No private keys found")
				return nil
			}

			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "PATH\tTYPE\tFINGERPRINT\tPASSPHRASE\tMODIFIED")
			for _, k := range keys {
				keyType := k.Type
				if keyType == "" {
					keyType = "?"
				}
				fingerprint := k.Fingerprint
				if fingerprint == "" {
					fingerprint = "?"
				}
				passphrase := "no"
				if k.Encrypted {
					passphrase = "yes"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
					k.Path, keyType, fingerprint, passphrase,
					time.Unix(k.ModTime, 0).Format("2006-01-02"))
			}
			return tw.Flush()
		},
	}
}
