package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/0xmhha/metalite/pkg/config"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// configCommand handles configuration management subcommands.
type configCommand struct {
	opts *rootOptions
}

func newConfigCmd(opts *rootOptions) *cobra.Command {
	c := &configCommand{opts: opts}

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
	}

	var format string
	show := &cobra.Command{
		Use:   "show",
		Short: "Display current configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runShow(cmd.OutOrStdout(), format)
		},
	}
	show.Flags().StringVar(&format, "format", "yaml", "output format (yaml, json)")

	path := &cobra.Command{
		Use:   "path",
		Short: "Show configuration file paths",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runPath(cmd.OutOrStdout())
		},
	}

	var (
		force  bool
		output string
	)
	reset := &cobra.Command{
		Use:   "reset",
		Short: "Reset configuration to defaults",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runReset(cmd.InOrStdin(), cmd.OutOrStdout(), output, force)
		},
	}
	reset.Flags().BoolVar(&force, "force", false, "skip confirmation prompt")
	reset.Flags().StringVar(&output, "output", "", "output path for config file (default: ~/.config/metalite/config.yaml)")

	cmd.AddCommand(show, path, reset)
	return cmd
}

// searchPaths returns the configuration files consulted, in order.
func (c *configCommand) searchPaths() []string {
	if c.opts.configPath != "" {
		return []string{c.opts.configPath}
	}
	return []string{"./metalite.yaml", config.DefaultConfigPath()}
}

// runShow displays the current configuration.
func (c *configCommand) runShow(out io.Writer, format string) error {
	cfg, err := config.NewLoader(c.opts.configPath).Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	switch format {
	case "json":
		data, err := json.MarshalIndent(cfg, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal config: %w", err)
		}
		fmt.Fprintln(out, string(data))
	case "yaml":
		data, err := yaml.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("failed to marshal config: %w", err)
		}
		fmt.Fprintln(out, "# Current Configuration")
		fmt.Fprintln(out, "# Source:", c.configSource())
		fmt.Fprintln(out)
		fmt.Fprint(out, string(data))
	default:
		return fmt.Errorf("unknown format %q (want yaml or json)", format)
	}

	return nil
}

// runPath shows the configuration file paths.
func (c *configCommand) runPath(out io.Writer) error {
	fmt.Fprintln(out, "Configuration file search paths (in order of precedence):")
	fmt.Fprintln(out)

	for i, p := range c.searchPaths() {
		exists := "not found"
		if _, err := os.Stat(p); err == nil {
			exists = "found"
		}
		fmt.Fprintf(out, "  %d. %s [%s]\n", i+1, p, exists)
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, "Active configuration:", c.configSource())
	return nil
}

// runReset writes the default configuration.
func (c *configCommand) runReset(in io.Reader, out io.Writer, outputPath string, force bool) error {
	if outputPath == "" {
		outputPath = config.DefaultConfigPath()
	}

	if _, err := os.Stat(outputPath); err == nil && !force {
		fmt.Fprintf(out, "Configuration file already exists at: %s\n", outputPath)
		fmt.Fprint(out, "Overwrite? [y/N]: ")

		response, err := bufio.NewReader(in).ReadString('\n')
		if err != nil && response == "" {
			fmt.Fprintln(out, "\nReset cancelled.")
			return nil
		}
		response = strings.ToLower(strings.TrimSpace(response))

		if response != "y" && response != "yes" {
			fmt.Fprintln(out, "Reset cancelled.")
			return nil
		}
	}

	if err := config.Save(config.Default(), outputPath); err != nil {
		return err
	}

	fmt.Fprintf(out, "Configuration reset to defaults at: %s\n", outputPath)
	return nil
}

// configSource returns the path of the active configuration file.
func (c *configCommand) configSource() string {
	for _, p := range c.searchPaths() {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return "defaults (no config file found)"
}
