package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/nao1215/paramcrawl/internal/config"
	"github.com/spf13/cobra"
)

// urlPrompt is written before reading the seed in interactive mode.
const urlPrompt = "The url: "

// NewRootCmd creates the root command for paramcrawl.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "paramcrawl",
		Short: "Discover the parameterized URLs of a web site",
		Long: `paramcrawl crawls a web site outward from a seed URL and reports every
URL with a query string that appears to accept input: links that carry
parameters and forms whose fields become parameters.

Run without a subcommand to be prompted for a single URL. The crawl then
uses a depth of 3 and stops after 100 parameterized URLs.`,
		Version:       getVersion(),
		Args:          cobra.NoArgs,
		RunE:          runInteractive,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	cmd.PersistentFlags().Bool("log-json", false, "Write logs as JSON")
	cmd.PersistentFlags().StringP("config", "c", "",
		"Configuration file path (default: .paramcrawl.yaml or $XDG_CONFIG_HOME/paramcrawl/config.yaml)")

	cmd.AddCommand(NewCrawlCmd())
	cmd.AddCommand(NewHistoryCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// runInteractive prompts for one seed and crawls it with the default
// bounds, printing the plain text report.
func runInteractive(cmd *cobra.Command, _ []string) error {
	fmt.Fprint(cmd.OutOrStdout(), urlPrompt)

	seed, err := readSeed(cmd.InOrStdin())
	if err != nil {
		return err
	}

	cfg := config.NewConfig()
	cfg.Seeds = []string{seed}
	if err := applyGlobalFlags(cmd, cfg); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	return runCrawl(cmd, cfg)
}

// readSeed returns the first line of r with surrounding space removed.
func readSeed(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("failed to read url: %w", err)
	}
	seed := strings.TrimSpace(line)
	if seed == "" {
		return "", config.ErrNoSeed
	}
	return seed, nil
}

// applyGlobalFlags copies the persistent flags into cfg and loads the
// config file. An explicit --config path must exist; otherwise a missing
// file means no site settings.
func applyGlobalFlags(cmd *cobra.Command, cfg *config.Config) error {
	cfg.Verbose = globalBool(cmd, "verbose")
	cfg.LogJSON = globalBool(cmd, "log-json")
	cfg.ConfigFilePath = globalString(cmd, "config")

	path := config.FindConfigFile(cfg.ConfigFilePath)
	switch {
	case path != "":
		var err error
		if cfg.SiteConfigs, err = config.LoadConfigFile(path); err != nil {
			return fmt.Errorf("failed to load config file: %w", err)
		}
	case cfg.ConfigFilePath != "":
		return fmt.Errorf("%w: %s", config.ErrConfigNotFound, cfg.ConfigFilePath)
	}
	return nil
}

// globalBool returns a persistent bool flag from the command or its root.
// A flag that is not defined reads as false.
func globalBool(cmd *cobra.Command, name string) bool {
	if v, err := cmd.Flags().GetBool(name); err == nil {
		return v
	}
	v, err := cmd.Root().PersistentFlags().GetBool(name)
	if err != nil {
		return false
	}
	return v
}

// globalString returns a persistent string flag from the command or its
// root. A flag that is not defined reads as "".
func globalString(cmd *cobra.Command, name string) string {
	if v, err := cmd.Flags().GetString(name); err == nil {
		return v
	}
	v, err := cmd.Root().PersistentFlags().GetString(name)
	if err != nil {
		return ""
	}
	return v
}
