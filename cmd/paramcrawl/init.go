package main

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"

	"github.com/nao1215/paramcrawl/internal/config"
	"github.com/spf13/cobra"
)

//go:embed templates/paramcrawl.yaml
var configTemplate embed.FS

// templatePath is the embedded config template.
const templatePath = "templates/paramcrawl.yaml"

// NewInitCmd creates the init command.
func NewInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a paramcrawl configuration file",
		Long: `Init writes a commented .paramcrawl.yaml to the current directory.

The file documents every setting and contains commented examples of
per-site headers, crawl bounds and path filters. paramcrawl reads it from
the current directory, or from $XDG_CONFIG_HOME/paramcrawl/config.yaml.

Examples:
  # Create .paramcrawl.yaml in the current directory
  paramcrawl init

  # Create the user-wide config file
  paramcrawl init -o ~/.config/paramcrawl/config.yaml

  # Overwrite an existing file
  paramcrawl init -f`,
		Args: cobra.NoArgs,
		RunE: runInitCmd,
	}

	cmd.Flags().StringP("output", "o", config.DefaultConfigFile,
		"Output file path for the configuration")
	cmd.Flags().BoolP("force", "f", false,
		"Overwrite existing configuration file")

	return cmd
}

// runInitCmd executes the init command.
func runInitCmd(cmd *cobra.Command, _ []string) error {
	outputPath, err := cmd.Flags().GetString("output")
	if err != nil {
		return err
	}
	force, err := cmd.Flags().GetBool("force")
	if err != nil {
		return err
	}

	if !force {
		if _, err := os.Stat(outputPath); err == nil {
			return fmt.Errorf("configuration file already exists: %s (use -f to overwrite)", outputPath)
		}
	}

	content, err := configTemplate.ReadFile(templatePath)
	if err != nil {
		return fmt.Errorf("failed to read config template: %w", err)
	}

	if dir := filepath.Dir(outputPath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}
	if err := os.WriteFile(outputPath, content, 0600); err != nil {
		return fmt.Errorf("failed to write configuration file: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Created configuration file: %s\n", outputPath)
	fmt.Fprintln(out, "\nEdit this file to configure per-site settings such as:")
	fmt.Fprintln(out, "  - Extra request headers")
	fmt.Fprintln(out, "  - Crawl depth and result caps")
	fmt.Fprintln(out, "  - Paths to ignore or follow")
	return nil
}
