package main

import (
	"fmt"
	"runtime/debug"

	"github.com/spf13/cobra"
)

// Version information set at build time via ldflags.
var (
	version = ""
	commit  = ""
	date    = ""
)

// buildMeta is the version information shown by the version command.
type buildMeta struct {
	Version string
	Commit  string
	Date    string
}

// readBuildMeta prefers ldflags values and falls back to the module and
// VCS data embedded by the Go toolchain.
func readBuildMeta() buildMeta {
	meta := buildMeta{Version: version, Commit: commit, Date: date}

	info, ok := debug.ReadBuildInfo()
	if ok {
		if meta.Version == "" && info.Main.Version != "" {
			meta.Version = info.Main.Version
		}
		for _, setting := range info.Settings {
			switch setting.Key {
			case "vcs.revision":
				if meta.Commit == "" {
					meta.Commit = shortRevision(setting.Value)
				}
			case "vcs.time":
				if meta.Date == "" {
					meta.Date = setting.Value
				}
			}
		}
	}

	if meta.Version == "" {
		meta.Version = "(devel)"
	}
	if meta.Commit == "" {
		meta.Commit = "unknown"
	}
	if meta.Date == "" {
		meta.Date = "unknown"
	}
	return meta
}

func shortRevision(rev string) string {
	if len(rev) > 7 {
		return rev[:7]
	}
	return rev
}

// getVersion returns the version embedded in reports.
func getVersion() string {
	return readBuildMeta().Version
}

// NewVersionCmd creates the version command.
func NewVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Long:  `Print the version, commit hash, and build date of paramcrawl.`,
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			meta := readBuildMeta()
			fmt.Fprintf(cmd.OutOrStdout(), "paramcrawl version %s\n", meta.Version)
			fmt.Fprintf(cmd.OutOrStdout(), "  commit: %s\n", meta.Commit)
			fmt.Fprintf(cmd.OutOrStdout(), "  built:  %s\n", meta.Date)
		},
	}
}
