package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/nao1215/paramcrawl/internal/config"
	"github.com/nao1215/paramcrawl/internal/database"
	"github.com/nao1215/paramcrawl/internal/report"
	"github.com/nao1215/paramcrawl/internal/urlnorm"
	"github.com/spf13/cobra"
)

// defaultHistoryLimit is the number of runs listed by default.
const defaultHistoryLimit = 20

// historyTimeFormat is the timestamp layout of history listings.
const historyTimeFormat = "2006-01-02 15:04:05"

// NewHistoryCmd creates the history command and its subcommands.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [seed]",
		Short: "List saved crawl runs",
		Long: `History lists crawl runs saved with 'paramcrawl crawl --save', newest
first. Give a seed to list only its runs.

Examples:
  # List the latest runs of every seed
  paramcrawl history

  # List every run of one seed
  paramcrawl history --limit 0 https://example.com/

  # List the seeds that have saved runs
  paramcrawl history --seeds

  # Print a saved run as Markdown
  paramcrawl history show --markdown <run-id>

  # Show parameters added or removed since the previous run
  paramcrawl history diff https://example.com/`,
		Args: cobra.MaximumNArgs(1),
		RunE: runHistoryCmd,
	}

	cmd.PersistentFlags().String("db-dir", config.XDGDataDir(),
		"Directory of the history database")
	cmd.Flags().IntP("limit", "n", defaultHistoryLimit,
		"Maximum number of runs to list (0 = all)")
	cmd.Flags().Bool("seeds", false,
		"List the seeds that have saved runs")

	cmd.AddCommand(newHistoryShowCmd())
	cmd.AddCommand(newHistoryDiffCmd())
	cmd.AddCommand(newHistoryDeleteCmd())

	return cmd
}

func newHistoryShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <run-id>",
		Short: "Print a saved crawl run",
		Args:  cobra.ExactArgs(1),
		RunE:  runHistoryShowCmd,
	}
	cmd.Flags().BoolP("json", "j", false,
		"Output JSON report (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output Markdown report (mutually exclusive with --json)")
	return cmd
}

func newHistoryDiffCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "diff <seed>",
		Short: "Show parameters added or removed between the two latest runs of a seed",
		Args:  cobra.ExactArgs(1),
		RunE:  runHistoryDiffCmd,
	}
	cmd.Flags().BoolP("json", "j", false, "Output the difference as JSON")
	return cmd
}

func newHistoryDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <run-id>",
		Short: "Delete a saved crawl run",
		Args:  cobra.ExactArgs(1),
		RunE:  runHistoryDeleteCmd,
	}
}

// openHistoryDB opens the database named by --db-dir. Nothing is created
// when the database does not exist yet.
func openHistoryDB(cmd *cobra.Command) (*database.CrawlDB, error) {
	dbDir, err := cmd.Flags().GetString("db-dir")
	if err != nil {
		return nil, err
	}
	opts := database.DefaultOptions()
	opts.CreateIfNotExists = false
	db, err := database.Open(dbDir, opts)
	if err != nil {
		if errors.Is(err, database.ErrDatabaseNotFound) {
			return nil, fmt.Errorf("%w (use 'paramcrawl crawl --save' to record runs)", err)
		}
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, nil
}

// canonicalSeed returns seed in the form stored by the crawler.
func canonicalSeed(seed string) string {
	if normalized, err := urlnorm.Normalize(strings.TrimSpace(seed), ""); err == nil {
		return normalized
	}
	return seed
}

// runHistoryCmd lists runs or seeds.
func runHistoryCmd(cmd *cobra.Command, args []string) error {
	limit, err := cmd.Flags().GetInt("limit")
	if err != nil {
		return err
	}
	listSeeds, err := cmd.Flags().GetBool("seeds")
	if err != nil {
		return err
	}

	db, err := openHistoryDB(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	if listSeeds {
		return listSavedSeeds(ctx, out, db)
	}

	var seed string
	if len(args) == 1 {
		seed = canonicalSeed(args[0])
	}
	return listRuns(ctx, out, db, seed, limit)
}

func listSavedSeeds(ctx context.Context, out io.Writer, db *database.CrawlDB) error {
	seeds, err := db.ListSeeds(ctx)
	if err != nil {
		return err
	}
	if len(seeds) == 0 {
		fmt.Fprintln(out, "No saved runs found in the database.")
		return nil
	}

	fmt.Fprintf(out, "Seeds with saved runs (%d):\n\n", len(seeds))
	for _, seed := range seeds {
		fmt.Fprintf(out, "  • %s\n", seed)
	}
	fmt.Fprintln(out, "\nUse 'paramcrawl history <seed>' to see the runs of a seed.")
	return nil
}

func listRuns(ctx context.Context, out io.Writer, db *database.CrawlDB, seed string, limit int) error {
	runs, err := db.ListRuns(ctx, seed, limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		if seed != "" {
			fmt.Fprintf(out, "No saved runs found for %s\n", seed)
		} else {
			fmt.Fprintln(out, "No saved runs found in the database.")
		}
		fmt.Fprintln(out, "\nUse 'paramcrawl crawl --save <url>' to record a run.")
		return nil
	}

	fmt.Fprintf(out, "Saved runs (%d):\n\n", len(runs))
	fmt.Fprintf(out, "  %-36s  %-19s  %6s  %9s  %s\n", "ID", "Started", "Params", "Duration", "Seed")
	fmt.Fprintln(out, "  "+strings.Repeat("-", 90))
	for _, run := range runs {
		fmt.Fprintf(out, "  %-36s  %-19s  %6d  %9s  %s\n",
			run.ID,
			run.StartedAt.Local().Format(historyTimeFormat),
			run.ParameterCount,
			run.FinishedAt.Sub(run.StartedAt).Round(time.Millisecond),
			run.Seed,
		)
	}
	fmt.Fprintln(out, "\nUse 'paramcrawl history show <run-id>' to print a run.")
	return nil
}

// runHistoryShowCmd prints a stored run with the crawl report writers.
func runHistoryShowCmd(cmd *cobra.Command, args []string) error {
	jsonOutput, err := cmd.Flags().GetBool("json")
	if err != nil {
		return err
	}
	markdownOutput, err := cmd.Flags().GetBool("markdown")
	if err != nil {
		return err
	}
	if jsonOutput && markdownOutput {
		return config.ErrConflictingReportFormats
	}

	db, err := openHistoryDB(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	result, err := db.GetRun(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	format := report.FormatFor(jsonOutput, markdownOutput)
	var w report.Writer
	if format == report.FormatText {
		w = report.NewSimpleWriter(cmd.OutOrStdout(), report.WithStats(true))
	} else {
		w = report.NewWriter(format, cmd.OutOrStdout(), getVersion())
	}
	_, err = w.Write(result)
	return err
}

// runHistoryDiffCmd compares the two latest runs of a seed.
func runHistoryDiffCmd(cmd *cobra.Command, args []string) error {
	jsonOutput, err := cmd.Flags().GetBool("json")
	if err != nil {
		return err
	}

	db, err := openHistoryDB(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	diff, err := db.DiffLatest(cmd.Context(), canonicalSeed(args[0]))
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")
		return encoder.Encode(diff)
	}
	writeDiffText(out, diff)
	return nil
}

func writeDiffText(out io.Writer, diff *database.RunDiff) {
	fmt.Fprintf(out, "Parameter surface of %s\n", diff.Seed)
	fmt.Fprintf(out, "  from %s (%s, %d URLs)\n",
		diff.From.ID, diff.From.StartedAt.Local().Format(historyTimeFormat), diff.From.ParameterCount)
	fmt.Fprintf(out, "  to   %s (%s, %d URLs)\n\n",
		diff.To.ID, diff.To.StartedAt.Local().Format(historyTimeFormat), diff.To.ParameterCount)

	if !diff.Changed() {
		fmt.Fprintln(out, "No changes.")
		return
	}

	fmt.Fprintf(out, "Added (%d):\n", len(diff.Added))
	for _, u := range diff.Added {
		fmt.Fprintf(out, "  + %s\n", u)
	}
	fmt.Fprintf(out, "Removed (%d):\n", len(diff.Removed))
	for _, u := range diff.Removed {
		fmt.Fprintf(out, "  - %s\n", u)
	}
}

// runHistoryDeleteCmd removes a stored run.
func runHistoryDeleteCmd(cmd *cobra.Command, args []string) error {
	db, err := openHistoryDB(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.DeleteRun(cmd.Context(), args[0]); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted run %s\n", args[0])
	return nil
}
