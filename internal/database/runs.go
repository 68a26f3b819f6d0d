package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nao1215/paramcrawl/internal/model"
)

// RunSummary describes a stored run without its URL lists.
type RunSummary struct {
	ID             string           `json:"id"`
	Seed           string           `json:"seed"`
	StartedAt      time.Time        `json:"started_at"`
	FinishedAt     time.Time        `json:"finished_at"`
	ParameterCount int              `json:"parameter_count"`
	Stats          model.CrawlStats `json:"stats"`
}

// SaveCrawlResult stores result as a new run and returns its ID. A result
// without a RunID is given a fresh UUID, which is also written back to
// result.RunID.
func (cdb *CrawlDB) SaveCrawlResult(ctx context.Context, result *model.CrawlResult) (string, error) {
	if result.RunID == "" {
		result.RunID = uuid.NewString()
	}

	tx, err := cdb.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }() //nolint:errcheck // no-op after commit

	_, err = tx.ExecContext(ctx, `
	INSERT INTO runs (id, seed, started_at, finished_at, parameter_count,
		pages_fetched, fetch_failures, sitemap_leaves, candidates_evaluated, candidates_queued)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		result.RunID,
		result.Seed,
		formatTimestamp(result.StartedAt),
		formatTimestamp(result.FinishedAt),
		len(result.Parameters),
		result.Stats.PagesFetched,
		result.Stats.FetchFailures,
		result.Stats.SitemapLeaves,
		result.Stats.CandidatesEvaluated,
		result.Stats.CandidatesQueued,
	)
	if err != nil {
		return "", fmt.Errorf("failed to save run: %w", err)
	}

	paramStmt, err := tx.PrepareContext(ctx, `INSERT OR IGNORE INTO parameters (run_id, url) VALUES (?, ?)`)
	if err != nil {
		return "", fmt.Errorf("failed to prepare parameter insert: %w", err)
	}
	defer paramStmt.Close()
	for _, u := range result.Parameters {
		if _, err := paramStmt.ExecContext(ctx, result.RunID, u); err != nil {
			return "", fmt.Errorf("failed to save parameter: %w", err)
		}
	}

	visitStmt, err := tx.PrepareContext(ctx, `INSERT INTO visited (run_id, position, url) VALUES (?, ?, ?)`)
	if err != nil {
		return "", fmt.Errorf("failed to prepare visited insert: %w", err)
	}
	defer visitStmt.Close()
	for i, u := range result.Visited {
		if _, err := visitStmt.ExecContext(ctx, result.RunID, i, u); err != nil {
			return "", fmt.Errorf("failed to save visited url: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit run: %w", err)
	}
	return result.RunID, nil
}

const summaryColumns = `id, seed, started_at, finished_at, parameter_count,
	pages_fetched, fetch_failures, sitemap_leaves, candidates_evaluated, candidates_queued`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSummary(row rowScanner) (RunSummary, error) {
	var (
		s                 RunSummary
		started, finished string
	)
	err := row.Scan(&s.ID, &s.Seed, &started, &finished, &s.ParameterCount,
		&s.Stats.PagesFetched, &s.Stats.FetchFailures, &s.Stats.SitemapLeaves,
		&s.Stats.CandidatesEvaluated, &s.Stats.CandidatesQueued)
	if err != nil {
		return RunSummary{}, err
	}
	s.StartedAt = parseTimestamp(started)
	s.FinishedAt = parseTimestamp(finished)
	return s, nil
}

// ListRuns returns stored runs, newest first. An empty seed lists the runs
// of every seed. limit <= 0 means no limit.
func (cdb *CrawlDB) ListRuns(ctx context.Context, seed string, limit int) ([]RunSummary, error) {
	query := `SELECT ` + summaryColumns + ` FROM runs`
	var args []any
	if seed != "" {
		query += ` WHERE seed = ?`
		args = append(args, seed)
	}
	query += ` ORDER BY started_at DESC, rowid DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := cdb.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []RunSummary
	for rows.Next() {
		s, err := scanSummary(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, s)
	}
	return runs, rows.Err()
}

// ListSeeds returns every seed with at least one stored run, sorted.
func (cdb *CrawlDB) ListSeeds(ctx context.Context) ([]string, error) {
	rows, err := cdb.db.QueryContext(ctx, `SELECT DISTINCT seed FROM runs ORDER BY seed`)
	if err != nil {
		return nil, fmt.Errorf("failed to list seeds: %w", err)
	}
	defer rows.Close()

	var seeds []string
	for rows.Next() {
		var seed string
		if err := rows.Scan(&seed); err != nil {
			return nil, fmt.Errorf("failed to scan seed: %w", err)
		}
		seeds = append(seeds, seed)
	}
	return seeds, rows.Err()
}

// GetRun loads a complete run. It returns ErrRunNotFound when id is
// unknown.
func (cdb *CrawlDB) GetRun(ctx context.Context, id string) (*model.CrawlResult, error) {
	row := cdb.db.QueryRowContext(ctx, `SELECT `+summaryColumns+` FROM runs WHERE id = ?`, id)
	s, err := scanSummary(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	params, err := cdb.strings(ctx, `SELECT url FROM parameters WHERE run_id = ? ORDER BY url`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get parameters: %w", err)
	}
	visited, err := cdb.strings(ctx, `SELECT url FROM visited WHERE run_id = ? ORDER BY position`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get visited urls: %w", err)
	}

	return &model.CrawlResult{
		RunID:      s.ID,
		Seed:       s.Seed,
		Parameters: params,
		Visited:    visited,
		Stats:      s.Stats,
		StartedAt:  s.StartedAt,
		FinishedAt: s.FinishedAt,
	}, nil
}

// DeleteRun removes a run and its URLs. Deleting an unknown run returns
// ErrRunNotFound.
func (cdb *CrawlDB) DeleteRun(ctx context.Context, id string) error {
	res, err := cdb.db.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return nil
}

func (cdb *CrawlDB) strings(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := cdb.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []string{}
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
