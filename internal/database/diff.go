package database

import (
	"context"
	"fmt"
	"slices"

	"github.com/nao1215/paramcrawl/internal/model"
)

// RunDiff is the change in parameter surface between two runs of a seed.
type RunDiff struct {
	Seed string `json:"seed"`

	// From is the older run, To the newer one.
	From RunSummary `json:"from"`
	To   RunSummary `json:"to"`

	// Added holds URLs found by To but not by From, Removed the reverse.
	// Both are sorted.
	Added   []string `json:"added"`
	Removed []string `json:"removed"`
}

// Changed reports whether the two runs differ.
func (d *RunDiff) Changed() bool {
	return len(d.Added) > 0 || len(d.Removed) > 0
}

// DiffLatest compares the two most recent runs of seed.
func (cdb *CrawlDB) DiffLatest(ctx context.Context, seed string) (*RunDiff, error) {
	runs, err := cdb.ListRuns(ctx, seed, 2)
	if err != nil {
		return nil, err
	}
	if len(runs) < 2 {
		return nil, fmt.Errorf("%w: %s has %d", ErrNotEnoughRuns, seed, len(runs))
	}
	return cdb.DiffRuns(ctx, runs[1].ID, runs[0].ID)
}

// DiffRuns compares the runs fromID and toID.
func (cdb *CrawlDB) DiffRuns(ctx context.Context, fromID, toID string) (*RunDiff, error) {
	from, err := cdb.GetRun(ctx, fromID)
	if err != nil {
		return nil, err
	}
	to, err := cdb.GetRun(ctx, toID)
	if err != nil {
		return nil, err
	}

	added, removed := DiffParameters(from.Parameters, to.Parameters)
	return &RunDiff{
		Seed:    to.Seed,
		From:    summaryOf(from),
		To:      summaryOf(to),
		Added:   added,
		Removed: removed,
	}, nil
}

// DiffParameters returns the members of newer missing from older (added)
// and the members of older missing from newer (removed), each sorted.
func DiffParameters(older, newer []string) (added, removed []string) {
	inOlder := make(map[string]struct{}, len(older))
	for _, u := range older {
		inOlder[u] = struct{}{}
	}
	inNewer := make(map[string]struct{}, len(newer))
	for _, u := range newer {
		inNewer[u] = struct{}{}
	}

	added, removed = []string{}, []string{}
	for u := range inNewer {
		if _, ok := inOlder[u]; !ok {
			added = append(added, u)
		}
	}
	for u := range inOlder {
		if _, ok := inNewer[u]; !ok {
			removed = append(removed, u)
		}
	}
	slices.Sort(added)
	slices.Sort(removed)
	return added, removed
}

func summaryOf(r *model.CrawlResult) RunSummary {
	return RunSummary{
		ID:             r.RunID,
		Seed:           r.Seed,
		StartedAt:      r.StartedAt,
		FinishedAt:     r.FinishedAt,
		ParameterCount: len(r.Parameters),
		Stats:          r.Stats,
	}
}
