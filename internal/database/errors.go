package database

import "errors"

var (
	// ErrRunNotFound is returned when no run matches the requested ID.
	ErrRunNotFound = errors.New("run not found")

	// ErrNotEnoughRuns is returned by DiffLatest when the seed has fewer
	// than two stored runs.
	ErrNotEnoughRuns = errors.New("at least two runs are needed to compare")

	// ErrDatabaseNotFound is returned by Open when CreateIfNotExists is
	// false and there is no database file.
	ErrDatabaseNotFound = errors.New("database not found")
)
