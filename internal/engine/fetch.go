package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/roach88/tasksync/internal/cursor"
	"github.com/roach88/tasksync/internal/ir"
	"github.com/roach88/tasksync/internal/queryir"
)

// Fetcher reads the next batch of a task from its source collection.
type Fetcher struct {
	resolve Resolver
}

// NewFetcher creates a fetcher resolving source stores through resolve.
func NewFetcher(resolve Resolver) *Fetcher {
	return &Fetcher{resolve: resolve}
}

// Query builds the select for the task's next batch: its equality filter
// conjoined with the cursor boundary, ordered by its order keys, bounded by
// its batch size.
func Query(task ir.Task) (queryir.Select, error) {
	boundary, err := cursor.Boundary(task.OrderBy, task.LastSync)
	if err != nil {
		return queryir.Select{}, NewConfigurationError(task.Name, "cannot build cursor boundary", err)
	}
	q := queryir.Select{
		From:    task.Source.Collection,
		Filter:  queryir.Conjoin(queryir.FilterEquals(task.FilterBy), boundary),
		OrderBy: cursor.Order(task.OrderBy),
		Limit:   task.BatchSize,
	}
	if res := queryir.Validate(q); !res.OK {
		return queryir.Select{}, NewConfigurationError(task.Name, "invalid batch query",
			errors.New(strings.Join(res.Warnings, "; ")))
	}
	return q, nil
}

// Fetch returns up to task.BatchSize records after the task's cursor,
// re-admitting records tied with it.
func (f *Fetcher) Fetch(ctx context.Context, task ir.Task) ([]ir.Record, error) {
	if cursor.IsDegraded(task.OrderBy, task.LastSync) {
		slog.Warn("task has a cursor but no order; every fetch matches everything",
			"task", task.Name,
			"cursor", task.LastSync.String())
	}

	q, err := Query(task)
	if err != nil {
		return nil, err
	}

	src, err := f.resolve(task.Source.Store)
	if err != nil {
		return nil, NewConfigurationError(task.Name, fmt.Sprintf("source store %q", task.Source.Store), err)
	}

	records, err := src.Fetch(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", task.Source, err)
	}
	return records, nil
}
