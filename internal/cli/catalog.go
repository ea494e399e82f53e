package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/roach88/tasksync/internal/config"
	"github.com/roach88/tasksync/internal/engine"
	"github.com/roach88/tasksync/internal/handler"
	"github.com/roach88/tasksync/internal/store"
)

// session is an open catalog database and the record stores it names.
type session struct {
	catalog *store.Store
	pool    *store.Pool
}

func openSession(ctx context.Context, path string) (*session, error) {
	catalog, err := store.Open(path)
	if err != nil {
		return nil, err
	}
	defs, err := catalog.ListStores(ctx)
	if err != nil {
		catalog.Close()
		return nil, err
	}
	return &session{catalog: catalog, pool: store.NewPool(catalog, defs)}, nil
}

func (s *session) Close() error {
	return errors.Join(s.pool.Close(), s.catalog.Close())
}

// graph loads every task of the catalog into a validated dependency graph.
func (s *session) graph(ctx context.Context) (*engine.Graph, error) {
	tasks, err := s.catalog.ListTasks(ctx)
	if err != nil {
		return nil, err
	}
	return engine.NewGraph(tasks)
}

// loadCatalogDir loads a catalog directory and checks it the way a run
// would: task validation, dependency cycles and handler names.
func loadCatalogDir(dir string, handlers *handler.Registry) (*config.Catalog, []error) {
	cat, errs := config.Load(dir)
	if cat == nil || len(errs) > 0 {
		return cat, errs
	}
	if _, err := engine.NewGraph(cat.Tasks); err != nil {
		errs = append(errs, err)
	}
	for _, t := range cat.Tasks {
		if _, err := handlers.Resolve(t.Handler); err != nil {
			errs = append(errs, engine.NewConfigurationError(t.Name, fmt.Sprintf("unknown handler %q", t.Handler), err))
		}
	}
	return cat, errs
}
