package store

import (
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/roach88/tasksync/internal/ir"
)

// ErrUnknownStore reports a store alias that is not registered.
var ErrUnknownStore = errors.New("unknown store")

// Pool resolves store aliases to open record stores.
// Stores are opened on first use and kept open until Close.
// The alias ir.DefaultStore resolves to the catalog itself unless it is
// registered explicitly.
type Pool struct {
	catalog *Store
	baseDir string

	mu    sync.Mutex
	paths map[string]string
	open  map[string]*Store
}

// NewPool builds a pool over the given store definitions. Relative paths are
// resolved against the directory of the catalog file.
func NewPool(catalog *Store, defs []StoreDef) *Pool {
	p := &Pool{
		catalog: catalog,
		baseDir: filepath.Dir(catalog.Path()),
		paths:   make(map[string]string, len(defs)),
		open:    make(map[string]*Store),
	}
	for _, d := range defs {
		p.paths[d.Alias] = d.Path
	}
	return p
}

// Get returns the store registered under alias, opening it if needed.
func (p *Pool) Get(alias string) (*Store, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if s, ok := p.open[alias]; ok {
		return s, nil
	}

	path, ok := p.paths[alias]
	if !ok {
		if alias == ir.DefaultStore || alias == "" {
			return p.catalog, nil
		}
		return nil, fmt.Errorf("%w: %q", ErrUnknownStore, alias)
	}
	if !filepath.IsAbs(path) && path != ":memory:" {
		path = filepath.Join(p.baseDir, path)
	}
	if filepath.Clean(path) == filepath.Clean(p.catalog.Path()) {
		p.open[alias] = p.catalog
		return p.catalog, nil
	}

	s, err := OpenRecords(path)
	if err != nil {
		return nil, fmt.Errorf("open store %q: %w", alias, err)
	}
	p.open[alias] = s
	return s, nil
}

// Has reports whether alias can be resolved.
func (p *Pool) Has(alias string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.paths[alias]
	return ok || alias == ir.DefaultStore || alias == ""
}

// Close closes every store the pool opened. The catalog is left open.
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var errs []error
	for alias, s := range p.open {
		if s == p.catalog {
			continue
		}
		if err := s.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close store %q: %w", alias, err))
		}
	}
	p.open = make(map[string]*Store)
	return errors.Join(errs...)
}
