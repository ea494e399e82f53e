package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"cuelang.org/go/cue/token"

	"github.com/roach88/tasksync/internal/ir"
	"github.com/roach88/tasksync/internal/store"
)

// yamlFile mirrors the catalog shape for YAML decoding.
type yamlFile struct {
	Store      map[string]yamlStore      `yaml:"store"`
	Collection map[string]yamlCollection `yaml:"collection"`
	Task       map[string]yamlTask       `yaml:"task"`
}

type yamlStore struct {
	Path string `yaml:"path"`
}

type yamlCollection struct {
	Store   string         `yaml:"store"`
	Columns []store.Column `yaml:"columns"`
}

type yamlRef struct {
	Collection string `yaml:"collection"`
	Store      string `yaml:"store"`
}

type yamlTask struct {
	Source    yamlRef        `yaml:"source"`
	Target    yamlRef        `yaml:"target"`
	Handler   string         `yaml:"handler"`
	BatchSize *int           `yaml:"batch_size"`
	OrderBy   *[]string      `yaml:"order_by"`
	FilterBy  map[string]any `yaml:"filter_by,omitempty"`
	LastSync  map[string]any `yaml:"last_sync,omitempty"`
	DependsOn []string       `yaml:"depends_on,omitempty"`
}

// loadYAML decodes every file, merging sections. A name declared in two
// files is an error. Unknown keys are rejected.
func loadYAML(files []string) (*document, []error) {
	doc := newDocument()
	var errs []error
	for _, path := range files {
		data, err := os.ReadFile(path)
		if err != nil {
			errs = append(errs, loadErr(ErrCodeLoadFailed, token.NoPos, "read %s: %v", path, err))
			continue
		}

		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		var f yamlFile
		if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
			errs = append(errs, loadErr(ErrCodeLoadFailed, token.NoPos, "%s: %v", path, err))
			continue
		}

		for alias, s := range f.Store {
			if _, dup := doc.stores[alias]; dup {
				errs = append(errs, loadErr(ErrCodeGeneric, token.NoPos, "%s: store %q declared twice", path, alias))
				continue
			}
			doc.stores[alias] = storeDecl{Path: s.Path}
		}
		for name, c := range f.Collection {
			if _, dup := doc.collections[name]; dup {
				errs = append(errs, loadErr(ErrCodeGeneric, token.NoPos, "%s: collection %q declared twice", path, name))
				continue
			}
			doc.collections[name] = collectionDecl{Store: c.Store, Columns: c.Columns}
		}
		for name, t := range f.Task {
			if _, dup := doc.tasks[name]; dup {
				errs = append(errs, loadErr(ErrCodeGeneric, token.NoPos, "%s: task %q declared twice", path, name))
				continue
			}
			doc.tasks[name] = taskDecl{
				Source:    refDecl(t.Source),
				Target:    refDecl(t.Target),
				Handler:   t.Handler,
				BatchSize: t.BatchSize,
				OrderBy:   t.OrderBy,
				FilterBy:  t.FilterBy,
				LastSync:  t.LastSync,
				DependsOn: t.DependsOn,
			}
		}
	}
	if len(errs) > 0 && len(doc.tasks) == 0 && len(doc.stores) == 0 {
		return nil, errs
	}
	return doc, errs
}

// Marshal renders a catalog in the YAML catalog format. Cursors are written
// in their canonical form, so applying the output restores them.
func Marshal(cat *Catalog) ([]byte, error) {
	f := yamlFile{
		Store:      map[string]yamlStore{},
		Collection: map[string]yamlCollection{},
		Task:       map[string]yamlTask{},
	}
	for _, s := range cat.Stores {
		f.Store[s.Alias] = yamlStore{Path: s.Path}
	}
	for _, c := range cat.Collections {
		f.Collection[c.Name] = yamlCollection{Store: c.Store, Columns: c.Columns}
	}
	for _, t := range cat.Tasks {
		size := t.BatchSize
		order := make([]string, len(t.OrderBy))
		for i, k := range t.OrderBy {
			order[i] = string(k)
		}
		filter, err := toGoMap(t.FilterBy)
		if err != nil {
			return nil, fmt.Errorf("task %q: filter_by: %w", t.Name, err)
		}
		lastSync, err := toGoMap(ir.IRObject(t.LastSync.Canonical()))
		if err != nil {
			return nil, fmt.Errorf("task %q: last_sync: %w", t.Name, err)
		}
		f.Task[t.Name] = yamlTask{
			Source:    yamlRef{Collection: t.Source.Collection, Store: t.Source.Store},
			Target:    yamlRef{Collection: t.Target.Collection, Store: t.Target.Store},
			Handler:   t.Handler,
			BatchSize: &size,
			OrderBy:   &order,
			FilterBy:  filter,
			LastSync:  lastSync,
			DependsOn: t.Dependencies,
		}
	}
	return yaml.Marshal(f)
}
