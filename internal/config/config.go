package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"cuelang.org/go/cue/token"

	"github.com/roach88/tasksync/internal/ir"
	"github.com/roach88/tasksync/internal/store"
)

// Catalog is the loaded content of a catalog directory.
type Catalog struct {
	Stores      []store.StoreDef
	Collections []Collection
	Tasks       []ir.Task
	FileCount   int
}

// Collection declares a record collection created by apply when absent.
type Collection struct {
	Name    string         `json:"name" yaml:"name"`
	Store   string         `json:"store" yaml:"store"`
	Columns []store.Column `json:"columns" yaml:"columns"`
}

// Error codes for catalog loading.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeScanError   = "E002" // Directory scan error
	ErrCodeNoFiles     = "E003" // No catalog files found
	ErrCodeLoadFailed  = "E004" // File load failed
	ErrCodeNotFound    = "E005" // Path not found
	ErrCodeBuildFailed = "E006" // CUE build failed
	ErrCodeMixed       = "E007" // CUE and YAML files in one directory

	ErrCodeInvalidTask  = "E101" // Task fails validation
	ErrCodeInvalidValue = "E102" // Unsupported field value
	ErrCodeInvalidStore = "E103" // Store or collection declaration invalid
	ErrCodeUnknownStore = "E104" // Reference to an undeclared store
)

// LoadError represents an error that occurred while loading a catalog.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func loadErr(code string, pos token.Pos, format string, args ...any) *LoadError {
	return &LoadError{Code: code, Message: fmt.Sprintf(format, args...), Pos: pos}
}

// Load reads the catalog in dir. All problems found are returned, so a
// caller can report every broken task at once.
func Load(dir string) (*Catalog, []error) {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil, []error{loadErr(ErrCodeNotFound, token.NoPos, "catalog directory not found: %s", dir)}
	}
	if err != nil {
		return nil, []error{loadErr(ErrCodeNotFound, token.NoPos, "error accessing catalog directory: %v", err)}
	}
	if !info.IsDir() {
		return nil, []error{loadErr(ErrCodeNotFound, token.NoPos, "not a directory: %s", dir)}
	}

	cueFiles, yamlFiles, err := findFiles(dir)
	if err != nil {
		return nil, []error{loadErr(ErrCodeScanError, token.NoPos, "error scanning directory: %v", err)}
	}

	var doc *document
	var errs []error
	switch {
	case len(cueFiles) > 0 && len(yamlFiles) > 0:
		return nil, []error{loadErr(ErrCodeMixed, token.NoPos, "%s mixes CUE and YAML files", dir)}
	case len(cueFiles) > 0:
		doc, errs = loadCUE(dir)
	case len(yamlFiles) > 0:
		doc, errs = loadYAML(yamlFiles)
	default:
		return nil, []error{loadErr(ErrCodeNoFiles, token.NoPos, "no .cue or .yaml files found in %s", dir)}
	}
	if doc == nil {
		return nil, errs
	}

	cat, convErrs := doc.catalog()
	cat.FileCount = len(cueFiles) + len(yamlFiles)
	return cat, append(errs, convErrs...)
}

// findFiles returns the catalog files directly inside dir, sorted.
func findFiles(dir string) (cueFiles, yamlFiles []string, err error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, nil, err
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		path := filepath.Join(dir, e.Name())
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".cue":
			cueFiles = append(cueFiles, path)
		case ".yaml", ".yml":
			yamlFiles = append(yamlFiles, path)
		}
	}
	slices.Sort(cueFiles)
	slices.Sort(yamlFiles)
	return cueFiles, yamlFiles, nil
}

// document is the format-independent form of a catalog, one entry per
// declared name.
type document struct {
	stores      map[string]storeDecl
	collections map[string]collectionDecl
	tasks       map[string]taskDecl
}

func newDocument() *document {
	return &document{
		stores:      map[string]storeDecl{},
		collections: map[string]collectionDecl{},
		tasks:       map[string]taskDecl{},
	}
}

type storeDecl struct {
	Path string
	Pos  token.Pos
}

type collectionDecl struct {
	Store   string
	Columns []store.Column
	Pos     token.Pos
}

type refDecl struct {
	Collection string
	Store      string
}

type taskDecl struct {
	Source    refDecl
	Target    refDecl
	Handler   string
	BatchSize *int
	OrderBy   *[]string
	FilterBy  map[string]any
	LastSync  map[string]any
	DependsOn []string
	Pos       token.Pos
}

// catalog converts the declarations into a Catalog, applying defaults and
// validating every task.
func (d *document) catalog() (*Catalog, []error) {
	var errs []error
	cat := &Catalog{}

	aliases := map[string]bool{ir.DefaultStore: true}
	for _, alias := range sortedKeys(d.stores) {
		decl := d.stores[alias]
		if decl.Path == "" {
			errs = append(errs, loadErr(ErrCodeInvalidStore, decl.Pos, "store %q: path is required", alias))
			continue
		}
		aliases[alias] = true
		cat.Stores = append(cat.Stores, store.StoreDef{Alias: alias, Path: decl.Path})
	}

	for _, name := range sortedKeys(d.collections) {
		decl := d.collections[name]
		alias := defaultString(decl.Store, ir.DefaultStore)
		if !aliases[alias] {
			errs = append(errs, loadErr(ErrCodeUnknownStore, decl.Pos, "collection %q: unknown store %q", name, alias))
			continue
		}
		if len(decl.Columns) == 0 {
			errs = append(errs, loadErr(ErrCodeInvalidStore, decl.Pos, "collection %q: at least one column is required", name))
			continue
		}
		cat.Collections = append(cat.Collections, Collection{Name: name, Store: alias, Columns: decl.Columns})
	}

	for _, name := range sortedKeys(d.tasks) {
		task, err := d.tasks[name].task(name)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		for _, alias := range []string{task.Source.Store, task.Target.Store} {
			if !aliases[alias] {
				errs = append(errs, loadErr(ErrCodeUnknownStore, d.tasks[name].Pos, "task %q: unknown store %q", name, alias))
			}
		}
		cat.Tasks = append(cat.Tasks, task)
	}
	return cat, errs
}

func (decl taskDecl) task(name string) (ir.Task, error) {
	t := ir.Task{
		Name: name,
		Source: ir.CollectionRef{
			Collection: decl.Source.Collection,
			Store:      defaultString(decl.Source.Store, ir.DefaultStore),
		},
		Target: ir.CollectionRef{
			Collection: decl.Target.Collection,
			Store:      defaultString(decl.Target.Store, ir.DefaultStore),
		},
		Handler:      decl.Handler,
		BatchSize:    ir.DefaultBatchSize,
		OrderBy:      ir.DefaultOrderBy(),
		Dependencies: decl.DependsOn,
	}
	if decl.BatchSize != nil {
		t.BatchSize = *decl.BatchSize
	}
	if decl.OrderBy != nil {
		t.OrderBy = ir.ParseOrderBy(*decl.OrderBy)
	}

	var err error
	if t.FilterBy, err = toObject(decl.FilterBy); err != nil {
		return ir.Task{}, loadErr(ErrCodeInvalidValue, decl.Pos, "task %q: filter_by: %v", name, err)
	}
	lastSync, err := toObject(decl.LastSync)
	if err != nil {
		return ir.Task{}, loadErr(ErrCodeInvalidValue, decl.Pos, "task %q: last_sync: %v", name, err)
	}
	t.LastSync = ir.Cursor(lastSync).Canonical()

	if err := t.Validate(); err != nil {
		var msgs []string
		var ve *ir.ValidationError
		for _, e := range unjoin(err) {
			if errors.As(e, &ve) {
				msgs = append(msgs, ve.Field+": "+ve.Message)
				continue
			}
			msgs = append(msgs, e.Error())
		}
		return ir.Task{}, loadErr(ErrCodeInvalidTask, decl.Pos, "task %q: %s", name, strings.Join(msgs, "; "))
	}
	return t, nil
}

func toObject(m map[string]any) (ir.IRObject, error) {
	if len(m) == 0 {
		return nil, nil
	}
	obj := make(ir.IRObject, len(m))
	for k, v := range m {
		iv, err := ir.FromGo(v)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", k, err)
		}
		obj[k] = iv
	}
	return obj, nil
}

func unjoin(err error) []error {
	if j, ok := err.(interface{ Unwrap() []error }); ok {
		return j.Unwrap()
	}
	return []error{err}
}

func defaultString(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

func toGoMap(obj ir.IRObject) (map[string]any, error) {
	if len(obj) == 0 {
		return nil, nil
	}
	out := make(map[string]any, len(obj))
	for k, v := range obj {
		gv, err := ir.ToGo(v)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", k, err)
		}
		out[k] = gv
	}
	return out, nil
}
