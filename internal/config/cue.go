package config

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"

	"github.com/roach88/tasksync/internal/store"
)

// loadCUE builds the CUE package in dir and walks its store, collection and
// task structs.
func loadCUE(dir string) (*document, []error) {
	ctx := cuecontext.New()
	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, []error{loadErr(ErrCodeLoadFailed, token.NoPos, "no CUE instances loaded")}
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, []error{cueError(ErrCodeLoadFailed, inst.Err)}
	}

	value := ctx.BuildInstance(inst)
	if err := value.Err(); err != nil {
		return nil, []error{cueError(ErrCodeBuildFailed, err)}
	}
	if err := value.Validate(); err != nil {
		return nil, []error{cueError(ErrCodeBuildFailed, err)}
	}

	doc := newDocument()
	var errs []error
	each := func(section string, fn func(label string, v cue.Value) error) {
		sv := value.LookupPath(cue.ParsePath(section))
		if !sv.Exists() {
			return
		}
		iter, err := sv.Fields()
		if err != nil {
			errs = append(errs, cueError(ErrCodeGeneric, err))
			return
		}
		for iter.Next() {
			if err := fn(iter.Label(), iter.Value()); err != nil {
				errs = append(errs, err)
			}
		}
	}

	each("store", func(alias string, v cue.Value) error {
		path, err := optString(v, "path")
		if err != nil {
			return err
		}
		doc.stores[alias] = storeDecl{Path: path, Pos: v.Pos()}
		return nil
	})
	each("collection", func(name string, v cue.Value) error {
		decl, err := cueCollection(v)
		if err != nil {
			return err
		}
		doc.collections[name] = decl
		return nil
	})
	each("task", func(name string, v cue.Value) error {
		decl, err := cueTask(v)
		if err != nil {
			return err
		}
		doc.tasks[name] = decl
		return nil
	})

	return doc, errs
}

func cueCollection(v cue.Value) (collectionDecl, error) {
	decl := collectionDecl{Pos: v.Pos()}
	var err error
	if decl.Store, err = optString(v, "store"); err != nil {
		return decl, err
	}
	cols := v.LookupPath(cue.ParsePath("columns"))
	if !cols.Exists() {
		return decl, nil
	}
	iter, err := cols.List()
	if err != nil {
		return decl, cueError(ErrCodeInvalidStore, err)
	}
	for iter.Next() {
		var col store.Column
		if col.Name, err = optString(iter.Value(), "name"); err != nil {
			return decl, err
		}
		if col.Type, err = optString(iter.Value(), "type"); err != nil {
			return decl, err
		}
		decl.Columns = append(decl.Columns, col)
	}
	return decl, nil
}

func cueTask(v cue.Value) (taskDecl, error) {
	decl := taskDecl{Pos: v.Pos()}
	var err error

	for _, ref := range []struct {
		field string
		out   *refDecl
	}{{"source", &decl.Source}, {"target", &decl.Target}} {
		rv := v.LookupPath(cue.ParsePath(ref.field))
		if !rv.Exists() {
			continue
		}
		if ref.out.Collection, err = optString(rv, "collection"); err != nil {
			return decl, err
		}
		if ref.out.Store, err = optString(rv, "store"); err != nil {
			return decl, err
		}
	}

	if decl.Handler, err = optString(v, "handler"); err != nil {
		return decl, err
	}

	if bv := v.LookupPath(cue.ParsePath("batch_size")); bv.Exists() {
		n, err := bv.Int64()
		if err != nil {
			return decl, cueError(ErrCodeInvalidValue, err)
		}
		size := int(n)
		decl.BatchSize = &size
	}

	if ov := v.LookupPath(cue.ParsePath("order_by")); ov.Exists() {
		keys, err := stringList(ov)
		if err != nil {
			return decl, err
		}
		decl.OrderBy = &keys
	}

	if dv := v.LookupPath(cue.ParsePath("depends_on")); dv.Exists() {
		if decl.DependsOn, err = stringList(dv); err != nil {
			return decl, err
		}
	}

	if decl.FilterBy, err = scalarMap(v, "filter_by"); err != nil {
		return decl, err
	}
	if decl.LastSync, err = scalarMap(v, "last_sync"); err != nil {
		return decl, err
	}
	return decl, nil
}

// optString returns the string at field, or "" if the field is absent.
func optString(v cue.Value, field string) (string, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return "", nil
	}
	s, err := fv.String()
	if err != nil {
		return "", cueError(ErrCodeInvalidValue, err)
	}
	return s, nil
}

func stringList(v cue.Value) ([]string, error) {
	iter, err := v.List()
	if err != nil {
		return nil, cueError(ErrCodeInvalidValue, err)
	}
	out := []string{}
	for iter.Next() {
		s, err := iter.Value().String()
		if err != nil {
			return nil, cueError(ErrCodeInvalidValue, err)
		}
		out = append(out, s)
	}
	return out, nil
}

// scalarMap reads a flat struct of scalars at field.
func scalarMap(v cue.Value, field string) (map[string]any, error) {
	mv := v.LookupPath(cue.ParsePath(field))
	if !mv.Exists() {
		return nil, nil
	}
	iter, err := mv.Fields()
	if err != nil {
		return nil, cueError(ErrCodeInvalidValue, err)
	}
	out := map[string]any{}
	for iter.Next() {
		fv := iter.Value()
		var val any
		switch fv.IncompleteKind() {
		case cue.StringKind:
			val, err = fv.String()
		case cue.IntKind:
			val, err = fv.Int64()
		case cue.BoolKind:
			val, err = fv.Bool()
		case cue.FloatKind, cue.NumberKind:
			val, err = fv.Float64()
		case cue.NullKind:
			val = nil
		default:
			return nil, loadErr(ErrCodeInvalidValue, fv.Pos(), "%s.%s: unsupported value kind %s",
				field, iter.Label(), fv.IncompleteKind())
		}
		if err != nil {
			return nil, cueError(ErrCodeInvalidValue, err)
		}
		out[iter.Label()] = val
	}
	return out, nil
}

// cueError converts a CUE error into a LoadError carrying its first position.
func cueError(code string, err error) *LoadError {
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return loadErr(code, token.NoPos, "%v", err)
	}
	first := errs[0]
	pos := token.NoPos
	if positions := cueerrors.Positions(first); len(positions) > 0 {
		pos = positions[0]
	}
	return &LoadError{Code: code, Message: fmt.Sprint(first), Pos: pos}
}
