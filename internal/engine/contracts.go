package engine

import (
	"context"

	"github.com/roach88/tasksync/internal/ir"
	"github.com/roach88/tasksync/internal/queryir"
	"github.com/roach88/tasksync/internal/store"
)

// RecordStore is a physical store holding source and target collections.
// Implemented by *store.Store.
type RecordStore interface {
	// Fetch runs a bounded, ordered, filtered select.
	Fetch(ctx context.Context, q queryir.Select) ([]ir.Record, error)

	// InsertIfAbsent writes rec unless a record with the same identity exists.
	// Reports whether a write happened.
	InsertIfAbsent(ctx context.Context, collection string, rec ir.Record) (bool, error)

	// CollectionExists reports whether the named collection exists.
	CollectionExists(ctx context.Context, name string) (bool, error)
}

// Resolver maps a store alias to its RecordStore.
type Resolver func(alias string) (RecordStore, error)

// PoolResolver resolves aliases through a store pool.
func PoolResolver(p *store.Pool) Resolver {
	return func(alias string) (RecordStore, error) {
		s, err := p.Get(alias)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
}

// Target is the write side handed to a handler: one collection in one store.
type Target interface {
	// Put inserts rec if no record with its identity exists yet.
	// Reports whether a write happened. Must be idempotent.
	Put(ctx context.Context, rec ir.Record) (bool, error)
}

// collectionTarget adapts a RecordStore collection to Target.
type collectionTarget struct {
	store      RecordStore
	collection string
}

func (c collectionTarget) Put(ctx context.Context, rec ir.Record) (bool, error) {
	return c.store.InsertIfAbsent(ctx, c.collection, rec)
}

// NewTarget returns a Target writing into collection of rs.
func NewTarget(rs RecordStore, collection string) Target {
	return collectionTarget{store: rs, collection: collection}
}

// Handler applies one batch to the target.
//
// Contract:
//   - idempotent per record identity
//   - Finished iff Count < task.BatchSize
//   - LastSyncModel is the last record of the batch in order, set iff Count > 0
type Handler func(ctx context.Context, batch []ir.Record, target Target, task ir.Task) (ir.SyncResult, error)

// HandlerResolver looks up a handler by its registry identifier.
type HandlerResolver interface {
	Resolve(name string) (Handler, error)
}

// CursorStore persists task cursors. Implemented by *store.Store.
type CursorStore interface {
	SaveCursor(ctx context.Context, task string, c ir.Cursor) error
}

// StepLog records every step of a run. Implemented by *store.Store.
type StepLog interface {
	AppendStep(ctx context.Context, step ir.StepRecord) error
}

// TaskLocker serializes steps of one task across processes.
//
// TryLock reports ok=false without error when another holder has the key.
// The returned unlock must be called once the step is done.
type TaskLocker interface {
	TryLock(ctx context.Context, key string) (unlock func(context.Context) error, ok bool, err error)
}
