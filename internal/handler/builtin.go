package handler

import (
	"context"
	"fmt"
	"time"

	"github.com/roach88/tasksync/internal/engine"
	"github.com/roach88/tasksync/internal/ir"
)

const (
	// CopyName identifies the handler copying every field.
	CopyName = "copy"

	// StockActionsName identifies the raw stock action projection.
	StockActionsName = "stock.raw_actions"
)

// Copy writes every record of the batch unchanged.
var Copy = Project()

// StockActions copies raw stock actions keeping only the fields of the
// stock action collection.
var StockActions = Project("id", "update_datetime", "sender", "stock_number")

// Project returns a handler writing only fields of each record, plus its
// identity. With no fields, records are written whole.
//
// Records already present in the target are counted but not rewritten.
// The batch is finished when it holds fewer records than the batch size.
func Project(fields ...string) engine.Handler {
	return func(ctx context.Context, batch []ir.Record, target engine.Target, task ir.Task) (ir.SyncResult, error) {
		res := ir.SyncResult{Start: time.Now().UTC()}
		for _, rec := range batch {
			if err := ctx.Err(); err != nil {
				return ir.SyncResult{}, err
			}
			out, err := project(rec, fields)
			if err != nil {
				return ir.SyncResult{}, err
			}
			applied, err := target.Put(ctx, out)
			if err != nil {
				return ir.SyncResult{}, fmt.Errorf("record %v: %w", rec.ID(), err)
			}
			if applied {
				res.Applied++
			}
			res.Count++
			res.LastSyncModel = rec
		}
		res.Finished = res.Count < task.BatchSize
		res.End = time.Now().UTC()
		return res, nil
	}
}

func project(rec ir.Record, fields []string) (ir.Record, error) {
	if len(fields) == 0 {
		return rec.Clone(), nil
	}
	out := make(ir.Record, len(fields)+1)
	out[ir.IdentityField] = rec.ID()
	for _, f := range fields {
		v, ok := rec[f]
		if !ok {
			return nil, fmt.Errorf("record %v has no field %q", rec.ID(), f)
		}
		out[f] = v
	}
	return out, nil
}
