package sync

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/kmjayadeep/baskit-sub000/internal/model"
	"github.com/kmjayadeep/baskit-sub000/internal/telemetry"
)

// pullLoop consumes remote snapshots and applies them locally until
// the run context is cancelled
func (e *defaultEngine) pullLoop(ctx context.Context, r *run, ch <-chan []model.List) {
	for {
		select {
		case <-ctx.Done():
			return
		case snapshot, ok := <-ch:
			if !ok {
				e.streamClosed(ctx, r, directionPull)
				return
			}
			start := time.Now()
			// Each snapshot is its own trace. The run outlives
			// whatever request context started it.
			spanCtx, span := telemetry.StartSpan(ctx, e.tracer, "sync.pull",
				trace.WithNewRoot(),
				trace.WithAttributes(
					telemetry.AttrDirection.String(directionPull),
					telemetry.AttrListCount.Int(len(snapshot)),
				))
			e.applyRemoteSnapshot(spanCtx, snapshot)
			span.End()
			e.observeSnapshot(ctx, directionPull, snapshot, time.Since(start))
		}
	}
}

// applyRemoteSnapshot reconciles one access-filtered remote snapshot
// against the local store.
//
// Remote lists absent locally are inserted verbatim, which is how a
// newly shared list first appears on a device. Lists present on both
// sides are merged and written back only when the comparator reports a
// real difference, so a write never re-triggers itself. Lists present
// only locally are left untouched.
func (e *defaultEngine) applyRemoteSnapshot(ctx context.Context, remoteLists []model.List) {
	locals, err := e.local.GetAll(ctx)
	if err != nil {
		// Skip the whole emission. The next one carries full state
		// again.
		slog.Error("Failed to read local lists", "error", err)
		e.recordEntityFailure(ctx, directionPull, "get-all")
		return
	}

	localByID := make(map[string]model.List, len(locals))
	for _, l := range locals {
		localByID[l.ID] = l
	}

	for _, rl := range remoteLists {
		local, ok := localByID[rl.ID]
		if !ok {
			if err := e.local.Upsert(ctx, rl); err != nil {
				slog.Error("Failed to insert remote list",
					"list_id", rl.ID,
					"error", err)
				e.recordEntityFailure(ctx, directionPull, "insert")
			}
			continue
		}

		merged := MergeLists(local, rl)
		if !ShouldUpdateLocal(local, merged) {
			continue
		}

		if err := e.local.Upsert(ctx, merged); err != nil {
			slog.Error("Failed to apply merged list",
				"list_id", rl.ID,
				"error", err)
			e.recordEntityFailure(ctx, directionPull, "apply")
		}
	}
}
