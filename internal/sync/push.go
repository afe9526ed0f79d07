package sync

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/kmjayadeep/baskit-sub000/internal/model"
	"github.com/kmjayadeep/baskit-sub000/internal/store"
	"github.com/kmjayadeep/baskit-sub000/internal/telemetry"
)

// pushLoop consumes local snapshots and propagates them to the remote
// store until the run context is cancelled
func (e *defaultEngine) pushLoop(ctx context.Context, r *run, ch <-chan []model.List) {
	for {
		select {
		case <-ctx.Done():
			return
		case snapshot, ok := <-ch:
			if !ok {
				e.streamClosed(ctx, r, directionPush)
				return
			}
			start := time.Now()
			// Each snapshot is its own trace. The run outlives
			// whatever request context started it.
			spanCtx, span := telemetry.StartSpan(ctx, e.tracer, "sync.push",
				trace.WithNewRoot(),
				trace.WithAttributes(
					telemetry.AttrDirection.String(directionPush),
					telemetry.AttrListCount.Int(len(snapshot)),
				))
			e.pushSnapshot(spanCtx, snapshot)
			span.End()
			e.observeSnapshot(ctx, directionPush, snapshot, time.Since(start))
		}
	}
}

// pushSnapshot propagates one full local snapshot to the remote store.
// Lists are processed independently so one failure never aborts the
// batch.
func (e *defaultEngine) pushSnapshot(ctx context.Context, lists []model.List) {
	for _, l := range lists {
		if l.Deleted() {
			e.pushListDeletion(ctx, l)
			continue
		}
		e.pushList(ctx, l)
	}
}

// pushListDeletion propagates a list tombstone. The local copy is hard
// deleted only after the remote store confirms, so an unconfirmed
// tombstone is retried on the next emission.
func (e *defaultEngine) pushListDeletion(ctx context.Context, l model.List) {
	if err := e.remote.Delete(ctx, l.ID); err != nil {
		slog.Error("Failed to push list deletion",
			"list_id", l.ID,
			"error", err)
		e.recordEntityFailure(ctx, directionPush, "delete")
		return
	}

	if err := e.local.HardDelete(ctx, l.ID); err != nil {
		slog.Error("Failed to purge local list tombstone",
			"list_id", l.ID,
			"error", err)
		e.recordEntityFailure(ctx, directionPush, "purge")
	}
}

// pushList propagates an active list. Creation is attempted first; when
// the remote copy already exists the push falls back to a metadata
// update plus per-item writes.
func (e *defaultEngine) pushList(ctx context.Context, l model.List) {
	err := e.remote.Create(ctx, l)
	if err == nil {
		return
	}
	if !errors.Is(err, store.ErrAlreadyExists) {
		slog.Error("Failed to create remote list",
			"list_id", l.ID,
			"error", err)
		e.recordEntityFailure(ctx, directionPush, "create")
		return
	}

	if err := e.remote.UpdateMetadata(ctx, l.Metadata()); err != nil {
		slog.Error("Failed to update remote list metadata",
			"list_id", l.ID,
			"error", err)
		e.recordEntityFailure(ctx, directionPush, "update-metadata")
		// Items are still pushed. Metadata and item state diverge
		// independently and the next emission retries the metadata.
	}

	confirmed := e.pushItems(ctx, l)
	if len(confirmed) > 0 {
		e.purgeItemTombstones(ctx, l, confirmed)
	}
}

// pushItems writes every active item and deletes every tombstoned item
// remotely. It returns the ids of tombstones the remote store
// confirmed deleted.
func (e *defaultEngine) pushItems(ctx context.Context, l model.List) []string {
	var confirmed []string
	for _, it := range l.Items {
		if it.Deleted() {
			if err := e.remote.DeleteItem(ctx, l.ID, it.ID); err != nil {
				slog.Error("Failed to delete remote item",
					"list_id", l.ID,
					"item_id", it.ID,
					"error", err)
				e.recordEntityFailure(ctx, directionPush, "delete-item")
				continue
			}
			confirmed = append(confirmed, it.ID)
			continue
		}

		if err := e.remote.PushItem(ctx, l.ID, it); err != nil {
			slog.Error("Failed to push item",
				"list_id", l.ID,
				"item_id", it.ID,
				"error", err)
			e.recordEntityFailure(ctx, directionPush, "push-item")
		}
	}
	return confirmed
}

// purgeItemTombstones rewrites the local list without the item
// tombstones whose remote deletion was confirmed. Unconfirmed
// tombstones stay behind for the next cycle.
func (e *defaultEngine) purgeItemTombstones(ctx context.Context, l model.List, confirmed []string) {
	confirmedSet := make(map[string]struct{}, len(confirmed))
	for _, id := range confirmed {
		confirmedSet[id] = struct{}{}
	}

	kept := make([]model.Item, 0, len(l.Items))
	for _, it := range l.Items {
		if it.Deleted() {
			if _, ok := confirmedSet[it.ID]; ok {
				continue
			}
		}
		kept = append(kept, it)
	}

	purged := l.Clone()
	purged.Items = kept
	if err := e.local.Upsert(ctx, purged); err != nil {
		slog.Error("Failed to purge local item tombstones",
			"list_id", l.ID,
			"error", err)
		e.recordEntityFailure(ctx, directionPush, "purge-items")
	}
}

// recordEntityFailure reports a per-entity store failure
func (e *defaultEngine) recordEntityFailure(ctx context.Context, direction, op string) {
	if e.metrics != nil {
		e.metrics.RecordEntityFailure(ctx, direction, op)
	}
}
