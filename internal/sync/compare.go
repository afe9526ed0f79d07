package sync

import (
	"time"

	"github.com/kmjayadeep/baskit-sub000/internal/model"
)

// ShouldUpdateLocal reports whether writing incoming over current would
// materially change the stored list. The comparator is what makes
// convergence detectable: once a merge result is judged equal to the
// stored copy the engine must stop writing, or its own write would
// re-trigger the local change stream and loop forever.
//
// Compared fields are name, description, color, updatedAt, deletedAt,
// and the item set (order-independent, keyed by ID). Item equality
// covers ID, name, completion flag, creation time, and tombstone
// marker; quantity and completedAt are intentionally left out, so a
// difference in those fields alone never triggers a local write.
func ShouldUpdateLocal(current, incoming model.List) bool {
	if current.Name != incoming.Name ||
		current.Description != incoming.Description ||
		current.Color != incoming.Color ||
		!clocksEqual(current.UpdatedAt, incoming.UpdatedAt) ||
		!clocksEqual(current.DeletedAt, incoming.DeletedAt) {
		return true
	}
	return !itemSetsEqual(current.Items, incoming.Items)
}

func itemSetsEqual(a, b []model.Item) bool {
	if len(a) != len(b) {
		return false
	}
	index := make(map[string]model.Item, len(b))
	for _, it := range b {
		index[it.ID] = it
	}
	for _, it := range a {
		other, ok := index[it.ID]
		if !ok || !itemsEquivalent(it, other) {
			return false
		}
	}
	return true
}

func itemsEquivalent(a, b model.Item) bool {
	return a.ID == b.ID &&
		a.Name == b.Name &&
		a.IsCompleted == b.IsCompleted &&
		a.CreatedAt.Equal(b.CreatedAt) &&
		clocksEqual(a.DeletedAt, b.DeletedAt)
}

func clocksEqual(a, b *time.Time) bool {
	switch {
	case a == nil && b == nil:
		return true
	case a == nil || b == nil:
		return false
	default:
		return a.Equal(*b)
	}
}
