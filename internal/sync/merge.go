package sync

import (
	"time"

	"github.com/kmjayadeep/baskit-sub000/internal/model"
)

// MergeLists produces the reconciled version of a list that diverged
// between the local and the remote store.
//
// Scalar metadata (name, description, color) and the updatedAt clock
// come wholesale from the side with the later updatedAt; ties resolve
// toward local, and a side without a clock loses to a side with one.
// Members are unioned with set semantics. Items are merged per item,
// keyed by ID, because item state and list metadata routinely diverge
// independently (a share operation bumps members and updatedAt while
// another device is mid-edit of an item).
//
// Identity fields (ID, OwnerID, CreatedAt) and the local tombstone
// marker are taken from the local side; propagating a local deletion
// is the push direction's job, not the merge's.
func MergeLists(local, remote model.List) model.List {
	merged := local.Clone()

	if remoteMetadataWins(local.UpdatedAt, remote.UpdatedAt) {
		merged.Name = remote.Name
		merged.Description = remote.Description
		merged.Color = remote.Color
		merged.UpdatedAt = copyClock(remote.UpdatedAt)
	}

	merged.Members = unionMembers(local.Members, remote.Members)
	merged.Items = mergeItems(local.Items, remote.Items)
	return merged
}

// remoteMetadataWins reports whether the remote side's clock is
// strictly later. Ties and a missing remote clock keep the local side.
func remoteMetadataWins(localUpdated, remoteUpdated *time.Time) bool {
	switch {
	case remoteUpdated == nil:
		return false
	case localUpdated == nil:
		return true
	default:
		return remoteUpdated.After(*localUpdated)
	}
}

// unionMembers returns the set union of two member collections. Local
// order comes first, unseen remote members are appended, duplicates are
// dropped.
func unionMembers(local, remote []string) []string {
	seen := make(map[string]struct{}, len(local)+len(remote))
	out := make([]string, 0, len(local)+len(remote))
	for _, members := range [][]string{local, remote} {
		for _, m := range members {
			if _, ok := seen[m]; ok {
				continue
			}
			seen[m] = struct{}{}
			out = append(out, m)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// mergeItems merges the item collections of a local/remote list pair.
//
// The working set is seeded with the non-tombstoned local items. Each
// remote item absent from the working set is inserted unless it is
// itself a tombstone, so an item created and deleted remotely never
// surfaces here. Each remote item present in the working set goes
// through DetermineSyncAction with the items' creation times as their
// version clocks: ActionUseRemote replaces the entry, or removes it
// when the remote side is a tombstone; every other action keeps the
// local entry wholesale. The merged output contains no tombstones.
func mergeItems(localItems, remoteItems []model.Item) []model.Item {
	order := make([]string, 0, len(localItems)+len(remoteItems))
	working := make(map[string]model.Item, len(localItems)+len(remoteItems))

	for _, it := range localItems {
		if it.Deleted() {
			continue
		}
		working[it.ID] = it.Clone()
		order = append(order, it.ID)
	}

	for _, rit := range remoteItems {
		lit, present := working[rit.ID]
		if !present {
			if rit.Deleted() {
				continue
			}
			working[rit.ID] = rit.Clone()
			order = append(order, rit.ID)
			continue
		}

		action := DetermineSyncAction(itemClock(lit), itemClock(rit), lit.DeletedAt, rit.DeletedAt)
		if action != ActionUseRemote {
			continue
		}
		if rit.Deleted() {
			delete(working, rit.ID)
			continue
		}
		working[rit.ID] = rit.Clone()
	}

	out := make([]model.Item, 0, len(order))
	for _, id := range order {
		if it, ok := working[id]; ok {
			out = append(out, it)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// itemClock returns the item's version clock. Creation time serves as
// the clock; a zero creation time counts as no clock at all.
func itemClock(it model.Item) *time.Time {
	if it.CreatedAt.IsZero() {
		return nil
	}
	t := it.CreatedAt
	return &t
}

func copyClock(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
