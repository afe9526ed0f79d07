package sync

import "time"

// clockTolerance is the window within which two version clocks count as
// the same edit. Near-simultaneous writes of one logical change (a
// merge echo landing on the other replica) differ by serialization and
// clock jitter only; treating them as distinct would make the replicas
// re-trigger each other indefinitely.
const clockTolerance = 1000 * time.Millisecond

// Action is the outcome of comparing the local and the remote version
// of one entity.
type Action int

const (
	// ActionNone leaves both sides untouched.
	ActionNone Action = iota
	// ActionUseLocal propagates the local version outward.
	ActionUseLocal
	// ActionUseRemote applies the remote version locally.
	ActionUseRemote
	// ActionMerge asks for a field-level merge of both versions. The
	// entity-level decision never produces it; the item-merge pass
	// treats it like ActionNone.
	ActionMerge
)

// String implements fmt.Stringer.
func (a Action) String() string {
	switch a {
	case ActionNone:
		return "none"
	case ActionUseLocal:
		return "useLocal"
	case ActionUseRemote:
		return "useRemote"
	case ActionMerge:
		return "merge"
	default:
		return "unknown"
	}
}

// DetermineSyncAction decides how to reconcile one entity that exists
// on both sides. localUpdated and remoteUpdated are the sides' version
// clocks (for items the creation time serves as the clock), localDeleted
// and remoteDeleted their tombstone markers. The rules apply in order:
//
//  1. deleted on both sides: already converged
//  2. deleted locally only: the deletion propagates outward
//  3. deleted remotely only: the deletion propagates inward
//  4. no clock on either side: nothing to compare
//  5. a side without a clock loses to a side with one
//  6. clocks within clockTolerance count as the same edit
//  7. otherwise the chronologically later side wins
//
// The function is pure and total; callers invoke it for every compared
// list pair and, independently, for every item pair within a list.
func DetermineSyncAction(localUpdated, remoteUpdated, localDeleted, remoteDeleted *time.Time) Action {
	switch {
	case localDeleted != nil && remoteDeleted != nil:
		return ActionNone
	case localDeleted != nil:
		return ActionUseLocal
	case remoteDeleted != nil:
		return ActionUseRemote
	}

	switch {
	case localUpdated == nil && remoteUpdated == nil:
		return ActionNone
	case localUpdated == nil:
		return ActionUseRemote
	case remoteUpdated == nil:
		return ActionUseLocal
	}

	delta := localUpdated.Sub(*remoteUpdated)
	if delta < 0 {
		delta = -delta
	}
	if delta <= clockTolerance {
		return ActionNone
	}

	if localUpdated.After(*remoteUpdated) {
		return ActionUseLocal
	}
	return ActionUseRemote
}
