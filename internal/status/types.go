package status

import "time"

// State represents the current state of the sync engine.
type State string

const (
	// StateIdle means no synchronization is running and none has been requested
	StateIdle State = "idle"

	// StateSyncing means subscriptions are being established
	StateSyncing State = "syncing"

	// StateSynced means both sync directions are established and running
	StateSynced State = "synced"

	// StateError means the engine stopped after a failure to establish a direction
	StateError State = "error"
)

// Document is the persisted view of the engine's current state.
// It survives process restarts so operators can inspect the last
// known condition of the sync loop.
type Document struct {
	// State is the engine state at the time of the last save
	State State `json:"state"`

	// Message provides additional information about the state
	Message string `json:"message,omitempty"`

	// PrincipalID is the authenticated principal the engine was syncing for
	PrincipalID string `json:"principalId,omitempty"`

	// LastTransition is the timestamp of the last state change
	LastTransition *time.Time `json:"lastTransition,omitempty"`

	// LastSyncedAt is the timestamp of the last successful transition to synced
	LastSyncedAt *time.Time `json:"lastSyncedAt,omitempty"`

	// LastError is the failure that produced the error state, if any
	LastError string `json:"lastError,omitempty"`

	// ListCount is the number of lists observed in the most recent
	// snapshot from either direction
	ListCount int `json:"listCount,omitempty"`
}
