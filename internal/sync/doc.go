// Package sync implements the bidirectional synchronization engine that
// keeps the local list store and the remote list store consistent.
//
// The package separates the pure reconciliation logic from the side
// effects that apply it:
//
// # Resolver
//
//   - DetermineSyncAction: entity-level direction decision between a
//     local and a remote version, last-write-wins with a fixed clock
//     tolerance and tombstone precedence
//   - MergeLists: field-level merge of a diverged list pair, with a
//     per-item merge keyed by stable item IDs
//   - ShouldUpdateLocal: deep change comparator that suppresses no-op
//     writes so merge echoes cannot loop forever
//
// # Engine
//
// The Engine owns two long-lived snapshot subscriptions (local watch,
// remote watch), applies the resolver's decisions, and performs the
// push/pull side effects against the two stores. It drives a small
// observable state machine (idle, syncing, synced, error) and isolates
// failures per entity: one list's failure never aborts the cycle for
// its siblings.
//
// The lifecycle subpackage starts and stops the Engine in reaction to
// identity changes and application resume events.
package sync
