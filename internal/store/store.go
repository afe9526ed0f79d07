// Package store defines the contracts of the two list stores the sync
// engine reconciles: the on-device local store and the shared remote
// store. Implementations live in the memory, sqlite, and postgres
// subpackages; the engine depends on these interfaces only.
package store

//go:generate mockgen -destination=mocks/mock_store.go -package=mocks -source=store.go

import (
	"context"
	"errors"

	"github.com/kmjayadeep/baskit-sub000/internal/model"
)

var (
	// ErrNotFound indicates the requested list does not exist.
	ErrNotFound = errors.New("list not found")

	// ErrAlreadyExists indicates a create collided with an existing
	// list id.
	ErrAlreadyExists = errors.New("list already exists")
)

// LocalStore is the on-device store. It has a single writer (the local
// application plus the engine itself), is always reachable, and keeps
// tombstones until the engine confirms their deletion remotely.
type LocalStore interface {
	// WatchAll emits the full local collection, tombstones included:
	// once at subscription time and again after every mutation. The
	// channel closes when ctx is canceled or when the stream fails
	// unrecoverably. Emitted snapshots are value copies; mutating one
	// never affects the store or other subscribers.
	WatchAll(ctx context.Context) (<-chan []model.List, error)

	// GetAll returns the current collection, tombstones included.
	GetAll(ctx context.Context) ([]model.List, error)

	// Upsert writes the whole list, items included, replacing any
	// stored version with the same id.
	Upsert(ctx context.Context, list model.List) error

	// HardDelete physically removes the list leaving no tombstone
	// behind. Deleting an absent list is not an error.
	HardDelete(ctx context.Context, id string) error
}

// RemoteStore is the shared multi-writer store. Any number of devices
// write to it concurrently; reachability is intermittent and every
// operation may fail transiently.
type RemoteStore interface {
	// WatchAccessible emits the full collection the principal may
	// access (owned or shared with), once at subscription time and
	// again whenever it changes. List tombstones are excluded by query
	// construction; item tombstones ride along inside list payloads.
	WatchAccessible(ctx context.Context, principalID string) (<-chan []model.List, error)

	// Create pushes a new list verbatim, items included, keyed by the
	// client-generated id. The id is never regenerated. Returns
	// ErrAlreadyExists when the id is already taken.
	Create(ctx context.Context, list model.List) error

	// UpdateMetadata writes the metadata projection of a list; the
	// remote item collection is left untouched.
	UpdateMetadata(ctx context.Context, meta model.ListMetadata) error

	// PushItem creates or replaces a single item within a list, keyed
	// by the item's client-generated id.
	PushItem(ctx context.Context, listID string, item model.Item) error

	// DeleteItem removes a single item from a list. Deleting an absent
	// item is not an error.
	DeleteItem(ctx context.Context, listID, itemID string) error

	// Delete removes the whole list. Deleting an absent list is not an
	// error.
	Delete(ctx context.Context, listID string) error
}
