// Package memory provides in-memory implementations of the store
// contracts. They back the unit and integration tests and let the
// daemon run without external infrastructure.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/kmjayadeep/baskit-sub000/internal/model"
	"github.com/kmjayadeep/baskit-sub000/internal/store"
)

// LocalStore is an in-memory store.LocalStore.
type LocalStore struct {
	mu     sync.RWMutex
	lists  map[string]model.List
	fanout *store.Fanout
}

var _ store.LocalStore = (*LocalStore)(nil)

// NewLocalStore returns an empty local store.
func NewLocalStore() *LocalStore {
	return &LocalStore{
		lists:  make(map[string]model.List),
		fanout: store.NewFanout(),
	}
}

// WatchAll implements store.LocalStore.
func (s *LocalStore) WatchAll(ctx context.Context) (<-chan []model.List, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.fanout.Subscribe(ctx, s.snapshotLocked()), nil
}

// GetAll implements store.LocalStore.
func (s *LocalStore) GetAll(_ context.Context) ([]model.List, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked(), nil
}

// Upsert implements store.LocalStore.
func (s *LocalStore) Upsert(_ context.Context, list model.List) error {
	if list.ID == "" {
		return fmt.Errorf("upsert: list id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.lists[list.ID] = list.Clone()
	s.fanout.Publish(s.snapshotLocked())
	return nil
}

// HardDelete implements store.LocalStore.
func (s *LocalStore) HardDelete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.lists[id]; !ok {
		return nil
	}
	delete(s.lists, id)
	s.fanout.Publish(s.snapshotLocked())
	return nil
}

// snapshotLocked returns the collection ordered by id. Callers must
// hold at least the read lock.
func (s *LocalStore) snapshotLocked() []model.List {
	out := make([]model.List, 0, len(s.lists))
	for _, l := range s.lists {
		out = append(out, l.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
