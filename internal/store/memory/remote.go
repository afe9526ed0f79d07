package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/kmjayadeep/baskit-sub000/internal/model"
	"github.com/kmjayadeep/baskit-sub000/internal/store"
)

// RemoteStore is an in-memory store.RemoteStore. A single instance can
// be shared by several engines to exercise multi-writer scenarios, and
// it offers error-injection hooks so tests can simulate remote
// failures at entity and item granularity.
type RemoteStore struct {
	mu       sync.RWMutex
	lists    map[string]model.List
	watchers map[string]*store.Fanout

	watchErr  error
	writeErrs map[string]error
	itemErrs  map[string]map[string]error
}

var _ store.RemoteStore = (*RemoteStore)(nil)

// NewRemoteStore returns an empty remote store.
func NewRemoteStore() *RemoteStore {
	return &RemoteStore{
		lists:     make(map[string]model.List),
		watchers:  make(map[string]*store.Fanout),
		writeErrs: make(map[string]error),
		itemErrs:  make(map[string]map[string]error),
	}
}

// SetWatchError makes subsequent WatchAccessible calls fail with err.
// A nil err clears the injection.
func (s *RemoteStore) SetWatchError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.watchErr = err
}

// SetWriteError makes write operations touching the given list fail
// with err. A nil err clears the injection.
func (s *RemoteStore) SetWriteError(listID string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.writeErrs, listID)
		return
	}
	s.writeErrs[listID] = err
}

// SetItemWriteError makes PushItem and DeleteItem for the given item
// fail with err while leaving the list's other items untouched. A nil
// err clears the injection.
func (s *RemoteStore) SetItemWriteError(listID, itemID string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		if m, ok := s.itemErrs[listID]; ok {
			delete(m, itemID)
			if len(m) == 0 {
				delete(s.itemErrs, listID)
			}
		}
		return
	}
	if s.itemErrs[listID] == nil {
		s.itemErrs[listID] = make(map[string]error)
	}
	s.itemErrs[listID][itemID] = err
}

// WatchAccessible implements store.RemoteStore.
func (s *RemoteStore) WatchAccessible(ctx context.Context, principalID string) (<-chan []model.List, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.watchErr != nil {
		return nil, s.watchErr
	}

	f, ok := s.watchers[principalID]
	if !ok {
		f = store.NewFanout()
		s.watchers[principalID] = f
	}
	return f.Subscribe(ctx, s.accessibleLocked(principalID)), nil
}

// Create implements store.RemoteStore.
func (s *RemoteStore) Create(_ context.Context, list model.List) error {
	if list.ID == "" {
		return fmt.Errorf("create: list id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.writeErrs[list.ID]; err != nil {
		return err
	}
	if _, ok := s.lists[list.ID]; ok {
		return fmt.Errorf("create list %q: %w", list.ID, store.ErrAlreadyExists)
	}
	s.lists[list.ID] = list.Clone()
	s.broadcastLocked()
	return nil
}

// UpdateMetadata implements store.RemoteStore.
func (s *RemoteStore) UpdateMetadata(_ context.Context, meta model.ListMetadata) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.writeErrs[meta.ID]; err != nil {
		return err
	}
	current, ok := s.lists[meta.ID]
	if !ok {
		return fmt.Errorf("update list %q: %w", meta.ID, store.ErrNotFound)
	}

	current.Name = meta.Name
	current.Description = meta.Description
	current.Color = meta.Color
	current.Members = append([]string(nil), meta.Members...)
	if meta.UpdatedAt != nil {
		t := *meta.UpdatedAt
		current.UpdatedAt = &t
	} else {
		current.UpdatedAt = nil
	}
	s.lists[meta.ID] = current
	s.broadcastLocked()
	return nil
}

// PushItem implements store.RemoteStore.
func (s *RemoteStore) PushItem(_ context.Context, listID string, item model.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.writeErrs[listID]; err != nil {
		return err
	}
	if err := s.itemErrs[listID][item.ID]; err != nil {
		return err
	}
	current, ok := s.lists[listID]
	if !ok {
		return fmt.Errorf("push item to list %q: %w", listID, store.ErrNotFound)
	}

	replaced := false
	for i, it := range current.Items {
		if it.ID == item.ID {
			current.Items[i] = item.Clone()
			replaced = true
			break
		}
	}
	if !replaced {
		current.Items = append(current.Items, item.Clone())
	}
	s.lists[listID] = current
	s.broadcastLocked()
	return nil
}

// DeleteItem implements store.RemoteStore.
func (s *RemoteStore) DeleteItem(_ context.Context, listID, itemID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.writeErrs[listID]; err != nil {
		return err
	}
	if err := s.itemErrs[listID][itemID]; err != nil {
		return err
	}
	current, ok := s.lists[listID]
	if !ok {
		return fmt.Errorf("delete item from list %q: %w", listID, store.ErrNotFound)
	}

	for i, it := range current.Items {
		if it.ID == itemID {
			current.Items = append(current.Items[:i], current.Items[i+1:]...)
			s.lists[listID] = current
			s.broadcastLocked()
			break
		}
	}
	return nil
}

// Delete implements store.RemoteStore.
func (s *RemoteStore) Delete(_ context.Context, listID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.writeErrs[listID]; err != nil {
		return err
	}
	if _, ok := s.lists[listID]; !ok {
		return nil
	}
	delete(s.lists, listID)
	s.broadcastLocked()
	return nil
}

// GetList returns a copy of the stored list, for test assertions.
func (s *RemoteStore) GetList(id string) (model.List, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.lists[id]
	if !ok {
		return model.List{}, false
	}
	return l.Clone(), true
}

// broadcastLocked publishes each principal's filtered view. Callers
// must hold the write lock.
func (s *RemoteStore) broadcastLocked() {
	for principal, f := range s.watchers {
		f.Publish(s.accessibleLocked(principal))
	}
}

// accessibleLocked returns the lists the principal owns or is a member
// of, tombstoned lists excluded, ordered by id. Callers must hold at
// least the read lock.
func (s *RemoteStore) accessibleLocked(principalID string) []model.List {
	out := make([]model.List, 0, len(s.lists))
	for _, l := range s.lists {
		if l.Deleted() || !s.canAccess(l, principalID) {
			continue
		}
		out = append(out, l.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (*RemoteStore) canAccess(l model.List, principalID string) bool {
	if l.OwnerID == principalID {
		return true
	}
	for _, m := range l.Members {
		if m == principalID {
			return true
		}
	}
	return false
}
