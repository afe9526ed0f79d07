package postgres

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/kmjayadeep/baskit-sub000/internal/model"
	"github.com/kmjayadeep/baskit-sub000/internal/store"
)

// WatchAccessible implements store.RemoteStore. Change detection polls
// the database on the configured interval and compares a hash of the
// serialized snapshot, so a watcher only emits when the collection
// actually changed. Writes made through this Store instance wake all
// pollers immediately instead of waiting for the next tick.
func (s *Store) WatchAccessible(ctx context.Context, principalID string) (<-chan []model.List, error) {
	lists, err := s.fetchAccessible(ctx, principalID)
	if err != nil {
		return nil, fmt.Errorf("watch lists for %q: %w", principalID, err)
	}
	hash, err := snapshotHash(lists)
	if err != nil {
		return nil, fmt.Errorf("watch lists for %q: %w", principalID, err)
	}

	f := store.NewFanout()
	ch := f.Subscribe(ctx, lists)
	go s.pollLoop(ctx, principalID, f, hash)
	return ch, nil
}

// pollLoop re-reads the principal's collection until ctx is canceled,
// publishing a snapshot whenever its hash changes. Transient query
// failures are logged and retried on the next tick.
func (s *Store) pollLoop(ctx context.Context, principalID string, f *store.Fanout, lastHash string) {
	wake := s.pollers.register()
	defer s.pollers.unregister(wake)

	ticker := time.NewTicker(s.jitteredInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// Recalculate interval with new jitter for next iteration
			ticker.Reset(s.jitteredInterval())
		case <-wake:
		}

		lists, err := s.fetchAccessible(ctx, principalID)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			slog.Error("Failed to poll accessible lists",
				"principal_id", principalID,
				"error", err)
			continue
		}

		hash, err := snapshotHash(lists)
		if err != nil {
			slog.Error("Failed to hash list snapshot",
				"principal_id", principalID,
				"error", err)
			continue
		}
		if hash == lastHash {
			continue
		}

		lastHash = hash
		f.Publish(lists)
	}
}

// jitteredInterval returns the poll interval with a random jitter of
// ±10% applied, to prevent several daemons from polling the database
// simultaneously.
func (s *Store) jitteredInterval() time.Duration {
	jitter := s.pollInterval / 10
	if jitter <= 0 {
		return s.pollInterval
	}
	//nolint:gosec // G404: Non-cryptographic randomness is sufficient for polling jitter
	offset := time.Duration(rand.Int64N(int64(2*jitter))) - jitter
	return s.pollInterval + offset
}

// snapshotHash returns a hex SHA-256 over the serialized snapshot. The
// query layer returns lists and items in a stable order, so equal
// collections always serialize to equal bytes.
func snapshotHash(lists []model.List) (string, error) {
	data, err := json.Marshal(lists)
	if err != nil {
		return "", fmt.Errorf("marshal snapshot: %w", err)
	}
	return fmt.Sprintf("%x", sha256.Sum256(data)), nil
}

// pollerRegistry tracks the wake channels of the running poll loops so
// local writes can short-circuit the polling delay.
type pollerRegistry struct {
	mu    sync.Mutex
	wakes map[chan struct{}]struct{}
}

func newPollerRegistry() *pollerRegistry {
	return &pollerRegistry{wakes: make(map[chan struct{}]struct{})}
}

func (r *pollerRegistry) register() chan struct{} {
	ch := make(chan struct{}, 1)
	r.mu.Lock()
	r.wakes[ch] = struct{}{}
	r.mu.Unlock()
	return ch
}

func (r *pollerRegistry) unregister(ch chan struct{}) {
	r.mu.Lock()
	delete(r.wakes, ch)
	r.mu.Unlock()
}

func (r *pollerRegistry) wake() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for ch := range r.wakes {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
