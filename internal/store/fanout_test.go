package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kmjayadeep/baskit-sub000/internal/model"
)

func snapshotNamed(name string) []model.List {
	return []model.List{{ID: "list-1", Name: name}}
}

func receiveSnapshot(t *testing.T, ch <-chan []model.List) []model.List {
	t.Helper()
	select {
	case snap, ok := <-ch:
		require.True(t, ok, "channel closed unexpectedly")
		return snap
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for snapshot")
		return nil
	}
}

func TestFanoutDeliversInitialSnapshot(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f := NewFanout()
	ch := f.Subscribe(ctx, snapshotNamed("initial"))

	snap := receiveSnapshot(t, ch)
	require.Len(t, snap, 1)
	assert.Equal(t, "initial", snap[0].Name)
}

func TestFanoutDeliversInOrder(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f := NewFanout()
	ch := f.Subscribe(ctx, nil)
	receiveSnapshot(t, ch)

	for i := 1; i <= 3; i++ {
		f.Publish(snapshotNamed(fmt.Sprintf("snap-%d", i)))
	}
	for i := 1; i <= 3; i++ {
		snap := receiveSnapshot(t, ch)
		require.Len(t, snap, 1)
		assert.Equal(t, fmt.Sprintf("snap-%d", i), snap[0].Name)
	}
}

func TestFanoutDropsOldestUnderBacklog(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f := NewFanout()
	ch := f.Subscribe(ctx, nil)
	receiveSnapshot(t, ch)

	total := defaultQueueDepth + 8
	for i := 1; i <= total; i++ {
		f.Publish([]model.List{{ID: "list-1", Name: "snap", Description: fmt.Sprintf("%03d", i)}})
	}

	received := make([]string, 0, total)
	last := ""
	for {
		snap := receiveSnapshot(t, ch)
		require.Len(t, snap, 1)
		received = append(received, snap[0].Description)
		last = snap[0].Description
		if last == fmt.Sprintf("%03d", total) {
			break
		}
	}

	// The newest snapshot always survives, delivery order is
	// preserved, and at most one element beyond the queue depth (the
	// in-flight send) can arrive.
	assert.LessOrEqual(t, len(received), defaultQueueDepth+1)
	assert.True(t, sortedAscending(received), "snapshots arrived out of order: %v", received)
}

func sortedAscending(values []string) bool {
	for i := 1; i < len(values); i++ {
		if values[i] <= values[i-1] {
			return false
		}
	}
	return true
}

func TestFanoutSubscriberIsolation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f := NewFanout()
	source := []model.List{{ID: "list-1", Name: "shared", Members: []string{"a"}}}
	chA := f.Subscribe(ctx, nil)
	chB := f.Subscribe(ctx, nil)
	receiveSnapshot(t, chA)
	receiveSnapshot(t, chB)

	f.Publish(source)

	snapA := receiveSnapshot(t, chA)
	snapB := receiveSnapshot(t, chB)

	// Mutating one subscriber's copy affects neither the publisher's
	// slice nor the other subscriber's copy.
	snapA[0].Name = "mutated"
	snapA[0].Members[0] = "z"
	assert.Equal(t, "shared", source[0].Name)
	assert.Equal(t, "a", source[0].Members[0])
	assert.Equal(t, "shared", snapB[0].Name)
	assert.Equal(t, "a", snapB[0].Members[0])
}

func TestFanoutClosesOnCancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	f := NewFanout()
	ch := f.Subscribe(ctx, nil)
	receiveSnapshot(t, ch)

	cancel()

	select {
	case _, ok := <-ch:
		assert.False(t, ok, "channel should be closed after cancellation")
	case <-time.After(2 * time.Second):
		t.Fatal("channel not closed after cancellation")
	}

	// Publishing after cancellation must not panic or block.
	f.Publish(snapshotNamed("late"))
}
