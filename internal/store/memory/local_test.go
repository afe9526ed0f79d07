package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kmjayadeep/baskit-sub000/internal/model"
)

var testTime = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func timePtr(t time.Time) *time.Time {
	return &t
}

func receive(t *testing.T, ch <-chan []model.List) []model.List {
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

func TestLocalStoreWatchAll(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := NewLocalStore()
	require.NoError(t, s.Upsert(ctx, model.List{ID: "list-1", Name: "first", CreatedAt: testTime}))

	ch, err := s.WatchAll(ctx)
	require.NoError(t, err)

	// Subscription starts with the current state.
	snap := receive(t, ch)
	require.Len(t, snap, 1)
	assert.Equal(t, "first", snap[0].Name)

	// Every mutation emits a fresh snapshot.
	require.NoError(t, s.Upsert(ctx, model.List{ID: "list-2", Name: "second", CreatedAt: testTime}))
	snap = receive(t, ch)
	require.Len(t, snap, 2)
	assert.Equal(t, "list-1", snap[0].ID)
	assert.Equal(t, "list-2", snap[1].ID)

	require.NoError(t, s.HardDelete(ctx, "list-1"))
	snap = receive(t, ch)
	require.Len(t, snap, 1)
	assert.Equal(t, "list-2", snap[0].ID)
}

func TestLocalStoreIncludesTombstones(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := NewLocalStore()

	require.NoError(t, s.Upsert(ctx, model.List{
		ID:        "list-1",
		Name:      "doomed",
		CreatedAt: testTime,
		DeletedAt: timePtr(testTime.Add(time.Minute)),
	}))

	all, err := s.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.True(t, all[0].Deleted())
}

func TestLocalStoreUpsertReplacesWholeList(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := NewLocalStore()

	require.NoError(t, s.Upsert(ctx, model.List{
		ID:        "list-1",
		Name:      "before",
		CreatedAt: testTime,
		Items: []model.Item{
			{ID: "i1", Name: "milk", CreatedAt: testTime},
			{ID: "i2", Name: "eggs", CreatedAt: testTime},
		},
	}))
	require.NoError(t, s.Upsert(ctx, model.List{
		ID:        "list-1",
		Name:      "after",
		CreatedAt: testTime,
		Items:     []model.Item{{ID: "i3", Name: "bread", CreatedAt: testTime}},
	}))

	all, err := s.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "after", all[0].Name)
	require.Len(t, all[0].Items, 1)
	assert.Equal(t, "i3", all[0].Items[0].ID)
}

func TestLocalStoreUpsertRequiresID(t *testing.T) {
	t.Parallel()

	s := NewLocalStore()
	assert.Error(t, s.Upsert(context.Background(), model.List{Name: "no id"}))
}

func TestLocalStoreHardDeleteAbsent(t *testing.T) {
	t.Parallel()

	s := NewLocalStore()
	assert.NoError(t, s.HardDelete(context.Background(), "missing"))
}

func TestLocalStoreSnapshotIsolation(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := NewLocalStore()
	require.NoError(t, s.Upsert(ctx, model.List{
		ID:        "list-1",
		Name:      "original",
		Members:   []string{"a"},
		CreatedAt: testTime,
		Items:     []model.Item{{ID: "i1", Name: "milk", CreatedAt: testTime}},
	}))

	first, err := s.GetAll(ctx)
	require.NoError(t, err)
	first[0].Name = "mutated"
	first[0].Members[0] = "z"
	first[0].Items[0].Name = "mutated"

	second, err := s.GetAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, "original", second[0].Name)
	assert.Equal(t, "a", second[0].Members[0])
	assert.Equal(t, "milk", second[0].Items[0].Name)
}
