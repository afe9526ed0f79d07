package sqlite

import (
	"context"
	"path/filepath"
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

func newTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "local.db"), opts...)
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, s.Close())
	})
	return s
}

func receive(t *testing.T, ch <-chan []model.List) []model.List {
	t.Helper()
	select {
	case snap, ok := <-ch:
		require.True(t, ok, "channel closed unexpectedly")
		return snap
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for snapshot")
		return nil
	}
}

func requireSameTimePtr(t *testing.T, want, got *time.Time) {
	t.Helper()
	if want == nil {
		require.Nil(t, got)
		return
	}
	require.NotNil(t, got)
	assert.True(t, want.Equal(*got), "want %v, got %v", want, got)
}

func requireSameItem(t *testing.T, want, got model.Item) {
	t.Helper()
	assert.Equal(t, want.ID, got.ID)
	assert.Equal(t, want.Name, got.Name)
	assert.Equal(t, want.Quantity, got.Quantity)
	assert.Equal(t, want.IsCompleted, got.IsCompleted)
	assert.True(t, want.CreatedAt.Equal(got.CreatedAt), "createdAt: want %v, got %v", want.CreatedAt, got.CreatedAt)
	requireSameTimePtr(t, want.CompletedAt, got.CompletedAt)
	requireSameTimePtr(t, want.DeletedAt, got.DeletedAt)
}

func requireSameList(t *testing.T, want, got model.List) {
	t.Helper()
	assert.Equal(t, want.ID, got.ID)
	assert.Equal(t, want.Name, got.Name)
	assert.Equal(t, want.Description, got.Description)
	assert.Equal(t, want.Color, got.Color)
	assert.Equal(t, want.OwnerID, got.OwnerID)
	assert.ElementsMatch(t, want.Members, got.Members)
	assert.True(t, want.CreatedAt.Equal(got.CreatedAt), "createdAt: want %v, got %v", want.CreatedAt, got.CreatedAt)
	requireSameTimePtr(t, want.UpdatedAt, got.UpdatedAt)
	requireSameTimePtr(t, want.DeletedAt, got.DeletedAt)

	require.Len(t, got.Items, len(want.Items))
	for _, wantItem := range want.Items {
		gotItem, idx := model.List{Items: got.Items}.ItemByID(wantItem.ID)
		require.NotEqual(t, -1, idx, "item %q missing", wantItem.ID)
		requireSameItem(t, wantItem, gotItem)
	}
}

func TestWatchAllEmitsOnMutation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := newTestStore(t)
	require.NoError(t, s.Upsert(ctx, model.List{ID: "list-1", Name: "first", OwnerID: "alice", CreatedAt: testTime}))

	ch, err := s.WatchAll(ctx)
	require.NoError(t, err)

	// Subscription starts with the current state.
	snap := receive(t, ch)
	require.Len(t, snap, 1)
	assert.Equal(t, "first", snap[0].Name)

	// Every mutation emits a fresh snapshot.
	require.NoError(t, s.Upsert(ctx, model.List{ID: "list-2", Name: "second", OwnerID: "alice", CreatedAt: testTime}))
	snap = receive(t, ch)
	require.Len(t, snap, 2)
	assert.Equal(t, "list-1", snap[0].ID)
	assert.Equal(t, "list-2", snap[1].ID)

	require.NoError(t, s.HardDelete(ctx, "list-1"))
	snap = receive(t, ch)
	require.Len(t, snap, 1)
	assert.Equal(t, "list-2", snap[0].ID)
}

func TestGetAllIncludesTombstones(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.Upsert(ctx, model.List{
		ID:        "list-1",
		Name:      "doomed",
		OwnerID:   "alice",
		CreatedAt: testTime,
		DeletedAt: timePtr(testTime.Add(time.Minute)),
	}))

	all, err := s.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.True(t, all[0].Deleted())
}

func TestUpsertReplacesWholeList(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.Upsert(ctx, model.List{
		ID:        "list-1",
		Name:      "before",
		OwnerID:   "alice",
		CreatedAt: testTime,
		Items: []model.Item{
			{ID: "i1", Name: "milk", CreatedAt: testTime},
			{ID: "i2", Name: "eggs", CreatedAt: testTime},
		},
	}))
	require.NoError(t, s.Upsert(ctx, model.List{
		ID:        "list-1",
		Name:      "after",
		OwnerID:   "alice",
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

func TestUpsertRequiresID(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	assert.Error(t, s.Upsert(context.Background(), model.List{Name: "no id"}))
}

func TestHardDeleteAbsent(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	assert.NoError(t, s.HardDelete(context.Background(), "missing"))
}

func TestReopenPreservesData(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "local.db")

	// Sub-second offsets must survive the round trip; conflict
	// resolution compares version clocks at millisecond granularity.
	want := model.List{
		ID:          "list-1",
		Name:        "Groceries",
		Description: "weekly run",
		Color:       "#00ff00",
		OwnerID:     "alice",
		Members:     []string{"alice", "bob"},
		CreatedAt:   testTime.Add(123 * time.Millisecond),
		UpdatedAt:   timePtr(testTime.Add(time.Minute + 456*time.Millisecond)),
		Items: []model.Item{
			{
				ID:        "item-1",
				Name:      "Milk",
				Quantity:  "2",
				CreatedAt: testTime.Add(789 * time.Millisecond),
			},
			{
				ID:          "item-2",
				Name:        "Eggs",
				IsCompleted: true,
				CreatedAt:   testTime.Add(time.Second),
				CompletedAt: timePtr(testTime.Add(2 * time.Second)),
				DeletedAt:   timePtr(testTime.Add(3 * time.Second)),
			},
		},
	}

	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Upsert(ctx, want))
	require.NoError(t, s.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	defer func() {
		require.NoError(t, reopened.Close())
	}()

	all, err := reopened.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	requireSameList(t, want, all[0])
}

func TestSnapshotIsolation(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newTestStore(t)
	require.NoError(t, s.Upsert(ctx, model.List{
		ID:        "list-1",
		Name:      "original",
		OwnerID:   "alice",
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

func TestExternalWatchSeesOtherHandleWrites(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	path := filepath.Join(t.TempDir(), "local.db")

	watching, err := Open(path, WithExternalWatch())
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, watching.Close())
	})

	ch, err := watching.WatchAll(ctx)
	require.NoError(t, err)
	require.Empty(t, receive(t, ch))

	// A second handle on the same file stands in for another process.
	writer, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, writer.Close())
	})

	require.NoError(t, writer.Upsert(ctx, model.List{
		ID:        "list-1",
		Name:      "from elsewhere",
		OwnerID:   "alice",
		CreatedAt: testTime,
	}))

	snap := receive(t, ch)
	require.Len(t, snap, 1)
	assert.Equal(t, "from elsewhere", snap[0].Name)
}

func TestOpenRequiresPath(t *testing.T) {
	t.Parallel()

	_, err := Open("")
	assert.Error(t, err)
}

func TestOpenCreatesParentDirectory(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "deeper", "local.db")
	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Close())
}
