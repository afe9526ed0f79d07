package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kmjayadeep/baskit-sub000/database"
	"github.com/kmjayadeep/baskit-sub000/internal/db"
	"github.com/kmjayadeep/baskit-sub000/internal/db/sqlc"
	"github.com/kmjayadeep/baskit-sub000/internal/model"
	"github.com/kmjayadeep/baskit-sub000/internal/store"
)

var baseTime = time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

func timePtr(t time.Time) *time.Time { return &t }

// newTestStore spins up a dedicated Postgres container and returns a
// Store connected to it.
func newTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()

	pool, cleanup := database.SetupTestDB(t)
	t.Cleanup(cleanup)

	conn := &db.Connection{Pool: pool, Queries: sqlc.New(pool)}
	return New(conn, opts...)
}

func watchCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return ctx
}

func receive(t *testing.T, ch <-chan []model.List) []model.List {
	t.Helper()
	select {
	case snap, ok := <-ch:
		require.True(t, ok, "watch channel closed unexpectedly")
		return snap
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for snapshot")
		return nil
	}
}

func findList(t *testing.T, lists []model.List, id string) model.List {
	t.Helper()
	for _, l := range lists {
		if l.ID == id {
			return l
		}
	}
	t.Fatalf("list %q not found in snapshot", id)
	return model.List{}
}

func requireSameTimePtr(t *testing.T, want, got *time.Time) {
	t.Helper()
	if want == nil {
		require.Nil(t, got)
		return
	}
	require.NotNil(t, got)
	require.True(t, want.Equal(*got), "time mismatch: want %v got %v", want, got)
}

func requireSameItem(t *testing.T, want, got model.Item) {
	t.Helper()
	require.Equal(t, want.ID, got.ID)
	require.Equal(t, want.Name, got.Name)
	require.Equal(t, want.Quantity, got.Quantity)
	require.Equal(t, want.IsCompleted, got.IsCompleted)
	require.True(t, want.CreatedAt.Equal(got.CreatedAt), "createdAt mismatch: want %v got %v", want.CreatedAt, got.CreatedAt)
	requireSameTimePtr(t, want.CompletedAt, got.CompletedAt)
	requireSameTimePtr(t, want.DeletedAt, got.DeletedAt)
}

func requireSameList(t *testing.T, want, got model.List) {
	t.Helper()
	require.Equal(t, want.ID, got.ID)
	require.Equal(t, want.Name, got.Name)
	require.Equal(t, want.Description, got.Description)
	require.Equal(t, want.Color, got.Color)
	require.Equal(t, want.OwnerID, got.OwnerID)
	require.ElementsMatch(t, want.Members, got.Members)
	require.True(t, want.CreatedAt.Equal(got.CreatedAt), "createdAt mismatch: want %v got %v", want.CreatedAt, got.CreatedAt)
	requireSameTimePtr(t, want.UpdatedAt, got.UpdatedAt)
	requireSameTimePtr(t, want.DeletedAt, got.DeletedAt)

	require.Len(t, got.Items, len(want.Items))
	byID := make(map[string]model.Item, len(got.Items))
	for _, it := range got.Items {
		byID[it.ID] = it
	}
	for _, it := range want.Items {
		stored, ok := byID[it.ID]
		require.True(t, ok, "item %q missing", it.ID)
		requireSameItem(t, it, stored)
	}
}

func sampleList(id, owner string) model.List {
	return model.List{
		ID:          id,
		Name:        "Groceries",
		Description: "weekly run",
		Color:       "#00aa44",
		OwnerID:     owner,
		Members:     []string{owner, "bob"},
		Items: []model.Item{
			{ID: "item-1", Name: "Milk", Quantity: "2", CreatedAt: baseTime},
		},
		CreatedAt: baseTime,
		UpdatedAt: timePtr(baseTime.Add(time.Minute)),
	}
}

func TestCreateAndAccessFiltering(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	ctx := context.Background()

	list := sampleList("list-1", "alice")
	require.NoError(t, s.Create(ctx, list))

	ownerView := receive(t, mustWatch(t, s, "alice"))
	require.Len(t, ownerView, 1)
	requireSameList(t, list, ownerView[0])

	memberView := receive(t, mustWatch(t, s, "bob"))
	require.Len(t, memberView, 1)

	outsiderView := receive(t, mustWatch(t, s, "carol"))
	assert.Empty(t, outsiderView)
}

func mustWatch(t *testing.T, s *Store, principalID string) <-chan []model.List {
	t.Helper()
	ch, err := s.WatchAccessible(watchCtx(t), principalID)
	require.NoError(t, err)
	return ch
}

func TestCreateDuplicate(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	ctx := context.Background()

	original := sampleList("list-1", "alice")
	require.NoError(t, s.Create(ctx, original))

	duplicate := original.Clone()
	duplicate.Name = "Hardware"
	duplicate.Items = []model.Item{
		{ID: "item-9", Name: "Screws", CreatedAt: baseTime},
	}
	err := s.Create(ctx, duplicate)
	require.ErrorIs(t, err, store.ErrAlreadyExists)

	// The failed create must not have touched the stored list.
	row, err := s.conn.Queries.GetList(ctx, "list-1")
	require.NoError(t, err)
	assert.Equal(t, "Groceries", row.Name)

	items, err := s.conn.Queries.GetListItems(ctx, "list-1")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "item-1", items[0].ID)
}

func TestCreateRequiresID(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)

	err := s.Create(context.Background(), model.List{Name: "nameless"})
	require.Error(t, err)
}

func TestUpdateMetadata(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	ctx := context.Background()

	list := sampleList("list-1", "alice")
	require.NoError(t, s.Create(ctx, list))

	updatedAt := baseTime.Add(2 * time.Minute)
	meta := model.ListMetadata{
		ID:          "list-1",
		Name:        "Renamed",
		Description: "updated",
		Color:       "#ff0000",
		Members:     []string{"alice", "bob", "carol"},
		UpdatedAt:   &updatedAt,
	}
	require.NoError(t, s.UpdateMetadata(ctx, meta))

	snap := receive(t, mustWatch(t, s, "alice"))
	got := findList(t, snap, "list-1")
	assert.Equal(t, "Renamed", got.Name)
	assert.Equal(t, "updated", got.Description)
	assert.Equal(t, "#ff0000", got.Color)
	assert.ElementsMatch(t, []string{"alice", "bob", "carol"}, got.Members)
	requireSameTimePtr(t, &updatedAt, got.UpdatedAt)

	// Items are not part of the metadata projection.
	require.Len(t, got.Items, 1)
	assert.Equal(t, "item-1", got.Items[0].ID)
}

func TestUpdateMetadataAbsentList(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)

	err := s.UpdateMetadata(context.Background(), model.ListMetadata{ID: "ghost", Name: "x"})
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestPushItem(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Create(ctx, sampleList("list-1", "alice")))

	added := model.Item{ID: "item-2", Name: "Eggs", Quantity: "12", CreatedAt: baseTime.Add(time.Second)}
	require.NoError(t, s.PushItem(ctx, "list-1", added))

	completedAt := baseTime.Add(time.Hour)
	replaced := model.Item{
		ID:          "item-1",
		Name:        "Milk",
		Quantity:    "3",
		IsCompleted: true,
		CompletedAt: &completedAt,
		CreatedAt:   baseTime,
	}
	require.NoError(t, s.PushItem(ctx, "list-1", replaced))

	snap := receive(t, mustWatch(t, s, "alice"))
	got := findList(t, snap, "list-1")
	require.Len(t, got.Items, 2)

	byID := make(map[string]model.Item)
	for _, it := range got.Items {
		byID[it.ID] = it
	}
	requireSameItem(t, replaced, byID["item-1"])
	requireSameItem(t, added, byID["item-2"])
}

func TestPushItemAbsentList(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)

	err := s.PushItem(context.Background(), "ghost", model.Item{ID: "item-1", Name: "Milk", CreatedAt: baseTime})
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestDeleteItem(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Create(ctx, sampleList("list-1", "alice")))

	require.NoError(t, s.DeleteItem(ctx, "list-1", "item-1"))

	items, err := s.conn.Queries.GetListItems(ctx, "list-1")
	require.NoError(t, err)
	assert.Empty(t, items)

	// Absent item on an existing list is not an error.
	require.NoError(t, s.DeleteItem(ctx, "list-1", "item-1"))

	// Absent list is.
	err = s.DeleteItem(ctx, "ghost", "item-1")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestDelete(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Create(ctx, sampleList("list-1", "alice")))
	require.NoError(t, s.Delete(ctx, "list-1"))

	snap := receive(t, mustWatch(t, s, "alice"))
	assert.Empty(t, snap)

	// Items went with the list through the cascade.
	items, err := s.conn.Queries.GetListItems(ctx, "list-1")
	require.NoError(t, err)
	assert.Empty(t, items)

	// Deleting an absent list is not an error.
	require.NoError(t, s.Delete(ctx, "list-1"))
}

func TestTombstonedListHiddenFromWatch(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	ctx := context.Background()

	dead := sampleList("list-1", "alice")
	dead.DeletedAt = timePtr(baseTime.Add(time.Hour))
	require.NoError(t, s.Create(ctx, dead))

	snap := receive(t, mustWatch(t, s, "alice"))
	assert.Empty(t, snap)

	// The row itself exists; only the accessible view filters it.
	row, err := s.conn.Queries.GetList(ctx, "list-1")
	require.NoError(t, err)
	assert.True(t, row.DeletedAt.Valid)
}

func TestWatchEmitsOnChange(t *testing.T) {
	t.Parallel()

	s := newTestStore(t, WithPollInterval(50*time.Millisecond))
	ctx := context.Background()

	ch := mustWatch(t, s, "alice")
	assert.Empty(t, receive(t, ch))

	require.NoError(t, s.Create(ctx, sampleList("list-1", "alice")))
	snap := receive(t, ch)
	require.Len(t, snap, 1)
	assert.Equal(t, "Groceries", snap[0].Name)

	updatedAt := baseTime.Add(5 * time.Minute)
	require.NoError(t, s.UpdateMetadata(ctx, model.ListMetadata{
		ID:        "list-1",
		Name:      "Renamed",
		Members:   []string{"alice"},
		UpdatedAt: &updatedAt,
	}))
	snap = receive(t, ch)
	require.Len(t, snap, 1)
	assert.Equal(t, "Renamed", snap[0].Name)
}

func TestWatchSuppressesUnchangedSnapshots(t *testing.T) {
	t.Parallel()

	s := newTestStore(t, WithPollInterval(50*time.Millisecond))
	ctx := context.Background()

	require.NoError(t, s.Create(ctx, sampleList("list-1", "alice")))

	ch := mustWatch(t, s, "alice")
	require.Len(t, receive(t, ch), 1)

	// Several poll cycles with no writes must not produce emissions.
	select {
	case snap := <-ch:
		t.Fatalf("unexpected snapshot: %v", snap)
	case <-time.After(400 * time.Millisecond):
	}
}

func TestWatchSeesOtherInstanceWrites(t *testing.T) {
	t.Parallel()

	pool, cleanup := database.SetupTestDB(t)
	t.Cleanup(cleanup)

	connA := &db.Connection{Pool: pool, Queries: sqlc.New(pool)}
	connB := &db.Connection{Pool: pool, Queries: sqlc.New(pool)}
	storeA := New(connA, WithPollInterval(50*time.Millisecond))
	storeB := New(connB, WithPollInterval(50*time.Millisecond))

	ch, err := storeA.WatchAccessible(watchCtx(t), "alice")
	require.NoError(t, err)
	assert.Empty(t, receive(t, ch))

	// storeB's write cannot wake storeA's poller, so this exercises the
	// ticker path.
	require.NoError(t, storeB.Create(context.Background(), sampleList("list-1", "alice")))

	snap := receive(t, ch)
	require.Len(t, snap, 1)
	assert.Equal(t, "list-1", snap[0].ID)
}
