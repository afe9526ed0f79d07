package v0_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	v0 "github.com/kmjayadeep/baskit-sub000/internal/api/v0"
	"github.com/kmjayadeep/baskit-sub000/internal/model"
)

func TestCreateItem(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.createList(t, v0.CreateListRequest{ID: "groceries", Name: "Groceries"})

	item := env.createItem(t, "groceries", v0.CreateItemRequest{
		Name:     "  Milk  ",
		Quantity: "2 liters",
	})

	assert.NotEmpty(t, item.ID)
	assert.Equal(t, "Milk", item.Name)
	assert.Equal(t, "2 liters", item.Quantity)
	assert.False(t, item.IsCompleted)
	assert.Nil(t, item.CompletedAt)
	assert.Nil(t, item.DeletedAt)
	assert.False(t, item.CreatedAt.IsZero())

	// The parent list is touched with the same timestamp the item was
	// created with.
	stored := env.storedList(t, "groceries")
	require.NotNil(t, stored.UpdatedAt)
	assert.True(t, stored.UpdatedAt.Equal(item.CreatedAt))
}

// TestCreateItemDuplicate tests that an occupied item id conflicts,
// even after the item was soft-deleted
func TestCreateItemDuplicate(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.createList(t, v0.CreateListRequest{ID: "groceries", Name: "Groceries"})
	env.createItem(t, "groceries", v0.CreateItemRequest{ID: "milk", Name: "Milk"})

	rr := env.do(t, http.MethodPost, "/lists/groceries/items", v0.CreateItemRequest{ID: "milk", Name: "Milk again"})
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Contains(t, errorBody(t, rr), "Item already exists")

	rr = env.do(t, http.MethodDelete, "/lists/groceries/items/milk", nil)
	require.Equal(t, http.StatusNoContent, rr.Code)

	// The tombstone still occupies the id.
	rr = env.do(t, http.MethodPost, "/lists/groceries/items", v0.CreateItemRequest{ID: "milk", Name: "Milk again"})
	assert.Equal(t, http.StatusConflict, rr.Code)
}

func TestCreateItemValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		path       string
		body       string
		wantStatus int
		wantError  string
	}{
		{
			name:       "invalid JSON",
			path:       "/lists/groceries/items",
			body:       "{not json",
			wantStatus: http.StatusBadRequest,
			wantError:  "Invalid request body",
		},
		{
			name:       "missing name",
			path:       "/lists/groceries/items",
			body:       `{"quantity": "2"}`,
			wantStatus: http.StatusBadRequest,
			wantError:  "name is required",
		},
		{
			name:       "id with whitespace",
			path:       "/lists/groceries/items",
			body:       `{"id": "my item", "name": "Milk"}`,
			wantStatus: http.StatusBadRequest,
			wantError:  "id cannot contain whitespace",
		},
		{
			name:       "unknown list",
			path:       "/lists/nope/items",
			body:       `{"name": "Milk"}`,
			wantStatus: http.StatusNotFound,
			wantError:  "List not found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			env := newTestEnv(t)
			env.createList(t, v0.CreateListRequest{ID: "groceries", Name: "Groceries"})

			req, err := http.NewRequest(http.MethodPost, tt.path, strings.NewReader(tt.body))
			require.NoError(t, err)

			rr := httptest.NewRecorder()
			env.router.ServeHTTP(rr, req)

			assert.Equal(t, tt.wantStatus, rr.Code)
			assert.Contains(t, errorBody(t, rr), tt.wantError)
		})
	}
}

func TestUpdateItem(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.createList(t, v0.CreateListRequest{ID: "groceries", Name: "Groceries"})
	created := env.createItem(t, "groceries", v0.CreateItemRequest{ID: "milk", Name: "Milk", Quantity: "1"})

	rr := env.do(t, http.MethodPut, "/lists/groceries/items/milk", v0.UpdateItemRequest{
		Name:     "  Oat milk  ",
		Quantity: "2 liters",
	})
	require.Equal(t, http.StatusOK, rr.Code)

	var updated model.Item
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &updated))
	assert.Equal(t, "Oat milk", updated.Name)
	assert.Equal(t, "2 liters", updated.Quantity)

	// The item's creation time is its version clock and survives edits.
	assert.True(t, updated.CreatedAt.Equal(created.CreatedAt))

	// The parent list clock still advances.
	stored := env.storedList(t, "groceries")
	require.NotNil(t, stored.UpdatedAt)
	assert.True(t, stored.UpdatedAt.After(created.CreatedAt))
}

// TestUpdateItemKeepsCompletion tests that editing name and quantity
// does not touch the completion state
func TestUpdateItemKeepsCompletion(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.createList(t, v0.CreateListRequest{ID: "groceries", Name: "Groceries"})
	env.createItem(t, "groceries", v0.CreateItemRequest{ID: "milk", Name: "Milk"})

	rr := env.do(t, http.MethodPost, "/lists/groceries/items/milk/toggle", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = env.do(t, http.MethodPut, "/lists/groceries/items/milk", v0.UpdateItemRequest{Name: "Oat milk"})
	require.Equal(t, http.StatusOK, rr.Code)

	var updated model.Item
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &updated))
	assert.True(t, updated.IsCompleted)
	assert.NotNil(t, updated.CompletedAt)
}

func TestToggleItem(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.createList(t, v0.CreateListRequest{ID: "groceries", Name: "Groceries"})
	env.createItem(t, "groceries", v0.CreateItemRequest{ID: "milk", Name: "Milk"})

	rr := env.do(t, http.MethodPost, "/lists/groceries/items/milk/toggle", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var item model.Item
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &item))
	assert.True(t, item.IsCompleted)
	require.NotNil(t, item.CompletedAt)

	// Completion and the parent list touch share one timestamp.
	stored := env.storedList(t, "groceries")
	require.NotNil(t, stored.UpdatedAt)
	assert.True(t, stored.UpdatedAt.Equal(*item.CompletedAt))

	rr = env.do(t, http.MethodPost, "/lists/groceries/items/milk/toggle", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	item = model.Item{}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &item))
	assert.False(t, item.IsCompleted)
	assert.Nil(t, item.CompletedAt)
}

func TestDeleteItem(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.createList(t, v0.CreateListRequest{ID: "groceries", Name: "Groceries"})
	env.createItem(t, "groceries", v0.CreateItemRequest{ID: "milk", Name: "Milk"})

	rr := env.do(t, http.MethodDelete, "/lists/groceries/items/milk", nil)
	assert.Equal(t, http.StatusNoContent, rr.Code)

	// Hidden from reads.
	rr = env.do(t, http.MethodGet, "/lists/groceries", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var list model.List
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &list))
	assert.Empty(t, list.Items)

	// Still stored as a tombstone sharing its timestamp with the
	// parent list touch.
	stored := env.storedList(t, "groceries")
	item, idx := stored.ItemByID("milk")
	require.GreaterOrEqual(t, idx, 0)
	require.NotNil(t, item.DeletedAt)
	require.NotNil(t, stored.UpdatedAt)
	assert.True(t, stored.UpdatedAt.Equal(*item.DeletedAt))

	// Gone for every item operation.
	rr = env.do(t, http.MethodDelete, "/lists/groceries/items/milk", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = env.do(t, http.MethodPost, "/lists/groceries/items/milk/toggle", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = env.do(t, http.MethodPut, "/lists/groceries/items/milk", v0.UpdateItemRequest{Name: "Oat milk"})
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestItemErrors(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.createList(t, v0.CreateListRequest{ID: "groceries", Name: "Groceries"})

	rr := env.do(t, http.MethodPut, "/lists/groceries/items/nope", v0.UpdateItemRequest{Name: "Milk"})
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Contains(t, errorBody(t, rr), "Item not found")

	rr = env.do(t, http.MethodPost, "/lists/groceries/items/%20/toggle", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, errorBody(t, rr), "itemID cannot be empty")
}
