package v0

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kmjayadeep/baskit-sub000/internal/api/common"
	"github.com/kmjayadeep/baskit-sub000/internal/model"
)

// createItem handles POST /api/v0/lists/{listID}/items
//
// @Summary		Create item
// @Description	Add an item to a list. The parent list's version clock advances to the item's creation time.
// @Tags		items
// @Accept		json
// @Produce		json
// @Param		listID	path		string				true	"List ID"
// @Param		body	body		CreateItemRequest	true	"Item to create"
// @Success		201		{object}	model.Item
// @Failure		400		{object}	map[string]string	"Bad request"
// @Failure		404		{object}	map[string]string	"List not found"
// @Failure		409		{object}	map[string]string	"Item already exists"
// @Failure		500		{object}	map[string]string	"Internal server error"
// @Router		/api/v0/lists/{listID}/items [post]
func (routes *Routes) createItem(w http.ResponseWriter, r *http.Request) {
	var req CreateItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.WriteErrorResponse(w, fmt.Sprintf("Invalid request body: %v", err), http.StatusBadRequest)
		return
	}

	if err := req.Validate(); err != nil {
		common.WriteErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}

	routes.writeMu.Lock()
	defer routes.writeMu.Unlock()

	list, ok := routes.lookupList(w, r)
	if !ok {
		return
	}

	id := req.ID
	if id == "" {
		id = uuid.NewString()
	} else if _, idx := list.ItemByID(id); idx >= 0 {
		common.WriteErrorResponse(w, "Item already exists", http.StatusConflict)
		return
	}

	// One timestamp covers the item and the parent list touch.
	now := time.Now()
	item := model.Item{
		ID:        id,
		Name:      strings.TrimSpace(req.Name),
		Quantity:  req.Quantity,
		CreatedAt: now,
	}
	list.Items = append(list.Items, item)
	list.UpdatedAt = &now

	if !routes.persist(w, r, list) {
		return
	}

	common.WriteJSONResponse(w, item, http.StatusCreated)
}

// updateItem handles PUT /api/v0/lists/{listID}/items/{itemID}
//
// @Summary		Update item
// @Description	Update an item's name and quantity. The item's creation time is its version clock and is left untouched; the parent list's clock advances.
// @Tags		items
// @Accept		json
// @Produce		json
// @Param		listID	path		string				true	"List ID"
// @Param		itemID	path		string				true	"Item ID"
// @Param		body	body		UpdateItemRequest	true	"New item fields"
// @Success		200		{object}	model.Item
// @Failure		400		{object}	map[string]string	"Bad request"
// @Failure		404		{object}	map[string]string	"List or item not found"
// @Failure		500		{object}	map[string]string	"Internal server error"
// @Router		/api/v0/lists/{listID}/items/{itemID} [put]
func (routes *Routes) updateItem(w http.ResponseWriter, r *http.Request) {
	var req UpdateItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.WriteErrorResponse(w, fmt.Sprintf("Invalid request body: %v", err), http.StatusBadRequest)
		return
	}

	if err := req.Validate(); err != nil {
		common.WriteErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}

	routes.writeMu.Lock()
	defer routes.writeMu.Unlock()

	list, ok := routes.lookupList(w, r)
	if !ok {
		return
	}
	item, idx, ok := lookupItem(w, r, list)
	if !ok {
		return
	}

	now := time.Now()
	item.Name = strings.TrimSpace(req.Name)
	item.Quantity = req.Quantity
	list.Items[idx] = item
	list.UpdatedAt = &now

	if !routes.persist(w, r, list) {
		return
	}

	common.WriteJSONResponse(w, item, http.StatusOK)
}

// toggleItem handles POST /api/v0/lists/{listID}/items/{itemID}/toggle
//
// @Summary		Toggle item completion
// @Description	Flip an item between completed and open, recording the completion time.
// @Tags		items
// @Produce		json
// @Param		listID	path		string	true	"List ID"
// @Param		itemID	path		string	true	"Item ID"
// @Success		200		{object}	model.Item
// @Failure		400		{object}	map[string]string	"Bad request"
// @Failure		404		{object}	map[string]string	"List or item not found"
// @Failure		500		{object}	map[string]string	"Internal server error"
// @Router		/api/v0/lists/{listID}/items/{itemID}/toggle [post]
func (routes *Routes) toggleItem(w http.ResponseWriter, r *http.Request) {
	routes.writeMu.Lock()
	defer routes.writeMu.Unlock()

	list, ok := routes.lookupList(w, r)
	if !ok {
		return
	}
	item, idx, ok := lookupItem(w, r, list)
	if !ok {
		return
	}

	now := time.Now()
	item.IsCompleted = !item.IsCompleted
	if item.IsCompleted {
		item.CompletedAt = &now
	} else {
		item.CompletedAt = nil
	}
	list.Items[idx] = item
	list.UpdatedAt = &now

	if !routes.persist(w, r, list) {
		return
	}

	common.WriteJSONResponse(w, item, http.StatusOK)
}

// deleteItem handles DELETE /api/v0/lists/{listID}/items/{itemID}
//
// @Summary		Delete item
// @Description	Soft-delete an item. The tombstone stays inside the list until the engine confirms the remote deletion.
// @Tags		items
// @Param		listID	path	string	true	"List ID"
// @Param		itemID	path	string	true	"Item ID"
// @Success		204		"No content"
// @Failure		400		{object}	map[string]string	"Bad request"
// @Failure		404		{object}	map[string]string	"List or item not found"
// @Failure		500		{object}	map[string]string	"Internal server error"
// @Router		/api/v0/lists/{listID}/items/{itemID} [delete]
func (routes *Routes) deleteItem(w http.ResponseWriter, r *http.Request) {
	routes.writeMu.Lock()
	defer routes.writeMu.Unlock()

	list, ok := routes.lookupList(w, r)
	if !ok {
		return
	}
	item, idx, ok := lookupItem(w, r, list)
	if !ok {
		return
	}

	now := time.Now()
	item.DeletedAt = &now
	list.Items[idx] = item
	list.UpdatedAt = &now

	if !routes.persist(w, r, list) {
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// lookupItem resolves the itemID parameter to a visible item of the
// list, writing the error response when it cannot. The boolean reports
// whether the handler should proceed.
func lookupItem(w http.ResponseWriter, r *http.Request, list model.List) (model.Item, int, bool) {
	id, err := common.GetAndValidateURLParam(r, "itemID")
	if err != nil {
		common.WriteErrorResponse(w, err.Error(), http.StatusBadRequest)
		return model.Item{}, -1, false
	}

	item, idx := list.ItemByID(id)
	if idx < 0 || item.Deleted() {
		common.WriteErrorResponse(w, "Item not found", http.StatusNotFound)
		return model.Item{}, -1, false
	}

	return item, idx, true
}
