package v0

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kmjayadeep/baskit-sub000/internal/api/common"
	"github.com/kmjayadeep/baskit-sub000/internal/model"
)

// listLists handles GET /api/v0/lists
//
// @Summary		List lists
// @Description	Get the visible lists of the local store, oldest first. Tombstoned lists and items are hidden.
// @Tags		lists
// @Produce		json
// @Success		200	{object}	ListCollectionResponse
// @Failure		500	{object}	map[string]string	"Internal server error"
// @Router		/api/v0/lists [get]
func (routes *Routes) listLists(w http.ResponseWriter, r *http.Request) {
	lists, err := routes.deps.Local.GetAll(r.Context())
	if err != nil {
		slog.Error("Failed to read lists", "error", err)
		common.WriteErrorResponse(w, "Failed to read lists", http.StatusInternalServerError)
		return
	}

	visible := make([]model.List, 0, len(lists))
	for _, l := range lists {
		if l.Deleted() {
			continue
		}
		l.Items = l.ActiveItems()
		visible = append(visible, l)
	}
	sort.Slice(visible, func(i, j int) bool {
		if visible[i].CreatedAt.Equal(visible[j].CreatedAt) {
			return visible[i].ID < visible[j].ID
		}
		return visible[i].CreatedAt.Before(visible[j].CreatedAt)
	})

	common.WriteJSONResponse(w, ListCollectionResponse{
		Lists: visible,
		Count: len(visible),
	}, http.StatusOK)
}

// createList handles POST /api/v0/lists
//
// @Summary		Create list
// @Description	Create a list in the local store, owned by the current principal. The engine propagates it to the remote store.
// @Tags		lists
// @Accept		json
// @Produce		json
// @Param		body	body		CreateListRequest	true	"List to create"
// @Success		201		{object}	model.List
// @Failure		400		{object}	map[string]string	"Bad request"
// @Failure		409		{object}	map[string]string	"List already exists"
// @Failure		500		{object}	map[string]string	"Internal server error"
// @Router		/api/v0/lists [post]
func (routes *Routes) createList(w http.ResponseWriter, r *http.Request) {
	var req CreateListRequest
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

	id := req.ID
	if id == "" {
		id = uuid.NewString()
	} else {
		_, found, err := routes.findList(r.Context(), id)
		if err != nil {
			slog.Error("Failed to read lists", "error", err)
			common.WriteErrorResponse(w, "Failed to read lists", http.StatusInternalServerError)
			return
		}
		if found {
			common.WriteErrorResponse(w, "List already exists", http.StatusConflict)
			return
		}
	}

	now := time.Now()
	owner := routes.deps.Identity.Current()
	list := model.List{
		ID:          id,
		Name:        strings.TrimSpace(req.Name),
		Description: req.Description,
		Color:       req.Color,
		OwnerID:     owner.ID,
		Members:     []string{},
		Items:       []model.Item{},
		CreatedAt:   now,
		UpdatedAt:   &now,
	}
	if !owner.Anonymous() {
		list.Members = []string{owner.ID}
	}

	if err := routes.deps.Local.Upsert(r.Context(), list); err != nil {
		slog.Error("Failed to create list", "list", id, "error", err)
		common.WriteErrorResponse(w, "Failed to create list", http.StatusInternalServerError)
		return
	}

	common.WriteJSONResponse(w, list, http.StatusCreated)
}

// getList handles GET /api/v0/lists/{listID}
//
// @Summary		Get list
// @Description	Get a single list by id. Tombstoned items are hidden.
// @Tags		lists
// @Produce		json
// @Param		listID	path		string	true	"List ID"
// @Success		200		{object}	model.List
// @Failure		400		{object}	map[string]string	"Bad request"
// @Failure		404		{object}	map[string]string	"List not found"
// @Failure		500		{object}	map[string]string	"Internal server error"
// @Router		/api/v0/lists/{listID} [get]
func (routes *Routes) getList(w http.ResponseWriter, r *http.Request) {
	list, ok := routes.lookupList(w, r)
	if !ok {
		return
	}

	list.Items = list.ActiveItems()
	common.WriteJSONResponse(w, list, http.StatusOK)
}

// updateList handles PUT /api/v0/lists/{listID}
//
// @Summary		Update list
// @Description	Update list metadata. The item collection is left untouched; the list's version clock advances.
// @Tags		lists
// @Accept		json
// @Produce		json
// @Param		listID	path		string				true	"List ID"
// @Param		body	body		UpdateListRequest	true	"New metadata"
// @Success		200		{object}	model.List
// @Failure		400		{object}	map[string]string	"Bad request"
// @Failure		404		{object}	map[string]string	"List not found"
// @Failure		500		{object}	map[string]string	"Internal server error"
// @Router		/api/v0/lists/{listID} [put]
func (routes *Routes) updateList(w http.ResponseWriter, r *http.Request) {
	var req UpdateListRequest
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

	now := time.Now()
	list.Name = strings.TrimSpace(req.Name)
	list.Description = req.Description
	list.Color = req.Color
	if req.Members != nil {
		list.Members = normalizeMembers(req.Members, list.OwnerID)
	}
	list.UpdatedAt = &now

	if !routes.persist(w, r, list) {
		return
	}

	list.Items = list.ActiveItems()
	common.WriteJSONResponse(w, list, http.StatusOK)
}

// deleteList handles DELETE /api/v0/lists/{listID}
//
// @Summary		Delete list
// @Description	Soft-delete a list. The tombstone stays in the local store until the engine confirms the remote deletion.
// @Tags		lists
// @Param		listID	path	string	true	"List ID"
// @Success		204		"No content"
// @Failure		400		{object}	map[string]string	"Bad request"
// @Failure		404		{object}	map[string]string	"List not found"
// @Failure		500		{object}	map[string]string	"Internal server error"
// @Router		/api/v0/lists/{listID} [delete]
func (routes *Routes) deleteList(w http.ResponseWriter, r *http.Request) {
	routes.writeMu.Lock()
	defer routes.writeMu.Unlock()

	list, ok := routes.lookupList(w, r)
	if !ok {
		return
	}

	now := time.Now()
	list.DeletedAt = &now
	list.UpdatedAt = &now

	if !routes.persist(w, r, list) {
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// findList returns the stored list with the given id, tombstones
// included.
func (routes *Routes) findList(ctx context.Context, id string) (model.List, bool, error) {
	lists, err := routes.deps.Local.GetAll(ctx)
	if err != nil {
		return model.List{}, false, err
	}
	for _, l := range lists {
		if l.ID == id {
			return l, true, nil
		}
	}
	return model.List{}, false, nil
}

// lookupList resolves the listID parameter to a visible list, writing
// the error response when it cannot. The boolean reports whether the
// handler should proceed.
func (routes *Routes) lookupList(w http.ResponseWriter, r *http.Request) (model.List, bool) {
	id, err := common.GetAndValidateURLParam(r, "listID")
	if err != nil {
		common.WriteErrorResponse(w, err.Error(), http.StatusBadRequest)
		return model.List{}, false
	}

	list, found, err := routes.findList(r.Context(), id)
	if err != nil {
		slog.Error("Failed to read list", "list", id, "error", err)
		common.WriteErrorResponse(w, "Failed to read list", http.StatusInternalServerError)
		return model.List{}, false
	}
	if !found || list.Deleted() {
		common.WriteErrorResponse(w, "List not found", http.StatusNotFound)
		return model.List{}, false
	}

	return list, true
}

// persist writes the mutated list back to the local store, writing the
// error response on failure.
func (routes *Routes) persist(w http.ResponseWriter, r *http.Request, list model.List) bool {
	if err := routes.deps.Local.Upsert(r.Context(), list); err != nil {
		slog.Error("Failed to write list", "list", list.ID, "error", err)
		common.WriteErrorResponse(w, "Failed to write list", http.StatusInternalServerError)
		return false
	}
	return true
}

// normalizeMembers deduplicates the requested member set and keeps the
// owner in it, so a sharing edit can never lock the owner out.
func normalizeMembers(members []string, ownerID string) []string {
	out := make([]string, 0, len(members)+1)
	seen := make(map[string]struct{}, len(members)+1)
	add := func(id string) {
		id = strings.TrimSpace(id)
		if id == "" {
			return
		}
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}

	add(ownerID)
	for _, m := range members {
		add(m)
	}
	return out
}
