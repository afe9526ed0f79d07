// Package model defines the list and item entities shared between the
// local and the remote store. Entities are treated as immutable values:
// stores and the sync engine exchange deep copies, and an update always
// produces a new value rather than mutating one in place.
package model

import "time"

// List is a shared list owned by one principal and visible to its
// members. The zero value is not meaningful; lists are built by the
// write path with a client-generated ID.
type List struct {
	// ID is the stable, client-generated identifier. It is used as the
	// document key in every store and is never regenerated.
	ID string `json:"id"`

	// Name is the display name of the list.
	Name string `json:"name"`

	// Description is an optional free-text description.
	Description string `json:"description,omitempty"`

	// Color is an optional display color tag.
	Color string `json:"color,omitempty"`

	// OwnerID is the principal that created the list.
	OwnerID string `json:"ownerId"`

	// Members holds the principal IDs the list is shared with,
	// including the owner. Order is not significant; merging treats
	// the field as a set.
	Members []string `json:"members"`

	// Items holds the list's items, tombstones included.
	Items []Item `json:"items"`

	// CreatedAt is set once when the list is created.
	CreatedAt time.Time `json:"createdAt"`

	// UpdatedAt advances on every metadata or item write. It is the
	// version clock for list-level conflict resolution and may be nil
	// for entities that were never updated after creation.
	UpdatedAt *time.Time `json:"updatedAt,omitempty"`

	// DeletedAt marks the list as a tombstone. Tombstones are hidden
	// from readers but keep flowing through sync until the deletion is
	// confirmed remotely, at which point the list is hard-removed.
	DeletedAt *time.Time `json:"deletedAt,omitempty"`
}

// ListMetadata is the metadata-only projection of a List, used for
// remote writes that must not touch the item collection.
type ListMetadata struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	Color       string     `json:"color,omitempty"`
	Members     []string   `json:"members"`
	UpdatedAt   *time.Time `json:"updatedAt,omitempty"`
}

// Deleted reports whether the list is a tombstone.
func (l List) Deleted() bool {
	return l.DeletedAt != nil
}

// Metadata returns the metadata-only projection of the list.
func (l List) Metadata() ListMetadata {
	return ListMetadata{
		ID:          l.ID,
		Name:        l.Name,
		Description: l.Description,
		Color:       l.Color,
		Members:     append([]string(nil), l.Members...),
		UpdatedAt:   cloneTime(l.UpdatedAt),
	}
}

// ActiveItems returns the list's items with tombstones filtered out.
func (l List) ActiveItems() []Item {
	out := make([]Item, 0, len(l.Items))
	for _, it := range l.Items {
		if !it.Deleted() {
			out = append(out, it.Clone())
		}
	}
	return out
}

// ItemByID returns the item with the given ID and its index, or a
// zero Item and -1 when absent. Tombstones are included in the search.
func (l List) ItemByID(id string) (Item, int) {
	for i, it := range l.Items {
		if it.ID == id {
			return it, i
		}
	}
	return Item{}, -1
}

// Clone returns a deep copy of the list. Mutating the copy, its items,
// its members, or its timestamp cells never affects the original.
func (l List) Clone() List {
	out := l
	if l.Members != nil {
		out.Members = append([]string(nil), l.Members...)
	}
	if l.Items != nil {
		out.Items = make([]Item, len(l.Items))
		for i, it := range l.Items {
			out.Items[i] = it.Clone()
		}
	}
	out.UpdatedAt = cloneTime(l.UpdatedAt)
	out.DeletedAt = cloneTime(l.DeletedAt)
	return out
}

// CloneAll deep-copies a collection snapshot.
func CloneAll(lists []List) []List {
	if lists == nil {
		return nil
	}
	out := make([]List, len(lists))
	for i, l := range lists {
		out[i] = l.Clone()
	}
	return out
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
