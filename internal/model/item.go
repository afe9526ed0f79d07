package model

import "time"

// Item is a single entry in a list. Items live inside their parent
// list's document; every item write is scoped within a list write.
type Item struct {
	// ID is the stable, client-generated identifier, unique within the
	// parent list.
	ID string `json:"id"`

	// Name is the display name of the item.
	Name string `json:"name"`

	// Quantity is optional free text ("2", "500 g", ...).
	Quantity string `json:"quantity,omitempty"`

	// IsCompleted marks the item as checked off.
	IsCompleted bool `json:"isCompleted"`

	// CreatedAt is set once when the item is created. It also serves
	// as the item's version clock during conflict resolution, so an
	// item edit intentionally does not advance it.
	CreatedAt time.Time `json:"createdAt"`

	// CompletedAt records when the item was last checked off, nil when
	// never completed or unchecked again.
	CompletedAt *time.Time `json:"completedAt,omitempty"`

	// DeletedAt marks the item as a tombstone pending remote deletion.
	DeletedAt *time.Time `json:"deletedAt,omitempty"`
}

// Deleted reports whether the item is a tombstone.
func (i Item) Deleted() bool {
	return i.DeletedAt != nil
}

// Clone returns a deep copy of the item.
func (i Item) Clone() Item {
	out := i
	out.CompletedAt = cloneTime(i.CompletedAt)
	out.DeletedAt = cloneTime(i.DeletedAt)
	return out
}
