// Package postgres implements the shared remote store on PostgreSQL.
// Lists live in the lists table, their items in list_items; change
// notification is implemented by polling, see watcher.go.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/kmjayadeep/baskit-sub000/internal/db"
	"github.com/kmjayadeep/baskit-sub000/internal/db/pgtypes"
	"github.com/kmjayadeep/baskit-sub000/internal/db/sqlc"
	"github.com/kmjayadeep/baskit-sub000/internal/model"
	"github.com/kmjayadeep/baskit-sub000/internal/store"
)

// foreignKeyViolation is the PostgreSQL error code raised when an item
// write references a list that does not exist.
const foreignKeyViolation = "23503"

const defaultPollInterval = 10 * time.Second

// Store is a store.RemoteStore backed by PostgreSQL. It is safe for
// concurrent use; every writer shares the same connection pool.
type Store struct {
	conn         *db.Connection
	pollInterval time.Duration

	pollers *pollerRegistry
}

var _ store.RemoteStore = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithPollInterval overrides the default change polling interval.
func WithPollInterval(interval time.Duration) Option {
	return func(s *Store) {
		if interval > 0 {
			s.pollInterval = interval
		}
	}
}

// New returns a Store on top of an established database connection.
// The caller retains ownership of the connection.
func New(conn *db.Connection, opts ...Option) *Store {
	s := &Store{
		conn:         conn,
		pollInterval: defaultPollInterval,
		pollers:      newPollerRegistry(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create implements store.RemoteStore. The list and its items are
// written in a single transaction.
func (s *Store) Create(ctx context.Context, list model.List) error {
	if list.ID == "" {
		return fmt.Errorf("create: list id is required")
	}

	tx, err := s.conn.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("create list %q: %w", list.ID, err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	qtx := s.conn.Queries.WithTx(tx)

	rows, err := qtx.InsertList(ctx, sqlc.InsertListParams{
		ID:          list.ID,
		Name:        list.Name,
		Description: list.Description,
		Color:       list.Color,
		OwnerID:     list.OwnerID,
		Members:     list.Members,
		CreatedAt:   pgtypes.Timestamptz(list.CreatedAt),
		UpdatedAt:   pgtypes.TimestamptzFromPtr(list.UpdatedAt),
		DeletedAt:   pgtypes.TimestamptzFromPtr(list.DeletedAt),
	})
	if err != nil {
		return fmt.Errorf("create list %q: %w", list.ID, err)
	}
	if rows == 0 {
		return fmt.Errorf("create list %q: %w", list.ID, store.ErrAlreadyExists)
	}

	for _, item := range list.Items {
		if err := qtx.UpsertListItem(ctx, upsertItemParams(list.ID, item)); err != nil {
			return fmt.Errorf("create list %q: item %q: %w", list.ID, item.ID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("create list %q: %w", list.ID, err)
	}

	s.pollers.wake()
	return nil
}

// UpdateMetadata implements store.RemoteStore.
func (s *Store) UpdateMetadata(ctx context.Context, meta model.ListMetadata) error {
	rows, err := s.conn.Queries.UpdateListMetadata(ctx, sqlc.UpdateListMetadataParams{
		ID:          meta.ID,
		Name:        meta.Name,
		Description: meta.Description,
		Color:       meta.Color,
		Members:     meta.Members,
		UpdatedAt:   pgtypes.TimestamptzFromPtr(meta.UpdatedAt),
	})
	if err != nil {
		return fmt.Errorf("update list %q: %w", meta.ID, err)
	}
	if rows == 0 {
		return fmt.Errorf("update list %q: %w", meta.ID, store.ErrNotFound)
	}

	s.pollers.wake()
	return nil
}

// PushItem implements store.RemoteStore.
func (s *Store) PushItem(ctx context.Context, listID string, item model.Item) error {
	err := s.conn.Queries.UpsertListItem(ctx, upsertItemParams(listID, item))
	if err != nil {
		if isForeignKeyViolation(err) {
			return fmt.Errorf("push item to list %q: %w", listID, store.ErrNotFound)
		}
		return fmt.Errorf("push item %q to list %q: %w", item.ID, listID, err)
	}

	s.pollers.wake()
	return nil
}

// DeleteItem implements store.RemoteStore.
func (s *Store) DeleteItem(ctx context.Context, listID, itemID string) error {
	rows, err := s.conn.Queries.DeleteListItem(ctx, sqlc.DeleteListItemParams{
		ListID: listID,
		ID:     itemID,
	})
	if err != nil {
		return fmt.Errorf("delete item %q from list %q: %w", itemID, listID, err)
	}

	if rows == 0 {
		// Deleting an absent item is fine, but the list must exist.
		exists, err := s.conn.Queries.ListExists(ctx, listID)
		if err != nil {
			return fmt.Errorf("delete item %q from list %q: %w", itemID, listID, err)
		}
		if !exists {
			return fmt.Errorf("delete item from list %q: %w", listID, store.ErrNotFound)
		}
		return nil
	}

	s.pollers.wake()
	return nil
}

// Delete implements store.RemoteStore. Items are removed through the
// foreign key cascade; deleting an absent list is not an error.
func (s *Store) Delete(ctx context.Context, listID string) error {
	if err := s.conn.Queries.DeleteList(ctx, listID); err != nil {
		return fmt.Errorf("delete list %q: %w", listID, err)
	}

	s.pollers.wake()
	return nil
}

// fetchAccessible assembles the full collection the principal may
// access, items included, ordered by list id.
func (s *Store) fetchAccessible(ctx context.Context, principalID string) ([]model.List, error) {
	listRows, err := s.conn.Queries.ListAccessibleLists(ctx, principalID)
	if err != nil {
		return nil, fmt.Errorf("list accessible lists: %w", err)
	}

	itemsByList := make(map[string][]model.Item)
	if len(listRows) > 0 {
		ids := make([]string, len(listRows))
		for i, row := range listRows {
			ids[i] = row.ID
		}

		itemRows, err := s.conn.Queries.ListItemsByListIDs(ctx, ids)
		if err != nil {
			return nil, fmt.Errorf("list items: %w", err)
		}
		for _, row := range itemRows {
			itemsByList[row.ListID] = append(itemsByList[row.ListID], toModelItem(row))
		}
	}

	lists := make([]model.List, len(listRows))
	for i, row := range listRows {
		lists[i] = toModelList(row, itemsByList[row.ID])
	}
	return lists, nil
}

func toModelList(row sqlc.List, items []model.Item) model.List {
	return model.List{
		ID:          row.ID,
		Name:        row.Name,
		Description: row.Description,
		Color:       row.Color,
		OwnerID:     row.OwnerID,
		Members:     row.Members,
		Items:       items,
		CreatedAt:   pgtypes.Time(row.CreatedAt),
		UpdatedAt:   pgtypes.TimePtr(row.UpdatedAt),
		DeletedAt:   pgtypes.TimePtr(row.DeletedAt),
	}
}

func toModelItem(row sqlc.ListItem) model.Item {
	return model.Item{
		ID:          row.ID,
		Name:        row.Name,
		Quantity:    row.Quantity,
		IsCompleted: row.IsCompleted,
		CreatedAt:   pgtypes.Time(row.CreatedAt),
		CompletedAt: pgtypes.TimePtr(row.CompletedAt),
		DeletedAt:   pgtypes.TimePtr(row.DeletedAt),
	}
}

func upsertItemParams(listID string, item model.Item) sqlc.UpsertListItemParams {
	return sqlc.UpsertListItemParams{
		ListID:      listID,
		ID:          item.ID,
		Name:        item.Name,
		Quantity:    item.Quantity,
		IsCompleted: item.IsCompleted,
		CompletedAt: pgtypes.TimestamptzFromPtr(item.CompletedAt),
		CreatedAt:   pgtypes.Timestamptz(item.CreatedAt),
		DeletedAt:   pgtypes.TimestamptzFromPtr(item.DeletedAt),
	}
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == foreignKeyViolation
}
