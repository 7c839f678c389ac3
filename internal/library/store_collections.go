package library

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// CreateCollection inserts a new collection.
func (s *Store) CreateCollection(ctx context.Context, libraryID int64, parentID *int64, name string) (*Collection, error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.db.ExecContext(
		ctx,
		`INSERT INTO collections (library_id, parent_id, name, created_at) VALUES (?, ?, ?, ?)`,
		libraryID,
		nullableInt64(parentID),
		name,
		now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert collection: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.CollectionByID(ctx, id)
}

// CollectionByID fetches a collection by identifier. Returns nil when
// absent.
func (s *Store) CollectionByID(ctx context.Context, id int64) (*Collection, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT id, library_id, parent_id, name, created_at FROM collections WHERE id = ?`,
		id,
	)
	col, err := scanCollection(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get collection: %w", err)
	}
	return col, nil
}

// CollectionsByLibrary returns all collections in a library ordered by
// name.
func (s *Store) CollectionsByLibrary(ctx context.Context, libraryID int64) ([]*Collection, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, library_id, parent_id, name, created_at FROM collections WHERE library_id = ? ORDER BY name`,
		libraryID,
	)
	if err != nil {
		return nil, fmt.Errorf("list collections: %w", err)
	}
	defer rows.Close()

	var cols []*Collection
	for rows.Next() {
		col, err := scanCollection(rows)
		if err != nil {
			return nil, err
		}
		cols = append(cols, col)
	}
	return cols, rows.Err()
}

// AddToCollection places an item into a collection. Adding an item that
// is already a member is a no-op.
func (s *Store) AddToCollection(ctx context.Context, collectionID, itemID int64) error {
	_, err := s.db.ExecContext(
		ctx,
		`INSERT OR IGNORE INTO collection_items (collection_id, item_id) VALUES (?, ?)`,
		collectionID,
		itemID,
	)
	if err != nil {
		return fmt.Errorf("add to collection: %w", err)
	}
	return nil
}

// RemoveFromCollection removes an item from a collection.
func (s *Store) RemoveFromCollection(ctx context.Context, collectionID, itemID int64) error {
	_, err := s.db.ExecContext(
		ctx,
		`DELETE FROM collection_items WHERE collection_id = ? AND item_id = ?`,
		collectionID,
		itemID,
	)
	if err != nil {
		return fmt.Errorf("remove from collection: %w", err)
	}
	return nil
}

// CollectionsForItem returns the identifiers of collections containing
// an item.
func (s *Store) CollectionsForItem(ctx context.Context, itemID int64) ([]int64, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT collection_id FROM collection_items WHERE item_id = ? ORDER BY collection_id`,
		itemID,
	)
	if err != nil {
		return nil, fmt.Errorf("collections for item: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// MoveCollections moves every collection membership from one item to
// another. Memberships the destination already has are merged.
func (s *Store) MoveCollections(ctx context.Context, fromItemID, toItemID int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin move collections: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(
		ctx,
		`INSERT OR IGNORE INTO collection_items (collection_id, item_id)
         SELECT collection_id, ? FROM collection_items WHERE item_id = ?`,
		toItemID,
		fromItemID,
	); err != nil {
		return fmt.Errorf("copy collection memberships: %w", err)
	}
	if _, err := tx.ExecContext(
		ctx,
		`DELETE FROM collection_items WHERE item_id = ?`,
		fromItemID,
	); err != nil {
		return fmt.Errorf("clear collection memberships: %w", err)
	}
	return tx.Commit()
}

func scanCollection(scanner interface{ Scan(dest ...any) error }) (*Collection, error) {
	var (
		id         int64
		libraryID  int64
		parentID   sql.NullInt64
		name       string
		createdRaw string
	)
	if err := scanner.Scan(&id, &libraryID, &parentID, &name, &createdRaw); err != nil {
		return nil, err
	}
	col := &Collection{ID: id, LibraryID: libraryID, Name: name}
	if parentID.Valid {
		pid := parentID.Int64
		col.ParentID = &pid
	}
	if created, err := parseTimeString(createdRaw); err == nil {
		col.CreatedAt = created
	}
	return col, nil
}
