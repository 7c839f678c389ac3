package library

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// CreateItem inserts an item with its fields, creators, and tags.
func (s *Store) CreateItem(ctx context.Context, draft *NewItem) (*Item, error) {
	if draft == nil {
		return nil, errors.New("item draft is nil")
	}
	if strings.TrimSpace(draft.ItemType) == "" {
		return nil, errors.New("item type is required")
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin insert item: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var id int64
	for attempt := 0; ; attempt++ {
		res, execErr := tx.ExecContext(
			ctx,
			`INSERT INTO items (key, library_id, item_type, parent_id, title, url, created_at, updated_at)
             VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			newItemKey(),
			draft.LibraryID,
			draft.ItemType,
			nullableInt64(draft.ParentID),
			nullableString(draft.Title),
			nullableString(draft.URL),
			now,
			now,
		)
		if execErr == nil {
			id, err = res.LastInsertId()
			if err != nil {
				return nil, fmt.Errorf("last insert id: %w", err)
			}
			break
		}
		if attempt < 3 && strings.Contains(execErr.Error(), "UNIQUE") {
			continue
		}
		return nil, fmt.Errorf("insert item: %w", execErr)
	}

	for field, value := range draft.Fields {
		if strings.TrimSpace(field) == "" {
			continue
		}
		if _, err := tx.ExecContext(
			ctx,
			`INSERT INTO item_fields (item_id, field, value) VALUES (?, ?, ?)`,
			id,
			field,
			value,
		); err != nil {
			return nil, fmt.Errorf("insert item field %q: %w", field, err)
		}
	}

	for pos, creator := range draft.Creators {
		if _, err := tx.ExecContext(
			ctx,
			`INSERT INTO creators (item_id, position, creator_type, first_name, last_name)
             VALUES (?, ?, ?, ?, ?)`,
			id,
			pos,
			creator.CreatorType,
			nullableString(creator.FirstName),
			nullableString(creator.LastName),
		); err != nil {
			return nil, fmt.Errorf("insert creator: %w", err)
		}
	}

	for _, tag := range draft.Tags {
		if err := addTagTx(ctx, tx, id, tag); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit insert item: %w", err)
	}
	return s.ItemByID(ctx, id)
}

// ItemByID fetches an item by identifier. Returns nil when absent.
func (s *Store) ItemByID(ctx context.Context, id int64) (*Item, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM items WHERE id = ?`, id)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	return item, nil
}

// ItemByKey fetches an item by key. Returns nil when absent.
func (s *Store) ItemByKey(ctx context.Context, key string) (*Item, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM items WHERE key = ?`, key)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get item by key: %w", err)
	}
	return item, nil
}

// ChildItems returns the children of an item ordered by identifier.
func (s *Store) ChildItems(ctx context.Context, parentID int64) ([]*Item, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+itemColumns+` FROM items WHERE parent_id = ? ORDER BY id`, parentID)
	if err != nil {
		return nil, fmt.Errorf("list child items: %w", err)
	}
	defer rows.Close()

	var items []*Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// ItemsByLibrary returns the top-level items in a library ordered by
// creation time.
func (s *Store) ItemsByLibrary(ctx context.Context, libraryID int64) ([]*Item, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+itemColumns+` FROM items WHERE library_id = ? AND parent_id IS NULL ORDER BY created_at, id`,
		libraryID,
	)
	if err != nil {
		return nil, fmt.Errorf("list library items: %w", err)
	}
	defer rows.Close()

	var items []*Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// UpdateItem persists title and url changes to an item.
func (s *Store) UpdateItem(ctx context.Context, item *Item) error {
	if item == nil {
		return errors.New("item is nil")
	}
	item.UpdatedAt = time.Now().UTC()
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE items SET item_type = ?, title = ?, url = ?, updated_at = ? WHERE id = ?`,
		item.ItemType,
		nullableString(item.Title),
		nullableString(item.URL),
		item.UpdatedAt.Format(time.RFC3339Nano),
		item.ID,
	)
	if err != nil {
		return fmt.Errorf("update item: %w", err)
	}
	return nil
}

// Reparent attaches an item under a new parent.
func (s *Store) Reparent(ctx context.Context, itemID, parentID int64) error {
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE items SET parent_id = ?, updated_at = ? WHERE id = ?`,
		parentID,
		time.Now().UTC().Format(time.RFC3339Nano),
		itemID,
	)
	if err != nil {
		return fmt.Errorf("reparent item: %w", err)
	}
	return nil
}

// DeleteItem removes an item and its children.
func (s *Store) DeleteItem(ctx context.Context, id int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM items WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete item: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// SetField upserts a single field value on an item.
func (s *Store) SetField(ctx context.Context, itemID int64, field, value string) error {
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO item_fields (item_id, field, value) VALUES (?, ?, ?)
         ON CONFLICT(item_id, field) DO UPDATE SET value = excluded.value`,
		itemID,
		field,
		value,
	)
	if err != nil {
		return fmt.Errorf("set item field: %w", err)
	}
	return nil
}

// Fields returns the extended field values stored on an item.
func (s *Store) Fields(ctx context.Context, itemID int64) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT field, value FROM item_fields WHERE item_id = ?`, itemID)
	if err != nil {
		return nil, fmt.Errorf("item fields: %w", err)
	}
	defer rows.Close()

	fields := make(map[string]string)
	for rows.Next() {
		var field, value string
		if err := rows.Scan(&field, &value); err != nil {
			return nil, err
		}
		fields[field] = value
	}
	return fields, rows.Err()
}

// CreatorsForItem returns an item's creators in declaration order.
func (s *Store) CreatorsForItem(ctx context.Context, itemID int64) ([]Creator, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT creator_type, first_name, last_name FROM creators WHERE item_id = ? ORDER BY position`,
		itemID,
	)
	if err != nil {
		return nil, fmt.Errorf("item creators: %w", err)
	}
	defer rows.Close()

	var creators []Creator
	for rows.Next() {
		var (
			creatorType string
			first       sql.NullString
			last        sql.NullString
		)
		if err := rows.Scan(&creatorType, &first, &last); err != nil {
			return nil, err
		}
		creators = append(creators, Creator{
			CreatorType: creatorType,
			FirstName:   first.String,
			LastName:    last.String,
		})
	}
	return creators, rows.Err()
}

// ReplaceCreators swaps an item's creator list.
func (s *Store) ReplaceCreators(ctx context.Context, itemID int64, creators []Creator) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace creators: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM creators WHERE item_id = ?`, itemID); err != nil {
		return fmt.Errorf("clear creators: %w", err)
	}
	for pos, creator := range creators {
		if _, err := tx.ExecContext(
			ctx,
			`INSERT INTO creators (item_id, position, creator_type, first_name, last_name)
             VALUES (?, ?, ?, ?, ?)`,
			itemID,
			pos,
			creator.CreatorType,
			nullableString(creator.FirstName),
			nullableString(creator.LastName),
		); err != nil {
			return fmt.Errorf("insert creator: %w", err)
		}
	}
	return tx.Commit()
}

// AddTags attaches tags to an item. Existing tags are reused and
// duplicate memberships are ignored.
func (s *Store) AddTags(ctx context.Context, itemID int64, tags ...string) error {
	if len(tags) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin add tags: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, tag := range tags {
		if err := addTagTx(ctx, tx, itemID, tag); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// TagsForItem returns an item's tag names sorted alphabetically.
func (s *Store) TagsForItem(ctx context.Context, itemID int64) ([]string, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT t.name FROM tags t JOIN item_tags it ON it.tag_id = t.id WHERE it.item_id = ? ORDER BY t.name`,
		itemID,
	)
	if err != nil {
		return nil, fmt.Errorf("item tags: %w", err)
	}
	defer rows.Close()

	var tags []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		tags = append(tags, name)
	}
	return tags, rows.Err()
}

func addTagTx(ctx context.Context, tx *sql.Tx, itemID int64, tag string) error {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return nil
	}
	if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO tags (name) VALUES (?)`, tag); err != nil {
		return fmt.Errorf("insert tag: %w", err)
	}
	var tagID int64
	if err := tx.QueryRowContext(ctx, `SELECT id FROM tags WHERE name = ?`, tag).Scan(&tagID); err != nil {
		return fmt.Errorf("lookup tag: %w", err)
	}
	if _, err := tx.ExecContext(
		ctx,
		`INSERT OR IGNORE INTO item_tags (item_id, tag_id) VALUES (?, ?)`,
		itemID,
		tagID,
	); err != nil {
		return fmt.Errorf("attach tag: %w", err)
	}
	return nil
}

const itemColumns = "id, key, library_id, item_type, parent_id, title, url, created_at, updated_at"

func scanItem(scanner interface{ Scan(dest ...any) error }) (*Item, error) {
	var (
		id         int64
		key        string
		libraryID  int64
		itemType   string
		parentID   sql.NullInt64
		title      sql.NullString
		url        sql.NullString
		createdRaw string
		updatedRaw string
	)
	if err := scanner.Scan(&id, &key, &libraryID, &itemType, &parentID, &title, &url, &createdRaw, &updatedRaw); err != nil {
		return nil, err
	}

	item := &Item{
		ID:        id,
		Key:       key,
		LibraryID: libraryID,
		ItemType:  itemType,
		Title:     title.String,
		URL:       url.String,
	}
	if parentID.Valid {
		pid := parentID.Int64
		item.ParentID = &pid
	}
	if created, err := parseTimeString(createdRaw); err == nil {
		item.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		item.UpdatedAt = updated
	}
	return item, nil
}
