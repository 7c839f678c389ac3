package library

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// DefaultLibraryName is the name of the personal library created on
// first open.
const DefaultLibraryName = "My Library"

// EnsureDefaultLibrary creates the personal library if no libraries
// exist and returns it.
func (s *Store) EnsureDefaultLibrary(ctx context.Context) (*Library, error) {
	lib, err := s.libraryByName(ctx, DefaultLibraryName)
	if err != nil {
		return nil, err
	}
	if lib != nil {
		return lib, nil
	}
	return s.CreateLibrary(ctx, DefaultLibraryName, false)
}

// DefaultLibrary returns the personal library.
func (s *Store) DefaultLibrary(ctx context.Context) (*Library, error) {
	return s.libraryByName(ctx, DefaultLibraryName)
}

// CreateLibrary inserts a new library.
func (s *Store) CreateLibrary(ctx context.Context, name string, readOnly bool) (*Library, error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.db.ExecContext(
		ctx,
		`INSERT INTO libraries (name, read_only, created_at) VALUES (?, ?, ?)`,
		name,
		boolToInt(readOnly),
		now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert library: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.LibraryByID(ctx, id)
}

// LibraryByID fetches a library by identifier. Returns nil when absent.
func (s *Store) LibraryByID(ctx context.Context, id int64) (*Library, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, name, read_only, created_at FROM libraries WHERE id = ?`, id)
	lib, err := scanLibrary(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get library: %w", err)
	}
	return lib, nil
}

func (s *Store) libraryByName(ctx context.Context, name string) (*Library, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, name, read_only, created_at FROM libraries WHERE name = ?`, name)
	lib, err := scanLibrary(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get library by name: %w", err)
	}
	return lib, nil
}

// Libraries returns all libraries ordered by identifier.
func (s *Store) Libraries(ctx context.Context) ([]*Library, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, read_only, created_at FROM libraries ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list libraries: %w", err)
	}
	defer rows.Close()

	var libs []*Library
	for rows.Next() {
		lib, err := scanLibrary(rows)
		if err != nil {
			return nil, err
		}
		libs = append(libs, lib)
	}
	return libs, rows.Err()
}

// SetSelection records the destination the desktop client has focused.
func (s *Store) SetSelection(ctx context.Context, libraryID int64, collectionID *int64) error {
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO selection (id, library_id, collection_id) VALUES (1, ?, ?)
         ON CONFLICT(id) DO UPDATE SET library_id = excluded.library_id, collection_id = excluded.collection_id`,
		libraryID,
		nullableInt64(collectionID),
	)
	if err != nil {
		return fmt.Errorf("set selection: %w", err)
	}
	return nil
}

// Selection returns the active destination, falling back to the default
// library when nothing has been selected.
func (s *Store) Selection(ctx context.Context) (Selection, error) {
	row := s.db.QueryRowContext(ctx, `SELECT library_id, collection_id FROM selection WHERE id = 1`)
	var (
		libraryID    int64
		collectionID sql.NullInt64
	)
	err := row.Scan(&libraryID, &collectionID)
	if errors.Is(err, sql.ErrNoRows) {
		lib, libErr := s.DefaultLibrary(ctx)
		if libErr != nil {
			return Selection{}, libErr
		}
		if lib == nil {
			return Selection{}, errors.New("no default library")
		}
		return Selection{LibraryID: lib.ID}, nil
	}
	if err != nil {
		return Selection{}, fmt.Errorf("get selection: %w", err)
	}
	sel := Selection{LibraryID: libraryID}
	if collectionID.Valid {
		id := collectionID.Int64
		sel.CollectionID = &id
	}
	return sel, nil
}

func scanLibrary(scanner interface{ Scan(dest ...any) error }) (*Library, error) {
	var (
		id         int64
		name       string
		readOnly   int
		createdRaw string
	)
	if err := scanner.Scan(&id, &name, &readOnly, &createdRaw); err != nil {
		return nil, err
	}
	lib := &Library{ID: id, Name: name, ReadOnly: readOnly != 0}
	if created, err := parseTimeString(createdRaw); err == nil {
		lib.CreatedAt = created
	}
	return lib, nil
}
