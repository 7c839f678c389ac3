package library

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// UpsertAttachment records or replaces the file metadata for an
// attachment item.
func (s *Store) UpsertAttachment(ctx context.Context, att *Attachment) error {
	if att == nil {
		return errors.New("attachment is nil")
	}
	if att.Status == "" {
		att.Status = AttachmentPending
	}
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO attachments (item_id, content_type, link_mode, path, url, status, error_message)
         VALUES (?, ?, ?, ?, ?, ?, ?)
         ON CONFLICT(item_id) DO UPDATE SET
             content_type = excluded.content_type,
             link_mode = excluded.link_mode,
             path = excluded.path,
             url = excluded.url,
             status = excluded.status,
             error_message = excluded.error_message`,
		att.ItemID,
		nullableString(att.ContentType),
		att.LinkMode,
		nullableString(att.Path),
		nullableString(att.URL),
		att.Status,
		nullableString(att.Error),
	)
	if err != nil {
		return fmt.Errorf("upsert attachment: %w", err)
	}
	return nil
}

// AttachmentByItem returns the attachment row for an attachment item.
// Returns nil when absent.
func (s *Store) AttachmentByItem(ctx context.Context, itemID int64) (*Attachment, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT item_id, content_type, link_mode, path, url, status, error_message
         FROM attachments WHERE item_id = ?`,
		itemID,
	)
	att, err := scanAttachment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get attachment: %w", err)
	}
	return att, nil
}

// MarkAttachmentDone records a completed fetch with its stored path.
func (s *Store) MarkAttachmentDone(ctx context.Context, itemID int64, path, contentType string) error {
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE attachments SET status = ?, path = ?, content_type = ?, error_message = NULL WHERE item_id = ?`,
		AttachmentDone,
		nullableString(path),
		nullableString(contentType),
		itemID,
	)
	if err != nil {
		return fmt.Errorf("mark attachment done: %w", err)
	}
	return nil
}

// MarkAttachmentFailed records a failed fetch with its error message.
func (s *Store) MarkAttachmentFailed(ctx context.Context, itemID int64, message string) error {
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE attachments SET status = ?, error_message = ? WHERE item_id = ?`,
		AttachmentFailed,
		nullableString(message),
		itemID,
	)
	if err != nil {
		return fmt.Errorf("mark attachment failed: %w", err)
	}
	return nil
}

func scanAttachment(scanner interface{ Scan(dest ...any) error }) (*Attachment, error) {
	var (
		itemID       int64
		contentType  sql.NullString
		linkMode     string
		path         sql.NullString
		url          sql.NullString
		status       string
		errorMessage sql.NullString
	)
	if err := scanner.Scan(&itemID, &contentType, &linkMode, &path, &url, &status, &errorMessage); err != nil {
		return nil, err
	}
	return &Attachment{
		ItemID:      itemID,
		ContentType: contentType.String,
		LinkMode:    linkMode,
		Path:        path.String,
		URL:         url.String,
		Status:      status,
		Error:       errorMessage.String,
	}, nil
}
