package library

import "time"

// Library is a top-level container for items and collections. Read-only
// libraries (group libraries synced from elsewhere) reject saves.
type Library struct {
	ID        int64
	Name      string
	ReadOnly  bool
	CreatedAt time.Time
}

// Collection is a named grouping of items within a library.
type Collection struct {
	ID        int64
	LibraryID int64
	ParentID  *int64
	Name      string
	CreatedAt time.Time
}

// Item is a bibliographic record or an attachment. Attachments carry a
// non-nil parent once attached to a record; standalone attachments have
// no parent.
type Item struct {
	ID        int64
	Key       string
	LibraryID int64
	ItemType  string
	ParentID  *int64
	Title     string
	URL       string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsAttachment reports whether the item is an attachment item.
func (i *Item) IsAttachment() bool {
	return i != nil && i.ItemType == ItemTypeAttachment
}

// Creator is an author or other contributor on an item.
type Creator struct {
	CreatorType string
	FirstName   string
	LastName    string
}

// Attachment holds the file metadata for an attachment item.
type Attachment struct {
	ItemID      int64
	ContentType string
	LinkMode    string
	Path        string
	URL         string
	Status      string
	Error       string
}

// Attachment link modes.
const (
	LinkModeImportedFile = "imported_file"
	LinkModeImportedURL  = "imported_url"
	LinkModeLinkedURL    = "linked_url"
)

// Attachment fetch statuses.
const (
	AttachmentPending = "pending"
	AttachmentDone    = "done"
	AttachmentFailed  = "failed"
)

// ItemTypeAttachment is the item type used for attachment items.
const ItemTypeAttachment = "attachment"

// NewItem describes an item to insert.
type NewItem struct {
	LibraryID int64
	ItemType  string
	ParentID  *int64
	Title     string
	URL       string
	Fields    map[string]string
	Creators  []Creator
	Tags      []string
}

// Selection records the destination the desktop client currently has
// focused: a library and optionally a collection within it.
type Selection struct {
	LibraryID    int64
	CollectionID *int64
}

// Stats summarizes library contents for diagnostic output.
type Stats struct {
	Libraries          int
	Collections        int
	Items              int
	Attachments        int
	PendingAttachments int
}
