package lineage

import (
	"time"

	"github.com/google/uuid"
)

// Kind discriminates the content an item carries.
type Kind string

// Kind constants (typed).
const (
	KindFile     Kind = "file"
	KindDocument Kind = "document"
)

// SnapshotPolicy decides whether Update preserves the current state before
// overwriting it.
type SnapshotPolicy string

const (
	// SnapshotUnlessEmpty skips the snapshot when the item has never held content.
	SnapshotUnlessEmpty SnapshotPolicy = "unless_empty"
	// SnapshotAlways appends a version on every update.
	SnapshotAlways SnapshotPolicy = "always"
)

// Author labels used when a version's author cannot be shown by email.
const (
	AuthorSystem  = "System"
	AuthorUnknown = "Unknown"
)

// Item is the current state of a file or document, independent of history.
//
// ContentRef is the storage key for blob-backed items and the text itself for
// inline items.
type Item struct {
	ID         uuid.UUID  `json:"id"`
	Kind       Kind       `json:"kind"`
	ProjectID  uuid.UUID  `json:"project_id"`
	Name       string     `json:"name"`
	MimeType   string     `json:"mime_type,omitempty"`
	SizeBytes  int64      `json:"size_bytes"`
	ContentRef string     `json:"content_ref,omitempty"`
	UpdatedBy  *uuid.UUID `json:"updated_by,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// IsEmpty reports whether the item holds no content worth preserving.
func (i *Item) IsEmpty() bool {
	return i.ContentRef == "" || i.SizeBytes == 0
}

// Version is an immutable snapshot of an item's content.
type Version struct {
	ID            uuid.UUID  `json:"id"`
	ItemID        uuid.UUID  `json:"item_id"`
	VersionNumber int        `json:"version_number"`
	Name          string     `json:"name"`
	MimeType      string     `json:"mime_type,omitempty"`
	SizeBytes     int64      `json:"size_bytes"`
	ContentRef    string     `json:"content_ref,omitempty"`
	AuthorID      *uuid.UUID `json:"author_id,omitempty"`
	ChangeNote    string     `json:"change_note,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// HistoryEntry is a version together with its resolved author label.
type HistoryEntry struct {
	*Version
	Author string `json:"author"`
}

// Project is the owning project as seen by this package.
type Project struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

// User is an author as seen by this package.
type User struct {
	ID    uuid.UUID `json:"id"`
	Email string    `json:"email"`
}

// AppendVersionParams contains parameters for appending a version. The
// version number is assigned by the repository.
type AppendVersionParams struct {
	ItemID     uuid.UUID
	Name       string
	MimeType   string
	SizeBytes  int64
	ContentRef string
	AuthorID   *uuid.UUID
	ChangeNote string
}

// snapshotOf captures the item's current state as version parameters.
func snapshotOf(item *Item, author *uuid.UUID, note string) AppendVersionParams {
	return AppendVersionParams{
		ItemID:     item.ID,
		Name:       item.Name,
		MimeType:   item.MimeType,
		SizeBytes:  item.SizeBytes,
		ContentRef: item.ContentRef,
		AuthorID:   author,
		ChangeNote: note,
	}
}
