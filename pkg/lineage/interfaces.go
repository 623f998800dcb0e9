package lineage

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"
)

// BlobStore defines the interface for byte storage used by the blob backend
type BlobStore interface {
	// Upload writes content under objectKey, creating any missing parents
	Upload(ctx context.Context, objectKey string, reader io.Reader, params UploadParams) error

	// Download opens the content stored under objectKey
	Download(ctx context.Context, objectKey string) (io.ReadCloser, error)

	// Delete removes objectKey; deleting an absent key is not an error
	Delete(ctx context.Context, objectKey string) error

	// GetObjectMeta retrieves metadata for an object
	GetObjectMeta(ctx context.Context, objectKey string) (*ObjectMeta, error)
}

// ContentBackend abstracts where the bytes or text of an item live.
type ContentBackend interface {
	// Kind reports which items this backend serves
	Kind() Kind

	// Name identifies the backend in errors and logs
	Name() string

	// Store persists the content and returns a reference to it with its size
	Store(ctx context.Context, req StoreRequest) (ref string, size int64, err error)

	// Fetch opens the content behind ref
	Fetch(ctx context.Context, ref string) (io.ReadCloser, error)

	// Remove deletes the content behind ref; removing absent content is not an error
	Remove(ctx context.Context, ref string) error
}

// TxFn is a function that runs within a per-item transaction
type TxFn func(ctx context.Context) error

// Repository defines the interface for item and version persistence
type Repository interface {
	// Item registry
	CreateItem(ctx context.Context, item *Item) error
	GetItem(ctx context.Context, id uuid.UUID) (*Item, error)
	ListItemsByProject(ctx context.Context, projectID uuid.UUID, kind Kind) ([]*Item, error)
	UpdateItem(ctx context.Context, item *Item) error
	DeleteItem(ctx context.Context, id uuid.UUID) error

	// Version store
	AppendVersion(ctx context.Context, params AppendVersionParams) (*Version, error)
	ListVersions(ctx context.Context, itemID uuid.UUID) ([]*Version, error)
	GetVersion(ctx context.Context, itemID uuid.UUID, versionNumber int) (*Version, error)
	DeleteVersions(ctx context.Context, itemID uuid.UUID) error

	// ExecItemTx runs fn as one atomically committed unit holding an
	// exclusive lock on itemID. Repository calls made with the context
	// passed to fn participate in the unit.
	ExecItemTx(ctx context.Context, itemID uuid.UUID, fn TxFn) error
}

// ProjectLookup resolves owning projects
type ProjectLookup interface {
	// FindProject returns ErrProjectNotFound when the project does not exist
	FindProject(ctx context.Context, id uuid.UUID) (*Project, error)
}

// UserLookup resolves authors
type UserLookup interface {
	// FindUser accepts a user ID or an email and returns (nil, nil) when absent
	FindUser(ctx context.Context, idOrEmail string) (*User, error)
}

// EventSink defines the interface for lineage event handling
type EventSink interface {
	// ItemCreated is fired when an item is created
	ItemCreated(ctx context.Context, item *Item) error

	// ItemUpdated is fired when new content replaces the current content
	ItemUpdated(ctx context.Context, item *Item, snapshot *Version) error

	// ItemRestored is fired when an item is set back to a historical version
	ItemRestored(ctx context.Context, item *Item, from int, snapshot *Version) error

	// ItemDeleted is fired when an item and its history are removed
	ItemDeleted(ctx context.Context, itemID uuid.UUID) error
}

// ObjectMeta contains metadata about an object in a blob store
type ObjectMeta struct {
	Key         string
	Size        int64
	ContentType string
	UpdatedAt   time.Time
	ETag        string
}

// UploadParams contains parameters for uploading an object
type UploadParams struct {
	MimeType string
	Size     int64
}

// StoreRequest describes content handed to a ContentBackend.
type StoreRequest struct {
	ProjectID uuid.UUID
	Name      string
	MimeType  string
	Reader    io.Reader
}
