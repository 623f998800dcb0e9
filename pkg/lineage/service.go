package lineage

import (
	"context"
	"io"

	"github.com/google/uuid"
)

// Service defines the lineage operations for one kind of item
type Service interface {
	// Kind reports which items this service manages
	Kind() Kind

	// Item operations
	Create(ctx context.Context, req CreateRequest) (*Item, error)
	Get(ctx context.Context, id uuid.UUID) (*Item, error)
	List(ctx context.Context, projectID uuid.UUID) ([]*Item, error)
	Delete(ctx context.Context, id uuid.UUID) error

	// Lineage operations
	Update(ctx context.Context, req UpdateRequest) (*Item, error)
	Restore(ctx context.Context, req RestoreRequest) (*Item, error)
	History(ctx context.Context, id uuid.UUID) ([]*HistoryEntry, error)

	// Content access
	Open(ctx context.Context, id uuid.UUID) (io.ReadCloser, *Item, error)
	OpenVersion(ctx context.Context, id uuid.UUID, versionNumber int) (io.ReadCloser, *Version, error)
}
