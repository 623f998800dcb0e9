package lineage

import (
	"io"

	"github.com/google/uuid"
)

// Request DTOs

// CreateRequest contains parameters for creating an item with initial content
type CreateRequest struct {
	ProjectID uuid.UUID
	Name      string
	MimeType  string
	Content   io.Reader
	Author    string
}

// UpdateRequest contains parameters for replacing an item's content.
// An empty Name keeps the current name.
type UpdateRequest struct {
	ItemID     uuid.UUID
	Name       string
	MimeType   string
	Content    io.Reader
	Author     string
	ChangeNote string
}

// RestoreRequest contains parameters for restoring an item to a version
type RestoreRequest struct {
	ItemID        uuid.UUID
	VersionNumber int
	Author        string
}
