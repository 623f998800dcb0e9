package lineage

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Error types
var (
	// ErrNotFound is matched by every not-found error of this package.
	ErrNotFound = errors.New("not found")

	// ErrItemNotFound indicates an item was not found
	ErrItemNotFound = &notFoundError{"item not found"}

	// ErrVersionNotFound indicates a version number does not exist for an item
	ErrVersionNotFound = &notFoundError{"version not found"}

	// ErrProjectNotFound indicates the owning project does not exist
	ErrProjectNotFound = &notFoundError{"project not found"}

	// ErrConflictingVersionWrite indicates two mutations on one item collided
	ErrConflictingVersionWrite = errors.New("conflicting version write")

	// ErrContentIO indicates the content backend failed to store, fetch or remove
	ErrContentIO = errors.New("content i/o failure")

	// ErrInvalidInput indicates malformed or missing request fields
	ErrInvalidInput = errors.New("invalid input")
)

type notFoundError struct {
	msg string
}

func (e *notFoundError) Error() string { return e.msg }

// Is allows errors.Is() to match any not-found sentinel against ErrNotFound.
func (e *notFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// IsNotFound reports whether err is any of the not-found errors.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// ItemError represents an error related to a lineage operation on an item
type ItemError struct {
	ItemID uuid.UUID
	Op     string
	Err    error
}

func (e *ItemError) Error() string {
	return fmt.Sprintf("lineage operation %s failed for item %s: %v", e.Op, e.ItemID, e.Err)
}

func (e *ItemError) Unwrap() error {
	return e.Err
}

// StorageError represents an error related to content backend operations
type StorageError struct {
	Backend string
	Key     string
	Op      string
	Err     error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage operation %s failed for key %s on backend %s: %v", e.Op, e.Key, e.Backend, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// Is makes every StorageError match ErrContentIO.
func (e *StorageError) Is(target error) bool {
	return target == ErrContentIO
}

func invalidInput(err error) error {
	return fmt.Errorf("%w: %v", ErrInvalidInput, err)
}
