package lineage

import (
	"context"

	"github.com/google/uuid"
)

// NoopEventSink is a no-operation implementation of EventSink
// Useful for production when you don't need event handling or for testing
type NoopEventSink struct{}

// NewNoopEventSink creates a new no-operation event sink
func NewNoopEventSink() EventSink {
	return &NoopEventSink{}
}

// ItemCreated does nothing and returns nil
func (n *NoopEventSink) ItemCreated(ctx context.Context, item *Item) error {
	return nil
}

// ItemUpdated does nothing and returns nil
func (n *NoopEventSink) ItemUpdated(ctx context.Context, item *Item, snapshot *Version) error {
	return nil
}

// ItemRestored does nothing and returns nil
func (n *NoopEventSink) ItemRestored(ctx context.Context, item *Item, from int, snapshot *Version) error {
	return nil
}

// ItemDeleted does nothing and returns nil
func (n *NoopEventSink) ItemDeleted(ctx context.Context, itemID uuid.UUID) error {
	return nil
}
