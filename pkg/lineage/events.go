package lineage

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// LogEventSink writes lineage events to a zerolog logger.
type LogEventSink struct {
	log zerolog.Logger
}

// NewLogEventSink creates an event sink that logs at info level.
func NewLogEventSink(log zerolog.Logger) EventSink {
	return &LogEventSink{log: log.With().Str("component", "events").Logger()}
}

func (s *LogEventSink) ItemCreated(ctx context.Context, item *Item) error {
	s.log.Info().
		Str("item_id", item.ID.String()).
		Str("kind", string(item.Kind)).
		Str("project_id", item.ProjectID.String()).
		Msg("item created")
	return nil
}

func (s *LogEventSink) ItemUpdated(ctx context.Context, item *Item, snapshot *Version) error {
	ev := s.log.Info().Str("item_id", item.ID.String()).Int64("size_bytes", item.SizeBytes)
	if snapshot != nil {
		ev = ev.Int("snapshot_version", snapshot.VersionNumber)
	}
	ev.Msg("item updated")
	return nil
}

func (s *LogEventSink) ItemRestored(ctx context.Context, item *Item, from int, snapshot *Version) error {
	s.log.Info().
		Str("item_id", item.ID.String()).
		Int("restored_from", from).
		Int("snapshot_version", snapshot.VersionNumber).
		Msg("item restored")
	return nil
}

func (s *LogEventSink) ItemDeleted(ctx context.Context, itemID uuid.UUID) error {
	s.log.Info().Str("item_id", itemID.String()).Msg("item deleted")
	return nil
}
