package postgres

import (
	"context"
	"fmt"
)

// Schema creates the lineage tables. projects and users are owned by the
// host application and only read by Directory.
const Schema = `
CREATE TABLE IF NOT EXISTS lineage_items (
    id           UUID PRIMARY KEY,
    kind         TEXT NOT NULL CHECK (kind IN ('file', 'document')),
    project_id   UUID NOT NULL,
    name         TEXT NOT NULL,
    mime_type    TEXT NOT NULL DEFAULT '',
    size_bytes   BIGINT NOT NULL DEFAULT 0,
    content_ref  TEXT NOT NULL DEFAULT '',
    updated_by   UUID,
    created_at   TIMESTAMPTZ NOT NULL,
    updated_at   TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_lineage_items_project
    ON lineage_items(project_id, kind, created_at);

CREATE TABLE IF NOT EXISTS lineage_versions (
    id             UUID PRIMARY KEY,
    item_id        UUID NOT NULL REFERENCES lineage_items(id) ON DELETE CASCADE,
    version_number INTEGER NOT NULL CHECK (version_number > 0),
    name           TEXT NOT NULL,
    mime_type      TEXT NOT NULL DEFAULT '',
    size_bytes     BIGINT NOT NULL DEFAULT 0,
    content_ref    TEXT NOT NULL DEFAULT '',
    author_id      UUID,
    change_note    TEXT NOT NULL DEFAULT '',
    created_at     TIMESTAMPTZ NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_lineage_versions_item_number
    ON lineage_versions(item_id, version_number);
`

// Migrate creates the lineage tables if they do not exist
func Migrate(ctx context.Context, db DBTX) error {
	if _, err := db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	return nil
}
