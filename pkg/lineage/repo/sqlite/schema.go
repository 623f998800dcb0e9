package sqlite

import (
	"database/sql"
	"fmt"
)

// schema is the full database schema. projects and users belong to the host
// application and are created here only so an embedded deployment can run
// on its own.
const schema = `
CREATE TABLE IF NOT EXISTS projects (
    id   TEXT PRIMARY KEY,
    name TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS users (
    id    TEXT PRIMARY KEY,
    email TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS lineage_items (
    id           TEXT PRIMARY KEY,
    kind         TEXT NOT NULL CHECK (kind IN ('file', 'document')),
    project_id   TEXT NOT NULL,
    name         TEXT NOT NULL,
    mime_type    TEXT NOT NULL DEFAULT '',
    size_bytes   INTEGER NOT NULL DEFAULT 0,
    content_ref  TEXT NOT NULL DEFAULT '',
    updated_by   TEXT,
    created_at   TEXT NOT NULL,
    updated_at   TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_lineage_items_project
    ON lineage_items(project_id, kind, created_at);

CREATE TABLE IF NOT EXISTS lineage_versions (
    id             TEXT PRIMARY KEY,
    item_id        TEXT NOT NULL REFERENCES lineage_items(id) ON DELETE CASCADE,
    version_number INTEGER NOT NULL CHECK (version_number > 0),
    name           TEXT NOT NULL,
    mime_type      TEXT NOT NULL DEFAULT '',
    size_bytes     INTEGER NOT NULL DEFAULT 0,
    content_ref    TEXT NOT NULL DEFAULT '',
    author_id      TEXT,
    change_note    TEXT NOT NULL DEFAULT '',
    created_at     TEXT NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_lineage_versions_item_number
    ON lineage_versions(item_id, version_number);
`

// Migrate creates the schema. Every statement is idempotent.
func Migrate(db *sql.DB) error {
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	return nil
}
