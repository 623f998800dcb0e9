package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tendant/content-lineage/pkg/lineage"
)

// Repository implements lineage.Repository on SQLite
type Repository struct {
	db *sql.DB
}

// New creates a repository over a database opened with Open and migrated
func New(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const itemColumns = `id, kind, project_id, name, mime_type, size_bytes, content_ref, updated_by, created_at, updated_at`

const versionColumns = `id, item_id, version_number, name, mime_type, size_bytes, content_ref, author_id, change_note, created_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanItem(row scanner) (*lineage.Item, error) {
	var item lineage.Item
	var kind, createdAt, updatedAt string
	var updatedBy uuid.NullUUID
	if err := row.Scan(&item.ID, &kind, &item.ProjectID, &item.Name, &item.MimeType,
		&item.SizeBytes, &item.ContentRef, &updatedBy, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	item.Kind = lineage.Kind(kind)
	item.UpdatedBy = fromNullUUID(updatedBy)

	var err error
	if item.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if item.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &item, nil
}

func scanVersion(row scanner) (*lineage.Version, error) {
	var v lineage.Version
	var createdAt string
	var authorID uuid.NullUUID
	if err := row.Scan(&v.ID, &v.ItemID, &v.VersionNumber, &v.Name, &v.MimeType,
		&v.SizeBytes, &v.ContentRef, &authorID, &v.ChangeNote, &createdAt); err != nil {
		return nil, err
	}
	v.AuthorID = fromNullUUID(authorID)

	var err error
	if v.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	return &v, nil
}

// Item operations

func (r *Repository) CreateItem(ctx context.Context, item *lineage.Item) error {
	query := `INSERT INTO lineage_items (` + itemColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := executor(ctx, r.db).ExecContext(ctx, query,
		item.ID.String(), string(item.Kind), item.ProjectID.String(), item.Name, item.MimeType,
		item.SizeBytes, item.ContentRef, nullableUUID(item.UpdatedBy),
		formatTime(item.CreatedAt), formatTime(item.UpdatedAt))
	if err != nil {
		return handleSQLiteError("create item", err)
	}
	return nil
}

func (r *Repository) GetItem(ctx context.Context, id uuid.UUID) (*lineage.Item, error) {
	query := `SELECT ` + itemColumns + ` FROM lineage_items WHERE id = ?`

	item, err := scanItem(executor(ctx, r.db).QueryRowContext(ctx, query, id.String()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, lineage.ErrItemNotFound
		}
		return nil, handleSQLiteError("get item", err)
	}
	return item, nil
}

func (r *Repository) ListItemsByProject(ctx context.Context, projectID uuid.UUID, kind lineage.Kind) ([]*lineage.Item, error) {
	query := `SELECT ` + itemColumns + ` FROM lineage_items
		WHERE project_id = ? AND kind = ?
		ORDER BY created_at ASC, id ASC`

	rows, err := executor(ctx, r.db).QueryContext(ctx, query, projectID.String(), string(kind))
	if err != nil {
		return nil, handleSQLiteError("list items", err)
	}
	defer rows.Close()

	items := make([]*lineage.Item, 0)
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, handleSQLiteError("list items", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, handleSQLiteError("list items", err)
	}
	return items, nil
}

func (r *Repository) UpdateItem(ctx context.Context, item *lineage.Item) error {
	query := `UPDATE lineage_items SET
			name = ?, mime_type = ?, size_bytes = ?, content_ref = ?,
			updated_by = ?, updated_at = ?
		WHERE id = ?`

	res, err := executor(ctx, r.db).ExecContext(ctx, query,
		item.Name, item.MimeType, item.SizeBytes, item.ContentRef,
		nullableUUID(item.UpdatedBy), formatTime(item.UpdatedAt), item.ID.String())
	if err != nil {
		return handleSQLiteError("update item", err)
	}
	return requireRow(res, lineage.ErrItemNotFound)
}

func (r *Repository) DeleteItem(ctx context.Context, id uuid.UUID) error {
	res, err := executor(ctx, r.db).ExecContext(ctx, `DELETE FROM lineage_items WHERE id = ?`, id.String())
	if err != nil {
		return handleSQLiteError("delete item", err)
	}
	return requireRow(res, lineage.ErrItemNotFound)
}

// Version operations

// AppendVersion assigns max+1 in the INSERT itself; the unique index on
// (item_id, version_number) rejects a concurrent duplicate.
func (r *Repository) AppendVersion(ctx context.Context, params lineage.AppendVersionParams) (*lineage.Version, error) {
	query := `INSERT INTO lineage_versions (` + versionColumns + `)
		SELECT ?, ?, COALESCE(MAX(version_number), 0) + 1, ?, ?, ?, ?, ?, ?, ?
		FROM lineage_versions WHERE item_id = ?
		RETURNING ` + versionColumns

	row := executor(ctx, r.db).QueryRowContext(ctx, query,
		uuid.NewString(), params.ItemID.String(), params.Name, params.MimeType,
		params.SizeBytes, params.ContentRef, nullableUUID(params.AuthorID), params.ChangeNote,
		formatTime(time.Now()), params.ItemID.String())

	v, err := scanVersion(row)
	if err != nil {
		return nil, handleSQLiteError("append version", err)
	}
	return v, nil
}

func (r *Repository) ListVersions(ctx context.Context, itemID uuid.UUID) ([]*lineage.Version, error) {
	query := `SELECT ` + versionColumns + ` FROM lineage_versions
		WHERE item_id = ? ORDER BY version_number DESC`

	rows, err := executor(ctx, r.db).QueryContext(ctx, query, itemID.String())
	if err != nil {
		return nil, handleSQLiteError("list versions", err)
	}
	defer rows.Close()

	versions := make([]*lineage.Version, 0)
	for rows.Next() {
		v, err := scanVersion(rows)
		if err != nil {
			return nil, handleSQLiteError("list versions", err)
		}
		versions = append(versions, v)
	}
	if err := rows.Err(); err != nil {
		return nil, handleSQLiteError("list versions", err)
	}
	return versions, nil
}

func (r *Repository) GetVersion(ctx context.Context, itemID uuid.UUID, versionNumber int) (*lineage.Version, error) {
	query := `SELECT ` + versionColumns + ` FROM lineage_versions WHERE item_id = ? AND version_number = ?`

	v, err := scanVersion(executor(ctx, r.db).QueryRowContext(ctx, query, itemID.String(), versionNumber))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, lineage.ErrVersionNotFound
		}
		return nil, handleSQLiteError("get version", err)
	}
	return v, nil
}

func (r *Repository) DeleteVersions(ctx context.Context, itemID uuid.UUID) error {
	if _, err := executor(ctx, r.db).ExecContext(ctx, `DELETE FROM lineage_versions WHERE item_id = ?`, itemID.String()); err != nil {
		return handleSQLiteError("delete versions", err)
	}
	return nil
}

// ExecItemTx runs fn in an immediate transaction. SQLite locks the whole
// database for writing, which covers the item.
func (r *Repository) ExecItemTx(ctx context.Context, itemID uuid.UUID, fn lineage.TxFn) error {
	return execImmediate(ctx, r.db, fn)
}

func requireRow(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return notFound
	}
	return nil
}
