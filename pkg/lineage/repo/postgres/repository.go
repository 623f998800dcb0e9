package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tendant/content-lineage/pkg/lineage"
)

// Repository implements lineage.Repository using PostgreSQL
type Repository struct {
	db Beginner
}

// New creates a new PostgreSQL repository
func New(db Beginner) *Repository {
	return &Repository{db: db}
}

// NewWithPool creates a new PostgreSQL repository with connection pool
func NewWithPool(pool *pgxpool.Pool) *Repository {
	return &Repository{db: pool}
}

const itemColumns = `id, kind, project_id, name, mime_type, size_bytes, content_ref, updated_by, created_at, updated_at`

const versionColumns = `id, item_id, version_number, name, mime_type, size_bytes, content_ref, author_id, change_note, created_at`

func scanItem(row pgx.Row) (*lineage.Item, error) {
	var item lineage.Item
	var kind string
	err := row.Scan(&item.ID, &kind, &item.ProjectID, &item.Name, &item.MimeType,
		&item.SizeBytes, &item.ContentRef, &item.UpdatedBy, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return nil, err
	}
	item.Kind = lineage.Kind(kind)
	return &item, nil
}

func scanVersion(row pgx.Row) (*lineage.Version, error) {
	var v lineage.Version
	err := row.Scan(&v.ID, &v.ItemID, &v.VersionNumber, &v.Name, &v.MimeType,
		&v.SizeBytes, &v.ContentRef, &v.AuthorID, &v.ChangeNote, &v.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// Item operations

func (r *Repository) CreateItem(ctx context.Context, item *lineage.Item) error {
	query := `INSERT INTO lineage_items (` + itemColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := executor(ctx, r.db).Exec(ctx, query,
		item.ID, string(item.Kind), item.ProjectID, item.Name, item.MimeType,
		item.SizeBytes, item.ContentRef, item.UpdatedBy, item.CreatedAt, item.UpdatedAt)
	if err != nil {
		return handlePostgresError("create item", err)
	}
	return nil
}

func (r *Repository) GetItem(ctx context.Context, id uuid.UUID) (*lineage.Item, error) {
	query := `SELECT ` + itemColumns + ` FROM lineage_items WHERE id = $1`

	item, err := scanItem(executor(ctx, r.db).QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, lineage.ErrItemNotFound
		}
		return nil, handlePostgresError("get item", err)
	}
	return item, nil
}

func (r *Repository) ListItemsByProject(ctx context.Context, projectID uuid.UUID, kind lineage.Kind) ([]*lineage.Item, error) {
	query := `SELECT ` + itemColumns + ` FROM lineage_items
		WHERE project_id = $1 AND kind = $2
		ORDER BY created_at ASC, id ASC`

	rows, err := executor(ctx, r.db).Query(ctx, query, projectID, string(kind))
	if err != nil {
		return nil, handlePostgresError("list items", err)
	}
	defer rows.Close()

	items := make([]*lineage.Item, 0)
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, handlePostgresError("list items", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, handlePostgresError("list items", err)
	}
	return items, nil
}

func (r *Repository) UpdateItem(ctx context.Context, item *lineage.Item) error {
	query := `
		UPDATE lineage_items SET
			name = $2, mime_type = $3, size_bytes = $4, content_ref = $5,
			updated_by = $6, updated_at = $7
		WHERE id = $1`

	tag, err := executor(ctx, r.db).Exec(ctx, query,
		item.ID, item.Name, item.MimeType, item.SizeBytes, item.ContentRef,
		item.UpdatedBy, item.UpdatedAt)
	if err != nil {
		return handlePostgresError("update item", err)
	}
	if tag.RowsAffected() == 0 {
		return lineage.ErrItemNotFound
	}
	return nil
}

func (r *Repository) DeleteItem(ctx context.Context, id uuid.UUID) error {
	tag, err := executor(ctx, r.db).Exec(ctx, `DELETE FROM lineage_items WHERE id = $1`, id)
	if err != nil {
		return handlePostgresError("delete item", err)
	}
	if tag.RowsAffected() == 0 {
		return lineage.ErrItemNotFound
	}
	return nil
}

// Version operations

// AppendVersion assigns max+1 in the INSERT itself; the unique index on
// (item_id, version_number) rejects a concurrent duplicate.
func (r *Repository) AppendVersion(ctx context.Context, params lineage.AppendVersionParams) (*lineage.Version, error) {
	query := `
		INSERT INTO lineage_versions (` + versionColumns + `)
		SELECT $1, $2, COALESCE(MAX(version_number), 0) + 1, $3, $4, $5, $6, $7, $8, $9
		FROM lineage_versions WHERE item_id = $2
		RETURNING ` + versionColumns

	v, err := scanVersion(executor(ctx, r.db).QueryRow(ctx, query,
		uuid.New(), params.ItemID, params.Name, params.MimeType, params.SizeBytes,
		params.ContentRef, params.AuthorID, params.ChangeNote, time.Now().UTC()))
	if err != nil {
		return nil, handlePostgresError("append version", err)
	}
	return v, nil
}

func (r *Repository) ListVersions(ctx context.Context, itemID uuid.UUID) ([]*lineage.Version, error) {
	query := `SELECT ` + versionColumns + ` FROM lineage_versions
		WHERE item_id = $1 ORDER BY version_number DESC`

	rows, err := executor(ctx, r.db).Query(ctx, query, itemID)
	if err != nil {
		return nil, handlePostgresError("list versions", err)
	}
	defer rows.Close()

	versions := make([]*lineage.Version, 0)
	for rows.Next() {
		v, err := scanVersion(rows)
		if err != nil {
			return nil, handlePostgresError("list versions", err)
		}
		versions = append(versions, v)
	}
	if err := rows.Err(); err != nil {
		return nil, handlePostgresError("list versions", err)
	}
	return versions, nil
}

func (r *Repository) GetVersion(ctx context.Context, itemID uuid.UUID, versionNumber int) (*lineage.Version, error) {
	query := `SELECT ` + versionColumns + ` FROM lineage_versions WHERE item_id = $1 AND version_number = $2`

	v, err := scanVersion(executor(ctx, r.db).QueryRow(ctx, query, itemID, versionNumber))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, lineage.ErrVersionNotFound
		}
		return nil, handlePostgresError("get version", err)
	}
	return v, nil
}

func (r *Repository) DeleteVersions(ctx context.Context, itemID uuid.UUID) error {
	if _, err := executor(ctx, r.db).Exec(ctx, `DELETE FROM lineage_versions WHERE item_id = $1`, itemID); err != nil {
		return handlePostgresError("delete versions", err)
	}
	return nil
}

// ExecItemTx runs fn in a transaction that first locks the item row, so
// writers to the same item queue behind each other.
func (r *Repository) ExecItemTx(ctx context.Context, itemID uuid.UUID, fn lineage.TxFn) error {
	return execTx(ctx, r.db, func(ctx context.Context) error {
		var id uuid.UUID
		err := executor(ctx, r.db).QueryRow(ctx, `SELECT id FROM lineage_items WHERE id = $1 FOR UPDATE`, itemID).Scan(&id)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return lineage.ErrItemNotFound
			}
			return handlePostgresError("lock item", err)
		}
		return fn(ctx)
	})
}
