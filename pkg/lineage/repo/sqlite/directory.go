package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"github.com/tendant/content-lineage/pkg/lineage"
)

// Directory resolves projects and users from the projects and users tables
type Directory struct {
	db *sql.DB
}

// NewDirectory creates a directory over the same database as the repository
func NewDirectory(db *sql.DB) *Directory {
	return &Directory{db: db}
}

func (d *Directory) FindProject(ctx context.Context, id uuid.UUID) (*lineage.Project, error) {
	var p lineage.Project
	err := executor(ctx, d.db).QueryRowContext(ctx, `SELECT id, name FROM projects WHERE id = ?`, id.String()).
		Scan(&p.ID, &p.Name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, lineage.ErrProjectNotFound
		}
		return nil, handleSQLiteError("find project", err)
	}
	return &p, nil
}

// FindUser looks a user up by ID or email; it returns (nil, nil) when absent
func (d *Directory) FindUser(ctx context.Context, idOrEmail string) (*lineage.User, error) {
	var u lineage.User
	err := executor(ctx, d.db).QueryRowContext(ctx, `SELECT id, email FROM users WHERE id = ? OR email = ?`, idOrEmail, idOrEmail).
		Scan(&u.ID, &u.Email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, handleSQLiteError("find user", err)
	}
	return &u, nil
}

// UpsertProject registers or renames a project
func (d *Directory) UpsertProject(ctx context.Context, p lineage.Project) error {
	_, err := executor(ctx, d.db).ExecContext(ctx,
		`INSERT INTO projects (id, name) VALUES (?, ?) ON CONFLICT (id) DO UPDATE SET name = excluded.name`,
		p.ID.String(), p.Name)
	if err != nil {
		return handleSQLiteError("upsert project", err)
	}
	return nil
}

// UpsertUser registers a user or changes their email
func (d *Directory) UpsertUser(ctx context.Context, u lineage.User) error {
	_, err := executor(ctx, d.db).ExecContext(ctx,
		`INSERT INTO users (id, email) VALUES (?, ?) ON CONFLICT (id) DO UPDATE SET email = excluded.email`,
		u.ID.String(), u.Email)
	if err != nil {
		return handleSQLiteError("upsert user", err)
	}
	return nil
}

// DeleteUser removes a user; versions they authored keep the dangling reference
func (d *Directory) DeleteUser(ctx context.Context, id uuid.UUID) error {
	if _, err := executor(ctx, d.db).ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id.String()); err != nil {
		return handleSQLiteError("delete user", err)
	}
	return nil
}
