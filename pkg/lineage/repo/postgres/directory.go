package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/tendant/content-lineage/pkg/lineage"
)

// Directory reads projects and users from the host application's tables
type Directory struct {
	db DBTX
}

// NewDirectory creates a directory over db
func NewDirectory(db DBTX) *Directory {
	return &Directory{db: db}
}

func (d *Directory) FindProject(ctx context.Context, id uuid.UUID) (*lineage.Project, error) {
	var p lineage.Project
	err := executor(ctx, d.db).QueryRow(ctx, `SELECT id, name FROM projects WHERE id = $1`, id).Scan(&p.ID, &p.Name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, lineage.ErrProjectNotFound
		}
		return nil, handlePostgresError("find project", err)
	}
	return &p, nil
}

// FindUser looks a user up by ID or email; it returns (nil, nil) when absent
func (d *Directory) FindUser(ctx context.Context, idOrEmail string) (*lineage.User, error) {
	query := `SELECT id, email FROM users WHERE email = $1`
	arg := any(idOrEmail)
	if id, err := uuid.Parse(idOrEmail); err == nil {
		query = `SELECT id, email FROM users WHERE id = $1`
		arg = id
	}

	var u lineage.User
	if err := executor(ctx, d.db).QueryRow(ctx, query, arg).Scan(&u.ID, &u.Email); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, handlePostgresError("find user", err)
	}
	return &u, nil
}
