package sqlite

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/content-lineage/pkg/lineage"
	"github.com/tendant/content-lineage/pkg/lineage/repo/repotest"
)

// newTestDB creates a fresh database file with the schema applied.
func newTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := Open(filepath.Join(t.TempDir(), "lineage.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, Migrate(db))
	return db
}

func TestSQLiteRepository(t *testing.T) {
	repotest.Run(t, func(t *testing.T) lineage.Repository {
		return New(newTestDB(t))
	})
}

func TestMigrate_Idempotent(t *testing.T) {
	db := newTestDB(t)
	assert.NoError(t, Migrate(db))
}

func TestSQLiteRepository_DeleteItemCascadesVersions(t *testing.T) {
	db := newTestDB(t)
	repo := New(db)
	ctx := context.Background()

	item := repotest.NewItem(uuid.New(), "a.txt")
	require.NoError(t, repo.CreateItem(ctx, item))
	_, err := repo.AppendVersion(ctx, lineage.AppendVersionParams{ItemID: item.ID, Name: item.Name})
	require.NoError(t, err)

	require.NoError(t, repo.DeleteItem(ctx, item.ID))

	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM lineage_versions WHERE item_id = ?`, item.ID.String()).Scan(&n))
	assert.Zero(t, n)
}

func TestSQLiteRepository_DuplicateVersionNumberIsConflict(t *testing.T) {
	db := newTestDB(t)
	repo := New(db)
	ctx := context.Background()

	item := repotest.NewItem(uuid.New(), "a.txt")
	require.NoError(t, repo.CreateItem(ctx, item))
	v, err := repo.AppendVersion(ctx, lineage.AppendVersionParams{ItemID: item.ID, Name: item.Name})
	require.NoError(t, err)

	_, err = db.Exec(`INSERT INTO lineage_versions (id, item_id, version_number, name, created_at) VALUES (?, ?, ?, ?, ?)`,
		uuid.NewString(), item.ID.String(), v.VersionNumber, "dup", formatTime(v.CreatedAt))
	require.Error(t, err)
	assert.ErrorIs(t, handleSQLiteError("insert", err), lineage.ErrConflictingVersionWrite)
}

func TestSQLiteRepository_UpdateMissingItem(t *testing.T) {
	repo := New(newTestDB(t))
	err := repo.UpdateItem(context.Background(), repotest.NewItem(uuid.New(), "x.txt"))
	assert.ErrorIs(t, err, lineage.ErrItemNotFound)
}

func TestDirectory(t *testing.T) {
	db := newTestDB(t)
	dir := NewDirectory(db)
	ctx := context.Background()

	projectID := uuid.New()
	require.NoError(t, dir.UpsertProject(ctx, lineage.Project{ID: projectID, Name: "Apollo"}))

	p, err := dir.FindProject(ctx, projectID)
	require.NoError(t, err)
	assert.Equal(t, "Apollo", p.Name)

	_, err = dir.FindProject(ctx, uuid.New())
	assert.ErrorIs(t, err, lineage.ErrProjectNotFound)

	userID := uuid.New()
	require.NoError(t, dir.UpsertUser(ctx, lineage.User{ID: userID, Email: "ada@example.com"}))

	byEmail, err := dir.FindUser(ctx, "ada@example.com")
	require.NoError(t, err)
	require.NotNil(t, byEmail)
	assert.Equal(t, userID, byEmail.ID)

	byID, err := dir.FindUser(ctx, userID.String())
	require.NoError(t, err)
	require.NotNil(t, byID)
	assert.Equal(t, "ada@example.com", byID.Email)

	require.NoError(t, dir.DeleteUser(ctx, userID))
	gone, err := dir.FindUser(ctx, userID.String())
	require.NoError(t, err)
	assert.Nil(t, gone)
}
