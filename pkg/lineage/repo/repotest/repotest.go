// Package repotest holds the behaviour every lineage.Repository must share,
// run by each implementation's tests.
package repotest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/content-lineage/pkg/lineage"
)

// Factory returns an empty repository for one subtest
type Factory func(t *testing.T) lineage.Repository

// NewItem builds a file item owned by projectID
func NewItem(projectID uuid.UUID, name string) *lineage.Item {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &lineage.Item{
		ID:         uuid.New(),
		Kind:       lineage.KindFile,
		ProjectID:  projectID,
		Name:       name,
		MimeType:   "text/plain",
		SizeBytes:  5,
		ContentRef: projectID.String() + "/" + uuid.NewString() + ".txt",
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// Run exercises the item registry, the version store and ExecItemTx
func Run(t *testing.T, newRepo Factory) {
	t.Run("ItemRoundTrip", func(t *testing.T) { testItemRoundTrip(t, newRepo(t)) })
	t.Run("ListItemsByProject", func(t *testing.T) { testListItemsByProject(t, newRepo(t)) })
	t.Run("AppendVersion", func(t *testing.T) { testAppendVersion(t, newRepo(t)) })
	t.Run("GetVersion_NotFound", func(t *testing.T) { testGetVersionNotFound(t, newRepo(t)) })
	t.Run("DeleteItem", func(t *testing.T) { testDeleteItem(t, newRepo(t)) })
	t.Run("ExecItemTx_Commit", func(t *testing.T) { testExecItemTxCommit(t, newRepo(t)) })
	t.Run("ExecItemTx_Rollback", func(t *testing.T) { testExecItemTxRollback(t, newRepo(t)) })
	t.Run("ConcurrentAppends", func(t *testing.T) { testConcurrentAppends(t, newRepo(t)) })
}

func testItemRoundTrip(t *testing.T, repo lineage.Repository) {
	ctx := context.Background()
	author := uuid.New()
	item := NewItem(uuid.New(), "notes.txt")
	item.UpdatedBy = &author

	require.NoError(t, repo.CreateItem(ctx, item))

	got, err := repo.GetItem(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, item.ID, got.ID)
	assert.Equal(t, item.Kind, got.Kind)
	assert.Equal(t, item.ProjectID, got.ProjectID)
	assert.Equal(t, item.Name, got.Name)
	assert.Equal(t, item.MimeType, got.MimeType)
	assert.Equal(t, item.SizeBytes, got.SizeBytes)
	assert.Equal(t, item.ContentRef, got.ContentRef)
	require.NotNil(t, got.UpdatedBy)
	assert.Equal(t, author, *got.UpdatedBy)
	assert.True(t, item.CreatedAt.Equal(got.CreatedAt))

	got.Name = "renamed.txt"
	got.SizeBytes = 42
	got.UpdatedBy = nil
	require.NoError(t, repo.UpdateItem(ctx, got))

	again, err := repo.GetItem(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, "renamed.txt", again.Name)
	assert.Equal(t, int64(42), again.SizeBytes)
	assert.Nil(t, again.UpdatedBy)

	_, err = repo.GetItem(ctx, uuid.New())
	assert.ErrorIs(t, err, lineage.ErrItemNotFound)
	assert.True(t, lineage.IsNotFound(err))
}

func testListItemsByProject(t *testing.T, repo lineage.Repository) {
	ctx := context.Background()
	projectID := uuid.New()

	first := NewItem(projectID, "a.txt")
	second := NewItem(projectID, "b.txt")
	second.CreatedAt = first.CreatedAt.Add(time.Second)
	doc := NewItem(projectID, "doc")
	doc.Kind = lineage.KindDocument
	other := NewItem(uuid.New(), "c.txt")

	for _, it := range []*lineage.Item{second, first, doc, other} {
		require.NoError(t, repo.CreateItem(ctx, it))
	}

	files, err := repo.ListItemsByProject(ctx, projectID, lineage.KindFile)
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, first.ID, files[0].ID)
	assert.Equal(t, second.ID, files[1].ID)

	docs, err := repo.ListItemsByProject(ctx, projectID, lineage.KindDocument)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, doc.ID, docs[0].ID)

	none, err := repo.ListItemsByProject(ctx, uuid.New(), lineage.KindFile)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func testAppendVersion(t *testing.T, repo lineage.Repository) {
	ctx := context.Background()
	item := NewItem(uuid.New(), "a.txt")
	require.NoError(t, repo.CreateItem(ctx, item))

	author := uuid.New()
	for i := 1; i <= 3; i++ {
		v, err := repo.AppendVersion(ctx, lineage.AppendVersionParams{
			ItemID:     item.ID,
			Name:       item.Name,
			MimeType:   item.MimeType,
			SizeBytes:  int64(i),
			ContentRef: uuid.NewString(),
			AuthorID:   &author,
			ChangeNote: "Updated",
		})
		require.NoError(t, err)
		assert.Equal(t, i, v.VersionNumber)
		assert.Equal(t, item.ID, v.ItemID)
	}

	versions, err := repo.ListVersions(ctx, item.ID)
	require.NoError(t, err)
	require.Len(t, versions, 3)
	assert.Equal(t, 3, versions[0].VersionNumber)
	assert.Equal(t, 1, versions[2].VersionNumber)
	require.NotNil(t, versions[0].AuthorID)
	assert.Equal(t, author, *versions[0].AuthorID)

	v2, err := repo.GetVersion(ctx, item.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(2), v2.SizeBytes)
	assert.Equal(t, "Updated", v2.ChangeNote)

	_, err = repo.AppendVersion(ctx, lineage.AppendVersionParams{ItemID: uuid.New()})
	assert.True(t, lineage.IsNotFound(err))

	empty, err := repo.ListVersions(ctx, uuid.New())
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func testGetVersionNotFound(t *testing.T, repo lineage.Repository) {
	ctx := context.Background()
	item := NewItem(uuid.New(), "a.txt")
	require.NoError(t, repo.CreateItem(ctx, item))

	_, err := repo.GetVersion(ctx, item.ID, 1)
	assert.ErrorIs(t, err, lineage.ErrVersionNotFound)
}

func testDeleteItem(t *testing.T, repo lineage.Repository) {
	ctx := context.Background()
	projectID := uuid.New()
	doomed := NewItem(projectID, "a.txt")
	kept := NewItem(projectID, "b.txt")
	require.NoError(t, repo.CreateItem(ctx, doomed))
	require.NoError(t, repo.CreateItem(ctx, kept))

	for _, id := range []uuid.UUID{doomed.ID, kept.ID} {
		_, err := repo.AppendVersion(ctx, lineage.AppendVersionParams{ItemID: id, ContentRef: uuid.NewString()})
		require.NoError(t, err)
	}

	require.NoError(t, repo.DeleteVersions(ctx, doomed.ID))
	require.NoError(t, repo.DeleteItem(ctx, doomed.ID))

	_, err := repo.GetItem(ctx, doomed.ID)
	assert.ErrorIs(t, err, lineage.ErrItemNotFound)
	versions, err := repo.ListVersions(ctx, doomed.ID)
	require.NoError(t, err)
	assert.Empty(t, versions)

	versions, err = repo.ListVersions(ctx, kept.ID)
	require.NoError(t, err)
	assert.Len(t, versions, 1)
}

func testExecItemTxCommit(t *testing.T, repo lineage.Repository) {
	ctx := context.Background()
	item := NewItem(uuid.New(), "a.txt")
	require.NoError(t, repo.CreateItem(ctx, item))

	err := repo.ExecItemTx(ctx, item.ID, func(ctx context.Context) error {
		cur, err := repo.GetItem(ctx, item.ID)
		if err != nil {
			return err
		}
		if _, err := repo.AppendVersion(ctx, lineage.AppendVersionParams{ItemID: cur.ID, ContentRef: cur.ContentRef}); err != nil {
			return err
		}
		cur.ContentRef = "new-ref"
		return repo.UpdateItem(ctx, cur)
	})
	require.NoError(t, err)

	got, err := repo.GetItem(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, "new-ref", got.ContentRef)

	versions, err := repo.ListVersions(ctx, item.ID)
	require.NoError(t, err)
	require.Len(t, versions, 1)
	assert.Equal(t, item.ContentRef, versions[0].ContentRef)
}

func testExecItemTxRollback(t *testing.T, repo lineage.Repository) {
	ctx := context.Background()
	item := NewItem(uuid.New(), "a.txt")
	require.NoError(t, repo.CreateItem(ctx, item))

	boom := errors.New("boom")
	err := repo.ExecItemTx(ctx, item.ID, func(ctx context.Context) error {
		if _, err := repo.AppendVersion(ctx, lineage.AppendVersionParams{ItemID: item.ID, ContentRef: item.ContentRef}); err != nil {
			return err
		}
		cur := *item
		cur.ContentRef = "never-committed"
		if err := repo.UpdateItem(ctx, &cur); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	got, err := repo.GetItem(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, item.ContentRef, got.ContentRef)

	versions, err := repo.ListVersions(ctx, item.ID)
	require.NoError(t, err)
	assert.Empty(t, versions)
}

// testConcurrentAppends checks that per-item transactions serialise
// "read max, insert max+1" so numbers stay contiguous.
func testConcurrentAppends(t *testing.T, repo lineage.Repository) {
	ctx := context.Background()
	item := NewItem(uuid.New(), "a.txt")
	require.NoError(t, repo.CreateItem(ctx, item))

	const n = 10
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for attempt := 0; attempt < 20; attempt++ {
				err := repo.ExecItemTx(ctx, item.ID, func(ctx context.Context) error {
					_, err := repo.AppendVersion(ctx, lineage.AppendVersionParams{ItemID: item.ID, ContentRef: uuid.NewString()})
					return err
				})
				if !errors.Is(err, lineage.ErrConflictingVersionWrite) {
					errs <- err
					return
				}
			}
			errs <- lineage.ErrConflictingVersionWrite
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	versions, err := repo.ListVersions(ctx, item.ID)
	require.NoError(t, err)
	require.Len(t, versions, n)
	for i, v := range versions {
		assert.Equal(t, n-i, v.VersionNumber)
	}
}
