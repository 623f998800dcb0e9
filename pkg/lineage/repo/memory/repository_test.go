package memory_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/content-lineage/pkg/lineage"
	"github.com/tendant/content-lineage/pkg/lineage/repo/memory"
	"github.com/tendant/content-lineage/pkg/lineage/repo/repotest"
)

func TestMemoryRepository(t *testing.T) {
	repotest.Run(t, func(t *testing.T) lineage.Repository {
		return memory.New()
	})
}

func TestMemoryRepository_ReturnsCopies(t *testing.T) {
	repo := memory.New()
	ctx := context.Background()

	item := repotest.NewItem(uuid.New(), "a.txt")
	require.NoError(t, repo.CreateItem(ctx, item))

	item.Name = "mutated.txt"
	got, err := repo.GetItem(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, "a.txt", got.Name)

	got.Name = "mutated-again.txt"
	again, err := repo.GetItem(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, "a.txt", again.Name)
}

func TestMemoryRepository_ExecItemTxRollsBackOnCancel(t *testing.T) {
	repo := memory.New()
	item := repotest.NewItem(uuid.New(), "a.txt")
	require.NoError(t, repo.CreateItem(context.Background(), item))

	ctx, cancel := context.WithCancel(context.Background())
	err := repo.ExecItemTx(ctx, item.ID, func(ctx context.Context) error {
		_, err := repo.AppendVersion(ctx, lineage.AppendVersionParams{ItemID: item.ID})
		cancel()
		return err
	})
	require.ErrorIs(t, err, context.Canceled)

	versions, err := repo.ListVersions(context.Background(), item.ID)
	require.NoError(t, err)
	assert.Empty(t, versions)
}

func TestMemoryRepository_NestedExecItemTx(t *testing.T) {
	repo := memory.New()
	ctx := context.Background()
	item := repotest.NewItem(uuid.New(), "a.txt")
	require.NoError(t, repo.CreateItem(ctx, item))

	err := repo.ExecItemTx(ctx, item.ID, func(ctx context.Context) error {
		return repo.ExecItemTx(ctx, item.ID, func(ctx context.Context) error {
			_, err := repo.AppendVersion(ctx, lineage.AppendVersionParams{ItemID: item.ID})
			return err
		})
	})
	require.NoError(t, err)

	v, err := repo.GetVersion(ctx, item.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, item.ID, v.ItemID)
}
