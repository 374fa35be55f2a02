package memory

import (
	"context"
	"testing"
	"time"

	"sketchroom/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryRoomRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRoomRepository()

	first := &domain.RoomInfo{ID: "a", Name: "A", Type: domain.RoomTypeFreeform, Active: true, CreatedAt: time.Now()}
	second := &domain.RoomInfo{ID: "b", Name: "B", Type: domain.RoomTypeGuessingGame, Active: true, CreatedAt: first.CreatedAt.Add(time.Second)}
	require.NoError(t, repo.Create(ctx, first))
	require.NoError(t, repo.Create(ctx, second))
	assert.Error(t, repo.Create(ctx, first))

	got, err := repo.GetByID(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "A", got.Name)

	got.Name = "mutated"
	again, err := repo.GetByID(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "A", again.Name, "callers get copies")

	active, err := repo.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, active, 2)
	assert.Equal(t, domain.RoomID("a"), active[0].ID)

	second.Active = false
	require.NoError(t, repo.Update(ctx, second))
	active, err = repo.ListActive(ctx)
	require.NoError(t, err)
	assert.Len(t, active, 1)

	require.NoError(t, repo.Delete(ctx, "a"))
	_, err = repo.GetByID(ctx, "a")
	assert.ErrorIs(t, err, domain.ErrRoomNotFound)
	assert.ErrorIs(t, repo.Update(ctx, first), domain.ErrRoomNotFound)
}

func TestMemoryCanvasStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryCanvasStore()

	_, err := store.Load(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrSnapshotNotFound)

	require.NoError(t, store.Save(ctx, "board", "data:image/png;base64,AAAA"))
	got, err := store.Load(ctx, "board")
	require.NoError(t, err)
	assert.Equal(t, "data:image/png;base64,AAAA", got)

	require.NoError(t, store.Delete(ctx, "board"))
	assert.ErrorIs(t, store.Delete(ctx, "board"), domain.ErrSnapshotNotFound)
}
