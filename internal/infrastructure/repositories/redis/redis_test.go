package redis

import (
	"context"
	"testing"
	"time"

	"sketchroom/internal/core/domain"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	tracesdk "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func newTestClient(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRedisRoomRepository(t *testing.T) {
	ctx := context.Background()
	_, client := newTestClient(t)
	repo := NewRedisRoomRepository(client)

	room := &domain.RoomInfo{
		ID:        "lobby",
		Name:      "Lobby",
		Type:      domain.RoomTypeGuessingGame,
		Settings:  domain.RoomSettings{Width: 800, Height: 600},
		Active:    true,
		CreatedAt: time.Now().UTC().Truncate(time.Second),
	}
	require.NoError(t, repo.Create(ctx, room))
	assert.Error(t, repo.Create(ctx, room), "duplicate create")

	got, err := repo.GetByID(ctx, "lobby")
	require.NoError(t, err)
	assert.Equal(t, room, got)

	active, err := repo.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)

	room.Active = false
	require.NoError(t, repo.Update(ctx, room))
	active, err = repo.ListActive(ctx)
	require.NoError(t, err)
	assert.Empty(t, active)

	require.NoError(t, repo.Delete(ctx, "lobby"))
	_, err = repo.GetByID(ctx, "lobby")
	assert.ErrorIs(t, err, domain.ErrRoomNotFound)
	assert.ErrorIs(t, repo.Delete(ctx, "lobby"), domain.ErrRoomNotFound)
	assert.ErrorIs(t, repo.Update(ctx, room), domain.ErrRoomNotFound)
}

func TestRedisCanvasStore(t *testing.T) {
	ctx := context.Background()
	mr, client := newTestClient(t)
	store := NewRedisCanvasStore(client, time.Hour)

	require.NoError(t, store.Save(ctx, "board", "data:image/png;base64,AAAA"))
	assert.True(t, mr.Exists("sketchroom:canvas:board"))
	assert.Equal(t, time.Hour, mr.TTL("sketchroom:canvas:board"))

	got, err := store.Load(ctx, "board")
	require.NoError(t, err)
	assert.Equal(t, "data:image/png;base64,AAAA", got)

	mr.FastForward(2 * time.Hour)
	_, err = store.Load(ctx, "board")
	assert.ErrorIs(t, err, domain.ErrSnapshotNotFound)
}

func TestMigrate(t *testing.T) {
	ctx := context.Background()
	mr, client := newTestClient(t)
	require.NoError(t, mr.Set("sketchroom:room:old", `{"id":"old","active":true}`))
	require.NoError(t, mr.Set("sketchroom:snapshot:legacy", "data:image/png;base64,AAAA"))

	require.NoError(t, Migrate(ctx, client, nil))

	members, err := mr.SMembers("sketchroom:room:active")
	require.NoError(t, err)
	assert.Equal(t, []string{"old"}, members)
	assert.True(t, mr.Exists("sketchroom:canvas:legacy"))
	assert.False(t, mr.Exists("sketchroom:snapshot:legacy"))

	version, err := mr.Get(schemaVersionKey)
	require.NoError(t, err)
	assert.Equal(t, "2", version)

	// idempotent
	require.NoError(t, Migrate(ctx, client, nil))
}

func TestRedisCalls_AreTraced(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := tracesdk.NewTracerProvider(tracesdk.WithSpanProcessor(rec))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(prev)
		_ = tp.Shutdown(context.Background())
	})

	ctx := context.Background()
	mr, client := newTestClient(t)
	store := NewRedisCanvasStore(client, 0)
	rooms := NewRedisRoomRepository(client)

	require.NoError(t, store.Save(ctx, "board", "data:image/png;base64,AAAA"))
	_, err := store.Load(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrSnapshotNotFound)
	_, err = rooms.GetByID(ctx, "nowhere")
	assert.ErrorIs(t, err, domain.ErrRoomNotFound)

	mr.Close()
	assert.Error(t, store.Delete(ctx, "board"))

	spans := rec.Ended()
	require.Len(t, spans, 4)
	assert.Equal(t, "db.save", spans[0].Name())
	assert.Equal(t, "db.load", spans[1].Name())
	assert.Equal(t, "db.get", spans[2].Name())
	assert.Equal(t, "db.delete", spans[3].Name())

	assert.NotEqual(t, codes.Error, spans[1].Status().Code, "not found is an answer")
	assert.NotEqual(t, codes.Error, spans[2].Status().Code)
	assert.Equal(t, codes.Error, spans[3].Status().Code)
}
