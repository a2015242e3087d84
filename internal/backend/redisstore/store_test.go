package redisstore

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"mentorctl/internal/backend"

	"github.com/alicebob/miniredis"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	redisServer, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(redisServer.Close)

	client := redis.NewClient(&redis.Options{
		Addr: fmt.Sprintf("127.0.0.1:%s", redisServer.Port()),
	})
	t.Cleanup(func() { _ = client.Close() })

	return New(client, "test"), redisServer
}

func TestStore_ReplaceAndRead(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)

	courses := []backend.Record{
		backend.Course{ID: "c1", Title: "Go basics"},
		backend.Course{ID: "c2", Title: "Testing"},
	}
	require.NoError(t, store.ReplaceAll(ctx, backend.Courses, courses))

	got, err := store.ReadAll(ctx, backend.Courses)
	require.NoError(t, err)
	assert.Equal(t, courses, got)

	require.NoError(t, store.ReplaceAll(ctx, backend.Courses, nil))
	got, err = store.ReadAll(ctx, backend.Courses)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestStore_EmptyCollection(t *testing.T) {
	store, _ := newTestStore(t)
	got, err := store.ReadAll(context.Background(), backend.Profiles)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestStore_PutGetDelete(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)

	require.NoError(t, store.Put(ctx, backend.Module{ID: "m1", CourseID: "c1", Title: "One", Position: 1}))
	require.NoError(t, store.Put(ctx, backend.Module{ID: "m2", CourseID: "c1", Title: "Two", Position: 2}))
	require.NoError(t, store.Put(ctx, backend.Module{ID: "m1", CourseID: "c1", Title: "One (edited)", Position: 1}))

	got, err := store.Get(ctx, backend.Modules, "m1")
	require.NoError(t, err)
	assert.Equal(t, "One (edited)", got.(backend.Module).Title)

	all, err := store.ReadAll(ctx, backend.Modules)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "m1", all[0].Key(), "order preserved on update")

	require.NoError(t, store.Delete(ctx, backend.Modules, "m1"))
	_, err = store.Get(ctx, backend.Modules, "m1")
	assert.True(t, errors.Is(err, backend.ErrNotFound))
	assert.ErrorIs(t, store.Delete(ctx, backend.Modules, "missing"), backend.ErrNotFound)
}

func TestStore_ConnectionLossIsTransient(t *testing.T) {
	store, server := newTestStore(t)
	server.Close()

	_, err := store.ReadAll(context.Background(), backend.Courses)
	require.Error(t, err)
	assert.True(t, backend.IsTransient(err), "got %v", err)
}

func TestStore_RejectsForeignRecords(t *testing.T) {
	store, _ := newTestStore(t)
	err := store.ReplaceAll(context.Background(), backend.Profiles, []backend.Record{backend.Course{ID: "c1"}})
	assert.Error(t, err)
}
