package backup

import (
	"context"
	"errors"
	"testing"

	"mentorctl/internal/backend"
	"mentorctl/internal/backend/backendtest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore() (*backend.MemoryStore, *backendtest.FaultStore) {
	mem := backend.NewMemoryStoreFromSnapshot(backendtest.Seed())
	return mem, backendtest.Wrap(mem)
}

func TestManager_RoundTripAfterWrites(t *testing.T) {
	ctx := context.Background()
	mem, store := newStore()
	before := mem.Snapshot()
	m := NewManager(store)

	b, err := m.Capture(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, b.ID)
	assert.Equal(t, 2, b.Counts()[backend.Profiles])

	require.NoError(t, store.Put(ctx, backend.Course{ID: "c2", Title: "Scratch", MentorID: "p1"}))
	require.NoError(t, store.Put(ctx, backend.Module{ID: "m1", CourseID: "c1", Title: "Renamed", Position: 9}))
	require.NoError(t, store.Delete(ctx, backend.Contents, "x1"))
	require.NoError(t, store.Put(ctx, backend.Content{ID: "x9", ModuleID: "m2", Kind: "quiz"}))
	require.NotEqual(t, before, mem.Snapshot())

	require.NoError(t, m.Restore(ctx, b))
	assert.Equal(t, before, mem.Snapshot())
}

func TestManager_CaptureThenRestoreIsNoop(t *testing.T) {
	ctx := context.Background()
	mem, store := newStore()
	before := mem.Snapshot()
	m := NewManager(store)

	b, err := m.Capture(ctx)
	require.NoError(t, err)
	require.NoError(t, m.Restore(ctx, b))
	assert.Equal(t, before, mem.Snapshot())
}

func TestManager_RestoreOrder(t *testing.T) {
	ctx := context.Background()
	_, store := newStore()
	m := NewManager(store)

	b, err := m.Capture(ctx)
	require.NoError(t, err)
	require.NoError(t, m.Restore(ctx, b))

	var order []backend.Collection
	for _, c := range store.CallsTo(backendtest.OpReplaceAll) {
		order = append(order, c.Collection)
	}
	assert.Equal(t, []backend.Collection{
		backend.Contents, backend.Modules, backend.Courses, backend.Profiles,
		backend.Profiles, backend.Courses, backend.Modules, backend.Contents,
	}, order)
}

func TestManager_CaptureFailureKeepsNothing(t *testing.T) {
	_, store := newStore()
	cause := errors.New("permission denied")
	store.Fail(backendtest.OpReadAll, backend.Modules, cause, 1)
	m := NewManager(store)

	b, err := m.Capture(context.Background())
	assert.Nil(t, b)
	var capErr *CaptureError
	require.ErrorAs(t, err, &capErr)
	assert.Equal(t, backend.Modules, capErr.Collection)
	assert.ErrorIs(t, err, cause)
	assert.Empty(t, store.CallsTo(backendtest.OpReplaceAll), "capture never writes")
}

func TestManager_PartialRestoreFailure(t *testing.T) {
	ctx := context.Background()
	_, store := newStore()
	m := NewManager(store)

	b, err := m.Capture(ctx)
	require.NoError(t, err)

	cause := backend.Transient("replace", errors.New("connection reset"))
	// Clear of modules succeeds; the later insert of modules fails.
	store.Fail(backendtest.OpReplaceAll, backend.Modules, nil, 1)
	store.Fail(backendtest.OpReplaceAll, backend.Modules, cause, 1)

	err = m.Restore(ctx, b)
	var rerr *RestoreError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, PhaseInsert, rerr.Phase)
	assert.Equal(t, backend.Modules, rerr.Failed)
	assert.Equal(t, []backend.Collection{backend.Profiles, backend.Courses}, rerr.Restored)
	assert.Equal(t, []backend.Collection{backend.Modules, backend.Contents}, rerr.Pending())
	assert.Len(t, rerr.Cleared, len(backend.AllCollections))

	assert.ErrorIs(t, m.Restore(ctx, b), ErrBackupConsumed, "a failed restore is not retried")
}

func TestManager_ClearFailure(t *testing.T) {
	ctx := context.Background()
	_, store := newStore()
	m := NewManager(store)
	b, err := m.Capture(ctx)
	require.NoError(t, err)

	store.Fail(backendtest.OpReplaceAll, backend.Courses, errors.New("forbidden"), 1)
	err = m.Restore(ctx, b)
	var rerr *RestoreError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, PhaseClear, rerr.Phase)
	assert.Equal(t, []backend.Collection{backend.Contents, backend.Modules}, rerr.Cleared)
	assert.Empty(t, rerr.Restored)
	assert.Equal(t, backend.AllCollections, rerr.Pending())
}

func TestManager_BackupUsedOnce(t *testing.T) {
	ctx := context.Background()
	_, store := newStore()
	m := NewManager(store)

	b, err := m.Capture(ctx)
	require.NoError(t, err)
	require.NoError(t, m.Restore(ctx, b))
	assert.ErrorIs(t, m.Restore(ctx, b), ErrBackupConsumed)

	b2, err := m.Capture(ctx)
	require.NoError(t, err)
	m.Discard(b2)
	_, ok := b2.Snapshot()
	assert.False(t, ok)
	assert.ErrorIs(t, m.Restore(ctx, b2), ErrBackupConsumed)
	m.Discard(nil)
}
