package checks

import (
	"context"
	"testing"

	"mentorctl/internal/backend"
	"mentorctl/internal/backend/backendtest"
	"mentorctl/internal/harness"
	"mentorctl/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func catalog(t *testing.T) *harness.Catalog {
	t.Helper()
	reg := harness.NewRegistry()
	require.NoError(t, Register(reg))
	defs, err := BuiltinSuites()
	require.NoError(t, err)
	c := harness.NewCatalog(reg)
	require.NoError(t, c.AddAll(defs))
	return c
}

func TestBuiltinSuitesPassAndRestore(t *testing.T) {
	c := catalog(t)
	defs := c.Definitions()
	require.Len(t, defs, 3)

	cfg := model.TestConfig{EnableBackup: true, EnableRestore: true, MaxRetries: 1}
	for _, def := range defs {
		t.Run(def.Name, func(t *testing.T) {
			mem := backend.NewMemoryStoreFromSnapshot(backendtest.Seed())
			before := mem.Snapshot()
			suite, ok := c.Suite(def.Name)
			require.True(t, ok)

			final, err := harness.NewOrchestrator(mem).Run(context.Background(), suite, cfg)
			require.NoError(t, err)
			for _, tr := range final.Tests {
				assert.Equal(t, model.TestSuccess, tr.Status, "%s: %+v", tr.Name, tr.Error)
			}
			assert.Equal(t, model.SuiteCompleted, final.Status)
			assert.Equal(t, before, mem.Snapshot())
		})
	}
}

func TestRegisterTwiceFails(t *testing.T) {
	reg := harness.NewRegistry()
	require.NoError(t, Register(reg))
	assert.Error(t, Register(reg))
	assert.Len(t, reg.List(), len(builtins))
}

// lossyStore drops course titles on write.
type lossyStore struct {
	backend.Adapter
}

func (l lossyStore) Put(ctx context.Context, r backend.Record) error {
	if c, ok := r.(backend.Course); ok {
		c.Title = ""
		r = c
	}
	return l.Adapter.Put(ctx, r)
}

func TestCourseCreateReportsDiff(t *testing.T) {
	store := lossyStore{backend.NewMemoryStoreFromSnapshot(backendtest.Seed())}
	err := courseCreate(context.Background(), store, map[string]string{"id": "c9", "title": "Kept?"})

	var assertErr *harness.AssertionError
	require.ErrorAs(t, err, &assertErr)
	require.NotNil(t, assertErr.Diagnostic)
	assert.Equal(t, backend.Courses, assertErr.Diagnostic.Collection)
	assert.Equal(t, "c9", assertErr.Diagnostic.Key)
	assert.Contains(t, assertErr.Diagnostic.Diff, "Kept?")
	assert.Equal(t, "p1", assertErr.Diagnostic.Expected.(backend.Course).MentorID)
}

func TestModuleReorder(t *testing.T) {
	ctx := context.Background()
	mem := backend.NewMemoryStoreFromSnapshot(backendtest.Seed())
	require.NoError(t, moduleReorder(ctx, mem, map[string]string{"course": "c1"}))

	modules, err := modulesOf(ctx, mem, "c1")
	require.NoError(t, err)
	require.Len(t, modules, 2)
	assert.Equal(t, "m2", modules[0].ID)
	assert.Equal(t, 1, modules[0].Position)

	err = moduleReorder(ctx, mem, map[string]string{"course": "nope"})
	var assertErr *harness.AssertionError
	assert.ErrorAs(t, err, &assertErr)
}

func TestChecksOnEmptyBackend(t *testing.T) {
	ctx := context.Background()
	mem := backend.NewMemoryStore()

	assert.NoError(t, collectionsReadable(ctx, mem, nil))
	assert.NoError(t, courseDelete(ctx, mem, nil))

	var assertErr *harness.AssertionError
	assert.ErrorAs(t, courseUpdate(ctx, mem, nil), &assertErr)
	assert.ErrorAs(t, profileUpdate(ctx, mem, nil), &assertErr)
	assert.ErrorAs(t, contentCreate(ctx, mem, nil), &assertErr)
	assert.ErrorAs(t, moduleCreate(ctx, mem, nil), &assertErr)
}

func TestContentCreateInvalidPosition(t *testing.T) {
	mem := backend.NewMemoryStoreFromSnapshot(backendtest.Seed())
	err := contentCreate(context.Background(), mem, map[string]string{"position": "first"})
	var assertErr *harness.AssertionError
	assert.ErrorAs(t, err, &assertErr)
}

func TestBackendErrorsPassThrough(t *testing.T) {
	store := backendtest.Wrap(backend.NewMemoryStoreFromSnapshot(backendtest.Seed()))
	store.Fail(backendtest.OpPut, backend.Profiles, backend.Transient("put", assert.AnError), 1)

	err := profileUpdate(context.Background(), store, nil)
	assert.True(t, backend.IsTransient(err))
}
