package backend

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seed() Snapshot {
	return Snapshot{
		Profiles: []Profile{{ID: "p1", Email: "ada@example.com", DisplayName: "Ada", Role: "mentor"}},
		Courses:  []Course{{ID: "c1", Title: "Go basics", MentorID: "p1", Published: true}},
		Modules:  []Module{{ID: "m1", CourseID: "c1", Title: "Types", Position: 1}},
		Contents: []Content{{ID: "x1", ModuleID: "m1", Kind: "video", Title: "Intro", Position: 1}},
	}
}

func TestMemoryStore_CRUD(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStoreFromSnapshot(seed())

	got, err := store.Get(ctx, Courses, "c1")
	require.NoError(t, err)
	assert.Equal(t, "Go basics", got.(Course).Title)

	require.NoError(t, store.Put(ctx, Course{ID: "c1", Title: "Go fundamentals"}))
	require.NoError(t, store.Put(ctx, Course{ID: "c2", Title: "Concurrency"}))

	all, err := store.ReadAll(ctx, Courses)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "Go fundamentals", all[0].(Course).Title, "put replaces in place")
	assert.Equal(t, "c2", all[1].Key())

	require.NoError(t, store.Delete(ctx, Courses, "c1"))
	_, err = store.Get(ctx, Courses, "c1")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, store.Delete(ctx, Courses, "c1"), ErrNotFound)
}

func TestMemoryStore_ReplaceAllRejectsForeignRecords(t *testing.T) {
	store := NewMemoryStore()
	err := store.ReplaceAll(context.Background(), Courses, []Record{Module{ID: "m1"}})

	var mismatch *MismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, Modules, mismatch.Got)
}

func TestMemoryStore_ReadAllReturnsCopy(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStoreFromSnapshot(seed())

	all, err := store.ReadAll(ctx, Profiles)
	require.NoError(t, err)
	all[0] = Profile{ID: "mutated"}

	again, err := store.ReadAll(ctx, Profiles)
	require.NoError(t, err)
	assert.Equal(t, "p1", again[0].Key())
}

func TestSnapshot_RoundTripThroughRecords(t *testing.T) {
	original := seed()

	var rebuilt Snapshot
	for _, c := range AllCollections {
		require.NoError(t, rebuilt.Set(c, original.Records(c)))
	}
	assert.Equal(t, original, rebuilt)
	assert.Equal(t, map[Collection]int{Profiles: 1, Courses: 1, Modules: 1, Contents: 1}, rebuilt.Counts())
}

func TestSnapshot_CloneIsIndependent(t *testing.T) {
	original := seed()
	clone := original.Clone()
	clone.Courses[0].Title = "changed"
	assert.Equal(t, "Go basics", original.Courses[0].Title)
}

func TestCodec(t *testing.T) {
	records := seed().Records(Modules)
	data, err := EncodeRecords(records)
	require.NoError(t, err)

	decoded, err := DecodeRecords(Modules, data)
	require.NoError(t, err)
	assert.Equal(t, records, decoded)

	empty, err := DecodeRecords(Contents, nil)
	require.NoError(t, err)
	assert.Empty(t, empty)

	_, err = DecodeRecord("lessons", []byte(`{}`))
	assert.Error(t, err)
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestIsTransient(t *testing.T) {
	assert.True(t, IsTransient(Transient("read", errors.New("connection reset"))))
	assert.True(t, IsTransient(fmt.Errorf("wrapped: %w", context.DeadlineExceeded)))
	assert.True(t, IsTransient(timeoutErr{}))
	assert.False(t, IsTransient(ErrNotFound))
	assert.False(t, IsTransient(nil))
	assert.Nil(t, Transient("read", nil))
}

func TestParseCollection(t *testing.T) {
	c, err := ParseCollection("contents")
	require.NoError(t, err)
	assert.Equal(t, Contents, c)

	_, err = ParseCollection("lessons")
	assert.Error(t, err)
}
