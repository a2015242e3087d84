package kubestore

import (
	"context"
	"errors"
	"testing"

	"mentorctl/internal/backend"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/client-go/kubernetes/fake"
	k8stesting "k8s.io/client-go/testing"
)

func TestStore_ReplaceAllCreatesThenUpdates(t *testing.T) {
	ctx := context.Background()
	client := fake.NewSimpleClientset()
	store := New(client, "staging", "")

	profiles := []backend.Record{backend.Profile{ID: "p1", Email: "ada@example.com", Role: "mentor"}}
	require.NoError(t, store.ReplaceAll(ctx, backend.Profiles, profiles))

	cm, err := client.CoreV1().ConfigMaps("staging").Get(ctx, "mentorctl-profiles", metav1.GetOptions{})
	require.NoError(t, err)
	assert.Equal(t, "profiles", cm.Labels[collectionLabel])
	assert.Contains(t, cm.Data[DataKey], "ada@example.com")

	require.NoError(t, store.ReplaceAll(ctx, backend.Profiles, nil))
	got, err := store.ReadAll(ctx, backend.Profiles)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestStore_MissingConfigMapReadsEmpty(t *testing.T) {
	store := New(fake.NewSimpleClientset(), "staging", "")
	got, err := store.ReadAll(context.Background(), backend.Contents)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestStore_PutGetDelete(t *testing.T) {
	ctx := context.Background()
	store := New(fake.NewSimpleClientset(), "staging", "qa")

	require.NoError(t, store.Put(ctx, backend.Course{ID: "c1", Title: "Go basics"}))
	require.NoError(t, store.Put(ctx, backend.Course{ID: "c2", Title: "Testing"}))
	require.NoError(t, store.Put(ctx, backend.Course{ID: "c1", Title: "Go fundamentals"}))

	got, err := store.Get(ctx, backend.Courses, "c1")
	require.NoError(t, err)
	assert.Equal(t, "Go fundamentals", got.(backend.Course).Title)

	require.NoError(t, store.Delete(ctx, backend.Courses, "c1"))
	all, err := store.ReadAll(ctx, backend.Courses)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "c2", all[0].Key())

	assert.True(t, errors.Is(store.Delete(ctx, backend.Courses, "c1"), backend.ErrNotFound))
}

func TestStore_ConflictIsTransient(t *testing.T) {
	ctx := context.Background()
	client := fake.NewSimpleClientset()
	store := New(client, "staging", "")
	require.NoError(t, store.Put(ctx, backend.Course{ID: "c1"}))

	client.PrependReactor("update", "configmaps", func(action k8stesting.Action) (bool, runtime.Object, error) {
		return true, nil, apierrors.NewConflict(schema.GroupResource{Resource: "configmaps"}, "mentorctl-courses", errors.New("stale"))
	})

	err := store.Put(ctx, backend.Course{ID: "c2"})
	require.Error(t, err)
	assert.True(t, backend.IsTransient(err))
}

func TestStore_ForbiddenIsNotTransient(t *testing.T) {
	client := fake.NewSimpleClientset()
	client.PrependReactor("get", "configmaps", func(action k8stesting.Action) (bool, runtime.Object, error) {
		return true, nil, apierrors.NewForbidden(schema.GroupResource{Resource: "configmaps"}, "mentorctl-courses", errors.New("rbac"))
	})
	store := New(client, "staging", "")

	_, err := store.ReadAll(context.Background(), backend.Courses)
	require.Error(t, err)
	assert.False(t, backend.IsTransient(err))
}
