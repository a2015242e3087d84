package harness

import (
	"context"
	"testing"
	"testing/fstest"

	"mentorctl/internal/backend"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const smokeYAML = `
name: smoke
description: Quick check of the live backend
tests:
  - name: collections are readable
    check: noop
  - name: create a course
    check: noop
    params:
      id: smoke-course
`

func noop(context.Context, backend.Adapter, map[string]string) error { return nil }

func newRegistry(t *testing.T) *Registry {
	t.Helper()
	r := NewRegistry()
	require.NoError(t, r.Register("noop", "does nothing", noop))
	return r
}

func TestParseDefinition(t *testing.T) {
	def, err := ParseDefinition([]byte(smokeYAML))
	require.NoError(t, err)
	assert.Equal(t, "smoke", def.Name)
	require.Len(t, def.Tests, 2)
	assert.Equal(t, "smoke-course", def.Tests[1].Params["id"])
}

func TestParseDefinition_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"missing name", "tests:\n  - name: a\n    check: noop\n"},
		{"no tests", "name: empty\n"},
		{"duplicate test", "name: d\ntests:\n  - name: a\n    check: noop\n  - name: a\n    check: noop\n"},
		{"missing check", "name: d\ntests:\n  - name: a\n"},
		{"unknown field", "name: d\nparallel: 4\ntests:\n  - name: a\n    check: noop\n"},
		{"not yaml", "name: [unclosed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseDefinition([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestRegistry(t *testing.T) {
	r := newRegistry(t)
	assert.Error(t, r.Register("noop", "", noop), "duplicate names rejected")
	assert.Error(t, r.Register("", "", noop))
	assert.Error(t, r.Register("nil", "", nil))

	fn, err := r.Lookup("noop")
	require.NoError(t, err)
	assert.NotNil(t, fn)

	_, err = r.Lookup("missing")
	assert.ErrorIs(t, err, ErrUnknownCheck)

	require.NoError(t, r.Register("another", "", noop))
	list := r.List()
	require.Len(t, list, 2)
	assert.Equal(t, "another", list[0].Name)
}

func TestRegistry_ResolveRejectsUnknownChecks(t *testing.T) {
	r := newRegistry(t)
	def := Definition{Name: "bad", Tests: []TestDefinition{
		{Name: "a", Check: "noop"},
		{Name: "b", Check: "course.explode"},
	}}
	_, err := r.Resolve(def)
	assert.ErrorIs(t, err, ErrUnknownCheck)
	assert.Contains(t, err.Error(), "course.explode")
}

func TestLoadDefinitions(t *testing.T) {
	fsys := fstest.MapFS{
		"suites/b.yaml":    {Data: []byte(smokeYAML)},
		"suites/a.yml":     {Data: []byte("name: alpha\ntests:\n  - name: one\n    check: noop\n")},
		"suites/notes.txt": {Data: []byte("ignored")},
	}
	defs, err := LoadDefinitions(fsys, "suites")
	require.NoError(t, err)
	require.Len(t, defs, 2)
	assert.Equal(t, "alpha", defs[0].Name)
	assert.Equal(t, "smoke", defs[1].Name)

	_, err = LoadDefinitions(fsys, "missing")
	assert.Error(t, err)

	fsys["suites/c.yaml"] = &fstest.MapFile{Data: []byte("name: broken\n")}
	_, err = LoadDefinitions(fsys, "suites")
	assert.ErrorContains(t, err, "c.yaml")
}

func TestCatalog(t *testing.T) {
	c := NewCatalog(newRegistry(t))
	def, err := ParseDefinition([]byte(smokeYAML))
	require.NoError(t, err)
	require.NoError(t, c.Add(def))

	suite, ok := c.Suite("smoke")
	require.True(t, ok)
	require.Len(t, suite.Tests, 2)
	assert.NotNil(t, suite.Tests[0].Run)

	override := Definition{Name: "smoke", Tests: []TestDefinition{{Name: "only", Check: "noop"}}}
	require.NoError(t, c.Add(override))
	suite, _ = c.Suite("smoke")
	assert.Len(t, suite.Tests, 1, "later definitions replace earlier ones")

	err = c.AddAll([]Definition{
		{Name: "x", Tests: []TestDefinition{{Name: "a", Check: "missing"}}},
		{Name: "y"},
	})
	assert.Error(t, err)
	assert.Len(t, c.Definitions(), 1)

	_, ok = c.Suite("x")
	assert.False(t, ok)
}
