// Package checks holds the built-in checks run against a live backend and
// the suites that use them.
package checks

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"mentorctl/internal/backend"
	"mentorctl/internal/harness"
	"mentorctl/internal/model"

	"github.com/google/go-cmp/cmp"
)

//go:embed suites/*.yaml
var builtinSuites embed.FS

// BuiltinSuites returns the suites shipped with the binary.
func BuiltinSuites() ([]harness.Definition, error) {
	return harness.LoadDefinitions(builtinSuites, "suites")
}

type entry struct {
	name, description string
	fn                harness.Check
}

var builtins = []entry{
	{"collections.readable", "Every tracked collection can be read", collectionsReadable},
	{"course.create", "A new course can be written and read back", courseCreate},
	{"course.update", "A course title change is persisted", courseUpdate},
	{"course.delete", "A deleted course is gone", courseDelete},
	{"module.create", "A module is appended to a course", moduleCreate},
	{"module.reorder", "Module positions of a course can be reversed", moduleReorder},
	{"content.create", "Content can be attached to a module", contentCreate},
	{"profile.update", "A profile display name change is persisted", profileUpdate},
}

// Register adds every built-in check to r.
func Register(r *harness.Registry) error {
	for _, e := range builtins {
		if err := r.Register(e.name, e.description, e.fn); err != nil {
			return err
		}
	}
	return nil
}

func param(params map[string]string, key, fallback string) string {
	if v, ok := params[key]; ok && v != "" {
		return v
	}
	return fallback
}

// verify reads want back and fails with a diff when it differs.
func verify(ctx context.Context, b backend.Adapter, want backend.Record) error {
	got, err := b.Get(ctx, want.Collection(), want.Key())
	if errors.Is(err, backend.ErrNotFound) {
		return &harness.AssertionError{
			Message: fmt.Sprintf("%s/%s not found after write", want.Collection(), want.Key()),
			Diagnostic: &model.Diagnostic{
				Collection: want.Collection(),
				Key:        want.Key(),
				Expected:   want,
			},
		}
	}
	if err != nil {
		return err
	}
	if diff := cmp.Diff(want, got); diff != "" {
		return &harness.AssertionError{
			Message: fmt.Sprintf("%s/%s differs from what was written", want.Collection(), want.Key()),
			Diagnostic: &model.Diagnostic{
				Collection: want.Collection(),
				Key:        want.Key(),
				Expected:   want,
				Actual:     got,
				Diff:       diff,
			},
		}
	}
	return nil
}

func collectionsReadable(ctx context.Context, b backend.Adapter, _ map[string]string) error {
	for _, c := range backend.AllCollections {
		records, err := b.ReadAll(ctx, c)
		if err != nil {
			return err
		}
		for i, r := range records {
			if r.Collection() != c {
				return &harness.AssertionError{
					Message:    fmt.Sprintf("%s[%d] holds a %s record", c, i, r.Collection()),
					Diagnostic: &model.Diagnostic{Collection: c, Key: r.Key(), Actual: r},
				}
			}
		}
	}
	return nil
}

// firstKey returns the key of the first record in c, or "" when empty.
func firstKey(ctx context.Context, b backend.Adapter, c backend.Collection) (string, error) {
	records, err := b.ReadAll(ctx, c)
	if err != nil {
		return "", err
	}
	if len(records) == 0 {
		return "", nil
	}
	return records[0].Key(), nil
}

func courseCreate(ctx context.Context, b backend.Adapter, params map[string]string) error {
	mentor, err := firstKey(ctx, b, backend.Profiles)
	if err != nil {
		return err
	}
	course := backend.Course{
		ID:          param(params, "id", "mentorctl-course"),
		Title:       param(params, "title", "Integration check course"),
		Description: "created by mentorctl",
		MentorID:    param(params, "mentor", mentor),
	}
	if err := b.Put(ctx, course); err != nil {
		return err
	}
	return verify(ctx, b, course)
}

func courseUpdate(ctx context.Context, b backend.Adapter, params map[string]string) error {
	id := params["id"]
	if id == "" {
		var err error
		if id, err = firstKey(ctx, b, backend.Courses); err != nil {
			return err
		}
	}
	if id == "" {
		return harness.Failf("no course to update")
	}
	r, err := b.Get(ctx, backend.Courses, id)
	if err != nil {
		return err
	}
	course := r.(backend.Course)
	course.Title = param(params, "title", course.Title+" (updated)")
	course.Published = !course.Published
	if err := b.Put(ctx, course); err != nil {
		return err
	}
	return verify(ctx, b, course)
}

func courseDelete(ctx context.Context, b backend.Adapter, params map[string]string) error {
	course := backend.Course{ID: param(params, "id", "mentorctl-doomed-course"), Title: "to be deleted"}
	if err := b.Put(ctx, course); err != nil {
		return err
	}
	if err := b.Delete(ctx, backend.Courses, course.ID); err != nil {
		return err
	}
	_, err := b.Get(ctx, backend.Courses, course.ID)
	switch {
	case errors.Is(err, backend.ErrNotFound):
		return nil
	case err != nil:
		return err
	default:
		return &harness.AssertionError{
			Message:    fmt.Sprintf("course %s still present after delete", course.ID),
			Diagnostic: &model.Diagnostic{Collection: backend.Courses, Key: course.ID},
		}
	}
}

// modulesOf returns the modules of course ordered by position.
func modulesOf(ctx context.Context, b backend.Adapter, course string) ([]backend.Module, error) {
	records, err := b.ReadAll(ctx, backend.Modules)
	if err != nil {
		return nil, err
	}
	var out []backend.Module
	for _, r := range records {
		if m := r.(backend.Module); m.CourseID == course {
			out = append(out, m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, nil
}

func courseParam(ctx context.Context, b backend.Adapter, params map[string]string) (string, error) {
	if id := params["course"]; id != "" {
		return id, nil
	}
	id, err := firstKey(ctx, b, backend.Courses)
	if err != nil {
		return "", err
	}
	if id == "" {
		return "", harness.Failf("no course available")
	}
	return id, nil
}

func moduleCreate(ctx context.Context, b backend.Adapter, params map[string]string) error {
	course, err := courseParam(ctx, b, params)
	if err != nil {
		return err
	}
	existing, err := modulesOf(ctx, b, course)
	if err != nil {
		return err
	}
	module := backend.Module{
		ID:       param(params, "id", "mentorctl-module"),
		CourseID: course,
		Title:    param(params, "title", "Integration check module"),
		Position: len(existing) + 1,
	}
	if err := b.Put(ctx, module); err != nil {
		return err
	}
	return verify(ctx, b, module)
}

func moduleReorder(ctx context.Context, b backend.Adapter, params map[string]string) error {
	course, err := courseParam(ctx, b, params)
	if err != nil {
		return err
	}
	modules, err := modulesOf(ctx, b, course)
	if err != nil {
		return err
	}
	if len(modules) < 2 {
		return harness.Failf("course %s needs at least 2 modules to reorder, has %d", course, len(modules))
	}

	want := make([]string, 0, len(modules))
	for i := len(modules) - 1; i >= 0; i-- {
		m := modules[i]
		m.Position = len(modules) - i
		if err := b.Put(ctx, m); err != nil {
			return err
		}
		want = append(want, m.ID)
	}

	reordered, err := modulesOf(ctx, b, course)
	if err != nil {
		return err
	}
	got := make([]string, 0, len(reordered))
	for i, m := range reordered {
		got = append(got, m.ID)
		if m.Position != i+1 {
			return harness.Failf("module %s has position %d, want %d", m.ID, m.Position, i+1)
		}
	}
	if diff := cmp.Diff(want, got); diff != "" {
		return &harness.AssertionError{
			Message:    "module order not reversed",
			Diagnostic: &model.Diagnostic{Collection: backend.Modules, Key: course, Diff: diff},
		}
	}
	return nil
}

func contentCreate(ctx context.Context, b backend.Adapter, params map[string]string) error {
	module := params["module"]
	if module == "" {
		var err error
		if module, err = firstKey(ctx, b, backend.Modules); err != nil {
			return err
		}
	}
	if module == "" {
		return harness.Failf("no module available")
	}
	position, err := strconv.Atoi(param(params, "position", "1"))
	if err != nil {
		return harness.Failf("invalid position param: %v", err)
	}
	content := backend.Content{
		ID:       param(params, "id", "mentorctl-content"),
		ModuleID: module,
		Kind:     param(params, "kind", "text"),
		Title:    param(params, "title", "Integration check content"),
		Body:     "Lorem ipsum",
		Position: position,
	}
	if err := b.Put(ctx, content); err != nil {
		return err
	}
	return verify(ctx, b, content)
}

func profileUpdate(ctx context.Context, b backend.Adapter, params map[string]string) error {
	id := params["id"]
	if id == "" {
		var err error
		if id, err = firstKey(ctx, b, backend.Profiles); err != nil {
			return err
		}
	}
	if id == "" {
		return harness.Failf("no profile to update")
	}
	r, err := b.Get(ctx, backend.Profiles, id)
	if err != nil {
		return err
	}
	profile := r.(backend.Profile)
	profile.DisplayName = param(params, "displayName", profile.DisplayName+" (edited)")
	if err := b.Put(ctx, profile); err != nil {
		return err
	}
	return verify(ctx, b, profile)
}
