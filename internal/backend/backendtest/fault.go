// Package backendtest provides a fault-injecting adapter for tests.
package backendtest

import (
	"context"
	"sync"

	"mentorctl/internal/backend"
)

// Op names an adapter method.
type Op string

const (
	OpReadAll    Op = "ReadAll"
	OpReplaceAll Op = "ReplaceAll"
	OpGet        Op = "Get"
	OpPut        Op = "Put"
	OpDelete     Op = "Delete"
)

type faultKey struct {
	op Op
	c  backend.Collection
}

// FaultStore wraps an adapter and returns scripted errors. A fault registered
// with times < 0 fires on every call.
type FaultStore struct {
	backend.Adapter

	mu     sync.Mutex
	faults map[faultKey][]fault
	calls  []Call
}

type fault struct {
	err   error
	times int
}

// Call records one adapter invocation.
type Call struct {
	Op         Op
	Collection backend.Collection
	Count      int
}

// Wrap returns a FaultStore around inner.
func Wrap(inner backend.Adapter) *FaultStore {
	return &FaultStore{Adapter: inner, faults: make(map[faultKey][]fault)}
}

// Fail makes the next times calls of op on c return err.
func (f *FaultStore) Fail(op Op, c backend.Collection, err error, times int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := faultKey{op, c}
	f.faults[k] = append(f.faults[k], fault{err: err, times: times})
}

// Calls returns the recorded calls in order.
func (f *FaultStore) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.calls...)
}

// CallsTo returns the recorded calls of op in order.
func (f *FaultStore) CallsTo(op Op) []Call {
	var out []Call
	for _, c := range f.Calls() {
		if c.Op == op {
			out = append(out, c)
		}
	}
	return out
}

func (f *FaultStore) check(op Op, c backend.Collection, count int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, Call{Op: op, Collection: c, Count: count})

	k := faultKey{op, c}
	queue := f.faults[k]
	if len(queue) == 0 {
		return nil
	}
	head := queue[0]
	if head.times > 0 {
		head.times--
		if head.times == 0 {
			f.faults[k] = queue[1:]
		} else {
			queue[0] = head
		}
	}
	return head.err
}

func (f *FaultStore) ReadAll(ctx context.Context, c backend.Collection) ([]backend.Record, error) {
	if err := f.check(OpReadAll, c, 0); err != nil {
		return nil, err
	}
	return f.Adapter.ReadAll(ctx, c)
}

func (f *FaultStore) ReplaceAll(ctx context.Context, c backend.Collection, records []backend.Record) error {
	if err := f.check(OpReplaceAll, c, len(records)); err != nil {
		return err
	}
	return f.Adapter.ReplaceAll(ctx, c, records)
}

func (f *FaultStore) Get(ctx context.Context, c backend.Collection, key string) (backend.Record, error) {
	if err := f.check(OpGet, c, 0); err != nil {
		return nil, err
	}
	return f.Adapter.Get(ctx, c, key)
}

func (f *FaultStore) Put(ctx context.Context, r backend.Record) error {
	var c backend.Collection
	if r != nil {
		c = r.Collection()
	}
	if err := f.check(OpPut, c, 1); err != nil {
		return err
	}
	return f.Adapter.Put(ctx, r)
}

func (f *FaultStore) Delete(ctx context.Context, c backend.Collection, key string) error {
	if err := f.check(OpDelete, c, 0); err != nil {
		return err
	}
	return f.Adapter.Delete(ctx, c, key)
}

// Seed is a small consistent dataset covering every collection.
func Seed() backend.Snapshot {
	return backend.Snapshot{
		Profiles: []backend.Profile{
			{ID: "p1", Email: "ada@example.com", DisplayName: "Ada", Role: "mentor"},
			{ID: "p2", Email: "linus@example.com", DisplayName: "Linus", Role: "mentee"},
		},
		Courses: []backend.Course{
			{ID: "c1", Title: "Go basics", MentorID: "p1", Published: true},
		},
		Modules: []backend.Module{
			{ID: "m1", CourseID: "c1", Title: "Types", Position: 1},
			{ID: "m2", CourseID: "c1", Title: "Interfaces", Position: 2},
		},
		Contents: []backend.Content{
			{ID: "x1", ModuleID: "m1", Kind: "text", Title: "Intro", Body: "hello", Position: 1},
		},
	}
}
