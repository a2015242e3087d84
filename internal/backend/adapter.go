// Package backend defines the contract the harness uses to talk to the
// mentoring platform's data store, plus an in-memory implementation.
//
// Adapters never retry. Failures that are worth retrying are reported as
// TransientError so the retry policy can tell them apart from logic errors.
package backend

import "context"

// Reader reads whole collections.
type Reader interface {
	// ReadAll returns the full ordered contents of a collection.
	ReadAll(ctx context.Context, c Collection) ([]Record, error)
}

// Adapter is the full backend contract.
type Adapter interface {
	Reader

	// ReplaceAll atomically swaps the contents of one collection. Every record
	// must belong to c.
	ReplaceAll(ctx context.Context, c Collection, records []Record) error

	// Get returns one record by key or ErrNotFound.
	Get(ctx context.Context, c Collection, key string) (Record, error)

	// Put inserts the record, or replaces the existing one with the same key
	// in place.
	Put(ctx context.Context, r Record) error

	// Delete removes one record by key or returns ErrNotFound.
	Delete(ctx context.Context, c Collection, key string) error
}

// CheckRecords verifies every record belongs to c.
func CheckRecords(c Collection, records []Record) error {
	for i, r := range records {
		if r == nil {
			return &MismatchError{Collection: c, Index: i}
		}
		if r.Collection() != c {
			return &MismatchError{Collection: c, Index: i, Got: r.Collection()}
		}
	}
	return nil
}
