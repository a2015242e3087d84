// Package backup captures the tracked collections before a run and writes
// them back afterwards.
//
// Restore is two-phase because the backend offers no transaction: every
// collection is first emptied children-first (contents, modules, courses,
// profiles) and then refilled parents-first, so no record ever points at a
// parent that is missing.
package backup

import (
	"context"
	"sync"
	"time"

	"mentorctl/internal/backend"
	"mentorctl/pkg/logging"

	"github.com/google/uuid"
)

const subsystem = "Backup"

// Backup is a point-in-time copy of every tracked collection. It can be
// restored at most once.
type Backup struct {
	ID         string
	CapturedAt time.Time

	mu       sync.Mutex
	snapshot *backend.Snapshot
}

// Snapshot returns a copy of the captured data. ok is false once the backup
// has been consumed.
func (b *Backup) Snapshot() (backend.Snapshot, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.snapshot == nil {
		return backend.Snapshot{}, false
	}
	return b.snapshot.Clone(), true
}

// Counts returns the number of captured records per collection.
func (b *Backup) Counts() map[backend.Collection]int {
	s, _ := b.Snapshot()
	return s.Counts()
}

func (b *Backup) take() (backend.Snapshot, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.snapshot == nil {
		return backend.Snapshot{}, ErrBackupConsumed
	}
	s := *b.snapshot
	b.snapshot = nil
	return s, nil
}

// Manager takes and restores backups against one adapter.
type Manager struct {
	adapter backend.Adapter
	now     func() time.Time
}

// NewManager creates a manager for adapter.
func NewManager(adapter backend.Adapter) *Manager {
	return &Manager{adapter: adapter, now: time.Now}
}

// Capture reads every tracked collection. Any read failure returns a
// *CaptureError and no backup.
func (m *Manager) Capture(ctx context.Context) (*Backup, error) {
	var snap backend.Snapshot
	for _, c := range backend.AllCollections {
		records, err := m.adapter.ReadAll(ctx, c)
		if err != nil {
			return nil, &CaptureError{Collection: c, Err: err}
		}
		if err := snap.Set(c, records); err != nil {
			return nil, &CaptureError{Collection: c, Err: err}
		}
	}

	b := &Backup{
		ID:         uuid.New().String(),
		CapturedAt: m.now(),
		snapshot:   &snap,
	}
	logging.Info(subsystem, "Captured backup %s %v", b.ID, snap.Counts())
	return b, nil
}

// Restore writes the backup back and consumes it. A failure returns a
// *RestoreError describing how far it got.
func (m *Manager) Restore(ctx context.Context, b *Backup) error {
	snap, err := b.take()
	if err != nil {
		return err
	}

	var cleared []backend.Collection
	for i := len(backend.AllCollections) - 1; i >= 0; i-- {
		c := backend.AllCollections[i]
		if err := m.adapter.ReplaceAll(ctx, c, nil); err != nil {
			rerr := &RestoreError{Phase: PhaseClear, Failed: c, Cleared: cleared, Err: err}
			logging.Error(subsystem, err, "Restore of backup %s failed clearing %s, pending %v", b.ID, c, rerr.Pending())
			return rerr
		}
		cleared = append(cleared, c)
	}

	var restored []backend.Collection
	for _, c := range backend.AllCollections {
		if err := m.adapter.ReplaceAll(ctx, c, snap.Records(c)); err != nil {
			rerr := &RestoreError{Phase: PhaseInsert, Failed: c, Cleared: cleared, Restored: restored, Err: err}
			logging.Error(subsystem, err, "Restore of backup %s failed writing %s, restored %v, pending %v", b.ID, c, restored, rerr.Pending())
			return rerr
		}
		restored = append(restored, c)
	}

	logging.Info(subsystem, "Restored backup %s", b.ID)
	return nil
}

// Discard drops the captured data without restoring it.
func (m *Manager) Discard(b *Backup) {
	if b == nil {
		return
	}
	if _, err := b.take(); err == nil {
		logging.Debug(subsystem, "Discarded backup %s", b.ID)
	}
}
