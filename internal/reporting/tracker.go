package reporting

import (
	"sync"
	"time"

	"mentorctl/internal/model"
	"mentorctl/pkg/logging"
)

// Tracker holds the canonical record of one suite run. The orchestrator is
// its only writer; everyone else reads snapshots.
type Tracker struct {
	mu       sync.RWMutex
	suite    model.TestSuite
	subs     map[int]chan model.TestSuite
	nextSub  int
	finished bool
	done     chan struct{}
	now      func() time.Time
}

// NewTracker starts tracking suite, which should be in the pending state.
func NewTracker(suite model.TestSuite) *Tracker {
	suite.TotalTests = len(suite.Tests)
	return &Tracker{
		suite: suite,
		subs:  make(map[int]chan model.TestSuite),
		done:  make(chan struct{}),
		now:   time.Now,
	}
}

// Begin moves the suite to running and stamps the start time.
func (t *Tracker) Begin() model.TestSuite {
	return t.Update(func(s *model.TestSuite) {
		s.Status = model.SuiteRunning
		started := t.now()
		s.StartedAt = &started
	})
}

// Update applies fn to the canonical record and publishes the result to
// subscribers. Updates after Finish are ignored.
func (t *Tracker) Update(fn func(*model.TestSuite)) model.TestSuite {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.finished {
		return t.suite.Clone()
	}
	fn(&t.suite)
	if err := t.suite.CheckCounters(); err != nil {
		logging.Error("Tracker", err, "Suite %s counters out of balance", t.suite.ID)
	}
	snap := t.suite.Clone()
	t.broadcast(snap)
	return snap
}

// Finish applies fn, moves the suite to status and stamps its duration as
// the time of this final transition minus the start time. Subscriber
// channels are closed after the final snapshot.
func (t *Tracker) Finish(status model.SuiteStatus, fn func(*model.TestSuite)) model.TestSuite {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.finished {
		return t.suite.Clone()
	}
	if fn != nil {
		fn(&t.suite)
	}
	t.suite.Status = status
	finished := t.now()
	t.suite.FinishedAt = &finished
	if t.suite.StartedAt != nil {
		t.suite.Duration = finished.Sub(*t.suite.StartedAt)
	}
	if err := t.suite.CheckCounters(); err != nil {
		logging.Error("Tracker", err, "Suite %s counters out of balance", t.suite.ID)
	}
	t.finished = true

	snap := t.suite.Clone()
	t.broadcast(snap)
	for id, ch := range t.subs {
		close(ch)
		delete(t.subs, id)
	}
	close(t.done)
	return snap
}

// broadcast keeps only the latest snapshot in each subscriber buffer.
// Callers hold t.mu.
func (t *Tracker) broadcast(snap model.TestSuite) {
	for _, ch := range t.subs {
		select {
		case <-ch:
		default:
		}
		ch <- snap
	}
}

// Snapshot returns a copy of the current record.
func (t *Tracker) Snapshot() model.TestSuite {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.suite.Clone()
}

// Subscribe returns a channel receiving the latest snapshot after every
// update. Slow readers skip intermediate snapshots but always see the last
// one. The channel is closed once the run finishes; cancel detaches early.
func (t *Tracker) Subscribe() (<-chan model.TestSuite, func()) {
	t.mu.Lock()
	defer t.mu.Unlock()

	ch := make(chan model.TestSuite, 1)
	ch <- t.suite.Clone()
	if t.finished {
		close(ch)
		return ch, func() {}
	}
	id := t.nextSub
	t.nextSub++
	t.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			t.mu.Lock()
			defer t.mu.Unlock()
			if c, ok := t.subs[id]; ok {
				close(c)
				delete(t.subs, id)
			}
		})
	}
}

// Done is closed when the run reaches a terminal state.
func (t *Tracker) Done() <-chan struct{} {
	return t.done
}
