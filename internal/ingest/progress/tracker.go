// Package progress owns the per-file status collection of an upload batch
// and the aggregate progress derived from it.
package progress

import (
	"sync"

	"github.com/dmitrijs2005/mediaingest/internal/models"
)

// Snapshot is a consistent view of the tracker after one update.
type Snapshot struct {
	Files   []models.FileStatus `json:"fileStatuses" msgpack:"fileStatuses"`
	Overall float64             `json:"overallProgress" msgpack:"overallProgress"`
}

// Listener receives a snapshot after every applied change.
type Listener func(Snapshot)

// Tracker is the single source of truth for file statuses. Entries are kept
// in insertion order and addressed by name.
type Tracker struct {
	mu        sync.Mutex
	files     []models.FileStatus
	index     map[string]int
	overall   float64
	listeners []Listener
}

func NewTracker() *Tracker {
	return &Tracker{index: make(map[string]int)}
}

// Subscribe registers l for all future changes.
func (t *Tracker) Subscribe(l Listener) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.listeners = append(t.listeners, l)
}

// Reset replaces the collection for a fresh run.
func (t *Tracker) Reset(initial []models.FileStatus) {
	t.mu.Lock()
	t.files = make([]models.FileStatus, 0, len(initial))
	t.index = make(map[string]int, len(initial))
	for _, s := range initial {
		t.add(s)
	}
	snap := t.recompute()
	t.mu.Unlock()

	t.notify(snap)
}

// Track adds a new Pending entry, e.g. an archive member once it is known.
// Tracking an existing name is a no-op.
func (t *Tracker) Track(name string) {
	t.mu.Lock()
	if _, ok := t.index[name]; ok {
		t.mu.Unlock()
		return
	}
	t.add(models.FileStatus{Name: name, State: models.StatePending})
	snap := t.recompute()
	t.mu.Unlock()

	t.notify(snap)
}

func (t *Tracker) add(s models.FileStatus) {
	if _, ok := t.index[s.Name]; ok {
		return
	}
	t.index[s.Name] = len(t.files)
	t.files = append(t.files, s)
}

// UpdateFileProgress applies progress and, when state is non-nil, the new
// state to the entry called name. Unknown names are ignored. Transitions the
// state machine does not allow leave the state untouched.
func (t *Tracker) UpdateFileProgress(name string, progress float64, state *models.State) {
	t.update(name, func(s *models.FileStatus) {
		s.Progress = clamp(progress)
		if state != nil && s.State.CanTransition(*state) {
			s.State = *state
		}
	})
}

// Progress implements the transfer observer: it only moves the percentage.
func (t *Tracker) Progress(name string, pct float64) {
	t.update(name, func(s *models.FileStatus) {
		if !s.State.Terminal() {
			s.Progress = clamp(pct)
		}
	})
}

// Status implements the transfer observer. Complete forces progress to 100;
// Error records msg.
func (t *Tracker) Status(name string, state models.State, msg string) {
	t.update(name, func(s *models.FileStatus) {
		if !s.State.CanTransition(state) {
			return
		}
		s.State = state
		switch state {
		case models.StateComplete:
			s.Progress = 100
		case models.StateError:
			s.Error = msg
		}
	})
}

func (t *Tracker) update(name string, fn func(*models.FileStatus)) {
	t.mu.Lock()
	i, ok := t.index[name]
	if !ok {
		t.mu.Unlock()
		return
	}
	fn(&t.files[i])
	snap := t.recompute()
	t.mu.Unlock()

	t.notify(snap)
}

// recompute refreshes the aggregate; callers hold t.mu.
func (t *Tracker) recompute() Snapshot {
	if len(t.files) == 0 {
		t.overall = 0
	} else {
		var sum float64
		for _, f := range t.files {
			sum += f.Progress
		}
		t.overall = sum / float64(len(t.files))
	}
	return t.snapshot()
}

func (t *Tracker) snapshot() Snapshot {
	files := make([]models.FileStatus, len(t.files))
	copy(files, t.files)
	return Snapshot{Files: files, Overall: t.overall}
}

func (t *Tracker) notify(s Snapshot) {
	t.mu.Lock()
	listeners := make([]Listener, len(t.listeners))
	copy(listeners, t.listeners)
	t.mu.Unlock()

	for _, l := range listeners {
		l(s)
	}
}

// Snapshot returns a copy of the statuses and the aggregate.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshot()
}

// Overall is the mean of all tracked progress values.
func (t *Tracker) Overall() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.overall
}

// Get returns the status of name.
func (t *Tracker) Get(name string) (models.FileStatus, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	i, ok := t.index[name]
	if !ok {
		return models.FileStatus{}, false
	}
	return t.files[i], true
}

func clamp(p float64) float64 {
	switch {
	case p < 0:
		return 0
	case p > 100:
		return 100
	}
	return p
}
