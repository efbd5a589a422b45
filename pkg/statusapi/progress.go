package statusapi

import (
	"sync"
	"time"
)

// Progress is a point-in-time snapshot of a long-running operation, polled
// by the /progress endpoint.
type Progress struct {
	Operation string    `json:"operation"`
	Done      int       `json:"done"`
	Total     int       `json:"total,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Tracker holds the current progress of whatever operation coldvault is
// running, if any. A single process only ever runs one of scan, backup, or
// gc at a time, so one tracker is enough.
type Tracker struct {
	mu       sync.RWMutex
	progress Progress
}

// NewTracker returns an idle tracker.
func NewTracker() *Tracker {
	return &Tracker{}
}

// Set records done/total progress for operation. Safe to call from the
// same progress callbacks scan, backup, and gc already take.
func (t *Tracker) Set(operation string, done, total int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.progress = Progress{
		Operation: operation,
		Done:      done,
		Total:     total,
		UpdatedAt: time.Now(),
	}
}

// Snapshot returns the current progress.
func (t *Tracker) Snapshot() Progress {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.progress
}
