package batch

import "sync"

// Progress is a point-in-time view of batch completion.
type Progress struct {
	Total     int `json:"total"`
	Active    int `json:"active"`
	Completed int `json:"completed"`
}

// ProgressTracker counts in-flight and finished files under a lock.
// Workers bump the counters; renderers poll Snapshot. The tracker never
// blocks on I/O.
type ProgressTracker struct {
	mu        sync.Mutex
	total     int
	active    int
	completed int
}

// NewProgressTracker returns a tracker expecting total files.
func NewProgressTracker(total int) *ProgressTracker {
	return &ProgressTracker{total: total}
}

// StartFile marks one file in flight.
func (p *ProgressTracker) StartFile() {
	p.mu.Lock()
	p.active++
	p.mu.Unlock()
}

// CompleteFile moves one file from in flight to done.
func (p *ProgressTracker) CompleteFile() {
	p.mu.Lock()
	p.active--
	p.completed++
	p.mu.Unlock()
}

// Snapshot returns the current counters.
func (p *ProgressTracker) Snapshot() Progress {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Progress{Total: p.total, Active: p.active, Completed: p.completed}
}
