package testutil

import (
	"sync"

	"github.com/s3desk/s3desk/s3types"
)

// ProgressUpdate represents a single progress update event.
type ProgressUpdate struct {
	Transferred int64
	Total       int64
}

// RecordingSink is a ProgressSink that records every update.
// It is safe for concurrent use.
type RecordingSink struct {
	mu      sync.Mutex
	updates []ProgressUpdate
}

var _ s3types.ProgressSink = (*RecordingSink)(nil)

// OnProgress records a progress update.
func (r *RecordingSink) OnProgress(done, total int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates = append(r.updates, ProgressUpdate{Transferred: done, Total: total})
}

// Updates returns a copy of the recorded updates.
func (r *RecordingSink) Updates() []ProgressUpdate {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]ProgressUpdate, len(r.updates))
	copy(out, r.updates)
	return out
}

// Last returns the most recent update, or the zero value when none was recorded.
func (r *RecordingSink) Last() ProgressUpdate {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.updates) == 0 {
		return ProgressUpdate{}
	}
	return r.updates[len(r.updates)-1]
}

// Monotonic reports whether transferred bytes never decreased.
func (r *RecordingSink) Monotonic() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := 1; i < len(r.updates); i++ {
		if r.updates[i].Transferred < r.updates[i-1].Transferred {
			return false
		}
	}
	return true
}

// Reset clears the recorded updates.
func (r *RecordingSink) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates = nil
}
