// Package registry tracks every upload and download a client runs so a UI
// can render live progress, cancel transfers, and show their final state.
//
// A Registry is an explicitly constructed value shared between the client
// and its readers. All mutation goes through its methods. Operations on an
// unknown id are no-ops, so a record may be removed from the UI before a
// late progress event arrives. Terminal states are sticky.
package registry

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/s3desk/s3desk/s3types"
)

// Kind is the direction of a transfer.
type Kind string

const (
	KindUpload   Kind = "upload"
	KindDownload Kind = "download"
)

// Status is the lifecycle state of a transfer.
type Status string

const (
	StatusPending     Status = "pending"
	StatusInProgress  Status = "in-progress"
	StatusCompressing Status = "compressing"
	StatusCompleted   Status = "completed"
	StatusError       Status = "error"
	StatusCancelled   Status = "cancelled"
)

// Terminal reports whether no further transitions are allowed.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusError || s == StatusCancelled
}

// Meta describes a transfer when it is registered.
type Meta struct {
	Name       string
	Kind       Kind
	Key        string
	TotalBytes int64
	// FileCount is 1 for a single object and N for an archive.
	// Zero is treated as 1.
	FileCount int
}

// Transfer is a read-only snapshot of one record.
type Transfer struct {
	ID         string
	Name       string
	Kind       Kind
	Key        string
	TotalBytes int64
	BytesDone  int64
	FileCount  int
	Status     Status
	// Progress is the transfer percentage in [0, 100].
	Progress float64
	// Compression is the archive compression percentage in [0, 100].
	Compression float64
	Err         string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Patch carries the fields Update merges into a record. Nil fields are left alone.
type Patch struct {
	Status      *Status
	Name        *string
	FileCount   *int
	Compression *float64
}

// Event is published to subscribers after every change.
type Event struct {
	Transfer Transfer
	// Removed is set when the record was dropped from the registry.
	Removed bool
}

type record struct {
	t      Transfer
	cancel chan struct{}
}

// Registry is the shared transfer table.
type Registry struct {
	mu      sync.RWMutex
	records map[string]*record
	order   []string

	subs    map[int]chan Event
	nextSub int

	now func() time.Time
}

// Option configures a Registry.
type Option func(*Registry)

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		r.now = now
	}
}

// New creates an empty registry.
func New(opts ...Option) *Registry {
	r := &Registry{
		records: make(map[string]*record),
		subs:    make(map[int]chan Event),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Add registers a transfer in the pending state and returns its id.
func (r *Registry) Add(meta Meta) string {
	id := uuid.NewString()
	now := r.now()

	fileCount := meta.FileCount
	if fileCount <= 0 {
		fileCount = 1
	}

	rec := &record{
		t: Transfer{
			ID:         id,
			Name:       meta.Name,
			Kind:       meta.Kind,
			Key:        meta.Key,
			TotalBytes: meta.TotalBytes,
			FileCount:  fileCount,
			Status:     StatusPending,
			CreatedAt:  now,
			UpdatedAt:  now,
		},
		cancel: make(chan struct{}),
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[id] = rec
	r.order = append(r.order, id)
	r.publish(Event{Transfer: rec.t})
	return id
}

// UpdateProgress records bytes done out of total. The first call moves a
// pending transfer to in-progress. Bytes done never decrease.
func (r *Registry) UpdateProgress(id string, done, total int64) {
	r.mutate(id, func(t *Transfer) bool {
		if t.Status.Terminal() {
			return false
		}
		if t.Status == StatusPending {
			t.Status = StatusInProgress
		}
		if total >= 0 {
			t.TotalBytes = total
		}
		t.BytesDone = max(t.BytesDone, done)
		t.Progress = percent(t.BytesDone, t.TotalBytes)
		return true
	})
}

// Update merges the non-nil fields of p. Status changes must follow the
// lifecycle: only in-progress may move to compressing, and terminal
// statuses must go through Complete, Fail or Cancel.
func (r *Registry) Update(id string, p Patch) {
	r.mutate(id, func(t *Transfer) bool {
		if t.Status.Terminal() {
			return false
		}
		if p.Status != nil {
			switch {
			case *p.Status == StatusCompressing && (t.Status == StatusInProgress || t.Status == StatusPending):
				t.Status = StatusCompressing
			case *p.Status == StatusInProgress && t.Status == StatusPending:
				t.Status = StatusInProgress
			case *p.Status == t.Status:
			default:
				return false
			}
		}
		if p.Name != nil {
			t.Name = *p.Name
		}
		if p.FileCount != nil && *p.FileCount > 0 {
			t.FileCount = *p.FileCount
		}
		if p.Compression != nil {
			t.Compression = clampPercent(*p.Compression)
		}
		return true
	})
}

// Complete marks the transfer as completed with all bytes done.
func (r *Registry) Complete(id string) {
	r.mutate(id, func(t *Transfer) bool {
		if t.Status.Terminal() {
			return false
		}
		t.Status = StatusCompleted
		t.BytesDone = t.TotalBytes
		t.Progress = 100
		if t.Compression > 0 {
			t.Compression = 100
		}
		return true
	})
}

// Fail marks the transfer as failed and keeps the error message.
func (r *Registry) Fail(id string, err error) {
	r.mutate(id, func(t *Transfer) bool {
		if t.Status.Terminal() {
			return false
		}
		t.Status = StatusError
		if err != nil {
			t.Err = err.Error()
		}
		return true
	})
}

// Cancel marks the transfer as cancelled and signals the orchestrator
// running it to stop issuing requests. It reports whether the transfer was
// cancelled by this call. A compressing archive can no longer be cancelled.
func (r *Registry) Cancel(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[id]
	if !ok || rec.t.Status.Terminal() || rec.t.Status == StatusCompressing {
		return false
	}
	rec.t.Status = StatusCancelled
	rec.t.Err = "cancelled by user"
	rec.t.UpdatedAt = r.now()
	close(rec.cancel)
	r.publish(Event{Transfer: rec.t})
	return true
}

// Cancelled returns a channel closed when the transfer is cancelled.
// Unknown ids get a nil channel, which never fires.
func (r *Registry) Cancelled(id string) <-chan struct{} {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if rec, ok := r.records[id]; ok {
		return rec.cancel
	}
	return nil
}

// Get returns a snapshot of one transfer.
func (r *Registry) Get(id string) (Transfer, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.records[id]
	if !ok {
		return Transfer{}, false
	}
	return rec.t, true
}

// Snapshot returns every transfer in creation order.
func (r *Registry) Snapshot() []Transfer {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Transfer, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.records[id].t)
	}
	return out
}

// Remove drops a transfer. A running orchestrator keeps working but its
// later updates become no-ops.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[id]
	if !ok {
		return
	}
	r.drop(id)
	r.publish(Event{Transfer: rec.t, Removed: true})
}

// ClearFinished drops every transfer in a terminal state and returns how
// many were removed.
func (r *Registry) ClearFinished() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	var finished []*record
	for _, id := range r.order {
		if rec := r.records[id]; rec.t.Status.Terminal() {
			finished = append(finished, rec)
		}
	}
	for _, rec := range finished {
		r.drop(rec.t.ID)
		r.publish(Event{Transfer: rec.t, Removed: true})
	}
	return len(finished)
}

// Subscribe returns a channel of change events and a function that ends
// the subscription. Events are dropped for a subscriber whose buffer is
// full; Snapshot recovers the current state.
func (r *Registry) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 64
	}
	ch := make(chan Event, buffer)

	r.mu.Lock()
	id := r.nextSub
	r.nextSub++
	r.subs[id] = ch
	r.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			r.mu.Lock()
			delete(r.subs, id)
			r.mu.Unlock()
			close(ch)
		})
	}
}

// Sink adapts the transfer to a progress sink.
func (r *Registry) Sink(id string) s3types.ProgressSink {
	return s3types.ProgressFunc(func(done, total int64) {
		r.UpdateProgress(id, done, total)
	})
}

// CompressionSink adapts the transfer's compression phase to a progress
// sink. The first report moves the transfer to compressing.
func (r *Registry) CompressionSink(id string) s3types.ProgressSink {
	status := StatusCompressing
	return s3types.ProgressFunc(func(done, total int64) {
		pct := percent(done, total)
		if total == 0 {
			pct = 100
		}
		r.Update(id, Patch{Status: &status, Compression: &pct})
	})
}

func (r *Registry) mutate(id string, fn func(*Transfer) bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[id]
	if !ok {
		return
	}
	if !fn(&rec.t) {
		return
	}
	rec.t.UpdatedAt = r.now()
	r.publish(Event{Transfer: rec.t})
}

// drop must be called with mu held.
func (r *Registry) drop(id string) {
	delete(r.records, id)
	for i, oid := range r.order {
		if oid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

// publish must be called with mu held.
func (r *Registry) publish(ev Event) {
	for _, ch := range r.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

func percent(done, total int64) float64 {
	if total <= 0 {
		return 0
	}
	return clampPercent(float64(done) / float64(total) * 100)
}

func clampPercent(p float64) float64 {
	return min(max(p, 0), 100)
}
