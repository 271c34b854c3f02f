package memory

import (
	"context"
	"sync"

	"github.com/espace/zotsync/pkg/records"
)

// Call is one recorded repository operation.
type Call struct {
	Op      string
	ID      string
	Version string
}

// Recorder wraps a repository and records every call made through it.
type Recorder struct {
	next records.Repository

	mu    sync.Mutex
	calls []Call
}

// NewRecorder wraps next.
func NewRecorder(next records.Repository) *Recorder {
	return &Recorder{next: next}
}

func (r *Recorder) record(c Call) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, c)
}

// Calls returns every recorded call in order.
func (r *Recorder) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Call(nil), r.calls...)
}

// Mutations returns the recorded create, update and delete calls.
func (r *Recorder) Mutations() []Call {
	var out []Call
	for _, c := range r.Calls() {
		if c.Op != "list" {
			out = append(out, c)
		}
	}
	return out
}

// ListRecords implements records.Reader.
func (r *Recorder) ListRecords(ctx context.Context, filter records.Filter) (*records.Page, error) {
	r.record(Call{Op: "list"})
	return r.next.ListRecords(ctx, filter)
}

// CreateRecord implements records.Writer.
func (r *Recorder) CreateRecord(ctx context.Context, draft records.Draft) (records.Record, error) {
	r.record(Call{Op: "create", ID: draft.ID})
	return r.next.CreateRecord(ctx, draft)
}

// UpdateRecord implements records.Writer.
func (r *Recorder) UpdateRecord(ctx context.Context, id, version string, patch records.Patch) (records.Record, error) {
	r.record(Call{Op: "update", ID: id, Version: version})
	return r.next.UpdateRecord(ctx, id, version, patch)
}

// DeleteRecord implements records.Writer.
func (r *Recorder) DeleteRecord(ctx context.Context, id, version string) error {
	r.record(Call{Op: "delete", ID: id, Version: version})
	return r.next.DeleteRecord(ctx, id, version)
}
