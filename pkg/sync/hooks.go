package sync

import (
	"sync"

	"github.com/espace/zotsync/pkg/records"
)

// Hook function types for applied mutations
type (
	// RecordCreatedHook is called after a record is created
	RecordCreatedHook func(created records.Record)

	// RecordUpdatedHook is called after a record is updated
	RecordUpdatedHook func(before, after records.Record)

	// RecordDeletedHook is called after a record is deleted
	RecordDeletedHook func(id string)
)

// hooks manages event callbacks for applied mutations
type hooks struct {
	mu        sync.RWMutex
	onCreated []RecordCreatedHook
	onUpdated []RecordUpdatedHook
	onDeleted []RecordDeletedHook
}

// OnRecordCreated registers a callback for created records
func (h *hooks) OnRecordCreated(fn RecordCreatedHook) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onCreated = append(h.onCreated, fn)
}

// OnRecordUpdated registers a callback for updated records
func (h *hooks) OnRecordUpdated(fn RecordUpdatedHook) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onUpdated = append(h.onUpdated, fn)
}

// OnRecordDeleted registers a callback for deleted records
func (h *hooks) OnRecordDeleted(fn RecordDeletedHook) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onDeleted = append(h.onDeleted, fn)
}

func (h *hooks) created(r records.Record) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, fn := range h.onCreated {
		fn(r)
	}
}

func (h *hooks) updated(before, after records.Record) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, fn := range h.onUpdated {
		fn(before, after)
	}
}

func (h *hooks) deleted(id string) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, fn := range h.onDeleted {
		fn(id)
	}
}
