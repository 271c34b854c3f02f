// Package memory provides an in-memory record repository and a recording
// wrapper used to verify which operations a command performed.
package memory

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/espace/zotsync/pkg/errors"
	"github.com/espace/zotsync/pkg/records"
)

// Store is a thread-safe in-memory repository. Versions are integers
// rendered as strings and bumped on every update.
type Store struct {
	mu      sync.RWMutex
	records map[string]records.Record
	order   []string
	now     func() time.Time

	// fail, when set, is consulted before every operation
	fail func(op, id string) error
}

// Option configures a Store.
type Option func(*Store)

// WithClock sets the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// WithFailure injects errors. fn receives the operation name (list, create,
// update, delete) and the record id, and returns the error to fail with.
func WithFailure(fn func(op, id string) error) Option {
	return func(s *Store) {
		s.fail = fn
	}
}

// New returns a store seeded with recs. Seeded records keep their ids and
// get version "1" when they have none.
func New(recs []records.Record, opts ...Option) *Store {
	s := &Store{
		records: make(map[string]records.Record, len(recs)),
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	for _, r := range recs {
		r = r.Clone()
		if r.ID == "" {
			r.ID = newKey()
		}
		if r.Version == "" {
			r.Version = "1"
		}
		s.records[r.ID] = r
		s.order = append(s.order, r.ID)
	}
	return s
}

func newKey() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}

func (s *Store) check(op, id string) error {
	if s.fail == nil {
		return nil
	}
	return s.fail(op, id)
}

// ListRecords implements records.Reader.
func (s *Store) ListRecords(ctx context.Context, filter records.Filter) (*records.Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.check("list", ""); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []records.Record
	for _, id := range s.order {
		r := s.records[id]
		if filter.Match(r) {
			matched = append(matched, r.Clone())
		}
	}

	start := min(filter.Start, len(matched))
	end := min(start+filter.PageSize(), len(matched))
	return &records.Page{
		Records: matched[start:end],
		Next:    end,
		More:    end < len(matched),
	}, nil
}

// CreateRecord implements records.Writer.
func (s *Store) CreateRecord(ctx context.Context, draft records.Draft) (records.Record, error) {
	if err := ctx.Err(); err != nil {
		return records.Record{}, err
	}
	if err := s.check("create", draft.ID); err != nil {
		return records.Record{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	id := newKey()
	for s.records[id].ID != "" {
		id = newKey()
	}
	r := records.Record{ID: id, Version: "1", Modified: s.now(), Fields: draft.Fields.Clone()}
	s.records[id] = r
	s.order = append(s.order, id)
	return r.Clone(), nil
}

// UpdateRecord implements records.Writer.
func (s *Store) UpdateRecord(ctx context.Context, id, version string, patch records.Patch) (records.Record, error) {
	if err := ctx.Err(); err != nil {
		return records.Record{}, err
	}
	if err := s.check("update", id); err != nil {
		return records.Record{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.records[id]
	if !ok {
		return records.Record{}, errors.NewNotFoundError("record", id)
	}
	if r.Version != version {
		return records.Record{}, errors.NewConflictError("record", id, version)
	}
	r.Fields = patch.Apply(r.Fields)
	r.Version = bump(r.Version)
	r.Modified = s.now()
	s.records[id] = r
	return r.Clone(), nil
}

// DeleteRecord implements records.Writer.
func (s *Store) DeleteRecord(ctx context.Context, id, version string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.check("delete", id); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.records[id]
	if !ok {
		return errors.NewNotFoundError("record", id)
	}
	if r.Version != version {
		return errors.NewConflictError("record", id, version)
	}
	delete(s.records, id)
	for i, o := range s.order {
		if o == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

// Get returns a copy of one record.
func (s *Store) Get(id string) (records.Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.records[id]
	return r.Clone(), ok
}

// All returns copies of every record in insertion order.
func (s *Store) All() []records.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]records.Record, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.records[id].Clone())
	}
	return out
}

// Len returns the number of stored records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

// Touch bumps a record's version as a concurrent editor would.
func (s *Store) Touch(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.records[id]; ok {
		r.Version = bump(r.Version)
		s.records[id] = r
	}
}

func bump(v string) string {
	n, err := strconv.Atoi(v)
	if err != nil {
		return "1"
	}
	return strconv.Itoa(n + 1)
}
