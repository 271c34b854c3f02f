package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/espace/zotsync/internal/backends/memory"
	"github.com/espace/zotsync/pkg/errors"
	"github.com/espace/zotsync/pkg/records"
)

func TestStoreCRUD(t *testing.T) {
	ctx := context.Background()
	fixed := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	s := memory.New([]records.Record{{ID: "A", Fields: records.Fields{Title: "First"}}}, memory.WithClock(func() time.Time { return fixed }))

	created, err := s.CreateRecord(ctx, records.Draft{ID: "ignored", Fields: records.Fields{Title: "Second"}})
	require.NoError(t, err)
	assert.NotEqual(t, "ignored", created.ID)
	assert.Equal(t, "1", created.Version)
	assert.Equal(t, fixed, created.Modified)

	title := "First, revised"
	updated, err := s.UpdateRecord(ctx, "A", "1", records.Patch{Title: &title})
	require.NoError(t, err)
	assert.Equal(t, "2", updated.Version)
	assert.Equal(t, title, updated.Title)

	_, err = s.UpdateRecord(ctx, "A", "1", records.Patch{Title: &title})
	assert.True(t, errors.IsConflict(err))

	assert.True(t, errors.IsConflict(s.DeleteRecord(ctx, "A", "1")))
	require.NoError(t, s.DeleteRecord(ctx, "A", "2"))
	assert.True(t, errors.IsNotFound(s.DeleteRecord(ctx, "A", "2")))

	assert.Equal(t, 1, s.Len())
}

func TestStorePaging(t *testing.T) {
	var seed []records.Record
	for _, id := range []string{"A", "B", "C", "D", "E"} {
		seed = append(seed, records.Record{ID: id, Fields: records.Fields{Title: id}})
	}
	s := memory.New(seed)

	page, err := s.ListRecords(context.Background(), records.Filter{Start: 2, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, "C", page.Records[0].ID)
	assert.True(t, page.More)
	assert.Equal(t, 4, page.Next)

	all, err := records.ListAll(context.Background(), s, records.Filter{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, all, 5)
}

func TestStoreFailureInjection(t *testing.T) {
	boom := errors.NewBackendUnavailableError("memory", "list", errors.New("down"))
	s := memory.New(nil, memory.WithFailure(func(op, _ string) error {
		if op == "list" {
			return boom
		}
		return nil
	}))
	_, err := s.ListRecords(context.Background(), records.Filter{})
	assert.True(t, errors.IsBackendUnavailable(err))
}

func TestRecorder(t *testing.T) {
	s := memory.New([]records.Record{{ID: "A", Fields: records.Fields{Title: "T"}}})
	r := memory.NewRecorder(s)
	ctx := context.Background()

	_, _ = r.ListRecords(ctx, records.Filter{})
	_ = r.DeleteRecord(ctx, "A", "1")

	assert.Len(t, r.Calls(), 2)
	assert.Equal(t, []memory.Call{{Op: "delete", ID: "A", Version: "1"}}, r.Mutations())
	assert.Equal(t, 0, s.Len())
}
