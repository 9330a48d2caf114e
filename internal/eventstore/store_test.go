package eventstore

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/loaderbuild/internal/foundation/errors"
)

func newStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestStoreAppendAndRetrieve(t *testing.T) {
	store := newStore(t)
	ctx := t.Context()

	ev := &BaseEvent{
		EventCycleID:  "c1",
		EventBundle:   "photonews",
		EventType:     "TestEvent",
		EventPayload:  []byte(`{"test":"data"}`),
		EventMetadata: map[string]string{"key": "value"},
	}
	require.NoError(t, store.Append(ctx, ev))

	events, err := store.GetByCycleID(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, events, 1)

	got := events[0]
	require.Positive(t, got.ID())
	require.Equal(t, "c1", got.CycleID())
	require.Equal(t, "photonews", got.Bundle())
	require.Equal(t, "TestEvent", got.Type())
	require.JSONEq(t, `{"test":"data"}`, string(got.Payload()))
	require.Equal(t, "value", got.Metadata()["key"])
	require.WithinDuration(t, time.Now(), got.Timestamp(), time.Minute)
}

func TestStoreGetByBundleLimit(t *testing.T) {
	store := newStore(t)
	ctx := t.Context()

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, store.Append(ctx, &BaseEvent{EventCycleID: id, EventBundle: "photonews", EventType: TypeCycleStarted}))
	}
	require.NoError(t, store.Append(ctx, &BaseEvent{EventCycleID: "x", EventBundle: "other", EventType: TypeCycleStarted}))

	all, err := store.GetByBundle(ctx, "photonews", 0)
	require.NoError(t, err)
	require.Len(t, all, 3)

	last, err := store.GetByBundle(ctx, "photonews", 2)
	require.NoError(t, err)
	require.Len(t, last, 2)
	require.Equal(t, "b", last[0].CycleID())
	require.Equal(t, "c", last[1].CycleID())
}

func TestStoreGetRange(t *testing.T) {
	store := newStore(t)
	ctx := t.Context()
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	for i, id := range []string{"early", "middle", "late"} {
		require.NoError(t, store.Append(ctx, &BaseEvent{
			EventCycleID:   id,
			EventBundle:    "photonews",
			EventType:      TypeCycleStarted,
			EventTimestamp: base.Add(time.Duration(i) * time.Hour),
		}))
	}

	events, err := store.GetRange(ctx, base.Add(30*time.Minute), base.Add(90*time.Minute))
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, "middle", events[0].CycleID())
	require.True(t, events[0].Timestamp().Equal(base.Add(time.Hour)))
}

func TestStorePersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	store, err := NewSQLiteStore(path)
	require.NoError(t, err)
	require.NoError(t, store.Append(t.Context(), &BaseEvent{EventCycleID: "c1", EventBundle: "photonews", EventType: TypeCycleStarted}))
	require.NoError(t, store.Close())

	store, err = NewSQLiteStore(path)
	require.NoError(t, err)
	defer func() { _ = store.Close() }()
	events, err := store.GetByCycleID(t.Context(), "c1")
	require.NoError(t, err)
	require.Len(t, events, 1)
}

func TestStoreErrorsAreClassified(t *testing.T) {
	store := newStore(t)
	require.NoError(t, store.Close())

	err := store.Append(t.Context(), &BaseEvent{EventCycleID: "c1", EventBundle: "b", EventType: "T"})
	require.ErrorIs(t, err, ErrEventAppendFailed)
	require.True(t, errors.HasCategory(err, errors.CategoryJournal))
}
