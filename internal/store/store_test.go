package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, st.Close())
	})
	return st
}

func TestSnapshotRoundTrip(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	snap, err := st.ReadSnapshot(ctx)
	require.NoError(t, err)
	assert.Nil(t, snap, "fresh database has no snapshot")

	writtenAt := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	require.NoError(t, st.WriteSnapshot(ctx, []byte(`[{"a":1}]`), 1, writtenAt))

	snap, err = st.ReadSnapshot(ctx)
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, []byte(`[{"a":1}]`), snap.Payload)
	assert.Equal(t, 1, snap.Count)
	assert.True(t, snap.WrittenAt.Equal(writtenAt))
}

func TestWriteSnapshotReplaces(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, st.WriteSnapshot(ctx, []byte(`[]`), 0, time.Now()))
	require.NoError(t, st.WriteSnapshot(ctx, []byte(`[1,2]`), 2, time.Now()))

	snap, err := st.ReadSnapshot(ctx)
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, 2, snap.Count)
}

func TestClearSnapshot(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, st.WriteSnapshot(ctx, []byte(`[]`), 0, time.Now()))
	require.NoError(t, st.ClearSnapshot(ctx))

	snap, err := st.ReadSnapshot(ctx)
	require.NoError(t, err)
	assert.Nil(t, snap)
}

func TestLedgerMarkDeliveredIsIdempotent(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	key := DeliveryKey{EmployeeNo: "009165", EventDate: "15/03/2025"}

	delivered, err := st.Delivered(ctx, key)
	require.NoError(t, err)
	assert.False(t, delivered)

	at := time.Date(2025, 3, 16, 8, 0, 0, 0, time.UTC)
	require.NoError(t, st.MarkDelivered(ctx, key, "Maria Souza", at))
	// Recording the same key again is a no-op, never an error.
	require.NoError(t, st.MarkDelivered(ctx, key, "Maria Souza", at.Add(time.Hour)))

	delivered, err = st.Delivered(ctx, key)
	require.NoError(t, err)
	assert.True(t, delivered)

	count, err := st.LedgerCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestLedgerKeysAreCompound(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	// Same employee, different event date: a distinct delivery.
	require.NoError(t, st.MarkDelivered(ctx,
		DeliveryKey{EmployeeNo: "009165", EventDate: "15/03/2025"}, "Maria Souza", time.Now()))
	require.NoError(t, st.MarkDelivered(ctx,
		DeliveryKey{EmployeeNo: "009165", EventDate: "20/04/2025"}, "Maria Souza", time.Now()))

	set, err := st.DeliveredSet(ctx)
	require.NoError(t, err)
	assert.Len(t, set, 2)
	assert.Contains(t, set, DeliveryKey{EmployeeNo: "009165", EventDate: "15/03/2025"})
	assert.Contains(t, set, DeliveryKey{EmployeeNo: "009165", EventDate: "20/04/2025"})
}

func TestHistoryNewestFirst(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	base := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, st.MarkDelivered(ctx,
		DeliveryKey{EmployeeNo: "000001", EventDate: "01/03/2025"}, "First", base))
	require.NoError(t, st.MarkDelivered(ctx,
		DeliveryKey{EmployeeNo: "000002", EventDate: "02/03/2025"}, "Second", base.Add(time.Hour)))

	events, err := st.History(ctx)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "000002", events[0].EmployeeNo)
	assert.Equal(t, "000001", events[1].EmployeeNo)
}

func TestOpenIsReentrant(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	st, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, st.MarkDelivered(context.Background(),
		DeliveryKey{EmployeeNo: "000001", EventDate: "01/03/2025"}, "First", time.Now()))
	require.NoError(t, st.Close())

	// Reopening an existing database must not rerun destructive schema DDL.
	st, err = Open(path)
	require.NoError(t, err)
	defer st.Close()

	count, err := st.LedgerCount(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
