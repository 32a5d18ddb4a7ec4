package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dekarrin/fiberhost/internal/node"
	"github.com/dekarrin/fiberhost/internal/runtime"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := NewStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestDraftsDB_RecordAndGetByID(t *testing.T) {
	st := newTestStore(t)
	id := uuid.New()

	err := st.Drafts.RecordCompilation(context.Background(), DraftRecord{
		DraftID:         id,
		Name:            "Demo",
		EntryDocumentID: "main",
		Valid:           true,
		CompiledAt:      time.Now(),
	})
	require.NoError(t, err)

	got, err := st.Drafts.GetByID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, id, got.DraftID)
	assert.Equal(t, "Demo", got.Name)
	assert.Equal(t, "main", got.EntryDocumentID)
	assert.True(t, got.Valid)
}

func TestDraftsDB_RecordCompilationUpserts(t *testing.T) {
	st := newTestStore(t)
	id := uuid.New()
	ctx := context.Background()

	require.NoError(t, st.Drafts.RecordCompilation(ctx, DraftRecord{DraftID: id, Name: "One", EntryDocumentID: "a", Valid: false, CompiledAt: time.Now()}))
	require.NoError(t, st.Drafts.RecordCompilation(ctx, DraftRecord{DraftID: id, Name: "Two", EntryDocumentID: "a", Valid: true, CompiledAt: time.Now()}))

	got, err := st.Drafts.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Two", got.Name)
	assert.True(t, got.Valid)
}

func TestRunsDB_AppendAndGetEvents(t *testing.T) {
	st := newTestStore(t)
	runID := uuid.New()
	draftID := uuid.New()
	ctx := context.Background()

	require.NoError(t, st.Runs.AppendEvent(ctx, runID, draftID, 0, runtime.ProgramExecEvent{}))
	require.NoError(t, st.Runs.AppendEvent(ctx, runID, draftID, 1, runtime.ProgramExecEvent{Terminated: true, Stopped: true}))

	events, err := st.Runs.GetEvents(ctx, runID)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, 0, events[0].Seq)
	assert.Equal(t, 1, events[1].Seq)
	assert.True(t, events[1].Terminated)
	assert.True(t, events[1].Stopped)
}

func TestRecordRowsDB_WriteRowAndGetByName(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	row := map[string]node.Value{
		"stage.temperature": {Numeric: 42.5, Unit: "degC", Settled: true},
	}
	require.NoError(t, st.Rows.WriteRow(ctx, "demo", row))
	require.NoError(t, st.Rows.WriteRow(ctx, "demo", row))

	rows, err := st.Rows.GetByName(ctx, "demo")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "demo", rows[0].Name)
	assert.Equal(t, 42.5, rows[0].Fields["stage.temperature"].Numeric)
	assert.Equal(t, "degC", rows[0].Fields["stage.temperature"].Unit)
	assert.True(t, rows[0].Fields["stage.temperature"].Settled)
}
