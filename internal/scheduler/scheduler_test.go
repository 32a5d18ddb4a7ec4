package scheduler_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dekarrin/fiberhost/internal/fiberexpr"
	"github.com/dekarrin/fiberhost/internal/runtime"
	"github.com/dekarrin/fiberhost/internal/scheduler"
	"github.com/dekarrin/fiberhost/internal/units/timer"
)

func TestRun_DeliversTerminatedEventToSinkAndSubscribers(t *testing.T) {
	block := &timer.Block{Duration: fiberexpr.Quantity{Magnitude: 0.001, Unit: "sec"}}

	var sunk []runtime.ProgramExecEvent
	sink := func(seq int, ev runtime.ProgramExecEvent) {
		sunk = append(sunk, ev)
	}

	draftID := uuid.New()
	r := scheduler.Start(context.Background(), uuid.New(), draftID, block, sink)
	sub := r.Subscribe()

	select {
	case ev, ok := <-sub:
		require.True(t, ok)
		assert.True(t, ev.Terminated)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for run event")
	}

	// subscriber channel closes once the run terminates.
	select {
	case _, ok := <-sub:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for subscriber channel close")
	}

	require.Len(t, sunk, 1)
	assert.True(t, sunk[0].Terminated)
	assert.Equal(t, draftID, r.DraftID)
}

func TestRun_HaltCancelsInFlightProgram(t *testing.T) {
	block := &timer.Block{Duration: fiberexpr.Quantity{Magnitude: 60, Unit: "sec"}}
	r := scheduler.Start(context.Background(), uuid.New(), uuid.New(), block, nil)
	sub := r.Subscribe()

	require.NoError(t, r.Halt())

	select {
	case ev := <-sub:
		assert.True(t, ev.Terminated)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for halted run to terminate")
	}
}

func TestRegistry_AddGetRemove(t *testing.T) {
	reg := scheduler.NewRegistry()
	block := &timer.Block{Duration: fiberexpr.Quantity{Magnitude: 0.001, Unit: "sec"}}
	r := scheduler.Start(context.Background(), uuid.New(), uuid.New(), block, nil)

	reg.Add(r)
	got, ok := reg.Get(r.ID)
	require.True(t, ok)
	assert.Equal(t, r, got)

	reg.Remove(r.ID)
	_, ok = reg.Get(r.ID)
	assert.False(t, ok)
}
