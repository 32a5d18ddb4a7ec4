package node

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dekarrin/fiberhost/internal/fiberexpr"
)

func TestInMemoryTree_FindMissingReturnsMissingNodeError(t *testing.T) {
	tree := NewInMemoryTree()
	_, err := Resolve(tree, []string{"devices", "pump1", "power"})
	require.Error(t, err)

	var missing *MissingNodeError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, []string{"devices", "pump1", "power"}, missing.Path)
}

func TestInMemoryTree_FindResolvesRegisteredNode(t *testing.T) {
	tree := NewInMemoryTree()
	n := NewNumericNode([]string{"devices", "pump1", "speed"}, "rpm", 1)
	tree.Register(n)

	found, err := Resolve(tree, []string{"devices", "pump1", "speed"})
	require.NoError(t, err)
	assert.Equal(t, KindNumeric, found.Kind())
}

func TestNumericNode_WatchReceivesUpdates(t *testing.T) {
	n := NewNumericNode([]string{"devices", "pump1", "speed"}, "rpm", 1)

	var got []Value
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h := n.Watch(ctx, func(v Value) { got = append(got, v) })
	defer h.Cancel()

	n.Update(100, true)
	n.Update(150, false)

	require.Len(t, got, 2)
	assert.Equal(t, 100.0, got[0].Numeric)
	assert.True(t, got[0].Settled)
	assert.False(t, got[1].Settled)
}

func TestNumericNode_WatchStopsAfterCancel(t *testing.T) {
	n := NewNumericNode([]string{"devices", "pump1", "speed"}, "rpm", 1)

	count := 0
	h := n.Watch(context.Background(), func(Value) { count++ })
	n.Update(1, true)
	h.Cancel()
	n.Update(2, true)

	assert.Equal(t, 1, count)
}

func TestNumericNode_WriteQuantityRejectsIncompatibleUnit(t *testing.T) {
	n := NewNumericNode([]string{"devices", "pump1", "speed"}, "rpm", 1)
	n.SetWriter(func(ctx context.Context, q fiberexpr.Quantity) error { return nil })

	err := n.WriteQuantity(context.Background(), fiberexpr.Quantity{Magnitude: 5, Unit: "sec"})
	require.Error(t, err)
}

func TestNumericNode_WriteQuantityRejectsOutOfRange(t *testing.T) {
	n := NewNumericNode([]string{"devices", "pump1", "speed"}, "rpm", 1)
	min, _ := fiberexpr.NewQuantity(0, "rpm")
	max, _ := fiberexpr.NewQuantity(500, "rpm")
	n.Min, n.Max = &min, &max
	n.SetWriter(func(ctx context.Context, q fiberexpr.Quantity) error { return nil })

	err := n.WriteQuantity(context.Background(), fiberexpr.Quantity{Magnitude: 1000, Unit: "rpm"})
	require.Error(t, err)
}

func TestNumericNode_WriteQuantityAcceptsInRangeValue(t *testing.T) {
	n := NewNumericNode([]string{"devices", "pump1", "speed"}, "rpm", 1)
	min, _ := fiberexpr.NewQuantity(0, "rpm")
	max, _ := fiberexpr.NewQuantity(500, "rpm")
	n.Min, n.Max = &min, &max

	var written fiberexpr.Quantity
	n.SetWriter(func(ctx context.Context, q fiberexpr.Quantity) error {
		written = q
		return nil
	})

	require.NoError(t, n.WriteQuantity(context.Background(), fiberexpr.Quantity{Magnitude: 250, Unit: "rpm"}))
	assert.Equal(t, 250.0, written.Magnitude)
}

func TestNumericNode_WatchCancelsOnContextDone(t *testing.T) {
	n := NewNumericNode([]string{"devices", "pump1", "speed"}, "rpm", 1)
	ctx, cancel := context.WithCancel(context.Background())
	h := n.Watch(ctx, func(Value) {})
	cancel()

	// Cancellation runs in a background goroutine; give it a moment, then
	// confirm the watcher map is empty by checking a subsequent update
	// reaches no callback (no assertion target directly on the map since
	// it's unexported, so this only guards against a panic on double
	// cancel).
	time.Sleep(10 * time.Millisecond)
	h.Cancel()
}
