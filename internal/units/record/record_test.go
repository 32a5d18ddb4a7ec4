package record

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dekarrin/fiberhost/internal/fiber"
	"github.com/dekarrin/fiberhost/internal/fiberexpr"
	"github.com/dekarrin/fiberhost/internal/node"
	"github.com/dekarrin/fiberhost/internal/schema"
	"github.com/dekarrin/fiberhost/internal/state"
)

type fakeSink struct {
	mu   sync.Mutex
	rows []map[string]node.Value
}

func (s *fakeSink) WriteRow(ctx context.Context, name string, row map[string]node.Value) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = append(s.rows, row)
	return nil
}

func (s *fakeSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rows)
}

func setupTree(t *testing.T) (*node.InMemoryTree, *node.NumericNode) {
	t.Helper()
	tree := node.NewInMemoryTree()
	n := node.NewNumericNode([]string{"stage", "temperature"}, "degC", 1)
	tree.Register(n)
	return tree, n
}

func TestParser_ParseBlockResolvesConfiguredFields(t *testing.T) {
	tree, _ := setupTree(t)
	sink := &fakeSink{}
	p := NewParser(tree, sink)

	attrs := map[string]schema.Scalar{
		"record_fields": {Value: []schema.Scalar{{Value: "stage.temperature"}}},
	}
	_, ud, ok := p.ParseBlock(attrs, fiberexpr.NewStack())
	require.True(t, ok)

	us, ok := ud.State.(*UnitState)
	require.True(t, ok)
	assert.Contains(t, us.fields, "stage.temperature")
	assert.Equal(t, "record", us.name)
}

func TestParser_ParseBlockFailsOnMissingNodePath(t *testing.T) {
	tree, _ := setupTree(t)
	p := NewParser(tree, &fakeSink{})

	attrs := map[string]schema.Scalar{
		"record_fields": {Value: []schema.Scalar{{Value: "stage.nonexistent"}}},
	}
	_, _, ok := p.ParseBlock(attrs, fiberexpr.NewStack())
	assert.False(t, ok)
}

func TestParser_ParseBlockAllowsOmittedRecord(t *testing.T) {
	tree, _ := setupTree(t)
	p := NewParser(tree, &fakeSink{})

	_, ud, ok := p.ParseBlock(map[string]schema.Scalar{"record_fields": schema.Ellipsis}, fiberexpr.NewStack())
	require.True(t, ok)
	assert.Nil(t, ud.State)
}

func TestUnitState_FactoryWritesRowOnEveryNodeChange(t *testing.T) {
	tree, n := setupTree(t)
	sink := &fakeSink{}
	p := NewParser(tree, sink)

	attrs := map[string]schema.Scalar{
		"record_name":   {Value: "temps"},
		"record_fields": {Value: []schema.Scalar{{Value: "stage.temperature"}}},
	}
	_, ud, ok := p.ParseBlock(attrs, fiberexpr.NewStack())
	require.True(t, ok)

	us := ud.State.(*UnitState)
	factory := us.Factory()

	var events []state.Event
	var mu sync.Mutex
	inst := factory(func(ev state.Event) {
		mu.Lock()
		events = append(events, ev)
		mu.Unlock()
	}, fiberexpr.NewStack(), nil, nil)

	_, err := inst.Apply(false)
	require.NoError(t, err)

	n.Update(12.5, true)

	require.Eventually(t, func() bool {
		return sink.count() >= 1
	}, time.Second, 5*time.Millisecond)

	_, err = inst.Suspend(context.Background())
	require.NoError(t, err)
	require.NoError(t, inst.Close(context.Background()))
}

var _ fiber.UnitState = (*UnitState)(nil)
