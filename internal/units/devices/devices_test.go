package devices

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dekarrin/fiberhost/internal/claim"
	"github.com/dekarrin/fiberhost/internal/fiber"
	"github.com/dekarrin/fiberhost/internal/fiberexpr"
	"github.com/dekarrin/fiberhost/internal/node"
	"github.com/dekarrin/fiberhost/internal/schema"
	"github.com/dekarrin/fiberhost/internal/state"
)

func setupTree(t *testing.T) (*node.InMemoryTree, *node.NumericNode) {
	t.Helper()
	tree := node.NewInMemoryTree()
	n := node.NewNumericNode([]string{"stage", "temperature"}, "degC", 1)
	n.SetWriter(func(ctx context.Context, q fiberexpr.Quantity) error {
		n.Update(q.Magnitude, true)
		return nil
	})
	tree.Register(n)
	return tree, n
}

func TestParser_ParseBlockResolvesConfiguredNode(t *testing.T) {
	tree, _ := setupTree(t)
	p := NewParser(tree, claim.NewRegistry())

	attrs := map[string]schema.Scalar{
		"devices": {Value: map[string]schema.Scalar{
			"stage.temperature": {Value: fiberexpr.Quantity{Magnitude: 37, Unit: "degC"}},
		}},
	}

	analysis, ud, ok := p.ParseBlock(attrs, fiberexpr.NewStack())
	require.True(t, ok)
	assert.Empty(t, analysis.Errors)
	require.NotNil(t, ud.State)

	us, ok := ud.State.(*UnitState)
	require.True(t, ok)
	require.Contains(t, us.targets, "stage.temperature")
}

func TestParser_ParseBlockFailsOnMissingNodePath(t *testing.T) {
	tree, _ := setupTree(t)
	p := NewParser(tree, claim.NewRegistry())

	attrs := map[string]schema.Scalar{
		"devices": {Value: map[string]schema.Scalar{
			"stage.nonexistent": {Value: fiberexpr.Quantity{Magnitude: 1, Unit: "degC"}},
		}},
	}

	analysis, _, ok := p.ParseBlock(attrs, fiberexpr.NewStack())
	assert.False(t, ok)
	assert.NotEmpty(t, analysis.Errors)
}

func TestParser_ParseBlockAllowsOmittedDevices(t *testing.T) {
	tree, _ := setupTree(t)
	p := NewParser(tree, claim.NewRegistry())

	_, ud, ok := p.ParseBlock(map[string]schema.Scalar{"devices": schema.Ellipsis}, fiberexpr.NewStack())
	require.True(t, ok)
	assert.Nil(t, ud.State)
}

func TestUnitState_FactoryAppliesAndSuspendsClaim(t *testing.T) {
	tree, n := setupTree(t)
	registry := claim.NewRegistry()
	p := NewParser(tree, registry)

	attrs := map[string]schema.Scalar{
		"devices": {Value: map[string]schema.Scalar{
			"stage.temperature": {Value: fiberexpr.Quantity{Magnitude: 42, Unit: "degC"}},
		}},
	}
	_, ud, ok := p.ParseBlock(attrs, fiberexpr.NewStack())
	require.True(t, ok)

	us := ud.State.(*UnitState)
	factory := us.Factory()
	require.NotNil(t, factory)

	arena := claim.NewArena()
	sym := arena.Root().Derive()

	var events []state.Event
	inst := factory(func(ev state.Event) { events = append(events, ev) }, fiberexpr.NewStack(), nil, sym)

	rec, err := inst.Apply(false)
	require.NoError(t, err)
	require.NotNil(t, rec.Location)
	assert.True(t, inst.Applied())
	assert.Equal(t, 42.0, n.Value().Numeric)

	_, err = inst.Suspend(context.Background())
	require.NoError(t, err)
	assert.False(t, inst.Applied())

	require.NoError(t, inst.Close(context.Background()))
}

var _ fiber.UnitState = (*UnitState)(nil)
