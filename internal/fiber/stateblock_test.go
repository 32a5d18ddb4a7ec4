package fiber

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dekarrin/fiberhost/internal/claim"
	"github.com/dekarrin/fiberhost/internal/fiberexpr"
	"github.com/dekarrin/fiberhost/internal/reader"
	"github.com/dekarrin/fiberhost/internal/runtime"
	"github.com/dekarrin/fiberhost/internal/state"
)

// factoryUnitState is a minimal UnitState whose only job is to hand back
// a fixed state.Factory, modeling how a real namespace (devices, record)
// builds a factory bound to its own per-block configuration value.
type factoryUnitState struct {
	f state.Factory
}

func (s factoryUnitState) Or(other UnitState) UnitState {
	if other == nil {
		return s
	}
	return other
}

func (s factoryUnitState) And(other UnitState) (UnitState, UnitState) { return s, other }

func (s factoryUnitState) Export() interface{} { return nil }

func (s factoryUnitState) Factory() state.Factory { return s.f }

func TestStateParser_WrapsRemainingTransformsInStateBlock(t *testing.T) {
	sp := NewStateParser()

	_, unitData, ok := sp.ParseBlock(nil, nil)
	require.True(t, ok)
	require.Len(t, unitData.Transforms, 1)

	_, block, ok := unitData.Transforms[0].Execute(BlockState{}, []Transform{leafTransform{}}, reader.Range{})
	require.True(t, ok)

	sb, ok := block.(*StateBlock)
	require.True(t, ok)
	assert.Equal(t, sb.Child, sb.StateChild())

	var _ runtime.StateBlock = sb
}

func TestStateParser_DerivesFactoriesFromBlockState(t *testing.T) {
	sp := NewStateParser()

	_, unitData, ok := sp.ParseBlock(nil, nil)
	require.True(t, ok)
	require.Len(t, unitData.Transforms, 1)

	var built string
	factory := state.Factory(func(notify func(state.Event), stack fiberexpr.Stack, envOrder []*fiberexpr.Env, symbol *claim.Symbol) state.Instance {
		built = "devices"
		return nil
	})

	blockState := BlockState{
		"devices": factoryUnitState{f: factory},
		"record":  factoryUnitState{f: nil},
		"timer":   nil,
	}

	_, block, ok := unitData.Transforms[0].Execute(blockState, []Transform{leafTransform{}}, reader.Range{})
	require.True(t, ok)

	sb, ok := block.(*StateBlock)
	require.True(t, ok)
	require.Contains(t, sb.Factories, "devices")
	assert.NotContains(t, sb.Factories, "record")
	assert.NotContains(t, sb.Factories, "timer")

	sb.Factories["devices"](nil, nil, nil, nil)
	assert.Equal(t, "devices", built)
}

func TestFiberParser_SortsStateParserOutermost(t *testing.T) {
	fp, err := NewFiberParser([]Parser{timerParser{}, NewStateParser()})
	require.NoError(t, err)

	require.Len(t, fp.parsers, 2)
	assert.Equal(t, "state", fp.parsers[0].Namespace())
	assert.Equal(t, "timer", fp.parsers[1].Namespace())
}
