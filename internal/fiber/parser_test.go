package fiber

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dekarrin/fiberhost/internal/diag"
	"github.com/dekarrin/fiberhost/internal/fiberexpr"
	"github.com/dekarrin/fiberhost/internal/reader"
	"github.com/dekarrin/fiberhost/internal/runtime"
	"github.com/dekarrin/fiberhost/internal/schema"
)

type fakeLeafRuntimeBlock struct{ wait fiberexpr.Quantity }

func (fakeLeafRuntimeBlock) NewProgram(master runtime.Master, parent runtime.Program) runtime.Program {
	return nil
}

type leafTransform struct{ wait fiberexpr.Quantity }

func (t leafTransform) Execute(state BlockState, rest []Transform, originRange reader.Range) (diag.Analysis, runtime.Block, bool) {
	if len(rest) > 0 {
		return Execute(state, rest, originRange)
	}
	return diag.Analysis{}, fakeLeafRuntimeBlock{wait: t.wait}, true
}

// timerParser is a minimal stand-in for the real timer namespace parser,
// exercising a leaf (non-wrapping) segment attribute.
type timerParser struct{}

func (timerParser) Namespace() string { return "timer" }
func (timerParser) Priority() int     { return 0 }

func (timerParser) RootAttributes() map[string]schema.Attribute { return nil }

func (timerParser) EnterProtocol(attrs map[string]schema.Scalar, adoptionEnvs, runtimeEnvs []*fiberexpr.Env) (diag.Analysis, []*fiberexpr.Env) {
	return diag.Analysis{}, nil
}

func (timerParser) SegmentAttributes() map[string]schema.Attribute {
	return map[string]schema.Attribute{
		"wait": {Type: schema.QuantityType{}},
	}
}

func (timerParser) PrepareBlock(attrs map[string]schema.Scalar, adoptionEnvs, runtimeEnvs []*fiberexpr.Env) (diag.Analysis, map[string]schema.Scalar, []*fiberexpr.Env) {
	return diag.Analysis{}, attrs, nil
}

func (timerParser) ParseBlock(attrs map[string]schema.Scalar, adoptionStack fiberexpr.Stack) (diag.Analysis, *BlockUnitData, bool) {
	waitScalar := attrs["wait"]
	if waitScalar.IsEllipsis() {
		return diag.Analysis{}, nil, false
	}
	q, _ := waitScalar.Value.(fiberexpr.Quantity)
	return diag.Analysis{}, &BlockUnitData{Transforms: []Transform{leafTransform{wait: q}}}, true
}

func TestFiberParser_CompilesSimpleTimerSegment(t *testing.T) {
	fp, err := NewFiberParser([]Parser{timerParser{}})
	require.NoError(t, err)

	_, root, errs, _ := reader.Load("t", "name: Demo\nsteps:\n  wait: 30 sec\n")
	require.Empty(t, errs)

	globalEnv := fiberexpr.NewEnv("global")
	result := fp.Compile(root, root.Range(), globalEnv)

	require.True(t, result.Valid, result.Analysis.Errors)
	leaf, ok := result.Root.(fakeLeafRuntimeBlock)
	require.True(t, ok)
	assert.Equal(t, 30.0, leaf.wait.Magnitude)
	assert.Equal(t, "sec", leaf.wait.Unit)
}

func TestFiberParser_MissingProcessWhenNoTransforms(t *testing.T) {
	fp, err := NewFiberParser([]Parser{})
	require.NoError(t, err)

	_, root, errs, _ := reader.Load("t", "name: Demo\nsteps: {}\n")
	require.Empty(t, errs)

	globalEnv := fiberexpr.NewEnv("global")
	result := fp.Compile(root, root.Range(), globalEnv)

	require.False(t, result.Valid)
	require.NotEmpty(t, result.Analysis.Errors)

	var missing *MissingProcessError
	require.ErrorAs(t, result.Analysis.Errors[0], &missing)
}
