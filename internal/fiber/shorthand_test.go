package fiber

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dekarrin/fiberhost/internal/fiberexpr"
	"github.com/dekarrin/fiberhost/internal/reader"
)

// fakeShorthandSource is a minimal ShorthandSource stand-in, sufficient
// to exercise FiberParser.expandShorthand without pulling in the real
// internal/units/shorthand package (which would need its own
// EnterProtocol pass wired through Compile's root-attribute flow).
type fakeShorthandSource map[string]*reader.Dict

func (s fakeShorthandSource) Shorthand(name string) (*reader.Dict, bool) {
	d, ok := s[name]
	return d, ok
}

func TestFiberParser_ExpandsShorthandToMatchDirectAttributes(t *testing.T) {
	_, shorthandBody, errs, _ := reader.Load("sh", "wait: 30 sec\n")
	require.Empty(t, errs)

	fp, err := NewFiberParser([]Parser{timerParser{}})
	require.NoError(t, err)
	fp.SetShorthandSource(fakeShorthandSource{"foo": shorthandBody.(*reader.Dict)})

	_, root, errs, _ := reader.Load("t", "name: Demo\nsteps:\n  foo: {}\n")
	require.Empty(t, errs)

	globalEnv := fiberexpr.NewEnv("global")
	result := fp.Compile(root, root.Range(), globalEnv)
	require.True(t, result.Valid, result.Analysis.Errors)

	_, directRoot, errs, _ := reader.Load("t2", "name: Demo\nsteps:\n  wait: 30 sec\n")
	require.Empty(t, errs)
	directResult := fp.Compile(directRoot, directRoot.Range(), globalEnv)
	require.True(t, directResult.Valid, directResult.Analysis.Errors)

	leaf, ok := result.Root.(fakeLeafRuntimeBlock)
	require.True(t, ok)
	directLeaf, ok := directResult.Root.(fakeLeafRuntimeBlock)
	require.True(t, ok)
	assert.Equal(t, directLeaf.wait, leaf.wait)
	assert.Equal(t, 30.0, leaf.wait.Magnitude)
	assert.Equal(t, "sec", leaf.wait.Unit)
}

func TestFiberParser_UnknownShorthandIsSemanticError(t *testing.T) {
	fp, err := NewFiberParser([]Parser{timerParser{}})
	require.NoError(t, err)
	fp.SetShorthandSource(fakeShorthandSource{})

	_, root, errs, _ := reader.Load("t", "name: Demo\nsteps:\n  bogus: {}\n")
	require.Empty(t, errs)

	globalEnv := fiberexpr.NewEnv("global")
	result := fp.Compile(root, root.Range(), globalEnv)
	require.False(t, result.Valid)

	var unknown *UnknownShorthandError
	require.ErrorAs(t, result.Analysis.Errors[0], &unknown)
	assert.Equal(t, "bogus", unknown.Name)
}
