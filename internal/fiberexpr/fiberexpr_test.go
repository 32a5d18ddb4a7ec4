package fiberexpr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dekarrin/fiberhost/internal/reader"
)

func mustString(raw string) *reader.String {
	src := reader.NewSource("t", raw)
	return &reader.String{Raw: raw, Rng: reader.FullSource(src)}
}

func TestParse_StaticArithmetic(t *testing.T) {
	expr, err := Parse(mustString("${{ 1 + 2 * 3 }}"))
	require.NoError(t, err)
	require.NotNil(t, expr)
	assert.Equal(t, Static, expr.Kind)

	v, err := expr.EvaluateStatic(nil)
	require.NoError(t, err)
	assert.Equal(t, int64(7), v.Int())
}

func TestParse_QuantityLiteralAndDimensionalityError(t *testing.T) {
	expr, err := Parse(mustString("${{ 30 sec + 2 min }}"))
	require.NoError(t, err)
	v, err := expr.EvaluateStatic(nil)
	require.NoError(t, err)
	assert.Equal(t, KindQuantity, v.Kind())
	assert.InDelta(t, 150, v.Quantity().Magnitude, 1e-9)

	bad, err := Parse(mustString("${{ 30 sec + 2 mL }}"))
	require.NoError(t, err)
	_, err = bad.EvaluateStatic(nil)
	assert.Error(t, err)
}

func TestEvaluate_FieldAgainstStack(t *testing.T) {
	expr, err := Parse(mustString("{{ speed }}"))
	require.NoError(t, err)
	assert.Equal(t, Field, expr.Kind)

	env := NewEnv("segment")
	stack := NewStack().With(env, StackEntry{Vars: map[string]Value{"speed": Int(5)}})

	v, err := expr.Evaluate(stack, []*Env{env})
	require.NoError(t, err)
	assert.Equal(t, int64(5), v.Int())
}

func TestEvaluate_UndefinedNameIsEvaluationError(t *testing.T) {
	expr, err := Parse(mustString("%{{ missing }}"))
	require.NoError(t, err)

	_, err = expr.Evaluate(NewStack(), nil)
	assert.Error(t, err)
}

func TestEvaluateBinding_DottedPath(t *testing.T) {
	expr, err := Parse(mustString("@{{ devices.pump1.power }}"))
	require.NoError(t, err)
	require.Equal(t, Binding, expr.Kind)

	path, err := expr.EvaluateBinding()
	require.NoError(t, err)
	assert.Equal(t, []string{"devices", "pump1", "power"}, path)
}

func TestParseMixed_InterleavesLiteralAndExpressions(t *testing.T) {
	parts, err := ParseMixed(mustString("set to {{ x }} now"))
	require.NoError(t, err)
	require.Len(t, parts, 3)

	lit, ok := parts[0].(*reader.String)
	require.True(t, ok)
	assert.Equal(t, "set to ", lit.Raw)

	_, ok = parts[1].(*Expr)
	require.True(t, ok)

	lit2, ok := parts[2].(*reader.String)
	require.True(t, ok)
	assert.Equal(t, " now", lit2.Raw)
}

func TestParse_EscapedClosingBraces(t *testing.T) {
	expr, err := Parse(mustString(`${{ "a\}\}b" }}`))
	require.NoError(t, err)
	v, err := expr.EvaluateStatic(nil)
	require.NoError(t, err)
	assert.Equal(t, "a}}b", v.Str())
}

func TestParse_NotAnExpressionReturnsNil(t *testing.T) {
	expr, err := Parse(mustString("just text"))
	require.NoError(t, err)
	assert.Nil(t, expr)
}
