package shorthand

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dekarrin/fiberhost/internal/reader"
	"github.com/dekarrin/fiberhost/internal/schema"
)

func TestParser_EnterProtocolCapturesShorthandBodies(t *testing.T) {
	_, root, errs, _ := reader.Load("t", "name: Demo\nshorthands:\n  foo:\n    activate: no\nsteps: {}\n")
	require.Empty(t, errs)

	dict := root.(*reader.Dict)
	shorthandsNode, _ := dict.Get("shorthands")

	analyzed, scalar := (schema.DictType{Value: schema.AnyType{}}).Analyze(shorthandsNode, schema.Context{})
	require.Empty(t, analyzed.Errors)

	p := NewParser()
	_, _ = p.EnterProtocol(map[string]schema.Scalar{"shorthands": scalar}, nil, nil)

	body, ok := p.Shorthand("foo")
	require.True(t, ok)
	activateVal, ok := body.Get("activate")
	require.True(t, ok)
	assert.Equal(t, "no", activateVal.(*reader.String).Raw)
}

func TestParser_EnterProtocolIgnoresMissingShorthandsAttribute(t *testing.T) {
	p := NewParser()
	_, _ = p.EnterProtocol(map[string]schema.Scalar{"shorthands": schema.Ellipsis}, nil, nil)

	_, ok := p.Shorthand("anything")
	assert.False(t, ok)
}

func TestParser_UnknownNameHasNoShorthand(t *testing.T) {
	p := NewParser()
	_, ok := p.Shorthand("nope")
	assert.False(t, ok)
}
