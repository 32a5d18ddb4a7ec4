package metadata

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dekarrin/fiberhost/internal/schema"
)

func TestParser_EnterProtocolCapturesDescription(t *testing.T) {
	p := NewParser()
	_, envs := p.EnterProtocol(map[string]schema.Scalar{
		"description": {Value: "a test protocol"},
	}, nil, nil)

	assert.Equal(t, "a test protocol", p.Description)
	assert.Empty(t, envs)
}

func TestParser_ParseBlockContributesNothing(t *testing.T) {
	p := NewParser()
	analysis, ud, ok := p.ParseBlock(nil, nil)
	require.True(t, ok)
	assert.Empty(t, analysis.Errors)
	assert.Nil(t, ud.State)
	assert.Empty(t, ud.Transforms)
}
