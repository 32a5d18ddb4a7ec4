package timer

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dekarrin/fiberhost/internal/fiber"
	"github.com/dekarrin/fiberhost/internal/fiberexpr"
	"github.com/dekarrin/fiberhost/internal/reader"
	"github.com/dekarrin/fiberhost/internal/schema"
)

func TestParser_ParseBlockBuildsWaitTransform(t *testing.T) {
	p := NewParser()
	q := fiberexpr.Quantity{Magnitude: 10, Unit: "ms"}

	attrs := map[string]schema.Scalar{"wait": {Value: q}}
	analysis, ud, ok := p.ParseBlock(attrs, fiberexpr.NewStack())
	require.True(t, ok)
	assert.Empty(t, analysis.Errors)
	require.Len(t, ud.Transforms, 1)

	_, block, ok2 := ud.Transforms[0].Execute(fiber.BlockState{}, nil, reader.Range{})
	require.True(t, ok2)
	waitBlock, ok3 := block.(*Block)
	require.True(t, ok3)
	assert.Equal(t, q, waitBlock.Duration)
}

func TestParser_ParseBlockAllowsOmittedWait(t *testing.T) {
	p := NewParser()
	_, ud, ok := p.ParseBlock(map[string]schema.Scalar{"wait": schema.Ellipsis}, fiberexpr.NewStack())
	require.True(t, ok)
	assert.Empty(t, ud.Transforms)
}

func TestBlock_ProgramTerminatesAfterDuration(t *testing.T) {
	b := &Block{Duration: fiberexpr.Quantity{Magnitude: 1, Unit: "ms"}}
	prog := b.NewProgram(nil, nil)

	events := prog.Run(context.Background(), nil, nil, fiberexpr.NewStack(), nil)

	select {
	case ev, ok := <-events:
		require.True(t, ok)
		assert.True(t, ev.Terminated)
	case <-time.After(time.Second):
		t.Fatal("timer program did not terminate")
	}
}
