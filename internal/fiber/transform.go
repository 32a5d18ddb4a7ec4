package fiber

import (
	"github.com/dekarrin/fiberhost/internal/diag"
	"github.com/dekarrin/fiberhost/internal/fiberexpr"
	"github.com/dekarrin/fiberhost/internal/reader"
	"github.com/dekarrin/fiberhost/internal/runtime"
)

// Transform is one step in a block's transform chain: a parser that
// contributed state to a block may also contribute a Transform that
// wraps (or replaces) the eventual child block, the way the state
// namespace's StateTransform wraps whatever block its children resolve
// to (original_source parser.py's BaseTransform).
type Transform interface {
	Execute(state BlockState, rest []Transform, originRange reader.Range) (diag.Analysis, runtime.Block, bool)
}

// Execute threads state and the remaining transforms together,
// resolving the leaf process if any transform remains, or failing with
// MissingProcessError otherwise (original_source parser.py's
// FiberParser.execute).
func Execute(state BlockState, transforms []Transform, originRange reader.Range) (diag.Analysis, runtime.Block, bool) {
	if len(transforms) == 0 {
		return diag.Analysis{Errors: []error{&MissingProcessError{Range: originRange}}}, nil, false
	}
	return transforms[0].Execute(state, transforms[1:], originRange)
}

// BlockData is what a fully parsed block carries forward: its merged
// per-namespace state and the transform chain still to execute.
type BlockData struct {
	State      BlockState
	Transforms []Transform
}

// BlockUnitData is what a single namespace parser contributes to a
// block: its own unit state, any Transforms it wants applied, and any
// evaluation environments it introduces for attributes parsed
// afterwards (original_source parser.py's BlockUnitData).
type BlockUnitData struct {
	Envs       []*fiberexpr.Env
	State      UnitState
	Transforms []Transform
}
