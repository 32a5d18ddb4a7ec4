// Package fiber implements the protocol document compiler: schema
// composition across namespace parsers, the prepare/parse/execute
// pipeline, and the BlockState override-merge algebra every namespace's
// per-block configuration participates in.
package fiber

import "github.com/dekarrin/fiberhost/internal/state"

// UnitState is one namespace's per-block configuration contribution. Or
// and And are the two ways two sibling or nested blocks' states combine;
// a namespace only needs to override the defaults below when plain
// replace-on-merge isn't the right behavior for its configuration shape
// (original_source host/pr1/fiber/parser.py's BlockUnitState).
type UnitState interface {
	// Or merges other over s: the rightmost (other) value wins unless
	// the concrete type defines a real merge.
	Or(other UnitState) UnitState

	// And splits s against other for a branching block, returning the
	// half each branch keeps. The default behavior passes both sides
	// through unchanged.
	And(other UnitState) (UnitState, UnitState)

	Export() interface{}

	// Factory returns the state.Factory that builds this namespace's
	// state.Instance for the block this UnitState is attached to, or nil
	// if this namespace has nothing to prepare/apply/suspend here (the
	// way the original's master.create_instance dispatches per-namespace
	// to each Runner's create_instance using that namespace's own state
	// value as its argument, rather than a single process-wide factory).
	Factory() state.Factory
}

// BlockState is the full per-namespace configuration attached to a
// block, keyed by namespace. A nil entry means the namespace has no
// opinion for this block.
type BlockState map[string]UnitState

// Or computes self | other: for every namespace, other's value wins over
// self's whenever both are set (original_source parser.py's
// BlockState.__or__/__ror__, "state | child.state" in the state-wrapped
// transform — the child's narrower configuration takes precedence over
// the block it's nested within).
func (s BlockState) Or(other BlockState) BlockState {
	if other == nil {
		return s
	}
	result := make(BlockState, len(other))
	for ns, otherValue := range other {
		selfValue := s[ns]
		switch {
		case otherValue == nil:
			result[ns] = selfValue
		case selfValue == nil:
			result[ns] = otherValue
		default:
			result[ns] = selfValue.Or(otherValue)
		}
	}
	for ns, selfValue := range s {
		if _, ok := other[ns]; !ok {
			result[ns] = selfValue
		}
	}
	return result
}

// And splits s against other across every namespace for a branching
// block (original_source parser.py's BlockState.__and__). Unlike the
// original, a nil UnitState on either side is handled explicitly instead
// of raising, since Go has no implicit None-arithmetic fallback to lean
// on (see DESIGN.md).
func (s BlockState) And(other BlockState) (BlockState, BlockState) {
	left := make(BlockState, len(s))
	right := make(BlockState, len(s))

	namespaces := make(map[string]struct{}, len(s)+len(other))
	for ns := range s {
		namespaces[ns] = struct{}{}
	}
	for ns := range other {
		namespaces[ns] = struct{}{}
	}

	for ns := range namespaces {
		sv, ov := s[ns], other[ns]
		switch {
		case sv == nil && ov == nil:
			left[ns], right[ns] = nil, nil
		case sv == nil:
			left[ns], right[ns] = nil, ov
		case ov == nil:
			left[ns], right[ns] = sv, nil
		default:
			left[ns], right[ns] = sv.And(ov)
		}
	}
	return left, right
}

// Export renders every set namespace's state, omitting nil entries
// (original_source parser.py's BlockState.export).
func (s BlockState) Export() map[string]interface{} {
	out := make(map[string]interface{}, len(s))
	for ns, v := range s {
		if v != nil {
			out[ns] = v.Export()
		}
	}
	return out
}
