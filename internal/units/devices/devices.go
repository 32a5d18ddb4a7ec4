// Package devices implements the "devices" namespace: the claim-bearing,
// prepare/apply/suspend lifecycle unit that owns node reservations for
// a block, driving the claim system and state-instance lifecycle. No
// concrete parser.py/runner.py ships for this unit in the source pack
// (pr1_devices/__init__.py only references modules that were never
// vendored), so the instance lifecycle here is grounded directly on
// units/core/src/pr1_state/parser.py's StateParser/StateTransform shape
// and on internal/node and internal/claim, which already model the
// resource tree and reservation arbitration this unit drives.
package devices

import (
	"context"
	"strings"

	"github.com/dekarrin/fiberhost/internal/claim"
	"github.com/dekarrin/fiberhost/internal/diag"
	"github.com/dekarrin/fiberhost/internal/fiber"
	"github.com/dekarrin/fiberhost/internal/fiberexpr"
	"github.com/dekarrin/fiberhost/internal/hosterr"
	"github.com/dekarrin/fiberhost/internal/node"
	"github.com/dekarrin/fiberhost/internal/schema"
	"github.com/dekarrin/fiberhost/internal/state"
)

// Parser contributes the "devices" segment attribute: a mapping of
// dotted node paths to the quantity each should be driven to while the
// enclosing block is applied.
type Parser struct {
	Tree     node.Tree
	Registry *claim.Registry
}

// NewParser builds a devices parser against tree, resolving every
// configured node path at compile time, and registry, which arbitrates
// claims among every running program sharing these nodes.
func NewParser(tree node.Tree, registry *claim.Registry) *Parser {
	return &Parser{Tree: tree, Registry: registry}
}

func (*Parser) Namespace() string { return "devices" }
func (*Parser) Priority() int     { return 0 }

func (*Parser) RootAttributes() map[string]schema.Attribute { return nil }

func (*Parser) SegmentAttributes() map[string]schema.Attribute {
	return map[string]schema.Attribute{
		"devices": {
			Label:       "Devices",
			Description: "Node paths, dot-separated, mapped to the quantity to drive them to.",
			Type:        schema.DictType{Value: schema.ExprType{Literal: schema.QuantityType{}}},
		},
	}
}

func (*Parser) EnterProtocol(attrs map[string]schema.Scalar, adoptionEnvs, runtimeEnvs []*fiberexpr.Env) (diag.Analysis, []*fiberexpr.Env) {
	return diag.Analysis{}, nil
}

func (*Parser) PrepareBlock(attrs map[string]schema.Scalar, adoptionEnvs, runtimeEnvs []*fiberexpr.Env) (diag.Analysis, map[string]schema.Scalar, []*fiberexpr.Env) {
	return diag.Analysis{}, attrs, nil
}

// ParseBlock resolves every configured path against the node tree
// immediately, the Go analogue of "a record-state block observing a
// non-existent node path produces MissingNodeError at compile time"
// (spec scenario 6): a missing path is a compile failure here, not a
// deferred runtime error.
func (p *Parser) ParseBlock(attrs map[string]schema.Scalar, adoptionStack fiberexpr.Stack) (diag.Analysis, *fiber.BlockUnitData, bool) {
	devicesAttr, present := attrs["devices"]
	if !present || devicesAttr.IsEllipsis() {
		return diag.Analysis{}, &fiber.BlockUnitData{}, true
	}

	targets, ok := devicesAttr.Value.(map[string]schema.Scalar)
	if !ok {
		return diag.Analysis{}.AddErrors(hosterr.At(hosterr.Schematic, devicesAttr.Rng, "devices must be a mapping of node path to quantity")), nil, false
	}

	var analysis diag.Analysis
	resolved := make(map[string]resolvedTarget, len(targets))
	for pathStr, scalar := range targets {
		path := strings.Split(pathStr, ".")
		n, err := node.Resolve(p.Tree, path)
		if err != nil {
			analysis = analysis.Merge(diag.Analysis{}.AddErrors(hosterr.Wrap(hosterr.Semantic, "at "+pathStr, err)))
			continue
		}
		w, writable := n.(node.Writable)
		if !writable {
			analysis = analysis.Merge(diag.Analysis{}.AddErrors(hosterr.Atf(hosterr.Semantic, scalar.Rng, "node %q is not writable", pathStr)))
			continue
		}
		q, ok := scalar.Value.(fiberexpr.Quantity)
		if !ok {
			analysis = analysis.Merge(diag.Analysis{}.AddErrors(hosterr.At(hosterr.Schematic, scalar.Rng, "device target must be a quantity")))
			continue
		}
		resolved[pathStr] = resolvedTarget{node: w, path: path, target: q}
	}
	if !analysis.Valid() {
		return analysis, nil, false
	}

	return analysis, &fiber.BlockUnitData{
		State: &UnitState{registry: p.Registry, targets: resolved},
	}, true
}

type resolvedTarget struct {
	node   node.Writable
	path   []string
	target fiberexpr.Quantity
}

// UnitState is this block's resolved device configuration: the set of
// writable nodes it drives and the quantity it drives each to while
// applied. Nested blocks replace the whole configuration rather than
// merging target-by-target, matching the original's plain per-namespace
// replace semantics for devices.
type UnitState struct {
	registry *claim.Registry
	targets  map[string]resolvedTarget
}

func (s *UnitState) Or(other fiber.UnitState) fiber.UnitState {
	if other == nil {
		return s
	}
	return other
}

func (s *UnitState) And(other fiber.UnitState) (fiber.UnitState, fiber.UnitState) {
	return s, other
}

func (s *UnitState) Export() interface{} {
	out := make(map[string]interface{}, len(s.targets))
	for path, t := range s.targets {
		out[path] = map[string]interface{}{"magnitude": t.target.Magnitude, "unit": t.target.Unit}
	}
	return out
}

// Factory builds the state.Instance that claims and drives this block's
// configured nodes, bound to this UnitState's own resolved targets —
// the reason UnitState needs to produce its own Factory rather than the
// host wiring one process-wide devices factory ahead of time.
func (s *UnitState) Factory() state.Factory {
	return func(notify func(state.Event), stack fiberexpr.Stack, envOrder []*fiberexpr.Env, symbol *claim.Symbol) state.Instance {
		return &instance{state: s, symbol: symbol, notify: notify}
	}
}

// instance is the running state-instance for one devices block: while
// applied it holds an exclusive claim on every configured node and has
// driven each to its target quantity.
type instance struct {
	state  *UnitState
	symbol *claim.Symbol
	notify func(state.Event)

	claims  map[string]*claim.Claim
	applied bool
}

func (i *instance) Prepare(resume bool) diag.Analysis {
	return diag.Analysis{}
}

func (i *instance) Apply(resume bool) (state.Record, error) {
	i.claims = make(map[string]*claim.Claim, len(i.state.targets))
	for path, t := range i.state.targets {
		c := i.state.registry.Claim(path, i.symbol)
		i.claims[path] = c
		<-c.Granted()
		if err := t.node.Write(context.Background(), node.Value{Numeric: t.target.Magnitude, Unit: t.target.Unit}); err != nil {
			return state.Record{}, hosterr.Wrap(hosterr.Runtime, "writing "+path, err)
		}
	}
	i.applied = true
	return state.Record{Location: i.location()}, nil
}

func (i *instance) Applied() bool { return i.applied }

func (i *instance) Suspend(ctx context.Context) (state.Record, error) {
	for _, c := range i.claims {
		c.Release()
	}
	i.applied = false
	return state.Record{Location: i.location()}, nil
}

func (i *instance) Close(ctx context.Context) error {
	return nil
}

func (i *instance) location() location {
	loc := make(location, len(i.state.targets))
	for path, t := range i.state.targets {
		loc[path] = t.node.Value()
	}
	return loc
}

// location reports each configured node's current reading.
type location map[string]node.Value

func (l location) Export() interface{} {
	out := make(map[string]interface{}, len(l))
	for path, v := range l {
		out[path] = map[string]interface{}{"numeric": v.Numeric, "unit": v.Unit, "settled": v.Settled}
	}
	return out
}
