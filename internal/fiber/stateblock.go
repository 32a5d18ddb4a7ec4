package fiber

import (
	"github.com/dekarrin/fiberhost/internal/diag"
	"github.com/dekarrin/fiberhost/internal/fiberexpr"
	"github.com/dekarrin/fiberhost/internal/reader"
	"github.com/dekarrin/fiberhost/internal/runtime"
	"github.com/dekarrin/fiberhost/internal/schema"
	"github.com/dekarrin/fiberhost/internal/state"
)

// StateBlock wraps Child with one state.Instance per registered
// namespace factory, bridging the compiled block tree into the
// runtime's prepare/apply/suspend state machine, grounded on
// pr1_state/parser.py's StateBlock dataclass.
type StateBlock struct {
	Child     runtime.Block
	Factories map[string]state.Factory
}

func (b *StateBlock) NewProgram(master runtime.Master, parent runtime.Program) runtime.Program {
	return runtime.NewStateProgram(b, master, parent)
}

func (b *StateBlock) StateChild() runtime.Block { return b.Child }

func (b *StateBlock) StateFactories() map[string]state.Factory { return b.Factories }

// Export implements runtime.Exporter.
func (b *StateBlock) Export() map[string]interface{} {
	namespaces := make([]string, 0, len(b.Factories))
	for ns := range b.Factories {
		namespaces = append(namespaces, ns)
	}
	return map[string]interface{}{
		"namespace":  "state",
		"namespaces": namespaces,
		"child":      exportChild(b.Child),
	}
}

// StateParser is the always-registered "state" namespace parser. Its
// priority (1000) is the highest in the corpus, which keeps its
// Transform outermost and lets it wrap every other namespace's
// contribution in a StateBlock (pr1_state/parser.py's StateParser,
// namespace="state", priority=1000).
//
// Unlike a process-wide factory registry, each namespace's own
// UnitState builds its own state.Factory (see UnitState.Factory), the
// way the original's master.create_instance dispatches per-namespace to
// each Runner's create_instance using that namespace's own state value
// as its argument. StateParser itself carries no factories of its own.
type StateParser struct{}

// NewStateParser builds the always-registered "state" namespace parser.
func NewStateParser() *StateParser {
	return &StateParser{}
}

func (p *StateParser) Namespace() string { return "state" }
func (p *StateParser) Priority() int     { return 1000 }

func (p *StateParser) RootAttributes() map[string]schema.Attribute    { return nil }
func (p *StateParser) SegmentAttributes() map[string]schema.Attribute { return nil }

func (p *StateParser) EnterProtocol(attrs map[string]schema.Scalar, adoptionEnvs, runtimeEnvs []*fiberexpr.Env) (diag.Analysis, []*fiberexpr.Env) {
	return diag.Analysis{}, nil
}

func (p *StateParser) PrepareBlock(attrs map[string]schema.Scalar, adoptionEnvs, runtimeEnvs []*fiberexpr.Env) (diag.Analysis, map[string]schema.Scalar, []*fiberexpr.Env) {
	return diag.Analysis{}, nil, nil
}

func (p *StateParser) ParseBlock(attrs map[string]schema.Scalar, adoptionStack fiberexpr.Stack) (diag.Analysis, *BlockUnitData, bool) {
	return diag.Analysis{}, &BlockUnitData{Transforms: []Transform{&stateTransform{}}}, true
}

// stateTransform executes the remaining transform chain first (spec
// §4.1's "transform i calls the tail i+1..n"), then wraps whatever block
// results in a StateBlock, deriving one state.Factory per namespace that
// has something to contribute for this block from that namespace's own
// UnitState (pr1_state/parser.py's StateTransform.execute).
type stateTransform struct{}

func (t *stateTransform) Execute(blockState BlockState, rest []Transform, originRange reader.Range) (diag.Analysis, runtime.Block, bool) {
	analysis, child, ok := Execute(blockState, rest, originRange)
	if !ok {
		return analysis, nil, false
	}

	factories := make(map[string]state.Factory, len(blockState))
	for ns, unitState := range blockState {
		if unitState == nil {
			continue
		}
		if factory := unitState.Factory(); factory != nil {
			factories[ns] = factory
		}
	}

	return analysis, &StateBlock{Child: child, Factories: factories}, true
}
