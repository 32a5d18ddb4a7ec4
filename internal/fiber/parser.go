package fiber

import (
	"sort"

	"github.com/dekarrin/fiberhost/internal/diag"
	"github.com/dekarrin/fiberhost/internal/fiberexpr"
	"github.com/dekarrin/fiberhost/internal/hosterr"
	"github.com/dekarrin/fiberhost/internal/reader"
	"github.com/dekarrin/fiberhost/internal/runtime"
	"github.com/dekarrin/fiberhost/internal/schema"
)

// maxBlockDepth bounds the recursion compileBlock performs while folding
// nested "actions" lists into child blocks, guarded by a fixed maximum
// depth.
const maxBlockDepth = 50

// Parser is implemented by each namespace (metadata, devices, record,
// shorthand, timer, ...) and drives one stage of every block's
// compilation (original_source parser.py's BaseParser).
type Parser interface {
	Namespace() string

	// Priority orders parsers relative to each other: registered in
	// priority order, higher first. A higher-priority parser's Transform
	// ends up wrapping lower-priority ones, which is what keeps the
	// state namespace's priority=1000 outermost.
	Priority() int

	RootAttributes() map[string]schema.Attribute
	SegmentAttributes() map[string]schema.Attribute

	// EnterProtocol runs once per document against this namespace's
	// analyzed root attributes, and may register additional runtime
	// environments visible to every block's PrepareBlock/ParseBlock
	// passes. This is compilation pass 2, "protocol entry".
	EnterProtocol(attrs map[string]schema.Scalar, adoptionEnvs, runtimeEnvs []*fiberexpr.Env) (diag.Analysis, []*fiberexpr.Env)

	// PrepareBlock validates this namespace's already-schema-analyzed
	// attributes against its own constraints (e.g. a referenced node
	// actually exists), and may contribute new evaluation environments
	// visible to every parser's ParseBlock pass.
	PrepareBlock(attrs map[string]schema.Scalar, adoptionEnvs, runtimeEnvs []*fiberexpr.Env) (diag.Analysis, map[string]schema.Scalar, []*fiberexpr.Env)

	// ParseBlock consumes this namespace's fully evaluated attributes
	// and produces its contribution to the block: its UnitState and any
	// Transforms.
	ParseBlock(attrs map[string]schema.Scalar, adoptionStack fiberexpr.Stack) (diag.Analysis, *BlockUnitData, bool)
}

// ShorthandSource resolves a block-level shorthand key to the prepared
// attribute mapping it expands to, populated by the "shorthand"
// namespace parser at protocol-entry time: a dedicated "shorthands"
// parser supports user-defined block macros, pre-parsing each
// shorthand body into a prepared block-attribute mapping up front.
type ShorthandSource interface {
	Shorthand(name string) (*reader.Dict, bool)
}

// FiberParser composes every registered Parser's schema into a root and
// segment CompositeSchema and drives the four-pass compilation pipeline
// (original_source parser.py's FiberParser).
type FiberParser struct {
	parsers       []Parser
	rootSchema    *schema.CompositeSchema
	segmentSchema *schema.CompositeSchema
	shorthands    ShorthandSource
}

// SetShorthandSource wires src as the lookup every compileBlock pass
// consults for segment keys it doesn't otherwise recognize, before
// falling back to an UnknownShorthandError.
func (fp *FiberParser) SetShorthandSource(src ShorthandSource) {
	fp.shorthands = src
}

// NewFiberParser builds the composed schema from parsers, sorted
// descending by Priority (higher first) so a higher-priority parser's
// Transform ends up wrapping lower-priority ones in the resulting
// transform chain.
func NewFiberParser(parsers []Parser) (*FiberParser, error) {
	sorted := append([]Parser(nil), parsers...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Priority() > sorted[j].Priority() })

	fp := &FiberParser{parsers: sorted}

	fp.rootSchema = schema.NewCompositeSchema()
	if err := fp.rootSchema.Add("", map[string]schema.Attribute{
		"name":  {Label: "Protocol name", Description: "The protocol's name.", Type: schema.StrType{}},
		"steps": {Type: schema.AnyType{}, Required: true},
	}); err != nil {
		return nil, err
	}

	fp.segmentSchema = schema.NewCompositeSchema()
	if err := fp.segmentSchema.Add("", map[string]schema.Attribute{
		"actions": {Type: schema.ListType{Item: schema.AnyType{}}},
		"if":      {Type: schema.ExprType{Literal: schema.BoolType{}}},
	}); err != nil {
		return nil, err
	}
	for _, p := range fp.parsers {
		if err := fp.rootSchema.Add(p.Namespace(), p.RootAttributes()); err != nil {
			return nil, err
		}
		if err := fp.segmentSchema.Add(p.Namespace(), p.SegmentAttributes()); err != nil {
			return nil, err
		}
	}

	return fp, nil
}

// CompileResult is the outcome of compiling one protocol document.
type CompileResult struct {
	Analysis  diag.Analysis
	Root      runtime.Block
	RootAttrs map[string]schema.Scalar
	Valid     bool
}

// Compile runs the root analysis, segment analysis, per-namespace
// preparation, per-namespace parsing, and final transform-chain
// execution passes against doc, in that order, short-circuiting after
// the first pass that leaves the running Analysis invalid
// (original_source parser.py's FiberParser.__init__ body, restructured
// as a callable method instead of constructor side effects).
func (fp *FiberParser) Compile(doc reader.Node, docRange reader.Range, globalEnv *fiberexpr.Env) CompileResult {
	var analysis diag.Analysis

	a, rootAttrs := fp.rootSchema.Analyze(doc, schema.Context{})
	analysis = analysis.Merge(a)
	if !analysis.Valid() {
		return CompileResult{Analysis: analysis, RootAttrs: rootAttrs}
	}

	var stepsNode reader.Node
	stepsRange := docRange
	if dict, ok := doc.(*reader.Dict); ok {
		stepsNode, _ = dict.Get("steps")
		if stepsNode != nil {
			stepsRange = stepsNode.Range()
		}
	}

	adoptionEnvs := []*fiberexpr.Env{globalEnv}
	runtimeEnvs := []*fiberexpr.Env{globalEnv}

	for _, p := range fp.parsers {
		nsAttrs := fp.rootSchema.AnalyzeNamespace(rootAttrs, p.Namespace())
		ea, newEnvs := p.EnterProtocol(nsAttrs, adoptionEnvs, runtimeEnvs)
		analysis = analysis.Merge(ea)
		runtimeEnvs = append(runtimeEnvs, newEnvs...)
	}
	if !analysis.Valid() {
		return CompileResult{Analysis: analysis, RootAttrs: rootAttrs}
	}

	ba, block, ok := fp.compileBlock(stepsNode, stepsRange, adoptionEnvs, runtimeEnvs, 0)
	analysis = analysis.Merge(ba)
	if !ok {
		return CompileResult{Analysis: analysis, RootAttrs: rootAttrs}
	}

	return CompileResult{Analysis: analysis, Root: block, RootAttrs: rootAttrs, Valid: true}
}

// compileBlock analyzes one block-level node against the composed
// segment schema and folds it into a Block: an "actions" list becomes a
// SequenceBlock of recursively compiled children, an "if" predicate
// wraps the result in a ConditionBlock, and otherwise every registered
// Parser's PrepareBlock/ParseBlock passes build the leaf — compilation
// passes 3-4, generalized to recurse per nested block value.
func (fp *FiberParser) compileBlock(node reader.Node, nodeRange reader.Range, adoptionEnvs, runtimeEnvs []*fiberexpr.Env, depth int) (diag.Analysis, runtime.Block, bool) {
	var analysis diag.Analysis

	if depth > maxBlockDepth {
		return diag.Analysis{}.AddErrors(hosterr.At(hosterr.Semantic, nodeRange, "maximum recursion depth exceeded")), nil, false
	}

	if fp.shorthands != nil {
		expanded, sa, ok := fp.expandShorthand(node)
		analysis = analysis.Merge(sa)
		if !ok {
			return analysis, nil, false
		}
		node = expanded
	}

	a, segAttrs := fp.segmentSchema.Analyze(node, schema.Context{})
	analysis = analysis.Merge(a)
	if !analysis.Valid() {
		return analysis, nil, false
	}

	var inner runtime.Block

	if actions := segAttrs["actions"]; !actions.IsEllipsis() {
		items, _ := actions.Value.([]schema.Scalar)
		children := make([]runtime.Block, 0, len(items))
		for _, item := range items {
			childNode, _ := item.Value.(reader.Node)
			ca, childBlock, ok := fp.compileBlock(childNode, item.Rng, adoptionEnvs, runtimeEnvs, depth+1)
			analysis = analysis.Merge(ca)
			if !ok {
				return analysis, nil, false
			}
			children = append(children, childBlock)
		}
		inner = &SequenceBlock{Children: children}
	} else {
		la, leaf, ok := fp.compileLeaf(segAttrs, nodeRange, adoptionEnvs, runtimeEnvs)
		analysis = analysis.Merge(la)
		if !ok {
			return analysis, nil, false
		}
		inner = leaf
	}

	if cond := segAttrs["if"]; !cond.IsEllipsis() {
		inner = &ConditionBlock{Predicate: cond.Value, Range: cond.Rng, Child: inner}
	}

	return analysis, inner, true
}

// expandShorthand rewrites node, merging in the prepared attribute
// mapping of every shorthand key it names before any namespace's
// attributes are analyzed: schema-level dictionary merging happens
// before other parsers see them. A segment key that is neither a
// recognized attribute nor a registered shorthand is a semantic
// compile error (unknown shorthand). Keys the segment sets directly
// win over anything a shorthand body contributes under the same name.
func (fp *FiberParser) expandShorthand(node reader.Node) (reader.Node, diag.Analysis, bool) {
	dict, ok := node.(*reader.Dict)
	if !ok {
		return node, diag.Analysis{}, true
	}

	var analysis diag.Analysis
	merged := make(map[string]reader.Node, len(dict.Entries))
	var order []string
	changed := false

	addKey := func(key string, value reader.Node) {
		if _, exists := merged[key]; !exists {
			order = append(order, key)
		}
		merged[key] = value
	}

	for _, key := range dict.Order {
		if fp.segmentSchema.Known(key) {
			continue
		}
		body, found := fp.shorthands.Shorthand(key)
		if !found {
			rng := dict.Rng
			if entry := dict.Entries[key]; entry != nil {
				rng = entry.Range()
			}
			analysis = analysis.AddErrors(&UnknownShorthandError{Name: key, Range: rng})
			continue
		}
		changed = true
		for _, bodyKey := range body.Order {
			addKey(bodyKey, body.Entries[bodyKey])
		}
	}
	if !analysis.Valid() {
		return nil, analysis, false
	}

	for _, key := range dict.Order {
		if fp.segmentSchema.Known(key) {
			addKey(key, dict.Entries[key])
		}
	}

	if !changed {
		return node, analysis, true
	}
	return &reader.Dict{Entries: merged, Order: order, Rng: dict.Rng}, analysis, true
}

// compileLeaf runs every registered Parser's PrepareBlock/ParseBlock
// pass over segAttrs and folds the resulting transform chain into a
// block — compilation passes 3-4.
func (fp *FiberParser) compileLeaf(segAttrs map[string]schema.Scalar, nodeRange reader.Range, adoptionEnvs, runtimeEnvs []*fiberexpr.Env) (diag.Analysis, runtime.Block, bool) {
	var analysis diag.Analysis
	stack := fiberexpr.NewStack()

	preps := make(map[string]map[string]schema.Scalar, len(fp.parsers))
	for _, p := range fp.parsers {
		nsAttrs := fp.segmentSchema.AnalyzeNamespace(segAttrs, p.Namespace())
		pa, prep, newEnvs := p.PrepareBlock(nsAttrs, adoptionEnvs, runtimeEnvs)
		analysis = analysis.Merge(pa)
		preps[p.Namespace()] = prep
		runtimeEnvs = append(runtimeEnvs, newEnvs...)
	}
	if !analysis.Valid() {
		return analysis, nil, false
	}

	blockState := make(BlockState)
	var transforms []Transform

	for _, p := range fp.parsers {
		nsPrep := preps[p.Namespace()]
		evaluated := make(map[string]schema.Scalar, len(nsPrep))
		for name, sc := range nsPrep {
			resolved, err := resolveScalar(sc, stack, runtimeEnvs)
			if err != nil {
				analysis = analysis.AddErrors(err)
				continue
			}
			evaluated[name] = resolved
		}

		ba, unitData, ok := p.ParseBlock(evaluated, stack)
		analysis = analysis.Merge(ba)
		if !ok {
			return analysis, nil, false
		}

		blockState[p.Namespace()] = unitData.State
		transforms = append(transforms, unitData.Transforms...)
		runtimeEnvs = append(runtimeEnvs, unitData.Envs...)
	}

	ea, block, ok := Execute(blockState, transforms, nodeRange)
	analysis = analysis.Merge(ea)
	if !ok {
		return analysis, nil, false
	}

	return analysis, block, true
}

// resolveScalar evaluates sc's deferred expression (if any) against
// stack now that the full namespace-contributed environment order is
// known, mirroring parse_block's attr_prep.evaluate(..., done=True)
// pass.
func resolveScalar(sc schema.Scalar, stack fiberexpr.Stack, envOrder []*fiberexpr.Env) (schema.Scalar, error) {
	if sc.IsEllipsis() {
		return sc, nil
	}
	expr, ok := sc.Value.(*fiberexpr.Expr)
	if !ok {
		return sc, nil
	}
	v, err := expr.Evaluate(stack, envOrder)
	if err != nil {
		return schema.Scalar{}, err
	}
	return schema.Scalar{Value: v.GoValue(), Rng: sc.Rng}, nil
}
