// Package record implements the "record" namespace: a state-wrapped
// unit that watches a set of node paths and appends one row per reading
// to a sink for as long as the enclosing block stays applied. Grounded
// on units/record/src/pr1_record/runner.py's RecordStateInstance, with
// one deliberate adaptation (see DESIGN.md): rows are written
// incrementally to a Sink (the SQLite audit store) rather than
// accumulated in memory and flushed to a single file on Close.
package record

import (
	"context"
	"strings"
	"sync"

	"github.com/dekarrin/fiberhost/internal/claim"
	"github.com/dekarrin/fiberhost/internal/diag"
	"github.com/dekarrin/fiberhost/internal/fiber"
	"github.com/dekarrin/fiberhost/internal/fiberexpr"
	"github.com/dekarrin/fiberhost/internal/hosterr"
	"github.com/dekarrin/fiberhost/internal/node"
	"github.com/dekarrin/fiberhost/internal/schema"
	"github.com/dekarrin/fiberhost/internal/state"
)

// Sink persists one recorded row at a time, keyed by the record name
// configured on the block (the Go stand-in for the original's per-file
// pandas DataFrame writer, adapted to an append-only audit log instead
// of a single flushed file).
type Sink interface {
	WriteRow(ctx context.Context, name string, row map[string]node.Value) error
}

// Parser contributes the "record" segment attribute: a name and the set
// of node paths to watch and append as a row on every change.
type Parser struct {
	Tree node.Tree
	Sink Sink
}

// NewParser builds a record parser watching nodes resolved from tree and
// appending rows to sink.
func NewParser(tree node.Tree, sink Sink) *Parser {
	return &Parser{Tree: tree, Sink: sink}
}

func (*Parser) Namespace() string { return "record" }
func (*Parser) Priority() int     { return 0 }

func (*Parser) RootAttributes() map[string]schema.Attribute { return nil }

func (*Parser) SegmentAttributes() map[string]schema.Attribute {
	return map[string]schema.Attribute{
		"record_name": {
			Label:       "Record name",
			Description: "Label the recorded rows are grouped under in the sink.",
			Type:        schema.StrType{Default: "record", HasDflt: true},
		},
		"record_fields": {
			Label:       "Record fields",
			Description: "Node paths, dot-separated, to log a row for on every change.",
			Type:        schema.ListType{Item: schema.StrType{}},
		},
	}
}

func (*Parser) EnterProtocol(attrs map[string]schema.Scalar, adoptionEnvs, runtimeEnvs []*fiberexpr.Env) (diag.Analysis, []*fiberexpr.Env) {
	return diag.Analysis{}, nil
}

func (*Parser) PrepareBlock(attrs map[string]schema.Scalar, adoptionEnvs, runtimeEnvs []*fiberexpr.Env) (diag.Analysis, map[string]schema.Scalar, []*fiberexpr.Env) {
	return diag.Analysis{}, attrs, nil
}

// ParseBlock resolves "record.fields" against the node tree at compile
// time, the same "missing path fails compilation" rule devices uses
// (spec scenario 6), since record shares the same node-tree collaborator.
func (p *Parser) ParseBlock(attrs map[string]schema.Scalar, adoptionStack fiberexpr.Stack) (diag.Analysis, *fiber.BlockUnitData, bool) {
	fieldsAttr, present := attrs["record_fields"]
	if !present || fieldsAttr.IsEllipsis() {
		return diag.Analysis{}, &fiber.BlockUnitData{}, true
	}

	name := "record"
	if n, ok := attrs["record_name"]; ok && !n.IsEllipsis() {
		if s, ok := n.Value.(string); ok {
			name = s
		}
	}

	fieldScalars, ok := fieldsAttr.Value.([]schema.Scalar)
	if !ok {
		return diag.Analysis{}.AddErrors(hosterr.At(hosterr.Schematic, fieldsAttr.Rng, "record_fields must be a list of node paths")), nil, false
	}

	var analysis diag.Analysis
	fields := make(map[string]node.Node, len(fieldScalars))
	for _, scalar := range fieldScalars {
		pathStr, ok := scalar.Value.(string)
		if !ok {
			analysis = analysis.Merge(diag.Analysis{}.AddErrors(hosterr.At(hosterr.Schematic, scalar.Rng, "record field must be a node path string")))
			continue
		}
		path := strings.Split(pathStr, ".")
		n, err := node.Resolve(p.Tree, path)
		if err != nil {
			analysis = analysis.Merge(diag.Analysis{}.AddErrors(hosterr.Wrap(hosterr.Semantic, "at "+pathStr, err)))
			continue
		}
		fields[pathStr] = n
	}
	if !analysis.Valid() {
		return analysis, nil, false
	}

	return analysis, &fiber.BlockUnitData{
		State: &UnitState{sink: p.Sink, name: name, fields: fields},
	}, true
}

// UnitState is this block's resolved record configuration.
type UnitState struct {
	sink   Sink
	name   string
	fields map[string]node.Node
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
	paths := make([]string, 0, len(s.fields))
	for path := range s.fields {
		paths = append(paths, path)
	}
	return map[string]interface{}{"name": s.name, "fields": paths}
}

// Factory builds the state.Instance that watches this block's resolved
// fields and appends a row to the sink on every change, bound to this
// UnitState's own name and field set.
func (s *UnitState) Factory() state.Factory {
	return func(notify func(state.Event), stack fiberexpr.Stack, envOrder []*fiberexpr.Env, symbol *claim.Symbol) state.Instance {
		return &instance{state: s, notify: notify}
	}
}

type instance struct {
	state  *UnitState
	notify func(state.Event)

	mu      sync.Mutex
	rows    int
	handles []node.WatchHandle
	cancel  context.CancelFunc
	applied bool
}

func (i *instance) Prepare(resume bool) diag.Analysis {
	return diag.Analysis{}
}

func (i *instance) Apply(resume bool) (state.Record, error) {
	ctx, cancel := context.WithCancel(context.Background())
	i.cancel = cancel

	for path, n := range i.state.fields {
		path, n := path, n
		h := n.Watch(ctx, func(v node.Value) {
			i.recordRow(ctx, path)
		})
		i.handles = append(i.handles, h)
	}
	i.applied = true
	return state.Record{Location: i.location()}, nil
}

func (i *instance) recordRow(ctx context.Context, changedPath string) {
	i.mu.Lock()
	row := make(map[string]node.Value, len(i.state.fields))
	for path, n := range i.state.fields {
		row[path] = n.Value()
	}
	i.rows++
	rows := i.rows
	i.mu.Unlock()

	if err := i.state.sink.WriteRow(ctx, i.state.name, row); err != nil {
		i.notify(state.Event{Settled: true, Location: errLocation{err: err}})
		return
	}
	i.notify(state.Event{Settled: true, Location: rowsLocation{rows: rows}})
}

func (i *instance) Applied() bool { return i.applied }

func (i *instance) Suspend(ctx context.Context) (state.Record, error) {
	if i.cancel != nil {
		i.cancel()
	}
	for _, h := range i.handles {
		h.Cancel()
	}
	i.handles = nil
	i.applied = false
	return state.Record{Location: i.location()}, nil
}

func (i *instance) Close(ctx context.Context) error {
	return nil
}

func (i *instance) location() state.Location {
	i.mu.Lock()
	defer i.mu.Unlock()
	return rowsLocation{rows: i.rows}
}

type rowsLocation struct{ rows int }

func (l rowsLocation) Export() interface{} { return map[string]interface{}{"rows": l.rows} }

type errLocation struct{ err error }

func (l errLocation) Export() interface{} { return map[string]interface{}{"error": l.err.Error()} }
