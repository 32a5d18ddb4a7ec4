// Package schema implements the divisible composite attribute schema used
// to validate and evaluate a protocol document's dict nodes against the
// attributes every namespace parser contributes, i.e. the type analyzer.
package schema

import (
	"sort"

	"github.com/dekarrin/fiberhost/internal/diag"
	"github.com/dekarrin/fiberhost/internal/fiberexpr"
	"github.com/dekarrin/fiberhost/internal/hosterr"
	"github.com/dekarrin/fiberhost/internal/reader"
)

// Context carries the flags under which an analysis pass runs: "eval"
// and "symbolic" flags distinguish a dry compile-time pass from one
// permitted to evaluate expressions against a concrete stack.
type Context struct {
	// Eval permits Dynamic/Field expressions to be evaluated immediately
	// rather than left as a deferred *fiberexpr.Expr.
	Eval bool
	// Symbolic marks that evaluated values may still be placeholders
	// (e.g. during a prepare pass before real node topology exists).
	Symbolic bool
	Stack    fiberexpr.Stack
	EnvOrder []*fiberexpr.Env
}

// Attribute describes one schema key: its Type, whether it's required,
// and editor-facing metadata.
type Attribute struct {
	Label       string
	Description string
	Type        Type
	Required    bool
	Default     interface{}
}

// Scalar pairs an analyzed value with the source range it came from.
type Scalar struct {
	Value interface{}
	Rng   reader.Range
}

// IsEllipsis reports whether s represents an unresolved/omitted value.
func (s Scalar) IsEllipsis() bool {
	_, ok := s.Value.(ellipsisMarker)
	return ok
}

type ellipsisMarker struct{}

// Ellipsis is the schema package's "unresolved" sentinel, analogous to
// Python's Ellipsis singleton used throughout the original type analyzer.
var Ellipsis = Scalar{Value: ellipsisMarker{}}

// Type is implemented by every concrete schema type (StrType, NumberType,
// ...). Analyze validates and converts node (which may be nil, denoting
// an absent attribute) into a Scalar, accumulating diagnostics in the
// returned diag.Analysis.
type Type interface {
	Analyze(node reader.Node, ctx Context) (diag.Analysis, Scalar)
}

// CompositeSchema is a namespace-tagged flat key→Attribute map: every
// parser contributes its own Attribute set under its namespace, and
// Analyze validates a reader.Dict against the union of all namespaces
// at once, the way DivisibleCompositeDictType.add/analyze work in
// host/pr1/fiber/parser.py.
type CompositeSchema struct {
	attrs map[string]Attribute
	owner map[string]string // attribute name -> namespace
	order []string
}

// NewCompositeSchema returns an empty schema ready for Add calls.
func NewCompositeSchema() *CompositeSchema {
	return &CompositeSchema{
		attrs: make(map[string]Attribute),
		owner: make(map[string]string),
	}
}

// Add merges attrs into the schema under namespace. A key already
// claimed by a different namespace is a programmer error (two parsers
// declaring the same attribute name), reported as an Internal error since
// it should never reach analysis of real documents.
func (c *CompositeSchema) Add(namespace string, attrs map[string]Attribute) error {
	for name, attr := range attrs {
		if existing, ok := c.owner[name]; ok && existing != namespace {
			return hosterr.Internalf("attribute %q already claimed by namespace %q, cannot add for %q", name, existing, namespace)
		}
		c.attrs[name] = attr
		c.owner[name] = namespace
		c.order = append(c.order, name)
	}
	return nil
}

// Analyze validates node (expected to be a *reader.Dict, or nil for an
// empty document) against every attribute declared across all
// namespaces, returning a flat map of attribute name to Scalar alongside
// accumulated diagnostics. Attributes absent from the document analyze
// against a nil reader.Node, which lets their Type supply a Default or
// report a missing-required error.
func (c *CompositeSchema) Analyze(node reader.Node, ctx Context) (diag.Analysis, map[string]Scalar) {
	var analysis diag.Analysis
	out := make(map[string]Scalar, len(c.attrs))

	dict, _ := node.(*reader.Dict)

	seen := make(map[string]bool)
	if dict != nil {
		for _, key := range dict.Order {
			seen[key] = true
			attr, known := c.attrs[key]
			if !known {
				entry, _ := dict.Get(key)
				analysis = analysis.AddWarnings(hosterr.Atf(hosterr.Schematic, entry.Range(), "unexpected attribute %q", key))
				continue
			}
			entry, _ := dict.Get(key)
			a, scalar := attr.Type.Analyze(entry, ctx)
			analysis = analysis.Merge(a)
			out[key] = scalar
		}
	}

	for _, name := range sortedKeys(c.attrs) {
		if seen[name] {
			continue
		}
		attr := c.attrs[name]
		a, scalar := attr.Type.Analyze(nil, ctx)
		analysis = analysis.Merge(a)
		if attr.Required && scalar.IsEllipsis() {
			rng := reader.Range{}
			if dict != nil {
				rng = dict.Range()
			}
			analysis = analysis.AddErrors(hosterr.Atf(hosterr.Schematic, rng, "missing required attribute %q", name))
		}
		out[name] = scalar
	}

	return analysis, out
}

// Known reports whether name is a recognized attribute key in this
// schema (owned by some namespace), used by callers that need to tell
// an ordinary unrecognized key apart from a composite-schema member
// before falling back to some other resolution (e.g. shorthand lookup).
func (c *CompositeSchema) Known(name string) bool {
	_, ok := c.attrs[name]
	return ok
}

// AnalyzeNamespace filters a flat analyzed-attribute map (as returned by
// Analyze) down to the subset owned by namespace, mirroring
// analyze_namespace's per-parser projection.
func (c *CompositeSchema) AnalyzeNamespace(attrs map[string]Scalar, namespace string) map[string]Scalar {
	out := make(map[string]Scalar)
	for name, owner := range c.owner {
		if owner == namespace {
			if v, ok := attrs[name]; ok {
				out[name] = v
			}
		}
	}
	return out
}

func sortedKeys(m map[string]Attribute) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
