package schema

import (
	"strconv"
	"strings"

	"github.com/dekarrin/fiberhost/internal/diag"
	"github.com/dekarrin/fiberhost/internal/fiberexpr"
	"github.com/dekarrin/fiberhost/internal/hosterr"
	"github.com/dekarrin/fiberhost/internal/reader"
)

// AnyType accepts any node unmodified, wrapping it without validation;
// used for attributes (like `steps`) whose shape is parsed by a later
// stage rather than the schema layer.
type AnyType struct{}

func (AnyType) Analyze(node reader.Node, ctx Context) (diag.Analysis, Scalar) {
	if node == nil {
		return diag.Analysis{}, Ellipsis
	}
	return diag.Analysis{}, Scalar{Value: node, Rng: node.Range()}
}

// StrType validates node is a scalar string.
type StrType struct {
	Default  string
	HasDflt  bool
}

func (t StrType) Analyze(node reader.Node, ctx Context) (diag.Analysis, Scalar) {
	if node == nil {
		if t.HasDflt {
			return diag.Analysis{}, Scalar{Value: t.Default}
		}
		return diag.Analysis{}, Ellipsis
	}
	str, ok := node.(*reader.String)
	if !ok {
		return diag.Analysis{}.AddErrors(hosterr.At(hosterr.Schematic, node.Range(), "expected a string")), Ellipsis
	}
	return diag.Analysis{}, Scalar{Value: str.Raw, Rng: str.Rng}
}

// BoolType validates node is one of the recognized boolean literals.
type BoolType struct{}

var boolLiterals = map[string]bool{
	"true": true, "yes": true, "on": true,
	"false": false, "no": false, "off": false,
}

func (BoolType) Analyze(node reader.Node, ctx Context) (diag.Analysis, Scalar) {
	if node == nil {
		return diag.Analysis{}, Ellipsis
	}
	str, ok := node.(*reader.String)
	if !ok {
		return diag.Analysis{}.AddErrors(hosterr.At(hosterr.Schematic, node.Range(), "expected a boolean")), Ellipsis
	}
	v, ok := boolLiterals[strings.ToLower(str.Raw)]
	if !ok {
		return diag.Analysis{}.AddErrors(hosterr.Atf(hosterr.Schematic, str.Rng, "invalid boolean literal %q", str.Raw)), Ellipsis
	}
	return diag.Analysis{}, Scalar{Value: v, Rng: str.Rng}
}

// NumberType validates node is a bare integer or float literal.
type NumberType struct{}

func (NumberType) Analyze(node reader.Node, ctx Context) (diag.Analysis, Scalar) {
	if node == nil {
		return diag.Analysis{}, Ellipsis
	}
	str, ok := node.(*reader.String)
	if !ok {
		return diag.Analysis{}.AddErrors(hosterr.At(hosterr.Schematic, node.Range(), "expected a number")), Ellipsis
	}
	if n, err := strconv.ParseInt(str.Raw, 10, 64); err == nil {
		return diag.Analysis{}, Scalar{Value: n, Rng: str.Rng}
	}
	if f, err := strconv.ParseFloat(str.Raw, 64); err == nil {
		return diag.Analysis{}, Scalar{Value: f, Rng: str.Rng}
	}
	return diag.Analysis{}.AddErrors(hosterr.Atf(hosterr.Schematic, str.Rng, "invalid number literal %q", str.Raw)), Ellipsis
}

// QuantityType validates node is a "<magnitude> <unit>" literal: the
// bare YAML-style form of a Quantity, also usable outside `{{ }}`.
type QuantityType struct{}

func (QuantityType) Analyze(node reader.Node, ctx Context) (diag.Analysis, Scalar) {
	if node == nil {
		return diag.Analysis{}, Ellipsis
	}
	str, ok := node.(*reader.String)
	if !ok {
		return diag.Analysis{}.AddErrors(hosterr.At(hosterr.Schematic, node.Range(), "expected a quantity")), Ellipsis
	}
	q, err := fiberexpr.ParseQuantityLiteral(str.Raw)
	if err != nil {
		return diag.Analysis{}.AddErrors(hosterr.Atf(hosterr.Schematic, str.Rng, "invalid quantity literal %q: %s", str.Raw, err)), Ellipsis
	}
	return diag.Analysis{}, Scalar{Value: q, Rng: str.Rng}
}

// EnumType restricts node's string value to a fixed set of allowed
// literals (case-insensitive).
type EnumType struct {
	Values []string
}

func (t EnumType) Analyze(node reader.Node, ctx Context) (diag.Analysis, Scalar) {
	if node == nil {
		return diag.Analysis{}, Ellipsis
	}
	str, ok := node.(*reader.String)
	if !ok {
		return diag.Analysis{}.AddErrors(hosterr.At(hosterr.Schematic, node.Range(), "expected one of the enumerated values")), Ellipsis
	}
	for _, v := range t.Values {
		if strings.EqualFold(v, str.Raw) {
			return diag.Analysis{}, Scalar{Value: v, Rng: str.Rng}
		}
	}
	return diag.Analysis{}.AddErrors(hosterr.Atf(hosterr.Schematic, str.Rng, "%q is not one of %v", str.Raw, t.Values)), Ellipsis
}

// ListType validates node is a *reader.List and analyzes each item
// against Item.
type ListType struct {
	Item Type
}

func (t ListType) Analyze(node reader.Node, ctx Context) (diag.Analysis, Scalar) {
	if node == nil {
		return diag.Analysis{}, Ellipsis
	}
	list, ok := node.(*reader.List)
	if !ok {
		return diag.Analysis{}.AddErrors(hosterr.At(hosterr.Schematic, node.Range(), "expected a list")), Ellipsis
	}

	var analysis diag.Analysis
	items := make([]Scalar, 0, len(list.Items))
	for _, item := range list.Items {
		a, scalar := t.Item.Analyze(item, ctx)
		analysis = analysis.Merge(a)
		if scalar.IsEllipsis() {
			return analysis, Ellipsis
		}
		items = append(items, scalar)
	}
	return analysis, Scalar{Value: items, Rng: list.Rng}
}

// DictType validates node is a *reader.Dict whose every key maps to a
// Value analyzed against Value (used for attributes whose shape is "any
// string key to the same kind of value", unlike CompositeSchema's fixed
// key set).
type DictType struct {
	Value Type
}

func (t DictType) Analyze(node reader.Node, ctx Context) (diag.Analysis, Scalar) {
	if node == nil {
		return diag.Analysis{}, Ellipsis
	}
	dict, ok := node.(*reader.Dict)
	if !ok {
		return diag.Analysis{}.AddErrors(hosterr.At(hosterr.Schematic, node.Range(), "expected a mapping")), Ellipsis
	}

	var analysis diag.Analysis
	out := make(map[string]Scalar, len(dict.Order))
	for _, key := range dict.Order {
		entry, _ := dict.Get(key)
		a, scalar := t.Value.Analyze(entry, ctx)
		analysis = analysis.Merge(a)
		out[key] = scalar
	}
	return analysis, Scalar{Value: out, Rng: dict.Rng}
}

// ExprType wraps another Type, first attempting to parse node's string
// form as an embedded expression before falling back to validating it
// as a literal of the wrapped Type. Static expressions are
// evaluated immediately against ctx's constants; Field/Dynamic
// expressions are left as a deferred *fiberexpr.Expr in the Scalar's
// Value when ctx.Eval is false, and evaluated against ctx.Stack when
// ctx.Eval is true.
type ExprType struct {
	Literal   Type
	Constants map[string]fiberexpr.Value
}

func (t ExprType) Analyze(node reader.Node, ctx Context) (diag.Analysis, Scalar) {
	if node == nil {
		return diag.Analysis{}, Ellipsis
	}
	str, ok := node.(*reader.String)
	if !ok {
		return t.Literal.Analyze(node, ctx)
	}

	expr, err := fiberexpr.Parse(str)
	if err != nil {
		return diag.Analysis{}.AddErrors(err), Ellipsis
	}
	if expr == nil {
		return t.Literal.Analyze(node, ctx)
	}

	switch expr.Kind {
	case fiberexpr.Static:
		v, err := expr.EvaluateStatic(t.Constants)
		if err != nil {
			return diag.Analysis{}.AddErrors(err), Ellipsis
		}
		return diag.Analysis{}, Scalar{Value: v.GoValue(), Rng: str.Rng}
	case fiberexpr.Binding:
		path, err := expr.EvaluateBinding()
		if err != nil {
			return diag.Analysis{}.AddErrors(hosterr.At(hosterr.Expression, str.Rng, err.Error())), Ellipsis
		}
		return diag.Analysis{}, Scalar{Value: path, Rng: str.Rng}
	default: // Field, Dynamic
		if ctx.Eval {
			v, err := expr.Evaluate(ctx.Stack, ctx.EnvOrder)
			if err != nil {
				return diag.Analysis{}.AddErrors(err), Ellipsis
			}
			return diag.Analysis{}, Scalar{Value: v.GoValue(), Rng: str.Rng}
		}
		return diag.Analysis{}, Scalar{Value: expr, Rng: str.Rng}
	}
}
