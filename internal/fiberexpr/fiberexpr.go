package fiberexpr

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/dekarrin/fiberhost/internal/hosterr"
	"github.com/dekarrin/fiberhost/internal/reader"
)

// sigilPattern matches one embedded expression occurrence: an optional
// sigil ($, @, %) followed by "{{", a body that may contain escaped
// characters and literal "}" as long as it's not immediately followed by
// a second "}", and a closing "}}". A "}}" occurring inside a literal
// must be escaped.
var sigilPattern = regexp.MustCompile(`([$@%])?\{\{((?:\\.|[^\\}]|\}(?!\}))*)\}\}`)
var sigilPatternExact = regexp.MustCompile(`^` + sigilPattern.String() + `$`)
var escapePattern = regexp.MustCompile(`\\(.)`)

func unescape(s string) string {
	return escapePattern.ReplaceAllString(s, "$1")
}

func kindForSigil(sigil string) Kind {
	switch sigil {
	case "$":
		return Static
	case "%":
		return Dynamic
	case "@":
		return Binding
	default:
		return Field
	}
}

// Expr is a single parsed embedded expression, tagged with its Kind and
// the source range of its body (for diagnostics) and carrying the parsed
// AST ready for evaluation.
type Expr struct {
	Kind     Kind
	Contents string
	Rng      reader.Range
	tree     node
}

// Range implements reader.Node.
func (e *Expr) Range() reader.Range { return e.Rng }

// Export renders e in the wire shape used by the compiled-protocol
// export, matching expr.py's PythonExpr.export.
func (e *Expr) Export() map[string]interface{} {
	return map[string]interface{}{
		"type":     "expression",
		"contents": e.Contents,
	}
}

// Parse attempts to parse raw as a single embedded expression occupying
// its entire span (the "exact" form). It returns (nil, nil) if raw does
// not match the sigil-brace surface syntax at all (the caller should then
// treat raw as a literal).
func Parse(raw *reader.String) (*Expr, error) {
	m := sigilPatternExact.FindStringSubmatchIndex(raw.Raw)
	if m == nil {
		return nil, nil
	}
	return parseMatch(raw, m)
}

// ParseMixed splits raw into an alternating sequence of literal text
// (reader.String) and *Expr, implementing the "mixed" parse mode (spec
// §4.2: "literal text interleaved with expressions").
func ParseMixed(raw *reader.String) ([]interface{}, error) {
	var out []interface{}
	var errs []error

	index := 0
	for _, m := range sigilPattern.FindAllStringSubmatchIndex(raw.Raw, -1) {
		start, end := m[0], m[1]
		if start > index {
			out = append(out, raw.Slice(index, start))
		}
		index = end

		expr, err := parseMatch(raw, m)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		out = append(out, expr)
	}
	if index < len(raw.Raw) {
		out = append(out, raw.Slice(index, len(raw.Raw)))
	}

	if len(errs) > 0 {
		return out, errs[0]
	}
	return out, nil
}

func parseMatch(raw *reader.String, m []int) (*Expr, error) {
	var sigil string
	if m[2] >= 0 {
		sigil = raw.Raw[m[2]:m[3]]
	}
	bodyStart, bodyEnd := m[4], m[5]
	bodyRaw := raw.Raw[bodyStart:bodyEnd]

	contents := strings.TrimSpace(unescape(bodyRaw))
	bodyRange := raw.Slice(bodyStart, bodyEnd).Range()

	tree, err := parse(contents)
	if err != nil {
		if se, ok := err.(*SyntaxError); ok {
			return nil, hosterr.At(hosterr.Syntactic, bodyRange, se.Message)
		}
		return nil, hosterr.At(hosterr.Syntactic, bodyRange, err.Error())
	}

	return &Expr{
		Kind:     kindForSigil(sigil),
		Contents: contents,
		Rng:      bodyRange,
		tree:     tree,
	}, nil
}

// EvaluateStatic evaluates a Static-kind expression immediately against a
// fixed table of constants, with no deferred bindings allowed (spec
// §4.2: "evaluated at compile-time against an environment of
// constants; side-effect free").
func (e *Expr) EvaluateStatic(constants map[string]Value) (Value, error) {
	if e.Kind != Static {
		return Value{}, fmt.Errorf("EvaluateStatic called on a %s expression", e.Kind)
	}
	resolve := func(name string) (Value, bool) {
		v, ok := constants[name]
		return v, ok
	}
	return e.evaluateWith(resolve)
}

// Evaluate evaluates a Field or Dynamic-kind expression against the
// adoption stack, resolving identifiers through the given Envs in
// order. This happens at program instantiation, against the adoption
// stack.
func (e *Expr) Evaluate(stack Stack, order []*Env) (Value, error) {
	if e.Kind != Field && e.Kind != Dynamic {
		return Value{}, fmt.Errorf("Evaluate called on a %s expression", e.Kind)
	}
	return e.evaluateWith(StackResolver(stack, order))
}

// EvaluateBinding resolves a Binding-kind expression's dotted-identifier
// path, producing an assignable location name rather than a value (spec
// §4.2: "produces an assignable location rather than a value"). Only a
// bare identifier or a chain of member accesses is accepted as a
// binding target.
func (e *Expr) EvaluateBinding() ([]string, error) {
	if e.Kind != Binding {
		return nil, fmt.Errorf("EvaluateBinding called on a %s expression", e.Kind)
	}
	return bindingPath(e.tree)
}

func bindingPath(n node) ([]string, error) {
	switch v := n.(type) {
	case *identifier:
		return []string{v.name}, nil
	case *memberAccess:
		base, err := bindingPath(v.target)
		if err != nil {
			return nil, err
		}
		return append(base, v.field), nil
	default:
		return nil, fmt.Errorf("binding target must be a dotted identifier")
	}
}

func (e *Expr) evaluateWith(resolve Resolver) (Value, error) {
	v, err := evaluate(e.tree, resolve)
	if err != nil {
		if ee, ok := err.(*EvalError); ok {
			offsetRange := e.Rng.Slice(ee.Offset, ee.Offset)
			return Value{}, hosterr.At(hosterr.Expression, offsetRange, ee.Message)
		}
		return Value{}, hosterr.Wrap(hosterr.Expression, "expression evaluation failed", err)
	}
	return v, nil
}
