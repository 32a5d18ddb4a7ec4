// Package shorthand implements the "shorthand" namespace: user-defined
// block macros declared once under the protocol's root "shorthands"
// attribute and referenced by name from any segment. No concrete
// parser.py ships for this unit in the source pack
// (pr1_shorthands/__init__.py only stubs it out), so the expansion
// contract here is wired through
// fiber.FiberParser.SetShorthandSource/fiber.ShorthandSource.
package shorthand

import (
	"github.com/dekarrin/fiberhost/internal/diag"
	"github.com/dekarrin/fiberhost/internal/fiber"
	"github.com/dekarrin/fiberhost/internal/fiberexpr"
	"github.com/dekarrin/fiberhost/internal/reader"
	"github.com/dekarrin/fiberhost/internal/schema"
)

// Parser contributes the root "shorthands" attribute and, after
// EnterProtocol runs, answers fiber.FiberParser's shorthand lookups
// through Shorthand.
type Parser struct {
	definitions map[string]*reader.Dict
}

// NewParser builds an empty shorthands registry; EnterProtocol
// populates it once per compiled document.
func NewParser() *Parser {
	return &Parser{definitions: make(map[string]*reader.Dict)}
}

func (*Parser) Namespace() string { return "shorthand" }
func (*Parser) Priority() int     { return 0 }

func (*Parser) RootAttributes() map[string]schema.Attribute {
	return map[string]schema.Attribute{
		"shorthands": {
			Label:       "Shorthands",
			Description: "User-defined block macros, each a prepared attribute mapping referenced by name from any segment.",
			Type:        schema.DictType{Value: schema.AnyType{}},
		},
	}
}

func (*Parser) SegmentAttributes() map[string]schema.Attribute { return nil }

// EnterProtocol pre-parses every declared shorthand's body into a
// prepared block-attribute mapping, forming a flat namespace with no
// recursion into other shorthands at definition time.
func (p *Parser) EnterProtocol(attrs map[string]schema.Scalar, adoptionEnvs, runtimeEnvs []*fiberexpr.Env) (diag.Analysis, []*fiberexpr.Env) {
	shorthandsAttr, present := attrs["shorthands"]
	if !present || shorthandsAttr.IsEllipsis() {
		return diag.Analysis{}, nil
	}

	raw, ok := shorthandsAttr.Value.(map[string]schema.Scalar)
	if !ok {
		return diag.Analysis{}, nil
	}

	for name, scalar := range raw {
		if scalar.IsEllipsis() {
			continue
		}
		node, ok := scalar.Value.(reader.Node)
		if !ok {
			continue
		}
		dict, ok := node.(*reader.Dict)
		if !ok {
			continue
		}
		p.definitions[name] = dict
	}

	return diag.Analysis{}, nil
}

func (*Parser) PrepareBlock(attrs map[string]schema.Scalar, adoptionEnvs, runtimeEnvs []*fiberexpr.Env) (diag.Analysis, map[string]schema.Scalar, []*fiberexpr.Env) {
	return diag.Analysis{}, nil, nil
}

func (*Parser) ParseBlock(attrs map[string]schema.Scalar, adoptionStack fiberexpr.Stack) (diag.Analysis, *fiber.BlockUnitData, bool) {
	return diag.Analysis{}, &fiber.BlockUnitData{}, true
}

// Shorthand implements fiber.ShorthandSource.
func (p *Parser) Shorthand(name string) (*reader.Dict, bool) {
	d, ok := p.definitions[name]
	return d, ok
}

var (
	_ fiber.Parser          = (*Parser)(nil)
	_ fiber.ShorthandSource = (*Parser)(nil)
)
