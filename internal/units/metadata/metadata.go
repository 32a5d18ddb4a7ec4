// Package metadata implements the "metadata" namespace: a trivial
// root-level description attribute, adapted from pr1_metadata/runner.py's
// chip-level title/description/creationDate fields (a chip concept out
// of scope here) down to a protocol-level description field sitting
// alongside the core "name" attribute.
package metadata

import (
	"github.com/dekarrin/fiberhost/internal/diag"
	"github.com/dekarrin/fiberhost/internal/fiber"
	"github.com/dekarrin/fiberhost/internal/fiberexpr"
	"github.com/dekarrin/fiberhost/internal/schema"
)

// Parser contributes the "description" root attribute.
type Parser struct {
	Description string
}

func NewParser() *Parser { return &Parser{} }

func (*Parser) Namespace() string { return "metadata" }
func (*Parser) Priority() int     { return 0 }

func (*Parser) RootAttributes() map[string]schema.Attribute {
	return map[string]schema.Attribute{
		"description": {
			Label:       "Description",
			Description: "A free-text description of the protocol.",
			Type:        schema.StrType{},
		},
	}
}

func (*Parser) SegmentAttributes() map[string]schema.Attribute { return nil }

func (p *Parser) EnterProtocol(attrs map[string]schema.Scalar, adoptionEnvs, runtimeEnvs []*fiberexpr.Env) (diag.Analysis, []*fiberexpr.Env) {
	if desc, ok := attrs["description"]; ok && !desc.IsEllipsis() {
		if s, ok := desc.Value.(string); ok {
			p.Description = s
		}
	}
	return diag.Analysis{}, nil
}

func (*Parser) PrepareBlock(attrs map[string]schema.Scalar, adoptionEnvs, runtimeEnvs []*fiberexpr.Env) (diag.Analysis, map[string]schema.Scalar, []*fiberexpr.Env) {
	return diag.Analysis{}, nil, nil
}

func (*Parser) ParseBlock(attrs map[string]schema.Scalar, adoptionStack fiberexpr.Stack) (diag.Analysis, *fiber.BlockUnitData, bool) {
	return diag.Analysis{}, &fiber.BlockUnitData{}, true
}
