// Package timer implements the "timer" namespace: a segment leaf
// process that waits for a quantity of time, the unit exercised by a
// `wait: 30 sec` step. No concrete parser.py ships for this unit in
// the source pack (pr1_segment/__init__.py only stubs it out), so this
// is grounded on the segment-unit shape described there and on
// pr1_state/parser.py's StateParser for the
// namespace/priority/PrepareBlock/ParseBlock contract shape.
package timer

import (
	"context"
	"time"

	"github.com/dekarrin/fiberhost/internal/claim"
	"github.com/dekarrin/fiberhost/internal/diag"
	"github.com/dekarrin/fiberhost/internal/fiber"
	"github.com/dekarrin/fiberhost/internal/fiberexpr"
	"github.com/dekarrin/fiberhost/internal/hosterr"
	"github.com/dekarrin/fiberhost/internal/reader"
	"github.com/dekarrin/fiberhost/internal/runtime"
	"github.com/dekarrin/fiberhost/internal/schema"
)

// Parser contributes the "wait" segment attribute: a quantity of time to
// pause the enclosing program for.
type Parser struct{}

func NewParser() *Parser { return &Parser{} }

func (*Parser) Namespace() string { return "timer" }
func (*Parser) Priority() int     { return 0 }

func (*Parser) RootAttributes() map[string]schema.Attribute { return nil }

func (*Parser) SegmentAttributes() map[string]schema.Attribute {
	return map[string]schema.Attribute{
		"wait": {
			Label:       "Wait",
			Description: "Duration to wait before continuing.",
			Type:        schema.ExprType{Literal: schema.QuantityType{}},
		},
	}
}

func (*Parser) EnterProtocol(attrs map[string]schema.Scalar, adoptionEnvs, runtimeEnvs []*fiberexpr.Env) (diag.Analysis, []*fiberexpr.Env) {
	return diag.Analysis{}, nil
}

func (*Parser) PrepareBlock(attrs map[string]schema.Scalar, adoptionEnvs, runtimeEnvs []*fiberexpr.Env) (diag.Analysis, map[string]schema.Scalar, []*fiberexpr.Env) {
	return diag.Analysis{}, attrs, nil
}

func (*Parser) ParseBlock(attrs map[string]schema.Scalar, adoptionStack fiberexpr.Stack) (diag.Analysis, *fiber.BlockUnitData, bool) {
	wait, present := attrs["wait"]
	if !present || wait.IsEllipsis() {
		return diag.Analysis{}, &fiber.BlockUnitData{}, true
	}

	q, ok := wait.Value.(fiberexpr.Quantity)
	if !ok {
		return diag.Analysis{}.AddErrors(hosterr.At(hosterr.Schematic, wait.Rng, "wait must be a duration quantity")), nil, false
	}

	return diag.Analysis{}, &fiber.BlockUnitData{
		Transforms: []fiber.Transform{&waitTransform{duration: q, rng: wait.Rng}},
	}, true
}

type waitTransform struct {
	duration fiberexpr.Quantity
	rng      reader.Range
}

func (t *waitTransform) Execute(state fiber.BlockState, rest []fiber.Transform, originRange reader.Range) (diag.Analysis, runtime.Block, bool) {
	if len(rest) > 0 {
		return fiber.Execute(state, rest, originRange)
	}
	return diag.Analysis{}, &Block{Duration: t.duration}, true
}

// Block is the leaf block a "wait: <quantity>" segment compiles to.
type Block struct {
	Duration fiberexpr.Quantity
}

func (b *Block) NewProgram(master runtime.Master, parent runtime.Program) runtime.Program {
	return &program{block: b, parent: parent, master: master}
}

// Export implements runtime.Exporter.
func (b *Block) Export() map[string]interface{} {
	return map[string]interface{}{
		"namespace": "timer",
		"duration": map[string]interface{}{
			"magnitude": b.Duration.Magnitude,
			"unit":      b.Duration.Unit,
		},
	}
}

type program struct {
	block  *Block
	parent runtime.Program
	master runtime.Master

	cancel context.CancelFunc
}

func (p *program) Run(ctx context.Context, initial *runtime.Point, parentStateProgram *runtime.StateProgram, stack fiberexpr.Stack, symbol *claim.Symbol) <-chan runtime.ProgramExecEvent {
	out := make(chan runtime.ProgramExecEvent, 1)

	timerCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel

	seconds := p.block.Duration.Magnitude
	if p.block.Duration.Unit != "sec" {
		oneSecond := fiberexpr.Quantity{Magnitude: 1, Unit: "sec"}
		if ratio, err := p.block.Duration.Div(oneSecond); err == nil {
			seconds = ratio.Magnitude
		}
	}

	go func() {
		defer close(out)
		select {
		case <-time.After(time.Duration(seconds * float64(time.Second))):
		case <-timerCtx.Done():
		}
		out <- runtime.ProgramExecEvent{Terminated: true, Stopped: true}
	}()

	return out
}

func (p *program) Busy() bool { return false }

func (p *program) Halt() error {
	if p.cancel != nil {
		p.cancel()
	}
	return nil
}

func (p *program) Pause() error {
	return hosterr.Internalf("timer program does not support pausing mid-wait")
}

func (p *program) Resume() error {
	return hosterr.Internalf("timer program is never paused")
}

func (p *program) ImportMessage(msg map[string]interface{}) error {
	if msg["type"] == "halt" {
		return p.Halt()
	}
	return hosterr.Internalf("timer program accepts no client messages of type %v", msg["type"])
}

func (p *program) CallResume() {
	if p.parent != nil {
		p.parent.CallResume()
	} else {
		p.master.CallResume()
	}
}

func (p *program) GetChild(blockKey, execKey interface{}) (runtime.Program, bool) {
	return nil, false
}
