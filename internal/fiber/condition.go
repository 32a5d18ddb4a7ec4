package fiber

import (
	"context"
	"sync"

	"github.com/dekarrin/fiberhost/internal/claim"
	"github.com/dekarrin/fiberhost/internal/fiberexpr"
	"github.com/dekarrin/fiberhost/internal/hosterr"
	"github.com/dekarrin/fiberhost/internal/reader"
	"github.com/dekarrin/fiberhost/internal/runtime"
)

// ConditionBlock wraps Child with a predicate evaluated once at program
// start; a false predicate skips Child entirely and terminates
// immediately. This is the dedicated "condition" transform.
type ConditionBlock struct {
	Predicate interface{} // bool, or a *fiberexpr.Expr to evaluate at run start
	Range     reader.Range
	Child     runtime.Block
}

func (b *ConditionBlock) NewProgram(master runtime.Master, parent runtime.Program) runtime.Program {
	return &conditionProgram{block: b, master: master, parent: parent}
}

// Export implements runtime.Exporter.
func (b *ConditionBlock) Export() map[string]interface{} {
	predicate := interface{}(nil)
	if lit, ok := b.Predicate.(bool); ok {
		predicate = lit
	}
	return map[string]interface{}{
		"namespace": "condition",
		"predicate": predicate,
		"child":     exportChild(b.Child),
	}
}

type conditionProgram struct {
	block  *ConditionBlock
	master runtime.Master
	parent runtime.Program

	mu      sync.RWMutex
	current runtime.Program
	skipped bool
}

func (p *conditionProgram) resolvePredicate(stack fiberexpr.Stack, symbol *claim.Symbol) (bool, error) {
	switch v := p.block.Predicate.(type) {
	case bool:
		return v, nil
	case *fiberexpr.Expr:
		result, err := v.Evaluate(stack, nil)
		if err != nil {
			return false, err
		}
		b, ok := result.GoValue().(bool)
		if !ok {
			return false, hosterr.At(hosterr.Expression, p.block.Range, "condition predicate did not evaluate to a boolean")
		}
		return b, nil
	default:
		return true, nil
	}
}

func (p *conditionProgram) Run(ctx context.Context, initial *runtime.Point, parentStateProgram *runtime.StateProgram, stack fiberexpr.Stack, symbol *claim.Symbol) <-chan runtime.ProgramExecEvent {
	out := make(chan runtime.ProgramExecEvent)

	ok, err := p.resolvePredicate(stack, symbol)
	if err != nil {
		go func() {
			defer close(out)
			out <- runtime.ProgramExecEvent{Errors: []error{err}, Terminated: true, Stopped: true}
		}()
		return out
	}

	if !ok {
		p.mu.Lock()
		p.skipped = true
		p.mu.Unlock()

		go func() {
			defer close(out)
			out <- runtime.ProgramExecEvent{Terminated: true, Stopped: true}
		}()
		return out
	}

	p.mu.Lock()
	child := p.block.Child.NewProgram(p.master, p)
	p.current = child
	p.mu.Unlock()

	childEvents := child.Run(ctx, initial, parentStateProgram, stack, symbol)

	go func() {
		defer close(out)
		for ev := range childEvents {
			select {
			case out <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out
}

func (p *conditionProgram) Busy() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.current != nil && p.current.Busy()
}

func (p *conditionProgram) Halt() error {
	p.mu.RLock()
	cur := p.current
	p.mu.RUnlock()
	if cur == nil {
		return nil
	}
	return cur.Halt()
}

func (p *conditionProgram) Pause() error {
	p.mu.RLock()
	cur := p.current
	p.mu.RUnlock()
	if cur == nil {
		return nil
	}
	return cur.Pause()
}

func (p *conditionProgram) Resume() error {
	p.mu.RLock()
	cur := p.current
	p.mu.RUnlock()
	if cur == nil {
		return nil
	}
	return cur.Resume()
}

func (p *conditionProgram) ImportMessage(msg map[string]interface{}) error {
	p.mu.RLock()
	cur := p.current
	p.mu.RUnlock()
	if cur == nil {
		return nil
	}
	return cur.ImportMessage(msg)
}

func (p *conditionProgram) CallResume() {
	if p.parent != nil {
		p.parent.CallResume()
	} else {
		p.master.CallResume()
	}
}

func (p *conditionProgram) GetChild(blockKey, execKey interface{}) (runtime.Program, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.current == nil {
		return nil, false
	}
	return p.current.GetChild(blockKey, execKey)
}
