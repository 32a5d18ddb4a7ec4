package fiber

import (
	"context"
	"sync"

	"github.com/dekarrin/fiberhost/internal/claim"
	"github.com/dekarrin/fiberhost/internal/fiberexpr"
	"github.com/dekarrin/fiberhost/internal/runtime"
)

// SequenceBlock steps its Children in order, each child's terminal
// event preceding the next child's start. This is the dedicated
// "sequence" transform, following parser.py's handling of
// `data_actions = output['_']['steps']` folding a steps list into
// child blocks.
type SequenceBlock struct {
	Children []runtime.Block
}

func (b *SequenceBlock) NewProgram(master runtime.Master, parent runtime.Program) runtime.Program {
	return &sequenceProgram{block: b, master: master, parent: parent}
}

// Export implements runtime.Exporter.
func (b *SequenceBlock) Export() map[string]interface{} {
	children := make([]interface{}, len(b.Children))
	for i, child := range b.Children {
		children[i] = exportChild(child)
	}
	return map[string]interface{}{
		"namespace": "sequence",
		"children":  children,
	}
}

// exportChild renders child's Export() if it implements runtime.Exporter,
// falling back to a bare namespace placeholder otherwise.
func exportChild(child runtime.Block) interface{} {
	if exporter, ok := child.(runtime.Exporter); ok {
		return exporter.Export()
	}
	return map[string]interface{}{"namespace": "unknown"}
}

// SequencePoint resumes a sequence at Index, with Child resuming the
// active child program.
type SequencePoint struct {
	Index int
	Child *runtime.Point
}

type sequenceProgram struct {
	block  *SequenceBlock
	master runtime.Master
	parent runtime.Program

	mu      sync.RWMutex
	index   int
	current runtime.Program
	halted  bool
}

func (p *sequenceProgram) Busy() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.current != nil && p.current.Busy()
}

func (p *sequenceProgram) Run(ctx context.Context, initial *runtime.Point, parentStateProgram *runtime.StateProgram, stack fiberexpr.Stack, symbol *claim.Symbol) <-chan runtime.ProgramExecEvent {
	out := make(chan runtime.ProgramExecEvent)

	startIndex := 0
	var childInitial *runtime.Point
	if initial != nil && initial.Index < len(p.block.Children) {
		startIndex = initial.Index
		childInitial = initial.Child
	}

	go func() {
		defer close(out)

		for i := startIndex; i < len(p.block.Children); i++ {
			p.mu.Lock()
			p.index = i
			child := p.block.Children[i].NewProgram(p.master, p)
			p.current = child
			p.mu.Unlock()

			childEvents := child.Run(ctx, childInitial, parentStateProgram, stack, symbol)
			childInitial = nil

			for ev := range childEvents {
				last := i == len(p.block.Children)-1
				location := SequenceLocation{Index: i, Child: ev.Location}

				select {
				case out <- ev.Inherit(ev.Errors, location, ev.StateTerminated, ev.Stopped, ev.Terminated && last):
				case <-ctx.Done():
					return
				}

				if ev.Terminated && !last {
					break
				}
			}

			if ctx.Err() != nil {
				return
			}
		}

		p.mu.Lock()
		p.halted = true
		p.mu.Unlock()

		if len(p.block.Children) == 0 {
			out <- runtime.ProgramExecEvent{Terminated: true, Stopped: true}
		}
	}()

	return out
}

// SequenceLocation is the location snapshot reported by a running
// sequence program: which child is active and its own location.
type SequenceLocation struct {
	Index int
	Child interface{}
}

func (l SequenceLocation) Export() interface{} {
	return map[string]interface{}{"index": l.Index, "child": l.Child}
}

func (p *sequenceProgram) Halt() error {
	p.mu.RLock()
	cur := p.current
	p.mu.RUnlock()
	if cur == nil {
		return nil
	}
	return cur.Halt()
}

func (p *sequenceProgram) Pause() error {
	p.mu.RLock()
	cur := p.current
	p.mu.RUnlock()
	if cur == nil {
		return nil
	}
	return cur.Pause()
}

func (p *sequenceProgram) Resume() error {
	p.mu.RLock()
	cur := p.current
	p.mu.RUnlock()
	if cur == nil {
		return nil
	}
	return cur.Resume()
}

func (p *sequenceProgram) ImportMessage(msg map[string]interface{}) error {
	p.mu.RLock()
	cur := p.current
	p.mu.RUnlock()
	if cur == nil {
		return nil
	}
	return cur.ImportMessage(msg)
}

func (p *sequenceProgram) CallResume() {
	if p.parent != nil {
		p.parent.CallResume()
	} else {
		p.master.CallResume()
	}
}

func (p *sequenceProgram) GetChild(blockKey, execKey interface{}) (runtime.Program, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	index, ok := blockKey.(int)
	if !ok || index != p.index || p.current == nil {
		return nil, false
	}
	if execKey == nil {
		return p.current, true
	}
	return p.current.GetChild(execKey, nil)
}
