package runtime

import (
	"context"
	"sync"

	"github.com/dekarrin/fiberhost/internal/claim"
	"github.com/dekarrin/fiberhost/internal/fiberexpr"
	"github.com/dekarrin/fiberhost/internal/hosterr"
	"github.com/dekarrin/fiberhost/internal/state"
)

// StateProgramMode enumerates the state-wrapped program's states.
// Ordered ascending in the exact transition sequence so Halted is
// unambiguously the terminal value; see DESIGN.md's Open Question
// decisions for why ordering, not sign, carries the "terminal" meaning
// here.
type StateProgramMode int

const (
	StateProgramStarting StateProgramMode = iota
	StateProgramNormal
	StateProgramPausingChild
	StateProgramPausingState
	StateProgramPaused
	StateProgramResuming
	StateProgramHaltingChild
	StateProgramHaltingState
	StateProgramHalted
)

func (m StateProgramMode) String() string {
	switch m {
	case StateProgramStarting:
		return "starting"
	case StateProgramNormal:
		return "normal"
	case StateProgramPausingChild:
		return "pausing_child"
	case StateProgramPausingState:
		return "pausing_state"
	case StateProgramPaused:
		return "paused"
	case StateProgramResuming:
		return "resuming"
	case StateProgramHaltingChild:
		return "halting_child"
	case StateProgramHaltingState:
		return "halting_state"
	case StateProgramHalted:
		return "halted"
	default:
		return "unknown"
	}
}

// StateProgramLocation is the location snapshot a StateProgram reports:
// its child's own location, its current mode, and its state instance
// collection's aggregate location.
type StateProgramLocation struct {
	Child interface{}
	Mode  StateProgramMode
	State state.Location
}

// Export renders the location for the bridge/audit layers.
func (l StateProgramLocation) Export() interface{} {
	var stateExport interface{}
	if l.State != nil {
		stateExport = l.State.Export()
	}
	return map[string]interface{}{
		"child": l.Child,
		"mode":  l.Mode.String(),
		"state": stateExport,
	}
}

// StateProgramPoint is the resumable position of a StateProgram: just
// its child's Point, since the state instance itself carries no
// resumable position of its own.
type StateProgramPoint struct {
	Child *Point
}

type command int

const (
	cmdPause command = iota
	cmdResume
	cmdHalt
)

// StateProgram mediates between a child program and a StateInstance
// Collection, the most intricate program in the tree.
type StateProgram struct {
	block  StateBlock
	master Master
	parent Program

	modeMu sync.RWMutex
	mode   StateProgramMode

	childProgram         Program
	childStopped         bool
	childStateTerminated bool

	stateInstance *state.Collection
	stateLocation state.Location

	iterator *coupledIterator
	cmds     chan command
}

// NewStateProgram constructs a StateProgram for a run of block, as
// block.NewProgram is expected to do: a program receives at
// construction its block, a reference to the master scheduler, and a
// reference to its parent program.
func NewStateProgram(block StateBlock, master Master, parent Program) *StateProgram {
	return &StateProgram{block: block, master: master, parent: parent, cmds: make(chan command, 4)}
}

func (p *StateProgram) getMode() StateProgramMode {
	p.modeMu.RLock()
	defer p.modeMu.RUnlock()
	return p.mode
}

func (p *StateProgram) setMode(m StateProgramMode) {
	p.modeMu.Lock()
	p.mode = m
	p.modeMu.Unlock()
}

// Busy implements Program.
func (p *StateProgram) Busy() bool {
	mode := p.getMode()
	if mode != StateProgramNormal && mode != StateProgramPaused {
		return true
	}
	if p.childProgram == nil {
		return true
	}
	return p.childProgram.Busy()
}

// Run implements Program, driving the state machine described in spec
// §4.6 to completion.
func (p *StateProgram) Run(ctx context.Context, initial *Point, parentStateProgram *StateProgram, stack fiberexpr.Stack, symbol *claim.Symbol) <-chan ProgramExecEvent {
	out := make(chan ProgramExecEvent)
	go p.run(ctx, initial, stack, symbol, out)
	return out
}

func (p *StateProgram) run(ctx context.Context, initial *Point, stack fiberexpr.Stack, symbol *claim.Symbol, out chan<- ProgramExecEvent) {
	defer close(out)

	p.setMode(StateProgramStarting)
	p.childStopped = false
	p.childStateTerminated = false

	childEvents := make(chan ProgramExecEvent)
	p.iterator = newCoupledIterator(childEvents)

	factories := p.block.StateFactories()
	notify := func(ev state.Event) {
		p.iterator.notify(ev)
		p.iterator.trigger()
	}
	p.stateInstance = p.master.CreateInstance(factories, notify, stack, nil, symbol)
	p.stateInstance.Prepare(false)

	p.childProgram = p.block.StateChild().NewProgram(p.master, p)
	p.setMode(StateProgramNormal)
	go p.runChild(ctx, childEvents, initial, stack, symbol)

	var previous *ProgramExecEvent
	for {
		select {
		case <-ctx.Done():
			return
		case ce, ok := <-p.iterator.out:
			if !ok {
				return
			}
			if p.step(ce, &previous, out) {
				return
			}
		case cmd := <-p.cmds:
			p.handleCommand(cmd)
		}
	}
}

func (p *StateProgram) runChild(ctx context.Context, childEvents chan<- ProgramExecEvent, initial *Point, stack fiberexpr.Stack, symbol *claim.Symbol) {
	childOut := p.childProgram.Run(ctx, initial, p, stack, symbol)
	for ev := range childOut {
		childEvents <- ev
	}
	close(childEvents)
}

// step advances the state machine by one coupled-iterator delivery,
// returning true once Halted has been reached and reported.
func (p *StateProgram) step(ce coupledEvent, previous **ProgramExecEvent, out chan<- ProgramExecEvent) bool {
	event := ce.child

	var lastLocation interface{}
	switch {
	case event != nil:
		lastLocation = event.Location
	case *previous != nil:
		lastLocation = (*previous).Location
	}

	if len(ce.stateEvents) > 0 {
		p.stateLocation = ce.stateEvents[len(ce.stateEvents)-1].Location
	}

	var stateErrors []error
	mode := p.getMode()

	if event != nil {
		*previous = event

		switch {
		case mode == StateProgramNormal && p.childStateTerminated && !event.StateTerminated:
			p.master.WriteState()
		case mode == StateProgramNormal && p.childStopped && !event.Stopped:
			p.master.WriteState()
		}

		if mode == StateProgramNormal && event.Stopped && !p.childStopped && !event.StateTerminated {
			p.master.TransferState()
			p.master.WriteState()
		}

		p.childStopped = event.Stopped
		p.childStateTerminated = event.StateTerminated

		if event.Terminated {
			if p.stateInstance.Applied() {
				p.setMode(StateProgramHaltingState)
				go p.suspendState()
				return false
			}
			p.setMode(StateProgramHalted)
		}
		lastLocation = event.Location
	}

	mode = p.getMode()

	if mode == StateProgramPausingChild && p.childStopped {
		p.setMode(StateProgramPausingState)
		go p.suspendState()
		return false
	}

	if mode == StateProgramPausingState && !p.stateInstance.Applied() {
		p.setMode(StateProgramPaused)
	}

	if mode == StateProgramHaltingState && !p.stateInstance.Applied() {
		p.setMode(StateProgramHalted)
	}

	mode = p.getMode()
	resuming := (mode == StateProgramPaused && !p.childStopped) || mode == StateProgramResuming
	if resuming {
		p.setMode(StateProgramNormal)
	}

	mode = p.getMode()
	if mode == StateProgramNormal && !p.stateInstance.Applied() {
		rec, err := p.stateInstance.Apply(resuming)
		if err != nil {
			stateErrors = append(stateErrors, err)
		} else {
			stateErrors = append(stateErrors, rec.Errors...)
			p.stateLocation = rec.Location
		}
	}

	if mode == StateProgramHalted {
		_ = p.stateInstance.Close(context.Background())
	}

	// Reported mode collapses Halted back to HaltingState for one final
	// tick, matching a rough edge units/core/src/pr1_state/parser.py
	// leaves an explicit TODO on: the Halted location should read as
	// HaltingState until the terminal event is fully flushed downstream.
	reportedMode := mode
	if mode == StateProgramHalted {
		reportedMode = StateProgramHaltingState
	}

	out <- ProgramExecEvent{
		Errors: stateErrors,
		Location: StateProgramLocation{
			Child: lastLocation,
			Mode:  reportedMode,
			State: p.stateLocation,
		},
		StateTerminated: mode == StateProgramHalted,
		Stopped:         mode == StateProgramPaused || mode == StateProgramHalted,
		Terminated:      mode == StateProgramHalted,
	}

	return mode == StateProgramHalted
}

func (p *StateProgram) suspendState() {
	rec, err := p.stateInstance.Suspend(context.Background())
	if err != nil {
		p.iterator.notify(state.Event{Settled: true})
		p.iterator.trigger()
		return
	}
	p.iterator.notify(state.Event{Settled: true, Location: rec.Location})
	p.iterator.trigger()
}

func (p *StateProgram) handleCommand(cmd command) {
	switch cmd {
	case cmdPause:
		p.setMode(StateProgramPausingChild)
		if !p.childStopped {
			_ = p.childProgram.Pause()
		} else {
			p.iterator.trigger()
		}
	case cmdResume:
		p.setMode(StateProgramResuming)
		p.CallResume()
		p.iterator.trigger()
	case cmdHalt:
		p.setMode(StateProgramHaltingChild)
		_ = p.childProgram.Halt()
	}
}

// Pause implements Program. Legal only when not busy and currently
// Normal.
func (p *StateProgram) Pause() error {
	if p.Busy() || p.getMode() != StateProgramNormal {
		return hosterr.Internalf("illegal pause() on state program in mode %s (busy=%v)", p.getMode(), p.Busy())
	}
	p.cmds <- cmdPause
	return nil
}

// Resume implements Program. Legal only when not busy and currently
// Paused.
func (p *StateProgram) Resume() error {
	if p.Busy() || p.getMode() != StateProgramPaused {
		return hosterr.Internalf("illegal resume() on state program in mode %s (busy=%v)", p.getMode(), p.Busy())
	}
	p.cmds <- cmdResume
	return nil
}

// Halt implements Program. Legal only when not busy.
func (p *StateProgram) Halt() error {
	if p.Busy() {
		return hosterr.Internalf("illegal halt() on state program while busy (mode %s)", p.getMode())
	}
	p.cmds <- cmdHalt
	return nil
}

// ImportMessage implements Program.
func (p *StateProgram) ImportMessage(msg map[string]interface{}) error {
	switch msg["type"] {
	case "pause":
		return p.Pause()
	case "resume":
		return p.Resume()
	case "halt":
		return p.Halt()
	default:
		return hosterr.Internalf("unknown message type %v", msg["type"])
	}
}

// CallResume implements Program: a Normal-mode state program simply
// transfers state ownership to itself; otherwise it re-prepares its
// state instance for resumption and forwards the notification upward.
func (p *StateProgram) CallResume() {
	if p.getMode() == StateProgramNormal {
		p.master.TransferState()
		return
	}
	p.stateInstance.Prepare(true)
	if p.parent != nil {
		p.parent.CallResume()
	} else {
		p.master.CallResume()
	}
}

// GetChild implements Program.
func (p *StateProgram) GetChild(blockKey, execKey interface{}) (Program, bool) {
	return p.childProgram, p.childProgram != nil
}
