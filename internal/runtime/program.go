// Package runtime implements the block-program execution model: the
// Program contract every block type's companion program satisfies, the
// master scheduler's collaborator surface, and the state-wrapped
// block's state machine.
package runtime

import (
	"context"

	"github.com/dekarrin/fiberhost/internal/claim"
	"github.com/dekarrin/fiberhost/internal/fiberexpr"
	"github.com/dekarrin/fiberhost/internal/state"
)

// ProgramExecEvent is one step of a program's execution stream. A
// program's run must terminate after emitting exactly one event with
// Terminated set.
type ProgramExecEvent struct {
	Errors          []error
	Location        interface{}
	StateTerminated bool
	Stopped         bool
	Terminated      bool
}

// Inherit returns a copy of e with the given fields overridden, the
// convenience used when a wrapping program re-emits a child event with
// its own location.
func (e ProgramExecEvent) Inherit(errors []error, location interface{}, stateTerminated, stopped, terminated bool) ProgramExecEvent {
	return ProgramExecEvent{
		Errors:          errors,
		Location:        location,
		StateTerminated: stateTerminated,
		Stopped:         stopped,
		Terminated:      terminated,
	}
}

// Block is implemented by every compiled block variant; NewProgram
// constructs the companion Program for a run of that block.
type Block interface {
	NewProgram(master Master, parent Program) Program
}

// Exporter is implemented by a Block that can render its compiled
// static shape as the protocol export tree: namespace plus
// namespace-specific fields. Not every Block needs to implement it; a
// block with nothing to export (a bare test double, for instance) is
// simply omitted from the exported tree.
type Exporter interface {
	Export() map[string]interface{}
}

// StateBlock is a Block wrapping a child block with one namespace's
// worth of state per the attached BlockState. It is implemented by
// internal/fiber's state-wrapped block variant.
type StateBlock interface {
	Block
	StateChild() Block
	StateFactories() map[string]state.Factory
}

// Program is the contract every block type's companion program
// satisfies.
type Program interface {
	// Run drives execution to completion, emitting ProgramExecEvents
	// until exactly one with Terminated=true, after which the channel is
	// closed.
	Run(ctx context.Context, initial *Point, parentStateProgram *StateProgram, stack fiberexpr.Stack, symbol *claim.Symbol) <-chan ProgramExecEvent

	// Busy reports whether the program is mid-transition and cannot
	// legally accept Pause/Resume/Halt right now.
	Busy() bool

	// Halt requests termination. Legal only when Busy() is false.
	Halt() error

	// Pause and Resume are legal only in specific modes; illegal calls
	// return an Internal-kind error rather than silently no-opping.
	Pause() error
	Resume() error

	// ImportMessage deserializes a client-driven command.
	ImportMessage(msg map[string]interface{}) error

	// CallResume is the upward notification that a descendant resumed;
	// the default behavior forwards to the parent.
	CallResume()

	// GetChild resolves a child program for external addressing.
	GetChild(blockKey, execKey interface{}) (Program, bool)
}

// Master is the scheduler-side collaborator every Program is
// constructed with a reference to.
type Master interface {
	// CreateInstance builds the StateInstanceCollection for a
	// state-wrapped block's run.
	CreateInstance(factories map[string]state.Factory, notify func(state.Event), stack fiberexpr.Stack, envOrder []*fiberexpr.Env, symbol *claim.Symbol) *state.Collection

	// WriteState persists the current aggregate state location (e.g. to
	// the audit store); called when a descendant's state slot changes
	// ownership without the state itself changing.
	WriteState()

	// TransferState reassigns ownership of the nearest ancestor state
	// slot, called when a descendant pauses or resumes independently of
	// its parent state program.
	TransferState()

	// CallResume is invoked when CallResume reaches the root of the
	// program tree (a program whose parent is the master itself).
	CallResume()
}
