// Package scheduler drives one block-program run end to end: it builds
// the root Program from a compiled Block, owns the run's claim arena,
// and fans the resulting ProgramExecEvent stream out to every
// subscriber (the bridge's streamed client connections, the audit
// store).
package scheduler

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/dekarrin/fiberhost/internal/claim"
	"github.com/dekarrin/fiberhost/internal/fiberexpr"
	"github.com/dekarrin/fiberhost/internal/runtime"
	"github.com/dekarrin/fiberhost/internal/state"
)

// Master is the root-level runtime.Master for one run. Its claim arena
// roots every state instance's reservation symbols for the run; it has
// nothing above it in the program tree to forward WriteState,
// TransferState, or CallResume to, so those hooks are legitimately
// no-ops here, the same stance the fakeMaster test doubles across
// internal/fiber and internal/units/timer already take — a root
// master really does have no further ancestor to notify.
type Master struct {
	arena *claim.Arena
}

// NewMaster allocates a fresh run's root Master with its own claim
// arena: one arena per top-level block-program run.
func NewMaster() *Master {
	return &Master{arena: claim.NewArena()}
}

// Root returns the arena's root claim Symbol, the starting point for
// the run's top-level program.
func (m *Master) Root() *claim.Symbol { return m.arena.Root() }

func (m *Master) CreateInstance(factories map[string]state.Factory, notify func(state.Event), stack fiberexpr.Stack, envOrder []*fiberexpr.Env, symbol *claim.Symbol) *state.Collection {
	return state.NewCollection(factories, notify, stack, envOrder, symbol)
}

func (m *Master) WriteState()    {}
func (m *Master) TransferState() {}
func (m *Master) CallResume()    {}

// Run is one in-flight execution of a compiled protocol's root block.
type Run struct {
	ID      uuid.UUID
	DraftID uuid.UUID

	master  *Master
	program runtime.Program
	cancel  context.CancelFunc

	mu   sync.Mutex
	subs []chan runtime.ProgramExecEvent
}

// Start builds the root program for root and begins driving it in a
// background goroutine, invoking sink for every event in arrival order
// (sink may be nil) and broadcasting the same event to every channel
// returned by Subscribe. The run's context is derived from ctx; Stop
// cancels it, which halts the program tree via the same mechanism an
// external SIGINT handler would use to set a stop event.
func Start(ctx context.Context, runID, draftID uuid.UUID, root runtime.Block, sink func(seq int, ev runtime.ProgramExecEvent)) *Run {
	runCtx, cancel := context.WithCancel(ctx)
	master := NewMaster()
	program := root.NewProgram(master, nil)

	r := &Run{
		ID:      runID,
		DraftID: draftID,
		master:  master,
		program: program,
		cancel:  cancel,
	}

	events := program.Run(runCtx, nil, nil, fiberexpr.NewStack(), master.Root())
	go r.pump(events, sink)
	return r
}

func (r *Run) pump(events <-chan runtime.ProgramExecEvent, sink func(int, runtime.ProgramExecEvent)) {
	seq := 0
	for ev := range events {
		if sink != nil {
			sink(seq, ev)
		}
		r.broadcast(ev)
		seq++
	}

	r.mu.Lock()
	for _, ch := range r.subs {
		close(ch)
	}
	r.subs = nil
	r.mu.Unlock()
}

func (r *Run) broadcast(ev runtime.ProgramExecEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ch := range r.subs {
		select {
		case ch <- ev:
		default:
			// a slow subscriber misses events rather than stalling the
			// run; the audit store's sink is the durable record.
		}
	}
}

// Subscribe returns a channel of every event from this point forward,
// closed once the run terminates.
func (r *Run) Subscribe() <-chan runtime.ProgramExecEvent {
	ch := make(chan runtime.ProgramExecEvent, 16)
	r.mu.Lock()
	r.subs = append(r.subs, ch)
	r.mu.Unlock()
	return ch
}

// Pause, Resume, and Halt forward the client command to the root
// program.
func (r *Run) Pause() error  { return r.program.Pause() }
func (r *Run) Resume() error { return r.program.Resume() }
func (r *Run) Halt() error   { return r.program.Halt() }

// ImportMessage deserializes and applies a client-driven command of
// shape {type: "pause"|"resume"|"halt", ...}.
func (r *Run) ImportMessage(msg map[string]interface{}) error {
	return r.program.ImportMessage(msg)
}

// Stop cancels the run's context, the uniform mechanism for tearing
// down a run the bridge is no longer willing to host (client
// disconnect, server shutdown).
func (r *Run) Stop() { r.cancel() }

// Registry tracks every live Run by ID so the bridge can address a
// run's commands and event stream across separate HTTP requests.
type Registry struct {
	mu   sync.RWMutex
	runs map[uuid.UUID]*Run
}

// NewRegistry constructs an empty run Registry.
func NewRegistry() *Registry {
	return &Registry{runs: make(map[uuid.UUID]*Run)}
}

// Add registers r under its own ID.
func (reg *Registry) Add(r *Run) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	reg.runs[r.ID] = r
}

// Get looks up a previously-registered run by ID.
func (reg *Registry) Get(id uuid.UUID) (*Run, bool) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	r, ok := reg.runs[id]
	return r, ok
}

// Remove drops a run from the registry, called once it has terminated.
func (reg *Registry) Remove(id uuid.UUID) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	delete(reg.runs, id)
}
