package runtime_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dekarrin/fiberhost/internal/claim"
	"github.com/dekarrin/fiberhost/internal/diag"
	"github.com/dekarrin/fiberhost/internal/fiberexpr"
	"github.com/dekarrin/fiberhost/internal/hosterr"
	"github.com/dekarrin/fiberhost/internal/runtime"
	"github.com/dekarrin/fiberhost/internal/state"
)

type fakeLeafProgram struct{}

func (p *fakeLeafProgram) Run(ctx context.Context, initial *runtime.Point, parentStateProgram *runtime.StateProgram, stack fiberexpr.Stack, symbol *claim.Symbol) <-chan runtime.ProgramExecEvent {
	out := make(chan runtime.ProgramExecEvent, 1)
	out <- runtime.ProgramExecEvent{Terminated: true, Stopped: true}
	close(out)
	return out
}

func (p *fakeLeafProgram) Busy() bool                                       { return false }
func (p *fakeLeafProgram) Halt() error                                      { return nil }
func (p *fakeLeafProgram) Pause() error                                     { return nil }
func (p *fakeLeafProgram) Resume() error                                    { return nil }
func (p *fakeLeafProgram) ImportMessage(msg map[string]interface{}) error   { return nil }
func (p *fakeLeafProgram) CallResume()                                     {}
func (p *fakeLeafProgram) GetChild(blockKey, execKey interface{}) (runtime.Program, bool) {
	return nil, false
}

type fakeLeafBlock struct{}

func (fakeLeafBlock) NewProgram(master runtime.Master, parent runtime.Program) runtime.Program {
	return &fakeLeafProgram{}
}

type fakeStateInstance struct {
	applied bool
}

func (f *fakeStateInstance) Prepare(resume bool) diag.Analysis { return diag.Analysis{} }

func (f *fakeStateInstance) Apply(resume bool) (state.Record, error) {
	f.applied = true
	return state.Record{}, nil
}

func (f *fakeStateInstance) Applied() bool { return f.applied }

func (f *fakeStateInstance) Suspend(ctx context.Context) (state.Record, error) {
	f.applied = false
	return state.Record{}, nil
}

func (f *fakeStateInstance) Close(ctx context.Context) error { return nil }

type fakeStateBlock struct {
	child     runtime.Block
	factories map[string]state.Factory
}

func (b *fakeStateBlock) NewProgram(master runtime.Master, parent runtime.Program) runtime.Program {
	return runtime.NewStateProgram(b, master, parent)
}

func (b *fakeStateBlock) StateChild() runtime.Block                     { return b.child }
func (b *fakeStateBlock) StateFactories() map[string]state.Factory { return b.factories }

type fakeMaster struct {
	writeCount    int
	transferCount int
}

func (m *fakeMaster) CreateInstance(factories map[string]state.Factory, notify func(state.Event), stack fiberexpr.Stack, envOrder []*fiberexpr.Env, symbol *claim.Symbol) *state.Collection {
	return state.NewCollection(factories, notify, stack, envOrder, symbol)
}

func (m *fakeMaster) WriteState()    { m.writeCount++ }
func (m *fakeMaster) TransferState() { m.transferCount++ }
func (m *fakeMaster) CallResume()    {}

func newFakeStateBlock() *fakeStateBlock {
	return &fakeStateBlock{
		child: fakeLeafBlock{},
		factories: map[string]state.Factory{
			"devices": func(notify func(state.Event), stack fiberexpr.Stack, order []*fiberexpr.Env, symbol *claim.Symbol) state.Instance {
				return &fakeStateInstance{}
			},
		},
	}
}

func TestStateProgram_RunsToHaltedAfterChildTerminates(t *testing.T) {
	block := newFakeStateBlock()
	master := &fakeMaster{}
	sp := runtime.NewStateProgram(block, master, nil)

	arena := claim.NewArena()
	events := sp.Run(context.Background(), nil, nil, fiberexpr.NewStack(), arena.Root())

	var last runtime.ProgramExecEvent
	count := 0
	for ev := range events {
		last = ev
		count++
	}

	require.Greater(t, count, 0)
	assert.True(t, last.Terminated)
	assert.True(t, last.StateTerminated)
}

func TestStateProgram_PauseBeforeNormalIsIllegal(t *testing.T) {
	block := newFakeStateBlock()
	master := &fakeMaster{}
	sp := runtime.NewStateProgram(block, master, nil)

	err := sp.Pause()
	require.Error(t, err)

	kind, ok := hosterr.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, hosterr.Internal, kind)
}
