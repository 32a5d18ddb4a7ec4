package state

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dekarrin/fiberhost/internal/claim"
	"github.com/dekarrin/fiberhost/internal/diag"
	"github.com/dekarrin/fiberhost/internal/fiberexpr"
)

type fakeLocation struct{ v int }

func (l fakeLocation) Export() interface{} { return l.v }

type fakeInstance struct {
	applied bool
	notify  func(Event)
}

func (f *fakeInstance) Prepare(resume bool) diag.Analysis { return diag.Analysis{} }

func (f *fakeInstance) Apply(resume bool) (Record, error) {
	f.applied = true
	f.notify(Event{Settled: true, Location: fakeLocation{v: 1}})
	return Record{Location: fakeLocation{v: 1}}, nil
}

func (f *fakeInstance) Applied() bool { return f.applied }

func (f *fakeInstance) Suspend(ctx context.Context) (Record, error) {
	f.applied = false
	return Record{Location: fakeLocation{v: 2}}, nil
}

func (f *fakeInstance) Close(ctx context.Context) error { return nil }

func TestCollection_FansOutAcrossNamespaces(t *testing.T) {
	var events []Event
	notify := func(ev Event) { events = append(events, ev) }

	factories := map[string]Factory{
		"devices": func(notify func(Event), stack fiberexpr.Stack, order []*fiberexpr.Env, symbol *claim.Symbol) Instance {
			return &fakeInstance{notify: notify}
		},
		"record": func(notify func(Event), stack fiberexpr.Stack, order []*fiberexpr.Env, symbol *claim.Symbol) Instance {
			return &fakeInstance{notify: notify}
		},
	}

	arena := claim.NewArena()
	c := NewCollection(factories, notify, fiberexpr.NewStack(), nil, arena.Root())

	require.False(t, c.Applied())

	rec, err := c.Apply(false)
	require.NoError(t, err)
	require.True(t, c.Applied())

	loc, ok := rec.Location.(collectionLocation)
	require.True(t, ok)
	assert.Len(t, loc, 2)

	require.Len(t, events, 2)
	for _, ev := range events {
		assert.True(t, ev.Settled)
		assert.Contains(t, []string{"devices", "record"}, ev.Namespace)
	}

	_, err = c.Suspend(context.Background())
	require.NoError(t, err)
	assert.False(t, c.Applied())
}
