package runtime

import "github.com/dekarrin/fiberhost/internal/state"

// coupledEvent is one delivery from a coupledIterator: the child event
// that triggered it (nil if the delivery was an external trigger with no
// new child event), and every state.Event observed since the previous
// delivery.
type coupledEvent struct {
	child       *ProgramExecEvent
	stateEvents []state.Event
}

// coupledIterator joins a program's child-event stream with its state
// instance's notify callbacks into the (child_event, state_events)
// tuples the state-program state machine advances on, and can also be
// stepped externally via trigger, which delivers (nil, nil) with no
// new child event.
type coupledIterator struct {
	out chan coupledEvent

	stateCh   chan state.Event
	triggerCh chan struct{}
}

// newCoupledIterator starts pumping childEvents (closed when the child
// program terminates) into out, batching any state events buffered via
// notify since the last delivery.
func newCoupledIterator(childEvents <-chan ProgramExecEvent) *coupledIterator {
	ci := &coupledIterator{
		out:       make(chan coupledEvent),
		stateCh:   make(chan state.Event, 64),
		triggerCh: make(chan struct{}, 1),
	}
	go ci.pump(childEvents)
	return ci
}

func (ci *coupledIterator) pump(childEvents <-chan ProgramExecEvent) {
	var buf []state.Event
	drain := func() []state.Event {
		for {
			select {
			case ev := <-ci.stateCh:
				buf = append(buf, ev)
			default:
				out := buf
				buf = nil
				return out
			}
		}
	}

	for {
		select {
		case ev, ok := <-childEvents:
			if !ok {
				close(ci.out)
				return
			}
			e := ev
			ci.out <- coupledEvent{child: &e, stateEvents: drain()}
		case sv := <-ci.stateCh:
			buf = append(buf, sv)
		case <-ci.triggerCh:
			ci.out <- coupledEvent{child: nil, stateEvents: drain()}
		}
	}
}

// notify buffers a state event for delivery with the next child event or
// trigger.
func (ci *coupledIterator) notify(ev state.Event) {
	ci.stateCh <- ev
}

// trigger steps the iterator without a new child event, delivering any
// buffered state events immediately.
func (ci *coupledIterator) trigger() {
	select {
	case ci.triggerCh <- struct{}{}:
	default:
	}
}
