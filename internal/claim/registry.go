package claim

import (
	"sort"
	"sync"
)

// Claim is a handle to a (possibly not yet active) reservation of a
// node. Callers wait on Granted to learn when they become the active
// holder, and on Preempted to learn when a higher-priority Symbol has
// asked them to release: the preempted holder is notified and is
// expected to transition to a state where the claim can be released.
type Claim struct {
	Symbol *Symbol
	NodeID string

	registry  *Registry
	granted   chan struct{}
	preempted chan struct{}

	mu       sync.Mutex
	isActive bool
	released bool
}

// Granted returns a channel closed the moment this claim becomes the
// active holder of its node.
func (c *Claim) Granted() <-chan struct{} { return c.granted }

// Preempted returns a channel closed when a dominating Symbol has
// requested this claim release the node. The channel never fires if the
// claim is released voluntarily first.
func (c *Claim) Preempted() <-chan struct{} { return c.preempted }

// Active reports whether c currently holds the node.
func (c *Claim) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.isActive
}

// Release gives up the claim, transferring the node to the
// highest-priority waiter if any.
func (c *Claim) Release() {
	c.mu.Lock()
	if c.released {
		c.mu.Unlock()
		return
	}
	c.released = true
	c.mu.Unlock()

	c.registry.release(c)
}

type nodeState struct {
	mu      sync.Mutex
	active  *Claim
	waiters []*Claim
}

// Registry tracks, per node id, the active claim and its order-served
// waiters.
type Registry struct {
	mu    sync.Mutex
	nodes map[string]*nodeState
}

// NewRegistry returns an empty claim registry, typically one per host
// process since node ids are assumed globally unique across running
// protocols.
func NewRegistry() *Registry {
	return &Registry{nodes: make(map[string]*nodeState)}
}

func (r *Registry) stateFor(nodeID string) *nodeState {
	r.mu.Lock()
	defer r.mu.Unlock()
	st, ok := r.nodes[nodeID]
	if !ok {
		st = &nodeState{}
		r.nodes[nodeID] = st
	}
	return st
}

// Claim attempts to reserve nodeID under symbol. The returned Claim may
// not be immediately active; the caller must select on Granted() before
// treating the node as reserved.
func (r *Registry) Claim(nodeID string, symbol *Symbol) *Claim {
	c := &Claim{
		Symbol:    symbol,
		NodeID:    nodeID,
		registry:  r,
		granted:   make(chan struct{}),
		preempted: make(chan struct{}),
	}

	st := r.stateFor(nodeID)
	st.mu.Lock()
	defer st.mu.Unlock()

	switch {
	case st.active == nil:
		st.active = c
		c.isActive = true
		close(c.granted)
	case symbol.Dominates(st.active.Symbol):
		notifyPreempted(st.active)
		insertWaiter(st, c)
	default:
		insertWaiter(st, c)
	}

	return c
}

func notifyPreempted(c *Claim) {
	select {
	case <-c.preempted:
	default:
		close(c.preempted)
	}
}

// insertWaiter inserts c into st.waiters in dominance order, highest
// priority first, so release always promotes waiters[0].
func insertWaiter(st *nodeState, c *Claim) {
	st.waiters = append(st.waiters, c)
	sort.SliceStable(st.waiters, func(i, j int) bool {
		return st.waiters[i].Symbol.Dominates(st.waiters[j].Symbol)
	})
}

func (r *Registry) release(c *Claim) {
	st := r.stateFor(c.NodeID)
	st.mu.Lock()
	defer st.mu.Unlock()

	if st.active == c {
		st.active = nil
		if len(st.waiters) > 0 {
			next := st.waiters[0]
			st.waiters = st.waiters[1:]
			st.active = next
			next.mu.Lock()
			next.isActive = true
			next.mu.Unlock()
			close(next.granted)
		}
		return
	}

	for i, w := range st.waiters {
		if w == c {
			st.waiters = append(st.waiters[:i], st.waiters[i+1:]...)
			return
		}
	}
}
