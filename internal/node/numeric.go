package node

import (
	"context"
	"sync"

	"github.com/dekarrin/fiberhost/internal/fiberexpr"
	"github.com/dekarrin/fiberhost/internal/hosterr"
)

// NumericNode is a Node carrying a unit-bearing scalar: a dtype, a
// fixed Unit, an optional scaling Factor applied to raw device reads,
// and optional Min/Max bounds enforced on write (see
// host/pr1/devices/nodes/numeric.py for the reference behavior).
type NumericNode struct {
	path   []string
	Unit   string
	Factor float64
	Min    *fiberexpr.Quantity
	Max    *fiberexpr.Quantity

	mu        sync.Mutex
	value     fiberexpr.Quantity
	settled   bool
	writable  bool
	writeFunc func(ctx context.Context, q fiberexpr.Quantity) error

	watchMu  sync.Mutex
	watchers map[int]func(Value)
	nextID   int
}

// NewNumericNode constructs a read-only numeric node at path with the
// given unit. Use SetWriter to make it writable.
func NewNumericNode(path []string, unit string, factor float64) *NumericNode {
	if factor == 0 {
		factor = 1.0
	}
	q, _ := fiberexpr.NewQuantity(0, unit)
	return &NumericNode{
		path:     path,
		Unit:     unit,
		Factor:   factor,
		value:    q,
		watchers: make(map[int]func(Value)),
	}
}

// SetWriter makes the node writable, delegating validated writes to fn.
func (n *NumericNode) SetWriter(fn func(ctx context.Context, q fiberexpr.Quantity) error) {
	n.writable = true
	n.writeFunc = fn
}

// Path implements Node.
func (n *NumericNode) Path() []string { return n.path }

// Kind implements Node.
func (n *NumericNode) Kind() Kind { return KindNumeric }

// Writable implements Node.
func (n *NumericNode) Writable() bool { return n.writable }

// Value implements Node.
func (n *NumericNode) Value() Value {
	n.mu.Lock()
	defer n.mu.Unlock()
	return Value{Numeric: n.value.Magnitude, Unit: n.value.Unit, Settled: n.settled}
}

// Watch implements Node.
func (n *NumericNode) Watch(ctx context.Context, fn func(Value)) WatchHandle {
	n.watchMu.Lock()
	id := n.nextID
	n.nextID++
	n.watchers[id] = fn
	n.watchMu.Unlock()

	h := &watchHandle{cancel: func() {
		n.watchMu.Lock()
		delete(n.watchers, id)
		n.watchMu.Unlock()
	}}

	go func() {
		<-ctx.Done()
		h.Cancel()
	}()

	return h
}

type watchHandle struct {
	once   sync.Once
	cancel func()
}

func (h *watchHandle) Cancel() {
	h.once.Do(h.cancel)
}

// update normalizes a raw device read into the node's value, the Go
// equivalent of _read: the raw reading is scaled by Factor and settled
// tracks whether the device reports the value as still in motion.
func (n *NumericNode) update(raw float64, settled bool) {
	n.mu.Lock()
	n.value = fiberexpr.Quantity{Magnitude: raw * n.Factor, Unit: n.Unit}
	n.settled = settled
	v := Value{Numeric: n.value.Magnitude, Unit: n.value.Unit, Settled: settled}
	n.mu.Unlock()

	n.watchMu.Lock()
	fns := make([]func(Value), 0, len(n.watchers))
	for _, fn := range n.watchers {
		fns = append(fns, fn)
	}
	n.watchMu.Unlock()
	for _, fn := range fns {
		fn(v)
	}
}

// Update is the test/simulation entry point a harness uses to push a new
// reading through the node, as a real device driver's polling loop would.
func (n *NumericNode) Update(raw float64, settled bool) {
	n.update(raw, settled)
}

// WriteQuantity validates q against Unit and the Min/Max bounds before
// delegating to the configured write function, mirroring write_quantity's
// unit-compatibility and bounds checks.
func (n *NumericNode) WriteQuantity(ctx context.Context, q fiberexpr.Quantity) error {
	if !n.writable {
		return hosterr.New(hosterr.Runtime, "node is not writable: "+joinPath(n.path))
	}
	if _, err := q.Add(fiberexpr.Quantity{Unit: n.Unit}); err != nil {
		return hosterr.Wrap(hosterr.Runtime, "incompatible unit for "+joinPath(n.path), err)
	}
	if n.Min != nil {
		if c, err := q.Compare(*n.Min); err == nil && c < 0 {
			return hosterr.New(hosterr.Runtime, "value below minimum for "+joinPath(n.path))
		}
	}
	if n.Max != nil {
		if c, err := q.Compare(*n.Max); err == nil && c > 0 {
			return hosterr.New(hosterr.Runtime, "value above maximum for "+joinPath(n.path))
		}
	}
	return n.writeFunc(ctx, q)
}

// Write implements Writable, accepting the generic node Value shape and
// routing it through WriteQuantity.
func (n *NumericNode) Write(ctx context.Context, v Value) error {
	return n.WriteQuantity(ctx, fiberexpr.Quantity{Magnitude: v.Numeric, Unit: n.Unit})
}
