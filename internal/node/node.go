// Package node defines the resource-node interface every device unit
// parses against — a node tree with read/write/subscribe — and a
// concrete in-memory implementation used by tests and by the reference
// host when no real device driver is attached. Real device drivers are
// explicitly out of scope; this package only needs to give the block
// runtime something to watch, read, and write.
package node

import (
	"context"
	"sync"

	"github.com/dekarrin/fiberhost/internal/hosterr"
)

// Kind tags what shape of value a Node carries.
type Kind int

const (
	KindNumeric Kind = iota
	KindBoolean
	KindEnum
)

// Value is the present reading of a Node, together with whether it is
// still settling toward steady state.
type Value struct {
	Numeric float64
	Unit    string
	Boolean bool
	Enum    string
	Settled bool
}

// WatchHandle is returned by Watch and cancels the subscription when
// closed, matching the "cancellable watch handles" requirement.
type WatchHandle interface {
	Cancel()
}

// Node is the minimal external collaborator contract the runtime needs
// from a device's resource tree: current value, change notification, and
// (for writable nodes) a write operation.
type Node interface {
	Path() []string
	Kind() Kind
	Writable() bool
	Value() Value
	// Watch registers fn to be called on every value change until the
	// returned handle is cancelled or ctx is done.
	Watch(ctx context.Context, fn func(Value)) WatchHandle
}

// Writable is implemented by nodes that accept writes.
type Writable interface {
	Node
	Write(ctx context.Context, v Value) error
}

// Tree resolves dotted node paths to concrete Nodes.
type Tree interface {
	Find(path []string) (Node, bool)
}

// MissingNodeError reports a record/device-state reference to a path
// with no corresponding Node, produced at compile time: a record-state
// block observing a nonexistent node path leaves protocol=null rather
// than starting a run against a dangling reference.
type MissingNodeError struct {
	Path []string
}

func (e *MissingNodeError) Error() string {
	return "no such node: " + joinPath(e.Path)
}

func joinPath(path []string) string {
	out := ""
	for i, p := range path {
		if i > 0 {
			out += "."
		}
		out += p
	}
	return out
}

// InMemoryTree is a Tree backed by a flat map, suitable for tests and
// for running protocols against simulated devices.
type InMemoryTree struct {
	mu    sync.RWMutex
	nodes map[string]Node
}

// NewInMemoryTree returns an empty tree.
func NewInMemoryTree() *InMemoryTree {
	return &InMemoryTree{nodes: make(map[string]Node)}
}

// Register adds n to the tree under its own Path.
func (t *InMemoryTree) Register(n Node) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.nodes[joinPath(n.Path())] = n
}

// Find implements Tree.
func (t *InMemoryTree) Find(path []string) (Node, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	n, ok := t.nodes[joinPath(path)]
	return n, ok
}

// Resolve is a convenience wrapper returning a *hosterr.Error of Runtime
// kind shaped like MissingNodeError when the path is unresolvable.
func Resolve(tree Tree, path []string) (Node, error) {
	n, ok := tree.Find(path)
	if !ok {
		return nil, hosterr.Wrap(hosterr.Runtime, "", &MissingNodeError{Path: path})
	}
	return n, nil
}
