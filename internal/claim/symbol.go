// Package claim implements the hierarchical claim-symbol arena and
// per-node claim registry used to arbitrate exclusive ownership of
// resource nodes.
package claim

import (
	"sync"

	"github.com/google/uuid"
)

// Arena issues Symbols for one top-level program run. Symbols allocated
// from different Arenas are never compared; the Arena's UUID tags every
// Symbol derived from it purely for diagnostics and audit-log
// correlation. Internally it is an arena of nodes keyed by
// {parent_index, counter}.
type Arena struct {
	ID uuid.UUID

	mu       sync.Mutex
	counters map[string]int
}

// NewArena allocates a fresh arena, one per top-level block-program run.
func NewArena() *Arena {
	return &Arena{ID: uuid.New(), counters: make(map[string]int)}
}

// Root returns the arena's root Symbol, the ancestor of every Symbol
// this arena will ever derive.
func (a *Arena) Root() *Symbol {
	return &Symbol{arena: a}
}

// Symbol is a node in the arena's hierarchy: a path of
// monotonically-increasing counters from the arena root. Each program
// derives its symbol from its parent's, extended with a monotonically
// increasing counter.
type Symbol struct {
	arena *Arena
	path  []int
}

// Derive allocates a new child Symbol under s, with a counter one higher
// than any previously derived from s — the Go equivalent of a program
// creating a child program's claim symbol from its own.
func (s *Symbol) Derive() *Symbol {
	key := pathKey(s.path)

	s.arena.mu.Lock()
	n := s.arena.counters[key]
	s.arena.counters[key] = n + 1
	s.arena.mu.Unlock()

	child := make([]int, len(s.path)+1)
	copy(child, s.path)
	child[len(s.path)] = n
	return &Symbol{arena: s.arena, path: child}
}

func pathKey(path []int) string {
	b := make([]byte, 0, len(path)*4)
	for _, n := range path {
		b = append(b, byte(n>>24), byte(n>>16), byte(n>>8), byte(n))
	}
	return string(b)
}

// isAncestorOf reports whether s's path is a strict prefix of other's,
// meaning s is an outer scope containing other.
func (s *Symbol) isAncestorOf(other *Symbol) bool {
	if len(s.path) >= len(other.path) {
		return false
	}
	for i, v := range s.path {
		if other.path[i] != v {
			return false
		}
	}
	return true
}

// Dominates reports whether s takes priority over other when both
// attempt to claim the same node: an outer scope always dominates
// anything nested within it, regardless of creation order; among
// symbols in unrelated subtrees, the one whose branch diverged later
// (the more recently created sibling lineage, and not a descendant of
// s) dominates.
func (s *Symbol) Dominates(other *Symbol) bool {
	if s == other {
		return false
	}
	if s.isAncestorOf(other) {
		return true
	}
	if other.isAncestorOf(s) {
		return false
	}

	n := len(s.path)
	if len(other.path) < n {
		n = len(other.path)
	}
	for i := 0; i < n; i++ {
		if s.path[i] != other.path[i] {
			return s.path[i] > other.path[i]
		}
	}
	return len(s.path) > len(other.path)
}
