// Package state implements the state-instance lifecycle a state-wrapped
// block drives its attached namespaces through: prepare, apply, zero
// or more notify callbacks, suspend, close.
package state

import (
	"context"

	"github.com/dekarrin/fiberhost/internal/claim"
	"github.com/dekarrin/fiberhost/internal/diag"
	"github.com/dekarrin/fiberhost/internal/fiberexpr"
)

// Location is whatever snapshot shape a namespace's instance wants to
// report back from Apply/Suspend; it only needs to be exportable for the
// audit/bridge layers.
type Location interface {
	Export() interface{}
}

// Event is delivered to an instance's notify callback any number of
// times between Apply and the next Suspend; Settled mirrors the original
// implementation's steady-state flag.
type Event struct {
	Namespace string
	Settled   bool
	Location  Location
}

// Record is returned by Apply and Suspend: a location snapshot plus any
// errors observed while transitioning.
type Record struct {
	Location Location
	Errors   []error
}

// Instance is one namespace's state-wrapped behavior: reserving nodes,
// registering watches, starting timers, and reporting its current
// location back to the owning StateProgram.
type Instance interface {
	// Prepare validates the configured state against live resource
	// topology. Failure here is fatal to instance creation but not to
	// the surrounding compile step.
	Prepare(resume bool) diag.Analysis

	// Apply registers watches/reservations/timers and returns an initial
	// location snapshot. Called again with resume=true after a prior
	// Suspend on the same configuration, which the instance must
	// tolerate.
	Apply(resume bool) (Record, error)

	// Applied reports whether the instance currently holds its
	// reservations (i.e. Apply has run more recently than Suspend).
	Applied() bool

	// Suspend releases watches/reservations and returns a final Record.
	Suspend(ctx context.Context) (Record, error)

	// Close performs any terminal flush (e.g. writing accumulated rows).
	// After Close the instance is terminal and must not be reused.
	Close(ctx context.Context) error
}

// Factory constructs one namespace's Instance, given the callback it
// should invoke on every subsequent Event and the evaluation context its
// embedded expressions resolve against.
type Factory func(notify func(Event), stack fiberexpr.Stack, envOrder []*fiberexpr.Env, symbol *claim.Symbol) Instance
