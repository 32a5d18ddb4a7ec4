package state

import (
	"context"
	"sort"

	"github.com/dekarrin/fiberhost/internal/claim"
	"github.com/dekarrin/fiberhost/internal/diag"
	"github.com/dekarrin/fiberhost/internal/fiberexpr"
)

// Collection fans every lifecycle call out across the state instances
// of each namespace attached to a state-wrapped block, and aggregates
// their Records into one: multiple state instances of different
// namespaces coexist in a Collection, which fans out each lifecycle
// call and aggregates records.
type Collection struct {
	instances map[string]Instance
	order     []string
}

// NewCollection constructs one Instance per entry in factories, each
// wired to forward its Events to notify tagged with its own namespace.
func NewCollection(factories map[string]Factory, notify func(Event), stack fiberexpr.Stack, envOrder []*fiberexpr.Env, symbol *claim.Symbol) *Collection {
	c := &Collection{instances: make(map[string]Instance, len(factories))}
	for ns := range factories {
		c.order = append(c.order, ns)
	}
	sort.Strings(c.order)

	for _, ns := range c.order {
		namespace := ns
		wrapped := func(ev Event) {
			ev.Namespace = namespace
			notify(ev)
		}
		c.instances[ns] = factories[ns](wrapped, stack, envOrder, symbol)
	}
	return c
}

// Prepare fans Prepare(resume) out across every instance and merges their
// analyses.
func (c *Collection) Prepare(resume bool) diag.Analysis {
	var out diag.Analysis
	for _, ns := range c.order {
		out = out.Merge(c.instances[ns].Prepare(resume))
	}
	return out
}

// Apply fans Apply(resume) out and aggregates the resulting Records into
// one, whose Location is a collectionLocation keyed by namespace.
func (c *Collection) Apply(resume bool) (Record, error) {
	loc := make(collectionLocation, len(c.order))
	var errs []error
	for _, ns := range c.order {
		rec, err := c.instances[ns].Apply(resume)
		if err != nil {
			return Record{}, err
		}
		loc[ns] = rec.Location
		errs = append(errs, rec.Errors...)
	}
	return Record{Location: loc, Errors: errs}, nil
}

// Applied reports whether every instance currently holds its
// reservations.
func (c *Collection) Applied() bool {
	for _, ns := range c.order {
		if !c.instances[ns].Applied() {
			return false
		}
	}
	return true
}

// Suspend fans Suspend out and aggregates the resulting Records.
func (c *Collection) Suspend(ctx context.Context) (Record, error) {
	loc := make(collectionLocation, len(c.order))
	var errs []error
	for _, ns := range c.order {
		rec, err := c.instances[ns].Suspend(ctx)
		if err != nil {
			return Record{}, err
		}
		loc[ns] = rec.Location
		errs = append(errs, rec.Errors...)
	}
	return Record{Location: loc, Errors: errs}, nil
}

// Close fans Close out across every instance, returning the first error
// encountered (if any) after attempting all of them.
func (c *Collection) Close(ctx context.Context) error {
	var first error
	for _, ns := range c.order {
		if err := c.instances[ns].Close(ctx); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// collectionLocation is the aggregate Location a Collection reports,
// namespace name to that namespace's own Location.
type collectionLocation map[string]Location

// Export implements Location.
func (l collectionLocation) Export() interface{} {
	out := make(map[string]interface{}, len(l))
	for ns, loc := range l {
		if loc == nil {
			out[ns] = nil
			continue
		}
		out[ns] = loc.Export()
	}
	return out
}
