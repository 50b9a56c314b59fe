// Package stats counts which route serviced each dispatched operation.
//
// Three routes exist: managed (the stack serviced the call), fallback (the
// stack disclaimed the descriptor and the native handle serviced it), and
// native (the call bypassed the stack entirely, e.g. socket creation outside
// the managed family). Counters are plain atomics over a map fixed at
// construction, so recording takes no locks on the dispatch path.
package stats

import (
	"sync/atomic"

	"github.com/sockgate/sockgate/native"
)

type opCounts struct {
	managed  atomic.Uint64
	fallback atomic.Uint64
	native   atomic.Uint64
}

// Counters accumulates per-operation route counts. Safe for concurrent use.
type Counters struct {
	ops   []native.Op
	byOp  map[native.Op]*opCounts
	cells []opCounts
}

// New returns counters covering the full intercepted surface.
func New() *Counters {
	ops := append(native.Ops(), native.ReadinessOps()...)
	c := &Counters{
		ops:   ops,
		byOp:  make(map[native.Op]*opCounts, len(ops)),
		cells: make([]opCounts, len(ops)),
	}
	for i, op := range ops {
		c.byOp[op] = &c.cells[i]
	}
	return c
}

// Managed records a call serviced by the managed stack.
func (c *Counters) Managed(op native.Op) {
	if cell := c.byOp[op]; cell != nil {
		cell.managed.Add(1)
	}
}

// Fallback records a call the stack disclaimed and the native handle served.
func (c *Counters) Fallback(op native.Op) {
	if cell := c.byOp[op]; cell != nil {
		cell.fallback.Add(1)
	}
}

// Native records a call that bypassed the managed stack entirely.
func (c *Counters) Native(op native.Op) {
	if cell := c.byOp[op]; cell != nil {
		cell.native.Add(1)
	}
}

// OpCounts is one operation's routes at snapshot time.
type OpCounts struct {
	Op       native.Op
	Managed  uint64
	Fallback uint64
	Native   uint64
}

// Snapshot is a point-in-time copy of every operation's counts, in surface
// order (fallback-capable operations first, then the readiness family).
type Snapshot []OpCounts

// Snapshot copies the current counts. Concurrent recording continues; the
// copy is internally consistent per counter, not across counters.
func (c *Counters) Snapshot() Snapshot {
	s := make(Snapshot, 0, len(c.ops))
	for _, op := range c.ops {
		cell := c.byOp[op]
		s = append(s, OpCounts{
			Op:       op,
			Managed:  cell.managed.Load(),
			Fallback: cell.fallback.Load(),
			Native:   cell.native.Load(),
		})
	}
	return s
}

// Totals sums the snapshot by route.
func (s Snapshot) Totals() (managed, fallback, native uint64) {
	for _, oc := range s {
		managed += oc.Managed
		fallback += oc.Fallback
		native += oc.Native
	}
	return managed, fallback, native
}

// Active filters the snapshot to operations with at least one recorded call.
func (s Snapshot) Active() Snapshot {
	out := make(Snapshot, 0, len(s))
	for _, oc := range s {
		if oc.Managed+oc.Fallback+oc.Native > 0 {
			out = append(out, oc)
		}
	}
	return out
}
