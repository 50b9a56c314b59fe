package sockgate

import (
	"runtime"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/sockgate/sockgate/errors"
	"github.com/sockgate/sockgate/internal/goid"
	"github.com/sockgate/sockgate/native"
	"github.com/sockgate/sockgate/stack"
	"github.com/sockgate/sockgate/stats"
)

// Gate states. The transition is monotonic: a gate moves Uninitialized to
// Initializing to Ready exactly once and never reverses.
const (
	gateUninitialized uint32 = iota
	gateInitializing
	gateReady
)

// Gate is the runtime context behind the dispatch surface: the one-shot
// initializer latch, the resolved native table, the registered managed
// stack, and the route counters.
//
// A process normally uses the package-level functions, which share one
// default gate; independent gates exist so tests can run the lifecycle
// repeatedly.
type Gate struct {
	state    atomic.Uint32
	starters atomic.Uint32
	initGID  atomic.Int64

	provider native.Provider
	stk      stack.Stack
	table    *native.Table
	counts   *stats.Counters
	logger   *zap.Logger
}

// Option configures a Gate at construction.
type Option func(*Gate)

// WithStack installs the managed stack, equivalent to calling Register
// before first use.
func WithStack(st stack.Stack) Option {
	return func(g *Gate) { g.stk = st }
}

// WithProvider substitutes the source of native handles. The default
// resolves against the kernel surface.
func WithProvider(p native.Provider) Option {
	return func(g *Gate) { g.provider = p }
}

// WithLogger routes this gate's bring-up diagnostics to l instead of the
// package logger.
func WithLogger(l *zap.Logger) Option {
	return func(g *Gate) { g.logger = l }
}

// New constructs an unlatched gate.
func New(opts ...Option) *Gate {
	g := &Gate{
		provider: native.UnixProvider{},
		counts:   stats.New(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Register installs st as the gate's managed stack. It must happen before
// the gate's first dispatched call and fails once the gate has latched: the
// backend cannot change under live descriptors.
func (g *Gate) Register(st stack.Stack) error {
	if st == nil {
		return errors.InvalidInput(errors.PhaseRegister, "stack cannot be nil")
	}
	if g.state.Load() != gateUninitialized {
		return errors.AlreadyInitialized("managed stack")
	}
	g.stk = st
	return nil
}

// Stats returns a point-in-time copy of the gate's route counters.
func (g *Gate) Stats() stats.Snapshot {
	return g.counts.Snapshot()
}

func (g *Gate) log() *zap.Logger {
	if g.logger != nil {
		return g.logger
	}
	return Logger()
}

// ensureInitialized is on every dispatch path. Once the gate is Ready it
// costs one atomic load, which doubles as the acquire barrier publishing the
// native table.
func (g *Gate) ensureInitialized() {
	if g.state.Load() == gateReady {
		return
	}
	g.initialize()
}

// initialize elects exactly one initializing goroutine; everyone else yields
// until Ready. Dispatches issued by the bring-up itself (the stack's startup
// traffic re-enters the layer) are recognized by goroutine id and let
// through: they run against the already-bound table and a stack that must
// answer ownership probes while starting. Waiting here instead would
// deadlock the bring-up against its own completion.
func (g *Gate) initialize() {
	gid := goid.Current()
	if g.state.Load() == gateInitializing && g.initGID.Load() == gid {
		return
	}

	// The 0->1 observer owns the bring-up.
	if g.starters.Add(1) == 1 {
		g.initGID.Store(gid)
		g.state.Store(gateInitializing)
		g.bringUp()
		g.initGID.Store(0)
		g.state.Store(gateReady)
		return
	}

	for g.state.Load() != gateReady {
		runtime.Gosched()
	}
}

// bringUp binds the full native table, then starts the managed stack, in
// that order: startup traffic needs the native handles. Failure aborts the
// process; a partially interposed process cannot honor the fallback
// contract for descriptors it no longer recognizes.
func (g *Gate) bringUp() {
	if g.stk == nil {
		g.fatal("dispatch with no managed stack", errors.NoStack())
		return
	}

	tbl, err := native.Bind(g.provider)
	if err != nil {
		g.fatal("bind native handles", err)
		return
	}
	g.table = tbl
	g.log().Debug("native handles bound", zap.Int("operations", len(native.Ops())))

	if err := g.stk.Startup(); err != nil {
		g.fatal("managed stack startup", errors.StartupFailed(err))
		return
	}
	g.log().Debug("managed stack started")
}

// fatal never returns under the default fatal hook; tests substitute a
// panic hook via WithLogger to observe this path.
func (g *Gate) fatal(msg string, err error) {
	g.log().Fatal(msg, zap.Error(err))
}

// defaultGate backs the package-level dispatch surface.
var defaultGate = New()

// Register installs the process's managed stack on the default gate. Call it
// once, before the first dispatched operation.
func Register(st stack.Stack) error {
	return defaultGate.Register(st)
}

// Stats returns a snapshot of the default gate's route counters.
func Stats() stats.Snapshot {
	return defaultGate.Stats()
}
