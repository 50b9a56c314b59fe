package sockgate

import (
	"golang.org/x/sys/unix"

	"github.com/sockgate/sockgate/native"
)

// The readiness-multiplexing family routes to the managed stack
// unconditionally: one multiplexing handle may watch descriptors owned by
// either backend, and only the stack is required to understand both.
// Splitting the family across backends has no coherent semantics, so no
// fallback exists here and the sentinel is not consulted.

// Select waits for readiness across descriptor sets.
func (g *Gate) Select(nfd int, r, w, e *unix.FdSet, timeout *unix.Timeval) (int, error) {
	g.ensureInitialized()
	g.counts.Managed(native.OpSelect)
	return g.stk.Select(nfd, r, w, e, timeout)
}

// EpollCreate creates a multiplexing handle. The size argument is vestigial
// but kept for surface compatibility.
func (g *Gate) EpollCreate(size int) (int, error) {
	g.ensureInitialized()
	g.counts.Managed(native.OpEpollCreate)
	return g.stk.EpollCreate(size)
}

// EpollCreate1 creates a multiplexing handle with flags.
func (g *Gate) EpollCreate1(flags int) (int, error) {
	g.ensureInitialized()
	g.counts.Managed(native.OpEpollCreate1)
	return g.stk.EpollCreate1(flags)
}

// EpollCtl registers, modifies, or removes a watched descriptor.
func (g *Gate) EpollCtl(epfd, op, fd int, event *unix.EpollEvent) error {
	g.ensureInitialized()
	g.counts.Managed(native.OpEpollCtl)
	return g.stk.EpollCtl(epfd, op, fd, event)
}

// EpollWait blocks until watched descriptors are ready or msec elapses.
func (g *Gate) EpollWait(epfd int, events []unix.EpollEvent, msec int) (int, error) {
	g.ensureInitialized()
	g.counts.Managed(native.OpEpollWait)
	return g.stk.EpollWait(epfd, events, msec)
}

// EpollPwait is EpollWait with a signal mask swapped in for the wait.
func (g *Gate) EpollPwait(epfd int, events []unix.EpollEvent, msec int, sigmask *unix.Sigset_t) (int, error) {
	g.ensureInitialized()
	g.counts.Managed(native.OpEpollPwait)
	return g.stk.EpollPwait(epfd, events, msec, sigmask)
}

// Select dispatches select on the process gate.
func Select(nfd int, r, w, e *unix.FdSet, timeout *unix.Timeval) (int, error) {
	return defaultGate.Select(nfd, r, w, e, timeout)
}

// EpollCreate dispatches epoll_create on the process gate.
func EpollCreate(size int) (int, error) {
	return defaultGate.EpollCreate(size)
}

// EpollCreate1 dispatches epoll_create1 on the process gate.
func EpollCreate1(flags int) (int, error) {
	return defaultGate.EpollCreate1(flags)
}

// EpollCtl dispatches epoll_ctl on the process gate.
func EpollCtl(epfd, op, fd int, event *unix.EpollEvent) error {
	return defaultGate.EpollCtl(epfd, op, fd, event)
}

// EpollWait dispatches epoll_wait on the process gate.
func EpollWait(epfd int, events []unix.EpollEvent, msec int) (int, error) {
	return defaultGate.EpollWait(epfd, events, msec)
}

// EpollPwait dispatches epoll_pwait on the process gate.
func EpollPwait(epfd int, events []unix.EpollEvent, msec int, sigmask *unix.Sigset_t) (int, error) {
	return defaultGate.EpollPwait(epfd, events, msec, sigmask)
}
