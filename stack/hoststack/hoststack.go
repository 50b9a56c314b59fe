// Package hoststack provides a managed stack whose transport is the kernel
// itself.
//
// It services exactly the descriptors it created, disclaims everything else
// with the ownership sentinel, and forwards serviced calls to a privately
// bound native table. That makes it a faithful reference backend: routing,
// fallback and readiness behavior can be exercised end to end against real
// sockets without a userspace TCP engine in the loop.
package hoststack

import (
	"sync"
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/sockgate/sockgate/errors"
	"github.com/sockgate/sockgate/native"
	"github.com/sockgate/sockgate/stack"
)

// The kernel's sigset is 64 bits wide regardless of the larger userspace
// representation.
const kernelSigsetBytes = 8

// Stack is a kernel-transport managed stack. Construct with New; Startup
// must run before any serviced call, which the gate guarantees.
type Stack struct {
	sys atomic.Pointer[native.Table]

	mu    sync.Mutex
	owned map[int]struct{}
}

var _ stack.Stack = (*Stack)(nil)

// New returns a host stack that owns no descriptors yet.
func New() *Stack {
	return &Stack{owned: make(map[int]struct{})}
}

// Startup binds the stack's own native table and probes the readiness
// backend. Ownership probes are answerable before Startup runs: an empty
// ownership set disclaims everything.
func (s *Stack) Startup() error {
	tbl, err := native.Bind(native.UnixProvider{})
	if err != nil {
		return err
	}
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return errors.New(errors.PhaseStartup, errors.KindStackFailure).
			Detail("readiness backend probe").Cause(err).Build()
	}
	unix.Close(epfd)
	s.sys.Store(tbl)
	return nil
}

// Owns reports whether fd is serviced by this stack.
func (s *Stack) Owns(fd int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.owned[fd]
	return ok
}

func (s *Stack) adopt(fd int) {
	s.mu.Lock()
	s.owned[fd] = struct{}{}
	s.mu.Unlock()
}

func (s *Stack) forget(fd int) {
	s.mu.Lock()
	delete(s.owned, fd)
	s.mu.Unlock()
}

func (s *Stack) table() (*native.Table, error) {
	if tbl := s.sys.Load(); tbl != nil {
		return tbl, nil
	}
	return nil, errors.InvalidInput(errors.PhaseStartup, "host stack used before startup")
}

// sanitize keeps serviced descriptors from surfacing the ownership
// sentinel. A kernel EBADF on an owned descriptor means it was closed
// behind the stack's back; that must not read as a disclaim.
func sanitize(err error) error {
	if err == unix.EBADF {
		return unix.EIO
	}
	return err
}

func (s *Stack) Socket(domain, typ, proto int) (int, error) {
	tbl, err := s.table()
	if err != nil {
		return -1, err
	}
	fd, err := tbl.Socket(domain, typ, proto)
	if err != nil {
		return -1, err
	}
	s.adopt(fd)
	return fd, nil
}

func (s *Stack) Close(fd int) error {
	if !s.Owns(fd) {
		return stack.ErrNotOwned
	}
	tbl, err := s.table()
	if err != nil {
		return err
	}
	s.forget(fd)
	return sanitize(tbl.Close(fd))
}

func (s *Stack) Shutdown(fd, how int) error {
	if !s.Owns(fd) {
		return stack.ErrNotOwned
	}
	tbl, err := s.table()
	if err != nil {
		return err
	}
	return sanitize(tbl.Shutdown(fd, how))
}

func (s *Stack) Bind(fd int, sa unix.Sockaddr) error {
	if !s.Owns(fd) {
		return stack.ErrNotOwned
	}
	tbl, err := s.table()
	if err != nil {
		return err
	}
	return sanitize(tbl.Bind(fd, sa))
}

func (s *Stack) Connect(fd int, sa unix.Sockaddr) error {
	if !s.Owns(fd) {
		return stack.ErrNotOwned
	}
	tbl, err := s.table()
	if err != nil {
		return err
	}
	return sanitize(tbl.Connect(fd, sa))
}

func (s *Stack) Listen(fd, backlog int) error {
	if !s.Owns(fd) {
		return stack.ErrNotOwned
	}
	tbl, err := s.table()
	if err != nil {
		return err
	}
	return sanitize(tbl.Listen(fd, backlog))
}

// Accept results service future calls here too, so the connected
// descriptor joins the ownership set before the caller sees it.
func (s *Stack) Accept(fd int) (int, unix.Sockaddr, error) {
	if !s.Owns(fd) {
		return -1, nil, stack.ErrNotOwned
	}
	tbl, err := s.table()
	if err != nil {
		return -1, nil, err
	}
	nfd, sa, err := tbl.Accept(fd)
	if err != nil {
		return -1, nil, sanitize(err)
	}
	s.adopt(nfd)
	return nfd, sa, nil
}

func (s *Stack) Accept4(fd, flags int) (int, unix.Sockaddr, error) {
	if !s.Owns(fd) {
		return -1, nil, stack.ErrNotOwned
	}
	tbl, err := s.table()
	if err != nil {
		return -1, nil, err
	}
	nfd, sa, err := tbl.Accept4(fd, flags)
	if err != nil {
		return -1, nil, sanitize(err)
	}
	s.adopt(nfd)
	return nfd, sa, nil
}

func (s *Stack) Fcntl(fd, cmd, arg int) (int, error) {
	if !s.Owns(fd) {
		return -1, stack.ErrNotOwned
	}
	tbl, err := s.table()
	if err != nil {
		return -1, err
	}
	n, err := tbl.Fcntl(fd, cmd, arg)
	return n, sanitize(err)
}

func (s *Stack) Getsockopt(fd, level, opt int, value []byte) (int, error) {
	if !s.Owns(fd) {
		return 0, stack.ErrNotOwned
	}
	tbl, err := s.table()
	if err != nil {
		return 0, err
	}
	n, err := tbl.Getsockopt(fd, level, opt, value)
	return n, sanitize(err)
}

func (s *Stack) Setsockopt(fd, level, opt int, value []byte) error {
	if !s.Owns(fd) {
		return stack.ErrNotOwned
	}
	tbl, err := s.table()
	if err != nil {
		return err
	}
	return sanitize(tbl.Setsockopt(fd, level, opt, value))
}

func (s *Stack) Getsockname(fd int) (unix.Sockaddr, error) {
	if !s.Owns(fd) {
		return nil, stack.ErrNotOwned
	}
	tbl, err := s.table()
	if err != nil {
		return nil, err
	}
	sa, err := tbl.Getsockname(fd)
	return sa, sanitize(err)
}

func (s *Stack) Getpeername(fd int) (unix.Sockaddr, error) {
	if !s.Owns(fd) {
		return nil, stack.ErrNotOwned
	}
	tbl, err := s.table()
	if err != nil {
		return nil, err
	}
	sa, err := tbl.Getpeername(fd)
	return sa, sanitize(err)
}

func (s *Stack) Read(fd int, p []byte) (int, error) {
	if !s.Owns(fd) {
		return -1, stack.ErrNotOwned
	}
	tbl, err := s.table()
	if err != nil {
		return -1, err
	}
	n, err := tbl.Read(fd, p)
	return n, sanitize(err)
}

func (s *Stack) Write(fd int, p []byte) (int, error) {
	if !s.Owns(fd) {
		return -1, stack.ErrNotOwned
	}
	tbl, err := s.table()
	if err != nil {
		return -1, err
	}
	n, err := tbl.Write(fd, p)
	return n, sanitize(err)
}

func (s *Stack) Recv(fd int, p []byte, flags int) (int, error) {
	if !s.Owns(fd) {
		return -1, stack.ErrNotOwned
	}
	tbl, err := s.table()
	if err != nil {
		return -1, err
	}
	n, err := tbl.Recv(fd, p, flags)
	return n, sanitize(err)
}

func (s *Stack) Recvfrom(fd int, p []byte, flags int) (int, unix.Sockaddr, error) {
	if !s.Owns(fd) {
		return -1, nil, stack.ErrNotOwned
	}
	tbl, err := s.table()
	if err != nil {
		return -1, nil, err
	}
	n, from, err := tbl.Recvfrom(fd, p, flags)
	return n, from, sanitize(err)
}

func (s *Stack) Recvmsg(fd int, bufs [][]byte, oob []byte, flags int) (int, int, int, unix.Sockaddr, error) {
	if !s.Owns(fd) {
		return -1, 0, 0, nil, stack.ErrNotOwned
	}
	tbl, err := s.table()
	if err != nil {
		return -1, 0, 0, nil, err
	}
	n, oobn, recvflags, from, err := tbl.Recvmsg(fd, bufs, oob, flags)
	return n, oobn, recvflags, from, sanitize(err)
}

func (s *Stack) Send(fd int, p []byte, flags int) (int, error) {
	if !s.Owns(fd) {
		return -1, stack.ErrNotOwned
	}
	tbl, err := s.table()
	if err != nil {
		return -1, err
	}
	n, err := tbl.Send(fd, p, flags)
	return n, sanitize(err)
}

func (s *Stack) Sendto(fd int, p []byte, flags int, to unix.Sockaddr) (int, error) {
	if !s.Owns(fd) {
		return -1, stack.ErrNotOwned
	}
	tbl, err := s.table()
	if err != nil {
		return -1, err
	}
	n, err := tbl.Sendto(fd, p, flags, to)
	return n, sanitize(err)
}

func (s *Stack) Sendmsg(fd int, bufs [][]byte, oob []byte, to unix.Sockaddr, flags int) (int, error) {
	if !s.Owns(fd) {
		return -1, stack.ErrNotOwned
	}
	tbl, err := s.table()
	if err != nil {
		return -1, err
	}
	n, err := tbl.Sendmsg(fd, bufs, oob, to, flags)
	return n, sanitize(err)
}

// Readiness family. The kernel multiplexes any descriptor, owned or not,
// which is what lets this stack honor the no-fallback contract: there is
// nothing a readiness call here could disclaim to.

func (s *Stack) Select(nfd int, r, w, e *unix.FdSet, timeout *unix.Timeval) (int, error) {
	tbl, err := s.table()
	if err != nil {
		return -1, err
	}
	return tbl.Select(nfd, r, w, e, timeout)
}

func (s *Stack) EpollCreate(size int) (int, error) {
	epfd, err := unix.EpollCreate(size)
	if err != nil {
		return -1, err
	}
	s.adopt(epfd)
	return epfd, nil
}

func (s *Stack) EpollCreate1(flags int) (int, error) {
	epfd, err := unix.EpollCreate1(flags)
	if err != nil {
		return -1, err
	}
	s.adopt(epfd)
	return epfd, nil
}

func (s *Stack) EpollCtl(epfd, op, fd int, event *unix.EpollEvent) error {
	return unix.EpollCtl(epfd, op, fd, event)
}

func (s *Stack) EpollWait(epfd int, events []unix.EpollEvent, msec int) (int, error) {
	return unix.EpollWait(epfd, events, msec)
}

func (s *Stack) EpollPwait(epfd int, events []unix.EpollEvent, msec int, sigmask *unix.Sigset_t) (int, error) {
	var evp unsafe.Pointer
	if len(events) > 0 {
		evp = unsafe.Pointer(&events[0])
	}
	n, _, errno := unix.Syscall6(unix.SYS_EPOLL_PWAIT,
		uintptr(epfd), uintptr(evp), uintptr(len(events)),
		uintptr(msec), uintptr(unsafe.Pointer(sigmask)), kernelSigsetBytes)
	if errno != 0 {
		return -1, errno
	}
	return int(n), nil
}
