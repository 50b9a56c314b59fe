// Package stack defines the managed network-stack contract.
//
// A Stack mirrors the intercepted socket/IO surface one method per
// operation, with the same shapes the kernel surface uses. Descriptor
// ownership is never tracked by the dispatch layer: a Stack disclaims a
// descriptor by returning ErrNotOwned, and the dispatcher re-issues that one
// call against the native handle. Everything else a Stack returns, results
// and error codes alike, reaches the caller verbatim.
package stack

import "golang.org/x/sys/unix"

// ErrNotOwned is the reserved ownership sentinel: "this descriptor is not
// mine". It deliberately shares its value with the platform's EBADF, exactly
// as the original contract does. The ambiguity is real: a stack that needs
// to report a genuinely bad descriptor it does own cannot distinguish that
// condition from a disclaim, and the dispatcher will re-route such a call to
// the native backend. Stacks own the burden of never returning this value
// for descriptors they service.
var ErrNotOwned error = unix.EBADF

// Stack is the managed backend a process registers before its first
// dispatched call.
//
// Startup is invoked exactly once, by the initializing goroutine, after the
// native handles are bound. Startup may itself issue dispatched calls (its
// control traffic re-enters the layer); implementations must therefore
// answer ownership probes, that is return ErrNotOwned for descriptors they
// do not recognize, from the moment Startup begins. A Startup error is fatal
// to the process: partial interposition is unsafe.
//
// The readiness family (Select, Epoll*) is routed here unconditionally and
// never falls back, so those methods must also service descriptors owned by
// the native backend.
type Stack interface {
	Startup() error

	Socket(domain, typ, proto int) (int, error)
	Close(fd int) error
	Shutdown(fd, how int) error
	Bind(fd int, sa unix.Sockaddr) error
	Connect(fd int, sa unix.Sockaddr) error
	Listen(fd, backlog int) error
	Accept(fd int) (int, unix.Sockaddr, error)
	Accept4(fd, flags int) (int, unix.Sockaddr, error)
	Fcntl(fd, cmd, arg int) (int, error)
	Getsockopt(fd, level, opt int, value []byte) (int, error)
	Setsockopt(fd, level, opt int, value []byte) error
	Getsockname(fd int) (unix.Sockaddr, error)
	Getpeername(fd int) (unix.Sockaddr, error)
	Read(fd int, p []byte) (int, error)
	Write(fd int, p []byte) (int, error)
	Recv(fd int, p []byte, flags int) (int, error)
	Recvfrom(fd int, p []byte, flags int) (int, unix.Sockaddr, error)
	Recvmsg(fd int, bufs [][]byte, oob []byte, flags int) (int, int, int, unix.Sockaddr, error)
	Send(fd int, p []byte, flags int) (int, error)
	Sendto(fd int, p []byte, flags int, to unix.Sockaddr) (int, error)
	Sendmsg(fd int, bufs [][]byte, oob []byte, to unix.Sockaddr, flags int) (int, error)

	Select(nfd int, r, w, e *unix.FdSet, timeout *unix.Timeval) (int, error)
	EpollCreate(size int) (int, error)
	EpollCreate1(flags int) (int, error)
	EpollCtl(epfd, op, fd int, event *unix.EpollEvent) error
	EpollWait(epfd int, events []unix.EpollEvent, msec int) (int, error)
	EpollPwait(epfd int, events []unix.EpollEvent, msec int, sigmask *unix.Sigset_t) (int, error)
}
