package sockgate

import (
	"errors"

	"golang.org/x/sys/unix"

	"github.com/sockgate/sockgate/native"
	"github.com/sockgate/sockgate/stack"
)

// disclaimed reports whether err is the ownership sentinel, the stack's way
// of saying the descriptor belongs to the native backend.
func disclaimed(err error) bool {
	return err != nil && errors.Is(err, stack.ErrNotOwned)
}

// Socket creates a descriptor. Family routing happens before any dispatch:
// only the (AF_INET, SOCK_STREAM) pair is offered to the managed stack,
// because it models nothing else; every other domain/type combination is
// created natively. The comparison is exact, so a type with status flags
// OR-ed in goes native, as the original surface does.
func (g *Gate) Socket(domain, typ, proto int) (int, error) {
	g.ensureInitialized()
	if domain != unix.AF_INET || typ != unix.SOCK_STREAM {
		g.counts.Native(native.OpSocket)
		return g.table.Socket(domain, typ, proto)
	}
	g.counts.Managed(native.OpSocket)
	return g.stk.Socket(domain, typ, proto)
}

// Close releases fd on whichever backend owns it.
func (g *Gate) Close(fd int) error {
	g.ensureInitialized()
	err := g.stk.Close(fd)
	if disclaimed(err) {
		g.counts.Fallback(native.OpClose)
		return g.table.Close(fd)
	}
	g.counts.Managed(native.OpClose)
	return err
}

// Shutdown half-closes fd in the given direction.
func (g *Gate) Shutdown(fd, how int) error {
	g.ensureInitialized()
	err := g.stk.Shutdown(fd, how)
	if disclaimed(err) {
		g.counts.Fallback(native.OpShutdown)
		return g.table.Shutdown(fd, how)
	}
	g.counts.Managed(native.OpShutdown)
	return err
}

// Bind assigns the local address of fd.
func (g *Gate) Bind(fd int, sa unix.Sockaddr) error {
	g.ensureInitialized()
	err := g.stk.Bind(fd, sa)
	if disclaimed(err) {
		g.counts.Fallback(native.OpBind)
		return g.table.Bind(fd, sa)
	}
	g.counts.Managed(native.OpBind)
	return err
}

// Connect initiates a connection on fd.
func (g *Gate) Connect(fd int, sa unix.Sockaddr) error {
	g.ensureInitialized()
	err := g.stk.Connect(fd, sa)
	if disclaimed(err) {
		g.counts.Fallback(native.OpConnect)
		return g.table.Connect(fd, sa)
	}
	g.counts.Managed(native.OpConnect)
	return err
}

// Listen marks fd as accepting connections.
func (g *Gate) Listen(fd, backlog int) error {
	g.ensureInitialized()
	err := g.stk.Listen(fd, backlog)
	if disclaimed(err) {
		g.counts.Fallback(native.OpListen)
		return g.table.Listen(fd, backlog)
	}
	g.counts.Managed(native.OpListen)
	return err
}

// Accept takes the next connection from fd's queue.
func (g *Gate) Accept(fd int) (int, unix.Sockaddr, error) {
	g.ensureInitialized()
	nfd, sa, err := g.stk.Accept(fd)
	if disclaimed(err) {
		g.counts.Fallback(native.OpAccept)
		return g.table.Accept(fd)
	}
	g.counts.Managed(native.OpAccept)
	return nfd, sa, err
}

// Accept4 is Accept with descriptor flags applied atomically.
func (g *Gate) Accept4(fd, flags int) (int, unix.Sockaddr, error) {
	g.ensureInitialized()
	nfd, sa, err := g.stk.Accept4(fd, flags)
	if disclaimed(err) {
		g.counts.Fallback(native.OpAccept4)
		return g.table.Accept4(fd, flags)
	}
	g.counts.Managed(native.OpAccept4)
	return nfd, sa, err
}

// Fcntl manipulates descriptor flags. One integer argument, matching the
// interposed surface.
func (g *Gate) Fcntl(fd, cmd, arg int) (int, error) {
	g.ensureInitialized()
	ret, err := g.stk.Fcntl(fd, cmd, arg)
	if disclaimed(err) {
		g.counts.Fallback(native.OpFcntl)
		return g.table.Fcntl(fd, cmd, arg)
	}
	g.counts.Managed(native.OpFcntl)
	return ret, err
}

// Getsockopt reads a socket option into value and returns the written
// length.
func (g *Gate) Getsockopt(fd, level, opt int, value []byte) (int, error) {
	g.ensureInitialized()
	n, err := g.stk.Getsockopt(fd, level, opt, value)
	if disclaimed(err) {
		g.counts.Fallback(native.OpGetsockopt)
		return g.table.Getsockopt(fd, level, opt, value)
	}
	g.counts.Managed(native.OpGetsockopt)
	return n, err
}

// Setsockopt writes a socket option from value.
func (g *Gate) Setsockopt(fd, level, opt int, value []byte) error {
	g.ensureInitialized()
	err := g.stk.Setsockopt(fd, level, opt, value)
	if disclaimed(err) {
		g.counts.Fallback(native.OpSetsockopt)
		return g.table.Setsockopt(fd, level, opt, value)
	}
	g.counts.Managed(native.OpSetsockopt)
	return err
}

// Getsockname returns fd's local address.
func (g *Gate) Getsockname(fd int) (unix.Sockaddr, error) {
	g.ensureInitialized()
	sa, err := g.stk.Getsockname(fd)
	if disclaimed(err) {
		g.counts.Fallback(native.OpGetsockname)
		return g.table.Getsockname(fd)
	}
	g.counts.Managed(native.OpGetsockname)
	return sa, err
}

// Getpeername returns fd's remote address.
func (g *Gate) Getpeername(fd int) (unix.Sockaddr, error) {
	g.ensureInitialized()
	sa, err := g.stk.Getpeername(fd)
	if disclaimed(err) {
		g.counts.Fallback(native.OpGetpeername)
		return g.table.Getpeername(fd)
	}
	g.counts.Managed(native.OpGetpeername)
	return sa, err
}

// Read transfers into p, blocking per the owning backend.
func (g *Gate) Read(fd int, p []byte) (int, error) {
	g.ensureInitialized()
	n, err := g.stk.Read(fd, p)
	if disclaimed(err) {
		g.counts.Fallback(native.OpRead)
		return g.table.Read(fd, p)
	}
	g.counts.Managed(native.OpRead)
	return n, err
}

// Recv is Read with receive flags.
func (g *Gate) Recv(fd int, p []byte, flags int) (int, error) {
	g.ensureInitialized()
	n, err := g.stk.Recv(fd, p, flags)
	if disclaimed(err) {
		g.counts.Fallback(native.OpRecv)
		return g.table.Recv(fd, p, flags)
	}
	g.counts.Managed(native.OpRecv)
	return n, err
}

// Recvfrom is Recv reporting the sender's address.
func (g *Gate) Recvfrom(fd int, p []byte, flags int) (int, unix.Sockaddr, error) {
	g.ensureInitialized()
	n, from, err := g.stk.Recvfrom(fd, p, flags)
	if disclaimed(err) {
		g.counts.Fallback(native.OpRecvfrom)
		return g.table.Recvfrom(fd, p, flags)
	}
	g.counts.Managed(native.OpRecvfrom)
	return n, from, err
}

// Recvmsg is the scatter/gather receive with ancillary data.
func (g *Gate) Recvmsg(fd int, bufs [][]byte, oob []byte, flags int) (int, int, int, unix.Sockaddr, error) {
	g.ensureInitialized()
	n, oobn, recvflags, from, err := g.stk.Recvmsg(fd, bufs, oob, flags)
	if disclaimed(err) {
		g.counts.Fallback(native.OpRecvmsg)
		return g.table.Recvmsg(fd, bufs, oob, flags)
	}
	g.counts.Managed(native.OpRecvmsg)
	return n, oobn, recvflags, from, err
}

// Write transfers from p, blocking per the owning backend.
func (g *Gate) Write(fd int, p []byte) (int, error) {
	g.ensureInitialized()
	n, err := g.stk.Write(fd, p)
	if disclaimed(err) {
		g.counts.Fallback(native.OpWrite)
		return g.table.Write(fd, p)
	}
	g.counts.Managed(native.OpWrite)
	return n, err
}

// Send is Write with send flags.
func (g *Gate) Send(fd int, p []byte, flags int) (int, error) {
	g.ensureInitialized()
	n, err := g.stk.Send(fd, p, flags)
	if disclaimed(err) {
		g.counts.Fallback(native.OpSend)
		return g.table.Send(fd, p, flags)
	}
	g.counts.Managed(native.OpSend)
	return n, err
}

// Sendto is Send addressed to a peer.
func (g *Gate) Sendto(fd int, p []byte, flags int, to unix.Sockaddr) (int, error) {
	g.ensureInitialized()
	n, err := g.stk.Sendto(fd, p, flags, to)
	if disclaimed(err) {
		g.counts.Fallback(native.OpSendto)
		return g.table.Sendto(fd, p, flags, to)
	}
	g.counts.Managed(native.OpSendto)
	return n, err
}

// Sendmsg is the scatter/gather send with ancillary data.
func (g *Gate) Sendmsg(fd int, bufs [][]byte, oob []byte, to unix.Sockaddr, flags int) (int, error) {
	g.ensureInitialized()
	n, err := g.stk.Sendmsg(fd, bufs, oob, to, flags)
	if disclaimed(err) {
		g.counts.Fallback(native.OpSendmsg)
		return g.table.Sendmsg(fd, bufs, oob, to, flags)
	}
	g.counts.Managed(native.OpSendmsg)
	return n, err
}

// Package-level dispatch on the process gate.

// Socket creates a descriptor on the process gate.
func Socket(domain, typ, proto int) (int, error) {
	return defaultGate.Socket(domain, typ, proto)
}

// Close dispatches close on the process gate.
func Close(fd int) error {
	return defaultGate.Close(fd)
}

// Shutdown dispatches shutdown on the process gate.
func Shutdown(fd, how int) error {
	return defaultGate.Shutdown(fd, how)
}

// Bind dispatches bind on the process gate.
func Bind(fd int, sa unix.Sockaddr) error {
	return defaultGate.Bind(fd, sa)
}

// Connect dispatches connect on the process gate.
func Connect(fd int, sa unix.Sockaddr) error {
	return defaultGate.Connect(fd, sa)
}

// Listen dispatches listen on the process gate.
func Listen(fd, backlog int) error {
	return defaultGate.Listen(fd, backlog)
}

// Accept dispatches accept on the process gate.
func Accept(fd int) (int, unix.Sockaddr, error) {
	return defaultGate.Accept(fd)
}

// Accept4 dispatches accept4 on the process gate.
func Accept4(fd, flags int) (int, unix.Sockaddr, error) {
	return defaultGate.Accept4(fd, flags)
}

// Fcntl dispatches fcntl on the process gate.
func Fcntl(fd, cmd, arg int) (int, error) {
	return defaultGate.Fcntl(fd, cmd, arg)
}

// Getsockopt dispatches getsockopt on the process gate.
func Getsockopt(fd, level, opt int, value []byte) (int, error) {
	return defaultGate.Getsockopt(fd, level, opt, value)
}

// Setsockopt dispatches setsockopt on the process gate.
func Setsockopt(fd, level, opt int, value []byte) error {
	return defaultGate.Setsockopt(fd, level, opt, value)
}

// Getsockname dispatches getsockname on the process gate.
func Getsockname(fd int) (unix.Sockaddr, error) {
	return defaultGate.Getsockname(fd)
}

// Getpeername dispatches getpeername on the process gate.
func Getpeername(fd int) (unix.Sockaddr, error) {
	return defaultGate.Getpeername(fd)
}

// Read dispatches read on the process gate.
func Read(fd int, p []byte) (int, error) {
	return defaultGate.Read(fd, p)
}

// Recv dispatches recv on the process gate.
func Recv(fd int, p []byte, flags int) (int, error) {
	return defaultGate.Recv(fd, p, flags)
}

// Recvfrom dispatches recvfrom on the process gate.
func Recvfrom(fd int, p []byte, flags int) (int, unix.Sockaddr, error) {
	return defaultGate.Recvfrom(fd, p, flags)
}

// Recvmsg dispatches recvmsg on the process gate.
func Recvmsg(fd int, bufs [][]byte, oob []byte, flags int) (int, int, int, unix.Sockaddr, error) {
	return defaultGate.Recvmsg(fd, bufs, oob, flags)
}

// Write dispatches write on the process gate.
func Write(fd int, p []byte) (int, error) {
	return defaultGate.Write(fd, p)
}

// Send dispatches send on the process gate.
func Send(fd int, p []byte, flags int) (int, error) {
	return defaultGate.Send(fd, p, flags)
}

// Sendto dispatches sendto on the process gate.
func Sendto(fd int, p []byte, flags int, to unix.Sockaddr) (int, error) {
	return defaultGate.Sendto(fd, p, flags, to)
}

// Sendmsg dispatches sendmsg on the process gate.
func Sendmsg(fd int, bufs [][]byte, oob []byte, to unix.Sockaddr, flags int) (int, error) {
	return defaultGate.Sendmsg(fd, bufs, oob, to, flags)
}
