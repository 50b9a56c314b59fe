package native

import (
	"fmt"
	"reflect"

	"golang.org/x/sys/unix"

	"github.com/sockgate/sockgate/errors"
)

// Op identifies one intercepted operation. Values are the platform call
// names, so diagnostics read like the surface users know.
type Op string

const (
	OpSocket      Op = "socket"
	OpClose       Op = "close"
	OpShutdown    Op = "shutdown"
	OpBind        Op = "bind"
	OpConnect     Op = "connect"
	OpListen      Op = "listen"
	OpAccept4     Op = "accept4"
	OpAccept      Op = "accept"
	OpFcntl       Op = "fcntl"
	OpGetsockopt  Op = "getsockopt"
	OpSetsockopt  Op = "setsockopt"
	OpGetsockname Op = "getsockname"
	OpGetpeername Op = "getpeername"
	OpRead        Op = "read"
	OpRecv        Op = "recv"
	OpRecvfrom    Op = "recvfrom"
	OpRecvmsg     Op = "recvmsg"
	OpWrite       Op = "write"
	OpSend        Op = "send"
	OpSendto      Op = "sendto"
	OpSendmsg     Op = "sendmsg"
	OpSelect      Op = "select"

	// Readiness multiplexing family. Identified for routing and accounting,
	// never resolved: the managed stack services these unconditionally.
	OpEpollCreate  Op = "epoll_create"
	OpEpollCreate1 Op = "epoll_create1"
	OpEpollCtl     Op = "epoll_ctl"
	OpEpollWait    Op = "epoll_wait"
	OpEpollPwait   Op = "epoll_pwait"
)

// Ops returns every operation with a native fallback handle, in resolution
// order.
func Ops() []Op {
	return []Op{
		OpSocket, OpClose, OpShutdown, OpBind, OpConnect, OpListen,
		OpAccept4, OpAccept, OpFcntl, OpGetsockopt, OpSetsockopt,
		OpGetsockname, OpGetpeername, OpRead, OpRecv, OpRecvfrom,
		OpRecvmsg, OpWrite, OpSend, OpSendto, OpSendmsg, OpSelect,
	}
}

// ReadinessOps returns the multiplexing operations, which have no native
// handles and no fallback path.
func ReadinessOps() []Op {
	return []Op{OpEpollCreate, OpEpollCreate1, OpEpollCtl, OpEpollWait, OpEpollPwait}
}

// Provider resolves the pre-interposition implementation of an operation.
//
// Resolve returns the callable handle for op, typed exactly as the matching
// Table field, or an error when the operation is unknown to this provider.
// A nil handle with a nil error is treated as unresolved.
type Provider interface {
	Resolve(op Op) (any, error)
}

// Table holds the resolved native handle for every fallback operation.
// It is populated once by Bind and never mutated afterward; the gate
// publishes it with a release store before any dispatcher can read it.
type Table struct {
	Socket      func(domain, typ, proto int) (int, error)
	Close       func(fd int) error
	Shutdown    func(fd, how int) error
	Bind        func(fd int, sa unix.Sockaddr) error
	Connect     func(fd int, sa unix.Sockaddr) error
	Listen      func(fd, backlog int) error
	Accept4     func(fd, flags int) (int, unix.Sockaddr, error)
	Accept      func(fd int) (int, unix.Sockaddr, error)
	Fcntl       func(fd, cmd, arg int) (int, error)
	Getsockopt  func(fd, level, opt int, value []byte) (int, error)
	Setsockopt  func(fd, level, opt int, value []byte) error
	Getsockname func(fd int) (unix.Sockaddr, error)
	Getpeername func(fd int) (unix.Sockaddr, error)
	Read        func(fd int, p []byte) (int, error)
	Recv        func(fd int, p []byte, flags int) (int, error)
	Recvfrom    func(fd int, p []byte, flags int) (int, unix.Sockaddr, error)
	Recvmsg     func(fd int, bufs [][]byte, oob []byte, flags int) (int, int, int, unix.Sockaddr, error)
	Write       func(fd int, p []byte) (int, error)
	Send        func(fd int, p []byte, flags int) (int, error)
	Sendto      func(fd int, p []byte, flags int, to unix.Sockaddr) (int, error)
	Sendmsg     func(fd int, bufs [][]byte, oob []byte, to unix.Sockaddr, flags int) (int, error)
	Select      func(nfd int, r, w, e *unix.FdSet, timeout *unix.Timeval) (int, error)
}

// Bind resolves every fallback operation through p and returns the populated
// table. Any unresolved name or mis-shaped handle fails the whole bind: a
// partially populated table cannot honor the fallback contract.
func Bind(p Provider) (*Table, error) {
	var t Table
	if err := bind(p, OpSocket, &t.Socket); err != nil {
		return nil, err
	}
	if err := bind(p, OpClose, &t.Close); err != nil {
		return nil, err
	}
	if err := bind(p, OpShutdown, &t.Shutdown); err != nil {
		return nil, err
	}
	if err := bind(p, OpBind, &t.Bind); err != nil {
		return nil, err
	}
	if err := bind(p, OpConnect, &t.Connect); err != nil {
		return nil, err
	}
	if err := bind(p, OpListen, &t.Listen); err != nil {
		return nil, err
	}
	if err := bind(p, OpAccept4, &t.Accept4); err != nil {
		return nil, err
	}
	if err := bind(p, OpAccept, &t.Accept); err != nil {
		return nil, err
	}
	if err := bind(p, OpFcntl, &t.Fcntl); err != nil {
		return nil, err
	}
	if err := bind(p, OpGetsockopt, &t.Getsockopt); err != nil {
		return nil, err
	}
	if err := bind(p, OpSetsockopt, &t.Setsockopt); err != nil {
		return nil, err
	}
	if err := bind(p, OpGetsockname, &t.Getsockname); err != nil {
		return nil, err
	}
	if err := bind(p, OpGetpeername, &t.Getpeername); err != nil {
		return nil, err
	}
	if err := bind(p, OpRead, &t.Read); err != nil {
		return nil, err
	}
	if err := bind(p, OpRecv, &t.Recv); err != nil {
		return nil, err
	}
	if err := bind(p, OpRecvfrom, &t.Recvfrom); err != nil {
		return nil, err
	}
	if err := bind(p, OpRecvmsg, &t.Recvmsg); err != nil {
		return nil, err
	}
	if err := bind(p, OpWrite, &t.Write); err != nil {
		return nil, err
	}
	if err := bind(p, OpSend, &t.Send); err != nil {
		return nil, err
	}
	if err := bind(p, OpSendto, &t.Sendto); err != nil {
		return nil, err
	}
	if err := bind(p, OpSendmsg, &t.Sendmsg); err != nil {
		return nil, err
	}
	if err := bind(p, OpSelect, &t.Select); err != nil {
		return nil, err
	}
	return &t, nil
}

func bind[T any](p Provider, op Op, dst *T) error {
	h, err := p.Resolve(op)
	if err != nil {
		return errors.ResolveFailed(string(op), err)
	}
	if h == nil {
		return errors.UnknownOperation(string(op))
	}
	fn, ok := h.(T)
	if !ok {
		return errors.BadHandle(string(op), reflect.TypeOf(dst).Elem().String(), fmt.Sprintf("%T", h))
	}
	*dst = fn
	return nil
}
