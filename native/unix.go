package native

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

// UnixProvider resolves operations to the kernel socket surface exposed by
// golang.org/x/sys/unix. It is the provider a process uses unless a test or
// an alternate platform substitutes its own.
type UnixProvider struct{}

func (UnixProvider) Resolve(op Op) (any, error) {
	switch op {
	case OpSocket:
		return unix.Socket, nil
	case OpClose:
		return unix.Close, nil
	case OpShutdown:
		return unix.Shutdown, nil
	case OpBind:
		return unix.Bind, nil
	case OpConnect:
		return unix.Connect, nil
	case OpListen:
		return unix.Listen, nil
	case OpAccept4:
		return unix.Accept4, nil
	case OpAccept:
		return unix.Accept, nil
	case OpFcntl:
		return fcntl, nil
	case OpGetsockopt:
		return getsockopt, nil
	case OpSetsockopt:
		return setsockopt, nil
	case OpGetsockname:
		return unix.Getsockname, nil
	case OpGetpeername:
		return unix.Getpeername, nil
	case OpRead:
		return unix.Read, nil
	case OpRecv:
		return recv, nil
	case OpRecvfrom:
		return unix.Recvfrom, nil
	case OpRecvmsg:
		return unix.RecvmsgBuffers, nil
	case OpWrite:
		return unix.Write, nil
	case OpSend:
		return send, nil
	case OpSendto:
		return sendto, nil
	case OpSendmsg:
		return unix.SendmsgBuffers, nil
	case OpSelect:
		return unix.Select, nil
	}
	return nil, fmt.Errorf("no kernel implementation for %q", op)
}

func fcntl(fd, cmd, arg int) (int, error) {
	return unix.FcntlInt(uintptr(fd), cmd, arg)
}

// getsockopt keeps the generic byte-shaped option form. The typed accessors
// in x/sys/unix cannot express an arbitrary option payload, so this goes
// through the raw syscall; the returned int is the kernel-written length.
func getsockopt(fd, level, opt int, value []byte) (int, error) {
	var valp unsafe.Pointer
	vallen := uint32(len(value))
	if len(value) > 0 {
		valp = unsafe.Pointer(&value[0])
	}
	_, _, errno := unix.Syscall6(unix.SYS_GETSOCKOPT,
		uintptr(fd), uintptr(level), uintptr(opt),
		uintptr(valp), uintptr(unsafe.Pointer(&vallen)), 0)
	if errno != 0 {
		return 0, errno
	}
	return int(vallen), nil
}

func setsockopt(fd, level, opt int, value []byte) error {
	var valp unsafe.Pointer
	if len(value) > 0 {
		valp = unsafe.Pointer(&value[0])
	}
	_, _, errno := unix.Syscall6(unix.SYS_SETSOCKOPT,
		uintptr(fd), uintptr(level), uintptr(opt),
		uintptr(valp), uintptr(len(value)), 0)
	if errno != 0 {
		return errno
	}
	return nil
}

func recv(fd int, p []byte, flags int) (int, error) {
	n, _, err := unix.Recvfrom(fd, p, flags)
	return n, err
}

// send and sendto go through sendmsg so the written byte count comes back;
// unix.Sendto drops it.
func send(fd int, p []byte, flags int) (int, error) {
	return unix.SendmsgN(fd, p, nil, nil, flags)
}

func sendto(fd int, p []byte, flags int, to unix.Sockaddr) (int, error) {
	return unix.SendmsgN(fd, p, nil, to, flags)
}
