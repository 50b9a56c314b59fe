package stacktest

import (
	"bytes"
	"errors"
	"testing"

	"golang.org/x/sys/unix"

	"github.com/sockgate/sockgate/native"
	"github.com/sockgate/sockgate/stack"
)

func TestOwnershipSentinel(t *testing.T) {
	s := New()

	fd, err := s.Socket(unix.AF_INET, unix.SOCK_STREAM, 0)
	if err != nil {
		t.Fatalf("Socket: %v", err)
	}
	if !s.Owns(fd) {
		t.Fatalf("created descriptor %d not owned", fd)
	}

	if err := s.Listen(fd, 8); err != nil {
		t.Fatalf("Listen on owned fd: %v", err)
	}
	if err := s.Listen(3, 8); !errors.Is(err, stack.ErrNotOwned) {
		t.Fatalf("Listen on foreign fd: got %v, want ErrNotOwned", err)
	}
	if got := s.Calls(native.OpListen); got != 2 {
		t.Fatalf("listen invocations = %d, want 2 (disclaimed calls count too)", got)
	}
}

func TestReadWriteCanning(t *testing.T) {
	s := New()
	fd, _ := s.Socket(unix.AF_INET, unix.SOCK_STREAM, 0)
	s.SetReadData(fd, []byte("hello world"))

	buf := make([]byte, 5)
	n, err := s.Read(fd, buf)
	if err != nil || n != 5 || string(buf) != "hello" {
		t.Fatalf("Read = (%d, %v, %q)", n, err, buf[:n])
	}
	n, err = s.Recv(fd, buf, 0)
	if err != nil || n != 5 || string(buf) != " worl" {
		t.Fatalf("Recv = (%d, %v, %q)", n, err, buf[:n])
	}
	n, err = s.Read(fd, buf)
	if err != nil || n != 1 {
		t.Fatalf("final Read = (%d, %v), want 1 byte left", n, err)
	}

	if _, err := s.Write(fd, []byte("ab")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if _, err := s.Sendto(fd, []byte("cd"), 0, nil); err != nil {
		t.Fatalf("Sendto: %v", err)
	}
	if got := s.Written(fd); !bytes.Equal(got, []byte("abcd")) {
		t.Fatalf("Written = %q, want %q", got, "abcd")
	}
}

func TestScatterGather(t *testing.T) {
	s := New()
	fd, _ := s.Socket(unix.AF_INET, unix.SOCK_STREAM, 0)

	n, err := s.Sendmsg(fd, [][]byte{[]byte("ab"), []byte("cde")}, nil, nil, 0)
	if err != nil || n != 5 {
		t.Fatalf("Sendmsg = (%d, %v), want 5 bytes", n, err)
	}

	s.SetReadData(fd, []byte("xyz"))
	b1, b2 := make([]byte, 2), make([]byte, 4)
	n, _, _, from, err := s.Recvmsg(fd, [][]byte{b1, b2}, nil, 0)
	if err != nil || n != 3 || from == nil {
		t.Fatalf("Recvmsg = (%d, %v, from=%v)", n, err, from)
	}
	if string(b1) != "xy" || string(b2[:1]) != "z" {
		t.Fatalf("scatter mismatch: %q %q", b1, b2[:1])
	}
}

func TestOptionStore(t *testing.T) {
	s := New()
	fd, _ := s.Socket(unix.AF_INET, unix.SOCK_STREAM, 0)

	buf := make([]byte, 4)
	if _, err := s.Getsockopt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, buf); !errors.Is(err, unix.ENOPROTOOPT) {
		t.Fatalf("unset option: got %v, want ENOPROTOOPT", err)
	}

	if err := s.Setsockopt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, []byte{1, 0, 0, 0}); err != nil {
		t.Fatalf("Setsockopt: %v", err)
	}
	n, err := s.Getsockopt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, buf)
	if err != nil || n != 4 || buf[0] != 1 {
		t.Fatalf("round-trip = (%d, %v, % x)", n, err, buf)
	}
}

func TestAcceptInheritsOwnership(t *testing.T) {
	s := New()
	lfd, _ := s.Socket(unix.AF_INET, unix.SOCK_STREAM, 0)

	cfd, sa, err := s.Accept4(lfd, unix.SOCK_NONBLOCK)
	if err != nil || sa == nil {
		t.Fatalf("Accept4 = (%d, %v, %v)", cfd, sa, err)
	}
	if !s.Owns(cfd) {
		t.Fatalf("accepted descriptor %d not owned", cfd)
	}
	if fl, _ := s.Fcntl(cfd, unix.F_GETFL, 0); fl != unix.SOCK_NONBLOCK {
		t.Fatalf("accepted flags = %#x, want %#x", fl, unix.SOCK_NONBLOCK)
	}
}

func TestCloseForgetsDescriptor(t *testing.T) {
	s := New()
	fd, _ := s.Socket(unix.AF_INET, unix.SOCK_STREAM, 0)
	s.SetReadData(fd, []byte("stale"))

	if err := s.Close(fd); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if s.Owns(fd) {
		t.Fatal("descriptor still owned after close")
	}
	if err := s.Close(fd); !errors.Is(err, stack.ErrNotOwned) {
		t.Fatalf("double close: got %v, want ErrNotOwned", err)
	}
}

func TestReadinessHandles(t *testing.T) {
	s := New()

	epfd, err := s.EpollCreate1(0)
	if err != nil {
		t.Fatalf("EpollCreate1: %v", err)
	}
	if err := s.EpollCtl(epfd, unix.EPOLL_CTL_ADD, 7, &unix.EpollEvent{Events: unix.EPOLLIN}); err != nil {
		t.Fatalf("EpollCtl on owned handle: %v", err)
	}
	if err := s.EpollCtl(99, unix.EPOLL_CTL_ADD, 7, nil); !errors.Is(err, stack.ErrNotOwned) {
		t.Fatalf("EpollCtl on foreign handle: got %v, want ErrNotOwned", err)
	}

	n, err := s.Select(0, nil, nil, nil, &unix.Timeval{})
	if err != nil || n != 0 {
		t.Fatalf("Select = (%d, %v)", n, err)
	}
}

func TestStartupHook(t *testing.T) {
	s := New()
	ran := 0
	s.StartupFunc = func() error {
		ran++
		return nil
	}
	if err := s.Startup(); err != nil {
		t.Fatalf("Startup: %v", err)
	}
	if ran != 1 || s.Startups() != 1 {
		t.Fatalf("hook ran %d times, Startups() = %d", ran, s.Startups())
	}
}
