// Package stacktest provides a recording managed-stack double.
//
// The double owns only the descriptors it created (or was told to own),
// answers the ownership sentinel for everything else, and counts every
// invocation per operation, which is exactly what routing tests need.
// Behavior on owned descriptors is canned and in-memory: reads consume
// preloaded data, writes accumulate, socket options round-trip through a
// map, accepted descriptors inherit ownership.
package stacktest

import (
	"sync"

	"golang.org/x/sys/unix"

	"github.com/sockgate/sockgate/native"
	"github.com/sockgate/sockgate/stack"
)

// Synthetic descriptors start far above any real kernel fd a test could
// hold, so a misrouted call is loud instead of corrupting a live file.
const fdBase = 1 << 20

type optKey struct {
	level int
	opt   int
}

// Stack is a recording stack.Stack implementation. The zero value is not
// usable; construct with New.
type Stack struct {
	// StartupFunc, when set, runs inside Startup. Tests use it to issue
	// dispatched calls from within the bring-up, the way a real stack's
	// control traffic re-enters the layer.
	StartupFunc func() error

	mu       sync.Mutex
	nextFD   int
	startups int
	owned    map[int]bool
	calls    map[native.Op]int
	readData map[int][]byte
	written  map[int][]byte
	options  map[int]map[optKey][]byte
	flags    map[int]int
	peers    map[int]unix.Sockaddr
	names    map[int]unix.Sockaddr
}

var _ stack.Stack = (*Stack)(nil)

// New returns an empty recording stack.
func New() *Stack {
	return &Stack{
		nextFD:   fdBase,
		owned:    make(map[int]bool),
		calls:    make(map[native.Op]int),
		readData: make(map[int][]byte),
		written:  make(map[int][]byte),
		options:  make(map[int]map[optKey][]byte),
		flags:    make(map[int]int),
		peers:    make(map[int]unix.Sockaddr),
		names:    make(map[int]unix.Sockaddr),
	}
}

// Startup counts bring-ups and runs StartupFunc if one is set.
func (s *Stack) Startup() error {
	s.mu.Lock()
	s.startups++
	fn := s.StartupFunc
	s.mu.Unlock()

	if fn != nil {
		return fn()
	}
	return nil
}

// Startups returns how many times Startup ran.
func (s *Stack) Startups() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.startups
}

// Calls returns how many times op reached this stack.
func (s *Stack) Calls(op native.Op) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[op]
}

// Own marks fd as belonging to this stack.
func (s *Stack) Own(fd int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.owned[fd] = true
}

// Disown removes fd from the ownership set.
func (s *Stack) Disown(fd int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.owned, fd)
}

// Owns reports whether the stack considers fd its own.
func (s *Stack) Owns(fd int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.owned[fd]
}

// SetReadData preloads the bytes Read-family calls on fd will consume.
func (s *Stack) SetReadData(fd int, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.readData[fd] = append([]byte(nil), data...)
}

// Written returns everything the Write family sent on fd.
func (s *Stack) Written(fd int) []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]byte(nil), s.written[fd]...)
}

// SetPeername cans the Getpeername answer for fd.
func (s *Stack) SetPeername(fd int, sa unix.Sockaddr) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.peers[fd] = sa
}

func (s *Stack) record(op native.Op) {
	s.mu.Lock()
	s.calls[op]++
	s.mu.Unlock()
}

// disclaim records op and reports whether fd is foreign.
func (s *Stack) disclaim(op native.Op, fd int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[op]++
	return !s.owned[fd]
}

func (s *Stack) newFD() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	fd := s.nextFD
	s.nextFD++
	s.owned[fd] = true
	return fd
}

func (s *Stack) Socket(domain, typ, proto int) (int, error) {
	s.record(native.OpSocket)
	return s.newFD(), nil
}

func (s *Stack) Close(fd int) error {
	if s.disclaim(native.OpClose, fd) {
		return stack.ErrNotOwned
	}
	s.mu.Lock()
	delete(s.owned, fd)
	delete(s.readData, fd)
	delete(s.written, fd)
	delete(s.options, fd)
	delete(s.flags, fd)
	delete(s.peers, fd)
	delete(s.names, fd)
	s.mu.Unlock()
	return nil
}

func (s *Stack) Shutdown(fd, how int) error {
	if s.disclaim(native.OpShutdown, fd) {
		return stack.ErrNotOwned
	}
	return nil
}

func (s *Stack) Bind(fd int, sa unix.Sockaddr) error {
	if s.disclaim(native.OpBind, fd) {
		return stack.ErrNotOwned
	}
	s.mu.Lock()
	s.names[fd] = sa
	s.mu.Unlock()
	return nil
}

func (s *Stack) Connect(fd int, sa unix.Sockaddr) error {
	if s.disclaim(native.OpConnect, fd) {
		return stack.ErrNotOwned
	}
	s.mu.Lock()
	s.peers[fd] = sa
	s.mu.Unlock()
	return nil
}

func (s *Stack) Listen(fd, backlog int) error {
	if s.disclaim(native.OpListen, fd) {
		return stack.ErrNotOwned
	}
	return nil
}

func (s *Stack) Accept(fd int) (int, unix.Sockaddr, error) {
	if s.disclaim(native.OpAccept, fd) {
		return -1, nil, stack.ErrNotOwned
	}
	return s.newFD(), &unix.SockaddrInet4{}, nil
}

func (s *Stack) Accept4(fd, flags int) (int, unix.Sockaddr, error) {
	if s.disclaim(native.OpAccept4, fd) {
		return -1, nil, stack.ErrNotOwned
	}
	nfd := s.newFD()
	s.mu.Lock()
	s.flags[nfd] = flags
	s.mu.Unlock()
	return nfd, &unix.SockaddrInet4{}, nil
}

func (s *Stack) Fcntl(fd, cmd, arg int) (int, error) {
	if s.disclaim(native.OpFcntl, fd) {
		return -1, stack.ErrNotOwned
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	switch cmd {
	case unix.F_SETFL:
		s.flags[fd] = arg
		return 0, nil
	case unix.F_GETFL:
		return s.flags[fd], nil
	}
	return 0, nil
}

func (s *Stack) Getsockopt(fd, level, opt int, value []byte) (int, error) {
	if s.disclaim(native.OpGetsockopt, fd) {
		return 0, stack.ErrNotOwned
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.options[fd][optKey{level, opt}]
	if !ok {
		return 0, unix.ENOPROTOOPT
	}
	n := copy(value, stored)
	return n, nil
}

func (s *Stack) Setsockopt(fd, level, opt int, value []byte) error {
	if s.disclaim(native.OpSetsockopt, fd) {
		return stack.ErrNotOwned
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.options[fd] == nil {
		s.options[fd] = make(map[optKey][]byte)
	}
	s.options[fd][optKey{level, opt}] = append([]byte(nil), value...)
	return nil
}

func (s *Stack) Getsockname(fd int) (unix.Sockaddr, error) {
	if s.disclaim(native.OpGetsockname, fd) {
		return nil, stack.ErrNotOwned
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if sa, ok := s.names[fd]; ok {
		return sa, nil
	}
	return &unix.SockaddrInet4{}, nil
}

func (s *Stack) Getpeername(fd int) (unix.Sockaddr, error) {
	if s.disclaim(native.OpGetpeername, fd) {
		return nil, stack.ErrNotOwned
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if sa, ok := s.peers[fd]; ok {
		return sa, nil
	}
	return nil, unix.ENOTCONN
}

// consume moves up to len(p) preloaded bytes into p.
func (s *Stack) consume(fd int, p []byte) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := copy(p, s.readData[fd])
	s.readData[fd] = s.readData[fd][n:]
	return n
}

func (s *Stack) Read(fd int, p []byte) (int, error) {
	if s.disclaim(native.OpRead, fd) {
		return -1, stack.ErrNotOwned
	}
	return s.consume(fd, p), nil
}

func (s *Stack) Recv(fd int, p []byte, flags int) (int, error) {
	if s.disclaim(native.OpRecv, fd) {
		return -1, stack.ErrNotOwned
	}
	return s.consume(fd, p), nil
}

func (s *Stack) Recvfrom(fd int, p []byte, flags int) (int, unix.Sockaddr, error) {
	if s.disclaim(native.OpRecvfrom, fd) {
		return -1, nil, stack.ErrNotOwned
	}
	n := s.consume(fd, p)
	s.mu.Lock()
	from := s.peers[fd]
	s.mu.Unlock()
	if from == nil {
		from = &unix.SockaddrInet4{}
	}
	return n, from, nil
}

func (s *Stack) Recvmsg(fd int, bufs [][]byte, oob []byte, flags int) (int, int, int, unix.Sockaddr, error) {
	if s.disclaim(native.OpRecvmsg, fd) {
		return -1, 0, 0, nil, stack.ErrNotOwned
	}
	var n int
	for _, b := range bufs {
		m := s.consume(fd, b)
		n += m
		if m < len(b) {
			break
		}
	}
	s.mu.Lock()
	from := s.peers[fd]
	s.mu.Unlock()
	if from == nil {
		from = &unix.SockaddrInet4{}
	}
	return n, 0, 0, from, nil
}

// sink appends p to the fd's write log.
func (s *Stack) sink(fd int, p []byte) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.written[fd] = append(s.written[fd], p...)
	return len(p)
}

func (s *Stack) Write(fd int, p []byte) (int, error) {
	if s.disclaim(native.OpWrite, fd) {
		return -1, stack.ErrNotOwned
	}
	return s.sink(fd, p), nil
}

func (s *Stack) Send(fd int, p []byte, flags int) (int, error) {
	if s.disclaim(native.OpSend, fd) {
		return -1, stack.ErrNotOwned
	}
	return s.sink(fd, p), nil
}

func (s *Stack) Sendto(fd int, p []byte, flags int, to unix.Sockaddr) (int, error) {
	if s.disclaim(native.OpSendto, fd) {
		return -1, stack.ErrNotOwned
	}
	return s.sink(fd, p), nil
}

func (s *Stack) Sendmsg(fd int, bufs [][]byte, oob []byte, to unix.Sockaddr, flags int) (int, error) {
	if s.disclaim(native.OpSendmsg, fd) {
		return -1, stack.ErrNotOwned
	}
	var n int
	for _, b := range bufs {
		n += s.sink(fd, b)
	}
	return n, nil
}

// Readiness family. Select has no focal descriptor and always succeeds
// with nothing ready; the epoll operations behave like descriptor ops on
// the multiplexing handle, so foreign handles still surface the sentinel
// value to the caller (there is no fallback to consume it).

func (s *Stack) Select(nfd int, r, w, e *unix.FdSet, timeout *unix.Timeval) (int, error) {
	s.record(native.OpSelect)
	return 0, nil
}

func (s *Stack) EpollCreate(size int) (int, error) {
	s.record(native.OpEpollCreate)
	return s.newFD(), nil
}

func (s *Stack) EpollCreate1(flags int) (int, error) {
	s.record(native.OpEpollCreate1)
	return s.newFD(), nil
}

func (s *Stack) EpollCtl(epfd, op, fd int, event *unix.EpollEvent) error {
	if s.disclaim(native.OpEpollCtl, epfd) {
		return stack.ErrNotOwned
	}
	return nil
}

func (s *Stack) EpollWait(epfd int, events []unix.EpollEvent, msec int) (int, error) {
	if s.disclaim(native.OpEpollWait, epfd) {
		return -1, stack.ErrNotOwned
	}
	return 0, nil
}

func (s *Stack) EpollPwait(epfd int, events []unix.EpollEvent, msec int, sigmask *unix.Sigset_t) (int, error) {
	if s.disclaim(native.OpEpollPwait, epfd) {
		return -1, stack.ErrNotOwned
	}
	return 0, nil
}
