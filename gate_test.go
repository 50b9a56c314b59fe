package sockgate

import (
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sys/unix"

	"github.com/sockgate/sockgate/errors"
	"github.com/sockgate/sockgate/native"
	"github.com/sockgate/sockgate/stack/stacktest"
)

// fatalLogger panics instead of exiting the process, so abort paths are
// observable, and records every entry for assertions.
func fatalLogger() (*zap.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return zap.New(core, zap.WithFatalHook(zapcore.WriteThenPanic)), logs
}

func expectAbort(t *testing.T, fn func()) {
	t.Helper()
	defer func() {
		if recover() == nil {
			t.Fatal("bring-up failure did not abort")
		}
	}()
	fn()
}

func lastEntry(t *testing.T, logs *observer.ObservedLogs) observer.LoggedEntry {
	t.Helper()
	entries := logs.All()
	if len(entries) == 0 {
		t.Fatal("no diagnostic logged")
	}
	return entries[len(entries)-1]
}

func TestInitializeOnce(t *testing.T) {
	st := stacktest.New()
	g := New(WithStack(st), WithLogger(zaptest.NewLogger(t)))

	const workers = 64
	fds := make(chan int, workers)
	var eg errgroup.Group
	for i := 0; i < workers; i++ {
		eg.Go(func() error {
			fd, err := g.Socket(unix.AF_INET, unix.SOCK_STREAM, 0)
			if err != nil {
				return err
			}
			fds <- fd
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		t.Fatalf("concurrent dispatch: %v", err)
	}
	close(fds)

	if n := st.Startups(); n != 1 {
		t.Fatalf("stack started %d times, want 1", n)
	}
	if got := g.state.Load(); got != gateReady {
		t.Fatalf("gate state = %d, want %d", got, gateReady)
	}
	if g.table == nil || g.table.Socket == nil || g.table.Select == nil {
		t.Fatal("native table not fully published")
	}

	seen := make(map[int]bool, workers)
	for fd := range fds {
		if seen[fd] {
			t.Fatalf("descriptor %d handed out twice", fd)
		}
		seen[fd] = true
	}
	if got := st.Calls(native.OpSocket); got != workers {
		t.Fatalf("managed socket calls = %d, want %d", got, workers)
	}
	managed, fallback, nat := g.Stats().Totals()
	if managed != workers || fallback != 0 || nat != 0 {
		t.Fatalf("route totals = (%d, %d, %d), want (%d, 0, 0)", managed, fallback, nat, workers)
	}
}

func TestDispatchDuringStartup(t *testing.T) {
	st := stacktest.New()
	g := New(WithStack(st), WithLogger(zaptest.NewLogger(t)))

	// The stack's bring-up traffic re-enters the dispatch layer from the
	// initializing goroutine. This must complete, not deadlock.
	var startupFD int
	st.StartupFunc = func() error {
		fd, err := g.Socket(unix.AF_INET, unix.SOCK_STREAM, 0)
		if err != nil {
			return err
		}
		if err := g.Listen(fd, 1); err != nil {
			return err
		}
		startupFD = fd
		return nil
	}

	fd, err := g.Socket(unix.AF_INET, unix.SOCK_STREAM, 0)
	if err != nil {
		t.Fatalf("Socket: %v", err)
	}
	if n := st.Startups(); n != 1 {
		t.Fatalf("stack started %d times, want 1", n)
	}
	if fd == startupFD {
		t.Fatal("outer and startup descriptors collide")
	}
	if got := st.Calls(native.OpSocket); got != 2 {
		t.Fatalf("managed socket calls = %d, want 2", got)
	}
	if got := st.Calls(native.OpListen); got != 1 {
		t.Fatalf("managed listen calls = %d, want 1", got)
	}
}

func TestRegisterSemantics(t *testing.T) {
	g := New(WithLogger(zaptest.NewLogger(t)))

	if err := g.Register(nil); err == nil {
		t.Fatal("Register(nil) succeeded")
	}

	st := stacktest.New()
	if err := g.Register(st); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if _, err := g.Socket(unix.AF_INET, unix.SOCK_STREAM, 0); err != nil {
		t.Fatalf("Socket: %v", err)
	}

	err := g.Register(stacktest.New())
	if err == nil {
		t.Fatal("Register after latch succeeded")
	}
	ge, ok := err.(*errors.Error)
	if !ok || ge.Kind != errors.KindAlreadyInitialized {
		t.Fatalf("Register after latch = %v, want %s", err, errors.KindAlreadyInitialized)
	}
}

func TestAbortWithoutStack(t *testing.T) {
	logger, logs := fatalLogger()
	g := New(WithLogger(logger))

	expectAbort(t, func() { g.Close(3) })

	entry := lastEntry(t, logs)
	if entry.Level != zapcore.FatalLevel || entry.Message != "dispatch with no managed stack" {
		t.Fatalf("abort entry = %v %q", entry.Level, entry.Message)
	}
}

type failingProvider struct {
	base native.Provider
	op   native.Op
}

func (p failingProvider) Resolve(op native.Op) (any, error) {
	if op == p.op {
		return nil, unix.ENOSYS
	}
	return p.base.Resolve(op)
}

func TestAbortOnUnresolvedOperation(t *testing.T) {
	logger, logs := fatalLogger()
	g := New(
		WithStack(stacktest.New()),
		WithProvider(failingProvider{base: native.UnixProvider{}, op: native.OpRecvmsg}),
		WithLogger(logger),
	)

	expectAbort(t, func() { g.Socket(unix.AF_INET, unix.SOCK_STREAM, 0) })

	entry := lastEntry(t, logs)
	diag, _ := entry.ContextMap()["error"].(string)
	if !strings.Contains(diag, string(native.OpRecvmsg)) {
		t.Fatalf("abort diagnostic %q does not name the operation", diag)
	}
}

func TestAbortOnStartupFailure(t *testing.T) {
	st := stacktest.New()
	st.StartupFunc = func() error { return unix.ECONNREFUSED }
	logger, logs := fatalLogger()
	g := New(WithStack(st), WithLogger(logger))

	expectAbort(t, func() { g.Listen(9, 1) })

	entry := lastEntry(t, logs)
	if entry.Message != "managed stack startup" {
		t.Fatalf("abort entry = %q", entry.Message)
	}
	diag, _ := entry.ContextMap()["error"].(string)
	if !strings.Contains(diag, "connection refused") {
		t.Fatalf("abort diagnostic %q does not carry the cause", diag)
	}
}

func TestPackageLogger(t *testing.T) {
	prev := packageLogger.Load()
	defer packageLogger.Store(prev)

	core, logs := observer.New(zapcore.DebugLevel)
	l := zap.New(core)
	SetLogger(l)
	if Logger() != l {
		t.Fatal("SetLogger did not install the logger")
	}
	SetLogger(nil)
	if Logger() != l {
		t.Fatal("SetLogger(nil) replaced the installed logger")
	}

	// Gates without their own logger pick up the package one.
	g := New(WithStack(stacktest.New()))
	if _, err := g.Socket(unix.AF_INET, unix.SOCK_STREAM, 0); err != nil {
		t.Fatalf("Socket: %v", err)
	}
	var sawBringUp bool
	for _, e := range logs.All() {
		if e.Message == "native handles bound" {
			sawBringUp = true
		}
	}
	if !sawBringUp {
		t.Fatal("bring-up diagnostics missing from package logger")
	}
}

func TestProcessGateSurface(t *testing.T) {
	prevGate := defaultGate
	defer func() { defaultGate = prevGate }()
	defaultGate = New(WithLogger(zaptest.NewLogger(t)))

	st := stacktest.New()
	if err := Register(st); err != nil {
		t.Fatalf("Register: %v", err)
	}

	fd, err := Socket(unix.AF_INET, unix.SOCK_STREAM, 0)
	if err != nil {
		t.Fatalf("Socket: %v", err)
	}
	if _, err := Write(fd, []byte("x")); err != nil {
		t.Fatalf("Write: %v", err)
	}

	epfd, err := EpollCreate1(0)
	if err != nil {
		t.Fatalf("EpollCreate1: %v", err)
	}
	if n, err := EpollWait(epfd, make([]unix.EpollEvent, 1), 0); err != nil || n != 0 {
		t.Fatalf("EpollWait = (%d, %v)", n, err)
	}

	if err := Close(fd); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := Register(stacktest.New()); err == nil {
		t.Fatal("Register after first dispatch succeeded")
	}

	managed, fallback, nat := Stats().Totals()
	if managed != 5 || fallback != 0 || nat != 0 {
		t.Fatalf("route totals = (%d, %d, %d), want (5, 0, 0)", managed, fallback, nat)
	}
}
