package main

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sys/unix"

	"github.com/sockgate/sockgate"
)

// traffic is a loopback workload that exercises all three dispatch routes:
// managed stream sockets, native datagram creations, and fallback calls on
// descriptors created behind the layer.
type traffic struct {
	lfd    int
	epfd   int
	cancel context.CancelFunc
	eg     *errgroup.Group

	acceptDone chan error
}

func startTraffic(workers, rounds int) (*traffic, error) {
	lfd, err := sockgate.Socket(unix.AF_INET, unix.SOCK_STREAM, 0)
	if err != nil {
		return nil, err
	}
	if err := sockgate.Bind(lfd, &unix.SockaddrInet4{Addr: [4]byte{127, 0, 0, 1}}); err != nil {
		sockgate.Close(lfd)
		return nil, err
	}
	if err := sockgate.Listen(lfd, workers); err != nil {
		sockgate.Close(lfd)
		return nil, err
	}
	name, err := sockgate.Getsockname(lfd)
	if err != nil {
		sockgate.Close(lfd)
		return nil, err
	}
	addr := name.(*unix.SockaddrInet4)

	epfd, err := sockgate.EpollCreate1(0)
	if err != nil {
		sockgate.Close(lfd)
		return nil, err
	}
	ev := unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(lfd)}
	if err := sockgate.EpollCtl(epfd, unix.EPOLL_CTL_ADD, lfd, &ev); err != nil {
		sockgate.Close(epfd)
		sockgate.Close(lfd)
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	eg, ctx := errgroup.WithContext(ctx)

	t := &traffic{
		lfd:        lfd,
		epfd:       epfd,
		cancel:     cancel,
		eg:         eg,
		acceptDone: make(chan error, 1),
	}
	go func() { t.acceptDone <- acceptLoop(ctx, epfd, lfd) }()
	for i := 0; i < workers; i++ {
		eg.Go(func() error { return worker(ctx, addr, rounds) })
	}
	return t, nil
}

// stop asks the workload to wind down; wait reports the outcome.
func (t *traffic) stop() { t.cancel() }

func (t *traffic) wait() error {
	err := t.eg.Wait()
	t.cancel()
	aerr := <-t.acceptDone
	sockgate.Close(t.epfd)
	sockgate.Close(t.lfd)
	if err != nil {
		return err
	}
	return aerr
}

// acceptLoop drains the listener through the readiness path and echoes one
// message per connection.
func acceptLoop(ctx context.Context, epfd, lfd int) error {
	events := make([]unix.EpollEvent, 8)
	buf := make([]byte, 64)
	for {
		if ctx.Err() != nil {
			return nil
		}
		n, err := sockgate.EpollWait(epfd, events, 200)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return err
		}
		for i := 0; i < n; i++ {
			conn, _, err := sockgate.Accept(lfd)
			if err != nil {
				continue
			}
			rn, err := sockgate.Read(conn, buf)
			if err == nil && rn > 0 {
				sockgate.Write(conn, buf[:rn])
			}
			sockgate.Close(conn)
		}
	}
}

func worker(ctx context.Context, addr *unix.SockaddrInet4, rounds int) error {
	buf := make([]byte, 64)
	for r := 0; rounds == 0 || r < rounds; r++ {
		if ctx.Err() != nil {
			return nil
		}

		// Managed round-trip.
		fd, err := sockgate.Socket(unix.AF_INET, unix.SOCK_STREAM, 0)
		if err != nil {
			return err
		}
		if err := sockgate.Connect(fd, addr); err != nil {
			sockgate.Close(fd)
			return err
		}
		if _, err := sockgate.Send(fd, []byte("ping"), 0); err != nil {
			sockgate.Close(fd)
			return err
		}
		if _, err := sockgate.Recv(fd, buf, 0); err != nil {
			sockgate.Close(fd)
			return err
		}
		sockgate.Close(fd)

		// Datagram creation routes native; its close is a disclaimed
		// fallback.
		if dfd, err := sockgate.Socket(unix.AF_INET, unix.SOCK_DGRAM, 0); err == nil {
			sockgate.Close(dfd)
		}

		// A descriptor created behind the layer exercises the fallback
		// route on every call.
		if bfd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM, 0); err == nil {
			sockgate.Getsockname(bfd)
			sockgate.Close(bfd)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(25 * time.Millisecond):
		}
	}
	return nil
}
