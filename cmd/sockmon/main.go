package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/sockgate/sockgate"
	"github.com/sockgate/sockgate/stack/hoststack"
	"github.com/sockgate/sockgate/stats"
)

func main() {
	var (
		plain    = flag.Bool("plain", false, "Plain text output instead of the TUI")
		interval = flag.Duration("interval", 500*time.Millisecond, "Snapshot refresh interval")
		workers  = flag.Int("workers", 4, "Loopback traffic workers")
		rounds   = flag.Int("rounds", 0, "Rounds per worker (0 = until interrupted)")
	)
	flag.Parse()

	if err := run(*plain, *interval, *workers, *rounds); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(plain bool, interval time.Duration, workers, rounds int) error {
	if err := sockgate.Register(hoststack.New()); err != nil {
		return fmt.Errorf("register stack: %w", err)
	}

	// The TUI owns the terminal, so bring-up diagnostics stay quiet there;
	// plain mode gets them on stderr.
	usePlain := plain || !term.IsTerminal(int(os.Stdout.Fd()))
	if usePlain {
		if logger, err := zap.NewDevelopment(); err == nil {
			sockgate.SetLogger(logger)
		}
	}

	tr, err := startTraffic(workers, rounds)
	if err != nil {
		return fmt.Errorf("start traffic: %w", err)
	}

	if usePlain {
		// An interrupt winds the workload down instead of killing the
		// process, so the final snapshot and descriptor cleanup still run.
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		go func() {
			<-ctx.Done()
			tr.stop()
		}()
		return runPlain(os.Stdout, interval, tr)
	}

	if err := runMonitor(interval); err != nil {
		return err
	}
	tr.stop()
	return tr.wait()
}

// runPlain prints a snapshot every interval until the workload completes.
func runPlain(w io.Writer, interval time.Duration, tr *traffic) error {
	done := make(chan error, 1)
	go func() { done <- tr.wait() }()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case err := <-done:
			printSnapshot(w, sockgate.Stats())
			return err
		case <-ticker.C:
			printSnapshot(w, sockgate.Stats())
		}
	}
}

func printSnapshot(w io.Writer, snap stats.Snapshot) {
	managed, fallback, native := snap.Totals()
	fmt.Fprintf(w, "routes: managed=%d fallback=%d native=%d\n", managed, fallback, native)
	for _, oc := range snap.Active() {
		fmt.Fprintf(w, "  %-14s managed=%-8d fallback=%-8d native=%d\n",
			oc.Op, oc.Managed, oc.Fallback, oc.Native)
	}
	fmt.Fprintln(w)
}
