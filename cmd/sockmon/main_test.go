package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/sockgate/sockgate"
	"github.com/sockgate/sockgate/stack/hoststack"
)

// With unbounded rounds the workload only ends when asked to stop, which is
// what the interrupt handler does. Stopping must let runPlain drain the
// workers, print the final snapshot, and release the listener and epoll
// descriptors through the dispatch surface.
func TestPlainModeWindsDownOnStop(t *testing.T) {
	if err := sockgate.Register(hoststack.New()); err != nil {
		t.Fatalf("Register: %v", err)
	}

	tr, err := startTraffic(2, 0)
	if err != nil {
		t.Fatalf("startTraffic: %v", err)
	}

	go func() {
		time.Sleep(200 * time.Millisecond)
		tr.stop()
	}()

	var out bytes.Buffer
	if err := runPlain(&out, 25*time.Millisecond, tr); err != nil {
		t.Fatalf("runPlain: %v", err)
	}

	if !strings.Contains(out.String(), "routes:") {
		t.Fatalf("final snapshot missing from output:\n%s", out.String())
	}
	managed, fallback, _ := sockgate.Stats().Totals()
	if managed == 0 {
		t.Fatal("no managed traffic recorded before shutdown")
	}
	if fallback == 0 {
		t.Fatal("no fallback traffic recorded before shutdown")
	}
}
