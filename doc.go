// Package sockgate routes a fixed set of standard socket/IO operations
// between a managed user-space network stack and the kernel.
//
// A process registers one managed stack and then calls the socket surface
// through this package. Each call is offered to the stack first; when the
// stack disclaims the descriptor with the reserved ownership sentinel, the
// call is re-issued, once, against the pre-interposition native handle and
// that result is returned verbatim. No ownership table exists anywhere:
// ownership is rediscovered on every call from the stack's answer.
//
// # Architecture Overview
//
// The library is organized into small packages with distinct
// responsibilities:
//
//	sockgate/            Root package: dispatch surface and the init gate
//	├── errors/          Structured bring-up errors (resolve/startup/register)
//	├── native/          Pre-interposition handles: provider, resolution, table
//	├── stack/           Managed-stack contract and the ownership sentinel
//	│   ├── hoststack/   Reference stack backed by the host kernel
//	│   └── stacktest/   Recording stack double for tests
//	├── stats/           Per-operation route counters
//	└── cmd/sockmon/     Live dispatch monitor
//
// # Quick Start
//
// Register a stack before the first dispatched call, then use the surface
// as usual:
//
//	if err := sockgate.Register(hoststack.New()); err != nil {
//		log.Fatal(err)
//	}
//
//	fd, err := sockgate.Socket(unix.AF_INET, unix.SOCK_STREAM, 0)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer sockgate.Close(fd)
//
// # Dispatch Protocol
//
// Initialization is lazy and single-shot: the first dispatched call, from
// whichever goroutine, resolves every native handle and runs the stack's
// Startup exactly once, while concurrent first calls yield until the gate
// is Ready. Startup traffic that re-enters the dispatch surface is
// recognized and let through rather than deadlocked. Bring-up failures
// abort the process: a partially interposed process cannot honor the
// fallback contract.
//
// Two operation classes skip the probe-then-fallback protocol. Socket
// creation inspects its arguments first and only offers the managed pair
// (AF_INET, SOCK_STREAM) to the stack. The readiness family (Select,
// Epoll*) always routes to the stack and never falls back, because one
// multiplexing handle may watch descriptors owned by both backends.
//
// # Thread Safety
//
// The whole surface is safe for concurrent use. Dispatch takes no locks;
// ordering between concurrent calls on different descriptors is whatever
// the servicing backends provide. This layer adds no cancellation or
// timeout semantics: a call blocks exactly as long as the backend that
// services it does.
//
// Linux only: the readiness family is epoll.
package sockgate
