// Package native resolves and holds the pre-interposition socket/IO surface.
//
// A Provider answers, for each operation name, the callable that would have
// serviced the call absent interposition. Bind resolves every operation
// exactly once into an immutable Table of typed handles; the gate publishes
// the Table before Ready becomes observable, so dispatchers read it without
// locks.
//
// The resolved set matches the interposed fallback surface. The readiness
// multiplexing family (select aside, which is resolved but never falls back)
// has no native entries: those calls are always serviced by the managed
// stack.
package native
