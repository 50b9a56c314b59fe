package errors

import (
	"fmt"
	"strings"
)

// Phase indicates where in the gate lifecycle the error occurred
type Phase string

const (
	PhaseResolve  Phase = "resolve"  // native handle resolution
	PhaseStartup  Phase = "startup"  // managed stack bring-up
	PhaseRegister Phase = "register" // stack/provider installation
)

// Kind categorizes the error
type Kind string

const (
	KindUnknownOperation   Kind = "unknown_operation"
	KindBadHandle          Kind = "bad_handle"
	KindStackFailure       Kind = "stack_failure"
	KindNoStack            Kind = "no_stack"
	KindAlreadyInitialized Kind = "already_initialized"
	KindInvalidInput       Kind = "invalid_input"
)

// Error is the structured error type for gate bring-up failures.
// Dispatch-path errors never use it: those propagate from the serving
// backend verbatim.
type Error struct {
	Cause  error
	Phase  Phase
	Kind   Kind
	Op     string
	Want   string
	Got    string
	Detail string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if e.Op != "" {
		b.WriteString(" for ")
		b.WriteString(e.Op)
	}

	if e.Want != "" || e.Got != "" {
		b.WriteString(": want ")
		b.WriteString(e.Want)
		b.WriteString(", got ")
		b.WriteString(e.Got)
	}

	if e.Detail != "" {
		if e.Want != "" || e.Got != "" {
			b.WriteString(" - ")
		} else {
			b.WriteString(": ")
		}
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Phase == t.Phase && e.Kind == t.Kind
	}
	return false
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Op sets the operation name
func (b *Builder) Op(op string) *Builder {
	b.err.Op = op
	return b
}

// Want sets the expected handle signature
func (b *Builder) Want(t string) *Builder {
	b.err.Want = t
	return b
}

// Got sets the actual handle signature
func (b *Builder) Got(t string) *Builder {
	b.err.Got = t
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for common error patterns

// UnknownOperation reports that the provider has no handle for an operation.
func UnknownOperation(op string) *Error {
	return &Error{
		Phase:  PhaseResolve,
		Kind:   KindUnknownOperation,
		Op:     op,
		Detail: "no native implementation resolved",
	}
}

// BadHandle reports a resolved handle whose shape does not match the operation.
func BadHandle(op, want, got string) *Error {
	return &Error{
		Phase: PhaseResolve,
		Kind:  KindBadHandle,
		Op:    op,
		Want:  want,
		Got:   got,
	}
}

// ResolveFailed wraps a provider error for one operation.
func ResolveFailed(op string, cause error) *Error {
	return &Error{
		Phase: PhaseResolve,
		Kind:  KindUnknownOperation,
		Op:    op,
		Cause: cause,
	}
}

// StartupFailed wraps a managed-stack startup error.
func StartupFailed(cause error) *Error {
	return &Error{
		Phase:  PhaseStartup,
		Kind:   KindStackFailure,
		Detail: "managed stack startup",
		Cause:  cause,
	}
}

// NoStack reports a dispatch attempt with no managed stack registered.
func NoStack() *Error {
	return &Error{
		Phase:  PhaseStartup,
		Kind:   KindNoStack,
		Detail: "no managed stack registered before first dispatch",
	}
}

// AlreadyInitialized reports a configuration change after the gate latched.
func AlreadyInitialized(what string) *Error {
	return &Error{
		Phase:  PhaseRegister,
		Kind:   KindAlreadyInitialized,
		Detail: fmt.Sprintf("cannot install %s: gate already initialized", what),
	}
}

// InvalidInput creates an invalid input error
func InvalidInput(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidInput,
		Detail: detail,
	}
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}
