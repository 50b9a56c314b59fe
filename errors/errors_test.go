package errors

import (
	"errors"
	"testing"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		contains []string
	}{
		{
			name: "full error",
			err: &Error{
				Phase:  PhaseResolve,
				Kind:   KindBadHandle,
				Op:     "getsockopt",
				Want:   "func(int, int, int, []byte) (int, error)",
				Got:    "string",
				Detail: "provider returned a non-function",
			},
			contains: []string{"[resolve]", "bad_handle", "getsockopt", "want func(int, int, int, []byte) (int, error)", "got string", "non-function"},
		},
		{
			name: "minimal error",
			err: &Error{
				Phase: PhaseStartup,
				Kind:  KindNoStack,
			},
			contains: []string{"[startup]", "no_stack"},
		},
		{
			name: "error with cause",
			err: &Error{
				Phase:  PhaseStartup,
				Kind:   KindStackFailure,
				Detail: "managed stack startup",
				Cause:  errors.New("control channel refused"),
			},
			contains: []string{"[startup]", "stack_failure", "managed stack startup", "caused by", "control channel refused"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := tt.err.Error()
			for _, s := range tt.contains {
				if !containsSubstring(msg, s) {
					t.Errorf("error message %q does not contain %q", msg, s)
				}
			}
		})
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := &Error{
		Phase: PhaseStartup,
		Kind:  KindStackFailure,
		Cause: cause,
	}

	if !errors.Is(err.Unwrap(), cause) {
		t.Error("Unwrap did not return cause")
	}

	if !errors.Is(errors.Unwrap(err), cause) {
		t.Error("errors.Unwrap did not return cause")
	}
}

func TestError_Is(t *testing.T) {
	err := &Error{
		Phase: PhaseResolve,
		Kind:  KindUnknownOperation,
		Op:    "sendmsg",
	}

	// Same phase and kind
	if !err.Is(&Error{Phase: PhaseResolve, Kind: KindUnknownOperation}) {
		t.Error("Is should match same phase and kind")
	}

	// Different phase
	if err.Is(&Error{Phase: PhaseRegister, Kind: KindUnknownOperation}) {
		t.Error("Is should not match different phase")
	}

	// Different kind
	if err.Is(&Error{Phase: PhaseResolve, Kind: KindBadHandle}) {
		t.Error("Is should not match different kind")
	}

	// Test with errors.Is
	target := &Error{Phase: PhaseResolve, Kind: KindUnknownOperation}
	if !errors.Is(err, target) {
		t.Error("errors.Is should match")
	}
}

func TestBuilder(t *testing.T) {
	cause := errors.New("root")
	err := New(PhaseResolve, KindBadHandle).
		Op("accept4").
		Want("func(int, int) (int, unix.Sockaddr, error)").
		Got("func()").
		Cause(cause).
		Detail("expected %s variant, got %s", "flag-qualified", "plain").
		Build()

	if err.Phase != PhaseResolve {
		t.Errorf("Phase = %v, want %v", err.Phase, PhaseResolve)
	}
	if err.Kind != KindBadHandle {
		t.Errorf("Kind = %v, want %v", err.Kind, KindBadHandle)
	}
	if err.Op != "accept4" {
		t.Errorf("Op = %v, want accept4", err.Op)
	}
	if err.Want != "func(int, int) (int, unix.Sockaddr, error)" {
		t.Errorf("Want = %v", err.Want)
	}
	if err.Got != "func()" {
		t.Errorf("Got = %v", err.Got)
	}
	if !errors.Is(err.Cause, cause) {
		t.Errorf("Cause = %v, want %v", err.Cause, cause)
	}
	if err.Detail != "expected flag-qualified variant, got plain" {
		t.Errorf("Detail = %v", err.Detail)
	}
}

func TestConvenienceConstructors(t *testing.T) {
	t.Run("UnknownOperation", func(t *testing.T) {
		err := UnknownOperation("epoll_ctl")
		if err.Kind != KindUnknownOperation {
			t.Errorf("Kind = %v, want %v", err.Kind, KindUnknownOperation)
		}
		if err.Op != "epoll_ctl" {
			t.Errorf("Op = %v, want epoll_ctl", err.Op)
		}
	})

	t.Run("BadHandle", func(t *testing.T) {
		err := BadHandle("read", "func(int, []byte) (int, error)", "int")
		if err.Kind != KindBadHandle {
			t.Errorf("Kind = %v, want %v", err.Kind, KindBadHandle)
		}
		if err.Want == "" || err.Got == "" {
			t.Errorf("Want=%v Got=%v, both should be set", err.Want, err.Got)
		}
	})

	t.Run("ResolveFailed", func(t *testing.T) {
		cause := errors.New("lookup failed")
		err := ResolveFailed("connect", cause)
		if err.Phase != PhaseResolve {
			t.Errorf("Phase = %v, want %v", err.Phase, PhaseResolve)
		}
		if !errors.Is(err, cause) {
			t.Error("errors.Is should reach the cause")
		}
	})

	t.Run("StartupFailed", func(t *testing.T) {
		cause := errors.New("daemon unreachable")
		err := StartupFailed(cause)
		if err.Kind != KindStackFailure {
			t.Errorf("Kind = %v, want %v", err.Kind, KindStackFailure)
		}
		if !containsSubstring(err.Error(), "daemon unreachable") {
			t.Errorf("Error() = %v, should carry the cause", err.Error())
		}
	})

	t.Run("NoStack", func(t *testing.T) {
		err := NoStack()
		if err.Kind != KindNoStack {
			t.Errorf("Kind = %v, want %v", err.Kind, KindNoStack)
		}
	})

	t.Run("AlreadyInitialized", func(t *testing.T) {
		err := AlreadyInitialized("managed stack")
		if err.Kind != KindAlreadyInitialized {
			t.Errorf("Kind = %v, want %v", err.Kind, KindAlreadyInitialized)
		}
		if !containsSubstring(err.Detail, "managed stack") {
			t.Errorf("Detail = %v, should name what was installed", err.Detail)
		}
	})

	t.Run("InvalidInput", func(t *testing.T) {
		err := InvalidInput(PhaseRegister, "stack cannot be nil")
		if err.Kind != KindInvalidInput {
			t.Errorf("Kind = %v, want %v", err.Kind, KindInvalidInput)
		}
	})

	t.Run("Wrap", func(t *testing.T) {
		cause := errors.New("inner")
		err := Wrap(PhaseStartup, KindStackFailure, cause, "outer context")
		if !errors.Is(err, cause) {
			t.Error("wrapped cause should be reachable via errors.Is")
		}
	})
}

func containsSubstring(s, substr string) bool {
	for i := 0; i <= len(s)-len(substr); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}
