// Package errors provides structured error types for gate bring-up failures.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error
// category). The Error type carries the operation name and, for handle shape
// mismatches, the expected and actual signatures.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseResolve, errors.KindBadHandle).
//		Op("socket").
//		Want("func(int, int, int) (int, error)").
//		Got("string").
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.UnknownOperation("accept4")
//	err := errors.StartupFailed(cause)
//
// All errors implement the standard error interface and support errors.Is/As.
// The dispatch path is exempt from this package on purpose: results and error
// codes from whichever backend serviced a call reach the caller verbatim.
package errors
