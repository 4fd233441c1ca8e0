// Package errors provides structured error types for brainwasm.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error category).
// The Error type carries a location path, the offending value and a cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseValidate, errors.KindUnbalancedBlock).
//		Path("code", "0").
//		Detail("%d block(s) left open", depth).
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.OutOfBounds(errors.PhaseValidate, path, 7, 3)
//	err := errors.Trap(cause)
//
// All errors implement the standard error interface and support errors.Is/As.
// Two *Error values compare equal under errors.Is when Phase and Kind match.
package errors
