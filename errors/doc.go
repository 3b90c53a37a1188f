// Package errors provides structured diagnostics for the state-machine lowering.
//
// Errors are categorized by Phase (which part of the pass raised it) and Kind
// (error category). The Error type carries the enclosing function, a rendering
// of the offending node, and a cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseRewrite, errors.KindUnknownTarget).
//		Func("fetch").
//		Node("(return g x)").
//		Detail("return targets unknown function %q", "g").
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.Structural(errors.PhaseLiveness, "fetch", node, "read of undeclared variable")
//	err := errors.AlreadyLowered("fetch")
//
// All errors implement the standard error interface and support errors.Is/As.
package errors
