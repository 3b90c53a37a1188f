// Package statemachine lowers suspendable functions into explicit state
// machines.
//
// A function that contains suspension points (calls that may yield control
// and resume later) is rewritten into a state holder class plus a short
// replacement body. The holder records which suspension point was reached in
// a label field, keeps live locals and parameters in fields, and receives the
// outcome of the pending call through a result field. Its resume method
// dispatches on the label and continues right after the suspension point.
//
// # Architecture Overview
//
//	statemachine/        Lower, LowerModule, Config and callee matchers
//	├── ir/              Tree IR: nodes, functions, holders, printer
//	├── text/            S-expression parser for the IR
//	├── internal/
//	│   ├── slicer/      Splits expressions around suspending calls
//	│   ├── liveness/    Live locals at every suspension point
//	│   ├── holder/      State holder layout
//	│   ├── rewrite/     Entry method construction
//	│   └── engine/      Pipeline, call graph, logging
//	├── runtime/         Reference interpreter with resume protocol
//	├── errors/          Structured error types
//	└── cmd/lower/       Command line driver
//
// # Quick Start
//
//	fn, _ := text.ParseFunction(`(func sum
//		(var a (await next))
//		(var b (await next))
//		(return (+ a b)))`)
//	res, err := statemachine.Lower(fn, statemachine.Config{})
//	// res.Function now constructs sum$StateMachine and calls its resume
//	// method; res.Aux holds the holder class.
//
// # Labels
//
// The label field starts at 0. Reaching suspension point i stores i. Normal
// completion stores -1 and an escaping failure stores -2. Resuming a holder in
// either terminal state is a runtime error.
//
// # Errors
//
// Every error raised while lowering is an *errors.Error with a phase and a
// kind; all of them are internal compiler errors. Match them with errors.Is:
//
//	if errors.Is(err, &errors.Error{Phase: errors.PhaseLower, Kind: errors.KindAlreadyLowered}) {
//		...
//	}
package statemachine
