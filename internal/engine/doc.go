// Package engine runs the lowering pipeline for one function or a module:
// slice, analyze liveness, synthesize the holder, rewrite.
//
// For a module, suspension propagates through the call graph: a call to a
// module function that can suspend is itself a suspension point.
package engine
