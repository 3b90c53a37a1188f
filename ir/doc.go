// Package ir defines the tree representation consumed and produced by the
// state-machine lowering.
//
// Node kinds form a closed tagged union: every expression implements Expr,
// every statement implements Stmt, and consumers switch exhaustively over the
// concrete types. Trees are treated as immutable once built; passes return new
// nodes instead of editing shared ones. Variables carry identity (pointer and
// ID), so two variables with the same name are distinct.
//
// # Lowered forms
//
// A few node kinds only appear after lowering:
//
//	This, Load, Store        access to the state holder's fields
//	New, Invoke              holder construction and entry-method calls
//	Intrinsic                pending sentinel and result-channel helpers
//	SuspensionPoint          suspension marker (also produced by slicing)
//	Dispatch                 label-driven entry into resumption branches
package ir
