// Package text parses the S-expression form of the IR.
//
// The same notation is produced by ir.String, so a parsed module prints back
// to equivalent source. Lowered forms (holders, dispatch, field access) are
// print-only.
//
// Basic usage:
//
//	mod, err := text.Parse(`(module demo
//		(func f (param n) (suspend)
//			(var a (await fetch n))
//			(return (+ a 1))))`)
//
// Supported forms:
//   - Statements: var, val, set, do, if/then/else, while with optional @label,
//     break, continue, return, throw, try/body/catch/finally, block
//   - Expressions: integer, string, true, false and unit literals, names,
//     the operators + - * / % == != < <= > >= && || ! neg, (? c a b),
//     call, await
//   - Comments: line (;;)
//
// Names resolve lexically. A name used before its declaration, or outside the
// block that declares it, is a parse error. Redeclaring a name shadows it with
// a new variable.
package text
