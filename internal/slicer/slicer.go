// Package slicer rewrites expressions so that every suspending call becomes
// its own statement.
//
// After slicing, each suspending call sits in a SuspensionPoint whose result
// goes to a declared variable. Siblings evaluated before a suspending call are
// pinned in temporaries so their side effects keep their original order.
// Statements with no suspending call are returned as they were.
package slicer

import (
	"fmt"

	"github.com/wippyai/statemachine/errors"
	"github.com/wippyai/statemachine/ir"
)

// Context carries the counters of one slicing run.
type Context struct {
	// Suspends reports calls that suspend in addition to those marked
	// Suspend in the tree. May be nil.
	Suspends func(*ir.Call) bool
	// Func names the function being sliced in diagnostics.
	Func string

	nextVar int
	markers int
	temps   int
	memo    map[ir.Expr]bool
}

// NewContext prepares a context whose temporaries do not collide with the
// variables of fn.
func NewContext(fn *ir.Function, suspends func(*ir.Call) bool) *Context {
	return &Context{
		Suspends: suspends,
		Func:     fn.Name,
		nextVar:  ir.MaxVarID(fn) + 1,
	}
}

// Markers returns the number of suspension markers created so far.
func (c *Context) Markers() int { return c.markers }

// Temps returns the number of temporaries created so far.
func (c *Context) Temps() int { return c.temps }

// NextVarID returns the first variable ID not yet used by the context.
func (c *Context) NextVarID() int { return c.nextVar }

// IsSuspending reports whether call may suspend.
func (c *Context) IsSuspending(call *ir.Call) bool {
	return call.Suspend || (c.Suspends != nil && c.Suspends(call))
}

func (c *Context) suspends(n ir.Node) bool {
	if n == nil {
		return false
	}
	if e, ok := n.(ir.Expr); ok {
		return c.exprSuspends(e)
	}
	return ir.ContainsSuspendFunc(n, c.IsSuspending)
}

// exprSuspends is suspends for expressions, memoized per node so nested
// operands are walked once however deep the tree is.
func (c *Context) exprSuspends(e ir.Expr) bool {
	if e == nil {
		return false
	}
	if v, ok := c.memo[e]; ok {
		return v
	}
	var v bool
	switch e := e.(type) {
	case *ir.Const, *ir.Read, *ir.This:
	case *ir.Unary:
		v = c.exprSuspends(e.X)
	case *ir.Binary:
		v = c.exprSuspends(e.X) || c.exprSuspends(e.Y)
	case *ir.Cond:
		v = c.exprSuspends(e.C) || c.exprSuspends(e.Then) || c.exprSuspends(e.Else)
	case *ir.Call:
		v = c.IsSuspending(e) || c.anySuspends(e.Args)
	default:
		v = ir.ContainsSuspendFunc(e, c.IsSuspending)
	}
	if c.memo == nil {
		c.memo = map[ir.Expr]bool{}
	}
	c.memo[e] = v
	return v
}

func (c *Context) anySuspends(es []ir.Expr) bool {
	for _, e := range es {
		if c.suspends(e) {
			return true
		}
	}
	return false
}

func (c *Context) temp(mutable bool) *ir.Var {
	c.temps++
	v := &ir.Var{
		Name:    fmt.Sprintf("$t%d", c.temps),
		ID:      c.nextVar,
		Mutable: mutable,
		Temp:    true,
	}
	c.nextVar++
	return v
}

func (c *Context) marker(call *ir.Call, args []ir.Expr, dest *ir.Var) *ir.SuspensionPoint {
	c.markers++
	return &ir.SuspensionPoint{
		ID:   c.markers,
		Dest: dest,
		Call: &ir.Call{Callee: call.Callee, Args: args, Suspend: true},
	}
}

// Slice returns a copy of body in which every suspending call is a marker.
// Markers are numbered from 1 in program order.
func Slice(ctx *Context, body *ir.Block) (*ir.Block, error) {
	return ctx.block(body)
}

// SliceExpr splits e into statements to run first and a residual expression
// free of suspending calls.
func SliceExpr(ctx *Context, e ir.Expr) ([]ir.Stmt, ir.Expr, error) {
	return ctx.expr(e)
}

func (c *Context) block(b *ir.Block) (*ir.Block, error) {
	if b == nil {
		return nil, nil
	}
	out := &ir.Block{Stmts: make([]ir.Stmt, 0, len(b.Stmts))}
	for _, s := range b.Stmts {
		ss, err := c.stmt(s)
		if err != nil {
			return nil, err
		}
		out.Stmts = append(out.Stmts, ss...)
	}
	return out, nil
}

func (c *Context) stmt(s ir.Stmt) ([]ir.Stmt, error) {
	switch s := s.(type) {
	case *ir.Block:
		b, err := c.block(s)
		if err != nil {
			return nil, err
		}
		return []ir.Stmt{b}, nil

	case *ir.Decl:
		if !c.suspends(s.Init) {
			return []ir.Stmt{s}, nil
		}
		if call, ok := s.Init.(*ir.Call); ok && c.IsSuspending(call) {
			pre, args, err := c.list(call.Args)
			if err != nil {
				return nil, err
			}
			return append(pre, ir.NewDecl(s.Var, nil), c.marker(call, args, s.Var)), nil
		}
		pre, e, err := c.expr(s.Init)
		if err != nil {
			return nil, err
		}
		return append(pre, ir.NewDecl(s.Var, e)), nil

	case *ir.Assign:
		if !c.suspends(s.Value) {
			return []ir.Stmt{s}, nil
		}
		if call, ok := s.Value.(*ir.Call); ok && c.IsSuspending(call) {
			pre, args, err := c.list(call.Args)
			if err != nil {
				return nil, err
			}
			return append(pre, c.marker(call, args, s.Var)), nil
		}
		pre, e, err := c.expr(s.Value)
		if err != nil {
			return nil, err
		}
		return append(pre, ir.NewAssign(s.Var, e)), nil

	case *ir.ExprStmt:
		if !c.suspends(s.X) {
			return []ir.Stmt{s}, nil
		}
		if call, ok := s.X.(*ir.Call); ok && c.IsSuspending(call) {
			pre, args, err := c.list(call.Args)
			if err != nil {
				return nil, err
			}
			return append(pre, c.marker(call, args, nil)), nil
		}
		pre, e, err := c.expr(s.X)
		if err != nil {
			return nil, err
		}
		return append(pre, ir.NewExprStmt(e)), nil

	case *ir.If:
		pre, cond, err := c.expr(s.Cond)
		if err != nil {
			return nil, err
		}
		then, err := c.block(s.Then)
		if err != nil {
			return nil, err
		}
		els, err := c.block(s.Else)
		if err != nil {
			return nil, err
		}
		return append(pre, ir.NewIf(cond, then, els)), nil

	case *ir.While:
		if !c.suspends(s.Cond) {
			body, err := c.block(s.Body)
			if err != nil {
				return nil, err
			}
			return []ir.Stmt{&ir.While{Cond: s.Cond, Body: body, Label: s.Label}}, nil
		}
		// while c { body } => while true { pre; if !c { break }; body }
		pre, cond, err := c.expr(s.Cond)
		if err != nil {
			return nil, err
		}
		body, err := c.block(s.Body)
		if err != nil {
			return nil, err
		}
		stmts := append(pre, ir.NewIf(ir.Not(cond), ir.NewBlock(ir.NewBreak("")), nil))
		stmts = append(stmts, body.Stmts...)
		return []ir.Stmt{&ir.While{Cond: ir.Bool(true), Body: ir.NewBlock(stmts...), Label: s.Label}}, nil

	case *ir.Return:
		if !c.suspends(s.Value) {
			return []ir.Stmt{s}, nil
		}
		pre, e, err := c.expr(s.Value)
		if err != nil {
			return nil, err
		}
		return append(pre, &ir.Return{Value: e, Target: s.Target}), nil

	case *ir.Throw:
		if !c.suspends(s.Value) {
			return []ir.Stmt{s}, nil
		}
		pre, e, err := c.expr(s.Value)
		if err != nil {
			return nil, err
		}
		return append(pre, ir.NewThrow(e)), nil

	case *ir.Try:
		body, err := c.block(s.Body)
		if err != nil {
			return nil, err
		}
		catch, err := c.block(s.Catch)
		if err != nil {
			return nil, err
		}
		finally, err := c.block(s.Finally)
		if err != nil {
			return nil, err
		}
		return []ir.Stmt{&ir.Try{Body: body, CatchVar: s.CatchVar, Catch: catch, Finally: finally}}, nil

	case *ir.Break, *ir.Continue:
		return []ir.Stmt{s}, nil

	case *ir.SuspensionPoint, *ir.Store, *ir.Dispatch:
		return nil, errors.Structural(errors.PhaseSlice, c.Func, s, "input already contains lowered statements")
	}
	return nil, errors.Unsupported(errors.PhaseSlice, c.Func, s, fmt.Sprintf("statement %T", s))
}

func (c *Context) expr(e ir.Expr) ([]ir.Stmt, ir.Expr, error) {
	if !c.suspends(e) {
		return nil, e, nil
	}
	switch e := e.(type) {
	case *ir.Call:
		pre, args, err := c.list(e.Args)
		if err != nil {
			return nil, nil, err
		}
		if !c.IsSuspending(e) {
			return pre, &ir.Call{Callee: e.Callee, Args: args}, nil
		}
		t := c.temp(false)
		pre = append(pre, ir.NewDecl(t, nil), c.marker(e, args, t))
		return pre, ir.NewRead(t), nil

	case *ir.Unary:
		pre, x, err := c.expr(e.X)
		if err != nil {
			return nil, nil, err
		}
		return pre, ir.NewUnary(e.Op, x), nil

	case *ir.Binary:
		if e.Op.ShortCircuit() && c.suspends(e.Y) {
			return c.shortCircuit(e)
		}
		pre, xs, err := c.list([]ir.Expr{e.X, e.Y})
		if err != nil {
			return nil, nil, err
		}
		return pre, ir.NewBinary(e.Op, xs[0], xs[1]), nil

	case *ir.Cond:
		if c.suspends(e.Then) || c.suspends(e.Else) {
			return c.cond(e)
		}
		pre, cond, err := c.expr(e.C)
		if err != nil {
			return nil, nil, err
		}
		return pre, ir.NewCond(cond, e.Then, e.Else), nil
	}
	return nil, nil, errors.Unsupported(errors.PhaseSlice, c.Func, e, fmt.Sprintf("suspending call under %T", e))
}

// list slices operands evaluated left to right. An operand that is followed
// by a suspending sibling and is not stable is pinned in a temporary.
func (c *Context) list(es []ir.Expr) ([]ir.Stmt, []ir.Expr, error) {
	var pre []ir.Stmt
	out := make([]ir.Expr, len(es))
	for i, e := range es {
		ep, v, err := c.expr(e)
		if err != nil {
			return nil, nil, err
		}
		pre = append(pre, ep...)
		if !stable(v) && c.anySuspends(es[i+1:]) {
			t := c.temp(false)
			pre = append(pre, ir.NewDecl(t, v))
			v = ir.NewRead(t)
		}
		out[i] = v
	}
	return pre, out, nil
}

// stable reports whether evaluating e later yields the same value with no
// side effect. Expressions never assign, so a variable read qualifies.
func stable(e ir.Expr) bool {
	switch e.(type) {
	case *ir.Const, *ir.Read:
		return true
	}
	return false
}

// x && y => t = x; if t { t = y }
// x || y => t = x; if !t { t = y }
func (c *Context) shortCircuit(e *ir.Binary) ([]ir.Stmt, ir.Expr, error) {
	pre, x, err := c.expr(e.X)
	if err != nil {
		return nil, nil, err
	}
	t := c.temp(true)
	pre = append(pre, ir.NewDecl(t, x))
	ypre, y, err := c.expr(e.Y)
	if err != nil {
		return nil, nil, err
	}
	guard := ir.Expr(ir.NewRead(t))
	if e.Op == ir.OpOr {
		guard = ir.Not(guard)
	}
	then := ir.NewBlock(append(ypre, ir.NewAssign(t, y))...)
	return append(pre, ir.NewIf(guard, then, nil)), ir.NewRead(t), nil
}

// c ? a : b => var t; if c { t = a } else { t = b }
func (c *Context) cond(e *ir.Cond) ([]ir.Stmt, ir.Expr, error) {
	pre, cond, err := c.expr(e.C)
	if err != nil {
		return nil, nil, err
	}
	t := c.temp(true)
	pre = append(pre, ir.NewDecl(t, nil))
	tpre, tv, err := c.expr(e.Then)
	if err != nil {
		return nil, nil, err
	}
	epre, ev, err := c.expr(e.Else)
	if err != nil {
		return nil, nil, err
	}
	then := ir.NewBlock(append(tpre, ir.NewAssign(t, tv))...)
	els := ir.NewBlock(append(epre, ir.NewAssign(t, ev))...)
	return append(pre, ir.NewIf(cond, then, els)), ir.NewRead(t), nil
}
