// Package rewrite turns a sliced function body into the entry method of its
// state holder.
//
// The rewritten body reads and writes parameters through holder fields, sends
// its returns to the entry method, and expands every marker into two
// branches: the first execution saves live locals, records the label and
// makes the call; the resumption restores live locals. Both branches then
// unwrap the result field, so a delivered failure is rethrown where the call
// was made. The whole body runs under a Dispatch on the label field.
package rewrite

import (
	"fmt"
	"sort"

	"github.com/wippyai/statemachine/errors"
	"github.com/wippyai/statemachine/internal/holder"
	"github.com/wippyai/statemachine/internal/liveness"
	"github.com/wippyai/statemachine/ir"
)

type rewriter struct {
	fn        *ir.Function
	layout    *holder.Layout
	live      *liveness.Result
	target    string
	entries []int
	nextVar int
	// guarded counts enclosing try statements that have a finally block.
	guarded int
}

// Rewrite builds the entry method for fn from its sliced body. The layout
// must come from the same liveness result.
func Rewrite(fn *ir.Function, body *ir.Block, layout *holder.Layout, live *liveness.Result) (*ir.Method, error) {
	r := &rewriter{
		fn:      fn,
		layout:  layout,
		live:    live,
		target:  layout.Class.Qualified(ir.EntryMethod),
		nextVar: ir.MaxVarID(&ir.Function{Params: fn.Params, Body: body}) + 1,
	}

	rewritten, err := r.block(body)
	if err != nil {
		return nil, err
	}
	sort.Ints(r.entries)

	resultParam := r.temp("$r")
	failure := r.temp("$e")
	failure.Type = ir.TypeResult
	this := ir.NewThis()

	method := &ir.Method{
		Name:   ir.EntryMethod,
		Params: []*ir.Var{resultParam},
		Body: ir.NewBlock(
			ir.NewStore(this, layout.Result, ir.NewRead(resultParam)),
			&ir.Try{
				Body: ir.NewBlock(&ir.Dispatch{
					Label:   layout.Label,
					Body:    rewritten,
					Entries: r.entries,
				}),
				CatchVar: failure,
				Catch: ir.NewBlock(
					r.setLabel(ir.LabelFailed),
					ir.NewThrow(ir.NewRead(failure)),
				),
			},
			r.setLabel(ir.LabelCompleted),
			&ir.Return{Value: ir.UnitConst(), Target: r.target},
		),
	}
	return method, nil
}

func (r *rewriter) temp(prefix string) *ir.Var {
	v := &ir.Var{Name: fmt.Sprintf("%s%d", prefix, r.nextVar), ID: r.nextVar, Temp: true}
	r.nextVar++
	return v
}

func (r *rewriter) setLabel(label int64) ir.Stmt {
	return ir.NewStore(ir.NewThis(), r.layout.Label, ir.Int(label))
}

func (r *rewriter) field(v *ir.Var) (*ir.Field, error) {
	f := r.layout.FieldFor(v)
	if f == nil {
		return nil, errors.Structural(errors.PhaseRewrite, r.fn.Name, v, "no holder field for %s", v.Name)
	}
	return f, nil
}

func (r *rewriter) block(b *ir.Block) (*ir.Block, error) {
	if b == nil {
		return nil, nil
	}
	out := &ir.Block{Stmts: make([]ir.Stmt, 0, len(b.Stmts))}
	for _, s := range b.Stmts {
		ss, err := r.stmt(s)
		if err != nil {
			return nil, err
		}
		out.Stmts = append(out.Stmts, ss...)
	}
	return out, nil
}

// write stores e into v, through its field when v is a parameter.
func (r *rewriter) write(v *ir.Var, e ir.Expr) (ir.Stmt, error) {
	if !v.Param {
		return ir.NewAssign(v, e), nil
	}
	f, err := r.field(v)
	if err != nil {
		return nil, err
	}
	return ir.NewStore(ir.NewThis(), f, e), nil
}

func (r *rewriter) stmt(s ir.Stmt) ([]ir.Stmt, error) {
	one := func(s ir.Stmt, err error) ([]ir.Stmt, error) {
		if err != nil {
			return nil, err
		}
		return []ir.Stmt{s}, nil
	}

	switch s := s.(type) {
	case *ir.Block:
		return one(r.block(s))

	case *ir.Decl:
		init, err := r.exprOpt(s.Init)
		return one(ir.NewDecl(s.Var, init), err)

	case *ir.Assign:
		v, err := r.expr(s.Value)
		if err != nil {
			return nil, err
		}
		return one(r.write(s.Var, v))

	case *ir.ExprStmt:
		x, err := r.expr(s.X)
		return one(ir.NewExprStmt(x), err)

	case *ir.If:
		cond, err := r.expr(s.Cond)
		if err != nil {
			return nil, err
		}
		then, err := r.block(s.Then)
		if err != nil {
			return nil, err
		}
		els, err := r.block(s.Else)
		return one(ir.NewIf(cond, then, els), err)

	case *ir.While:
		cond, err := r.expr(s.Cond)
		if err != nil {
			return nil, err
		}
		body, err := r.block(s.Body)
		return one(&ir.While{Cond: cond, Body: body, Label: s.Label}, err)

	case *ir.Break, *ir.Continue:
		return []ir.Stmt{s}, nil

	case *ir.Return:
		if s.Target != "" && s.Target != r.fn.Name {
			return nil, errors.UnknownTarget(r.fn.Name, s, s.Target)
		}
		v, err := r.exprOpt(s.Value)
		if err != nil {
			return nil, err
		}
		return []ir.Stmt{
			r.setLabel(ir.LabelCompleted),
			&ir.Return{Value: v, Target: r.target},
		}, nil

	case *ir.Throw:
		v, err := r.expr(s.Value)
		return one(ir.NewThrow(v), err)

	case *ir.Try:
		if s.Finally != nil {
			r.guarded++
			defer func() { r.guarded-- }()
		}
		body, err := r.block(s.Body)
		if err != nil {
			return nil, err
		}
		catch, err := r.block(s.Catch)
		if err != nil {
			return nil, err
		}
		finally, err := r.block(s.Finally)
		return one(&ir.Try{Body: body, CatchVar: s.CatchVar, Catch: catch, Finally: finally}, err)

	case *ir.SuspensionPoint:
		return one(r.marker(s))

	case *ir.Store, *ir.Dispatch:
		return nil, errors.Structural(errors.PhaseRewrite, r.fn.Name, s, "body already rewritten")
	}
	return nil, errors.Unsupported(errors.PhaseRewrite, r.fn.Name, s, fmt.Sprintf("statement %T", s))
}

// marker expands a suspension point:
//
//	first:  this.L$i = v...; this.label = id; $r = call(...)
//	        if pending?($r) { return pending }; this.result = success($r)
//	resume: v = this.L$i...
//	both:   dest = get-or-throw(this.result)
func (r *rewriter) marker(sp *ir.SuspensionPoint) (ir.Stmt, error) {
	// Leaving the entry method to suspend would run the finally block early.
	if r.guarded > 0 {
		return nil, errors.Unsupported(errors.PhaseRewrite, r.fn.Name, sp, "suspension inside a try with a finally block")
	}
	if sp.Call == nil || sp.Suspend != nil || sp.Resume != nil {
		return nil, errors.Structural(errors.PhaseRewrite, r.fn.Name, sp, "marker is not in sliced form")
	}
	args := make([]ir.Expr, len(sp.Call.Args))
	for i, a := range sp.Call.Args {
		e, err := r.expr(a)
		if err != nil {
			return nil, err
		}
		args[i] = e
	}
	call := &ir.Call{Callee: sp.Call.Callee, Args: args, Suspend: true}
	this := ir.NewThis()

	first := &ir.Block{}
	resume := &ir.Block{}
	for _, v := range r.live.At(sp.ID) {
		f, err := r.field(v)
		if err != nil {
			return nil, err
		}
		first.Stmts = append(first.Stmts, ir.NewStore(this, f, ir.NewRead(v)))
		resume.Stmts = append(resume.Stmts, ir.NewAssign(v, ir.NewLoad(this, f)))
	}

	res := r.temp("$r")
	first.Stmts = append(first.Stmts,
		r.setLabel(int64(sp.ID)),
		ir.NewDecl(res, ir.CloneExpr(call)),
		ir.NewIf(
			ir.NewIntrinsic(ir.IntrinsicIsPending, ir.NewRead(res)),
			ir.NewBlock(&ir.Return{Value: ir.NewIntrinsic(ir.IntrinsicPending), Target: r.target}),
			nil,
		),
		ir.NewStore(this, r.layout.Result, ir.NewIntrinsic(ir.IntrinsicSuccess, ir.NewRead(res))),
	)

	unwrap := func() (ir.Stmt, error) {
		v := ir.NewIntrinsic(ir.IntrinsicGetOrThrow, ir.NewLoad(ir.NewThis(), r.layout.Result))
		if sp.Dest == nil {
			return ir.NewExprStmt(v), nil
		}
		return r.write(sp.Dest, v)
	}
	for _, b := range []*ir.Block{first, resume} {
		tail, err := unwrap()
		if err != nil {
			return nil, err
		}
		b.Stmts = append(b.Stmts, tail)
	}

	r.entries = append(r.entries, sp.ID)
	return &ir.SuspensionPoint{
		ID:      sp.ID,
		Dest:    sp.Dest,
		Call:    call,
		Suspend: first,
		Resume:  resume,
	}, nil
}

func (r *rewriter) exprOpt(e ir.Expr) (ir.Expr, error) {
	if e == nil {
		return nil, nil
	}
	return r.expr(e)
}

// expr replaces parameter reads with field loads.
func (r *rewriter) expr(e ir.Expr) (ir.Expr, error) {
	switch e := e.(type) {
	case *ir.Const:
		return e, nil
	case *ir.Read:
		if !e.Var.Param {
			return e, nil
		}
		f, err := r.field(e.Var)
		if err != nil {
			return nil, err
		}
		return ir.NewLoad(ir.NewThis(), f), nil
	case *ir.Unary:
		x, err := r.expr(e.X)
		if err != nil {
			return nil, err
		}
		return ir.NewUnary(e.Op, x), nil
	case *ir.Binary:
		x, err := r.expr(e.X)
		if err != nil {
			return nil, err
		}
		y, err := r.expr(e.Y)
		if err != nil {
			return nil, err
		}
		return ir.NewBinary(e.Op, x, y), nil
	case *ir.Cond:
		c, err := r.expr(e.C)
		if err != nil {
			return nil, err
		}
		then, err := r.expr(e.Then)
		if err != nil {
			return nil, err
		}
		els, err := r.expr(e.Else)
		if err != nil {
			return nil, err
		}
		return ir.NewCond(c, then, els), nil
	case *ir.Call:
		if e.Suspend {
			return nil, errors.Structural(errors.PhaseRewrite, r.fn.Name, e, "suspending call outside a marker")
		}
		args := make([]ir.Expr, len(e.Args))
		for i, a := range e.Args {
			x, err := r.expr(a)
			if err != nil {
				return nil, err
			}
			args[i] = x
		}
		return &ir.Call{Callee: e.Callee, Args: args}, nil
	}
	return nil, errors.Unsupported(errors.PhaseRewrite, r.fn.Name, e, fmt.Sprintf("expression %T", e))
}
