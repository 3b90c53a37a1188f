package runtime

import (
	"context"

	"github.com/wippyai/statemachine/errors"
	"github.com/wippyai/statemachine/ir"
)

func (in *Interpreter) eval(ctx context.Context, f *frame, e ir.Expr) (Value, error) {
	switch e := e.(type) {
	case *ir.Const:
		return e.Value, nil

	case *ir.Read:
		v, ok := f.vars[e.Var]
		if !ok {
			return nil, errors.Undeclared(errors.PhaseRuntime, f.name, e.Var.Name)
		}
		return v, nil

	case *ir.This:
		if f.this == nil {
			return nil, errors.Structural(errors.PhaseRuntime, f.name, e, "this outside a state machine")
		}
		return f.this, nil

	case *ir.Unary:
		x, err := in.eval(ctx, f, e.X)
		if err != nil {
			return nil, err
		}
		return unary(e.Op, x)

	case *ir.Binary:
		if e.Op.ShortCircuit() {
			x, err := in.cond(ctx, f, e.X)
			if err != nil {
				return nil, err
			}
			if x == (e.Op == ir.OpOr) {
				return x, nil
			}
			return in.cond(ctx, f, e.Y)
		}
		x, err := in.eval(ctx, f, e.X)
		if err != nil {
			return nil, err
		}
		y, err := in.eval(ctx, f, e.Y)
		if err != nil {
			return nil, err
		}
		return binary(e.Op, x, y)

	case *ir.Cond:
		c, err := in.cond(ctx, f, e.C)
		if err != nil {
			return nil, err
		}
		if c {
			return in.eval(ctx, f, e.Then)
		}
		return in.eval(ctx, f, e.Else)

	case *ir.Call:
		return in.callExpr(ctx, f, e)

	case *ir.Load:
		obj, err := in.object(ctx, f, e.Recv)
		if err != nil {
			return nil, err
		}
		return obj.Fields[e.Field.Index], nil

	case *ir.New:
		args, err := in.args(ctx, f, e.Args)
		if err != nil {
			return nil, err
		}
		return newObject(e.Class, f.holder(), args)

	case *ir.Invoke:
		obj, err := in.object(ctx, f, e.Recv)
		if err != nil {
			return nil, err
		}
		args, err := in.args(ctx, f, e.Args)
		if err != nil {
			return nil, err
		}
		return in.invoke(ctx, obj, e.Method, args)

	case *ir.Intrinsic:
		args, err := in.args(ctx, f, e.Args)
		if err != nil {
			return nil, err
		}
		return intrinsic(e.Op, args)
	}
	return nil, errors.Unsupported(errors.PhaseRuntime, f.name, e, "unknown expression")
}

func (in *Interpreter) args(ctx context.Context, f *frame, es []ir.Expr) ([]Value, error) {
	out := make([]Value, len(es))
	for i, e := range es {
		v, err := in.eval(ctx, f, e)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (in *Interpreter) cond(ctx context.Context, f *frame, e ir.Expr) (bool, error) {
	v, err := in.eval(ctx, f, e)
	if err != nil {
		return false, err
	}
	b, ok := v.(bool)
	if !ok {
		return false, errors.TypeMismatch(errors.PhaseRuntime, "condition", "bool", v)
	}
	return b, nil
}

func (in *Interpreter) object(ctx context.Context, f *frame, e ir.Expr) (*Object, error) {
	v, err := in.eval(ctx, f, e)
	if err != nil {
		return nil, err
	}
	obj, ok := v.(*Object)
	if !ok {
		return nil, errors.TypeMismatch(errors.PhaseRuntime, "receiver", "object", v)
	}
	return obj, nil
}

// callExpr calls a module function or, failing that, the host. Only a
// suspending call made by a state machine may come back Pending.
func (in *Interpreter) callExpr(ctx context.Context, f *frame, c *ir.Call) (Value, error) {
	args, err := in.args(ctx, f, c.Args)
	if err != nil {
		return nil, err
	}

	var v Value
	if fn := in.module.Func(c.Callee); fn != nil {
		v, err = in.call(ctx, fn, args, f.holder())
	} else {
		if in.host == nil {
			return nil, errors.NotFound(errors.PhaseRuntime, "function", c.Callee)
		}
		var cont *Continuation
		if c.Suspend && f.this != nil {
			cont = &Continuation{interp: in, obj: f.this, callee: c.Callee}
		}
		v, err = in.host.Call(ctx, c.Callee, args, cont)
	}
	if err != nil {
		return nil, err
	}
	if IsPending(v) && (!c.Suspend || f.this == nil) {
		return nil, errors.New(errors.PhaseRuntime, errors.KindUnsupported).
			Func(f.name).
			Node(c).
			Detail("%s suspended outside a state machine", c.Callee).
			Build()
	}
	return v, nil
}

func intrinsic(op ir.IntrinsicOp, args []Value) (Value, error) {
	if len(args) != op.Arity() {
		return nil, errors.New(errors.PhaseRuntime, errors.KindInvalidInput).
			Detail("%s: got %d arguments, want %d", op, len(args), op.Arity()).
			Build()
	}
	switch op {
	case ir.IntrinsicPending:
		return Pending, nil
	case ir.IntrinsicSuccess:
		return Success(args[0]), nil
	case ir.IntrinsicFailure:
		return Failure(raise(args[0])), nil
	case ir.IntrinsicGetOrThrow:
		r, ok := args[0].(Result)
		if !ok {
			return nil, errors.TypeMismatch(errors.PhaseRuntime, op.String(), "result", args[0])
		}
		if r.Err != nil {
			return nil, r.Err
		}
		return r.Value, nil
	case ir.IntrinsicIsPending:
		return IsPending(args[0]), nil
	}
	return nil, errors.New(errors.PhaseRuntime, errors.KindUnsupported).Detail("intrinsic %s", op).Build()
}

func unary(op ir.Op, x Value) (Value, error) {
	switch op {
	case ir.OpNot:
		b, ok := x.(bool)
		if !ok {
			return nil, errors.TypeMismatch(errors.PhaseRuntime, op.String(), "bool", x)
		}
		return !b, nil
	case ir.OpNeg:
		n, ok := x.(int64)
		if !ok {
			return nil, errors.TypeMismatch(errors.PhaseRuntime, op.String(), "int", x)
		}
		return -n, nil
	}
	return nil, errors.New(errors.PhaseRuntime, errors.KindUnsupported).Detail("unary %s", op).Build()
}

func binary(op ir.Op, x, y Value) (Value, error) {
	switch op {
	case ir.OpEq:
		return x == y, nil
	case ir.OpNe:
		return x != y, nil
	case ir.OpAdd:
		if s, ok := x.(string); ok {
			return s + Format(y), nil
		}
	}

	a, ok := x.(int64)
	if !ok {
		return nil, errors.TypeMismatch(errors.PhaseRuntime, op.String(), "int", x)
	}
	b, ok := y.(int64)
	if !ok {
		return nil, errors.TypeMismatch(errors.PhaseRuntime, op.String(), "int", y)
	}
	switch op {
	case ir.OpAdd:
		return a + b, nil
	case ir.OpSub:
		return a - b, nil
	case ir.OpMul:
		return a * b, nil
	case ir.OpDiv, ir.OpRem:
		if b == 0 {
			return nil, &Thrown{Value: "division by zero"}
		}
		if op == ir.OpDiv {
			return a / b, nil
		}
		return a % b, nil
	case ir.OpLt:
		return a < b, nil
	case ir.OpLe:
		return a <= b, nil
	case ir.OpGt:
		return a > b, nil
	case ir.OpGe:
		return a >= b, nil
	}
	return nil, errors.New(errors.PhaseRuntime, errors.KindUnsupported).Detail("binary %s", op).Build()
}
