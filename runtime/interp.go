package runtime

import (
	"context"
	stderrors "errors"
	"slices"

	"go.uber.org/zap"

	"github.com/wippyai/statemachine/errors"
	"github.com/wippyai/statemachine/ir"
)

// Config configures an Interpreter.
type Config struct {
	// Host resolves calls to names the module does not define.
	Host Host
	// Logger overrides the package logger when set.
	Logger *zap.Logger
}

// Interpreter runs the functions of one module. It keeps no state between
// calls besides the holders reachable from outstanding continuations, and
// may be shared by goroutines as long as each state machine is resumed by
// one goroutine at a time.
type Interpreter struct {
	module *ir.Module
	host   Host
	log    *zap.Logger
}

// NewInterpreter creates an interpreter for m.
func NewInterpreter(m *ir.Module, cfg Config) *Interpreter {
	log := cfg.Logger
	if log == nil {
		log = Logger()
	}
	return &Interpreter{module: m, host: cfg.Host, log: log}
}

// Module returns the module being run.
func (in *Interpreter) Module() *ir.Module { return in.module }

// Call runs the named module function. A lowered function that suspends
// returns Pending; its outcome is then produced by the continuation that
// finishes the outermost state machine.
func (in *Interpreter) Call(ctx context.Context, name string, args ...Value) (Value, error) {
	fn := in.module.Func(name)
	if fn == nil {
		return nil, errors.NotFound(errors.PhaseRuntime, "function", name)
	}
	return in.call(ctx, fn, args, nil)
}

type flow int

const (
	flowNext flow = iota
	flowBreak
	flowContinue
	flowReturn
)

type outcome struct {
	value Value
	label string
	flow  flow
}

func (o outcome) result() Value {
	if o.flow == flowReturn && o.value != nil {
		return o.value
	}
	return ir.Unit
}

type frame struct {
	vars map[*ir.Var]Value
	// this is the receiver of a holder method.
	this *Object
	// parent is the holder of the calling state machine, if any.
	parent *Object
	// name is the function or qualified method name, also the only
	// return target accepted in this frame.
	name string
}

// holder returns the state machine that owns calls made from this frame.
func (f *frame) holder() *Object {
	if f.this != nil {
		return f.this
	}
	return f.parent
}

func (in *Interpreter) call(ctx context.Context, fn *ir.Function, args []Value, parent *Object) (Value, error) {
	if len(args) != len(fn.Params) {
		return nil, errors.New(errors.PhaseRuntime, errors.KindInvalidInput).
			Func(fn.Name).
			Detail("got %d arguments, want %d", len(args), len(fn.Params)).
			Build()
	}
	f := &frame{vars: make(map[*ir.Var]Value, len(fn.Params)), parent: parent, name: fn.Name}
	for i, p := range fn.Params {
		f.vars[p] = args[i]
	}
	out, err := in.block(ctx, f, fn.Body)
	if err != nil {
		return nil, err
	}
	return out.result(), nil
}

// invoke runs a holder method. At most one method call per holder may be
// in flight.
func (in *Interpreter) invoke(ctx context.Context, obj *Object, name string, args []Value) (Value, error) {
	m := obj.Class.Method(name)
	if m == nil {
		return nil, errors.NotFound(errors.PhaseRuntime, "method", obj.Class.Qualified(name))
	}
	if len(args) != len(m.Params) {
		return nil, errors.New(errors.PhaseRuntime, errors.KindInvalidInput).
			Func(obj.Class.Qualified(name)).
			Detail("got %d arguments, want %d", len(args), len(m.Params)).
			Build()
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !obj.running.CompareAndSwap(false, true) {
		return nil, errors.Reentrant(obj.Class.Name)
	}
	defer obj.running.Store(false)

	f := &frame{vars: make(map[*ir.Var]Value, len(args)), this: obj, name: obj.Class.Qualified(name)}
	for i, p := range m.Params {
		f.vars[p] = args[i]
	}
	out, err := in.block(ctx, f, m.Body)
	if err != nil {
		in.log.Debug("state machine failed", zap.Stringer("holder", obj), zap.Error(err))
		return nil, err
	}
	v := out.result()
	if IsPending(v) {
		in.log.Debug("state machine suspended", zap.Stringer("holder", obj))
	}
	return v, nil
}

// resume re-enters obj with r and walks the chain of waiting callers.
func (in *Interpreter) resume(ctx context.Context, obj *Object, r Result) (Value, error) {
	for {
		if obj.Terminal() {
			return nil, errors.Terminal(obj.Class.Name, obj.Label())
		}
		in.log.Debug("resume", zap.Stringer("holder", obj), zap.Stringer("result", r))
		v, err := in.invoke(ctx, obj, ir.EntryMethod, []Value{r})
		if err == nil && IsPending(v) {
			return Pending, nil
		}
		if err != nil && !catchable(err) {
			return nil, err
		}
		if obj.parent == nil {
			return v, err
		}
		r = Result{Value: v, Err: err}
		obj = obj.parent
	}
}

// catchable reports whether err is a program failure rather than an
// interpreter fault or a cancelled context.
func catchable(err error) bool {
	if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var fault *errors.Error
	return !stderrors.As(err, &fault)
}

func (in *Interpreter) block(ctx context.Context, f *frame, b *ir.Block) (outcome, error) {
	if b == nil {
		return outcome{}, nil
	}
	return in.stmts(ctx, f, b.Stmts)
}

func (in *Interpreter) stmts(ctx context.Context, f *frame, ss []ir.Stmt) (outcome, error) {
	for _, s := range ss {
		out, err := in.exec(ctx, f, s)
		if err != nil || out.flow != flowNext {
			return out, err
		}
	}
	return outcome{}, nil
}

func (in *Interpreter) exec(ctx context.Context, f *frame, s ir.Stmt) (outcome, error) {
	switch s := s.(type) {
	case *ir.Block:
		return in.block(ctx, f, s)

	case *ir.Decl:
		var v Value = ir.Unit
		if s.Init != nil {
			x, err := in.eval(ctx, f, s.Init)
			if err != nil {
				return outcome{}, err
			}
			v = x
		}
		f.vars[s.Var] = v
		return outcome{}, nil

	case *ir.Assign:
		v, err := in.eval(ctx, f, s.Value)
		if err != nil {
			return outcome{}, err
		}
		f.vars[s.Var] = v
		return outcome{}, nil

	case *ir.ExprStmt:
		_, err := in.eval(ctx, f, s.X)
		return outcome{}, err

	case *ir.If:
		c, err := in.cond(ctx, f, s.Cond)
		if err != nil {
			return outcome{}, err
		}
		if c {
			return in.block(ctx, f, s.Then)
		}
		return in.block(ctx, f, s.Else)

	case *ir.While:
		return in.loop(ctx, f, s, nil)

	case *ir.Break:
		return outcome{flow: flowBreak, label: s.Label}, nil

	case *ir.Continue:
		return outcome{flow: flowContinue, label: s.Label}, nil

	case *ir.Return:
		if s.Target != "" && s.Target != f.name {
			return outcome{}, errors.New(errors.PhaseRuntime, errors.KindUnknownTarget).
				Func(f.name).Node(s).
				Detail("return to %q", s.Target).
				Build()
		}
		var v Value = ir.Unit
		if s.Value != nil {
			x, err := in.eval(ctx, f, s.Value)
			if err != nil {
				return outcome{}, err
			}
			v = x
		}
		return outcome{flow: flowReturn, value: v}, nil

	case *ir.Throw:
		v, err := in.eval(ctx, f, s.Value)
		if err != nil {
			return outcome{}, err
		}
		return outcome{}, raise(v)

	case *ir.Try:
		return in.try(ctx, f, s, func() (outcome, error) { return in.block(ctx, f, s.Body) })

	case *ir.SuspensionPoint:
		if s.Suspend != nil {
			return in.block(ctx, f, s.Suspend)
		}
		v, err := in.eval(ctx, f, s.Call)
		if err != nil {
			return outcome{}, err
		}
		if s.Dest != nil {
			f.vars[s.Dest] = v
		}
		return outcome{}, nil

	case *ir.Store:
		obj, err := in.object(ctx, f, s.Recv)
		if err != nil {
			return outcome{}, err
		}
		v, err := in.eval(ctx, f, s.Value)
		if err != nil {
			return outcome{}, err
		}
		obj.Fields[s.Field.Index] = v
		return outcome{}, nil

	case *ir.Dispatch:
		return in.dispatch(ctx, f, s)
	}
	return outcome{}, errors.Unsupported(errors.PhaseRuntime, f.name, s, "unknown statement")
}

// loop runs w. A non-nil first replaces the condition check and body of
// the first iteration.
func (in *Interpreter) loop(ctx context.Context, f *frame, w *ir.While, first func() (outcome, error)) (outcome, error) {
	body := first
	for {
		if body == nil {
			if err := ctx.Err(); err != nil {
				return outcome{}, err
			}
			ok, err := in.cond(ctx, f, w.Cond)
			if err != nil {
				return outcome{}, err
			}
			if !ok {
				return outcome{}, nil
			}
			body = func() (outcome, error) { return in.block(ctx, f, w.Body) }
		}
		out, err := body()
		body = nil
		if err != nil {
			return out, err
		}
		switch out.flow {
		case flowBreak:
			if out.label == "" || out.label == w.Label {
				return outcome{}, nil
			}
			return out, nil
		case flowContinue:
			if out.label != "" && out.label != w.Label {
				return out, nil
			}
		case flowReturn:
			return out, nil
		}
	}
}

// try runs body under t's handler and finally block.
func (in *Interpreter) try(ctx context.Context, f *frame, t *ir.Try, body func() (outcome, error)) (outcome, error) {
	out, err := body()
	if err != nil && t.Catch != nil && catchable(err) {
		if t.CatchVar != nil {
			if t.CatchVar.Type == ir.TypeResult {
				f.vars[t.CatchVar] = Failure(err)
			} else {
				f.vars[t.CatchVar] = caught(err)
			}
		}
		out, err = in.block(ctx, f, t.Catch)
	}
	return in.finally(ctx, f, t, out, err)
}

// finally runs t's finally block after the body or handler produced out and
// err. An abrupt finally block replaces them.
func (in *Interpreter) finally(ctx context.Context, f *frame, t *ir.Try, out outcome, err error) (outcome, error) {
	if t.Finally == nil {
		return out, err
	}
	fout, ferr := in.block(ctx, f, t.Finally)
	if ferr != nil || fout.flow != flowNext {
		return fout, ferr
	}
	return out, err
}

func (in *Interpreter) dispatch(ctx context.Context, f *frame, d *ir.Dispatch) (outcome, error) {
	if f.this == nil {
		return outcome{}, errors.Structural(errors.PhaseRuntime, f.name, d, "dispatch outside a state machine")
	}
	label, ok := f.this.Fields[d.Label.Index].(int64)
	if !ok {
		return outcome{}, errors.TypeMismatch(errors.PhaseRuntime, "dispatch", "label", f.this.Fields[d.Label.Index])
	}
	if label == ir.LabelStart {
		return in.block(ctx, f, d.Body)
	}
	if label < 0 {
		return outcome{}, errors.Terminal(f.this.Class.Name, label)
	}
	if !slices.Contains(d.Entries, int(label)) {
		return outcome{}, errors.Structural(errors.PhaseRuntime, f.name, d, "no entry for label %d", label)
	}
	return in.seekBlock(ctx, f, d.Body, int(label))
}

// seekBlock enters b at the resumption branch of marker id and then runs
// the statements that follow it.
func (in *Interpreter) seekBlock(ctx context.Context, f *frame, b *ir.Block, id int) (outcome, error) {
	for i, s := range b.Stmts {
		if !containsMarker(s, id) {
			continue
		}
		out, err := in.seek(ctx, f, s, id)
		if err != nil || out.flow != flowNext {
			return out, err
		}
		return in.stmts(ctx, f, b.Stmts[i+1:])
	}
	return outcome{}, errors.Structural(errors.PhaseRuntime, f.name, b, "marker #%d not found", id)
}

// seek enters s at marker id. Conditions guarding the path are not
// re-evaluated; enclosing loops and try blocks keep their semantics from
// that point on.
func (in *Interpreter) seek(ctx context.Context, f *frame, s ir.Stmt, id int) (outcome, error) {
	switch s := s.(type) {
	case *ir.Block:
		return in.seekBlock(ctx, f, s, id)
	case *ir.If:
		if containsMarker(s.Then, id) {
			return in.seekBlock(ctx, f, s.Then, id)
		}
		if containsMarker(s.Else, id) {
			return in.seekBlock(ctx, f, s.Else, id)
		}
	case *ir.While:
		return in.loop(ctx, f, s, func() (outcome, error) { return in.seekBlock(ctx, f, s.Body, id) })
	case *ir.Try:
		if containsMarker(s.Body, id) {
			return in.try(ctx, f, s, func() (outcome, error) { return in.seekBlock(ctx, f, s.Body, id) })
		}
		if containsMarker(s.Catch, id) {
			out, err := in.seekBlock(ctx, f, s.Catch, id)
			return in.finally(ctx, f, s, out, err)
		}
	case *ir.SuspensionPoint:
		if s.ID == id {
			return in.block(ctx, f, s.Resume)
		}
	}
	return outcome{}, errors.Structural(errors.PhaseRuntime, f.name, s, "cannot resume marker #%d here", id)
}

func containsMarker(n ir.Node, id int) bool {
	if b, ok := n.(*ir.Block); ok && b == nil {
		return false
	}
	found := false
	ir.Inspect(n, func(c ir.Node) bool {
		if sp, ok := c.(*ir.SuspensionPoint); ok && sp.ID == id {
			found = true
		}
		_, isExpr := c.(ir.Expr)
		return !found && !isExpr
	})
	return found
}
