package runtime

import (
	"context"
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"

	statemachine "github.com/wippyai/statemachine"
	"github.com/wippyai/statemachine/errors"
	"github.com/wippyai/statemachine/ir"
	"github.com/wippyai/statemachine/text"
)

var errBoom = stderrors.New("boom")

// parked is a host answer held back until the test resumes it.
type parked struct {
	cont *Continuation
	res  Result
}

// testHost answers fetch(x) with x*10, log(...) with unit, fail(...) with
// errBoom and raise(v) with a thrown v. Suspending calls are parked when
// suspend returns true for the call's sequence number.
type testHost struct {
	suspend func(n int) bool
	trace   []string
	parked  []parked
	n       int
}

func (h *testHost) Call(_ context.Context, name string, args []Value, cont *Continuation) (Value, error) {
	h.trace = append(h.trace, fmt.Sprintf("%s%v", name, args))
	var res Result
	switch name {
	case "fetch":
		res = Success(args[0].(int64) * 10)
	case "log":
		res = Success(ir.Unit)
	case "fail":
		res = Failure(errBoom)
	case "raise":
		res = Failure(&Thrown{Value: args[0]})
	default:
		return nil, fmt.Errorf("unknown host function %s", name)
	}
	n := h.n
	h.n++
	if cont != nil && h.suspend != nil && h.suspend(n) {
		h.parked = append(h.parked, parked{cont: cont, res: res})
		return Pending, nil
	}
	return res.Value, res.Err
}

// drive calls name and resumes parked calls in order until it completes.
func (h *testHost) drive(ctx context.Context, in *Interpreter, name string, args ...Value) (Value, error) {
	v, err := in.Call(ctx, name, args...)
	for err == nil && IsPending(v) {
		if len(h.parked) == 0 {
			return nil, fmt.Errorf("pending with nothing parked")
		}
		p := h.parked[0]
		h.parked = h.parked[1:]
		v, err = p.cont.Resume(ctx, p.res)
	}
	return v, err
}

func parseModule(t *testing.T, src string) *ir.Module {
	t.Helper()
	m, err := text.Parse(src)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return m
}

func lowerModule(t *testing.T, m *ir.Module) *ir.Module {
	t.Helper()
	res, err := statemachine.LowerModule(m, statemachine.Config{})
	if err != nil {
		t.Fatalf("LowerModule: %v", err)
	}
	return res.Module
}

func isKind(err error, kind errors.Kind) bool {
	return stderrors.Is(err, &errors.Error{Phase: errors.PhaseRuntime, Kind: kind})
}

const twoAwaits = `(module m
  (func f (suspend)
    (var a (await s))
    (var b (await s))
    (return (+ a b))))`

func TestResume_TwoAwaits(t *testing.T) {
	ctx := context.Background()
	var conts []*Continuation
	host := hostFunc(func(name string, cont *Continuation) (Value, error) {
		conts = append(conts, cont)
		return Pending, nil
	})
	in := NewInterpreter(lowerModule(t, parseModule(t, twoAwaits)), Config{Host: host})

	v, err := in.Call(ctx, "f")
	if err != nil || !IsPending(v) {
		t.Fatalf("Call = %v, %v; want pending", v, err)
	}
	if len(conts) != 1 || conts[0].Object().Label() != 1 {
		t.Fatalf("first suspension: %d continuations", len(conts))
	}

	v, err = conts[0].Resume(ctx, Success(int64(3)))
	if err != nil || !IsPending(v) {
		t.Fatalf("first Resume = %v, %v; want pending", v, err)
	}
	if len(conts) != 2 || conts[1].Object() != conts[0].Object() {
		t.Fatal("second suspension must reuse the holder")
	}
	if l := conts[1].Object().Label(); l != 2 {
		t.Errorf("label = %d, want 2", l)
	}

	v, err = conts[1].Resume(ctx, Success(int64(4)))
	if err != nil {
		t.Fatalf("second Resume: %v", err)
	}
	if v != int64(7) {
		t.Errorf("result = %v, want 7", v)
	}
	if l := conts[1].Object().Label(); l != ir.LabelCompleted {
		t.Errorf("final label = %d, want completed", l)
	}
}

type hostFunc func(name string, cont *Continuation) (Value, error)

func (h hostFunc) Call(_ context.Context, name string, _ []Value, cont *Continuation) (Value, error) {
	return h(name, cont)
}

const mixed = `(module demo
  (func fetch2 (param x) (suspend)
    (var y (await fetch x))
    (return (+ y (await fetch (+ x 1)))))
  (func main (param n) (suspend)
    (var sum 0)
    (var i 0)
    (while (< i n)
      (if (&& (> i 0) (== (% i 2) 0))
        (then (set sum (+ sum (call fetch2 i))))
        (else (set sum (+ sum (await fetch i)))))
      (do (call log i sum))
      (set i (+ i 1)))
    (try
      (body (do (await fail sum)))
      (catch e (set sum (+ sum 1000))))
    (try
      (body (do (await raise "io")))
      (catch e
        (do (call log e))
        (set sum (+ sum (await fetch 2)))
        (do (call log e sum))))
    (try
      (body (set sum (+ sum 1)))
      (finally (do (call log sum))))
    (var flag (|| (> sum 5000) (> (await fetch 1) 5)))
    (return (? flag sum (neg sum)))))`

func TestLowered_MatchesOriginal(t *testing.T) {
	ctx := context.Background()
	orig := parseModule(t, mixed)
	lowered := lowerModule(t, orig)

	ref := &testHost{}
	want, err := NewInterpreter(orig, Config{Host: ref}).Call(ctx, "main", int64(5))
	if err != nil {
		t.Fatalf("original: %v", err)
	}
	if want != int64(1201) {
		t.Fatalf("original = %v, want 1201", want)
	}

	tests := []struct {
		name    string
		suspend func(int) bool
	}{
		{"never", func(int) bool { return false }},
		{"always", func(int) bool { return true }},
		{"odd", func(n int) bool { return n%2 == 1 }},
		{"even", func(n int) bool { return n%2 == 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := &testHost{suspend: tt.suspend}
			got, err := h.drive(ctx, NewInterpreter(lowered, Config{Host: h}), "main", int64(5))
			if err != nil {
				t.Fatalf("lowered: %v", err)
			}
			if got != want {
				t.Errorf("result = %v, want %v", got, want)
			}
			if diff := cmp.Diff(ref.trace, h.trace); diff != "" {
				t.Errorf("call order differs (-original +lowered):\n%s", diff)
			}
		})
	}
}

func TestResume_FailureRethrownAtCall(t *testing.T) {
	src := `(module m
  (func caught (suspend)
    (try
      (body (var x (await fetch 1)) (return x))
      (catch e (return -1))))
  (func uncaught (suspend)
    (var x (await fetch 1))
    (return x)))`
	ctx := context.Background()
	in := NewInterpreter(lowerModule(t, parseModule(t, src)), Config{})

	var cont *Continuation
	in.host = hostFunc(func(_ string, c *Continuation) (Value, error) {
		cont = c
		return Pending, nil
	})

	if _, err := in.Call(ctx, "caught"); err != nil {
		t.Fatal(err)
	}
	v, err := cont.Resume(ctx, Failure(errBoom))
	if err != nil || v != int64(-1) {
		t.Errorf("caught: Resume = %v, %v; want -1", v, err)
	}

	if _, err := in.Call(ctx, "uncaught"); err != nil {
		t.Fatal(err)
	}
	_, err = cont.Resume(ctx, Failure(errBoom))
	if !stderrors.Is(err, errBoom) {
		t.Fatalf("uncaught: err = %v, want errBoom", err)
	}
	if l := cont.Object().Label(); l != ir.LabelFailed {
		t.Errorf("label = %d, want failed", l)
	}

	thrown := &Thrown{Value: "io"}
	for _, failure := range []error{thrown, fmt.Errorf("read: %w", thrown)} {
		if _, err := in.Call(ctx, "uncaught"); err != nil {
			t.Fatal(err)
		}
		_, err = cont.Resume(ctx, Failure(failure))
		if err != failure || !stderrors.Is(err, thrown) {
			t.Errorf("uncaught: err = %v (%T), want the delivered %v", err, err, failure)
		}
	}
}

func TestResume_FailureKeepsIdentityThroughCallers(t *testing.T) {
	src := `(module m
  (func inner (suspend)
    (var x (await fetch 1))
    (return x))
  (func outer (suspend)
    (var y (call inner))
    (return (+ y 1))))`
	ctx := context.Background()
	var cont *Continuation
	in := NewInterpreter(lowerModule(t, parseModule(t, src)), Config{Host: hostFunc(func(_ string, c *Continuation) (Value, error) {
		cont = c
		return Pending, nil
	})})
	if v, err := in.Call(ctx, "outer"); err != nil || !IsPending(v) {
		t.Fatalf("Call = %v, %v", v, err)
	}
	thrown := &Thrown{Value: int64(7)}
	_, err := cont.Resume(ctx, Failure(thrown))
	var got *Thrown
	if !stderrors.As(err, &got) || got != thrown {
		t.Errorf("err = %v, want the delivered *Thrown", err)
	}
}

func TestResume_CatchBindsThrownValue(t *testing.T) {
	src := `(module m
  (func f (suspend)
    (try
      (body (do (await s)) (throw "bad"))
      (catch e (return e)))))`
	ctx := context.Background()
	var cont *Continuation
	in := NewInterpreter(lowerModule(t, parseModule(t, src)), Config{Host: hostFunc(func(_ string, c *Continuation) (Value, error) {
		cont = c
		return Pending, nil
	})})
	if _, err := in.Call(ctx, "f"); err != nil {
		t.Fatal(err)
	}
	v, err := cont.Resume(ctx, Success(ir.Unit))
	if err != nil || v != "bad" {
		t.Errorf("Resume = %v, %v; want \"bad\"", v, err)
	}
}

func TestResume_Terminal(t *testing.T) {
	ctx := context.Background()
	var cont *Continuation
	in := NewInterpreter(lowerModule(t, parseModule(t, `(module m (func f (suspend) (return (await s))))`)),
		Config{Host: hostFunc(func(_ string, c *Continuation) (Value, error) {
			cont = c
			return Pending, nil
		})})
	if _, err := in.Call(ctx, "f"); err != nil {
		t.Fatal(err)
	}
	if v, err := cont.Resume(ctx, Success(int64(1))); err != nil || v != int64(1) {
		t.Fatalf("Resume = %v, %v", v, err)
	}
	_, err := cont.Resume(ctx, Success(int64(2)))
	if !isKind(err, errors.KindTerminal) {
		t.Errorf("second Resume err = %v, want terminal", err)
	}
}

func TestResume_Reentrant(t *testing.T) {
	ctx := context.Background()
	var nested error
	host := hostFunc(func(_ string, c *Continuation) (Value, error) {
		_, nested = c.Resume(ctx, Success(int64(1)))
		return int64(2), nil
	})
	in := NewInterpreter(lowerModule(t, parseModule(t, `(module m (func f (suspend) (return (await s))))`)), Config{Host: host})
	v, err := in.Call(ctx, "f")
	if err != nil || v != int64(2) {
		t.Fatalf("Call = %v, %v", v, err)
	}
	if !isKind(nested, errors.KindReentrant) {
		t.Errorf("nested Resume err = %v, want reentrant", nested)
	}
}

func TestCancel(t *testing.T) {
	src := `(module m
  (func plain (suspend)
    (return (await s)))
  (func guarded (suspend)
    (try
      (body (return (await s)))
      (catch e (return "cancelled")))))`
	ctx := context.Background()
	var cont *Continuation
	in := NewInterpreter(lowerModule(t, parseModule(t, src)), Config{Host: hostFunc(func(_ string, c *Continuation) (Value, error) {
		cont = c
		return Pending, nil
	})})

	if _, err := in.Call(ctx, "plain"); err != nil {
		t.Fatal(err)
	}
	if _, err := cont.Cancel(ctx); !stderrors.Is(err, ErrCancelled) {
		t.Errorf("plain: err = %v, want ErrCancelled", err)
	}

	if _, err := in.Call(ctx, "guarded"); err != nil {
		t.Fatal(err)
	}
	if v, err := cont.Cancel(ctx); err != nil || v != "cancelled" {
		t.Errorf("guarded: Cancel = %v, %v", v, err)
	}
}

func TestResume_ChainsToCaller(t *testing.T) {
	src := `(module m
  (func inner (param x) (suspend)
    (return (* (await s) x)))
  (func outer (suspend)
    (var a (call inner 2))
    (var b (call inner 3))
    (return (+ a b))))`
	ctx := context.Background()
	var conts []*Continuation
	in := NewInterpreter(lowerModule(t, parseModule(t, src)), Config{Host: hostFunc(func(_ string, c *Continuation) (Value, error) {
		conts = append(conts, c)
		return Pending, nil
	})})

	v, err := in.Call(ctx, "outer")
	if err != nil || !IsPending(v) {
		t.Fatalf("Call = %v, %v", v, err)
	}
	if name := conts[0].Object().Class.Name; name != "inner$StateMachine" {
		t.Fatalf("continuation for %s", name)
	}
	if v, err = conts[0].Resume(ctx, Success(int64(10))); err != nil || !IsPending(v) {
		t.Fatalf("first Resume = %v, %v; want pending", v, err)
	}
	if conts[1].Object() == conts[0].Object() {
		t.Fatal("each call needs its own holder")
	}
	if v, err = conts[1].Resume(ctx, Success(int64(100))); err != nil || v != int64(320) {
		t.Errorf("second Resume = %v, %v; want 320", v, err)
	}
}

func TestCall_PendingOutsideStateMachine(t *testing.T) {
	in := NewInterpreter(parseModule(t, `(module m (func f (return (await s))))`),
		Config{Host: hostFunc(func(string, *Continuation) (Value, error) { return Pending, nil })})
	_, err := in.Call(context.Background(), "f")
	if !isKind(err, errors.KindUnsupported) {
		t.Errorf("err = %v, want unsupported", err)
	}
}

func TestCall_Original(t *testing.T) {
	src := `(module m
  (func f (param n)
    (var acc "")
    (var i 0)
    (while @outer true
      (set i (+ i 1))
      (if (> i n) (then (break @outer)))
      (if (== (% i 2) 0) (then (continue)))
      (set acc (+ acc i)))
    (try
      (body (do (/ 1 0)))
      (catch e (set acc (+ acc "!")))
      (finally (set acc (+ acc "."))))
    (return acc)))`
	v, err := NewInterpreter(parseModule(t, src), Config{}).Call(context.Background(), "f", int64(5))
	if err != nil {
		t.Fatal(err)
	}
	if v != `135!.` {
		t.Errorf("f(5) = %q", v)
	}
}

func TestCall_Errors(t *testing.T) {
	in := NewInterpreter(parseModule(t, `(module m (func f (param x) (return (- x 1))))`), Config{})
	ctx := context.Background()
	tests := []struct {
		name string
		fn   string
		args []Value
		kind errors.Kind
	}{
		{"missing function", "g", nil, errors.KindNotFound},
		{"arity", "f", nil, errors.KindInvalidInput},
		{"type mismatch", "f", []Value{"x"}, errors.KindTypeMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := in.Call(ctx, tt.fn, tt.args...)
			if !isKind(err, tt.kind) {
				t.Errorf("err = %v, want %s", err, tt.kind)
			}
		})
	}
}

func TestCall_ContextCancelled(t *testing.T) {
	src := `(module m (func f (suspend) (var i 0) (while true (set i (await s)))))`
	in := NewInterpreter(lowerModule(t, parseModule(t, src)), Config{Host: HostFuncs{"s": Const(int64(1))}})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := in.Call(ctx, "f"); !stderrors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}
