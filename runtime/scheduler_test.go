package runtime

import (
	"context"
	stderrors "errors"
	"testing"

	"github.com/wippyai/statemachine/errors"
)

func doubler() HostFuncs {
	return HostFuncs{
		"s": HostFunc1(func(_ context.Context, arg Value) (Value, error) {
			return arg.(int64) * 2, nil
		}),
	}
}

const sumLoop = `(module m
  (func f (param n) (suspend)
    (var acc 0)
    (var i 1)
    (while (<= i n)
      (set acc (+ acc (await s i)))
      (set i (+ i 1)))
    (return acc)))`

func TestScheduler_Run(t *testing.T) {
	s := NewScheduler(doubler())
	in := NewInterpreter(lowerModule(t, parseModule(t, sumLoop)), Config{Host: s})
	v, err := s.Run(context.Background(), in, "f", int64(4))
	if err != nil {
		t.Fatal(err)
	}
	if v != int64(20) {
		t.Errorf("f(4) = %v, want 20", v)
	}
	if s.Steps() != 4 {
		t.Errorf("Steps = %d, want 4", s.Steps())
	}
	if len(s.Pending()) != 0 || s.table.Len() != 0 {
		t.Error("operations left parked")
	}
}

func TestScheduler_StartStep(t *testing.T) {
	ctx := context.Background()
	s := NewScheduler(nil)
	in := NewInterpreter(lowerModule(t, parseModule(t, twoAwaits)), Config{Host: s})

	sr, err := s.Start(ctx, in, "f")
	if err != nil {
		t.Fatal(err)
	}
	if sr.Status != StepContinue || sr.Op.Name != "s" {
		t.Fatalf("Start = %+v", sr)
	}

	if sr, err = s.Step(ctx, Success(int64(3))); err != nil || sr.Status != StepContinue {
		t.Fatalf("Step 1 = %+v, %v", sr, err)
	}
	if sr, err = s.Step(ctx, Success(int64(4))); err != nil {
		t.Fatal(err)
	}
	if sr.Status != StepDone || sr.Value != int64(7) {
		t.Errorf("Step 2 = %+v, want done 7", sr)
	}

	if _, err := s.Step(ctx, Success(int64(5))); !stderrors.Is(err, &errors.Error{Phase: errors.PhaseRuntime, Kind: errors.KindInvalidInput}) {
		t.Errorf("Step with nothing parked: %v", err)
	}
}

func TestScheduler_RunPropagatesFailure(t *testing.T) {
	funcs := HostFuncs{
		"s": func(context.Context, []Value) (Value, error) { return nil, errBoom },
	}
	s := NewScheduler(funcs)
	in := NewInterpreter(lowerModule(t, parseModule(t, sumLoop)), Config{Host: s})
	if _, err := s.Run(context.Background(), in, "f", int64(2)); !stderrors.Is(err, errBoom) {
		t.Errorf("err = %v, want errBoom", err)
	}
}

func TestScheduler_Close(t *testing.T) {
	ctx := context.Background()
	s := NewScheduler(nil)
	in := NewInterpreter(lowerModule(t, parseModule(t, twoAwaits)), Config{Host: s})
	sr, err := s.Start(ctx, in, "f")
	if err != nil || sr.Status != StepContinue {
		t.Fatalf("Start = %+v, %v", sr, err)
	}
	cont, ok := s.table.Get(sr.Op.Handle)
	if !ok {
		t.Fatal("operation not parked")
	}
	if err := s.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if len(s.Pending()) != 0 {
		t.Error("queue not drained")
	}
	if _, err := s.table.Park(&Continuation{}); !stderrors.Is(err, ErrTableClosed) {
		t.Errorf("Park after Close: %v", err)
	}
	if !cont.Object().Terminal() {
		t.Errorf("holder not cancelled: %s", cont.Object())
	}
}

func TestScheduler_ImmediateCallsBypassQueue(t *testing.T) {
	src := `(module m (func f (param x) (return (call s x))))`
	s := NewScheduler(doubler())
	in := NewInterpreter(parseModule(t, src), Config{Host: s})
	v, err := s.Run(context.Background(), in, "f", int64(21))
	if err != nil || v != int64(42) {
		t.Errorf("Run = %v, %v; want 42", v, err)
	}
	if s.Steps() != 0 {
		t.Errorf("Steps = %d, want 0", s.Steps())
	}
}
