package slicer

import (
	stderrors "errors"
	"strings"
	"testing"

	"github.com/wippyai/statemachine/errors"
	"github.com/wippyai/statemachine/ir"
	"github.com/wippyai/statemachine/text"
)

func mustParse(t *testing.T, src string) *ir.Function {
	t.Helper()
	fn, err := text.ParseFunction(src)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return fn
}

func render(b *ir.Block) string {
	lines := make([]string, len(b.Stmts))
	for i, s := range b.Stmts {
		lines[i] = s.String()
	}
	return strings.Join(lines, "\n")
}

func TestSlice(t *testing.T) {
	tests := []struct {
		name    string
		src     string
		want    string
		markers int
	}{
		{
			name: "two_sequential_awaits",
			src: `(func f
				(var a (await x))
				(var b (await y))
				(return (+ a b)))`,
			want: `(var a)
(suspend #1 a (await x))
(var b)
(suspend #2 b (await y))
(return (+ a b))`,
			markers: 2,
		},
		{
			name: "call_before_await_is_pinned",
			src:  `(func f (do (call g (call h) (await x))))`,
			want: `(val $t1 (call h))
(val $t2)
(suspend #1 $t2 (await x))
(do (call g $t1 $t2))`,
			markers: 1,
		},
		{
			name: "reads_and_constants_are_not_pinned",
			src:  `(func f (param p) (do (call g p 1 (await x))))`,
			want: `(val $t1)
(suspend #1 $t1 (await x))
(do (call g p 1 $t1))`,
			markers: 1,
		},
		{
			name: "outermost_await_with_suspending_argument",
			src:  `(func f (var a (await f2 (await g))))`,
			want: `(val $t1)
(suspend #1 $t1 (await g))
(var a)
(suspend #2 a (await f2 $t1))`,
			markers: 2,
		},
		{
			name: "assignment_and_expression_statement",
			src: `(func f (param p)
				(set p (await x))
				(do (await y p)))`,
			want: `(suspend #1 p (await x))
(suspend #2 _ (await y p))`,
			markers: 2,
		},
		{
			name: "short_circuit_and",
			src:  `(func f (param p) (val r (&& p (await x))))`,
			want: `(var $t1 p)
(if $t1
  (then
    (val $t2)
    (suspend #1 $t2 (await x))
    (set $t1 $t2)))
(val r $t1)`,
			markers: 1,
		},
		{
			name: "short_circuit_or",
			src:  `(func f (param p) (val r (|| p (await x))))`,
			want: `(var $t1 p)
(if (! $t1)
  (then
    (val $t2)
    (suspend #1 $t2 (await x))
    (set $t1 $t2)))
(val r $t1)`,
			markers: 1,
		},
		{
			name: "short_circuit_left_only",
			src:  `(func f (param p) (val r (&& (await x) p)))`,
			want: `(val $t1)
(suspend #1 $t1 (await x))
(val r (&& $t1 p))`,
			markers: 1,
		},
		{
			name: "conditional_branches",
			src:  `(func f (param p) (return (? p (await x) (await y))))`,
			want: `(var $t1)
(if p
  (then
    (val $t2)
    (suspend #1 $t2 (await x))
    (set $t1 $t2))
  (else
    (val $t3)
    (suspend #2 $t3 (await y))
    (set $t1 $t3)))
(return $t1)`,
			markers: 2,
		},
		{
			name: "while_with_suspending_condition",
			src:  `(func f (while @l (await more) (do (call work))))`,
			want: `(while @l true
  (val $t1)
  (suspend #1 $t1 (await more))
  (if (! $t1)
    (then
      (break)))
  (do (call work)))`,
			markers: 1,
		},
		{
			name: "nested_blocks_number_in_program_order",
			src: `(func f (param p)
				(if (await c)
					(then (do (await a)))
					(else (try (body (do (await b))) (catch e (do (await d)))))))`,
			want: `(val $t1)
(suspend #1 $t1 (await c))
(if $t1
  (then
    (suspend #2 _ (await a)))
  (else
    (try
      (body
        (suspend #3 _ (await b)))
      (catch e
        (suspend #4 _ (await d))))))`,
			markers: 4,
		},
		{
			name: "unary_and_binary_order",
			src:  `(func f (return (+ (call h) (neg (await x)))))`,
			want: `(val $t1 (call h))
(val $t2)
(suspend #1 $t2 (await x))
(return (+ $t1 (neg $t2)))`,
			markers: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fn := mustParse(t, tt.src)
			ctx := NewContext(fn, nil)
			out, err := Slice(ctx, fn.Body)
			if err != nil {
				t.Fatalf("Slice: %v", err)
			}
			if got := render(out); got != tt.want {
				t.Errorf("got:\n%s\nwant:\n%s", got, tt.want)
			}
			if ctx.Markers() != tt.markers {
				t.Errorf("markers = %d, want %d", ctx.Markers(), tt.markers)
			}
			for i, sp := range ir.Markers(out) {
				if sp.ID != i+1 {
					t.Errorf("marker %d has id %d", i, sp.ID)
				}
				if !sp.Call.Suspend {
					t.Errorf("marker %d call not flagged suspending", sp.ID)
				}
			}
		})
	}
}

func TestSlice_NoSuspendUnchanged(t *testing.T) {
	fn := mustParse(t, `(func f (param n)
		(var a (call g n))
		(while (< a 3) (set a (+ a 1)))
		(return a))`)
	ctx := NewContext(fn, nil)
	out, err := Slice(ctx, fn.Body)
	if err != nil {
		t.Fatal(err)
	}
	if ctx.Markers() != 0 || ctx.Temps() != 0 {
		t.Errorf("markers=%d temps=%d", ctx.Markers(), ctx.Temps())
	}
	for i := range fn.Body.Stmts {
		if i == 1 {
			continue // loops are rebuilt around their sliced body
		}
		if out.Stmts[i] != fn.Body.Stmts[i] {
			t.Errorf("statement %d was rebuilt", i)
		}
	}
	if render(out) != render(fn.Body) {
		t.Errorf("output differs:\n%s", render(out))
	}
}

func TestSlice_Predicate(t *testing.T) {
	fn := mustParse(t, `(func f (val a (call io.read)) (return (call pure a)))`)
	ctx := NewContext(fn, func(c *ir.Call) bool { return strings.HasPrefix(c.Callee, "io.") })
	out, err := Slice(ctx, fn.Body)
	if err != nil {
		t.Fatal(err)
	}
	want := "(val a)\n(suspend #1 a (await io.read))\n(return (call pure a))"
	if got := render(out); got != want {
		t.Errorf("got:\n%s\nwant:\n%s", got, want)
	}
}

func TestSlice_TempIDsAvoidFunctionVars(t *testing.T) {
	fn := mustParse(t, `(func f (param p) (var a 1) (do (call g (call h) (await x))))`)
	ctx := NewContext(fn, nil)
	out, err := Slice(ctx, fn.Body)
	if err != nil {
		t.Fatal(err)
	}
	maxID := ir.MaxVarID(fn)
	for _, v := range ir.DeclaredVars(out) {
		if v.Temp && v.ID <= maxID {
			t.Errorf("temp %s reuses id %d", v.Name, v.ID)
		}
	}
	if ctx.NextVarID() != maxID+3 {
		t.Errorf("NextVarID = %d, want %d", ctx.NextVarID(), maxID+3)
	}
}

func TestSlice_RejectsLoweredInput(t *testing.T) {
	body := ir.NewBlock(&ir.SuspensionPoint{ID: 1, Call: ir.NewAwait("x")})
	_, err := Slice(&Context{Func: "f"}, body)
	if !stderrors.Is(err, &errors.Error{Phase: errors.PhaseSlice, Kind: errors.KindStructural}) {
		t.Fatalf("err = %v", err)
	}
}

func TestSliceExpr_PureExpressionUntouched(t *testing.T) {
	e := ir.NewBinary(ir.OpAdd, ir.Int(1), ir.NewCall("g"))
	pre, out, err := SliceExpr(&Context{}, e)
	if err != nil {
		t.Fatal(err)
	}
	if pre != nil || out != e {
		t.Errorf("pre=%v out=%v", pre, out)
	}
}

func TestSliceExpr_DeepNesting(t *testing.T) {
	// (+ 1 (+ 1 ... (await s)))
	right := func(depth int) ir.Expr {
		var e ir.Expr = ir.NewAwait("s")
		for i := 0; i < depth; i++ {
			e = ir.NewBinary(ir.OpAdd, ir.Int(1), e)
		}
		return e
	}
	// (+ (+ ... (+ 1 1) ... 1) (await s))
	left := func(depth int) ir.Expr {
		var e ir.Expr = ir.Int(1)
		for i := 0; i < depth; i++ {
			e = ir.NewBinary(ir.OpAdd, e, ir.Int(1))
		}
		return ir.NewBinary(ir.OpAdd, e, ir.NewAwait("s"))
	}

	tests := []struct {
		name  string
		build func(int) ir.Expr
		depth int
		temps int
	}{
		{"await_innermost_1k", right, 1000, 1},
		{"await_innermost_5k", right, 5000, 1},
		{"deep_operand_before_await_5k", left, 5000, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := &Context{Func: "f"}
			pre, out, err := SliceExpr(ctx, tt.build(tt.depth))
			if err != nil {
				t.Fatal(err)
			}
			if ctx.Markers() != 1 || ctx.Temps() != tt.temps {
				t.Fatalf("markers = %d, temps = %d; want 1, %d", ctx.Markers(), ctx.Temps(), tt.temps)
			}
			sp, ok := pre[len(pre)-1].(*ir.SuspensionPoint)
			if !ok || sp.Dest == nil {
				t.Fatalf("last statement = %v, want a marker with a destination", pre[len(pre)-1])
			}
			if ir.ContainsSuspend(out) {
				t.Fatal("residual expression still suspends")
			}

			// The marker result must end up where the call was.
			depth := 0
			e := out
			for {
				b, ok := e.(*ir.Binary)
				if !ok {
					break
				}
				e = b.Y
				depth++
			}
			if r, ok := e.(*ir.Read); !ok || r.Var != sp.Dest {
				t.Errorf("innermost operand = %v, want %s", e, sp.Dest.Name)
			}
			wantDepth := tt.depth
			if tt.temps == 2 {
				wantDepth = 1
			}
			if depth != wantDepth {
				t.Errorf("residual depth = %d, want %d", depth, wantDepth)
			}
		})
	}
}
