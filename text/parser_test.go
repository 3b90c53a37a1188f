package text

import (
	stderrors "errors"
	"strings"
	"testing"

	"github.com/wippyai/statemachine/errors"
	"github.com/wippyai/statemachine/ir"
)

func TestParse_RoundTrip(t *testing.T) {
	src := `(module demo
  (func fetch (param url) (result int) (suspend)
    (var n (await get url))
    (while @retry (< n 0)
      (if (== n -1)
        (then
          (break @retry))
        (else
          (set n (await get url)))))
    (try
      (body
        (do (call log "got" n)))
      (catch e
        (throw e))
      (finally
        (do (call close))))
    (return (? (&& (> n 0) (! false)) n (neg n)))))`
	m, err := Parse(src)
	if err != nil {
		t.Fatal(err)
	}
	if got := ir.String(m); got != src {
		t.Errorf("round trip:\n%s\nwant:\n%s", got, src)
	}
	fn := m.Func("fetch")
	if fn == nil || !fn.Suspend || fn.Result != ir.TypeInt || len(fn.Params) != 1 {
		t.Fatalf("header: %+v", fn)
	}
}

func TestParse_Scoping(t *testing.T) {
	fn, err := ParseFunction(`(func f
		(var x 1)
		(block (var x (+ x 1)) (set x 5))
		(return x))`)
	if err != nil {
		t.Fatal(err)
	}
	outer := fn.Body.Stmts[0].(*ir.Decl).Var
	inner := fn.Body.Stmts[1].(*ir.Block).Stmts[0].(*ir.Decl)
	if inner.Var == outer {
		t.Fatal("shadowing declaration reused the outer variable")
	}
	if inner.Init.(*ir.Binary).X.(*ir.Read).Var != outer {
		t.Error("initializer must see the outer variable")
	}
	if fn.Body.Stmts[1].(*ir.Block).Stmts[1].(*ir.Assign).Var != inner.Var {
		t.Error("set inside the block must target the inner variable")
	}
	if fn.Body.Stmts[2].(*ir.Return).Value.(*ir.Read).Var != outer {
		t.Error("return must see the outer variable")
	}
}

func TestParse_FoldsVariadicOperators(t *testing.T) {
	fn, err := ParseFunction(`(func f (param a) (param b) (param c) (return (+ a b c)))`)
	if err != nil {
		t.Fatal(err)
	}
	if got := fn.Body.Stmts[0].String(); got != "(return (+ (+ a b) c))" {
		t.Errorf("got %s", got)
	}
}

func TestParse_UniqueVarIDs(t *testing.T) {
	fn, err := ParseFunction(`(func f (param p)
		(var a 1)
		(try (body (var b 2)) (catch e (var c 3))))`)
	if err != nil {
		t.Fatal(err)
	}
	seen := map[int]string{}
	for _, v := range append(ir.DeclaredVars(fn.Body), fn.Params...) {
		if prev, dup := seen[v.ID]; dup {
			t.Errorf("%s and %s share ID %d", prev, v.Name, v.ID)
		}
		seen[v.ID] = v.Name
	}
	if len(seen) != 5 {
		t.Errorf("got %d variables, want 5", len(seen))
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"undeclared", `(module m (func f (return x)))`, `undeclared variable "x"`},
		{"out of scope", `(module m (func f (block (var x 1)) (return x)))`, `undeclared variable "x"`},
		{"assign val", `(module m (func f (val x 1) (set x 2)))`, `cannot assign to val "x"`},
		{"val without init", `(module m (func f (val x)))`, "needs an initializer"},
		{"break outside loop", `(module m (func f (break)))`, "break outside of a loop"},
		{"unknown label", `(module m (func f (while true (continue @nope))))`, "unknown loop label @nope"},
		{"try without handler", `(module m (func f (try (body))))`, "catch or finally"},
		{"duplicate function", `(module m (func f) (func f))`, `function "f" already declared`},
		{"duplicate param", `(module m (func f (param x) (param x)))`, `duplicate parameter "x"`},
		{"unknown statement", `(module m (func f (loop)))`, `unknown statement "loop"`},
		{"unknown operator", `(module m (func f (return (** 1 2))))`, `unknown operator "**"`},
		{"cond arity", `(module m (func f (return (? true 1))))`, "? takes 3 operands"},
		{"unary arity", `(module m (func f (return (neg 1 2))))`, "neg takes 1 operand"},
		{"unknown type", `(module m (func f (param x float)))`, `unknown type "float"`},
		{"unterminated", `(module m (func f (return 1))`, "unterminated module"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.src)
			if err == nil {
				t.Fatal("expected error")
			}
			if !stderrors.Is(err, &errors.Error{Phase: errors.PhaseParse, Kind: errors.KindInvalidInput}) {
				t.Errorf("error kind: %v", err)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestParse_ErrorLine(t *testing.T) {
	_, err := Parse("(module m\n  (func f\n    (return y)))")
	var pe *errors.Error
	if !stderrors.As(err, &pe) {
		t.Fatalf("err = %v", err)
	}
	if pe.Line != 3 {
		t.Errorf("line = %d, want 3", pe.Line)
	}
}

func TestParse_Comments(t *testing.T) {
	m, err := Parse(`;; header
(module m ;; trailing
  (func f (return 1))) ;; end`)
	if err != nil {
		t.Fatal(err)
	}
	if len(m.Funcs()) != 1 {
		t.Errorf("funcs = %d", len(m.Funcs()))
	}
}
