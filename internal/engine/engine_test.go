package engine

import (
	stderrors "errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/wippyai/statemachine/errors"
	"github.com/wippyai/statemachine/ir"
	"github.com/wippyai/statemachine/text"
)

func parseFunc(t *testing.T, src string) *ir.Function {
	t.Helper()
	fn, err := text.ParseFunction(src)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return fn
}

func names(vs []*ir.Var) []string {
	out := make([]string, len(vs))
	for i, v := range vs {
		out[i] = v.Name
	}
	return out
}

func TestLower_TwoAwaits(t *testing.T) {
	fn := parseFunc(t, `(func f
		(var a (await s))
		(var b (await s))
		(return (+ a b)))`)
	before := ir.Fingerprint(fn)

	out, err := New(Config{}).Lower(fn)
	if err != nil {
		t.Fatal(err)
	}
	if out.Markers != 2 || out.Holder == nil {
		t.Fatalf("markers = %d, holder = %v", out.Markers, out.Holder)
	}
	if len(out.Live[1]) != 0 {
		t.Errorf("live@1 = %v, want none", names(out.Live[1]))
	}
	if diff := cmp.Diff([]string{"a"}, names(out.Live[2])); diff != "" {
		t.Errorf("live@2 (-want +got):\n%s", diff)
	}
	if !out.Function.Lowered || out.Function.StateMachine != out.Holder {
		t.Error("lowered function not linked to its holder")
	}
	if out.Holder.Origin != out.Function {
		t.Error("holder origin not the lowered function")
	}
	if ir.Fingerprint(fn) != before {
		t.Error("input function modified")
	}

	d := findDispatch(out.Holder.Methods[0].Body)
	if d == nil {
		t.Fatal("no dispatch in entry method")
	}
	if diff := cmp.Diff([]int{1, 2}, d.Entries); diff != "" {
		t.Errorf("entries (-want +got):\n%s", diff)
	}
}

func findDispatch(b *ir.Block) *ir.Dispatch {
	var d *ir.Dispatch
	ir.Inspect(b, func(n ir.Node) bool {
		if x, ok := n.(*ir.Dispatch); ok {
			d = x
		}
		return d == nil
	})
	return d
}

func TestLower_NoMarkersUnchanged(t *testing.T) {
	fn := parseFunc(t, `(func f (param x) (return (+ x (call g 1))))`)
	out, err := New(Config{}).Lower(fn)
	if err != nil {
		t.Fatal(err)
	}
	if out.Function != fn || out.Holder != nil || out.Markers != 0 {
		t.Errorf("function without suspension points changed: %+v", out)
	}
}

type calleeSet map[string]bool

func (n calleeSet) Match(callee string) bool { return n[callee] }

func TestLower_Matcher(t *testing.T) {
	fn := parseFunc(t, `(func f (return (+ (call io.read) 1)))`)
	out, err := New(Config{Matcher: calleeSet{"io.read": true}}).Lower(fn)
	if err != nil {
		t.Fatal(err)
	}
	if out.Markers != 1 {
		t.Errorf("markers = %d, want 1", out.Markers)
	}
}

func TestLower_AlreadyLowered(t *testing.T) {
	fn := parseFunc(t, `(func f (return (await s)))`)
	e := New(Config{})
	out, err := e.Lower(fn)
	if err != nil {
		t.Fatal(err)
	}
	if !IsLowered(out.Function) {
		t.Fatal("IsLowered(lowered) = false")
	}
	_, err = e.Lower(out.Function)
	if !stderrors.Is(err, &errors.Error{Phase: errors.PhaseLower, Kind: errors.KindAlreadyLowered}) {
		t.Errorf("err = %v, want already_lowered", err)
	}
}

func TestIsLowered(t *testing.T) {
	label := &ir.Field{Name: "label", Kind: ir.FieldLabel}
	tests := []struct {
		name string
		fn   *ir.Function
		want bool
	}{
		{"plain", parseFunc(t, `(func f (return (await s)))`), false},
		{"flag", &ir.Function{Name: "f", Lowered: true, Body: ir.NewBlock()}, true},
		{"holder", &ir.Function{Name: "f", StateMachine: &ir.Class{}, Body: ir.NewBlock()}, true},
		{"store", &ir.Function{Name: "f", Body: ir.NewBlock(ir.NewStore(ir.NewThis(), label, ir.Int(1)))}, true},
		{"expanded marker", &ir.Function{Name: "f", Body: ir.NewBlock(&ir.SuspensionPoint{ID: 1, Resume: ir.NewBlock()})}, true},
		{"sliced marker", &ir.Function{Name: "f", Body: ir.NewBlock(&ir.SuspensionPoint{ID: 1, Call: ir.NewAwait("s")})}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsLowered(tt.fn); got != tt.want {
				t.Errorf("IsLowered = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLowerModule(t *testing.T) {
	m := parse(t, chain)
	out, err := New(Config{}).LowerModule(m)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"leaf", "mid", "top"}, out.Suspending); diff != "" {
		t.Errorf("suspending (-want +got):\n%s", diff)
	}

	var order []string
	for _, d := range out.Module.Members {
		order = append(order, d.MemberName())
	}
	want := []string{
		"leaf", "leaf$StateMachine",
		"mid", "mid$StateMachine",
		"top", "top$StateMachine",
		"pure", "helper",
	}
	if diff := cmp.Diff(want, order); diff != "" {
		t.Errorf("members (-want +got):\n%s", diff)
	}
	if out.Functions["top"].Markers != 2 {
		t.Errorf("top markers = %d, want 2", out.Functions["top"].Markers)
	}
	if m.Members[1].MemberName() != "mid" || IsLowered(m.Func("mid")) {
		t.Error("input module modified")
	}
}

func TestLower_Logs(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	fn := parseFunc(t, `(func f (var a (await s)) (return a))`)
	if _, err := New(Config{Logger: zap.New(core)}).Lower(fn); err != nil {
		t.Fatal(err)
	}
	entries := logs.FilterMessage("lowered").All()
	if len(entries) != 1 {
		t.Fatalf("got %d lowered entries", len(entries))
	}
	ctx := entries[0].ContextMap()
	if ctx["func"] != "f" || ctx["holder"] != "f$StateMachine" {
		t.Errorf("context = %v", ctx)
	}
}

func TestSetLogger(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	SetLogger(zap.New(core))
	defer SetLogger(nil)

	fn := parseFunc(t, `(func f (return 1))`)
	if _, err := New(Config{}).Lower(fn); err != nil {
		t.Fatal(err)
	}
	if logs.FilterMessage("no suspension points, unchanged").Len() != 1 {
		t.Error("package logger not used")
	}
}
