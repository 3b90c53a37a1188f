// Package holder lays out the state holder class of a lowered function.
//
// A holder has a label field, a result field, one field per parameter and
// one field per distinct local that is live across some marker. Fields are
// never shared between variables.
package holder

import (
	"fmt"

	"github.com/wippyai/statemachine/internal/liveness"
	"github.com/wippyai/statemachine/ir"
)

// DefaultSuffix is appended to the function name to form the holder name.
const DefaultSuffix = "$StateMachine"

// Options configures synthesis.
type Options struct {
	// Suffix overrides DefaultSuffix when non-empty.
	Suffix string
}

// Layout is a synthesized holder and its variable-to-field mapping.
type Layout struct {
	Class  *ir.Class
	Label  *ir.Field
	Result *ir.Field
	Params []*ir.Field
	Locals []*ir.Field
	byVar  map[*ir.Var]*ir.Field
}

// Synthesize builds the holder for fn. Locals are taken from live in order
// of first appearance.
func Synthesize(fn *ir.Function, live *liveness.Result, opts Options) *Layout {
	suffix := opts.Suffix
	if suffix == "" {
		suffix = DefaultSuffix
	}
	c := &ir.Class{Name: fn.Name + suffix, Origin: fn}
	l := &Layout{Class: c, byVar: map[*ir.Var]*ir.Field{}}

	add := func(name string, typ ir.Type, kind ir.FieldKind, origin *ir.Var) *ir.Field {
		f := &ir.Field{Index: len(c.Fields), Name: name, Type: typ, Kind: kind, Origin: origin}
		c.Fields = append(c.Fields, f)
		if origin != nil {
			l.byVar[origin] = f
		}
		return f
	}

	l.Label = add("label", ir.TypeLabel, ir.FieldLabel, nil)
	l.Result = add("result", ir.TypeResult, ir.FieldResult, nil)
	for _, p := range fn.Params {
		l.Params = append(l.Params, add("p$"+p.Name, p.Type, ir.FieldParam, p))
	}
	if live != nil {
		for i, v := range live.Captured() {
			l.Locals = append(l.Locals, add(fmt.Sprintf("L$%d", i), v.Type, ir.FieldLocal, v))
		}
	}
	return l
}

// FieldFor returns the field holding v, or nil.
func (l *Layout) FieldFor(v *ir.Var) *ir.Field { return l.byVar[v] }

// Replacement returns the body that replaces fn's original body: construct
// the holder from the parameters and enter it with a successful unit result.
func (l *Layout) Replacement(fn *ir.Function) *ir.Block {
	args := make([]ir.Expr, len(fn.Params))
	for i, p := range fn.Params {
		args[i] = ir.NewRead(p)
	}
	start := &ir.Invoke{
		Recv:   &ir.New{Class: l.Class, Args: args},
		Method: ir.EntryMethod,
		Args:   []ir.Expr{ir.NewIntrinsic(ir.IntrinsicSuccess, ir.UnitConst())},
	}
	return ir.NewBlock(&ir.Return{Value: start, Target: fn.Name})
}
