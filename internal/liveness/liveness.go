// Package liveness computes, for every suspension marker of a sliced body,
// the locals whose values are read after the marker resumes.
//
// A local is LIVE at a program point if some path from that point reads it
// before writing it. The analysis runs backward over the structured tree:
// reads add to the live set, declarations and assignments remove from it,
// branches union their successors and loops iterate to a fixed point.
//
// Failures are modeled conservatively: inside a try body every statement is
// assumed able to throw, so the handler's live-in is unioned into the live
// set at each point. Parameters are never reported; they live in holder
// fields for the whole run.
package liveness

import (
	"sort"

	"github.com/wippyai/statemachine/errors"
	"github.com/wippyai/statemachine/ir"
)

// Result maps each marker ID to the locals live across it, sorted by ID.
type Result struct {
	Live map[int][]*ir.Var
	// Iterations is the largest number of passes any loop needed.
	Iterations int
}

// At returns the locals live across marker id.
func (r *Result) At(id int) []*ir.Var { return r.Live[id] }

// Captured returns every distinct live local in order of first appearance:
// by marker ID, then by variable ID.
func (r *Result) Captured() []*ir.Var {
	ids := make([]int, 0, len(r.Live))
	for id := range r.Live {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	seen := map[*ir.Var]bool{}
	var out []*ir.Var
	for _, id := range ids {
		for _, v := range r.Live[id] {
			if !seen[v] {
				seen[v] = true
				out = append(out, v)
			}
		}
	}
	return out
}

type loopFrame struct {
	brk   *BitSet
	cont  *BitSet
	label string
}

type analyzer struct {
	fn      *ir.Function
	vars    map[int]*ir.Var
	params  *BitSet
	after   map[int]*BitSet
	inScope map[int]*BitSet
	exc     *BitSet // live-in of the innermost handler, nil outside try
	ret     *BitSet // live set where a return leaves, nil when nothing runs after
	loops   []*loopFrame
	bound   int
	maxIter int
}

// Analyze computes the live locals at every marker of body, which must be the
// sliced body of fn.
func Analyze(fn *ir.Function, body *ir.Block) (*Result, error) {
	a := &analyzer{
		fn:      fn,
		vars:    map[int]*ir.Var{},
		params:  NewBitSet(len(fn.Params)),
		after:   map[int]*BitSet{},
		inScope: map[int]*BitSet{},
	}
	for _, p := range fn.Params {
		a.params.Set(p.ID)
		a.vars[p.ID] = p
	}
	declared := NewBitSet(ir.MaxVarID(fn))
	a.scope(body, declared)
	ir.Inspect(body, func(n ir.Node) bool {
		if r, ok := n.(*ir.Read); ok {
			if _, known := a.vars[r.Var.ID]; !known {
				a.vars[r.Var.ID] = r.Var
			}
		}
		return true
	})
	a.bound = len(a.vars) + 2

	entry, err := a.block(body, NewBitSet(0))
	if err != nil {
		return nil, err
	}
	for _, id := range entry.ToSlice() {
		if !a.params.Has(id) && !declared.Has(id) {
			return nil, errors.Undeclared(errors.PhaseLiveness, fn.Name, a.vars[id].Name)
		}
	}

	res := &Result{Live: make(map[int][]*ir.Var, len(a.after)), Iterations: a.maxIter}
	for id, live := range a.after {
		vis := a.inScope[id]
		out := []*ir.Var{}
		for _, vid := range live.ToSlice() {
			if a.params.Has(vid) {
				continue
			}
			if !declared.Has(vid) {
				return nil, errors.Undeclared(errors.PhaseLiveness, fn.Name, a.vars[vid].Name)
			}
			if vis.Has(vid) {
				out = append(out, a.vars[vid])
			}
		}
		res.Live[id] = out
	}
	return res, nil
}

// scope records, for every marker, the variables declared in an enclosing
// scope before it. declared accumulates every declaration in the body.
func (a *analyzer) scope(b *ir.Block, declared *BitSet) {
	visible := NewBitSet(0)
	var walk func(b *ir.Block, vis *BitSet)
	walk = func(b *ir.Block, vis *BitSet) {
		if b == nil {
			return
		}
		vis = vis.Clone()
		for _, s := range b.Stmts {
			switch s := s.(type) {
			case *ir.Decl:
				vis.Set(s.Var.ID)
				declared.Set(s.Var.ID)
				a.vars[s.Var.ID] = s.Var
			case *ir.Block:
				walk(s, vis)
			case *ir.If:
				walk(s.Then, vis)
				walk(s.Else, vis)
			case *ir.While:
				walk(s.Body, vis)
			case *ir.Try:
				walk(s.Body, vis)
				if s.CatchVar != nil {
					declared.Set(s.CatchVar.ID)
					a.vars[s.CatchVar.ID] = s.CatchVar
					cv := vis.Clone()
					cv.Set(s.CatchVar.ID)
					walk(s.Catch, cv)
				} else {
					walk(s.Catch, vis)
				}
				walk(s.Finally, vis)
			case *ir.SuspensionPoint:
				a.inScope[s.ID] = vis.Clone()
			}
		}
	}
	walk(b, visible)
}

func uses(e ir.Expr, live *BitSet) {
	if e == nil {
		return
	}
	ir.Inspect(e, func(n ir.Node) bool {
		if r, ok := n.(*ir.Read); ok {
			live.Set(r.Var.ID)
		}
		return true
	})
}

func (a *analyzer) block(b *ir.Block, out *BitSet) (*BitSet, error) {
	live := out.Clone()
	if b == nil {
		return live, nil
	}
	for i := len(b.Stmts) - 1; i >= 0; i-- {
		in, err := a.stmt(b.Stmts[i], live)
		if err != nil {
			return nil, err
		}
		if a.exc != nil {
			in.Union(a.exc)
		}
		live = in
	}
	return live, nil
}

// stmt returns the live-in set of s given its live-out set. out is not
// modified.
func (a *analyzer) stmt(s ir.Stmt, out *BitSet) (*BitSet, error) {
	switch s := s.(type) {
	case *ir.Block:
		return a.block(s, out)

	case *ir.Decl:
		in := out.Clone()
		in.Clear(s.Var.ID)
		uses(s.Init, in)
		return in, nil

	case *ir.Assign:
		in := out.Clone()
		in.Clear(s.Var.ID)
		uses(s.Value, in)
		return in, nil

	case *ir.ExprStmt:
		in := out.Clone()
		uses(s.X, in)
		return in, nil

	case *ir.If:
		in, err := a.block(s.Then, out)
		if err != nil {
			return nil, err
		}
		els, err := a.block(s.Else, out)
		if err != nil {
			return nil, err
		}
		in.Union(els)
		uses(s.Cond, in)
		return in, nil

	case *ir.While:
		return a.loop(s, out)

	case *ir.Break:
		f := a.findLoop(s.Label)
		if f == nil {
			return nil, errors.Structural(errors.PhaseLiveness, a.fn.Name, s, "break outside of a matching loop")
		}
		return f.brk.Clone(), nil

	case *ir.Continue:
		f := a.findLoop(s.Label)
		if f == nil {
			return nil, errors.Structural(errors.PhaseLiveness, a.fn.Name, s, "continue outside of a matching loop")
		}
		return f.cont.Clone(), nil

	case *ir.Return:
		in := NewBitSet(0)
		if a.ret != nil {
			in = a.ret.Clone()
		}
		uses(s.Value, in)
		return in, nil

	case *ir.Throw:
		in := NewBitSet(0)
		if a.exc != nil {
			in = a.exc.Clone()
		}
		uses(s.Value, in)
		return in, nil

	case *ir.Try:
		return a.try(s, out)

	case *ir.SuspensionPoint:
		after := out.Clone()
		if s.Dest != nil {
			after.Clear(s.Dest.ID)
		}
		if a.exc != nil {
			// A failed resumption leaves Dest unwritten and enters the handler.
			after.Union(a.exc)
		}
		a.after[s.ID] = after
		in := out.Clone()
		if s.Dest != nil {
			in.Clear(s.Dest.ID)
		}
		if s.Call != nil {
			for _, arg := range s.Call.Args {
				uses(arg, in)
			}
		}
		return in, nil
	}
	return nil, errors.Structural(errors.PhaseLiveness, a.fn.Name, s, "unexpected statement in sliced body")
}

func (a *analyzer) findLoop(label string) *loopFrame {
	for i := len(a.loops) - 1; i >= 0; i-- {
		if label == "" || a.loops[i].label == label {
			return a.loops[i]
		}
	}
	return nil
}

func (a *analyzer) loop(s *ir.While, out *BitSet) (*BitSet, error) {
	head := out.Clone()
	uses(s.Cond, head)
	frame := &loopFrame{label: s.Label, brk: out}
	a.loops = append(a.loops, frame)
	defer func() { a.loops = a.loops[:len(a.loops)-1] }()

	for iter := 1; ; iter++ {
		if iter > a.bound {
			return nil, errors.Structural(errors.PhaseLiveness, a.fn.Name, s,
				"live sets did not converge after %d iterations", a.bound)
		}
		frame.cont = head
		bodyIn, err := a.block(s.Body, head)
		if err != nil {
			return nil, err
		}
		next := out.Clone()
		next.Union(bodyIn)
		uses(s.Cond, next)
		if next.Equal(head) {
			if iter > a.maxIter {
				a.maxIter = iter
			}
			return head, nil
		}
		head = next
	}
}

func (a *analyzer) try(s *ir.Try, out *BitSet) (*BitSet, error) {
	outerExc, outerRet := a.exc, a.ret
	defer func() { a.exc, a.ret = outerExc, outerRet }()

	// Where control goes once the protected region and handler are done.
	normal := out
	escape := outerExc
	if s.Finally != nil {
		finOut := out.Clone()
		if outerExc != nil {
			finOut.Union(outerExc)
		}
		if outerRet != nil {
			finOut.Union(outerRet)
		}
		finIn, err := a.block(s.Finally, finOut)
		if err != nil {
			return nil, err
		}
		normal, escape = finIn, finIn
		a.ret = finIn
	}

	handler := escape
	if s.Catch != nil {
		a.exc = escape
		catchIn, err := a.block(s.Catch, normal)
		if err != nil {
			return nil, err
		}
		if s.CatchVar != nil {
			catchIn.Clear(s.CatchVar.ID)
		}
		handler = catchIn
	}

	a.exc = handler
	in, err := a.block(s.Body, normal)
	if err != nil {
		return nil, err
	}
	if handler != nil {
		in.Union(handler)
	}
	return in, nil
}
