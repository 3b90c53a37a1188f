package engine

import (
	"go.uber.org/zap"

	"github.com/wippyai/statemachine/errors"
	"github.com/wippyai/statemachine/internal/holder"
	"github.com/wippyai/statemachine/internal/liveness"
	"github.com/wippyai/statemachine/internal/rewrite"
	"github.com/wippyai/statemachine/internal/slicer"
	"github.com/wippyai/statemachine/ir"
)

// SuspendMatcher decides which callees suspend in addition to calls marked
// in the tree.
type SuspendMatcher interface {
	Match(callee string) bool
}

// Config configures the engine.
type Config struct {
	Matcher SuspendMatcher
	// Logger overrides the package logger when set.
	Logger       *zap.Logger
	HolderSuffix string
}

// Engine runs the lowering pipeline. It holds no state between calls.
type Engine struct {
	matcher SuspendMatcher
	log     *zap.Logger
	suffix  string
}

// New creates an engine with the given config.
func New(cfg Config) *Engine {
	log := cfg.Logger
	if log == nil {
		log = Logger()
	}
	return &Engine{matcher: cfg.Matcher, log: log, suffix: cfg.HolderSuffix}
}

// Output is the result of lowering one function.
type Output struct {
	// Function is the lowered function, or the input when it has no markers.
	Function *ir.Function
	// Holder is the synthesized state holder, nil when nothing was lowered.
	Holder *ir.Class
	// Live maps each marker ID to the locals saved across it.
	Live       map[int][]*ir.Var
	Markers    int
	Temps      int
	Iterations int
}

// ModuleOutput is the result of lowering a module.
type ModuleOutput struct {
	Module *ir.Module
	// Functions holds the per-function output of every lowered function.
	Functions map[string]*Output
	// Suspending lists the functions found to suspend, sorted by module order.
	Suspending []string
}

// IsLowered reports whether fn has already been through the pipeline.
func IsLowered(fn *ir.Function) bool {
	if fn.Lowered || fn.StateMachine != nil {
		return true
	}
	found := false
	ir.Inspect(fn.Body, func(n ir.Node) bool {
		switch n := n.(type) {
		case *ir.Dispatch, *ir.Store, *ir.Load, *ir.This, *ir.New, *ir.Invoke, *ir.Intrinsic:
			found = true
		case *ir.SuspensionPoint:
			found = found || n.Suspend != nil || n.Resume != nil
		}
		return !found
	})
	return found
}

func (e *Engine) baseSuspends(c *ir.Call) bool {
	return c.Suspend || (e.matcher != nil && e.matcher.Match(c.Callee))
}

// Lower lowers a single function.
func (e *Engine) Lower(fn *ir.Function) (*Output, error) {
	return e.lower(fn, e.baseSuspends)
}

// LowerModule lowers every function of m that can suspend, directly or
// through a call to another module function. Each holder is placed right
// after its function. m itself is not modified.
func (e *Engine) LowerModule(m *ir.Module) (*ModuleOutput, error) {
	susp := SuspendingFuncs(m, e.baseSuspends)
	pred := func(c *ir.Call) bool { return e.baseSuspends(c) || susp[c.Callee] }

	out := &ModuleOutput{
		Module:    &ir.Module{Name: m.Name, Members: append([]ir.Member(nil), m.Members...)},
		Functions: map[string]*Output{},
	}
	for _, fn := range m.Funcs() {
		if susp[fn.Name] {
			out.Suspending = append(out.Suspending, fn.Name)
		}
		res, err := e.lower(fn, pred)
		if err != nil {
			return nil, err
		}
		if res.Holder == nil {
			continue
		}
		out.Functions[fn.Name] = res
		out.Module.Replace(fn, res.Function)
		out.Module.InsertAfter(res.Function, res.Holder)
	}
	e.log.Debug("module lowered",
		zap.String("module", m.Name),
		zap.Int("functions", len(out.Functions)),
		zap.Strings("suspending", out.Suspending),
		zap.Uint64("fingerprint", ir.ModuleFingerprint(out.Module)))
	return out, nil
}

func (e *Engine) lower(fn *ir.Function, suspends func(*ir.Call) bool) (*Output, error) {
	if IsLowered(fn) {
		return nil, errors.AlreadyLowered(fn.Name)
	}
	log := e.log.With(zap.String("func", fn.Name))

	if !ir.ContainsSuspendFunc(fn.Body, suspends) {
		log.Debug("no suspension points, unchanged")
		return &Output{Function: fn}, nil
	}

	ctx := slicer.NewContext(fn, suspends)
	body, err := slicer.Slice(ctx, fn.Body)
	if err != nil {
		return nil, err
	}
	log.Debug("sliced", zap.Int("markers", ctx.Markers()), zap.Int("temps", ctx.Temps()))

	live, err := liveness.Analyze(fn, body)
	if err != nil {
		return nil, err
	}
	for id := 1; id <= ctx.Markers(); id++ {
		if vs := live.At(id); len(vs) > 0 {
			log.Debug("live across marker", zap.Int("marker", id), zap.Stringers("vars", vs))
		}
	}

	layout := holder.Synthesize(fn, live, holder.Options{Suffix: e.suffix})
	method, err := rewrite.Rewrite(fn, body, layout, live)
	if err != nil {
		return nil, err
	}
	layout.Class.Methods = []*ir.Method{method}

	lowered := &ir.Function{
		Name:         fn.Name,
		Params:       fn.Params,
		Result:       fn.Result,
		Suspend:      fn.Suspend,
		Lowered:      true,
		StateMachine: layout.Class,
		Body:         layout.Replacement(fn),
	}
	layout.Class.Origin = lowered

	log.Debug("lowered",
		zap.String("holder", layout.Class.Name),
		zap.Int("fields", len(layout.Class.Fields)),
		zap.Int("iterations", live.Iterations),
		zap.Uint64("fingerprint", ir.Fingerprint(lowered)))

	return &Output{
		Function:   lowered,
		Holder:     layout.Class,
		Live:       live.Live,
		Markers:    ctx.Markers(),
		Temps:      ctx.Temps(),
		Iterations: live.Iterations,
	}, nil
}
