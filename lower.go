package statemachine

import (
	"go.uber.org/zap"

	"github.com/wippyai/statemachine/internal/engine"
	"github.com/wippyai/statemachine/ir"
)

// Config configures lowering.
type Config struct {
	// Matcher marks callees that suspend in addition to (await ...) calls.
	Matcher SuspendMatcher
	// Logger overrides the package logger for this call.
	Logger *zap.Logger
	// HolderSuffix is appended to the function name to name its holder.
	// Defaults to "$StateMachine".
	HolderSuffix string
	// Suspending lists callee patterns, as accepted by NewWildcardMatcher,
	// that suspend in addition to Matcher.
	Suspending []string
}

// Result is the outcome of lowering one function.
type Result struct {
	// Function is the lowered function. It is the input itself when the
	// function has no suspension points.
	Function *ir.Function
	// Live maps each suspension point ID to the locals saved across it.
	Live map[int][]*ir.Var
	// Aux holds the synthesized holder classes, to be registered next to
	// Function. Empty when nothing was lowered.
	Aux     []*ir.Class
	Markers int
}

// ModuleResult is the outcome of lowering a module.
type ModuleResult struct {
	// Module is a copy of the input with every lowered function replaced and
	// its holder inserted right after it.
	Module *ir.Module
	// Lowered maps function names to their results.
	Lowered map[string]*Result
	// Suspending lists every function that can suspend, in module order.
	Suspending []string
}

func (cfg Config) engine() *engine.Engine {
	matcher := cfg.Matcher
	if len(cfg.Suspending) > 0 {
		matcher = NewCompositeMatcher(NewWildcardMatcher(cfg.Suspending), cfg.Matcher)
	}
	return engine.New(engine.Config{
		Matcher:      matcher,
		Logger:       cfg.Logger,
		HolderSuffix: cfg.HolderSuffix,
	})
}

func fromOutput(out *engine.Output) *Result {
	r := &Result{Function: out.Function, Live: out.Live, Markers: out.Markers}
	if out.Holder != nil {
		r.Aux = []*ir.Class{out.Holder}
	}
	return r
}

// Lower rewrites fn into a state machine. The input is not modified.
//
// Lowering a function twice, or a function that already contains lowered
// forms, fails with errors.KindAlreadyLowered.
func Lower(fn *ir.Function, cfg Config) (*Result, error) {
	out, err := cfg.engine().Lower(fn)
	if err != nil {
		return nil, err
	}
	return fromOutput(out), nil
}

// LowerModule lowers every function of m that can suspend, including
// functions that only suspend through calls to other module functions.
// The input module is not modified.
func LowerModule(m *ir.Module, cfg Config) (*ModuleResult, error) {
	out, err := cfg.engine().LowerModule(m)
	if err != nil {
		return nil, err
	}
	res := &ModuleResult{
		Module:     out.Module,
		Lowered:    make(map[string]*Result, len(out.Functions)),
		Suspending: out.Suspending,
	}
	for name, o := range out.Functions {
		res.Lowered[name] = fromOutput(o)
	}
	return res, nil
}

// IsLowered reports whether fn is the output of a previous lowering.
func IsLowered(fn *ir.Function) bool {
	return engine.IsLowered(fn)
}

// SetLogger installs the logger used when Config.Logger is nil.
func SetLogger(l *zap.Logger) {
	engine.SetLogger(l)
}
