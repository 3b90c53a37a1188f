package runtime

import (
	"context"
	stderrors "errors"
	"sync"

	"go.uber.org/zap"

	"github.com/wippyai/statemachine/errors"
)

// StepStatus reports where a scheduled call stands after a step.
type StepStatus int

const (
	StepContinue StepStatus = iota // an operation is parked, expects Step
	StepIdle                       // suspended on a continuation held elsewhere
	StepDone                       // execution complete
)

func (s StepStatus) String() string {
	switch s {
	case StepContinue:
		return "continue"
	case StepIdle:
		return "idle"
	case StepDone:
		return "done"
	}
	return "unknown"
}

// Op is a suspending host call parked by the scheduler.
type Op struct {
	Name   string
	Args   []Value
	Handle Handle
}

// StepResult is the state after Start or Step. Op is the next operation to
// answer when Status is StepContinue; Value is the outcome when it is
// StepDone.
type StepResult struct {
	Op     *Op
	Value  Value
	Status StepStatus
}

// Scheduler is a Host that parks every suspending call and answers parked
// calls in FIFO order. Calls that cannot suspend run immediately through
// funcs.
type Scheduler struct {
	funcs HostFuncs
	table *Table
	log   *zap.Logger
	queue []*Op
	steps int
	mu    sync.Mutex
}

// NewScheduler creates a scheduler whose operations are implemented by funcs.
func NewScheduler(funcs HostFuncs) *Scheduler {
	return &Scheduler{funcs: funcs, table: NewTable(), log: Logger()}
}

// Call implements Host.
func (s *Scheduler) Call(ctx context.Context, name string, args []Value, cont *Continuation) (Value, error) {
	if cont == nil {
		return s.funcs.Call(ctx, name, args, nil)
	}
	h, err := s.table.Park(cont)
	if err != nil {
		return nil, err
	}
	op := &Op{Name: name, Args: args, Handle: h}
	s.mu.Lock()
	s.queue = append(s.queue, op)
	s.mu.Unlock()
	s.log.Debug("parked", zap.String("op", name), zap.Uint32("handle", uint32(h)))
	return Pending, nil
}

// Pending returns the parked operations, oldest first.
func (s *Scheduler) Pending() []*Op {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*Op(nil), s.queue...)
}

// Steps returns the number of operations answered so far.
func (s *Scheduler) Steps() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.steps
}

// Start calls the named function and reports whether it completed.
func (s *Scheduler) Start(ctx context.Context, in *Interpreter, name string, args ...Value) (StepResult, error) {
	v, err := in.Call(ctx, name, args...)
	if err != nil {
		return StepResult{Status: StepDone}, err
	}
	return s.status(v), nil
}

// Step answers the oldest parked operation with r.
func (s *Scheduler) Step(ctx context.Context, r Result) (StepResult, error) {
	if err := ctx.Err(); err != nil {
		return StepResult{}, err
	}
	op := s.pop()
	if op == nil {
		return StepResult{}, errors.InvalidInput(errors.PhaseRuntime, "no parked operation to resume")
	}
	cont, ok := s.table.Take(op.Handle)
	if !ok {
		return StepResult{}, errors.NotFound(errors.PhaseRuntime, "continuation", op.Name)
	}
	s.log.Debug("step", zap.String("op", op.Name), zap.Stringer("result", r))
	v, err := cont.Resume(ctx, r)
	if err != nil {
		return StepResult{Status: StepDone}, err
	}
	return s.status(v), nil
}

// Run calls the named function and answers parked operations through funcs
// until it completes.
func (s *Scheduler) Run(ctx context.Context, in *Interpreter, name string, args ...Value) (Value, error) {
	sr, err := s.Start(ctx, in, name, args...)
	for {
		if err != nil {
			return nil, err
		}
		switch sr.Status {
		case StepDone:
			return sr.Value, nil
		case StepIdle:
			return nil, errors.InvalidInput(errors.PhaseRuntime, "suspended with no parked operation")
		}
		v, opErr := s.funcs.Call(ctx, sr.Op.Name, sr.Op.Args, nil)
		if opErr == nil && IsPending(v) {
			return nil, errors.InvalidInput(errors.PhaseRuntime, sr.Op.Name+" returned pending")
		}
		sr, err = s.Step(ctx, Result{Value: v, Err: opErr})
	}
}

// Close cancels every parked operation. Cancellation failures other than
// ErrCancelled itself are returned joined.
func (s *Scheduler) Close(ctx context.Context) error {
	s.mu.Lock()
	s.queue = nil
	s.mu.Unlock()

	var errs []error
	for _, c := range s.table.Close() {
		if _, err := c.Cancel(ctx); err != nil && !stderrors.Is(err, ErrCancelled) {
			errs = append(errs, err)
		}
	}
	return stderrors.Join(errs...)
}

func (s *Scheduler) status(v Value) StepResult {
	if !IsPending(v) {
		return StepResult{Status: StepDone, Value: v}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queue) == 0 {
		return StepResult{Status: StepIdle}
	}
	return StepResult{Status: StepContinue, Op: s.queue[0]}
}

func (s *Scheduler) pop() *Op {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queue) == 0 {
		return nil
	}
	op := s.queue[0]
	s.queue = s.queue[1:]
	s.steps++
	return op
}
