package runtime

import (
	"context"

	"github.com/wippyai/statemachine/errors"
)

// Host resolves calls to functions the module does not define.
//
// cont is non-nil only for a suspending call made inside a state machine.
// Such a call may return Pending and resume cont later; any other call must
// produce its result before returning.
type Host interface {
	Call(ctx context.Context, name string, args []Value, cont *Continuation) (Value, error)
}

// HostFunc implements one host function.
type HostFunc func(ctx context.Context, args []Value) (Value, error)

// HostFuncs is a Host backed by a map of functions. It never suspends.
type HostFuncs map[string]HostFunc

// Call implements Host.
func (h HostFuncs) Call(ctx context.Context, name string, args []Value, _ *Continuation) (Value, error) {
	fn, ok := h[name]
	if !ok {
		return nil, errors.NotFound(errors.PhaseRuntime, "host function", name)
	}
	return fn(ctx, args)
}

// HostFunc1 adapts a one-argument function.
func HostFunc1(fn func(ctx context.Context, arg Value) (Value, error)) HostFunc {
	return func(ctx context.Context, args []Value) (Value, error) {
		if len(args) != 1 {
			return nil, errors.InvalidInput(errors.PhaseRuntime, "expected 1 argument")
		}
		return fn(ctx, args[0])
	}
}

// Const returns a host function that ignores its arguments.
func Const(v Value) HostFunc {
	return func(context.Context, []Value) (Value, error) { return v, nil }
}
