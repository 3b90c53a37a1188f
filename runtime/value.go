package runtime

import (
	stderrors "errors"
	"fmt"

	"github.com/wippyai/statemachine/ir"
)

// Value is a runtime value: int64, bool, string, ir.UnitValue, *Object,
// Result or Pending.
type Value = any

// ErrCancelled is delivered to a suspended state machine by
// Continuation.Cancel.
var ErrCancelled = stderrors.New("runtime: continuation cancelled")

type pendingValue struct{}

func (pendingValue) String() string { return "pending" }

// Pending is returned by a suspending call that has not completed yet.
var Pending Value = pendingValue{}

// IsPending reports whether v is the Pending sentinel.
func IsPending(v Value) bool {
	_, ok := v.(pendingValue)
	return ok
}

// Result is a completed call outcome: a value or a failure.
type Result struct {
	Value Value
	Err   error
}

// Success wraps a value.
func Success(v Value) Result { return Result{Value: v} }

// Failure wraps an error.
func Failure(err error) Result { return Result{Err: err} }

func (r Result) String() string {
	if r.Err != nil {
		return "failure(" + r.Err.Error() + ")"
	}
	return "success(" + Format(r.Value) + ")"
}

// Thrown is the error raised by a throw of a non-error value.
type Thrown struct {
	Value Value
}

func (t *Thrown) Error() string { return "thrown: " + Format(t.Value) }

// raise turns a thrown value into an error. Errors and failed results keep
// their identity.
func raise(v Value) error {
	switch v := v.(type) {
	case error:
		return v
	case Result:
		if v.Err != nil {
			return v.Err
		}
	}
	return &Thrown{Value: v}
}

// caught returns the value a catch clause binds for err.
func caught(err error) Value {
	var t *Thrown
	if stderrors.As(err, &t) {
		return t.Value
	}
	return err
}

// Format renders a value the way the textual IR writes literals.
func Format(v Value) string {
	switch v := v.(type) {
	case nil:
		return "<nil>"
	case int64, bool, string, ir.UnitValue:
		return ir.FormatConst(v)
	case *Object:
		return v.String()
	case Result:
		return v.String()
	case error:
		return v.Error()
	case fmt.Stringer:
		return v.String()
	}
	return fmt.Sprintf("%v", v)
}
