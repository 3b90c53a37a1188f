package runtime

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/wippyai/statemachine/errors"
	"github.com/wippyai/statemachine/ir"
)

// Object is a live state holder instance.
type Object struct {
	Class  *ir.Class
	Fields []Value

	// parent is the holder whose entry method was running when this one
	// was created. It is resumed when this holder completes after having
	// suspended.
	parent  *Object
	running atomic.Bool
}

func newObject(c *ir.Class, parent *Object, args []Value) (*Object, error) {
	params := c.FieldsOf(ir.FieldParam)
	if len(args) != len(params) {
		return nil, errors.New(errors.PhaseRuntime, errors.KindInvalidInput).
			Detail("new %s: got %d arguments, want %d", c.Name, len(args), len(params)).
			Build()
	}
	o := &Object{Class: c, Fields: make([]Value, len(c.Fields)), parent: parent}
	for _, f := range c.Fields {
		switch f.Kind {
		case ir.FieldLabel:
			o.Fields[f.Index] = ir.LabelStart
		case ir.FieldResult:
			o.Fields[f.Index] = Success(ir.Unit)
		default:
			o.Fields[f.Index] = ir.Unit
		}
	}
	for i, f := range params {
		o.Fields[f.Index] = args[i]
	}
	return o, nil
}

// Label returns the current value of the label field.
func (o *Object) Label() int64 {
	for _, f := range o.Class.Fields {
		if f.Kind == ir.FieldLabel {
			if l, ok := o.Fields[f.Index].(int64); ok {
				return l
			}
		}
	}
	return ir.LabelStart
}

// Terminal reports whether the holder has completed or failed.
func (o *Object) Terminal() bool {
	l := o.Label()
	return l == ir.LabelCompleted || l == ir.LabelFailed
}

// Get returns the value of the named field.
func (o *Object) Get(name string) (Value, bool) {
	f := o.Class.Field(name)
	if f == nil {
		return nil, false
	}
	return o.Fields[f.Index], true
}

func (o *Object) String() string {
	return fmt.Sprintf("%s@%d", o.Class.Name, o.Label())
}

// Continuation resumes a suspended state machine.
type Continuation struct {
	interp *Interpreter
	obj    *Object
	callee string
}

// Object returns the holder this continuation resumes.
func (c *Continuation) Object() *Object { return c.obj }

// Callee returns the name of the call that suspended.
func (c *Continuation) Callee() string { return c.callee }

// Resume delivers r to the suspended call and runs the state machine until
// it suspends again or completes. Completion propagates to the calling state
// machines. The returned value is Pending while any of them still waits.
func (c *Continuation) Resume(ctx context.Context, r Result) (Value, error) {
	return c.interp.resume(ctx, c.obj, r)
}

// Cancel resumes the state machine with ErrCancelled as the call's failure.
func (c *Continuation) Cancel(ctx context.Context) (Value, error) {
	return c.Resume(ctx, Failure(ErrCancelled))
}
