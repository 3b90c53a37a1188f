package errors

import (
	"fmt"
	"strings"
)

// Phase indicates which part of the pass raised the error
type Phase string

const (
	PhaseLower      Phase = "lower"      // pipeline orchestration
	PhaseSlice      Phase = "slice"      // expression slicing
	PhaseLiveness   Phase = "liveness"   // live variable analysis
	PhaseSynthesize Phase = "synthesize" // state holder layout
	PhaseRewrite    Phase = "rewrite"    // resumption rewriting
	PhaseParse      Phase = "parse"      // textual IR parsing
	PhaseRuntime    Phase = "runtime"    // reference interpreter
)

// Kind categorizes the error
type Kind string

const (
	KindStructural     Kind = "structural"
	KindUnsupported    Kind = "unsupported"
	KindAlreadyLowered Kind = "already_lowered"
	KindUnknownTarget  Kind = "unknown_target"
	KindUndeclared     Kind = "undeclared"
	KindInvalidInput   Kind = "invalid_input"
	KindNotFound       Kind = "not_found"
	KindReentrant      Kind = "reentrant"
	KindTerminal       Kind = "terminal"
	KindTypeMismatch   Kind = "type_mismatch"
)

// Error is the structured error type used throughout the module
type Error struct {
	Value  any
	Cause  error
	Phase  Phase
	Kind   Kind
	Func   string
	Node   string
	Detail string
	Line   int
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if e.Func != "" {
		b.WriteString(" in ")
		b.WriteString(e.Func)
	}
	if e.Line > 0 {
		fmt.Fprintf(&b, " at line %d", e.Line)
	}

	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}

	if e.Node != "" {
		b.WriteString(" [node ")
		b.WriteString(e.Node)
		b.WriteByte(']')
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Phase == t.Phase && e.Kind == t.Kind
	}
	return false
}

// Fatal reports whether the error is an internal compiler error raised by
// the pass itself. Parse errors and runtime failures are not.
func (e *Error) Fatal() bool {
	return e.Phase != PhaseRuntime && e.Phase != PhaseParse
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Func sets the enclosing function name
func (b *Builder) Func(name string) *Builder {
	b.err.Func = name
	return b
}

// Node sets the rendering of the offending node
func (b *Builder) Node(n fmt.Stringer) *Builder {
	if n != nil {
		b.err.Node = n.String()
	}
	return b
}

// Line sets the source line for parse errors
func (b *Builder) Line(line int) *Builder {
	b.err.Line = line
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for common error patterns

// Structural creates an invariant-violation error for a node
func Structural(phase Phase, fn string, node fmt.Stringer, detail string, args ...any) *Error {
	return New(phase, KindStructural).Func(fn).Node(node).Detail(detail, args...).Build()
}

// Unsupported creates an unsupported input shape error
func Unsupported(phase Phase, fn string, node fmt.Stringer, what string) *Error {
	return New(phase, KindUnsupported).Func(fn).Node(node).Detail("%s", what).Build()
}

// AlreadyLowered creates the error raised when the pass runs twice on a function
func AlreadyLowered(fn string) *Error {
	return &Error{
		Phase:  PhaseLower,
		Kind:   KindAlreadyLowered,
		Func:   fn,
		Detail: "function was already lowered to a state machine",
	}
}

// UnknownTarget creates the error raised for a return that targets an unknown function
func UnknownTarget(fn string, node fmt.Stringer, target string) *Error {
	return New(PhaseRewrite, KindUnknownTarget).
		Func(fn).
		Node(node).
		Detail("return targets unknown function %q", target).
		Build()
}

// Undeclared creates the error raised for a variable with no enclosing declaration
func Undeclared(phase Phase, fn string, name string) *Error {
	return New(phase, KindUndeclared).
		Func(fn).
		Value(name).
		Detail("variable %q has no enclosing declaration", name).
		Build()
}

// InvalidInput creates an invalid input error
func InvalidInput(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidInput,
		Detail: detail,
	}
}

// NotFound creates a not-found error
func NotFound(phase Phase, what, name string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotFound,
		Detail: fmt.Sprintf("%s %q not found", what, name),
	}
}

// TypeMismatch creates a runtime type mismatch error
func TypeMismatch(phase Phase, op string, want string, got any) *Error {
	return New(phase, KindTypeMismatch).
		Value(got).
		Detail("%s: expected %s, got %T", op, want, got).
		Build()
}

// Reentrant creates the error raised when a state machine is resumed while a
// resume call on it is still in flight
func Reentrant(holder string) *Error {
	return &Error{
		Phase:  PhaseRuntime,
		Kind:   KindReentrant,
		Detail: fmt.Sprintf("%s resumed while already running", holder),
	}
}

// Terminal creates the error raised when a finished state machine is resumed
func Terminal(holder string, label int64) *Error {
	return New(PhaseRuntime, KindTerminal).
		Value(label).
		Detail("%s resumed in terminal state %d", holder, label).
		Build()
}

// ParseFailed creates a parsing error at a source line
func ParseFailed(line int, detail string, args ...any) *Error {
	return New(PhaseParse, KindInvalidInput).Line(line).Detail(detail, args...).Build()
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return New(phase, kind).Cause(cause).Detail("%s", detail).Build()
}
