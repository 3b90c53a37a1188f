package ir

import "fmt"

// Type is the static type attached to variables and fields.
type Type int

const (
	TypeAny Type = iota
	TypeInt
	TypeBool
	TypeString
	TypeUnit
	TypeResult // value-or-failure carried by the result channel
	TypeLabel  // resumption-point identifier
	TypeObject // state holder instance
)

func (t Type) String() string {
	switch t {
	case TypeAny:
		return "any"
	case TypeInt:
		return "int"
	case TypeBool:
		return "bool"
	case TypeString:
		return "string"
	case TypeUnit:
		return "unit"
	case TypeResult:
		return "result"
	case TypeLabel:
		return "label"
	case TypeObject:
		return "object"
	}
	return fmt.Sprintf("type(%d)", int(t))
}

// ParseType resolves a type name as written in the textual IR.
func ParseType(name string) (Type, bool) {
	for t := TypeAny; t <= TypeObject; t++ {
		if t.String() == name {
			return t, true
		}
	}
	return TypeAny, false
}

// Op is a unary or binary operator.
type Op int

const (
	OpAdd Op = iota
	OpSub
	OpMul
	OpDiv
	OpRem
	OpEq
	OpNe
	OpLt
	OpLe
	OpGt
	OpGe
	OpAnd // short-circuit
	OpOr  // short-circuit
	OpNot
	OpNeg
)

var opNames = [...]string{
	OpAdd: "+",
	OpSub: "-",
	OpMul: "*",
	OpDiv: "/",
	OpRem: "%",
	OpEq:  "==",
	OpNe:  "!=",
	OpLt:  "<",
	OpLe:  "<=",
	OpGt:  ">",
	OpGe:  ">=",
	OpAnd: "&&",
	OpOr:  "||",
	OpNot: "!",
	OpNeg: "neg",
}

func (o Op) String() string {
	if int(o) < len(opNames) {
		return opNames[o]
	}
	return fmt.Sprintf("op(%d)", int(o))
}

// IsUnary reports whether the operator takes a single operand.
func (o Op) IsUnary() bool { return o == OpNot || o == OpNeg }

// ShortCircuit reports whether the right operand is evaluated conditionally.
func (o Op) ShortCircuit() bool { return o == OpAnd || o == OpOr }

// LookupOp resolves an operator symbol.
func LookupOp(sym string) (Op, bool) {
	for i, name := range opNames {
		if name == sym {
			return Op(i), true
		}
	}
	return 0, false
}

// IntrinsicOp names a well-known library symbol used by lowered code.
type IntrinsicOp int

const (
	// IntrinsicPending is the "no result yet" sentinel returned by a
	// suspending call that did not complete.
	IntrinsicPending IntrinsicOp = iota
	IntrinsicSuccess
	IntrinsicFailure
	// IntrinsicGetOrThrow unwraps a result, rethrowing a carried failure.
	IntrinsicGetOrThrow
	IntrinsicIsPending
)

func (o IntrinsicOp) String() string {
	switch o {
	case IntrinsicPending:
		return "pending"
	case IntrinsicSuccess:
		return "success"
	case IntrinsicFailure:
		return "failure"
	case IntrinsicGetOrThrow:
		return "get-or-throw"
	case IntrinsicIsPending:
		return "pending?"
	}
	return fmt.Sprintf("intrinsic(%d)", int(o))
}

// Arity returns the number of arguments the intrinsic takes.
func (o IntrinsicOp) Arity() int {
	if o == IntrinsicPending {
		return 0
	}
	return 1
}
