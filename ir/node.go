package ir

// Node is implemented by every expression and statement.
type Node interface {
	String() string
	node()
}

// Expr is an expression node.
type Expr interface {
	Node
	expr()
}

// Stmt is a statement node.
type Stmt interface {
	Node
	stmt()
}

// Var is a local variable or parameter. Identity is the pointer; ID is unique
// within the declaring function and keys dense sets.
type Var struct {
	Name    string
	ID      int
	Type    Type
	Mutable bool
	Param   bool
	Temp    bool
}

func (v *Var) String() string { return v.Name }

// UnitValue is the value of unit-typed expressions.
type UnitValue struct{}

// Unit is the single unit value.
var Unit = UnitValue{}

func (UnitValue) String() string { return "unit" }

// Expressions

// Const is a literal: int64, bool, string or Unit.
type Const struct {
	Value any
}

// Read loads a local variable or parameter.
type Read struct {
	Var *Var
}

// Unary applies a unary operator.
type Unary struct {
	X  Expr
	Op Op
}

// Binary applies a binary operator. OpAnd and OpOr evaluate Y only when needed.
type Binary struct {
	X  Expr
	Y  Expr
	Op Op
}

// Cond is the conditional expression c ? then : else.
type Cond struct {
	C    Expr
	Then Expr
	Else Expr
}

// Call invokes a named function. Suspend marks a call that may yield control.
type Call struct {
	Callee  string
	Args    []Expr
	Suspend bool
}

// This refers to the state holder inside its entry method.
type This struct{}

// Load reads a holder field.
type Load struct {
	Recv  Expr
	Field *Field
}

// New constructs a holder, binding Args to its parameter fields in order.
type New struct {
	Class *Class
	Args  []Expr
}

// Invoke calls a method on a holder.
type Invoke struct {
	Recv   Expr
	Method string
	Args   []Expr
}

// Intrinsic applies a well-known library operation.
type Intrinsic struct {
	Args []Expr
	Op   IntrinsicOp
}

func (*Const) node()     {}
func (*Read) node()      {}
func (*Unary) node()     {}
func (*Binary) node()    {}
func (*Cond) node()      {}
func (*Call) node()      {}
func (*This) node()      {}
func (*Load) node()      {}
func (*New) node()       {}
func (*Invoke) node()    {}
func (*Intrinsic) node() {}

func (*Const) expr()     {}
func (*Read) expr()      {}
func (*Unary) expr()     {}
func (*Binary) expr()    {}
func (*Cond) expr()      {}
func (*Call) expr()      {}
func (*This) expr()      {}
func (*Load) expr()      {}
func (*New) expr()       {}
func (*Invoke) expr()    {}
func (*Intrinsic) expr() {}

// Statements

// Block is a statement sequence and a lexical scope.
type Block struct {
	Stmts []Stmt
}

// Decl declares Var in the enclosing block. A nil Init leaves the zero value.
type Decl struct {
	Var  *Var
	Init Expr
}

// Assign writes a local variable or parameter.
type Assign struct {
	Var   *Var
	Value Expr
}

// ExprStmt evaluates an expression for its side effects.
type ExprStmt struct {
	X Expr
}

// If branches on Cond. Else may be nil.
type If struct {
	Cond Expr
	Then *Block
	Else *Block
}

// While loops while Cond holds. Label is optional.
type While struct {
	Cond  Expr
	Body  *Block
	Label string
}

// Break leaves the innermost loop, or the loop named by Label.
type Break struct {
	Label string
}

// Continue restarts the innermost loop, or the loop named by Label.
type Continue struct {
	Label string
}

// Return leaves the function or method named by Target. Value may be nil.
type Return struct {
	Value  Expr
	Target string
}

// Throw raises Value as a failure.
type Throw struct {
	Value Expr
}

// Try runs Body; a failure binds CatchVar and runs Catch. Finally always runs.
// Catch and Finally may each be nil, but not both. A CatchVar of TypeResult
// binds the failure itself as a failed result, and throwing it rethrows the
// original failure.
type Try struct {
	Body     *Block
	CatchVar *Var
	Catch    *Block
	Finally  *Block
}

// SuspensionPoint is a suspension marker: Dest = Call(...) where Call may
// yield. Before rewriting only Call and Dest are set. After rewriting Suspend
// holds the first-execution branch and Resume the resumption branch; ID is the
// label value that selects Resume.
type SuspensionPoint struct {
	Call    *Call
	Dest    *Var
	Suspend *Block
	Resume  *Block
	ID      int
}

// Store writes a holder field.
type Store struct {
	Recv  Expr
	Field *Field
	Value Expr
}

// Dispatch runs Body from the top when Label holds the start value, and
// otherwise enters Body directly at the resumption branch of the marker
// whose ID equals Label.
type Dispatch struct {
	Label   *Field
	Body    *Block
	Entries []int
}

func (*Block) node()           {}
func (*Decl) node()            {}
func (*Assign) node()          {}
func (*ExprStmt) node()        {}
func (*If) node()              {}
func (*While) node()           {}
func (*Break) node()           {}
func (*Continue) node()        {}
func (*Return) node()          {}
func (*Throw) node()           {}
func (*Try) node()             {}
func (*SuspensionPoint) node() {}
func (*Store) node()           {}
func (*Dispatch) node()        {}

func (*Block) stmt()           {}
func (*Decl) stmt()            {}
func (*Assign) stmt()          {}
func (*ExprStmt) stmt()        {}
func (*If) stmt()              {}
func (*While) stmt()           {}
func (*Break) stmt()           {}
func (*Continue) stmt()        {}
func (*Return) stmt()          {}
func (*Throw) stmt()           {}
func (*Try) stmt()             {}
func (*SuspensionPoint) stmt() {}
func (*Store) stmt()           {}
func (*Dispatch) stmt()        {}

func (n *Const) String() string           { return String(n) }
func (n *Read) String() string            { return String(n) }
func (n *Unary) String() string           { return String(n) }
func (n *Binary) String() string          { return String(n) }
func (n *Cond) String() string            { return String(n) }
func (n *Call) String() string            { return String(n) }
func (n *This) String() string            { return String(n) }
func (n *Load) String() string            { return String(n) }
func (n *New) String() string             { return String(n) }
func (n *Invoke) String() string          { return String(n) }
func (n *Intrinsic) String() string       { return String(n) }
func (n *Block) String() string           { return String(n) }
func (n *Decl) String() string            { return String(n) }
func (n *Assign) String() string          { return String(n) }
func (n *ExprStmt) String() string        { return String(n) }
func (n *If) String() string              { return String(n) }
func (n *While) String() string           { return String(n) }
func (n *Break) String() string           { return String(n) }
func (n *Continue) String() string        { return String(n) }
func (n *Return) String() string          { return String(n) }
func (n *Throw) String() string           { return String(n) }
func (n *Try) String() string             { return String(n) }
func (n *SuspensionPoint) String() string { return String(n) }
func (n *Store) String() string           { return String(n) }
func (n *Dispatch) String() string        { return String(n) }
