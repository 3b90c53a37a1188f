package ir

// Constructors for hand-built trees. They do not validate.

func Int(v int64) *Const        { return &Const{Value: v} }
func Bool(v bool) *Const        { return &Const{Value: v} }
func Str(v string) *Const       { return &Const{Value: v} }
func UnitConst() *Const         { return &Const{Value: Unit} }
func NewRead(v *Var) *Read      { return &Read{Var: v} }
func NewThis() *This            { return &This{} }
func NewBlock(s ...Stmt) *Block { return &Block{Stmts: s} }

func NewUnary(op Op, x Expr) *Unary { return &Unary{Op: op, X: x} }

func NewBinary(op Op, x, y Expr) *Binary { return &Binary{Op: op, X: x, Y: y} }

func NewCond(c, then, els Expr) *Cond { return &Cond{C: c, Then: then, Else: els} }

// NewCall builds a call that never suspends.
func NewCall(callee string, args ...Expr) *Call {
	return &Call{Callee: callee, Args: args}
}

// NewAwait builds a suspending call.
func NewAwait(callee string, args ...Expr) *Call {
	return &Call{Callee: callee, Args: args, Suspend: true}
}

func NewIntrinsic(op IntrinsicOp, args ...Expr) *Intrinsic {
	return &Intrinsic{Op: op, Args: args}
}

func NewLoad(recv Expr, f *Field) *Load { return &Load{Recv: recv, Field: f} }

func NewStore(recv Expr, f *Field, v Expr) *Store {
	return &Store{Recv: recv, Field: f, Value: v}
}

func NewDecl(v *Var, init Expr) *Decl    { return &Decl{Var: v, Init: init} }
func NewAssign(v *Var, e Expr) *Assign   { return &Assign{Var: v, Value: e} }
func NewExprStmt(e Expr) *ExprStmt       { return &ExprStmt{X: e} }
func NewThrow(e Expr) *Throw             { return &Throw{Value: e} }
func NewBreak(label string) *Break       { return &Break{Label: label} }
func NewContinue(label string) *Continue { return &Continue{Label: label} }

// NewReturn builds a return to the enclosing function. Target is resolved by
// the consumer when empty.
func NewReturn(v Expr) *Return { return &Return{Value: v} }

func NewIf(c Expr, then, els *Block) *If { return &If{Cond: c, Then: then, Else: els} }

func NewWhile(c Expr, body *Block) *While { return &While{Cond: c, Body: body} }

// Not negates a boolean expression, folding double negation and constants.
func Not(e Expr) Expr {
	switch x := e.(type) {
	case *Unary:
		if x.Op == OpNot {
			return x.X
		}
	case *Const:
		if b, ok := x.Value.(bool); ok {
			return Bool(!b)
		}
	}
	return NewUnary(OpNot, e)
}
