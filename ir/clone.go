package ir

// CloneBlock deep-copies a block. Variables, fields and classes are shared
// with the original; only nodes are copied.
func CloneBlock(b *Block) *Block {
	if b == nil {
		return nil
	}
	out := &Block{Stmts: make([]Stmt, len(b.Stmts))}
	for i, s := range b.Stmts {
		out.Stmts[i] = CloneStmt(s)
	}
	return out
}

// CloneFunction copies fn with a deep-copied body.
func CloneFunction(fn *Function) *Function {
	out := *fn
	out.Params = append([]*Var(nil), fn.Params...)
	out.Body = CloneBlock(fn.Body)
	return &out
}

// CloneExpr deep-copies an expression.
func CloneExpr(e Expr) Expr {
	switch e := e.(type) {
	case nil:
		return nil
	case *Const:
		c := *e
		return &c
	case *Read:
		c := *e
		return &c
	case *This:
		return &This{}
	case *Unary:
		return &Unary{Op: e.Op, X: CloneExpr(e.X)}
	case *Binary:
		return &Binary{Op: e.Op, X: CloneExpr(e.X), Y: CloneExpr(e.Y)}
	case *Cond:
		return &Cond{C: CloneExpr(e.C), Then: CloneExpr(e.Then), Else: CloneExpr(e.Else)}
	case *Call:
		return cloneCall(e)
	case *Load:
		return &Load{Recv: CloneExpr(e.Recv), Field: e.Field}
	case *New:
		return &New{Class: e.Class, Args: cloneExprs(e.Args)}
	case *Invoke:
		return &Invoke{Recv: CloneExpr(e.Recv), Method: e.Method, Args: cloneExprs(e.Args)}
	case *Intrinsic:
		return &Intrinsic{Op: e.Op, Args: cloneExprs(e.Args)}
	}
	panic("ir: clone of unknown expression " + e.String())
}

// CloneStmt deep-copies a statement.
func CloneStmt(s Stmt) Stmt {
	switch s := s.(type) {
	case nil:
		return nil
	case *Block:
		return CloneBlock(s)
	case *Decl:
		return &Decl{Var: s.Var, Init: CloneExpr(s.Init)}
	case *Assign:
		return &Assign{Var: s.Var, Value: CloneExpr(s.Value)}
	case *ExprStmt:
		return &ExprStmt{X: CloneExpr(s.X)}
	case *If:
		return &If{Cond: CloneExpr(s.Cond), Then: CloneBlock(s.Then), Else: CloneBlock(s.Else)}
	case *While:
		return &While{Cond: CloneExpr(s.Cond), Body: CloneBlock(s.Body), Label: s.Label}
	case *Break:
		c := *s
		return &c
	case *Continue:
		c := *s
		return &c
	case *Return:
		return &Return{Value: CloneExpr(s.Value), Target: s.Target}
	case *Throw:
		return &Throw{Value: CloneExpr(s.Value)}
	case *Try:
		return &Try{
			Body:     CloneBlock(s.Body),
			CatchVar: s.CatchVar,
			Catch:    CloneBlock(s.Catch),
			Finally:  CloneBlock(s.Finally),
		}
	case *SuspensionPoint:
		sp := &SuspensionPoint{
			ID:      s.ID,
			Dest:    s.Dest,
			Suspend: CloneBlock(s.Suspend),
			Resume:  CloneBlock(s.Resume),
		}
		if s.Call != nil {
			sp.Call = cloneCall(s.Call)
		}
		return sp
	case *Store:
		return &Store{Recv: CloneExpr(s.Recv), Field: s.Field, Value: CloneExpr(s.Value)}
	case *Dispatch:
		return &Dispatch{
			Label:   s.Label,
			Body:    CloneBlock(s.Body),
			Entries: append([]int(nil), s.Entries...),
		}
	}
	panic("ir: clone of unknown statement " + s.String())
}

func cloneCall(c *Call) *Call {
	return &Call{Callee: c.Callee, Args: cloneExprs(c.Args), Suspend: c.Suspend}
}

func cloneExprs(es []Expr) []Expr {
	if es == nil {
		return nil
	}
	out := make([]Expr, len(es))
	for i, e := range es {
		out[i] = CloneExpr(e)
	}
	return out
}
