package ir

// Children returns the direct children of n in evaluation order. Nil
// optional children are omitted.
func Children(n Node) []Node {
	var out []Node
	add := func(c Node) {
		switch c := c.(type) {
		case nil:
			return
		case *Block:
			if c == nil {
				return
			}
		}
		out = append(out, c)
	}
	addExprs := func(es []Expr) {
		for _, e := range es {
			add(e)
		}
	}
	addBlock := func(b *Block) {
		if b != nil {
			out = append(out, b)
		}
	}

	switch n := n.(type) {
	case *Const, *Read, *This, *Break, *Continue:
	case *Unary:
		add(n.X)
	case *Binary:
		add(n.X)
		add(n.Y)
	case *Cond:
		add(n.C)
		add(n.Then)
		add(n.Else)
	case *Call:
		addExprs(n.Args)
	case *Load:
		add(n.Recv)
	case *New:
		addExprs(n.Args)
	case *Invoke:
		add(n.Recv)
		addExprs(n.Args)
	case *Intrinsic:
		addExprs(n.Args)
	case *Block:
		for _, s := range n.Stmts {
			out = append(out, s)
		}
	case *Decl:
		if n.Init != nil {
			add(n.Init)
		}
	case *Assign:
		add(n.Value)
	case *ExprStmt:
		add(n.X)
	case *If:
		add(n.Cond)
		addBlock(n.Then)
		addBlock(n.Else)
	case *While:
		add(n.Cond)
		addBlock(n.Body)
	case *Return:
		if n.Value != nil {
			add(n.Value)
		}
	case *Throw:
		add(n.Value)
	case *Try:
		addBlock(n.Body)
		addBlock(n.Catch)
		addBlock(n.Finally)
	case *SuspensionPoint:
		if n.Call != nil {
			out = append(out, n.Call)
		}
		addBlock(n.Suspend)
		addBlock(n.Resume)
	case *Store:
		add(n.Recv)
		add(n.Value)
	case *Dispatch:
		addBlock(n.Body)
	}
	return out
}

// Inspect walks the tree rooted at n in pre-order. If f returns false the
// children of that node are skipped.
func Inspect(n Node, f func(Node) bool) {
	if n == nil || !f(n) {
		return
	}
	for _, c := range Children(n) {
		Inspect(c, f)
	}
}

// Markers returns every suspension marker under n in program order.
func Markers(n Node) []*SuspensionPoint {
	var out []*SuspensionPoint
	Inspect(n, func(n Node) bool {
		if sp, ok := n.(*SuspensionPoint); ok {
			out = append(out, sp)
		}
		return true
	})
	return out
}

// ContainsSuspend reports whether n contains a suspending call or a marker.
func ContainsSuspend(n Node) bool {
	return ContainsSuspendFunc(n, func(c *Call) bool { return c.Suspend })
}

// ContainsSuspendFunc is ContainsSuspend with a caller-supplied predicate.
func ContainsSuspendFunc(n Node, suspends func(*Call) bool) bool {
	found := false
	Inspect(n, func(n Node) bool {
		if found {
			return false
		}
		switch n := n.(type) {
		case *Call:
			if suspends(n) {
				found = true
			}
		case *SuspensionPoint:
			found = true
		}
		return !found
	})
	return found
}

// Contains reports whether target occurs in the tree rooted at n.
func Contains(n, target Node) bool {
	found := false
	Inspect(n, func(c Node) bool {
		if found {
			return false
		}
		if c == target {
			found = true
		}
		return !found
	})
	return found
}

// MaxVarID returns the largest variable ID referenced by fn.
func MaxVarID(fn *Function) int {
	maxID := 0
	see := func(v *Var) {
		if v != nil && v.ID > maxID {
			maxID = v.ID
		}
	}
	for _, p := range fn.Params {
		see(p)
	}
	if fn.Body != nil {
		Inspect(fn.Body, func(n Node) bool {
			for _, v := range varsOf(n) {
				see(v)
			}
			return true
		})
	}
	return maxID
}

// DeclaredVars returns every variable declared in n: Decl targets and catch
// bindings.
func DeclaredVars(n Node) []*Var {
	var out []*Var
	Inspect(n, func(n Node) bool {
		switch n := n.(type) {
		case *Decl:
			out = append(out, n.Var)
		case *Try:
			if n.CatchVar != nil {
				out = append(out, n.CatchVar)
			}
		}
		return true
	})
	return out
}

func varsOf(n Node) []*Var {
	switch n := n.(type) {
	case *Read:
		return []*Var{n.Var}
	case *Decl:
		return []*Var{n.Var}
	case *Assign:
		return []*Var{n.Var}
	case *Try:
		if n.CatchVar != nil {
			return []*Var{n.CatchVar}
		}
	case *SuspensionPoint:
		if n.Dest != nil {
			return []*Var{n.Dest}
		}
	}
	return nil
}
