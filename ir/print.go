package ir

import (
	"fmt"
	"io"
	"strconv"
	"strings"
)

// String renders a node, function, class or module in the S-expression form
// read by package text. Lowered forms print in the same notation but are not
// accepted by the parser.
func String(v any) string {
	p := &printer{}
	switch v := v.(type) {
	case *Module:
		p.module(v)
	case *Function:
		p.function(v)
	case *Class:
		p.class(v)
	case Expr:
		p.expr(v)
	case Stmt:
		p.stmt(v)
	case nil:
		return "<nil>"
	default:
		return fmt.Sprintf("<%T>", v)
	}
	return p.String()
}

// Print writes the module to w followed by a newline.
func Print(w io.Writer, m *Module) error {
	_, err := io.WriteString(w, String(m)+"\n")
	return err
}

type printer struct {
	strings.Builder
	target string // return target elided in output
	indent int
}

func (p *printer) nl() {
	p.WriteByte('\n')
	for i := 0; i < p.indent; i++ {
		p.WriteString("  ")
	}
}

func (p *printer) module(m *Module) {
	p.WriteString("(module")
	if m.Name != "" {
		p.WriteByte(' ')
		p.WriteString(m.Name)
	}
	p.indent++
	for _, d := range m.Members {
		p.nl()
		switch d := d.(type) {
		case *Function:
			p.function(d)
		case *Class:
			p.class(d)
		}
	}
	p.indent--
	p.WriteByte(')')
}

func (p *printer) function(fn *Function) {
	p.target = fn.Name
	p.WriteString("(func ")
	p.WriteString(fn.Name)
	for _, v := range fn.Params {
		p.WriteString(" (param ")
		p.WriteString(v.Name)
		p.WriteByte(')')
	}
	if fn.Result != TypeAny {
		p.WriteString(" (result ")
		p.WriteString(fn.Result.String())
		p.WriteByte(')')
	}
	if fn.Suspend {
		p.WriteString(" (suspend)")
	}
	if fn.Lowered && fn.StateMachine != nil {
		p.WriteString(" (lowered ")
		p.WriteString(fn.StateMachine.Name)
		p.WriteByte(')')
	}
	p.body(fn.Body)
	p.WriteByte(')')
}

func (p *printer) class(c *Class) {
	p.WriteString("(class ")
	p.WriteString(c.Name)
	p.indent++
	for _, f := range c.Fields {
		p.nl()
		fmt.Fprintf(p, "(field %s %s)", f.Name, f.Type)
	}
	for _, m := range c.Methods {
		p.target = c.Qualified(m.Name)
		p.nl()
		p.WriteString("(method ")
		p.WriteString(m.Name)
		for _, v := range m.Params {
			p.WriteString(" (param ")
			p.WriteString(v.Name)
			p.WriteByte(')')
		}
		p.body(m.Body)
		p.WriteByte(')')
	}
	p.indent--
	p.WriteByte(')')
}

// body prints the statements of b on their own lines, one level deeper.
func (p *printer) body(b *Block) {
	if b == nil {
		return
	}
	p.indent++
	for _, s := range b.Stmts {
		p.nl()
		p.stmt(s)
	}
	p.indent--
}

func (p *printer) section(name string, b *Block) {
	p.indent++
	p.nl()
	p.WriteByte('(')
	p.WriteString(name)
	p.body(b)
	p.WriteByte(')')
	p.indent--
}

func (p *printer) label(l string) {
	if l != "" {
		p.WriteString(" @")
		p.WriteString(l)
	}
}

func (p *printer) stmt(s Stmt) {
	switch s := s.(type) {
	case *Block:
		p.WriteString("(block")
		p.body(s)
		p.WriteByte(')')
	case *Decl:
		if s.Var.Mutable {
			p.WriteString("(var ")
		} else {
			p.WriteString("(val ")
		}
		p.WriteString(s.Var.Name)
		if s.Init != nil {
			p.WriteByte(' ')
			p.expr(s.Init)
		}
		p.WriteByte(')')
	case *Assign:
		p.WriteString("(set ")
		p.WriteString(s.Var.Name)
		p.WriteByte(' ')
		p.expr(s.Value)
		p.WriteByte(')')
	case *ExprStmt:
		p.WriteString("(do ")
		p.expr(s.X)
		p.WriteByte(')')
	case *If:
		p.WriteString("(if ")
		p.expr(s.Cond)
		p.section("then", s.Then)
		if s.Else != nil {
			p.section("else", s.Else)
		}
		p.WriteByte(')')
	case *While:
		p.WriteString("(while")
		p.label(s.Label)
		p.WriteByte(' ')
		p.expr(s.Cond)
		p.body(s.Body)
		p.WriteByte(')')
	case *Break:
		p.WriteString("(break")
		p.label(s.Label)
		p.WriteByte(')')
	case *Continue:
		p.WriteString("(continue")
		p.label(s.Label)
		p.WriteByte(')')
	case *Return:
		p.WriteString("(return")
		if s.Target != "" && s.Target != p.target {
			p.WriteString(" :to ")
			p.WriteString(s.Target)
		}
		if s.Value != nil {
			p.WriteByte(' ')
			p.expr(s.Value)
		}
		p.WriteByte(')')
	case *Throw:
		p.WriteString("(throw ")
		p.expr(s.Value)
		p.WriteByte(')')
	case *Try:
		p.WriteString("(try")
		p.section("body", s.Body)
		if s.Catch != nil {
			name := "_"
			if s.CatchVar != nil {
				name = s.CatchVar.Name
			}
			p.section("catch "+name, s.Catch)
		}
		if s.Finally != nil {
			p.section("finally", s.Finally)
		}
		p.WriteByte(')')
	case *SuspensionPoint:
		fmt.Fprintf(p, "(suspend #%d ", s.ID)
		if s.Dest != nil {
			p.WriteString(s.Dest.Name)
		} else {
			p.WriteByte('_')
		}
		if s.Call != nil {
			p.WriteByte(' ')
			p.expr(s.Call)
		}
		if s.Suspend != nil {
			p.section("first", s.Suspend)
		}
		if s.Resume != nil {
			p.section("resume", s.Resume)
		}
		p.WriteByte(')')
	case *Store:
		p.WriteString("(store ")
		p.expr(s.Recv)
		p.WriteByte(' ')
		p.WriteString(s.Field.Name)
		p.WriteByte(' ')
		p.expr(s.Value)
		p.WriteByte(')')
	case *Dispatch:
		fmt.Fprintf(p, "(dispatch %s (entries", s.Label.Name)
		for _, e := range s.Entries {
			fmt.Fprintf(p, " %d", e)
		}
		p.WriteByte(')')
		p.body(s.Body)
		p.WriteByte(')')
	default:
		fmt.Fprintf(p, "(? %T)", s)
	}
}

func (p *printer) call(head string, args []Expr) {
	p.WriteByte('(')
	p.WriteString(head)
	for _, a := range args {
		p.WriteByte(' ')
		p.expr(a)
	}
	p.WriteByte(')')
}

func (p *printer) expr(e Expr) {
	switch e := e.(type) {
	case *Const:
		p.WriteString(FormatConst(e.Value))
	case *Read:
		p.WriteString(e.Var.Name)
	case *This:
		p.WriteString("this")
	case *Unary:
		p.call(e.Op.String(), []Expr{e.X})
	case *Binary:
		p.call(e.Op.String(), []Expr{e.X, e.Y})
	case *Cond:
		p.call("?", []Expr{e.C, e.Then, e.Else})
	case *Call:
		head := "call "
		if e.Suspend {
			head = "await "
		}
		p.call(head+e.Callee, e.Args)
	case *Load:
		p.WriteString("(load ")
		p.expr(e.Recv)
		p.WriteByte(' ')
		p.WriteString(e.Field.Name)
		p.WriteByte(')')
	case *New:
		p.call("new "+e.Class.Name, e.Args)
	case *Invoke:
		p.WriteString("(invoke ")
		p.expr(e.Recv)
		p.WriteByte(' ')
		p.WriteString(e.Method)
		for _, a := range e.Args {
			p.WriteByte(' ')
			p.expr(a)
		}
		p.WriteByte(')')
	case *Intrinsic:
		p.call(e.Op.String(), e.Args)
	default:
		fmt.Fprintf(p, "(? %T)", e)
	}
}

// FormatConst renders a literal value.
func FormatConst(v any) string {
	switch v := v.(type) {
	case int64:
		return strconv.FormatInt(v, 10)
	case bool:
		return strconv.FormatBool(v)
	case string:
		return strconv.Quote(v)
	case UnitValue:
		return "unit"
	}
	return fmt.Sprintf("%v", v)
}
