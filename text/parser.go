package text

import (
	"strconv"
	"strings"

	"github.com/wippyai/statemachine/errors"
	"github.com/wippyai/statemachine/ir"
	"github.com/wippyai/statemachine/text/internal/token"
)

// Parse reads a (module ...) form.
func Parse(source string) (*ir.Module, error) {
	p := newParser(token.Tokenize(source))
	m, err := p.parseModule()
	if err != nil {
		return nil, err
	}
	if t := p.peek(); t != nil {
		return nil, errors.ParseFailed(t.Line, "unexpected %q after module", t.Value)
	}
	return m, nil
}

// ParseFunction reads a single (func ...) form.
func ParseFunction(source string) (*ir.Function, error) {
	p := newParser(token.Tokenize(source))
	fn, err := p.parseFunc()
	if err != nil {
		return nil, err
	}
	if t := p.peek(); t != nil {
		return nil, errors.ParseFailed(t.Line, "unexpected %q after function", t.Value)
	}
	return fn, nil
}

type parser struct {
	fn     *ir.Function
	scopes []map[string]*ir.Var
	loops  []string
	tokens []token.Token
	pos    int
}

func newParser(tokens []token.Token) *parser {
	return &parser{tokens: tokens}
}

func (p *parser) peek() *token.Token {
	if p.pos >= len(p.tokens) {
		return nil
	}
	return &p.tokens[p.pos]
}

// peekAt looks n tokens ahead of the current position.
func (p *parser) peekAt(n int) *token.Token {
	if p.pos+n >= len(p.tokens) {
		return nil
	}
	return &p.tokens[p.pos+n]
}

func (p *parser) next() *token.Token {
	if p.pos >= len(p.tokens) {
		return nil
	}
	t := &p.tokens[p.pos]
	p.pos++
	return t
}

func (p *parser) line() int {
	if t := p.peek(); t != nil {
		return t.Line
	}
	if len(p.tokens) > 0 {
		return p.tokens[len(p.tokens)-1].Line
	}
	return 1
}

func (p *parser) expect(typ token.Type) (*token.Token, error) {
	t := p.next()
	if t == nil {
		return nil, errors.ParseFailed(p.line(), "unexpected end of input, expected %v", typ)
	}
	if t.Type != typ {
		return nil, errors.ParseFailed(t.Line, "expected %v, got %q", typ, t.Value)
	}
	return t, nil
}

func (p *parser) expectKeyword(kw string) error {
	t, err := p.expect(token.Ident)
	if err != nil {
		return err
	}
	if t.Value != kw {
		return errors.ParseFailed(t.Line, "expected %q, got %q", kw, t.Value)
	}
	return nil
}

// atForm reports whether the next tokens open a (kw ...) form.
func (p *parser) atForm(kw string) bool {
	t, k := p.peek(), p.peekAt(1)
	return t != nil && t.Type == token.LParen && k != nil && k.Type == token.Ident && k.Value == kw
}

func (p *parser) atClose() bool {
	t := p.peek()
	return t != nil && t.Type == token.RParen
}

func (p *parser) pushScope() { p.scopes = append(p.scopes, map[string]*ir.Var{}) }
func (p *parser) popScope()  { p.scopes = p.scopes[:len(p.scopes)-1] }

func (p *parser) declare(v *ir.Var) {
	p.scopes[len(p.scopes)-1][v.Name] = v
}

func (p *parser) resolve(name string) *ir.Var {
	for i := len(p.scopes) - 1; i >= 0; i-- {
		if v, ok := p.scopes[i][name]; ok {
			return v
		}
	}
	return nil
}

func (p *parser) resolveLoop(label string) bool {
	if label == "" {
		return len(p.loops) > 0
	}
	for i := len(p.loops) - 1; i >= 0; i-- {
		if p.loops[i] == label {
			return true
		}
	}
	return false
}

func (p *parser) parseModule() (*ir.Module, error) {
	if _, err := p.expect(token.LParen); err != nil {
		return nil, err
	}
	if err := p.expectKeyword("module"); err != nil {
		return nil, err
	}
	m := &ir.Module{}
	if t := p.peek(); t != nil && t.Type == token.Ident {
		m.Name = p.next().Value
	}
	seen := map[string]int{}
	for !p.atClose() {
		if p.peek() == nil {
			return nil, errors.ParseFailed(p.line(), "unterminated module")
		}
		line := p.line()
		fn, err := p.parseFunc()
		if err != nil {
			return nil, err
		}
		if prev, dup := seen[fn.Name]; dup {
			return nil, errors.ParseFailed(line, "function %q already declared at line %d", fn.Name, prev)
		}
		seen[fn.Name] = line
		m.Members = append(m.Members, fn)
	}
	p.next()
	return m, nil
}

func (p *parser) parseFunc() (*ir.Function, error) {
	if _, err := p.expect(token.LParen); err != nil {
		return nil, err
	}
	if err := p.expectKeyword("func"); err != nil {
		return nil, err
	}
	name, err := p.expect(token.Ident)
	if err != nil {
		return nil, err
	}
	fn := ir.NewFunction(name.Value)
	p.fn = fn
	p.scopes = nil
	p.loops = nil
	p.pushScope()
	defer p.popScope()

	for {
		switch {
		case p.atForm("param"):
			p.pos += 2
			t, err := p.expect(token.Ident)
			if err != nil {
				return nil, err
			}
			v := fn.NewParam(t.Value)
			if typ, ok, err := p.optType(); err != nil {
				return nil, err
			} else if ok {
				v.Type = typ
			}
			if p.scopes[0][v.Name] != nil {
				return nil, errors.ParseFailed(t.Line, "duplicate parameter %q", v.Name)
			}
			p.declare(v)
			fn.Params = append(fn.Params, v)
			if _, err := p.expect(token.RParen); err != nil {
				return nil, err
			}
			continue
		case p.atForm("result"):
			p.pos += 2
			typ, ok, err := p.optType()
			if err != nil {
				return nil, err
			}
			if !ok {
				return nil, errors.ParseFailed(p.line(), "result needs a type")
			}
			fn.Result = typ
			if _, err := p.expect(token.RParen); err != nil {
				return nil, err
			}
			continue
		case p.atForm("suspend"):
			p.pos += 2
			fn.Suspend = true
			if _, err := p.expect(token.RParen); err != nil {
				return nil, err
			}
			continue
		}
		break
	}

	stmts, err := p.parseStmts()
	if err != nil {
		return nil, err
	}
	fn.Body = ir.NewBlock(stmts...)
	if _, err := p.expect(token.RParen); err != nil {
		return nil, err
	}
	return fn, nil
}

func (p *parser) optType() (ir.Type, bool, error) {
	t := p.peek()
	if t == nil || t.Type != token.Ident {
		return ir.TypeAny, false, nil
	}
	typ, ok := ir.ParseType(t.Value)
	if !ok {
		return ir.TypeAny, false, errors.ParseFailed(t.Line, "unknown type %q", t.Value)
	}
	p.next()
	return typ, true, nil
}

// parseStmts reads statements up to, but not including, the closing paren.
func (p *parser) parseStmts() ([]ir.Stmt, error) {
	var out []ir.Stmt
	for !p.atClose() {
		if p.peek() == nil {
			return nil, errors.ParseFailed(p.line(), "unexpected end of input in statement list")
		}
		s, err := p.parseStmt()
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// parseBlock reads statements in a fresh scope up to the closing paren.
func (p *parser) parseBlock() (*ir.Block, error) {
	p.pushScope()
	defer p.popScope()
	stmts, err := p.parseStmts()
	if err != nil {
		return nil, err
	}
	return ir.NewBlock(stmts...), nil
}

func (p *parser) parseStmt() (ir.Stmt, error) {
	if _, err := p.expect(token.LParen); err != nil {
		return nil, err
	}
	kw, err := p.expect(token.Ident)
	if err != nil {
		return nil, err
	}

	var s ir.Stmt
	switch kw.Value {
	case "var", "val":
		s, err = p.parseDecl(kw, kw.Value == "var")
	case "set":
		s, err = p.parseSet()
	case "do":
		var e ir.Expr
		if e, err = p.parseExpr(); err == nil {
			s = ir.NewExprStmt(e)
		}
	case "if":
		s, err = p.parseIf()
	case "while":
		s, err = p.parseWhile()
	case "break", "continue":
		s, err = p.parseJump(kw)
	case "return":
		ret := &ir.Return{}
		if !p.atClose() {
			ret.Value, err = p.parseExpr()
		}
		s = ret
	case "throw":
		var e ir.Expr
		if e, err = p.parseExpr(); err == nil {
			s = ir.NewThrow(e)
		}
	case "try":
		s, err = p.parseTry(kw)
	case "block":
		s, err = p.parseBlock()
	default:
		return nil, errors.ParseFailed(kw.Line, "unknown statement %q", kw.Value)
	}
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.RParen); err != nil {
		return nil, err
	}
	return s, nil
}

func (p *parser) parseDecl(kw *token.Token, mutable bool) (ir.Stmt, error) {
	name, err := p.expect(token.Ident)
	if err != nil {
		return nil, err
	}
	var init ir.Expr
	if !p.atClose() {
		// The initializer is resolved before the name is in scope.
		if init, err = p.parseExpr(); err != nil {
			return nil, err
		}
	} else if !mutable {
		return nil, errors.ParseFailed(kw.Line, "val %q needs an initializer", name.Value)
	}
	v := p.fn.NewVar(name.Value, mutable)
	p.declare(v)
	return ir.NewDecl(v, init), nil
}

func (p *parser) parseSet() (ir.Stmt, error) {
	name, err := p.expect(token.Ident)
	if err != nil {
		return nil, err
	}
	v := p.resolve(name.Value)
	if v == nil {
		return nil, errors.ParseFailed(name.Line, "undeclared variable %q", name.Value)
	}
	if !v.Mutable {
		return nil, errors.ParseFailed(name.Line, "cannot assign to val %q", name.Value)
	}
	e, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	return ir.NewAssign(v, e), nil
}

func (p *parser) parseIf() (ir.Stmt, error) {
	cond, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	s := &ir.If{Cond: cond}
	if !p.atForm("then") {
		return nil, errors.ParseFailed(p.line(), "if needs a (then ...) branch")
	}
	p.pos += 2
	if s.Then, err = p.parseBlock(); err != nil {
		return nil, err
	}
	if _, err := p.expect(token.RParen); err != nil {
		return nil, err
	}
	if p.atForm("else") {
		p.pos += 2
		if s.Else, err = p.parseBlock(); err != nil {
			return nil, err
		}
		if _, err := p.expect(token.RParen); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (p *parser) parseWhile() (ir.Stmt, error) {
	w := &ir.While{}
	if t := p.peek(); t != nil && t.Type == token.Label {
		w.Label = p.next().Value
	}
	cond, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	w.Cond = cond
	p.loops = append(p.loops, w.Label)
	defer func() { p.loops = p.loops[:len(p.loops)-1] }()
	if w.Body, err = p.parseBlock(); err != nil {
		return nil, err
	}
	return w, nil
}

func (p *parser) parseJump(kw *token.Token) (ir.Stmt, error) {
	label := ""
	if t := p.peek(); t != nil && t.Type == token.Label {
		label = p.next().Value
	}
	if !p.resolveLoop(label) {
		if label == "" {
			return nil, errors.ParseFailed(kw.Line, "%s outside of a loop", kw.Value)
		}
		return nil, errors.ParseFailed(kw.Line, "unknown loop label @%s", label)
	}
	if kw.Value == "break" {
		return ir.NewBreak(label), nil
	}
	return ir.NewContinue(label), nil
}

func (p *parser) parseTry(kw *token.Token) (ir.Stmt, error) {
	s := &ir.Try{}
	var err error
	if !p.atForm("body") {
		return nil, errors.ParseFailed(kw.Line, "try needs a (body ...) section")
	}
	p.pos += 2
	if s.Body, err = p.parseBlock(); err != nil {
		return nil, err
	}
	if _, err := p.expect(token.RParen); err != nil {
		return nil, err
	}
	if p.atForm("catch") {
		p.pos += 2
		name, err := p.expect(token.Ident)
		if err != nil {
			return nil, err
		}
		p.pushScope()
		s.CatchVar = p.fn.NewVar(name.Value, false)
		p.declare(s.CatchVar)
		s.Catch, err = p.parseBlock()
		p.popScope()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(token.RParen); err != nil {
			return nil, err
		}
	}
	if p.atForm("finally") {
		p.pos += 2
		if s.Finally, err = p.parseBlock(); err != nil {
			return nil, err
		}
		if _, err := p.expect(token.RParen); err != nil {
			return nil, err
		}
	}
	if s.Catch == nil && s.Finally == nil {
		return nil, errors.ParseFailed(kw.Line, "try needs a catch or finally section")
	}
	return s, nil
}

func (p *parser) parseExpr() (ir.Expr, error) {
	t := p.next()
	if t == nil {
		return nil, errors.ParseFailed(p.line(), "unexpected end of input, expected expression")
	}
	switch t.Type {
	case token.Number:
		n, err := strconv.ParseInt(strings.ReplaceAll(t.Value, "_", ""), 10, 64)
		if err != nil {
			return nil, errors.ParseFailed(t.Line, "bad integer %q", t.Value)
		}
		return ir.Int(n), nil
	case token.String:
		s, err := strconv.Unquote(`"` + t.Value + `"`)
		if err != nil {
			return nil, errors.ParseFailed(t.Line, "bad string literal %q", t.Value)
		}
		return ir.Str(s), nil
	case token.Ident:
		switch t.Value {
		case "true":
			return ir.Bool(true), nil
		case "false":
			return ir.Bool(false), nil
		case "unit":
			return ir.UnitConst(), nil
		}
		v := p.resolve(t.Value)
		if v == nil {
			return nil, errors.ParseFailed(t.Line, "undeclared variable %q", t.Value)
		}
		return ir.NewRead(v), nil
	case token.LParen:
		e, err := p.parseCompound()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(token.RParen); err != nil {
			return nil, err
		}
		return e, nil
	}
	return nil, errors.ParseFailed(t.Line, "expected expression, got %q", t.Value)
}

func (p *parser) parseCompound() (ir.Expr, error) {
	head, err := p.expect(token.Ident)
	if err != nil {
		return nil, err
	}
	switch head.Value {
	case "call", "await":
		callee, err := p.expect(token.Ident)
		if err != nil {
			return nil, err
		}
		args, err := p.parseArgs()
		if err != nil {
			return nil, err
		}
		return &ir.Call{Callee: callee.Value, Args: args, Suspend: head.Value == "await"}, nil
	case "?":
		args, err := p.parseArgs()
		if err != nil {
			return nil, err
		}
		if len(args) != 3 {
			return nil, errors.ParseFailed(head.Line, "? takes 3 operands, got %d", len(args))
		}
		return ir.NewCond(args[0], args[1], args[2]), nil
	}

	op, ok := ir.LookupOp(head.Value)
	if !ok {
		return nil, errors.ParseFailed(head.Line, "unknown operator %q", head.Value)
	}
	args, err := p.parseArgs()
	if err != nil {
		return nil, err
	}
	if op.IsUnary() {
		if len(args) != 1 {
			return nil, errors.ParseFailed(head.Line, "%s takes 1 operand, got %d", op, len(args))
		}
		return ir.NewUnary(op, args[0]), nil
	}
	if len(args) < 2 {
		return nil, errors.ParseFailed(head.Line, "%s takes at least 2 operands, got %d", op, len(args))
	}
	// (+ a b c) folds left: (+ (+ a b) c)
	e := ir.Expr(ir.NewBinary(op, args[0], args[1]))
	for _, a := range args[2:] {
		e = ir.NewBinary(op, e, a)
	}
	return e, nil
}

func (p *parser) parseArgs() ([]ir.Expr, error) {
	var args []ir.Expr
	for !p.atClose() {
		if p.peek() == nil {
			return nil, errors.ParseFailed(p.line(), "unexpected end of input in argument list")
		}
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		args = append(args, e)
	}
	return args, nil
}
