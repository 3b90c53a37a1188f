package ir

// Member is a module-level declaration: *Function or *Class.
type Member interface {
	MemberName() string
	member()
}

// Function is a named function with a structured body.
type Function struct {
	Body   *Block
	Params []*Var
	Name   string
	Result Type

	// Suspend is set for functions declared suspendable.
	Suspend bool
	// Lowered is set once the body has been replaced by a state machine.
	Lowered bool
	// StateMachine is the holder synthesized for a lowered function.
	StateMachine *Class

	nextVar int
}

// NewFunction creates a function with the named parameters.
func NewFunction(name string, params ...string) *Function {
	fn := &Function{Name: name, Body: &Block{}}
	for _, p := range params {
		fn.Params = append(fn.Params, fn.NewParam(p))
	}
	return fn
}

// NewParam allocates a parameter variable. It does not append to Params.
func (fn *Function) NewParam(name string) *Var {
	v := fn.NewVar(name, true)
	v.Param = true
	return v
}

// NewVar allocates a local with a function-unique ID.
func (fn *Function) NewVar(name string, mutable bool) *Var {
	if fn.nextVar == 0 {
		fn.nextVar = MaxVarID(fn) + 1
	}
	v := &Var{Name: name, ID: fn.nextVar, Mutable: mutable}
	fn.nextVar++
	return v
}

func (fn *Function) MemberName() string { return fn.Name }
func (fn *Function) member()            {}

func (fn *Function) String() string { return String(fn) }

// FieldKind classifies holder fields.
type FieldKind int

const (
	FieldLabel FieldKind = iota
	FieldResult
	FieldParam
	FieldLocal
)

func (k FieldKind) String() string {
	switch k {
	case FieldLabel:
		return "label"
	case FieldResult:
		return "result"
	case FieldParam:
		return "param"
	case FieldLocal:
		return "local"
	}
	return "unknown"
}

// Field is a state holder slot. Origin is the captured variable for param
// and local fields.
type Field struct {
	Origin *Var
	Name   string
	Index  int
	Type   Type
	Kind   FieldKind
}

func (f *Field) String() string { return f.Name }

// Method is a holder method. Name is unqualified.
type Method struct {
	Body   *Block
	Params []*Var
	Name   string
}

// Class is a synthesized state holder.
type Class struct {
	Origin  *Function
	Name    string
	Fields  []*Field
	Methods []*Method
}

// Field returns the field with the given name, or nil.
func (c *Class) Field(name string) *Field {
	for _, f := range c.Fields {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// Method returns the method with the given name, or nil.
func (c *Class) Method(name string) *Method {
	for _, m := range c.Methods {
		if m.Name == name {
			return m
		}
	}
	return nil
}

// FieldsOf returns the fields of the given kind in declaration order.
func (c *Class) FieldsOf(kind FieldKind) []*Field {
	var out []*Field
	for _, f := range c.Fields {
		if f.Kind == kind {
			out = append(out, f)
		}
	}
	return out
}

// Qualified returns the return target name of a method of c.
func (c *Class) Qualified(method string) string { return c.Name + "." + method }

func (c *Class) MemberName() string { return c.Name }
func (c *Class) member()            {}

func (c *Class) String() string { return String(c) }

// Module is an ordered list of declarations.
type Module struct {
	Name    string
	Members []Member
}

// Func returns the function with the given name, or nil.
func (m *Module) Func(name string) *Function {
	for _, d := range m.Members {
		if fn, ok := d.(*Function); ok && fn.Name == name {
			return fn
		}
	}
	return nil
}

// Class returns the class with the given name, or nil.
func (m *Module) Class(name string) *Class {
	for _, d := range m.Members {
		if c, ok := d.(*Class); ok && c.Name == name {
			return c
		}
	}
	return nil
}

// Funcs returns the module's functions in declaration order.
func (m *Module) Funcs() []*Function {
	var out []*Function
	for _, d := range m.Members {
		if fn, ok := d.(*Function); ok {
			out = append(out, fn)
		}
	}
	return out
}

// Replace swaps old for repl in place. It reports whether old was found.
func (m *Module) Replace(old, repl Member) bool {
	for i, d := range m.Members {
		if d == old {
			m.Members[i] = repl
			return true
		}
	}
	return false
}

// InsertAfter places d immediately after anchor, or at the end when anchor
// is not a member.
func (m *Module) InsertAfter(anchor, d Member) {
	for i, cur := range m.Members {
		if cur == anchor {
			m.Members = append(m.Members, nil)
			copy(m.Members[i+2:], m.Members[i+1:])
			m.Members[i+1] = d
			return
		}
	}
	m.Members = append(m.Members, d)
}

func (m *Module) String() string { return String(m) }

// Reserved label values. Markers use 1..N.
const (
	LabelStart     int64 = 0
	LabelCompleted int64 = -1
	LabelFailed    int64 = -2
)

// EntryMethod is the holder method that starts and resumes a state machine.
const EntryMethod = "resume"
