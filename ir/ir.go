// Package ir defines the intermediate representation consumed by the pointer
// analysis: classes, fields, methods, variables and a closed set of
// statement kinds. Front ends (see package ssair) and tests construct an
// [Program] through the builder methods in this package; the IR is treated as
// immutable once analysis starts.
package ir

import (
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"
)

// Type is the static type of a variable, field or allocation.
type Type interface {
	fmt.Stringer
	isType()
}

// PrimitiveType is a named non-reference type such as int.
type PrimitiveType string

func (t PrimitiveType) String() string { return string(t) }
func (PrimitiveType) isType()          {}

// ArrayType is the type of arrays with elements of type Elem.
type ArrayType struct{ Elem Type }

func (t ArrayType) String() string { return t.Elem.String() + "[]" }
func (ArrayType) isType()          {}

// Class is a class or interface type.
type Class struct {
	Name       string
	Super      *Class
	Interfaces []*Class
	Interface  bool
	Abstract   bool

	fields  []*Field
	methods []*Method
	bySub   map[string]*Method
	prog    *Program
}

func (c *Class) String() string { return c.Name }
func (*Class) isType()          {}

// Program returns the program declaring c.
func (c *Class) Program() *Program { return c.prog }

// Fields returns the fields declared by c in declaration order.
func (c *Class) Fields() []*Field { return c.fields }

// Methods returns the methods declared by c in declaration order.
func (c *Class) Methods() []*Method { return c.methods }

// DeclaredField returns the field of c with the given name, or nil.
func (c *Class) DeclaredField(name string) *Field {
	for _, f := range c.fields {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// DeclaredMethod returns the method declared by c with the given
// subsignature, or nil.
func (c *Class) DeclaredMethod(subsignature string) *Method {
	return c.bySub[subsignature]
}

// Field is an instance or static field.
type Field struct {
	Class  *Class
	Name   string
	Type   Type
	Static bool
}

func (f *Field) String() string {
	return fmt.Sprintf("<%s: %s %s>", f.Class, typeName(f.Type), f.Name)
}

// Var is a local variable of a method.
type Var struct {
	Name   string
	Type   Type
	Method *Method
}

func (v *Var) String() string { return v.Name }

// Method is a method or function body. Static methods have no This
// variable. The body is the ordered statement sequence Stmts; ReturnVars
// lists the variables whose values flow to the caller.
type Method struct {
	Class      *Class
	Name       string
	ParamTypes []Type
	ReturnType Type
	Static     bool
	Abstract   bool

	This       *Var
	Params     []*Var
	ReturnVars []*Var
	Stmts      []Stmt

	vars []*Var
}

// Subsignature renders the method as "Ret name(P1,P2)". A nil return type
// renders as void.
func (m *Method) Subsignature() string {
	return Subsignature(m.Name, m.ReturnType, m.ParamTypes)
}

// Signature renders the method as "<Class: Ret name(P1,P2)>".
func (m *Method) Signature() string {
	return fmt.Sprintf("<%s: %s>", m.Class, m.Subsignature())
}

func (m *Method) String() string { return m.Signature() }

// Vars returns every variable created in m, parameters included.
func (m *Method) Vars() []*Var { return m.vars }

// Subsignature renders the subsignature of a method with the given name,
// return type and parameter types.
func Subsignature(name string, ret Type, params []Type) string {
	ps := make([]string, len(params))
	for i, p := range params {
		ps[i] = typeName(p)
	}
	return fmt.Sprintf("%s %s(%s)", typeName(ret), name, strings.Join(ps, ","))
}

func typeName(t Type) string {
	if t == nil {
		return "void"
	}
	return t.String()
}

// Program is a whole program: its classes and the entry method.
type Program struct {
	Entry *Method

	classes    []*Class
	byName     map[string]*Class
	primitives map[string]PrimitiveType
}

// NewProgram returns an empty program.
func NewProgram() *Program {
	return &Program{
		byName:     make(map[string]*Class),
		primitives: make(map[string]PrimitiveType),
	}
}

// Classes returns the classes and interfaces of p in creation order.
func (p *Program) Classes() []*Class { return p.classes }

// ClassByName returns the class or interface with the given name, or nil.
func (p *Program) ClassByName(name string) *Class { return p.byName[name] }

// Primitive registers (if necessary) and returns the primitive type with the
// given name.
func (p *Program) Primitive(name string) PrimitiveType {
	t, ok := p.primitives[name]
	if !ok {
		t = PrimitiveType(name)
		p.primitives[name] = t
	}
	return t
}

// TypeByName resolves a type name: a class or interface, a registered
// primitive, or an array type written with a trailing "[]". It returns nil
// for unknown names.
func (p *Program) TypeByName(name string) Type {
	if elem, ok := strings.CutSuffix(name, "[]"); ok {
		if et := p.TypeByName(elem); et != nil {
			return ArrayType{Elem: et}
		}
		return nil
	}
	if c := p.byName[name]; c != nil {
		return c
	}
	if t, ok := p.primitives[name]; ok {
		return t
	}
	return nil
}

// MethodBySignature resolves a signature in the format produced by
// [Method.Signature]. It returns nil if the class or method is unknown.
func (p *Program) MethodBySignature(sig string) *Method {
	inner, ok := strings.CutPrefix(sig, "<")
	if !ok {
		return nil
	}
	if inner, ok = strings.CutSuffix(inner, ">"); !ok {
		return nil
	}
	className, sub, ok := strings.Cut(inner, ": ")
	if !ok {
		return nil
	}
	c := p.byName[className]
	if c == nil {
		return nil
	}
	return c.DeclaredMethod(strings.TrimSpace(sub))
}

// NewClass creates a class extending super (nil for a root class) and
// implementing the given interfaces.
func (p *Program) NewClass(name string, super *Class, interfaces ...*Class) *Class {
	c := p.newClass(name)
	c.Super = super
	c.Interfaces = interfaces
	return c
}

// NewInterface creates an interface extending the given interfaces.
func (p *Program) NewInterface(name string, supers ...*Class) *Class {
	c := p.newClass(name)
	c.Interface = true
	c.Abstract = true
	c.Interfaces = supers
	return c
}

func (p *Program) newClass(name string) *Class {
	if _, found := p.byName[name]; found {
		log.Panicf("duplicate class %s", name)
	}
	c := &Class{Name: name, bySub: make(map[string]*Method), prog: p}
	p.classes = append(p.classes, c)
	p.byName[name] = c
	return c
}
