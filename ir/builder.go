package ir

import (
	"fmt"

	log "github.com/sirupsen/logrus"
)

// NewField declares an instance field on c.
func (c *Class) NewField(name string, t Type) *Field {
	return c.addField(name, t, false)
}

// NewStaticField declares a static field on c.
func (c *Class) NewStaticField(name string, t Type) *Field {
	return c.addField(name, t, true)
}

func (c *Class) addField(name string, t Type, static bool) *Field {
	if c.DeclaredField(name) != nil {
		log.Panicf("duplicate field %s in %s", name, c)
	}
	f := &Field{Class: c, Name: name, Type: t, Static: static}
	c.fields = append(c.fields, f)
	return f
}

// NewMethod declares an instance method with a "this" variable and one
// variable per parameter type. A nil return type declares a void method.
func (c *Class) NewMethod(name string, ret Type, params ...Type) *Method {
	m := c.addMethod(name, ret, params, false, false)
	m.This = m.NewVar("this", c)
	return m
}

// NewStaticMethod declares a static method.
func (c *Class) NewStaticMethod(name string, ret Type, params ...Type) *Method {
	return c.addMethod(name, ret, params, true, false)
}

// NewAbstractMethod declares a method without a body. Abstract methods are
// never dispatch targets.
func (c *Class) NewAbstractMethod(name string, ret Type, params ...Type) *Method {
	m := c.addMethod(name, ret, params, false, true)
	m.This = m.NewVar("this", c)
	return m
}

func (c *Class) addMethod(name string, ret Type, params []Type, static, abstract bool) *Method {
	m := &Method{
		Class:      c,
		Name:       name,
		ParamTypes: params,
		ReturnType: ret,
		Static:     static,
		Abstract:   abstract,
	}
	sub := m.Subsignature()
	if _, found := c.bySub[sub]; found {
		log.Panicf("duplicate method %s in %s", sub, c)
	}
	for i, t := range params {
		m.Params = append(m.Params, m.NewVar(fmt.Sprintf("p%d", i), t))
	}
	c.bySub[sub] = m
	c.methods = append(c.methods, m)
	return m
}

// NewVar creates a local variable of m.
func (m *Method) NewVar(name string, t Type) *Var {
	v := &Var{Name: name, Type: t, Method: m}
	m.vars = append(m.vars, v)
	return v
}

// Param returns the i'th parameter variable.
func (m *Method) Param(i int) *Var { return m.Params[i] }

func (m *Method) base() stmtBase {
	if m.Abstract {
		log.Panicf("abstract method %s cannot have a body", m)
	}
	return stmtBase{method: m, index: len(m.Stmts)}
}

func (m *Method) owns(vs ...*Var) {
	for _, v := range vs {
		if v != nil && v.Method != m {
			log.Panicf("variable %s belongs to %v, not %v", v, v.Method, m)
		}
	}
}

// New appends "lhs = new t".
func (m *Method) New(lhs *Var, t Type) *New {
	m.owns(lhs)
	s := &New{stmtBase: m.base(), LValue: lhs, Type: t}
	m.Stmts = append(m.Stmts, s)
	return s
}

// Copy appends "lhs = rhs".
func (m *Method) Copy(lhs, rhs *Var) *Copy {
	m.owns(lhs, rhs)
	s := &Copy{stmtBase: m.base(), LValue: lhs, RValue: rhs}
	m.Stmts = append(m.Stmts, s)
	return s
}

// Load appends "lhs = base.f" for an instance field f.
func (m *Method) Load(lhs, base *Var, f *Field) *LoadField {
	if f.Static || base == nil {
		log.Panicf("instance load of static field %v", f)
	}
	return m.load(lhs, base, f)
}

// LoadStatic appends "lhs = T.f" for a static field f.
func (m *Method) LoadStatic(lhs *Var, f *Field) *LoadField {
	if !f.Static {
		log.Panicf("static load of instance field %v", f)
	}
	return m.load(lhs, nil, f)
}

func (m *Method) load(lhs, base *Var, f *Field) *LoadField {
	m.owns(lhs, base)
	s := &LoadField{stmtBase: m.base(), LValue: lhs, Base: base, Field: f}
	m.Stmts = append(m.Stmts, s)
	return s
}

// Store appends "base.f = rhs" for an instance field f.
func (m *Method) Store(base *Var, f *Field, rhs *Var) *StoreField {
	if f.Static || base == nil {
		log.Panicf("instance store to static field %v", f)
	}
	return m.store(base, f, rhs)
}

// StoreStatic appends "T.f = rhs" for a static field f.
func (m *Method) StoreStatic(f *Field, rhs *Var) *StoreField {
	if !f.Static {
		log.Panicf("static store to instance field %v", f)
	}
	return m.store(nil, f, rhs)
}

func (m *Method) store(base *Var, f *Field, rhs *Var) *StoreField {
	m.owns(base, rhs)
	s := &StoreField{stmtBase: m.base(), Base: base, Field: f, RValue: rhs}
	m.Stmts = append(m.Stmts, s)
	return s
}

// LoadArray appends "lhs = base[*]".
func (m *Method) LoadArray(lhs, base *Var) *LoadArray {
	m.owns(lhs, base)
	s := &LoadArray{stmtBase: m.base(), LValue: lhs, Base: base}
	m.Stmts = append(m.Stmts, s)
	return s
}

// StoreArray appends "base[*] = rhs".
func (m *Method) StoreArray(base, rhs *Var) *StoreArray {
	m.owns(base, rhs)
	s := &StoreArray{stmtBase: m.base(), Base: base, RValue: rhs}
	m.Stmts = append(m.Stmts, s)
	return s
}

// Invoke appends a call of the given kind. Base must be nil exactly for
// static calls; result may be nil.
func (m *Method) Invoke(kind CallKind, ref MethodRef, base *Var, result *Var, args ...*Var) *Invoke {
	if (kind == Static) != (base == nil) {
		log.Panicf("%v call to %v with receiver %v", kind, ref, base)
	}
	m.owns(base, result)
	m.owns(args...)
	s := &Invoke{
		stmtBase: m.base(),
		Kind:     kind,
		Ref:      ref,
		Base:     base,
		Args:     args,
		Result:   result,
	}
	m.Stmts = append(m.Stmts, s)
	return s
}

// InvokeStatic appends "result = Callee(args)".
func (m *Method) InvokeStatic(callee *Method, result *Var, args ...*Var) *Invoke {
	return m.Invoke(Static, RefOf(callee), nil, result, args...)
}

// InvokeSpecial appends a directly dispatched instance call.
func (m *Method) InvokeSpecial(callee *Method, base, result *Var, args ...*Var) *Invoke {
	return m.Invoke(Special, RefOf(callee), base, result, args...)
}

// InvokeVirtual appends a virtual call dispatched on the receiver's class.
func (m *Method) InvokeVirtual(callee *Method, base, result *Var, args ...*Var) *Invoke {
	return m.Invoke(Virtual, RefOf(callee), base, result, args...)
}

// InvokeInterface appends a call through an interface method.
func (m *Method) InvokeInterface(callee *Method, base, result *Var, args ...*Var) *Invoke {
	return m.Invoke(Interface, RefOf(callee), base, result, args...)
}

// Return registers v as a variable returned by m.
func (m *Method) Return(v *Var) {
	m.owns(v)
	m.ReturnVars = append(m.ReturnVars, v)
}

// RefOf returns the symbolic reference naming m.
func RefOf(m *Method) MethodRef {
	return MethodRef{Class: m.Class, Subsignature: m.Subsignature()}
}
