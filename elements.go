package pta

import (
	"fmt"

	"github.com/BarrensZeppelin/pta/ir"
)

// Pointer is a location with a points-to set: one of *CSVar,
// *InstanceField, *StaticField or *ArrayIndex. Pointers are interned, so two
// pointers denote the same location exactly when they are equal.
type Pointer interface {
	fmt.Stringer
	// ID is a dense index identifying the pointer within one analysis run.
	ID() int
	PointsToSet() *PointsToSet
}

type pointerBase struct {
	id  int
	pts *PointsToSet
}

func (p *pointerBase) ID() int                   { return p.id }
func (p *pointerBase) PointsToSet() *PointsToSet { return p.pts }

// CSVar is a local variable qualified by the context of its method.
type CSVar struct {
	pointerBase
	Context *Context
	Var     *ir.Var
}

func (p *CSVar) String() string {
	return fmt.Sprintf("%s:%s/%s", p.Context, p.Var.Method.Signature(), p.Var.Name)
}

// InstanceField is the field f of an abstract object.
type InstanceField struct {
	pointerBase
	Base  *Obj
	Field *ir.Field
}

func (p *InstanceField) String() string { return fmt.Sprintf("%s.%s", p.Base, p.Field.Name) }

// StaticField is a static field. Static fields are context insensitive.
type StaticField struct {
	pointerBase
	Field *ir.Field
}

func (p *StaticField) String() string { return p.Field.String() }

// ArrayIndex collapses all elements of an array object.
type ArrayIndex struct {
	pointerBase
	Array *Obj
}

func (p *ArrayIndex) String() string { return fmt.Sprintf("%s[*]", p.Array) }

// CSMethod is a method qualified by a context.
type CSMethod struct {
	Context *Context
	Method  *ir.Method
}

func (m *CSMethod) String() string { return fmt.Sprintf("%s:%s", m.Context, m.Method) }

// CSCallSite is a call site qualified by the context of its containing
// method.
type CSCallSite struct {
	Context   *Context
	CallSite  *ir.Invoke
	Container *CSMethod
}

func (cs *CSCallSite) String() string { return fmt.Sprintf("%s:%s", cs.Context, cs.CallSite) }

type varKey struct {
	ctx *Context
	v   *ir.Var
}

type fieldKey struct {
	base *Obj
	f    *ir.Field
}

type methodKey struct {
	ctx *Context
	m   *ir.Method
}

type siteKey struct {
	ctx  *Context
	site *ir.Invoke
}

// csManager interns context-sensitive elements. Pointers are stored in an
// arena indexed by their IDs.
type csManager struct {
	objs     *objectManager
	pointers []Pointer

	vars    map[varKey]*CSVar
	ifields map[fieldKey]*InstanceField
	sfields map[*ir.Field]*StaticField
	arrays  map[*Obj]*ArrayIndex
	methods map[methodKey]*CSMethod
	sites   map[siteKey]*CSCallSite
}

func newCSManager(objs *objectManager) *csManager {
	return &csManager{
		objs:    objs,
		vars:    make(map[varKey]*CSVar),
		ifields: make(map[fieldKey]*InstanceField),
		sfields: make(map[*ir.Field]*StaticField),
		arrays:  make(map[*Obj]*ArrayIndex),
		methods: make(map[methodKey]*CSMethod),
		sites:   make(map[siteKey]*CSCallSite),
	}
}

func (m *csManager) base() pointerBase {
	return pointerBase{id: len(m.pointers), pts: newPointsToSet(m.objs)}
}

func (m *csManager) csVar(ctx *Context, v *ir.Var) *CSVar {
	key := varKey{ctx, v}
	p, found := m.vars[key]
	if !found {
		p = &CSVar{pointerBase: m.base(), Context: ctx, Var: v}
		m.pointers = append(m.pointers, p)
		m.vars[key] = p
	}
	return p
}

// lookupVar returns the pointer for v in ctx without creating it.
func (m *csManager) lookupVar(ctx *Context, v *ir.Var) *CSVar {
	return m.vars[varKey{ctx, v}]
}

func (m *csManager) instanceField(base *Obj, f *ir.Field) *InstanceField {
	key := fieldKey{base, f}
	p, found := m.ifields[key]
	if !found {
		p = &InstanceField{pointerBase: m.base(), Base: base, Field: f}
		m.pointers = append(m.pointers, p)
		m.ifields[key] = p
	}
	return p
}

func (m *csManager) staticField(f *ir.Field) *StaticField {
	p, found := m.sfields[f]
	if !found {
		p = &StaticField{pointerBase: m.base(), Field: f}
		m.pointers = append(m.pointers, p)
		m.sfields[f] = p
	}
	return p
}

func (m *csManager) arrayIndex(array *Obj) *ArrayIndex {
	p, found := m.arrays[array]
	if !found {
		p = &ArrayIndex{pointerBase: m.base(), Array: array}
		m.pointers = append(m.pointers, p)
		m.arrays[array] = p
	}
	return p
}

func (m *csManager) csMethod(ctx *Context, method *ir.Method) *CSMethod {
	key := methodKey{ctx, method}
	cm, found := m.methods[key]
	if !found {
		cm = &CSMethod{Context: ctx, Method: method}
		m.methods[key] = cm
	}
	return cm
}

func (m *csManager) csCallSite(ctx *Context, site *ir.Invoke, container *CSMethod) *CSCallSite {
	key := siteKey{ctx, site}
	cs, found := m.sites[key]
	if !found {
		cs = &CSCallSite{Context: ctx, CallSite: site, Container: container}
		m.sites[key] = cs
	}
	return cs
}

func (m *csManager) pointer(id int) Pointer { return m.pointers[id] }
