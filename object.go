package pta

import (
	"fmt"

	"github.com/BarrensZeppelin/pta/ir"
)

// Obj is an abstract heap object. Regular objects are identified by their
// heap context and abstract allocation site. Taint objects have no
// allocation site; they are identified by the source call that produced
// them and the type they are carried as.
type Obj struct {
	ID      int
	Context *Context
	// Alloc is the allocation that first produced the object. It is nil for
	// taint objects.
	Alloc *ir.New
	Type  ir.Type

	source *ir.Invoke
}

// IsTaint reports whether o is a taint object.
func (o *Obj) IsTaint() bool { return o.source != nil }

// SourceCall returns the source invocation of a taint object, or nil.
func (o *Obj) SourceCall() *ir.Invoke { return o.source }

func (o *Obj) String() string {
	if o.IsTaint() {
		return fmt.Sprintf("TaintObj{%s/%s}", o.source, o.Type)
	}
	if o.Context.Len() == 0 {
		return fmt.Sprintf("NewObj{%s}", o.Alloc)
	}
	return fmt.Sprintf("%s:NewObj{%s}", o.Context, o.Alloc)
}

// HeapModel abstracts allocation sites into heap objects. Allocations with
// equal sites (under the same heap context) share one abstract object.
type HeapModel interface {
	Site(alloc *ir.New) any
}

// AllocationSiteHeap models one abstract object per allocation statement.
type AllocationSiteHeap struct{}

func (AllocationSiteHeap) Site(alloc *ir.New) any { return alloc }

// TypeBasedHeap merges all allocations of the same type.
type TypeBasedHeap struct{}

func (TypeBasedHeap) Site(alloc *ir.New) any { return alloc.Type }

type objKey struct {
	ctx  *Context
	site any
}

type taintKey struct {
	call *ir.Invoke
	typ  ir.Type
}

type objectManager struct {
	objs    []*Obj
	regular map[objKey]*Obj
	taint   map[taintKey]*Obj
	empty   *Context
}

func newObjectManager(empty *Context) *objectManager {
	return &objectManager{
		regular: make(map[objKey]*Obj),
		taint:   make(map[taintKey]*Obj),
		empty:   empty,
	}
}

func (m *objectManager) alloc(ctx *Context, site any, alloc *ir.New) *Obj {
	key := objKey{ctx, site}
	if o, found := m.regular[key]; found {
		return o
	}
	o := &Obj{ID: len(m.objs), Context: ctx, Alloc: alloc, Type: alloc.Type}
	m.objs = append(m.objs, o)
	m.regular[key] = o
	return o
}

func (m *objectManager) makeTaint(call *ir.Invoke, t ir.Type) *Obj {
	key := taintKey{call, t}
	if o, found := m.taint[key]; found {
		return o
	}
	o := &Obj{ID: len(m.objs), Context: m.empty, Type: t, source: call}
	m.objs = append(m.objs, o)
	m.taint[key] = o
	return o
}

func (m *objectManager) get(id int) *Obj { return m.objs[id] }
