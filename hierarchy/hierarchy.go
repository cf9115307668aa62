// Package hierarchy answers dispatch and subtype queries over an
// [ir.Program] and resolves virtual calls by class hierarchy analysis (CHA).
package hierarchy

import (
	"errors"
	"fmt"

	"github.com/BarrensZeppelin/pta/internal/queue"
	"github.com/BarrensZeppelin/pta/ir"
)

var (
	ErrCycle        = errors.New("inheritance cycle")
	ErrBadSuperType = errors.New("invalid super type")
)

// RootClassName is the name of the class that array types dispatch on.
const RootClassName = "Object"

type dispatchKey struct {
	t   ir.Type
	sub string
}

// Hierarchy answers subtype and dispatch queries. It is built once per
// program and must not be used after the program is modified.
type Hierarchy struct {
	prog *ir.Program

	subclasses    map[*ir.Class][]*ir.Class
	subinterfaces map[*ir.Class][]*ir.Class
	implementors  map[*ir.Class][]*ir.Class

	dispatched map[dispatchKey]*ir.Method
}

// New validates the class structure of prog and indexes its subtype
// relations.
func New(prog *ir.Program) (*Hierarchy, error) {
	h := &Hierarchy{
		prog:          prog,
		subclasses:    make(map[*ir.Class][]*ir.Class),
		subinterfaces: make(map[*ir.Class][]*ir.Class),
		implementors:  make(map[*ir.Class][]*ir.Class),
		dispatched:    make(map[dispatchKey]*ir.Method),
	}

	for _, c := range prog.Classes() {
		if c.Interface {
			if c.Super != nil {
				return nil, fmt.Errorf("%w: interface %s has super class %s", ErrBadSuperType, c, c.Super)
			}
			for _, i := range c.Interfaces {
				if !i.Interface {
					return nil, fmt.Errorf("%w: interface %s extends class %s", ErrBadSuperType, c, i)
				}
				h.subinterfaces[i] = append(h.subinterfaces[i], c)
			}
			continue
		}

		if c.Super != nil {
			if c.Super.Interface {
				return nil, fmt.Errorf("%w: class %s extends interface %s", ErrBadSuperType, c, c.Super)
			}
			h.subclasses[c.Super] = append(h.subclasses[c.Super], c)
		}
		for _, i := range c.Interfaces {
			if !i.Interface {
				return nil, fmt.Errorf("%w: class %s implements class %s", ErrBadSuperType, c, i)
			}
			h.implementors[i] = append(h.implementors[i], c)
		}
	}

	if err := h.checkCycles(); err != nil {
		return nil, err
	}
	return h, nil
}

func (h *Hierarchy) checkCycles() error {
	const (
		visiting = 1
		done     = 2
	)
	state := make(map[*ir.Class]int)

	var visit func(c *ir.Class) error
	visit = func(c *ir.Class) error {
		switch state[c] {
		case visiting:
			return fmt.Errorf("%w through %s", ErrCycle, c)
		case done:
			return nil
		}
		state[c] = visiting
		if c.Super != nil {
			if err := visit(c.Super); err != nil {
				return err
			}
		}
		for _, i := range c.Interfaces {
			if err := visit(i); err != nil {
				return err
			}
		}
		state[c] = done
		return nil
	}

	for _, c := range h.prog.Classes() {
		if err := visit(c); err != nil {
			return err
		}
	}
	return nil
}

// DirectSubclassesOf returns the classes whose super class is c.
func (h *Hierarchy) DirectSubclassesOf(c *ir.Class) []*ir.Class { return h.subclasses[c] }

// DirectSubinterfacesOf returns the interfaces that directly extend c.
func (h *Hierarchy) DirectSubinterfacesOf(c *ir.Class) []*ir.Class { return h.subinterfaces[c] }

// DirectImplementorsOf returns the classes that directly implement c.
func (h *Hierarchy) DirectImplementorsOf(c *ir.Class) []*ir.Class { return h.implementors[c] }

// Dispatch looks up the method invoked with the given subsignature on a
// receiver whose dynamic type is t, walking up the super class chain. The
// first non-abstract declaration wins. Dispatch returns nil when no such
// method exists.
func (h *Hierarchy) Dispatch(t ir.Type, subsignature string) *ir.Method {
	key := dispatchKey{t, subsignature}
	if m, found := h.dispatched[key]; found {
		return m
	}

	var m *ir.Method
	switch t := t.(type) {
	case *ir.Class:
		m = dispatch(t, subsignature)
	case ir.ArrayType:
		if root := h.prog.ClassByName(RootClassName); root != nil {
			m = dispatch(root, subsignature)
		}
	}

	h.dispatched[key] = m
	return m
}

func dispatch(c *ir.Class, subsignature string) *ir.Method {
	for ; c != nil; c = c.Super {
		if m := c.DeclaredMethod(subsignature); m != nil && !m.Abstract {
			return m
		}
	}
	return nil
}

// ResolveVirtual returns every method that a virtual or interface call with
// the given subsignature may invoke when the declared receiver type is
// declared, according to the class hierarchy alone.
func (h *Hierarchy) ResolveVirtual(declared *ir.Class, subsignature string) []*ir.Method {
	var (
		res     []*ir.Method
		seen    = make(map[*ir.Method]bool)
		visited = map[*ir.Class]bool{declared: true}
		q       queue.Queue[*ir.Class]
	)

	q.Push(declared)
	for !q.Empty() {
		c := q.Pop()
		if m := h.Dispatch(c, subsignature); m != nil && !seen[m] {
			seen[m] = true
			res = append(res, m)
		}

		var next []*ir.Class
		if c.Interface {
			next = append(next, h.subinterfaces[c]...)
			next = append(next, h.implementors[c]...)
		} else {
			next = h.subclasses[c]
		}
		for _, n := range next {
			if !visited[n] {
				visited[n] = true
				q.Push(n)
			}
		}
	}

	return res
}
