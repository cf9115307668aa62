package pta

import (
	"fmt"
	"strings"
)

// Context is an interned calling or heap context: a bounded sequence of
// context elements (call sites, objects or types, depending on the selector).
// Contexts created by the same selector are equal exactly when they are the
// same pointer.
type Context struct {
	parent   *Context
	elem     any
	depth    int
	children map[any]*Context
}

// Len returns the number of elements in the context.
func (c *Context) Len() int { return c.depth }

// Elems returns the elements of the context, oldest first.
func (c *Context) Elems() []any {
	res := make([]any, c.depth)
	for n := c; n.depth > 0; n = n.parent {
		res[n.depth-1] = n.elem
	}
	return res
}

// Last returns the most recent element of the context, or nil for the empty
// context.
func (c *Context) Last() any {
	if c.depth == 0 {
		return nil
	}
	return c.elem
}

func (c *Context) String() string {
	elems := c.Elems()
	parts := make([]string, len(elems))
	for i, e := range elems {
		parts[i] = fmt.Sprint(e)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// contextTrie interns contexts as paths from a shared empty root.
type contextTrie struct {
	root *Context
}

func newContextTrie() *contextTrie {
	return &contextTrie{root: &Context{}}
}

func (t *contextTrie) empty() *Context { return t.root }

func (t *contextTrie) make(elems ...any) *Context {
	c := t.root
	for _, e := range elems {
		c = c.child(e)
	}
	return c
}

func (c *Context) child(e any) *Context {
	if c.children == nil {
		c.children = make(map[any]*Context)
	}
	n, found := c.children[e]
	if !found {
		n = &Context{parent: c, elem: e, depth: c.depth + 1}
		c.children[e] = n
	}
	return n
}

// append returns the context formed by the last limit elements of
// parent++[e].
func (t *contextTrie) append(parent *Context, e any, limit int) *Context {
	if limit <= 0 {
		return t.root
	}
	if parent.depth < limit {
		return parent.child(e)
	}
	elems := append(parent.Elems(), e)
	return t.make(elems[len(elems)-limit:]...)
}

// truncate returns the context formed by the last limit elements of c.
func (t *contextTrie) truncate(c *Context, limit int) *Context {
	if limit <= 0 {
		return t.root
	}
	if c.depth <= limit {
		return c
	}
	elems := c.Elems()
	return t.make(elems[len(elems)-limit:]...)
}
