package pta

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/BarrensZeppelin/pta/ir"
)

var ErrUnknownPolicy = errors.New("unknown context sensitivity policy")

// ContextSelector decides the contexts under which callees are analyzed and
// objects are allocated. A selector must produce finitely many contexts for
// a finite program.
type ContextSelector interface {
	EmptyContext() *Context
	// SelectContext returns the callee context for a static call.
	SelectContext(site *CSCallSite, callee *ir.Method) *Context
	// SelectReceiverContext returns the callee context for an instance call
	// on recv.
	SelectReceiverContext(site *CSCallSite, recv *Obj, callee *ir.Method) *Context
	// SelectHeapContext returns the heap context of an allocation in method.
	SelectHeapContext(method *CSMethod, alloc *ir.New) *Context
}

type insensitive struct{ trie *contextTrie }

// Insensitive returns a selector that analyzes everything under the empty
// context.
func Insensitive() ContextSelector { return insensitive{newContextTrie()} }

func (s insensitive) EmptyContext() *Context { return s.trie.empty() }

func (s insensitive) SelectContext(*CSCallSite, *ir.Method) *Context { return s.trie.empty() }

func (s insensitive) SelectReceiverContext(*CSCallSite, *Obj, *ir.Method) *Context {
	return s.trie.empty()
}

func (s insensitive) SelectHeapContext(*CSMethod, *ir.New) *Context { return s.trie.empty() }

type kCallSite struct {
	trie  *contextTrie
	k, hk int
}

// KCallSite returns a k-limited call-string selector with heap contexts of
// length hk.
func KCallSite(k, hk int) ContextSelector { return &kCallSite{newContextTrie(), k, hk} }

func (s *kCallSite) EmptyContext() *Context { return s.trie.empty() }

func (s *kCallSite) SelectContext(site *CSCallSite, _ *ir.Method) *Context {
	return s.trie.append(site.Context, site.CallSite, s.k)
}

func (s *kCallSite) SelectReceiverContext(site *CSCallSite, _ *Obj, callee *ir.Method) *Context {
	return s.SelectContext(site, callee)
}

func (s *kCallSite) SelectHeapContext(m *CSMethod, _ *ir.New) *Context {
	return s.trie.truncate(m.Context, s.hk)
}

type kObject struct {
	trie  *contextTrie
	k, hk int
}

// KObject returns a k-limited object-sensitive selector. Static calls
// inherit the caller's context.
func KObject(k, hk int) ContextSelector { return &kObject{newContextTrie(), k, hk} }

func (s *kObject) EmptyContext() *Context { return s.trie.empty() }

func (s *kObject) SelectContext(site *CSCallSite, _ *ir.Method) *Context {
	return site.Context
}

func (s *kObject) SelectReceiverContext(_ *CSCallSite, recv *Obj, _ *ir.Method) *Context {
	return s.trie.append(recv.Context, recv, s.k)
}

func (s *kObject) SelectHeapContext(m *CSMethod, _ *ir.New) *Context {
	return s.trie.truncate(m.Context, s.hk)
}

type kType struct {
	trie  *contextTrie
	k, hk int
}

// KType returns a k-limited type-sensitive selector. The context element
// for a receiver is the class containing its allocation site.
func KType(k, hk int) ContextSelector { return &kType{newContextTrie(), k, hk} }

func (s *kType) EmptyContext() *Context { return s.trie.empty() }

func (s *kType) SelectContext(site *CSCallSite, _ *ir.Method) *Context {
	return site.Context
}

func (s *kType) SelectReceiverContext(_ *CSCallSite, recv *Obj, _ *ir.Method) *Context {
	var elem ir.Type = recv.Type
	if recv.Alloc != nil {
		elem = recv.Alloc.Method().Class
	}
	return s.trie.append(recv.Context, elem, s.k)
}

func (s *kType) SelectHeapContext(m *CSMethod, _ *ir.New) *Context {
	return s.trie.truncate(m.Context, s.hk)
}

// ParseSelector parses a policy name: "ci" or one of "k-call", "k-obj" and
// "k-type" for a positive k. Heap contexts have length k-1.
func ParseSelector(policy string) (ContextSelector, error) {
	if policy == "ci" {
		return Insensitive(), nil
	}

	ks, kind, ok := strings.Cut(policy, "-")
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPolicy, policy)
	}
	k, err := strconv.Atoi(ks)
	if err != nil || k < 1 {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPolicy, policy)
	}

	switch kind {
	case "call":
		return KCallSite(k, k-1), nil
	case "obj":
		return KObject(k, k-1), nil
	case "type":
		return KType(k, k-1), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownPolicy, policy)
	}
}
