package pta

import (
	"fmt"

	"github.com/BarrensZeppelin/pta/ir"
)

// Edge is a context-sensitive call edge.
type Edge struct {
	Kind     ir.CallKind
	CallSite *CSCallSite
	Callee   *CSMethod
}

func (e *Edge) String() string {
	return fmt.Sprintf("%v %v -> %v", e.Kind, e.CallSite, e.Callee)
}

// CallGraph is the context-sensitive call graph discovered by the analysis.
// Methods and edges are reported in discovery order.
type CallGraph struct {
	entries   []*CSMethod
	reachable []*CSMethod
	reached   map[*CSMethod]bool

	edges   []*Edge
	edgeSet map[Edge]*Edge
	out     map[*CSCallSite][]*Edge
	in      map[*CSMethod][]*Edge
}

func newCallGraph() *CallGraph {
	return &CallGraph{
		reached: make(map[*CSMethod]bool),
		edgeSet: make(map[Edge]*Edge),
		out:     make(map[*CSCallSite][]*Edge),
		in:      make(map[*CSMethod][]*Edge),
	}
}

func (cg *CallGraph) addEntryMethod(m *CSMethod) {
	cg.entries = append(cg.entries, m)
}

// addReachableMethod marks m reachable and reports whether it was not
// reachable before.
func (cg *CallGraph) addReachableMethod(m *CSMethod) bool {
	if cg.reached[m] {
		return false
	}
	cg.reached[m] = true
	cg.reachable = append(cg.reachable, m)
	return true
}

// addEdge adds an edge unless an equal edge exists. It returns the interned
// edge and whether it is new.
func (cg *CallGraph) addEdge(kind ir.CallKind, site *CSCallSite, callee *CSMethod) (*Edge, bool) {
	key := Edge{kind, site, callee}
	if e, found := cg.edgeSet[key]; found {
		return e, false
	}
	e := &key
	cg.edgeSet[key] = e
	cg.edges = append(cg.edges, e)
	cg.out[site] = append(cg.out[site], e)
	cg.in[callee] = append(cg.in[callee], e)
	return e, true
}

// EntryMethods returns the methods the analysis started from.
func (cg *CallGraph) EntryMethods() []*CSMethod { return cg.entries }

// ReachableMethods returns the reachable context-sensitive methods.
func (cg *CallGraph) ReachableMethods() []*CSMethod { return cg.reachable }

// Contains reports whether m is reachable.
func (cg *CallGraph) Contains(m *CSMethod) bool { return cg.reached[m] }

// Edges returns every call edge.
func (cg *CallGraph) Edges() []*Edge { return cg.edges }

// NumEdges returns the number of call edges.
func (cg *CallGraph) NumEdges() int { return len(cg.edges) }

// EdgesOutOf returns the edges leaving a call site.
func (cg *CallGraph) EdgesOutOf(site *CSCallSite) []*Edge { return cg.out[site] }

// EdgesInto returns the edges entering m.
func (cg *CallGraph) EdgesInto(m *CSMethod) []*Edge { return cg.in[m] }

// CalleesOf returns the methods called from a call site.
func (cg *CallGraph) CalleesOf(site *CSCallSite) []*CSMethod {
	var res []*CSMethod
	for _, e := range cg.out[site] {
		res = append(res, e.Callee)
	}
	return res
}

// CallersOf returns the call sites calling m.
func (cg *CallGraph) CallersOf(m *CSMethod) []*CSCallSite {
	var res []*CSCallSite
	for _, e := range cg.in[m] {
		res = append(res, e.CallSite)
	}
	return res
}

// CalleesOfSite merges the callees of site over all contexts.
func (cg *CallGraph) CalleesOfSite(site *ir.Invoke) []*ir.Method {
	var (
		res  []*ir.Method
		seen = make(map[*ir.Method]bool)
	)
	for _, e := range cg.edges {
		if e.CallSite.CallSite == site && !seen[e.Callee.Method] {
			seen[e.Callee.Method] = true
			res = append(res, e.Callee.Method)
		}
	}
	return res
}
