package pta

import "golang.org/x/tools/container/intsets"

// PointerFlowGraph is the directed graph of subset constraints between
// pointers. An edge u -> v means pts(u) ⊆ pts(v) at the fixpoint.
type PointerFlowGraph struct {
	csm   *csManager
	succs []*intsets.Sparse
	edges int
}

func newPointerFlowGraph(csm *csManager) *PointerFlowGraph {
	return &PointerFlowGraph{csm: csm}
}

// addEdge adds src -> dst and reports whether the edge is new.
func (g *PointerFlowGraph) addEdge(src, dst Pointer) bool {
	id := src.ID()
	for len(g.succs) <= id {
		g.succs = append(g.succs, nil)
	}
	s := g.succs[id]
	if s == nil {
		s = new(intsets.Sparse)
		g.succs[id] = s
	}
	if !s.Insert(dst.ID()) {
		return false
	}
	g.edges++
	return true
}

// HasEdge reports whether src -> dst is in the graph.
func (g *PointerFlowGraph) HasEdge(src, dst Pointer) bool {
	s := g.succ(src)
	return s != nil && s.Has(dst.ID())
}

func (g *PointerFlowGraph) succ(p Pointer) *intsets.Sparse {
	if id := p.ID(); id < len(g.succs) {
		return g.succs[id]
	}
	return nil
}

// SuccessorsOf returns the successors of p ordered by pointer ID.
func (g *PointerFlowGraph) SuccessorsOf(p Pointer) []Pointer {
	s := g.succ(p)
	if s == nil {
		return nil
	}
	var space [8]int
	ids := s.AppendTo(space[:0])
	res := make([]Pointer, len(ids))
	for i, id := range ids {
		res[i] = g.csm.pointer(id)
	}
	return res
}

// NumEdges returns the number of edges in the graph.
func (g *PointerFlowGraph) NumEdges() int { return g.edges }

// ForEachEdge calls f for every edge, grouped by source in ID order.
func (g *PointerFlowGraph) ForEachEdge(f func(src, dst Pointer)) {
	for id := range g.succs {
		if g.succs[id] == nil {
			continue
		}
		src := g.csm.pointer(id)
		for _, dst := range g.SuccessorsOf(src) {
			f(src, dst)
		}
	}
}
