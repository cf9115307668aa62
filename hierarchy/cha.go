package hierarchy

import (
	log "github.com/sirupsen/logrus"

	"github.com/BarrensZeppelin/pta/internal/queue"
	"github.com/BarrensZeppelin/pta/ir"
)

// CHAEdge is a context-insensitive call edge.
type CHAEdge struct {
	Kind   ir.CallKind
	Site   *ir.Invoke
	Callee *ir.Method
}

// CHACallGraph is a call graph computed by class hierarchy analysis. It over
// approximates the call graph discovered by pointer analysis and is mostly
// useful as a baseline.
type CHACallGraph struct {
	reachable []*ir.Method
	reached   map[*ir.Method]bool
	edges     []CHAEdge
	callees   map[*ir.Invoke][]*ir.Method
}

// Reachable returns the reachable methods in discovery order.
func (cg *CHACallGraph) Reachable() []*ir.Method { return cg.reachable }

// Contains reports whether m is reachable.
func (cg *CHACallGraph) Contains(m *ir.Method) bool { return cg.reached[m] }

// Edges returns the call edges in discovery order.
func (cg *CHACallGraph) Edges() []CHAEdge { return cg.edges }

// CalleesOf returns the methods called from site.
func (cg *CHACallGraph) CalleesOf(site *ir.Invoke) []*ir.Method { return cg.callees[site] }

// Resolve returns the CHA targets of a call site.
func (h *Hierarchy) Resolve(site *ir.Invoke) []*ir.Method {
	ref := site.Ref
	switch site.Kind {
	case ir.Static:
		if m := ref.Class.DeclaredMethod(ref.Subsignature); m != nil {
			return []*ir.Method{m}
		}
		// Static methods may be inherited.
		if m := h.Dispatch(ref.Class, ref.Subsignature); m != nil {
			return []*ir.Method{m}
		}
		return nil
	case ir.Special:
		if m := h.Dispatch(ref.Class, ref.Subsignature); m != nil {
			return []*ir.Method{m}
		}
		return nil
	case ir.Virtual, ir.Interface:
		return h.ResolveVirtual(ref.Class, ref.Subsignature)
	default:
		log.Panicf("unsupported call kind %v at %v", site.Kind, site)
		return nil
	}
}

// BuildCHACallGraph computes the methods reachable from prog.Entry and the
// call edges between them.
func BuildCHACallGraph(prog *ir.Program, h *Hierarchy) *CHACallGraph {
	cg := &CHACallGraph{
		reached: make(map[*ir.Method]bool),
		callees: make(map[*ir.Invoke][]*ir.Method),
	}
	if prog.Entry == nil {
		return cg
	}

	var q queue.Queue[*ir.Method]
	q.Push(prog.Entry)
	for !q.Empty() {
		m := q.Pop()
		if cg.reached[m] {
			continue
		}
		cg.reached[m] = true
		cg.reachable = append(cg.reachable, m)

		for _, stmt := range m.Stmts {
			site, ok := stmt.(*ir.Invoke)
			if !ok {
				continue
			}
			for _, callee := range h.Resolve(site) {
				cg.edges = append(cg.edges, CHAEdge{site.Kind, site, callee})
				cg.callees[site] = append(cg.callees[site], callee)
				q.Push(callee)
			}
		}
	}

	return cg
}
