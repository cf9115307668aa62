package pta

import "github.com/BarrensZeppelin/pta/ir"

// Result gives read-only access to the fixpoint computed by Analyze.
type Result struct {
	s *solver
}

// PointsTo returns the objects v may point to in ctx.
func (r *Result) PointsTo(ctx *Context, v *ir.Var) []*Obj {
	if p := r.s.csm.lookupVar(ctx, v); p != nil {
		return p.PointsToSet().Objects()
	}
	return nil
}

// PointsToCI returns the objects v may point to in any context.
func (r *Result) PointsToCI(v *ir.Var) []*Obj {
	all := newPointsToSet(r.s.objs)
	for _, p := range r.s.csm.pointers {
		if cv, ok := p.(*CSVar); ok && cv.Var == v {
			all.set.UnionWith(&cv.PointsToSet().set)
		}
	}
	return all.Objects()
}

// PointsToSetOf returns the points-to set of p.
func (r *Result) PointsToSetOf(p Pointer) *PointsToSet { return p.PointsToSet() }

// CSVar returns the pointer for v in ctx, or nil if v was never reached in
// ctx.
func (r *Result) CSVar(ctx *Context, v *ir.Var) *CSVar { return r.s.csm.lookupVar(ctx, v) }

// CSVars returns every context-sensitive variable in creation order.
func (r *Result) CSVars() []*CSVar {
	var res []*CSVar
	for _, p := range r.s.csm.pointers {
		if cv, ok := p.(*CSVar); ok {
			res = append(res, cv)
		}
	}
	return res
}

// Pointers returns every pointer ordered by ID.
func (r *Result) Pointers() []Pointer { return r.s.csm.pointers }

// Objects returns every abstract object ordered by ID.
func (r *Result) Objects() []*Obj { return r.s.objs.objs }

func (r *Result) CallGraph() *CallGraph { return r.s.cg }

func (r *Result) PointerFlowGraph() *PointerFlowGraph { return r.s.pfg }

// EmptyContext returns the context the entry method was analyzed in.
func (r *Result) EmptyContext() *Context { return r.s.selector.EmptyContext() }

// TaintFlows returns the detected taint flows, ordered by source, sink and
// argument index. It is empty when the taint analysis is disabled.
func (r *Result) TaintFlows() []TaintFlow {
	if r.s.taint == nil {
		return nil
	}
	return r.s.taint.flows
}

// ReachableMethods returns the methods reachable in some context, in
// discovery order.
func (r *Result) ReachableMethods() []*ir.Method {
	var (
		res  []*ir.Method
		seen = make(map[*ir.Method]bool)
	)
	for _, m := range r.s.cg.reachable {
		if !seen[m.Method] {
			seen[m.Method] = true
			res = append(res, m.Method)
		}
	}
	return res
}

// IsReachable reports whether m is reachable in some context.
func (r *Result) IsReachable(m *ir.Method) bool { return r.s.indexed[m] }

// Stats summarizes the size of a result.
type Stats struct {
	Pointers           int
	Objects            int
	PFGEdges           int
	CallEdges          int
	ReachableCSMethods int
	ReachableMethods   int
	TaintFlows         int
}

func (r *Result) Stats() Stats {
	return Stats{
		Pointers:           len(r.s.csm.pointers),
		Objects:            len(r.s.objs.objs),
		PFGEdges:           r.s.pfg.NumEdges(),
		CallEdges:          r.s.cg.NumEdges(),
		ReachableCSMethods: len(r.s.cg.reachable),
		ReachableMethods:   len(r.s.indexed),
		TaintFlows:         len(r.TaintFlows()),
	}
}
