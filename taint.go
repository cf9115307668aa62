package pta

import (
	"fmt"

	"golang.org/x/exp/slices"

	"github.com/BarrensZeppelin/pta/ir"
	"github.com/BarrensZeppelin/pta/taint"
)

// TaintFlow is a finding: a value produced by the source call reaches
// argument Index of the sink call.
type TaintFlow struct {
	Source *ir.Invoke
	Sink   *ir.Invoke
	Index  int
}

func (f TaintFlow) String() string {
	return fmt.Sprintf("TaintFlow{%s -> %s/%d}", f.Source, f.Sink, f.Index)
}

func compareTaintFlows(a, b TaintFlow) int {
	if c := ir.CompareStmts(a.Source, b.Source); c != 0 {
		return c
	}
	if c := ir.CompareStmts(a.Sink, b.Sink); c != 0 {
		return c
	}
	return a.Index - b.Index
}

type taintChannel struct {
	to  *CSVar
	typ ir.Type
}

type channelKey struct {
	from Pointer
	taintChannel
}

type sinkSite struct {
	site  *CSCallSite
	index int
}

// taintAnalysis tracks taint objects on top of the points-to propagation.
// Transfers forward the taint part of a points-to set between call-site
// variables under a new type. Sinks are checked once the fixpoint is reached.
type taintAnalysis struct {
	NopPlugin
	s     *solver
	rules *taint.Rules

	channels   map[Pointer][]taintChannel
	channelSet map[channelKey]bool

	sinks   []sinkSite
	sinkSet map[sinkSite]bool

	flows []TaintFlow
}

func newTaintAnalysis(s *solver, rules *taint.Rules) *taintAnalysis {
	return &taintAnalysis{
		s:          s,
		rules:      rules,
		channels:   make(map[Pointer][]taintChannel),
		channelSet: make(map[channelKey]bool),
		sinkSet:    make(map[sinkSite]bool),
	}
}

func (t *taintAnalysis) OnNewCallEdge(e *Edge) CallEffect {
	var (
		effect CallEffect
		cs     = e.CallSite
		site   = cs.CallSite
		callee = e.Callee.Method
	)

	if site.Result != nil {
		for _, src := range t.rules.SourcesOf(callee) {
			obj := t.s.objs.makeTaint(site, src.Type)
			t.s.log.Debugf("Taint source %v at %v", obj, cs)
			t.s.wl.addEntry(t.s.csm.csVar(cs.Context, site.Result), t.s.singleton(obj))
			effect |= SkipReturn
		}
	}

	for _, tr := range t.rules.TransfersOf(callee) {
		from, to := t.slotVar(cs, tr.From), t.slotVar(cs, tr.To)
		if from == nil || to == nil || to.Var.Type != tr.Type {
			continue
		}
		t.addChannel(from, to, tr.Type)
		if tr.To == taint.Result {
			effect |= SkipReturn
		}
	}

	for _, sink := range t.rules.SinksOf(callee) {
		ss := sinkSite{cs, sink.Index}
		if !t.sinkSet[ss] {
			t.sinkSet[ss] = true
			t.sinks = append(t.sinks, ss)
		}
	}

	return effect
}

// slotVar returns the variable at the given slot of a call site, or nil if
// the call site has no such variable.
func (t *taintAnalysis) slotVar(cs *CSCallSite, slot taint.Slot) *CSVar {
	site := cs.CallSite
	var v *ir.Var
	switch {
	case slot == taint.Base:
		v = site.Base
	case slot == taint.Result:
		v = site.Result
	case int(slot) < len(site.Args):
		v = site.Args[slot]
	}
	if v == nil {
		return nil
	}
	return t.s.csm.csVar(cs.Context, v)
}

func (t *taintAnalysis) addChannel(from, to *CSVar, typ ir.Type) {
	ch := taintChannel{to, typ}
	key := channelKey{from, ch}
	if t.channelSet[key] {
		return
	}
	t.channelSet[key] = true
	t.channels[from] = append(t.channels[from], ch)
	t.s.log.Debugf("Taint transfer %v -> %v (%s)", from, to, typ)

	if taints := from.PointsToSet().filter((*Obj).IsTaint); !taints.IsEmpty() {
		t.transfer(taints, ch)
	}
}

// transfer re-types the taint objects in taints and sends them along ch.
func (t *taintAnalysis) transfer(taints *PointsToSet, ch taintChannel) {
	res := newPointsToSet(t.s.objs)
	for _, o := range taints.Objects() {
		res.add(t.s.objs.makeTaint(o.SourceCall(), ch.typ))
	}
	t.s.wl.addEntry(ch.to, res)
}

func (t *taintAnalysis) OnNewPointsToSet(p Pointer, diff *PointsToSet) {
	chans := t.channels[p]
	if len(chans) == 0 {
		return
	}
	taints := diff.filter((*Obj).IsTaint)
	if taints.IsEmpty() {
		return
	}
	for _, ch := range chans {
		t.transfer(taints, ch)
	}
}

func (t *taintAnalysis) OnFinish() {
	seen := make(map[TaintFlow]bool)
	for _, ss := range t.sinks {
		site := ss.site.CallSite
		arg := t.s.csm.lookupVar(ss.site.Context, site.Args[ss.index])
		if arg == nil {
			continue
		}
		for _, o := range arg.PointsToSet().Objects() {
			if !o.IsTaint() {
				continue
			}
			flow := TaintFlow{o.SourceCall(), site, ss.index}
			if !seen[flow] {
				seen[flow] = true
				t.flows = append(t.flows, flow)
			}
		}
	}

	slices.SortFunc(t.flows, func(a, b TaintFlow) bool {
		return compareTaintFlows(a, b) < 0
	})
	t.s.log.Infof("Detected %d taint flows", len(t.flows))
}
