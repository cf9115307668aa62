// Package pta implements an inclusion-based, context-sensitive pointer
// analysis over the [ir] representation. Points-to sets, the pointer flow
// graph and the call graph are computed together in a single worklist
// fixpoint. Taint sources, transfers and sinks ride on the same
// propagation.
package pta

import (
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/BarrensZeppelin/pta/hierarchy"
	"github.com/BarrensZeppelin/pta/ir"
	"github.com/BarrensZeppelin/pta/taint"
)

var (
	ErrNoProgram     = errors.New("no program to analyze")
	ErrNoEntry       = errors.New("program has no entry method")
	ErrAbstractEntry = errors.New("entry method is abstract")
)

// Dispatcher resolves the method invoked with a subsignature on a receiver
// of dynamic type t. It returns nil when there is no such method.
type Dispatcher interface {
	Dispatch(t ir.Type, subsignature string) *ir.Method
}

// AnalysisConfig selects the program and the policies of an analysis run.
type AnalysisConfig struct {
	Program *ir.Program

	// Dispatcher resolves calls. When nil, the class hierarchy of Program
	// is used.
	Dispatcher Dispatcher
	// Selector defaults to Insensitive().
	Selector ContextSelector
	// Heap defaults to AllocationSiteHeap.
	Heap HeapModel

	// Taint enables the taint analysis with the given rules.
	Taint *taint.Config

	Plugins []Plugin

	// Logger defaults to the standard logger.
	Logger *log.Logger
}

// varAccesses are the statements that must be re-evaluated whenever a new
// object reaches a variable.
type varAccesses struct {
	storeFields []*ir.StoreField
	loadFields  []*ir.LoadField
	storeArrays []*ir.StoreArray
	loadArrays  []*ir.LoadArray
	invokes     []*ir.Invoke
}

type solver struct {
	prog       *ir.Program
	dispatcher Dispatcher
	selector   ContextSelector
	heap       HeapModel
	log        *log.Entry

	objs   *objectManager
	csm    *csManager
	pfg    *PointerFlowGraph
	wl     *workList
	cg     *CallGraph
	plugin compositePlugin
	taint  *taintAnalysis

	indexed  map[*ir.Method]bool
	accesses map[*ir.Var]*varAccesses
}

// Analyze runs the pointer analysis to a fixpoint. Errors are reported for
// invalid configurations only; the fixpoint itself cannot fail.
func Analyze(config AnalysisConfig) (*Result, error) {
	prog := config.Program
	switch {
	case prog == nil:
		return nil, ErrNoProgram
	case prog.Entry == nil:
		return nil, ErrNoEntry
	case prog.Entry.Abstract:
		return nil, fmt.Errorf("%w: %v", ErrAbstractEntry, prog.Entry)
	}

	dispatcher := config.Dispatcher
	if dispatcher == nil {
		h, err := hierarchy.New(prog)
		if err != nil {
			return nil, err
		}
		dispatcher = h
	}

	selector := config.Selector
	if selector == nil {
		selector = Insensitive()
	}

	heap := config.Heap
	if heap == nil {
		heap = AllocationSiteHeap{}
	}

	logger := config.Logger
	if logger == nil {
		logger = log.StandardLogger()
	}

	objs := newObjectManager(selector.EmptyContext())
	csm := newCSManager(objs)
	s := &solver{
		prog:       prog,
		dispatcher: dispatcher,
		selector:   selector,
		heap:       heap,
		log:        logger.WithField("analysis", "pta"),
		objs:       objs,
		csm:        csm,
		pfg:        newPointerFlowGraph(csm),
		wl:         newWorkList(),
		cg:         newCallGraph(),
		indexed:    make(map[*ir.Method]bool),
		accesses:   make(map[*ir.Var]*varAccesses),
	}

	if config.Taint != nil {
		rules, err := config.Taint.Resolve(prog, s.log)
		if err != nil {
			return nil, fmt.Errorf("resolving taint rules: %w", err)
		}
		s.taint = newTaintAnalysis(s, rules)
		s.plugin = append(s.plugin, s.taint)
	}
	s.plugin = append(s.plugin, config.Plugins...)

	s.solve()
	return &Result{s: s}, nil
}

func (s *solver) solve() {
	s.plugin.OnStart()

	entry := s.csm.csMethod(s.selector.EmptyContext(), s.prog.Entry)
	s.cg.addEntryMethod(entry)
	s.addReachable(entry)

	for !s.wl.isEmpty() {
		p, pts := s.wl.pollEntry()
		s.log.Tracef("Processing %v: %v", p, pts)

		diff := s.propagate(p, pts)
		if v, ok := p.(*CSVar); ok && !diff.IsEmpty() {
			if acc := s.accesses[v.Var]; acc != nil {
				for _, obj := range diff.Objects() {
					s.processAccesses(v, obj, acc)
				}
			}
		}
	}

	s.plugin.OnFinish()

	s.log.Infof("Analysis done: %d reachable methods, %d pointers, %d objects, %d PFG edges, %d call edges",
		len(s.cg.reachable), len(s.csm.pointers), len(s.objs.objs), s.pfg.NumEdges(), s.cg.NumEdges())
}

func (s *solver) singleton(o *Obj) *PointsToSet {
	return newPointsToSet(s.objs, o)
}

// addReachable processes the statements of m unless m is already
// reachable.
func (s *solver) addReachable(m *CSMethod) {
	if !s.cg.addReachableMethod(m) {
		return
	}
	s.log.Debugf("New reachable method %v", m)
	s.plugin.OnNewMethod(m)
	s.indexAccesses(m.Method)

	ctx := m.Context
	for _, stmt := range m.Method.Stmts {
		switch stmt := stmt.(type) {
		case *ir.New:
			hctx := s.selector.SelectHeapContext(m, stmt)
			obj := s.objs.alloc(hctx, s.heap.Site(stmt), stmt)
			s.wl.addEntry(s.csm.csVar(ctx, stmt.LValue), s.singleton(obj))

		case *ir.Copy:
			s.addPFGEdge(s.csm.csVar(ctx, stmt.RValue), s.csm.csVar(ctx, stmt.LValue))

		case *ir.LoadField:
			if stmt.IsStatic() {
				s.addPFGEdge(s.csm.staticField(stmt.Field), s.csm.csVar(ctx, stmt.LValue))
			}

		case *ir.StoreField:
			if stmt.IsStatic() {
				s.addPFGEdge(s.csm.csVar(ctx, stmt.RValue), s.csm.staticField(stmt.Field))
			}

		case *ir.LoadArray, *ir.StoreArray:
			// Handled when objects reach the base variable.

		case *ir.Invoke:
			if stmt.IsStatic() {
				s.processStaticCall(m, stmt)
			}

		default:
			log.Panicf("Unsupported statement %T: %v", stmt, stmt)
		}
	}
}

// indexAccesses records the instance accesses of m by base variable. The
// index is shared between all contexts of m.
func (s *solver) indexAccesses(m *ir.Method) {
	if s.indexed[m] {
		return
	}
	s.indexed[m] = true

	get := func(v *ir.Var) *varAccesses {
		acc := s.accesses[v]
		if acc == nil {
			acc = &varAccesses{}
			s.accesses[v] = acc
		}
		return acc
	}

	for _, stmt := range m.Stmts {
		switch stmt := stmt.(type) {
		case *ir.StoreField:
			if !stmt.IsStatic() {
				acc := get(stmt.Base)
				acc.storeFields = append(acc.storeFields, stmt)
			}
		case *ir.LoadField:
			if !stmt.IsStatic() {
				acc := get(stmt.Base)
				acc.loadFields = append(acc.loadFields, stmt)
			}
		case *ir.StoreArray:
			acc := get(stmt.Base)
			acc.storeArrays = append(acc.storeArrays, stmt)
		case *ir.LoadArray:
			acc := get(stmt.Base)
			acc.loadArrays = append(acc.loadArrays, stmt)
		case *ir.Invoke:
			if !stmt.IsStatic() {
				acc := get(stmt.Base)
				acc.invokes = append(acc.invokes, stmt)
			}
		}
	}
}

// processAccesses applies the instance field, array and call rules for a
// new object obj of v.
func (s *solver) processAccesses(v *CSVar, obj *Obj, acc *varAccesses) {
	ctx := v.Context
	for _, st := range acc.storeFields {
		s.addPFGEdge(s.csm.csVar(ctx, st.RValue), s.csm.instanceField(obj, st.Field))
	}
	for _, st := range acc.loadFields {
		s.addPFGEdge(s.csm.instanceField(obj, st.Field), s.csm.csVar(ctx, st.LValue))
	}
	for _, st := range acc.storeArrays {
		s.addPFGEdge(s.csm.csVar(ctx, st.RValue), s.csm.arrayIndex(obj))
	}
	for _, st := range acc.loadArrays {
		s.addPFGEdge(s.csm.arrayIndex(obj), s.csm.csVar(ctx, st.LValue))
	}
	for _, site := range acc.invokes {
		s.processInstanceCall(v, obj, site)
	}
}

func (s *solver) addPFGEdge(src, dst Pointer) {
	if s.pfg.addEdge(src, dst) {
		if pts := src.PointsToSet(); !pts.IsEmpty() {
			s.wl.addEntry(dst, pts)
		}
	}
}

// propagate adds pts to the points-to set of p and forwards the new objects
// to the successors of p. It returns the new objects.
func (s *solver) propagate(p Pointer, pts *PointsToSet) *PointsToSet {
	diff := p.PointsToSet().addAll(pts)
	if !diff.IsEmpty() {
		for _, succ := range s.pfg.SuccessorsOf(p) {
			s.wl.addEntry(succ, diff)
		}
		s.plugin.OnNewPointsToSet(p, diff)
	}
	return diff
}

func (s *solver) processStaticCall(m *CSMethod, site *ir.Invoke) {
	callee := s.dispatcher.Dispatch(site.Ref.Class, site.Ref.Subsignature)
	if callee == nil {
		log.Panicf("Unresolved static call %v", site)
	}

	cs := s.csm.csCallSite(m.Context, site, m)
	ctx := s.selector.SelectContext(cs, callee)
	s.addCallEdge(site.Kind, cs, s.csm.csMethod(ctx, callee))
}

func (s *solver) processInstanceCall(recv *CSVar, obj *Obj, site *ir.Invoke) {
	callee := s.resolveCallee(site, obj)
	if callee == nil {
		return
	}
	if callee.This == nil {
		log.Panicf("Instance call %v resolved to %v without receiver variable", site, callee)
	}

	container := s.csm.csMethod(recv.Context, site.Method())
	cs := s.csm.csCallSite(recv.Context, site, container)
	ctx := s.selector.SelectReceiverContext(cs, obj, callee)
	s.wl.addEntry(s.csm.csVar(ctx, callee.This), s.singleton(obj))
	s.addCallEdge(site.Kind, cs, s.csm.csMethod(ctx, callee))
}

// resolveCallee returns the target of an instance call on obj, or nil.
func (s *solver) resolveCallee(site *ir.Invoke, obj *Obj) *ir.Method {
	ref := site.Ref
	switch site.Kind {
	case ir.Special:
		return s.dispatcher.Dispatch(ref.Class, ref.Subsignature)
	case ir.Virtual, ir.Interface:
		return s.dispatcher.Dispatch(obj.Type, ref.Subsignature)
	default:
		log.Panicf("Unsupported call kind %v for instance call %v", site.Kind, site)
		return nil
	}
}

func (s *solver) addCallEdge(kind ir.CallKind, cs *CSCallSite, callee *CSMethod) {
	e, isNew := s.cg.addEdge(kind, cs, callee)
	if !isNew {
		return
	}
	s.log.Debugf("New call edge %v", e)

	effect := s.plugin.OnNewCallEdge(e)
	s.addReachable(callee)

	site, m := cs.CallSite, callee.Method
	checkArity(site, m)
	for i, arg := range site.Args {
		s.addPFGEdge(s.csm.csVar(cs.Context, arg), s.csm.csVar(callee.Context, m.Params[i]))
	}

	if site.Result != nil && effect&SkipReturn == 0 {
		result := s.csm.csVar(cs.Context, site.Result)
		for _, ret := range m.ReturnVars {
			s.addPFGEdge(s.csm.csVar(callee.Context, ret), result)
		}
	}
}
