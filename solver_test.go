package pta

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BarrensZeppelin/pta/ir"
)

type testEnv struct {
	prog *ir.Program
	cls  *ir.Class
	m    *ir.Method
	objs *objectManager
	csm  *csManager
	trie *contextTrie
}

func newTestEnv() *testEnv {
	prog := ir.NewProgram()
	cls := prog.NewClass("A", nil)
	m := cls.NewStaticMethod("main", nil)
	trie := newContextTrie()
	objs := newObjectManager(trie.empty())
	return &testEnv{prog, cls, m, objs, newCSManager(objs), trie}
}

func (e *testEnv) newObj() *Obj {
	alloc := e.m.New(e.m.NewVar("o", e.cls), e.cls)
	return e.objs.alloc(e.trie.empty(), alloc, alloc)
}

func (e *testEnv) newVar(name string) *CSVar {
	return e.csm.csVar(e.trie.empty(), e.m.NewVar(name, e.cls))
}

func TestPointsToSet(t *testing.T) {
	e := newTestEnv()
	o1, o2, o3 := e.newObj(), e.newObj(), e.newObj()

	pts := newPointsToSet(e.objs, o1)
	diff := pts.addAll(newPointsToSet(e.objs, o1, o2, o3))
	assert.Equal(t, []*Obj{o2, o3}, diff.Objects())
	assert.Equal(t, []*Obj{o1, o2, o3}, pts.Objects())

	diff = pts.addAll(newPointsToSet(e.objs, o2))
	assert.True(t, diff.IsEmpty())
	assert.True(t, newPointsToSet(e.objs, o3).SubsetOf(pts))

	c := pts.clone()
	c.add(e.newObj())
	assert.Equal(t, 3, pts.Len(), "clones are independent")
	assert.Equal(t, 4, c.Len())

	even := pts.filter(func(o *Obj) bool { return o.ID%2 == 0 })
	assert.Equal(t, []*Obj{o1, o3}, even.Objects())
}

func TestWorkList(t *testing.T) {
	e := newTestEnv()
	o1, o2 := e.newObj(), e.newObj()
	a, b := e.newVar("a"), e.newVar("b")

	wl := newWorkList()
	assert.True(t, wl.isEmpty())

	in := newPointsToSet(e.objs, o1)
	wl.addEntry(a, in)
	wl.addEntry(b, newPointsToSet(e.objs, o2))
	wl.addEntry(a, newPointsToSet(e.objs, o2))
	assert.Equal(t, 2, wl.len(), "entries for the same pointer are merged")
	assert.Equal(t, 1, in.Len(), "added sets are not mutated")

	p, pts := wl.pollEntry()
	assert.Equal(t, Pointer(a), p)
	assert.Equal(t, []*Obj{o1, o2}, pts.Objects())

	p, pts = wl.pollEntry()
	assert.Equal(t, Pointer(b), p)
	assert.Equal(t, []*Obj{o2}, pts.Objects())

	assert.True(t, wl.isEmpty())
	assert.PanicsWithError(t, ErrEmptyWorkList.Error(), func() { wl.pollEntry() })

	// A polled pointer can be queued again.
	wl.addEntry(a, newPointsToSet(e.objs, o1))
	p, _ = wl.pollEntry()
	assert.Equal(t, Pointer(a), p)
}

func TestPointerFlowGraph(t *testing.T) {
	e := newTestEnv()
	a, b, c := e.newVar("a"), e.newVar("b"), e.newVar("c")
	g := newPointerFlowGraph(e.csm)

	assert.True(t, g.addEdge(a, c))
	assert.True(t, g.addEdge(a, b))
	assert.False(t, g.addEdge(a, b))
	assert.True(t, g.addEdge(c, a))

	assert.Equal(t, 3, g.NumEdges())
	assert.True(t, g.HasEdge(a, b))
	assert.False(t, g.HasEdge(b, a))
	assert.Equal(t, []Pointer{b, c}, g.SuccessorsOf(a))
	assert.Empty(t, g.SuccessorsOf(b))

	var edges [][2]Pointer
	g.ForEachEdge(func(src, dst Pointer) {
		edges = append(edges, [2]Pointer{src, dst})
	})
	assert.Equal(t, [][2]Pointer{{a, b}, {a, c}, {c, a}}, edges)
}

func TestInterning(t *testing.T) {
	e := newTestEnv()
	v := e.m.NewVar("v", e.cls)
	ctx := e.trie.make("x")

	assert.Same(t, e.csm.csVar(ctx, v), e.csm.csVar(ctx, v))
	assert.NotSame(t, e.csm.csVar(ctx, v), e.csm.csVar(e.trie.empty(), v))
	assert.Nil(t, e.csm.lookupVar(e.trie.make("y"), v))

	o := e.newObj()
	f := e.cls.NewField("f", e.cls)
	assert.Same(t, e.csm.instanceField(o, f), e.csm.instanceField(o, f))
	assert.Same(t, e.csm.arrayIndex(o), e.csm.arrayIndex(o))

	for i, p := range e.csm.pointers {
		assert.Equal(t, i, p.ID())
		assert.Same(t, p, e.csm.pointer(i))
	}

	taint := e.objs.makeTaint(nil, e.cls)
	assert.Same(t, taint, e.objs.makeTaint(nil, e.cls))
	assert.NotSame(t, taint, e.objs.makeTaint(nil, ir.ArrayType{Elem: e.cls}))
}

func TestContextTrie(t *testing.T) {
	trie := newContextTrie()
	empty := trie.empty()
	assert.Equal(t, 0, empty.Len())
	assert.Nil(t, empty.Last())
	assert.Equal(t, "[]", empty.String())

	ab := trie.make("a", "b")
	assert.Same(t, ab, trie.make("a", "b"))
	assert.Equal(t, []any{"a", "b"}, ab.Elems())
	assert.Equal(t, "b", ab.Last())
	assert.Equal(t, "[a, b]", ab.String())

	assert.Same(t, trie.make("b", "c"), trie.append(ab, "c", 2))
	assert.Same(t, trie.make("a", "b", "c"), trie.append(ab, "c", 3))
	assert.Same(t, trie.make("c"), trie.append(ab, "c", 1))
	assert.Same(t, empty, trie.append(ab, "c", 0))

	assert.Same(t, trie.make("b"), trie.truncate(ab, 1))
	assert.Same(t, ab, trie.truncate(ab, 5))
	assert.Same(t, empty, trie.truncate(ab, 0))
}

func TestCallGraph(t *testing.T) {
	e := newTestEnv()
	callee := e.cls.NewStaticMethod("f", nil)
	site := e.m.InvokeStatic(callee, nil)

	main := e.csm.csMethod(e.trie.empty(), e.m)
	f := e.csm.csMethod(e.trie.empty(), callee)
	cs := e.csm.csCallSite(e.trie.empty(), site, main)

	cg := newCallGraph()
	assert.True(t, cg.addReachableMethod(main))
	assert.False(t, cg.addReachableMethod(main))

	e1, isNew := cg.addEdge(ir.Static, cs, f)
	require.True(t, isNew)
	e2, isNew := cg.addEdge(ir.Static, cs, f)
	assert.False(t, isNew)
	assert.Same(t, e1, e2)

	assert.Equal(t, 1, cg.NumEdges())
	assert.Equal(t, []*CSMethod{f}, cg.CalleesOf(cs))
	assert.Equal(t, []*CSCallSite{cs}, cg.CallersOf(f))
	assert.Equal(t, []*ir.Method{callee}, cg.CalleesOfSite(site))
	assert.False(t, cg.Contains(f), "edges do not make callees reachable")
}

func TestSelectors(t *testing.T) {
	e := newTestEnv()
	callee := e.cls.NewMethod("m", nil)
	recvVar := e.m.NewVar("r", e.cls)
	alloc := e.m.New(recvVar, e.cls)
	site := e.m.InvokeVirtual(callee, recvVar, nil)

	t.Run("Insensitive", func(t *testing.T) {
		s := Insensitive()
		empty := s.EmptyContext()
		cs := &CSCallSite{Context: empty, CallSite: site}
		assert.Same(t, empty, s.SelectContext(cs, callee))
		assert.Same(t, empty, s.SelectHeapContext(&CSMethod{Context: empty, Method: e.m}, alloc))
	})

	t.Run("KCallSite", func(t *testing.T) {
		s := KCallSite(2, 1)
		cs := &CSCallSite{Context: s.EmptyContext(), CallSite: site}
		c1 := s.SelectContext(cs, callee)
		assert.Equal(t, []any{site}, c1.Elems())

		c2 := s.SelectContext(&CSCallSite{Context: c1, CallSite: site}, callee)
		assert.Equal(t, []any{site, site}, c2.Elems())
		c3 := s.SelectContext(&CSCallSite{Context: c2, CallSite: site}, callee)
		assert.Same(t, c2, c3, "contexts are bounded and interned")

		hctx := s.SelectHeapContext(&CSMethod{Context: c2, Method: e.m}, alloc)
		assert.Equal(t, 1, hctx.Len())
	})

	t.Run("KObject", func(t *testing.T) {
		s := KObject(1, 0)
		empty := s.EmptyContext()
		obj := &Obj{Context: empty, Alloc: alloc, Type: e.cls}
		cs := &CSCallSite{Context: empty, CallSite: site}

		ctx := s.SelectReceiverContext(cs, obj, callee)
		assert.Equal(t, []any{obj}, ctx.Elems())
		assert.Same(t, ctx, s.SelectContext(&CSCallSite{Context: ctx, CallSite: site}, callee),
			"static calls inherit the caller's context")
		assert.Same(t, empty, s.SelectHeapContext(&CSMethod{Context: ctx, Method: e.m}, alloc))
	})

	t.Run("KType", func(t *testing.T) {
		s := KType(1, 0)
		empty := s.EmptyContext()
		obj := &Obj{Context: empty, Alloc: alloc, Type: e.cls}
		cs := &CSCallSite{Context: empty, CallSite: site}
		assert.Equal(t, []any{e.m.Class}, s.SelectReceiverContext(cs, obj, callee).Elems())

		tainted := &Obj{Context: empty, Type: e.cls, source: site}
		assert.Equal(t, []any{e.cls}, s.SelectReceiverContext(cs, tainted, callee).Elems())
	})
}
