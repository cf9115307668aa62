package hierarchy_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BarrensZeppelin/pta/hierarchy"
	"github.com/BarrensZeppelin/pta/ir"
)

type shapes struct {
	prog            *ir.Program
	object, i, j    *ir.Class
	a, b, c, d      *ir.Class
	am, bm, cm, obj *ir.Method
	iface           *ir.Method
}

// I <- J; A implements J; B, C extend A; D extends B; B and C override m.
func newShapes() *shapes {
	s := &shapes{prog: ir.NewProgram()}
	s.object = s.prog.NewClass(hierarchy.RootClassName, nil)
	s.obj = s.object.NewMethod("hashCode", s.prog.Primitive("int"))

	s.i = s.prog.NewInterface("I")
	s.iface = s.i.NewAbstractMethod("m", nil)
	s.j = s.prog.NewInterface("J", s.i)

	s.a = s.prog.NewClass("A", s.object, s.j)
	s.am = s.a.NewAbstractMethod("m", nil)
	s.a.Abstract = true

	s.b = s.prog.NewClass("B", s.a)
	s.bm = s.b.NewMethod("m", nil)
	s.c = s.prog.NewClass("C", s.a)
	s.cm = s.c.NewMethod("m", nil)
	s.d = s.prog.NewClass("D", s.b)
	return s
}

func TestDispatch(t *testing.T) {
	s := newShapes()
	h, err := hierarchy.New(s.prog)
	require.NoError(t, err)

	assert.Same(t, s.bm, h.Dispatch(s.b, "void m()"))
	assert.Same(t, s.cm, h.Dispatch(s.c, "void m()"))
	assert.Same(t, s.bm, h.Dispatch(s.d, "void m()"), "inherited from B")
	assert.Nil(t, h.Dispatch(s.a, "void m()"), "abstract methods are never targets")
	assert.Nil(t, h.Dispatch(s.b, "void missing()"))
	assert.Same(t, s.obj, h.Dispatch(s.d, "int hashCode()"))
	assert.Same(t, s.obj, h.Dispatch(ir.ArrayType{Elem: s.b}, "int hashCode()"))
	assert.Nil(t, h.Dispatch(s.prog.Primitive("int"), "int hashCode()"))
}

func TestSubtypes(t *testing.T) {
	s := newShapes()
	h, err := hierarchy.New(s.prog)
	require.NoError(t, err)

	assert.Equal(t, []*ir.Class{s.b, s.c}, h.DirectSubclassesOf(s.a))
	assert.Equal(t, []*ir.Class{s.d}, h.DirectSubclassesOf(s.b))
	assert.Empty(t, h.DirectSubclassesOf(s.d))
	assert.Equal(t, []*ir.Class{s.j}, h.DirectSubinterfacesOf(s.i))
	assert.Equal(t, []*ir.Class{s.a}, h.DirectImplementorsOf(s.j))
	assert.Empty(t, h.DirectImplementorsOf(s.i))
}

func TestResolveVirtual(t *testing.T) {
	s := newShapes()
	h, err := hierarchy.New(s.prog)
	require.NoError(t, err)

	assert.ElementsMatch(t, []*ir.Method{s.bm, s.cm}, h.ResolveVirtual(s.a, "void m()"))
	assert.ElementsMatch(t, []*ir.Method{s.bm, s.cm}, h.ResolveVirtual(s.i, "void m()"))
	assert.Equal(t, []*ir.Method{s.bm}, h.ResolveVirtual(s.d, "void m()"))
	assert.Empty(t, h.ResolveVirtual(s.a, "void missing()"))
}

func TestInvalidHierarchies(t *testing.T) {
	t.Run("Cycle", func(t *testing.T) {
		prog := ir.NewProgram()
		a := prog.NewClass("A", nil)
		b := prog.NewClass("B", a)
		a.Super = b

		_, err := hierarchy.New(prog)
		assert.ErrorIs(t, err, hierarchy.ErrCycle)
	})

	t.Run("InterfaceCycle", func(t *testing.T) {
		prog := ir.NewProgram()
		i := prog.NewInterface("I")
		j := prog.NewInterface("J", i)
		i.Interfaces = []*ir.Class{j}

		_, err := hierarchy.New(prog)
		assert.ErrorIs(t, err, hierarchy.ErrCycle)
	})

	t.Run("ExtendsInterface", func(t *testing.T) {
		prog := ir.NewProgram()
		i := prog.NewInterface("I")
		prog.NewClass("A", i)

		_, err := hierarchy.New(prog)
		assert.ErrorIs(t, err, hierarchy.ErrBadSuperType)
	})

	t.Run("ImplementsClass", func(t *testing.T) {
		prog := ir.NewProgram()
		a := prog.NewClass("A", nil)
		prog.NewClass("B", nil, a)

		_, err := hierarchy.New(prog)
		assert.ErrorIs(t, err, hierarchy.ErrBadSuperType)
	})
}

func TestCHACallGraph(t *testing.T) {
	s := newShapes()
	main := s.prog.NewClass("Main", s.object)
	entry := main.NewStaticMethod("main", nil)
	helper := main.NewStaticMethod("helper", nil)
	unused := main.NewStaticMethod("unused", nil)
	s.prog.Entry = entry

	x := entry.NewVar("x", s.a)
	entry.New(x, s.b)
	virt := entry.InvokeVirtual(s.am, x, nil)
	static := entry.InvokeStatic(helper, nil)
	helper.InvokeSpecial(s.bm, helper.NewVar("y", s.b), nil)

	h, err := hierarchy.New(s.prog)
	require.NoError(t, err)
	cg := hierarchy.BuildCHACallGraph(s.prog, h)

	assert.ElementsMatch(t, []*ir.Method{entry, s.bm, s.cm, helper}, cg.Reachable())
	assert.Equal(t, entry, cg.Reachable()[0])
	assert.False(t, cg.Contains(unused))
	assert.ElementsMatch(t, []*ir.Method{s.bm, s.cm}, cg.CalleesOf(virt))
	assert.Equal(t, []*ir.Method{helper}, cg.CalleesOf(static))
	assert.Len(t, cg.Edges(), 4)
}
