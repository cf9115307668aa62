package ssair_test

import (
	"go/types"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/tools/go/ssa"
	"golang.org/x/tools/go/ssa/ssautil"

	"github.com/BarrensZeppelin/pta"
	"github.com/BarrensZeppelin/pta/pkgutil"
	"github.com/BarrensZeppelin/pta/ssair"
)

func build(t *testing.T, source string) (*ssa.Program, *ssa.Package) {
	t.Helper()
	pkgs, err := pkgutil.LoadPackagesFromSource(source)
	require.NoError(t, err)
	prog := pkgutil.BuildSSA(pkgs)
	mains := ssautil.MainPackages(prog.AllPackages())
	require.Len(t, mains, 1)
	return prog, mains[0]
}

func lowerAndAnalyze(t *testing.T, prog *ssa.Program, config pta.AnalysisConfig) (*ssair.Program, *pta.Result) {
	t.Helper()
	p, err := ssair.Lower(prog)
	require.NoError(t, err)
	res, err := p.Analyze(config)
	require.NoError(t, err)
	return p, res
}

func instrs[T ssa.Instruction](fn *ssa.Function) []T {
	var res []T
	for _, b := range fn.Blocks {
		for _, insn := range b.Instrs {
			if x, ok := insn.(T); ok {
				res = append(res, x)
			}
		}
	}
	return res
}

func method(prog *ssa.Program, pkg *ssa.Package, typ string, ptr bool, name string) *ssa.Function {
	var T types.Type = pkg.Type(typ).Type()
	if ptr {
		T = types.NewPointer(T)
	}
	return prog.LookupMethod(T, pkg.Pkg, name)
}

const interfaceSource = `package main

type I interface{ m() *T }

type T struct{ f *T }

type A struct{}

func (A) m() *T { return nil }

type B struct{ t *T }

func (*B) m() *T { return &T{} }

func main() {
	var i I = &B{}
	x := i.m()
	use(x.f)
}

func use(*T) {}
`

func TestInterfaceDispatch(t *testing.T) {
	prog, pkg := build(t, interfaceSource)
	p, res := lowerAndAnalyze(t, prog, pta.AnalysisConfig{})

	main := pkg.Func("main")
	am := method(prog, pkg, "A", false, "m")
	bm := method(prog, pkg, "B", true, "m")
	require.NotNil(t, am)
	require.NotNil(t, bm)

	reachable := p.ReachableFunctions(res)
	assert.True(t, reachable[main])
	assert.True(t, reachable[bm])
	assert.True(t, reachable[pkg.Func("use")])
	assert.False(t, reachable[am], "A is never instantiated")

	var invoke *ssa.Call
	for _, c := range instrs[*ssa.Call](main) {
		if c.Call.IsInvoke() {
			invoke = c
		}
	}
	require.NotNil(t, invoke)

	allocs := instrs[*ssa.Alloc](bm)
	require.Len(t, allocs, 1)
	assert.Equal(t, []ssa.Value{allocs[0]}, p.PointsTo(res, invoke))

	require.NotNil(t, p.Method(main))
	assert.Same(t, bm, p.Function(p.Method(bm)))

	cg := p.CallGraph(res)
	var callees []*ssa.Function
	for _, e := range cg.Nodes[main].Out {
		callees = append(callees, e.Callee.Func)
	}
	assert.ElementsMatch(t, []*ssa.Function{bm, pkg.Func("use")}, callees)
	assert.Contains(t, cg.Nodes, pkg.Func("init"))
}

const fieldSource = `package main

type T struct{ x int }

type P struct{ a, b *T }

var g *T

func main() {
	p := &P{}
	p.a = &T{}
	p.b = &T{}
	use(p.a)
	g = p.b
	use(g)
}

func use(*T) {}
`

func TestFieldSensitivity(t *testing.T) {
	prog, pkg := build(t, fieldSource)
	p, res := lowerAndAnalyze(t, prog, pta.AnalysisConfig{})

	main := pkg.Func("main")
	ptrT := types.NewPointer(pkg.Type("T").Type())
	var ts []ssa.Value
	for _, a := range instrs[*ssa.Alloc](main) {
		if types.Identical(a.Type(), ptrT) {
			ts = append(ts, a)
		}
	}
	require.Len(t, ts, 2)

	var uses []*ssa.Call
	for _, c := range instrs[*ssa.Call](main) {
		if c.Call.StaticCallee() == pkg.Func("use") {
			uses = append(uses, c)
		}
	}
	require.Len(t, uses, 2)

	assert.Equal(t, []ssa.Value{ts[0]}, p.PointsTo(res, uses[0].Call.Args[0]))
	assert.Equal(t, []ssa.Value{ts[1]}, p.PointsTo(res, uses[1].Call.Args[0]), "through the global")

	param := pkg.Func("use").Params[0]
	assert.ElementsMatch(t, ts, p.PointsTo(res, param))
}

const namesSource = `package main

type I interface {
	m()
	M()
}

type T struct{}

func (*T) m() {}
func (*T) M() {}

func main() {
	var i I = &T{}
	i.m()
	i.M()
}
`

func TestUnexportedMethodNames(t *testing.T) {
	prog, pkg := build(t, namesSource)
	p, res := lowerAndAnalyze(t, prog, pta.AnalysisConfig{})

	unexported := p.Method(method(prog, pkg, "T", true, "m"))
	exported := p.Method(method(prog, pkg, "T", true, "M"))
	require.NotNil(t, unexported)
	require.NotNil(t, exported)
	assert.Equal(t, pkg.Pkg.Path()+".m", unexported.Name)
	assert.Equal(t, "M", exported.Name)

	assert.Same(t, unexported, p.Dispatch(unexported.Class, unexported.Subsignature()))
	assert.Nil(t, p.Dispatch(unexported.Class, "void m()"), "unqualified names do not match")

	var invokes []*ssa.Call
	for _, c := range instrs[*ssa.Call](pkg.Func("main")) {
		if c.Call.IsInvoke() {
			invokes = append(invokes, c)
		}
	}
	require.Len(t, invokes, 2)
	cg := p.CallGraph(res)
	var callees []*ssa.Function
	for _, e := range cg.Nodes[pkg.Func("main")].Out {
		callees = append(callees, e.Callee.Func)
	}
	assert.ElementsMatch(t, []*ssa.Function{p.Function(unexported), p.Function(exported)}, callees)
}

func TestSelectors(t *testing.T) {
	prog, _ := build(t, interfaceSource)
	for _, policy := range []string{"ci", "1-call", "2-obj", "1-type"} {
		t.Run(policy, func(t *testing.T) {
			sel, err := pta.ParseSelector(policy)
			require.NoError(t, err)
			_, res := lowerAndAnalyze(t, prog, pta.AnalysisConfig{Selector: sel})
			assert.NotZero(t, res.Stats().CallEdges)
		})
	}
}

func TestNoMain(t *testing.T) {
	pkgs, err := pkgutil.LoadPackagesFromSource("package lib\n\nfunc F() {}\n")
	require.NoError(t, err)
	_, err = ssair.Lower(pkgutil.BuildSSA(pkgs))
	assert.ErrorIs(t, err, ssair.ErrNoMain)
}
