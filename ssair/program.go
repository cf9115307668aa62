// Package ssair lowers Go programs in [ssa] form into the [ir] consumed by
// the pointer analysis, and projects analysis results back onto SSA
// functions and values.
//
// Every Go type becomes an [ir.Class]; methods are declared on the class of
// their receiver type and package-level functions on a class per package.
// Struct fields are modeled field-sensitively, while slices, arrays, maps
// and channels collapse their contents into one array slot. Values of
// struct or array type alias the memory they were loaded from. Calls
// through function values other than statically known closures are not
// analyzed.
package ssair

import (
	"errors"
	"fmt"
	"go/types"

	log "github.com/sirupsen/logrus"
	"golang.org/x/tools/go/callgraph"
	"golang.org/x/tools/go/ssa"
	"golang.org/x/tools/go/ssa/ssautil"
	"golang.org/x/tools/go/types/typeutil"

	"github.com/BarrensZeppelin/pta"
	"github.com/BarrensZeppelin/pta/internal/queue"
	"github.com/BarrensZeppelin/pta/ir"
)

var ErrNoMain = errors.New("no main packages")

type fieldKey struct {
	class *ir.Class
	index int
}

// Program is a lowered SSA program.
type Program struct {
	IR  *ir.Program
	SSA *ssa.Program

	classes   typeutil.Map // types.Type -> *ir.Class
	classType map[*ir.Class]types.Type
	pkgs      map[*ssa.Package]*ir.Class
	globals   map[*ssa.Global]*ir.Field
	fields    map[fieldKey]*ir.Field
	memory    *ir.Field
	blankType ir.PrimitiveType

	methods map[*ssa.Function]*ir.Method
	funcs   map[*ir.Method]*ssa.Function
	vars    map[ssa.Value]*ir.Var
	allocs  map[*ir.New]ssa.Value
	sites   map[*ir.Invoke]ssa.CallInstruction

	// Interface methods invoked in the program, by subsignature. Names of
	// unexported methods are qualified by their package.
	invoked map[string]*types.Func

	pending queue.Queue[*ssa.Function]
}

// Lower translates every function of prog that is potentially needed by
// its main packages. prog must be built. The entry method of the result
// calls init and main of each main package.
func Lower(prog *ssa.Program) (*Program, error) {
	mains := ssautil.MainPackages(prog.AllPackages())
	if len(mains) == 0 {
		return nil, ErrNoMain
	}

	p := &Program{
		IR:        ir.NewProgram(),
		SSA:       prog,
		classType: make(map[*ir.Class]types.Type),
		pkgs:      make(map[*ssa.Package]*ir.Class),
		globals:   make(map[*ssa.Global]*ir.Field),
		fields:    make(map[fieldKey]*ir.Field),
		methods:   make(map[*ssa.Function]*ir.Method),
		funcs:     make(map[*ir.Method]*ssa.Function),
		vars:      make(map[ssa.Value]*ir.Var),
		allocs:    make(map[*ir.New]ssa.Value),
		sites:     make(map[*ir.Invoke]ssa.CallInstruction),
		invoked:   make(map[string]*types.Func),
	}
	p.classes.SetHasher(typeutil.MakeHasher())
	p.blankType = p.IR.Primitive("invalid")
	p.memory = p.IR.NewClass("<memory>", nil).NewField("*", p.blankType)

	entry := p.IR.NewClass("<root>", nil).NewStaticMethod("main", nil)
	for _, pkg := range mains {
		for _, name := range [...]string{"init", "main"} {
			if fn := pkg.Func(name); fn != nil {
				entry.InvokeStatic(p.method(fn), nil)
			}
		}
	}
	p.IR.Entry = entry

	for _, fn := range sortedFunctions(ssautil.AllFunctions(prog)) {
		p.method(fn)
	}
	p.drain()

	log.Debugf("Lowered %d functions into %d classes", len(p.methods), len(p.IR.Classes()))
	return p, nil
}

// Analyze runs the pointer analysis on the lowered program. The Program
// and Dispatcher fields of config are overwritten.
func (p *Program) Analyze(config pta.AnalysisConfig) (*pta.Result, error) {
	config.Program = p.IR
	config.Dispatcher = p
	return pta.Analyze(config)
}

// Method returns the IR method lowered from fn, or nil.
func (p *Program) Method(fn *ssa.Function) *ir.Method { return p.methods[fn] }

// Function returns the SSA function that m was lowered from, or nil for
// synthetic methods such as the entry.
func (p *Program) Function(m *ir.Method) *ssa.Function { return p.funcs[m] }

// Var returns the IR variable for v, or nil if v was not lowered.
func (p *Program) Var(v ssa.Value) *ir.Var { return p.vars[v] }

// CallSite returns the SSA call instruction that site was lowered from.
func (p *Program) CallSite(site *ir.Invoke) ssa.CallInstruction { return p.sites[site] }

// PointsTo returns the allocation sites of the objects v may point to in
// any context. Taint objects are omitted.
func (p *Program) PointsTo(res *pta.Result, v ssa.Value) []ssa.Value {
	x := p.vars[v]
	if x == nil {
		return nil
	}

	var (
		out  []ssa.Value
		seen = make(map[ssa.Value]bool)
	)
	for _, o := range res.PointsToCI(x) {
		if o.Alloc == nil {
			continue
		}
		if site, ok := p.allocs[o.Alloc]; ok && !seen[site] {
			seen[site] = true
			out = append(out, site)
		}
	}
	return out
}

// ReachableFunctions returns the SSA functions reachable in the analysis
// result.
func (p *Program) ReachableFunctions(res *pta.Result) map[*ssa.Function]bool {
	out := make(map[*ssa.Function]bool)
	for _, m := range res.ReachableMethods() {
		if fn := p.funcs[m]; fn != nil {
			out[fn] = true
		}
	}
	return out
}

// CallGraph projects the context-sensitive call graph of res onto SSA
// functions. The root node is a synthetic function calling the entry
// points.
func (p *Program) CallGraph(res *pta.Result) *callgraph.Graph {
	root := p.SSA.NewFunction("<root>", new(types.Signature), "root of callgraph")
	cg := callgraph.New(root)

	type edgeKey struct {
		caller, callee *ssa.Function
		site           ssa.CallInstruction
	}
	seen := make(map[edgeKey]bool)

	for _, e := range res.CallGraph().Edges() {
		caller := p.funcs[e.CallSite.Container.Method]
		if caller == nil {
			caller = root
		}
		callee := p.funcs[e.Callee.Method]
		if callee == nil {
			log.Panicf("No function for call graph node %v", e.Callee)
		}
		site := p.sites[e.CallSite.CallSite]

		key := edgeKey{caller, callee, site}
		if !seen[key] {
			seen[key] = true
			callgraph.AddEdge(cg.CreateNode(caller), site, cg.CreateNode(callee))
		}
	}

	return cg
}

func (p *Program) drain() {
	for !p.pending.Empty() {
		p.lowerBody(p.pending.Pop())
	}
}

// class returns the class representing t.
func (p *Program) class(t types.Type) *ir.Class {
	if c, ok := p.classes.At(t).(*ir.Class); ok {
		return c
	}
	c := p.IR.NewClass(p.uniqueClassName(types.TypeString(t, nil)), nil)
	p.classes.Set(t, c)
	p.classType[c] = t
	return c
}

func (p *Program) uniqueClassName(name string) string {
	res := name
	for i := 1; p.IR.ClassByName(res) != nil; i++ {
		res = fmt.Sprintf("%s#%d", name, i)
	}
	return res
}

// pkgClass returns the class holding the functions and globals of pkg.
func (p *Program) pkgClass(pkg *ssa.Package) *ir.Class {
	if c, ok := p.pkgs[pkg]; ok {
		return c
	}
	name := "<synthetic>"
	if pkg != nil {
		name = "package " + pkg.Pkg.Path()
	}
	c := p.IR.NewClass(p.uniqueClassName(name), nil)
	p.pkgs[pkg] = c
	return c
}

func (p *Program) global(g *ssa.Global) *ir.Field {
	if f, ok := p.globals[g]; ok {
		return f
	}
	f := p.pkgClass(g.Pkg).NewStaticField(g.Name(), p.class(g.Type().(*types.Pointer).Elem()))
	p.globals[g] = f
	return f
}

// field returns the IR field for field i of the struct type t, or of the
// struct t points to when ptr is set. It returns nil if t is not a struct.
func (p *Program) field(t types.Type, i int, ptr bool) *ir.Field {
	fv, _, ok := structField(t, i, ptr)
	if !ok {
		return nil
	}
	if ptr {
		t = t.Underlying().(*types.Pointer).Elem()
	}
	class := p.class(t)
	key := fieldKey{class, i}
	if f, ok := p.fields[key]; ok {
		return f
	}

	name := fv.Name()
	if name == "_" || class.DeclaredField(name) != nil {
		name = fmt.Sprintf("%s#%d", name, i)
	}
	f := class.NewField(name, p.class(fv.Type()))
	p.fields[key] = f
	return f
}

func (p *Program) resultType(sig *types.Signature) ir.Type {
	switch res := sig.Results(); res.Len() {
	case 0:
		return nil
	case 1:
		return p.class(res.At(0).Type())
	default:
		return p.class(res)
	}
}

func (p *Program) paramTypes(sig *types.Signature) []ir.Type {
	params := sig.Params()
	res := make([]ir.Type, params.Len())
	for i := range res {
		res[i] = p.class(params.At(i).Type())
	}
	return res
}

// method returns the IR method for fn, creating its signature and queueing
// its body for lowering if necessary.
func (p *Program) method(fn *ssa.Function) *ir.Method {
	if m, ok := p.methods[fn]; ok {
		return m
	}

	sig := fn.Signature
	ret, params := p.resultType(sig), p.paramTypes(sig)

	var m *ir.Method
	if recv := sig.Recv(); recv != nil {
		name := fn.Name()
		if obj, ok := fn.Object().(*types.Func); ok {
			name = methodName(obj)
		}
		class := p.class(recv.Type())
		m = class.NewMethod(uniqueMethodName(class, name, ret, params), ret, params...)
	} else {
		class := p.pkgClass(fn.Pkg)
		m = class.NewStaticMethod(uniqueMethodName(class, fn.Name(), ret, params), ret, params...)
	}

	p.methods[fn] = m
	p.funcs[m] = fn
	p.pending.Push(fn)
	return m
}

func uniqueMethodName(c *ir.Class, name string, ret ir.Type, params []ir.Type) string {
	res := name
	for i := 1; c.DeclaredMethod(ir.Subsignature(res, ret, params)) != nil; i++ {
		res = fmt.Sprintf("%s#%d", name, i)
	}
	return res
}

// invokeSubsignature returns the subsignature of an interface method and
// remembers the method for dispatch.
func (p *Program) invokeSubsignature(fn *types.Func) string {
	sig := fn.Type().(*types.Signature)
	sub := ir.Subsignature(methodName(fn), p.resultType(sig), p.paramTypes(sig))
	if _, found := p.invoked[sub]; !found {
		p.invoked[sub] = fn
	}
	return sub
}

// methodName returns the IR name of a method. Unexported methods of
// different packages never implement each other, so their names are
// qualified by the package path.
func methodName(fn *types.Func) string {
	if fn.Exported() || fn.Pkg() == nil {
		return fn.Name()
	}
	return fn.Pkg().Path() + "." + fn.Name()
}
