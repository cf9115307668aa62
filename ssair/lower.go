package ssair

import (
	"go/token"
	"go/types"

	log "github.com/sirupsen/logrus"
	"golang.org/x/tools/go/ssa"

	"github.com/BarrensZeppelin/pta/internal/slices"
	"github.com/BarrensZeppelin/pta/ir"
)

type lowering struct {
	p  *Program
	fn *ssa.Function
	m  *ir.Method

	blank   *ir.Var
	globals map[*ssa.Global]*ir.Var
}

func (p *Program) lowerBody(fn *ssa.Function) {
	m := p.methods[fn]

	params := fn.Params
	if fn.Signature.Recv() != nil && len(params) > 0 {
		p.vars[params[0]] = m.This
		params = params[1:]
	}
	if len(params) == len(m.Params) {
		for i, param := range params {
			p.vars[param] = m.Params[i]
		}
	}

	l := &lowering{p: p, fn: fn, m: m, globals: make(map[*ssa.Global]*ir.Var)}
	for _, block := range fn.Blocks {
		for _, insn := range block.Instrs {
			l.instr(insn)
		}
	}
}

func (l *lowering) eval(v ssa.Value) *ir.Var {
	if x, ok := l.p.vars[v]; ok {
		return x
	}

	switch v := v.(type) {
	case *ssa.Const, *ssa.Function, *ssa.Builtin:
		if l.blank == nil {
			l.blank = l.m.NewVar("_", l.p.blankType)
		}
		return l.blank

	case *ssa.Global:
		// The address of a global used as a value is modeled as a fresh
		// object per method.
		x, ok := l.globals[v]
		if !ok {
			x = l.m.NewVar(v.Name(), l.p.class(v.Type()))
			l.alloc(x, v.Type(), v)
			l.globals[v] = x
		}
		return x
	}

	x := l.m.NewVar(v.Name(), l.p.class(v.Type()))
	l.p.vars[v] = x
	return x
}

func (l *lowering) alloc(x *ir.Var, t types.Type, site ssa.Value) {
	s := l.m.New(x, l.p.class(t))
	l.p.allocs[s] = site
}

func (l *lowering) instr(insn ssa.Instruction) {
	switch insn := insn.(type) {
	case ssa.CallInstruction:
		l.call(insn)

	case *ssa.Store:
		l.store(insn.Addr, insn.Val)

	case *ssa.MapUpdate:
		mp := l.eval(insn.Map)
		l.m.StoreArray(mp, l.eval(insn.Key))
		l.m.StoreArray(mp, l.eval(insn.Value))

	case *ssa.Send:
		l.m.StoreArray(l.eval(insn.Chan), l.eval(insn.X))

	case *ssa.Return:
		for _, res := range insn.Results {
			l.m.Return(l.eval(res))
		}

	case ssa.Value:
		l.value(insn)

	case *ssa.Panic,
		*ssa.RunDefers,
		*ssa.If,
		*ssa.Jump,
		*ssa.DebugRef:

	default:
		log.Debugf("Ignoring %T instruction %v in %v", insn, insn, l.fn)
	}
}

func (l *lowering) value(v ssa.Value) {
	x := l.eval(v)

	switch v := v.(type) {
	case *ssa.Alloc, *ssa.MakeSlice, *ssa.MakeMap, *ssa.MakeChan:
		l.alloc(x, v.Type(), v)

	case *ssa.MakeInterface:
		if t := v.X.Type(); PointerLike(t) || aggregate(t) {
			l.m.Copy(x, l.eval(v.X))
		}
		if !PointerLike(v.X.Type()) {
			// Box the value so that the dynamic type is known.
			l.alloc(x, v.X.Type(), v)
		}

	case *ssa.Phi:
		for _, e := range v.Edges {
			l.m.Copy(x, l.eval(e))
		}

	case *ssa.ChangeType:
		l.m.Copy(x, l.eval(v.X))
	case *ssa.ChangeInterface:
		l.m.Copy(x, l.eval(v.X))
	case *ssa.Convert:
		l.m.Copy(x, l.eval(v.X))
	case *ssa.Slice:
		l.m.Copy(x, l.eval(v.X))
	case *ssa.SliceToArrayPointer:
		l.m.Copy(x, l.eval(v.X))
	case *ssa.TypeAssert:
		l.m.Copy(x, l.eval(v.X))
	case *ssa.Range:
		l.m.Copy(x, l.eval(v.X))
	case *ssa.Extract:
		l.m.Copy(x, l.eval(v.Tuple))

	// Addresses alias the object they point into. Loads and stores
	// through them are resolved precisely in load and store.
	case *ssa.FieldAddr:
		l.m.Copy(x, l.eval(v.X))
	case *ssa.IndexAddr:
		l.m.Copy(x, l.eval(v.X))

	case *ssa.Field:
		if f := l.p.field(v.X.Type(), v.Field, false); f != nil {
			l.m.Load(x, l.eval(v.X), f)
		}

	case *ssa.Index:
		l.m.LoadArray(x, l.eval(v.X))

	case *ssa.Lookup:
		if _, isMap := v.X.Type().Underlying().(*types.Map); isMap {
			l.m.LoadArray(x, l.eval(v.X))
		}

	case *ssa.UnOp:
		switch v.Op {
		case token.MUL:
			l.load(x, v.Type(), v.X)
		case token.ARROW:
			l.m.LoadArray(x, l.eval(v.X))
		}

	case *ssa.Next:
		if !v.IsString {
			l.m.LoadArray(x, l.eval(v.Iter))
		}

	case *ssa.Select:
		for _, st := range v.States {
			ch := l.eval(st.Chan)
			if st.Dir == types.RecvOnly {
				l.m.LoadArray(x, ch)
			} else {
				l.m.StoreArray(ch, l.eval(st.Send))
			}
		}
	}
}

// load lowers x = *addr, where x has type t.
func (l *lowering) load(x *ir.Var, t types.Type, addr ssa.Value) {
	switch a := addr.(type) {
	case *ssa.FieldAddr:
		if f := l.p.field(a.X.Type(), a.Field, true); f != nil {
			l.m.Load(x, l.eval(a.X), f)
			return
		}
	case *ssa.IndexAddr:
		l.m.LoadArray(x, l.eval(a.X))
		return
	case *ssa.Global:
		l.m.LoadStatic(x, l.p.global(a))
		return
	}

	if aggregate(t) {
		l.m.Copy(x, l.eval(addr))
	} else {
		l.m.Load(x, l.eval(addr), l.p.memory)
	}
}

// store lowers *addr = val.
func (l *lowering) store(addr, val ssa.Value) {
	switch a := addr.(type) {
	case *ssa.FieldAddr:
		if f := l.p.field(a.X.Type(), a.Field, true); f != nil {
			l.m.Store(l.eval(a.X), f, l.eval(val))
			return
		}
	case *ssa.IndexAddr:
		l.m.StoreArray(l.eval(a.X), l.eval(val))
		return
	case *ssa.Global:
		l.m.StoreStatic(l.p.global(a), l.eval(val))
		return
	}

	if aggregate(val.Type()) {
		l.m.Copy(l.eval(addr), l.eval(val))
	} else {
		l.m.Store(l.eval(addr), l.p.memory, l.eval(val))
	}
}

func (l *lowering) call(c ssa.CallInstruction) {
	common := c.Common()

	var result *ir.Var
	if v := c.Value(); v != nil && common.Signature().Results().Len() > 0 {
		result = l.eval(v)
	}

	if common.IsInvoke() {
		ref := ir.MethodRef{
			Class:        l.p.class(common.Value.Type()),
			Subsignature: l.p.invokeSubsignature(common.Method),
		}
		args := slices.Map(common.Args, l.eval)
		s := l.m.Invoke(ir.Interface, ref, l.eval(common.Value), result, args...)
		l.p.sites[s] = c
		return
	}

	if b, ok := common.Value.(*ssa.Builtin); ok {
		l.builtin(c, b, result)
		return
	}

	callee := common.StaticCallee()
	if callee == nil {
		// Dynamic call through a function value.
		return
	}

	cm := l.p.method(callee)
	args := slices.Map(common.Args, l.eval)
	var s *ir.Invoke
	if callee.Signature.Recv() != nil {
		base := l.receiver(common.Args[0], args[0])
		s = l.m.InvokeSpecial(cm, base, result, args[1:]...)
	} else {
		s = l.m.InvokeStatic(cm, result, args...)
	}
	l.p.sites[s] = c
}

// receiver returns the base variable for a static call to a method with
// receiver v. Values that are not references get a placeholder object so
// that the call is always resolved.
func (l *lowering) receiver(v ssa.Value, x *ir.Var) *ir.Var {
	if PointerLike(v.Type()) {
		return x
	}
	r := l.m.NewVar(x.Name+"$recv", l.p.class(v.Type()))
	l.m.Copy(r, x)
	l.alloc(r, v.Type(), v)
	return r
}

func (l *lowering) builtin(c ssa.CallInstruction, b *ssa.Builtin, result *ir.Var) {
	common := c.Common()
	switch b.Name() {
	case "append":
		if result == nil {
			return
		}
		args := slices.Map(common.Args, l.eval)
		l.m.Copy(result, args[0])
		l.alloc(result, common.Args[0].Type(), c.Value())
		if len(args) > 1 {
			l.moveElements(result, args[1], common.Args[0].Type())
		}

	case "copy":
		dst, src := l.eval(common.Args[0]), l.eval(common.Args[1])
		l.moveElements(dst, src, common.Args[0].Type())

	case "ssa:wrapnilchk":
		if result != nil {
			l.m.Copy(result, l.eval(common.Args[0]))
		}
	}
}

// moveElements lowers dst[*] = src[*] for slices of type t.
func (l *lowering) moveElements(dst, src *ir.Var, t types.Type) {
	var elem ir.Type = l.p.blankType
	if st, ok := t.Underlying().(*types.Slice); ok {
		elem = l.p.class(st.Elem())
	}
	tmp := l.m.NewVar(dst.Name+"$elem", elem)
	l.m.LoadArray(tmp, src)
	l.m.StoreArray(dst, tmp)
}
