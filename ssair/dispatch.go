package ssair

import (
	"go/types"

	"github.com/BarrensZeppelin/pta/ir"
)

// Dispatch resolves calls for the pointer analysis. Methods declared on
// the class are found directly; interface methods are looked up in the
// method set of the Go type behind the class, lowering wrapper methods on
// demand. It returns nil if the type has no matching method.
func (p *Program) Dispatch(t ir.Type, subsignature string) *ir.Method {
	c, ok := t.(*ir.Class)
	if !ok {
		return nil
	}
	if m := c.DeclaredMethod(subsignature); m != nil && !m.Abstract {
		return m
	}

	T, ok := p.classType[c]
	if !ok || types.IsInterface(T) {
		return nil
	}
	fn := p.invoked[subsignature]
	if fn == nil {
		return nil
	}
	sel := p.SSA.MethodSets.MethodSet(T).Lookup(fn.Pkg(), fn.Name())
	if sel == nil {
		return nil
	}
	impl := p.SSA.MethodValue(sel)
	if impl == nil {
		return nil
	}

	m := p.method(impl)
	p.drain()

	// Imprecise flows may deliver objects whose method of the same name
	// has another signature.
	if ir.Subsignature(methodName(fn), m.ReturnType, m.ParamTypes) != subsignature {
		return nil
	}
	return m
}
