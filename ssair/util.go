package ssair

import (
	"go/types"

	"golang.org/x/exp/slices"
	"golang.org/x/tools/go/ssa"

	"github.com/BarrensZeppelin/pta/internal/maps"
)

// PointerLike reports whether values of type t may hold references.
func PointerLike(t types.Type) bool {
	switch t := t.(type) {
	case *types.Pointer,
		*types.Map,
		*types.Chan,
		*types.Slice,
		*types.Interface,
		*types.Signature:
		return true
	case *types.Named:
		return PointerLike(t.Underlying())
	default:
		return false
	}
}

// aggregate reports whether t is a struct or array type. Values of
// aggregate type alias the memory they were loaded from.
func aggregate(t types.Type) bool {
	switch t.Underlying().(type) {
	case *types.Struct, *types.Array:
		return true
	default:
		return false
	}
}

// structField returns field i of the struct that a value of type t points
// to (when ptr is set) or is.
func structField(t types.Type, i int, ptr bool) (*types.Var, *types.Struct, bool) {
	if ptr {
		p, ok := t.Underlying().(*types.Pointer)
		if !ok {
			return nil, nil, false
		}
		t = p.Elem()
	}
	st, ok := t.Underlying().(*types.Struct)
	if !ok || i >= st.NumFields() {
		return nil, nil, false
	}
	return st.Field(i), st, true
}

// sortedFunctions orders a function set by name and position.
func sortedFunctions(funs map[*ssa.Function]bool) []*ssa.Function {
	res := maps.Keys(funs)
	slices.SortFunc(res, func(a, b *ssa.Function) bool {
		if as, bs := a.String(), b.String(); as != bs {
			return as < bs
		}
		return a.Pos() < b.Pos()
	})
	return res
}
