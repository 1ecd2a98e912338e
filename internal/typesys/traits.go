package typesys

import (
	"go/ast"
	"go/types"
	"sort"
	"strconv"
	"strings"

	"github.com/hanpama/typeshape/internal/shape"
)

type traits struct {
	p *Provider
	t types.Type
}

// Hint reads a kind declared through the provider or a ShapeKind method
// whose body returns a KindX constant.
func (tr traits) Hint() (shape.Kind, bool) {
	if k, ok := tr.p.hints[ID(tr.t)]; ok {
		return k, true
	}
	named, ok := types.Unalias(tr.t).(*types.Named)
	if !ok {
		return shape.KindNone, false
	}
	fn := lookupMethod(named, "ShapeKind")
	if fn == nil {
		return shape.KindNone, false
	}
	decl := tr.p.u.funcDecl(fn)
	if decl == nil && named.Origin() != named {
		if orig := lookupMethod(named.Origin(), "ShapeKind"); orig != nil {
			decl = tr.p.u.funcDecl(orig)
		}
	}
	return returnedKind(decl)
}

func returnedKind(decl *ast.FuncDecl) (shape.Kind, bool) {
	if decl == nil || decl.Body == nil || len(decl.Body.List) != 1 {
		return shape.KindNone, false
	}
	ret, ok := decl.Body.List[0].(*ast.ReturnStmt)
	if !ok || len(ret.Results) != 1 {
		return shape.KindNone, false
	}
	var name string
	switch e := ret.Results[0].(type) {
	case *ast.Ident:
		name = e.Name
	case *ast.SelectorExpr:
		name = e.Sel.Name
	default:
		return shape.KindNone, false
	}
	if !strings.HasPrefix(name, "Kind") {
		return shape.KindNone, false
	}
	return shape.ParseKind(strings.TrimPrefix(name, "Kind"))
}

func (tr traits) Leaf() bool {
	_, ok := tr.p.leaves[ID(tr.t)]
	return ok
}

func (tr traits) Recognizes(k shape.Kind) bool {
	t := tr.t
	under := t.Underlying()
	switch k {
	case shape.KindEnum:
		named, ok := types.Unalias(t).(*types.Named)
		return ok && tr.Supports(shape.KindEnum) && len(enumValues(named)) > 0
	case shape.KindNullable:
		_, ok := under.(*types.Pointer)
		return ok
	case shape.KindDictionary:
		if _, ok := under.(*types.Map); ok {
			return true
		}
		_, _, ok := seq2Method(t, "Entries")
		return ok
	case shape.KindEnumerable:
		switch under.(type) {
		case *types.Slice, *types.Array:
			return true
		}
		_, ok := seqMethod(t, "All")
		return ok
	case shape.KindTuple:
		return isPositional(t)
	case shape.KindObject:
		return tr.Supports(shape.KindObject)
	}
	return false
}

func (tr traits) Supports(k shape.Kind) bool {
	under := tr.t.Underlying()
	switch k {
	case shape.KindEnum:
		if _, named := types.Unalias(tr.t).(*types.Named); !named {
			return false
		}
		b, ok := under.(*types.Basic)
		return ok && b.Info()&(types.IsInteger|types.IsString) != 0 && b.Info()&types.IsUntyped == 0
	case shape.KindTuple, shape.KindObject:
		st, ok := under.(*types.Struct)
		return ok && len(exportedFields(st)) > 0
	}
	return tr.Recognizes(k)
}

func exportedFields(st *types.Struct) []*types.Var {
	var out []*types.Var
	for i := 0; i < st.NumFields(); i++ {
		if f := st.Field(i); f.Exported() {
			out = append(out, f)
		}
	}
	return out
}

func isPositional(t types.Type) bool {
	st, ok := t.Underlying().(*types.Struct)
	if !ok || st.NumFields() == 0 {
		return false
	}
	for i := 0; i < st.NumFields(); i++ {
		name := st.Field(i).Name()
		if name == "Item"+strconv.Itoa(i+1) {
			continue
		}
		if name == "Rest" && i == st.NumFields()-1 && i > 0 {
			continue
		}
		return false
	}
	return true
}

// enumValues lists the package-level constants declared with exactly the
// type of named, in declaration order.
func enumValues(named *types.Named) []*types.Const {
	obj := named.Obj()
	if obj.Pkg() == nil {
		return nil
	}
	scope := obj.Pkg().Scope()
	var out []*types.Const
	for _, name := range scope.Names() {
		c, ok := scope.Lookup(name).(*types.Const)
		if ok && types.Identical(c.Type(), named) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Pos() < out[j].Pos() })
	return out
}

func lookupMethod(t types.Type, name string) *types.Func {
	obj, _, _ := types.LookupFieldOrMethod(t, true, nil, name)
	fn, _ := obj.(*types.Func)
	return fn
}

// seqMethod finds a niladic method returning a func(yield func(E) bool).
func seqMethod(t types.Type, name string) (types.Type, bool) {
	yield, ok := yieldOf(t, name)
	if !ok || yield.Params().Len() != 1 {
		return nil, false
	}
	return yield.Params().At(0).Type(), true
}

// seq2Method finds a niladic method returning a func(yield func(K, V) bool).
func seq2Method(t types.Type, name string) (types.Type, types.Type, bool) {
	yield, ok := yieldOf(t, name)
	if !ok || yield.Params().Len() != 2 {
		return nil, nil, false
	}
	return yield.Params().At(0).Type(), yield.Params().At(1).Type(), true
}

func yieldOf(t types.Type, name string) (*types.Signature, bool) {
	fn := lookupMethod(t, name)
	if fn == nil {
		return nil, false
	}
	sig := fn.Type().(*types.Signature)
	if sig.Params().Len() != 0 || sig.Results().Len() != 1 {
		return nil, false
	}
	seq, ok := sig.Results().At(0).Type().Underlying().(*types.Signature)
	if !ok || seq.Params().Len() != 1 || seq.Results().Len() != 0 {
		return nil, false
	}
	yield, ok := seq.Params().At(0).Type().Underlying().(*types.Signature)
	if !ok || yield.Results().Len() != 1 {
		return nil, false
	}
	if b, ok := yield.Results().At(0).Type().Underlying().(*types.Basic); !ok || b.Kind() != types.Bool {
		return nil, false
	}
	return yield, true
}
