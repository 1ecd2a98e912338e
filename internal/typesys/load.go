// Package typesys describes Go types statically, from go/types declaration
// metadata, for the compile-time model generator. It mirrors the runtime
// shape package: the same classifier runs over a go/types backed Traits.
package typesys

import (
	"context"
	"errors"
	"fmt"
	"go/ast"
	"go/importer"
	"go/parser"
	"go/token"
	"go/types"
	"sort"
	"strings"

	"github.com/hashicorp/go-multierror"
	"golang.org/x/tools/go/packages"
)

// ErrNotFound is returned by Lookup for unknown packages or type names.
var ErrNotFound = errors.New("type not found")

// Universe is a set of type-checked packages plus the syntax needed to read
// declaration comments and method bodies.
type Universe struct {
	Fset *token.FileSet

	pkgs  map[string]*types.Package
	roots []*types.Package
	docs  map[token.Pos]string
	funcs map[token.Pos]*ast.FuncDecl
}

const loadMode = packages.NeedName | packages.NeedFiles | packages.NeedSyntax |
	packages.NeedTypes | packages.NeedTypesInfo | packages.NeedImports | packages.NeedModule

// Load type-checks the packages matching patterns, resolved from dir.
// Package errors are collected and returned together.
func Load(ctx context.Context, dir string, patterns ...string) (*Universe, error) {
	cfg := &packages.Config{
		Context: ctx,
		Mode:    loadMode,
		Dir:     dir,
		Tests:   false,
	}
	loaded, err := packages.Load(cfg, patterns...)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", strings.Join(patterns, " "), err)
	}

	var errs *multierror.Error
	packages.Visit(loaded, nil, func(p *packages.Package) {
		for _, e := range p.Errors {
			errs = multierror.Append(errs, e)
		}
	})
	if err := errs.ErrorOrNil(); err != nil {
		return nil, err
	}

	u := newUniverse(cfg.Fset)
	if u.Fset == nil && len(loaded) > 0 {
		u.Fset = loaded[0].Fset
	}
	for _, p := range loaded {
		u.addRoot(p.Types, p.Syntax)
	}
	return u, nil
}

// Check parses and type-checks a single package from in-memory sources,
// keyed by file name. Imports are resolved from the standard library
// sources.
func Check(path string, files map[string]string) (*Universe, error) {
	fset := token.NewFileSet()
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)

	var syntax []*ast.File
	for _, name := range names {
		f, err := parser.ParseFile(fset, name, files[name], parser.ParseComments)
		if err != nil {
			return nil, err
		}
		syntax = append(syntax, f)
	}

	conf := types.Config{Importer: importer.ForCompiler(fset, "source", nil)}
	pkg, err := conf.Check(path, fset, syntax, nil)
	if err != nil {
		return nil, fmt.Errorf("check %s: %w", path, err)
	}
	u := newUniverse(fset)
	u.addRoot(pkg, syntax)
	return u, nil
}

func newUniverse(fset *token.FileSet) *Universe {
	return &Universe{
		Fset:  fset,
		pkgs:  make(map[string]*types.Package),
		docs:  make(map[token.Pos]string),
		funcs: make(map[token.Pos]*ast.FuncDecl),
	}
}

func (u *Universe) addRoot(pkg *types.Package, syntax []*ast.File) {
	if pkg == nil {
		return
	}
	u.roots = append(u.roots, pkg)
	u.addPackage(pkg)
	for _, f := range syntax {
		u.index(f)
	}
}

func (u *Universe) addPackage(pkg *types.Package) {
	if _, ok := u.pkgs[pkg.Path()]; ok {
		return
	}
	u.pkgs[pkg.Path()] = pkg
	for _, imp := range pkg.Imports() {
		u.addPackage(imp)
	}
}

// index records doc comments of type, field and constant declarations and
// the method declarations of the file.
func (u *Universe) index(f *ast.File) {
	for _, decl := range f.Decls {
		switch d := decl.(type) {
		case *ast.FuncDecl:
			u.funcs[d.Name.Pos()] = d
		case *ast.GenDecl:
			for _, spec := range d.Specs {
				switch s := spec.(type) {
				case *ast.TypeSpec:
					doc := s.Doc
					if doc == nil && len(d.Specs) == 1 {
						doc = d.Doc
					}
					u.setDoc(s.Name.Pos(), doc)
					if st, ok := s.Type.(*ast.StructType); ok {
						for _, field := range st.Fields.List {
							for _, name := range field.Names {
								u.setDoc(name.Pos(), field.Doc)
							}
						}
					}
				case *ast.ValueSpec:
					doc := s.Doc
					if doc == nil && len(d.Specs) == 1 {
						doc = d.Doc
					}
					for _, name := range s.Names {
						u.setDoc(name.Pos(), doc)
					}
				}
			}
		}
	}
}

func (u *Universe) setDoc(pos token.Pos, cg *ast.CommentGroup) {
	if cg == nil {
		return
	}
	if text := strings.TrimSpace(cg.Text()); text != "" {
		u.docs[pos] = text
	}
}

// Packages returns the root packages, in load order.
func (u *Universe) Packages() []*types.Package { return u.roots }

// Package returns a loaded package, root or imported, by path.
func (u *Universe) Package(path string) (*types.Package, bool) {
	p, ok := u.pkgs[path]
	return p, ok
}

// Lookup resolves a qualified type name of the form "import/path.Name".
func (u *Universe) Lookup(qualified string) (types.Type, error) {
	i := strings.LastIndex(qualified, ".")
	if i <= 0 || i == len(qualified)-1 {
		return nil, fmt.Errorf("%w: %q is not of the form path.Name", ErrNotFound, qualified)
	}
	path, name := qualified[:i], qualified[i+1:]
	pkg, ok := u.pkgs[path]
	if !ok {
		return nil, fmt.Errorf("%w: package %s not loaded", ErrNotFound, path)
	}
	tn, ok := pkg.Scope().Lookup(name).(*types.TypeName)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, qualified)
	}
	return tn.Type(), nil
}

// Named returns every named, non-generic type declared at package level in
// the root packages, ordered by position.
func (u *Universe) Named() []types.Type {
	var out []types.Type
	for _, pkg := range u.roots {
		scope := pkg.Scope()
		var names []*types.TypeName
		for _, name := range scope.Names() {
			tn, ok := scope.Lookup(name).(*types.TypeName)
			if !ok || tn.IsAlias() {
				continue
			}
			if n, ok := tn.Type().(*types.Named); ok && n.TypeParams().Len() > 0 {
				continue
			}
			names = append(names, tn)
		}
		sort.Slice(names, func(i, j int) bool { return names[i].Pos() < names[j].Pos() })
		for _, tn := range names {
			out = append(out, tn.Type())
		}
	}
	return out
}

// Doc returns the doc comment of a declared object, if any.
func (u *Universe) Doc(obj types.Object) string {
	if obj == nil {
		return ""
	}
	return u.docs[obj.Pos()]
}

// Position resolves pos against the universe's file set.
func (u *Universe) Position(pos token.Pos) token.Position {
	if u.Fset == nil || !pos.IsValid() {
		return token.Position{}
	}
	return u.Fset.Position(pos)
}

func (u *Universe) funcDecl(fn *types.Func) *ast.FuncDecl {
	return u.funcs[fn.Pos()]
}
