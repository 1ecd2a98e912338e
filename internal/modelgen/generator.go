// Package modelgen explores statically described Go types into a graph of
// persisted models for code emission.
//
// Exploration works on immutable Context snapshots. Exploring a type pushes
// it onto the snapshot's stack and hands the children a fork; the fork is
// committed back only when the type succeeds, so an unsupported branch
// leaves no partial models behind. A type met again while it is on the
// stack succeeds without a new model: its ancestor accounts for the edge.
package modelgen

import (
	"context"
	"errors"
	"fmt"
	"go/token"
	"go/types"
	"time"

	"github.com/hanpama/typeshape/internal/eventbus"
	"github.com/hanpama/typeshape/internal/events"
	"github.com/hanpama/typeshape/internal/session"
	"github.com/hanpama/typeshape/internal/shape"
	"github.com/hanpama/typeshape/internal/typesys"
	"github.com/sirupsen/logrus"
)

// ErrInconsistentHandler reports a kind handler that claimed success
// without producing a model.
var ErrInconsistentHandler = errors.New("inconsistent handler result")

// Generator accumulates the models of every type included into it.
// It is not safe for concurrent use.
type Generator struct {
	provider *typesys.Provider
	scope    string
	log      logrus.FieldLogger

	state Context
	diags diagnosticSet
}

// Option configures a Generator.
type Option func(*Generator)

// WithScope sets the package path generated code lives in. Unexported types
// of other packages are inaccessible from it. The default scope is the
// first root package of the provider's universe.
func WithScope(pkgPath string) Option {
	return func(g *Generator) { g.scope = pkgPath }
}

// WithLogger sets the logger used for debug traces of the exploration.
func WithLogger(log logrus.FieldLogger) Option {
	return func(g *Generator) { g.log = log }
}

func New(p *typesys.Provider, opts ...Option) *Generator {
	g := &Generator{provider: p, log: logrus.StandardLogger()}
	if pkgs := p.Universe().Packages(); len(pkgs) > 0 {
		g.scope = pkgs[0].Path()
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Scope returns the package path accessibility is checked against.
func (g *Generator) Scope() string { return g.scope }

// Context returns the committed snapshot.
func (g *Generator) Context() Context { return g.state }

// Models returns every committed model ordered by ID.
func (g *Generator) Models() []*Model { return g.state.Models() }

// Model returns the committed model of id.
func (g *Generator) Model(id TypeID) (*Model, bool) { return g.state.Lookup(id) }

// Diagnostics returns the deduplicated diagnostics ordered by location.
func (g *Generator) Diagnostics() Diagnostics { return g.diags.sorted() }

// Include resolves a qualified type name and includes it.
func (g *Generator) Include(ctx context.Context, qualified string) (Status, *Model, error) {
	t, err := g.provider.Universe().Lookup(qualified)
	if err != nil {
		return StatusUnsupportedType, nil, err
	}
	return g.IncludeType(ctx, t)
}

// IncludeType explores t and commits its models on success. A failure
// status leaves the committed snapshot untouched and adds an error
// diagnostic for the root. The returned error is reserved for cancellation
// and handler inconsistencies.
func (g *Generator) IncludeType(ctx context.Context, t types.Type) (Status, *Model, error) {
	ctx, _ = session.Ensure(ctx)
	st, m, next, err := g.explore(ctx, g.state, t, token.Position{})
	if err != nil {
		return st, nil, err
	}
	if st != StatusSuccess {
		g.report(diagnosticAt(SeverityError, g.position(t, token.Position{}), "type %s could not be included: %s", typesys.ID(t), st))
		return st, nil, nil
	}
	g.state = next
	return st, m, nil
}

func (g *Generator) report(d Diagnostic) {
	if g.diags.add(d) {
		g.log.WithField("diagnostic", d.String()).Debug("reported diagnostic")
	}
}

// position prefers the declaration of a named type over the referencing
// site.
func (g *Generator) position(t types.Type, at token.Position) token.Position {
	if named, ok := types.Unalias(t).(*types.Named); ok {
		if pos := g.provider.Universe().Position(named.Obj().Pos()); pos.IsValid() {
			return pos
		}
	}
	return at
}

func (g *Generator) explore(ctx context.Context, c Context, t types.Type, at token.Position) (Status, *Model, Context, error) {
	if err := ctx.Err(); err != nil {
		return StatusSuccess, nil, c, err
	}
	id := TypeID(typesys.ID(t))
	if m, ok := c.Lookup(id); ok {
		return StatusSuccess, m, c, nil
	}
	if c.OnStack(id) {
		g.log.WithFields(logrus.Fields{"type": string(id), "depth": c.Depth()}).Debug("cyclic reference, using ancestor")
		return StatusSuccess, nil, c, nil
	}

	start := time.Now()
	if eventbus.Enabled() {
		eventbus.Publish(ctx, events.ExploreStart{Type: string(id)})
	}
	st, m, next, err := g.exploreNew(ctx, c, t, id, at)
	if eventbus.Enabled() {
		eventbus.Publish(ctx, events.ExploreFinish{Type: string(id), Status: st.String(), Err: err, Duration: time.Since(start)})
	}
	return st, m, next, err
}

func (g *Generator) exploreNew(ctx context.Context, c Context, t types.Type, id TypeID, at token.Position) (Status, *Model, Context, error) {
	pos := g.position(t, at)
	if !typesys.Accessible(t, g.scope) {
		g.report(diagnosticAt(SeverityWarning, pos, "type %s is not accessible from package %s", id, g.scope))
		return StatusInaccessibleType, nil, c, nil
	}
	s, err := g.provider.Describe(t)
	if errors.Is(err, shape.ErrUnsupported) {
		g.report(diagnosticAt(SeverityWarning, pos, "%v", err))
		return StatusUnsupportedType, nil, c, nil
	}
	if err != nil {
		return StatusUnsupportedType, nil, c, err
	}

	fork, _ := c.Push(id)
	st, m, fork, err := g.handle(ctx, fork, s)
	if err != nil || st != StatusSuccess {
		return st, nil, c, err
	}
	if m == nil {
		return st, nil, c, fmt.Errorf("%w: %s handler succeeded without a model for %s", ErrInconsistentHandler, s.Kind, id)
	}
	g.log.WithFields(logrus.Fields{"type": string(id), "kind": s.Kind.String()}).Debug("committed model")
	return StatusSuccess, m, c.Commit(fork, m), nil
}

func newModel(s *typesys.Shape) *Model {
	m := &Model{ID: TypeID(s.ID), Kind: s.Kind, Doc: s.Doc, Pos: s.Pos, Len: s.Len}
	if s.Obj != nil {
		m.Name = s.Obj.Name()
		if s.Obj.Pkg() != nil {
			m.Package = s.Obj.Pkg().Path()
		}
	}
	return m
}

// handle dispatches on the kind. Edges to element, key, value, nullable
// value, enum underlying and tuple slot types are essential: their failure
// fails the type. Object properties are not.
func (g *Generator) handle(ctx context.Context, c Context, s *typesys.Shape) (Status, *Model, Context, error) {
	m := newModel(s)
	essential := func(t types.Type) (TypeID, Status, error) {
		st, _, next, err := g.explore(ctx, c, t, s.Pos)
		if err == nil && st == StatusSuccess {
			c = next
		}
		return TypeID(typesys.ID(t)), st, err
	}

	switch s.Kind {
	case shape.KindNone:
		m.Leaf = s.Leaf
		if s.Leaf {
			m.Basic = s.ID
		} else {
			m.Basic = s.Type.Underlying().(*types.Basic).Name()
		}
	case shape.KindEnum:
		id, st, err := essential(s.Underlying)
		if err != nil || st != StatusSuccess {
			return st, nil, c, err
		}
		m.Elem = id
		for _, v := range s.Values {
			m.Values = append(m.Values, &EnumValue{Name: v.Name, Value: v.Value, Doc: v.Doc})
		}
	case shape.KindNullable, shape.KindEnumerable:
		id, st, err := essential(s.Elem)
		if err != nil || st != StatusSuccess {
			return st, nil, c, err
		}
		m.Elem = id
	case shape.KindDictionary:
		key, st, err := essential(s.Key)
		if err != nil || st != StatusSuccess {
			return st, nil, c, err
		}
		value, st, err := essential(s.Value)
		if err != nil || st != StatusSuccess {
			return st, nil, c, err
		}
		m.Key, m.Value = key, value
	case shape.KindTuple:
		for _, f := range s.Fields {
			id, st, err := essential(f.Type)
			if err != nil || st != StatusSuccess {
				return st, nil, c, err
			}
			m.Fields = append(m.Fields, fieldModel(f, id, len(m.Fields)))
		}
	case shape.KindObject:
		for _, f := range s.Fields {
			st, _, next, err := g.explore(ctx, c, f.Type, f.Pos)
			if err != nil {
				return st, nil, c, err
			}
			if st != StatusSuccess {
				g.report(diagnosticAt(SeverityWarning, f.Pos, "field %s of %s dropped: %s", f.Name, s.ID, st))
				continue
			}
			c = next
			m.Fields = append(m.Fields, fieldModel(f, TypeID(typesys.ID(f.Type)), len(m.Fields)))
		}
	default:
		return StatusUnsupportedType, nil, c, fmt.Errorf("%w: unknown kind %s", ErrInconsistentHandler, s.Kind)
	}
	return StatusSuccess, m, c, nil
}

func fieldModel(f typesys.Field, id TypeID, position int) *Field {
	return &Field{
		Name:     f.Name,
		Position: position,
		Type:     id,
		Tag:      f.Tag,
		Readonly: f.Readonly,
		Doc:      f.Doc,
		Pos:      f.Pos,
	}
}
