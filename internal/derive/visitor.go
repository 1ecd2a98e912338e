package derive

import (
	"fmt"

	"github.com/hanpama/typeshape/internal/shape"
)

// Visitor derives an artifact of type A for each kind of shape.
//
// Methods request child artifacts through b. A method returns ErrSkip when
// the type has nothing to contribute, and any other error when the
// application structurally requires something the type cannot provide.
type Visitor[A any] interface {
	VisitNone(b *Builder[A], s *shape.Shape) (A, error)
	VisitEnum(b *Builder[A], s *shape.Shape) (A, error)
	VisitNullable(b *Builder[A], s *shape.Shape) (A, error)
	VisitDictionary(b *Builder[A], s *shape.Shape) (A, error)
	VisitEnumerable(b *Builder[A], s *shape.Shape) (A, error)
	VisitTuple(b *Builder[A], s *shape.Shape) (A, error)
	VisitObject(b *Builder[A], s *shape.Shape) (A, error)
}

// Delayer is implemented by visitors that can stand in for an artifact still
// being built. Delay returns an artifact that forwards every call to d.Get();
// it must not call d.Get() itself.
type Delayer[A any] interface {
	Delay(d Delayed[A]) A
}

func dispatch[A any](v Visitor[A], b *Builder[A], s *shape.Shape) (A, error) {
	switch s.Kind {
	case shape.KindNone:
		return v.VisitNone(b, s)
	case shape.KindEnum:
		return v.VisitEnum(b, s)
	case shape.KindNullable:
		return v.VisitNullable(b, s)
	case shape.KindDictionary:
		return v.VisitDictionary(b, s)
	case shape.KindEnumerable:
		return v.VisitEnumerable(b, s)
	case shape.KindTuple:
		return v.VisitTuple(b, s)
	case shape.KindObject:
		return v.VisitObject(b, s)
	}
	var zero A
	return zero, fmt.Errorf("%w: unknown kind %s", ErrInconsistentHandler, s.Kind)
}
