// Package validate derives validators from `validate` struct tags.
//
// A tag is a comma separated rule list:
//
//	type Account struct {
//		ID    string   `validate:"required"`
//		Tags  []string `validate:"max=3"`
//		Limit int      `validate:"min=1,max=100"`
//		Owner *User    `validate:"nonzero"`
//	}
//
// required rejects nil pointers, maps, slices and interfaces and empty
// strings. nonzero rejects the zero value. min and max bound numbers by
// value and strings and collections by length. Enums with registered values
// reject anything else.
//
// Types with no rules anywhere below them have no validator. Validators do
// not follow cyclic edges.
package validate

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/hanpama/typeshape/internal/derive"
	"github.com/hanpama/typeshape/internal/shape"
	"github.com/hashicorp/go-multierror"
)

// Func appends the violations found in v to errs and returns it.
type Func func(path string, v reflect.Value, errs *multierror.Error) *multierror.Error

const Name = "validate"

// Violation is one failed rule.
type Violation struct {
	Path    string
	Rule    string
	Message string
}

func (v *Violation) Error() string {
	if v.Path == "" {
		return v.Message
	}
	return v.Path + ": " + v.Message
}

type visitor struct{}

func New(p *shape.Provider, opts ...derive.Option) *derive.Cache[Func] {
	return derive.NewCache[Func](p, visitor{}, append([]derive.Option{derive.WithName(Name)}, opts...)...)
}

func From(r *derive.Registry) *derive.Cache[Func] {
	return derive.Shared(r, Name, func() derive.Visitor[Func] { return visitor{} })
}

// Validate checks v and returns every violation as a *multierror.Error, or
// nil when v is valid.
func Validate[T any](c *derive.Cache[Func], v T) error {
	return ValidateValue(c, reflect.ValueOf(&v).Elem())
}

func ValidateValue(c *derive.Cache[Func], v reflect.Value) error {
	f, ok, err := c.Get(v.Type())
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	return f("", v, nil).ErrorOrNil()
}

func (visitor) VisitNone(*derive.Builder[Func], *shape.Shape) (Func, error) {
	return nil, derive.ErrSkip
}

func (visitor) VisitEnum(_ *derive.Builder[Func], s *shape.Shape) (Func, error) {
	e := s.Enum
	if len(e.Values) == 0 {
		return nil, derive.ErrSkip
	}
	return func(path string, v reflect.Value, errs *multierror.Error) *multierror.Error {
		for _, ev := range e.Values {
			if ev.Value.Equal(v) {
				return errs
			}
		}
		return multierror.Append(errs, &Violation{
			Path:    path,
			Rule:    "enum",
			Message: fmt.Sprintf("%v is not a value of %s", v.Convert(e.Underlying).Interface(), s.Type),
		})
	}, nil
}

func (visitor) VisitNullable(b *derive.Builder[Func], s *shape.Shape) (Func, error) {
	elem, ok, err := b.Get(s.Nullable.Elem)
	if err != nil || !ok {
		return nil, skipOr(err)
	}
	return func(path string, v reflect.Value, errs *multierror.Error) *multierror.Error {
		if v.IsNil() {
			return errs
		}
		return elem(path, v.Elem(), errs)
	}, nil
}

func (visitor) VisitDictionary(b *derive.Builder[Func], s *shape.Shape) (Func, error) {
	d := s.Dictionary
	val, ok, err := b.Get(d.Value)
	if err != nil || !ok {
		return nil, skipOr(err)
	}
	return func(path string, v reflect.Value, errs *multierror.Error) *multierror.Error {
		d.Range(v, func(k, e reflect.Value) bool {
			errs = val(fmt.Sprintf("%s[%v]", path, k.Interface()), e, errs)
			return true
		})
		return errs
	}, nil
}

func (visitor) VisitEnumerable(b *derive.Builder[Func], s *shape.Shape) (Func, error) {
	e := s.Enumerable
	elem, ok, err := b.Get(e.Element)
	if err != nil || !ok {
		return nil, skipOr(err)
	}
	return func(path string, v reflect.Value, errs *multierror.Error) *multierror.Error {
		i := 0
		e.Range(v, func(x reflect.Value) bool {
			errs = elem(path+"["+strconv.Itoa(i)+"]", x, errs)
			i++
			return true
		})
		return errs
	}, nil
}

func (visitor) VisitTuple(b *derive.Builder[Func], s *shape.Shape) (Func, error) {
	tu := s.Tuple
	var slots []shape.Slot
	var fs []Func
	for _, slot := range tu.Slots {
		f, ok, err := b.Get(slot.Type)
		if err != nil {
			return nil, err
		}
		if ok {
			slots, fs = append(slots, slot), append(fs, f)
		}
	}
	if len(fs) == 0 {
		return nil, derive.ErrSkip
	}
	return func(path string, v reflect.Value, errs *multierror.Error) *multierror.Error {
		for i, slot := range slots {
			errs = fs[i](join(path, slot.Name), tu.Get(v, slot), errs)
		}
		return errs
	}, nil
}

type member struct {
	prop  *shape.Property
	rules []rule
	f     Func
}

func (visitor) VisitObject(b *derive.Builder[Func], s *shape.Shape) (Func, error) {
	var members []member
	for _, p := range s.Object.Properties {
		rules, err := parseRules(p)
		if err != nil {
			return nil, err
		}
		f, ok, err := b.Get(p.Type)
		if errors.Is(err, shape.ErrUnsupported) {
			ok, err = false, nil
		}
		if err != nil {
			return nil, err
		}
		if !ok {
			f = nil
		}
		if len(rules) > 0 || f != nil {
			members = append(members, member{prop: p, rules: rules, f: f})
		}
	}
	if len(members) == 0 {
		return nil, derive.ErrSkip
	}
	return func(path string, v reflect.Value, errs *multierror.Error) *multierror.Error {
		for _, m := range members {
			fv := m.prop.Get(v)
			p := join(path, m.prop.Name)
			failed := false
			for _, r := range m.rules {
				if msg := r.check(fv); msg != "" {
					errs = multierror.Append(errs, &Violation{Path: p, Rule: r.name, Message: msg})
					failed = true
				}
			}
			if !failed && m.f != nil {
				errs = m.f(p, fv, errs)
			}
		}
		return errs
	}, nil
}

func join(path, name string) string {
	if path == "" {
		return name
	}
	return path + "." + name
}

func skipOr(err error) error {
	if err != nil {
		return err
	}
	return derive.ErrSkip
}

type rule struct {
	name  string
	check func(v reflect.Value) string
}

func parseRules(p *shape.Property) ([]rule, error) {
	tag, ok := p.Tag.Lookup("validate")
	if !ok || tag == "" {
		return nil, nil
	}
	var rules []rule
	for _, part := range strings.Split(tag, ",") {
		name, arg, hasArg := strings.Cut(strings.TrimSpace(part), "=")
		switch name {
		case "required":
			rules = append(rules, rule{name, required})
		case "nonzero":
			rules = append(rules, rule{name, func(v reflect.Value) string {
				if v.IsZero() {
					return "must not be zero"
				}
				return ""
			}})
		case "min", "max":
			if !hasArg {
				return nil, fmt.Errorf("%s: rule %s needs a bound", p.Field, name)
			}
			bound, err := strconv.ParseFloat(arg, 64)
			if err != nil {
				return nil, fmt.Errorf("%s: rule %s: %w", p.Field, name, err)
			}
			r, err := boundRule(p.Type, name, bound)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", p.Field, err)
			}
			rules = append(rules, r)
		default:
			return nil, fmt.Errorf("%s: unknown validation rule %q", p.Field, name)
		}
	}
	return rules, nil
}

func required(v reflect.Value) string {
	switch v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface:
		if v.IsNil() {
			return "is required"
		}
	case reflect.String:
		if v.Len() == 0 {
			return "is required"
		}
	}
	return ""
}

func boundRule(t reflect.Type, name string, bound float64) (rule, error) {
	var measure func(reflect.Value) float64
	unit := ""
	switch t.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		measure = func(v reflect.Value) float64 { return float64(v.Int()) }
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		measure = func(v reflect.Value) float64 { return float64(v.Uint()) }
	case reflect.Float32, reflect.Float64:
		measure = func(v reflect.Value) float64 { return v.Float() }
	case reflect.String, reflect.Slice, reflect.Map, reflect.Array:
		measure = func(v reflect.Value) float64 { return float64(v.Len()) }
		unit = "length "
	default:
		return rule{}, fmt.Errorf("rule %s does not apply to %s", name, t)
	}
	bs := strconv.FormatFloat(bound, 'f', -1, 64)
	if name == "min" {
		return rule{name, func(v reflect.Value) string {
			if measure(v) < bound {
				return unit + "must be at least " + bs
			}
			return ""
		}}, nil
	}
	return rule{name, func(v reflect.Value) string {
		if measure(v) > bound {
			return unit + "must be at most " + bs
		}
		return ""
	}}, nil
}
