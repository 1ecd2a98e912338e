package shape

import (
	"fmt"
	"reflect"
	"strings"
)

var errorType = reflect.TypeFor[error]()

// Property is an accessible member of an object. Struct fields tagged
// `shape:"-"` are skipped, `shape:"name"` renames the property and
// `shape:",readonly"` makes it settable only through a constructor.
type Property struct {
	Name     string
	Field    string
	Index    []int
	Type     reflect.Type
	Tag      reflect.StructTag
	Position int
	CanGet   bool
	CanSet   bool
}

// Get reads the property from obj, which must be a struct value.
func (p *Property) Get(obj reflect.Value) reflect.Value {
	return obj.FieldByIndex(p.Index)
}

// Set writes v into obj, which must be addressable.
func (p *Property) Set(obj, v reflect.Value) {
	obj.FieldByIndex(p.Index).Set(v)
}

// Parameter is one constructor argument. Property is the object member the
// argument initializes, or nil when no property matches the parameter name.
type Parameter struct {
	Name     string
	Position int
	Type     reflect.Type
	Property *Property
}

// Constructor is a registered function producing the object type.
type Constructor struct {
	Target reflect.Type
	Params []*Parameter

	fn         reflect.Value
	returnsPtr bool
	returnsErr bool
	order      int
}

func newConstructor(fn any, names []string) (*Constructor, error) {
	v := reflect.ValueOf(fn)
	if v.Kind() != reflect.Func {
		return nil, fmt.Errorf("%T is not a function", fn)
	}
	ft := v.Type()
	if ft.IsVariadic() {
		return nil, fmt.Errorf("variadic constructor %s", ft)
	}
	target, err := constructorTarget(ft)
	if err != nil {
		return nil, err
	}
	if len(names) != ft.NumIn() {
		return nil, fmt.Errorf("constructor %s has %d parameters, %d names given", ft, ft.NumIn(), len(names))
	}
	c := &Constructor{
		Target:     target,
		fn:         v,
		returnsPtr: ft.Out(0).Kind() == reflect.Pointer,
		returnsErr: ft.NumOut() == 2,
	}
	for i := 0; i < ft.NumIn(); i++ {
		c.Params = append(c.Params, &Parameter{Name: names[i], Position: i, Type: ft.In(i)})
	}
	return c, nil
}

func constructorTarget(ft reflect.Type) (reflect.Type, error) {
	if ft.Kind() != reflect.Func {
		return nil, fmt.Errorf("%s is not a function", ft)
	}
	switch ft.NumOut() {
	case 1:
	case 2:
		if ft.Out(1) != errorType {
			return nil, fmt.Errorf("second result of %s must be error", ft)
		}
	default:
		return nil, fmt.Errorf("constructor %s must return one value and an optional error", ft)
	}
	out := ft.Out(0)
	if out.Kind() == reflect.Pointer {
		out = out.Elem()
	}
	return out, nil
}

// Invoke calls the constructor. Invalid arguments are replaced by the zero
// value of the parameter type. The result is always a value of Target.
func (c *Constructor) Invoke(args []reflect.Value) (reflect.Value, error) {
	if len(args) != len(c.Params) {
		return reflect.Value{}, fmt.Errorf("constructor of %s takes %d arguments, got %d", c.Target, len(c.Params), len(args))
	}
	in := make([]reflect.Value, len(args))
	for i, a := range args {
		if !a.IsValid() {
			a = reflect.Zero(c.Params[i].Type)
		}
		in[i] = a
	}
	return unpackResult(c.fn.Call(in), c.returnsPtr, c.returnsErr, c.Target)
}

func unpackResult(out []reflect.Value, ptr, withErr bool, target reflect.Type) (reflect.Value, error) {
	if withErr && !out[1].IsNil() {
		return reflect.Value{}, out[1].Interface().(error)
	}
	v := out[0]
	if ptr {
		if v.IsNil() {
			return reflect.Value{}, fmt.Errorf("constructor of %s returned nil", target)
		}
		v = v.Elem()
	}
	return v, nil
}

// Object is the shape of a struct with accessible members or constructors.
type Object struct {
	Properties   []*Property
	Constructors []*Constructor

	typ    reflect.Type
	policy Policy
	best   *Constructor
}

// Best returns the constructor with the most parameters, the earliest
// registered winning ties. It is nil when none are registered.
func (o *Object) Best() *Constructor { return o.best }

// Property finds a settable-member match for name under the setter policy.
func (o *Object) Property(name string) *Property {
	for _, p := range o.Properties {
		if o.policy.SetterMatch.Equal(p.Name, name) {
			return p
		}
	}
	return nil
}

// Parameter finds the parameter of c matching name under the constructor
// parameter policy.
func (o *Object) Parameter(c *Constructor, name string) *Parameter {
	for _, param := range c.Params {
		if o.policy.CtorParamMatch.Equal(param.Name, name) {
			return param
		}
	}
	return nil
}

// New returns an addressable zero value of the object type.
func (o *Object) New() reflect.Value {
	return reflect.New(o.typ).Elem()
}

func (p *Provider) objectOf(t reflect.Type) *Object {
	o := &Object{typ: t, policy: p.policy}
	for _, f := range reflect.VisibleFields(t) {
		if !f.IsExported() {
			continue
		}
		if f.Anonymous && f.Type.Kind() == reflect.Struct {
			continue
		}
		if len(f.Index) > 1 && throughPointer(t, f.Index) {
			continue
		}
		name, readonly, skip := ParseTag(f.Tag.Get("shape"))
		if skip {
			continue
		}
		if name == "" {
			name = f.Name
		}
		o.Properties = append(o.Properties, &Property{
			Name:     name,
			Field:    f.Name,
			Index:    f.Index,
			Type:     f.Type,
			Tag:      f.Tag,
			Position: len(o.Properties),
			CanGet:   true,
			CanSet:   !readonly,
		})
	}

	o.Constructors = p.ctors[t]
	for _, c := range o.Constructors {
		if o.best == nil || len(c.Params) > len(o.best.Params) {
			o.best = c
		}
		for _, param := range c.Params {
			for _, prop := range o.Properties {
				if p.policy.CtorParamMatch.Equal(prop.Name, param.Name) {
					param.Property = prop
					break
				}
			}
		}
	}
	return o
}

func throughPointer(t reflect.Type, index []int) bool {
	for _, i := range index[:len(index)-1] {
		f := t.Field(i)
		if f.Type.Kind() == reflect.Pointer {
			return true
		}
		t = f.Type
	}
	return false
}

// ParseTag splits the value of a `shape` struct tag into the property name
// override and its options.
func ParseTag(tag string) (name string, readonly, skip bool) {
	name, opts, _ := strings.Cut(tag, ",")
	if name == "-" && opts == "" {
		return "", false, true
	}
	return name, hasOption(opts, "readonly"), false
}

func hasOption(opts, want string) bool {
	for opts != "" {
		var opt string
		opt, opts, _ = strings.Cut(opts, ",")
		if opt == want {
			return true
		}
	}
	return false
}
