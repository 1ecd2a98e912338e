package protoreg

import (
	"fmt"

	"github.com/hanpama/typeshape/internal/modelgen"
	"github.com/hanpama/typeshape/internal/shape"
	"github.com/jhump/protoreflect/v2/protobuilder"
	"google.golang.org/protobuf/reflect/protoreflect"
)

type resolvedType struct {
	isRepeated bool
	isOptional bool
	fieldType  *protobuilder.FieldType

	// scalar is the kind of a scalar or enum field type, zero for messages.
	scalar  protoreflect.Kind
	message bool
	// key and value are set for proto map fields.
	key, value *protobuilder.FieldType
}

func (rt resolvedType) isMap() bool { return rt.key != nil }

// resolveType maps the type of a field of mb to a proto field type. Wrapper
// and entry messages it needs are nested in mb and named after field.
func (b *builder) resolveType(pkg string, mb *protobuilder.MessageBuilder, field protoreflect.Name, id modelgen.TypeID) (resolvedType, error) {
	m, ok := b.models[id]
	if !ok {
		return resolvedType{}, fmt.Errorf("%w: %s", ErrUnknownModel, id)
	}
	switch m.Kind {
	case shape.KindNone:
		kind, ok := b.scalarKind(m)
		if !ok {
			return resolvedType{}, fmt.Errorf("%w: %s", ErrUnsupported, id)
		}
		return resolvedType{fieldType: protobuilder.FieldTypeScalar(kind), scalar: kind}, nil
	case shape.KindEnum:
		if eb, ok := b.enumBuilders[id]; ok {
			b.depend(pkg, b.owners[id])
			return resolvedType{fieldType: protobuilder.FieldTypeEnum(eb), scalar: protoreflect.EnumKind}, nil
		}
		return b.resolveType(pkg, mb, field, m.Elem)
	case shape.KindObject, shape.KindTuple:
		b.depend(pkg, b.owners[id])
		return resolvedType{fieldType: protobuilder.FieldTypeMessage(b.messageBuilders[id]), message: true}, nil
	}

	if b.resolving[id] {
		return resolvedType{}, fmt.Errorf("%w: %s contains itself without a message in between", ErrUnsupported, id)
	}
	b.resolving[id] = true
	defer delete(b.resolving, id)

	switch m.Kind {
	case shape.KindNullable:
		rt, err := b.resolveType(pkg, mb, field, m.Elem)
		if err != nil {
			return rt, err
		}
		if rt.scalar != 0 && !rt.isRepeated && !rt.isMap() {
			rt.isOptional = true
		}
		return rt, nil
	case shape.KindEnumerable:
		rt, err := b.resolveType(pkg, mb, field, m.Elem)
		if err != nil {
			return rt, err
		}
		if rt.isRepeated || rt.isMap() {
			rt = b.wrap(mb, field, rt)
		}
		rt.isOptional = false
		rt.isRepeated = true
		return rt, nil
	case shape.KindDictionary:
		key, err := b.resolveType(pkg, mb, field, m.Key)
		if err != nil {
			return key, err
		}
		value, err := b.resolveType(pkg, mb, field, m.Value)
		if err != nil {
			return value, err
		}
		if mapKeys[key.scalar] && !key.isOptional && !key.isRepeated &&
			!value.isOptional && !value.isRepeated && !value.isMap() {
			b.reserve(mb, nameNested(field, "Entry"))
			return resolvedType{key: key.fieldType, value: value.fieldType}, nil
		}
		return b.entries(mb, field, key, value), nil
	}
	return resolvedType{}, fmt.Errorf("%w: %s of kind %s", ErrUnsupported, id, m.Kind)
}

func (b *builder) scalarKind(m *modelgen.Model) (protoreflect.Kind, bool) {
	if protoType, ok := b.scalarMapping[m.ID]; ok {
		return scalars[protoType], true
	}
	k, ok := basics[m.Basic]
	return k, ok
}

// basics maps basic type names and builtin leaf IDs to proto scalars. The
// leaves use the representation the JSON codec gives them.
var basics = map[string]protoreflect.Kind{
	"bool":    protoreflect.BoolKind,
	"string":  protoreflect.StringKind,
	"int":     protoreflect.Int64Kind,
	"int64":   protoreflect.Int64Kind,
	"int32":   protoreflect.Int32Kind,
	"rune":    protoreflect.Int32Kind,
	"int16":   protoreflect.Int32Kind,
	"int8":    protoreflect.Int32Kind,
	"uint":    protoreflect.Uint64Kind,
	"uint64":  protoreflect.Uint64Kind,
	"uintptr": protoreflect.Uint64Kind,
	"uint32":  protoreflect.Uint32Kind,
	"uint16":  protoreflect.Uint32Kind,
	"uint8":   protoreflect.Uint32Kind,
	"byte":    protoreflect.Uint32Kind,
	"float32": protoreflect.FloatKind,
	"float64": protoreflect.DoubleKind,

	"[]byte":                   protoreflect.BytesKind,
	"[]uint8":                  protoreflect.BytesKind,
	"encoding/json.RawMessage": protoreflect.BytesKind,
	"math/big.Int":             protoreflect.StringKind,
	"math/big.Float":           protoreflect.StringKind,
	"time.Time":                protoreflect.StringKind,
	"time.Duration":            protoreflect.Int64Kind,
}

var mapKeys = map[protoreflect.Kind]bool{
	protoreflect.BoolKind:     true,
	protoreflect.StringKind:   true,
	protoreflect.Int32Kind:    true,
	protoreflect.Sint32Kind:   true,
	protoreflect.Sfixed32Kind: true,
	protoreflect.Fixed32Kind:  true,
	protoreflect.Uint32Kind:   true,
	protoreflect.Int64Kind:    true,
	protoreflect.Sint64Kind:   true,
	protoreflect.Sfixed64Kind: true,
	protoreflect.Fixed64Kind:  true,
	protoreflect.Uint64Kind:   true,
}

var scalars = map[string]protoreflect.Kind{
	protoreflect.BoolKind.String():     protoreflect.BoolKind,
	protoreflect.Int32Kind.String():    protoreflect.Int32Kind,
	protoreflect.Sint32Kind.String():   protoreflect.Sint32Kind,
	protoreflect.Uint32Kind.String():   protoreflect.Uint32Kind,
	protoreflect.Int64Kind.String():    protoreflect.Int64Kind,
	protoreflect.Sint64Kind.String():   protoreflect.Sint64Kind,
	protoreflect.Uint64Kind.String():   protoreflect.Uint64Kind,
	protoreflect.Sfixed32Kind.String(): protoreflect.Sfixed32Kind,
	protoreflect.Fixed32Kind.String():  protoreflect.Fixed32Kind,
	protoreflect.FloatKind.String():    protoreflect.FloatKind,
	protoreflect.Sfixed64Kind.String(): protoreflect.Sfixed64Kind,
	protoreflect.Fixed64Kind.String():  protoreflect.Fixed64Kind,
	protoreflect.DoubleKind.String():   protoreflect.DoubleKind,
	protoreflect.StringKind.String():   protoreflect.StringKind,
	protoreflect.BytesKind.String():    protoreflect.BytesKind,
}
