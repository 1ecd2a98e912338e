package protoreg

import (
	"fmt"
	"strings"

	"github.com/hanpama/typeshape/internal/modelgen"
	"github.com/jhump/protoreflect/v2/protobuilder"
	"google.golang.org/protobuf/reflect/protoreflect"
)

func (b *builder) addMessage(m *modelgen.Model) {
	pkg := b.owners[m.ID]
	name := b.declare(pkg, m)
	mb := protobuilder.NewMessage(name)
	mb.SetComments(comment(m.Doc))
	b.messageBuilders[m.ID] = mb
	b.protoTypeMap[b.fullName(pkg, name)] = m.ID
	b.fileFor(pkg).AddMessage(mb)
}

func (b *builder) addEnum(m *modelgen.Model) {
	pkg := b.owners[m.ID]
	enumName := b.declare(pkg, m)
	eb := protobuilder.NewEnum(enumName)
	eb.SetComments(comment(m.Doc))
	b.enumBuilders[m.ID] = eb
	b.protoTypeMap[b.fullName(pkg, enumName)] = m.ID

	// Add default ZERO value: <ENUM>_UNSPECIFIED = 0
	zero := protobuilder.NewEnumValue(nameProtoEnumValue(string(enumName), "UNSPECIFIED"))
	zero.SetNumber(0)
	eb.AddValue(zero)

	evbs := make([]*protobuilder.EnumValueBuilder, 0, len(m.Values))
	for _, v := range m.Values {
		value := strings.ToUpper(snakeCase(v.Name))
		if value == "UNSPECIFIED" {
			continue
		}
		evb := protobuilder.NewEnumValue(nameProtoEnumValue(string(enumName), value))
		evb.SetComments(comment(v.Doc))
		eb.AddValue(evb)
		evbs = append(evbs, evb)
	}
	allocateEnumValueNumbers(evbs)

	b.fileFor(pkg).AddEnum(eb)
}

func (b *builder) addMessageFields(m *modelgen.Model, mb *protobuilder.MessageBuilder) error {
	pkg := b.owners[m.ID]
	msgName := b.fullName(pkg, mb.Name())

	taken := make(map[protoreflect.Name]bool, len(m.Fields))
	fieldBuilders := make([]*protobuilder.FieldBuilder, 0, len(m.Fields))
	for _, field := range m.Fields {
		fieldName := nameProtoField(field.Name)
		for i := 2; taken[fieldName]; i++ {
			fieldName = protoreflect.Name(fmt.Sprintf("%s_%d", nameProtoField(field.Name), i))
		}
		taken[fieldName] = true

		rt, err := b.resolveType(pkg, mb, fieldName, field.Type)
		if err != nil {
			return fmt.Errorf("%s.%s: %w", m.ID, field.Name, err)
		}
		fb := newField(fieldName, rt)
		fb.SetComments(comment(field.Doc))
		mb.AddField(fb)
		fieldBuilders = append(fieldBuilders, fb)
		b.protoFieldMap[msgName.Append(fieldName)] = [2]string{string(m.ID), field.Name}
	}
	allocateFieldNumbers(fieldBuilders)
	return nil
}

func newField(name protoreflect.Name, rt resolvedType) *protobuilder.FieldBuilder {
	if rt.isMap() {
		return protobuilder.NewMapField(name, rt.key, rt.value)
	}
	fb := protobuilder.NewField(name, rt.fieldType)
	if rt.isOptional {
		fb.SetOptional()
	}
	if rt.isRepeated {
		fb.SetRepeated()
	}
	return fb
}

// nested adds a message named after base to mb, numbering the name when it
// is taken.
func (b *builder) nested(mb *protobuilder.MessageBuilder, base string) *protobuilder.MessageBuilder {
	name := b.reserve(mb, base)
	nmb := protobuilder.NewMessage(protoreflect.Name(name))
	mb.AddNestedMessage(nmb)
	return nmb
}

func (b *builder) reserve(mb *protobuilder.MessageBuilder, base string) string {
	taken, ok := b.nestedNames[mb]
	if !ok {
		taken = make(map[string]bool)
		b.nestedNames[mb] = taken
	}
	name := base
	for i := 2; taken[name]; i++ {
		name = fmt.Sprintf("%s%d", base, i)
	}
	taken[name] = true
	return name
}

// wrap moves a repeated or map field type into a single field message so
// it can be repeated itself.
func (b *builder) wrap(mb *protobuilder.MessageBuilder, field protoreflect.Name, rt resolvedType) resolvedType {
	nmb := b.nested(mb, nameNested(field, "List"))
	fb := newField("items", rt)
	fb.SetNumber(1)
	nmb.AddField(fb)
	return resolvedType{fieldType: protobuilder.FieldTypeMessage(nmb), message: true}
}

// entries describes a dictionary as a repeated message of key and value
// fields, for keys proto maps do not accept.
func (b *builder) entries(mb *protobuilder.MessageBuilder, field protoreflect.Name, key, value resolvedType) resolvedType {
	nmb := b.nested(mb, nameNested(field, "Entry"))
	kf := newField("key", key)
	kf.SetNumber(1)
	vf := newField("value", value)
	vf.SetNumber(2)
	nmb.AddField(kf)
	nmb.AddField(vf)
	return resolvedType{fieldType: protobuilder.FieldTypeMessage(nmb), message: true, isRepeated: true}
}
