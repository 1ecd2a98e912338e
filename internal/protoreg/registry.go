package protoreg

import (
	"github.com/hanpama/typeshape/internal/modelgen"
	"google.golang.org/protobuf/reflect/protoreflect"
)

// Registry holds the built files and indexes their declarations by the
// models they were generated from.
type Registry struct {
	files    []protoreflect.FileDescriptor
	messages map[modelgen.TypeID]protoreflect.MessageDescriptor
	enums    map[modelgen.TypeID]protoreflect.EnumDescriptor
	// fields is keyed by model ID and Go field name
	fields map[[2]string]protoreflect.FieldDescriptor
}

// Files returns the file descriptors ordered by Go package path.
func (r *Registry) Files() []protoreflect.FileDescriptor {
	return r.files
}

// Message returns the message generated for an object or tuple model.
func (r *Registry) Message(id modelgen.TypeID) protoreflect.MessageDescriptor {
	return r.messages[id]
}

// Enum returns the enum generated for an enum model.
func (r *Registry) Enum(id modelgen.TypeID) protoreflect.EnumDescriptor {
	return r.enums[id]
}

// Field returns the proto field generated for a field of a model.
func (r *Registry) Field(id modelgen.TypeID, field string) protoreflect.FieldDescriptor {
	return r.fields[[2]string{string(id), field}]
}
