package language

import "github.com/vektah/gqlparser/v2/ast"

type (
	Schema              = ast.Schema
	SchemaDocument      = ast.SchemaDocument
	Definition          = ast.Definition
	DefinitionList      = ast.DefinitionList
	FieldDefinition     = ast.FieldDefinition
	FieldList           = ast.FieldList
	EnumValueDefinition = ast.EnumValueDefinition
	EnumValueList       = ast.EnumValueList
	Type                = ast.Type
	Position            = ast.Position
)

type DefinitionKind = ast.DefinitionKind

const (
	Object DefinitionKind = ast.Object
	Scalar DefinitionKind = ast.Scalar
	Enum   DefinitionKind = ast.Enum
)

// NamedType returns a reference to a named type, non-null when nonNull is
// set.
func NamedType(name string, nonNull bool) *Type {
	if nonNull {
		return ast.NonNullNamedType(name, nil)
	}
	return ast.NamedType(name, nil)
}

// ListType returns a list of elem, non-null when nonNull is set.
func ListType(elem *Type, nonNull bool) *Type {
	if nonNull {
		return ast.NonNullListType(elem, nil)
	}
	return ast.ListType(elem, nil)
}
