package language_test

import (
	"testing"

	"github.com/hanpama/typeshape/internal/language"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatRoundTrip(t *testing.T) {
	doc := &language.SchemaDocument{
		Definitions: language.DefinitionList{
			{
				Kind:        language.Object,
				Name:        "Node",
				Description: "Node links to the next node.",
				Fields: language.FieldList{
					{Name: "value", Type: language.NamedType("Int", true)},
					{Name: "next", Type: language.NamedType("Node", false)},
					{Name: "tags", Type: language.ListType(language.NamedType("String", true), true)},
				},
			},
		},
	}
	sdl := language.Format(doc)
	assert.Contains(t, sdl, "type Node {")
	assert.Contains(t, sdl, "value: Int!")
	assert.Contains(t, sdl, "tags: [String!]!")

	parsed, err := language.ParseSchema("node.graphql", sdl)
	require.NoError(t, err)
	require.Len(t, parsed.Definitions, 1)
	assert.Equal(t, "Node links to the next node.", parsed.Definitions[0].Description)

	schema, err := language.LoadSchema("node.graphql", sdl)
	require.NoError(t, err)
	assert.Equal(t, language.Object, schema.Types["Node"].Kind)
}

func TestLoadSchemaRejectsUnknownTypes(t *testing.T) {
	_, err := language.LoadSchema("bad.graphql", "type A { b: Missing }")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Missing")
}

func TestParseSchemaSyntaxError(t *testing.T) {
	_, err := language.ParseSchema("bad.graphql", "type {")
	assert.Error(t, err)
}
