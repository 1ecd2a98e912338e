package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/hanpama/typeshape/internal/config"
	"github.com/hanpama/typeshape/internal/shape"
	"github.com/hashicorp/go-multierror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAppliesDefaults(t *testing.T) {
	c, err := config.Parse([]byte("roots: [example.com/shop.Order]\n"))
	require.NoError(t, err)

	want := &config.Config{
		Packages: []string{"./..."},
		Dir:      ".",
		Roots:    []string{"example.com/shop.Order"},
		Policy:   config.Policy{TupleArity: 7, CtorParamMatch: "fold", SetterMatch: "exact"},
		Telemetry: config.Telemetry{
			Service: "typeshape",
		},
	}
	if diff := cmp.Diff(want, c); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
	require.NoError(t, c.Validate())
	assert.Equal(t, shape.DefaultPolicy(), c.ShapePolicy())
}

func TestParseFullDocument(t *testing.T) {
	src := `
packages: [./models, ./api]
dir: project
scope: example.com/shop/gen
kinds:
  example.com/shop.Bag: Enumerable
leaves: [example.com/shop.Money]
policy:
  tupleArity: 3
  ctorParamMatch: exact
  setterMatch: fold
output:
  proto: gen/proto
  sdl: gen/schema.graphql
  models: gen/models.json
  protoPackage: acme
telemetry:
  endpoint: localhost:4317
  service: shopgen
`
	c, err := config.Parse([]byte(src))
	require.NoError(t, err)
	require.NoError(t, c.Validate())

	assert.Equal(t, []string{"./models", "./api"}, c.Packages)
	assert.Equal(t, "project", c.Dir)
	assert.Equal(t, "gen/schema.graphql", c.Output.SDL)
	assert.Equal(t, "acme", c.Output.ProtoPackage)
	assert.Equal(t, "shopgen", c.Telemetry.Service)
	assert.Equal(t, shape.Policy{TupleArity: 3, CtorParamMatch: shape.MatchExact, SetterMatch: shape.MatchFold}, c.ShapePolicy())
	assert.Len(t, c.ProviderOptions(), 3)
}

func TestParseRejectsUnknownKeys(t *testing.T) {
	_, err := config.Parse([]byte("pakages: [./...]\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pakages")
}

func TestParseEmptyDocument(t *testing.T) {
	c, err := config.Parse([]byte("# nothing\n"))
	require.NoError(t, err)
	assert.Equal(t, config.Default(), c)
}

func TestValidateReportsEveryProblem(t *testing.T) {
	c := config.Default()
	c.Policy.TupleArity = -1
	c.Policy.CtorParamMatch = "loose"
	c.Policy.SetterMatch = "strict"
	c.Roots = []string{"example.com/shop.Order", "Order", "example.com/shop"}
	c.Kinds = map[string]string{"example.com/shop.Bag": "Set"}
	c.Output.ProtoPackage = "acme"

	err := c.Validate()
	var merr *multierror.Error
	require.True(t, errors.As(err, &merr))

	var got []string
	for _, e := range merr.Errors {
		got = append(got, e.Error())
	}
	want := []string{
		"policy.tupleArity must be positive, got -1",
		`policy.ctorParamMatch: unknown match "loose" (want exact or fold)`,
		`policy.setterMatch: unknown match "strict" (want exact or fold)`,
		`roots[1]: "Order" is not a qualified type name`,
		`roots[2]: "example.com/shop" is not a qualified type name`,
		`kinds[example.com/shop.Bag]: unknown kind "Set"`,
		"output.protoPackage is set but output.proto is not",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("problems mismatch (-want +got):\n%s", diff)
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "shape.yaml")
	require.NoError(t, os.WriteFile(path, []byte("output:\n  sdl: out.graphql\n"), 0o644))

	c, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "out.graphql", c.Output.SDL)

	_, err = config.Load(filepath.Join(dir, "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	require.NoError(t, os.WriteFile(path, []byte("roots: {"), 0o644))
	_, err = config.Load(path)
	assert.ErrorContains(t, err, "parse config")
}
