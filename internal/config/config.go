// Package config reads the typeshape project file.
//
//	packages: ["./..."]
//	roots: ["example.com/shop.Order"]
//	policy:
//	  tupleArity: 7
//	  ctorParamMatch: fold
//	  setterMatch: exact
//	output:
//	  proto: gen/proto
//	  sdl: gen/schema.graphql
//	telemetry:
//	  endpoint: localhost:4317
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/hanpama/typeshape/internal/shape"
	"github.com/hanpama/typeshape/internal/typesys"
	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

const (
	DefaultFile    = "typeshape.yaml"
	DefaultService = "typeshape"
)

type Config struct {
	// Packages are go/packages patterns resolved from Dir.
	Packages []string `yaml:"packages"`
	Dir      string   `yaml:"dir,omitempty"`
	// Roots are qualified type names ("pkgpath.Name"). Every named type of
	// the loaded packages is included when empty.
	Roots []string `yaml:"roots,omitempty"`
	Scope string   `yaml:"scope,omitempty"`

	// Kinds overrides the classification of types by ID.
	Kinds  map[string]string `yaml:"kinds,omitempty"`
	Leaves []string          `yaml:"leaves,omitempty"`

	Policy    Policy    `yaml:"policy"`
	Output    Output    `yaml:"output"`
	Telemetry Telemetry `yaml:"telemetry"`
}

type Policy struct {
	TupleArity     int    `yaml:"tupleArity,omitempty"`
	CtorParamMatch string `yaml:"ctorParamMatch,omitempty"`
	SetterMatch    string `yaml:"setterMatch,omitempty"`
}

type Output struct {
	Proto        string `yaml:"proto,omitempty"`
	SDL          string `yaml:"sdl,omitempty"`
	Models       string `yaml:"models,omitempty"`
	ProtoPackage string `yaml:"protoPackage,omitempty"`
}

type Telemetry struct {
	Endpoint string `yaml:"endpoint,omitempty"`
	Service  string `yaml:"service,omitempty"`
}

// Default returns a configuration loading the packages below the working
// directory.
func Default() *Config {
	c := &Config{}
	c.applyDefaults()
	return c
}

// Load reads path and applies defaults. A missing file is not an error when
// path is the default file name; the defaults are returned instead.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && path == DefaultFile {
			logrus.Debugf("no %s found, using defaults", DefaultFile)
			return Default(), nil
		}
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	logrus.Debugf("loaded config from %s", path)
	return c, nil
}

// Parse decodes a YAML document and applies defaults. Unknown keys are
// rejected.
func Parse(data []byte) (*Config, error) {
	c := &Config{}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	c.applyDefaults()
	return c, nil
}

func (c *Config) applyDefaults() {
	if len(c.Packages) == 0 {
		c.Packages = []string{"./..."}
	}
	if c.Dir == "" {
		c.Dir = "."
	}
	def := shape.DefaultPolicy()
	if c.Policy.TupleArity == 0 {
		c.Policy.TupleArity = def.TupleArity
	}
	if c.Policy.CtorParamMatch == "" {
		c.Policy.CtorParamMatch = def.CtorParamMatch.String()
	}
	if c.Policy.SetterMatch == "" {
		c.Policy.SetterMatch = def.SetterMatch.String()
	}
	if c.Telemetry.Service == "" {
		c.Telemetry.Service = DefaultService
	}
}

// Validate reports every problem of the configuration at once.
func (c *Config) Validate() error {
	var errs *multierror.Error
	if c.Policy.TupleArity < 1 {
		errs = multierror.Append(errs, fmt.Errorf("policy.tupleArity must be positive, got %d", c.Policy.TupleArity))
	}
	if _, ok := shape.ParseMatch(c.Policy.CtorParamMatch); !ok {
		errs = multierror.Append(errs, fmt.Errorf("policy.ctorParamMatch: unknown match %q (want exact or fold)", c.Policy.CtorParamMatch))
	}
	if _, ok := shape.ParseMatch(c.Policy.SetterMatch); !ok {
		errs = multierror.Append(errs, fmt.Errorf("policy.setterMatch: unknown match %q (want exact or fold)", c.Policy.SetterMatch))
	}
	for i, root := range c.Roots {
		if !qualified(root) {
			errs = multierror.Append(errs, fmt.Errorf("roots[%d]: %q is not a qualified type name", i, root))
		}
	}
	for _, id := range sortedKeys(c.Kinds) {
		if _, ok := shape.ParseKind(c.Kinds[id]); !ok {
			errs = multierror.Append(errs, fmt.Errorf("kinds[%s]: unknown kind %q", id, c.Kinds[id]))
		}
	}
	if c.Output.ProtoPackage != "" && c.Output.Proto == "" {
		errs = multierror.Append(errs, errors.New("output.protoPackage is set but output.proto is not"))
	}
	return errs.ErrorOrNil()
}

// ShapePolicy converts the policy section. The configuration must be valid.
func (c *Config) ShapePolicy() shape.Policy {
	ctor, _ := shape.ParseMatch(c.Policy.CtorParamMatch)
	setter, _ := shape.ParseMatch(c.Policy.SetterMatch)
	return shape.Policy{
		TupleArity:     c.Policy.TupleArity,
		CtorParamMatch: ctor,
		SetterMatch:    setter,
	}
}

// ProviderOptions returns the typesys options the configuration implies.
func (c *Config) ProviderOptions() []typesys.Option {
	opts := []typesys.Option{typesys.WithPolicy(c.ShapePolicy())}
	for _, id := range sortedKeys(c.Kinds) {
		k, _ := shape.ParseKind(c.Kinds[id])
		opts = append(opts, typesys.WithKind(id, k))
	}
	for _, id := range c.Leaves {
		opts = append(opts, typesys.WithLeaf(id))
	}
	return opts
}

// qualified reports whether s looks like "pkgpath.Name".
func qualified(s string) bool {
	dot := -1
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == '.' {
			dot = i
			break
		}
		if s[i] == '/' {
			return false
		}
	}
	return dot > 0 && dot < len(s)-1
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
