package validate_test

import (
	"errors"
	"reflect"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/hanpama/typeshape/internal/shape"
	"github.com/hanpama/typeshape/internal/validate"
	"github.com/hashicorp/go-multierror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type Level int

const (
	Debug Level = iota
	Info
)

func (l Level) String() string {
	if l == Info {
		return "INFO"
	}
	return "DEBUG"
}

type User struct {
	Name string `validate:"required"`
	Age  int    `validate:"min=0,max=150"`
}

type Team struct {
	Lead    *User `validate:"required"`
	Members []User
	ByRole  map[string]User
	Level   Level
	Labels  []string `validate:"max=2"`
	Budget  float64  `validate:"nonzero"`
}

type Plain struct {
	Name string
	Next *Plain
}

type Node struct {
	Value int `validate:"min=1"`
	Next  *Node
}

type BadTag struct {
	Name string `validate:"email"`
}

func violations(t *testing.T, err error) []string {
	t.Helper()
	var merr *multierror.Error
	require.True(t, errors.As(err, &merr), "got %v", err)
	var out []string
	for _, e := range merr.Errors {
		var v *validate.Violation
		require.True(t, errors.As(e, &v))
		out = append(out, v.Rule+" "+v.Error())
	}
	return out
}

func TestValidateReportsEveryViolation(t *testing.T) {
	c := validate.New(shape.NewProvider(shape.WithEnum(Debug, Info)))
	team := Team{
		Members: []User{{Name: "kim", Age: 30}, {Age: 200}},
		ByRole:  map[string]User{"ops": {Name: "lee", Age: -1}},
		Level:   Level(5),
		Labels:  []string{"a", "b", "c"},
	}

	want := []string{
		"required Lead: is required",
		"required Members[1].Name: is required",
		"max Members[1].Age: must be at most 150",
		"min ByRole[ops].Age: must be at least 0",
		"enum Level: 5 is not a value of validate_test.Level",
		"max Labels: length must be at most 2",
		"nonzero Budget: must not be zero",
	}
	if diff := cmp.Diff(want, violations(t, validate.Validate(c, team))); diff != "" {
		t.Errorf("violations mismatch (-want +got):\n%s", diff)
	}

	team = Team{Lead: &User{Name: "kim"}, Level: Info, Budget: 1}
	assert.NoError(t, validate.Validate(c, team))
}

func TestValidateNestedPointer(t *testing.T) {
	c := validate.New(shape.NewProvider())
	err := validate.Validate(c, Team{Lead: &User{Age: 151}, Budget: 1})
	assert.Equal(t, []string{
		"required Lead.Name: is required",
		"max Lead.Age: must be at most 150",
	}, violations(t, err))
}

func TestTypesWithoutRulesAreSkipped(t *testing.T) {
	c := validate.New(shape.NewProvider())
	assert.NoError(t, validate.Validate(c, Plain{Next: &Plain{}}))

	_, ok, err := c.Get(reflect.TypeFor[Plain]())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCyclicEdgesAreNotFollowed(t *testing.T) {
	c := validate.New(shape.NewProvider())

	err := validate.Validate(c, Node{Value: 0})
	assert.Equal(t, []string{"min Value: must be at least 1"}, violations(t, err))

	assert.NoError(t, validate.Validate(c, Node{Value: 1, Next: &Node{Value: 0}}))
}

func TestUnknownRule(t *testing.T) {
	c := validate.New(shape.NewProvider())
	err := validate.Validate(c, BadTag{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown validation rule "email"`)
}

type Hook struct {
	Name     string `validate:"required"`
	Callback func()
	Handlers []func()
}

func TestUnsupportedPropertiesAreIgnored(t *testing.T) {
	c := validate.New(shape.NewProvider())
	err := validate.Validate(c, Hook{Callback: func() {}})
	assert.Equal(t, []string{"required Name: is required"}, violations(t, err))

	assert.NoError(t, validate.Validate(c, Hook{Name: "on-save"}))
}
