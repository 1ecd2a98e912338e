package sdl

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/hanpama/typeshape/internal/modelgen"
)

var (
	qualifier = regexp.MustCompile(`(?:[\w.\-~]+/)*[\w\-~]+\.`)
	nonName   = regexp.MustCompile(`[^A-Za-z0-9_]+`)
)

const mapScalar = "Map"

var builtinScalars = []string{"String", "Int", "Float", "Boolean", "ID"}

var basics = map[string]string{
	"bool":    "Boolean",
	"string":  "String",
	"int8":    "Int",
	"int16":   "Int",
	"int32":   "Int",
	"rune":    "Int",
	"uint8":   "Int",
	"byte":    "Int",
	"uint16":  "Int",
	"float32": "Float",
	"float64": "Float",
}

// leafScalars covers basic types wider than Int and the builtin leaves.
var leafScalars = []struct {
	name string
	doc  string
	ids  map[string]bool
}{
	{"Int64", "Int64 is a 64-bit signed integer.", map[string]bool{"int": true, "int64": true, "uint32": true}},
	{"Uint64", "Uint64 is a 64-bit unsigned integer.", map[string]bool{"uint": true, "uint64": true, "uintptr": true}},
	{"Time", "Time is an RFC 3339 timestamp.", map[string]bool{"time.Time": true}},
	{"Duration", "Duration is a number of nanoseconds.", map[string]bool{"time.Duration": true}},
	{"Bytes", "Bytes is base64 encoded binary data.", map[string]bool{"[]byte": true, "[]uint8": true}},
	{"JSON", "JSON is an arbitrary JSON value.", map[string]bool{"encoding/json.RawMessage": true}},
	{"BigInt", "BigInt is an arbitrary precision integer in decimal notation.", map[string]bool{"math/big.Int": true}},
	{"BigFloat", "BigFloat is an arbitrary precision number in decimal notation.", map[string]bool{"math/big.Float": true}},
}

// typeName names the GraphQL type of m. Instantiated generics and anonymous
// types are named after their type string without qualifiers.
func typeName(m *modelgen.Model) string {
	if m.Named() && !strings.ContainsRune(string(m.ID), '[') {
		return m.Name
	}
	name := qualifier.ReplaceAllString(string(m.ID), "")
	return exportName(name)
}

// fieldName lower-cases the leading word of a Go field name: ID becomes id,
// UserID userID and HTTPServer httpServer.
func fieldName(goName string) string {
	rs := []rune(nonName.ReplaceAllString(goName, "_"))
	n := 0
	for n < len(rs) && unicode.IsUpper(rs[n]) {
		n++
	}
	if n > 1 && n < len(rs) && unicode.IsLower(rs[n]) {
		n--
	}
	for i := 0; i < n; i++ {
		rs[i] = unicode.ToLower(rs[i])
	}
	return string(rs)
}

// enumValueName converts a Go constant name to SCREAMING_SNAKE_CASE.
func enumValueName(goName string) string {
	rs := []rune(goName)
	var sb strings.Builder
	for i, r := range rs {
		if i > 0 && unicode.IsUpper(r) {
			prev := rs[i-1]
			nextLower := i+1 < len(rs) && unicode.IsLower(rs[i+1])
			if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower) {
				sb.WriteByte('_')
			}
		}
		sb.WriteRune(unicode.ToUpper(r))
	}
	name := nonName.ReplaceAllString(sb.String(), "_")
	switch name {
	case "TRUE", "FALSE", "NULL":
		name += "_"
	}
	return name
}
