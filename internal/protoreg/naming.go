package protoreg

import (
	"path"
	"regexp"
	"strings"
	"unicode"

	"github.com/hanpama/typeshape/internal/modelgen"
	"google.golang.org/protobuf/reflect/protoreflect"
)

var (
	qualifier = regexp.MustCompile(`(?:[\w.\-~]+/)*[\w\-~]+\.`)
	nonIdent  = regexp.MustCompile(`[^A-Za-z0-9_]+`)
)

// isInstance reports whether m is an instantiated generic type.
func isInstance(m *modelgen.Model) bool {
	return strings.ContainsRune(string(m.ID), '[')
}

// nameProtoType names the message or enum of m. Instantiated generics and
// anonymous types are named after their type string without qualifiers,
// for example Pair_int_string.
func nameProtoType(m *modelgen.Model) string {
	if m.Named() && !isInstance(m) {
		return m.Name
	}
	name := qualifier.ReplaceAllString(string(m.ID), "")
	name = strings.Trim(nonIdent.ReplaceAllString(name, "_"), "_")
	if name == "" {
		return "Anonymous"
	}
	return capitalize(name)
}

func nameProtoField(goName string) protoreflect.Name {
	return protoreflect.Name(snakeCase(goName))
}

func nameProtoEnumValue(enumName string, value string) protoreflect.Name {
	prefix := strings.ToUpper(snakeCase(enumName))
	return protoreflect.Name(prefix + "_" + value)
}

// nameNested names a message nested for field, e.g. GridList for grid.
func nameNested(field protoreflect.Name, suffix string) string {
	var sb strings.Builder
	for _, part := range strings.Split(string(field), "_") {
		sb.WriteString(capitalize(part))
	}
	sb.WriteString(suffix)
	return sb.String()
}

// nameProtoPackage turns a Go import path into a proto package name:
// github.com/acme/shop-api becomes github.com.acme.shop_api.
func nameProtoPackage(prefix, pkgPath string) protoreflect.FullName {
	if pkgPath == "" {
		pkgPath = "anonymous"
	}
	var parts []string
	if prefix != "" {
		parts = append(parts, prefix)
	}
	for _, seg := range strings.FieldsFunc(pkgPath, func(r rune) bool { return r == '/' || r == '.' }) {
		seg = nonIdent.ReplaceAllString(seg, "_")
		if seg[0] >= '0' && seg[0] <= '9' {
			seg = "_" + seg
		}
		parts = append(parts, seg)
	}
	return protoreflect.FullName(strings.Join(parts, "."))
}

// nameProtoFile places the file of a Go package under its import path, named
// after the last path element.
func nameProtoFile(pkgPath string) string {
	if pkgPath == "" {
		return "anonymous.proto"
	}
	return path.Join(pkgPath, path.Base(pkgPath)+".proto")
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// snakeCase converts a string from CamelCase or PascalCase to snake_case.
// Runs of capitals are kept together: UserID becomes user_id and
// HTTPServer becomes http_server.
func snakeCase(s string) string {
	rs := []rune(s)
	var sb strings.Builder
	for i, r := range rs {
		if i > 0 && unicode.IsUpper(r) {
			prev := rs[i-1]
			nextLower := i+1 < len(rs) && unicode.IsLower(rs[i+1])
			if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower) {
				sb.WriteByte('_')
			}
		}
		sb.WriteRune(unicode.ToLower(r))
	}
	return sb.String()
}
