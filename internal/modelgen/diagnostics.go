package modelgen

import (
	"fmt"
	"go/token"
	"sort"
	"strings"
)

type Severity int

const (
	SeverityError Severity = iota
	SeverityWarning
)

func (s Severity) String() string {
	if s == SeverityWarning {
		return "warning"
	}
	return "error"
}

// Diagnostic is a non-fatal finding tied to a source location. Diagnostics
// are comparable and collapse when equal.
type Diagnostic struct {
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
	File     string   `json:"file,omitempty"`
	Line     int      `json:"line,omitempty"`
	Column   int      `json:"column,omitempty"`
}

func (d Diagnostic) String() string {
	if d.File == "" {
		return d.Severity.String() + ": " + d.Message
	}
	return fmt.Sprintf("%s:%d:%d: %s: %s", d.File, d.Line, d.Column, d.Severity, d.Message)
}

func diagnosticAt(sev Severity, pos token.Position, format string, args ...any) Diagnostic {
	return Diagnostic{
		Severity: sev,
		Message:  fmt.Sprintf(format, args...),
		File:     pos.Filename,
		Line:     pos.Line,
		Column:   pos.Column,
	}
}

// Diagnostics is an ordered list of diagnostics.
type Diagnostics []Diagnostic

// Errors returns the error-severity diagnostics.
func (ds Diagnostics) Errors() Diagnostics {
	var out Diagnostics
	for _, d := range ds {
		if d.Severity == SeverityError {
			out = append(out, d)
		}
	}
	return out
}

// Err returns the error diagnostics as a DiagnosticsError, or nil.
func (ds Diagnostics) Err() error {
	if errs := ds.Errors(); len(errs) > 0 {
		return DiagnosticsError(errs)
	}
	return nil
}

// DiagnosticsError reports error diagnostics as a single error.
type DiagnosticsError []Diagnostic

func (e DiagnosticsError) Error() string {
	var b strings.Builder
	b.WriteString("model generation failed:\n")
	for _, d := range e {
		b.WriteString("- " + d.Message)
		if d.File != "" {
			fmt.Fprintf(&b, " %s:%d:%d", d.File, d.Line, d.Column)
		}
		b.WriteString("\n")
	}
	return b.String()
}

// diagnosticSet keeps the first occurrence of every distinct diagnostic.
type diagnosticSet struct {
	seen map[Diagnostic]struct{}
	list Diagnostics
}

func (s *diagnosticSet) add(d Diagnostic) bool {
	if s.seen == nil {
		s.seen = make(map[Diagnostic]struct{})
	}
	if _, ok := s.seen[d]; ok {
		return false
	}
	s.seen[d] = struct{}{}
	s.list = append(s.list, d)
	return true
}

// sorted returns the diagnostics ordered by location, then message.
func (s *diagnosticSet) sorted() Diagnostics {
	out := append(Diagnostics(nil), s.list...)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.File != b.File {
			return a.File < b.File
		}
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		if a.Column != b.Column {
			return a.Column < b.Column
		}
		return a.Message < b.Message
	})
	return out
}
