package protoreg

import (
	"strings"

	"github.com/jhump/protoreflect/v2/protobuilder"
)

// comment turns a Go doc comment into a leading proto comment.
func comment(doc string) protobuilder.Comments {
	doc = strings.TrimSpace(doc)
	if doc == "" {
		return protobuilder.Comments{}
	}
	// Prefix each line with a space and ensure trailing newline.
	lines := strings.Split(doc, "\n")
	for i, line := range lines {
		if line != "" {
			lines[i] = " " + line
		}
	}
	return protobuilder.Comments{LeadingComment: strings.Join(lines, "\n") + "\n"}
}
