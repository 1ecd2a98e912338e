package protoreg

import (
	"io"
	"os"
	"path/filepath"

	"github.com/jhump/protoreflect/v2/protoprint"
	"google.golang.org/protobuf/reflect/protoreflect"
)

// Render writes every file of the registry below outDir and returns the
// written paths.
func Render(r *Registry, outDir string) ([]string, error) {
	var written []string
	for _, fd := range r.Files() {
		fp := filepath.Join(outDir, filepath.FromSlash(fd.Path()))
		if err := os.MkdirAll(filepath.Dir(fp), 0755); err != nil {
			return written, err
		}
		if err := renderFile(fd, fp); err != nil {
			return written, err
		}
		written = append(written, fp)
	}
	return written, nil
}

func renderFile(fd protoreflect.FileDescriptor, fp string) error {
	openedFile, err := os.OpenFile(fp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	defer openedFile.Close()
	return Print(fd, openedFile)
}

// Print writes fd in .proto source form.
func Print(fd protoreflect.FileDescriptor, w io.Writer) error {
	pp := protoprint.Printer{}
	return pp.PrintProtoFile(fd, w)
}
