package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"

	"github.com/hanpama/typeshape/internal/derive"
	"github.com/hanpama/typeshape/internal/jsoncodec"
	"github.com/hanpama/typeshape/internal/modelgen"
	"github.com/hanpama/typeshape/internal/protoreg"
	"github.com/hanpama/typeshape/internal/sdl"
	"github.com/hanpama/typeshape/internal/shape"
	"github.com/hanpama/typeshape/internal/typesys"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var errNoOutput = errors.New("no output configured; set output.proto, output.sdl or output.models")

// report is the document the models command writes.
type report struct {
	Models      []*modelgen.Model
	Diagnostics []modelgen.Diagnostic
}

func (a *app) modelsCommand() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "models",
		Short: "Explore the root types and print their models as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Flags().Changed("out") {
				a.cfg.Output.Models = out
			}
			models, diags, err := a.explore(cmd.Context())
			if err != nil {
				return err
			}
			return a.emitModels(models, diags, a.cfg.Output.Models)
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "write the models to a file instead of stdout")
	return cmd
}

func (a *app) protoCommand() *cobra.Command {
	var out, pkg string
	cmd := &cobra.Command{
		Use:   "proto",
		Short: "Generate .proto files from the root types",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Flags().Changed("out") {
				a.cfg.Output.Proto = out
			}
			if cmd.Flags().Changed("package") {
				a.cfg.Output.ProtoPackage = pkg
			}
			models, _, err := a.explore(cmd.Context())
			if err != nil {
				return err
			}
			return a.emitProto(cmd.Context(), models, a.cfg.Output.Proto)
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "output directory for .proto files (default: print to stdout)")
	cmd.Flags().StringVar(&pkg, "package", "", "prefix of the generated proto packages")
	return cmd
}

func (a *app) sdlCommand() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "sdl",
		Short: "Generate a GraphQL schema from the root types",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Flags().Changed("out") {
				a.cfg.Output.SDL = out
			}
			models, _, err := a.explore(cmd.Context())
			if err != nil {
				return err
			}
			return a.emitSDL(cmd.Context(), models, a.cfg.Output.SDL)
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "write the schema to a file instead of stdout")
	return cmd
}

func (a *app) generateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "generate",
		Short: "Run every emitter with a configured output concurrently",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			o := a.cfg.Output
			if o.Proto == "" && o.SDL == "" && o.Models == "" {
				return errNoOutput
			}
			models, diags, err := a.explore(cmd.Context())
			if err != nil {
				return err
			}
			g, ctx := errgroup.WithContext(cmd.Context())
			if o.Proto != "" {
				g.Go(func() error { return a.emitProto(ctx, models, o.Proto) })
			}
			if o.SDL != "" {
				g.Go(func() error { return a.emitSDL(ctx, models, o.SDL) })
			}
			if o.Models != "" {
				g.Go(func() error { return a.emitModels(models, diags, o.Models) })
			}
			return g.Wait()
		},
	}
}

// explore loads the configured packages and includes the roots, or every
// named type when no roots are configured. Explicit roots that cannot be
// included fail the run; discovered types only leave diagnostics.
func (a *app) explore(ctx context.Context) ([]*modelgen.Model, modelgen.Diagnostics, error) {
	cfg := a.cfg
	u, err := typesys.Load(ctx, cfg.Dir, cfg.Packages...)
	if err != nil {
		return nil, nil, err
	}
	p := typesys.NewProvider(u, cfg.ProviderOptions()...)
	opts := []modelgen.Option{modelgen.WithLogger(a.log)}
	if cfg.Scope != "" {
		opts = append(opts, modelgen.WithScope(cfg.Scope))
	}
	gen := modelgen.New(p, opts...)

	var failed []string
	if len(cfg.Roots) == 0 {
		for _, t := range u.Named() {
			if _, _, err := gen.IncludeType(ctx, t); err != nil {
				return nil, nil, err
			}
		}
	} else {
		for _, root := range cfg.Roots {
			st, _, err := gen.Include(ctx, root)
			if err != nil {
				return nil, nil, fmt.Errorf("include %s: %w", root, err)
			}
			if st != modelgen.StatusSuccess {
				failed = append(failed, root)
			}
		}
	}

	diags := gen.Diagnostics()
	for _, d := range diags {
		entry := a.log.WithField("file", d.File)
		if d.Severity == modelgen.SeverityWarning {
			entry.Warn(d.Message)
		} else {
			entry.Error(d.Message)
		}
	}
	if len(failed) > 0 {
		return nil, diags, diags.Err()
	}
	models := gen.Models()
	a.log.WithFields(logrus.Fields{"models": len(models), "diagnostics": len(diags)}).Info("explored types")
	return models, diags, nil
}

func (a *app) emitModels(models []*modelgen.Model, diags modelgen.Diagnostics, out string) error {
	p := shape.NewProvider(
		shape.WithEnum(shape.KindNone, shape.KindEnum, shape.KindNullable, shape.KindDictionary,
			shape.KindEnumerable, shape.KindTuple, shape.KindObject),
		shape.WithEnum(modelgen.SeverityError, modelgen.SeverityWarning),
	)
	codec := jsoncodec.New(p, derive.WithLogger(a.log))
	r := report{Models: models, Diagnostics: diags}
	if r.Diagnostics == nil {
		r.Diagnostics = []modelgen.Diagnostic{}
	}
	var buf bytes.Buffer
	if err := codec.Encode(&buf, reflect.ValueOf(r)); err != nil {
		return fmt.Errorf("encode models: %w", err)
	}
	return a.write(out, buf.Bytes())
}

func (a *app) emitProto(ctx context.Context, models []*modelgen.Model, out string) error {
	reg, err := protoreg.Build(ctx, models, protoreg.WithPackagePrefix(a.cfg.Output.ProtoPackage))
	if err != nil {
		return err
	}
	if out == "" {
		for _, fd := range reg.Files() {
			fmt.Fprintf(a.stdout, "// %s\n", fd.Path())
			if err := protoreg.Print(fd, a.stdout); err != nil {
				return err
			}
		}
		return nil
	}
	files, err := protoreg.Render(reg, out)
	if err != nil {
		return fmt.Errorf("render proto: %w", err)
	}
	for _, f := range files {
		a.log.WithField("file", f).Info("wrote proto file")
	}
	return nil
}

func (a *app) emitSDL(ctx context.Context, models []*modelgen.Model, out string) error {
	src, err := sdl.Generate(ctx, models)
	if err != nil {
		return err
	}
	return a.write(out, []byte(src))
}

// write writes data to the file out, creating its directory, or to stdout
// when out is empty.
func (a *app) write(out string, data []byte) error {
	if out == "" {
		_, err := a.stdout.Write(data)
		return err
	}
	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(out, data, 0o644); err != nil {
		return err
	}
	a.log.WithField("file", out).Info("wrote output")
	return nil
}
