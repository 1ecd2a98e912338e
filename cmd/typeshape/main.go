package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/hanpama/typeshape/internal/config"
	"github.com/hanpama/typeshape/internal/eventbus"
	"github.com/hanpama/typeshape/internal/events"
	"github.com/hanpama/typeshape/internal/otel"
	"github.com/hanpama/typeshape/internal/session"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

const longDescription = `typeshape classifies Go types into structural shapes and emits
models, Protocol Buffers definitions and GraphQL SDL from them.

Packages, roots and outputs are read from typeshape.yaml when present.
Flags override the file.`

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdout, os.Stderr); err != nil {
		logrus.Error(err)
		os.Exit(1)
	}
}

// app is the state one invocation shares between its commands.
type app struct {
	stdout, stderr io.Writer
	log            *logrus.Logger

	configFile   string
	logLevel     string
	logFormat    string
	otelEndpoint string
	dir          string
	packages     []string
	roots        []string
	scope        string

	cfg      *config.Config
	bus      *eventbus.Bus
	shutdown func(context.Context) error
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	a := &app{stdout: stdout, stderr: stderr, log: logrus.New()}
	a.log.SetOutput(stderr)

	root := a.rootCommand()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	ctx, _ = session.NewContext(ctx)
	err := root.ExecuteContext(ctx)
	if cerr := a.close(); err == nil {
		err = cerr
	}
	return err
}

func (a *app) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "typeshape",
		Short:         "Derive models, proto and GraphQL SDL from Go types",
		Long:          longDescription,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
	}
	flags := root.PersistentFlags()
	flags.StringVar(&a.configFile, "config", config.DefaultFile, "project configuration file")
	flags.StringVar(&a.logLevel, "log-level", "info", "log level: panic, fatal, error, warn, info, debug or trace")
	flags.StringVar(&a.logFormat, "log-format", "text", "log format: text or json")
	flags.StringVar(&a.otelEndpoint, "otel-endpoint", "", "OTLP gRPC collector endpoint")
	flags.StringVar(&a.dir, "dir", "", "directory package patterns are resolved from")
	flags.StringSliceVarP(&a.packages, "packages", "p", nil, "package patterns to load")
	flags.StringSliceVar(&a.roots, "roots", nil, "qualified root types (pkgpath.Name); all named types when empty")
	flags.StringVar(&a.scope, "scope", "", "package path generated code lives in")

	root.AddCommand(a.modelsCommand(), a.protoCommand(), a.sdlCommand(), a.generateCommand())
	return root
}

func (a *app) setup(cmd *cobra.Command) error {
	level, err := logrus.ParseLevel(a.logLevel)
	if err != nil {
		return fmt.Errorf("--log-level: %w", err)
	}
	a.log.SetLevel(level)
	switch a.logFormat {
	case "text":
		a.log.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	case "json":
		a.log.SetFormatter(&logrus.JSONFormatter{})
	default:
		return fmt.Errorf("--log-format: unknown format %q", a.logFormat)
	}

	cfg, err := config.Load(a.configFile)
	if err != nil {
		return err
	}
	a.override(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	a.cfg = cfg

	a.bus = eventbus.New()
	eventbus.Use(a.bus)
	eventbus.On(a.bus, func(ctx context.Context, e events.GenerateFinish) {
		sid, _ := session.FromContext(ctx)
		entry := a.log.WithFields(logrus.Fields{
			"session":  sid,
			"emitter":  e.Emitter,
			"files":    e.Files,
			"duration": e.Duration.Round(time.Microsecond),
		})
		if e.Err != nil {
			entry.WithError(e.Err).Error("generation failed")
			return
		}
		entry.Debug("generated")
	})

	shutdown, err := otel.Setup(a.bus, cfg.Telemetry.Endpoint, cfg.Telemetry.Service)
	if err != nil {
		return fmt.Errorf("otel setup: %w", err)
	}
	a.shutdown = shutdown
	return nil
}

// override copies the flags given on the command line over the file values.
func (a *app) override(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("dir") {
		cfg.Dir = a.dir
	}
	if flags.Changed("packages") {
		cfg.Packages = a.packages
	}
	if flags.Changed("roots") {
		cfg.Roots = a.roots
	}
	if flags.Changed("scope") {
		cfg.Scope = a.scope
	}
	if flags.Changed("otel-endpoint") {
		cfg.Telemetry.Endpoint = a.otelEndpoint
	}
}

func (a *app) close() error {
	if a.bus != nil {
		eventbus.Use(nil)
	}
	if a.shutdown == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return a.shutdown(ctx)
}
