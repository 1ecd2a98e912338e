// Package protoreg emits proto3 descriptors for explored models. Every Go
// package gets one file; objects and tuples become messages and enums with
// declared values become enums.
package protoreg

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/hanpama/typeshape/internal/eventbus"
	"github.com/hanpama/typeshape/internal/events"
	"github.com/hanpama/typeshape/internal/modelgen"
	"github.com/hanpama/typeshape/internal/shape"
	"github.com/jhump/protoreflect/v2/protobuilder"
	"google.golang.org/protobuf/reflect/protoreflect"
)

const Emitter = "proto"

var (
	// ErrUnknownModel is returned when a model refers to a type that is not
	// part of the model set.
	ErrUnknownModel = errors.New("unknown model")
	// ErrUnsupported is returned for types with no proto representation.
	ErrUnsupported = errors.New("no proto representation")
)

// Option configures Build.
type Option func(*builder)

// WithPackagePrefix prefixes every generated proto package name.
func WithPackagePrefix(prefix string) Option {
	return func(b *builder) { b.prefix = prefix }
}

// WithScalar maps the leaf type with the given ID to a proto scalar type
// such as "string" or "int64".
func WithScalar(id modelgen.TypeID, protoType string) Option {
	return func(b *builder) { b.scalarMapping[id] = protoType }
}

// Build converts models into file descriptors.
func Build(ctx context.Context, models []*modelgen.Model, opts ...Option) (*Registry, error) {
	start := time.Now()
	if eventbus.Enabled() {
		eventbus.Publish(ctx, events.GenerateStart{Emitter: Emitter, Models: len(models)})
	}
	reg, err := build(models, opts)
	if eventbus.Enabled() {
		files := 0
		if reg != nil {
			files = len(reg.files)
		}
		eventbus.Publish(ctx, events.GenerateFinish{Emitter: Emitter, Files: files, Err: err, Duration: time.Since(start)})
	}
	return reg, err
}

func build(models []*modelgen.Model, opts []Option) (*Registry, error) {
	b := &builder{
		models:          make(map[modelgen.TypeID]*modelgen.Model, len(models)),
		owners:          make(map[modelgen.TypeID]string),
		fileBuilders:    make(map[string]*protobuilder.FileBuilder),
		fileNames:       make(map[string]map[string]bool),
		deps:            make(map[[2]string]bool),
		messageBuilders: make(map[modelgen.TypeID]*protobuilder.MessageBuilder),
		enumBuilders:    make(map[modelgen.TypeID]*protobuilder.EnumBuilder),
		nestedNames:     make(map[*protobuilder.MessageBuilder]map[string]bool),
		resolving:       make(map[modelgen.TypeID]bool),
		scalarMapping:   make(map[modelgen.TypeID]string),
		protoTypeMap:    make(map[protoreflect.FullName]modelgen.TypeID),
		protoFieldMap:   make(map[protoreflect.FullName][2]string),
	}
	for _, opt := range opts {
		opt(b)
	}
	for id, protoType := range b.scalarMapping {
		if _, ok := scalars[protoType]; !ok {
			return nil, fmt.Errorf("scalar mapping for %s: unknown proto type %q", id, protoType)
		}
	}

	sorted := make([]*modelgen.Model, len(models))
	copy(sorted, models)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })
	for _, m := range sorted {
		b.models[m.ID] = m
	}

	// Pass 1: decide which file declares each message and enum
	b.assignFiles(sorted)

	// Pass 2: create the declarations so fields can refer to them
	for _, m := range sorted {
		if !declares(m) {
			continue
		}
		switch m.Kind {
		case shape.KindEnum:
			b.addEnum(m)
		default:
			b.addMessage(m)
		}
	}

	// Pass 3: add fields
	for _, m := range sorted {
		if mb, ok := b.messageBuilders[m.ID]; ok {
			if err := b.addMessageFields(m, mb); err != nil {
				return nil, err
			}
		}
	}

	reg := &Registry{
		messages: map[modelgen.TypeID]protoreflect.MessageDescriptor{},
		enums:    map[modelgen.TypeID]protoreflect.EnumDescriptor{},
		fields:   map[[2]string]protoreflect.FieldDescriptor{},
	}
	keys := make([]string, 0, len(b.fileBuilders))
	for pkg := range b.fileBuilders {
		keys = append(keys, pkg)
	}
	sort.Strings(keys)
	for _, pkg := range keys {
		fd, err := b.fileBuilders[pkg].Build()
		if err != nil {
			return nil, fmt.Errorf("build %s: %w", nameProtoFile(pkg), err)
		}
		reg.files = append(reg.files, fd)

		enums := fd.Enums()
		for i := 0; i < enums.Len(); i++ {
			if id, ok := b.protoTypeMap[enums.Get(i).FullName()]; ok {
				reg.enums[id] = enums.Get(i)
			}
		}
		messages := fd.Messages()
		for i := 0; i < messages.Len(); i++ {
			msg := messages.Get(i)
			id, ok := b.protoTypeMap[msg.FullName()]
			if !ok {
				continue
			}
			reg.messages[id] = msg
			fields := msg.Fields()
			for j := 0; j < fields.Len(); j++ {
				field := fields.Get(j)
				if names, ok := b.protoFieldMap[field.FullName()]; ok {
					reg.fields[names] = field
				}
			}
		}
	}
	return reg, nil
}

type builder struct {
	prefix string
	models map[modelgen.TypeID]*modelgen.Model
	// owners maps declaring models to the Go package whose file holds them.
	owners map[modelgen.TypeID]string

	fileBuilders    map[string]*protobuilder.FileBuilder
	fileNames       map[string]map[string]bool
	deps            map[[2]string]bool
	messageBuilders map[modelgen.TypeID]*protobuilder.MessageBuilder
	enumBuilders    map[modelgen.TypeID]*protobuilder.EnumBuilder
	nestedNames     map[*protobuilder.MessageBuilder]map[string]bool
	resolving       map[modelgen.TypeID]bool
	scalarMapping   map[modelgen.TypeID]string

	protoTypeMap  map[protoreflect.FullName]modelgen.TypeID
	protoFieldMap map[protoreflect.FullName][2]string
}

// declares reports whether m becomes a top level message or enum.
func declares(m *modelgen.Model) bool {
	switch m.Kind {
	case shape.KindObject, shape.KindTuple:
		return true
	case shape.KindEnum:
		return len(m.Values) > 0
	}
	return false
}

func references(m *modelgen.Model) []modelgen.TypeID {
	var refs []modelgen.TypeID
	for _, id := range []modelgen.TypeID{m.Elem, m.Key, m.Value} {
		if id != "" {
			refs = append(refs, id)
		}
	}
	for _, f := range m.Fields {
		refs = append(refs, f.Type)
	}
	return refs
}

// assignFiles places named declarations in their own package. Anonymous
// types and generic instantiations go with the first package that refers
// to them, which keeps files free of import cycles through shared generic
// types.
func (b *builder) assignFiles(sorted []*modelgen.Model) {
	var attach func(id modelgen.TypeID, pkg string, seen map[modelgen.TypeID]bool)
	attach = func(id modelgen.TypeID, pkg string, seen map[modelgen.TypeID]bool) {
		if seen[id] {
			return
		}
		seen[id] = true
		m, ok := b.models[id]
		if !ok {
			return
		}
		if declares(m) {
			if _, owned := b.owners[id]; owned {
				return
			}
			b.owners[id] = pkg
		}
		for _, ref := range references(m) {
			attach(ref, pkg, seen)
		}
	}

	var owned []*modelgen.Model
	for _, m := range sorted {
		if declares(m) && m.Package != "" && !isInstance(m) {
			b.owners[m.ID] = m.Package
			owned = append(owned, m)
		}
	}
	for _, m := range owned {
		seen := map[modelgen.TypeID]bool{m.ID: true}
		for _, ref := range references(m) {
			attach(ref, m.Package, seen)
		}
	}
	for _, m := range sorted {
		if _, ok := b.owners[m.ID]; !ok && declares(m) {
			attach(m.ID, m.Package, map[modelgen.TypeID]bool{})
		}
	}
}

func (b *builder) fileFor(pkg string) *protobuilder.FileBuilder {
	if fb, ok := b.fileBuilders[pkg]; ok {
		return fb
	}
	fb := protobuilder.NewFile(nameProtoFile(pkg))
	fb.SetPackageName(nameProtoPackage(b.prefix, pkg))
	fb.SetSyntax(protoreflect.Proto3)
	b.fileBuilders[pkg] = fb
	b.fileNames[pkg] = make(map[string]bool)
	return fb
}

// declare reserves a unique top level name in the file of pkg.
func (b *builder) declare(pkg string, m *modelgen.Model) protoreflect.Name {
	b.fileFor(pkg)
	taken := b.fileNames[pkg]
	base := nameProtoType(m)
	name := base
	for i := 2; taken[name]; i++ {
		name = fmt.Sprintf("%s%d", base, i)
	}
	taken[name] = true
	return protoreflect.Name(name)
}

func (b *builder) fullName(pkg string, name protoreflect.Name) protoreflect.FullName {
	return nameProtoPackage(b.prefix, pkg).Append(name)
}

// depend records that the file of from refers to a declaration of to.
func (b *builder) depend(from, to string) {
	if from == to || b.deps[[2]string{from, to}] {
		return
	}
	b.deps[[2]string{from, to}] = true
	b.fileFor(from).AddDependency(b.fileFor(to))
}
