// Package otel turns traversal events into OpenTelemetry spans.
//
// Builds and explorations nest: a span started while another one of the
// same session and application is open becomes its child, and generation
// spans parent the explorations that run inside them.
package otel

import (
	"context"
	"sync"

	"github.com/hanpama/typeshape/internal/eventbus"
	"github.com/hanpama/typeshape/internal/events"
	"github.com/hanpama/typeshape/internal/session"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/semconv/v1.17.0"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

const tracerName = "typeshape"

// Setup configures OpenTelemetry and attaches subscribers to b.
// If endpoint is empty, no telemetry is configured.
func Setup(b *eventbus.Bus, endpoint, service string) (func(context.Context) error, error) {
	if endpoint == "" {
		return func(context.Context) error { return nil }, nil
	}
	exp, err := otlptracegrpc.New(context.Background(),
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())))
	if err != nil {
		return nil, err
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(service),
		)),
	)
	otel.SetTracerProvider(tp)

	unsubscribe := newSubscriber(otel.Tracer(tracerName)).register(b)

	return func(ctx context.Context) error {
		unsubscribe()
		return tp.Shutdown(ctx)
	}, nil
}

type subscriber struct {
	tracer        trace.Tracer
	generateSpans sync.Map // session/emitter -> trace.Span

	mu     sync.Mutex
	stacks map[string][]trace.Span // session/app -> open spans, innermost last
}

func newSubscriber(tracer trace.Tracer) *subscriber {
	return &subscriber{tracer: tracer, stacks: make(map[string][]trace.Span)}
}

func (s *subscriber) push(key string, span trace.Span) {
	s.mu.Lock()
	s.stacks[key] = append(s.stacks[key], span)
	s.mu.Unlock()
}

func (s *subscriber) top(key string) (trace.Span, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stack := s.stacks[key]
	if len(stack) == 0 {
		return nil, false
	}
	return stack[len(stack)-1], true
}

func (s *subscriber) pop(key string) (trace.Span, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stack := s.stacks[key]
	if len(stack) == 0 {
		return nil, false
	}
	span := stack[len(stack)-1]
	if len(stack) == 1 {
		delete(s.stacks, key)
	} else {
		s.stacks[key] = stack[:len(stack)-1]
	}
	return span, true
}

func sessionKey(ctx context.Context, name string) string {
	sid, _ := session.FromContext(ctx)
	return sid + "/" + name
}

func finish(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func (s *subscriber) register(b *eventbus.Bus) (unsubscribe func()) {
	var unsubs []func()
	add := func(u func()) { unsubs = append(unsubs, u) }

	add(eventbus.On(b, func(ctx context.Context, e events.GenerateStart) {
		sid, _ := session.FromContext(ctx)
		_, span := s.tracer.Start(ctx, "typeshape.generate")
		span.SetAttributes(
			attribute.String("typeshape.session", sid),
			attribute.String("typeshape.emitter", e.Emitter),
			attribute.Int("typeshape.models", e.Models),
		)
		s.generateSpans.Store(sessionKey(ctx, e.Emitter), span)
	}))

	add(eventbus.On(b, func(ctx context.Context, e events.GenerateFinish) {
		v, ok := s.generateSpans.LoadAndDelete(sessionKey(ctx, e.Emitter))
		if !ok {
			return
		}
		span := v.(trace.Span)
		span.SetAttributes(attribute.Int("typeshape.files", e.Files))
		finish(span, e.Err)
	}))

	add(eventbus.On(b, func(ctx context.Context, e events.ExploreStart) {
		key := sessionKey(ctx, "explore")
		parent := ctx
		if span, ok := s.top(key); ok {
			parent = trace.ContextWithSpan(ctx, span)
		}
		_, span := s.tracer.Start(parent, "typeshape.explore")
		span.SetAttributes(attribute.String("typeshape.type", e.Type))
		s.push(key, span)
	}))

	add(eventbus.On(b, func(ctx context.Context, e events.ExploreFinish) {
		span, ok := s.pop(sessionKey(ctx, "explore"))
		if !ok {
			return
		}
		span.SetAttributes(attribute.String("typeshape.status", e.Status))
		finish(span, e.Err)
	}))

	add(eventbus.On(b, func(ctx context.Context, e events.BuildStart) {
		key := sessionKey(ctx, "build/"+e.Application)
		parent := ctx
		if span, ok := s.top(key); ok {
			parent = trace.ContextWithSpan(ctx, span)
		}
		_, span := s.tracer.Start(parent, "typeshape.build")
		span.SetAttributes(
			attribute.String("typeshape.application", e.Application),
			attribute.String("typeshape.type", e.Type),
			attribute.String("typeshape.kind", e.Kind),
		)
		s.push(key, span)
	}))

	add(eventbus.On(b, func(ctx context.Context, e events.BuildFinish) {
		span, ok := s.pop(sessionKey(ctx, "build/"+e.Application))
		if !ok {
			return
		}
		span.SetAttributes(attribute.Bool("typeshape.placeholder", e.Placeholder))
		finish(span, e.Err)
	}))

	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}
