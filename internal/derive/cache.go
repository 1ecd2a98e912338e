package derive

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hanpama/typeshape/internal/eventbus"
	"github.com/hanpama/typeshape/internal/events"
	"github.com/hanpama/typeshape/internal/session"
	"github.com/hanpama/typeshape/internal/shape"
	"github.com/sirupsen/logrus"
)

type entry[A any] struct {
	value     A
	completed bool
	skipped   bool

	delayed     *Delayed[A]
	placeholder A
}

// Cache memoizes the artifacts one application derives, keyed by type.
type Cache[A any] struct {
	app      string
	provider *shape.Provider
	visitor  Visitor[A]
	delayer  Delayer[A]
	log      logrus.FieldLogger
	ctx      context.Context

	busy    atomic.Bool
	mu      sync.RWMutex
	entries map[reflect.Type]*entry[A]
	arena   arena[A]
}

type options struct {
	app string
	log logrus.FieldLogger
	ctx context.Context
}

// Option configures a Cache.
type Option func(*options)

// WithName names the application in logs and events.
func WithName(app string) Option {
	return func(o *options) { o.app = app }
}

// WithLogger sets the logger used for debug traces of the derivation.
func WithLogger(log logrus.FieldLogger) Option {
	return func(o *options) { o.log = log }
}

// WithContext sets the context events are published with. A session ID is
// attached when the context has none.
func WithContext(ctx context.Context) Option {
	return func(o *options) { o.ctx = ctx }
}

// NewCache creates an empty cache deriving artifacts with v. If v implements
// Delayer[A], cyclic edges are resolved with placeholders.
func NewCache[A any](p *shape.Provider, v Visitor[A], opts ...Option) *Cache[A] {
	o := options{
		app: fmt.Sprintf("%T", v),
		log: logrus.StandardLogger(),
		ctx: context.Background(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	ctx, sid := session.Ensure(o.ctx)
	c := &Cache[A]{
		app:      o.app,
		provider: p,
		visitor:  v,
		log:      o.log.WithFields(logrus.Fields{"app": o.app, "session": sid}),
		ctx:      ctx,
		entries:  make(map[reflect.Type]*entry[A]),
	}
	if d, ok := v.(Delayer[A]); ok {
		c.delayer = d
	}
	return c
}

// Name returns the application name.
func (c *Cache[A]) Name() string { return c.app }

// Provider returns the shape provider of the cache.
func (c *Cache[A]) Provider() *shape.Provider { return c.provider }

// Visitor returns the visitor the cache derives with.
func (c *Cache[A]) Visitor() Visitor[A] { return c.visitor }

// Len returns the number of completed entries.
func (c *Cache[A]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	n := 0
	for _, e := range c.entries {
		if e.completed {
			n++
		}
	}
	return n
}

// lookup returns a completed entry without taking the build guard.
func (c *Cache[A]) lookup(t reflect.Type) (v A, ok bool, done bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, found := c.entries[t]
	if !found || !e.completed {
		return v, false, false
	}
	if e.skipped {
		return v, false, true
	}
	return e.value, true, true
}

// Get returns the artifact for t, building it (and everything it depends
// on) on first use. ok is false when the application has nothing for t.
func (c *Cache[A]) Get(t reflect.Type) (A, bool, error) {
	if v, ok, done := c.lookup(t); done {
		return v, ok, nil
	}
	if !c.busy.CompareAndSwap(false, true) {
		var zero A
		return zero, false, fmt.Errorf("%w: %s while building %s", ErrConcurrentBuild, c.app, t)
	}
	defer c.busy.Store(false)

	b := &Builder[A]{c: c}
	v, ok, err := b.Get(t)
	if err == nil {
		err = b.verify()
	}
	if err != nil {
		c.rollback(b.started)
		var zero A
		return zero, false, err
	}
	return v, ok, nil
}

// Store records a completed artifact for t. It fails for a completed entry
// unless overwrite is set, and always fails for an entry being built.
func (c *Cache[A]) Store(t reflect.Type, v A, overwrite bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[t]; ok {
		if !e.completed {
			return fmt.Errorf("%w: %s is being built", ErrConcurrentBuild, t)
		}
		if !overwrite {
			return fmt.Errorf("%w: %s", ErrAlreadyCompleted, t)
		}
	}
	c.entries[t] = &entry[A]{value: v, completed: true}
	return nil
}

func (c *Cache[A]) rollback(started []reflect.Type) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, t := range started {
		delete(c.entries, t)
	}
	c.log.WithField("entries", len(started)).Debug("rolled back failed build")
}

// Builder is the per-build view of a cache handed to visitor methods.
type Builder[A any] struct {
	c       *Cache[A]
	started []reflect.Type
	depth   int
}

// Provider returns the shape provider of the cache.
func (b *Builder[A]) Provider() *shape.Provider { return b.c.provider }

// Cache returns the cache being built. Artifacts that need more types at
// run time can capture it and call Get later.
func (b *Builder[A]) Cache() *Cache[A] { return b.c }

// Depth returns the nesting depth of the current visit, 1 for the root.
func (b *Builder[A]) Depth() int { return b.depth }

// Get returns the artifact for a child type. On a cycle it returns the
// type's placeholder, or ok == false when the application cannot delay.
func (b *Builder[A]) Get(t reflect.Type) (A, bool, error) {
	c := b.c
	var zero A

	c.mu.RLock()
	e, found := c.entries[t]
	c.mu.RUnlock()
	if found {
		switch {
		case e.completed && e.skipped:
			return zero, false, nil
		case e.completed:
			return e.value, true, nil
		case c.delayer == nil:
			c.log.WithField("type", t.String()).Debug("cyclic reference without delay support, skipping edge")
			return zero, false, nil
		}
		c.mu.RLock()
		placeholder, issued := e.placeholder, e.delayed != nil
		c.mu.RUnlock()
		if !issued {
			d := c.arena.alloc(t)
			placeholder = c.delayer.Delay(d)
			c.mu.Lock()
			e.delayed = &d
			e.placeholder = placeholder
			c.mu.Unlock()
			c.log.WithField("type", t.String()).Debug("cyclic reference, issued placeholder")
		}
		return placeholder, true, nil
	}

	s, err := c.provider.Describe(t)
	if err != nil {
		return zero, false, err
	}

	mark := len(b.started)
	e = &entry[A]{}
	c.mu.Lock()
	c.entries[t] = e
	c.mu.Unlock()
	b.started = append(b.started, t)

	start := time.Now()
	if eventbus.Enabled() {
		eventbus.Publish(c.ctx, events.BuildStart{Application: c.app, Type: t.String(), Kind: s.Kind.String()})
	}

	b.depth++
	v, err := dispatch(c.visitor, b, s)
	b.depth--

	skipped := errors.Is(err, ErrSkip)
	if skipped {
		err = nil
		if e.delayed != nil {
			err = fmt.Errorf("%w: %s skipped after a placeholder was issued for it", ErrInconsistentHandler, t)
		}
	} else if err == nil && isNil(v) {
		err = fmt.Errorf("%w: %s visitor returned a nil artifact for %s", ErrInconsistentHandler, s.Kind, t)
	}

	if eventbus.Enabled() {
		eventbus.Publish(c.ctx, events.BuildFinish{
			Application: c.app,
			Type:        t.String(),
			Kind:        s.Kind.String(),
			Placeholder: e.delayed != nil,
			Err:         err,
			Duration:    time.Since(start),
		})
	}
	if err != nil {
		b.discard(mark)
		return zero, false, fmt.Errorf("%s: derive %s: %w", c.app, t, err)
	}

	c.mu.Lock()
	e.value = v
	e.skipped = skipped
	e.completed = true
	c.mu.Unlock()
	if e.delayed != nil && !skipped {
		c.arena.fill(e.delayed.index, v)
	}

	c.log.WithFields(logrus.Fields{"type": t.String(), "kind": s.Kind.String()}).Debug("derived artifact")
	if skipped {
		return zero, false, nil
	}
	return v, true, nil
}

// discard removes the entries started at or after mark, so a parent that
// recovers from a failed child sees the branch as absent.
func (b *Builder[A]) discard(mark int) {
	c := b.c
	c.mu.Lock()
	for _, t := range b.started[mark:] {
		delete(c.entries, t)
	}
	c.mu.Unlock()
	b.started = b.started[:mark]
}

// verify checks that every entry started by the build completed and every
// placeholder it issued was filled.
func (b *Builder[A]) verify() error {
	c := b.c
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, t := range b.started {
		e := c.entries[t]
		if !e.completed {
			return fmt.Errorf("%w: %s left in progress", ErrInconsistentHandler, t)
		}
		if e.delayed != nil && !e.delayed.Ready() {
			return fmt.Errorf("%w: placeholder for %s never filled", ErrInconsistentHandler, t)
		}
	}
	return nil
}

func isNil[A any](v A) bool {
	rv := reflect.ValueOf(&v).Elem()
	switch rv.Kind() {
	case reflect.Func, reflect.Pointer, reflect.Map, reflect.Interface, reflect.Slice, reflect.Chan:
		return rv.IsNil()
	}
	return false
}

// Build returns the artifact for t, failing when the application has none.
func Build[A any](c *Cache[A], t reflect.Type) (A, error) {
	v, ok, err := c.Get(t)
	if err != nil {
		return v, err
	}
	if !ok {
		return v, fmt.Errorf("%w: %s for %s", ErrNoArtifact, c.app, t)
	}
	return v, nil
}

// Of is Build for a type parameter.
func Of[T, A any](c *Cache[A]) (A, error) {
	return Build(c, reflect.TypeFor[T]())
}
