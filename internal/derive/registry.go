package derive

import (
	"context"
	"fmt"
	"sync"

	"github.com/hanpama/typeshape/internal/shape"
	"github.com/sirupsen/logrus"
)

// Registry shares one shape provider and one cache per application across a
// program, so independent callers reuse each other's derivations.
type Registry struct {
	provider *shape.Provider
	log      logrus.FieldLogger
	ctx      context.Context

	mu     sync.Mutex
	caches map[string]any
}

// NewRegistry creates a registry over p. A nil p gets a provider with the
// default policy.
func NewRegistry(ctx context.Context, p *shape.Provider, log logrus.FieldLogger) *Registry {
	if p == nil {
		p = shape.NewProvider()
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Registry{provider: p, log: log, ctx: ctx, caches: make(map[string]any)}
}

// Provider returns the shared shape provider.
func (r *Registry) Provider() *shape.Provider { return r.provider }

// Shared returns the cache registered under name, creating it with the
// visitor returned by newVisitor on first use. Asking for an existing name
// with a different artifact type panics.
func Shared[A any](r *Registry, name string, newVisitor func() Visitor[A]) *Cache[A] {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.caches[name]; ok {
		typed, ok := c.(*Cache[A])
		if !ok {
			panic(fmt.Sprintf("derive: application %q registered with artifact type %T", name, c))
		}
		return typed
	}
	c := NewCache(r.provider, newVisitor(), WithName(name), WithLogger(r.log), WithContext(r.ctx))
	r.caches[name] = c
	return c
}
