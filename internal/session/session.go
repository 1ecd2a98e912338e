package session

import (
	"context"

	"github.com/google/uuid"
)

// key is the context key for the session ID.
type key struct{}

// NewContext returns a copy of parent carrying a new random session ID.
// It also returns the generated ID.
func NewContext(parent context.Context) (context.Context, string) {
	id := uuid.NewString()
	return context.WithValue(parent, key{}, id), id
}

// FromContext extracts the session ID from ctx.
// It returns the ID and whether it was present.
func FromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(key{}).(string)
	return id, ok
}

// Ensure returns ctx unchanged when it already carries a session ID, and a
// derived context with a new ID otherwise.
func Ensure(ctx context.Context) (context.Context, string) {
	if id, ok := FromContext(ctx); ok {
		return ctx, id
	}
	return NewContext(ctx)
}
