package derive

import (
	"fmt"
	"reflect"
	"sync"
)

// arena holds the slots backing delayed values. Slots are addressed by
// index and written exactly once.
type arena[A any] struct {
	mu    sync.RWMutex
	slots []slot[A]
}

type slot[A any] struct {
	typ    reflect.Type
	value  A
	filled bool
}

func (a *arena[A]) alloc(t reflect.Type) Delayed[A] {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.slots = append(a.slots, slot[A]{typ: t})
	return Delayed[A]{arena: a, index: len(a.slots) - 1}
}

func (a *arena[A]) fill(index int, v A) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.slots[index].filled {
		panic(fmt.Sprintf("derive: slot %d for %s filled twice", index, a.slots[index].typ))
	}
	a.slots[index].value = v
	a.slots[index].filled = true
}

// Delayed is a handle to an artifact that is filled in after the handle is
// created.
type Delayed[A any] struct {
	arena *arena[A]
	index int
}

// Get returns the final artifact. Calling it before the build of the type
// completed is a programming error and panics.
func (d Delayed[A]) Get() A {
	d.arena.mu.RLock()
	s := d.arena.slots[d.index]
	d.arena.mu.RUnlock()
	if !s.filled {
		panic(fmt.Sprintf("derive: delayed artifact for %s used before it was built", s.typ))
	}
	return s.value
}

// Ready reports whether the slot has been filled.
func (d Delayed[A]) Ready() bool {
	d.arena.mu.RLock()
	defer d.arena.mu.RUnlock()
	return d.arena.slots[d.index].filled
}

// Type returns the type whose artifact the handle stands for.
func (d Delayed[A]) Type() reflect.Type {
	d.arena.mu.RLock()
	defer d.arena.mu.RUnlock()
	return d.arena.slots[d.index].typ
}
