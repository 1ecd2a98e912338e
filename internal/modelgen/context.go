package modelgen

import (
	"hash/fnv"
	"math/bits"
	"sort"
)

// Context is an immutable snapshot of an exploration: the types on the
// current path and the models completed so far. Every operation returns a
// new Context and leaves the receiver valid, so a failed branch is dropped
// by ignoring the context it produced.
type Context struct {
	stack  *frame
	models *node
	size   int
}

// frame is a cons cell of the persistent traversal stack.
type frame struct {
	id    TypeID
	next  *frame
	depth int
}

// Push returns a context with id on top of the stack. It reports false,
// and returns c unchanged, when id is already on the stack.
func (c Context) Push(id TypeID) (Context, bool) {
	if c.OnStack(id) {
		return c, false
	}
	depth := 1
	if c.stack != nil {
		depth = c.stack.depth + 1
	}
	c.stack = &frame{id: id, next: c.stack, depth: depth}
	return c, true
}

// Commit folds a successful fork of c back into it: the fork's pushed type
// leaves the stack and m joins the completed models together with every
// model the fork completed. A nil m commits only the fork's models.
func (c Context) Commit(fork Context, m *Model) Context {
	next := Context{stack: c.stack, models: fork.models, size: fork.size}
	if m != nil {
		var added bool
		next.models, added = next.models.with(hashID(m.ID), 0, m.ID, m)
		if added {
			next.size++
		}
	}
	return next
}

// OnStack reports whether id is being explored on the current path.
func (c Context) OnStack(id TypeID) bool {
	for f := c.stack; f != nil; f = f.next {
		if f.id == id {
			return true
		}
	}
	return false
}

// Depth returns the length of the current path.
func (c Context) Depth() int {
	if c.stack == nil {
		return 0
	}
	return c.stack.depth
}

// Path returns the current path, root first.
func (c Context) Path() []TypeID {
	path := make([]TypeID, c.Depth())
	for f := c.stack; f != nil; f = f.next {
		path[f.depth-1] = f.id
	}
	return path
}

// Lookup returns the completed model of id.
func (c Context) Lookup(id TypeID) (*Model, bool) {
	return c.models.get(hashID(id), 0, id)
}

// Len returns the number of completed models.
func (c Context) Len() int { return c.size }

// Models returns the completed models ordered by ID.
func (c Context) Models() []*Model {
	out := make([]*Model, 0, c.size)
	c.models.each(func(m *Model) { out = append(out, m) })
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// The completed-model map is a persistent hash array mapped trie keyed by
// the FNV-1a hash of the type ID, five bits per level. Updates copy the
// path from the root to the changed slot and share everything else.
const (
	trieBits = 5
	trieMask = 1<<trieBits - 1
)

func hashID(id TypeID) uint32 {
	h := fnv.New32a()
	h.Write([]byte(id))
	return h.Sum32()
}

type node struct {
	bitmap uint32
	slots  []slot
}

// slot holds either a child node or the entries sharing one full hash.
type slot struct {
	child   *node
	hash    uint32
	entries []entry
}

type entry struct {
	id    TypeID
	model *Model
}

func (n *node) get(h uint32, shift uint, id TypeID) (*Model, bool) {
	for n != nil {
		bit := uint32(1) << ((h >> shift) & trieMask)
		if n.bitmap&bit == 0 {
			return nil, false
		}
		s := &n.slots[bits.OnesCount32(n.bitmap&(bit-1))]
		if s.child == nil {
			if s.hash != h {
				return nil, false
			}
			for _, e := range s.entries {
				if e.id == id {
					return e.model, true
				}
			}
			return nil, false
		}
		n, shift = s.child, shift+trieBits
	}
	return nil, false
}

// with returns a copy of n that maps id to m, and whether id was new.
func (n *node) with(h uint32, shift uint, id TypeID, m *Model) (*node, bool) {
	if n == nil {
		n = &node{}
	}
	bit := uint32(1) << ((h >> shift) & trieMask)
	idx := bits.OnesCount32(n.bitmap & (bit - 1))

	if n.bitmap&bit == 0 {
		slots := make([]slot, len(n.slots)+1)
		copy(slots, n.slots[:idx])
		slots[idx] = slot{hash: h, entries: []entry{{id, m}}}
		copy(slots[idx+1:], n.slots[idx:])
		return &node{bitmap: n.bitmap | bit, slots: slots}, true
	}

	slots := append([]slot(nil), n.slots...)
	s := slots[idx]
	added := false
	switch {
	case s.child != nil:
		var child *node
		child, added = s.child.with(h, shift+trieBits, id, m)
		slots[idx] = slot{child: child}
	case s.hash == h:
		entries := append([]entry(nil), s.entries...)
		replaced := false
		for i := range entries {
			if entries[i].id == id {
				entries[i].model = m
				replaced = true
				break
			}
		}
		if !replaced {
			entries = append(entries, entry{id, m})
			added = true
		}
		slots[idx] = slot{hash: h, entries: entries}
	default:
		// Two different hashes share this prefix: push the existing
		// entries one level down and insert beside them.
		child := &node{bitmap: uint32(1) << ((s.hash >> (shift + trieBits)) & trieMask), slots: []slot{s}}
		child, added = child.with(h, shift+trieBits, id, m)
		slots[idx] = slot{child: child}
	}
	return &node{bitmap: n.bitmap, slots: slots}, added
}

func (n *node) each(fn func(*Model)) {
	if n == nil {
		return
	}
	for _, s := range n.slots {
		if s.child != nil {
			s.child.each(fn)
			continue
		}
		for _, e := range s.entries {
			fn(e.model)
		}
	}
}
