package protoreg

import (
	"hash/fnv"
	"sort"

	"github.com/jhump/protoreflect/v2/protobuilder"
	"google.golang.org/protobuf/reflect/protoreflect"
)

const (
	maxNumber     = 31767
	reservedFirst = 19000
	reservedLast  = 19999
)

type named interface {
	Name() protoreflect.Name
}

func allocateFieldNumbers(fieldBuilders []*protobuilder.FieldBuilder) {
	allocate(fieldBuilders, func(fb *protobuilder.FieldBuilder, n int) {
		fb.SetNumber(protoreflect.FieldNumber(n))
	})
}

func allocateEnumValueNumbers(enumValueBuilders []*protobuilder.EnumValueBuilder) {
	allocate(enumValueBuilders, func(evb *protobuilder.EnumValueBuilder, n int) {
		evb.SetNumber(protoreflect.EnumNumber(n))
	})
}

func allocate[B named](builders []B, set func(B, int)) {
	names := make([]string, len(builders))
	for i, b := range builders {
		names[i] = string(b.Name())
	}
	for i, n := range fnvNumbers(names) {
		set(builders[i], n)
	}
}

// fnvNumbers assigns numbers that stay put when declarations are added,
// removed or reordered:
//  1. candidate = FNV32a(name) % 31767 + 1
//  2. candidates in the reserved block 19000-19999 move past it
//  3. taken candidates probe linearly, wrapping to 1
//
// Names are placed in sorted order so collisions resolve the same way on
// every run.
func fnvNumbers(names []string) []int {
	if len(names) == 0 {
		return nil
	}
	order := make([]int, len(names))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(i, j int) bool { return names[order[i]] < names[order[j]] })

	out := make([]int, len(names))
	used := make(map[int]bool, len(names))
	for _, idx := range order {
		start := int(fnv32(names[idx])%maxNumber) + 1
		cand := start
		for {
			if cand >= reservedFirst && cand <= reservedLast {
				cand = reservedLast + 1
			}
			if !used[cand] {
				break
			}
			cand++
			if cand > maxNumber {
				cand = 1
			}
			if cand == start {
				panic("protoreg: exhausted tag space")
			}
		}
		used[cand] = true
		out[idx] = cand
	}
	return out
}

func fnv32(s string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(s))
	return h.Sum32()
}
