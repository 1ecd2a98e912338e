package shape

import (
	"reflect"
	"strconv"
)

// Slot is one positional member of a tuple. Index may reach through nested
// Rest continuations.
type Slot struct {
	Position int
	Name     string
	Type     reflect.Type
	Index    []int
}

// Tuple is the shape of a positional struct.
type Tuple struct {
	Slots []Slot

	typ reflect.Type
}

// Get reads slot s from the tuple value v.
func (tu *Tuple) Get(v reflect.Value, s Slot) reflect.Value {
	return v.FieldByIndex(s.Index)
}

// Set writes x into slot s of the addressable tuple value v.
func (tu *Tuple) Set(v reflect.Value, s Slot, x reflect.Value) {
	v.FieldByIndex(s.Index).Set(x)
}

// New returns an addressable zero tuple.
func (tu *Tuple) New() reflect.Value {
	return reflect.New(tu.typ).Elem()
}

// tupleOf lays out the slots of t. When t has exactly TupleArity+1 fields
// and the last one is itself a tuple, its slots are flattened into t.
func (p *Provider) tupleOf(t reflect.Type) *Tuple {
	tu := &Tuple{typ: t}
	fields := exportedFields(t)
	arity := p.policy.TupleArity

	var rest *reflect.StructField
	if arity > 0 && len(fields) == arity+1 {
		last := fields[len(fields)-1]
		if last.Type.Kind() == reflect.Struct && Classify(p.Traits(last.Type)) == KindTuple {
			rest = &last
			fields = fields[:len(fields)-1]
		}
	}
	for _, f := range fields {
		tu.Slots = append(tu.Slots, Slot{
			Position: len(tu.Slots),
			Name:     "Item" + strconv.Itoa(len(tu.Slots)+1),
			Type:     f.Type,
			Index:    f.Index,
		})
	}
	if rest != nil {
		for _, s := range p.tupleOf(rest.Type).Slots {
			idx := append(append([]int(nil), rest.Index...), s.Index...)
			tu.Slots = append(tu.Slots, Slot{
				Position: len(tu.Slots),
				Name:     "Item" + strconv.Itoa(len(tu.Slots)+1),
				Type:     s.Type,
				Index:    idx,
			})
		}
	}
	return tu
}

// Tuple2 is a positional pair.
type Tuple2[T1, T2 any] struct {
	Item1 T1
	Item2 T2
}

// Tuple3 is a positional triple.
type Tuple3[T1, T2, T3 any] struct {
	Item1 T1
	Item2 T2
	Item3 T3
}

// Tuple8 holds seven slots and continues in Rest, which is expected to be
// another tuple.
type Tuple8[T1, T2, T3, T4, T5, T6, T7, TRest any] struct {
	Item1 T1
	Item2 T2
	Item3 T3
	Item4 T4
	Item5 T5
	Item6 T6
	Item7 T7
	Rest  TRest
}
