package shape

import (
	"errors"
	"fmt"
	"reflect"
)

// ErrNoStrategy is returned when a collection offers no way to be built.
var ErrNoStrategy = errors.New("collection has no construction strategy")

// Strategy is how a collection is rebuilt from its elements. Lower values
// take priority.
type Strategy int

const (
	// StrategyMutable default-constructs the collection and adds elements.
	StrategyMutable Strategy = iota
	// StrategyEnumerableCtor builds the collection from a sequence.
	StrategyEnumerableCtor
	// StrategySpanCtor builds the collection from a contiguous buffer.
	StrategySpanCtor
	// StrategyNone means the collection can be read but not built.
	StrategyNone
)

func (s Strategy) String() string {
	switch s {
	case StrategyMutable:
		return "Mutable"
	case StrategyEnumerableCtor:
		return "EnumerableCtor"
	case StrategySpanCtor:
		return "SpanCtor"
	}
	return "None"
}

// Enumerable is the shape of a sequence of elements.
type Enumerable struct {
	Element  reflect.Type
	Strategy Strategy

	typ       reflect.Type
	builtin   bool
	allOnPtr  bool
	addOnPtr  bool
	hasAdd    bool
	seqCtor   reflect.Value
	sliceCtor reflect.Value
}

func (p *Provider) enumerableOf(t reflect.Type) *Enumerable {
	e := &Enumerable{typ: t, Strategy: StrategyNone}
	switch t.Kind() {
	case reflect.Slice, reflect.Array:
		e.Element = t.Elem()
		e.builtin = true
		e.Strategy = StrategyMutable
		return e
	}

	e.Element, _ = seqMethod(t, "All")
	_, e.allOnPtr, _ = method(t, "All")
	if t.Kind() != reflect.Interface {
		if mt, onPtr, ok := method(t, "Add"); ok && mt.NumIn() == 1 && mt.In(0) == e.Element {
			e.hasAdd, e.addOnPtr = true, onPtr
		}
	}
	for _, fn := range p.collectionCtors[t] {
		in := fn.Type().In(0)
		if y, ok := yieldOf(in); ok && y.NumIn() == 1 && y.In(0) == e.Element {
			e.seqCtor = fn
		} else if in.Kind() == reflect.Slice && in.Elem() == e.Element {
			e.sliceCtor = fn
		}
	}
	switch {
	case e.hasAdd:
		e.Strategy = StrategyMutable
	case e.seqCtor.IsValid():
		e.Strategy = StrategyEnumerableCtor
	case e.sliceCtor.IsValid():
		e.Strategy = StrategySpanCtor
	}
	return e
}

// Range calls yield for each element of coll until yield returns false.
func (e *Enumerable) Range(coll reflect.Value, yield func(reflect.Value) bool) {
	if e.builtin {
		for i := 0; i < coll.Len(); i++ {
			if !yield(coll.Index(i)) {
				return
			}
		}
		return
	}
	if coll.Kind() == reflect.Interface && coll.IsNil() {
		return
	}
	seq := receiver(coll, e.allOnPtr).MethodByName("All").Call(nil)[0]
	for v := range seq.Seq() {
		if !yield(v) {
			return
		}
	}
}

// New returns an addressable empty collection for the Mutable strategy.
func (e *Enumerable) New() reflect.Value {
	v := reflect.New(e.typ).Elem()
	if e.typ.Kind() == reflect.Slice {
		v.Set(reflect.MakeSlice(e.typ, 0, 0))
	}
	return v
}

// Append adds elem to coll, an addressable value from New.
func (e *Enumerable) Append(coll, elem reflect.Value) error {
	switch {
	case e.typ.Kind() == reflect.Slice:
		coll.Set(reflect.Append(coll, elem))
	case e.hasAdd:
		receiver(coll, e.addOnPtr).MethodByName("Add").Call([]reflect.Value{elem})
	default:
		return fmt.Errorf("%s: %w", e.typ, ErrNoStrategy)
	}
	return nil
}

// FromSeq builds the collection with its sequence constructor.
func (e *Enumerable) FromSeq(elems []reflect.Value) (reflect.Value, error) {
	if !e.seqCtor.IsValid() {
		return reflect.Value{}, fmt.Errorf("%s has no sequence constructor: %w", e.typ, ErrNoStrategy)
	}
	seqType := e.seqCtor.Type().In(0)
	seq := reflect.MakeFunc(seqType, func(args []reflect.Value) []reflect.Value {
		yield := args[0]
		for _, el := range elems {
			if !yield.Call([]reflect.Value{el})[0].Bool() {
				break
			}
		}
		return nil
	})
	return callCollectionCtor(e.seqCtor, seq, e.typ)
}

// FromSlice builds the collection with its buffer constructor.
func (e *Enumerable) FromSlice(elems []reflect.Value) (reflect.Value, error) {
	if !e.sliceCtor.IsValid() {
		return reflect.Value{}, fmt.Errorf("%s has no slice constructor: %w", e.typ, ErrNoStrategy)
	}
	buf := reflect.MakeSlice(e.sliceCtor.Type().In(0), 0, len(elems))
	buf = reflect.Append(buf, elems...)
	return callCollectionCtor(e.sliceCtor, buf, e.typ)
}

// Build rebuilds a collection from elems using the selected strategy.
func (e *Enumerable) Build(elems []reflect.Value) (reflect.Value, error) {
	switch e.Strategy {
	case StrategyMutable:
		coll := e.New()
		if e.typ.Kind() == reflect.Array {
			if len(elems) > coll.Len() {
				return reflect.Value{}, fmt.Errorf("%s holds %d elements, got %d", e.typ, coll.Len(), len(elems))
			}
			for i, el := range elems {
				coll.Index(i).Set(el)
			}
			return coll, nil
		}
		for _, el := range elems {
			if err := e.Append(coll, el); err != nil {
				return reflect.Value{}, err
			}
		}
		return coll, nil
	case StrategyEnumerableCtor:
		return e.FromSeq(elems)
	case StrategySpanCtor:
		return e.FromSlice(elems)
	}
	return reflect.Value{}, fmt.Errorf("%s: %w", e.typ, ErrNoStrategy)
}

// Dictionary is the shape of a key/value collection.
type Dictionary struct {
	Key      reflect.Type
	Value    reflect.Type
	Strategy Strategy

	typ          reflect.Type
	builtin      bool
	entriesOnPtr bool
	hasSet       bool
	setOnPtr     bool
	seqCtor      reflect.Value
	mapCtor      reflect.Value
}

func (p *Provider) dictionaryOf(t reflect.Type) *Dictionary {
	d := &Dictionary{typ: t, Strategy: StrategyNone}
	if t.Kind() == reflect.Map {
		d.Key, d.Value = t.Key(), t.Elem()
		d.builtin = true
		d.Strategy = StrategyMutable
		return d
	}

	d.Key, d.Value, _ = seq2Method(t, "Entries")
	_, d.entriesOnPtr, _ = method(t, "Entries")
	if t.Kind() != reflect.Interface {
		if mt, onPtr, ok := method(t, "Set"); ok && mt.NumIn() == 2 && mt.In(0) == d.Key && mt.In(1) == d.Value {
			d.hasSet, d.setOnPtr = true, onPtr
		}
	}
	for _, fn := range p.collectionCtors[t] {
		in := fn.Type().In(0)
		if y, ok := yieldOf(in); ok && y.NumIn() == 2 && y.In(0) == d.Key && y.In(1) == d.Value {
			d.seqCtor = fn
		} else if in.Kind() == reflect.Map && in.Key() == d.Key && in.Elem() == d.Value {
			d.mapCtor = fn
		}
	}
	switch {
	case d.hasSet:
		d.Strategy = StrategyMutable
	case d.seqCtor.IsValid():
		d.Strategy = StrategyEnumerableCtor
	case d.mapCtor.IsValid():
		d.Strategy = StrategySpanCtor
	}
	return d
}

// Range calls yield for each entry of coll until yield returns false.
func (d *Dictionary) Range(coll reflect.Value, yield func(k, v reflect.Value) bool) {
	if d.builtin {
		iter := coll.MapRange()
		for iter.Next() {
			if !yield(iter.Key(), iter.Value()) {
				return
			}
		}
		return
	}
	if coll.Kind() == reflect.Interface && coll.IsNil() {
		return
	}
	seq := receiver(coll, d.entriesOnPtr).MethodByName("Entries").Call(nil)[0]
	for k, v := range seq.Seq2() {
		if !yield(k, v) {
			return
		}
	}
}

// New returns an addressable empty dictionary for the Mutable strategy.
func (d *Dictionary) New() reflect.Value {
	v := reflect.New(d.typ).Elem()
	if d.builtin {
		v.Set(reflect.MakeMap(d.typ))
	}
	return v
}

// Put stores one entry into coll, an addressable value from New.
func (d *Dictionary) Put(coll, k, v reflect.Value) error {
	switch {
	case d.builtin:
		coll.SetMapIndex(k, v)
	case d.hasSet:
		receiver(coll, d.setOnPtr).MethodByName("Set").Call([]reflect.Value{k, v})
	default:
		return fmt.Errorf("%s: %w", d.typ, ErrNoStrategy)
	}
	return nil
}

// FromSeq builds the dictionary with its sequence constructor.
func (d *Dictionary) FromSeq(keys, values []reflect.Value) (reflect.Value, error) {
	if !d.seqCtor.IsValid() {
		return reflect.Value{}, fmt.Errorf("%s has no sequence constructor: %w", d.typ, ErrNoStrategy)
	}
	seq := reflect.MakeFunc(d.seqCtor.Type().In(0), func(args []reflect.Value) []reflect.Value {
		yield := args[0]
		for i := range keys {
			if !yield.Call([]reflect.Value{keys[i], values[i]})[0].Bool() {
				break
			}
		}
		return nil
	})
	return callCollectionCtor(d.seqCtor, seq, d.typ)
}

// FromMap builds the dictionary with its map constructor.
func (d *Dictionary) FromMap(keys, values []reflect.Value) (reflect.Value, error) {
	if !d.mapCtor.IsValid() {
		return reflect.Value{}, fmt.Errorf("%s has no map constructor: %w", d.typ, ErrNoStrategy)
	}
	m := reflect.MakeMapWithSize(d.mapCtor.Type().In(0), len(keys))
	for i := range keys {
		m.SetMapIndex(keys[i], values[i])
	}
	return callCollectionCtor(d.mapCtor, m, d.typ)
}

// Build rebuilds a dictionary from parallel key and value slices using the
// selected strategy.
func (d *Dictionary) Build(keys, values []reflect.Value) (reflect.Value, error) {
	switch d.Strategy {
	case StrategyMutable:
		coll := d.New()
		for i := range keys {
			if err := d.Put(coll, keys[i], values[i]); err != nil {
				return reflect.Value{}, err
			}
		}
		return coll, nil
	case StrategyEnumerableCtor:
		return d.FromSeq(keys, values)
	case StrategySpanCtor:
		return d.FromMap(keys, values)
	}
	return reflect.Value{}, fmt.Errorf("%s: %w", d.typ, ErrNoStrategy)
}

func callCollectionCtor(fn, arg reflect.Value, target reflect.Type) (reflect.Value, error) {
	ft := fn.Type()
	return unpackResult(fn.Call([]reflect.Value{arg}), ft.Out(0).Kind() == reflect.Pointer, ft.NumOut() == 2, target)
}

// receiver adapts v for a method declared on the pointer type.
func receiver(v reflect.Value, onPtr bool) reflect.Value {
	if !onPtr {
		return v
	}
	if v.CanAddr() {
		return v.Addr()
	}
	pv := reflect.New(v.Type())
	pv.Elem().Set(v)
	return pv
}
