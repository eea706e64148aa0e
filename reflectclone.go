package grove

import (
	"reflect"
	"sync"
	"unsafe"
)

// This file is the schema-free child-discovery engine: given a DynNode, it
// finds every Child[T, P] field reachable from it — at any nesting depth,
// through nested structs, slices, arrays, maps, and pointers — without the
// node's type ever registering itself or its shape anywhere. The approach
// (a reflect.Type-keyed cache of which struct fields are worth recursing
// into, walked recursively) is the same one a struct-tag-free deep-clone
// library uses to avoid re-deriving a type's shape on every call; the only
// difference here is what counts as "interesting": not "needs a deep
// copy" but "might be, or might contain, a Child handle".
var childHandleType = reflect.TypeOf((*childHandle)(nil)).Elem()

type fieldKind uint8

const (
	fieldPlain   fieldKind = iota // copied by value, never recursed into
	fieldRecurse                  // struct/slice/array/map/ptr/interface that might reach a Child
)

type fieldPlan struct {
	index []int
	kind  fieldKind
}

var structPlanCache sync.Map // reflect.Type -> []fieldPlan

func planFor(t reflect.Type) []fieldPlan {
	if cached, ok := structPlanCache.Load(t); ok {
		return cached.([]fieldPlan)
	}
	plans := buildPlan(t)
	actual, _ := structPlanCache.LoadOrStore(t, plans)
	return actual.([]fieldPlan)
}

func buildPlan(t reflect.Type) []fieldPlan {
	var plans []fieldPlan
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		switch f.Type.Kind() {
		case reflect.Struct, reflect.Slice, reflect.Array, reflect.Map, reflect.Pointer, reflect.Interface:
			plans = append(plans, fieldPlan{index: []int{i}, kind: fieldRecurse})
		default:
			plans = append(plans, fieldPlan{index: []int{i}, kind: fieldPlain})
		}
	}
	return plans
}

// isChildHandle reports whether v (a Struct-kind value) is itself a
// Child[T, P] — detected structurally (its pointer type implements
// childHandle), never by name, so it works identically whether v arrived
// as a direct struct field, a slice element, or a map value.
func isChildHandle(v reflect.Value) (childHandle, bool) {
	if v.Kind() != reflect.Struct || !v.CanAddr() {
		return nil, false
	}
	if !reflect.PointerTo(v.Type()).Implements(childHandleType) {
		return nil, false
	}
	ch, ok := v.Addr().Interface().(childHandle)
	return ch, ok
}

// addressable returns v if it's already addressable, otherwise a freshly
// allocated addressable copy of it — needed because reflect.Value.Interface
// only hands back addressability for values reached through a pointer.
func addressable(v reflect.Value) reflect.Value {
	if v.CanAddr() {
		return v
	}
	tmp := reflect.New(v.Type())
	tmp.Elem().Set(v)
	return tmp.Elem()
}

// walkChildren visits every childHandle reachable from v, invoking fn on
// each one it finds. Used for read/in-place operations (releasing a
// subtree's children, locating a specific child by ID to redirect) where
// nothing needs a fresh copy of the containers being traversed.
func walkChildren(v reflect.Value, fn func(ch childHandle)) {
	switch v.Kind() {
	case reflect.Pointer:
		if v.IsNil() {
			return
		}
		walkChildren(v.Elem(), fn)
	case reflect.Interface:
		if v.IsNil() {
			return
		}
		walkChildren(addressable(v.Elem()), fn)
	case reflect.Slice, reflect.Array:
		for i := 0; i < v.Len(); i++ {
			walkChildren(v.Index(i), fn)
		}
	case reflect.Map:
		for _, k := range v.MapKeys() {
			walkChildren(addressable(v.MapIndex(k)), fn)
		}
	case reflect.Struct:
		v = addressable(v)
		if ch, ok := isChildHandle(v); ok {
			fn(ch)
			return
		}
		for _, p := range planFor(v.Type()) {
			if p.kind == fieldRecurse {
				walkChildren(v.FieldByIndex(p.index), fn)
			}
		}
	}
}

// structuralCopy rebuilds v (a struct value) field by field, allocating a
// fresh backing array/map/struct at every level it passes through so the
// result shares no mutable container with v, while leaving every plain
// (non-recursable) field a straight value copy.
//
// Every Child it reaches is handled by onChild: passing nil copies the
// Child value as-is (same identity, same pointee — the ordinary
// copy-on-write case, where only the *shape* around the child needs to be
// private, not the child itself); passing a function lets the caller
// substitute a different Child value (used by DeepCopy, which rekeys and
// recursively copies the pointee instead).
func structuralCopy(v reflect.Value, onChild func(ch childHandle) any) reflect.Value {
	switch v.Kind() {
	case reflect.Pointer:
		if v.IsNil() {
			return v
		}
		np := reflect.New(v.Type().Elem())
		np.Elem().Set(structuralCopy(v.Elem(), onChild))
		return np
	case reflect.Interface:
		if v.IsNil() {
			return v
		}
		cloned := structuralCopy(addressable(v.Elem()), onChild)
		iv := reflect.New(v.Type()).Elem()
		iv.Set(cloned)
		return iv
	case reflect.Slice:
		if v.IsNil() {
			return v
		}
		ns := reflect.MakeSlice(v.Type(), v.Len(), v.Len())
		for i := 0; i < v.Len(); i++ {
			ns.Index(i).Set(structuralCopy(v.Index(i), onChild))
		}
		return ns
	case reflect.Array:
		na := reflect.New(v.Type()).Elem()
		for i := 0; i < v.Len(); i++ {
			na.Index(i).Set(structuralCopy(v.Index(i), onChild))
		}
		return na
	case reflect.Map:
		if v.IsNil() {
			return v
		}
		nm := reflect.MakeMapWithSize(v.Type(), v.Len())
		iter := v.MapRange()
		for iter.Next() {
			nm.SetMapIndex(iter.Key(), structuralCopy(addressable(iter.Value()), onChild))
		}
		return nm
	case reflect.Struct:
		v = addressable(v)
		if ch, ok := isChildHandle(v); ok {
			if onChild == nil {
				return v
			}
			return reflect.ValueOf(onChild(ch))
		}
		nv := reflect.New(v.Type()).Elem()
		for _, p := range planFor(v.Type()) {
			// Unexported fields (such as a node's embedded Header) are
			// read-only through reflect, so address both sides directly.
			sf := v.FieldByIndex(p.index)
			sf = reflect.NewAt(sf.Type(), unsafe.Pointer(sf.UnsafeAddr())).Elem()
			df := nv.FieldByIndex(p.index)
			df = reflect.NewAt(df.Type(), unsafe.Pointer(df.UnsafeAddr())).Elem()
			if p.kind == fieldRecurse {
				df.Set(structuralCopy(sf, onChild))
			} else {
				df.Set(sf)
			}
		}
		return nv
	default:
		return v
	}
}

// dynNodeValue returns the addressable struct Value a DynNode's pointer
// refers to.
func dynNodeValue(n DynNode) reflect.Value {
	v := reflect.ValueOf(n)
	if v.Kind() != reflect.Pointer || v.IsNil() {
		fatalf("node value is not a non-nil pointer: %T", n)
	}
	return v.Elem()
}

// releaseChildren walks every Child reachable from n and calls its
// pollRelease, used when an entire subtree is being detached from the tree
// (see Child.Release).
func releaseChildren(n DynNode) {
	walkChildren(dynNodeValue(n), func(ch childHandle) {
		ch.pollRelease()
	})
}

// findChild walks every Child reachable from n and returns the one whose
// ID matches, or nil if none does. Used by State's ancestor-propagation
// algorithm to find the single field that needs to be re-pointed at an
// ancestor's freshly copied child.
//
// A second Child anywhere in n sharing the same ID is a corrupted tree, not
// an ambiguity to resolve quietly — propagation has no way to decide which
// of two matching fields is the "real" one, so it fails loudly instead of
// silently picking the first.
func findChild(n DynNode, id ID) childHandle {
	var found childHandle
	walkChildren(dynNodeValue(n), func(ch childHandle) {
		if ch.handleID() != id {
			return
		}
		if found != nil {
			fatalf("duplicate child %d found during propagation", id)
		}
		found = ch
	})
	return found
}

// shallowCopy makes a private copy of n's shape — every struct, slice,
// array, and map on the path to any Child field gets a fresh backing
// allocation, while every Child field itself keeps pointing at exactly the
// node it already did. This is the copy-on-write step every ancestor on
// the path to the root goes through exactly once per mutation session; the
// one Child field that actually changed is swapped in afterwards via
// findChild + setTarget.
//
// If n implements Cloner, that takes over entirely: the reflective walk
// below is exactly the default CloneShallow a node type can opt out of.
func shallowCopy(n DynNode) DynNode {
	if cl, ok := n.(Cloner); ok {
		return cl.CloneShallow()
	}
	cloned := structuralCopy(dynNodeValue(n), nil)
	np := reflect.New(cloned.Type())
	np.Elem().Set(cloned)
	return np.Interface().(DynNode)
}
