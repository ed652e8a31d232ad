package descriptor

import (
	"fmt"
	"reflect"
)

// IdentityOf returns the identity of a runtime type.
func IdentityOf(rt reflect.Type) Identity {
	if rt.Name() == "" {
		return Identity{Name: rt.String()}
	}
	return Identity{PkgPath: rt.PkgPath(), Name: rt.Name()}
}

// FromReflect builds a descriptor from a runtime interface type. Reflection
// only exposes the complete method set, so the result has no supertypes and
// its declared methods equal its flattened methods.
func FromReflect(rt reflect.Type) (*Interface, error) {
	if rt == nil {
		return nil, fmt.Errorf("descriptor: nil type: %w", ErrNotInterface)
	}
	if rt.Kind() != reflect.Interface {
		return nil, fmt.Errorf("descriptor: %s is a %s: %w", rt, rt.Kind(), ErrNotInterface)
	}

	methods := make([]Method, 0, rt.NumMethod())
	for i := 0; i < rt.NumMethod(); i++ {
		methods = append(methods, methodFromReflect(rt.Method(i)))
	}
	return New(IdentityOf(rt), methods)
}

func methodFromReflect(rm reflect.Method) Method {
	ft := rm.Type
	m := Method{Name: rm.Name, Variadic: ft.IsVariadic()}
	for i := 0; i < ft.NumIn(); i++ {
		t := ft.In(i)
		if m.Variadic && i == ft.NumIn()-1 {
			t = t.Elem()
		}
		m.Params = append(m.Params, Param{Type: refOf(t)})
	}
	for i := 0; i < ft.NumOut(); i++ {
		m.Results = append(m.Results, refOf(ft.Out(i)))
	}
	return m
}

func refOf(t reflect.Type) TypeRef {
	return TypeRef{Expr: t.String(), Type: t}
}
