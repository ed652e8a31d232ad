// Package emitter spreads method calls to every registered listener.
//
// A listener interface is any interface whose methods return nothing. An
// Emitter for it keeps an ordered list of listeners and forwards each call
// to all of them, in registration order:
//
//	type Listener interface {
//		Notify(text string)
//	}
//
//	e := emitter.MustMakeEmitter[Listener]()
//	e.Add(first)
//	e.Add(second)
//	e.Fire().Notify("greetings") // calls first, then second
//
// There are two ways to get a dispatcher for an interface:
//
//  1. Generate it ahead of time. Mark the interface with a
//     "//emitter:listener" comment and run emittergen from go:generate.
//     The generated file registers a concrete forwarding type, and the
//     compiler checks that the interface qualifies. Fire returns that type.
//
//  2. Let the runtime build it at first use from reflection. This needs no
//     build step, but Go cannot create methods at run time, so such an
//     emitter is driven through Invoke or the typed functions from Func.
//
// MakeEmitter looks for a generated dispatcher first and falls back to
// reflection, unless the factory was built with WithDynamicSynthesis(false).
package emitter

import (
	"fmt"
	"reflect"

	"github.com/funvibe/emitter/pkg/descriptor"
)

var std = NewFactory()

// Default returns the process-wide factory used by MakeEmitter.
func Default() *Factory { return std }

// MakeEmitter returns a new, empty emitter for listener interface T using the
// default factory.
func MakeEmitter[T any]() (*Emitter[T], error) {
	return MakeEmitterWith[T](std)
}

// MakeEmitterWith returns a new, empty emitter for T using f.
func MakeEmitterWith[T any](f *Factory) (*Emitter[T], error) {
	if f == nil {
		f = std
	}
	t, err := f.GetOrCreate(reflect.TypeFor[T]())
	if err != nil {
		return nil, err
	}
	return Instantiate[T](f, t)
}

// MustMakeEmitter is like MakeEmitter but panics on error.
func MustMakeEmitter[T any]() *Emitter[T] {
	e, err := MakeEmitter[T]()
	if err != nil {
		panic(err)
	}
	return e
}

// Emitter is a dispatcher instance for listener interface T. Listener
// registration comes from the embedded Registry; every instance has its own.
type Emitter[T any] struct {
	*Registry[T]
	typ      *Type
	view     T
	compiled bool
}

func (e *Emitter[T]) bind(view func(*Registry[T]) T) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("constructor panicked: %v", r)
		}
	}()
	v := view(e.Registry)
	if any(v) == nil {
		return fmt.Errorf("constructor returned nil")
	}
	e.view = v
	e.compiled = true
	return nil
}

// Fire returns the emitter typed as the listener interface; calling a method
// on it calls that method on every listener. It panics for dispatchers that
// were not generated ahead of time; see View.
func (e *Emitter[T]) Fire() T {
	if !e.compiled {
		panic(&UnsupportedInterfaceError{Interface: e.typ.desc.ID(), Err: ErrNotCompiled})
	}
	return e.view
}

// View returns the typed view and whether one exists.
func (e *Emitter[T]) View() (T, bool) {
	return e.view, e.compiled
}

// Compiled reports whether the dispatcher was generated ahead of time.
func (e *Emitter[T]) Compiled() bool { return e.compiled }

// TypeName returns the name of the dispatcher type behind e.
func (e *Emitter[T]) TypeName() string { return e.typ.name }

// Type returns the dispatcher type behind e.
func (e *Emitter[T]) Type() *Type { return e.typ }

// Descriptor returns the listener interface descriptor.
func (e *Emitter[T]) Descriptor() *descriptor.Interface { return e.typ.desc }

// Invoke calls method on every listener with args. Arguments are checked
// against the method's parameters; integers and floats are converted to the
// parameter's numeric type when no precision is lost. A panicking listener
// propagates out of Invoke and the remaining listeners are not called.
func (e *Emitter[T]) Invoke(method string, args ...any) error {
	m, err := e.typ.plan.method(method)
	if err != nil {
		return err
	}
	values, err := m.arguments(args)
	if err != nil {
		return err
	}
	if e.compiled {
		reflect.ValueOf(&e.view).Elem().Method(m.index).Call(values)
		return nil
	}
	broadcast(e.Registry, m.index, values, false)
	return nil
}

// Func returns a function with the exact signature of method that
// broadcasts to every listener, e.g. a func(int, string) for
// Add(int, string). Callers type-assert the result.
func (e *Emitter[T]) Func(method string) (any, error) {
	m, err := e.typ.plan.method(method)
	if err != nil {
		return nil, err
	}
	if e.compiled {
		return reflect.ValueOf(&e.view).Elem().Method(m.index).Interface(), nil
	}
	spread := m.fn.IsVariadic()
	fn := reflect.MakeFunc(m.fn, func(in []reflect.Value) []reflect.Value {
		broadcast(e.Registry, m.index, in, spread)
		return nil
	})
	return fn.Interface(), nil
}
