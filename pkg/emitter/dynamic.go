package emitter

import (
	"fmt"
	"math"
	"reflect"

	"github.com/funvibe/emitter/pkg/descriptor"
)

// DynamicSynthesizer builds dispatcher types at first use from reflection.
// Go cannot add methods to a type at run time, so a dynamic dispatcher has
// no typed Fire view; calls go through Emitter.Invoke or the typed function
// values returned by Emitter.Func.
type DynamicSynthesizer struct{}

// Strategy implements Synthesizer.
func (DynamicSynthesizer) Strategy() Strategy { return StrategyDynamic }

// Synthesize implements Synthesizer.
func (DynamicSynthesizer) Synthesize(d *descriptor.Interface, rt reflect.Type) (*Type, error) {
	fail := func(format string, args ...any) error {
		return &SynthesisError{Interface: d.ID(), Strategy: StrategyDynamic, Err: fmt.Errorf(format, args...)}
	}

	flat := d.Flatten()
	if len(flat) != rt.NumMethod() {
		return nil, fail("descriptor lists %d methods, %s has %d", len(flat), rt, rt.NumMethod())
	}
	for _, m := range flat {
		if !m.Exported() {
			return nil, fail("method %s is unexported and cannot be forwarded", m.Name)
		}
	}

	p, err := newPlan(rt)
	if err != nil {
		return nil, fail("%w", err)
	}
	return &Type{
		desc:     d,
		rt:       rt,
		strategy: StrategyDynamic,
		name:     "dynamic:" + d.ID().String(),
		plan:     p,
	}, nil
}

// plan is the reflective dispatch table of one listener interface.
type plan struct {
	rt      reflect.Type
	methods map[string]*methodPlan
}

type methodPlan struct {
	name  string
	index int
	fn    reflect.Type
}

func newPlan(rt reflect.Type) (*plan, error) {
	p := &plan{rt: rt, methods: make(map[string]*methodPlan, rt.NumMethod())}
	for i := 0; i < rt.NumMethod(); i++ {
		m := rt.Method(i)
		if m.Type.NumOut() > 0 {
			return nil, fmt.Errorf("method %s returns values", m.Name)
		}
		if !m.IsExported() {
			continue
		}
		p.methods[m.Name] = &methodPlan{name: m.Name, index: i, fn: m.Type}
	}
	return p, nil
}

func (p *plan) method(name string) (*methodPlan, error) {
	m, ok := p.methods[name]
	if !ok {
		return nil, fmt.Errorf("%s.%s: %w", p.rt, name, ErrUnknownMethod)
	}
	return m, nil
}

// arguments converts Invoke arguments to the method's parameter types.
func (m *methodPlan) arguments(args []any) ([]reflect.Value, error) {
	n := m.fn.NumIn()
	variadic := m.fn.IsVariadic()
	if (variadic && len(args) < n-1) || (!variadic && len(args) != n) {
		return nil, fmt.Errorf("%s%s called with %d arguments: %w", m.name, m.fn.String()[4:], len(args), ErrArgumentMismatch)
	}

	values := make([]reflect.Value, len(args))
	for i, a := range args {
		pt := m.fn.In(min(i, n-1))
		if variadic && i >= n-1 {
			pt = pt.Elem()
		}
		v, err := convertArg(a, pt)
		if err != nil {
			return nil, fmt.Errorf("%s argument %d: %w", m.name, i, err)
		}
		values[i] = v
	}
	return values, nil
}

func convertArg(a any, pt reflect.Type) (reflect.Value, error) {
	if a == nil {
		switch pt.Kind() {
		case reflect.Chan, reflect.Func, reflect.Interface, reflect.Map, reflect.Pointer, reflect.Slice, reflect.UnsafePointer:
			return reflect.Zero(pt), nil
		}
		return reflect.Value{}, fmt.Errorf("nil for %s: %w", pt, ErrArgumentMismatch)
	}

	v := reflect.ValueOf(a)
	if v.Type().AssignableTo(pt) {
		return v, nil
	}

	switch {
	case isInt(v.Kind()) && isInt(pt.Kind()):
		out := v.Convert(pt)
		if !fits(v, out) {
			return reflect.Value{}, fmt.Errorf("%v overflows %s: %w", a, pt, ErrArgumentMismatch)
		}
		return out, nil
	case (isInt(v.Kind()) || isFloat(v.Kind())) && isFloat(pt.Kind()):
		out := v.Convert(pt)
		if !exact(v, out) {
			return reflect.Value{}, fmt.Errorf("%v is not representable as %s: %w", a, pt, ErrArgumentMismatch)
		}
		return out, nil
	}
	return reflect.Value{}, fmt.Errorf("%s for %s: %w", v.Type(), pt, ErrArgumentMismatch)
}

func isInt(k reflect.Kind) bool {
	return k >= reflect.Int && k <= reflect.Uintptr
}

func isSigned(k reflect.Kind) bool {
	return k >= reflect.Int && k <= reflect.Int64
}

// fits reports whether the integer conversion of v to out lost nothing.
func fits(v, out reflect.Value) bool {
	if out.Convert(v.Type()).Interface() != v.Interface() {
		return false
	}
	switch {
	case isSigned(v.Kind()) && !isSigned(out.Kind()):
		return v.Int() >= 0
	case !isSigned(v.Kind()) && isSigned(out.Kind()):
		return out.Int() >= 0
	}
	return true
}

// exact reports whether converting v to the float value out lost nothing:
// no rounding, no overflow to infinity. NaN stays NaN.
func exact(v, out reflect.Value) bool {
	if isFloat(v.Kind()) && math.IsNaN(v.Float()) {
		return true
	}
	if isInt(v.Kind()) {
		// Out of range float to integer conversions are platform dependent.
		bits := v.Type().Bits()
		lo, hi := 0.0, math.Ldexp(1, bits)
		if isSigned(v.Kind()) {
			lo, hi = -math.Ldexp(1, bits-1), math.Ldexp(1, bits-1)
		}
		if f := out.Float(); f < lo || f >= hi {
			return false
		}
	}
	return out.Convert(v.Type()).Interface() == v.Interface()
}

func isFloat(k reflect.Kind) bool {
	return k == reflect.Float32 || k == reflect.Float64
}

// broadcast calls method index on every listener with args. With spread set
// the last argument is the variadic slice itself.
func broadcast[T any](r *Registry[T], index int, args []reflect.Value, spread bool) {
	listeners := r.Begin()
	defer r.End()
	for i := range listeners {
		fn := reflect.ValueOf(&listeners[i]).Elem().Method(index)
		if spread {
			fn.CallSlice(args)
		} else {
			fn.Call(args)
		}
	}
}
