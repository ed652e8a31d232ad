package emitter

import (
	"errors"
	"fmt"
	"reflect"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/funvibe/emitter/pkg/descriptor"
)

// Strategy names the way a dispatcher type was produced.
type Strategy string

const (
	StrategyCompiled Strategy = "compiled"
	StrategyDynamic  Strategy = "dynamic"
)

// Synthesizer turns a descriptor into a dispatcher type.
type Synthesizer interface {
	Strategy() Strategy

	// Synthesize returns the dispatcher type for d, whose runtime type is rt.
	// An error matching ErrNotCompiled means "not available here" and makes
	// the factory try the next synthesizer.
	Synthesize(d *descriptor.Interface, rt reflect.Type) (*Type, error)
}

// Type is a dispatcher type: everything needed to instantiate dispatchers
// for one listener interface. Types are cached by the factory and never
// change.
type Type struct {
	desc     *descriptor.Interface
	rt       reflect.Type
	strategy Strategy
	name     string
	plan     *plan
	view     any
}

// Descriptor returns the validated interface descriptor.
func (t *Type) Descriptor() *descriptor.Interface { return t.desc }

// Interface returns the listener interface type.
func (t *Type) Interface() reflect.Type { return t.rt }

// Strategy reports how the type was produced.
func (t *Type) Strategy() Strategy { return t.strategy }

// Name returns the dispatcher type name: the deterministic emitter name for
// compiled types, "dynamic:<interface>" otherwise.
func (t *Type) Name() string { return t.name }

// Factory produces and caches dispatcher types, one per listener interface.
// The zero value is not usable; call NewFactory.
type Factory struct {
	mu sync.Mutex
	// types is keyed by the interface type itself: identities of
	// function-local or unnamed interfaces are not unique.
	types        map[reflect.Type]*Type
	synthesizers []Synthesizer
	logger       *zap.Logger
	metrics      *Metrics
}

// NewFactory returns a factory that prefers compiled dispatchers and falls
// back to dynamic synthesis, unless options say otherwise.
func NewFactory(opts ...Option) *Factory {
	f := &Factory{
		types:        make(map[reflect.Type]*Type),
		synthesizers: []Synthesizer{CompiledSynthesizer{}, DynamicSynthesizer{}},
		logger:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// GetOrCreate returns the cached dispatcher type for rt, synthesizing it on
// first use. Failures are reported to the caller and never cached.
func (f *Factory) GetOrCreate(rt reflect.Type) (*Type, error) {
	if rt == nil || rt.Kind() != reflect.Interface {
		var id descriptor.Identity
		if rt != nil {
			id = descriptor.IdentityOf(rt)
		}
		f.metrics.failed("unsupported")
		return nil, &UnsupportedInterfaceError{Interface: id, Err: descriptor.ErrNotInterface}
	}
	id := descriptor.IdentityOf(rt)

	f.mu.Lock()
	defer f.mu.Unlock()

	if t, ok := f.types[rt]; ok {
		f.metrics.lookup(true)
		return t, nil
	}
	f.metrics.lookup(false)

	t, err := f.synthesize(id, rt)
	if err != nil {
		f.logger.Warn("cannot produce dispatcher", zap.Stringer("interface", id), zap.Error(err))
		return nil, err
	}
	f.types[rt] = t
	return t, nil
}

func (f *Factory) synthesize(id descriptor.Identity, rt reflect.Type) (*Type, error) {
	d, err := descriptor.FromReflect(rt)
	if err != nil {
		f.metrics.failed("unsupported")
		return nil, &UnsupportedInterfaceError{Interface: id, Err: err}
	}

	for _, s := range f.synthesizers {
		start := time.Now()
		t, err := s.Synthesize(d, rt)
		if errors.Is(err, ErrNotCompiled) {
			continue
		}
		if err != nil {
			f.metrics.failed("synthesis")
			var se *SynthesisError
			if !errors.As(err, &se) {
				err = &SynthesisError{Interface: id, Strategy: s.Strategy(), Err: err}
			}
			return nil, err
		}
		took := time.Since(start)
		f.metrics.synthesized(t.strategy, took)
		f.logger.Debug("synthesized dispatcher",
			zap.Stringer("interface", id),
			zap.String("strategy", string(t.strategy)),
			zap.String("type", t.name),
			zap.Duration("took", took))
		return t, nil
	}

	f.metrics.failed("unsupported")
	return nil, &UnsupportedInterfaceError{Interface: id, Err: ErrNoSynthesizer}
}

// Len returns the number of cached dispatcher types.
func (f *Factory) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.types)
}

// Instantiate returns a new dispatcher of type t with an empty registry.
// A nil f means the default factory.
func Instantiate[T any](f *Factory, t *Type) (e *Emitter[T], err error) {
	if f == nil {
		f = std
	}
	rt := reflect.TypeFor[T]()
	if t == nil {
		return nil, &InstantiationError{Interface: descriptor.IdentityOf(rt), Err: errors.New("nil dispatcher type")}
	}
	if t.rt != rt {
		return nil, &InstantiationError{Interface: t.desc.ID(), Err: fmt.Errorf("type is for %s, not %s", t.rt, rt)}
	}
	defer func() {
		if err != nil {
			f.metrics.failed("instantiation")
		}
	}()

	e = &Emitter[T]{Registry: NewRegistry[T](), typ: t}
	if t.strategy == StrategyCompiled {
		view, ok := t.view.(func(*Registry[T]) T)
		if !ok {
			return nil, &InstantiationError{Interface: t.desc.ID(), Err: fmt.Errorf("constructor %T does not build %s", t.view, rt)}
		}
		if err := e.bind(view); err != nil {
			return nil, &InstantiationError{Interface: t.desc.ID(), Err: err}
		}
	}
	f.metrics.instantiated(t.strategy)
	return e, nil
}
