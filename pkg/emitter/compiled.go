package emitter

import (
	"fmt"
	"reflect"
	"sort"
	"sync"

	"github.com/funvibe/emitter/pkg/descriptor"
)

type compiledEntry struct {
	iface reflect.Type
	view  any // func(*Registry[T]) T
}

var compiled = struct {
	sync.RWMutex
	entries map[string]compiledEntry
}{entries: make(map[string]compiledEntry)}

// RegisterCompiled records the constructor of a generated dispatcher under
// its deterministic emitter name. Generated files call it from init; it
// panics if the name is registered twice.
func RegisterCompiled[T any](name string, view func(*Registry[T]) T) {
	if view == nil {
		panic("emitter: RegisterCompiled with nil constructor for " + name)
	}
	compiled.Lock()
	defer compiled.Unlock()
	if _, dup := compiled.entries[name]; dup {
		panic("emitter: RegisterCompiled called twice for " + name)
	}
	compiled.entries[name] = compiledEntry{iface: reflect.TypeFor[T](), view: view}
}

// Compiled returns the sorted names of all registered compiled dispatchers.
func Compiled() []string {
	compiled.RLock()
	defer compiled.RUnlock()
	names := make([]string, 0, len(compiled.entries))
	for name := range compiled.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func lookupCompiled(name string) (compiledEntry, bool) {
	compiled.RLock()
	defer compiled.RUnlock()
	e, ok := compiled.entries[name]
	return e, ok
}

// CompiledSynthesizer locates dispatchers generated ahead of time by
// emittergen. It reports ErrNotCompiled when none was registered for the
// exact interface type, which lets the factory fall back to the next
// synthesizer.
type CompiledSynthesizer struct{}

// Strategy implements Synthesizer.
func (CompiledSynthesizer) Strategy() Strategy { return StrategyCompiled }

// Synthesize implements Synthesizer.
func (CompiledSynthesizer) Synthesize(d *descriptor.Interface, rt reflect.Type) (*Type, error) {
	name := d.ID().EmitterName()
	entry, ok := lookupCompiled(name)
	if !ok {
		return nil, fmt.Errorf("%s: %w", name, ErrNotCompiled)
	}
	if entry.iface != rt {
		// Function-local and unnamed interfaces can share a name with the
		// registered one.
		return nil, fmt.Errorf("%s is registered for another type named %s: %w", name, rt, ErrNotCompiled)
	}

	p, err := newPlan(rt)
	if err != nil {
		return nil, &SynthesisError{Interface: d.ID(), Strategy: StrategyCompiled, Err: err}
	}
	return &Type{
		desc:     d,
		rt:       rt,
		strategy: StrategyCompiled,
		name:     name,
		plan:     p,
		view:     entry.view,
	}, nil
}
