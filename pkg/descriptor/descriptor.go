// Package descriptor describes listener interfaces for emitter synthesis.
//
// A descriptor is the only thing the synthesizers look at: the runtime builds
// one from reflection, the emittergen tool builds one from go/types or from a
// protobuf service definition. Descriptors are validated when they are built
// and never change afterwards, so they can be shared freely between
// goroutines and between synthesis attempts.
package descriptor

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
	"unicode"
)

// Identity names a listener interface. It is comparable and used as the
// cache key for synthesized dispatcher types.
type Identity struct {
	// PkgPath is the Go import path of the declaring package (empty for
	// unnamed interface types).
	PkgPath string

	// Name is the interface name. Nested declarations (e.g. from protobuf
	// sources) are joined with ".".
	Name string
}

// String returns the qualified name, e.g. "example.com/app.Listener".
func (id Identity) String() string {
	if id.PkgPath == "" {
		return id.Name
	}
	return id.PkgPath + "." + id.Name
}

// EmitterName returns the deterministic name under which a compiled
// dispatcher for this interface is registered. Nested names are flattened
// with "$": "example.com/app.Outer.Inner" becomes
// "example.com/app.Outer$Inner$Emitter".
func (id Identity) EmitterName() string {
	name := strings.ReplaceAll(id.Name, ".", "$") + "$Emitter"
	if id.PkgPath == "" {
		return name
	}
	return id.PkgPath + "." + name
}

// GoTypeName returns the identifier of the generated dispatcher type.
func (id Identity) GoTypeName() string {
	return identifier(strings.ReplaceAll(id.Name, ".", "_")) + "Emitter"
}

// FileName returns the name of the generated source file, e.g.
// "http_listener_emitter.go" for "HTTPListener".
func (id Identity) FileName() string {
	return snakeCase(strings.ReplaceAll(id.Name, ".", "_")) + "_emitter.go"
}

// TypeRef is a parameter or result type.
type TypeRef struct {
	// Expr is the Go type expression as written in the declaring package,
	// e.g. "int", "*pb.Event", "[]string".
	Expr string

	// Imports maps import paths referenced by Expr to the package names
	// used in Expr.
	Imports map[string]string

	// Type is the runtime type, when the descriptor comes from reflection.
	Type reflect.Type
}

// Param is a method parameter. Name may be empty.
type Param struct {
	Name string
	Type TypeRef
}

// Method is a listener method.
type Method struct {
	Name   string
	Params []Param

	// Variadic is true if the last parameter is variadic; its Type is the
	// element type.
	Variadic bool

	// Results must be empty for a valid listener method. It is only
	// populated by descriptor sources so that validation can reject it.
	Results []TypeRef
}

// Exported reports whether the method can be called from another package.
func (m Method) Exported() bool {
	for _, r := range m.Name {
		return unicode.IsUpper(r)
	}
	return false
}

// Signature returns the parameter list as Go source, e.g. "(int, ...string)".
func (m Method) Signature() string {
	var b strings.Builder
	b.WriteByte('(')
	for i, p := range m.Params {
		if i > 0 {
			b.WriteString(", ")
		}
		if m.Variadic && i == len(m.Params)-1 {
			b.WriteString("...")
		}
		b.WriteString(p.Type.Expr)
	}
	b.WriteByte(')')
	return b.String()
}

// sameParams reports whether two methods take exactly the same parameters.
func sameParams(a, b Method) bool {
	if len(a.Params) != len(b.Params) || a.Variadic != b.Variadic {
		return false
	}
	for i := range a.Params {
		if a.Params[i].Type.Expr != b.Params[i].Type.Expr {
			return false
		}
	}
	return true
}

// Interface is a validated, immutable listener interface description.
type Interface struct {
	id      Identity
	methods []Method
	supers  []*Interface
	flat    []Method
}

// ID returns the identity of the interface.
func (d *Interface) ID() Identity { return d.id }

// Methods returns the methods declared directly on the interface.
func (d *Interface) Methods() []Method { return clone(d.methods) }

// Supers returns the direct listener supertypes.
func (d *Interface) Supers() []*Interface {
	return append([]*Interface(nil), d.supers...)
}

// Flatten returns every method the dispatcher must forward: the declared
// methods and those of all supertypes, sorted by name.
func (d *Interface) Flatten() []Method { return clone(d.flat) }

// Method looks up a flattened method by name.
func (d *Interface) Method(name string) (Method, bool) {
	i := sort.Search(len(d.flat), func(i int) bool { return d.flat[i].Name >= name })
	if i < len(d.flat) && d.flat[i].Name == name {
		return d.flat[i], true
	}
	return Method{}, false
}

// Imports returns every import path referenced by the flattened methods,
// mapped to its package name.
func (d *Interface) Imports() map[string]string {
	imports := make(map[string]string)
	for _, m := range d.flat {
		for _, p := range m.Params {
			for path, name := range p.Type.Imports {
				imports[path] = name
			}
		}
	}
	return imports
}

func (d *Interface) String() string {
	return fmt.Sprintf("%s (%d methods)", d.id, len(d.flat))
}

// New validates and builds a descriptor. It fails with a *ContractViolation
// naming the first offending method; no partial descriptor is returned.
func New(id Identity, methods []Method, supers ...*Interface) (*Interface, error) {
	if id.Name == "" {
		return nil, fmt.Errorf("descriptor: empty interface name in package %q", id.PkgPath)
	}

	seen := make(map[string]bool, len(methods))
	for _, m := range methods {
		if m.Name == "" {
			return nil, &ContractViolation{Interface: id, Reason: "method without a name"}
		}
		if len(m.Results) > 0 {
			return nil, &ContractViolation{Interface: id, Method: m.Name, Reason: ReasonReturnsValue}
		}
		if m.Variadic && len(m.Params) == 0 {
			return nil, &ContractViolation{Interface: id, Method: m.Name, Reason: "variadic method without parameters"}
		}
		if seen[m.Name] {
			return nil, &ContractViolation{Interface: id, Method: m.Name, Reason: "method declared twice"}
		}
		seen[m.Name] = true
	}

	flat, err := flatten(id, methods, supers)
	if err != nil {
		return nil, err
	}

	return &Interface{
		id:      id,
		methods: clone(methods),
		supers:  append([]*Interface(nil), supers...),
		flat:    flat,
	}, nil
}

// flatten merges declared methods with every supertype's flattened methods.
// Supertypes are valid by construction, so only collisions need checking.
func flatten(id Identity, methods []Method, supers []*Interface) ([]Method, error) {
	byName := make(map[string]Method, len(methods))
	for _, m := range methods {
		byName[m.Name] = m
	}
	for _, s := range supers {
		if s == nil {
			return nil, fmt.Errorf("descriptor: %s: nil supertype", id)
		}
		for _, m := range s.flat {
			prev, ok := byName[m.Name]
			if !ok {
				byName[m.Name] = m
				continue
			}
			if !sameParams(prev, m) {
				return nil, &ContractViolation{
					Interface: id,
					Method:    m.Name,
					Reason: fmt.Sprintf("conflicting declarations %s and %s (from %s)",
						prev.Signature(), m.Signature(), s.id),
				}
			}
		}
	}

	flat := make([]Method, 0, len(byName))
	for _, m := range byName {
		flat = append(flat, m)
	}
	sort.Slice(flat, func(i, j int) bool { return flat[i].Name < flat[j].Name })
	return flat, nil
}

func clone(methods []Method) []Method {
	out := make([]Method, len(methods))
	for i, m := range methods {
		m.Params = append([]Param(nil), m.Params...)
		m.Results = append([]TypeRef(nil), m.Results...)
		out[i] = m
	}
	return out
}

// identifier replaces characters that are not valid in a Go identifier.
func identifier(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' {
			return r
		}
		return '_'
	}, s)
}

// snakeCase converts "HTTPListener" to "http_listener" and "Outer_Inner" to
// "outer_inner".
func snakeCase(s string) string {
	runes := []rune(identifier(s))
	var b strings.Builder
	for i, r := range runes {
		if unicode.IsUpper(r) {
			if i > 0 && runes[i-1] != '_' {
				prevLower := unicode.IsLower(runes[i-1]) || unicode.IsDigit(runes[i-1])
				nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
				if prevLower || (nextLower && unicode.IsUpper(runes[i-1])) {
					b.WriteByte('_')
				}
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
