// Package testlisteners holds listener interfaces shared by the emitter and
// generator tests, together with their generated dispatchers.
package testlisteners

//go:generate go run ../../cmd/emittergen -dir .

// Listener is notified without arguments.
//
//emitter:listener
type Listener interface {
	Increment()
}

// InheritedListener adds a method to Listener. Its dispatcher forwards both.
//
//emitter:listener
type InheritedListener interface {
	Listener
	IncrementOther()
}

// EmptyListener has no methods at all.
//
//emitter:listener
type EmptyListener interface{}

// ArgumentListener takes one parameter of each numeric flavour.
//
//emitter:listener
type ArgumentListener interface {
	Add(a int, b rune, c int32, d int64, e float64)
}

// ReturnListener is not a valid listener: its method returns a value.
type ReturnListener interface {
	Increment() int
}

// VariadicListener takes a variadic tail.
//
//emitter:listener
type VariadicListener interface {
	Log(level int, parts ...string)
}
