package testlisteners

import "strings"

// Counter implements Listener.
type Counter struct {
	Count int
}

func (c *Counter) Increment() { c.Count++ }

// InheritedCounter implements InheritedListener.
type InheritedCounter struct {
	Counter
	OtherCount int
}

func (c *InheritedCounter) IncrementOther() { c.OtherCount++ }

// ArgumentSum implements ArgumentListener. It sums every argument except b,
// which keeps the last value seen.
type ArgumentSum struct {
	A int
	B rune
	C int32
	D int64
	E float64
}

func (s *ArgumentSum) Add(a int, b rune, c int32, d int64, e float64) {
	s.A += a
	s.B = b
	s.C += c
	s.D += d
	s.E += e
}

// Returner implements ReturnListener.
type Returner struct {
	Count int
}

func (r *Returner) Increment() int {
	r.Count++
	return r.Count
}

// Journal implements VariadicListener by recording each call.
type Journal struct {
	Lines []string
}

func (j *Journal) Log(level int, parts ...string) {
	j.Lines = append(j.Lines, strings.Repeat(">", level)+strings.Join(parts, " "))
}
