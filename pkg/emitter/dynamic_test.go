package emitter

import (
	"errors"
	"math"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type shape interface {
	Resize(w uint8, h int16, scale float32)
	Rename(name string, tags ...string)
	Attach(parent *recorder, meta map[string]int)
}

type shapeLog struct {
	calls []string
	w     uint8
	h     int16
	scale float32
	name  string
	tags  []string
	nils  int
}

func (s *shapeLog) Resize(w uint8, h int16, scale float32) {
	s.calls = append(s.calls, "Resize")
	s.w, s.h, s.scale = w, h, scale
}

func (s *shapeLog) Rename(name string, tags ...string) {
	s.calls = append(s.calls, "Rename")
	s.name, s.tags = name, tags
}

func (s *shapeLog) Attach(parent *recorder, meta map[string]int) {
	s.calls = append(s.calls, "Attach")
	if parent == nil && meta == nil {
		s.nils++
	}
}

func dynamicOnly() *Factory {
	return NewFactory(WithSynthesizers(DynamicSynthesizer{}))
}

func TestDynamicInvoke(t *testing.T) {
	e, err := MakeEmitterWith[shape](dynamicOnly())
	require.NoError(t, err)
	assert.False(t, e.Compiled())
	assert.Equal(t, StrategyDynamic, e.Type().Strategy())
	assert.Equal(t, "dynamic:github.com/funvibe/emitter/pkg/emitter.shape", e.TypeName())

	first, second := &shapeLog{}, &shapeLog{}
	e.Add(first)
	e.Add(second)

	require.NoError(t, e.Invoke("Resize", 200, 7, 1.5))
	require.NoError(t, e.Invoke("Rename", "box", "a", "b"))
	require.NoError(t, e.Invoke("Rename", "plain"))
	require.NoError(t, e.Invoke("Attach", nil, nil))

	for _, s := range []*shapeLog{first, second} {
		assert.Equal(t, []string{"Resize", "Rename", "Rename", "Attach"}, s.calls)
		assert.Equal(t, uint8(200), s.w)
		assert.Equal(t, int16(7), s.h)
		assert.Equal(t, float32(1.5), s.scale)
		assert.Equal(t, "plain", s.name)
		assert.Empty(t, s.tags)
		assert.Equal(t, 1, s.nils)
	}
}

func TestDynamicInvokeErrors(t *testing.T) {
	e, err := MakeEmitterWith[shape](dynamicOnly())
	require.NoError(t, err)
	s := &shapeLog{}
	e.Add(s)

	tests := []struct {
		name   string
		method string
		args   []any
		want   error
	}{
		{"unknown method", "Explode", nil, ErrUnknownMethod},
		{"too few", "Resize", []any{1, 2}, ErrArgumentMismatch},
		{"too many", "Resize", []any{1, 2, 3.0, 4}, ErrArgumentMismatch},
		{"variadic without head", "Rename", nil, ErrArgumentMismatch},
		{"overflow", "Resize", []any{256, 1, 1.0}, ErrArgumentMismatch},
		{"negative to unsigned", "Resize", []any{-1, 1, 1.0}, ErrArgumentMismatch},
		{"float to int", "Resize", []any{1.5, 1, 1.0}, ErrArgumentMismatch},
		{"wrong variadic element", "Rename", []any{"x", 3}, ErrArgumentMismatch},
		{"nil for int", "Resize", []any{nil, 1, 1.0}, ErrArgumentMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := e.Invoke(tt.method, tt.args...)
			assert.ErrorIs(t, err, tt.want)
		})
	}
	assert.Empty(t, s.calls, "rejected calls must not reach listeners")
}

func TestDynamicFunc(t *testing.T) {
	e, err := MakeEmitterWith[shape](dynamicOnly())
	require.NoError(t, err)
	s := &shapeLog{}
	e.Add(s)

	fn, err := e.Func("Rename")
	require.NoError(t, err)
	rename, ok := fn.(func(string, ...string))
	require.True(t, ok, "got %T", fn)

	rename("box", "x", "y")
	assert.Equal(t, "box", s.name)
	assert.Equal(t, []string{"x", "y"}, s.tags)

	rename("bare")
	assert.Empty(t, s.tags)

	_, err = e.Func("Missing")
	assert.ErrorIs(t, err, ErrUnknownMethod)
}

func TestDynamicFirePanics(t *testing.T) {
	e, err := MakeEmitterWith[shape](dynamicOnly())
	require.NoError(t, err)

	_, ok := e.View()
	assert.False(t, ok)
	defer func() {
		r := recover()
		err, ok := r.(error)
		require.True(t, ok, "panic value %v is not an error", r)
		assert.ErrorIs(t, err, ErrNotCompiled)
		assert.ErrorIs(t, err, ErrUnsupportedInterface)
	}()
	e.Fire()
}

type nester interface {
	Enter(depth int)
}

type nestFunc func(depth int)

func (f nestFunc) Enter(depth int) { f(depth) }

func TestDynamicReentrantBroadcast(t *testing.T) {
	e, err := MakeEmitterWith[nester](dynamicOnly())
	require.NoError(t, err)

	var seen []bool
	e.Subscribe(nestFunc(func(depth int) {
		seen = append(seen, e.IsFiring())
		if depth < 2 {
			require.NoError(t, e.Invoke("Enter", depth+1))
		}
	}))

	require.NoError(t, e.Invoke("Enter", 0))
	assert.Equal(t, []bool{true, true, true}, seen)
	assert.False(t, e.IsFiring())
}

func TestDynamicListenerPanicRestoresFiring(t *testing.T) {
	e, err := MakeEmitterWith[nester](dynamicOnly())
	require.NoError(t, err)

	boom := errors.New("boom")
	reached := false
	e.Subscribe(nestFunc(func(int) { panic(boom) }))
	e.Subscribe(nestFunc(func(int) { reached = true }))

	assert.PanicsWithError(t, "boom", func() { _ = e.Invoke("Enter", 1) })
	assert.False(t, e.IsFiring())
	assert.False(t, reached)
}

func TestDynamicListenerAddedDuringBroadcast(t *testing.T) {
	e, err := MakeEmitterWith[nester](dynamicOnly())
	require.NoError(t, err)

	late := 0
	e.Subscribe(nestFunc(func(int) {
		e.Subscribe(nestFunc(func(int) { late++ }))
	}))

	require.NoError(t, e.Invoke("Enter", 0))
	assert.Zero(t, late, "listener added mid-broadcast must wait for the next one")
	require.NoError(t, e.Invoke("Enter", 0))
	assert.Equal(t, 1, late)
}

func TestConvertArg(t *testing.T) {
	tests := []struct {
		name string
		in   any
		to   reflect.Type
		want any
		ok   bool
	}{
		{"int to int64", 5, reflect.TypeFor[int64](), int64(5), true},
		{"int to uint16", 65535, reflect.TypeFor[uint16](), uint16(65535), true},
		{"int to uint16 overflow", 65536, reflect.TypeFor[uint16](), nil, false},
		{"negative to uint", -1, reflect.TypeFor[uint](), nil, false},
		{"huge uint to int64", uint64(math.MaxUint64), reflect.TypeFor[int64](), nil, false},
		{"int to float32", 3, reflect.TypeFor[float32](), float32(3), true},
		{"float64 to float32", 1.25, reflect.TypeFor[float32](), float32(1.25), true},
		{"float64 to float32 rounding", 0.1, reflect.TypeFor[float32](), nil, false},
		{"float64 to float32 overflow", 1e40, reflect.TypeFor[float32](), nil, false},
		{"infinity to float32", math.Inf(1), reflect.TypeFor[float32](), float32(math.Inf(1)), true},
		{"large int to float64", 1<<53 + 1, reflect.TypeFor[float64](), nil, false},
		{"large int to float32", 1 << 24, reflect.TypeFor[float32](), float32(1 << 24), true},
		{"odd int to float32", 1<<24 + 1, reflect.TypeFor[float32](), nil, false},
		{"max uint64 to float64", uint64(math.MaxUint64), reflect.TypeFor[float64](), nil, false},
		{"rune to int32", 'a', reflect.TypeFor[int32](), int32('a'), true},
		{"string to int", "1", reflect.TypeFor[int](), nil, false},
		{"nil to pointer", nil, reflect.TypeFor[*int](), (*int)(nil), true},
		{"concrete to interface", &shapeLog{}, reflect.TypeFor[shape](), nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := convertArg(tt.in, tt.to)
			if !tt.ok {
				assert.ErrorIs(t, err, ErrArgumentMismatch)
				return
			}
			require.NoError(t, err)
			if tt.want != nil {
				assert.Equal(t, tt.want, v.Interface())
			}
		})
	}
}
