package registry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/lazyflow/internal/op"
)

type squareModule struct{}

func (squareModule) Register(r *Registry) {
	r.Register(op.MustDefine("square", func(x int) int { return x * x }, op.WithVersion("1")))
}

func TestRegistry_LoadAndLookup(t *testing.T) {
	r := New().Load(squareModule{})
	r.Register(op.MustDefine("greet", func(name string) string { return "hi " + name }))

	assert.Equal(t, []string{"greet", "square@1"}, r.Identities())
	f, ok := r.Lookup("square@1")
	require.True(t, ok)
	assert.Equal(t, "square", f.Name())

	_, ok = r.Lookup("square")
	assert.False(t, ok, "lookup is by full identity")
}

func TestRegistry_DuplicatePanics(t *testing.T) {
	r := New().Load(squareModule{})
	assert.Panics(t, func() { r.Load(squareModule{}) })
}

func TestRegistry_Validate(t *testing.T) {
	ok := New()
	ok.Register(op.MustDefine("sum", func(xs []float64) float64 { return 0 }))
	ok.Register(op.MustDefine("any", func(v any) any { return v }))
	assert.NoError(t, ok.Validate(context.Background()))

	bad := New()
	bad.Register(op.MustDefine("callback", func(f func()) int { return 0 }))
	err := bad.Validate(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "callback")
}
