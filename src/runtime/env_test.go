package runtime

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvironment_DeclareResolve(t *testing.T) {
	t.Parallel()

	t.Run("lookup walks parents", func(t *testing.T) {
		t.Parallel()
		root := NewEnvironment(nil)
		root.Declare("x", int64(1))
		child := NewEnvironment(root)
		val, ok := child.Get("x")
		require.True(t, ok)
		assert.Equal(t, int64(1), val)
	})

	t.Run("declare shadows", func(t *testing.T) {
		t.Parallel()
		root := NewEnvironment(nil)
		root.Declare("x", int64(1))
		child := NewEnvironment(root)
		child.Declare("x", int64(2))

		val, _ := child.Get("x")
		assert.Equal(t, int64(2), val)
		val, _ = root.Get("x")
		assert.Equal(t, int64(1), val)
	})

	t.Run("set writes through to the owning scope", func(t *testing.T) {
		t.Parallel()
		root := NewEnvironment(nil)
		root.Declare("x", int64(1))
		child := NewEnvironment(root)
		require.True(t, child.Set("x", int64(9)))
		val, _ := root.Get("x")
		assert.Equal(t, int64(9), val)
	})

	t.Run("set on unknown name reports false", func(t *testing.T) {
		t.Parallel()
		env := NewEnvironment(nil)
		assert.False(t, env.Set("missing", int64(1)))
		_, ok := env.Get("missing")
		assert.False(t, ok)
	})

	t.Run("define falls back to declare", func(t *testing.T) {
		t.Parallel()
		env := NewEnvironment(nil)
		env.Define("x", int64(1))
		val, ok := env.Get("x")
		require.True(t, ok)
		assert.Equal(t, int64(1), val)
	})
}

func TestEnvironment_SharedCells(t *testing.T) {
	t.Parallel()
	env := NewEnvironment(nil)
	env.Declare("counter", int64(0))

	cellA, ok := env.Resolve("counter")
	require.True(t, ok)
	cellB, ok := NewEnvironment(env).Resolve("counter")
	require.True(t, ok)
	assert.Same(t, cellA, cellB)

	cellA.Set(int64(5))
	assert.Equal(t, int64(5), cellB.Get())
}

func TestEnvironment_Isolated(t *testing.T) {
	t.Parallel()
	outer := NewEnvironment(nil)
	outer.Declare("secret", "hidden")

	globals := NewTable(nil, nil)
	iso := NewIsolatedEnvironment(globals)
	assert.True(t, iso.Isolated())

	_, ok := iso.Get("secret")
	assert.False(t, ok)

	envVal, ok := iso.Get("_ENV")
	require.True(t, ok)
	assert.Same(t, globals, envVal)
	gVal, ok := iso.Get("_G")
	require.True(t, ok)
	assert.Same(t, globals, gVal)
}

func TestUpvalue(t *testing.T) {
	t.Parallel()
	cell := NewUpvalue("x", int64(1))
	assert.Equal(t, "x", cell.Name())
	assert.Equal(t, int64(1), cell.Get())
	cell.Set("replaced")
	assert.Equal(t, "replaced", cell.Get())
}

func TestVM_CaptureClosure(t *testing.T) {
	t.Parallel()
	vm := testVM(t)
	scope := NewEnvironment(nil)
	scope.Declare("shared", int64(0))

	chunk := &testChunk{name: "capture"}
	clsA := vm.CaptureClosure(chunk, []string{"shared"}, scope)
	clsB := vm.CaptureClosure(chunk, []string{"shared"}, scope)

	require.Len(t, clsA.Upvalues(), 1)
	assert.Same(t, clsA.Upvalues()[0], clsB.Upvalues()[0])

	clsA.Upvalues()[0].Set(int64(42))
	assert.Equal(t, int64(42), clsB.Upvalues()[0].Get())

	// unresolvable names still get a named nil cell
	clsC := vm.CaptureClosure(chunk, []string{"ghost"}, scope)
	require.Len(t, clsC.Upvalues(), 1)
	assert.Equal(t, "ghost", clsC.Upvalues()[0].Name())
	assert.Nil(t, clsC.Upvalues()[0].Get())
}

func TestVM_NewClosure(t *testing.T) {
	t.Parallel()
	vm := testVM(t)
	cls := vm.NewClosure(&testChunk{name: "main"}, vm.Env())
	require.Len(t, cls.Upvalues(), 2)
	assert.Equal(t, "_ENV", cls.Upvalues()[1].Name())
	assert.Same(t, vm.Env(), cls.Upvalues()[1].Get())
	// the closure scope sees _ENV but not caller locals
	_, ok := cls.Env().Get("_ENV")
	assert.True(t, ok)
}
