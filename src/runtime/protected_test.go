package runtime

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProtectedCall(t *testing.T) {
	t.Parallel()
	vm := testVM(t)

	t.Run("success passes results through", func(t *testing.T) {
		t.Parallel()
		fn := Fn("ok", func(_ *VM, _ []any) ([]any, error) {
			return []any{int64(1), "two"}, nil
		})
		res, err := vm.ProtectedCall(fn, nil)
		require.NoError(t, err)
		assert.Equal(t, []any{int64(1), "two"}, res)
	})

	t.Run("depth and yieldable restored", func(t *testing.T) {
		t.Parallel()
		prev := vm.SetYieldable(true)
		defer vm.SetYieldable(prev)

		fn := Fn("checks", func(vm *VM, _ []any) ([]any, error) {
			assert.True(t, vm.IsProtected())
			assert.False(t, vm.Yieldable())
			return nil, errors.New("fail anyway")
		})
		_, err := vm.ProtectedCall(fn, nil)
		require.Error(t, err)
		assert.False(t, vm.IsProtected())
		assert.True(t, vm.Yieldable())
	})
}

func TestStdPCall(t *testing.T) {
	t.Parallel()
	vm := testVM(t)

	t.Run("success prepends true", func(t *testing.T) {
		t.Parallel()
		fn := Fn("ok", func(_ *VM, args []any) ([]any, error) {
			return []any{args[0]}, nil
		})
		res, err := stdPCall(vm, []any{fn, "payload"})
		require.NoError(t, err)
		assert.Equal(t, []any{true, "payload"}, res)
	})

	t.Run("failure returns false and message", func(t *testing.T) {
		t.Parallel()
		fn := Fn("fails", func(_ *VM, _ []any) ([]any, error) {
			return nil, errors.New("something broke")
		})
		res, err := stdPCall(vm, []any{fn})
		require.NoError(t, err)
		require.Len(t, res, 2)
		assert.Equal(t, false, res[0])
		assert.Contains(t, res[1].(string), "something broke")
	})

	t.Run("thrown values round trip unchanged", func(t *testing.T) {
		t.Parallel()
		payload := NewTable(nil, map[any]any{"code": int64(7)})
		fn := Fn("throws", func(vm *VM, _ []any) ([]any, error) {
			return stdError(vm, []any{payload})
		})
		res, err := stdPCall(vm, []any{fn})
		require.NoError(t, err)
		require.Len(t, res, 2)
		assert.Equal(t, false, res[0])
		assert.Same(t, payload, res[1])
	})

	t.Run("calling a non-function is caught", func(t *testing.T) {
		t.Parallel()
		res, err := stdPCall(vm, []any{int64(5)})
		require.NoError(t, err)
		assert.Equal(t, false, res[0])
	})

	t.Run("exit signals are not caught", func(t *testing.T) {
		t.Parallel()
		fn := Fn("exits", func(_ *VM, _ []any) ([]any, error) {
			return nil, ExitSignal(0)
		})
		_, err := stdPCall(vm, []any{fn})
		sig, isSig := asSignal(err)
		require.True(t, isSig)
		assert.Equal(t, SignalExit, sig.Kind())
	})

	t.Run("nested protection unwinds one level", func(t *testing.T) {
		t.Parallel()
		inner := Fn("inner", func(_ *VM, _ []any) ([]any, error) {
			return nil, errors.New("inner fault")
		})
		outer := Fn("outer", func(vm *VM, _ []any) ([]any, error) {
			res, err := stdPCall(vm, []any{inner})
			require.NoError(t, err)
			assert.Equal(t, false, res[0])
			return []any{"recovered"}, nil
		})
		res, err := stdPCall(vm, []any{outer})
		require.NoError(t, err)
		assert.Equal(t, []any{true, "recovered"}, res)
	})
}

func TestStdXPCall(t *testing.T) {
	t.Parallel()
	vm := testVM(t)

	t.Run("handler sees the error value", func(t *testing.T) {
		t.Parallel()
		fn := Fn("fails", func(vm *VM, _ []any) ([]any, error) {
			return stdError(vm, []any{"original"})
		})
		handler := Fn("handler", func(_ *VM, args []any) ([]any, error) {
			return []any{"handled: " + ToString(args[0])}, nil
		})
		res, err := stdXPCall(vm, []any{fn, handler})
		require.NoError(t, err)
		assert.Equal(t, []any{false, "handled: original"}, res)
	})

	t.Run("success skips the handler", func(t *testing.T) {
		t.Parallel()
		fn := Fn("ok", func(_ *VM, args []any) ([]any, error) {
			return []any{args[0]}, nil
		})
		handler := Fn("handler", func(_ *VM, _ []any) ([]any, error) {
			t.Fatal("handler should not run")
			return nil, nil
		})
		res, err := stdXPCall(vm, []any{fn, handler, "through"})
		require.NoError(t, err)
		assert.Equal(t, []any{true, "through"}, res)
	})

	t.Run("failing handler degrades", func(t *testing.T) {
		t.Parallel()
		fn := Fn("fails", func(_ *VM, _ []any) ([]any, error) {
			return nil, errors.New("first")
		})
		handler := Fn("badhandler", func(_ *VM, _ []any) ([]any, error) {
			return nil, errors.New("second")
		})
		res, err := stdXPCall(vm, []any{fn, handler})
		require.NoError(t, err)
		assert.Equal(t, []any{false, "error in error handling"}, res)
	})
}

func TestStdError(t *testing.T) {
	t.Parallel()
	vm := testVM(t)

	_, err := stdError(vm, []any{"boom"})
	require.Error(t, err)
	assert.Equal(t, "boom", errValue(err))

	// no arguments throws a nil error object
	_, err = stdError(vm, nil)
	require.Error(t, err)
	assert.Nil(t, errValue(err))
}

func TestStdAssert(t *testing.T) {
	t.Parallel()
	vm := testVM(t)

	res, err := stdAssert(vm, []any{int64(1), "extra"})
	require.NoError(t, err)
	assert.Equal(t, []any{int64(1), "extra"}, res)

	_, err = stdAssert(vm, []any{false})
	require.Error(t, err)
	assert.Equal(t, "assertion failed!", errValue(err))

	_, err = stdAssert(vm, []any{nil, "custom message"})
	require.Error(t, err)
	assert.Equal(t, "custom message", errValue(err))
}

func TestStdPCall_YieldAcrossBoundary(t *testing.T) {
	t.Parallel()
	vm := testVM(t)
	prev := vm.SetYieldable(true)
	defer vm.SetYieldable(prev)

	yielder := Fn("yielder", func(_ *VM, _ []any) ([]any, error) {
		return nil, YieldSignal("suspended")
	})
	res, err := stdPCall(vm, []any{yielder})
	require.NoError(t, err)
	require.Len(t, res, 2)
	assert.Equal(t, false, res[0])
	assert.Contains(t, res[1].(string), "attempt to yield across a protected call boundary")
	assert.True(t, vm.Yieldable())
}
