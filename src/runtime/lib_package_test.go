package runtime

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requirePackageTable(t *testing.T, vm *VM, field string) *Table {
	t.Helper()
	pkg := vm.packageTable()
	require.NotNil(t, pkg)
	if field == "" {
		return pkg
	}
	val, err := pkg.Get(field)
	require.NoError(t, err)
	tbl, isTbl := val.(*Table)
	require.True(t, isTbl)
	return tbl
}

func TestPackageLib_Shape(t *testing.T) {
	t.Parallel()
	vm := testVM(t)
	pkg := requirePackageTable(t, vm, "")
	for _, field := range []string{"loaded", "preload", "searchers"} {
		val, err := pkg.Get(field)
		require.NoError(t, err)
		assert.IsType(t, &Table{}, val, "package.%v", field)
	}
	path, err := pkg.Get("path")
	require.NoError(t, err)
	assert.Contains(t, path.(string), "?.lua")
	sp, err := pkg.Get("searchpath")
	require.NoError(t, err)
	assert.True(t, isCallable(sp))
}

func TestStdRequire_Preload(t *testing.T) {
	t.Parallel()
	vm := testVM(t)
	preload := requirePackageTable(t, vm, "preload")

	loaderRuns := 0
	module := NewTable(nil, map[any]any{"answer": int64(42)})
	require.NoError(t, preload.Set("mymod", Fn("loader", func(_ *VM, args []any) ([]any, error) {
		loaderRuns++
		assert.Equal(t, "mymod", args[0])
		assert.Equal(t, ":preload:", args[1])
		return []any{module}, nil
	})))

	res, err := stdRequire(vm, []any{"mymod"})
	require.NoError(t, err)
	require.NotEmpty(t, res)
	assert.Same(t, module, res[0])
	assert.Equal(t, 1, loaderRuns)

	// cached: the loader does not run again and identity holds
	res, err = stdRequire(vm, []any{"mymod"})
	require.NoError(t, err)
	assert.Same(t, module, res[0])
	assert.Equal(t, 1, loaderRuns)
}

func TestStdRequire_LoaderReturnsNothing(t *testing.T) {
	t.Parallel()
	vm := testVM(t)
	preload := requirePackageTable(t, vm, "preload")
	require.NoError(t, preload.Set("sideeffects", Fn("loader", func(_ *VM, _ []any) ([]any, error) {
		return nil, nil
	})))

	res, err := stdRequire(vm, []any{"sideeffects"})
	require.NoError(t, err)
	assert.Equal(t, true, res[0])

	loaded := requirePackageTable(t, vm, "loaded")
	val, err := loaded.Get("sideeffects")
	require.NoError(t, err)
	assert.Equal(t, true, val)
}

func TestStdRequire_Circular(t *testing.T) {
	t.Parallel()
	vm := testVM(t)
	preload := requirePackageTable(t, vm, "preload")

	var circularSaw any
	require.NoError(t, preload.Set("selfref", Fn("loader", func(vm *VM, _ []any) ([]any, error) {
		res, err := stdRequire(vm, []any{"selfref"})
		require.NoError(t, err)
		circularSaw = res[0]
		return []any{"final"}, nil
	})))

	res, err := stdRequire(vm, []any{"selfref"})
	require.NoError(t, err)
	assert.Equal(t, "final", res[0])
	// the circular inner require observed the in-progress marker, not a rerun
	assert.Equal(t, false, circularSaw)
}

func TestStdRequire_FailedLoaderClearsMarker(t *testing.T) {
	t.Parallel()
	vm := testVM(t)
	preload := requirePackageTable(t, vm, "preload")

	attempts := 0
	require.NoError(t, preload.Set("flaky", Fn("loader", func(vm *VM, _ []any) ([]any, error) {
		attempts++
		if attempts == 1 {
			return stdError(vm, []any{"first attempt fails"})
		}
		return []any{"ok"}, nil
	})))

	_, err := stdRequire(vm, []any{"flaky"})
	require.Error(t, err)

	res, err := stdRequire(vm, []any{"flaky"})
	require.NoError(t, err)
	assert.Equal(t, "ok", res[0])
	assert.Equal(t, 2, attempts)
}

func TestStdRequire_File(t *testing.T) {
	t.Parallel()
	vm := testVM(t)
	vm.SetExecutor(&testExec{run: func(_ *VM, fn *Closure, _ []any) ([]any, error) {
		return nil, ReturnSignal("module from " + fn.Chunk().ChunkName())
	}})

	dir := t.TempDir()
	path := filepath.Join(dir, "diskmod.lua")
	require.NoError(t, os.WriteFile(path, []byte("return {}"), 0o644))

	pkg := requirePackageTable(t, vm, "")
	require.NoError(t, pkg.Set("path", filepath.Join(dir, "?.lua")))

	res, err := stdRequire(vm, []any{"diskmod"})
	require.NoError(t, err)
	require.Len(t, res, 2)
	assert.Equal(t, "module from "+path, res[0])
	assert.Equal(t, path, res[1])
}

func TestStdRequire_NotFound(t *testing.T) {
	t.Parallel()
	vm := testVM(t)
	_, err := stdRequire(vm, []any{"definitely.not.there"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "module 'definitely.not.there' not found")
	assert.Contains(t, err.Error(), "no file")
}

func TestStdPkgSearchPath(t *testing.T) {
	t.Parallel()
	vm := testVM(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "mod.lua")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(""), 0o644))

	templates := filepath.Join(dir, "?.lua")
	res, err := stdPkgSearchPath(vm, []any{"nested.mod", templates})
	require.NoError(t, err)
	assert.Equal(t, []any{path}, res)

	res, err = stdPkgSearchPath(vm, []any{"missing", templates})
	require.NoError(t, err)
	require.Len(t, res, 2)
	assert.Nil(t, res[0])
	assert.Contains(t, res[1].(string), "no file")
}
