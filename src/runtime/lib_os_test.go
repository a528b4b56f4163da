package runtime

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOSLib_Time(t *testing.T) {
	t.Parallel()
	vm := testVM(t)

	res, err := stdOSTime(vm, nil)
	require.NoError(t, err)
	assert.InDelta(t, time.Now().Unix(), res[0].(int64), 5)

	spec := NewTable(nil, map[any]any{
		"year":  int64(2020),
		"month": int64(6),
		"day":   int64(15),
		"hour":  int64(10),
		"min":   int64(30),
		"sec":   int64(0),
	})
	res, err = stdOSTime(vm, []any{spec})
	require.NoError(t, err)
	expected := time.Date(2020, 6, 15, 10, 30, 0, 0, time.Local).Unix()
	assert.Equal(t, expected, res[0])

	incomplete := NewTable(nil, map[any]any{"year": int64(2020)})
	_, err = stdOSTime(vm, []any{incomplete})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "field 'month' missing")
}

func TestOSLib_Date(t *testing.T) {
	t.Parallel()
	vm := testVM(t)
	when := time.Date(2020, 6, 15, 10, 30, 45, 0, time.Local).Unix()

	res, err := stdOSDate(vm, []any{"%Y-%m-%d", when})
	require.NoError(t, err)
	assert.Equal(t, "2020-06-15", res[0])

	res, err = stdOSDate(vm, []any{"*t", when})
	require.NoError(t, err)
	tbl, isTbl := res[0].(*Table)
	require.True(t, isTbl)
	for field, expected := range map[string]int64{
		"year": 2020, "month": 6, "day": 15, "hour": 10, "min": 30, "sec": 45,
	} {
		val, err := tbl.Get(field)
		require.NoError(t, err)
		assert.Equal(t, expected, val, "field %v", field)
	}

	_, err = stdOSDate(vm, []any{"%Q invalid"})
	assert.Error(t, err)
}

func TestOSLib_Difftime(t *testing.T) {
	t.Parallel()
	vm := testVM(t)
	res, err := stdOSDifftime(vm, []any{int64(100), int64(40)})
	require.NoError(t, err)
	assert.Equal(t, float64(60), res[0])

	res, err = stdOSDifftime(vm, []any{25.5, 10.25})
	require.NoError(t, err)
	assert.Equal(t, 15.25, res[0])
}

func TestOSLib_Getenv(t *testing.T) {
	vm := testVM(t)
	t.Setenv("LUALIKE_TEST_VAR", "set")

	res, err := stdOSGetenv(vm, []any{"LUALIKE_TEST_VAR"})
	require.NoError(t, err)
	assert.Equal(t, "set", res[0])

	res, err = stdOSGetenv(vm, []any{"LUALIKE_TEST_VAR_MISSING"})
	require.NoError(t, err)
	assert.Nil(t, res[0])
}

func TestOSLib_Exit(t *testing.T) {
	t.Parallel()
	vm := testVM(t)
	_, err := stdOSExit(vm, []any{int64(2)})
	sig, isSig := asSignal(err)
	require.True(t, isSig)
	assert.Equal(t, SignalExit, sig.Kind())
	assert.Equal(t, 2, sig.Code())

	_, err = stdOSExit(vm, []any{false})
	sig, _ = asSignal(err)
	assert.Equal(t, 1, sig.Code())
}
