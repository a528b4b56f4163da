package runtime

import (
	"math"
	"math/big"

	"github.com/kingwill101/lualike/src/lerrors"
)

// Table is a container object in lua that acts both as an array and a map.
// It is used during runtime but can also be changed in go code. Integer keys
// from 1 live in the array part; everything else in the hash part. A key cache
// keeps hash iteration order stable for next/pairs.
type Table struct {
	val       []any
	hashtable map[any]any
	metatable *Table
	keyCache  []any
	gc        *GC
}

// bigKey is the canonical hash key for integers outside the int64 range, so
// equal big integers behind distinct pointers address the same slot.
type bigKey string

// NewTable will create a new table with default values contained in it. Since
// lua tables act as both array and map, both can be passed in to set the
// values. Keys are normalized on the way in so that float and big integer
// keys address the same slots raw Set would give them.
func NewTable(arr []any, hash map[any]any) *Table {
	normalized := make(map[any]any, len(hash))
	keycache := make([]any, 0, len(hash))
	for key, val := range hash {
		nkey, err := normalizeKey(key)
		if err != nil {
			continue
		}
		normalized[nkey] = val
		keycache = append(keycache, nkey)
	}
	return &Table{
		val:       arr,
		hashtable: normalized,
		keyCache:  keycache,
	}
}

func newSizedTable(arraySize, tableSize int) *Table {
	return &Table{
		val:       make([]any, 0, arraySize),
		hashtable: make(map[any]any, tableSize),
	}
}

// Keys returns the map keys for the map storage used for pairs iteration.
// Canonicalized big integer keys surface as *big.Int again.
func (t *Table) Keys() []any {
	for i, k := range t.keyCache {
		if _, isBig := k.(bigKey); !isBig {
			continue
		}
		keys := append([]any{}, t.keyCache...)
		for j := i; j < len(keys); j++ {
			keys[j] = denormalizeKey(keys[j])
		}
		return keys
	}
	return t.keyCache
}

// Metatable returns the table's metatable, nil when unset. The same instance
// round-trips through SetMetatable so identity comparisons hold.
func (t *Table) Metatable() *Table { return t.metatable }

// normalizeKey rejects the illegal raw keys and folds integral floats onto
// their integer form so that t[2] and t[2.0] address the same slot.
func normalizeKey(key any) (any, error) {
	switch keyval := key.(type) {
	case nil:
		return nil, &lerrors.Error{Kind: lerrors.TypeErr, Err: errTableIndexNil}
	case float64:
		if math.IsNaN(keyval) {
			return nil, &lerrors.Error{Kind: lerrors.TypeErr, Err: errTableIndexNaN}
		}
		if keyval == math.Trunc(keyval) && !math.IsInf(keyval, 0) {
			return int64(keyval), nil
		}
	case *big.Int:
		if keyval.IsInt64() {
			return keyval.Int64(), nil
		}
		return bigKey(keyval.String()), nil
	}
	return key, nil
}

// denormalizeKey is the inverse of normalizeKey for keys handed back to the
// caller during iteration.
func denormalizeKey(key any) any {
	if bk, isBig := key.(bigKey); isBig {
		n, _ := new(big.Int).SetString(string(bk), 10)
		return n
	}
	return key
}

// Get will return the value for the key. If it is a positive int it will get
// it from the array store, otherwise the map. Nil and NaN keys are not allowed.
func (t *Table) Get(key any) (any, error) {
	key, err := normalizeKey(key)
	if err != nil {
		return nil, err
	}
	if i, isInt := key.(int64); isInt && i > 0 {
		if int(i) <= len(t.val) {
			return t.val[i-1], nil
		}
	}
	val, ok := t.hashtable[key]
	if !ok {
		return nil, nil
	}
	return val, nil
}

// Set will set a value at a given key. Contiguous positive integer keys extend
// the array part; everything else lands in the hash part. Assigning nil
// removes the key. Nil and NaN keys are not allowed.
func (t *Table) Set(key, val any) error {
	key, err := normalizeKey(key)
	if err != nil {
		return err
	}
	if val != nil {
		t.gcBarrier(key, val)
	}
	if i, isInt := key.(int64); isInt && i > 0 {
		switch {
		case int(i) <= len(t.val):
			t.val[i-1] = val
			if val == nil {
				t.trimArray()
			}
			return nil
		case int(i) == len(t.val)+1 && val != nil:
			t.val = append(t.val, val)
			t.migrateFromHash()
			return nil
		}
	}
	_, exists := t.hashtable[key]
	if !exists && val != nil {
		t.keyCache = append(t.keyCache, key)
	}
	if val == nil {
		if exists {
			t.dropCachedKey(key)
			delete(t.hashtable, key)
		}
	} else {
		t.hashtable[key] = val
	}
	return nil
}

// trimArray drops trailing nil slots so that the array part always ends on a
// non-nil value, keeping the border scan cheap.
func (t *Table) trimArray() {
	n := len(t.val)
	for n > 0 && t.val[n-1] == nil {
		n--
	}
	t.val = t.val[:n]
}

// migrateFromHash pulls integer keys that became contiguous with the array
// part out of the hash part after an append.
func (t *Table) migrateFromHash() {
	for {
		next := int64(len(t.val) + 1)
		val, ok := t.hashtable[next]
		if !ok {
			return
		}
		t.val = append(t.val, val)
		t.dropCachedKey(next)
		delete(t.hashtable, next)
	}
}

// gcBarrier forwards new links to the collector when this table is
// collector-managed, keeping an in-flight mark phase coherent with mutation.
func (t *Table) gcBarrier(vals ...any) {
	if t.gc == nil {
		return
	}
	for _, v := range vals {
		t.gc.barrier(v)
	}
}

func (t *Table) dropCachedKey(key any) {
	for i, kc := range t.keyCache {
		if key == kc {
			t.keyCache = t.keyCache[:i+copy(t.keyCache[i:], t.keyCache[i+1:])]
			break
		}
	}
}

// Border finds a border: an n >= 0 where t[n] is non-nil and t[n+1] is nil.
// The array part is probed backwards over any trailing hole, then the hash
// part is probed forwards for integer keys continuing the sequence. Tables
// with holes have several valid borders; this returns the first one found by
// the probe, which is what rawlen and # report.
func (t *Table) Border() int64 {
	n := int64(len(t.val))
	for n > 0 && t.val[n-1] == nil {
		n--
	}
	if n == int64(len(t.val)) {
		for {
			if _, ok := t.hashtable[n+1]; !ok {
				break
			}
			n++
		}
	}
	return n
}
