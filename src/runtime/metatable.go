package runtime

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/kingwill101/lualike/src/parse"
)

// getMetatable resolves the metatable behind a value. Every string shares the
// vm's string metatable; string methods registered by the host land in its
// __index table and stay private to that vm.
func (vm *VM) getMetatable(in any) *Table {
	switch tin := in.(type) {
	case *Table:
		return tin.metatable
	case string:
		return vm.stringMeta
	default:
		return nil
	}
}

func (vm *VM) findMetavalue(op parse.MetaMethod, val any) any {
	if val == nil {
		return nil
	}
	if mt := vm.getMetatable(val); mt != nil && mt.hashtable[string(op)] != nil {
		return mt.hashtable[string(op)]
	}
	return nil
}

// ResolveMetamethod is a direct, non-chained lookup: metatables do not inherit
// from each other, so this is a single map access, never a walk.
func (vm *VM) ResolveMetamethod(val any, op parse.MetaMethod) any {
	return vm.findMetavalue(op, val)
}

// GetMetatable returns the __metatable field's value verbatim when present,
// which is how a table reports a protected metatable, otherwise the metatable
// instance that was set, else nil.
func (vm *VM) GetMetatable(val any) any {
	if protected := vm.findMetavalue(parse.MetaMeta, val); protected != nil {
		return protected
	}
	if mt := vm.getMetatable(val); mt != nil {
		return mt
	}
	return nil
}

// SetMetatable installs meta as val's metatable. Only tables can carry one; a
// table whose current metatable declares __metatable is protected against
// replacement; nil clears. The instance is stored as-is so a later
// GetMetatable returns the identical object.
func (vm *VM) SetMetatable(val, meta any) error {
	tbl, isTbl := val.(*Table)
	if !isTbl {
		return newTypeErr(vm, parse.LineInfo{},
			fmt.Errorf("cannot set metatable on a %v value", typeName(val)))
	}
	if vm.findMetavalue(parse.MetaMeta, val) != nil {
		return newRuntimeErr(vm, parse.LineInfo{}, errors.New("cannot change a protected metatable"))
	}
	switch tmeta := meta.(type) {
	case nil:
		tbl.metatable = nil
	case *Table:
		tbl.metatable = tmeta
		tbl.gcBarrier(tmeta)
	default:
		return newTypeErr(vm, parse.LineInfo{},
			fmt.Errorf("cannot use a %v value as a metatable", typeName(meta)))
	}
	return nil
}

// CallMetamethod resolves the named metamethod on the first argument and
// invokes it through full dispatch.
func (vm *VM) CallMetamethod(op parse.MetaMethod, args ...any) ([]any, error) {
	if len(args) == 0 {
		return nil, errors.New("metamethod call with no subject")
	}
	method := vm.findMetavalue(op, args[0])
	if method == nil {
		return nil, fmt.Errorf("no %v metamethod on %v value", op, typeName(args[0]))
	}
	return vm.Call(method, args)
}

// RawEqual compares two values without consulting __eq.
func RawEqual(lVal, rVal any) bool {
	if typeName(lVal) != typeName(rVal) {
		return false
	}
	switch tval := lVal.(type) {
	case string:
		return tval == rVal.(string)
	case int64, float64, *big.Int:
		return numEq(lVal, rVal)
	case bool:
		return tval == rVal.(bool)
	case nil:
		return true
	default:
		return lVal == rVal
	}
}

// RawGet indexes a table without consulting __index.
func RawGet(tbl *Table, key any) (any, error) {
	return tbl.Get(key)
}

// RawSet assigns without consulting __newindex; nil and NaN keys are rejected.
func RawSet(tbl *Table, key, val any) error {
	return tbl.Set(key, val)
}

// RawLen reports a string's byte length or a table's border without consulting
// __len.
func (vm *VM) RawLen(val any) (int64, error) {
	switch tval := val.(type) {
	case string:
		return int64(len(tval)), nil
	case *Table:
		return tval.Border(), nil
	default:
		return 0, newTypeErr(vm, parse.LineInfo{},
			fmt.Errorf("table or string expected, got %v", typeName(val)))
	}
}

// Length resolves the # operation: __len overrides the border scan entirely
// when present.
func (vm *VM) Length(val any) (any, error) {
	if str, isStr := val.(string); isStr {
		return int64(len(str)), nil
	}
	if method := vm.findMetavalue(parse.MetaLen, val); method != nil {
		res, err := vm.Call(method, []any{val})
		if err != nil {
			return nil, err
		} else if len(res) == 0 {
			return nil, nil
		}
		return res[0], nil
	}
	if tbl, isTbl := val.(*Table); isTbl {
		return tbl.Border(), nil
	}
	return nil, newTypeErr(vm, parse.LineInfo{},
		fmt.Errorf("attempt to get length of a %v value", typeName(val)))
}

// Index reads table[key] through __index chains. Table-valued metavalues are
// walked recursively; callable metavalues are invoked with (source, key).
func (vm *VM) Index(source, table, key any) (any, error) {
	if table == nil {
		table = source
	}
	tbl, isTable := table.(*Table)
	if isTable {
		res, err := tbl.Get(key)
		if err != nil {
			return nil, err
		} else if res != nil {
			return res, nil
		}
	}
	if metatable := vm.getMetatable(table); metatable != nil && metatable.hashtable[string(parse.MetaIndex)] != nil {
		switch metaVal := metatable.hashtable[string(parse.MetaIndex)].(type) {
		case *GoFunc, *Closure:
			if res, err := vm.Call(metaVal, []any{source, key}); err != nil {
				return nil, err
			} else if len(res) > 0 {
				return res[0], nil
			}
			return nil, nil
		default:
			return vm.Index(source, metaVal, key)
		}
	}
	if isTable {
		return nil, nil
	}
	return nil, newTypeErr(vm, parse.LineInfo{},
		fmt.Errorf("attempt to index a %v value", typeName(table)))
}

// NewIndex writes table[key] = value through __newindex chains.
func (vm *VM) NewIndex(table, key, value any) error {
	tbl, isTbl := table.(*Table)
	if isTbl {
		res, err := tbl.Get(key)
		if err != nil {
			return err
		} else if res != nil {
			return tbl.Set(key, value)
		}
	}
	if metatable := vm.getMetatable(table); metatable != nil && metatable.hashtable[string(parse.MetaNewIndex)] != nil {
		switch metaVal := metatable.hashtable[string(parse.MetaNewIndex)].(type) {
		case *GoFunc, *Closure:
			_, err := vm.Call(metaVal, []any{table, key, value})
			return err
		default:
			return vm.NewIndex(metaVal, key, value)
		}
	}
	if isTbl {
		return tbl.Set(key, value)
	}
	return newTypeErr(vm, parse.LineInfo{},
		fmt.Errorf("attempt to index a %v value", typeName(table)))
}

func (vm *VM) delegateMetamethodBinop(op parse.MetaMethod, lval, rval any) (bool, []any, error) {
	if method := vm.findMetavalue(op, lval); method != nil {
		ret, err := vm.Call(method, []any{lval, rval})
		return true, ret, err
	} else if method := vm.findMetavalue(op, rval); method != nil {
		ret, err := vm.Call(method, []any{rval, lval})
		return true, ret, err
	}
	return false, nil, nil
}
