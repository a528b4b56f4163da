package runtime

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/kingwill101/lualike/src/conf"
	"github.com/kingwill101/lualike/src/parse"
)

// createDefaultEnv builds the globals table for one vm. Everything here is
// per-vm state; two vms never share a builtin table or the require cache.
func createDefaultEnv(vm *VM) *Table {
	env := NewTable(nil, map[any]any{
		"_VERSION":       conf.LUAVERSION,
		"assert":         Fn("assert", stdAssert),
		"collectgarbage": Fn("collectgarbage", stdCollectgarbage),
		"dofile":         Fn("dofile", stdDoFile),
		"error":          Fn("error", stdError),
		"getmetatable":   Fn("getmetatable", stdGetMetatable),
		"ipairs":         Fn("ipairs", stdIPairs),
		"load":           Fn("load", stdLoad),
		"loadfile":       Fn("loadfile", stdLoadFile),
		"next":           Fn("next", stdNext),
		"pairs":          Fn("pairs", stdPairs),
		"pcall":          Fn("pcall", stdPCall),
		"print":          Fn("print", stdPrint),
		"rawequal":       Fn("rawequal", stdRawEq),
		"rawget":         Fn("rawget", stdRawGet),
		"rawlen":         Fn("rawlen", stdRawLen),
		"rawset":         Fn("rawset", stdRawSet),
		"require":        Fn("require", stdRequire),
		"select":         Fn("select", stdSelect),
		"setmetatable":   Fn("setmetatable", stdSetMetatable),
		"tonumber":       Fn("tonumber", stdToNumber),
		"tostring":       Fn("tostring", stdToString),
		"type":           Fn("type", stdType),
		"warn":           Fn("warn", stdWarn),
		"xpcall":         Fn("xpcall", stdXPCall),
	})
	vm.gc.Track(env, tableSize(env))
	_ = env.Set("package", createPackageLib(vm))
	_ = env.Set("os", createOSLib(vm))
	return env
}

func stdCollectgarbage(vm *VM, args []any) ([]any, error) {
	if err := assertArguments(args, "collectgarbage", "~string", "~number", "~number"); err != nil {
		return nil, err
	}
	opt := "collect"
	if len(args) > 0 && args[0] != nil {
		opt = args[0].(string)
	}
	switch opt {
	case "collect":
		vm.gc.Collect(vm.roots())
		return []any{int64(0)}, nil
	case "step":
		var kb int64
		if len(args) > 1 {
			kb = toInt(args[1])
		}
		return []any{vm.gc.Step(vm.roots(), kb)}, nil
	case "count":
		kb, minorMult := vm.gc.Count()
		return []any{kb, minorMult}, nil
	case "stop":
		vm.gc.Stop()
		return []any{int64(0)}, nil
	case "restart":
		vm.gc.Restart()
		return []any{int64(0)}, nil
	case "isrunning":
		return []any{vm.gc.IsRunning()}, nil
	case "incremental", "generational":
		mode := GCIncremental
		if opt == "generational" {
			mode = GCGenerational
		}
		tunables := make([]int64, 0, len(args)-1)
		for _, arg := range args[1:] {
			tunables = append(tunables, toInt(arg))
		}
		return []any{vm.gc.SetMode(mode, tunables...)}, nil
	default:
		return nil, argumentErr(1, "collectgarbage", fmt.Errorf("invalid option '%v'", opt))
	}
}

func stdprintaux(vm *VM, args []any, out io.Writer, split string) ([]any, error) {
	strParts := make([]string, len(args))
	for i, arg := range args {
		str, err := vm.ToString(arg)
		if err != nil {
			return nil, err
		}
		strParts[i] = str
	}
	_, err := fmt.Fprintln(out, strings.Join(strParts, split))
	return nil, err
}

func stdPrint(vm *VM, args []any) ([]any, error) {
	return stdprintaux(vm, args, os.Stdout, "\t")
}

func stdToString(vm *VM, args []any) ([]any, error) {
	if err := assertArguments(args, "tostring", "value"); err != nil {
		return nil, err
	}
	str, err := vm.ToString(args[0])
	if err != nil {
		return nil, err
	}
	return []any{str}, nil
}

func stdToNumber(_ *VM, args []any) ([]any, error) {
	if err := assertArguments(args, "tonumber", "value", "~number"); err != nil {
		return nil, err
	}
	base := 10
	if len(args) > 1 {
		switch baseVal := args[1].(type) {
		case int64, float64:
			parsedBase, err := strconv.Atoi(ToString(args[1]))
			if err != nil {
				return nil, argumentErr(2, "tonumber", errors.New("number has no integer representation"))
			}
			base = parsedBase
		default:
			return nil, argumentErr(2, "tonumber", fmt.Errorf("number expected, got %v", typeName(baseVal)))
		}
	}
	return []any{toNumber(args[0], base)}, nil
}

func stdType(_ *VM, args []any) ([]any, error) {
	if err := assertArguments(args, "type", "value"); err != nil {
		return nil, err
	}
	return []any{typeName(args[0])}, nil
}

// tableKeys is the full iteration sequence for next: the array part in index
// order followed by the hash part in insertion order.
func tableKeys(table *Table) []any {
	keys := make([]any, 0, len(table.val)+len(table.keyCache))
	for i := range table.val {
		keys = append(keys, int64(i+1))
	}
	return append(keys, table.keyCache...)
}

func stdNext(vm *VM, args []any) ([]any, error) {
	if err := assertArguments(args, "next", "table", "~value"); err != nil {
		return nil, err
	}
	table := args[0].(*Table)
	keys := tableKeys(table)
	if len(keys) == 0 {
		return []any{nil}, nil
	}

	var toFind any
	if len(args) > 1 {
		toFind = args[1]
	}
	if toFind == nil {
		val, err := table.Get(keys[0])
		if err != nil {
			return nil, err
		}
		return []any{denormalizeKey(keys[0]), val}, nil
	}
	normalized, err := normalizeKey(toFind)
	if err != nil {
		return nil, err
	}
	for i, key := range keys {
		if key != normalized {
			continue
		}
		if i >= len(keys)-1 {
			return []any{nil}, nil
		}
		val, err := table.Get(keys[i+1])
		if err != nil {
			return nil, err
		}
		return []any{denormalizeKey(keys[i+1]), val}, nil
	}
	return nil, argumentErr(2, "next", errors.New("invalid key to 'next'"))
}

func stdPairs(vm *VM, args []any) ([]any, error) {
	if err := assertArguments(args, "pairs", "table"); err != nil {
		return nil, err
	}
	if method := vm.findMetavalue(parse.MetaPairs, args[0]); method != nil {
		res, err := vm.Call(method, []any{args[0]})
		if err != nil {
			return nil, err
		} else if len(res) < 3 {
			return nil, errors.New("not enough return values from __pairs metamethod")
		}
		return res, nil
	}
	return []any{Fn("pairs.next", stdNext), args[0], nil}, nil
}

func stdIPairsIterator(vm *VM, args []any) ([]any, error) {
	table := args[0].(*Table)
	i := args[1].(int64) + 1
	val, err := vm.Index(table, nil, i)
	if err != nil {
		return nil, err
	} else if val == nil {
		return []any{nil}, nil
	}
	return []any{i, val}, nil
}

func stdIPairs(_ *VM, args []any) ([]any, error) {
	if err := assertArguments(args, "ipairs", "table"); err != nil {
		return nil, err
	}
	return []any{Fn("ipairs.next", stdIPairsIterator), args[0], int64(0)}, nil
}

func stdSetMetatable(vm *VM, args []any) ([]any, error) {
	if err := assertArguments(args, "setmetatable", "table", "~table"); err != nil {
		return nil, err
	}
	var meta any
	if len(args) > 1 {
		meta = args[1]
	}
	if err := vm.SetMetatable(args[0], meta); err != nil {
		return nil, err
	}
	return []any{args[0]}, nil
}

func stdGetMetatable(vm *VM, args []any) ([]any, error) {
	if err := assertArguments(args, "getmetatable", "value"); err != nil {
		return nil, err
	}
	return []any{vm.GetMetatable(args[0])}, nil
}

func stdRawEq(_ *VM, args []any) ([]any, error) {
	if err := assertArguments(args, "rawequal", "value", "value"); err != nil {
		return nil, err
	}
	return []any{RawEqual(args[0], args[1])}, nil
}

func stdRawGet(_ *VM, args []any) ([]any, error) {
	if err := assertArguments(args, "rawget", "table", "value"); err != nil {
		return nil, err
	}
	res, err := RawGet(args[0].(*Table), args[1])
	if err != nil {
		return nil, err
	}
	return []any{res}, nil
}

func stdRawSet(_ *VM, args []any) ([]any, error) {
	if err := assertArguments(args, "rawset", "table", "value", "value"); err != nil {
		return nil, err
	}
	if err := RawSet(args[0].(*Table), args[1], args[2]); err != nil {
		return nil, err
	}
	return []any{args[0]}, nil
}

func stdRawLen(vm *VM, args []any) ([]any, error) {
	if err := assertArguments(args, "rawlen", "string|table"); err != nil {
		return nil, err
	}
	n, err := vm.RawLen(args[0])
	if err != nil {
		return nil, err
	}
	return []any{n}, nil
}

func stdSelect(_ *VM, args []any) ([]any, error) {
	if err := assertArguments(args, "select", "number|string"); err != nil {
		return nil, err
	}
	if isString(args[0]) {
		strArg := args[0].(string)
		if strArg != "#" {
			return nil, argumentErr(1, "select", errors.New("number expected, got string"))
		}
		return []any{int64(len(args) - 1)}, nil
	}

	out := []any{}
	rest := args[1:]
	if sel := toInt(args[0]); sel > 0 {
		if int(sel) <= len(rest) {
			out = rest[sel-1:]
		}
	} else if sel < 0 {
		idx := len(rest) + int(sel)
		if idx < 0 {
			return nil, argumentErr(1, "select", errors.New("index out of range"))
		}
		out = rest[idx:]
	} else {
		return nil, argumentErr(1, "select", errors.New("index out of range"))
	}
	return out, nil
}

func stdWarn(vm *VM, args []any) ([]any, error) {
	return vm.warn(args...)
}

func assertArguments(args []any, methodName string, assertions ...string) error {
	for i, assertion := range assertions {
		optional := strings.HasPrefix(assertion, "~")
		expectedTypes := strings.Split(strings.TrimPrefix(assertion, "~"), "|")
		if i >= len(args) && !optional {
			return argumentErr(i+1, methodName, fmt.Errorf("%v expected", assertion))
		} else if i >= len(args) && optional {
			return nil
		} else if strings.TrimPrefix(assertion, "~") == "value" {
			continue
		} else if optional && args[i] == nil {
			continue
		}

		typeFound := false
		valType := typeName(args[i])
		for _, expected := range expectedTypes {
			if expected == valType {
				typeFound = true
				break
			}
		}
		if !typeFound {
			return argumentErr(
				i+1,
				methodName,
				fmt.Errorf(
					"%v expected but received %v",
					strings.Join(expectedTypes, ", "),
					valType,
				))
		}
	}
	return nil
}
