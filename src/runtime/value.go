package runtime

import (
	"errors"
	"fmt"
	"math"
	"math/big"
	"strconv"
	"strings"

	"github.com/kingwill101/lualike/src/lstring"
	"github.com/kingwill101/lualike/src/parse"
)

type (
	// GoFunc is a go func usable by the vm.
	GoFunc struct {
		val  func(*VM, []any) ([]any, error)
		name string
	}
	// Closure is a parsed chunk bound to its upvalues and lexical environment.
	// The host executor runs the chunk; the runtime only wires it up.
	Closure struct {
		chunk    parse.Chunk
		upvalues []*Upvalue
		env      *Environment
	}
)

func (fn *GoFunc) String() string {
	return fmt.Sprintf("function:[%s()]", fn.name)
}

func (fn *Closure) String() string {
	if fn.chunk != nil && fn.chunk.ChunkName() != "" {
		return fmt.Sprintf("function:[%s()]", fn.chunk.ChunkName())
	}
	return fmt.Sprintf("function:[%p]", fn)
}

// Chunk returns the parsed unit this closure runs.
func (fn *Closure) Chunk() parse.Chunk { return fn.chunk }

// Upvalues returns the ordered upvalue cells bound at construction time.
func (fn *Closure) Upvalues() []*Upvalue { return fn.upvalues }

// Env returns the lexical environment the closure was created in.
func (fn *Closure) Env() *Environment { return fn.env }

// Fn creates a value that is usable by the vm from a function. This enables
// exposing a go function to the VM.
func Fn(name string, fn func(*VM, []any) ([]any, error)) *GoFunc {
	return &GoFunc{
		name: name,
		val:  fn,
	}
}

// TypeName reports the lua type name for any runtime value.
func TypeName(in any) string { return typeName(in) }

func typeName(in any) string {
	switch in.(type) {
	case int64, float64, *big.Int:
		return "number"
	case string:
		return "string"
	case bool:
		return "boolean"
	case *Closure, *GoFunc:
		return "function"
	case *Table:
		return "table"
	case error:
		return "error"
	case nil:
		return "nil"
	default:
		return "userdata"
	}
}

// ToBool reports lua truthiness: only nil and false are falsy.
func ToBool(in any) bool { return toBool(in) }

func toBool(in any) bool {
	switch tin := in.(type) {
	case nil:
		return false
	case bool:
		return tin
	default:
		return true
	}
}

func isNumber(in any) bool {
	switch in.(type) {
	case int64, float64, *big.Int:
		return true
	default:
		return false
	}
}

func isString(in any) bool {
	switch in.(type) {
	case string:
		return true
	default:
		return false
	}
}

func isCallable(in any) bool {
	switch in.(type) {
	case *Closure, *GoFunc:
		return true
	default:
		return false
	}
}

func toInt(val any) int64 {
	switch tval := val.(type) {
	case int64:
		return tval
	case float64:
		return int64(tval)
	case *big.Int:
		if tval.IsInt64() {
			return tval.Int64()
		}
		return math.MaxInt64
	default:
		return int64(math.NaN())
	}
}

func toFloat(val any) float64 {
	switch tval := val.(type) {
	case int64:
		return float64(tval)
	case float64:
		return tval
	case *big.Int:
		fval, _ := new(big.Float).SetInt(tval).Float64()
		return fval
	default:
		return math.NaN()
	}
}

// ToNumber coerces a value to a number following tonumber rules, returning nil
// when no coercion exists.
func ToNumber(in any, base int) any { return toNumber(in, base) }

func toNumber(in any, base int) any {
	switch tin := in.(type) {
	case int64, float64, *big.Int:
		return in
	case string:
		if strings.Contains(tin, ".") {
			fval, err := strconv.ParseFloat(tin, 64)
			if err != nil {
				return nil
			}
			return fval
		}
		ival, err := strconv.ParseInt(tin, base, 64)
		if err != nil {
			if bval, ok := new(big.Int).SetString(tin, base); ok {
				return bval
			}
			return nil
		}
		return ival
	default:
		return nil
	}
}

// demoteBig keeps numbers as int64 whenever they fit so that arithmetic on big
// integers that shrinks back into machine range produces ordinary integers.
func demoteBig(val *big.Int) any {
	if val.IsInt64() {
		return val.Int64()
	}
	return val
}

func toBig(val any) *big.Int {
	switch tval := val.(type) {
	case *big.Int:
		return tval
	case int64:
		return big.NewInt(tval)
	case float64:
		bval, _ := new(big.Float).SetFloat64(tval).Int(nil)
		return bval
	default:
		return new(big.Int)
	}
}

// ToString will format a vm value to a printable string without consulting
// metamethods. Use VM.ToString for __tostring-aware formatting.
func ToString(val any) string {
	switch tin := val.(type) {
	case nil:
		return "nil"
	case string:
		return tin
	case *Table:
		return fmt.Sprintf("table: %p", tin)
	case error:
		return tin.Error()
	case bool:
		return strconv.FormatBool(tin)
	case int64:
		return strconv.FormatInt(tin, 10)
	case *big.Int:
		return tin.String()
	case float64:
		return fmt.Sprintf("%v", tin)
	case fmt.Stringer:
		return tin.String()
	default:
		return fmt.Sprintf("%v: %p", typeName(val), val)
	}
}

// Flatten splices a trailing multi-value into a flat result list. Multi-values
// are only legal in the final position and are never nested.
func Flatten(vals []any) []any {
	if len(vals) == 0 {
		return vals
	}
	tail, isMulti := vals[len(vals)-1].([]any)
	if !isMulti {
		return vals
	}
	out := make([]any, 0, len(vals)-1+len(tail))
	out = append(out, vals[:len(vals)-1]...)
	return append(out, tail...)
}

// Arith performs a numeric binary or unary operation, delegating to
// metamethods when the raw types cannot satisfy it. Big integers promote the
// whole operation to big arithmetic and demote the result when it fits.
func (vm *VM) Arith(op parse.MetaMethod, lval, rval any) (any, error) {
	return arith(vm, op, lval, rval)
}

func arith(vm *VM, op parse.MetaMethod, lval, rval any) (any, error) {
	if op == parse.MetaUNM {
		switch tlval := lval.(type) {
		case int64:
			return -tlval, nil
		case *big.Int:
			return demoteBig(new(big.Int).Neg(tlval)), nil
		default:
			if isNumber(lval) {
				return -toFloat(lval), nil
			}
		}
	} else if isNumber(lval) && isNumber(rval) {
		_, lisBig := lval.(*big.Int)
		_, risBig := rval.(*big.Int)
		if lisBig || risBig {
			if res, ok := bigArith(op, toBig(lval), toBig(rval)); ok {
				return res, nil
			}
			return floatArith(op, toFloat(lval), toFloat(rval)), nil
		}
		switch op {
		case parse.MetaDiv, parse.MetaPow:
			return floatArith(op, toFloat(lval), toFloat(rval)), nil
		default:
			liva, lisInt := lval.(int64)
			riva, risInt := rval.(int64)
			if lisInt && risInt {
				return intArith(op, liva, riva), nil
			}
			return floatArith(op, toFloat(lval), toFloat(rval)), nil
		}
	}
	if didDelegate, res, err := vm.delegateMetamethodBinop(op, lval, rval); err != nil {
		return nil, err
	} else if !didDelegate {
		if op == parse.MetaUNM {
			return nil, fmt.Errorf("cannot %v %v", op, typeName(lval))
		}
		return nil, fmt.Errorf("cannot %v %v and %v", op, typeName(lval), typeName(rval))
	} else if len(res) > 0 {
		return res[0], nil
	}
	return nil, errors.New("error object is a nil value")
}

func intArith(op parse.MetaMethod, lval, rval int64) int64 {
	switch op {
	case parse.MetaAdd:
		return lval + rval
	case parse.MetaSub:
		return lval - rval
	case parse.MetaMul:
		return lval * rval
	case parse.MetaIDiv:
		if rval == 0 {
			return int64(math.Inf(1))
		}
		return lval / rval
	case parse.MetaMod:
		if rval == 0 {
			return int64(math.NaN())
		}
		return lval % rval
	default:
		panic(fmt.Sprintf("cannot perform int %v op", op))
	}
}

func bigArith(op parse.MetaMethod, lval, rval *big.Int) (any, bool) {
	switch op {
	case parse.MetaAdd:
		return demoteBig(new(big.Int).Add(lval, rval)), true
	case parse.MetaSub:
		return demoteBig(new(big.Int).Sub(lval, rval)), true
	case parse.MetaMul:
		return demoteBig(new(big.Int).Mul(lval, rval)), true
	case parse.MetaIDiv:
		if rval.Sign() == 0 {
			return int64(math.Inf(1)), true
		}
		return demoteBig(new(big.Int).Div(lval, rval)), true
	case parse.MetaMod:
		if rval.Sign() == 0 {
			return int64(math.NaN()), true
		}
		return demoteBig(new(big.Int).Mod(lval, rval)), true
	default:
		return nil, false
	}
}

func floatArith(op parse.MetaMethod, lval, rval float64) float64 {
	switch op {
	case parse.MetaAdd:
		return lval + rval
	case parse.MetaSub:
		return lval - rval
	case parse.MetaMul:
		return lval * rval
	case parse.MetaDiv:
		return lval / rval
	case parse.MetaPow:
		return math.Pow(lval, rval)
	case parse.MetaIDiv:
		return math.Floor(lval / rval)
	case parse.MetaUNM:
		return -lval
	case parse.MetaMod:
		return math.Mod(lval, rval)
	default:
		panic(fmt.Sprintf("cannot perform float %v op", op))
	}
}

// Equals compares two values for equality, consulting __eq only when both
// operands are tables that are not raw-equal.
func (vm *VM) Equals(lVal, rVal any) (bool, error) {
	return eq(vm, lVal, rVal)
}

func eq(vm *VM, lVal, rVal any) (bool, error) {
	if typeName(lVal) != typeName(rVal) {
		return false, nil
	}
	switch tlval := lVal.(type) {
	case string:
		return tlval == rVal.(string), nil
	case int64, float64, *big.Int:
		return numEq(lVal, rVal), nil
	case bool:
		return tlval == rVal.(bool), nil
	case nil:
		return true, nil
	case *Table:
		if lVal == rVal {
			return true, nil
		}
		didDelegate, res, err := vm.delegateMetamethodBinop(parse.MetaEq, lVal, rVal)
		if err != nil {
			return false, err
		} else if didDelegate && len(res) > 0 {
			return toBool(res[0]), nil
		}
		return false, nil
	case *Closure:
		return lVal == rVal, nil
	case *GoFunc:
		return lVal == rVal, nil
	default:
		return lVal == rVal, nil
	}
}

func numEq(lVal, rVal any) bool {
	lb, lisBig := lVal.(*big.Int)
	rb, risBig := rVal.(*big.Int)
	if lisBig && risBig {
		return lb.Cmp(rb) == 0
	} else if lisBig || risBig {
		return toBig(lVal).Cmp(toBig(rVal)) == 0
	}
	return toFloat(lVal) == toFloat(rVal)
}

// Compare orders two values. Numbers and strings compare natively; otherwise
// the left operand's __lt/__le is tried with (a, b), then the right operand's
// with (b, a) and the boolean result inverted, since either operand may supply
// the comparator. Neither side having it is a runtime error.
func (vm *VM) Compare(op parse.MetaMethod, lVal, rVal any) (int, error) {
	return compareVal(vm, op, lVal, rVal)
}

func compareVal(vm *VM, op parse.MetaMethod, lVal, rVal any) (int, error) {
	if isNumber(lVal) && isNumber(rVal) {
		if numEq(lVal, rVal) {
			return 0, nil
		}
		lb, lisBig := lVal.(*big.Int)
		rb, risBig := rVal.(*big.Int)
		if lisBig && risBig {
			return lb.Cmp(rb), nil
		}
		if toFloat(lVal) < toFloat(rVal) {
			return -1, nil
		}
		return 1, nil
	} else if isString(lVal) && isString(rVal) {
		return strings.Compare(lVal.(string), rVal.(string)), nil
	}

	if method := vm.findMetavalue(op, lVal); method != nil {
		res, err := vm.Call(method, []any{lVal, rVal})
		if err != nil {
			return 0, err
		}
		return cmpFromBool(res, false), nil
	} else if method := vm.findMetavalue(op, rVal); method != nil {
		res, err := vm.Call(method, []any{rVal, lVal})
		if err != nil {
			return 0, err
		}
		return cmpFromBool(res, true), nil
	}
	return 0, fmt.Errorf("attempt to compare incompatible types %v and %v", typeName(lVal), typeName(rVal))
}

func cmpFromBool(res []any, invert bool) int {
	truthy := len(res) > 0 && toBool(res[0])
	if invert {
		truthy = !truthy
	}
	if truthy {
		return -1
	}
	return 1
}

// Concat joins values left to right, coercing numbers and strings and
// delegating anything else to __concat. The result is interned when short.
func (vm *VM) Concat(vals ...any) (any, error) {
	if len(vals) == 0 {
		return "", nil
	}
	result := vals[0]
	for _, next := range vals[1:] {
		aCoercable := isString(result) || isNumber(result)
		bCoercable := isString(next) || isNumber(next)
		if aCoercable && bCoercable {
			result = lstring.Intern(ToString(result) + ToString(next))
			continue
		}
		didDelegate, res, err := vm.delegateMetamethodBinop(parse.MetaConcat, result, next)
		if err != nil {
			return nil, err
		} else if didDelegate && len(res) > 0 {
			result = res[0]
		} else {
			return nil, fmt.Errorf("attempted to concatenate a %v value", typeName(next))
		}
	}
	return result, nil
}
