package runtime

import (
	"errors"

	"zombiezen.com/go/log"

	"github.com/kingwill101/lualike/src/lerrors"
)

// ProtectedCall invokes fn with full dispatch inside a protected region.
// Entering saves the yieldable flag and forces it false, since a coroutine
// may not suspend across a protected boundary; both protection depth and the
// prior yieldable value are restored unconditionally on every exit path.
// Pending tail calls are completed inside Call, so a tail call reaching the
// protected boundary folds into the success path rather than failing.
func (vm *VM) ProtectedCall(fn any, args []any) ([]any, error) {
	vm.protectDepth++
	prevYieldable := vm.yieldable
	vm.yieldable = false
	defer func() {
		vm.protectDepth--
		vm.yieldable = prevYieldable
	}()
	return vm.Call(fn, args)
}

// IsProtected reports whether execution is currently inside a pcall/xpcall
// region.
func (vm *VM) IsProtected() bool { return vm.protectDepth > 0 }

// Yieldable reports whether the current execution may suspend.
func (vm *VM) Yieldable() bool { return vm.yieldable }

// SetYieldable is used by the coroutine owner when entering a resumable
// region. The previous value must be restored by the caller.
func (vm *VM) SetYieldable(ok bool) bool {
	prev := vm.yieldable
	vm.yieldable = ok
	return prev
}

// reportError is the top level error reporter for faults that escape every
// protected region. It is guarded against reentry so an error raised while
// reporting an error degrades to a plain return instead of recursing.
func (vm *VM) reportError(err error) error {
	if vm.reporting {
		return err
	}
	vm.reporting = true
	defer func() { vm.reporting = false }()

	var luaErr *lerrors.Error
	if errors.As(err, &luaErr) {
		if len(luaErr.Traceback) == 0 {
			luaErr.Traceback = vm.formatCallstack()
		}
		log.Errorf(vm.ctx, "%v", luaErr)
		return luaErr
	}
	log.Errorf(vm.ctx, "%v", err)
	return err
}

func stdPCall(vm *VM, args []any) ([]any, error) {
	if err := assertArguments(args, "pcall", "value"); err != nil {
		return nil, err
	}
	values, err := vm.ProtectedCall(args[0], args[1:])
	if err != nil {
		if sig, isSig := asSignal(err); isSig {
			return nil, sig
		}
		return []any{false, errValue(err)}, nil
	}
	return append([]any{true}, values...), nil
}

func stdXPCall(vm *VM, args []any) ([]any, error) {
	if err := assertArguments(args, "xpcall", "value", "function"); err != nil {
		return nil, err
	}
	values, err := vm.ProtectedCall(args[0], args[2:])
	if err != nil {
		if sig, isSig := asSignal(err); isSig {
			return nil, sig
		}
		handlerRes, handlerErr := vm.ProtectedCall(args[1], []any{errValue(err)})
		if handlerErr != nil {
			return []any{false, "error in error handling"}, nil
		}
		return append([]any{false}, handlerRes...), nil
	}
	return append([]any{true}, values...), nil
}

func stdError(vm *VM, args []any) ([]any, error) {
	if err := assertArguments(args, "error", "~value", "~number"); err != nil {
		return nil, err
	}
	var errObj any
	if len(args) > 0 {
		errObj = args[0]
	}
	level := 1
	if len(args) > 1 {
		level = int(toInt(args[1]))
	}
	return nil, newUserErr(vm, level, errObj)
}

func stdAssert(vm *VM, args []any) ([]any, error) {
	if err := assertArguments(args, "assert", "value", "~value"); err != nil {
		return nil, err
	} else if toBool(args[0]) {
		return args, nil
	} else if len(args) > 1 {
		return nil, newUserErr(vm, 1, args[1])
	}
	return nil, newUserErr(vm, 1, "assertion failed!")
}
