package runtime

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"zombiezen.com/go/log"

	"github.com/kingwill101/lualike/src/conf"
	"github.com/kingwill101/lualike/src/parse"
)

type (
	callInfo struct {
		parse.LineInfo
		filename string
		name     string
	}
	// Executor is the host execution loop. The runtime wires chunks into
	// closures and dispatches calls; the executor evaluates chunk bodies and
	// reports any extra gc roots it is holding.
	Executor interface {
		Call(vm *VM, fn *Closure, args []any) ([]any, error)
		Roots() []any
	}
	// VM is the session object owning every piece of mutable runtime state:
	// the globals table, the lexical root scope, the call stack, the protected
	// call bookkeeping, and the collector. Nothing in the runtime lives in
	// package-level mutable state.
	VM struct {
		ctx        context.Context
		env        *Table
		rootScope  *Environment
		stringMeta *Table
		parser     parse.ParseFunc
		exec       Executor
		gc         *GC
		vmargs     []any

		callStack         []callInfo
		currentScriptPath string

		protectDepth int
		yieldable    bool
		reporting    bool
		warnEnabled  bool
	}
)

// New will create a new vm for evaluating. It will establish the globals,
// the root lexical scope, and the collector, and make any extra arguments
// provided available as the arg value.
func New(ctx context.Context, env *Table, clargs ...string) *VM {
	vm := &VM{
		ctx:       ctx,
		gc:        newGC(ctx),
		yieldable: false,
	}
	vm.stringMeta = vm.AllocTable(nil, map[any]any{
		string(parse.MetaIndex): NewTable(nil, nil),
	})
	if env == nil {
		env = createDefaultEnv(vm)
	}
	vm.gc.Track(env, tableSize(env))
	env.gc = vm.gc
	_ = env.Set("_G", env)
	argTbl := make([]any, len(clargs))
	for i, a := range clargs {
		argTbl[i] = a
	}
	_ = env.Set("arg", vm.AllocTable(argTbl, nil))
	vm.env = env
	vm.vmargs = argTbl
	vm.rootScope = NewEnvironment(nil)
	vm.rootScope.Declare("_ENV", env)
	return vm
}

// SetParser registers the external parser used by load/loadfile/require.
func (vm *VM) SetParser(p parse.ParseFunc) *VM {
	vm.parser = p
	return vm
}

// SetExecutor registers the host execution loop that runs chunk bodies.
func (vm *VM) SetExecutor(e Executor) *VM {
	vm.exec = e
	return vm
}

// Context returns the vm's context, which also threads into log output.
func (vm *VM) Context() context.Context { return vm.ctx }

// Env returns the globals table.
func (vm *VM) Env() *Table { return vm.env }

// GC returns the collector control surface.
func (vm *VM) GC() *GC { return vm.gc }

// ScriptPath reports the path of the script currently executing, used by the
// same-directory require heuristic.
func (vm *VM) ScriptPath() string { return vm.currentScriptPath }

// AllocTable creates a table registered with the collector.
func (vm *VM) AllocTable(arr []any, hash map[any]any) *Table {
	tbl := NewTable(arr, hash)
	tbl.gc = vm.gc
	vm.gc.Track(tbl, tableSize(tbl))
	vm.gc.maybeStep(vm.roots())
	return tbl
}

func (vm *VM) allocSizedTable(arraySize, tableSize int) *Table {
	tbl := newSizedTable(arraySize, tableSize)
	tbl.gc = vm.gc
	vm.gc.Track(tbl, int64(arraySize+tableSize)*16)
	vm.gc.maybeStep(vm.roots())
	return tbl
}

// NewClosure wires a freshly parsed chunk to an environment table following
// the default policy: upvalue slot 0 is a reserved placeholder and slot 1 is
// _ENV captured at load time. The closure gets a fresh lexical scope that
// sees only the environment table, never the caller's locals.
func (vm *VM) NewClosure(chunk parse.Chunk, env any) *Closure {
	scope := NewEnvironment(nil)
	cls := &Closure{
		chunk:    chunk,
		upvalues: []*Upvalue{NewUpvalue("", nil), scope.Declare("_ENV", env)},
		env:      scope,
	}
	vm.gc.Track(cls, 64)
	return cls
}

// CaptureClosure builds a closure over statically known free variables,
// capturing exactly those variables' cells from scope so that every closure
// over the same variable shares the same cell. An unresolvable name still
// gets a nil-initialized named cell for introspection.
func (vm *VM) CaptureClosure(chunk parse.Chunk, names []string, scope *Environment) *Closure {
	upvals := make([]*Upvalue, len(names))
	for i, name := range names {
		if cell, ok := scope.Resolve(name); ok {
			upvals[i] = cell
		} else {
			upvals[i] = NewUpvalue(name, nil)
		}
	}
	cls := &Closure{chunk: chunk, upvalues: upvals, env: scope}
	vm.gc.Track(cls, 64)
	return cls
}

// Eval runs a parsed chunk as the main body with the vm arguments, reporting
// any unprotected fault through the top level reporter.
func (vm *VM) Eval(chunk parse.Chunk) ([]any, error) {
	res, err := vm.Call(vm.NewClosure(chunk, vm.env), vm.vmargs)
	if err != nil {
		if sig, isSig := asSignal(err); isSig && sig.kind == SignalExit {
			return nil, err
		}
		return nil, vm.reportError(err)
	}
	return res, nil
}

// Call invokes any callable value with full dispatch: go functions and
// closures directly, tables through their __call chain with the callee
// prepended, and pending tail calls completed here so they never surface as
// errors.
func (vm *VM) Call(fn any, args []any) ([]any, error) {
	if len(vm.callStack) >= conf.MAXCALLDEPTH {
		return nil, newRuntimeErr(vm, parse.LineInfo{}, errors.New("stack overflow"))
	}

	for {
		fn, args = vm.resolveCallable(fn, args)
		res, err := vm.invoke(fn, args)
		if err == nil {
			return Flatten(res), nil
		}
		sig, isSig := asSignal(err)
		if !isSig {
			return nil, err
		}
		switch sig.kind {
		case SignalReturn:
			return Flatten(sig.values), nil
		case SignalTailCall:
			fn, args = sig.fn, sig.args
		case SignalYield:
			if !vm.yieldable {
				return nil, newRuntimeErr(vm, parse.LineInfo{},
					errors.New("attempt to yield across a protected call boundary"))
			}
			return nil, sig
		case SignalExit:
			return nil, sig
		}
	}
}

// resolveCallable follows __call metavalues until a real callable is found.
// Each hop prepends the object being called to the argument list.
func (vm *VM) resolveCallable(fn any, args []any) (any, []any) {
	for !isCallable(fn) {
		method := vm.findMetavalue(parse.MetaCall, fn)
		if method == nil {
			return fn, args
		}
		args = append([]any{fn}, args...)
		fn = method
	}
	return fn, args
}

func (vm *VM) invoke(fn any, args []any) ([]any, error) {
	switch tfn := fn.(type) {
	case *GoFunc:
		vm.pushCoreCall(tfn.name)
		defer vm.popCallstack()
		return tfn.val(vm, args)
	case *Closure:
		if vm.exec == nil {
			return nil, errors.New("no executor registered with this vm")
		}
		vm.pushCallstack(tfn)
		defer vm.popCallstack()
		return vm.exec.Call(vm, tfn, args)
	case nil:
		return nil, newTypeErr(vm, parse.LineInfo{}, errors.New("expected callable but found nil"))
	default:
		return nil, newTypeErr(vm, parse.LineInfo{},
			fmt.Errorf("expected callable but found %s", typeName(fn)))
	}
}

func (vm *VM) pushCallstack(cls *Closure) {
	name := "<anonymous>"
	if cls.chunk != nil && cls.chunk.ChunkName() != "" {
		name = cls.chunk.ChunkName()
	}
	vm.callStack = append(vm.callStack, callInfo{name: name, filename: vm.currentScriptPath})
}

func (vm *VM) pushCoreCall(name string) {
	vm.callStack = append(vm.callStack, callInfo{name: name, filename: "<core>"})
}

func (vm *VM) popCallstack() {
	vm.callStack = vm.callStack[:len(vm.callStack)-1]
}

// WithScriptPath runs fn with the current script path switched, restoring the
// prior value on every exit path including thrown errors.
func (vm *VM) WithScriptPath(path string, fn func() ([]any, error)) ([]any, error) {
	prev := vm.currentScriptPath
	vm.currentScriptPath = path
	defer func() { vm.currentScriptPath = prev }()
	return fn()
}

// WithGlobals runs fn with the globals table switched, restoring the prior
// table on every exit path. Used when running a loaded chunk or module that
// carries its own environment.
func (vm *VM) WithGlobals(env *Table, fn func() ([]any, error)) ([]any, error) {
	prev := vm.env
	vm.env = env
	defer func() { vm.env = prev }()
	return fn()
}

// ToString formats a value consulting __tostring.
func (vm *VM) ToString(val any) (string, error) {
	if method := vm.findMetavalue(parse.MetaToString, val); method != nil {
		res, err := vm.Call(method, []any{val})
		if err != nil {
			return "", err
		} else if len(res) == 0 {
			return "", nil
		}
		return vm.ToString(res[0])
	}
	return ToString(val), nil
}

func (vm *VM) warn(args ...any) ([]any, error) {
	if len(args) == 1 && strings.HasPrefix(ToString(args[0]), "@") {
		switch args[0] {
		case "@on":
			vm.warnEnabled = true
		case "@off":
			vm.warnEnabled = false
		}
		return []any{}, nil
	}
	if !vm.warnEnabled {
		return []any{}, nil
	}
	strParts := make([]string, len(args))
	for i, arg := range args {
		str, err := vm.ToString(arg)
		if err != nil {
			return nil, err
		}
		strParts[i] = str
	}
	log.Warnf(vm.ctx, "Lua warning: %s", strings.Join(strParts, ""))
	return []any{}, nil
}

// roots is the vm side of root discovery: the globals table, the root lexical
// scope, the string metatable, plus whatever the executor is holding.
func (vm *VM) roots() []any {
	rs := []any{vm.env, vm.rootScope, vm.stringMeta}
	if vm.exec != nil {
		rs = append(rs, vm.exec.Roots()...)
	}
	return rs
}

// Close shuts the vm down cleanly, running one last full collection.
func (vm *VM) Close() error {
	vm.gc.Collect(vm.roots())
	return nil
}
