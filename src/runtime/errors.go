package runtime

import (
	"errors"
	"fmt"
	"strings"

	"github.com/kingwill101/lualike/src/lerrors"
	"github.com/kingwill101/lualike/src/parse"
)

var (
	errTableIndexNil = errors.New("table index is nil")
	errTableIndexNaN = errors.New("table index is NaN")
)

func newUserErr(vm *VM, level int, val any) error {
	var ci callInfo
	if csl := len(vm.callStack); csl > 0 {
		if level > 0 && level < csl {
			ci = vm.callStack[level]
		} else {
			ci = vm.callStack[csl-1]
		}
	}

	var err error
	if str, isStr := val.(string); isStr {
		err = errors.New(str)
	} else {
		err = fmt.Errorf("(error object is a %v value)", typeName(val))
	}

	return &lerrors.Error{
		Kind:      lerrors.UserErr,
		Filename:  ci.filename,
		Line:      ci.Line,
		Column:    ci.Column,
		Err:       err,
		Traceback: vm.formatCallstack(),
		Value:     val,
	}
}

func newRuntimeErr(vm *VM, li parse.LineInfo, err error) error {
	return classifyErr(vm, li, lerrors.RuntimeErr, err)
}

func newTypeErr(vm *VM, li parse.LineInfo, err error) error {
	return classifyErr(vm, li, lerrors.TypeErr, err)
}

func classifyErr(vm *VM, li parse.LineInfo, kind lerrors.ErrorKind, err error) error {
	var luaErr *lerrors.Error
	if errors.As(err, &luaErr) {
		return luaErr
	}
	ci := callInfo{LineInfo: li}
	if len(vm.callStack) > 0 {
		ci.filename = vm.callStack[len(vm.callStack)-1].filename
	}
	return &lerrors.Error{
		Kind:      kind,
		Filename:  ci.filename,
		Line:      ci.Line,
		Column:    ci.Column,
		Err:       err,
		Traceback: vm.formatCallstack(),
	}
}

func (vm *VM) formatCallstack() []string {
	parts := []string{}
	for i := range vm.callStack {
		info := vm.callStack[i]
		if strings.HasPrefix(info.filename, "<") && strings.HasSuffix(info.filename, ">") {
			parts = append(parts, fmt.Sprintf("\t%v %v", info.filename, info.name))
		} else if strings.HasPrefix(info.name, "<") && strings.HasSuffix(info.name, ">") {
			parts = append(parts, fmt.Sprintf("\t%v %v", info.filename, info.name))
		} else {
			parts = append(parts, fmt.Sprintf("\t%v:%v: in %v", info.filename, info.Line, info.name))
		}
	}
	return parts
}

func argumentErr(nArg int, methodName string, err error) error {
	return fmt.Errorf("bad argument #%v to '%v' (%w)", nArg, methodName, err)
}

// errValue extracts the payload a protected call hands back: the raw thrown
// value for user errors, the message text for everything else.
func errValue(err error) any {
	var luaErr *lerrors.Error
	if errors.As(err, &luaErr) {
		if luaErr.Kind == lerrors.UserErr {
			return luaErr.Value
		}
		return luaErr.Err.Error()
	}
	return err.Error()
}
