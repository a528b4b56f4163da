package runtime

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/kingwill101/lualike/src/conf"
	"github.com/kingwill101/lualike/src/lerrors"
	"github.com/kingwill101/lualike/src/parse"
)

// Load parses source text into a closure bound to the vm's globals. It is the
// host-facing entry for embedding; load/loadfile build on the same path.
func (vm *VM) Load(chunkname string, src io.Reader) (*Closure, error) {
	if vm.parser == nil {
		return nil, errors.New("no parser registered with this vm")
	}
	chunk, err := vm.parser(chunkname, src, parse.ModeText|parse.ModeBinary)
	if err != nil {
		return nil, err
	}
	return vm.NewClosure(chunk, vm.env), nil
}

func parseLoadMode(modeStr string) parse.LoadMode {
	var mode parse.LoadMode
	if strings.Contains(modeStr, "b") {
		mode |= parse.ModeBinary
	}
	if strings.Contains(modeStr, "t") {
		mode |= parse.ModeText
	}
	if mode == 0 {
		mode = parse.ModeText | parse.ModeBinary
	}
	return mode
}

// loadChunk is the shared tail of load and loadfile. Failures are reported as
// the (nil, message) pair rather than raised, which is the contract both
// builtins share. An explicit environment, even a nil one, rebinds the chunk's
// _ENV and severs its scope chain from the caller.
func (vm *VM) loadChunk(src []byte, chunkname, modeStr string, hasEnv bool, envVal any) ([]any, error) {
	if vm.parser == nil {
		return nil, errors.New("no parser registered with this vm")
	}
	mode := parseLoadMode(modeStr)
	srcMode := parse.Classify(src)
	if srcMode&mode == 0 {
		return []any{nil, fmt.Sprintf("attempt to load a %v chunk (mode is '%v')",
			parse.ModeName(srcMode), modeStr)}, nil
	}
	chunk, err := vm.parser(chunkname, bytes.NewReader(src), mode)
	if err != nil {
		return []any{nil, err.Error()}, nil
	}
	if !hasEnv {
		return []any{vm.NewClosure(chunk, vm.env)}, nil
	}
	scope := NewIsolatedEnvironment(envVal)
	cell, _ := scope.Resolve("_ENV")
	cls := &Closure{
		chunk:    chunk,
		upvalues: []*Upvalue{NewUpvalue("", nil), cell},
		env:      scope,
	}
	vm.gc.Track(cls, 64)
	return []any{cls}, nil
}

// readerSource drains a reader function: zero-argument calls until it returns
// nil or the empty string. Each piece is parsed as it accumulates so a lexing
// fault surfaces without draining the rest of the reader; grammar errors wait
// for the full source since the chunk may simply be incomplete.
func (vm *VM) readerSource(reader any, chunkname string, mode parse.LoadMode) ([]byte, any, error) {
	var buf bytes.Buffer
	for i := 0; ; i++ {
		if i >= conf.MAXREADERCHUNKS {
			return nil, "too many chunks", nil
		}
		res, err := vm.Call(reader, nil)
		if err != nil {
			return nil, nil, err
		}
		if len(res) == 0 || res[0] == nil {
			break
		}
		piece, isStr := res[0].(string)
		if !isStr {
			return nil, fmt.Sprintf("reader function must return a string, got %v", typeName(res[0])), nil
		}
		if piece == "" {
			break
		}
		buf.WriteString(piece)
		if vm.parser == nil {
			continue
		}
		if _, perr := vm.parser(chunkname, bytes.NewReader(buf.Bytes()), mode); perr != nil {
			var luaErr *lerrors.Error
			if errors.As(perr, &luaErr) && luaErr.Kind == lerrors.LexerErr {
				return nil, perr.Error(), nil
			}
		}
	}
	return buf.Bytes(), nil, nil
}

func stdLoad(vm *VM, args []any) ([]any, error) {
	if err := assertArguments(args, "load", "string|function", "~string", "~string", "~value"); err != nil {
		return nil, err
	}
	chunkname := "chunk"
	if len(args) > 1 && args[1] != nil {
		chunkname = ToString(args[1])
	}
	modeStr := "bt"
	if len(args) > 2 && args[2] != nil {
		modeStr = ToString(args[2])
	}
	var src []byte
	switch source := args[0].(type) {
	case string:
		src = []byte(source)
	default:
		data, failure, err := vm.readerSource(source, chunkname, parseLoadMode(modeStr))
		if err != nil {
			return nil, err
		} else if failure != nil {
			return []any{nil, failure}, nil
		}
		src = data
	}
	var envVal any
	hasEnv := len(args) > 3
	if hasEnv {
		envVal = args[3]
	}
	return vm.loadChunk(src, chunkname, modeStr, hasEnv, envVal)
}

func stdLoadFile(vm *VM, args []any) ([]any, error) {
	if err := assertArguments(args, "loadfile", "~string", "~string", "~value"); err != nil {
		return nil, err
	}
	var src []byte
	chunkname := "stdin"
	if len(args) > 0 && args[0] != nil {
		chunkname = ToString(args[0])
		data, err := os.ReadFile(chunkname)
		if err != nil {
			return []any{nil, err.Error()}, nil
		}
		src = data
	} else {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return []any{nil, err.Error()}, nil
		}
		src = data
	}
	modeStr := "bt"
	if len(args) > 1 && args[1] != nil {
		modeStr = ToString(args[1])
	}
	var envVal any
	hasEnv := len(args) > 2
	if hasEnv {
		envVal = args[2]
	}
	return vm.loadChunk(src, chunkname, modeStr, hasEnv, envVal)
}

func stdDoFile(vm *VM, args []any) ([]any, error) {
	if err := assertArguments(args, "dofile", "~string"); err != nil {
		return nil, err
	}
	res, err := stdLoadFile(vm, args)
	if err != nil {
		return nil, err
	}
	cls, isCls := res[0].(*Closure)
	if !isCls {
		return nil, newRuntimeErr(vm, parse.LineInfo{}, fmt.Errorf("%v", res[1]))
	}
	path := ""
	if len(args) > 0 && args[0] != nil {
		path = ToString(args[0])
	}
	return vm.WithScriptPath(path, func() ([]any, error) {
		return vm.Call(cls, nil)
	})
}
