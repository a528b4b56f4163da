package runtime

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/chzyer/readline"
)

// Inspect starts an interactive session for poking at a live vm: listing
// globals, printing values, and driving the collector by hand. When a parser
// and executor are registered, any input that is not a command is evaluated as
// source text.
func (vm *VM) Inspect() error {
	rl, err := readline.New("> ")
	if err != nil {
		return err
	}
	defer rl.Close()
	fmt.Fprintln(os.Stderr, "type :help for commands")
	for {
		src, err := rl.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) || errors.Is(err, io.EOF) {
				return nil
			}
			fmt.Fprintln(os.Stderr, err)
			continue
		}
		line := strings.TrimSpace(src)
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, ":") {
			if quit := vm.inspectCommand(line); quit {
				return nil
			}
			continue
		}
		vm.inspectEval(line)
	}
}

func (vm *VM) inspectCommand(line string) bool {
	parts := strings.Fields(line)
	switch parts[0] {
	case ":quit", ":q":
		return true
	case ":help":
		fmt.Fprint(os.Stderr, `:globals        list global names
:print <name>   print a global value
:gc             collector stats
:gc step        advance the collector one step
:gc collect     run a full collection
:quit           exit
`)
	case ":globals":
		names := make([]string, 0, len(vm.env.keyCache))
		for _, key := range vm.env.keyCache {
			names = append(names, ToString(key))
		}
		sort.Strings(names)
		fmt.Fprintln(os.Stderr, strings.Join(names, "\n"))
	case ":print":
		if len(parts) < 2 {
			fmt.Fprintln(os.Stderr, "usage: :print <name>")
			return false
		}
		val, err := vm.env.Get(parts[1])
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return false
		}
		vm.inspectPrint(val)
	case ":gc":
		if len(parts) > 1 && parts[1] == "step" {
			closed := vm.gc.Step(vm.roots(), 0)
			fmt.Fprintf(os.Stderr, "stepped, cycle closed: %v\n", closed)
			return false
		}
		if len(parts) > 1 && parts[1] == "collect" {
			freed := vm.gc.Collect(vm.roots())
			fmt.Fprintf(os.Stderr, "collected, freed %v bytes\n", freed)
			return false
		}
		kb, _ := vm.gc.Count()
		fmt.Fprintf(os.Stderr, "mode: %v running: %v heap: %.2fKB cycles: %v objects: %v\n",
			vm.gc.Mode(), vm.gc.IsRunning(), kb, vm.gc.Cycles(), len(vm.gc.registry))
	default:
		fmt.Fprintf(os.Stderr, "unknown command %v\n", parts[0])
	}
	return false
}

func (vm *VM) inspectPrint(val any) {
	tbl, isTbl := val.(*Table)
	if !isTbl {
		fmt.Fprintln(os.Stderr, ToString(val))
		return
	}
	for i, v := range tbl.val {
		fmt.Fprintf(os.Stderr, "  [%v] = %v\n", i+1, ToString(v))
	}
	for _, key := range tbl.keyCache {
		fmt.Fprintf(os.Stderr, "  [%v] = %v\n", ToString(denormalizeKey(key)), ToString(tbl.hashtable[key]))
	}
}

func (vm *VM) inspectEval(src string) {
	if vm.parser == nil || vm.exec == nil {
		fmt.Fprintln(os.Stderr, "no parser/executor registered; only : commands are available")
		return
	}
	cls, err := vm.Load("<inspect>", strings.NewReader(src))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return
	}
	res, err := vm.Call(cls, nil)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return
	}
	strParts := []string{}
	for _, arg := range res {
		if arg != nil {
			strParts = append(strParts, ToString(arg))
		}
	}
	if len(strParts) > 0 {
		fmt.Fprintln(os.Stderr, strings.Join(strParts, "\t"))
	}
}
