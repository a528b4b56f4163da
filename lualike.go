// Package lualike exposes the runtime core for embedding: value semantics,
// metatable dispatch, environments, protected calls, a steerable collector,
// and the chunk loading pipeline. The host supplies the parser and executor;
// the helpers here wire them to a vm in one call.
package lualike

import (
	"context"
	"strings"

	"github.com/kingwill101/lualike/src/parse"
	"github.com/kingwill101/lualike/src/runtime"
)

// New creates a vm bound to the host's parser and executor with the default
// globals and command line arguments exposed as arg.
func New(ctx context.Context, parser parse.ParseFunc, exec runtime.Executor, args ...string) *runtime.VM {
	return runtime.New(ctx, nil, args...).SetParser(parser).SetExecutor(exec)
}

// String will simply parse and run source code on a fresh vm.
func String(ctx context.Context, parser parse.ParseFunc, exec runtime.Executor, label, src string, args ...string) ([]any, error) {
	chunk, err := parser(label, strings.NewReader(src), parse.ModeText)
	if err != nil {
		return nil, err
	}
	vm := New(ctx, parser, exec, args...)
	defer func() { _ = vm.Close() }()
	return vm.Eval(chunk)
}
