package runtime

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/kingwill101/lualike/src/lerrors"
	"github.com/kingwill101/lualike/src/parse"
)

// testChunk is the opaque parse result used in tests; it just remembers the
// source text so a test executor can act on it.
type testChunk struct {
	name string
	src  string
}

func (c *testChunk) ChunkName() string { return c.name }

// testParser accepts any source. The markers @@lex and @@syntax force lexer
// and grammar failures so loader error paths can be exercised.
func testParser(chunkname string, src io.Reader, _ parse.LoadMode) (parse.Chunk, error) {
	data, err := io.ReadAll(src)
	if err != nil {
		return nil, err
	}
	text := string(data)
	if strings.Contains(text, "@@lex") {
		return nil, &lerrors.Error{Kind: lerrors.LexerErr, Err: errors.New("unexpected symbol")}
	}
	if strings.Contains(text, "@@syntax") {
		return nil, &lerrors.Error{Kind: lerrors.ParserErr, Err: errors.New("syntax error")}
	}
	return &testChunk{name: chunkname, src: text}, nil
}

type testExec struct {
	run   func(vm *VM, fn *Closure, args []any) ([]any, error)
	roots []any
	calls int
}

func (e *testExec) Call(vm *VM, fn *Closure, args []any) ([]any, error) {
	e.calls++
	if e.run == nil {
		return []any{}, nil
	}
	return e.run(vm, fn, args)
}

func (e *testExec) Roots() []any { return e.roots }

func testVM(t *testing.T) *VM {
	t.Helper()
	vm := New(context.Background(), nil)
	vm.SetParser(testParser).SetExecutor(&testExec{})
	t.Cleanup(func() { _ = vm.Close() })
	return vm
}
