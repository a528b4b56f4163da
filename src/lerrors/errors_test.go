package lerrors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_Format(t *testing.T) {
	t.Parallel()

	testcases := []struct {
		desc     string
		err      *Error
		expected string
	}{
		{
			desc: "runtime",
			err: &Error{
				Kind:      RuntimeErr,
				Filename:  "main.lua",
				Line:      3,
				Column:    7,
				Err:       errors.New("attempt to index a nil value"),
				Traceback: []string{"\tmain.lua:3: in main"},
			},
			expected: "lua:main.lua:3:7 attempt to index a nil value\nstack traceback:\n\tmain.lua:3: in main",
		},
		{
			desc:     "parser",
			err:      &Error{Kind: ParserErr, Filename: "mod.lua", Line: 1, Column: 2, Err: errors.New("unexpected token")},
			expected: "Parse Error: mod.lua:1:2 unexpected token",
		},
		{
			desc:     "lexer",
			err:      &Error{Kind: LexerErr, Err: errors.New("malformed number")},
			expected: "Lex Error: malformed number",
		},
		{
			desc:     "user",
			err:      &Error{Kind: UserErr, Err: errors.New("boom"), Value: "boom"},
			expected: "boom",
		},
	}
	for _, tc := range testcases {
		tc := tc
		t.Run(tc.desc, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.expected, tc.err.Error())
		})
	}
}

func TestError_Unwrap(t *testing.T) {
	t.Parallel()
	inner := errors.New("inner")
	err := &Error{Kind: RuntimeErr, Err: inner}
	require.ErrorIs(t, err, inner)

	var luaErr *Error
	assert.ErrorAs(t, error(err), &luaErr)
}
