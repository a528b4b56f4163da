// Package lerrors is a unified errors package for lua parsing and runtime so
// that they can be formatted in a unified way and handled in a unified way.
package lerrors

import (
	"fmt"
	"strings"
)

type (
	// ErrorKind is an enum to describe where the error originates from.
	ErrorKind int
	// Error captures all errors in the lualike runtime. It distinguishes between
	// lexer, parser, runtime, type, and user errors and will format them
	// accordingly. This is so that errors can be handled in a uniform way in the
	// runtime. User errors keep the thrown object in Value so that protected
	// calls can hand back the exact value instead of a stringified form.
	Error struct {
		Line      int64
		Column    int64
		Kind      ErrorKind
		Err       error
		Filename  string
		Traceback []string
		Value     any
	}
)

const (
	// RuntimeErr is an error that originates from the runtime.
	RuntimeErr ErrorKind = iota
	// TypeErr is an operation applied to a value of the wrong kind.
	TypeErr
	// ParserErr is an error that originates from the parser.
	ParserErr
	// LexerErr is an error that originates from the lexer.
	LexerErr
	// UserErr is an error raised from user code by the user.
	UserErr
)

func (err *Error) Error() string {
	switch err.Kind {
	case RuntimeErr, TypeErr:
		return fmt.Sprintf(
			"lua:%v:%v:%v %v\nstack traceback:\n%v",
			err.Filename,
			err.Line,
			err.Column,
			err.Err,
			strings.Join(err.Traceback, "\n"),
		)
	case ParserErr:
		return fmt.Sprintf(`Parse Error: %s:%v:%v %v`, err.Filename, err.Line, err.Column, err.Err)
	case LexerErr:
		return fmt.Sprintf("Lex Error: %v", err.Err.Error())
	default:
		return err.Err.Error()
	}
}

func (err *Error) Unwrap() error { return err.Err }
