// Package parse defines the boundary between the runtime core and the external
// parser. The runtime never inspects source text itself; it hands the text to a
// registered ParseFunc and receives back an opaque Chunk that the host executor
// knows how to run. The only wire convention owned here is the leading binary
// chunk marker byte.
package parse

import (
	"io"

	"github.com/kingwill101/lualike/src/conf"
)

type (
	// LoadMode are flags to indicate how to load/parse a chunk of data.
	LoadMode uint
	// LineInfo is a shared struct that is used for tracking where the behaviour
	// originated from in the sourcecode.
	LineInfo struct {
		Line   int64
		Column int64
	}
	// MetaMethod is the name of a reserved metatable key resolved by the
	// dispatch layer.
	MetaMethod string
	// Chunk is a parsed unit of loadable code. The runtime treats it as opaque
	// and only wires it into a closure; the host executor runs it.
	Chunk interface {
		ChunkName() string
	}
	// ParseFunc is the contract a host parser must satisfy. It is called with
	// the chunk name, the raw source, and the load mode that was already
	// enforced by the chunk loader.
	ParseFunc func(chunkname string, src io.Reader, mode LoadMode) (Chunk, error)
)

const (
	// ModeText implies that the chunk of text being loaded is plain text.
	ModeText LoadMode = 0b01
	// ModeBinary implies that the chunk of data being loaded is pre parsed binary.
	ModeBinary LoadMode = 0b10
)

const (
	// MetaAdd is the __add metamethod.
	MetaAdd MetaMethod = "__add"
	// MetaSub is the __sub metamethod.
	MetaSub MetaMethod = "__sub"
	// MetaMul is the __mul metamethod.
	MetaMul MetaMethod = "__mul"
	// MetaDiv is the __div metamethod.
	MetaDiv MetaMethod = "__div"
	// MetaMod is the __mod metamethod.
	MetaMod MetaMethod = "__mod"
	// MetaPow is the __pow metamethod.
	MetaPow MetaMethod = "__pow"
	// MetaUNM is the __unm metamethod.
	MetaUNM MetaMethod = "__unm"
	// MetaIDiv is the __idiv metamethod.
	MetaIDiv MetaMethod = "__idiv"
	// MetaConcat is the __concat metamethod.
	MetaConcat MetaMethod = "__concat"
	// MetaLen is the __len metamethod.
	MetaLen MetaMethod = "__len"
	// MetaEq is the __eq metamethod.
	MetaEq MetaMethod = "__eq"
	// MetaLt is the __lt metamethod.
	MetaLt MetaMethod = "__lt"
	// MetaLe is the __le metamethod.
	MetaLe MetaMethod = "__le"
	// MetaIndex is the __index metamethod.
	MetaIndex MetaMethod = "__index"
	// MetaNewIndex is the __newindex metamethod.
	MetaNewIndex MetaMethod = "__newindex"
	// MetaCall is the __call metamethod.
	MetaCall MetaMethod = "__call"
	// MetaToString is the __tostring metamethod.
	MetaToString MetaMethod = "__tostring"
	// MetaPairs is the __pairs metamethod.
	MetaPairs MetaMethod = "__pairs"
	// MetaMeta is the __metatable metamethod.
	MetaMeta MetaMethod = "__metatable"
)

// Classify reports the load mode a chunk of data actually is: a chunk starting
// with the binary marker byte is pre-serialized, anything else is source text.
func Classify(src []byte) LoadMode {
	if len(src) > 0 && src[0] == conf.BINCHUNKMARKER {
		return ModeBinary
	}
	return ModeText
}

// ModeName is the chunk kind name used in load error messages.
func ModeName(mode LoadMode) string {
	if mode == ModeBinary {
		return "binary"
	}
	return "text"
}
