// Package lstring is a small collection of byte-oriented string utilities.
// Lua strings are byte sequences, so everything here works on raw bytes and
// never decodes UTF-8; non-UTF-8 content passes through untouched.
package lstring

import (
	"sync"

	"github.com/kingwill101/lualike/src/conf"
)

var (
	internMu   sync.Mutex
	internPool = map[string]string{}
)

// Intern returns the canonical instance for short strings so that equal short
// strings share storage, mirroring lua's short string behaviour. Strings longer
// than conf.SHORTSTRLIMIT are returned as-is and never pooled.
func Intern(str string) string {
	if len(str) > conf.SHORTSTRLIMIT {
		return str
	}
	internMu.Lock()
	defer internMu.Unlock()
	if pooled, ok := internPool[str]; ok {
		return pooled
	}
	internPool[str] = str
	return str
}

// InternedCount reports how many short strings are currently pooled. Used by
// the collector accounting and the inspector.
func InternedCount() int {
	internMu.Lock()
	defer internMu.Unlock()
	return len(internPool)
}

// Substring will get the byte substring of a string with a start and end index.
// Indexes can be negative, and if they are they will be subtracted from the length.
func Substring(str string, start, end int64) string {
	length := int64(len(str))

	if (start == 0 && end == 0) || end == 0 {
		return ""
	}

	i := substringIndex(start, length+1)
	if i > length || i < 0 {
		return ""
	}

	j := substringIndex(end, length+1)
	if j < i {
		return ""
	}

	return str[max(i-1, 0):clamp(j, i-1, length)]
}

// Reverse will reverse the byte order of the string.
func Reverse(str string) string {
	rstr := []byte(str)
	for i, j := 0, len(str)-1; i < j; i, j = i+1, j-1 {
		rstr[i], rstr[j] = rstr[j], rstr[i]
	}
	return string(rstr)
}

// Byte returns the byte at the 1-based index, or -1 when out of range.
func Byte(str string, i int64) int64 {
	if i < 0 {
		i = int64(len(str)) + i + 1
	}
	if i < 1 || i > int64(len(str)) {
		return -1
	}
	return int64(str[i-1])
}

// Upper folds a-z to A-Z byte by byte, leaving every other byte alone so that
// latin-1 and binary content is not corrupted.
func Upper(str string) string {
	out := []byte(str)
	for i, b := range out {
		if b >= 'a' && b <= 'z' {
			out[i] = b - ('a' - 'A')
		}
	}
	return string(out)
}

// Lower folds A-Z to a-z byte by byte.
func Lower(str string) string {
	out := []byte(str)
	for i, b := range out {
		if b >= 'A' && b <= 'Z' {
			out[i] = b + ('a' - 'A')
		}
	}
	return string(out)
}

func substringIndex(i, strLen int64) int64 {
	if i < 0 {
		return strLen + i
	}
	return i
}

func clamp(f, low, high int64) int64 {
	return max(min(f, high), low)
}
