package runtime

import "fmt"

// Upvalue is a shared mutable cell for a variable captured by one or more
// closures. Every closure that captured the same lexical variable holds the
// same cell, so a write through any of them is visible to all. The name is
// kept for debug introspection.
type Upvalue struct {
	name string
	val  any
}

// NewUpvalue creates a named cell. A closure created without a resolvable
// source variable still gets a cell initialized to nil so introspection has a
// stable slot to write into.
func NewUpvalue(name string, val any) *Upvalue {
	return &Upvalue{name: name, val: val}
}

// Name returns the captured variable's name for introspection.
func (u *Upvalue) Name() string { return u.name }

// Get returns the current cell value.
func (u *Upvalue) Get() any { return u.val }

// Set replaces the cell value, visible to every closure sharing the cell.
func (u *Upvalue) Set(val any) { u.val = val }

func (u *Upvalue) String() string {
	return fmt.Sprintf("<-name: %v val: %v->", u.name, ToString(u.val))
}
