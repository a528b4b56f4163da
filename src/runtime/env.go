package runtime

// Environment is a lexical scope: a set of named storage cells plus an
// optional parent link. The parent is borrowed, not owned; a child scope never
// extends its parent's lifetime, and closures that capture parent locals do so
// through the Upvalue cells, not through the Environment itself. An isolated
// environment severs lookups from the parent chain, which is how load with an
// explicit environment sandboxes a chunk.
type Environment struct {
	vars     map[string]*Upvalue
	parent   *Environment
	isolated bool
}

// NewEnvironment creates a scope chained to parent. A nil parent makes a root
// scope.
func NewEnvironment(parent *Environment) *Environment {
	return &Environment{
		vars:   map[string]*Upvalue{},
		parent: parent,
	}
}

// NewIsolatedEnvironment creates a parentless, isolated scope for sandboxed
// execution. The supplied environment value is bound to both _ENV and _G so a
// sandboxed chunk still sees its own globals even though it cannot see the
// calling scope's locals.
func NewIsolatedEnvironment(envValue any) *Environment {
	env := &Environment{
		vars:     map[string]*Upvalue{},
		isolated: true,
	}
	env.Declare("_ENV", envValue)
	env.Declare("_G", envValue)
	return env
}

// Isolated reports whether lookups stop at this scope.
func (env *Environment) Isolated() bool { return env.isolated }

// Declare introduces a new binding in the current scope frame, shadowing any
// outer binding of the same name, and returns its cell.
func (env *Environment) Declare(name string, val any) *Upvalue {
	cell := NewUpvalue(name, val)
	env.vars[name] = cell
	return cell
}

// Define updates an existing binding found by walking the parent chain, or
// creates one in the current frame when none exists.
func (env *Environment) Define(name string, val any) {
	if cell, ok := env.Resolve(name); ok {
		cell.Set(val)
		return
	}
	env.Declare(name, val)
}

// Resolve finds the storage cell for a name, walking the parent chain unless
// this scope is isolated. Closure creation captures the returned cell so every
// closure over the same variable shares it.
func (env *Environment) Resolve(name string) (*Upvalue, bool) {
	for scope := env; scope != nil; scope = scope.parent {
		if cell, ok := scope.vars[name]; ok {
			return cell, true
		}
		if scope.isolated {
			break
		}
	}
	return nil, false
}

// Get returns the value bound to name, walking the parent chain unless
// isolated.
func (env *Environment) Get(name string) (any, bool) {
	cell, ok := env.Resolve(name)
	if !ok {
		return nil, false
	}
	return cell.Get(), true
}

// Set writes through an existing binding and reports whether one was found.
func (env *Environment) Set(name string, val any) bool {
	cell, ok := env.Resolve(name)
	if !ok {
		return false
	}
	cell.Set(val)
	return true
}
