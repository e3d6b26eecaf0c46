package lippy

import (
	"fmt"
	"strings"
)

// Environment is a chain of lexical binding scopes over a shared parameter
// set. Generator expansion pushes one scope per clause; user code may bind
// names on a root environment to pre-seed a compilation.
//
// Scopes pushed by the expander during a compilation pass are marked local.
// The distinction matters for one resolution rule: a bare symbol that names
// both a binding and a variable family is only unambiguous when the binding
// belongs to the pass currently running.
type Environment struct {
	store  map[string]interface{}
	order  []string
	outer  *Environment
	params *Params
	local  bool
}

// NewEnvironment returns a root environment over params. A nil params is
// treated as empty.
func NewEnvironment(params *Params) *Environment {
	if params == nil {
		params = NewParams()
	}
	return &Environment{
		store:  map[string]interface{}{},
		params: params,
	}
}

// Bind sets a name in this scope, replacing any previous value bound here.
func (e *Environment) Bind(name string, value interface{}) {
	if _, ok := e.store[name]; !ok {
		e.order = append(e.order, name)
	}
	e.store[name] = value
}

// push opens a child scope belonging to the running compilation pass.
func (e *Environment) push() *Environment {
	return &Environment{
		store:  map[string]interface{}{},
		outer:  e,
		params: e.params,
		local:  true,
	}
}

// Lookup resolves name through the scope chain, innermost first.
func (e *Environment) Lookup(name string) (interface{}, bool) {
	v, ok, _ := e.lookup(name)
	return v, ok
}

func (e *Environment) lookup(name string) (interface{}, bool, bool) {
	for scope := e; scope != nil; scope = scope.outer {
		if v, ok := scope.store[name]; ok {
			return v, true, scope.local
		}
	}
	return nil, false, false
}

// Params returns the parameter set shared by the whole chain.
func (e *Environment) Params() *Params {
	return e.params
}

// Bindings renders the active bindings outermost first, e.g. "s=S1, c=C2".
// Inner scopes override outer ones for shadowed names. The rendering is
// deterministic and is what failure reports embed.
func (e *Environment) Bindings() string {
	var scopes []*Environment
	for scope := e; scope != nil; scope = scope.outer {
		scopes = append(scopes, scope)
	}
	var names []string
	values := map[string]interface{}{}
	for i := len(scopes) - 1; i >= 0; i-- {
		for _, name := range scopes[i].order {
			if _, seen := values[name]; !seen {
				names = append(names, name)
			}
			values[name] = scopes[i].store[name]
		}
	}
	if len(names) == 0 {
		return ""
	}
	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s=%v", name, values[name]))
	}
	return strings.Join(parts, ", ")
}
