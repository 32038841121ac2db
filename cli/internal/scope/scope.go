// Package scope implements the layered variable environment consulted for
// guard evaluation and command interpolation. Frames chain from a recipe's
// local frame through the document frame out to the process environment.
package scope

import (
	"os"
	"sort"
)

// LookupFunc resolves a name in the outermost frame. The process environment
// is the usual implementation; tests substitute their own.
type LookupFunc func(name string) (string, bool)

// Scope is one frame in the chain. Lookup walks frames innermost-first and
// returns the first binding found.
type Scope struct {
	parent *Scope
	values map[string]string
	lookup LookupFunc // set only on the root frame
}

// NewRoot creates the outermost scope backed by the process environment.
func NewRoot() *Scope {
	return NewRootFrom(os.LookupEnv)
}

// NewRootFrom creates the outermost scope backed by an arbitrary lookup.
// A nil lookup means the root frame resolves nothing.
func NewRootFrom(lookup LookupFunc) *Scope {
	return &Scope{values: make(map[string]string), lookup: lookup}
}

// Child creates a new empty frame whose lookups fall through to s.
func (s *Scope) Child() *Scope {
	return &Scope{parent: s, values: make(map[string]string)}
}

// Get resolves name by walking the chain innermost-first, consulting the
// root's environment lookup last.
func (s *Scope) Get(name string) (string, bool) {
	for frame := s; frame != nil; frame = frame.parent {
		if value, ok := frame.values[name]; ok {
			return value, true
		}
		if frame.parent == nil && frame.lookup != nil {
			return frame.lookup(name)
		}
	}
	return "", false
}

// GetDefined is Get without the environment fallback: it only sees bindings
// made through Set. Command interpolation uses it so that unbound $names are
// left for the shell instead of expanding to the empty string.
func (s *Scope) GetDefined(name string) (string, bool) {
	for frame := s; frame != nil; frame = frame.parent {
		if value, ok := frame.values[name]; ok {
			return value, true
		}
	}
	return "", false
}

// Set binds name in this frame. A default assignment (isDefault=true) is a
// no-op when any binding for name is already visible from this frame
// outward, including the process environment; an override always (re)binds.
// The visibility check happens at call time, matching document source order.
func (s *Scope) Set(name, value string, isDefault bool) {
	if isDefault {
		if _, ok := s.Get(name); ok {
			return
		}
	}
	s.values[name] = value
}

// Bindings returns every name bound via Set across the chain, with inner
// frames shadowing outer ones. Environment variables are not included.
func (s *Scope) Bindings() map[string]string {
	result := make(map[string]string)
	var frames []*Scope
	for frame := s; frame != nil; frame = frame.parent {
		frames = append(frames, frame)
	}
	// Outermost first so inner frames overwrite
	for i := len(frames) - 1; i >= 0; i-- {
		for name, value := range frames[i].values {
			result[name] = value
		}
	}
	return result
}

// Environ renders the chain's bindings as KEY=VALUE pairs in sorted order,
// suitable for appending to a subprocess environment.
func (s *Scope) Environ() []string {
	bindings := s.Bindings()
	names := make([]string, 0, len(bindings))
	for name := range bindings {
		names = append(names, name)
	}
	sort.Strings(names)

	environ := make([]string, 0, len(names))
	for _, name := range names {
		environ = append(environ, name+"="+bindings[name])
	}
	return environ
}
