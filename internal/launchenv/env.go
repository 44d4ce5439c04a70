// Package launchenv composes the process environment of a launched
// application from an ordered pipeline of contributors.
package launchenv

import (
	"os"
	"strings"
)

type value struct {
	scalar string
	list   []string
	isList bool
}

// Environment is an ordered mapping of variable names to either a scalar
// or an ordered list of path fragments. It is immutable: every modifier
// returns a new Environment and leaves the receiver untouched. Lists are
// joined with the path list separator only by Flatten and Get.
type Environment struct {
	sep  string
	keys []string
	vals map[string]value
}

// New returns an empty environment using the host path list separator.
func New() Environment {
	return NewWithSeparator(string(os.PathListSeparator))
}

// NewWithSeparator returns an empty environment joining lists with sep.
func NewWithSeparator(sep string) Environment {
	return Environment{sep: sep, vals: map[string]value{}}
}

// FromEnviron builds an environment from "KEY=VALUE" pairs such as
// os.Environ(). Later duplicates replace earlier ones.
func FromEnviron(environ []string) Environment {
	e := New()
	for _, kv := range environ {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			continue
		}
		e = e.Set(k, v)
	}
	return e
}

func (e Environment) clone() Environment {
	out := Environment{
		sep:  e.sep,
		keys: append([]string(nil), e.keys...),
		vals: make(map[string]value, len(e.vals)+1),
	}
	if out.sep == "" {
		out.sep = string(os.PathListSeparator)
	}
	for k, v := range e.vals {
		if v.isList {
			v.list = append([]string(nil), v.list...)
		}
		out.vals[k] = v
	}
	return out
}

func (e *Environment) put(name string, v value) {
	if _, ok := e.vals[name]; !ok {
		e.keys = append(e.keys, name)
	}
	e.vals[name] = v
}

// Set replaces name with a scalar value.
func (e Environment) Set(name, val string) Environment {
	out := e.clone()
	out.put(name, value{scalar: val})
	return out
}

// Append adds fragments to the end of the list stored under name. An
// existing scalar is split on the separator first. Empty fragments and
// fragments already present are skipped.
func (e Environment) Append(name string, fragments ...string) Environment {
	out := e.clone()
	list := out.fragments(name)
	for _, f := range fragments {
		if f == "" || contains(list, f) {
			continue
		}
		list = append(list, f)
	}
	out.put(name, value{list: list, isList: true})
	return out
}

// Prepend adds fragments to the front of the list stored under name,
// keeping their relative order. Fragments already present are moved.
func (e Environment) Prepend(name string, fragments ...string) Environment {
	out := e.clone()
	var head []string
	for _, f := range fragments {
		if f != "" && !contains(head, f) {
			head = append(head, f)
		}
	}
	list := head
	for _, f := range out.fragments(name) {
		if !contains(head, f) {
			list = append(list, f)
		}
	}
	out.put(name, value{list: list, isList: true})
	return out
}

// Unset removes name.
func (e Environment) Unset(name string) Environment {
	if _, ok := e.vals[name]; !ok {
		return e
	}
	out := e.clone()
	delete(out.vals, name)
	for i, k := range out.keys {
		if k == name {
			out.keys = append(out.keys[:i], out.keys[i+1:]...)
			break
		}
	}
	return out
}

func (e Environment) fragments(name string) []string {
	v, ok := e.vals[name]
	if !ok {
		return nil
	}
	if v.isList {
		return append([]string(nil), v.list...)
	}
	var out []string
	for _, f := range strings.Split(v.scalar, e.separator()) {
		if f != "" && !contains(out, f) {
			out = append(out, f)
		}
	}
	return out
}

func (e Environment) separator() string {
	if e.sep == "" {
		return string(os.PathListSeparator)
	}
	return e.sep
}

// List returns the fragments stored under name.
func (e Environment) List(name string) []string {
	return e.fragments(name)
}

// Get returns the flattened value of name.
func (e Environment) Get(name string) (string, bool) {
	v, ok := e.vals[name]
	if !ok {
		return "", false
	}
	if v.isList {
		return strings.Join(v.list, e.separator()), true
	}
	return v.scalar, true
}

// Keys returns variable names in insertion order.
func (e Environment) Keys() []string {
	return append([]string(nil), e.keys...)
}

// Len returns the number of variables.
func (e Environment) Len() int { return len(e.keys) }

// Flatten renders the environment as "KEY=VALUE" pairs in insertion order,
// ready for exec.Cmd.Env.
func (e Environment) Flatten() []string {
	out := make([]string, 0, len(e.keys))
	for _, k := range e.keys {
		v, _ := e.Get(k)
		out = append(out, k+"="+v)
	}
	return out
}

// Map returns the flattened environment as a map.
func (e Environment) Map() map[string]string {
	out := make(map[string]string, len(e.keys))
	for _, k := range e.keys {
		out[k], _ = e.Get(k)
	}
	return out
}

func contains(list []string, s string) bool {
	for _, x := range list {
		if x == s {
			return true
		}
	}
	return false
}
